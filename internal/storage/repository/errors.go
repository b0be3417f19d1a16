package repository

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Ошибки уровня хранилища. Сервисы сопоставляют их через errors.Is
// и переводят в ошибки предметной области.
var (
	// ErrNotFound документ с указанным идентификатором или именем не найден.
	ErrNotFound = errors.New("document not found")
	// ErrDuplicateKey нарушение уникального индекса (имя, username, email).
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrInvalidID строка не является корректным идентификатором документа.
	ErrInvalidID = errors.New("invalid document id")
)

// ParseID разбирает строковый идентификатор документа.
func ParseID(id string) (bson.ObjectID, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return bson.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return oid, nil
}

// wrapErr переводит ошибки драйвера в ошибки хранилища.
func wrapErr(op string, err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%s: %w", op, ErrDuplicateKey)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
