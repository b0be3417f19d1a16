package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/magabrotheeeer/education-platform/internal/models"
)

// BlacklistToken помещает токен в черный список до момента expiresAt.
// Повторная вставка того же токена не считается ошибкой.
func (s *Storage) BlacklistToken(ctx context.Context, token string, expiresAt time.Time) error {
	const op = "repository.BlacklistToken"
	doc := models.BlacklistedToken{
		Token:     token,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.DB.Collection(collBlacklist).InsertOne(ctx, doc)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return wrapErr(op, err)
	}
	return nil
}

// IsTokenBlacklisted проверяет присутствие токена в черном списке.
// Записи не удаляются явно — их вычищает TTL-индекс по expires_at.
func (s *Storage) IsTokenBlacklisted(ctx context.Context, token string) (bool, error) {
	const op = "repository.IsTokenBlacklisted"
	err := s.DB.Collection(collBlacklist).FindOne(ctx, bson.M{"token": token}).Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, wrapErr(op, err)
	}
	return true, nil
}
