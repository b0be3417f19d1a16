package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/magabrotheeeer/education-platform/internal/models"
)

// CreateUser сохраняет нового пользователя и возвращает его идентификатор.
func (s *Storage) CreateUser(ctx context.Context, user *models.User) (bson.ObjectID, error) {
	const op = "repository.CreateUser"
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	res, err := s.DB.Collection(collUsers).InsertOne(ctx, user)
	if err != nil {
		return bson.NilObjectID, wrapErr(op, err)
	}
	return res.InsertedID.(bson.ObjectID), nil
}

// GetUserByID возвращает пользователя по идентификатору.
func (s *Storage) GetUserByID(ctx context.Context, id bson.ObjectID) (*models.User, error) {
	const op = "repository.GetUserByID"
	var u models.User
	if err := s.DB.Collection(collUsers).FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, wrapErr(op, err)
	}
	return &u, nil
}

// GetUserByUsername возвращает пользователя по имени.
func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	const op = "repository.GetUserByUsername"
	var u models.User
	if err := s.DB.Collection(collUsers).FindOne(ctx, bson.M{"username": username}).Decode(&u); err != nil {
		return nil, wrapErr(op, err)
	}
	return &u, nil
}

// GetUserByEmail возвращает пользователя по адресу почты.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "repository.GetUserByEmail"
	var u models.User
	if err := s.DB.Collection(collUsers).FindOne(ctx, bson.M{"email": email}).Decode(&u); err != nil {
		return nil, wrapErr(op, err)
	}
	return &u, nil
}

// ListUsers возвращает всех пользователей.
func (s *Storage) ListUsers(ctx context.Context) ([]*models.User, error) {
	const op = "repository.ListUsers"
	cursor, err := s.DB.Collection(collUsers).Find(ctx, bson.M{})
	if err != nil {
		return nil, wrapErr(op, err)
	}
	var users []*models.User
	if err = cursor.All(ctx, &users); err != nil {
		return nil, wrapErr(op, err)
	}
	return users, nil
}

// UpdateUserByID частично обновляет пользователя: меняются только
// переданные поля.
func (s *Storage) UpdateUserByID(ctx context.Context, id bson.ObjectID, fields bson.M) error {
	const op = "repository.UpdateUserByID"
	fields["updated_at"] = time.Now().UTC()
	res, err := s.DB.Collection(collUsers).UpdateByID(ctx, id, bson.M{"$set": fields})
	if err != nil {
		return wrapErr(op, err)
	}
	if res.MatchedCount == 0 {
		return wrapErr(op, ErrNotFound)
	}
	return nil
}

// DeleteUserByID удаляет пользователя.
func (s *Storage) DeleteUserByID(ctx context.Context, id bson.ObjectID) error {
	const op = "repository.DeleteUserByID"
	res, err := s.DB.Collection(collUsers).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return wrapErr(op, err)
	}
	if res.DeletedCount == 0 {
		return wrapErr(op, ErrNotFound)
	}
	return nil
}

// AddRoleToUser добавляет ссылку на роль в список ролей пользователя.
// Повторное добавление той же роли не создает дубликат.
func (s *Storage) AddRoleToUser(ctx context.Context, userID, roleID bson.ObjectID) error {
	const op = "repository.AddRoleToUser"
	res, err := s.DB.Collection(collUsers).UpdateByID(ctx, userID, bson.M{
		"$addToSet": bson.M{"roles": roleID},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return wrapErr(op, err)
	}
	if res.MatchedCount == 0 {
		return wrapErr(op, ErrNotFound)
	}
	return nil
}
