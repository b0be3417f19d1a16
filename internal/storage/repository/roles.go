package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/magabrotheeeer/education-platform/internal/models"
)

// CreateRole сохраняет новую роль. На занятом имени возвращает ErrDuplicateKey.
func (s *Storage) CreateRole(ctx context.Context, r *models.Role) (bson.ObjectID, error) {
	const op = "repository.CreateRole"
	res, err := s.DB.Collection(collRoles).InsertOne(ctx, r)
	if err != nil {
		return bson.NilObjectID, wrapErr(op, err)
	}
	return res.InsertedID.(bson.ObjectID), nil
}

// GetRoleByID возвращает роль по идентификатору.
func (s *Storage) GetRoleByID(ctx context.Context, id bson.ObjectID) (*models.Role, error) {
	const op = "repository.GetRoleByID"
	var r models.Role
	if err := s.DB.Collection(collRoles).FindOne(ctx, bson.M{"_id": id}).Decode(&r); err != nil {
		return nil, wrapErr(op, err)
	}
	return &r, nil
}

// GetRoleByName возвращает роль по имени.
func (s *Storage) GetRoleByName(ctx context.Context, name string) (*models.Role, error) {
	const op = "repository.GetRoleByName"
	var r models.Role
	if err := s.DB.Collection(collRoles).FindOne(ctx, bson.M{"name": name}).Decode(&r); err != nil {
		return nil, wrapErr(op, err)
	}
	return &r, nil
}

// ListRoles возвращает все роли.
func (s *Storage) ListRoles(ctx context.Context) ([]*models.Role, error) {
	const op = "repository.ListRoles"
	cursor, err := s.DB.Collection(collRoles).Find(ctx, bson.M{})
	if err != nil {
		return nil, wrapErr(op, err)
	}
	var roles []*models.Role
	if err = cursor.All(ctx, &roles); err != nil {
		return nil, wrapErr(op, err)
	}
	return roles, nil
}

// GetRolesByIDs пакетно загружает роли по ссылкам пользователя.
// Недостижимые ссылки молча пропускаются.
func (s *Storage) GetRolesByIDs(ctx context.Context, ids []bson.ObjectID) ([]models.Role, error) {
	const op = "repository.GetRolesByIDs"
	if len(ids) == 0 {
		return nil, nil
	}
	cursor, err := s.DB.Collection(collRoles).Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, wrapErr(op, err)
	}
	var roles []models.Role
	if err = cursor.All(ctx, &roles); err != nil {
		return nil, wrapErr(op, err)
	}
	return roles, nil
}

// UpdateRoleByID частично обновляет роль.
func (s *Storage) UpdateRoleByID(ctx context.Context, id bson.ObjectID, fields bson.M) error {
	const op = "repository.UpdateRoleByID"
	res, err := s.DB.Collection(collRoles).UpdateByID(ctx, id, bson.M{"$set": fields})
	if err != nil {
		return wrapErr(op, err)
	}
	if res.MatchedCount == 0 {
		return wrapErr(op, ErrNotFound)
	}
	return nil
}

// DeleteRoleByID удаляет роль. Ссылки из пользователей не вычищаются.
func (s *Storage) DeleteRoleByID(ctx context.Context, id bson.ObjectID) error {
	const op = "repository.DeleteRoleByID"
	res, err := s.DB.Collection(collRoles).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return wrapErr(op, err)
	}
	if res.DeletedCount == 0 {
		return wrapErr(op, ErrNotFound)
	}
	return nil
}
