package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/magabrotheeeer/education-platform/internal/models"
)

// CreatePermission сохраняет новое разрешение. На занятом имени
// возвращает ErrDuplicateKey.
func (s *Storage) CreatePermission(ctx context.Context, p *models.Permission) (bson.ObjectID, error) {
	const op = "repository.CreatePermission"
	res, err := s.DB.Collection(collPermissions).InsertOne(ctx, p)
	if err != nil {
		return bson.NilObjectID, wrapErr(op, err)
	}
	return res.InsertedID.(bson.ObjectID), nil
}

// GetPermissionByID возвращает разрешение по идентификатору.
func (s *Storage) GetPermissionByID(ctx context.Context, id bson.ObjectID) (*models.Permission, error) {
	const op = "repository.GetPermissionByID"
	var p models.Permission
	if err := s.DB.Collection(collPermissions).FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, wrapErr(op, err)
	}
	return &p, nil
}

// GetPermissionByName возвращает разрешение по имени.
func (s *Storage) GetPermissionByName(ctx context.Context, name string) (*models.Permission, error) {
	const op = "repository.GetPermissionByName"
	var p models.Permission
	if err := s.DB.Collection(collPermissions).FindOne(ctx, bson.M{"name": name}).Decode(&p); err != nil {
		return nil, wrapErr(op, err)
	}
	return &p, nil
}

// ListPermissions возвращает все разрешения.
func (s *Storage) ListPermissions(ctx context.Context) ([]*models.Permission, error) {
	const op = "repository.ListPermissions"
	cursor, err := s.DB.Collection(collPermissions).Find(ctx, bson.M{})
	if err != nil {
		return nil, wrapErr(op, err)
	}
	var perms []*models.Permission
	if err = cursor.All(ctx, &perms); err != nil {
		return nil, wrapErr(op, err)
	}
	return perms, nil
}

// GetPermissionsByIDs пакетно загружает разрешения по ссылкам.
// Недостижимые ссылки молча пропускаются.
func (s *Storage) GetPermissionsByIDs(ctx context.Context, ids []bson.ObjectID) ([]models.Permission, error) {
	const op = "repository.GetPermissionsByIDs"
	if len(ids) == 0 {
		return nil, nil
	}
	cursor, err := s.DB.Collection(collPermissions).Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, wrapErr(op, err)
	}
	var perms []models.Permission
	if err = cursor.All(ctx, &perms); err != nil {
		return nil, wrapErr(op, err)
	}
	return perms, nil
}

// UpdatePermissionByID частично обновляет разрешение.
func (s *Storage) UpdatePermissionByID(ctx context.Context, id bson.ObjectID, fields bson.M) error {
	const op = "repository.UpdatePermissionByID"
	res, err := s.DB.Collection(collPermissions).UpdateByID(ctx, id, bson.M{"$set": fields})
	if err != nil {
		return wrapErr(op, err)
	}
	if res.MatchedCount == 0 {
		return wrapErr(op, ErrNotFound)
	}
	return nil
}

// DeletePermissionByID удаляет разрешение. Ссылки из ролей не вычищаются:
// каскадное поведение не определено, недостижимые ссылки пропускаются при чтении.
func (s *Storage) DeletePermissionByID(ctx context.Context, id bson.ObjectID) error {
	const op = "repository.DeletePermissionByID"
	res, err := s.DB.Collection(collPermissions).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return wrapErr(op, err)
	}
	if res.DeletedCount == 0 {
		return wrapErr(op, ErrNotFound)
	}
	return nil
}
