package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/magabrotheeeer/education-platform/internal/models"
)

// CreateFile сохраняет новый файл.
func (s *Storage) CreateFile(ctx context.Context, f *models.File) (bson.ObjectID, error) {
	const op = "repository.CreateFile"
	now := time.Now().UTC()
	f.CreatedAt = now
	f.UpdatedAt = now
	res, err := s.DB.Collection(collFiles).InsertOne(ctx, f)
	if err != nil {
		return bson.NilObjectID, wrapErr(op, err)
	}
	return res.InsertedID.(bson.ObjectID), nil
}

// GetFileByID возвращает файл по идентификатору.
func (s *Storage) GetFileByID(ctx context.Context, id bson.ObjectID) (*models.File, error) {
	const op = "repository.GetFileByID"
	var f models.File
	if err := s.DB.Collection(collFiles).FindOne(ctx, bson.M{"_id": id}).Decode(&f); err != nil {
		return nil, wrapErr(op, err)
	}
	return &f, nil
}

// GetFilesByIDs пакетно загружает файлы по ссылкам.
func (s *Storage) GetFilesByIDs(ctx context.Context, ids []bson.ObjectID) ([]models.File, error) {
	const op = "repository.GetFilesByIDs"
	if len(ids) == 0 {
		return nil, nil
	}
	cursor, err := s.DB.Collection(collFiles).Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, wrapErr(op, err)
	}
	var files []models.File
	if err = cursor.All(ctx, &files); err != nil {
		return nil, wrapErr(op, err)
	}
	return files, nil
}

// ListFiles возвращает все файлы.
func (s *Storage) ListFiles(ctx context.Context) ([]*models.File, error) {
	const op = "repository.ListFiles"
	cursor, err := s.DB.Collection(collFiles).Find(ctx, bson.M{})
	if err != nil {
		return nil, wrapErr(op, err)
	}
	var files []*models.File
	if err = cursor.All(ctx, &files); err != nil {
		return nil, wrapErr(op, err)
	}
	return files, nil
}

// UpdateFileByID частично обновляет файл.
func (s *Storage) UpdateFileByID(ctx context.Context, id bson.ObjectID, fields bson.M) error {
	const op = "repository.UpdateFileByID"
	fields["updated_at"] = time.Now().UTC()
	res, err := s.DB.Collection(collFiles).UpdateByID(ctx, id, bson.M{"$set": fields})
	if err != nil {
		return wrapErr(op, err)
	}
	if res.MatchedCount == 0 {
		return wrapErr(op, ErrNotFound)
	}
	return nil
}

// DeleteFileByID удаляет файл.
func (s *Storage) DeleteFileByID(ctx context.Context, id bson.ObjectID) error {
	const op = "repository.DeleteFileByID"
	res, err := s.DB.Collection(collFiles).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return wrapErr(op, err)
	}
	if res.DeletedCount == 0 {
		return wrapErr(op, ErrNotFound)
	}
	return nil
}
