package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/magabrotheeeer/education-platform/internal/models"
)

// CreateLesson сохраняет новый урок.
func (s *Storage) CreateLesson(ctx context.Context, l *models.Lesson) (bson.ObjectID, error) {
	const op = "repository.CreateLesson"
	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now
	res, err := s.DB.Collection(collLessons).InsertOne(ctx, l)
	if err != nil {
		return bson.NilObjectID, wrapErr(op, err)
	}
	return res.InsertedID.(bson.ObjectID), nil
}

// GetLessonByID возвращает урок по идентификатору.
func (s *Storage) GetLessonByID(ctx context.Context, id bson.ObjectID) (*models.Lesson, error) {
	const op = "repository.GetLessonByID"
	var l models.Lesson
	if err := s.DB.Collection(collLessons).FindOne(ctx, bson.M{"_id": id}).Decode(&l); err != nil {
		return nil, wrapErr(op, err)
	}
	return &l, nil
}

// GetLessonsByIDs пакетно загружает уроки по ссылкам курса.
func (s *Storage) GetLessonsByIDs(ctx context.Context, ids []bson.ObjectID) ([]models.Lesson, error) {
	const op = "repository.GetLessonsByIDs"
	if len(ids) == 0 {
		return nil, nil
	}
	cursor, err := s.DB.Collection(collLessons).Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, wrapErr(op, err)
	}
	var lessons []models.Lesson
	if err = cursor.All(ctx, &lessons); err != nil {
		return nil, wrapErr(op, err)
	}
	return lessons, nil
}

// ListLessons возвращает все уроки.
func (s *Storage) ListLessons(ctx context.Context) ([]*models.Lesson, error) {
	const op = "repository.ListLessons"
	cursor, err := s.DB.Collection(collLessons).Find(ctx, bson.M{})
	if err != nil {
		return nil, wrapErr(op, err)
	}
	var lessons []*models.Lesson
	if err = cursor.All(ctx, &lessons); err != nil {
		return nil, wrapErr(op, err)
	}
	return lessons, nil
}

// UpdateLessonByID частично обновляет урок.
func (s *Storage) UpdateLessonByID(ctx context.Context, id bson.ObjectID, fields bson.M) error {
	const op = "repository.UpdateLessonByID"
	fields["updated_at"] = time.Now().UTC()
	res, err := s.DB.Collection(collLessons).UpdateByID(ctx, id, bson.M{"$set": fields})
	if err != nil {
		return wrapErr(op, err)
	}
	if res.MatchedCount == 0 {
		return wrapErr(op, ErrNotFound)
	}
	return nil
}

// DeleteLessonByID удаляет урок.
func (s *Storage) DeleteLessonByID(ctx context.Context, id bson.ObjectID) error {
	const op = "repository.DeleteLessonByID"
	res, err := s.DB.Collection(collLessons).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return wrapErr(op, err)
	}
	if res.DeletedCount == 0 {
		return wrapErr(op, ErrNotFound)
	}
	return nil
}
