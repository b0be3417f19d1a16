package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/magabrotheeeer/education-platform/internal/models"
)

// CreateCourse сохраняет новый курс.
func (s *Storage) CreateCourse(ctx context.Context, c *models.Course) (bson.ObjectID, error) {
	const op = "repository.CreateCourse"
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	res, err := s.DB.Collection(collCourses).InsertOne(ctx, c)
	if err != nil {
		return bson.NilObjectID, wrapErr(op, err)
	}
	return res.InsertedID.(bson.ObjectID), nil
}

// GetCourseByID возвращает курс по идентификатору.
func (s *Storage) GetCourseByID(ctx context.Context, id bson.ObjectID) (*models.Course, error) {
	const op = "repository.GetCourseByID"
	var c models.Course
	if err := s.DB.Collection(collCourses).FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return nil, wrapErr(op, err)
	}
	return &c, nil
}

// ListCourses возвращает все курсы.
func (s *Storage) ListCourses(ctx context.Context) ([]*models.Course, error) {
	const op = "repository.ListCourses"
	cursor, err := s.DB.Collection(collCourses).Find(ctx, bson.M{})
	if err != nil {
		return nil, wrapErr(op, err)
	}
	var courses []*models.Course
	if err = cursor.All(ctx, &courses); err != nil {
		return nil, wrapErr(op, err)
	}
	return courses, nil
}

// UpdateCourseByID частично обновляет курс.
func (s *Storage) UpdateCourseByID(ctx context.Context, id bson.ObjectID, fields bson.M) error {
	const op = "repository.UpdateCourseByID"
	fields["updated_at"] = time.Now().UTC()
	res, err := s.DB.Collection(collCourses).UpdateByID(ctx, id, bson.M{"$set": fields})
	if err != nil {
		return wrapErr(op, err)
	}
	if res.MatchedCount == 0 {
		return wrapErr(op, ErrNotFound)
	}
	return nil
}

// AddStudentToCourse добавляет студента в список курса. Повторное
// добавление того же студента не создает дубликат.
func (s *Storage) AddStudentToCourse(ctx context.Context, courseID, studentID bson.ObjectID) error {
	const op = "repository.AddStudentToCourse"
	res, err := s.DB.Collection(collCourses).UpdateByID(ctx, courseID, bson.M{
		"$addToSet": bson.M{"students": studentID},
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

// DeleteCourseByID удаляет курс.
func (s *Storage) DeleteCourseByID(ctx context.Context, id bson.ObjectID) error {
	const op = "repository.DeleteCourseByID"
	res, err := s.DB.Collection(collCourses).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return wrapErr(op, err)
	}
	if res.DeletedCount == 0 {
		return wrapErr(op, ErrNotFound)
	}
	return nil
}
