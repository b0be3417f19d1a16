// Package lesson содержит бизнес-логику уроков.
package lesson

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/magabrotheeeer/education-platform/internal/models"
	"github.com/magabrotheeeer/education-platform/internal/storage/repository"
)

// ErrNotFound урок не найден.
var ErrNotFound = errors.New("lesson not found")

// Repository описывает контракт хранилища уроков.
type Repository interface {
	CreateLesson(ctx context.Context, l *models.Lesson) (bson.ObjectID, error)
	GetLessonByID(ctx context.Context, id bson.ObjectID) (*models.Lesson, error)
	ListLessons(ctx context.Context) ([]*models.Lesson, error)
	UpdateLessonByID(ctx context.Context, id bson.ObjectID, fields bson.M) error
	DeleteLessonByID(ctx context.Context, id bson.ObjectID) error
	GetFilesByIDs(ctx context.Context, ids []bson.ObjectID) ([]models.File, error)
}

// Resolved урок с загруженными файлами.
type Resolved struct {
	models.Lesson
	ResolvedFiles []models.File `json:"resolved_files"`
}

// Service реализует операции над уроками.
type Service struct {
	repo Repository
	log  *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo Repository, log *slog.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// CreateRequest данные нового урока.
type CreateRequest struct {
	Name        string
	Description string
	VideoURL    string
	Duration    int
	Files       []bson.ObjectID
}

// Create создает урок.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Lesson, error) {
	now := time.Now().UTC()
	l := &models.Lesson{
		Name:        req.Name,
		Description: req.Description,
		VideoURL:    req.VideoURL,
		Duration:    req.Duration,
		Files:       req.Files,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if l.Files == nil {
		l.Files = []bson.ObjectID{}
	}
	id, err := s.repo.CreateLesson(ctx, l)
	if err != nil {
		return nil, err
	}
	l.ID = id
	s.log.Info("lesson created", slog.String("id", id.Hex()), slog.String("name", l.Name))
	return l, nil
}

// Get возвращает урок с загруженными файлами. Недостижимые ссылки
// пропускаются.
func (s *Service) Get(ctx context.Context, id bson.ObjectID) (*Resolved, error) {
	l, err := s.repo.GetLessonByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	files, err := s.repo.GetFilesByIDs(ctx, l.Files)
	if err != nil {
		return nil, err
	}
	return &Resolved{Lesson: *l, ResolvedFiles: files}, nil
}

// List возвращает все уроки без разрешения связей.
func (s *Service) List(ctx context.Context) ([]*models.Lesson, error) {
	return s.repo.ListLessons(ctx)
}

/// UpdateRequest частичное обновление урока: nil-поля не трогаются.
type UpdateRequest struct {
	Name        *string
	Description *string
	VideoURL    *string
	Duration    *int
	Files       []bson.ObjectID
}

// Update частично обновляет урок.
func (s *Service) Update(ctx context.Context, id bson.ObjectID, req UpdateRequest) (*Resolved, error) {
	fields := bson.M{}
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.VideoURL != nil {
		fields["video_url"] = *req.VideoURL
	}
	if req.Duration != nil {
		fields["duration"] = *req.Duration
	}
	if req.Files != nil {
		fields["files"] = req.Files
	}
	if len(fields) > 0 {
		if err := s.repo.UpdateLessonByID(ctx, id, fields); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
	}
	return s.Get(ctx, id)
}

// Delete удаляет урок. Ссылки из курсов остаются и пропускаются при
// разрешении.
func (s *Service) Delete(ctx context.Context, id bson.ObjectID) error {
	if err := s.repo.DeleteLessonByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
