// Package file содержит бизнес-логику файлов курсов и уроков.
package file

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/magabrotheeeer/education-platform/internal/models"
	"github.com/magabrotheeeer/education-platform/internal/storage/repository"
)

// ErrNotFound файл не найден.
var ErrNotFound = errors.New("file not found")

// Repository описывает контракт хранилища файлов.
type Repository interface {
	CreateFile(ctx context.Context, f *models.File) (bson.ObjectID, error)
	GetFileByID(ctx context.Context, id bson.ObjectID) (*models.File, error)
	ListFiles(ctx context.Context) ([]*models.File, error)
	UpdateFileByID(ctx context.Context, id bson.ObjectID, fields bson.M) error
	DeleteFileByID(ctx context.Context, id bson.ObjectID) error
}

// Service реализует операции над файлами.
type Service struct {
	repo Repository
	log  *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo Repository, log *slog.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// CreateRequest данные нового файла.
type CreateRequest struct {
	Name  string
	Path  string
	Type  string
	Owner bson.ObjectID
}

// Create регистрирует файл.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.File, error) {
	now := time.Now().UTC()
	f := &models.File{
		Name:      req.Name,
		Path:      req.Path,
		Type:      req.Type,
		Owner:     req.Owner,
		CreatedAt: now,
		UpdatedAt: now,
	}
	id, err := s.repo.CreateFile(ctx, f)
	if err != nil {
		return nil, err
	}
	f.ID = id
	s.log.Info("file registered", slog.String("id", id.Hex()), slog.String("name", f.Name))
	return f, nil
}

// Get возвращает файл по идентификатору.
func (s *Service) Get(ctx context.Context, id bson.ObjectID) (*models.File, error) {
	f, err := s.repo.GetFileByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// List возвращает все файлы.
func (s *Service) List(ctx context.Context) ([]*models.File, error) {
	return s.repo.ListFiles(ctx)
}

/// UpdateRequest частичное обновление файла: nil-поля не трогаются.
type UpdateRequest struct {
	Name *string
	Path *string
	Type *string
}

// Update частично обновляет файл.
func (s *Service) Update(ctx context.Context, id bson.ObjectID, req UpdateRequest) (*models.File, error) {
	fields := bson.M{}
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.Path != nil {
		fields["path"] = *req.Path
	}
	if req.Type != nil {
		fields["type"] = *req.Type
	}
	if len(fields) > 0 {
		if err := s.repo.UpdateFileByID(ctx, id, fields); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
	}
	return s.Get(ctx, id)
}

// Delete удаляет запись о файле. Ссылки из курсов и уроков остаются
// и пропускаются при разрешении.
func (s *Service) Delete(ctx context.Context, id bson.ObjectID) error {
	if err := s.repo.DeleteFileByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
