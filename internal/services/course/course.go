// Package course содержит бизнес-логику курсов: CRUD, двухфазное
// разрешение ссылок на уроки и файлы и кеширование чтений в Redis.
package course

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/magabrotheeeer/education-platform/internal/lib/sl"
	"github.com/magabrotheeeer/education-platform/internal/models"
	"github.com/magabrotheeeer/education-platform/internal/storage/repository"
)

// ErrNotFound курс не найден.
var ErrNotFound = errors.New("course not found")

// Ключи и срок жизни кеша чтений.
const (
	cacheKeyList = "courses:list"
	cacheTTL     = 5 * time.Minute
)

// Repository описывает контракт хранилища курсов и связанных сущностей.
type Repository interface {
	CreateCourse(ctx context.Context, c *models.Course) (bson.ObjectID, error)
	GetCourseByID(ctx context.Context, id bson.ObjectID) (*models.Course, error)
	ListCourses(ctx context.Context) ([]*models.Course, error)
	UpdateCourseByID(ctx context.Context, id bson.ObjectID, fields bson.M) error
	AddStudentToCourse(ctx context.Context, courseID, studentID bson.ObjectID) error
	DeleteCourseByID(ctx context.Context, id bson.ObjectID) error
	GetLessonsByIDs(ctx context.Context, ids []bson.ObjectID) ([]models.Lesson, error)
	GetFilesByIDs(ctx context.Context, ids []bson.ObjectID) ([]models.File, error)
}

// Cache кеширует сериализуемые значения с TTL.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

// Resolved курс с загруженными уроками и файлами. Недостижимые ссылки
// пропускаются при разрешении.
type Resolved struct {
	models.Course
	ResolvedLessons []models.Lesson `json:"resolved_lessons"`
	ResolvedFiles   []models.File   `json:"resolved_files"`
}

// Service реализует операции над курсами.
type Service struct {
	repo  Repository
	cache Cache
	log   *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo Repository, cache Cache, log *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, log: log}
}

// CreateRequest данные нового курса.
type CreateRequest struct {
	Name        string
	Description string
	Price       int64
	Status      string
	Teacher     bson.ObjectID
	Lessons     []bson.ObjectID
	Files       []bson.ObjectID
	Duration    int
	Topics      []string
	Level       string
}

// Create создает курс и сбрасывает кеш списка.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Course, error) {
	const op = "services.course.Create"
	log := s.log.With(slog.String("op", op), slog.String("name", req.Name))

	now := time.Now().UTC()
	c := &models.Course{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Status:      req.Status,
		Teacher:     req.Teacher,
		Students:    []bson.ObjectID{},
		Lessons:     req.Lessons,
		Files:       req.Files,
		Duration:    req.Duration,
		Topics:      req.Topics,
		Level:       req.Level,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if c.Lessons == nil {
		c.Lessons = []bson.ObjectID{}
	}
	if c.Files == nil {
		c.Files = []bson.ObjectID{}
	}

	id, err := s.repo.CreateCourse(ctx, c)
	if err != nil {
		return nil, err
	}
	c.ID = id

	s.invalidate(ctx, cacheKeyList)
	log.Info("course created", slog.String("id", id.Hex()))
	return c, nil
}

// Get возвращает курс с загруженными уроками и файлами. Результат
// кешируется; истечение TTL или запись курса сбрасывают кеш.
func (s *Service) Get(ctx context.Context, id bson.ObjectID) (*Resolved, error) {
	const op = "services.course.Get"
	log := s.log.With(slog.String("op", op), slog.String("id", id.Hex()))

	var cached Resolved
	found, err := s.cache.Get(ctx, cacheKey(id), &cached)
	if err != nil {
		log.Warn("cache read failed", sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	c, err := s.repo.GetCourseByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	resolved, err := s.resolve(ctx, c)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, cacheKey(id), resolved, cacheTTL); err != nil {
		log.Warn("cache write failed", sl.Err(err))
	}
	return resolved, nil
}

// List возвращает все курсы с загруженными связями, через кеш.
func (s *Service) List(ctx context.Context) ([]*Resolved, error) {
	const op = "services.course.List"
	log := s.log.With(slog.String("op", op))

	var cached []*Resolved
	found, err := s.cache.Get(ctx, cacheKeyList, &cached)
	if err != nil {
		log.Warn("cache read failed", sl.Err(err))
	}
	if found {
		return cached, nil
	}

	courses, err := s.repo.ListCourses(ctx)
	if err != nil {
		return nil, err
	}
	resolved := make([]*Resolved, 0, len(courses))
	for _, c := range courses {
		r, err := s.resolve(ctx, c)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, r)
	}
	if err := s.cache.Set(ctx, cacheKeyList, resolved, cacheTTL); err != nil {
		log.Warn("cache write failed", sl.Err(err))
	}
	return resolved, nil
}

// UpdateRequest частичное обновление курса: nil-поля не трогаются.
type UpdateRequest struct {
	Name        *string
	Description *string
	Price       *int64
	Status      *string
	Lessons     []bson.ObjectID
	Files       []bson.ObjectID
	Duration    *int
	Topics      []string
	Level       *string
	Rating      *float64
}

// Update частично обновляет курс и сбрасывает связанный кеш.
func (s *Service) Update(ctx context.Context, id bson.ObjectID, req UpdateRequest) (*Resolved, error) {
	fields := bson.M{}
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.Price != nil {
		fields["price"] = *req.Price
	}
	if req.Status != nil {
		fields["status"] = *req.Status
	}
	if req.Lessons != nil {
		fields["lessons"] = req.Lessons
	}
	if req.Files != nil {
		fields["files"] = req.Files
	}
	if req.Duration != nil {
		fields["duration"] = *req.Duration
	}
	if req.Topics != nil {
		fields["topics"] = req.Topics
	}
	if req.Level != nil {
		fields["level"] = *req.Level
	}
	if req.Rating != nil {
		fields["rating"] = *req.Rating
	}

	if len(fields) > 0 {
		if err := s.repo.UpdateCourseByID(ctx, id, fields); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		s.invalidate(ctx, cacheKey(id), cacheKeyList)
	}
	return s.Get(ctx, id)
}

// AddStudent записывает студента на курс. Повторная запись не создает
// дубликат.
func (s *Service) AddStudent(ctx context.Context, courseID, studentID bson.ObjectID) error {
	if err := s.repo.AddStudentToCourse(ctx, courseID, studentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	s.invalidate(ctx, cacheKey(courseID), cacheKeyList)
	return nil
}

// Delete удаляет курс и сбрасывает связанный кеш.
func (s *Service) Delete(ctx context.Context, id bson.ObjectID) error {
	if err := s.repo.DeleteCourseByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	s.invalidate(ctx, cacheKey(id), cacheKeyList)
	return nil
}

func (s *Service) resolve(ctx context.Context, c *models.Course) (*Resolved, error) {
	lessons, err := s.repo.GetLessonsByIDs(ctx, c.Lessons)
	if err != nil {
		return nil, err
	}
	files, err := s.repo.GetFilesByIDs(ctx, c.Files)
	if err != nil {
		return nil, err
	}
	return &Resolved{Course: *c, ResolvedLessons: lessons, ResolvedFiles: files}, nil
}

func (s *Service) invalidate(ctx context.Context, keys ...string) {
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		s.log.Warn("cache invalidation failed", sl.Err(err))
	}
}

func cacheKey(id bson.ObjectID) string {
	return "course:" + id.Hex()
}
