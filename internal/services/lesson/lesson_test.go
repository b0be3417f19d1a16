package lesson

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/magabrotheeeer/education-platform/internal/models"
	"github.com/magabrotheeeer/education-platform/internal/storage/repository"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) CreateLesson(ctx context.Context, l *models.Lesson) (bson.ObjectID, error) {
	args := m.Called(ctx, l)
	return args.Get(0).(bson.ObjectID), args.Error(1)
}

func (m *mockRepository) GetLessonByID(ctx context.Context, id bson.ObjectID) (*models.Lesson, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Lesson), args.Error(1)
}

func (m *mockRepository) ListLessons(ctx context.Context) ([]*models.Lesson, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Lesson), args.Error(1)
}

func (m *mockRepository) UpdateLessonByID(ctx context.Context, id bson.ObjectID, fields bson.M) error {
	args := m.Called(ctx, id, fields)
	return args.Error(0)
}

func (m *mockRepository) DeleteLessonByID(ctx context.Context, id bson.ObjectID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockRepository) GetFilesByIDs(ctx context.Context, ids []bson.ObjectID) ([]models.File, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.File), args.Error(1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGet(t *testing.T) {
	lessonID := bson.NewObjectID()
	fileID := bson.NewObjectID()
	stored := &models.Lesson{ID: lessonID, Name: "Intro", Files: []bson.ObjectID{fileID}}

	t.Run("resolves file links", func(t *testing.T) {
		repo := new(mockRepository)
		repo.On("GetLessonByID", mock.Anything, lessonID).Return(stored, nil)
		repo.On("GetFilesByIDs", mock.Anything, stored.Files).
			Return([]models.File{{ID: fileID, Name: "notes.pdf"}}, nil)

		svc := New(repo, discardLogger())
		got, err := svc.Get(context.Background(), lessonID)
		require.NoError(t, err)
		require.Len(t, got.ResolvedFiles, 1)
		assert.Equal(t, "notes.pdf", got.ResolvedFiles[0].Name)
	})

	t.Run("unknown lesson", func(t *testing.T) {
		repo := new(mockRepository)
		repo.On("GetLessonByID", mock.Anything, lessonID).Return(nil, repository.ErrNotFound)

		svc := New(repo, discardLogger())
		_, err := svc.Get(context.Background(), lessonID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestUpdate(t *testing.T) {
	lessonID := bson.NewObjectID()
	name := "Intro v2"

	repo := new(mockRepository)
	repo.On("UpdateLessonByID", mock.Anything, lessonID, bson.M{"name": name}).Return(nil)
	repo.On("GetLessonByID", mock.Anything, lessonID).
		Return(&models.Lesson{ID: lessonID, Name: name, Files: []bson.ObjectID{}}, nil)
	repo.On("GetFilesByIDs", mock.Anything, mock.Anything).Return([]models.File{}, nil)

	svc := New(repo, discardLogger())
	got, err := svc.Update(context.Background(), lessonID, UpdateRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, got.Name)
	repo.AssertExpectations(t)
}
