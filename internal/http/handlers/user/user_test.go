package user

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/magabrotheeeer/education-platform/internal/models"
	userservice "github.com/magabrotheeeer/education-platform/internal/services/user"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) Create(ctx context.Context, req userservice.CreateRequest) (*models.User, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockService) Get(ctx context.Context, id bson.ObjectID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockService) List(ctx context.Context) ([]*models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

func (m *mockService) Update(ctx context.Context, id bson.ObjectID, req userservice.UpdateRequest) (*models.User, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockService) Delete(ctx context.Context, id bson.ObjectID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegister(t *testing.T) {
	t.Run("passes all registration flags to the service", func(t *testing.T) {
		svc := new(mockService)
		created := &models.User{ID: bson.NewObjectID(), Username: "alice"}
		svc.On("Create", mock.Anything, userservice.CreateRequest{
			Username:  "alice",
			Email:     "alice@example.com",
			Password:  "secret123",
			IsTeacher: false,
			IsStudent: true,
			IsAdmin:   true,
		}).Return(created, nil).Once()
		h := New(newNoopLogger(), svc)

		body := `{"username": "alice", "email": "alice@example.com", "password": "secret123", "is_student": true, "is_admin": true}`
		req := httptest.NewRequest(http.MethodPost, "/users", bytes.NewReader([]byte(body)))
		rec := httptest.NewRecorder()

		h.Register(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		svc.AssertExpectations(t)
	})

	t.Run("username taken", func(t *testing.T) {
		svc := new(mockService)
		svc.On("Create", mock.Anything, mock.Anything).
			Return(nil, userservice.ErrUsernameTaken).Once()
		h := New(newNoopLogger(), svc)

		body := `{"username": "alice", "email": "alice@example.com", "password": "secret123"}`
		req := httptest.NewRequest(http.MethodPost, "/users", bytes.NewReader([]byte(body)))
		rec := httptest.NewRecorder()

		h.Register(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("short password fails validation", func(t *testing.T) {
		svc := new(mockService)
		h := New(newNoopLogger(), svc)

		body := `{"username": "alice", "email": "alice@example.com", "password": "123"}`
		req := httptest.NewRequest(http.MethodPost, "/users", bytes.NewReader([]byte(body)))
		rec := httptest.NewRecorder()

		h.Register(rec, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Error", resp["status"])
	})
}
