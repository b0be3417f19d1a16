package middlewarectx

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/magabrotheeeer/education-platform/internal/models"
	"github.com/magabrotheeeer/education-platform/internal/services/auth"
)

type mockAuthService struct {
	mock.Mock
}

func (m *mockAuthService) ValidateAccessToken(ctx context.Context, token string) (*models.User, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type mockChecker struct {
	mock.Mock
}

func (m *mockChecker) CheckAll(ctx context.Context, user *models.User, permissionNames []string) (bool, error) {
	args := m.Called(ctx, user, permissionNames)
	return args.Bool(0), args.Error(1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestJWTMiddleware(t *testing.T) {
	user := &models.User{ID: bson.NewObjectID(), Username: "alice"}

	tests := []struct {
		name       string
		header     string
		setupMock  func(m *mockAuthService)
		wantStatus int
		wantUser   bool
	}{
		{
			name:   "valid token",
			header: "Bearer good-token",
			setupMock: func(m *mockAuthService) {
				m.On("ValidateAccessToken", mock.Anything, "good-token").Return(user, nil)
			},
			wantStatus: http.StatusOK,
			wantUser:   true,
		},
		{
			name:       "missing header",
			header:     "",
			setupMock:  func(*mockAuthService) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong scheme",
			header:     "Basic abc",
			setupMock:  func(*mockAuthService) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:   "invalid token",
			header: "Bearer bad-token",
			setupMock: func(m *mockAuthService) {
				m.On("ValidateAccessToken", mock.Anything, "bad-token").Return(nil, auth.ErrInvalidToken)
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:   "revoked token",
			header: "Bearer revoked-token",
			setupMock: func(m *mockAuthService) {
				m.On("ValidateAccessToken", mock.Anything, "revoked-token").Return(nil, auth.ErrTokenRevoked)
			},
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockAuthService)
			tt.setupMock(svc)

			var gotUser *models.User
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser, _ = UserFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/users", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			JWTMiddleware(svc, discardLogger())(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantUser {
				assert.Equal(t, user, gotUser)
			}
		})
	}
}

func TestRequirePermission(t *testing.T) {
	user := &models.User{ID: bson.NewObjectID(), Username: "alice"}

	makeRequest := func(withUser bool, checker PermissionChecker, perms ...string) *httptest.ResponseRecorder {
		next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		req := httptest.NewRequest(http.MethodPost, "/roles", nil)
		if withUser {
			req = req.WithContext(context.WithValue(req.Context(), User, user))
		}
		rec := httptest.NewRecorder()
		RequirePermission(discardLogger(), checker, perms...)(next).ServeHTTP(rec, req)
		return rec
	}

	t.Run("all permissions present", func(t *testing.T) {
		checker := new(mockChecker)
		checker.On("CheckAll", mock.Anything, user, []string{"manage_roles", "create"}).Return(true, nil)
		rec := makeRequest(true, checker, "manage_roles", "create")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("one permission missing", func(t *testing.T) {
		checker := new(mockChecker)
		checker.On("CheckAll", mock.Anything, user, []string{"manage_roles", "delete"}).Return(false, nil)
		rec := makeRequest(true, checker, "manage_roles", "delete")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("no user in context", func(t *testing.T) {
		rec := makeRequest(false, new(mockChecker), "read")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
