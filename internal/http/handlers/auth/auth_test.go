package auth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	authservice "github.com/magabrotheeeer/education-platform/internal/services/auth"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) Login(ctx context.Context, email, password string) (*authservice.TokenPair, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authservice.TokenPair), args.Error(1)
}

func (m *mockService) Refresh(ctx context.Context, refreshToken string) (*authservice.TokenPair, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authservice.TokenPair), args.Error(1)
}

func (m *mockService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	args := m.Called(ctx, accessToken, refreshToken)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLogin(t *testing.T) {
	pair := &authservice.TokenPair{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		TokenType:    "bearer",
	}

	tests := []struct {
		name       string
		form       url.Values
		setup      func(svc *mockService)
		wantStatus int
		wantError  string
	}{
		{
			name: "successful login",
			form: url.Values{
				"username": {"alice@example.com"},
				"password": {"secret123"},
			},
			setup: func(svc *mockService) {
				svc.On("Login", mock.Anything, "alice@example.com", "secret123").
					Return(pair, nil).Once()
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "wrong credentials",
			form: url.Values{
				"username": {"alice@example.com"},
				"password": {"wrong"},
			},
			setup: func(svc *mockService) {
				svc.On("Login", mock.Anything, "alice@example.com", "wrong").
					Return(nil, authservice.ErrInvalidCredentials).Once()
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "Wrong password or Email.",
		},
		{
			name: "missing password",
			form: url.Values{
				"username": {"alice@example.com"},
			},
			setup:      func(svc *mockService) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "empty form",
			form:       url.Values{},
			setup:      func(svc *mockService) {},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockService)
			tt.setup(svc)
			h := New(newNoopLogger(), svc)

			req := httptest.NewRequest(http.MethodPost, "/auth/jwt/login",
				strings.NewReader(tt.form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rec := httptest.NewRecorder()

			h.Login(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, body["error"])
			}
			if tt.wantStatus == http.StatusOK {
				data, ok := body["data"].(map[string]any)
				require.True(t, ok)
				assert.Equal(t, "access-token", data["access_token"])
				assert.Equal(t, "bearer", data["token_type"])
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestRefresh(t *testing.T) {
	pair := &authservice.TokenPair{
		AccessToken:  "new-access",
		RefreshToken: "new-refresh",
		TokenType:    "bearer",
	}

	tests := []struct {
		name       string
		body       string
		setup      func(svc *mockService)
		wantStatus int
	}{
		{
			name: "successful refresh",
			body: `{"refresh_token": "old-refresh"}`,
			setup: func(svc *mockService) {
				svc.On("Refresh", mock.Anything, "old-refresh").
					Return(pair, nil).Once()
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "revoked token",
			body: `{"refresh_token": "revoked"}`,
			setup: func(svc *mockService) {
				svc.On("Refresh", mock.Anything, "revoked").
					Return(nil, authservice.ErrTokenRevoked).Once()
			},
			wantStatus: http.StatusForbidden,
		},
		{
			name: "owner no longer exists",
			body: `{"refresh_token": "orphan"}`,
			setup: func(svc *mockService) {
				svc.On("Refresh", mock.Anything, "orphan").
					Return(nil, authservice.ErrUserNotFound).Once()
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "missing token",
			body:       `{}`,
			setup:      func(svc *mockService) {},
			wantStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockService)
			tt.setup(svc)
			h := New(newNoopLogger(), svc)

			req := httptest.NewRequest(http.MethodPost, "/auth/jwt/refresh",
				strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			h.Refresh(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestLogout(t *testing.T) {
	t.Run("successful logout", func(t *testing.T) {
		svc := new(mockService)
		svc.On("Logout", mock.Anything, "access-token", "refresh-token").
			Return(nil).Once()
		h := New(newNoopLogger(), svc)

		req := httptest.NewRequest(http.MethodPost, "/auth/jwt/logout",
			strings.NewReader(`{"refresh_token": "refresh-token"}`))
		req.Header.Set("Authorization", "Bearer access-token")
		rec := httptest.NewRecorder()

		h.Logout(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		svc.AssertExpectations(t)
	})

	t.Run("missing authorization header", func(t *testing.T) {
		svc := new(mockService)
		h := New(newNoopLogger(), svc)

		req := httptest.NewRequest(http.MethodPost, "/auth/jwt/logout", nil)
		rec := httptest.NewRecorder()

		h.Logout(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		svc.AssertNotCalled(t, "Logout")
	})
}
