// Package middlewarectx содержит HTTP middleware для проверки JWT токенов
// и прав доступа.
//
// JWTMiddleware проверяет наличие и валидность токена доступа в заголовке
// Authorization, отклоняет отозванные токены и кладет владельца токена
// в контекст запроса для дальнейших обработчиков.
package middlewarectx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/education-platform/internal/http/response"
	"github.com/magabrotheeeer/education-platform/internal/models"
	"github.com/magabrotheeeer/education-platform/internal/services/auth"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// User — ключ для документа пользователя в контексте
	User Key = "user"
	// UserID — ключ для идентификатора пользователя в контексте
	UserID Key = "user_id"
)

// AuthService описывает интерфейс сервиса для проверки токена доступа.
type AuthService interface {
	ValidateAccessToken(ctx context.Context, token string) (*models.User, error)
}

// UserFromContext возвращает пользователя, положенного в контекст
// JWTMiddleware.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(User).(*models.User)
	return u, ok
}

// JWTMiddleware возвращает HTTP middleware, который проверяет токен доступа
// в заголовке Authorization.
//
// Если токен валиден и не отозван, добавляет пользователя в контекст
// запроса, иначе возвращает HTTP 401 Unauthorized.
func JWTMiddleware(authService AuthService, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Error("missing or invalid authorization header")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("missing or invalid authorization header"))
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

			user, err := authService.ValidateAccessToken(r.Context(), tokenStr)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrTokenRevoked):
					log.Error("token has been revoked")
					render.Status(r, http.StatusUnauthorized)
					render.JSON(w, r, response.Error("token has been revoked"))
				case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrUserNotFound):
					log.Error("invalid or expired token")
					render.Status(r, http.StatusUnauthorized)
					render.JSON(w, r, response.Error("invalid or expired token"))
				default:
					log.Error("failed to validate token")
					render.Status(r, http.StatusInternalServerError)
					render.JSON(w, r, response.Error("internal error"))
				}
				return
			}

			ctx := context.WithValue(r.Context(), User, user)
			ctx = context.WithValue(ctx, UserID, user.ID.Hex())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
