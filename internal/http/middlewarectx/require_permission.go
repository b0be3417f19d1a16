package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/education-platform/internal/http/response"
	"github.com/magabrotheeeer/education-platform/internal/lib/sl"
	"github.com/magabrotheeeer/education-platform/internal/models"
)

// PermissionChecker проверяет, покрывают ли роли пользователя весь список
// требуемых разрешений.
type PermissionChecker interface {
	CheckAll(ctx context.Context, user *models.User, permissionNames []string) (bool, error)
}

// RequirePermission возвращает middleware, пропускающий запрос только если
// пользователь из контекста обладает каждым из перечисленных разрешений.
// Отсутствие хотя бы одного дает HTTP 403 Forbidden.
func RequirePermission(log *slog.Logger, checker PermissionChecker, permissionNames ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.RequirePermission"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			user, ok := UserFromContext(r.Context())
			if !ok {
				log.Error("user identification missing")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("user identification missing"))
				return
			}

			allowed, err := checker.CheckAll(r.Context(), user, permissionNames)
			if err != nil {
				log.Error("failed to check permissions", sl.Err(err))
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.Error("internal error"))
				return
			}
			if !allowed {
				log.Warn("access denied",
					slog.String("username", user.Username),
					slog.Any("required", permissionNames))
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.Error("permission denied"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
