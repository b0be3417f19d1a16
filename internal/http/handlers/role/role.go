// Package role реализует HTTP-обработчики CRUD ролей и назначения
// ролей пользователям.
package role

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/magabrotheeeer/education-platform/internal/http/response"
	"github.com/magabrotheeeer/education-platform/internal/lib/sl"
	"github.com/magabrotheeeer/education-platform/internal/models"
	"github.com/magabrotheeeer/education-platform/internal/services/rbac"
	"github.com/magabrotheeeer/education-platform/internal/storage/repository"
)

// Service описывает интерфейс бизнес-логики ролей.
type Service interface {
	CreateRole(ctx context.Context, name, description string, permissionNames []string) (*models.Role, error)
	GetRole(ctx context.Context, id bson.ObjectID) (*models.ResolvedRole, error)
	ListRoles(ctx context.Context) ([]*models.ResolvedRole, error)
	UpdateRole(ctx context.Context, id bson.ObjectID, name, description *string, permissionNames []string) (*models.ResolvedRole, error)
	DeleteRole(ctx context.Context, id bson.ObjectID) error
	AssignRoleToUser(ctx context.Context, userID bson.ObjectID, roleName string) error
}

// Handler обрабатывает HTTP-запросы управления ролями.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// CreateRequest — входные данные создания роли. Разрешения указываются
// именами и должны существовать.
type CreateRequest struct {
	Name        string   `json:"name" validate:"required,min=2,max=50"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

// Create godoc
// @Summary Создание роли
// @Tags Roles
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body CreateRequest true "Данные роли"
// @Success 200 {object} map[string]any "Созданная роль"
// @Failure 400 {object} response.ErrorResponse "Неизвестное разрешение"
// @Failure 409 {object} response.ErrorResponse "Имя уже занято"
// @Router /roles [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.role.Create"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	role, err := h.service.CreateRole(r.Context(), req.Name, req.Description, req.Permissions)
	if err != nil {
		switch {
		case errors.Is(err, rbac.ErrUnknownPermission):
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(err.Error()))
		case errors.Is(err, rbac.ErrDuplicateName):
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("role already exists"))
		default:
			log.Error("failed to create role", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not create role"))
		}
		return
	}

	log.Info("role created", slog.String("name", role.Name))
	render.JSON(w, r, response.StatusOKWithData(role))
}

// List возвращает все роли с раскрытыми разрешениями.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.role.List"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		log.Error("failed to list roles", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list roles"))
		return
	}
	render.JSON(w, r, response.StatusOKWithData(roles))
}

// Get возвращает роль по идентификатору из пути.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.role.Get"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := repository.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid role id"))
		return
	}

	role, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		if errors.Is(err, rbac.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("role not found"))
			return
		}
		log.Error("failed to get role", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}
	render.JSON(w, r, response.StatusOKWithData(role))
}

// UpdateRequest — частичное обновление роли. Непустой список permissions
// заменяет набор разрешений роли целиком.
type UpdateRequest struct {
	Name        *string  `json:"name,omitempty" validate:"omitempty,min=2,max=50"`
	Description *string  `json:"description,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// Update частично обновляет роль.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.role.Update"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := repository.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid role id"))
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	role, err := h.service.UpdateRole(r.Context(), id, req.Name, req.Description, req.Permissions)
	if err != nil {
		switch {
		case errors.Is(err, rbac.ErrNotFound):
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("role not found"))
		case errors.Is(err, rbac.ErrUnknownPermission):
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(err.Error()))
		default:
			log.Error("failed to update role", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not update role"))
		}
		return
	}
	render.JSON(w, r, response.StatusOKWithData(role))
}

// Delete удаляет роль по идентификатору из пути.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.role.Delete"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := repository.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid role id"))
		return
	}

	if err := h.service.DeleteRole(r.Context(), id); err != nil {
		if errors.Is(err, rbac.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("role not found"))
			return
		}
		log.Error("failed to delete role", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not delete role"))
		return
	}

	log.Info("role deleted", slog.String("id", id.Hex()))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"message": "Role deleted successfully",
	}))
}

// AssignRequest — назначение роли пользователю по имени роли.
type AssignRequest struct {
	UserID   string `json:"user_id" validate:"required"`
	RoleName string `json:"role_name" validate:"required"`
}

// Assign godoc
// @Summary Назначение роли пользователю
// @Description Идемпотентно добавляет роль пользователю по имени роли.
// @Tags Roles
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body AssignRequest true "Пользователь и роль"
// @Success 200 {object} response.Response "Роль назначена"
// @Failure 404 {object} response.ErrorResponse "Роль или пользователь не найдены"
// @Router /roles/assign [post]
func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.role.Assign"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	userID, err := repository.ParseID(req.UserID)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid user id"))
		return
	}

	if err := h.service.AssignRoleToUser(r.Context(), userID, req.RoleName); err != nil {
		switch {
		case errors.Is(err, rbac.ErrRoleNotFound):
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("role not found"))
		case errors.Is(err, repository.ErrNotFound):
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("user not found"))
		default:
			log.Error("failed to assign role", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not assign role"))
		}
		return
	}

	log.Info("role assigned",
		slog.String("user_id", req.UserID),
		slog.String("role", req.RoleName))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"message": "Role assigned successfully",
	}))
}
