// Package permission реализует HTTP-обработчики CRUD разрешений.
package permission

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

// Service описывает интерфейс бизнес-логики разрешений.
type Service interface {
	CreatePermission(ctx context.Context, name, description string) (*models.Permission, error)
	GetPermission(ctx context.Context, id bson.ObjectID) (*models.Permission, error)
	ListPermissions(ctx context.Context) ([]*models.Permission, error)
	UpdatePermission(ctx context.Context, id bson.ObjectID, name, description *string) (*models.Permission, error)
	DeletePermission(ctx context.Context, id bson.ObjectID) error
}

// Handler обрабатывает HTTP-запросы управления разрешениями.
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

// CreateRequest — входные данные создания разрешения.
type CreateRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=50"`
	Description string `json:"description"`
}

// Create godoc
// @Summary Создание разрешения
// @Tags Permissions
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body CreateRequest true "Данные разрешения"
// @Success 200 {object} map[string]any "Созданное разрешение"
// @Failure 409 {object} response.ErrorResponse "Имя уже занято"
// @Router /permissions [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.permission.Create"
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

	p, err := h.service.CreatePermission(r.Context(), req.Name, req.Description)
	if err != nil {
		if errors.Is(err, rbac.ErrDuplicateName) {
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("permission already exists"))
			return
		}
		log.Error("failed to create permission", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not create permission"))
		return
	}

	log.Info("permission created", slog.String("name", p.Name))
	render.JSON(w, r, response.StatusOKWithData(p))
}

// List возвращает все разрешения.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.permission.List"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		log.Error("failed to list permissions", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list permissions"))
		return
	}
	render.JSON(w, r, response.StatusOKWithData(perms))
}

// Get возвращает разрешение по идентификатору из пути.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.permission.Get"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := repository.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid permission id"))
		return
	}

	p, err := h.service.GetPermission(r.Context(), id)
	if err != nil {
		if errors.Is(err, rbac.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("permission not found"))
			return
		}
		log.Error("failed to get permission", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}
	render.JSON(w, r, response.StatusOKWithData(p))
}

// UpdateRequest — частичное обновление разрешения.
type UpdateRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=2,max=50"`
	Description *string `json:"description,omitempty"`
}

// Update частично обновляет разрешение.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.permission.Update"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := repository.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid permission id"))
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

	p, err := h.service.UpdatePermission(r.Context(), id, req.Name, req.Description)
	if err != nil {
		if errors.Is(err, rbac.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("permission not found"))
			return
		}
		log.Error("failed to update permission", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not update permission"))
		return
	}
	render.JSON(w, r, response.StatusOKWithData(p))
}

// Delete удаляет разрешение по идентификатору из пути.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.permission.Delete"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := repository.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid permission id"))
		return
	}

	if err := h.service.DeletePermission(r.Context(), id); err != nil {
		if errors.Is(err, rbac.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("permission not found"))
			return
		}
		log.Error("failed to delete permission", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not delete permission"))
		return
	}

	log.Info("permission deleted", slog.String("id", id.Hex()))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"message": "Permission deleted successfully",
	}))
}
