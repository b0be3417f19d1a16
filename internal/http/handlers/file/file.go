// Package file реализует HTTP-обработчики CRUD файлов-вложений.
package file

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

	"github.com/magabrotheeeer/education-platform/internal/http/middlewarectx"
	"github.com/magabrotheeeer/education-platform/internal/http/response"
	"github.com/magabrotheeeer/education-platform/internal/lib/sl"
	"github.com/magabrotheeeer/education-platform/internal/models"
	fileservice "github.com/magabrotheeeer/education-platform/internal/services/file"
	"github.com/magabrotheeeer/education-platform/internal/storage/repository"
)

// Service описывает интерфейс бизнес-логики файлов.
type Service interface {
	Create(ctx context.Context, req fileservice.CreateRequest) (*models.File, error)
	Get(ctx context.Context, id bson.ObjectID) (*models.File, error)
	List(ctx context.Context) ([]*models.File, error)
	Update(ctx context.Context, id bson.ObjectID, req fileservice.UpdateRequest) (*models.File, error)
	Delete(ctx context.Context, id bson.ObjectID) error
}

// Handler обрабатывает HTTP-запросы управления файлами.
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

// CreateRequest — входные данные регистрации файла. Владельцем
// становится автор запроса.
type CreateRequest struct {
	Name string `json:"name" validate:"required,min=1,max=255"`
	Path string `json:"path" validate:"required"`
	Type string `json:"type"`
}

// Create регистрирует файл.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.file.Create"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	owner, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

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

	f, err := h.service.Create(r.Context(), fileservice.CreateRequest{
		Name:  req.Name,
		Path:  req.Path,
		Type:  req.Type,
		Owner: owner.ID,
	})
	if err != nil {
		log.Error("failed to create file", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not create file"))
		return
	}

	log.Info("file created", slog.String("name", f.Name))
	render.JSON(w, r, response.StatusOKWithData(f))
}

// List возвращает все файлы.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.file.List"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	files, err := h.service.List(r.Context())
	if err != nil {
		log.Error("failed to list files", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list files"))
		return
	}
	render.JSON(w, r, response.StatusOKWithData(files))
}

// Get возвращает файл по идентификатору из пути.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.file.Get"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := repository.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid file id"))
		return
	}

	f, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, fileservice.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("file not found"))
			return
		}
		log.Error("failed to get file", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}
	render.JSON(w, r, response.StatusOKWithData(f))
}

// UpdateRequest — частичное обновление метаданных файла.
type UpdateRequest struct {
	Name *string `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Path *string `json:"path,omitempty"`
	Type *string `json:"type,omitempty"`
}

// Update частично обновляет метаданные файла.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.file.Update"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := repository.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid file id"))
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

	f, err := h.service.Update(r.Context(), id, fileservice.UpdateRequest{
		Name: req.Name,
		Path: req.Path,
		Type: req.Type,
	})
	if err != nil {
		if errors.Is(err, fileservice.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("file not found"))
			return
		}
		log.Error("failed to update file", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not update file"))
		return
	}
	render.JSON(w, r, response.StatusOKWithData(f))
}

// Delete удаляет запись о файле.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.file.Delete"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := repository.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid file id"))
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, fileservice.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("file not found"))
			return
		}
		log.Error("failed to delete file", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not delete file"))
		return
	}

	log.Info("file deleted", slog.String("id", id.Hex()))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"message": "File deleted successfully",
	}))
}
