// Package lesson реализует HTTP-обработчики CRUD уроков.
package lesson

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
	lessonservice "github.com/magabrotheeeer/education-platform/internal/services/lesson"
	"github.com/magabrotheeeer/education-platform/internal/storage/repository"
)

// Service описывает интерфейс бизнес-логики уроков.
type Service interface {
	Create(ctx context.Context, req lessonservice.CreateRequest) (*models.Lesson, error)
	Get(ctx context.Context, id bson.ObjectID) (*lessonservice.Resolved, error)
	List(ctx context.Context) ([]*models.Lesson, error)
	Update(ctx context.Context, id bson.ObjectID, req lessonservice.UpdateRequest) (*lessonservice.Resolved, error)
	Delete(ctx context.Context, id bson.ObjectID) error
}

// Handler обрабатывает HTTP-запросы управления уроками.
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

// CreateRequest — входные данные создания урока.
type CreateRequest struct {
	Name        string   `json:"name" validate:"required,min=2,max=100"`
	Description string   `json:"description"`
	VideoURL    string   `json:"video_url" validate:"omitempty,url"`
	Duration    int      `json:"duration" validate:"gte=0"`
	Files       []string `json:"files"`
}

// Create godoc
// @Summary Создание урока
// @Tags Lessons
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body CreateRequest true "Данные урока"
// @Success 200 {object} map[string]any "Созданный урок"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /lessons [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.lesson.Create"
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

	files, err := parseIDs(req.Files)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid file id"))
		return
	}

	l, err := h.service.Create(r.Context(), lessonservice.CreateRequest{
		Name:        req.Name,
		Description: req.Description,
		VideoURL:    req.VideoURL,
		Duration:    req.Duration,
		Files:       files,
	})
	if err != nil {
		log.Error("failed to create lesson", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not create lesson"))
		return
	}

	log.Info("lesson created", slog.String("name", l.Name))
	render.JSON(w, r, response.StatusOKWithData(l))
}

// List возвращает все уроки.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.lesson.List"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	lessons, err := h.service.List(r.Context())
	if err != nil {
		log.Error("failed to list lessons", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list lessons"))
		return
	}
	render.JSON(w, r, response.StatusOKWithData(lessons))
}

// Get возвращает урок по идентификатору из пути.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.lesson.Get"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := repository.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid lesson id"))
		return
	}

	l, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, lessonservice.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("lesson not found"))
			return
		}
		log.Error("failed to get lesson", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}
	render.JSON(w, r, response.StatusOKWithData(l))
}

// UpdateRequest — частичное обновление урока.
type UpdateRequest struct {
	Name        *string  `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Description *string  `json:"description,omitempty"`
	VideoURL    *string  `json:"video_url,omitempty" validate:"omitempty,url"`
	Duration    *int     `json:"duration,omitempty" validate:"omitempty,gte=0"`
	Files       []string `json:"files,omitempty"`
}

// Update частично обновляет урок.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.lesson.Update"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := repository.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid lesson id"))
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

	var files []bson.ObjectID
	if req.Files != nil {
		if files, err = parseIDs(req.Files); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid file id"))
			return
		}
	}

	l, err := h.service.Update(r.Context(), id, lessonservice.UpdateRequest{
		Name:        req.Name,
		Description: req.Description,
		VideoURL:    req.VideoURL,
		Duration:    req.Duration,
		Files:       files,
	})
	if err != nil {
		if errors.Is(err, lessonservice.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("lesson not found"))
			return
		}
		log.Error("failed to update lesson", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not update lesson"))
		return
	}
	render.JSON(w, r, response.StatusOKWithData(l))
}

// Delete удаляет урок по идентификатору из пути.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.lesson.Delete"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := repository.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid lesson id"))
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, lessonservice.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("lesson not found"))
			return
		}
		log.Error("failed to delete lesson", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not delete lesson"))
		return
	}

	log.Info("lesson deleted", slog.String("id", id.Hex()))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"message": "Lesson deleted successfully",
	}))
}

func parseIDs(raw []string) ([]bson.ObjectID, error) {
	ids := make([]bson.ObjectID, 0, len(raw))
	for _, s := range raw {
		id, err := repository.ParseID(s)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
