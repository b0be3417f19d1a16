// Package course реализует HTTP-обработчики CRUD курсов и записи
// студентов на курс.
package course

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
	courseservice "github.com/magabrotheeeer/education-platform/internal/services/course"
	"github.com/magabrotheeeer/education-platform/internal/storage/repository"
)

// Service описывает интерфейс бизнес-логики курсов.
type Service interface {
	Create(ctx context.Context, req courseservice.CreateRequest) (*models.Course, error)
	Get(ctx context.Context, id bson.ObjectID) (*courseservice.Resolved, error)
	List(ctx context.Context) ([]*courseservice.Resolved, error)
	Update(ctx context.Context, id bson.ObjectID, req courseservice.UpdateRequest) (*courseservice.Resolved, error)
	AddStudent(ctx context.Context, courseID, studentID bson.ObjectID) error
	Delete(ctx context.Context, id bson.ObjectID) error
}

// Handler обрабатывает HTTP-запросы управления курсами.
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

// CreateRequest — входные данные создания курса. Цена указывается
// в минимальных единицах валюты. Преподавателем становится автор запроса.
type CreateRequest struct {
	Name        string   `json:"name" validate:"required,min=2,max=100"`
	Description string   `json:"description"`
	Price       int64    `json:"price" validate:"gte=0"`
	Status      string   `json:"status"`
	Lessons     []string `json:"lessons"`
	Files       []string `json:"files"`
	Duration    int      `json:"duration" validate:"gte=0"`
	Topics      []string `json:"topics"`
	Level       string   `json:"level"`
}

// Create godoc
// @Summary Создание курса
// @Tags Courses
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body CreateRequest true "Данные курса"
// @Success 200 {object} map[string]any "Созданный курс"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /courses [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.course.Create"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	author, ok := middlewarectx.UserFromContext(r.Context())
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

	lessons, err := parseIDs(req.Lessons)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid lesson id"))
		return
	}
	files, err := parseIDs(req.Files)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid file id"))
		return
	}

	c, err := h.service.Create(r.Context(), courseservice.CreateRequest{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Status:      req.Status,
		Teacher:     author.ID,
		Lessons:     lessons,
		Files:       files,
		Duration:    req.Duration,
		Topics:      req.Topics,
		Level:       req.Level,
	})
	if err != nil {
		log.Error("failed to create course", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not create course"))
		return
	}

	log.Info("course created", slog.String("name", c.Name))
	render.JSON(w, r, response.StatusOKWithData(c))
}

// List возвращает все курсы с раскрытыми уроками и файлами.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.course.List"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	courses, err := h.service.List(r.Context())
	if err != nil {
		log.Error("failed to list courses", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list courses"))
		return
	}
	render.JSON(w, r, response.StatusOKWithData(courses))
}

// Get возвращает курс по идентификатору из пути.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.course.Get"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := repository.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid course id"))
		return
	}

	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, courseservice.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("course not found"))
			return
		}
		log.Error("failed to get course", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}
	render.JSON(w, r, response.StatusOKWithData(c))
}

// UpdateRequest — частичное обновление курса: отсутствующие поля
// не изменяются, непустые списки заменяют связи целиком.
type UpdateRequest struct {
	Name        *string  `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Description *string  `json:"description,omitempty"`
	Price       *int64   `json:"price,omitempty" validate:"omitempty,gte=0"`
	Status      *string  `json:"status,omitempty"`
	Lessons     []string `json:"lessons,omitempty"`
	Files       []string `json:"files,omitempty"`
	Duration    *int     `json:"duration,omitempty" validate:"omitempty,gte=0"`
	Topics      []string `json:"topics,omitempty"`
	Level       *string  `json:"level,omitempty"`
	Rating      *float64 `json:"rating,omitempty" validate:"omitempty,gte=0,lte=5"`
}

// Update частично обновляет курс.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.course.Update"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := repository.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid course id"))
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

	var lessons, files []bson.ObjectID
	if req.Lessons != nil {
		if lessons, err = parseIDs(req.Lessons); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid lesson id"))
			return
		}
	}
	if req.Files != nil {
		if files, err = parseIDs(req.Files); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid file id"))
			return
		}
	}

	c, err := h.service.Update(r.Context(), id, courseservice.UpdateRequest{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Status:      req.Status,
		Lessons:     lessons,
		Files:       files,
		Duration:    req.Duration,
		Topics:      req.Topics,
		Level:       req.Level,
		Rating:      req.Rating,
	})
	if err != nil {
		if errors.Is(err, courseservice.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("course not found"))
			return
		}
		log.Error("failed to update course", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not update course"))
		return
	}
	render.JSON(w, r, response.StatusOKWithData(c))
}

// Enroll записывает текущего пользователя в студенты курса.
func (h *Handler) Enroll(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.course.Enroll"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	student, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	id, err := repository.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid course id"))
		return
	}

	if err := h.service.AddStudent(r.Context(), id, student.ID); err != nil {
		if errors.Is(err, courseservice.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("course not found"))
			return
		}
		log.Error("failed to enroll student", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not enroll student"))
		return
	}

	log.Info("student enrolled",
		slog.String("course_id", id.Hex()),
		slog.String("student", student.Username))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"message": "Student enrolled successfully",
	}))
}

// Delete удаляет курс по идентификатору из пути.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.course.Delete"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := repository.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid course id"))
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, courseservice.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("course not found"))
			return
		}
		log.Error("failed to delete course", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not delete course"))
		return
	}

	log.Info("course deleted", slog.String("id", id.Hex()))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"message": "Course deleted successfully",
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
