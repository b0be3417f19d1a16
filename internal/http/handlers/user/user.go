// Package user реализует HTTP-обработчики управления пользователями:
// регистрацию, чтение профилей, частичное обновление и удаление.
package user

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
	userservice "github.com/magabrotheeeer/education-platform/internal/services/user"
	"github.com/magabrotheeeer/education-platform/internal/storage/repository"
)

// Service описывает интерфейс бизнес-логики пользователей.
type Service interface {
	Create(ctx context.Context, req userservice.CreateRequest) (*models.User, error)
	Get(ctx context.Context, id bson.ObjectID) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	Update(ctx context.Context, id bson.ObjectID, req userservice.UpdateRequest) (*models.User, error)
	Delete(ctx context.Context, id bson.ObjectID) error
}

// Handler обрабатывает HTTP-запросы управления пользователями.
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

// RegisterRequest — входные данные регистрации.
type RegisterRequest struct {
	Username  string `json:"username" validate:"required,min=3,max=50"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	IsTeacher bool   `json:"is_teacher"`
	IsStudent bool   `json:"is_student"`
	IsAdmin   bool   `json:"is_admin"`
}

// Register godoc
// @Summary Регистрация пользователя
// @Description Создает пользователя, подготавливает базовые роли и назначает роль User или Administrator.
// @Tags Users
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Данные нового пользователя"
// @Success 200 {object} map[string]any "Созданный пользователь"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 409 {object} response.ErrorResponse "Имя или email заняты"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /users [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.Register"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req RegisterRequest
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

	u, err := h.service.Create(r.Context(), userservice.CreateRequest{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		IsTeacher: req.IsTeacher,
		IsStudent: req.IsStudent,
		IsAdmin:   req.IsAdmin,
	})
	if err != nil {
		switch {
		case errors.Is(err, userservice.ErrUsernameTaken), errors.Is(err, userservice.ErrEmailTaken):
			log.Info("registration rejected", sl.Err(err))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error(err.Error()))
		default:
			log.Error("failed to register user", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not register user"))
		}
		return
	}

	log.Info("user registered", slog.String("username", u.Username))
	render.JSON(w, r, response.StatusOKWithData(u))
}

// Me возвращает профиль пользователя из контекста запроса.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}
	render.JSON(w, r, response.StatusOKWithData(u))
}

// List godoc
// @Summary Список пользователей
// @Tags Users
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]any "Все пользователи"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /users [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.List"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	users, err := h.service.List(r.Context())
	if err != nil {
		log.Error("failed to list users", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list users"))
		return
	}
	render.JSON(w, r, response.StatusOKWithData(users))
}

// Get возвращает пользователя по идентификатору из пути.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.Get"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := repository.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid user id"))
		return
	}

	u, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, userservice.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("user not found"))
			return
		}
		log.Error("failed to get user", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}
	render.JSON(w, r, response.StatusOKWithData(u))
}

// UpdateRequest — частичное обновление профиля: отсутствующие поля
// не изменяются.
type UpdateRequest struct {
	Email          *string `json:"email,omitempty" validate:"omitempty,email"`
	Password       *string `json:"password,omitempty" validate:"omitempty,min=6"`
	Active         *bool   `json:"active,omitempty"`
	ProfilePicture *string `json:"profile_picture,omitempty"`
	Bio            *string `json:"bio,omitempty"`
	Location       *string `json:"location,omitempty"`
	Website        *string `json:"website,omitempty" validate:"omitempty,url"`
	PhoneNumber    *string `json:"phone_number,omitempty"`
	IsTeacher      *bool   `json:"is_teacher,omitempty"`
	IsStudent      *bool   `json:"is_student,omitempty"`
}

// Update godoc
// @Summary Частичное обновление профиля
// @Tags Users
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Идентификатор пользователя"
// @Param request body UpdateRequest true "Изменяемые поля"
// @Success 200 {object} map[string]any "Обновленный пользователь"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Router /users/{id} [patch]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.Update"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := repository.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid user id"))
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

	u, err := h.service.Update(r.Context(), id, userservice.UpdateRequest{
		Email:          req.Email,
		Password:       req.Password,
		Active:         req.Active,
		ProfilePicture: req.ProfilePicture,
		Bio:            req.Bio,
		Location:       req.Location,
		Website:        req.Website,
		PhoneNumber:    req.PhoneNumber,
		IsTeacher:      req.IsTeacher,
		IsStudent:      req.IsStudent,
	})
	if err != nil {
		switch {
		case errors.Is(err, userservice.ErrNotFound):
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("user not found"))
		case errors.Is(err, userservice.ErrEmailTaken):
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("email already exists"))
		default:
			log.Error("failed to update user", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not update user"))
		}
		return
	}

	log.Info("user updated", slog.String("id", id.Hex()))
	render.JSON(w, r, response.StatusOKWithData(u))
}

// Delete удаляет пользователя по идентификатору из пути.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.Delete"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := repository.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid user id"))
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, userservice.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("user not found"))
			return
		}
		log.Error("failed to delete user", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not delete user"))
		return
	}

	log.Info("user deleted", slog.String("id", id.Hex()))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"message": "User deleted successfully",
	}))
}
