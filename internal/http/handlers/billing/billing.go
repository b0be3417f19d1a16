// Package billing реализует HTTP-обработчики платежей: вебхуки Stripe,
// чекаут-сессии, продукты, подписки и планы платежей.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"
	"github.com/stripe/stripe-go/v79"

	"github.com/magabrotheeeer/education-platform/internal/http/response"
	"github.com/magabrotheeeer/education-platform/internal/lib/sl"
	"github.com/magabrotheeeer/education-platform/internal/models"
	"github.com/magabrotheeeer/education-platform/internal/paymentgateway"
	billingservice "github.com/magabrotheeeer/education-platform/internal/services/billing"
	"github.com/magabrotheeeer/education-platform/internal/storage/repository"
)

// Тело вебхука читается не больше чем на мегабайт.
const maxWebhookBody = 1 << 20

// Service описывает интерфейс бизнес-логики платежей.
type Service interface {
	VerifyEvent(payload []byte, sigHeader string) (stripe.Event, error)
	CreateCustomer(ctx context.Context, email, paymentMethodID string) (*stripe.Customer, error)
	CreateCheckoutSession(ctx context.Context, priceID string) (*paymentgateway.CheckoutSession, error)
	CreateProduct(ctx context.Context, name, description string, amount int64, currency, interval string) (*paymentgateway.Product, error)
	ListProducts(ctx context.Context) ([]paymentgateway.Product, error)
	CreateSubscription(ctx context.Context, customerID, priceID string) (*stripe.Subscription, error)
	ListSubscriptions(ctx context.Context) ([]paymentgateway.Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
	ResumeSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
	SearchSubscriptions(ctx context.Context, status, orderID string) ([]*stripe.Subscription, error)
	WebhookConfig() paymentgateway.WebhookConfig
	CreatePaymentPlan(ctx context.Context, req billingservice.PlanRequest) (*models.PaymentPlan, error)
	NextPendingInstallment(ctx context.Context, customerEmail string) (*models.Installment, error)
}

// Queue ставит событие провайдера в фоновую обработку.
type Queue interface {
	Enqueue(event stripe.Event) (string, error)
}

// Handler обрабатывает HTTP-запросы платежей.
type Handler struct {
	log      *slog.Logger
	service  Service
	queue    Queue
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service, queue Queue) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		queue:    queue,
		validate: validator.New(),
	}
}

// Webhook godoc
// @Summary Прием событий Stripe
// @Description Проверяет подпись события и ставит его в фоновую обработку,
// @Description отвечая провайдеру сразу после постановки в очередь.
// @Tags Billing
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Подпись события"
// @Success 200 {object} map[string]any "Событие принято"
// @Failure 400 {object} response.ErrorResponse "Неверная подпись"
// @Failure 503 {object} response.ErrorResponse "Очередь переполнена"
// @Router /stripe/webhook [post]
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.Webhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		log.Error("failed to read request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("could not read request body"))
		return
	}

	event, err := h.service.VerifyEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		log.Warn("webhook verification failed", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid webhook signature"))
		return
	}

	taskID, err := h.queue.Enqueue(event)
	if err != nil {
		if errors.Is(err, billingservice.ErrQueueFull) {
			log.Error("event queue is full", slog.String("type", string(event.Type)))
			w.WriteHeader(http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error("try again later"))
			return
		}
		log.Error("failed to enqueue event", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("event accepted",
		slog.String("type", string(event.Type)),
		slog.String("task_id", taskID))
	// провайдер ожидает плоский ответ, без конверта
	render.JSON(w, r, map[string]any{
		"status":   "accepted",
		"event_id": taskID,
	})
}

// WebhookConfig возвращает состояние конфигурации вебхуков, не раскрывая
// значения секретов.
func (h *Handler) WebhookConfig(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, response.StatusOKWithData(h.service.WebhookConfig()))
}

// CheckoutRequest — запрос на создание чекаут-сессии по каталожному
// идентификатору цены.
type CheckoutRequest struct {
	PriceID string `json:"priceId" validate:"required"`
}

// CreateCheckoutSession godoc
// @Summary Создание чекаут-сессии
// @Tags Billing
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body CheckoutRequest true "Идентификатор цены"
// @Success 200 {object} map[string]any "Сессия и URL оплаты"
// @Failure 400 {object} response.ErrorResponse "Неизвестная цена"
// @Failure 502 {object} response.ErrorResponse "Платежный провайдер недоступен"
// @Router /stripe/create-checkout-session [post]
func (h *Handler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.CreateCheckoutSession"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req CheckoutRequest
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

	session, err := h.service.CreateCheckoutSession(r.Context(), req.PriceID)
	if err != nil {
		h.renderGatewayError(w, r, log, err, "failed to create checkout session")
		return
	}

	log.Info("checkout session created", slog.String("session_id", session.SessionID))
	render.JSON(w, r, response.StatusOKWithData(session))
}

// CustomerRequest — регистрация клиента у платежного провайдера.
type CustomerRequest struct {
	Email           string `json:"email" validate:"required,email"`
	PaymentMethodID string `json:"payment_method_id"`
}

// CreateCustomer godoc
// @Summary Создание клиента у провайдера
// @Description Заводит клиента Stripe по email, опционально привязывая способ оплаты.
// @Tags Billing
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body CustomerRequest true "Данные клиента"
// @Success 200 {object} map[string]any "Созданный клиент"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 502 {object} response.ErrorResponse "Провайдер недоступен"
// @Router /stripe/customers [post]
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.CreateCustomer"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req CustomerRequest
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

	customer, err := h.service.CreateCustomer(r.Context(), req.Email, req.PaymentMethodID)
	if err != nil {
		h.renderGatewayError(w, r, log, err, "failed to create customer")
		return
	}

	log.Info("customer created", slog.String("customer_id", customer.ID))
	render.JSON(w, r, response.StatusOKWithData(customer))
}

// ProductRequest — создание продукта с повторяющейся ценой.
type ProductRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Currency    string `json:"currency"`
	Interval    string `json:"interval"`
}

// CreateProduct создает продукт и цену у платежного провайдера.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.CreateProduct"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req ProductRequest
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

	if req.Currency == "" {
		req.Currency = "usd"
	}
	if req.Interval == "" {
		req.Interval = "month"
	}

	product, err := h.service.CreateProduct(r.Context(), req.Name, req.Description,
		req.Amount, req.Currency, req.Interval)
	if err != nil {
		h.renderGatewayError(w, r, log, err, "failed to create product")
		return
	}

	log.Info("product created", slog.String("product_id", product.ID))
	render.JSON(w, r, response.StatusOKWithData(product))
}

// ListProducts возвращает каталог продуктов провайдера с ценами.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.ListProducts"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		h.renderGatewayError(w, r, log, err, "failed to list products")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(products))
}

// SubscriptionRequest — создание подписки существующему клиенту провайдера.
type SubscriptionRequest struct {
	CustomerID string `json:"customer_id" validate:"required"`
	PriceID    string `json:"price_id" validate:"required"`
}

// CreateSubscription создает подписку у платежного провайдера.
func (h *Handler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.CreateSubscription"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req SubscriptionRequest
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

	sub, err := h.service.CreateSubscription(r.Context(), req.CustomerID, req.PriceID)
	if err != nil {
		h.renderGatewayError(w, r, log, err, "failed to create subscription")
		return
	}

	log.Info("subscription created", slog.String("subscription_id", sub.ID))
	render.JSON(w, r, response.StatusOKWithData(sub))
}

// ListSubscriptions возвращает активные подписки провайдера.
func (h *Handler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.ListSubscriptions"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	subs, err := h.service.ListSubscriptions(r.Context())
	if err != nil {
		h.renderGatewayError(w, r, log, err, "failed to list subscriptions")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(subs))
}

// CancelSubscription переводит подписку из пути в отмену в конце периода.
func (h *Handler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.CancelSubscription"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	subscriptionID := chi.URLParam(r, "id")
	if subscriptionID == "" {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("subscription id is required"))
		return
	}

	sub, err := h.service.CancelSubscription(r.Context(), subscriptionID)
	if err != nil {
		h.renderGatewayError(w, r, log, err, "failed to cancel subscription")
		return
	}

	log.Info("subscription canceled", slog.String("subscription_id", sub.ID))
	render.JSON(w, r, response.StatusOKWithData(sub))
}

// ResumeSubscription возобновляет приостановленную подписку из пути.
func (h *Handler) ResumeSubscription(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.ResumeSubscription"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	subscriptionID := chi.URLParam(r, "id")
	if subscriptionID == "" {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("subscription id is required"))
		return
	}

	sub, err := h.service.ResumeSubscription(r.Context(), subscriptionID)
	if err != nil {
		h.renderGatewayError(w, r, log, err, "failed to resume subscription")
		return
	}

	log.Info("subscription resumed", slog.String("subscription_id", sub.ID))
	render.JSON(w, r, response.StatusOKWithData(sub))
}

// SearchSubscriptions ищет подписки по статусу и идентификатору заказа
// из квери-параметров status и order_id.
func (h *Handler) SearchSubscriptions(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.SearchSubscriptions"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	status := r.URL.Query().Get("status")
	orderID := r.URL.Query().Get("order_id")
	if status == "" || orderID == "" {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("status and order_id are required"))
		return
	}

	subs, err := h.service.SearchSubscriptions(r.Context(), status, orderID)
	if err != nil {
		h.renderGatewayError(w, r, log, err, "failed to search subscriptions")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(subs))
}

// PlanRequest — создание плана платежей с рассрочками.
type PlanRequest struct {
	CustomerEmail string    `json:"customer_email" validate:"required,email"`
	Name          string    `json:"name" validate:"required"`
	Amount        int64     `json:"amount" validate:"required,gt=0"`
	Currency      string    `json:"currency"`
	Installments  int       `json:"installments" validate:"required,gt=0"`
	FirstDueDate  time.Time `json:"first_due_date"`
}

// CreatePaymentPlan godoc
// @Summary Создание плана платежей
// @Description Делит сумму на ежемесячные рассрочки для существующего клиента.
// @Tags Billing
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body PlanRequest true "Данные плана"
// @Success 200 {object} map[string]any "Созданный план"
// @Failure 400 {object} response.ErrorResponse "Некорректный план"
// @Failure 404 {object} response.ErrorResponse "Клиент не найден"
// @Router /billing/payment-plans [post]
func (h *Handler) CreatePaymentPlan(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.CreatePaymentPlan"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req PlanRequest
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

	if req.Currency == "" {
		req.Currency = "usd"
	}
	if req.FirstDueDate.IsZero() {
		req.FirstDueDate = time.Now().UTC().AddDate(0, 1, 0)
	}

	plan, err := h.service.CreatePaymentPlan(r.Context(), billingservice.PlanRequest{
		CustomerEmail: req.CustomerEmail,
		Name:          req.Name,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Installments:  req.Installments,
		FirstDueDate:  req.FirstDueDate,
	})
	if err != nil {
		switch {
		case errors.Is(err, billingservice.ErrBadPlan):
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid payment plan"))
		case errors.Is(err, billingservice.ErrUnknownCustomer):
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("customer not found"))
		default:
			log.Error("failed to create payment plan", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not create payment plan"))
		}
		return
	}

	log.Info("payment plan created", slog.String("name", plan.Name))
	render.JSON(w, r, response.StatusOKWithData(plan))
}

// NextInstallment возвращает ближайшую неоплаченную рассрочку клиента
// по квери-параметру email.
func (h *Handler) NextInstallment(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.NextInstallment"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	email := r.URL.Query().Get("email")
	if email == "" {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("email is required"))
		return
	}

	installment, err := h.service.NextPendingInstallment(r.Context(), email)
	if err != nil {
		switch {
		case errors.Is(err, billingservice.ErrUnknownCustomer):
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("customer not found"))
			return
		case errors.Is(err, repository.ErrNotFound):
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("no pending installments"))
			return
		}
		log.Error("failed to find installment", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}
	render.JSON(w, r, response.StatusOKWithData(installment))
}

func (h *Handler) renderGatewayError(w http.ResponseWriter, r *http.Request,
	log *slog.Logger, err error, msg string) {
	switch {
	case errors.Is(err, paymentgateway.ErrUnknownPrice):
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("unknown price id"))
	case errors.Is(err, paymentgateway.ErrProviderUnavailable):
		log.Error(msg, sl.Err(err))
		w.WriteHeader(http.StatusBadGateway)
		render.JSON(w, r, response.Error("payment provider is unavailable"))
	case errors.Is(err, paymentgateway.ErrPayment):
		log.Warn(msg, sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error(err.Error()))
	default:
		log.Error(msg, sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
	}
}
