// Package billing обрабатывает события платежного провайдера и ведет
// локальные платежные документы: подписки клиентов, планы платежей,
// рассрочки, платежи и квитанции.
//
// Прием события и его обработка разделены: HTTP-слой только проверяет
// подпись и ставит событие в очередь, обработка идет в фоне.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/magabrotheeeer/education-platform/internal/lib/sl"
	"github.com/magabrotheeeer/education-platform/internal/models"
	"github.com/magabrotheeeer/education-platform/internal/paymentgateway"
	"github.com/magabrotheeeer/education-platform/internal/storage/repository"
)

// Типы обрабатываемых событий провайдера. События вне этого списка
// принимаются и пропускаются.
const (
	EventCheckoutCompleted    = "checkout.session.completed"
	EventSubscriptionCreated  = "customer.subscription.created"
	EventSubscriptionUpdated  = "customer.subscription.updated"
	EventSubscriptionDeleted  = "customer.subscription.deleted"
	EventInvoicePaid          = "invoice.paid"
	EventInvoicePaymentFailed = "invoice.payment_failed"
)

// Параметры повторов обработки завершенного checkout.
const (
	checkoutMaxRetries = 3
	checkoutBaseDelay  = 2 * time.Second
)

// Ошибки предметной области.
var (
	// ErrCheckout обработка завершенного checkout не удалась после всех повторов.
	// Входит в общую иерархию платежных ошибок через paymentgateway.ErrPayment.
	ErrCheckout = fmt.Errorf("%w: failed to process checkout", paymentgateway.ErrPayment)
	// ErrUnknownCustomer событие ссылается на неизвестного плательщика.
	ErrUnknownCustomer = errors.New("unknown customer")
	// ErrMalformedEvent тело события не разбирается в ожидаемый объект.
	ErrMalformedEvent = errors.New("malformed event payload")
)

// Repository описывает контракт хранилища платежных документов.
type Repository interface {
	GetCustomerByStripeID(ctx context.Context, stripeCustomerID string) (*models.Customer, error)
	GetCustomerByEmail(ctx context.Context, email string) (*models.Customer, error)
	UpsertCustomerSubscription(ctx context.Context, stripeCustomerID, email string, sub *models.CustomerSubscription) error
	CreatePaymentPlan(ctx context.Context, plan *models.PaymentPlan, installments []models.Installment) (bson.ObjectID, error)
	FindNextPendingInstallment(ctx context.Context, customerID bson.ObjectID) (*models.Installment, error)
	MarkInstallmentPaid(ctx context.Context, installmentID, paymentID bson.ObjectID) error
	MarkInstallmentFailed(ctx context.Context, installmentID bson.ObjectID) error
	CreatePayment(ctx context.Context, p *models.Payment) (bson.ObjectID, bool, error)
	CreatePaymentVoucher(ctx context.Context, v *models.PaymentVoucher) (bson.ObjectID, error)
}

// Gateway описывает контракт платежного шлюза.
type Gateway interface {
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
	Config() paymentgateway.WebhookConfig
}

// Notifier доставляет уведомления о неуспешных платежах.
type Notifier interface {
	NotifyPaymentFailed(n models.PaymentFailedNotification) error
}

// Result итог обработки одного события.
type Result struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type handlerFunc func(ctx context.Context, event stripe.Event) (*Result, error)

// Service обрабатывает события провайдера и проксирует операции шлюза.
type Service struct {
	repo     Repository
	gateway  Gateway
	notifier Notifier
	log      *slog.Logger

	// sleep подменяется в тестах для проверки расписания повторов
	sleep func(time.Duration)

	handlers map[string]handlerFunc
}

// New создает новый экземпляр Service.
func New(repo Repository, gateway Gateway, notifier Notifier, log *slog.Logger) *Service {
	s := &Service{
		repo:     repo,
		gateway:  gateway,
		notifier: notifier,
		log:      log,
		sleep:    time.Sleep,
	}
	s.handlers = map[string]handlerFunc{
		EventCheckoutCompleted:    s.handleCheckoutCompleted,
		EventSubscriptionCreated:  s.handleSubscriptionUpserted,
		EventSubscriptionUpdated:  s.handleSubscriptionUpserted,
		EventSubscriptionDeleted:  s.handleSubscriptionDeleted,
		EventInvoicePaid:          s.handleInvoicePaid,
		EventInvoicePaymentFailed: s.handleInvoicePaymentFailed,
	}
	return s
}

// Process разбирает тип события и вызывает его обработчик. Событие
// без обработчика пропускается без ошибки; ошибка обработчика одного
// события не влияет на остальные.
func (s *Service) Process(ctx context.Context, event stripe.Event) (*Result, error) {
	const op = "services.billing.Process"
	log := s.log.With(slog.String("op", op),
		slog.String("event_id", event.ID),
		slog.String("event_type", string(event.Type)))

	handler, ok := s.handlers[string(event.Type)]
	if !ok {
		log.Info("unhandled event type, skipping")
		return &Result{
			Status:  "skipped",
			Message: fmt.Sprintf("Event type %s is not handled", event.Type),
		}, nil
	}

	result, err := handler(ctx, event)
	if err != nil {
		log.Error("failed to process event", sl.Err(err))
		return &Result{
			Status:  "error",
			Message: fmt.Sprintf("Error processing webhook: %v", err),
		}, err
	}
	log.Info("event processed", slog.String("status", result.Status))
	return result, nil
}

// handleCheckoutCompleted фиксирует успешный checkout с повторами:
// до трех попыток с экспоненциальной задержкой от двух секунд.
func (s *Service) handleCheckoutCompleted(ctx context.Context, event stripe.Event) (*Result, error) {
	const op = "services.billing.handleCheckoutCompleted"
	log := s.log.With(slog.String("op", op), slog.String("event_id", event.ID))

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	email := ""
	if session.CustomerDetails != nil {
		email = session.CustomerDetails.Email
	}
	customerID := ""
	if session.Customer != nil {
		customerID = session.Customer.ID
	}
	subscriptionID := ""
	if session.Subscription != nil {
		subscriptionID = session.Subscription.ID
	}

	var lastErr error
	for attempt := 0; attempt < checkoutMaxRetries; attempt++ {
		lastErr = s.recordCheckout(ctx, customerID, email, subscriptionID)
		if lastErr == nil {
			log.Info("checkout processed", slog.String("customer_email", email))
			return &Result{
				Status:  "success",
				Message: fmt.Sprintf("Checkout completed for %s", email),
			}, nil
		}
		if attempt == checkoutMaxRetries-1 {
			break
		}
		delay := checkoutBaseDelay * (1 << attempt)
		log.Warn("checkout processing failed, will retry",
			slog.Int("attempt", attempt+1),
			slog.Duration("next_retry_in", delay),
			sl.Err(lastErr))
		s.sleep(delay)
	}

	log.Error("max retries reached for checkout processing", sl.Err(lastErr))
	return nil, fmt.Errorf("%w: %v", ErrCheckout, lastErr)
}

func (s *Service) recordCheckout(ctx context.Context, stripeCustomerID, email, subscriptionID string) error {
	return s.repo.UpsertCustomerSubscription(ctx, stripeCustomerID, email, &models.CustomerSubscription{
		SubscriptionID: subscriptionID,
		Status:         models.SubscriptionActive,
	})
}

// handleSubscriptionUpserted отражает создание или обновление подписки.
// Обе операции сводятся к идемпотентному upsert локального состояния.
func (s *Service) handleSubscriptionUpserted(ctx context.Context, event stripe.Event) (*Result, error) {
	sub, err := parseSubscription(event)
	if err != nil {
		return nil, err
	}
	customerID := ""
	if sub.Customer != nil {
		customerID = sub.Customer.ID
	}

	state := &models.CustomerSubscription{
		SubscriptionID:    sub.ID,
		Status:            string(sub.Status),
		CurrentPeriodEnd:  time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if err := s.repo.UpsertCustomerSubscription(ctx, customerID, "", state); err != nil {
		return nil, err
	}
	return &Result{
		Status:  "success",
		Message: fmt.Sprintf("Subscription %s recorded for customer %s", sub.ID, customerID),
	}, nil
}

// handleSubscriptionDeleted помечает локальную подписку отмененной.
func (s *Service) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) (*Result, error) {
	sub, err := parseSubscription(event)
	if err != nil {
		return nil, err
	}
	customerID := ""
	if sub.Customer != nil {
		customerID = sub.Customer.ID
	}

	state := &models.CustomerSubscription{
		SubscriptionID:   sub.ID,
		Status:           models.SubscriptionCanceled,
		CurrentPeriodEnd: time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
	}
	if err := s.repo.UpsertCustomerSubscription(ctx, customerID, "", state); err != nil {
		return nil, err
	}
	return &Result{
		Status:  "success",
		Message: fmt.Sprintf("Subscription cancelled for customer: %s", customerID),
	}, nil
}

// handleInvoicePaid фиксирует платеж, закрывает ближайшую ожидающую
// рассрочку и выпускает квитанцию. Повторная доставка того же события
// не создает второй платеж.
func (s *Service) handleInvoicePaid(ctx context.Context, event stripe.Event) (*Result, error) {
	const op = "services.billing.handleInvoicePaid"
	log := s.log.With(slog.String("op", op), slog.String("event_id", event.ID))

	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if invoice.Customer == nil {
		return nil, fmt.Errorf("%w: invoice %s has no customer", ErrUnknownCustomer, invoice.ID)
	}

	customer, err := s.repo.GetCustomerByStripeID(ctx, invoice.Customer.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCustomer, invoice.Customer.ID)
		}
		return nil, err
	}

	paymentID, created, err := s.repo.CreatePayment(ctx, &models.Payment{
		Customer:        customer.ID,
		Amount:          invoice.AmountPaid,
		Currency:        string(invoice.Currency),
		StripeInvoiceID: invoice.ID,
		PaidDate:        time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	if !created {
		// Повторная доставка: платеж, рассрочка и квитанция уже обработаны.
		log.Info("invoice already recorded", slog.String("payment_id", paymentID.Hex()))
		return &Result{
			Status:  "success",
			Message: fmt.Sprintf("Invoice already recorded: %s", invoice.ID),
		}, nil
	}

	installment, err := s.repo.FindNextPendingInstallment(ctx, customer.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if installment != nil {
		if err := s.repo.MarkInstallmentPaid(ctx, installment.ID, paymentID); err != nil {
			return nil, err
		}
		log.Info("installment closed",
			slog.String("installment_id", installment.ID.Hex()),
			slog.Int("sequence", installment.Sequence))
	}

	if _, err := s.repo.CreatePaymentVoucher(ctx, &models.PaymentVoucher{
		Payment:  paymentID,
		Folio:    uuid.New().String(),
		IssuedAt: time.Now().UTC(),
	}); err != nil {
		return nil, err
	}

	return &Result{
		Status:  "success",
		Message: fmt.Sprintf("Invoice paid successfully: %s", invoice.ID),
	}, nil
}

// handleInvoicePaymentFailed помечает ближайшую ожидающую рассрочку
// неуспешной и ставит уведомление плательщику в очередь.
func (s *Service) handleInvoicePaymentFailed(ctx context.Context, event stripe.Event) (*Result, error) {
	const op = "services.billing.handleInvoicePaymentFailed"
	log := s.log.With(slog.String("op", op), slog.String("event_id", event.ID))

	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	customerID := ""
	if invoice.Customer != nil {
		customerID = invoice.Customer.ID
	}

	if customerID != "" {
		customer, err := s.repo.GetCustomerByStripeID(ctx, customerID)
		if err == nil {
			installment, err := s.repo.FindNextPendingInstallment(ctx, customer.ID)
			if err == nil && installment != nil {
				if err := s.repo.MarkInstallmentFailed(ctx, installment.ID); err != nil {
					return nil, err
				}
			} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return nil, err
			}
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}

	notification := models.PaymentFailedNotification{
		Email:            invoice.CustomerEmail,
		StripeCustomerID: customerID,
		AttemptCount:     invoice.AttemptCount,
	}
	if err := s.notifier.NotifyPaymentFailed(notification); err != nil {
		// обработка события считается успешной, уведомление вторично
		log.Warn("failed to queue payment failure notification", sl.Err(err))
	}

	log.Info("payment failure recorded",
		slog.String("customer_id", customerID),
		slog.Int64("attempt_count", invoice.AttemptCount))
	return &Result{
		Status:  "processed",
		Message: fmt.Sprintf("Payment failed for customer: %s, attempt: %d", customerID, invoice.AttemptCount),
	}, nil
}

func parseSubscription(event stripe.Event) (*stripe.Subscription, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return &sub, nil
}
