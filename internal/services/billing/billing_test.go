package billing

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/magabrotheeeer/education-platform/internal/models"
	"github.com/magabrotheeeer/education-platform/internal/paymentgateway"
	"github.com/magabrotheeeer/education-platform/internal/storage/repository"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) GetCustomerByStripeID(ctx context.Context, stripeCustomerID string) (*models.Customer, error) {
	args := m.Called(ctx, stripeCustomerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Customer), args.Error(1)
}

func (m *mockRepository) GetCustomerByEmail(ctx context.Context, email string) (*models.Customer, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Customer), args.Error(1)
}

func (m *mockRepository) UpsertCustomerSubscription(ctx context.Context, stripeCustomerID, email string, sub *models.CustomerSubscription) error {
	args := m.Called(ctx, stripeCustomerID, email, sub)
	return args.Error(0)
}

func (m *mockRepository) CreatePaymentPlan(ctx context.Context, plan *models.PaymentPlan, installments []models.Installment) (bson.ObjectID, error) {
	args := m.Called(ctx, plan, installments)
	return args.Get(0).(bson.ObjectID), args.Error(1)
}

func (m *mockRepository) FindNextPendingInstallment(ctx context.Context, customerID bson.ObjectID) (*models.Installment, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Installment), args.Error(1)
}

func (m *mockRepository) MarkInstallmentPaid(ctx context.Context, installmentID, paymentID bson.ObjectID) error {
	args := m.Called(ctx, installmentID, paymentID)
	return args.Error(0)
}

func (m *mockRepository) MarkInstallmentFailed(ctx context.Context, installmentID bson.ObjectID) error {
	args := m.Called(ctx, installmentID)
	return args.Error(0)
}

func (m *mockRepository) CreatePayment(ctx context.Context, p *models.Payment) (bson.ObjectID, bool, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(bson.ObjectID), args.Bool(1), args.Error(2)
}

func (m *mockRepository) CreatePaymentVoucher(ctx context.Context, v *models.PaymentVoucher) (bson.ObjectID, error) {
	args := m.Called(ctx, v)
	return args.Get(0).(bson.ObjectID), args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyPaymentFailed(n models.PaymentFailedNotification) error {
	args := m.Called(n)
	return args.Error(0)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService(repo Repository, notifier Notifier) *Service {
	return New(repo, nil, notifier, discardLogger())
}

func makeEvent(t *testing.T, eventType string, object any) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)
	return stripe.Event{
		ID:   "evt_test",
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestProcessSkipsUnknownEventTypes(t *testing.T) {
	svc := newService(new(mockRepository), new(mockNotifier))

	result, err := svc.Process(context.Background(), stripe.Event{
		ID:   "evt_unknown",
		Type: "charge.refunded",
	})
	require.NoError(t, err)
	assert.Equal(t, "skipped", result.Status)
	assert.Contains(t, result.Message, "charge.refunded")
}

func TestProcessIsolatesHandlerFailures(t *testing.T) {
	repo := new(mockRepository)
	repo.On("UpsertCustomerSubscription", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("storage down")).Times(3)
	repo.On("UpsertCustomerSubscription", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil).Once()

	svc := newService(repo, new(mockNotifier))
	svc.sleep = func(time.Duration) {}

	failing := makeEvent(t, EventCheckoutCompleted, map[string]any{
		"customer": "cus_1", "subscription": "sub_1",
	})
	result, err := svc.Process(context.Background(), failing)
	require.Error(t, err)
	assert.Equal(t, "error", result.Status)

	// следующее событие обрабатывается несмотря на предыдущую ошибку
	ok := makeEvent(t, EventSubscriptionCreated, map[string]any{
		"id": "sub_2", "customer": "cus_2", "status": "active",
	})
	result, err = svc.Process(context.Background(), ok)
	require.NoError(t, err)
	assert.Equal(t, "success", result.Status)
}

func TestHandleCheckoutCompletedRetries(t *testing.T) {
	event := makeEvent(t, EventCheckoutCompleted, map[string]any{
		"customer":         "cus_1",
		"subscription":     "sub_1",
		"customer_details": map[string]any{"email": "alice@example.com"},
	})

	t.Run("succeeds on second attempt with backoff", func(t *testing.T) {
		repo := new(mockRepository)
		repo.On("UpsertCustomerSubscription", mock.Anything, "cus_1", "alice@example.com", mock.Anything).
			Return(errors.New("transient")).Once()
		repo.On("UpsertCustomerSubscription", mock.Anything, "cus_1", "alice@example.com", mock.Anything).
			Return(nil).Once()

		svc := newService(repo, new(mockNotifier))
		var delays []time.Duration
		svc.sleep = func(d time.Duration) { delays = append(delays, d) }

		result, err := svc.Process(context.Background(), event)
		require.NoError(t, err)
		assert.Equal(t, "success", result.Status)
		assert.Equal(t, []time.Duration{2 * time.Second}, delays)
		repo.AssertExpectations(t)
	})

	t.Run("gives up after three attempts", func(t *testing.T) {
		repo := new(mockRepository)
		repo.On("UpsertCustomerSubscription", mock.Anything, "cus_1", "alice@example.com", mock.Anything).
			Return(errors.New("storage down")).Times(3)

		svc := newService(repo, new(mockNotifier))
		var delays []time.Duration
		svc.sleep = func(d time.Duration) { delays = append(delays, d) }

		_, err := svc.Process(context.Background(), event)
		assert.ErrorIs(t, err, ErrCheckout)
		assert.ErrorIs(t, err, paymentgateway.ErrPayment)
		assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, delays)
		repo.AssertExpectations(t)
	})
}

func TestHandleSubscriptionLifecycle(t *testing.T) {
	t.Run("created and updated upsert local state", func(t *testing.T) {
		repo := new(mockRepository)
		repo.On("UpsertCustomerSubscription", mock.Anything, "cus_1", "",
			mock.MatchedBy(func(sub *models.CustomerSubscription) bool {
				return sub.SubscriptionID == "sub_1" && sub.Status == "past_due"
			})).Return(nil).Twice()

		svc := newService(repo, new(mockNotifier))
		object := map[string]any{"id": "sub_1", "customer": "cus_1", "status": "past_due"}

		for _, eventType := range []string{EventSubscriptionCreated, EventSubscriptionUpdated} {
			result, err := svc.Process(context.Background(), makeEvent(t, eventType, object))
			require.NoError(t, err)
			assert.Equal(t, "success", result.Status)
		}
		repo.AssertExpectations(t)
	})

	t.Run("deleted marks subscription canceled", func(t *testing.T) {
		repo := new(mockRepository)
		repo.On("UpsertCustomerSubscription", mock.Anything, "cus_1", "",
			mock.MatchedBy(func(sub *models.CustomerSubscription) bool {
				return sub.Status == models.SubscriptionCanceled
			})).Return(nil)

		svc := newService(repo, new(mockNotifier))
		event := makeEvent(t, EventSubscriptionDeleted, map[string]any{
			"id": "sub_1", "customer": "cus_1", "status": "active",
		})
		result, err := svc.Process(context.Background(), event)
		require.NoError(t, err)
		assert.Equal(t, "success", result.Status)
		repo.AssertExpectations(t)
	})
}

func TestHandleInvoicePaid(t *testing.T) {
	customer := &models.Customer{ID: bson.NewObjectID(), StripeCustomerID: "cus_1"}
	event := makeEvent(t, EventInvoicePaid, map[string]any{
		"id":          "in_1",
		"customer":    "cus_1",
		"amount_paid": 1900,
		"currency":    "usd",
	})

	t.Run("records payment, closes installment, issues voucher", func(t *testing.T) {
		repo := new(mockRepository)
		paymentID := bson.NewObjectID()
		installment := &models.Installment{ID: bson.NewObjectID(), Sequence: 1, Status: models.InstallmentPending}

		repo.On("GetCustomerByStripeID", mock.Anything, "cus_1").Return(customer, nil)
		repo.On("CreatePayment", mock.Anything, mock.MatchedBy(func(p *models.Payment) bool {
			return p.StripeInvoiceID == "in_1" && p.Amount == 1900 && p.Customer == customer.ID
		})).Return(paymentID, true, nil)
		repo.On("FindNextPendingInstallment", mock.Anything, customer.ID).Return(installment, nil)
		repo.On("MarkInstallmentPaid", mock.Anything, installment.ID, paymentID).Return(nil)
		repo.On("CreatePaymentVoucher", mock.Anything, mock.MatchedBy(func(v *models.PaymentVoucher) bool {
			return v.Payment == paymentID && v.Folio != ""
		})).Return(bson.NewObjectID(), nil)

		svc := newService(repo, new(mockNotifier))
		result, err := svc.Process(context.Background(), event)
		require.NoError(t, err)
		assert.Equal(t, "success", result.Status)
		repo.AssertExpectations(t)
	})

	t.Run("no pending installment still records payment", func(t *testing.T) {
		repo := new(mockRepository)
		repo.On("GetCustomerByStripeID", mock.Anything, "cus_1").Return(customer, nil)
		repo.On("CreatePayment", mock.Anything, mock.Anything).Return(bson.NewObjectID(), true, nil)
		repo.On("FindNextPendingInstallment", mock.Anything, customer.ID).Return(nil, repository.ErrNotFound)
		repo.On("CreatePaymentVoucher", mock.Anything, mock.Anything).Return(bson.NewObjectID(), nil)

		svc := newService(repo, new(mockNotifier))
		result, err := svc.Process(context.Background(), event)
		require.NoError(t, err)
		assert.Equal(t, "success", result.Status)
		repo.AssertNotCalled(t, "MarkInstallmentPaid", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("redelivered invoice does not mint a second voucher", func(t *testing.T) {
		repo := new(mockRepository)
		repo.On("GetCustomerByStripeID", mock.Anything, "cus_1").Return(customer, nil)
		repo.On("CreatePayment", mock.Anything, mock.Anything).Return(bson.NewObjectID(), false, nil)

		svc := newService(repo, new(mockNotifier))
		result, err := svc.Process(context.Background(), event)
		require.NoError(t, err)
		assert.Equal(t, "success", result.Status)
		repo.AssertNotCalled(t, "CreatePaymentVoucher", mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "MarkInstallmentPaid", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown customer", func(t *testing.T) {
		repo := new(mockRepository)
		repo.On("GetCustomerByStripeID", mock.Anything, "cus_1").Return(nil, repository.ErrNotFound)

		svc := newService(repo, new(mockNotifier))
		_, err := svc.Process(context.Background(), event)
		assert.ErrorIs(t, err, ErrUnknownCustomer)
	})
}

func TestHandleInvoicePaymentFailed(t *testing.T) {
	customer := &models.Customer{ID: bson.NewObjectID(), StripeCustomerID: "cus_1", Email: "alice@example.com"}
	event := makeEvent(t, EventInvoicePaymentFailed, map[string]any{
		"id":             "in_2",
		"customer":       "cus_1",
		"customer_email": "alice@example.com",
		"attempt_count":  2,
	})

	t.Run("marks installment failed and queues notification", func(t *testing.T) {
		repo := new(mockRepository)
		notifier := new(mockNotifier)
		installment := &models.Installment{ID: bson.NewObjectID(), Status: models.InstallmentPending}

		repo.On("GetCustomerByStripeID", mock.Anything, "cus_1").Return(customer, nil)
		repo.On("FindNextPendingInstallment", mock.Anything, customer.ID).Return(installment, nil)
		repo.On("MarkInstallmentFailed", mock.Anything, installment.ID).Return(nil)
		notifier.On("NotifyPaymentFailed", models.PaymentFailedNotification{
			Email:            "alice@example.com",
			StripeCustomerID: "cus_1",
			AttemptCount:     2,
		}).Return(nil)

		svc := newService(repo, notifier)
		result, err := svc.Process(context.Background(), event)
		require.NoError(t, err)
		assert.Equal(t, "processed", result.Status)
		repo.AssertExpectations(t)
		notifier.AssertExpectations(t)
	})

	t.Run("notification failure does not fail the event", func(t *testing.T) {
		repo := new(mockRepository)
		notifier := new(mockNotifier)
		repo.On("GetCustomerByStripeID", mock.Anything, "cus_1").Return(customer, nil)
		repo.On("FindNextPendingInstallment", mock.Anything, customer.ID).Return(nil, repository.ErrNotFound)
		notifier.On("NotifyPaymentFailed", mock.Anything).Return(errors.New("broker down"))

		svc := newService(repo, notifier)
		result, err := svc.Process(context.Background(), event)
		require.NoError(t, err)
		assert.Equal(t, "processed", result.Status)
	})
}

func TestCreatePaymentPlan(t *testing.T) {
	customer := &models.Customer{ID: bson.NewObjectID(), Email: "alice@example.com"}
	firstDue := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	t.Run("splits amount with remainder on last installment", func(t *testing.T) {
		repo := new(mockRepository)
		planID := bson.NewObjectID()
		repo.On("GetCustomerByEmail", mock.Anything, "alice@example.com").Return(customer, nil)
		repo.On("CreatePaymentPlan", mock.Anything, mock.Anything,
			mock.MatchedBy(func(installments []models.Installment) bool {
				if len(installments) != 3 {
					return false
				}
				// 10000 / 3 = 3333, остаток уходит в последнюю рассрочку
				return installments[0].Amount == 3333 &&
					installments[1].Amount == 3333 &&
					installments[2].Amount == 3334 &&
					installments[2].DueDate.Equal(firstDue.AddDate(0, 2, 0)) &&
					installments[0].Status == models.InstallmentPending
			})).Return(planID, nil)

		svc := newService(repo, new(mockNotifier))
		plan, err := svc.CreatePaymentPlan(context.Background(), PlanRequest{
			CustomerEmail: "alice@example.com",
			Name:          "Premium yearly",
			Amount:        10000,
			Currency:      "usd",
			Installments:  3,
			FirstDueDate:  firstDue,
		})
		require.NoError(t, err)
		assert.Equal(t, planID, plan.ID)
		repo.AssertExpectations(t)
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		svc := newService(new(mockRepository), new(mockNotifier))
		_, err := svc.CreatePaymentPlan(context.Background(), PlanRequest{Amount: 0, Installments: 3})
		assert.ErrorIs(t, err, ErrBadPlan)
	})
}
