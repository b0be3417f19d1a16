package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Статусы рассрочки. Переходы только вперед: pending -> paid|overdue|failed,
// paid — терминальный.
const (
	InstallmentPending = "pending"
	InstallmentPaid    = "paid"
	InstallmentOverdue = "overdue"
	InstallmentFailed  = "failed"
)

// Статусы локального отражения подписки Stripe.
const (
	SubscriptionActive   = "active"
	SubscriptionPastDue  = "past_due"
	SubscriptionCanceled = "canceled"
)

// CustomerSubscription локальное отражение состояния подписки в Stripe.
type CustomerSubscription struct {
	SubscriptionID    string    `bson:"subscription_id" json:"subscription_id"`
	Status            string    `bson:"status" json:"status"`
	CurrentPeriodEnd  time.Time `bson:"current_period_end" json:"current_period_end"`
	CancelAtPeriodEnd bool      `bson:"cancel_at_period_end" json:"cancel_at_period_end"`
}

// Customer документ плательщика, связывающий пользователя с клиентом Stripe.
type Customer struct {
	ID               bson.ObjectID         `bson:"_id,omitempty" json:"id"`
	User             bson.ObjectID         `bson:"user,omitempty" json:"user,omitempty"`
	StripeCustomerID string                `bson:"stripe_customer_id" json:"stripe_customer_id"`
	Email            string                `bson:"email" json:"email"`
	Subscription     *CustomerSubscription `bson:"subscription,omitempty" json:"subscription,omitempty"`
	CreatedAt        time.Time             `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time             `bson:"updated_at" json:"updated_at"`
}

// PaymentPlan план платежей клиента, состоящий из 1..N рассрочек.
// Amount хранится в минорных единицах валюты.
type PaymentPlan struct {
	ID        bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Customer  bson.ObjectID `bson:"customer" json:"customer"`
	Name      string        `bson:"name" json:"name"`
	Amount    int64         `bson:"amount" json:"amount"`
	Currency  string        `bson:"currency" json:"currency"`
	CreatedAt time.Time     `bson:"created_at" json:"created_at"`
}

// Installment рассрочка внутри плана платежей.
type Installment struct {
	ID       bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Plan     bson.ObjectID `bson:"plan" json:"plan"`
	Sequence int           `bson:"sequence" json:"sequence"`
	Amount   int64         `bson:"amount" json:"amount"`
	Currency string        `bson:"currency" json:"currency"`
	DueDate  time.Time     `bson:"due_date" json:"due_date"`
	Status   string        `bson:"status" json:"status"`
	Payment  bson.ObjectID `bson:"payment,omitempty" json:"payment,omitempty"`
}

// Payment зафиксированный платеж, пришедший из события invoice.paid.
type Payment struct {
	ID              bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Customer        bson.ObjectID `bson:"customer" json:"customer"`
	Amount          int64         `bson:"amount" json:"amount"`
	Currency        string        `bson:"currency" json:"currency"`
	StripeInvoiceID string        `bson:"stripe_invoice_id" json:"stripe_invoice_id"`
	PaidDate        time.Time     `bson:"paid_date" json:"paid_date"`
	CreatedAt       time.Time     `bson:"created_at" json:"created_at"`
}

// PaymentVoucher квитанция, выпускаемая по факту платежа.
type PaymentVoucher struct {
	ID       bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Payment  bson.ObjectID `bson:"payment" json:"payment"`
	Folio    string        `bson:"folio" json:"folio"`
	IssuedAt time.Time     `bson:"issued_at" json:"issued_at"`
}

// PaymentFailedNotification сообщение для очереди уведомлений о неуспешном платеже.
type PaymentFailedNotification struct {
	Email            string `json:"email"`
	StripeCustomerID string `json:"stripe_customer_id"`
	AttemptCount     int64  `json:"attempt_count"`
}
