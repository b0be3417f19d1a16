package billing

import (
	"context"

	"github.com/stripe/stripe-go/v79"

	"github.com/magabrotheeeer/education-platform/internal/paymentgateway"
)

// Операции шлюза, проксируемые HTTP-слою. Провайдер остается деталью
// реализации: обработчики зависят только от этого сервиса.

// VerifyEvent проверяет подпись сырого тела события.
func (s *Service) VerifyEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	return s.gateway.VerifyEvent(payload, sigHeader)
}

// CreateCustomer заводит клиента у провайдера, опционально привязывая
// способ оплаты.
func (s *Service) CreateCustomer(ctx context.Context, email, paymentMethodID string) (*stripe.Customer, error) {
	return s.gateway.CreateCustomer(ctx, email, paymentMethodID)
}

// CreateCheckoutSession создает сессию оплаты для известного тарифа.
func (s *Service) CreateCheckoutSession(ctx context.Context, priceID string) (*paymentgateway.CheckoutSession, error) {
	return s.gateway.CreateCheckoutSession(ctx, priceID)
}

// CreateProduct создает товар с периодической ценой.
func (s *Service) CreateProduct(ctx context.Context, name, description string, amount int64, currency, interval string) (*paymentgateway.Product, error) {
	return s.gateway.CreateProduct(ctx, name, description, amount, currency, interval)
}

// ListProducts возвращает активные товары провайдера.
func (s *Service) ListProducts(ctx context.Context) ([]paymentgateway.Product, error) {
	return s.gateway.ListProducts(ctx)
}

// CreateSubscription создает подписку клиента у провайдера.
func (s *Service) CreateSubscription(ctx context.Context, customerID, priceID string) (*stripe.Subscription, error) {
	return s.gateway.CreateSubscription(ctx, customerID, priceID)
}

// ListSubscriptions возвращает активные подписки.
func (s *Service) ListSubscriptions(ctx context.Context) ([]paymentgateway.Subscription, error) {
	return s.gateway.ListSubscriptions(ctx)
}

// CancelSubscription отменяет подписку.
func (s *Service) CancelSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	return s.gateway.CancelSubscription(ctx, subscriptionID)
}

// ResumeSubscription возобновляет подписку.
func (s *Service) ResumeSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	return s.gateway.ResumeSubscription(ctx, subscriptionID)
}

// SearchSubscriptions ищет подписки по статусу и заказу.
func (s *Service) SearchSubscriptions(ctx context.Context, status, orderID string) ([]*stripe.Subscription, error) {
	return s.gateway.SearchSubscriptions(ctx, status, orderID)
}

// WebhookConfig возвращает диагностику настройки приема событий.
func (s *Service) WebhookConfig() paymentgateway.WebhookConfig {
	return s.gateway.Config()
}
