// Package paymentgateway оборачивает клиент Stripe: товары и цены,
// сессии оплаты, подписки и проверка подписи входящих событий.
package paymentgateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/magabrotheeeer/education-platform/internal/config"
	"github.com/magabrotheeeer/education-platform/internal/lib/sl"
)

// checkoutPlans известные тарифы оплаты. Суммы в минорных единицах.
var checkoutPlans = map[string]struct {
	Amount      int64
	Name        string
	Description string
}{
	"price_basic": {
		Amount:      1900, // $19.00
		Name:        "Plan Basico",
		Description: "Access to basic courses",
	},
	"price_premium": {
		Amount:      3900, // $39.00
		Name:        "Plan Premium",
		Description: "Access to all courses",
	},
}

// Gateway клиент платежного провайдера.
type Gateway struct {
	client         *client.API
	webhookSecret  string
	publishableKey string
	frontendURL    string
	log            *slog.Logger
}

// New создает новый экземпляр Gateway.
func New(cfg config.Stripe, log *slog.Logger) *Gateway {
	sc := &client.API{}
	sc.Init(cfg.StripeSecretKey, nil)
	return &Gateway{
		client:         sc,
		webhookSecret:  cfg.StripeWebhookSecret,
		publishableKey: cfg.StripePublishableKey,
		frontendURL:    cfg.FrontendURL,
		log:            log,
	}
}

// VerifyEvent проверяет подпись сырого тела события. Отсутствующий
// заголовок и неверная подпись дают ErrWebhook.
func (g *Gateway) VerifyEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	if sigHeader == "" {
		return stripe.Event{}, fmt.Errorf("%w: missing signature header", ErrWebhook)
	}
	event, err := webhook.ConstructEvent(payload, sigHeader, g.webhookSecret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrWebhook, err)
	}
	return event, nil
}

// CreateCustomer создает клиента у провайдера, опционально привязывая
// способ оплаты.
func (g *Gateway) CreateCustomer(ctx context.Context, email, paymentMethodID string) (*stripe.Customer, error) {
	params := &stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
		Email:  stripe.String(email),
	}
	if paymentMethodID != "" {
		params.PaymentMethod = stripe.String(paymentMethodID)
	}
	customer, err := g.client.Customers.New(params)
	if err != nil {
		return nil, mapError(err)
	}
	return customer, nil
}

// Product товар с привязанной ценой в переложенном виде.
type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceID     string `json:"price_id"`
	Price       int64  `json:"price"` // минорные единицы
	Interval    string `json:"interval"`
	Currency    string `json:"currency"`
	Active      bool   `json:"active"`
}

// CreateProduct создает товар и периодическую цену к нему.
func (g *Gateway) CreateProduct(ctx context.Context, name, description string, amount int64, currency, interval string) (*Product, error) {
	const op = "paymentgateway.CreateProduct"
	log := g.log.With(slog.String("op", op), slog.String("name", name))

	product, err := g.client.Products.New(&stripe.ProductParams{
		Params:      stripe.Params{Context: ctx},
		Name:        stripe.String(name),
		Description: stripe.String(description),
		Active:      stripe.Bool(true),
	})
	if err != nil {
		log.Error("failed to create product", sl.Err(err))
		return nil, mapError(err)
	}

	price, err := g.client.Prices.New(&stripe.PriceParams{
		Params:     stripe.Params{Context: ctx},
		Product:    stripe.String(product.ID),
		UnitAmount: stripe.Int64(amount),
		Currency:   stripe.String(currency),
		Recurring: &stripe.PriceRecurringParams{
			Interval: stripe.String(interval),
		},
	})
	if err != nil {
		log.Error("failed to create price", sl.Err(err))
		return nil, mapError(err)
	}

	return &Product{
		ID:          product.ID,
		Name:        name,
		Description: description,
		PriceID:     price.ID,
		Price:       amount,
		Interval:    interval,
		Currency:    currency,
		Active:      true,
	}, nil
}

// ListProducts возвращает активные товары с их ценами. Товары без
// активной цены пропускаются.
func (g *Gateway) ListProducts(ctx context.Context) ([]Product, error) {
	priceByProduct := map[string]*stripe.Price{}
	priceIter := g.client.Prices.List(&stripe.PriceListParams{
		ListParams: stripe.ListParams{Context: ctx},
		Active:     stripe.Bool(true),
	})
	for priceIter.Next() {
		p := priceIter.Price()
		if p.Product != nil {
			priceByProduct[p.Product.ID] = p
		}
	}
	if err := priceIter.Err(); err != nil {
		return nil, mapError(err)
	}

	var products []Product
	productIter := g.client.Products.List(&stripe.ProductListParams{
		ListParams: stripe.ListParams{Context: ctx},
		Active:     stripe.Bool(true),
	})
	for productIter.Next() {
		p := productIter.Product()
		price, ok := priceByProduct[p.ID]
		if !ok {
			continue
		}
		interval := ""
		if price.Recurring != nil {
			interval = string(price.Recurring.Interval)
		}
		products = append(products, Product{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			PriceID:     price.ID,
			Price:       price.UnitAmount,
			Interval:    interval,
			Currency:    string(price.Currency),
			Active:      p.Active,
		})
	}
	if err := productIter.Err(); err != nil {
		return nil, mapError(err)
	}
	return products, nil
}

// CheckoutSession созданная сессия оплаты.
type CheckoutSession struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// CreateCheckoutSession создает товар, цену и сессию оплаты подписки
// для известного тарифа. Неизвестный тариф дает ErrUnknownPrice.
func (g *Gateway) CreateCheckoutSession(ctx context.Context, priceID string) (*CheckoutSession, error) {
	const op = "paymentgateway.CreateCheckoutSession"
	log := g.log.With(slog.String("op", op), slog.String("price_id", priceID))

	plan, ok := checkoutPlans[priceID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPrice, priceID)
	}

	product, err := g.client.Products.New(&stripe.ProductParams{
		Params:      stripe.Params{Context: ctx},
		Name:        stripe.String(plan.Name),
		Description: stripe.String(plan.Description),
	})
	if err != nil {
		log.Error("failed to create product", sl.Err(err))
		return nil, mapError(err)
	}

	price, err := g.client.Prices.New(&stripe.PriceParams{
		Params:     stripe.Params{Context: ctx},
		Product:    stripe.String(product.ID),
		UnitAmount: stripe.Int64(plan.Amount),
		Currency:   stripe.String(string(stripe.CurrencyUSD)),
		Recurring: &stripe.PriceRecurringParams{
			Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
		},
	})
	if err != nil {
		log.Error("failed to create price", sl.Err(err))
		return nil, mapError(err)
	}

	params := &stripe.CheckoutSessionParams{
		Params:             stripe.Params{Context: ctx},
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(price.ID),
				Quantity: stripe.Int64(1),
			},
		},
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(g.frontendURL + "/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(g.frontendURL + "/cancel"),
	}
	params.AddMetadata("price_id", priceID)
	params.AddMetadata("plan_name", plan.Name)

	session, err := g.client.CheckoutSessions.New(params)
	if err != nil {
		log.Error("failed to create checkout session", sl.Err(err))
		return nil, mapError(err)
	}

	log.Info("checkout session created",
		slog.String("session_id", session.ID),
		slog.String("product_id", product.ID))
	return &CheckoutSession{SessionID: session.ID, URL: session.URL}, nil
}

// CreateSubscription создает подписку в состоянии default_incomplete:
// первый платеж подтверждается на стороне клиента.
func (g *Gateway) CreateSubscription(ctx context.Context, customerID, priceID string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{
		Params:   stripe.Params{Context: ctx},
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(priceID)},
		},
		PaymentBehavior: stripe.String("default_incomplete"),
	}
	params.AddExpand("latest_invoice.payment_intent")

	sub, err := g.client.Subscriptions.New(params)
	if err != nil {
		return nil, mapError(err)
	}
	return sub, nil
}

// Subscription активная подписка в переложенном виде.
type Subscription struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	CustomerID        string `json:"customer_id"`
	CustomerEmail     string `json:"customer_email"`
	ProductName       string `json:"product_name"`
	PriceAmount       int64  `json:"price_amount"` // минорные единицы
	Currency          string `json:"currency"`
	Interval          string `json:"interval"`
	CurrentPeriodEnd  int64  `json:"current_period_end"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
}

// ListSubscriptions возвращает активные подписки с данными клиента и
// товара. Подписки без позиций пропускаются.
func (g *Gateway) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	const op = "paymentgateway.ListSubscriptions"
	log := g.log.With(slog.String("op", op))

	params := &stripe.SubscriptionListParams{
		ListParams: stripe.ListParams{Context: ctx},
		Status:     stripe.String("active"),
	}
	params.AddExpand("data.customer")
	params.AddExpand("data.items.data.price")

	var subs []Subscription
	iter := g.client.Subscriptions.List(params)
	for iter.Next() {
		sub := iter.Subscription()
		if sub.Items == nil || len(sub.Items.Data) == 0 {
			continue
		}
		item := sub.Items.Data[0]

		out := Subscription{
			ID:                sub.ID,
			Status:            string(sub.Status),
			CurrentPeriodEnd:  sub.CurrentPeriodEnd,
			CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
			Currency:          "usd",
			Interval:          "month",
		}
		if sub.Customer != nil {
			out.CustomerID = sub.Customer.ID
			out.CustomerEmail = sub.Customer.Email
		}
		if item.Price != nil {
			out.PriceAmount = item.Price.UnitAmount
			out.Currency = string(item.Price.Currency)
			if item.Price.Recurring != nil {
				out.Interval = string(item.Price.Recurring.Interval)
			}
			if item.Price.Product != nil {
				product, err := g.client.Products.Get(item.Price.Product.ID, nil)
				if err != nil {
					log.Warn("failed to load product for subscription",
						slog.String("subscription_id", sub.ID), sl.Err(err))
				} else {
					out.ProductName = product.Name
				}
			}
		}
		subs = append(subs, out)
	}
	if err := iter.Err(); err != nil {
		return nil, mapError(err)
	}
	return subs, nil
}

// CancelSubscription отменяет подписку немедленно.
func (g *Gateway) CancelSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	sub, err := g.client.Subscriptions.Cancel(subscriptionID, &stripe.SubscriptionCancelParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return nil, mapError(err)
	}
	return sub, nil
}

// ResumeSubscription возобновляет приостановленную подписку с началом
// нового платежного цикла.
func (g *Gateway) ResumeSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	sub, err := g.client.Subscriptions.Resume(subscriptionID, &stripe.SubscriptionResumeParams{
		Params:             stripe.Params{Context: ctx},
		BillingCycleAnchor: stripe.String("now"),
	})
	if err != nil {
		return nil, mapError(err)
	}
	return sub, nil
}

// SearchSubscriptions ищет подписки по статусу и метаданным заказа.
func (g *Gateway) SearchSubscriptions(ctx context.Context, status, orderID string) ([]*stripe.Subscription, error) {
	params := &stripe.SubscriptionSearchParams{
		SearchParams: stripe.SearchParams{
			Context: ctx,
			Query:   fmt.Sprintf("status:'%s' AND metadata['order_id']:'%s'", status, orderID),
		},
	}
	var subs []*stripe.Subscription
	iter := g.client.Subscriptions.Search(params)
	for iter.Next() {
		subs = append(subs, iter.Subscription())
	}
	if err := iter.Err(); err != nil {
		return nil, mapError(err)
	}
	return subs, nil
}

// WebhookConfig диагностика настройки приема событий: показывает,
// какие части конфигурации заданы, не раскрывая самих значений.
type WebhookConfig struct {
	WebhookSecretConfigured  bool   `json:"webhook_secret_configured"`
	PublishableKeyConfigured bool   `json:"publishable_key_configured"`
	FrontendURL              string `json:"frontend_url"`
}

// Config возвращает диагностику настройки приема событий.
func (g *Gateway) Config() WebhookConfig {
	return WebhookConfig{
		WebhookSecretConfigured:  g.webhookSecret != "",
		PublishableKeyConfigured: g.publishableKey != "",
		FrontendURL:              g.frontendURL,
	}
}
