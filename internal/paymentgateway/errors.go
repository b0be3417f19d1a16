package paymentgateway

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v79"
)

// Ошибки шлюза. Детали stripe-go не выходят за пределы пакета:
// вызывающие слои работают только с этими значениями.
var (
	// ErrPayment платежная операция отклонена провайдером.
	ErrPayment = errors.New("payment error")
	// ErrWebhook подпись события не прошла проверку или заголовок отсутствует.
	ErrWebhook = errors.New("webhook verification failed")
	// ErrUnknownPrice идентификатор тарифа не входит в известный список.
	ErrUnknownPrice = errors.New("invalid price id")
	// ErrProviderUnavailable провайдер отвечает серверной ошибкой.
	ErrProviderUnavailable = errors.New("payment provider unavailable")
)

// mapError переводит ошибки stripe-go в ошибки предметной области,
// сохраняя сообщение провайдера для логов и ответов.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: %s", ErrProviderUnavailable, stripeErr.Msg)
		}
		return fmt.Errorf("%w: %s (%s)", ErrPayment, stripeErr.Msg, stripeErr.Code)
	}
	return fmt.Errorf("%w: %v", ErrPayment, err)
}
