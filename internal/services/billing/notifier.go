package billing

import (
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/education-platform/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/education-platform/internal/models"
)

// RabbitNotifier публикует уведомления о неуспешных платежах в очередь
// notification.payment_failed, которую читает сервис отправки писем.
type RabbitNotifier struct {
	ch *amqp.Channel
}

// NewRabbitNotifier создает новый экземпляр RabbitNotifier.
func NewRabbitNotifier(ch *amqp.Channel) *RabbitNotifier {
	return &RabbitNotifier{ch: ch}
}

// NotifyPaymentFailed публикует уведомление в exchange уведомлений.
func (n *RabbitNotifier) NotifyPaymentFailed(notification models.PaymentFailedNotification) error {
	return rabbitmq.PublishMessage(n.ch, "notifications", "payment_failed", notification)
}
