package billing

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/stripe/stripe-go/v79"

	"github.com/magabrotheeeer/education-platform/internal/lib/sl"
)

// ErrQueueFull очередь событий переполнена, событие отброшено.
var ErrQueueFull = errors.New("event queue is full")

var webhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "webhook_events_total",
	Help: "Processed payment provider events by type and outcome.",
}, []string{"type", "status"})

// Task событие, поставленное в очередь обработки.
type Task struct {
	ID    string
	Event stripe.Event
}

// Queue внутрипроцессная очередь фоновой обработки событий.
// HTTP-слой подтверждает прием сразу после постановки, обработка
// идет в горутине-потребителе.
type Queue struct {
	tasks chan Task
	svc   *Service
	log   *slog.Logger
}

// NewQueue создает очередь с указанной емкостью буфера.
func NewQueue(svc *Service, size int, log *slog.Logger) *Queue {
	return &Queue{
		tasks: make(chan Task, size),
		svc:   svc,
		log:   log,
	}
}

// Enqueue ставит событие в очередь и возвращает идентификатор задачи.
// При переполненном буфере событие не принимается.
func (q *Queue) Enqueue(event stripe.Event) (string, error) {
	task := Task{ID: uuid.New().String(), Event: event}
	select {
	case q.tasks <- task:
		return task.ID, nil
	default:
		webhookEventsTotal.WithLabelValues(string(event.Type), "dropped").Inc()
		return "", ErrQueueFull
	}
}

// Run обрабатывает события до отмены контекста. Ошибка обработки
// одного события логируется и не останавливает потребителя.
func (q *Queue) Run(ctx context.Context) {
	const op = "services.billing.Queue.Run"
	log := q.log.With(slog.String("op", op))
	log.Info("event queue consumer started")

	for {
		select {
		case <-ctx.Done():
			log.Info("event queue consumer stopped")
			return
		case task := <-q.tasks:
			result, err := q.svc.Process(ctx, task.Event)
			status := "error"
			if err == nil {
				status = result.Status
			}
			webhookEventsTotal.WithLabelValues(string(task.Event.Type), status).Inc()
			if err != nil {
				log.Error("event processing failed",
					slog.String("task_id", task.ID),
					slog.String("event_id", task.Event.ID),
					sl.Err(err))
			}
		}
	}
}
