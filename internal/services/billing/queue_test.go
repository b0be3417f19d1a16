package billing

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
)

func TestQueueProcessesEnqueuedEvents(t *testing.T) {
	repo := new(mockRepository)
	processed := make(chan struct{}, 1)
	repo.On("UpsertCustomerSubscription", mock.Anything, "cus_1", "", mock.Anything).
		Run(func(mock.Arguments) { processed <- struct{}{} }).
		Return(nil)

	svc := newService(repo, new(mockNotifier))
	queue := NewQueue(svc, 8, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go queue.Run(ctx)

	raw, err := json.Marshal(map[string]any{"id": "sub_1", "customer": "cus_1", "status": "active"})
	require.NoError(t, err)
	taskID, err := queue.Enqueue(stripe.Event{
		ID:   "evt_1",
		Type: EventSubscriptionCreated,
		Data: &stripe.EventData{Raw: raw},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, taskID)

	select {
	case <-processed:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not processed in time")
	}
}

func TestQueueRejectsWhenFull(t *testing.T) {
	svc := newService(new(mockRepository), new(mockNotifier))
	queue := NewQueue(svc, 1, discardLogger())

	// потребитель не запущен, буфер вмещает ровно одно событие
	_, err := queue.Enqueue(stripe.Event{ID: "evt_1", Type: "charge.refunded"})
	require.NoError(t, err)

	_, err = queue.Enqueue(stripe.Event{ID: "evt_2", Type: "charge.refunded"})
	assert.ErrorIs(t, err, ErrQueueFull)
}
