package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedSubscriber blocks every delivery until released.
type gatedSubscriber struct {
	release chan struct{}

	mu        sync.Mutex
	orders    []uint
	deadlines []bool
}

func (g *gatedSubscriber) HandleOrderEvent(ctx context.Context, ev OrderEvent) error {
	<-g.release
	_, hasDeadline := ctx.Deadline()
	g.mu.Lock()
	defer g.mu.Unlock()
	g.orders = append(g.orders, ev.OrderID)
	g.deadlines = append(g.deadlines, hasDeadline)
	return nil
}

func (g *gatedSubscriber) delivered() []uint {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]uint(nil), g.orders...)
}

func TestAsyncSubscriberQueuesWithoutBlocking(t *testing.T) {
	sub := &gatedSubscriber{release: make(chan struct{})}
	async := NewAsyncSubscriber("sink", sub, 2, time.Second)
	async.Start()
	defer async.Stop()

	// One event in flight plus a full buffer; the next is dropped at once.
	require.NoError(t, async.HandleOrderEvent(context.Background(), OrderEvent{OrderID: 1}))
	require.Eventually(t, func() bool { return len(async.queue) == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, async.HandleOrderEvent(context.Background(), OrderEvent{OrderID: 2}))
	require.NoError(t, async.HandleOrderEvent(context.Background(), OrderEvent{OrderID: 3}))

	start := time.Now()
	err := async.HandleOrderEvent(context.Background(), OrderEvent{OrderID: 4})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	close(sub.release)
	require.Eventually(t, func() bool { return len(sub.delivered()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []uint{1, 2, 3}, sub.delivered())

	sub.mu.Lock()
	assert.Equal(t, []bool{true, true, true}, sub.deadlines)
	sub.mu.Unlock()
}

func TestAsyncSubscriberRefusesAfterStop(t *testing.T) {
	sub := &gatedSubscriber{release: make(chan struct{})}
	close(sub.release)
	async := NewAsyncSubscriber("sink", sub, 2, time.Second)
	async.Start()
	async.Stop()

	assert.ErrorIs(t, async.HandleOrderEvent(context.Background(), OrderEvent{OrderID: 1}), ErrQueueFull)
	assert.Empty(t, sub.delivered())
}
