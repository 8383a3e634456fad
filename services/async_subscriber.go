package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/food-delivery/metrics"
	"github.com/yeremiapane/food-delivery/utils"
)

var ErrQueueFull = errors.New("event queue full")

// AsyncSubscriber moves a slow subscriber off the request path. Events are queued
// and handed to the wrapped subscriber by one worker, in publish order, each with
// its own deadline. A full queue drops the event instead of waiting.
type AsyncSubscriber struct {
	Name    string
	Sub     EventSubscriber
	Timeout time.Duration

	queue    chan OrderEvent
	StopChan chan struct{}
	done     chan struct{}
	once     sync.Once
}

func NewAsyncSubscriber(name string, sub EventSubscriber, buffer int, timeout time.Duration) *AsyncSubscriber {
	if buffer <= 0 {
		buffer = 256
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AsyncSubscriber{
		Name:     name,
		Sub:      sub,
		Timeout:  timeout,
		queue:    make(chan OrderEvent, buffer),
		StopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (a *AsyncSubscriber) HandleOrderEvent(_ context.Context, ev OrderEvent) error {
	select {
	case <-a.StopChan:
		return ErrQueueFull
	default:
	}
	select {
	case a.queue <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

func (a *AsyncSubscriber) Start() {
	go func() {
		defer close(a.done)
		for {
			select {
			case ev := <-a.queue:
				a.deliver(ev)
			case <-a.StopChan:
				if n := len(a.queue); n > 0 {
					utils.ErrorLogger.Printf("Dropping %d queued order events for %s", n, a.Name)
				}
				return
			}
		}
	}()
}

// Stop ends the worker after the event in flight, if any. It must follow Start.
func (a *AsyncSubscriber) Stop() {
	a.once.Do(func() { close(a.StopChan) })
	<-a.done
}

func (a *AsyncSubscriber) deliver(ev OrderEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), a.Timeout)
	defer cancel()
	if err := a.Sub.HandleOrderEvent(ctx, ev); err != nil {
		metrics.OrderEventFailures.WithLabelValues(a.Name).Inc()
		utils.ErrorLogger.WithFields(logrus.Fields{
			"subscriber": a.Name,
			"order_id":   ev.OrderID,
			"kind":       ev.Kind,
			"new_status": ev.NewStatus,
		}).Errorf("order event delivery failed: %v", err)
	}
}
