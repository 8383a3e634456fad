package services

import (
	"context"
	"sync"
	"time"

	"github.com/yeremiapane/food-delivery/utils"
)

// ExpiredSessionPurger is implemented by stores that do not expire entries on their own.
type ExpiredSessionPurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// SessionJanitor periodically removes expired session rows and, when a retention is
// set, read notifications older than it.
type SessionJanitor struct {
	Sessions           ExpiredSessionPurger
	Notifications      *NotificationService
	Interval           time.Duration
	NotificationMaxAge time.Duration

	StopChan chan struct{}
	once     sync.Once
	now      func() time.Time
}

func NewSessionJanitor(sessions ExpiredSessionPurger, interval time.Duration) *SessionJanitor {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &SessionJanitor{
		Sessions: sessions,
		Interval: interval,
		StopChan: make(chan struct{}),
		now:      time.Now,
	}
}

func (j *SessionJanitor) Start() {
	go func() {
		ticker := time.NewTicker(j.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				j.Sweep(context.Background())
			case <-j.StopChan:
				return
			}
		}
	}()
}

func (j *SessionJanitor) Stop() {
	j.once.Do(func() { close(j.StopChan) })
}

// Sweep runs one cleanup pass.
func (j *SessionJanitor) Sweep(ctx context.Context) {
	now := j.now()

	if j.Sessions != nil {
		n, err := j.Sessions.PurgeExpired(ctx, now)
		if err != nil {
			utils.ErrorLogger.Printf("Error purging expired sessions: %v", err)
		} else if n > 0 {
			utils.InfoLogger.Printf("Purged %d expired session rows", n)
		}
	}

	if j.Notifications != nil && j.NotificationMaxAge > 0 {
		n, err := j.Notifications.PurgeOlderThan(ctx, now.Add(-j.NotificationMaxAge))
		if err != nil {
			utils.ErrorLogger.Printf("Error purging old notifications: %v", err)
		} else if n > 0 {
			utils.InfoLogger.Printf("Purged %d read notifications", n)
		}
	}
}
