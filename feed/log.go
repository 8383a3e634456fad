package feed

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Log is the reconciliation log for one signed-in client. Every mutation holds
// the lock for the whole merge, so pushes and refreshes never interleave.
type Log struct {
	mu     sync.Mutex
	items  []Notification
	unread int

	cache    Cache
	logger   logrus.FieldLogger
	onNotify func(Notification)
}

type LogOption func(*Log)

// WithNotifier is called for every new live push, for example to show a toast.
func WithNotifier(fn func(Notification)) LogOption {
	return func(l *Log) { l.onNotify = fn }
}

func WithLogger(logger logrus.FieldLogger) LogOption {
	return func(l *Log) { l.logger = logger }
}

// NewLog restores the feed from cache. A broken cache starts an empty feed.
func NewLog(cache Cache, opts ...LogOption) *Log {
	if cache == nil {
		cache = &MemoryCache{}
	}
	l := &Log{cache: cache, logger: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(l)
	}

	items, err := cache.Load()
	if err != nil {
		l.logger.WithError(err).Warn("feed cache unreadable, starting empty")
		items = nil
	}
	l.items = Merge(nil, items)
	l.unread = countUnread(l.items)
	return l
}

// Receive adds a live push to the front of the feed.
func (l *Log) Receive(n Notification) Notification {
	l.mu.Lock()
	if n.ID == "" {
		n.ID = "local-" + uuid.NewString()
		n.Local = true
	}
	for _, existing := range l.items {
		if existing.ID == n.ID {
			l.mu.Unlock()
			return existing
		}
	}

	items := make([]Notification, 0, len(l.items)+1)
	items = append(items, n)
	items = append(items, l.items...)
	if len(items) > MaxItems {
		items = items[:MaxItems]
	}
	l.items = items
	l.unread = countUnread(items)
	l.persistLocked()
	notify := l.onNotify
	l.mu.Unlock()

	if notify != nil {
		notify(n)
	}
	return n
}

// Reconcile merges the authoritative server list into the feed.
func (l *Log) Reconcile(server []Notification) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.items = Merge(server, l.items)
	l.unread = countUnread(l.items)
	l.persistLocked()
}

// MarkAllReadLocal flips every entry to read and zeroes the counter.
func (l *Log) MarkAllReadLocal() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.items {
		l.items[i].Read = true
	}
	l.unread = 0
	l.persistLocked()
}

// Reset empties the feed and its cache, used on sign-out.
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.items = nil
	l.unread = 0
	l.persistLocked()
}

func (l *Log) Items() []Notification {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Notification(nil), l.items...)
}

func (l *Log) Unread() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.unread
}

func (l *Log) persistLocked() {
	if err := l.cache.Save(l.items); err != nil {
		l.logger.WithError(err).Warn("feed cache write failed")
	}
}
