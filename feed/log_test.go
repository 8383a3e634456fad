package feed

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestLogReceive(t *testing.T) {
	var notified []Notification
	l := NewLog(&MemoryCache{}, WithLogger(quietLogger()), WithNotifier(func(n Notification) {
		notified = append(notified, n)
	}))

	l.Receive(note("a", 1, "confirmed", 1))
	l.Receive(note("a", 1, "confirmed", 1))
	synth := l.Receive(Notification{OrderID: 1, Type: "status_update", NewStatus: "prepared"})

	assert.True(t, synth.Local)
	assert.Contains(t, synth.ID, "local-")
	assert.Len(t, l.Items(), 2)
	assert.Equal(t, 2, l.Unread())
	assert.Len(t, notified, 2)
	assert.Equal(t, synth.ID, l.Items()[0].ID)
}

func TestLogReconcileAndRead(t *testing.T) {
	l := NewLog(nil, WithLogger(quietLogger()))
	l.Receive(Notification{OrderID: 2, Type: "status_update", NewStatus: "delivering", Timestamp: epoch})

	l.Reconcile([]Notification{note("s1", 2, "delivering", 0), note("s2", 2, "delivered", 1)})
	items := l.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "s2", items[0].ID)
	assert.Equal(t, "s1", items[1].ID)

	l.MarkAllReadLocal()
	assert.Zero(t, l.Unread())
	for _, n := range l.Items() {
		assert.True(t, n.Read)
	}

	l.Reset()
	assert.Empty(t, l.Items())
}

func TestLogCapsLivePushes(t *testing.T) {
	l := NewLog(nil, WithLogger(quietLogger()))
	for i := 0; i < MaxItems+3; i++ {
		l.Receive(Notification{OrderID: uint(i), Type: "status_update"})
	}
	assert.Len(t, l.Items(), MaxItems)
	assert.Equal(t, MaxItems, l.Unread())
}

func TestFileCacheSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed", "cache.json")
	cache := NewFileCache(path)

	items, err := cache.Load()
	require.NoError(t, err)
	assert.Empty(t, items)

	first := NewLog(cache, WithLogger(quietLogger()))
	first.Receive(note("a", 1, "confirmed", 1))
	first.Receive(note("b", 1, "prepared", 2))

	restored := NewLog(NewFileCache(path), WithLogger(quietLogger()))
	require.Len(t, restored.Items(), 2)
	assert.Equal(t, "b", restored.Items()[0].ID)
	assert.Equal(t, 2, restored.Unread())
}

func TestBrokenCacheStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	l := NewLog(NewFileCache(path), WithLogger(quietLogger()))
	assert.Empty(t, l.Items())
}
