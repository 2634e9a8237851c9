package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lessonsync-api/internal/models"
)

func startTestNATSServer(t *testing.T) *natsserver.Server {
	opts := &natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	}

	server, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go server.Start()

	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})

	return server
}

func TestNATSNotifierPublishesPerRecipient(t *testing.T) {
	server := startTestNATSServer(t)
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	sub, err := nc.SubscribeSync("lessons.notify.student-2")
	require.NoError(t, err)
	require.NoError(t, nc.Flush())

	notifier := NewNATSNotifier(nc, "lessons.notify.")
	assert.Equal(t, "lessons.notify.student-2", notifier.Subject("student-2"))

	err = notifier.Notify(context.Background(), models.Notification{
		Kind:         models.NotifyChangeApplied,
		RecipientID:  "student-2",
		SeriesID:     "math-10a",
		OriginalDate: models.NewDate(2025, time.January, 6),
		Cancelled:    true,
	})
	require.NoError(t, err)

	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)

	var got models.Notification
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, models.NotifyChangeApplied, got.Kind)
	assert.Equal(t, "math-10a", got.SeriesID)
	assert.True(t, got.Cancelled)
}

func TestNATSNotifierRequiresRecipient(t *testing.T) {
	notifier := NewNATSNotifier(nil, "")
	err := notifier.Notify(context.Background(), models.Notification{Kind: models.NotifyChangeApplied})
	assert.Error(t, err)
}

type recordingNotifier struct {
	mu       sync.Mutex
	received []models.Notification
	failures int
}

func (r *recordingNotifier) Notify(_ context.Context, n models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures > 0 {
		r.failures--
		return errors.New("sink unavailable")
	}
	r.received = append(r.received, n)
	return nil
}

func TestDispatcherDeliversAndReports(t *testing.T) {
	sink := &recordingNotifier{failures: 1}
	var (
		mu      sync.Mutex
		results []bool
	)
	dispatcher := NewDispatcher(sink, DispatcherConfig{
		Workers:       1,
		Retries:       2,
		RetryDelay:    time.Millisecond,
		RatePerSecond: 1000,
		OnResult: func(_ models.NotificationKind, delivered bool) {
			mu.Lock()
			defer mu.Unlock()
			results = append(results, delivered)
		},
	})
	dispatcher.Start(context.Background())

	for _, recipient := range []string{"student-2", "student-3"} {
		require.NoError(t, dispatcher.Dispatch(models.Notification{Kind: models.NotifyVoteRequested, RecipientID: recipient}))
	}
	dispatcher.Stop()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.received, 2)
	assert.Equal(t, []bool{true, true}, results)
}

func TestDispatcherRejectsAfterStop(t *testing.T) {
	dispatcher := NewDispatcher(NewLogNotifier(nil), DispatcherConfig{})
	dispatcher.Start(context.Background())
	dispatcher.Stop()

	err := dispatcher.Dispatch(models.Notification{Kind: models.NotifyChangeApplied, RecipientID: "x"})
	assert.Error(t, err)
}
