package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"invertix/internal/pubsub"
)

func TestWatchActivity_PublishesHeartbeats(t *testing.T) {
	dir := t.TempDir()
	events := pubsub.NewBroker[pubsub.Progress]()
	defer events.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := events.Subscribe(ctx)

	stop := watchActivity(Options{Events: events, Watch: true}, dir)
	defer stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "IterationInfo.0.R0.txt"), []byte("0\t1\n"), 0644))

	select {
	case event := <-ch:
		require.Equal(t, pubsub.EngineActiveEvent, event.Type)
		require.Equal(t, dir, event.Payload.Detail)
	case <-time.After(3 * time.Second):
		t.Fatal("expected a heartbeat event")
	}
}

func TestWatchActivity_DisabledIsNoop(t *testing.T) {
	stop := watchActivity(Options{}, t.TempDir())
	stop()

	stop = watchActivity(Options{Watch: true}, t.TempDir())
	stop()
}

func TestWatchActivity_MissingDirIsBestEffort(t *testing.T) {
	events := pubsub.NewBroker[pubsub.Progress]()
	defer events.Close()

	stop := watchActivity(Options{Events: events, Watch: true}, filepath.Join(t.TempDir(), "absent"))
	stop()
}
