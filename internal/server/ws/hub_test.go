package ws

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/exdash/exdash/internal/feed"
)

// stubBus hands out a pre-made channel so tests control the message flow.
type stubBus struct {
	ch chan []byte
}

func (b *stubBus) Publish(ctx context.Context, channel string, payload []byte) error {
	return nil
}

func (b *stubBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return b.ch, nil
}

func TestSubscribeToChannel_StopsWhenBroadcastFull(t *testing.T) {
	busCh := make(chan []byte, 600)
	hub := NewHub(&stubBus{ch: busCh}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	// More messages than the broadcast buffer holds, with nothing draining it.
	for i := 0; i < cap(hub.broadcast)+16; i++ {
		busCh <- []byte(`{}`)
	}

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		hub.subscribeToChannel(ctx, feed.ChannelDepth)
		close(finished)
	}()

	// Let the forwarder fill the broadcast buffer and hit the blocked send.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber goroutine still blocked after shutdown")
	}
}

func TestRun_ExitsOnCancel(t *testing.T) {
	hub := NewHub(&stubBus{ch: make(chan []byte)}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan error, 1)
	go func() {
		finished <- hub.Run(ctx)
	}()

	cancel()

	select {
	case err := <-finished:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not exit on cancel")
	}
}
