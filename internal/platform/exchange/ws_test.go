package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// dialCountingServer upgrades every request, counts the dials, and drops the
// first connection immediately. Later connections stay open until the server
// shuts down.
func dialCountingServer(t *testing.T) (*httptest.Server, func() int) {
	t.Helper()

	var (
		mu    sync.Mutex
		dials int
	)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		mu.Lock()
		dials++
		n := dials
		mu.Unlock()

		if n == 1 {
			conn.Close()
			return
		}

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))

	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return dials
	}
	return srv, count
}

func TestStreamClient_ReconnectSettles(t *testing.T) {
	srv, dials := dialCountingServer(t)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client := NewStreamClient(url, func([]byte) {})
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	// The server drops the first connection, so the client must re-dial once.
	require.Eventually(t, func() bool { return dials() >= 2 },
		5*reconnectDelay, 50*time.Millisecond)

	// The replacement connection stays healthy; the retired read loop must
	// not close it out from under the new one, or the client keeps re-dialing.
	time.Sleep(2 * reconnectDelay)
	require.Equal(t, 2, dials(), "client kept re-dialing after a successful reconnect")
}

func TestStreamClient_CloseStopsReconnect(t *testing.T) {
	srv, dials := dialCountingServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client := NewStreamClient(url, func([]byte) {})
	require.NoError(t, client.Connect(context.Background()))

	require.Eventually(t, func() bool { return dials() >= 2 },
		5*reconnectDelay, 50*time.Millisecond)

	require.NoError(t, client.Close())
	srv.Close()

	// A closed client must not dial again.
	time.Sleep(2 * reconnectDelay)
	require.Equal(t, 2, dials())

	// And cannot be reconnected.
	require.Error(t, client.Connect(context.Background()))
}
