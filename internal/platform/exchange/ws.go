package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/exdash/exdash/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// MessageHandler receives every raw text frame read from a stream.
type MessageHandler func(raw []byte)

// StreamClient holds one WebSocket subscription to a single exchange push
// channel (the exchange scopes channels by URL path, e.g.
// "/ws/depth/BTCUSDT"). It manages the connection lifecycle, keep-alive, and
// reconnection, delivering every frame to the registered handler. Frame
// parsing and dispatch belong to the session layer.
type StreamClient struct {
	url     string
	handler MessageHandler

	mu     sync.RWMutex
	conn   *websocket.Conn
	closed bool

	// done is closed when the client is shut down.
	done chan struct{}
}

// NewStreamClient creates a client for the given stream URL. handler is
// invoked from the read loop for every frame, so it must not block.
func NewStreamClient(url string, handler MessageHandler) *StreamClient {
	return &StreamClient{
		url:     url,
		handler: handler,
		done:    make(chan struct{}),
	}
}

// URL returns the stream endpoint this client is bound to.
func (s *StreamClient) URL() string { return s.url }

// Connect establishes the WebSocket connection and starts the read and ping
// loops. Both loops are bound to the connection created here; a later
// reconnect starts fresh loops for the fresh connection, so a dying loop can
// never touch its successor's connection.
func (s *StreamClient) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("exchange/ws: %w", domain.ErrWSDisconnect)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("exchange/ws: connect %s: %w", s.url, err)
	}

	s.conn = conn

	// Set up pong handler for keep-alive.
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go s.readLoop(conn)
	go s.pingLoop(conn)

	return nil
}

// Close shuts down the connection and stops the read loop. A closed client
// cannot be reconnected; sessions open a fresh client instead.
func (s *StreamClient) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	close(s.done)

	if s.conn != nil {
		// Send a close message to the server.
		_ = s.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return s.conn.Close()
	}

	return nil
}

// readLoop continuously reads frames from conn and hands them to the
// handler. On disconnect it closes only its own connection and triggers a
// reconnect, which starts a new loop for the replacement connection.
func (s *StreamClient) readLoop(conn *websocket.Conn) {
	defer conn.Close()

	for {
		select {
		case <-s.done:
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			// Check if we've been shut down.
			select {
			case <-s.done:
				return
			default:
			}

			s.reconnect()
			return
		}

		s.handler(message)
	}
}

// pingLoop sends periodic ping messages on conn to keep it alive. It exits
// on the first failed write, which happens once conn is closed, so each loop
// dies with the connection it was started for.
func (s *StreamClient) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reconnect re-establishes the connection with exponential backoff. It
// blocks until successful or the client is closed. The server replays a
// fresh snapshot/seed batch on each new subscription, so no state needs to
// be restored here.
func (s *StreamClient) reconnect() {
	delay := reconnectDelay

	for {
		select {
		case <-s.done:
			return
		default:
		}

		time.Sleep(delay)

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := s.Connect(ctx)
		cancel()

		if err == nil {
			return
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}
