package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ============================================================================
// State WebSocket: hub + per-client write pumps
// ============================================================================
// The game frontend can subscribe here to render an on-screen display for
// volume/brightness/route changes. Messages are JSON text frames with an
// envelope {type, ts, data}; the latest snapshot is replayed on connect,
// then a "state" frame follows every change.
//
// Slow clients are disconnected when their send buffer fills; one stuck
// frontend must never block the control loop or other clients.
// ============================================================================

// StateSnapshot is the externally-visible daemon state.
type StateSnapshot struct {
	BrightnessPct   int  `json:"brightness_pct"`
	BrightnessKnown bool `json:"brightness_known"`
	Headphones      bool `json:"headphones"`
	RouteKnown      bool `json:"route_known"`
	ModifierHeld    bool `json:"modifier_held"`
}

// wsEnvelope is the wire format for WS messages.
type wsEnvelope struct {
	Type string        `json:"type"`
	Ts   time.Time     `json:"ts"`
	Data StateSnapshot `json:"data"`
}

type wsHub struct {
	logger *slog.Logger

	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan []byte

	// done is closed when Run exits; client goroutines select on it so
	// they never block handing themselves back to a dead hub.
	done chan struct{}

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	last    []byte // latest marshaled snapshot, replayed on connect
}

func newWSHub(logger *slog.Logger) *wsHub {
	return &wsHub{
		logger:     logger,
		register:   make(chan *wsClient, 16),
		unregister: make(chan *wsClient, 16),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
		clients:    make(map[*wsClient]struct{}),
	}
}

// Publish enqueues a snapshot for broadcast. Never blocks: if the hub queue
// is full the frame is dropped (the next snapshot supersedes it anyway).
func (h *wsHub) Publish(snap StateSnapshot) {
	msg, err := json.Marshal(wsEnvelope{Type: "state", Ts: time.Now().UTC(), Data: snap})
	if err != nil {
		h.logger.Warn("ws snapshot marshal failed", "error", err)
		return
	}

	h.mu.Lock()
	h.last = msg
	h.mu.Unlock()

	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("ws broadcast queue full, dropping snapshot")
	}
}

// Run processes hub events until ctx is canceled, then disconnects everyone.
func (h *wsHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				c.conn.Close()
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			close(h.done)
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			last := h.last
			n := len(h.clients)
			h.mu.Unlock()
			if last != nil {
				// Best-effort init frame; a freshly-registered client
				// has an empty send buffer.
				select {
				case c.send <- last:
				default:
				}
			}
			h.logger.Info("ws client connected", "remote_addr", c.remoteAddr, "clients", n)

		case c := <-h.unregister:
			h.removeClient(c, "disconnect")

		case msg := <-h.broadcast:
			var slow []*wsClient
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.Unlock()
			for _, c := range slow {
				h.removeClient(c, "slow_client")
			}
		}
	}
}

func (h *wsHub) removeClient(c *wsClient, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		c.conn.Close()
		close(c.send)
		h.logger.Info("ws client removed", "remote_addr", c.remoteAddr, "reason", reason, "clients", n)
	}
}

type wsClient struct {
	hub        *wsHub
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string
}

const (
	wsWriteWait  = 5 * time.Second
	wsPongWait   = 30 * time.Second
	wsPingPeriod = 20 * time.Second
)

// writePump writes queued frames and keepalive pings to the connection.
// Exits on write error or when the send channel is closed by the hub.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards incoming messages to detect disconnects and handle
// control frames, then unregisters the client.
func (c *wsClient) readPump() {
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.disconnect()
			return
		}
	}
}

// disconnect hands the client back to the hub for removal, or gives up
// immediately if the hub has already shut down.
func (c *wsClient) disconnect() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}
}

var wsUpgrader = websocket.Upgrader{
	// The daemon listens on loopback for the local frontend only.
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (h *wsHub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	c := &wsClient{
		hub:        h,
		conn:       conn,
		send:       make(chan []byte, 32),
		remoteAddr: r.RemoteAddr,
	}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// runStateWSServer serves the hub's WebSocket endpoint on loopback until ctx
// is canceled.
func runStateWSServer(ctx context.Context, port int, hub *wsHub, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.handleWS)

	srv := &http.Server{
		Addr:    net.JoinHostPort("127.0.0.1", fmt.Sprintf("%d", port)),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("state ws listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("state ws server: %w", err)
	}
	return nil
}
