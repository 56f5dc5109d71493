// Package ws streams detections to WebSocket clients.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/triarb/internal/domain"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 4096

	// sendBufferSize is the channel buffer for outgoing messages per client.
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// client is one WebSocket connection. An empty exchange filter receives
// every detection.
type client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	mu        sync.RWMutex
	exchanges map[string]bool
}

// filterMsg lets a client narrow the stream: {"exchanges":["binance"]}.
// An empty list clears the filter.
type filterMsg struct {
	Exchanges []string `json:"exchanges"`
}

// envelope is the frame format sent to clients.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Config captures runtime metadata sent to clients on connect.
type Config struct {
	Mode      string
	Exchanges []string
	StartedAt time.Time
}

// Hub fans detections out to connected clients. With a SignalBus it relays
// the bus channel, so detections from every replica reach every client;
// without one it relays what is handed to Publish.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan broadcastMsg
	register   chan *client
	unregister chan *client
	bus        domain.SignalBus
	channel    string
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	logger     *slog.Logger
	cfg        Config
}

type broadcastMsg struct {
	exchange string
	data     []byte
}

// NewHub creates a hub. bus may be nil.
func NewHub(bus domain.SignalBus, channel string, logger *slog.Logger, cfg Config) *Hub {
	if cfg.StartedAt.IsZero() {
		cfg.StartedAt = time.Now().UTC()
	}
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan broadcastMsg, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		bus:        bus,
		channel:    channel,
		done:       make(chan struct{}),
		logger:     logger.With(slog.String("component", "ws_hub")),
		cfg:        cfg,
	}
}

// Run is the hub event loop. It returns when ctx is cancelled; after that
// new connections are refused and client goroutines exit without blocking.
func (h *Hub) Run(ctx context.Context) error {
	defer h.stop()
	if h.bus != nil {
		msgs, err := h.bus.Subscribe(ctx, h.channel)
		if err != nil {
			return err
		}
		go h.relay(ctx, msgs)
	}

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws: client connected", slog.Int("total_clients", n))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws: client disconnected", slog.Int("total_clients", n))

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if !c.wants(msg.exchange) {
					continue
				}
				select {
				case c.send <- msg.data:
				default:
					h.logger.Warn("ws: dropping message for slow client")
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// relay forwards bus payloads into the broadcast loop.
func (h *Hub) relay(ctx context.Context, msgs <-chan []byte) {
	h.logger.Info("ws: subscribed to channel", slog.String("channel", h.channel))
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgs:
			if !ok {
				h.logger.Warn("ws: channel subscription closed", slog.String("channel", h.channel))
				return
			}
			h.enqueue(ctx, data)
		}
	}
}

// enqueue wraps a detection payload in an envelope and queues it.
func (h *Hub) enqueue(ctx context.Context, payload []byte) {
	var head struct {
		Exchange string `json:"exchange_id"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		h.logger.Warn("ws: dropping malformed detection", slog.String("error", err.Error()))
		return
	}
	frame, err := json.Marshal(envelope{Type: "detection", Payload: payload})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- broadcastMsg{exchange: head.Exchange, data: frame}:
	case <-ctx.Done():
	case <-h.done:
	}
}

// Name identifies the hub when it is used as a result sink.
func (h *Hub) Name() string { return "websocket" }

// Publish streams d to connected clients directly. Used when no SignalBus
// is configured.
func (h *Hub) Publish(ctx context.Context, d domain.Detection) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return err
	}
	h.enqueue(ctx, payload)
	return nil
}

// HandleWS upgrades the request and registers the client. The optional
// query parameter exchange=a,b sets the initial filter.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		exchanges: make(map[string]bool),
	}
	if q := r.URL.Query().Get("exchange"); q != "" {
		c.setFilter(strings.Split(q, ","))
	}

	c.sendStatus()
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (c *client) setFilter(exchanges []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exchanges = make(map[string]bool, len(exchanges))
	for _, ex := range exchanges {
		if ex = strings.ToLower(strings.TrimSpace(ex)); ex != "" {
			c.exchanges[ex] = true
		}
	}
}

func (c *client) wants(exchange string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.exchanges) == 0 || c.exchanges[strings.ToLower(exchange)]
}

// readPump handles filter updates and keeps the read deadline fresh.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close error", slog.String("error", err.Error()))
			}
			return
		}
		var f filterMsg
		if json.Unmarshal(message, &f) == nil {
			c.setFilter(f.Exchanges)
		}
	}
}

// sendStatus greets the client with the server's mode and exchanges.
func (c *client) sendStatus() {
	payload, err := json.Marshal(map[string]any{
		"mode":           c.hub.cfg.Mode,
		"exchanges":      c.hub.cfg.Exchanges,
		"uptime_seconds": int64(time.Since(c.hub.cfg.StartedAt).Seconds()),
	})
	if err != nil {
		return
	}
	frame, err := json.Marshal(envelope{Type: "status", Payload: payload})
	if err != nil {
		return
	}
	select {
	case c.send <- frame:
	default:
	}
}

// writePump writes queued frames as text messages and pings periodically.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var _ domain.ResultSink = (*Hub)(nil)
