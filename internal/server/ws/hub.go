// Package ws bridges the Redis signal bus to WebSocket clients. The
// broadcast loop publishes to the bus, so one loop can feed every
// server replica's hub.
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

	"github.com/polytrack/polytrack/internal/broadcast"
	"github.com/polytrack/polytrack/internal/domain"
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

// defaultChannels are the bus channels every client starts subscribed to.
// Per-bet and per-symbol channels are opened on demand.
var defaultChannels = []string{
	broadcast.ChannelPrices,
	broadcast.ChannelWeather,
}

// upgrader configures the WebSocket upgrade parameters.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins. In production, restrict this to known origins.
		return true
	},
}

// client represents a single WebSocket connection.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	subs map[string]bool // subscribed channels
	mu   sync.RWMutex
}

// clientMsg is the JSON message a client sends to manage subscriptions.
//
//	{"action":"subscribe","betIds":["abc"]}
//	{"action":"subscribe-prices","symbols":["BTC","TSLA"]}
//	{"action":"unsubscribe","channels":["weather"]}
type clientMsg struct {
	Action   string   `json:"action"`
	BetIDs   []string `json:"betIds"`
	Symbols  []string `json:"symbols"`
	Channels []string `json:"channels"`
}

// Hub manages a set of connected WebSocket clients and fans bus messages
// out to all subscribed clients.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan broadcastMsg
	register   chan *client
	unregister chan *client
	bus        domain.SignalBus
	mu         sync.RWMutex
	logger     *slog.Logger
	mode       string
	startedAt  time.Time

	// runCtx is set by Run and scopes on-demand bus subscriptions.
	runMu   sync.Mutex
	runCtx  context.Context
	busSubs map[string]bool
}

// broadcastMsg carries a message along with its source channel so the hub
// can route it only to clients subscribed to that channel.
type broadcastMsg struct {
	channel string
	data    []byte
}

// Config captures runtime metadata included in the envelope sent to
// WebSocket clients on connect.
type Config struct {
	Mode      string
	StartedAt time.Time
}

// NewHub creates a new WebSocket hub that bridges a Redis SignalBus to
// connected WebSocket clients.
func NewHub(bus domain.SignalBus, logger *slog.Logger, cfg Config) *Hub {
	mode := strings.TrimSpace(strings.ToLower(cfg.Mode))
	if mode == "" {
		mode = "unknown"
	}
	startedAt := cfg.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}

	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan broadcastMsg, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		bus:        bus,
		logger:     logger,
		mode:       mode,
		startedAt:  startedAt,
		busSubs:    make(map[string]bool),
	}
}

// Run starts the hub's main event loop. It should be called in a goroutine.
// It handles client registration, unregistration, and message broadcasting.
// The loop exits when the provided context is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	h.runMu.Lock()
	h.runCtx = ctx
	h.runMu.Unlock()

	for _, ch := range defaultChannels {
		h.ensureBusSubscription(ch)
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
			h.mu.Unlock()
			h.logger.Info("ws: client connected",
				slog.Int("total_clients", h.clientCount()),
			)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.logger.Info("ws: client disconnected",
				slog.Int("total_clients", h.clientCount()),
			)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if c.isSubscribed(msg.channel) {
					select {
					case c.send <- msg.data:
					default:
						// Client's send buffer is full; drop the message.
						h.logger.Warn("ws: dropping message for slow client")
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// ensureBusSubscription opens a bus subscription for the channel unless
// one is already running. Subscriptions live until the hub stops.
func (h *Hub) ensureBusSubscription(channel string) {
	h.runMu.Lock()
	defer h.runMu.Unlock()

	if h.runCtx == nil || h.busSubs[channel] {
		return
	}
	h.busSubs[channel] = true
	go h.pumpChannel(h.runCtx, channel)
}

// pumpChannel subscribes to a single bus channel and forwards received
// messages to the hub's broadcast channel.
func (h *Hub) pumpChannel(ctx context.Context, channel string) {
	msgCh, err := h.bus.Subscribe(ctx, channel)
	if err != nil {
		h.logger.Error("ws: failed to subscribe to channel",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		h.runMu.Lock()
		delete(h.busSubs, channel)
		h.runMu.Unlock()
		return
	}

	h.logger.Info("ws: subscribed to channel", slog.String("channel", channel))

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgCh:
			if !ok {
				h.logger.Warn("ws: channel subscription closed",
					slog.String("channel", channel),
				)
				return
			}
			h.broadcast <- broadcastMsg{
				channel: channel,
				data:    data,
			}
		}
	}
}

// HandleWS upgrades an HTTP request to a WebSocket connection and registers
// the client with the hub.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		subs: make(map[string]bool),
	}

	for _, ch := range defaultChannels {
		c.subs[ch] = true
	}

	h.register <- c
	c.sendConnected()

	// Start read and write pumps in separate goroutines.
	go c.writePump()
	go c.readPump()
}

// clientCount returns the number of currently connected clients.
func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// readPump reads messages from the WebSocket connection. It handles
// subscription management requests (JSON text frames) from the client.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
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
				c.hub.logger.Warn("ws: unexpected close error",
					slog.String("error", err.Error()),
				)
			}
			return
		}

		var msg clientMsg
		if jsonErr := json.Unmarshal(message, &msg); jsonErr == nil && msg.Action != "" {
			c.handleAction(msg)
		}
	}
}

// channelsFor maps a client message to the bus channels it refers to.
func channelsFor(msg clientMsg) []string {
	channels := make([]string, 0, len(msg.BetIDs)+len(msg.Symbols)+len(msg.Channels))
	for _, id := range msg.BetIDs {
		if id = strings.TrimSpace(id); id != "" {
			channels = append(channels, broadcast.BetChannel(id))
		}
	}
	for _, sym := range msg.Symbols {
		if sym = strings.TrimSpace(sym); sym != "" {
			channels = append(channels, broadcast.PriceChannel(strings.ToUpper(sym)))
		}
	}
	channels = append(channels, msg.Channels...)
	return channels
}

// handleAction processes subscribe/unsubscribe requests from the client.
func (c *client) handleAction(msg clientMsg) {
	channels := channelsFor(msg)

	c.mu.Lock()
	switch msg.Action {
	case "subscribe", "subscribe-prices":
		for _, ch := range channels {
			c.subs[ch] = true
		}
	case "unsubscribe", "unsubscribe-prices":
		for _, ch := range channels {
			delete(c.subs, ch)
		}
	}
	c.mu.Unlock()

	if c.hub == nil {
		return
	}
	if msg.Action == "subscribe" || msg.Action == "subscribe-prices" {
		for _, ch := range channels {
			c.hub.ensureBusSubscription(ch)
		}
	}
}

// sendConnected pushes a small JSON envelope so clients can immediately
// mark the connection as healthy even when no updates are flowing yet.
func (c *client) sendConnected() {
	uptime := int64(time.Since(c.hub.startedAt).Seconds())
	if uptime < 0 {
		uptime = 0
	}

	msg, err := json.Marshal(broadcast.Event{
		Event: "connected",
		Data: map[string]any{
			"mode":          c.hub.mode,
			"uptimeSeconds": uptime,
			"channels":      defaultChannels,
		},
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return
	}

	select {
	case c.send <- msg:
	default:
	}
}

// isSubscribed checks whether the client is subscribed to the given channel.
func (c *client) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subs[channel]
}

// writePump pumps messages from the hub to the WebSocket connection.
// All payloads are JSON, so frames are text; periodic pings keep the
// connection alive.
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
				// The hub closed the channel.
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
