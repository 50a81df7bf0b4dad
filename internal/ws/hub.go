package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/catalogmf/catalog/internal/service/log"
	"github.com/catalogmf/catalog/internal/view/gate"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong before the connection is dead.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per client outgoing message buffer depth.
	sendBufSize = 16
)

// Events sent to the clients.
const (
	// EventPanel carries the new metrics panel HTML.
	EventPanel = "panel"
	// EventReload asks the client to load the page again, the configuration
	// validity changed and the whole page is different.
	EventReload = "reload"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Any origin, the catalog is embedded by hosts on other origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is the JSON envelope sent to clients.
type Message struct {
	Event string `json:"event"`
	HTML  string `json:"html,omitempty"`
}

// Source is the catalog state pushed to the clients.
type Source interface {
	Decision() gate.Decision
	RenderPanel(w io.Writer) error
}

// Hub manages the websocket clients and pushes the metrics panel to all of
// them on every Broadcast.
type Hub struct {
	src    Source
	logger log.Logger

	// bmu serializes broadcasts so clients never get an older panel after a
	// newer one.
	bmu       sync.Mutex
	lastValid bool

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// New returns a new Hub.
func New(src Source, logger log.Logger) *Hub {
	if logger == nil {
		logger = log.Dummy
	}
	return &Hub{
		src:       src,
		logger:    logger,
		lastValid: src.Decision().Valid,
		clients:   make(map[*client]struct{}),
	}
}

// Run blocks until ctx is cancelled, then closes all the connections.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// ServeHTTP upgrades the connection to websocket and serves the client. The
// current panel is sent right away. Blocks until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBufSize),
	}
	if !h.register(c) {
		conn.Close()
		return
	}
	defer h.unregister(c)

	if h.src.Decision().Valid {
		if data, err := h.panelMessage(); err == nil {
			h.sendTo(c, data)
		} else {
			h.logger.Errorf("could not render panel for new client: %s", err)
		}
	}

	go c.writePump()
	c.readPump()
}

// Broadcast sends the current panel to all the clients. Clients that can't
// keep up are disconnected.
func (h *Hub) Broadcast() {
	h.bmu.Lock()
	defer h.bmu.Unlock()

	valid := h.src.Decision().Valid
	changed := valid != h.lastValid
	h.lastValid = valid

	var (
		data []byte
		err  error
	)
	switch {
	case changed:
		data, err = json.Marshal(Message{Event: EventReload})
	case valid:
		data, err = h.panelMessage()
	default:
		return
	}
	if err != nil {
		h.logger.Errorf("could not build websocket message: %s", err)
		return
	}

	h.send(data)
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) panelMessage() ([]byte, error) {
	var b bytes.Buffer
	if err := h.src.RenderPanel(&b); err != nil {
		return nil, err
	}
	return json.Marshal(Message{Event: EventPanel, HTML: b.String()})
}

func (h *Hub) send(data []byte) {
	var slow []*client

	// The read lock keeps the send channels open while sending.
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warningf("dropping slow websocket client %s", c.conn.RemoteAddr())
		h.unregister(c)
	}
}

func (h *Hub) sendTo(c *client, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// writePump forwards the messages to the connection and sends the pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump handles the control frames and detects disconnects.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
