package handlers

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/jhilgenberg/go-e-report/logging"
	"github.com/jhilgenberg/go-e-report/models"
	"github.com/jhilgenberg/go-e-report/services"
)

const clientBufferSize = 64

type hubClient struct {
	hub  *ProgressHub
	conn *websocket.Conn
	send chan []byte
}

// ProgressHub pushes report events to connected websocket clients. It
// implements services.Notifier. A new client first receives the last event
// so a page reload during a run still shows progress.
type ProgressHub struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*hubClient]bool
	last    []byte
}

func NewProgressHub(allowedOrigins []string, logger *zap.Logger) *ProgressHub {
	origins := make(map[string]bool, len(allowedOrigins))
	allowAll := false
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		origins[o] = true
	}

	return &ProgressHub{
		logger:  logging.OrNop(logger),
		clients: make(map[*hubClient]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowAll || origins[origin]
			},
		},
	}
}

func (h *ProgressHub) Progress(bars []models.ProgressBar) {
	h.broadcast(services.NewProgressEvent(bars))
}

func (h *ProgressHub) Succeeded(result *services.ReportResult) {
	h.broadcast(services.NewSucceededEvent(result))
}

func (h *ProgressHub) Failed(err error) {
	h.broadcast(services.NewFailedEvent(err))
}

func (h *ProgressHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeWS upgrades the request and streams events until the client leaves.
func (h *ProgressHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &hubClient{hub: h, conn: conn, send: make(chan []byte, clientBufferSize)}
	h.register(client)

	go client.writePump()
	client.readPump()
}

func (h *ProgressHub) register(c *hubClient) {
	h.mu.Lock()
	h.clients[c] = true
	if h.last != nil {
		c.send <- h.last
	}
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("websocket client connected", zap.Int("total_clients", total))
}

func (h *ProgressHub) unregister(c *hubClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("websocket client disconnected", zap.Int("total_clients", total))
}

func (h *ProgressHub) broadcast(event services.ReportEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal report event", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = data
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			// slow consumer
			close(client.send)
			delete(h.clients, client)
		}
	}
}

// readPump only keeps the connection alive; clients send nothing.
func (c *hubClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *hubClient) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			break
		}
	}
}
