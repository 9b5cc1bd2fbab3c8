package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/verimem/sentinel/internal/checks"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// The API binds to localhost or a trusted network segment; the
		// dashboard is the only expected origin.
		return true
	},
}

// wsMessage is the envelope pushed to connected clients.
type wsMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// wsClient is one connected dashboard session.
type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string
}

// Hub fans processed check results out to connected websocket clients.
// Slow clients are dropped rather than allowed to stall the broadcast.
type Hub struct {
	clients    map[*wsClient]bool
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
	mu         sync.RWMutex
	getStatus  func() any
}

// NewHub builds the hub. getStatus, when set, supplies the snapshot sent
// to each client on connect.
func NewHub(getStatus func() any) *Hub {
	return &Hub{
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		getStatus:  getStatus,
	}
}

// Run drives registration and broadcast until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Debug().Str("client", client.id).Msg("WebSocket client connected")
			h.sendInitialStatus(client)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			log.Debug().Str("client", client.id).Msg("WebSocket client disconnected")

		case payload := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- payload:
				default:
					log.Warn().Str("client", client.id).Msg("WebSocket client too slow, dropping")
					delete(h.clients, client)
					close(client.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastResult pushes one processed result to all clients. Never blocks
// the caller; when the broadcast channel is full the message is dropped.
func (h *Hub) BroadcastResult(res checks.Result) {
	payload, err := json.Marshal(wsMessage{Type: "result", Data: res})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to marshal result broadcast")
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		log.Warn().Msg("WebSocket broadcast channel full, dropping result")
	}
}

// ClientCount reports the connected client count.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) sendInitialStatus(client *wsClient) {
	if h.getStatus == nil {
		return
	}
	payload, err := json.Marshal(wsMessage{Type: "status", Data: h.getStatus()})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to marshal initial status")
		return
	}
	select {
	case client.send <- payload:
	default:
	}
}

// ServeWS upgrades the connection and attaches it to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	client := &wsClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 64),
		id:   uuid.New().String()[:8],
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second
)

// readPump discards inbound frames; the stream is one-way. It exists to
// service control frames and detect the close.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(1024)
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

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
