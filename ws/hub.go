/*
Package ws provides the websocket hub for live progress feedback.

PURPOSE:
  The enrollment wizard keeps a socket open while the creation saga runs;
  every stage transition (and every export progress tick) is pushed to the
  clients subscribed to that request's channel, so the UI can show
  "enrollment created, 2 of 4 installments generated" instead of a spinner.

CHANNELS:
  Clients subscribe by channel key: the wizard's request ID for enrollment
  progress, the export ID owner for export progress. A channel may have any
  number of connections (several tabs), and messages to a channel with no
  listeners are dropped.
*/
package ws

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/campora/enrollment-engine/enrollment"
)

var upgrader = websocket.Upgrader{
	// The admin console is served from a different origin in development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Message struct {
	Channel string      `json:"channel,omitempty"`
	Type    string      `json:"type"`
	Data    interface{} `json:"data"`
}

type Hub struct {
	connections map[string]map[*Connection]bool

	register   chan *Connection
	unregister chan *Connection

	broadcast chan *Message

	mu sync.RWMutex
}

type Connection struct {
	ws      *websocket.Conn
	channel string
	send    chan *Message
	hub     *Hub
}

func NewHub() *Hub {
	return &Hub{
		connections: make(map[string]map[*Connection]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		broadcast:   make(chan *Message, 256),
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			// On shutdown close the underlying websockets so read/write
			// pumps receive errors and unregister themselves.
			h.mu.RLock()
			var conns []*Connection
			for _, m := range h.connections {
				for c := range m {
					conns = append(conns, c)
				}
			}
			h.mu.RUnlock()

			for _, c := range conns {
				_ = c.ws.Close()
			}
			return

		case conn := <-h.register:
			h.mu.Lock()
			if h.connections[conn.channel] == nil {
				h.connections[conn.channel] = make(map[*Connection]bool)
			}
			h.connections[conn.channel][conn] = true
			h.mu.Unlock()

		case conn := <-h.unregister:
			h.mu.Lock()
			if connections, ok := h.connections[conn.channel]; ok {
				if _, exists := connections[conn]; exists {
					delete(connections, conn)
					close(conn.send)
					if len(connections) == 0 {
						delete(h.connections, conn.channel)
					}
				}
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			if connections, ok := h.connections[message.Channel]; ok {
				for conn := range connections {
					select {
					case conn.send <- message:
					default:
						close(conn.send)
						delete(connections, conn)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast queues a message for every connection on a channel. Never blocks
// the caller; drops the message if the hub queue is full.
func (h *Hub) Broadcast(channel string, message *Message) {
	message.Channel = channel
	select {
	case h.broadcast <- message:
	default:
		log.Printf("ws: broadcast channel full, dropping message for %s", channel)
	}
}

// StageChanged implements enrollment.Notifier: saga stage transitions are
// fanned out on the request's channel.
func (h *Hub) StageChanged(p enrollment.Progress) {
	if p.RequestID == "" {
		return
	}
	h.Broadcast(p.RequestID, &Message{Type: "enrollment_progress", Data: p})
}

// NotifyExportProgress pushes an export progress tick.
func (h *Hub) NotifyExportProgress(channel, exportID string, progress float64, stage string) {
	h.Broadcast(channel, &Message{Type: "export_progress", Data: map[string]interface{}{
		"export_id": exportID,
		"progress":  progress,
		"stage":     stage,
	}})
}

// NotifyExportComplete pushes the final export result with the download URL.
func (h *Hub) NotifyExportComplete(channel, exportID, url, fileName string) {
	h.Broadcast(channel, &Message{Type: "export_complete", Data: map[string]interface{}{
		"export_id": exportID,
		"file_url":  url,
		"file_name": fileName,
	}})
}

// NotifyExportFailed pushes an export failure.
func (h *Hub) NotifyExportFailed(channel, exportID, reason string) {
	h.Broadcast(channel, &Message{Type: "export_failed", Data: map[string]interface{}{
		"export_id": exportID,
		"error":     reason,
	}})
}

// HandleWebSocket upgrades the request and subscribes it to a channel.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request, channel string) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade error: %v", err)
		return
	}

	conn := &Connection{
		ws:      ws,
		channel: channel,
		send:    make(chan *Message, 256),
		hub:     h,
	}

	h.register <- conn

	go conn.writePump()
	go conn.readPump()
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

func (c *Connection) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.ws.Close()
	}()

	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, _, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ws: read error: %v", err)
			}
			break
		}
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.ws.WriteJSON(message); err != nil {
				log.Printf("ws: write error: %v", err)
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
