// Package chat relays chat messages between websocket clients and persists
// them through a Store.
package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"tokgrab/models"
	"tokgrab/sentryhelper"
)

type Store interface {
	InsertMessage(ctx context.Context, username string, age int, message string) (*models.ChatMessage, error)
}

// Member is what a client announced about itself with a join event.
type Member struct {
	Username string
	Age      int
}

type inbound struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	Age      int    `json:"age"`
	Message  string `json:"message"`
}

type UserCountEvent struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type NewMessageEvent struct {
	Type    string              `json:"type"`
	Message *models.ChatMessage `json:"message"`
}

const storeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub tracks every open connection and the subset that has joined.
// Broadcasts go to all open connections; the user count is the joined subset.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]struct{}
	members map[*Client]Member
	store   Store
	logger  *log.Entry
}

func NewHub(store Store) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		members: make(map[*Client]Member),
		store:   store,
		logger:  log.WithFields(log.Fields{"module": "chat"}),
	}
}

// ServeWS upgrades the request and blocks until the connection closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnf("websocket upgrade failed: %v", err)
		return
	}

	client := newClient(h, conn)
	h.register(client)
	go client.writePump()

	client.readPump()
}

// OnlineCount is the number of clients that have joined.
func (h *Hub) OnlineCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.members)
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.members)
	h.mu.Unlock()

	h.logger.Debug("websocket client connected")
	h.broadcast(UserCountEvent{Type: "user_count", Count: count})
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	delete(h.members, c)
	close(c.send)
	count := len(h.members)
	h.mu.Unlock()

	h.logger.Infof("user disconnected (%d online)", count)
	h.broadcast(UserCountEvent{Type: "user_count", Count: count})
}

func (h *Hub) join(c *Client, m Member) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	h.members[c] = m
	count := len(h.members)
	h.mu.Unlock()

	h.logger.Infof("user joined: %s (%d online)", m.Username, count)
	h.broadcast(UserCountEvent{Type: "user_count", Count: count})
}

func (h *Hub) handle(c *Client, raw []byte) {
	var msg inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.logger.Debugf("ignoring malformed chat frame: %v", err)
		return
	}

	switch msg.Type {
	case "join":
		h.join(c, Member{Username: msg.Username, Age: msg.Age})
	case "message":
		if strings.TrimSpace(msg.Message) == "" || strings.TrimSpace(msg.Username) == "" {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		saved, err := h.store.InsertMessage(ctx, msg.Username, msg.Age, msg.Message)
		if err != nil {
			h.logger.Errorf("failed to store chat message: %v", err)
			sentryhelper.CaptureException(ctx, err)
			return
		}
		h.broadcast(NewMessageEvent{Type: "new_message", Message: saved})
	}
}

// broadcast queues an event on every open connection. A client whose buffer
// is full is dropped rather than stalling everyone else.
func (h *Hub) broadcast(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Errorf("failed to encode chat event: %v", err)
		return
	}

	var slow []*Client
	h.mu.Lock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.Unlock()

	for _, c := range slow {
		c.conn.Close()
	}
}
