package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/ikkim/storefront-cart/pkg/logger"
)

// MessageHandler receives inbound frames from a cart owner's socket.
type MessageHandler func(owner string, message []byte)

// Client is one open socket. An owner may have several (one per tab).
type Client struct {
	Hub           *Hub
	Conn          *Conn
	Owner         string
	Send          chan []byte
	MessageCount  int
	LastResetTime time.Time
	RateMu        sync.Mutex
}

// NewClient builds a registered-ready client with a buffered send queue.
func NewClient(hub *Hub, conn *Conn, owner string) *Client {
	return &Client{
		Hub:           hub,
		Conn:          conn,
		Owner:         owner,
		Send:          make(chan []byte, 256),
		LastResetTime: time.Now(),
	}
}

// Hub fans cart updates out to every socket of an owner.
type Hub struct {
	clients    map[string][]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage
	done       chan struct{}
	stopOnce   sync.Once
	handler    MessageHandler

	mu sync.RWMutex
}

// BroadcastMessage is a frame addressed to all sockets of one owner.
type BroadcastMessage struct {
	Owner   string
	Message []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string][]*Client),
		register:   make(chan *Client, 256),
		unregister: make(chan *Client, 256),
		broadcast:  make(chan *BroadcastMessage, 1024),
		done:       make(chan struct{}),
	}
}

// SetMessageHandler installs the callback for inbound frames.
func (h *Hub) SetMessageHandler(fn MessageHandler) {
	h.mu.Lock()
	h.handler = fn
	h.mu.Unlock()
}

// Run processes registrations and broadcasts until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.Owner] = append(h.clients[client.Owner], client)
			sessions := len(h.clients[client.Owner])
			h.mu.Unlock()
			logger.Info("WebSocket client registered", map[string]interface{}{
				"owner":          client.Owner,
				"total_sessions": sessions,
			})

		case client := <-h.unregister:
			h.removeClient(client)

		case message := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.clients[message.Owner] {
				select {
				case client.Send <- message.Message:
				default:
					go h.Unregister(client)
					logger.Warn("Client send buffer full, disconnecting", map[string]interface{}{
						"owner": message.Owner,
					})
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	clientList, ok := h.clients[client.Owner]
	if !ok {
		h.mu.Unlock()
		return
	}

	newList := make([]*Client, 0, len(clientList))
	found := false
	for _, c := range clientList {
		if c == client {
			found = true
			continue
		}
		newList = append(newList, c)
	}
	if len(newList) == 0 {
		delete(h.clients, client.Owner)
	} else {
		h.clients[client.Owner] = newList
	}
	if found {
		close(client.Send)
	}
	h.mu.Unlock()

	logger.Info("WebSocket client unregistered", map[string]interface{}{
		"owner":              client.Owner,
		"remaining_sessions": len(newList),
	})
}

// Stop ends Run. Safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// SendToOwner marshals message and queues it for every socket of owner.
// A full broadcast queue drops the frame.
func (h *Hub) SendToOwner(owner string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		logger.Error("Failed to marshal message", err, nil)
		return err
	}

	select {
	case h.broadcast <- &BroadcastMessage{Owner: owner, Message: data}:
	default:
		logger.Warn("Broadcast channel full, message dropped", map[string]interface{}{
			"owner": owner,
		})
	}
	return nil
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// IsOwnerOnline reports whether owner has at least one open socket.
func (h *Hub) IsOwnerOnline(owner string) bool {
	return h.SessionCount(owner) > 0
}

func (h *Hub) SessionCount(owner string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[owner])
}

// HandleClientMessage rate-limits an inbound frame and hands it to the
// message handler.
func (h *Hub) HandleClientMessage(client *Client, message []byte) {
	client.RateMu.Lock()
	now := time.Now()
	if now.Sub(client.LastResetTime) >= time.Second {
		client.MessageCount = 0
		client.LastResetTime = now
	}
	client.MessageCount++
	count := client.MessageCount
	client.RateMu.Unlock()

	if count > maxMessagesPerSecond {
		logger.Warn("Rate limit exceeded", map[string]interface{}{
			"owner": client.Owner,
			"count": count,
		})
		return
	}

	h.mu.RLock()
	handler := h.handler
	h.mu.RUnlock()
	if handler == nil {
		return
	}
	handler(client.Owner, message)
}
