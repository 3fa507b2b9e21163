package ws

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chat-gateway/internal/models"
	"chat-gateway/internal/observability"
)

// CloseSendQueueFull is used when a client cannot keep up with its queue.
const CloseSendQueueFull = websocket.CloseTryAgainLater

// Hub is the registry of live connections, indexed by connection id, room and
// user. It is the only owner of client references.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[models.RoomRef]map[string]*Client
	users   map[int64]map[string]*Client

	// hookMu orders lifecycle hooks per hub; announced is the last online state
	// reported for each user.
	hookMu    sync.Mutex
	announced map[int64]bool
	onFirst   []func(userID int64)
	onLast    []func(userID int64)

	logger *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:   make(map[string]*Client),
		rooms:     make(map[models.RoomRef]map[string]*Client),
		users:     make(map[int64]map[string]*Client),
		announced: make(map[int64]bool),
		logger:    logger,
	}
}

// OnFirstConnect registers fn to run when a user goes from zero to one connection.
func (h *Hub) OnFirstConnect(fn func(userID int64)) {
	h.hookMu.Lock()
	defer h.hookMu.Unlock()
	h.onFirst = append(h.onFirst, fn)
}

// OnLastDisconnect registers fn to run when a user's last connection is released.
func (h *Hub) OnLastDisconnect(fn func(userID int64)) {
	h.hookMu.Lock()
	defer h.hookMu.Unlock()
	h.onLast = append(h.onLast, fn)
}

// Register adds c to the registry. It reports whether c is the user's first
// live connection. Registering the same client twice is a no-op.
func (h *Hub) Register(c *Client) bool {
	info := c.Info
	h.mu.Lock()
	if _, exists := h.clients[info.ConnID]; exists {
		h.mu.Unlock()
		return false
	}
	h.clients[info.ConnID] = c
	if _, ok := h.rooms[info.Room]; !ok {
		h.rooms[info.Room] = make(map[string]*Client)
	}
	h.rooms[info.Room][info.ConnID] = c
	if _, ok := h.users[info.UserID]; !ok {
		h.users[info.UserID] = make(map[string]*Client)
	}
	h.users[info.UserID][info.ConnID] = c
	first := len(h.users[info.UserID]) == 1
	h.mu.Unlock()

	observability.IncWSActive(string(info.Room.Kind))
	h.notifyLifecycle(info.UserID)
	return first
}

// Release removes c and closes it. It reports whether c was the user's last
// live connection. Releasing an unknown or already released client is a no-op.
func (h *Hub) Release(c *Client) bool {
	info := c.Info
	h.mu.Lock()
	if _, exists := h.clients[info.ConnID]; !exists {
		h.mu.Unlock()
		return false
	}
	delete(h.clients, info.ConnID)
	if conns, ok := h.rooms[info.Room]; ok {
		delete(conns, info.ConnID)
		if len(conns) == 0 {
			delete(h.rooms, info.Room)
		}
	}
	last := false
	if conns, ok := h.users[info.UserID]; ok {
		delete(conns, info.ConnID)
		if len(conns) == 0 {
			delete(h.users, info.UserID)
			last = true
		}
	}
	h.mu.Unlock()

	c.Close(websocket.CloseNormalClosure, "")
	observability.DecWSActive(string(info.Room.Kind))
	h.notifyLifecycle(info.UserID)
	return last
}

// notifyLifecycle fires hooks for the user's current online state if it differs
// from the last reported one. Hooks observe the state at the time they run, so
// racing connects and disconnects settle on the true final state.
func (h *Hub) notifyLifecycle(userID int64) {
	h.hookMu.Lock()
	defer h.hookMu.Unlock()

	online := h.UserConnections(userID) > 0
	if online == h.announced[userID] {
		return
	}
	hooks := h.onLast
	if online {
		h.announced[userID] = true
		hooks = h.onFirst
	} else {
		delete(h.announced, userID)
	}
	for _, fn := range hooks {
		fn(userID)
	}
}

// Broadcast delivers payload to every client in room except the connection ids
// in skip. It returns the number of successful deliveries.
func (h *Hub) Broadcast(room models.RoomRef, payload []byte, skip ...string) int {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[room]))
	for id, c := range h.rooms[room] {
		if contains(skip, id) {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	return h.deliverAll(targets, payload)
}

// Send delivers payload to every connection of userID, whatever its room.
func (h *Hub) Send(userID int64, payload []byte) int {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.users[userID]))
	for _, c := range h.users[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	return h.deliverAll(targets, payload)
}

// Deliver queues payload for one client. A client that cannot take it is closed
// and released in the background; it is never retried.
func (h *Hub) Deliver(c *Client, payload []byte) bool {
	if c.enqueue(payload) {
		return true
	}
	observability.IncDroppedDelivery()
	h.logger.Warn("websocket delivery dropped",
		zap.String("conn_id", c.Info.ConnID),
		zap.Int64("user_id", c.Info.UserID),
		zap.String("room", c.Info.Room.String()),
	)
	c.Close(CloseSendQueueFull, "send queue full")
	go h.Release(c)
	go h.publishWSError(c.Info, "send queue full")
	return false
}

func (h *Hub) deliverAll(targets []*Client, payload []byte) int {
	delivered := 0
	for _, c := range targets {
		if h.Deliver(c, payload) {
			delivered++
		}
	}
	return delivered
}

// CloseAll closes every client with code, used on shutdown.
func (h *Hub) CloseAll(code int, reason string) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.Close(code, reason)
	}
}

// Len returns the number of live connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomConnections returns the number of live connections in room.
func (h *Hub) RoomConnections(room models.RoomRef) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// UserConnections returns the number of live connections of userID.
func (h *Hub) UserConnections(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

func (h *Hub) publishWSError(info ConnInfo, reason string) {
	kind := string(info.Room.Kind)
	observability.IncWSEvent(kind, "ws_error")
	envelope := observability.NewEnvelope("ws_events", "ws_error", info.eventPayload("ws_error", reason))
	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	if err := observability.PublishEvent(context.Background(), observability.WSRoutingKey(kind), envelope, headers); err != nil {
		h.logger.Debug("ws event publish failed", zap.Error(err))
	}
}

func contains(ids []string, id string) bool {
	for _, s := range ids {
		if s == id {
			return true
		}
	}
	return false
}
