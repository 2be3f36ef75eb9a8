package ws

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"dm-chat/internal/models"
	"dm-chat/internal/observability"
)

// Hub maintains the active push connections keyed by user id.
type Hub struct {
	clients map[string]map[*client]struct{}
	mu      sync.RWMutex
	logger  *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[string]map[*client]struct{}),
		logger:  logger.With("component", "hub"),
	}
}

func (h *Hub) addClient(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c.info.UserID]; !ok {
		h.clients[c.info.UserID] = make(map[*client]struct{})
	}
	h.clients[c.info.UserID][c] = struct{}{}
	h.mu.Unlock()

	h.broadcastOnlineUsers()
}

func (h *Hub) removeClient(c *client) {
	h.mu.Lock()
	removed := h.removeLocked(c)
	h.mu.Unlock()

	if removed {
		h.broadcastOnlineUsers()
	}
}

// removeLocked drops c and closes its send channel exactly once.
func (h *Hub) removeLocked(c *client) bool {
	conns, ok := h.clients[c.info.UserID]
	if !ok {
		return false
	}
	if _, ok := conns[c]; !ok {
		return false
	}
	delete(conns, c)
	close(c.send)
	if len(conns) == 0 {
		delete(h.clients, c.info.UserID)
	}
	return true
}

// OnlineUserIDs returns the ids with at least one open connection, sorted.
func (h *Hub) OnlineUserIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// EmitToUser sends event to every connection of userID. It reports how many
// connections the frame was queued on.
func (h *Hub) EmitToUser(userID, event string, data any) (int, error) {
	frame, err := encodeFrame(event, data)
	if err != nil {
		return 0, err
	}

	h.mu.Lock()
	delivered, dropped := 0, 0
	for c := range h.clients[userID] {
		if h.queueLocked(c, frame) {
			delivered++
		} else {
			dropped++
		}
	}
	h.mu.Unlock()
	observability.IncWSEvent(event)

	if dropped > 0 {
		h.broadcastOnlineUsers()
	}
	return delivered, nil
}

// DeliverMessage pushes a stored message to its receiver.
func (h *Hub) DeliverMessage(msg models.Message) {
	n, err := h.EmitToUser(msg.ReceiverID, models.EventNewMessage, msg)
	if err != nil {
		h.logger.Error("encode newMessage", "message_id", msg.ID, "error", err)
		return
	}
	h.logger.Debug("newMessage delivered", "message_id", msg.ID, "receiver_id", msg.ReceiverID, "connections", n)
}

// broadcastOnlineUsers sends the presence list to every connection. Dropping
// a slow client changes the list, so it repeats until a round drops nobody.
func (h *Hub) broadcastOnlineUsers() {
	for {
		ids := h.OnlineUserIDs()
		frame, err := encodeFrame(models.EventOnlineUsers, ids)
		if err != nil {
			return
		}

		h.mu.Lock()
		dropped := false
		for _, conns := range h.clients {
			for c := range conns {
				if !h.queueLocked(c, frame) {
					dropped = true
				}
			}
		}
		h.mu.Unlock()
		if !dropped {
			return
		}
	}
}

// queueLocked hands frame to the client's writer; a full buffer means the
// peer is not keeping up and the connection is dropped.
func (h *Hub) queueLocked(c *client, frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		h.logger.Warn("push buffer full, dropping connection", "conn_id", c.info.ConnID, "user_id", c.info.UserID)
		h.removeLocked(c)
		observability.IncWSEvent("ws_overflow")
		return false
	}
}

func encodeFrame(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return json.Marshal(models.Envelope{Event: event, Data: raw})
}
