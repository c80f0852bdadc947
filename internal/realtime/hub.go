package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Hub tracks every attached connection and the chat rooms each has joined,
// and delivers encoded events to them. Delivery is fire-and-forget: a frame
// that cannot be queued for a connection drops that connection.
type Hub struct {
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
	mutex   sync.RWMutex
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients: make(map[*Client]struct{}),
		rooms:   make(map[string]map[*Client]struct{}),
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger.With("component", "hub"),
	}
}

// attach registers a client for delivery and counts its session as running
// until release is called. It fails once shutdown has begun.
func (h *Hub) attach(client *Client) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.ctx.Err() != nil {
		return false
	}
	client.closed = false
	h.clients[client] = struct{}{}
	h.wg.Add(1)
	h.logger.Debug("Client attached",
		slog.String("connectionId", client.id),
		slog.String("userId", client.userID),
		slog.Int("clients", len(h.clients)))
	return true
}

// release marks a session attached earlier as fully finished, including its
// disconnect processing.
func (h *Hub) release() {
	h.wg.Done()
}

// detach removes a client from the hub and every room it joined, then
// closes its send channel. Safe to call more than once.
func (h *Hub) detach(client *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mutex.Unlock()
		return
	}
	h.removeLocked(client)
	count := len(h.clients)
	h.mutex.Unlock()

	// Close the channel after releasing the lock
	close(client.send)
	h.logger.Debug("Client detached",
		slog.String("connectionId", client.id),
		slog.String("userId", client.userID),
		slog.Int("clients", count))
}

func (h *Hub) removeLocked(client *Client) {
	delete(h.clients, client)
	client.closed = true
	for chatID := range client.rooms {
		h.leaveLocked(client, chatID)
	}
}

func (h *Hub) leaveLocked(client *Client, chatID string) {
	delete(client.rooms, chatID)
	members, ok := h.rooms[chatID]
	if !ok {
		return
	}
	delete(members, client)
	if len(members) == 0 {
		delete(h.rooms, chatID)
	}
}

// JoinRoom adds the connection to the chat's room. Joining twice is a no-op.
func (h *Hub) JoinRoom(client *Client, chatID string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	members, ok := h.rooms[chatID]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[chatID] = members
	}
	members[client] = struct{}{}
	client.rooms[chatID] = struct{}{}
}

// LeaveRoom removes the connection from the chat's room. Empty rooms are dropped.
func (h *Hub) LeaveRoom(client *Client, chatID string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.leaveLocked(client, chatID)
}

// RoomSize reports how many connections have joined chatID.
func (h *Hub) RoomSize(chatID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.rooms[chatID])
}

// InRoom reports whether the connection has joined chatID.
func (h *Hub) InRoom(client *Client, chatID string) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	_, ok := h.rooms[chatID][client]
	return ok
}

// ClientCount reports the number of attached connections.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// EmitToRoom delivers event to every connection in the chat's room.
func (h *Hub) EmitToRoom(chatID string, event Event, payload any) {
	h.deliver(event, payload, func() []*Client {
		return h.roomSnapshot(chatID, nil)
	})
}

// RelayToRoomExceptSender delivers event to the chat's room, skipping the
// sending connection.
func (h *Hub) RelayToRoomExceptSender(sender *Client, chatID string, event Event, payload any) {
	h.deliver(event, payload, func() []*Client {
		return h.roomSnapshot(chatID, sender)
	})
}

// BroadcastExceptSelf delivers event to every attached connection other
// than sender.
func (h *Hub) BroadcastExceptSelf(sender *Client, event Event, payload any) {
	h.deliver(event, payload, func() []*Client {
		return h.clientSnapshot(sender)
	})
}

// SendTo delivers event to a single connection and reports whether it was
// queued.
func (h *Hub) SendTo(client *Client, event Event, payload any) bool {
	message, err := Encode(event, payload)
	if err != nil {
		h.logger.Error("Failed to encode event", slog.String("event", string(event)), slog.Any("error", err))
		return false
	}
	if h.safeSend(client, message) {
		return true
	}
	h.removeFailedClients([]*Client{client})
	return false
}

func (h *Hub) deliver(event Event, payload any, targets func() []*Client) {
	message, err := Encode(event, payload)
	if err != nil {
		h.logger.Error("Failed to encode event", slog.String("event", string(event)), slog.Any("error", err))
		return
	}

	clients := targets()
	var failed []*Client
	for _, client := range clients {
		if !h.safeSend(client, message) {
			failed = append(failed, client)
		}
	}
	h.logger.Debug("Event delivered",
		slog.String("event", string(event)),
		slog.Int("targets", len(clients)),
		slog.Int("failed", len(failed)))
	h.removeFailedClients(failed)
}

// clientSnapshot returns a thread-safe snapshot of all clients except skip.
func (h *Hub) clientSnapshot(skip *Client) []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		if client != skip {
			clients = append(clients, client)
		}
	}
	return clients
}

func (h *Hub) roomSnapshot(chatID string, skip *Client) []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	members := h.rooms[chatID]
	clients := make([]*Client, 0, len(members))
	for client := range members {
		if client != skip {
			clients = append(clients, client)
		}
	}
	return clients
}

func (h *Hub) safeSend(client *Client, message []byte) bool {
	// Hold the lock during the entire send so detach cannot close the
	// channel underneath us.
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if _, exists := h.clients[client]; !exists || client.closed {
		return false
	}

	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// removeFailedClients drops clients whose send buffer is full. Closing the
// send channel makes the write pump close the socket, which ends the read
// pump and runs normal disconnect processing.
func (h *Hub) removeFailedClients(clients []*Client) {
	for _, client := range clients {
		h.mutex.RLock()
		_, attached := h.clients[client]
		h.mutex.RUnlock()
		if !attached {
			continue
		}
		h.logger.Warn("Dropping client with full send buffer",
			slog.String("connectionId", client.id),
			slog.String("userId", client.userID))
		h.detach(client)
	}
}

// Shutdown closes every attached connection and waits for their sessions
// to finish, or until timeout.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.logger.Info("Initiating hub shutdown...")

	h.mutex.Lock()
	h.cancel()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		client.closeConn()
	}
	h.logger.Info("Closed client connections", slog.Int("count", len(clients)))

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		h.logger.Warn("Hub shutdown timeout reached, some sessions may still be running")
		return context.DeadlineExceeded
	}
}

// Done is closed when shutdown begins.
func (h *Hub) Done() <-chan struct{} {
	return h.ctx.Done()
}
