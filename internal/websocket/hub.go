package websocket

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"taskflow/internal/database"
	"taskflow/internal/metrics"
	"taskflow/internal/models"
	"taskflow/internal/presence"
	"taskflow/pkg/logger"
)

const (
	closeReasonReplaced = "replaced by new connection"
	closeReasonSlow     = "send buffer full"
	closeReasonShutdown = "server shutting down"
)

// Hub owns room membership for every live connection and fans events out to
// rooms. Lock order is Hub.mu then the presence registry's lock.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}

	registry *presence.Registry
	store    database.PresenceRepository
	log      zerolog.Logger
	now      func() time.Time
}

// NewHub creates a hub. store may be nil, in which case presence is not
// mirrored to the database.
func NewHub(registry *presence.Registry, store database.PresenceRepository) *Hub {
	return &Hub{
		clients:  make(map[*Client]struct{}),
		rooms:    make(map[string]map[*Client]struct{}),
		registry: registry,
		store:    store,
		log:      logger.WithComponent("hub"),
		now:      time.Now,
	}
}

// Run refreshes gauges until ctx is done, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.Shutdown()
			return
		case <-ticker.C:
			h.mu.RLock()
			h.updateGaugesLocked()
			h.mu.RUnlock()
		}
	}
}

// Connect registers c as the user's live connection and subscribes it to the
// user's personal room. A previous connection for the same user is detached
// and closed; in that case no user:online is broadcast because the user never
// went offline.
func (h *Hub) Connect(c *Client) {
	h.mu.Lock()
	var replaced *Client
	if prev := h.registry.Register(c.user.Public(), c); prev != nil {
		// A previous connection already dropped for being slow is still the
		// registered one until its read loop exits; it is replaced all the same.
		if old, ok := prev.(*Client); ok {
			if !old.closed {
				h.detachLocked(old, websocket.CloseNormalClosure, closeReasonReplaced)
			}
			replaced = old
		}
	}
	h.clients[c] = struct{}{}
	h.joinLocked(c, models.UserRoom(c.user.ID))
	h.updateGaugesLocked()
	h.mu.Unlock()

	if replaced != nil {
		c.log.Info().Str("replaced_conn_id", replaced.id).Msg("connection replaced")
	} else {
		c.log.Info().Msg("user connected")
		h.broadcastAll(models.EventUserOnline, h.statusPayload(c.user, models.PresenceOnline), c)
	}
	h.persistStatus(c.user.ID, models.PresenceOnline, c.id)

	others := make([]models.OnlineUser, 0)
	for _, u := range h.registry.ListOnline() {
		if u.UserID != c.user.ID {
			others = append(others, u)
		}
	}
	c.Send(models.EventUsersOnlineList, models.OnlineListPayload{Users: others})
}

// Disconnect detaches c. user:offline is broadcast only when c was still the
// user's registered connection, so it is emitted once per session and never
// for a replaced connection.
func (h *Hub) Disconnect(c *Client) {
	h.mu.Lock()
	removed := h.registry.DeregisterConn(c.user.ID, c.id)
	if !c.closed {
		h.detachLocked(c, websocket.CloseNormalClosure, "")
	}
	h.updateGaugesLocked()
	h.mu.Unlock()

	c.cancel()
	if !removed {
		return
	}

	c.log.Info().Msg("user disconnected")
	h.broadcastAll(models.EventUserOffline, h.statusPayload(c.user, models.PresenceOffline), nil)
	h.persistStatus(c.user.ID, models.PresenceOffline, c.id)
}

// Join subscribes c to room. added is false when c was already a member; live
// is false when c has been disconnected or replaced, in which case nothing
// changes.
func (h *Hub) Join(c *Client, room string) (added, live bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.closed || !h.registry.IsCurrent(c.user.ID, c.id) {
		return false, false
	}
	if _, ok := c.rooms[room]; ok {
		return false, true
	}
	h.joinLocked(c, room)
	h.updateGaugesLocked()
	return true, true
}

// Leave unsubscribes c from room and reports whether it was a member.
func (h *Hub) Leave(c *Client, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.closed {
		return false
	}
	if _, ok := c.rooms[room]; !ok {
		return false
	}
	delete(c.rooms, room)
	h.removeFromRoomLocked(c, room)
	h.registry.RemoveRoom(c.user.ID, room)
	h.updateGaugesLocked()
	return true
}

// Attached reports whether c is live and still the user's registered
// connection.
func (h *Hub) Attached(c *Client) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return !c.closed && h.registry.IsCurrent(c.user.ID, c.id)
}

// UpdateStatus stores a new self-reported status and broadcasts it to every
// connection, the sender included.
func (h *Hub) UpdateStatus(c *Client, status models.PresenceStatus) error {
	if err := h.registry.UpdateStatus(c.user.ID, status); err != nil {
		return err
	}
	h.broadcastAll(models.EventUserStatusChanged, h.statusPayload(c.user, status), nil)
	h.persistStatus(c.user.ID, status, c.id)
	return nil
}

// BroadcastToRooms implements services.Broadcaster.
func (h *Hub) BroadcastToRooms(rooms []string, event models.EventName, payload any, exceptConnIDs ...string) {
	data, err := encode(event, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", string(event)).Msg("failed to encode broadcast")
		return
	}
	h.deliver(rooms, data, exceptConnIDs)
}

// SendToUser implements services.Broadcaster.
func (h *Hub) SendToUser(userID int64, event models.EventName, payload any) bool {
	data, err := encode(event, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", string(event)).Msg("failed to encode event")
		return false
	}
	return h.deliver([]string{models.UserRoom(userID)}, data, nil) > 0
}

func (h *Hub) IsOnline(userID int64) bool {
	return h.registry.IsOnline(userID)
}

func (h *Hub) OnlineUsers() []models.OnlineUser {
	return h.registry.ListOnline()
}

func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomMembers returns the connection ids subscribed to room.
func (h *Hub) RoomMembers(room string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		ids = append(ids, c.id)
	}
	slices.Sort(ids)
	return ids
}

// Shutdown deregisters and closes every connection without broadcasting.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.registry.DeregisterConn(c.user.ID, c.id)
		h.detachLocked(c, websocket.CloseGoingAway, closeReasonShutdown)
	}
	h.updateGaugesLocked()
	h.log.Info().Msg("hub shut down")
}

// deliver sends data once to every connection in any of rooms and returns
// how many connections accepted it.
func (h *Hub) deliver(rooms []string, data []byte, except []string) int {
	var slow []*Client
	delivered := 0

	h.mu.RLock()
	seen := make(map[*Client]struct{})
	for _, room := range rooms {
		for c := range h.rooms[room] {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			if slices.Contains(except, c.id) {
				continue
			}
			if trySend(c, data) {
				delivered++
			} else {
				slow = append(slow, c)
			}
		}
	}
	h.mu.RUnlock()

	h.dropSlow(slow)
	return delivered
}

func (h *Hub) broadcastAll(event models.EventName, payload any, except *Client) {
	data, err := encode(event, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", string(event)).Msg("failed to encode broadcast")
		return
	}

	var slow []*Client
	h.mu.RLock()
	for c := range h.clients {
		if c == except {
			continue
		}
		if !trySend(c, data) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	h.dropSlow(slow)
}

func (h *Hub) sendTo(c *Client, data []byte) {
	h.mu.RLock()
	ok := c.closed || trySend(c, data)
	h.mu.RUnlock()
	if !ok {
		h.dropSlow([]*Client{c})
	}
}

// trySend must be called with h.mu held; closed clients are never in rooms.
func trySend(c *Client, data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// dropSlow detaches clients whose send buffer is full. Their write pump then
// closes the socket and the read pump deregisters them.
func (h *Hub) dropSlow(clients []*Client) {
	if len(clients) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range clients {
		if c.closed {
			continue
		}
		c.log.Warn().Msg("send buffer full, dropping connection")
		h.detachLocked(c, websocket.CloseTryAgainLater, closeReasonSlow)
	}
	h.updateGaugesLocked()
}

func (h *Hub) joinLocked(c *Client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
	h.registry.AddRoom(c.user.ID, room)
}

func (h *Hub) removeFromRoomLocked(c *Client, room string) {
	members := h.rooms[room]
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// detachLocked removes c from every room and closes its send queue.
func (h *Hub) detachLocked(c *Client, code int, reason string) {
	for room := range c.rooms {
		h.removeFromRoomLocked(c, room)
	}
	c.rooms = make(map[string]struct{})
	delete(h.clients, c)
	c.closed = true
	c.closeCode = code
	c.closeReason = reason
	close(c.send)
}

func (h *Hub) updateGaugesLocked() {
	metrics.WSConnections.Set(float64(len(h.clients)))
	metrics.WSRooms.Set(float64(len(h.rooms)))
}

func (h *Hub) statusPayload(user *models.User, status models.PresenceStatus) models.UserStatusPayload {
	return models.UserStatusPayload{
		UserID:    user.ID,
		Name:      user.Name,
		Avatar:    user.Avatar,
		Status:    status,
		Timestamp: h.timestamp(),
	}
}

func (h *Hub) timestamp() string {
	return h.now().UTC().Format(time.RFC3339)
}

// persistStatus mirrors presence to the database. Failures are logged only.
func (h *Hub) persistStatus(userID int64, status models.PresenceStatus, connID string) {
	if h.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.store.UpsertOnlineStatus(ctx, userID, status, connID); err != nil {
		h.log.Warn().Err(err).Int64("user_id", userID).Msg("failed to persist online status")
	}
}
