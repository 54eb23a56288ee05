// Package presence tracks which users are connected to this process, the
// rooms their connection has joined and their self-reported status.
//
// A user has at most one entry: registering a second connection for the same
// user replaces the first (last connect wins). All methods are safe for
// concurrent use and every read returns a copy.
package presence

import (
	"errors"
	"sort"
	"sync"
	"time"

	"taskflow/internal/models"
)

var (
	ErrInvalidStatus = errors.New("invalid status: must be one of online, away, busy, offline")
	ErrNotOnline     = errors.New("user is not online")
)

// Handle identifies the live connection behind an entry.
type Handle interface {
	ID() string
}

type entry struct {
	user        models.PublicUser
	conn        Handle
	rooms       map[string]struct{}
	status      models.PresenceStatus
	connectedAt time.Time
}

// Entry is a point-in-time copy of a registry entry.
type Entry struct {
	User        models.PublicUser
	Conn        Handle
	Rooms       []string
	Status      models.PresenceStatus
	ConnectedAt time.Time
}

type Registry struct {
	mu      sync.RWMutex
	entries map[int64]*entry
	now     func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[int64]*entry),
		now:     time.Now,
	}
}

// Register inserts or overwrites the entry for user. When a different
// connection was registered for the same user it is returned so the caller
// can close it.
func (r *Registry) Register(user models.PublicUser, conn Handle) (previous Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.entries[user.ID]; ok && old.conn.ID() != conn.ID() {
		previous = old.conn
	}
	r.entries[user.ID] = &entry{
		user:        user,
		conn:        conn,
		rooms:       make(map[string]struct{}),
		status:      models.PresenceOnline,
		connectedAt: r.now(),
	}
	return previous
}

// Deregister removes the entry for userID. Removing an absent entry is a no-op.
func (r *Registry) Deregister(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, userID)
}

// DeregisterConn removes the entry only if it still belongs to connID, so a
// replaced connection closing late cannot evict its successor. It reports
// whether an entry was removed.
func (r *Registry) DeregisterConn(userID int64, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[userID]
	if !ok || e.conn.ID() != connID {
		return false
	}
	delete(r.entries, userID)
	return true
}

// IsCurrent reports whether connID is the registered connection for userID.
func (r *Registry) IsCurrent(userID int64, connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[userID]
	return ok && e.conn.ID() == connID
}

func (r *Registry) UpdateStatus(userID int64, status models.PresenceStatus) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[userID]
	if !ok {
		return ErrNotOnline
	}
	e.status = status
	return nil
}

// AddRoom records room membership. It reports whether the room was newly
// added; adding a room twice is a no-op.
func (r *Registry) AddRoom(userID int64, room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[userID]
	if !ok {
		return false
	}
	if _, joined := e.rooms[room]; joined {
		return false
	}
	e.rooms[room] = struct{}{}
	return true
}

// RemoveRoom drops room membership and reports whether it was present.
func (r *Registry) RemoveRoom(userID int64, room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[userID]
	if !ok {
		return false
	}
	if _, joined := e.rooms[room]; !joined {
		return false
	}
	delete(e.rooms, room)
	return true
}

// JoinedRooms returns the sorted room names for userID.
func (r *Registry) JoinedRooms(userID int64) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[userID]
	if !ok {
		return nil
	}
	return sortedRooms(e.rooms)
}

func (r *Registry) Get(userID int64) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[userID]
	if !ok {
		return Entry{}, false
	}
	return Entry{
		User:        e.user,
		Conn:        e.conn,
		Rooms:       sortedRooms(e.rooms),
		Status:      e.status,
		ConnectedAt: e.connectedAt,
	}, true
}

func (r *Registry) IsOnline(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[userID]
	return ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// ListOnline returns a snapshot of every entry ordered by user id.
func (r *Registry) ListOnline() []models.OnlineUser {
	r.mu.RLock()
	users := make([]models.OnlineUser, 0, len(r.entries))
	for id, e := range r.entries {
		users = append(users, models.OnlineUser{
			UserID:      id,
			Name:        e.user.Name,
			Avatar:      e.user.Avatar,
			Status:      e.status,
			ConnectedAt: e.connectedAt,
		})
	}
	r.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool { return users[i].UserID < users[j].UserID })
	return users
}

func sortedRooms(rooms map[string]struct{}) []string {
	out := make([]string, 0, len(rooms))
	for room := range rooms {
		out = append(out, room)
	}
	sort.Strings(out)
	return out
}
