package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"taskflow/internal/config"
	"taskflow/internal/models"
	"taskflow/internal/presence"
	"taskflow/internal/services"
	"taskflow/internal/testutil"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testWSConfig = config.WebSocketConfig{
	PingInterval: 25 * time.Second,
	PongTimeout:  60 * time.Second,
	WriteTimeout: 10 * time.Second,
	SendBuffer:   64,
}

func ptr(v int64) *int64 { return &v }

// Fixture:
//
//	project 7 created by alice(1), members: bob(2)
//	project 8 created by dave(4)
//	task 42 in project 7, created by alice, assigned to bob
//	carol(3) belongs to nothing; mona(5) is a manager
var (
	alice = &models.User{ID: 1, Name: "Alice", Role: models.RoleMember}
	bob   = &models.User{ID: 2, Name: "Bob", Role: models.RoleMember}
	carol = &models.User{ID: 3, Name: "Carol", Role: models.RoleMember}
	dave  = &models.User{ID: 4, Name: "Dave", Role: models.RoleMember}
	mona  = &models.User{ID: 5, Name: "Mona", Role: models.RoleManager}
)

type fixture struct {
	db       *testutil.DB
	registry *presence.Registry
	hub      *Hub
	router   *Router
	notes    *services.NotificationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB()
	for _, u := range []*models.User{alice, bob, carol, dave, mona} {
		db.AddUser(*u)
	}
	db.AddProject(models.Project{ID: 7, Name: "Apollo", CreatedBy: alice.ID}, bob.ID)
	db.AddProject(models.Project{ID: 8, Name: "Gemini", CreatedBy: dave.ID})
	db.AddTask(models.Task{ID: 42, Title: "Launch", CreatedBy: ptr(alice.ID), AssigneeID: ptr(bob.ID), ProjectID: ptr(7)})

	registry := presence.NewRegistry()
	hub := NewHub(registry, db)
	access := services.NewAccessService(db)
	tasks := services.NewTaskService(db, access, hub)
	notes := services.NewNotificationService(db, hub)
	messages := services.NewMessageService(db, access, notes, hub)

	return &fixture{
		db:       db,
		registry: registry,
		hub:      hub,
		router:   NewRouter(hub, NewCoordinator(hub, access), tasks, messages, notes),
		notes:    notes,
	}
}

// connect registers a client without a socket and discards its greeting.
func (f *fixture) connect(user *models.User) *Client {
	return f.connectWith(user, testWSConfig)
}

func (f *fixture) connectWith(user *models.User, cfg config.WebSocketConfig) *Client {
	c := NewClient(f.hub, nil, user, cfg)
	f.hub.Connect(c)
	drain(c)
	return c
}

func (f *fixture) emit(c *Client, event models.EventName, data any) {
	raw, err := json.Marshal(map[string]any{"event": event, "data": data})
	if err != nil {
		panic(err)
	}
	f.router.Handle(context.Background(), c, raw)
}

type received struct {
	Event models.EventName
	Data  json.RawMessage
}

func (r received) decode(v any) {
	if err := json.Unmarshal(r.Data, v); err != nil {
		panic(err)
	}
}

// drain returns every queued event without blocking.
func drain(c *Client) []received {
	var out []received
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return out
			}
			var env models.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				panic(err)
			}
			out = append(out, received{Event: env.Event, Data: env.Data})
		default:
			return out
		}
	}
}

func names(events []received) []models.EventName {
	out := make([]models.EventName, 0, len(events))
	for _, e := range events {
		out = append(out, e.Event)
	}
	return out
}

func count(events []received, name models.EventName) int {
	n := 0
	for _, e := range events {
		if e.Event == name {
			n++
		}
	}
	return n
}

func isClosed(c *Client) bool {
	for {
		select {
		case _, ok := <-c.send:
			if !ok {
				return true
			}
		default:
			return false
		}
	}
}

func TestConnectGreetsAndAnnounces(t *testing.T) {
	f := newFixture(t)
	observer := f.connect(bob)

	c := NewClient(f.hub, nil, alice, testWSConfig)
	f.hub.Connect(c)

	greeting := drain(c)
	require.Equal(t, []models.EventName{models.EventUsersOnlineList}, names(greeting))
	var list models.OnlineListPayload
	greeting[0].decode(&list)
	require.Len(t, list.Users, 1, "the online list names everyone else")
	assert.Equal(t, bob.ID, list.Users[0].UserID)

	seen := drain(observer)
	require.Equal(t, []models.EventName{models.EventUserOnline}, names(seen))
	var online models.UserStatusPayload
	seen[0].decode(&online)
	assert.Equal(t, alice.ID, online.UserID)
	assert.Equal(t, models.PresenceOnline, online.Status)

	assert.Equal(t, models.PresenceOnline, f.db.OnlineStatus(alice.ID))
	assert.Equal(t, []string{c.ID()}, f.hub.RoomMembers("user:1"))
}

func TestReconnectReplacesPreviousConnection(t *testing.T) {
	f := newFixture(t)
	observer := f.connect(bob)

	first := f.connect(alice)
	f.emit(first, models.EventProjectJoin, map[string]int64{"projectId": 7})
	drain(first)
	drain(observer)

	second := f.connect(alice)

	entry, ok := f.registry.Get(alice.ID)
	require.True(t, ok)
	assert.Equal(t, second.ID(), entry.Conn.ID(), "last connect wins")
	assert.Equal(t, 2, f.registry.Count())

	assert.True(t, isClosed(first), "the replaced connection is closed")
	assert.Equal(t, closeReasonReplaced, first.closeReason)
	assert.NotContains(t, f.hub.RoomMembers("project:7"), first.ID())
	assert.Equal(t, []string{second.ID()}, f.hub.RoomMembers("user:1"))

	assert.Empty(t, drain(observer), "no online or offline broadcast on replacement")

	f.hub.Disconnect(first)
	assert.True(t, f.registry.IsOnline(alice.ID), "a late close of the old connection keeps the new entry")
	assert.Empty(t, drain(observer))
}

func TestDisconnectCleansUpAndAnnouncesOnce(t *testing.T) {
	f := newFixture(t)
	observer := f.connect(bob)
	c := f.connect(alice)
	f.emit(c, models.EventProjectJoin, map[string]int64{"projectId": 7})
	drain(observer)

	f.hub.Disconnect(c)
	f.hub.Disconnect(c)

	assert.False(t, f.registry.IsOnline(alice.ID))
	assert.Empty(t, f.hub.RoomMembers("project:7"), "bob never joined; alice has left")
	assert.Equal(t, 1, count(drain(observer), models.EventUserOffline))
	assert.Equal(t, models.PresenceOffline, f.db.OnlineStatus(alice.ID))
	assert.Equal(t, 1, f.hub.ConnectionCount())
}

func TestJoinAfterDisconnectIsNoop(t *testing.T) {
	f := newFixture(t)
	c := f.connect(alice)
	f.hub.Disconnect(c)

	added, live := f.hub.Join(c, "project:7")
	assert.False(t, added)
	assert.False(t, live)
	assert.Empty(t, f.hub.RoomMembers("project:7"))

	f.emit(c, models.EventProjectJoin, map[string]int64{"projectId": 7})
	assert.Empty(t, f.hub.RoomMembers("project:7"))
	assert.False(t, f.registry.IsOnline(alice.ID))
}

func TestBroadcastDeliversOncePerConnection(t *testing.T) {
	f := newFixture(t)
	c := f.connect(alice)
	f.hub.Join(c, "task:42")
	f.hub.Join(c, "project:7")

	f.hub.BroadcastToRooms([]string{"task:42", "project:7"}, models.EventCommentAdded, map[string]string{"x": "y"})
	assert.Equal(t, 1, count(drain(c), models.EventCommentAdded))

	f.hub.BroadcastToRooms([]string{"task:42"}, models.EventCommentAdded, nil, c.ID())
	assert.Empty(t, drain(c))
}

func TestSendToUser(t *testing.T) {
	f := newFixture(t)
	c := f.connect(alice)

	assert.True(t, f.hub.SendToUser(alice.ID, models.EventNotificationNew, map[string]int{"id": 1}))
	assert.Equal(t, []models.EventName{models.EventNotificationNew}, names(drain(c)))
	assert.False(t, f.hub.SendToUser(bob.ID, models.EventNotificationNew, nil))
}

func TestSlowConsumerIsDropped(t *testing.T) {
	f := newFixture(t)
	cfg := testWSConfig
	cfg.SendBuffer = 1
	slow := f.connectWith(bob, cfg)
	f.hub.Join(slow, "project:7")

	f.hub.BroadcastToRooms([]string{"project:7"}, models.EventCommentAdded, 1)
	f.hub.BroadcastToRooms([]string{"project:7"}, models.EventCommentAdded, 2)

	assert.Empty(t, f.hub.RoomMembers("project:7"))
	assert.Equal(t, closeReasonSlow, slow.closeReason)
	assert.Equal(t, websocket.CloseTryAgainLater, slow.closeCode)
	assert.True(t, isClosed(slow))

	f.hub.Disconnect(slow)
	assert.False(t, f.registry.IsOnline(bob.ID))
}

func TestReconnectAfterSlowDropIsNotAnnounced(t *testing.T) {
	f := newFixture(t)
	observer := f.connect(alice)
	cfg := testWSConfig
	cfg.SendBuffer = 1
	slow := f.connectWith(bob, cfg)
	f.hub.Join(slow, "project:7")
	drain(observer)

	f.hub.BroadcastToRooms([]string{"project:7"}, models.EventCommentAdded, 1)
	f.hub.BroadcastToRooms([]string{"project:7"}, models.EventCommentAdded, 2)
	require.True(t, isClosed(slow))
	require.True(t, f.registry.IsOnline(bob.ID), "dropped but its read loop has not exited yet")

	fresh := f.connect(bob)

	entry, ok := f.registry.Get(bob.ID)
	require.True(t, ok)
	assert.Equal(t, fresh.ID(), entry.Conn.ID())
	assert.Equal(t, closeReasonSlow, slow.closeReason, "the drop reason is kept")
	assert.Empty(t, drain(observer), "bob never went offline")

	f.hub.Disconnect(slow)
	assert.True(t, f.registry.IsOnline(bob.ID))
	assert.Empty(t, drain(observer))
	assert.Equal(t, 2, f.hub.ConnectionCount())
}

func TestShutdownClosesEveryone(t *testing.T) {
	f := newFixture(t)
	a := f.connect(alice)
	b := f.connect(bob)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.hub.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	assert.True(t, isClosed(a))
	assert.True(t, isClosed(b))
	assert.Equal(t, closeReasonShutdown, a.closeReason)
	assert.Zero(t, f.registry.Count())
	assert.Zero(t, f.hub.ConnectionCount())
}

func TestConcurrentLifecycleStaysConsistent(t *testing.T) {
	f := newFixture(t)
	cfg := testWSConfig
	cfg.SendBuffer = 1024
	var wg sync.WaitGroup

	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := alice
			if i%2 == 0 {
				user = bob
			}
			c := NewClient(f.hub, nil, user, cfg)
			f.hub.Connect(c)
			f.emit(c, models.EventProjectJoin, map[string]int64{"projectId": 7})
			f.emit(c, models.EventPing, nil)
			if i%3 == 0 {
				f.hub.Disconnect(c)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, f.registry.Count(), 2)
	for _, id := range f.hub.RoomMembers("project:7") {
		var owner int64
		for _, u := range []*models.User{alice, bob} {
			if f.registry.IsCurrent(u.ID, id) {
				owner = u.ID
			}
		}
		assert.NotZero(t, owner, fmt.Sprintf("room member %s must be a registered connection", id))
	}
	assert.Equal(t, f.registry.Count(), f.hub.ConnectionCount())
}
