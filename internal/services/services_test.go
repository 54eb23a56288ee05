package services

import (
	"sync"

	"taskflow/internal/models"
	"taskflow/internal/testutil"
)

type sent struct {
	Rooms   []string
	UserID  int64
	Event   models.EventName
	Payload any
	Except  []string
}

// recorder is a Broadcaster that remembers every call.
type recorder struct {
	mu     sync.Mutex
	online map[int64]bool
	sent   []sent
}

func newRecorder(online ...int64) *recorder {
	r := &recorder{online: make(map[int64]bool)}
	for _, id := range online {
		r.online[id] = true
	}
	return r
}

func (r *recorder) BroadcastToRooms(rooms []string, event models.EventName, payload any, except ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sent{Rooms: rooms, Event: event, Payload: payload, Except: except})
}

func (r *recorder) SendToUser(userID int64, event models.EventName, payload any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.online[userID] {
		return false
	}
	r.sent = append(r.sent, sent{Rooms: []string{models.UserRoom(userID)}, UserID: userID, Event: event, Payload: payload})
	return true
}

func (r *recorder) IsOnline(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.online[userID]
}

func (r *recorder) events() []sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sent(nil), r.sent...)
}

func ptr(v int64) *int64 { return &v }

// Fixture:
//
//	project 7 created by owner(10), members: member(11)
//	task 42 in project 7, created by owner, assigned to assignee(12)
//	task 43 without project, created by assignee
//	outsider(13) belongs to nothing; manager(14) has role manager
var (
	owner    = &models.User{ID: 10, Name: "Olive Owner", Role: models.RoleMember}
	member   = &models.User{ID: 11, Name: "Mo Member", Role: models.RoleMember}
	assignee = &models.User{ID: 12, Name: "Asha Assignee", Role: models.RoleMember}
	outsider = &models.User{ID: 13, Name: "Otto Outsider", Role: models.RoleMember}
	manager  = &models.User{ID: 14, Name: "Mia Manager", Role: models.RoleManager}
)

func seed() *testutil.DB {
	db := testutil.NewDB()
	for _, u := range []*models.User{owner, member, assignee, outsider, manager} {
		db.AddUser(*u)
	}
	db.AddProject(models.Project{ID: 7, Name: "Apollo", CreatedBy: owner.ID}, member.ID)
	db.AddTask(models.Task{ID: 42, Title: "Launch", CreatedBy: ptr(owner.ID), AssigneeID: ptr(assignee.ID), ProjectID: ptr(7)})
	db.AddTask(models.Task{ID: 43, Title: "Solo", CreatedBy: ptr(assignee.ID)})
	return db
}
