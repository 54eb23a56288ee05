// Package testutil provides an in-memory database.Database for package tests.
package testutil

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"taskflow/internal/database"
	"taskflow/internal/models"
)

type DB struct {
	mu            sync.Mutex
	nextID        int64
	users         map[int64]*models.User
	projects      map[int64]*models.Project
	members       map[int64]map[int64]bool
	tasks         map[int64]*models.Task
	comments      []*models.Comment
	messages      map[int64]*models.ProjectMessage
	activity      []models.TaskActivity
	notifications map[int64]*models.Notification
	onlineStatus  map[int64]models.PresenceStatus
	failures      map[string]error
	calls         map[string]int
}

var _ database.Database = (*DB)(nil)

func NewDB() *DB {
	return &DB{
		nextID:        1000,
		users:         make(map[int64]*models.User),
		projects:      make(map[int64]*models.Project),
		members:       make(map[int64]map[int64]bool),
		tasks:         make(map[int64]*models.Task),
		messages:      make(map[int64]*models.ProjectMessage),
		notifications: make(map[int64]*models.Notification),
		onlineStatus:  make(map[int64]models.PresenceStatus),
		failures:      make(map[string]error),
		calls:         make(map[string]int),
	}
}

// FailOn makes every subsequent call to the named method return err.
// Passing nil clears the failure.
func (db *DB) FailOn(method string, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err == nil {
		delete(db.failures, method)
		return
	}
	db.failures[method] = err
}

// Calls reports how many times the named method has been invoked.
func (db *DB) Calls(method string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.calls[method]
}

func (db *DB) enter(method string) error {
	db.calls[method]++
	return db.failures[method]
}

// Seeding helpers

func (db *DB) AddUser(u models.User) *models.User {
	db.mu.Lock()
	defer db.mu.Unlock()
	if u.Role == "" {
		u.Role = models.RoleMember
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	stored := u
	db.users[u.ID] = &stored
	return &stored
}

func (db *DB) AddProject(p models.Project, memberIDs ...int64) {
	db.mu.Lock()
	defer db.mu.Unlock()
	stored := p
	db.projects[p.ID] = &stored
	if db.members[p.ID] == nil {
		db.members[p.ID] = make(map[int64]bool)
	}
	for _, id := range memberIDs {
		db.members[p.ID][id] = true
	}
}

func (db *DB) RemoveProjectMember(projectID, userID int64) {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.members[projectID], userID)
}

func (db *DB) AddTask(t models.Task) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if t.Status == "" {
		t.Status = models.TaskStatusTodo
	}
	stored := t
	db.tasks[t.ID] = &stored
}

func (db *DB) Task(id int64) models.Task {
	db.mu.Lock()
	defer db.mu.Unlock()
	return *db.tasks[id]
}

func (db *DB) Comments() []*models.Comment {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]*models.Comment(nil), db.comments...)
}

// Messages returns the stored messages of a project in id order.
func (db *DB) Messages(projectID int64) []*models.ProjectMessage {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []*models.ProjectMessage
	for _, m := range db.messages {
		if m.ProjectID == projectID {
			c := *m
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (db *DB) Activity() []models.TaskActivity {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]models.TaskActivity(nil), db.activity...)
}

func (db *DB) Notifications(userID int64) []*models.Notification {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []*models.Notification
	for _, n := range db.notifications {
		if n.UserID == userID {
			c := *n
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (db *DB) OnlineStatus(userID int64) models.PresenceStatus {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.onlineStatus[userID]
}

func (db *DB) id() int64 {
	db.nextID++
	return db.nextID
}

// database.Database

func (db *DB) Ping(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.enter("Ping")
}

func (db *DB) Close() error { return nil }

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.enter("GetUserByEmail"); err != nil {
		return nil, err
	}
	for _, u := range db.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, database.ErrNotFound
}

func (db *DB) CreateUser(ctx context.Context, req *models.RegisterRequest, passwordHash string) (*models.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.enter("CreateUser"); err != nil {
		return nil, err
	}
	u := &models.User{
		ID:           db.id(),
		Name:         req.Name,
		Email:        req.Email,
		Role:         models.RoleMember,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	db.users[u.ID] = u
	c := *u
	return &c, nil
}

func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.enter("GetUserByID"); err != nil {
		return nil, err
	}
	u, ok := db.users[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (db *DB) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.enter("GetProject"); err != nil {
		return nil, err
	}
	p, ok := db.projects[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (db *DB) IsProjectMember(ctx context.Context, userID, projectID int64) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.enter("IsProjectMember"); err != nil {
		return false, err
	}
	p, ok := db.projects[projectID]
	if !ok {
		return false, nil
	}
	return p.CreatedBy == userID || db.members[projectID][userID], nil
}

func (db *DB) ListProjectMemberIDs(ctx context.Context, projectID int64) ([]int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.enter("ListProjectMemberIDs"); err != nil {
		return nil, err
	}
	seen := make(map[int64]bool)
	if p, ok := db.projects[projectID]; ok {
		seen[p.CreatedBy] = true
	}
	for id := range db.members[projectID] {
		seen[id] = true
	}
	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (db *DB) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.enter("GetTask"); err != nil {
		return nil, err
	}
	t, ok := db.tasks[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	c := *t
	return &c, nil
}

func (db *DB) UpdateTaskStatus(ctx context.Context, id int64, status models.TaskStatus) (models.TaskStatus, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.enter("UpdateTaskStatus"); err != nil {
		return "", err
	}
	t, ok := db.tasks[id]
	if !ok {
		return "", database.ErrNotFound
	}
	previous := t.Status
	t.Status = status
	t.UpdatedAt = time.Now()
	return previous, nil
}

func (db *DB) RecordTaskActivity(ctx context.Context, activity *models.TaskActivity) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.enter("RecordTaskActivity"); err != nil {
		return err
	}
	db.activity = append(db.activity, *activity)
	return nil
}

func (db *DB) CreateComment(ctx context.Context, taskID, userID int64, content string) (*models.Comment, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.enter("CreateComment"); err != nil {
		return nil, err
	}
	c := &models.Comment{
		ID:        db.id(),
		TaskID:    taskID,
		UserID:    userID,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if u, ok := db.users[userID]; ok {
		c.Author = u.Public()
	}
	db.comments = append(db.comments, c)
	out := *c
	return &out, nil
}

func (db *DB) CreateProjectMessage(ctx context.Context, projectID, userID int64, content string) (*models.ProjectMessage, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.enter("CreateProjectMessage"); err != nil {
		return nil, err
	}
	m := &models.ProjectMessage{
		ID:        db.id(),
		ProjectID: projectID,
		UserID:    userID,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if u, ok := db.users[userID]; ok {
		m.Author = u.Public()
	}
	db.messages[m.ID] = m
	out := *m
	return &out, nil
}

func (db *DB) GetProjectMessage(ctx context.Context, projectID, id int64) (*models.ProjectMessage, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.enter("GetProjectMessage"); err != nil {
		return nil, err
	}
	m, ok := db.messages[id]
	if !ok || m.ProjectID != projectID {
		return nil, database.ErrNotFound
	}
	out := *m
	return &out, nil
}

func (db *DB) UpdateProjectMessage(ctx context.Context, projectID, id int64, content string) (*models.ProjectMessage, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.enter("UpdateProjectMessage"); err != nil {
		return nil, err
	}
	m, ok := db.messages[id]
	if !ok || m.ProjectID != projectID {
		return nil, database.ErrNotFound
	}
	now := time.Now()
	m.Content = content
	m.IsEdited = true
	m.EditedAt = &now
	out := *m
	return &out, nil
}

func (db *DB) DeleteProjectMessage(ctx context.Context, projectID, id int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.enter("DeleteProjectMessage"); err != nil {
		return err
	}
	m, ok := db.messages[id]
	if !ok || m.ProjectID != projectID {
		return database.ErrNotFound
	}
	delete(db.messages, id)
	for nid, n := range db.notifications {
		if n.MessageID != nil && *n.MessageID == id {
			delete(db.notifications, nid)
		}
	}
	return nil
}

func (db *DB) ListProjectMessages(ctx context.Context, projectID int64, before time.Time, limit int) ([]*models.ProjectMessage, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.enter("ListProjectMessages"); err != nil {
		return nil, err
	}
	var out []*models.ProjectMessage
	for _, m := range db.messages {
		if m.ProjectID != projectID {
			continue
		}
		if !before.IsZero() && !m.CreatedAt.Before(before) {
			continue
		}
		c := *m
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (db *DB) CreateNotification(ctx context.Context, req *models.CreateNotificationRequest) (*models.Notification, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.enter("CreateNotification"); err != nil {
		return nil, err
	}
	data := req.Data
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}
	priority := req.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}
	n := &models.Notification{
		ID:        db.id(),
		UserID:    req.UserID,
		Type:      req.Type,
		Title:     req.Title,
		Message:   req.Message,
		Data:      data,
		ProjectID: req.ProjectID,
		TaskID:    req.TaskID,
		MessageID: req.MessageID,
		ActionURL: req.ActionURL,
		Priority:  priority,
		CreatedAt: time.Now(),
	}
	db.notifications[n.ID] = n
	out := *n
	return &out, nil
}

func (db *DB) MarkNotificationRead(ctx context.Context, id, userID int64) (*models.Notification, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.enter("MarkNotificationRead"); err != nil {
		return nil, err
	}
	n, ok := db.notifications[id]
	if !ok || n.UserID != userID || n.ReadAt != nil {
		return nil, database.ErrNotFound
	}
	now := time.Now()
	n.ReadAt = &now
	out := *n
	return &out, nil
}

func (db *DB) MarkAllNotificationsRead(ctx context.Context, userID int64) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.enter("MarkAllNotificationsRead"); err != nil {
		return 0, err
	}
	var count int64
	now := time.Now()
	for _, n := range db.notifications {
		if n.UserID == userID && n.ReadAt == nil {
			n.ReadAt = &now
			count++
		}
	}
	return count, nil
}

func priorityRank(p models.NotificationPriority) int {
	switch p {
	case models.PriorityUrgent:
		return 0
	case models.PriorityHigh:
		return 1
	case models.PriorityNormal:
		return 2
	default:
		return 3
	}
}

func (db *DB) ListNotifications(ctx context.Context, userID int64, filter models.NotificationFilter) ([]*models.Notification, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.enter("ListNotifications"); err != nil {
		return nil, err
	}
	var out []*models.Notification
	for _, n := range db.notifications {
		if n.UserID != userID {
			continue
		}
		if filter.Type != "" && filter.Type != "all" && n.Type != filter.Type {
			continue
		}
		if filter.UnreadOnly && n.ReadAt != nil {
			continue
		}
		c := *n
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := priorityRank(out[i].Priority), priorityRank(out[j].Priority)
		if ri != rj {
			return ri < rj
		}
		return out[i].ID > out[j].ID
	})
	if filter.Offset >= len(out) {
		return []*models.Notification{}, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (db *DB) CountUnreadNotifications(ctx context.Context, userID int64) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.enter("CountUnreadNotifications"); err != nil {
		return 0, err
	}
	count := 0
	for _, n := range db.notifications {
		if n.UserID == userID && n.ReadAt == nil {
			count++
		}
	}
	return count, nil
}

func (db *DB) DeleteNotification(ctx context.Context, id, userID int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.enter("DeleteNotification"); err != nil {
		return err
	}
	n, ok := db.notifications[id]
	if !ok || n.UserID != userID {
		return database.ErrNotFound
	}
	delete(db.notifications, id)
	return nil
}

func (db *DB) UpsertOnlineStatus(ctx context.Context, userID int64, status models.PresenceStatus, connID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.enter("UpsertOnlineStatus"); err != nil {
		return err
	}
	db.onlineStatus[userID] = status
	return nil
}
