package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskflow/internal/models"
	"taskflow/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresDB struct {
	pool *pgxpool.Pool
}

func NewPostgresDB(ctx context.Context, databaseURL string) (*PostgresDB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Logger.Info().Msg("Connected to database successfully")
	return &PostgresDB{pool: pool}, nil
}

func (db *PostgresDB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

func (db *PostgresDB) Close() error {
	db.pool.Close()
	return nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// User Repository Implementation

const userColumns = `id, name, email, COALESCE(avatar, ''), COALESCE(role, 'member'), password_hash, deleted_at, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	var role string
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &user.Avatar, &role, &user.PasswordHash, &user.DeletedAt, &user.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	user.Role = models.NormalizeRole(role)
	return user, nil
}

func (db *PostgresDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(db.pool.QueryRow(ctx, query, email))
}

func (db *PostgresDB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(db.pool.QueryRow(ctx, query, id))
}

func (db *PostgresDB) CreateUser(ctx context.Context, req *models.RegisterRequest, passwordHash string) (*models.User, error) {
	query := `
		INSERT INTO users (name, email, password_hash, avatar, role, created_at)
		VALUES ($1, $2, $3, $4, 'member', NOW())
		RETURNING ` + userColumns

	user, err := scanUser(db.pool.QueryRow(ctx, query, req.Name, req.Email, passwordHash, initials(req.Name)))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// initials builds the short avatar text stored for new users.
func initials(name string) string {
	var b strings.Builder
	count := 0
	for _, part := range strings.Fields(name) {
		r := []rune(part)
		b.WriteString(strings.ToUpper(string(r[0])))
		count++
		if count == 2 {
			break
		}
	}
	return b.String()
}

// Project Repository Implementation
func (db *PostgresDB) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	query := `SELECT id, name, COALESCE(description, ''), created_by, created_at FROM projects WHERE id = $1`

	project := &models.Project{}
	err := db.pool.QueryRow(ctx, query, id).Scan(
		&project.ID, &project.Name, &project.Description, &project.CreatedBy, &project.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return project, nil
}

func (db *PostgresDB) IsProjectMember(ctx context.Context, userID, projectID int64) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM projects p
			LEFT JOIN project_members pm ON p.id = pm.project_id AND pm.user_id = $2
			WHERE p.id = $1 AND (p.created_by = $2 OR pm.user_id IS NOT NULL)
		)`

	var exists bool
	err := db.pool.QueryRow(ctx, query, projectID, userID).Scan(&exists)
	return exists, err
}

func (db *PostgresDB) ListProjectMemberIDs(ctx context.Context, projectID int64) ([]int64, error) {
	query := `
		SELECT DISTINCT user_id FROM (
			SELECT created_by AS user_id FROM projects WHERE id = $1
			UNION
			SELECT user_id FROM project_members WHERE project_id = $1
		) AS all_members
		WHERE user_id IS NOT NULL
		ORDER BY user_id`

	rows, err := db.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

// Task Repository Implementation
func (db *PostgresDB) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	query := `
		SELECT id, title, COALESCE(description, ''), COALESCE(priority, 'medium'), status,
		       assignee, created_by, project_id, due_date, created_at, updated_at
		FROM tasks WHERE id = $1`

	task := &models.Task{}
	err := db.pool.QueryRow(ctx, query, id).Scan(
		&task.ID, &task.Title, &task.Description, &task.Priority, &task.Status,
		&task.AssigneeID, &task.CreatedBy, &task.ProjectID, &task.DueDate, &task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return task, nil
}

func (db *PostgresDB) UpdateTaskStatus(ctx context.Context, id int64, status models.TaskStatus) (models.TaskStatus, error) {
	query := `
		UPDATE tasks t SET status = $2, updated_at = NOW()
		FROM (SELECT id, status FROM tasks WHERE id = $1 FOR UPDATE) old
		WHERE t.id = old.id
		RETURNING old.status`

	var previous models.TaskStatus
	if err := db.pool.QueryRow(ctx, query, id, status).Scan(&previous); err != nil {
		return "", notFound(err)
	}
	return previous, nil
}

func (db *PostgresDB) RecordTaskActivity(ctx context.Context, activity *models.TaskActivity) error {
	query := `
		INSERT INTO task_activity (task_id, user_id, action, old_value, new_value, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())`
	_, err := db.pool.Exec(ctx, query, activity.TaskID, activity.UserID, activity.Action, activity.OldValue, activity.NewValue)
	return err
}

// Comment Repository Implementation
func (db *PostgresDB) CreateComment(ctx context.Context, taskID, userID int64, content string) (*models.Comment, error) {
	query := `
		WITH c AS (
			INSERT INTO comments (task_id, user_id, content, created_at)
			VALUES ($1, $2, $3, NOW())
			RETURNING id, task_id, user_id, content, created_at
		)
		SELECT c.id, c.task_id, c.user_id, c.content, c.created_at, u.id, u.name, COALESCE(u.avatar, '')
		FROM c JOIN users u ON u.id = c.user_id`

	comment := &models.Comment{}
	err := db.pool.QueryRow(ctx, query, taskID, userID, content).Scan(
		&comment.ID, &comment.TaskID, &comment.UserID, &comment.Content, &comment.CreatedAt,
		&comment.Author.ID, &comment.Author.Name, &comment.Author.Avatar,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	return comment, nil
}

// Project Message Repository Implementation

const projectMessageColumns = `m.id, m.project_id, m.user_id, m.message, m.is_edited, m.edited_at, m.created_at,
	u.id, u.name, COALESCE(u.avatar, '')`

const projectMessageSelect = `SELECT ` + projectMessageColumns + ` FROM project_messages m JOIN users u ON u.id = m.user_id`

func scanProjectMessage(row pgx.Row) (*models.ProjectMessage, error) {
	m := &models.ProjectMessage{}
	err := row.Scan(
		&m.ID, &m.ProjectID, &m.UserID, &m.Content, &m.IsEdited, &m.EditedAt, &m.CreatedAt,
		&m.Author.ID, &m.Author.Name, &m.Author.Avatar,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return m, nil
}

func (db *PostgresDB) CreateProjectMessage(ctx context.Context, projectID, userID int64, content string) (*models.ProjectMessage, error) {
	query := `
		WITH m AS (
			INSERT INTO project_messages (project_id, user_id, message, created_at)
			VALUES ($1, $2, $3, NOW())
			RETURNING *
		)
		SELECT ` + projectMessageColumns + ` FROM m JOIN users u ON u.id = m.user_id`

	m, err := scanProjectMessage(db.pool.QueryRow(ctx, query, projectID, userID, content))
	if err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}
	return m, nil
}

func (db *PostgresDB) GetProjectMessage(ctx context.Context, projectID, id int64) (*models.ProjectMessage, error) {
	return scanProjectMessage(db.pool.QueryRow(ctx, projectMessageSelect+` WHERE m.project_id = $1 AND m.id = $2`, projectID, id))
}

func (db *PostgresDB) UpdateProjectMessage(ctx context.Context, projectID, id int64, content string) (*models.ProjectMessage, error) {
	query := `
		WITH m AS (
			UPDATE project_messages SET message = $3, is_edited = TRUE, edited_at = NOW()
			WHERE project_id = $1 AND id = $2
			RETURNING *
		)
		SELECT ` + projectMessageColumns + ` FROM m JOIN users u ON u.id = m.user_id`

	m, err := scanProjectMessage(db.pool.QueryRow(ctx, query, projectID, id, content))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update message: %w", err)
	}
	return m, nil
}

func (db *PostgresDB) DeleteProjectMessage(ctx context.Context, projectID, id int64) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM project_messages WHERE project_id = $1 AND id = $2`, projectID, id)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *PostgresDB) ListProjectMessages(ctx context.Context, projectID int64, before time.Time, limit int) ([]*models.ProjectMessage, error) {
	args := []any{projectID, limit}
	query := projectMessageSelect + ` WHERE m.project_id = $1`
	if !before.IsZero() {
		query += ` AND m.created_at < $3`
		args = append(args, before)
	}
	query += ` ORDER BY m.created_at DESC, m.id DESC LIMIT $2`

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.ProjectMessage
	for rows.Next() {
		m, err := scanProjectMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// Notification Repository Implementation

const notificationColumns = `id, user_id, type, title, message, data, project_id, task_id, message_id,
	COALESCE(action_url, ''), priority, read_at, created_at`

func scanNotification(row pgx.Row) (*models.Notification, error) {
	n := &models.Notification{}
	var data []byte
	err := row.Scan(
		&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &data, &n.ProjectID, &n.TaskID, &n.MessageID,
		&n.ActionURL, &n.Priority, &n.ReadAt, &n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	n.Data = data
	return n, nil
}

func (db *PostgresDB) CreateNotification(ctx context.Context, req *models.CreateNotificationRequest) (*models.Notification, error) {
	data := "{}"
	if len(req.Data) > 0 {
		data = string(req.Data)
	}
	priority := req.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}

	query := `
		INSERT INTO notifications (user_id, type, title, message, data, project_id, task_id, message_id, action_url, priority)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8, NULLIF($9, ''), $10)
		RETURNING ` + notificationColumns

	n, err := scanNotification(db.pool.QueryRow(ctx, query,
		req.UserID, req.Type, req.Title, req.Message, data,
		req.ProjectID, req.TaskID, req.MessageID, req.ActionURL, priority,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	return n, nil
}

func (db *PostgresDB) MarkNotificationRead(ctx context.Context, id, userID int64) (*models.Notification, error) {
	query := `
		UPDATE notifications SET read_at = NOW()
		WHERE id = $1 AND user_id = $2 AND read_at IS NULL
		RETURNING ` + notificationColumns

	n, err := scanNotification(db.pool.QueryRow(ctx, query, id, userID))
	if err != nil {
		return nil, notFound(err)
	}
	return n, nil
}

func (db *PostgresDB) MarkAllNotificationsRead(ctx context.Context, userID int64) (int64, error) {
	tag, err := db.pool.Exec(ctx, `UPDATE notifications SET read_at = NOW() WHERE user_id = $1 AND read_at IS NULL`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (db *PostgresDB) ListNotifications(ctx context.Context, userID int64, filter models.NotificationFilter) ([]*models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1`
	args := []any{userID}

	if filter.Type != "" && filter.Type != "all" {
		args = append(args, filter.Type)
		query += fmt.Sprintf(` AND type = $%d`, len(args))
	}
	if filter.UnreadOnly {
		query += ` AND read_at IS NULL`
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(`
		ORDER BY
			CASE priority WHEN 'urgent' THEN 0 WHEN 'high' THEN 1 WHEN 'normal' THEN 2 ELSE 3 END,
			created_at DESC
		LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := make([]*models.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (db *PostgresDB) CountUnreadNotifications(ctx context.Context, userID int64) (int, error) {
	var count int
	err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read_at IS NULL`, userID).Scan(&count)
	return count, err
}

func (db *PostgresDB) DeleteNotification(ctx context.Context, id, userID int64) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Presence Repository Implementation
func (db *PostgresDB) UpsertOnlineStatus(ctx context.Context, userID int64, status models.PresenceStatus, connID string) error {
	query := `
		INSERT INTO user_online_status (user_id, status, last_activity, socket_id, updated_at)
		VALUES ($1, $2, NOW(), NULLIF($3, ''), NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET status = EXCLUDED.status, last_activity = NOW(), socket_id = EXCLUDED.socket_id, updated_at = NOW()`

	_, err := db.pool.Exec(ctx, query, userID, status, connID)
	return err
}
