package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"taskflow/internal/database"
	"taskflow/internal/metrics"
	"taskflow/internal/models"
	"taskflow/pkg/logger"
)

const (
	defaultNotificationLimit = 20
	maxNotificationLimit     = 100
)

// NotificationService stores notifications and pushes them to recipients
// that are connected. Storage is authoritative; live delivery is at most once
// and never retried.
type NotificationService struct {
	db     database.Database
	events Broadcaster
	log    zerolog.Logger
}

func NewNotificationService(db database.Database, events Broadcaster) *NotificationService {
	return &NotificationService{
		db:     db,
		events: events,
		log:    logger.WithComponent("notifications"),
	}
}

// Deliver persists the notification and, only if the recipient is online,
// emits notification:new to their personal room.
func (s *NotificationService) Deliver(ctx context.Context, req *models.CreateNotificationRequest) (*models.Notification, error) {
	if err := validateNotification(req); err != nil {
		return nil, err
	}

	notification, err := s.db.CreateNotification(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}

	delivery := "stored"
	if s.events.IsOnline(notification.UserID) &&
		s.events.SendToUser(notification.UserID, models.EventNotificationNew, notification) {
		delivery = "live"
	}
	metrics.NotificationsTotal.WithLabelValues(delivery).Inc()

	s.log.Debug().
		Int64("notification_id", notification.ID).
		Int64("user_id", notification.UserID).
		Str("delivery", delivery).
		Msg("notification delivered")
	return notification, nil
}

// NotifyProjectMembers delivers a copy of req to the project creator and every
// member except excludeUserID.
func (s *NotificationService) NotifyProjectMembers(ctx context.Context, projectID int64, req models.CreateNotificationRequest, excludeUserID int64) ([]*models.Notification, error) {
	userIDs, err := s.db.ListProjectMemberIDs(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list project members: %w", err)
	}

	req.ProjectID = &projectID
	var out []*models.Notification
	for _, userID := range userIDs {
		if userID == excludeUserID {
			continue
		}
		n := req
		n.UserID = userID
		notification, err := s.Deliver(ctx, &n)
		if err != nil {
			return out, err
		}
		out = append(out, notification)
	}
	return out, nil
}

// List returns one page of the user's notifications, urgent first then most
// recent, together with the unread count.
func (s *NotificationService) List(ctx context.Context, userID int64, typ string, unreadOnly bool, page, limit int) (*models.NotificationPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}

	// One extra row tells us whether another page exists.
	notifications, err := s.db.ListNotifications(ctx, userID, models.NotificationFilter{
		Type:       typ,
		UnreadOnly: unreadOnly,
		Limit:      limit + 1,
		Offset:     (page - 1) * limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	hasMore := len(notifications) > limit
	if hasMore {
		notifications = notifications[:limit]
	}

	unread, err := s.db.CountUnreadNotifications(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count unread notifications: %w", err)
	}

	return &models.NotificationPage{
		Notifications: notifications,
		UnreadCount:   unread,
		Page:          page,
		Limit:         limit,
		HasMore:       hasMore,
	}, nil
}

// MarkRead sets the read timestamp on one of the user's own unread
// notifications and acknowledges on the user's personal room.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID int64) error {
	if notificationID <= 0 {
		return Validation("notificationId is required")
	}
	if _, err := s.db.MarkNotificationRead(ctx, notificationID, userID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return notFound("notification not found or already read")
		}
		return fmt.Errorf("mark notification read: %w", err)
	}

	s.events.SendToUser(userID, models.EventNotificationMarkedRead, models.NotificationIDPayload{NotificationID: notificationID})
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	updated, err := s.db.MarkAllNotificationsRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}

	s.events.SendToUser(userID, models.EventNotificationAllMarkedRead, models.AllMarkedReadPayload{UserID: userID, Updated: updated})
	return updated, nil
}

func (s *NotificationService) Delete(ctx context.Context, userID, notificationID int64) error {
	if err := s.db.DeleteNotification(ctx, notificationID, userID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return notFound("notification not found")
		}
		return fmt.Errorf("delete notification: %w", err)
	}

	s.events.SendToUser(userID, models.EventNotificationDeleted, models.NotificationIDPayload{NotificationID: notificationID})
	return nil
}

func validateNotification(req *models.CreateNotificationRequest) error {
	req.Type = strings.TrimSpace(req.Type)
	req.Title = strings.TrimSpace(req.Title)
	req.Message = strings.TrimSpace(req.Message)

	switch {
	case req.UserID <= 0:
		return Validation("userId is required")
	case req.Type == "":
		return Validation("type is required")
	case req.Title == "":
		return Validation("title is required")
	case req.Message == "":
		return Validation("message is required")
	}

	if req.Priority == "" {
		req.Priority = models.PriorityNormal
	}
	if !req.Priority.Valid() {
		return Validation("invalid priority: must be one of low, normal, high, urgent")
	}
	return nil
}
