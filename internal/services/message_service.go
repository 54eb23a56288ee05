package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"taskflow/internal/database"
	"taskflow/internal/models"
	"taskflow/pkg/logger"
)

const (
	maxMessageLength     = 5000
	messagePreviewLength = 100
	defaultMessageLimit  = 50
	maxMessageLimit      = 100

	notificationTypeProjectMessage = "project_message"
)

// MessageService owns project chat. Every call re-checks project membership.
type MessageService struct {
	db            database.Database
	access        *AccessService
	notifications *NotificationService
	events        Broadcaster
	log           zerolog.Logger
}

func NewMessageService(db database.Database, access *AccessService, notifications *NotificationService, events Broadcaster) *MessageService {
	return &MessageService{
		db:            db,
		access:        access,
		notifications: notifications,
		events:        events,
		log:           logger.WithComponent("messages"),
	}
}

// List returns up to limit messages older than before (the newest when
// before is zero), oldest first.
func (s *MessageService) List(ctx context.Context, actor *models.User, projectID int64, before time.Time, limit int) ([]*models.ProjectMessage, error) {
	if err := s.access.CanAccessProject(ctx, actor, projectID); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = defaultMessageLimit
	}
	if limit > maxMessageLimit {
		limit = maxMessageLimit
	}

	messages, err := s.db.ListProjectMessages(ctx, projectID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list project messages: %w", err)
	}
	if messages == nil {
		messages = []*models.ProjectMessage{}
	}
	return messages, nil
}

// Send stores the message, broadcasts project:message_received to the project
// room and notifies every other project member.
func (s *MessageService) Send(ctx context.Context, actor *models.User, projectID int64, content string) (*models.ProjectMessage, error) {
	content, err := messageContent(content)
	if err != nil {
		return nil, err
	}

	project, err := s.access.accessProject(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}

	message, err := s.db.CreateProjectMessage(ctx, projectID, actor.ID, content)
	if err != nil {
		return nil, fmt.Errorf("create project message: %w", err)
	}
	message.Author = actor.Public()

	s.events.BroadcastToRooms([]string{models.ProjectRoom(projectID)}, models.EventProjectMessageReceived,
		models.ProjectMessagePayload{ProjectID: projectID, Message: message})

	// Notification failures do not fail the send.
	if _, err := s.notifications.NotifyProjectMembers(ctx, projectID, messageNotification(actor, project, message), actor.ID); err != nil {
		s.log.Error().Err(err).Int64("project_id", projectID).Int64("message_id", message.ID).Msg("failed to notify project members")
	}

	s.log.Debug().Int64("project_id", projectID).Int64("user_id", actor.ID).Int64("message_id", message.ID).Msg("project message sent")
	return message, nil
}

// Edit replaces the content of one of the actor's own messages.
func (s *MessageService) Edit(ctx context.Context, actor *models.User, projectID, messageID int64, content string) (*models.ProjectMessage, error) {
	content, err := messageContent(content)
	if err != nil {
		return nil, err
	}
	if err := s.access.CanAccessProject(ctx, actor, projectID); err != nil {
		return nil, err
	}

	existing, err := s.loadMessage(ctx, projectID, messageID)
	if err != nil {
		return nil, err
	}
	if existing.UserID != actor.ID {
		return nil, forbidden("you can only edit your own messages")
	}

	message, err := s.db.UpdateProjectMessage(ctx, projectID, messageID, content)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, notFound("message not found")
		}
		return nil, fmt.Errorf("update project message: %w", err)
	}

	s.events.BroadcastToRooms([]string{models.ProjectRoom(projectID)}, models.EventProjectMessageEdited,
		models.ProjectMessagePayload{ProjectID: projectID, Message: message})
	return message, nil
}

// Delete removes a message. The sender, the project creator and users with a
// manager or admin role may delete.
func (s *MessageService) Delete(ctx context.Context, actor *models.User, projectID, messageID int64) error {
	project, err := s.access.accessProject(ctx, actor, projectID)
	if err != nil {
		return err
	}

	existing, err := s.loadMessage(ctx, projectID, messageID)
	if err != nil {
		return err
	}
	if existing.UserID != actor.ID && project.CreatedBy != actor.ID && !actor.Role.HasBlanketAccess() {
		return forbidden("you can only delete your own messages")
	}

	if err := s.db.DeleteProjectMessage(ctx, projectID, messageID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return notFound("message not found")
		}
		return fmt.Errorf("delete project message: %w", err)
	}

	s.events.BroadcastToRooms([]string{models.ProjectRoom(projectID)}, models.EventProjectMessageDeleted,
		models.ProjectMessageDeletedPayload{ProjectID: projectID, MessageID: messageID})
	return nil
}

func (s *MessageService) loadMessage(ctx context.Context, projectID, messageID int64) (*models.ProjectMessage, error) {
	message, err := s.db.GetProjectMessage(ctx, projectID, messageID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, notFound("message not found")
		}
		return nil, fmt.Errorf("get project message %d: %w", messageID, err)
	}
	return message, nil
}

func messageContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", Validation("message content is required")
	}
	if utf8.RuneCountInString(content) > maxMessageLength {
		return "", Validation(fmt.Sprintf("message must be at most %d characters", maxMessageLength))
	}
	return content, nil
}

func messageNotification(sender *models.User, project *models.Project, message *models.ProjectMessage) models.CreateNotificationRequest {
	actionURL := "/projects/" + strconv.FormatInt(project.ID, 10)
	data, _ := json.Marshal(map[string]string{
		"project_name": project.Name,
		"sender_name":  sender.Name,
		"action_url":   actionURL,
	})
	return models.CreateNotificationRequest{
		Type:      notificationTypeProjectMessage,
		Title:     "New message in project",
		Message:   sender.Name + ": " + preview(message.Content, messagePreviewLength),
		Data:      data,
		MessageID: &message.ID,
		ActionURL: actionURL,
		Priority:  models.PriorityNormal,
	}
}

// preview truncates s to n runes, marking the cut with an ellipsis.
func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
