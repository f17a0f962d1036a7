package notification

import (
	"collab-docs/internal/domain"
	"collab-docs/internal/errors"
	"context"
	defError "errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Event is a document-state change worth telling collaborators about.
type Event struct {
	Type        string
	DocumentID  uint64
	CommentID   *uint64
	TriggeredBy string
	// Message overrides the per-type template when set.
	Message string
}

type Service interface {
	// FanOut writes one notification row per recipient, where the
	// recipient set is the document owner plus every permission holder,
	// minus the actor. Two identical events fan out twice.
	FanOut(ctx context.Context, event Event) error
	// NotifyUser writes a single row for one recipient, used for share
	// events where only the grantee is told.
	NotifyUser(ctx context.Context, recipientID string, event Event) error
	GetForUser(ctx context.Context, userID string) ([]domain.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	MarkAsRead(ctx context.Context, id uint64) error
	MarkAllAsRead(ctx context.Context, userID string) error
	Remove(ctx context.Context, id uint64, userID string) error
	ClearAll(ctx context.Context, userID string) (int64, error)
}

type DefaultService struct {
	repository NotificationRepository
	log        zerolog.Logger
}

func NewService(repository NotificationRepository, log zerolog.Logger) Service {
	return &DefaultService{repository: repository, log: log}
}

func (s *DefaultService) FanOut(ctx context.Context, event Event) error {
	audience, err := s.repository.GetAudience(ctx, event.DocumentID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return errors.NotFound("Document not found", err)
		}
		return err
	}

	// owner + permission holders, actor excluded
	recipients := make(map[string]struct{})
	recipients[audience.OwnerID] = struct{}{}
	for _, userID := range audience.Permissions {
		recipients[userID] = struct{}{}
	}
	delete(recipients, event.TriggeredBy)

	if len(recipients) == 0 {
		return nil
	}

	message := event.Message
	if message == "" {
		message = s.defaultMessage(ctx, event, audience.Title)
	}

	now := time.Now().UTC()
	docID := event.DocumentID
	rows := make([]domain.Notification, 0, len(recipients))
	for recipientID := range recipients {
		rows = append(rows, domain.Notification{
			UserID:      recipientID,
			Type:        event.Type,
			Message:     message,
			DocumentID:  &docID,
			CommentID:   event.CommentID,
			TriggeredBy: event.TriggeredBy,
			Read:        false,
			CreatedAt:   now,
		})
	}

	if err := s.repository.CreateBatch(ctx, rows); err != nil {
		s.log.Error().Err(err).
			Uint64("document_id", event.DocumentID).
			Str("type", event.Type).
			Msg("notification fan-out failed")
		return err
	}

	return nil
}

func (s *DefaultService) NotifyUser(ctx context.Context, recipientID string, event Event) error {
	if recipientID == event.TriggeredBy {
		return nil
	}

	message := event.Message
	if message == "" {
		audience, err := s.repository.GetAudience(ctx, event.DocumentID)
		if err != nil {
			return err
		}
		message = s.defaultMessage(ctx, event, audience.Title)
	}

	docID := event.DocumentID
	return s.repository.CreateBatch(ctx, []domain.Notification{{
		UserID:      recipientID,
		Type:        event.Type,
		Message:     message,
		DocumentID:  &docID,
		CommentID:   event.CommentID,
		TriggeredBy: event.TriggeredBy,
		Read:        false,
		CreatedAt:   time.Now().UTC(),
	}})
}

func (s *DefaultService) defaultMessage(ctx context.Context, event Event, title string) string {
	actor := s.repository.DisplayName(ctx, event.TriggeredBy)
	switch event.Type {
	case domain.NotificationComment:
		return fmt.Sprintf("%s commented on %q", actor, title)
	case domain.NotificationCollaboratorJoined:
		return fmt.Sprintf("%s joined %q", actor, title)
	case domain.NotificationShare:
		return fmt.Sprintf("%s shared %q with you", actor, title)
	default:
		return fmt.Sprintf("%s updated %q", actor, title)
	}
}

func (s *DefaultService) GetForUser(ctx context.Context, userID string) ([]domain.Notification, error) {
	return s.repository.ListForUser(ctx, userID)
}

func (s *DefaultService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.repository.UnreadCount(ctx, userID)
}

func (s *DefaultService) MarkAsRead(ctx context.Context, id uint64) error {
	return s.repository.MarkAsRead(ctx, id)
}

func (s *DefaultService) MarkAllAsRead(ctx context.Context, userID string) error {
	return s.repository.MarkAllAsRead(ctx, userID)
}

func (s *DefaultService) Remove(ctx context.Context, id uint64, userID string) error {
	notification, err := s.repository.FindByID(ctx, id)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return errors.NotFound("Notification not found", err)
		}
		return err
	}

	if notification.UserID != userID {
		return errors.Forbidden("Can't remove someone else's notification", nil)
	}

	return s.repository.Delete(ctx, id)
}

func (s *DefaultService) ClearAll(ctx context.Context, userID string) (int64, error) {
	return s.repository.DeleteAllForUser(ctx, userID)
}
