package document

import (
	"collab-docs/internal/domain"
	"collab-docs/internal/errors"
	"collab-docs/internal/notification"
	"collab-docs/internal/permission"
	"collab-docs/internal/worker"
	"collab-docs/redis"
	"context"
	defError "errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type PaginatedDocuments struct {
	Data []DocumentRow `json:"data"`
	Meta DocumentsMeta `json:"meta"`
}

type Service interface {
	Create(ctx context.Context, title, ownerID string) (*domain.Document, error)
	Get(ctx context.Context, docID uint64, userID string) (*DocumentRow, error)
	List(ctx context.Context, userID string, page, pageSize int) (*PaginatedDocuments, error)
	UpdateTitle(ctx context.Context, docID uint64, title, userID string) (*domain.Document, error)
	Remove(ctx context.Context, docID uint64, userID string) error
	// Touch is a trusted internal timestamp bump from the sync layer,
	// no access check on purpose.
	Touch(ctx context.Context, docID uint64) error
	TrackAccess(ctx context.Context, docID uint64, userID string) error
}

type DefaultService struct {
	repository DocumentRepository
	access     permission.Service
	notifier   notification.Service
	cache      *redis.Cache
	pool       *worker.WorkerPool
	log        zerolog.Logger
}

func NewService(
	repository DocumentRepository,
	access permission.Service,
	notifier notification.Service,
	cache *redis.Cache,
	pool *worker.WorkerPool,
	log zerolog.Logger,
) Service {
	return &DefaultService{
		repository: repository,
		access:     access,
		notifier:   notifier,
		cache:      cache,
		pool:       pool,
		log:        log,
	}
}

func listVersionKey(userID string) string {
	return fmt.Sprintf("user:%s:docs:version", userID)
}

// Create sets up metadata with an empty content placeholder. Nobody but
// the owner has access until an explicit grant.
func (s *DefaultService) Create(ctx context.Context, title, ownerID string) (*domain.Document, error) {
	if title == "" {
		return nil, errors.BadRequest("Title cannot be empty", nil)
	}

	doc := &domain.Document{
		Title:   title,
		Content: "",
		OwnerID: ownerID,
	}
	if err := s.repository.Create(ctx, doc); err != nil {
		return nil, err
	}

	s.cache.IncrementVersion(ctx, listVersionKey(ownerID))
	return doc, nil
}

func (s *DefaultService) Get(ctx context.Context, docID uint64, userID string) (*DocumentRow, error) {
	role, err := s.access.RoleOf(ctx, docID, userID)
	if err != nil {
		return nil, err
	}
	if role == permission.RoleNone {
		// indistinguishable from a missing document, existence is not leaked
		return nil, errors.NotFound("Document not found", nil)
	}

	doc, err := s.repository.FindByID(ctx, docID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Document not found", err)
		}
		return nil, err
	}

	return &DocumentRow{
		ID:        doc.ID,
		Title:     doc.Title,
		OwnerID:   doc.OwnerID,
		Role:      role,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

func (s *DefaultService) List(ctx context.Context, userID string, page, pageSize int) (*PaginatedDocuments, error) {
	versionKey := listVersionKey(userID)
	v := s.cache.GetVersion(ctx, versionKey)
	cacheKey := fmt.Sprintf("docs:u:%s:v:%d:p:%d:ps:%d", userID, v, page, pageSize)

	var result PaginatedDocuments
	if found, _ := s.cache.Get(ctx, cacheKey, &result); found {
		return &result, nil
	}

	rows, meta, err := s.repository.ListForUser(ctx, userID, page, pageSize)
	if err != nil {
		return nil, err
	}
	result = PaginatedDocuments{Data: rows, Meta: meta}
	go s.cache.Set(context.Background(), cacheKey, result, 24*time.Hour)

	return &result, nil
}

func (s *DefaultService) UpdateTitle(ctx context.Context, docID uint64, title, userID string) (*domain.Document, error) {
	if title == "" {
		return nil, errors.BadRequest("Title cannot be empty", nil)
	}

	role, err := s.access.RoleOf(ctx, docID, userID)
	if err != nil {
		return nil, err
	}
	if role != domain.RoleOwner {
		return nil, errors.Forbidden("Only owner can rename the document", nil)
	}

	if err := s.repository.UpdateTitle(ctx, docID, title); err != nil {
		return nil, err
	}
	s.cache.IncrementVersion(ctx, listVersionKey(userID))

	return s.repository.FindByID(ctx, docID)
}

func (s *DefaultService) Remove(ctx context.Context, docID uint64, userID string) error {
	role, err := s.access.RoleOf(ctx, docID, userID)
	if err != nil {
		return err
	}
	if role != domain.RoleOwner && role != domain.RoleEditor {
		if role == permission.RoleNone {
			return errors.NotFound("Document not found", nil)
		}
		return errors.Forbidden("Only owner or editor can delete the document", nil)
	}

	if err := s.repository.DeleteCascade(ctx, docID); err != nil {
		return err
	}

	s.cache.IncrementVersion(ctx, listVersionKey(userID))
	return nil
}

func (s *DefaultService) Touch(ctx context.Context, docID uint64) error {
	return s.repository.Touch(ctx, docID)
}

// TrackAccess tells the owner and every other permissioned user that a
// collaborator opened the document. No-op for the owner itself and for
// users without a role. Delivery rides the worker pool off the request
// path.
func (s *DefaultService) TrackAccess(ctx context.Context, docID uint64, userID string) error {
	role, err := s.access.RoleOf(ctx, docID, userID)
	if err != nil {
		return err
	}
	if role == permission.RoleNone || role == domain.RoleOwner {
		return nil
	}

	s.pool.Submit(func(taskCtx context.Context) error {
		taskCtx, cancel := context.WithTimeout(taskCtx, 5*time.Second)
		defer cancel()

		err := s.notifier.FanOut(taskCtx, notification.Event{
			Type:        domain.NotificationCollaboratorJoined,
			DocumentID:  docID,
			TriggeredBy: userID,
		})
		if err != nil {
			s.log.Error().Err(err).
				Uint64("document_id", docID).
				Str("user_id", userID).
				Msg("collaborator_joined fan-out failed")
		}
		return err
	})

	return nil
}
