package permission

import (
	"collab-docs/internal/domain"
	"collab-docs/internal/errors"
	"collab-docs/internal/notification"
	"collab-docs/redis"
	"context"
	defError "errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// RoleNone is the empty role, meaning no access at all.
const RoleNone = ""

// Service is the access-control component. RoleOf gates every mutating
// operation in the system.
type Service interface {
	// RoleOf resolves a (document, user) pair to a role. The document
	// owner is "owner" even without a permission row; RoleNone means no
	// access. Unknown documents return NotFound.
	RoleOf(ctx context.Context, documentID uint64, userID string) (string, error)
	Grant(ctx context.Context, documentID uint64, targetUserID, role, grantedBy string) (*domain.Permission, error)
	Revoke(ctx context.Context, documentID uint64, targetUserID, revokedBy string) error
	ListWithUsers(ctx context.Context, documentID uint64, requesterID string) ([]PermissionWithUser, error)
}

type DefaultService struct {
	repository PermissionRepository
	notifier   notification.Service
	cache      *redis.Cache
}

func NewService(repository PermissionRepository, notifier notification.Service, cache *redis.Cache) Service {
	return &DefaultService{
		repository: repository,
		notifier:   notifier,
		cache:      cache,
	}
}

func roleCacheKey(documentID uint64, userID string) string {
	return fmt.Sprintf("doc:%d:user:%s:role", documentID, userID)
}

func (s *DefaultService) RoleOf(ctx context.Context, documentID uint64, userID string) (string, error) {
	cacheKey := roleCacheKey(documentID, userID)
	var cached string
	if found, _ := s.cache.Get(ctx, cacheKey, &cached); found {
		return cached, nil
	}

	role, err := s.lookupRole(ctx, documentID, userID)
	if err != nil {
		return RoleNone, err
	}

	s.cache.Set(ctx, cacheKey, role, 5*time.Minute)
	return role, nil
}

func (s *DefaultService) lookupRole(ctx context.Context, documentID uint64, userID string) (string, error) {
	ownerID, err := s.repository.FindDocumentOwner(ctx, documentID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return RoleNone, errors.NotFound("Document not found", err)
		}
		return RoleNone, err
	}

	if ownerID == userID {
		return domain.RoleOwner, nil
	}

	permission, err := s.repository.Find(ctx, documentID, userID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return RoleNone, nil
		}
		return RoleNone, err
	}

	return permission.Role, nil
}

// Grant upserts the (document, user) pair. Granting the same role twice
// is a Conflict, a different role updates the row in place. The granter
// must hold owner, re-checked here rather than trusted from the dialog.
func (s *DefaultService) Grant(ctx context.Context, documentID uint64, targetUserID, role, grantedBy string) (*domain.Permission, error) {
	if !domain.ValidRole(role) {
		return nil, errors.BadRequest("Invalid role", nil)
	}
	if targetUserID == grantedBy {
		return nil, errors.UnprocessableEntity("Can't grant to yourself", nil)
	}

	granterRole, err := s.RoleOf(ctx, documentID, grantedBy)
	if err != nil {
		return nil, err
	}
	if granterRole != domain.RoleOwner {
		return nil, errors.Forbidden("Only owner can share the document", nil)
	}

	existing, err := s.repository.Find(ctx, documentID, targetUserID)
	if err != nil && !defError.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if existing != nil {
		if existing.Role == role {
			return nil, errors.Conflict("User already has this role", nil)
		}
		if err := s.repository.UpdateRole(ctx, documentID, targetUserID, role); err != nil {
			return nil, err
		}
		existing.Role = role
		s.cache.Delete(ctx, roleCacheKey(documentID, targetUserID))
		return existing, nil
	}

	permission := &domain.Permission{
		DocumentID: documentID,
		UserID:     targetUserID,
		Role:       role,
	}
	if err := s.repository.Create(ctx, permission); err != nil {
		if defError.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errors.Conflict("User already added", err)
		}
		return nil, err
	}
	s.cache.Delete(ctx, roleCacheKey(documentID, targetUserID))

	// the grantee is told it now has access; fan-out failure does not
	// undo the grant
	err = s.notifier.NotifyUser(ctx, targetUserID, notification.Event{
		Type:        domain.NotificationShare,
		DocumentID:  documentID,
		TriggeredBy: grantedBy,
	})
	if err != nil {
		return permission, errors.Internal(err)
	}

	return permission, nil
}

func (s *DefaultService) Revoke(ctx context.Context, documentID uint64, targetUserID, revokedBy string) error {
	revokerRole, err := s.RoleOf(ctx, documentID, revokedBy)
	if err != nil {
		return err
	}
	if revokerRole != domain.RoleOwner {
		return errors.Forbidden("Only owner can revoke access", nil)
	}

	deleted, err := s.repository.Delete(ctx, documentID, targetUserID)
	if err != nil {
		return err
	}
	if !deleted {
		return errors.NotFound("Permission not found", nil)
	}

	s.cache.Delete(ctx, roleCacheKey(documentID, targetUserID))
	return nil
}

func (s *DefaultService) ListWithUsers(ctx context.Context, documentID uint64, requesterID string) ([]PermissionWithUser, error) {
	role, err := s.RoleOf(ctx, documentID, requesterID)
	if err != nil {
		return nil, err
	}
	if role == RoleNone {
		return nil, errors.NotFound("Document not found", nil)
	}

	return s.repository.ListWithUsers(ctx, documentID)
}
