package version

import (
	"collab-docs/internal/domain"
	"collab-docs/internal/errors"
	"collab-docs/internal/permission"
	"context"
	defError "errors"

	"gorm.io/gorm"
)

// Service is the append-only version store. Versions never expire and
// restore never rewrites history.
type Service interface {
	Save(ctx context.Context, docID uint64, content, userID string) (*domain.Version, error)
	List(ctx context.Context, docID uint64, userID string) ([]domain.Version, error)
	Restore(ctx context.Context, versionID uint64, userID string) (*domain.Version, error)
}

type DefaultService struct {
	repository VersionRepository
	access     permission.Service
}

func NewService(repository VersionRepository, access permission.Service) Service {
	return &DefaultService{repository: repository, access: access}
}

func (s *DefaultService) Save(ctx context.Context, docID uint64, content, userID string) (*domain.Version, error) {
	role, err := s.access.RoleOf(ctx, docID, userID)
	if err != nil {
		return nil, err
	}
	if role == permission.RoleNone {
		return nil, errors.NotFound("Document not found", nil)
	}
	if role == domain.RoleViewer {
		return nil, errors.Forbidden("Viewer can't save a version", nil)
	}

	version := &domain.Version{
		DocumentID: docID,
		Content:    content,
	}
	if err := s.repository.Create(ctx, version); err != nil {
		return nil, err
	}

	return version, nil
}

func (s *DefaultService) List(ctx context.Context, docID uint64, userID string) ([]domain.Version, error) {
	role, err := s.access.RoleOf(ctx, docID, userID)
	if err != nil {
		return nil, err
	}
	if role == permission.RoleNone {
		return nil, errors.NotFound("Document not found", nil)
	}

	return s.repository.ListForDocument(ctx, docID)
}

// Restore copies the version content into the live document. Restoring
// an already-current version is a legal no-op that still bumps
// updated_at.
func (s *DefaultService) Restore(ctx context.Context, versionID uint64, userID string) (*domain.Version, error) {
	version, err := s.repository.FindByID(ctx, versionID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Version not found", err)
		}
		return nil, err
	}

	role, err := s.access.RoleOf(ctx, version.DocumentID, userID)
	if err != nil {
		return nil, err
	}
	if role == permission.RoleNone {
		return nil, errors.NotFound("Document not found", nil)
	}
	if role == domain.RoleViewer {
		return nil, errors.Forbidden("Viewer can't restore a version", nil)
	}

	if err := s.repository.RestoreToDocument(ctx, version); err != nil {
		return nil, err
	}

	return version, nil
}
