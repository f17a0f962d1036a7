package version

import (
	"collab-docs/internal/domain"
	"context"
	"time"

	"gorm.io/gorm"
)

type VersionRepository interface {
	Create(ctx context.Context, version *domain.Version) error
	FindByID(ctx context.Context, id uint64) (*domain.Version, error)
	ListForDocument(ctx context.Context, documentID uint64) ([]domain.Version, error)
	RestoreToDocument(ctx context.Context, version *domain.Version) error
}

type VersionRepositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) VersionRepository {
	return &VersionRepositoryImpl{db: db}
}

func (r *VersionRepositoryImpl) Create(ctx context.Context, version *domain.Version) error {
	version.CreatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Create(version).Error
}

func (r *VersionRepositoryImpl) FindByID(ctx context.Context, id uint64) (*domain.Version, error) {
	var version domain.Version
	err := r.db.WithContext(ctx).First(&version, id).Error
	if err != nil {
		return nil, err
	}
	return &version, nil
}

func (r *VersionRepositoryImpl) ListForDocument(ctx context.Context, documentID uint64) ([]domain.Version, error) {
	var versions []domain.Version
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("created_at DESC").
		Find(&versions).Error
	return versions, err
}

// RestoreToDocument copies the version content into the live document
// and bumps updated_at. The version log itself is never touched.
func (r *VersionRepositoryImpl) RestoreToDocument(ctx context.Context, version *domain.Version) error {
	return r.db.WithContext(ctx).
		Model(&domain.Document{}).
		Where("id = ?", version.DocumentID).
		Updates(map[string]any{
			"content":    version.Content,
			"updated_at": time.Now().UTC(),
		}).Error
}
