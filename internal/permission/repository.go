package permission

import (
	"collab-docs/internal/domain"
	"context"
	"time"

	"gorm.io/gorm"
)

// PermissionWithUser joins a permission row with the user directory
// entry of its holder, for the share dialog.
type PermissionWithUser struct {
	ID         uint64    `json:"id"`
	DocumentID uint64    `json:"document_id"`
	UserID     string    `json:"user_id"`
	Role       string    `json:"role"`
	CreatedAt  time.Time `json:"created_at"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
}

type PermissionRepository interface {
	FindDocumentOwner(ctx context.Context, documentID uint64) (string, error)
	Find(ctx context.Context, documentID uint64, userID string) (*domain.Permission, error)
	Create(ctx context.Context, permission *domain.Permission) error
	UpdateRole(ctx context.Context, documentID uint64, userID string, role string) error
	Delete(ctx context.Context, documentID uint64, userID string) (bool, error)
	ListWithUsers(ctx context.Context, documentID uint64) ([]PermissionWithUser, error)
}

type PermissionRepositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) PermissionRepository {
	return &PermissionRepositoryImpl{db: db}
}

func (r *PermissionRepositoryImpl) FindDocumentOwner(ctx context.Context, documentID uint64) (string, error) {
	var doc domain.Document
	err := r.db.WithContext(ctx).Select("owner_id").First(&doc, documentID).Error
	if err != nil {
		return "", err
	}
	return doc.OwnerID, nil
}

func (r *PermissionRepositoryImpl) Find(ctx context.Context, documentID uint64, userID string) (*domain.Permission, error) {
	var permission domain.Permission
	err := r.db.WithContext(ctx).
		Where("document_id = ? AND user_id = ?", documentID, userID).
		First(&permission).Error
	if err != nil {
		return nil, err
	}
	return &permission, nil
}

func (r *PermissionRepositoryImpl) Create(ctx context.Context, permission *domain.Permission) error {
	permission.CreatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Create(permission).Error
}

func (r *PermissionRepositoryImpl) UpdateRole(ctx context.Context, documentID uint64, userID string, role string) error {
	return r.db.WithContext(ctx).
		Model(&domain.Permission{}).
		Where("document_id = ? AND user_id = ?", documentID, userID).
		Update("role", role).Error
}

func (r *PermissionRepositoryImpl) Delete(ctx context.Context, documentID uint64, userID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("document_id = ? AND user_id = ?", documentID, userID).
		Delete(&domain.Permission{})
	return result.RowsAffected > 0, result.Error
}

func (r *PermissionRepositoryImpl) ListWithUsers(ctx context.Context, documentID uint64) ([]PermissionWithUser, error) {
	var rows []PermissionWithUser
	err := r.db.WithContext(ctx).
		Table("permissions").
		Select(`permissions.id, permissions.document_id, permissions.user_id,
				permissions.role, permissions.created_at,
				COALESCE(users.name, '') AS name,
				COALESCE(users.email, '') AS email`).
		Joins("LEFT JOIN users ON users.id = permissions.user_id").
		Where("permissions.document_id = ?", documentID).
		Order("permissions.created_at ASC").
		Scan(&rows).Error
	return rows, err
}
