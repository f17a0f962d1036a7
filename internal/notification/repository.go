package notification

import (
	"collab-docs/internal/domain"
	"context"

	"gorm.io/gorm"
)

// DocumentAudience is what the fan-out needs to know about a document:
// its owner, its title for messages, and everyone holding a permission.
type DocumentAudience struct {
	OwnerID     string
	Title       string
	Permissions []string
}

type NotificationRepository interface {
	CreateBatch(ctx context.Context, notifications []domain.Notification) error
	FindByID(ctx context.Context, id uint64) (*domain.Notification, error)
	ListForUser(ctx context.Context, userID string) ([]domain.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	MarkAsRead(ctx context.Context, id uint64) error
	MarkAllAsRead(ctx context.Context, userID string) error
	Delete(ctx context.Context, id uint64) error
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)
	GetAudience(ctx context.Context, documentID uint64) (*DocumentAudience, error)
	DisplayName(ctx context.Context, userID string) string
}

type NotificationRepositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) NotificationRepository {
	return &NotificationRepositoryImpl{db: db}
}

func (r *NotificationRepositoryImpl) CreateBatch(ctx context.Context, notifications []domain.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&notifications).Error
}

func (r *NotificationRepositoryImpl) FindByID(ctx context.Context, id uint64) (*domain.Notification, error) {
	var notification domain.Notification
	err := r.db.WithContext(ctx).First(&notification, id).Error
	if err != nil {
		return nil, err
	}
	return &notification, nil
}

func (r *NotificationRepositoryImpl) ListForUser(ctx context.Context, userID string) ([]domain.Notification, error) {
	var notifications []domain.Notification
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&notifications).Error
	return notifications, err
}

func (r *NotificationRepositoryImpl) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&count).Error
	return count, err
}

func (r *NotificationRepositoryImpl) MarkAsRead(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("id = ?", id).
		Update("read", true).Error
}

func (r *NotificationRepositoryImpl) MarkAllAsRead(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Update("read", true).Error
}

func (r *NotificationRepositoryImpl) Delete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Delete(&domain.Notification{}, id).Error
}

func (r *NotificationRepositoryImpl) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&domain.Notification{})
	return result.RowsAffected, result.Error
}

func (r *NotificationRepositoryImpl) GetAudience(ctx context.Context, documentID uint64) (*DocumentAudience, error) {
	var doc domain.Document
	if err := r.db.WithContext(ctx).First(&doc, documentID).Error; err != nil {
		return nil, err
	}

	var userIDs []string
	err := r.db.WithContext(ctx).
		Model(&domain.Permission{}).
		Where("document_id = ?", documentID).
		Pluck("user_id", &userIDs).Error
	if err != nil {
		return nil, err
	}

	return &DocumentAudience{
		OwnerID:     doc.OwnerID,
		Title:       doc.Title,
		Permissions: userIDs,
	}, nil
}

// DisplayName resolves a user id to its directory name for message
// templates, falling back to the raw id for unknown users.
func (r *NotificationRepositoryImpl) DisplayName(ctx context.Context, userID string) string {
	var name string
	err := r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", userID).
		Pluck("name", &name).Error
	if err != nil || name == "" {
		return userID
	}
	return name
}
