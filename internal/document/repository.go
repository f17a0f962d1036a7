package document

import (
	"collab-docs/internal/domain"
	"context"
	"time"

	"gorm.io/gorm"
)

// DocumentRow is a document joined with the requesting user's role and
// the owner's directory name.
type DocumentRow struct {
	ID        uint64    `json:"id"`
	Title     string    `json:"title"`
	OwnerID   string    `json:"owner_id"`
	OwnerName string    `json:"owner_name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type DocumentsMeta struct {
	Total       int64 `json:"total"`
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	TotalPage   int   `json:"total_page"`
}

type DocumentRepository interface {
	Create(ctx context.Context, document *domain.Document) error
	FindByID(ctx context.Context, id uint64) (*domain.Document, error)
	ListForUser(ctx context.Context, userID string, page, pageSize int) ([]DocumentRow, DocumentsMeta, error)
	UpdateTitle(ctx context.Context, id uint64, title string) error
	UpdateContent(ctx context.Context, id uint64, content string) error
	Touch(ctx context.Context, id uint64) error
	DeleteCascade(ctx context.Context, id uint64) error
}

type DocumentRepositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) DocumentRepository {
	return &DocumentRepositoryImpl{db: db}
}

func (r *DocumentRepositoryImpl) Create(ctx context.Context, document *domain.Document) error {
	now := time.Now().UTC()
	document.CreatedAt = now
	document.UpdatedAt = now
	return r.db.WithContext(ctx).Create(document).Error
}

func (r *DocumentRepositoryImpl) FindByID(ctx context.Context, id uint64) (*domain.Document, error) {
	var doc domain.Document
	err := r.db.WithContext(ctx).First(&doc, id).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListForUser returns owned and shared documents in one page, newest
// updated first, with the caller's role resolved per row.
func (r *DocumentRepositoryImpl) ListForUser(ctx context.Context, userID string, page, pageSize int) ([]DocumentRow, DocumentsMeta, error) {
	base := r.db.WithContext(ctx).
		Table("documents").
		Joins("LEFT JOIN permissions ON permissions.document_id = documents.id AND permissions.user_id = ?", userID).
		Where("documents.owner_id = ? OR permissions.user_id = ?", userID, userID)

	var totalRecords int64
	if err := base.Session(&gorm.Session{}).Count(&totalRecords).Error; err != nil {
		return nil, DocumentsMeta{}, err
	}

	var rows []DocumentRow
	offset := (page - 1) * pageSize
	err := base.Session(&gorm.Session{}).
		Select(`documents.id, documents.title, documents.owner_id,
				documents.created_at, documents.updated_at,
				COALESCE(owners.name, '') AS owner_name,
				CASE WHEN documents.owner_id = ? THEN 'owner' ELSE permissions.role END AS role`, userID).
		Joins("LEFT JOIN users AS owners ON owners.id = documents.owner_id").
		Order("documents.updated_at DESC").
		Offset(offset).
		Limit(pageSize).
		Scan(&rows).Error
	if err != nil {
		return nil, DocumentsMeta{}, err
	}

	totalPages := int((totalRecords + int64(pageSize) - 1) / int64(pageSize))

	return rows, DocumentsMeta{
		Total:       totalRecords,
		PerPage:     pageSize,
		TotalPage:   totalPages,
		CurrentPage: page,
	}, nil
}

func (r *DocumentRepositoryImpl) UpdateTitle(ctx context.Context, id uint64, title string) error {
	return r.db.WithContext(ctx).
		Model(&domain.Document{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"title":      title,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *DocumentRepositoryImpl) UpdateContent(ctx context.Context, id uint64, content string) error {
	return r.db.WithContext(ctx).
		Model(&domain.Document{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"content":    content,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *DocumentRepositoryImpl) Touch(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).
		Model(&domain.Document{}).
		Where("id = ?", id).
		Update("updated_at", time.Now().UTC()).Error
}

// DeleteCascade removes a document and everything scoped to it in one
// transaction. Notifications referencing the id are kept, they render
// without a target afterwards.
func (r *DocumentRepositoryImpl) DeleteCascade(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{
			&domain.Version{},
			&domain.Comment{},
			&domain.Permission{},
			&domain.DocumentUpdate{},
			&domain.DocumentSnapshot{},
		} {
			if err := tx.Where("document_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&domain.Document{}, id).Error
	})
}
