package comment

import (
	"collab-docs/internal/domain"
	"context"
	"time"

	"gorm.io/gorm"
)

type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) error
	FindByID(ctx context.Context, id uint64) (*domain.Comment, error)
	ListForDocument(ctx context.Context, documentID uint64) ([]domain.Comment, error)
	Delete(ctx context.Context, id uint64) error
	FindDocumentOwner(ctx context.Context, documentID uint64) (string, error)
}

type CommentRepositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) CommentRepository {
	return &CommentRepositoryImpl{db: db}
}

func (r *CommentRepositoryImpl) Create(ctx context.Context, comment *domain.Comment) error {
	comment.CreatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Create(comment).Error
}

func (r *CommentRepositoryImpl) FindByID(ctx context.Context, id uint64) (*domain.Comment, error) {
	var comment domain.Comment
	err := r.db.WithContext(ctx).First(&comment, id).Error
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

func (r *CommentRepositoryImpl) ListForDocument(ctx context.Context, documentID uint64) ([]domain.Comment, error) {
	var comments []domain.Comment
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("created_at ASC").
		Find(&comments).Error
	return comments, err
}

func (r *CommentRepositoryImpl) Delete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Delete(&domain.Comment{}, id).Error
}

func (r *CommentRepositoryImpl) FindDocumentOwner(ctx context.Context, documentID uint64) (string, error) {
	var doc domain.Document
	err := r.db.WithContext(ctx).Select("owner_id").First(&doc, documentID).Error
	if err != nil {
		return "", err
	}
	return doc.OwnerID, nil
}
