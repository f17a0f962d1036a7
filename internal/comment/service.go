package comment

import (
	"collab-docs/internal/domain"
	"collab-docs/internal/errors"
	"collab-docs/internal/notification"
	"collab-docs/internal/permission"
	"context"
	defError "errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// CommentNode is a comment with its replies attached, ordered by
// creation time at every level.
type CommentNode struct {
	domain.Comment
	Replies []*CommentNode `json:"replies"`
}

// CreateResult carries the committed comment plus a warning when the
// fan-out failed after the insert.
type CreateResult struct {
	Comment *domain.Comment `json:"comment"`
	Warning string          `json:"warning,omitempty"`
}

type Service interface {
	// Create inserts the comment and fans a notification out to the
	// document owner and every permissioned user except the commenter.
	// When the insert succeeded but the fan-out failed, the comment is
	// still returned, with a partial-success warning set.
	Create(ctx context.Context, docID uint64, userID, text string, parentID *uint64) (*CreateResult, error)
	GetForDocument(ctx context.Context, docID uint64, userID string) ([]*CommentNode, error)
	Remove(ctx context.Context, commentID uint64, userID string) error
}

type DefaultService struct {
	repository CommentRepository
	access     permission.Service
	notifier   notification.Service
	log        zerolog.Logger
}

func NewService(
	repository CommentRepository,
	access permission.Service,
	notifier notification.Service,
	log zerolog.Logger,
) Service {
	return &DefaultService{
		repository: repository,
		access:     access,
		notifier:   notifier,
		log:        log,
	}
}

func (s *DefaultService) Create(ctx context.Context, docID uint64, userID, text string, parentID *uint64) (*CreateResult, error) {
	if text == "" {
		return nil, errors.BadRequest("Comment text cannot be empty", nil)
	}

	role, err := s.access.RoleOf(ctx, docID, userID)
	if err != nil {
		return nil, err
	}
	if role == permission.RoleNone {
		return nil, errors.NotFound("Document not found", nil)
	}

	// a reply must point at a comment on the same document
	if parentID != nil {
		parent, err := s.repository.FindByID(ctx, *parentID)
		if err != nil {
			if defError.Is(err, gorm.ErrRecordNotFound) {
				return nil, errors.BadRequest("Parent comment not found", err)
			}
			return nil, err
		}
		if parent.DocumentID != docID {
			return nil, errors.BadRequest("Parent comment belongs to another document", nil)
		}
	}

	comment := &domain.Comment{
		DocumentID: docID,
		UserID:     userID,
		Text:       text,
		ParentID:   parentID,
	}
	if err := s.repository.Create(ctx, comment); err != nil {
		return nil, err
	}

	result := &CreateResult{Comment: comment}

	// fan-out runs after the comment committed; a failure here leaves
	// the comment in place and is reported as a warning, not rolled back
	err = s.notifier.FanOut(ctx, notification.Event{
		Type:        domain.NotificationComment,
		DocumentID:  docID,
		CommentID:   &comment.ID,
		TriggeredBy: userID,
	})
	if err != nil {
		s.log.Error().Err(err).
			Uint64("document_id", docID).
			Uint64("comment_id", comment.ID).
			Msg("comment fan-out failed")
		result.Warning = "notification delivery failed"
	}

	return result, nil
}

func (s *DefaultService) GetForDocument(ctx context.Context, docID uint64, userID string) ([]*CommentNode, error) {
	role, err := s.access.RoleOf(ctx, docID, userID)
	if err != nil {
		return nil, err
	}
	if role == permission.RoleNone {
		return nil, errors.NotFound("Document not found", nil)
	}

	comments, err := s.repository.ListForDocument(ctx, docID)
	if err != nil {
		return nil, err
	}

	return buildTree(comments), nil
}

// buildTree groups comments by parent and attaches replies with an
// explicit stack, so arbitrarily deep threads can't blow the call
// stack. Comments whose parent was deleted surface as roots.
func buildTree(comments []domain.Comment) []*CommentNode {
	nodes := make(map[uint64]*CommentNode, len(comments))
	children := make(map[uint64][]*CommentNode)
	roots := make([]*CommentNode, 0)

	for i := range comments {
		nodes[comments[i].ID] = &CommentNode{Comment: comments[i], Replies: []*CommentNode{}}
	}

	// input is sorted ascending by created_at, a single pass keeps that
	// order per level
	for i := range comments {
		node := nodes[comments[i].ID]
		if node.ParentID != nil {
			if _, ok := nodes[*node.ParentID]; ok {
				children[*node.ParentID] = append(children[*node.ParentID], node)
				continue
			}
		}
		roots = append(roots, node)
	}

	stack := make([]*CommentNode, len(roots))
	copy(stack, roots)
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		kids := children[node.ID]
		node.Replies = append(node.Replies, kids...)
		stack = append(stack, kids...)
	}

	return roots
}

// Remove deletes a comment. Only the author or the document owner may
// delete; replies are not cascaded, they re-root when rendered.
func (s *DefaultService) Remove(ctx context.Context, commentID uint64, userID string) error {
	comment, err := s.repository.FindByID(ctx, commentID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return errors.NotFound("Comment not found", err)
		}
		return err
	}

	ownerID, err := s.repository.FindDocumentOwner(ctx, comment.DocumentID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return errors.NotFound("Document not found", err)
		}
		return err
	}

	if comment.UserID != userID && ownerID != userID {
		return errors.Forbidden("Only the author or the document owner can delete a comment", nil)
	}

	return s.repository.Delete(ctx, commentID)
}
