package comment

import (
	"collab-docs/internal/domain"
	"collab-docs/internal/errors"
	"collab-docs/internal/notification"
	"collab-docs/internal/permission"
	"context"
	defError "errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type MockCommentRepository struct {
	mock.Mock
}

func (m *MockCommentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	args := m.Called(ctx, comment)
	if args.Error(0) == nil {
		comment.ID = 42
		comment.CreatedAt = time.Now().UTC()
	}
	return args.Error(0)
}

func (m *MockCommentRepository) FindByID(ctx context.Context, id uint64) (*domain.Comment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Comment), args.Error(1)
}

func (m *MockCommentRepository) ListForDocument(ctx context.Context, documentID uint64) ([]domain.Comment, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Comment), args.Error(1)
}

func (m *MockCommentRepository) Delete(ctx context.Context, id uint64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockCommentRepository) FindDocumentOwner(ctx context.Context, documentID uint64) (string, error) {
	args := m.Called(ctx, documentID)
	return args.String(0), args.Error(1)
}

type MockAccess struct {
	mock.Mock
}

func (m *MockAccess) RoleOf(ctx context.Context, documentID uint64, userID string) (string, error) {
	args := m.Called(ctx, documentID, userID)
	return args.String(0), args.Error(1)
}

func (m *MockAccess) Grant(ctx context.Context, documentID uint64, targetUserID, role, grantedBy string) (*domain.Permission, error) {
	args := m.Called(ctx, documentID, targetUserID, role, grantedBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Permission), args.Error(1)
}

func (m *MockAccess) Revoke(ctx context.Context, documentID uint64, targetUserID, revokedBy string) error {
	args := m.Called(ctx, documentID, targetUserID, revokedBy)
	return args.Error(0)
}

func (m *MockAccess) ListWithUsers(ctx context.Context, documentID uint64, requesterID string) ([]permission.PermissionWithUser, error) {
	args := m.Called(ctx, documentID, requesterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]permission.PermissionWithUser), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) FanOut(ctx context.Context, event notification.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockNotifier) NotifyUser(ctx context.Context, recipientID string, event notification.Event) error {
	args := m.Called(ctx, recipientID, event)
	return args.Error(0)
}

func (m *MockNotifier) GetForUser(ctx context.Context, userID string) ([]domain.Notification, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Notification), args.Error(1)
}

func (m *MockNotifier) UnreadCount(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotifier) MarkAsRead(ctx context.Context, id uint64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockNotifier) MarkAllAsRead(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockNotifier) Remove(ctx context.Context, id uint64, userID string) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

func (m *MockNotifier) ClearAll(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func newTestService(repo *MockCommentRepository, access *MockAccess, notifier *MockNotifier) Service {
	return NewService(repo, access, notifier, zerolog.Nop())
}

func TestCreateRejectsEmptyText(t *testing.T) {
	service := newTestService(new(MockCommentRepository), new(MockAccess), new(MockNotifier))

	_, err := service.Create(context.Background(), 1, "alice", "", nil)

	var apiError *errors.APIError
	require.ErrorAs(t, err, &apiError)
	assert.Equal(t, 400, apiError.Status)
}

func TestCreateRequiresAccess(t *testing.T) {
	access := new(MockAccess)
	service := newTestService(new(MockCommentRepository), access, new(MockNotifier))

	access.On("RoleOf", mock.Anything, uint64(1), "stranger").Return(permission.RoleNone, nil)

	_, err := service.Create(context.Background(), 1, "stranger", "hi", nil)

	var apiError *errors.APIError
	require.ErrorAs(t, err, &apiError)
	assert.Equal(t, 404, apiError.Status)
}

func TestCreateFansOutToAudience(t *testing.T) {
	repo := new(MockCommentRepository)
	access := new(MockAccess)
	notifier := new(MockNotifier)
	service := newTestService(repo, access, notifier)

	access.On("RoleOf", mock.Anything, uint64(1), "alice").Return(domain.RoleEditor, nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	notifier.On("FanOut", mock.Anything, mock.MatchedBy(func(event notification.Event) bool {
		return event.Type == domain.NotificationComment &&
			event.DocumentID == 1 &&
			event.TriggeredBy == "alice" &&
			event.CommentID != nil && *event.CommentID == 42
	})).Return(nil)

	result, err := service.Create(context.Background(), 1, "alice", "looks good", nil)
	require.NoError(t, err)
	assert.Empty(t, result.Warning)
	assert.Equal(t, uint64(42), result.Comment.ID)
	notifier.AssertExpectations(t)
}

func TestCreateKeepsCommentWhenFanOutFails(t *testing.T) {
	repo := new(MockCommentRepository)
	access := new(MockAccess)
	notifier := new(MockNotifier)
	service := newTestService(repo, access, notifier)

	access.On("RoleOf", mock.Anything, uint64(1), "alice").Return(domain.RoleEditor, nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	notifier.On("FanOut", mock.Anything, mock.Anything).Return(defError.New("db gone"))

	result, err := service.Create(context.Background(), 1, "alice", "still here", nil)
	require.NoError(t, err)
	require.NotNil(t, result.Comment)
	assert.Equal(t, "notification delivery failed", result.Warning)
}

func TestCreateReplyParentOnAnotherDocument(t *testing.T) {
	repo := new(MockCommentRepository)
	access := new(MockAccess)
	service := newTestService(repo, access, new(MockNotifier))

	access.On("RoleOf", mock.Anything, uint64(1), "alice").Return(domain.RoleEditor, nil)
	parentID := uint64(9)
	repo.On("FindByID", mock.Anything, parentID).
		Return(&domain.Comment{ID: 9, DocumentID: 2}, nil)

	_, err := service.Create(context.Background(), 1, "alice", "reply", &parentID)

	var apiError *errors.APIError
	require.ErrorAs(t, err, &apiError)
	assert.Equal(t, 400, apiError.Status)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateReplyUnknownParent(t *testing.T) {
	repo := new(MockCommentRepository)
	access := new(MockAccess)
	service := newTestService(repo, access, new(MockNotifier))

	access.On("RoleOf", mock.Anything, uint64(1), "alice").Return(domain.RoleEditor, nil)
	parentID := uint64(9)
	repo.On("FindByID", mock.Anything, parentID).Return(nil, gorm.ErrRecordNotFound)

	_, err := service.Create(context.Background(), 1, "alice", "reply", &parentID)

	var apiError *errors.APIError
	require.ErrorAs(t, err, &apiError)
	assert.Equal(t, 400, apiError.Status)
}

func TestGetForDocumentBuildsThreadTree(t *testing.T) {
	repo := new(MockCommentRepository)
	access := new(MockAccess)
	service := newTestService(repo, access, new(MockNotifier))

	access.On("RoleOf", mock.Anything, uint64(1), "alice").Return(domain.RoleViewer, nil)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	root1 := uint64(1)
	root2 := uint64(2)
	// rows come back sorted ascending by created_at
	repo.On("ListForDocument", mock.Anything, uint64(1)).Return([]domain.Comment{
		{ID: 1, DocumentID: 1, UserID: "alice", Text: "first", CreatedAt: base},
		{ID: 2, DocumentID: 1, UserID: "bob", Text: "second", CreatedAt: base.Add(time.Minute)},
		{ID: 3, DocumentID: 1, UserID: "bob", Text: "reply to first", ParentID: &root1, CreatedAt: base.Add(2 * time.Minute)},
		{ID: 4, DocumentID: 1, UserID: "alice", Text: "reply to second", ParentID: &root2, CreatedAt: base.Add(3 * time.Minute)},
		{ID: 5, DocumentID: 1, UserID: "carol", Text: "later reply to first", ParentID: &root1, CreatedAt: base.Add(4 * time.Minute)},
	}, nil)

	tree, err := service.GetForDocument(context.Background(), 1, "alice")
	require.NoError(t, err)

	require.Len(t, tree, 2)
	assert.Equal(t, uint64(1), tree[0].ID)
	assert.Equal(t, uint64(2), tree[1].ID)

	require.Len(t, tree[0].Replies, 2)
	assert.Equal(t, uint64(3), tree[0].Replies[0].ID)
	assert.Equal(t, uint64(5), tree[0].Replies[1].ID)

	require.Len(t, tree[1].Replies, 1)
	assert.Equal(t, uint64(4), tree[1].Replies[0].ID)
}

func TestGetForDocumentOrphanReplyBecomesRoot(t *testing.T) {
	repo := new(MockCommentRepository)
	access := new(MockAccess)
	service := newTestService(repo, access, new(MockNotifier))

	access.On("RoleOf", mock.Anything, uint64(1), "alice").Return(domain.RoleViewer, nil)

	gone := uint64(99)
	repo.On("ListForDocument", mock.Anything, uint64(1)).Return([]domain.Comment{
		{ID: 7, DocumentID: 1, UserID: "bob", Text: "parent was deleted", ParentID: &gone},
	}, nil)

	tree, err := service.GetForDocument(context.Background(), 1, "alice")
	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.Equal(t, uint64(7), tree[0].ID)
	assert.Empty(t, tree[0].Replies)
}

func TestGetForDocumentDeepThread(t *testing.T) {
	repo := new(MockCommentRepository)
	access := new(MockAccess)
	service := newTestService(repo, access, new(MockNotifier))

	access.On("RoleOf", mock.Anything, uint64(1), "alice").Return(domain.RoleViewer, nil)

	comments := make([]domain.Comment, 0, 50)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := uint64(1); i <= 50; i++ {
		row := domain.Comment{ID: i, DocumentID: 1, UserID: "alice", Text: "x", CreatedAt: base.Add(time.Duration(i) * time.Second)}
		if i > 1 {
			parent := i - 1
			row.ParentID = &parent
		}
		comments = append(comments, row)
	}
	repo.On("ListForDocument", mock.Anything, uint64(1)).Return(comments, nil)

	tree, err := service.GetForDocument(context.Background(), 1, "alice")
	require.NoError(t, err)
	require.Len(t, tree, 1)

	depth := 0
	node := tree[0]
	for {
		depth++
		if len(node.Replies) == 0 {
			break
		}
		require.Len(t, node.Replies, 1)
		node = node.Replies[0]
	}
	assert.Equal(t, 50, depth)
}

func TestRemoveByAuthor(t *testing.T) {
	repo := new(MockCommentRepository)
	service := newTestService(repo, new(MockAccess), new(MockNotifier))

	repo.On("FindByID", mock.Anything, uint64(3)).
		Return(&domain.Comment{ID: 3, DocumentID: 1, UserID: "bob"}, nil)
	repo.On("FindDocumentOwner", mock.Anything, uint64(1)).Return("owner", nil)
	repo.On("Delete", mock.Anything, uint64(3)).Return(nil)

	require.NoError(t, service.Remove(context.Background(), 3, "bob"))
	repo.AssertExpectations(t)
}

func TestRemoveByDocumentOwner(t *testing.T) {
	repo := new(MockCommentRepository)
	service := newTestService(repo, new(MockAccess), new(MockNotifier))

	repo.On("FindByID", mock.Anything, uint64(3)).
		Return(&domain.Comment{ID: 3, DocumentID: 1, UserID: "bob"}, nil)
	repo.On("FindDocumentOwner", mock.Anything, uint64(1)).Return("owner", nil)
	repo.On("Delete", mock.Anything, uint64(3)).Return(nil)

	require.NoError(t, service.Remove(context.Background(), 3, "owner"))
}

func TestRemoveForbiddenForOtherEditor(t *testing.T) {
	repo := new(MockCommentRepository)
	service := newTestService(repo, new(MockAccess), new(MockNotifier))

	repo.On("FindByID", mock.Anything, uint64(3)).
		Return(&domain.Comment{ID: 3, DocumentID: 1, UserID: "bob"}, nil)
	repo.On("FindDocumentOwner", mock.Anything, uint64(1)).Return("owner", nil)

	err := service.Remove(context.Background(), 3, "carol")

	var apiError *errors.APIError
	require.ErrorAs(t, err, &apiError)
	assert.Equal(t, 403, apiError.Status)
	repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}
