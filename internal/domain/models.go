package domain

import (
	"time"
)

// Role values for a document permission.
const (
	RoleOwner  = "owner"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

func ValidRole(role string) bool {
	return role == RoleOwner || role == RoleEditor || role == RoleViewer
}

// Notification types.
const (
	NotificationShare              = "share"
	NotificationComment            = "comment"
	NotificationCollaboratorJoined = "collaborator_joined"
)

// Document holds metadata plus a best-effort content snapshot.
// Live content is derived from the CRDT replica, Content is only the
// restore target for non-live contexts.
type Document struct {
	ID        uint64    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"-"`
	OwnerID   string    `gorm:"index" json:"owner_id"`
	UpdateSeq uint64    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Permission grants a role on a document. At most one row per
// (document, user) pair, a re-grant updates the role in place.
type Permission struct {
	ID         uint64    `json:"id"`
	DocumentID uint64    `gorm:"uniqueIndex:idx_permission_doc_user;index" json:"document_id"`
	UserID     string    `gorm:"uniqueIndex:idx_permission_doc_user;index" json:"user_id"`
	Role       string    `json:"role"`
	CreatedAt  time.Time `json:"created_at"`
}

// Version is an immutable point-in-time snapshot of document content.
type Version struct {
	ID         uint64    `json:"id"`
	DocumentID uint64    `gorm:"index" json:"document_id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// Comment belongs to a document and optionally replies to another
// comment on the same document.
type Comment struct {
	ID         uint64    `json:"id"`
	DocumentID uint64    `gorm:"index" json:"document_id"`
	UserID     string    `gorm:"index" json:"user_id"`
	Text       string    `json:"text"`
	ParentID   *uint64   `json:"parent_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Notification is one row per recipient per event.
type Notification struct {
	ID          uint64    `json:"id"`
	UserID      string    `gorm:"index;index:idx_notification_user_read" json:"user_id"`
	Type        string    `json:"type"`
	Message     string    `json:"message"`
	DocumentID  *uint64   `json:"document_id,omitempty"`
	CommentID   *uint64   `json:"comment_id,omitempty"`
	TriggeredBy string    `json:"triggered_by"`
	Read        bool      `gorm:"index:idx_notification_user_read" json:"read"`
	CreatedAt   time.Time `json:"created_at"`
}

// User mirrors an identity pushed by the external identity provider.
// The id is the provider's stable user id, never issued here.
type User struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"index" json:"email"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DocumentUpdate is one CRDT update in the durable append-only log.
type DocumentUpdate struct {
	ID           uint64    `json:"id"`
	DocumentID   uint64    `gorm:"index:idx_update_doc_seq" json:"document_id"`
	Seq          uint64    `gorm:"index:idx_update_doc_seq" json:"seq"`
	UpdateBinary []byte    `json:"-"`
	UserID       string    `json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// DocumentSnapshot is a compacted CRDT state at a given log seq, so late
// joiners bootstrap without replaying the whole log.
type DocumentSnapshot struct {
	ID             uint64    `json:"id"`
	DocumentID     uint64    `gorm:"index:idx_snapshot_doc_seq" json:"document_id"`
	Seq            uint64    `gorm:"index:idx_snapshot_doc_seq" json:"seq"`
	SnapshotBinary []byte    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}
