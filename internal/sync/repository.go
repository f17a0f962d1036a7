package sync

import (
	"collab-docs/internal/domain"
	"context"
	"time"

	"gorm.io/gorm"
)

// SyncRepository persists the CRDT update log and compacted snapshots.
type SyncRepository interface {
	AppendUpdate(ctx context.Context, docID uint64, userID string, update []byte) (uint64, error)
	CurrentSeq(ctx context.Context, docID uint64) (uint64, error)
	LastSnapshot(ctx context.Context, docID uint64) (*domain.DocumentSnapshot, error)
	LastSnapshotSeq(ctx context.Context, docID uint64) (uint64, error)
	UpdatesSince(ctx context.Context, docID uint64, seq uint64) ([]domain.DocumentUpdate, error)
	CreateSnapshot(ctx context.Context, docID uint64, state []byte) error
}

type SyncRepositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) SyncRepository {
	return &SyncRepositoryImpl{db: db}
}

// AppendUpdate assigns the next per-document sequence number and
// inserts the update in one transaction, so the log order matches the
// order the merge point accepted updates in.
func (r *SyncRepositoryImpl) AppendUpdate(ctx context.Context, docID uint64, userID string, update []byte) (uint64, error) {
	var seq uint64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Raw(`
			UPDATE documents
			SET update_seq = update_seq + 1
			WHERE id = ?
			RETURNING update_seq
		`, docID).Scan(&seq).Error; err != nil {
			return err
		}

		return tx.Create(&domain.DocumentUpdate{
			DocumentID:   docID,
			Seq:          seq,
			UpdateBinary: update,
			UserID:       userID,
			CreatedAt:    time.Now().UTC(),
		}).Error
	})
	return seq, err
}

func (r *SyncRepositoryImpl) CurrentSeq(ctx context.Context, docID uint64) (uint64, error) {
	var seq uint64
	err := r.db.WithContext(ctx).
		Model(&domain.Document{}).
		Where("id = ?", docID).
		Select("update_seq").
		Scan(&seq).Error
	return seq, err
}

func (r *SyncRepositoryImpl) LastSnapshot(ctx context.Context, docID uint64) (*domain.DocumentSnapshot, error) {
	var snapshot domain.DocumentSnapshot
	err := r.db.WithContext(ctx).
		Where("document_id = ?", docID).
		Order("seq DESC").
		First(&snapshot).Error
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (r *SyncRepositoryImpl) LastSnapshotSeq(ctx context.Context, docID uint64) (uint64, error) {
	var seq uint64
	err := r.db.WithContext(ctx).
		Model(&domain.DocumentSnapshot{}).
		Where("document_id = ?", docID).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&seq).Error
	return seq, err
}

func (r *SyncRepositoryImpl) UpdatesSince(ctx context.Context, docID uint64, seq uint64) ([]domain.DocumentUpdate, error) {
	var updates []domain.DocumentUpdate
	err := r.db.WithContext(ctx).
		Where("document_id = ? AND seq > ?", docID, seq).
		Order("seq ASC").
		Find(&updates).Error
	return updates, err
}

// CreateSnapshot stores the current merged state at the latest seq and
// compacts the log behind it. Already-snapshotted seqs are a no-op.
func (r *SyncRepositoryImpl) CreateSnapshot(ctx context.Context, docID uint64, state []byte) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lastSeq uint64
		if err := tx.Model(&domain.Document{}).
			Where("id = ?", docID).
			Select("update_seq").
			Scan(&lastSeq).Error; err != nil {
			return err
		}

		var exists bool
		if err := tx.Model(&domain.DocumentSnapshot{}).
			Select("count(1) > 0").
			Where("document_id = ? AND seq = ?", docID, lastSeq).
			Find(&exists).Error; err != nil {
			return err
		}
		if exists {
			return nil
		}

		snapshot := domain.DocumentSnapshot{
			DocumentID:     docID,
			Seq:            lastSeq,
			SnapshotBinary: state,
			CreatedAt:      time.Now().UTC(),
		}
		if err := tx.Create(&snapshot).Error; err != nil {
			return err
		}

		// cleanup updates the snapshot already covers
		return tx.Where("document_id = ? AND seq <= ?", docID, lastSeq).
			Delete(&domain.DocumentUpdate{}).Error
	})
}
