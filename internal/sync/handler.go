package sync

import (
	"collab-docs/internal/domain"
	defError "errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler exposes the durable sync state over the internal surface,
// for operators and server-to-server consumers.
type Handler struct {
	repo SyncRepository
}

func NewHandler(repo SyncRepository) *Handler {
	return &Handler{repo: repo}
}

type UpdateDTO struct {
	Seq    uint64 `json:"seq"`
	Binary []byte `json:"binary"`
}

type StateResponse struct {
	Snapshot    []byte      `json:"snapshot"`
	SnapshotSeq uint64      `json:"snapshot_seq"`
	Updates     []UpdateDTO `json:"updates"`
}

func (h *Handler) ShowState(c *gin.Context) {
	docID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(err)
		return
	}

	var response StateResponse

	snapshot, err := h.repo.LastSnapshot(c.Request.Context(), docID)
	if err != nil && !defError.Is(err, gorm.ErrRecordNotFound) {
		c.Error(err)
		return
	}
	if snapshot != nil {
		response.Snapshot = snapshot.SnapshotBinary
		response.SnapshotSeq = snapshot.Seq
	}

	updates, err := h.repo.UpdatesSince(c.Request.Context(), docID, response.SnapshotSeq)
	if err != nil {
		c.Error(err)
		return
	}
	response.Updates = toUpdateDTOs(updates)

	c.JSON(http.StatusOK, response)
}

func toUpdateDTOs(updates []domain.DocumentUpdate) []UpdateDTO {
	dtos := make([]UpdateDTO, 0, len(updates))
	for _, u := range updates {
		dtos = append(dtos, UpdateDTO{Seq: u.Seq, Binary: u.UpdateBinary})
	}
	return dtos
}
