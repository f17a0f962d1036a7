package sync

import (
	"collab-docs/internal/domain"
	"collab-docs/internal/errors"
	"collab-docs/internal/permission"
	"collab-docs/internal/utils"
	"context"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// DocumentToucher is what the hub needs from the metadata manager: the
// trusted debounced timestamp bump.
type DocumentToucher interface {
	Touch(ctx context.Context, docID uint64) error
}

// Hub owns one room per open document and the join gate in front of
// them.
type Hub struct {
	access            permission.Service
	docs              DocumentToucher
	repo              SyncRepository
	log               zerolog.Logger
	debounce          time.Duration
	snapshotThreshold uint64

	mu         sync.Mutex
	rooms      map[uint64]*room
	nextConnID atomic.Uint64

	upgrader websocket.Upgrader
}

func NewHub(
	access permission.Service,
	docs DocumentToucher,
	repo SyncRepository,
	log zerolog.Logger,
	debounce time.Duration,
	snapshotThreshold uint64,
) *Hub {
	return &Hub{
		access:            access,
		docs:              docs,
		repo:              repo,
		log:               log,
		debounce:          debounce,
		snapshotThreshold: snapshotThreshold,
		rooms:             make(map[uint64]*room),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// identity is checked by the auth middleware, cross-origin
			// browser clients are expected
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *Hub) colorFor(userID string) string {
	return utils.ColorFor(userID)
}

// HandleWS upgrades the connection and joins it to the document's
// room. The role check happens once, here: a session open when access
// is later revoked continues until it reconnects.
func (h *Hub) HandleWS(c *gin.Context) {
	docID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(err)
		return
	}

	userID, _ := c.Get("user_id")

	role, err := h.access.RoleOf(c.Request.Context(), docID, userID.(string))
	if err != nil {
		c.Error(err)
		return
	}
	if role == permission.RoleNone {
		c.Error(errors.NotFound("Document not found", nil))
		return
	}

	r, err := h.getRoom(c.Request.Context(), docID)
	if err != nil {
		c.Error(err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the handshake failure
		return
	}

	session := &client{
		id:       h.nextConnID.Add(1),
		userID:   userID.(string),
		role:     role,
		readOnly: role == domain.RoleViewer,
		room:     r,
		conn:     conn,
		send:     make(chan []byte, 256),
	}

	r.join(session)

	go session.writePump()
	go session.readPump()
}

func (h *Hub) getRoom(ctx context.Context, docID uint64) (*room, error) {
	h.mu.Lock()
	r, ok := h.rooms[docID]
	if !ok {
		r = newRoom(h, docID)
		h.rooms[docID] = r
	}
	h.mu.Unlock()

	// registration is cheap, the DB-backed bootstrap happens outside
	// h.mu so a slow document load doesn't stall every other join
	r.initOnce.Do(func() {
		r.initErr = r.bootstrap(ctx)
	})
	if r.initErr != nil {
		h.mu.Lock()
		if h.rooms[docID] == r {
			delete(h.rooms, docID)
		}
		h.mu.Unlock()
		return nil, r.initErr
	}
	return r, nil
}

// closeRoom drops an emptied room and leaves a final snapshot behind so
// the next bootstrap starts from a short log.
func (h *Hub) closeRoom(r *room) {
	h.mu.Lock()
	if current, ok := h.rooms[r.docID]; !ok || current != r {
		h.mu.Unlock()
		return
	}
	delete(h.rooms, r.docID)
	h.mu.Unlock()

	r.stopTimers()

	state, err := r.doc.Snapshot()
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.repo.CreateSnapshot(ctx, r.docID, state); err != nil {
		h.log.Error().Err(err).Uint64("document_id", r.docID).Msg("closing snapshot failed")
	}
}
