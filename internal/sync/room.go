package sync

import (
	"collab-docs/internal/crdt"
	"context"
	"encoding/json"
	"sync"
	"time"
)

// room is the single authoritative merge point for one open document.
// Every update for the document flows through its mutex, concurrent
// client edits are merged by the CRDT, never by locking the document.
type room struct {
	docID uint64
	hub   *Hub

	// bootstrap runs once per room, outside the hub lock
	initOnce sync.Once
	initErr  error

	mu              sync.Mutex
	doc             *crdt.Doc
	clients         map[*client]struct{}
	presence        map[uint64]Presence
	debounce        *time.Timer
	currentSeq      uint64
	lastSnapshotSeq uint64
}

func newRoom(hub *Hub, docID uint64) *room {
	return &room{
		docID:    docID,
		hub:      hub,
		doc:      crdt.NewDoc(serverReplicaID),
		clients:  make(map[*client]struct{}),
		presence: make(map[uint64]Presence),
	}
}

// The server replica only merges remote ops, it never generates ids of
// its own, so a fixed replica id is safe.
const serverReplicaID = 1

// bootstrap loads the latest snapshot plus the update log tail so late
// joiners start from the merged state, not from scratch.
func (r *room) bootstrap(ctx context.Context) error {
	snapshot, err := r.hub.repo.LastSnapshot(ctx, r.docID)
	if err == nil {
		if err := r.doc.Restore(snapshot.SnapshotBinary); err != nil {
			return err
		}
		r.lastSnapshotSeq = snapshot.Seq
	}

	updates, err := r.hub.repo.UpdatesSince(ctx, r.docID, r.lastSnapshotSeq)
	if err != nil {
		return err
	}
	for _, row := range updates {
		update, err := crdt.DecodeUpdate(row.UpdateBinary)
		if err != nil {
			r.hub.log.Warn().Err(err).
				Uint64("document_id", r.docID).
				Uint64("seq", row.Seq).
				Msg("skipping undecodable update in log")
			continue
		}
		r.doc.Apply(update)
	}

	seq, err := r.hub.repo.CurrentSeq(ctx, r.docID)
	if err != nil {
		return err
	}
	r.currentSeq = seq
	return nil
}

// join registers the connection and hands it the merged state plus the
// presence of everyone already here.
func (r *room) join(c *client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clients[c] = struct{}{}

	state, err := r.doc.Snapshot()
	if err != nil {
		r.hub.log.Error().Err(err).Uint64("document_id", r.docID).Msg("snapshot for join failed")
		return
	}
	c.enqueueOrDisconnect(marshalFrame(Frame{Type: FrameSync, Data: encodeFramePayload(state)}))

	for connID, presence := range r.presence {
		p := presence
		c.enqueue(marshalFrame(Frame{Type: FrameAwareness, ConnID: connID, Presence: &p}))
	}
}

func (r *room) leave(c *client) {
	r.mu.Lock()
	delete(r.clients, c)
	_, hadPresence := r.presence[c.id]
	delete(r.presence, c.id)
	empty := len(r.clients) == 0
	r.mu.Unlock()

	c.closeSend()
	if hadPresence {
		r.broadcast(marshalFrame(Frame{Type: FrameAwarenessGone, ConnID: c.id}), c)
	}
	if empty {
		r.hub.closeRoom(r)
	}
}

func (r *room) handleFrame(c *client, frame Frame) {
	switch frame.Type {
	case FrameUpdate:
		r.handleUpdate(c, frame)
	case FrameAwareness:
		r.handleAwareness(c, frame)
	}
}

func (r *room) handleUpdate(c *client, frame Frame) {
	// a viewer-role connection must not mutate the document, rejected
	// updates are dropped without broadcasting
	if c.readOnly {
		r.hub.log.Debug().
			Uint64("document_id", r.docID).
			Str("user_id", c.userID).
			Msg("dropping update from viewer connection")
		return
	}

	raw, err := decodeFramePayload(frame.Data)
	if err != nil {
		return
	}
	update, err := crdt.DecodeUpdate(raw)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r.mu.Lock()
	r.doc.Apply(update)

	seq, err := r.hub.repo.AppendUpdate(ctx, r.docID, c.userID, raw)
	if err != nil {
		// the in-memory replica has merged the edit already; the log
		// write is retried implicitly because the next snapshot captures
		// the full state
		r.hub.log.Error().Err(err).Uint64("document_id", r.docID).Msg("append update failed")
	} else {
		r.currentSeq = seq
	}

	shouldSnapshot := r.currentSeq-r.lastSnapshotSeq >= r.hub.snapshotThreshold
	var state []byte
	if shouldSnapshot {
		if state, err = r.doc.Snapshot(); err != nil {
			r.hub.log.Error().Err(err).Uint64("document_id", r.docID).Msg("snapshot encode failed")
			shouldSnapshot = false
		}
	}
	snapshotSeq := r.currentSeq
	r.mu.Unlock()

	if shouldSnapshot {
		if err := r.hub.repo.CreateSnapshot(ctx, r.docID, state); err != nil {
			r.hub.log.Error().Err(err).Uint64("document_id", r.docID).Msg("snapshot failed")
		} else {
			r.mu.Lock()
			r.lastSnapshotSeq = snapshotSeq
			r.mu.Unlock()
		}
	}

	r.resetDebounce()
	r.broadcastUpdate(marshalFrame(Frame{Type: FrameUpdate, Data: frame.Data, ConnID: c.id}), c)
}

func (r *room) handleAwareness(c *client, frame Frame) {
	if frame.Presence == nil {
		return
	}

	// identity fields are server-authoritative, the client only chooses
	// what to announce (e.g. cursor owner name casing is its own)
	presence := Presence{
		UserID:      c.userID,
		DisplayName: frame.Presence.DisplayName,
		Color:       r.hub.colorFor(c.userID),
	}

	r.mu.Lock()
	r.presence[c.id] = presence
	r.mu.Unlock()

	r.broadcast(marshalFrame(Frame{Type: FrameAwareness, ConnID: c.id, Presence: &presence}), c)
}

// resetDebounce coalesces bursts of edits into one metadata touch.
// Single-flight per document: a new edit resets the timer instead of
// stacking another.
func (r *room) resetDebounce() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.debounce != nil {
		r.debounce.Reset(r.hub.debounce)
		return
	}
	r.debounce = time.AfterFunc(r.hub.debounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.hub.docs.Touch(ctx, r.docID); err != nil {
			r.hub.log.Error().Err(err).Uint64("document_id", r.docID).Msg("debounced touch failed")
		}
	})
}

// broadcast sends a presence frame to every connection except origin.
// Clients with a full buffer miss it and catch up on the next one.
func (r *room) broadcast(raw []byte, origin *client) {
	for _, c := range r.targets(origin) {
		c.enqueue(raw)
	}
}

// broadcastUpdate sends a document frame to every connection except
// origin. Clients too far behind to take it are disconnected so they
// re-sync instead of silently diverging.
func (r *room) broadcastUpdate(raw []byte, origin *client) {
	for _, c := range r.targets(origin) {
		c.enqueueOrDisconnect(raw)
	}
}

func (r *room) targets(origin *client) []*client {
	r.mu.Lock()
	defer r.mu.Unlock()
	targets := make([]*client, 0, len(r.clients))
	for c := range r.clients {
		if c != origin {
			targets = append(targets, c)
		}
	}
	return targets
}

func (r *room) stopTimers() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.debounce != nil {
		r.debounce.Stop()
	}
}

func marshalFrame(frame Frame) []byte {
	raw, _ := json.Marshal(frame)
	return raw
}
