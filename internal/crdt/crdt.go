// Package crdt implements the replicated text type behind live
// co-editing. It is an RGA (replicated growable array): every inserted
// character gets a globally unique id, inserts anchor to the character
// on their left, deletes tombstone. Applying the same update twice is a
// no-op and any arrival order converges to the same text, which is what
// lets replicas merge without coordination.
package crdt

import (
	"encoding/json"
	"fmt"
)

// ID uniquely identifies one inserted character across all replicas.
// The zero ID is the document head anchor.
type ID struct {
	Replica uint64 `json:"r"`
	Counter uint64 `json:"c"`
}

// less orders concurrent siblings. Higher (counter, replica) wins the
// position closer to the shared origin, so every replica places them
// identically.
func (id ID) less(other ID) bool {
	if id.Counter != other.Counter {
		return id.Counter < other.Counter
	}
	return id.Replica < other.Replica
}

// Op kinds.
const (
	OpInsert = "insert"
	OpDelete = "delete"
)

// Op is a single CRDT operation.
type Op struct {
	Type   string `json:"t"`
	ID     ID     `json:"id"`
	Origin ID     `json:"o,omitempty"`
	Target ID     `json:"d,omitempty"`
	Value  string `json:"v,omitempty"`
}

// Update is the unit shipped between replicas and appended to the
// durable log.
type Update struct {
	Ops []Op `json:"ops"`
}

func EncodeUpdate(update Update) ([]byte, error) {
	return json.Marshal(update)
}

func DecodeUpdate(raw []byte) (Update, error) {
	var update Update
	err := json.Unmarshal(raw, &update)
	return update, err
}

type node struct {
	id      ID
	value   string
	deleted bool
	// children are the characters inserted directly after this one,
	// ordered descending by id
	children []*node
}

// Doc is one replica of the document. It is not goroutine safe, the
// owning session serializes access.
type Doc struct {
	replica uint64
	counter uint64
	root    *node
	nodes   map[ID]*node
	// ops whose origin or target has not arrived yet
	pending []Op
}

// NewDoc creates a replica. The replica id must be non-zero and unique
// among live replicas of the same document.
func NewDoc(replica uint64) *Doc {
	root := &node{}
	return &Doc{
		replica: replica,
		root:    root,
		nodes:   map[ID]*node{{}: root},
	}
}

// Apply integrates a remote update. Idempotent: ops already seen change
// nothing. Ops referencing characters that have not arrived yet are
// buffered and retried, so updates commute.
func (d *Doc) Apply(update Update) {
	queue := append(d.pending, update.Ops...)
	d.pending = nil

	for {
		var stuck []Op
		progress := false
		for _, op := range queue {
			if d.applyOp(op) {
				progress = true
			} else {
				stuck = append(stuck, op)
			}
		}
		if !progress || len(stuck) == 0 {
			d.pending = stuck
			return
		}
		queue = stuck
	}
}

func (d *Doc) applyOp(op Op) bool {
	switch op.Type {
	case OpInsert:
		if _, seen := d.nodes[op.ID]; seen {
			return true
		}
		origin, ok := d.nodes[op.Origin]
		if !ok {
			return false
		}
		child := &node{id: op.ID, value: op.Value}
		d.nodes[op.ID] = child
		origin.children = insertChild(origin.children, child)
		// Lamport adoption: local ids issued after this merge must order
		// ahead of everything already seen
		if op.ID.Counter > d.counter {
			d.counter = op.ID.Counter
		}
		return true
	case OpDelete:
		target, ok := d.nodes[op.Target]
		if !ok {
			return false
		}
		target.deleted = true
		return true
	default:
		// unknown op kinds are dropped rather than buffered forever
		return true
	}
}

func insertChild(children []*node, child *node) []*node {
	pos := len(children)
	for i, sibling := range children {
		if sibling.id.less(child.id) {
			pos = i
			break
		}
	}
	children = append(children, nil)
	copy(children[pos+1:], children[pos:])
	children[pos] = child
	return children
}

// Text renders the visible document content.
func (d *Doc) Text() string {
	var out []byte
	for _, n := range d.inOrder() {
		if !n.deleted {
			out = append(out, n.value...)
		}
	}
	return string(out)
}

// Len is the number of visible characters.
func (d *Doc) Len() int {
	count := 0
	for _, n := range d.inOrder() {
		if !n.deleted {
			count++
		}
	}
	return count
}

func (d *Doc) inOrder() []*node {
	out := make([]*node, 0, len(d.nodes))
	var walk func(n *node)
	walk = func(n *node) {
		if n != d.root {
			out = append(out, n)
		}
		for _, child := range n.children {
			walk(child)
		}
	}
	walk(d.root)
	return out
}

func (d *Doc) nextID() ID {
	d.counter++
	return ID{Replica: d.replica, Counter: d.counter}
}

// InsertAt creates and applies a local insert of text before visible
// index (0 = start). Returns the update to broadcast.
func (d *Doc) InsertAt(index int, text string) (Update, error) {
	if index < 0 {
		return Update{}, fmt.Errorf("insert index %d out of range", index)
	}

	origin := ID{}
	visibleIdx := 0
	for _, n := range d.inOrder() {
		if visibleIdx == index {
			break
		}
		if !n.deleted {
			origin = n.id
			visibleIdx++
		}
	}
	if visibleIdx < index {
		return Update{}, fmt.Errorf("insert index %d out of range", index)
	}

	ops := make([]Op, 0, len(text))
	for _, r := range text {
		id := d.nextID()
		ops = append(ops, Op{
			Type:   OpInsert,
			ID:     id,
			Origin: origin,
			Value:  string(r),
		})
		origin = id
	}

	update := Update{Ops: ops}
	d.Apply(update)
	return update, nil
}

// DeleteAt creates and applies a local delete of count visible
// characters starting at index. Returns the update to broadcast.
func (d *Doc) DeleteAt(index, count int) (Update, error) {
	if index < 0 || count < 0 {
		return Update{}, fmt.Errorf("delete range [%d,%d) out of range", index, index+count)
	}

	var ops []Op
	visibleIdx := 0
	for _, n := range d.inOrder() {
		if n.deleted {
			continue
		}
		if visibleIdx >= index && visibleIdx < index+count {
			ops = append(ops, Op{Type: OpDelete, Target: n.id})
		}
		visibleIdx++
	}
	if len(ops) != count {
		return Update{}, fmt.Errorf("delete range [%d,%d) out of range", index, index+count)
	}

	update := Update{Ops: ops}
	d.Apply(update)
	return update, nil
}

type snapshotNode struct {
	ID      ID     `json:"id"`
	Origin  ID     `json:"o"`
	Value   string `json:"v"`
	Deleted bool   `json:"x,omitempty"`
}

// Snapshot serializes the full replica state, tombstones included, so a
// late joiner bootstraps without replaying the whole update log.
func (d *Doc) Snapshot() ([]byte, error) {
	out := make([]snapshotNode, 0, len(d.nodes))
	var walk func(n *node)
	walk = func(n *node) {
		for _, child := range n.children {
			out = append(out, snapshotNode{ID: child.id, Origin: n.id, Value: child.value, Deleted: child.deleted})
			walk(child)
		}
	}
	walk(d.root)
	return json.Marshal(out)
}

// Restore loads a snapshot into an empty replica. Pre-order guarantees
// every origin precedes its children, so no buffering is needed.
func (d *Doc) Restore(raw []byte) error {
	if len(raw) == 0 {
		return nil
	}
	var saved []snapshotNode
	if err := json.Unmarshal(raw, &saved); err != nil {
		return err
	}

	for _, sn := range saved {
		ops := []Op{{Type: OpInsert, ID: sn.ID, Origin: sn.Origin, Value: sn.Value}}
		if sn.Deleted {
			ops = append(ops, Op{Type: OpDelete, Target: sn.ID})
		}
		d.Apply(Update{Ops: ops})
	}
	return nil
}
