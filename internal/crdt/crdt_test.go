package crdt

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertAndRender(t *testing.T) {
	doc := NewDoc(10)

	_, err := doc.InsertAt(0, "hello")
	require.NoError(t, err)
	_, err = doc.InsertAt(5, " world")
	require.NoError(t, err)
	_, err = doc.InsertAt(0, ">> ")
	require.NoError(t, err)

	assert.Equal(t, ">> hello world", doc.Text())
	assert.Equal(t, 14, doc.Len())
}

func TestDeleteTombstones(t *testing.T) {
	doc := NewDoc(10)

	_, err := doc.InsertAt(0, "abcdef")
	require.NoError(t, err)
	_, err = doc.DeleteAt(1, 3)
	require.NoError(t, err)

	assert.Equal(t, "aef", doc.Text())

	// inserting next to a tombstone still lands at the right visible spot
	_, err = doc.InsertAt(1, "X")
	require.NoError(t, err)
	assert.Equal(t, "aXef", doc.Text())
}

func TestInsertOutOfRange(t *testing.T) {
	doc := NewDoc(10)

	_, err := doc.InsertAt(3, "x")
	assert.Error(t, err)

	_, err = doc.DeleteAt(0, 1)
	assert.Error(t, err)
}

func TestApplyIsIdempotent(t *testing.T) {
	a := NewDoc(10)
	update, err := a.InsertAt(0, "dup")
	require.NoError(t, err)

	b := NewDoc(20)
	b.Apply(update)
	b.Apply(update)
	b.Apply(update)

	assert.Equal(t, "dup", b.Text())
}

func TestConvergenceUnderPermutation(t *testing.T) {
	// three replicas edit concurrently from the same base
	base := NewDoc(1)
	baseUpdate, err := base.InsertAt(0, "base")
	require.NoError(t, err)

	mkReplica := func(id uint64) *Doc {
		d := NewDoc(id)
		d.Apply(baseUpdate)
		return d
	}

	r1, r2, r3 := mkReplica(11), mkReplica(12), mkReplica(13)

	u1, err := r1.InsertAt(4, " one")
	require.NoError(t, err)
	u2, err := r2.InsertAt(4, " two")
	require.NoError(t, err)
	u3, err := r3.DeleteAt(0, 1)
	require.NoError(t, err)

	updates := []Update{u1, u2, u3}

	var converged string
	for i := 0; i < 24; i++ {
		perm := rand.Perm(len(updates))
		fresh := NewDoc(99)
		fresh.Apply(baseUpdate)
		for _, idx := range perm {
			fresh.Apply(updates[idx])
		}
		if converged == "" {
			converged = fresh.Text()
		}
		assert.Equal(t, converged, fresh.Text(), "permutation %v diverged", perm)
	}

	// every replica catches up to the same state
	r1.Apply(u2)
	r1.Apply(u3)
	r2.Apply(u1)
	r2.Apply(u3)
	r3.Apply(u1)
	r3.Apply(u2)
	assert.Equal(t, r1.Text(), r2.Text())
	assert.Equal(t, r2.Text(), r3.Text())
	assert.Equal(t, converged, r1.Text())
}

func TestConcurrentInsertsAtSameOrigin(t *testing.T) {
	base := NewDoc(1)
	baseUpdate, err := base.InsertAt(0, "ab")
	require.NoError(t, err)

	r1 := NewDoc(11)
	r1.Apply(baseUpdate)
	r2 := NewDoc(12)
	r2.Apply(baseUpdate)

	u1, err := r1.InsertAt(1, "X")
	require.NoError(t, err)
	u2, err := r2.InsertAt(1, "Y")
	require.NoError(t, err)

	r1.Apply(u2)
	r2.Apply(u1)

	assert.Equal(t, r1.Text(), r2.Text())
	assert.Len(t, r1.Text(), 4)
}

func TestInsertAfterMergeLandsAtVisibleSpot(t *testing.T) {
	base := NewDoc(1)
	baseUpdate, err := base.InsertAt(0, "ab")
	require.NoError(t, err)

	// a replica that only ever merged remote text inserts between a and b
	r := NewDoc(11)
	r.Apply(baseUpdate)
	update, err := r.InsertAt(1, "X")
	require.NoError(t, err)
	assert.Equal(t, "aXb", r.Text())

	base.Apply(update)
	assert.Equal(t, "aXb", base.Text())
}

func TestPendingOpsWaitForOrigin(t *testing.T) {
	source := NewDoc(11)
	first, err := source.InsertAt(0, "a")
	require.NoError(t, err)
	second, err := source.InsertAt(1, "b")
	require.NoError(t, err)

	// the reply arrives before the character it anchors to
	late := NewDoc(12)
	late.Apply(second)
	assert.Equal(t, "", late.Text())

	late.Apply(first)
	assert.Equal(t, "ab", late.Text())
}

func TestUpdateCodecRoundTrip(t *testing.T) {
	doc := NewDoc(10)
	update, err := doc.InsertAt(0, "wire")
	require.NoError(t, err)

	raw, err := EncodeUpdate(update)
	require.NoError(t, err)

	decoded, err := DecodeUpdate(raw)
	require.NoError(t, err)

	other := NewDoc(20)
	other.Apply(decoded)
	assert.Equal(t, "wire", other.Text())
}

func TestSnapshotRoundTrip(t *testing.T) {
	doc := NewDoc(10)
	_, err := doc.InsertAt(0, "snapshot me")
	require.NoError(t, err)
	_, err = doc.DeleteAt(0, 4)
	require.NoError(t, err)
	require.Equal(t, "shot me", doc.Text())

	raw, err := doc.Snapshot()
	require.NoError(t, err)

	restored := NewDoc(20)
	require.NoError(t, restored.Restore(raw))
	assert.Equal(t, "shot me", restored.Text())

	// edits continue cleanly on the restored replica
	_, err = restored.InsertAt(0, "re")
	require.NoError(t, err)
	assert.Equal(t, "reshot me", restored.Text())
}

func TestRestoreEmptySnapshot(t *testing.T) {
	doc := NewDoc(10)
	require.NoError(t, doc.Restore(nil))
	assert.Equal(t, "", doc.Text())
}
