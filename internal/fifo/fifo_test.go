package fifo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-beagle/framesink/internal/frame"
)

func newRef(pts int) *frame.Ref {
	return frame.NewRef(&frame.Frame{PTS: time.Duration(pts)}, nil)
}

func TestQueue_FIFOOrderAcrossGrowth(t *testing.T) {
	q := New()
	assert.Equal(t, InitialCapacity, q.Cap())

	const n = 100
	refs := make([]*frame.Ref, n)
	for i := range refs {
		refs[i] = newRef(i)
		require.NoError(t, q.Push(refs[i]))
	}
	assert.Equal(t, n, q.Len())
	assert.Equal(t, 128, q.Cap(), "8 doubled four times")

	for i := 0; i < n; i++ {
		got, err := q.Pop()
		require.NoError(t, err)
		assert.Same(t, refs[i], got, "position %d", i)
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueue_GrowWhileWrapped(t *testing.T) {
	q := New(WithInitialCapacity(4))
	refs := make([]*frame.Ref, 0, 10)
	push := func() {
		r := newRef(len(refs))
		refs = append(refs, r)
		require.NoError(t, q.Push(r))
	}

	// move head into the middle of the ring so the next growth has to unwrap it
	for i := 0; i < 4; i++ {
		push()
	}
	for i := 0; i < 3; i++ {
		got, err := q.Pop()
		require.NoError(t, err)
		assert.Same(t, refs[i], got)
	}
	for i := 0; i < 6; i++ {
		push()
	}
	assert.Equal(t, 7, q.Len())
	assert.Equal(t, 8, q.Cap())

	for i := 3; i < len(refs); i++ {
		got, err := q.Pop()
		require.NoError(t, err)
		assert.Same(t, refs[i], got)
	}
}

func TestQueue_PeekDoesNotRemove(t *testing.T) {
	q := New()
	a, b := newRef(0), newRef(1)
	require.NoError(t, q.Push(a))
	require.NoError(t, q.Push(b))

	peeked, err := q.Peek()
	require.NoError(t, err)
	assert.Same(t, a, peeked)
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, 1, a.Refs(), "peek must not take a reference")

	popped, err := q.Pop()
	require.NoError(t, err)
	assert.Same(t, peeked, popped)
	assert.Equal(t, 1, q.Len())
}

func TestQueue_EmptyErrors(t *testing.T) {
	q := New()
	_, err := q.Pop()
	assert.ErrorIs(t, err, ErrEmpty)
	_, err = q.Peek()
	assert.ErrorIs(t, err, ErrEmpty)
	assert.ErrorIs(t, q.Push(nil), ErrNilRef)
}

func TestQueue_MaxLen(t *testing.T) {
	q := New(WithInitialCapacity(2), WithMaxLen(3))
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Push(newRef(i)))
	}
	assert.Equal(t, 3, q.Cap(), "growth is clamped to the cap")

	rejected := newRef(3)
	assert.ErrorIs(t, q.Push(rejected), ErrOutOfMemory)
	assert.Equal(t, 3, q.Len())
	assert.Equal(t, 1, rejected.Refs(), "rejected reference stays with the caller")

	_, err := q.Pop()
	require.NoError(t, err)
	assert.NoError(t, q.Push(rejected))
}

func TestQueue_ClearReleasesEverything(t *testing.T) {
	released := 0
	q := New()
	for i := 0; i < 20; i++ {
		require.NoError(t, q.Push(frame.NewRef(&frame.Frame{}, func(*frame.Frame) { released++ })))
	}
	q.Clear()
	assert.Equal(t, 20, released)
	assert.Equal(t, 0, q.Len())

	// queue stays usable
	require.NoError(t, q.Push(newRef(0)))
	assert.Equal(t, 1, q.Len())
}
