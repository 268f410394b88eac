// Package fifo implements the growable queue of owning frame references that
// backs a buffer sink.
//
// The queue stores handles in a ring. When the ring is full a push doubles its
// capacity before appending, so the logical capacity is unbounded unless a hard
// cap is configured. Push moves the caller's reference into the queue, Pop moves
// the head reference out to the caller and Peek lends the head without moving it.
//
// A Queue performs no locking.
package fifo

import (
	"errors"

	"github.com/open-beagle/framesink/internal/frame"
)

// InitialCapacity is the number of references a new queue holds before its first growth.
const InitialCapacity = 8

var (
	// ErrOutOfMemory is returned by Push when the queue cannot grow.
	ErrOutOfMemory = errors.New("fifo: cannot grow queue")

	// ErrEmpty is returned by Pop and Peek on an empty queue.
	ErrEmpty = errors.New("fifo: queue is empty")

	// ErrNilRef is returned by Push for a nil reference.
	ErrNilRef = errors.New("fifo: nil frame reference")
)

// Queue is a FIFO of frame references.
type Queue struct {
	buf    []*frame.Ref
	head   int
	count  int
	maxLen int
}

// Option configures a Queue.
type Option func(*Queue)

// WithInitialCapacity sets the starting ring size.
func WithInitialCapacity(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.buf = make([]*frame.Ref, n)
		}
	}
}

// WithMaxLen caps the number of queued references. Growth that would exceed the
// cap fails with ErrOutOfMemory. Zero means unbounded.
func WithMaxLen(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.maxLen = n
		}
	}
}

// New creates an empty queue.
func New(opts ...Option) *Queue {
	q := &Queue{buf: make([]*frame.Ref, InitialCapacity)}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Push appends ref at the tail, taking over the caller's reference.
// On error the queue does not retain ref and the caller still owns it.
func (q *Queue) Push(ref *frame.Ref) error {
	if ref == nil {
		return ErrNilRef
	}
	if q.maxLen > 0 && q.count >= q.maxLen {
		return ErrOutOfMemory
	}
	if q.count == len(q.buf) {
		if err := q.grow(); err != nil {
			return err
		}
	}
	q.buf[(q.head+q.count)%len(q.buf)] = ref
	q.count++
	return nil
}

// grow doubles the ring, keeping queue order, clamped to maxLen.
func (q *Queue) grow() error {
	newCap := len(q.buf) * 2
	if newCap == 0 {
		newCap = InitialCapacity
	}
	if q.maxLen > 0 && newCap > q.maxLen {
		newCap = q.maxLen
	}
	if newCap <= len(q.buf) {
		return ErrOutOfMemory
	}

	buf := make([]*frame.Ref, newCap)
	n := copy(buf, q.buf[q.head:])
	copy(buf[n:], q.buf[:q.head])
	q.buf = buf
	q.head = 0
	return nil
}

// Pop removes the head reference and hands ownership to the caller.
func (q *Queue) Pop() (*frame.Ref, error) {
	if q.count == 0 {
		return nil, ErrEmpty
	}
	ref := q.buf[q.head]
	q.buf[q.head] = nil
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return ref, nil
}

// Peek returns the head reference without removing it. The reference stays
// owned by the queue and is valid until the next Pop or Clear.
func (q *Queue) Peek() (*frame.Ref, error) {
	if q.count == 0 {
		return nil, ErrEmpty
	}
	return q.buf[q.head], nil
}

// Len returns the number of queued references.
func (q *Queue) Len() int {
	return q.count
}

// Cap returns the current ring size.
func (q *Queue) Cap() int {
	return len(q.buf)
}

// Clear pops and releases every queued reference.
func (q *Queue) Clear() {
	for q.count > 0 {
		ref, _ := q.Pop()
		ref.Unref()
	}
	q.head = 0
}
