package frame

import (
	"sync/atomic"
)

// Ref is a reference-counted handle to a Frame.
//
// The holder of a reference owns it and must call Unref exactly once when done.
// A reference obtained by peeking is borrowed: the borrower must not Unref it and
// must not use it after the owner's next destructive operation.
type Ref struct {
	frame   *Frame
	refs    atomic.Int32
	release func(*Frame)
}

// NewRef wraps f in a handle holding one reference. release, if non-nil, runs
// once when the last reference is dropped.
func NewRef(f *Frame, release func(*Frame)) *Ref {
	r := &Ref{frame: f, release: release}
	r.refs.Store(1)
	return r
}

// Frame returns the referenced frame.
func (r *Ref) Frame() *Frame {
	return r.frame
}

// Ref takes an additional reference and returns the same handle.
func (r *Ref) Ref() *Ref {
	if r.refs.Add(1) <= 1 {
		panic("frame: Ref on a released frame")
	}
	return r
}

// Unref drops one reference.
func (r *Ref) Unref() {
	n := r.refs.Add(-1)
	switch {
	case n < 0:
		panic("frame: reference released twice")
	case n == 0 && r.release != nil:
		r.release(r.frame)
	}
}

// Refs returns the number of live references.
func (r *Ref) Refs() int {
	return int(r.refs.Load())
}
