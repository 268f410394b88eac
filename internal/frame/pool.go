package frame

import (
	"sync/atomic"
)

// Pool recycles payload buffers between frames to reduce allocations
type Pool struct {
	buffers chan []byte
	size    int

	allocated atomic.Int64
	reused    atomic.Int64
}

// NewPool creates a pool holding at most size idle buffers
func NewPool(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{
		buffers: make(chan []byte, size),
		size:    size,
	}
}

// Get returns a buffer of length n, reusing an idle one when its capacity allows
func (p *Pool) Get(n int) []byte {
	select {
	case buf := <-p.buffers:
		if cap(buf) >= n {
			p.reused.Add(1)
			return buf[:n]
		}
	default:
		// Pool is empty, create new buffer
	}
	p.allocated.Add(1)
	return make([]byte, n)
}

// Put returns a buffer to the pool; it is dropped when the pool is full
func (p *Pool) Put(buf []byte) {
	if buf == nil {
		return
	}
	select {
	case p.buffers <- buf[:0]:
	default:
	}
}

// Wrap returns a single-reference handle whose release returns f's planes to the pool
func (p *Pool) Wrap(f *Frame) *Ref {
	return NewRef(f, p.release)
}

func (p *Pool) release(f *Frame) {
	for i, plane := range f.Planes {
		p.Put(plane)
		f.Planes[i] = nil
	}
}

// Idle returns the number of buffers waiting for reuse
func (p *Pool) Idle() int {
	return len(p.buffers)
}

// Allocated returns how many buffers Get had to allocate
func (p *Pool) Allocated() int64 {
	return p.allocated.Load()
}

// Reused returns how many Get calls were served from the pool
func (p *Pool) Reused() int64 {
	return p.reused.Load()
}
