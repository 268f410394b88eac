// Package buffersink implements the terminal stage of a media pipeline: a sink
// that queues the frames pushed to it by its upstream and hands them to an
// external consumer on demand.
//
// A consumer calls Fetch. When the queue is empty Fetch asks the upstream for
// exactly one frame, synchronously, and the upstream delivers it back through
// OnFrameArrival before RequestFrame returns. The queue therefore stays shallow
// while the consumer keeps pace, and grows without bound (with a warning at
// every power of ten from 100) when the upstream pushes faster than it is drained.
//
// A Sink is not safe for concurrent use. Hosts that produce and consume on
// different goroutines must serialise every call, including the upstream pull.
package buffersink

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/open-beagle/framesink/internal/fifo"
	"github.com/open-beagle/framesink/internal/frame"
)

// DefaultWarningThreshold is the queue length that triggers the first warning.
const DefaultWarningThreshold uint = 100

// Flags modify Fetch.
type Flags uint

const (
	// FlagPeek returns the head frame without removing it
	FlagPeek Flags = 1 << iota

	// FlagNoRequest fails with ErrWouldBlock instead of pulling from the upstream
	FlagNoRequest
)

// String returns the string representation of Flags
func (f Flags) String() string {
	switch f {
	case 0:
		return "none"
	case FlagPeek:
		return "peek"
	case FlagNoRequest:
		return "no_request"
	case FlagPeek | FlagNoRequest:
		return "peek|no_request"
	default:
		return fmt.Sprintf("flags(%d)", uint(f))
	}
}

// Stats is a snapshot of a sink's counters
type Stats struct {
	Name             string `json:"name"`
	Filter           string `json:"filter"`
	Kind             string `json:"kind"`
	Queued           int    `json:"queued"`
	Capacity         int    `json:"capacity"`
	WarningThreshold uint   `json:"warning_threshold"`
	FramesIn         uint64 `json:"frames_in"`
	FramesOut        uint64 `json:"frames_out"`
	FramesDropped    uint64 `json:"frames_dropped"`
	Requests         uint64 `json:"upstream_requests"`
	Closed           bool   `json:"closed"`
}

// Sink queues frames from one upstream link for a pull-based consumer.
type Sink struct {
	def    Definition
	name   string
	link   Link
	queue  *fifo.Queue
	logger *logrus.Entry
	obs    Observer

	warningLimit uint

	// only used for video
	pixelFormats []frame.PixelFormat

	// only used for audio
	sampleFormats  []frame.SampleFormat
	channelLayouts []frame.ChannelLayout

	framesIn      uint64
	framesOut     uint64
	framesDropped uint64
	requests      uint64
	closed        bool
}

func newSink(def Definition, link Link, opts []Option) (*Sink, error) {
	if link == nil {
		return nil, ErrNilLink
	}
	o := defaultOptions(def)
	for _, opt := range opts {
		opt(&o)
	}

	s := &Sink{
		def:          def,
		name:         o.name,
		link:         link,
		queue:        fifo.New(fifo.WithMaxLen(o.maxQueued)),
		obs:          o.observer,
		warningLimit: o.warningThreshold,
	}
	s.logger = o.logger.WithFields(logrus.Fields{
		"sink": s.name,
		"kind": def.MediaType.String(),
	})
	return s, nil
}

// Name returns the instance name used in diagnostics.
func (s *Sink) Name() string {
	return s.name
}

// Definition returns the filter this sink was created from.
func (s *Sink) Definition() Definition {
	return s.def
}

// MediaType returns the kind of media the sink accepts.
func (s *Sink) MediaType() frame.MediaType {
	return s.def.MediaType
}

// OnFrameArrival queues a frame delivered by the upstream, taking over its reference.
// If the frame cannot be queued it is released and the error returned; the
// upstream has no way to keep it.
func (s *Sink) OnFrameArrival(ref *frame.Ref) error {
	if ref == nil {
		return fifo.ErrNilRef
	}
	if s.closed {
		ref.Unref()
		s.framesDropped++
		s.obs.FrameDropped(s.name, ErrClosed)
		return ErrClosed
	}

	if err := s.queue.Push(ref); err != nil {
		s.logger.WithError(err).Error("Cannot buffer more frames. Consume some available frames before adding new ones.")
		ref.Unref()
		s.framesDropped++
		s.obs.FrameDropped(s.name, err)
		return err
	}
	s.framesIn++

	queued := s.queue.Len()
	s.obs.FrameQueued(s.name, queued)

	if s.warningLimit != 0 && uint(queued) >= s.warningLimit {
		s.logger.Warnf("%d buffers queued in %s, something may be wrong.", s.warningLimit, s.name)
		s.obs.QueueWarning(s.name, s.warningLimit)
		if s.warningLimit > math.MaxUint/10 {
			s.warningLimit = 0
		} else {
			s.warningLimit *= 10
		}
	}
	return nil
}

// Fetch returns the oldest queued frame.
//
// Without FlagPeek the frame is removed and the caller owns the returned
// reference. With FlagPeek the frame stays queued and the returned reference is
// borrowed until the next destructive Fetch or Close.
//
// When the queue is empty Fetch requests exactly one frame from the upstream,
// unless FlagNoRequest is set, in which case it fails with ErrWouldBlock.
// Upstream errors, including ErrEOF, are returned unchanged.
func (s *Sink) Fetch(flags Flags) (*frame.Ref, error) {
	if s.closed {
		return nil, ErrClosed
	}

	if s.queue.Len() == 0 {
		if flags&FlagNoRequest != 0 {
			return nil, ErrWouldBlock
		}
		s.requests++
		if err := s.link.RequestFrame(); err != nil {
			return nil, err
		}
		// the upstream may have called Close through a callback
		if s.closed {
			return nil, ErrClosed
		}
	}

	if s.queue.Len() == 0 {
		return nil, ErrInvalidState
	}

	if flags&FlagPeek != 0 {
		ref, err := s.queue.Peek()
		if err != nil {
			return nil, err
		}
		s.obs.FrameFetched(s.name, s.queue.Len(), true)
		return ref, nil
	}

	ref, err := s.queue.Pop()
	if err != nil {
		return nil, err
	}
	s.framesOut++
	s.obs.FrameFetched(s.name, s.queue.Len(), false)
	return ref, nil
}

// PendingCount returns the queued frames plus those the upstream can deliver
// without further work. It consumes nothing.
func (s *Sink) PendingCount() int {
	n := s.queue.Len()
	if s.closed {
		return n
	}
	if ready := s.link.PollFrame(); ready > 0 {
		n += ready
	}
	return n
}

// FrameRate returns the upstream link's frame rate. Only video sinks have one.
func (s *Sink) FrameRate() (frame.Rational, error) {
	if s.def.MediaType != frame.MediaTypeVideo {
		return frame.Rational{}, ErrNotVideo
	}
	return s.link.FrameRate(), nil
}

// SetFrameSize makes the upstream deliver frames of exactly n samples.
func (s *Sink) SetFrameSize(n uint) {
	s.link.SetFrameSize(n)
}

// Len returns the number of queued frames.
func (s *Sink) Len() int {
	return s.queue.Len()
}

// WarningThreshold returns the queue length that triggers the next warning, 0 when disabled.
func (s *Sink) WarningThreshold() uint {
	return s.warningLimit
}

// Stats returns a snapshot of the sink's counters.
func (s *Sink) Stats() Stats {
	return Stats{
		Name:             s.name,
		Filter:           s.def.Name,
		Kind:             s.def.MediaType.String(),
		Queued:           s.queue.Len(),
		Capacity:         s.queue.Cap(),
		WarningThreshold: s.warningLimit,
		FramesIn:         s.framesIn,
		FramesOut:        s.framesOut,
		FramesDropped:    s.framesDropped,
		Requests:         s.requests,
		Closed:           s.closed,
	}
}

// Close releases the accepted-format lists and every queued frame. Borrowed
// references obtained with FlagPeek become invalid.
func (s *Sink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.pixelFormats = nil
	s.sampleFormats = nil
	s.channelLayouts = nil

	if n := s.queue.Len(); n > 0 {
		s.logger.Debugf("Releasing %d queued frames", n)
	}
	s.queue.Clear()
	return nil
}
