package buffersink

import (
	"github.com/open-beagle/framesink/internal/frame"
)

// Link is the single upstream connection a sink pulls from.
//
// RequestFrame asks the upstream to produce exactly one frame. It runs
// synchronously and may deliver zero or more frames to the sink through
// OnFrameArrival before returning. End of stream is reported as ErrEOF.
type Link interface {
	// RequestFrame asks the upstream to produce one frame
	RequestFrame() error

	// PollFrame returns how many frames the upstream can deliver without further work
	PollFrame() int

	// FrameRate returns the declared frame rate of the link
	FrameRate() frame.Rational

	// SetFrameSize forces delivery in groups of exactly n samples
	SetFrameSize(n uint)
}

// FormatNegotiator receives the formats a sink accepts before the pipeline runs.
type FormatNegotiator interface {
	SetPixelFormats(formats []frame.PixelFormat) error
	SetSampleFormats(formats []frame.SampleFormat) error
	SetChannelLayouts(layouts []frame.ChannelLayout) error

	// SetDefaultFormats publishes "anything the upstream offers"
	SetDefaultFormats() error
}

// Observer is notified of queue activity. Implementations must not call back into the sink.
type Observer interface {
	FrameQueued(sink string, queued int)
	FrameFetched(sink string, queued int, peek bool)
	FrameDropped(sink string, reason error)
	QueueWarning(sink string, threshold uint)
}

type nopObserver struct{}

func (nopObserver) FrameQueued(string, int)        {}
func (nopObserver) FrameFetched(string, int, bool) {}
func (nopObserver) FrameDropped(string, error)     {}
func (nopObserver) QueueWarning(string, uint)      {}
