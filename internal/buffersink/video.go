package buffersink

import (
	"github.com/open-beagle/framesink/internal/frame"
)

// NewVideoSink creates a buffersink for video. A nil params accepts any pixel format.
func NewVideoSink(link Link, params *VideoParams, opts ...Option) (*Sink, error) {
	s, err := newSink(VideoDefinition, link, opts)
	if err != nil {
		return nil, err
	}

	if params == nil {
		s.logger.Warn("No opaque field provided")
	} else {
		s.pixelFormats = nonEmpty(frame.CopyPixelFormats(params.PixelFormats))
	}
	return s, nil
}

// PixelFormats returns the accepted pixel formats, nil when unconstrained.
func (s *Sink) PixelFormats() []frame.PixelFormat {
	return s.pixelFormats
}
