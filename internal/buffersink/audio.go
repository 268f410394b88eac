package buffersink

import (
	"github.com/open-beagle/framesink/internal/frame"
)

// NewAudioSink creates an abuffersink. Nil params or nil lists leave the
// corresponding property unconstrained.
func NewAudioSink(link Link, params *AudioParams, opts ...Option) (*Sink, error) {
	s, err := newSink(AudioDefinition, link, opts)
	if err != nil {
		return nil, err
	}

	if params != nil {
		s.sampleFormats = nonEmpty(frame.CopySampleFormats(params.SampleFormats))
		s.channelLayouts = nonEmpty(frame.CopyChannelLayouts(params.ChannelLayouts))
	}
	return s, nil
}

// FilterSamples is the audio delivery entry point. It queues ref exactly like OnFrameArrival.
func (s *Sink) FilterSamples(ref *frame.Ref) error {
	return s.OnFrameArrival(ref)
}

// SampleFormats returns the accepted sample formats, nil when unconstrained.
func (s *Sink) SampleFormats() []frame.SampleFormat {
	return s.sampleFormats
}

// ChannelLayouts returns the accepted channel layouts, nil when unconstrained.
func (s *Sink) ChannelLayouts() []frame.ChannelLayout {
	return s.channelLayouts
}

// QueryFormats publishes the accepted formats to n.
//
// A video sink publishes its pixel formats, or the default "anything" set when
// unconstrained. An audio sink publishes only the lists it was configured with.
func (s *Sink) QueryFormats(n FormatNegotiator) error {
	if s.closed {
		return ErrClosed
	}

	switch s.def.MediaType {
	case frame.MediaTypeVideo:
		if s.pixelFormats != nil {
			return n.SetPixelFormats(s.pixelFormats)
		}
		return n.SetDefaultFormats()

	case frame.MediaTypeAudio:
		if s.sampleFormats != nil {
			if err := n.SetSampleFormats(s.sampleFormats); err != nil {
				return err
			}
		}
		if s.channelLayouts != nil {
			if err := n.SetChannelLayouts(s.channelLayouts); err != nil {
				return err
			}
		}
	}
	return nil
}
