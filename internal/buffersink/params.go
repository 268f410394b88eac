package buffersink

import (
	"github.com/open-beagle/framesink/internal/frame"
)

// Definition describes one sink filter.
type Definition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	MediaType   frame.MediaType `json:"-"`
}

var (
	// VideoDefinition is the video sink filter
	VideoDefinition = Definition{
		Name:        "buffersink",
		Description: "Buffer video frames, and make them available to the end of the filter graph.",
		MediaType:   frame.MediaTypeVideo,
	}

	// AudioDefinition is the audio sink filter
	AudioDefinition = Definition{
		Name:        "abuffersink",
		Description: "Buffer audio frames, and make them available to the end of the filter graph.",
		MediaType:   frame.MediaTypeAudio,
	}
)

// Definitions returns the available sink filters.
func Definitions() []Definition {
	return []Definition{VideoDefinition, AudioDefinition}
}

// VideoParams lists the pixel formats a video sink accepts.
// A nil list accepts whatever the upstream offers. Lists may be terminated
// early with frame.PixelFormatNone.
type VideoParams struct {
	PixelFormats []frame.PixelFormat
}

// AudioParams lists the sample formats and channel layouts an audio sink accepts.
// Nil lists leave that property unconstrained.
type AudioParams struct {
	SampleFormats  []frame.SampleFormat
	ChannelLayouts []frame.ChannelLayout
}

// DefaultVideoParams returns parameters accepting any pixel format.
func DefaultVideoParams() VideoParams {
	return VideoParams{}
}

// DefaultAudioParams returns parameters accepting any sample format and channel layout.
func DefaultAudioParams() AudioParams {
	return AudioParams{}
}

// nonEmpty maps an empty list to nil: an empty accept-list means no constraint.
func nonEmpty[T any](list []T) []T {
	if len(list) == 0 {
		return nil
	}
	return list
}
