// Package frame defines the decoded media unit moved through a sink and the
// reference-counted handle that carries it.
package frame

import (
	"time"
)

// Frame represents one decoded media unit: a video plane set or a block of audio samples
type Frame struct {
	// Planes holds the payload, one slice per plane (packed formats use a single plane)
	Planes [][]byte

	// PTS is the presentation timestamp relative to the start of the stream
	PTS time.Duration

	// Duration of this frame
	Duration time.Duration

	// Format contains format information
	Format Format
}

// Format describes the media format of a frame
type Format struct {
	// MediaType indicates the type of media (video, audio)
	MediaType MediaType

	// Width, Height and PixelFormat for video frames
	Width       int
	Height      int
	PixelFormat PixelFormat

	// SampleFormat, ChannelLayout, SampleRate and Samples for audio frames
	SampleFormat  SampleFormat
	ChannelLayout ChannelLayout
	SampleRate    int
	Samples       int
}

// MediaType represents the type of media
type MediaType int

const (
	MediaTypeUnknown MediaType = iota
	MediaTypeVideo
	MediaTypeAudio
)

// String returns the string representation of MediaType
func (mt MediaType) String() string {
	switch mt {
	case MediaTypeVideo:
		return "video"
	case MediaTypeAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// ParseMediaType parses "video" or "audio"
func ParseMediaType(s string) (MediaType, error) {
	switch s {
	case "video":
		return MediaTypeVideo, nil
	case "audio":
		return MediaTypeAudio, nil
	default:
		return MediaTypeUnknown, &UnknownNameError{Kind: "media type", Name: s}
	}
}

// NewVideoFrame creates a video frame with a single packed plane
func NewVideoFrame(data []byte, width, height int, pixFmt PixelFormat, pts time.Duration) *Frame {
	return &Frame{
		Planes: [][]byte{data},
		PTS:    pts,
		Format: Format{
			MediaType:   MediaTypeVideo,
			Width:       width,
			Height:      height,
			PixelFormat: pixFmt,
		},
	}
}

// NewAudioFrame creates an audio frame with interleaved samples in a single plane
func NewAudioFrame(data []byte, samples, sampleRate int, sampleFmt SampleFormat, layout ChannelLayout, pts time.Duration) *Frame {
	f := &Frame{
		Planes: [][]byte{data},
		PTS:    pts,
		Format: Format{
			MediaType:     MediaTypeAudio,
			SampleFormat:  sampleFmt,
			ChannelLayout: layout,
			SampleRate:    sampleRate,
			Samples:       samples,
		},
	}
	if sampleRate > 0 {
		f.Duration = time.Duration(samples) * time.Second / time.Duration(sampleRate)
	}
	return f
}

// IsVideo returns true if this is a video frame
func (f *Frame) IsVideo() bool {
	return f.Format.MediaType == MediaTypeVideo
}

// IsAudio returns true if this is an audio frame
func (f *Frame) IsAudio() bool {
	return f.Format.MediaType == MediaTypeAudio
}

// Size returns the payload size in bytes across all planes
func (f *Frame) Size() int {
	n := 0
	for _, p := range f.Planes {
		n += len(p)
	}
	return n
}

// Bytes returns the payload as one contiguous slice. Single-plane frames
// return the plane itself without copying.
func (f *Frame) Bytes() []byte {
	switch len(f.Planes) {
	case 0:
		return nil
	case 1:
		return f.Planes[0]
	}
	out := make([]byte, 0, f.Size())
	for _, p := range f.Planes {
		out = append(out, p...)
	}
	return out
}
