package frame

import (
	"fmt"
	"math/bits"
	"strings"
)

// UnknownNameError reports a format name that has no matching constant.
type UnknownNameError struct {
	Kind string
	Name string
}

func (e *UnknownNameError) Error() string {
	return fmt.Sprintf("unknown %s: %q", e.Kind, e.Name)
}

// PixelFormat represents video pixel formats.
type PixelFormat int

// PixelFormatNone terminates pixel format lists.
const PixelFormatNone PixelFormat = -1

const (
	PixelFormatYUV420P PixelFormat = iota // planar YUV 4:2:0
	PixelFormatNV12                       // Y plane + interleaved UV
	PixelFormatRGB24                      // packed RGB, 3 bytes per pixel
	PixelFormatRGBA                       // packed RGBA, 4 bytes per pixel
	PixelFormatBGRA                       // packed BGRA, 4 bytes per pixel
	PixelFormatGray8                      // single 8-bit luma plane
)

var pixelFormatNames = map[PixelFormat]string{
	PixelFormatYUV420P: "yuv420p",
	PixelFormatNV12:    "nv12",
	PixelFormatRGB24:   "rgb24",
	PixelFormatRGBA:    "rgba",
	PixelFormatBGRA:    "bgra",
	PixelFormatGray8:   "gray",
}

func (p PixelFormat) String() string {
	if name, ok := pixelFormatNames[p]; ok {
		return name
	}
	if p == PixelFormatNone {
		return "none"
	}
	return fmt.Sprintf("pixfmt(%d)", int(p))
}

// FrameSize returns the payload size of one width x height frame.
func (p PixelFormat) FrameSize(width, height int) int {
	switch p {
	case PixelFormatYUV420P, PixelFormatNV12:
		return width*height + 2*((width+1)/2)*((height+1)/2)
	case PixelFormatRGB24:
		return width * height * 3
	case PixelFormatRGBA, PixelFormatBGRA:
		return width * height * 4
	case PixelFormatGray8:
		return width * height
	default:
		return 0
	}
}

// ParsePixelFormat looks up a pixel format by name.
func ParsePixelFormat(name string) (PixelFormat, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for p, n := range pixelFormatNames {
		if n == name {
			return p, nil
		}
	}
	return PixelFormatNone, &UnknownNameError{Kind: "pixel format", Name: name}
}

// SampleFormat represents audio sample formats.
type SampleFormat int

// SampleFormatNone terminates sample format lists.
const SampleFormatNone SampleFormat = -1

const (
	SampleFormatU8  SampleFormat = iota // unsigned 8 bits
	SampleFormatS16                     // signed 16 bits
	SampleFormatS32                     // signed 32 bits
	SampleFormatFLT                     // float
	SampleFormatDBL                     // double
)

var sampleFormatNames = map[SampleFormat]string{
	SampleFormatU8:  "u8",
	SampleFormatS16: "s16",
	SampleFormatS32: "s32",
	SampleFormatFLT: "flt",
	SampleFormatDBL: "dbl",
}

func (s SampleFormat) String() string {
	if name, ok := sampleFormatNames[s]; ok {
		return name
	}
	if s == SampleFormatNone {
		return "none"
	}
	return fmt.Sprintf("samplefmt(%d)", int(s))
}

// BytesPerSample returns the size of one sample of one channel.
func (s SampleFormat) BytesPerSample() int {
	switch s {
	case SampleFormatU8:
		return 1
	case SampleFormatS16:
		return 2
	case SampleFormatS32, SampleFormatFLT:
		return 4
	case SampleFormatDBL:
		return 8
	default:
		return 0
	}
}

// ParseSampleFormat looks up a sample format by name.
func ParseSampleFormat(name string) (SampleFormat, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for s, n := range sampleFormatNames {
		if n == name {
			return s, nil
		}
	}
	return SampleFormatNone, &UnknownNameError{Kind: "sample format", Name: name}
}

// ChannelLayout is a bitmask of speaker positions.
type ChannelLayout int64

// ChannelLayoutNone terminates channel layout lists.
const ChannelLayoutNone ChannelLayout = -1

const (
	ChannelFrontLeft    ChannelLayout = 0x1
	ChannelFrontRight   ChannelLayout = 0x2
	ChannelFrontCenter  ChannelLayout = 0x4
	ChannelLowFrequency ChannelLayout = 0x8
	ChannelBackLeft     ChannelLayout = 0x10
	ChannelBackRight    ChannelLayout = 0x20
	ChannelSideLeft     ChannelLayout = 0x200
	ChannelSideRight    ChannelLayout = 0x400
)

const (
	ChannelLayoutMono      = ChannelFrontCenter
	ChannelLayoutStereo    = ChannelFrontLeft | ChannelFrontRight
	ChannelLayout2Point1   = ChannelLayoutStereo | ChannelLowFrequency
	ChannelLayoutQuad      = ChannelLayoutStereo | ChannelBackLeft | ChannelBackRight
	ChannelLayout5Point1   = ChannelLayoutStereo | ChannelFrontCenter | ChannelLowFrequency | ChannelSideLeft | ChannelSideRight
	ChannelLayoutUndefined = ChannelLayout(0)
)

var channelLayoutNames = map[ChannelLayout]string{
	ChannelLayoutMono:    "mono",
	ChannelLayoutStereo:  "stereo",
	ChannelLayout2Point1: "2.1",
	ChannelLayoutQuad:    "quad",
	ChannelLayout5Point1: "5.1",
}

func (c ChannelLayout) String() string {
	if name, ok := channelLayoutNames[c]; ok {
		return name
	}
	if c == ChannelLayoutNone {
		return "none"
	}
	return fmt.Sprintf("%d channels (0x%x)", c.Channels(), int64(c))
}

// Channels returns the number of channels in the layout.
func (c ChannelLayout) Channels() int {
	if c < 0 {
		return 0
	}
	return bits.OnesCount64(uint64(c))
}

// ParseChannelLayout looks up a channel layout by name.
func ParseChannelLayout(name string) (ChannelLayout, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for c, n := range channelLayoutNames {
		if n == name {
			return c, nil
		}
	}
	return ChannelLayoutNone, &UnknownNameError{Kind: "channel layout", Name: name}
}

// CopyPixelFormats copies list up to, not including, the first PixelFormatNone.
// A nil list stays nil.
func CopyPixelFormats(list []PixelFormat) []PixelFormat {
	return copyUntil(list, PixelFormatNone)
}

// CopySampleFormats copies list up to, not including, the first SampleFormatNone.
func CopySampleFormats(list []SampleFormat) []SampleFormat {
	return copyUntil(list, SampleFormatNone)
}

// CopyChannelLayouts copies list up to, not including, the first ChannelLayoutNone.
func CopyChannelLayouts(list []ChannelLayout) []ChannelLayout {
	return copyUntil(list, ChannelLayoutNone)
}

func copyUntil[T comparable](list []T, sentinel T) []T {
	if list == nil {
		return nil
	}
	out := make([]T, 0, len(list))
	for _, v := range list {
		if v == sentinel {
			break
		}
		out = append(out, v)
	}
	return out
}
