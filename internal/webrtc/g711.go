package webrtc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/pion/webrtc/v4"

	"github.com/open-beagle/framesink/internal/frame"
)

// g711Rate is the fixed G.711 sample rate
const g711Rate = 8000

// ErrUnsupportedCodec 没有可用于该 MIME 类型的编码器
var ErrUnsupportedCodec = errors.New("webrtc: no encoder for codec")

// Encoder turns raw sink frames into track payloads
type Encoder interface {
	Codec() webrtc.RTPCodecCapability
	Encode(f *frame.Frame) ([]byte, error)
}

// NewEncoder returns an encoder for mimeType. Only G.711 is available since
// the sinks carry raw PCM and raw pictures.
func NewEncoder(mimeType string) (Encoder, error) {
	switch {
	case strings.EqualFold(mimeType, webrtc.MimeTypePCMU):
		return &G711Encoder{mimeType: webrtc.MimeTypePCMU, compress: linearToULaw}, nil
	case strings.EqualFold(mimeType, webrtc.MimeTypePCMA):
		return &G711Encoder{mimeType: webrtc.MimeTypePCMA, compress: linearToALaw}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCodec, mimeType)
	}
}

// G711Encoder downmixes to mono, decimates to 8kHz by averaging and
// compresses each sample. Samples left over at the end of a frame carry into
// the next one, so the output rate stays exact across frames.
type G711Encoder struct {
	mimeType string
	compress func(int16) byte

	sum   float64
	count int
}

func (e *G711Encoder) Codec() webrtc.RTPCodecCapability {
	return webrtc.RTPCodecCapability{MimeType: e.mimeType, ClockRate: g711Rate, Channels: 1}
}

func (e *G711Encoder) Encode(f *frame.Frame) ([]byte, error) {
	if !f.IsAudio() {
		return nil, fmt.Errorf("%s needs audio frames, got %s", e.mimeType, f.Format.MediaType)
	}
	rate := f.Format.SampleRate
	if rate < g711Rate || rate%g711Rate != 0 {
		return nil, fmt.Errorf("%s: sample rate %d is not a multiple of %d", e.mimeType, rate, g711Rate)
	}
	channels := f.Format.ChannelLayout.Channels()
	bps := f.Format.SampleFormat.BytesPerSample()
	if channels == 0 || bps == 0 {
		return nil, fmt.Errorf("%s: unsupported format %s/%s", e.mimeType, f.Format.SampleFormat, f.Format.ChannelLayout)
	}

	data := f.Bytes()
	samples := f.Format.Samples
	if len(data) < samples*channels*bps {
		return nil, fmt.Errorf("%s: short payload, %d bytes for %d samples", e.mimeType, len(data), samples)
	}

	step := rate / g711Rate
	out := make([]byte, 0, (e.count+samples)/step)
	for i := 0; i < samples; i++ {
		var mix float64
		for c := 0; c < channels; c++ {
			mix += readSample(data[(i*channels+c)*bps:], f.Format.SampleFormat)
		}
		e.sum += mix / float64(channels)
		e.count++
		if e.count == step {
			out = append(out, e.compress(toPCM16(e.sum/float64(step))))
			e.sum, e.count = 0, 0
		}
	}
	return out, nil
}

// readSample decodes one little-endian sample to [-1, 1]
func readSample(b []byte, sf frame.SampleFormat) float64 {
	switch sf {
	case frame.SampleFormatU8:
		return (float64(b[0]) - 128) / 128
	case frame.SampleFormatS16:
		return float64(int16(binary.LittleEndian.Uint16(b))) / 32768
	case frame.SampleFormatS32:
		return float64(int32(binary.LittleEndian.Uint32(b))) / 2147483648
	case frame.SampleFormatFLT:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case frame.SampleFormatDBL:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	default:
		return 0
	}
}

func toPCM16(v float64) int16 {
	v = math.Max(-1, math.Min(1, v))
	return int16(math.Round(v * math.MaxInt16))
}

// linearToULaw implements ITU-T G.711 µ-law
func linearToULaw(s int16) byte {
	const (
		bias = 0x84
		clip = 32635
	)
	sample := int(s)
	sign := 0
	if sample < 0 {
		sample = -sample
		sign = 0x80
	}
	if sample > clip {
		sample = clip
	}
	sample += bias

	exponent := 7
	for mask := 0x4000; sample&mask == 0 && exponent > 0; mask >>= 1 {
		exponent--
	}
	mantissa := (sample >> (exponent + 3)) & 0x0F
	return ^byte(sign | exponent<<4 | mantissa)
}

// linearToALaw implements ITU-T G.711 A-law
func linearToALaw(s int16) byte {
	pcm := int(s) >> 3
	mask := 0xD5
	if pcm < 0 {
		mask = 0x55
		pcm = -pcm - 1
	}

	seg := 0
	for end := 0x1F; seg < 8 && pcm > end; end = end<<1 | 1 {
		seg++
	}
	if seg >= 8 {
		return byte(0x7F ^ mask)
	}

	aval := seg << 4
	if seg < 2 {
		aval |= (pcm >> 1) & 0x0F
	} else {
		aval |= (pcm >> seg) & 0x0F
	}
	return byte(aval ^ mask)
}
