// Package source provides a synthetic upstream for buffer sinks: a test-pattern
// video generator and a tone audio generator that implement the sink's
// upstream-pull contract and can also push frames on their own schedule.
package source

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/open-beagle/framesink/internal/buffersink"
	"github.com/open-beagle/framesink/internal/frame"
)

// ErrNotConnected is returned when frames are requested before Connect.
var ErrNotConnected = errors.New("source: generator is not connected to a sink")

// DeliverFunc hands one frame reference downstream, transferring ownership.
type DeliverFunc func(ref *frame.Ref) error

// Config describes the stream a Generator produces
type Config struct {
	MediaType frame.MediaType

	// video
	FrameRate   frame.Rational
	Width       int
	Height      int
	PixelFormat frame.PixelFormat

	// audio
	SampleRate      int
	SampleFormat    frame.SampleFormat
	ChannelLayout   frame.ChannelLayout
	SamplesPerFrame int
	ToneHz          float64

	// Frames is the stream length, 0 for endless
	Frames int

	// Burst is the number of frames produced per request
	Burst int

	// PoolSize bounds the number of idle payload buffers kept for reuse
	PoolSize int
}

// DefaultVideoConfig returns a 640x360 yuv420p stream at 30 fps
func DefaultVideoConfig() Config {
	return Config{
		MediaType:   frame.MediaTypeVideo,
		FrameRate:   frame.Rational{Num: 30, Den: 1},
		Width:       640,
		Height:      360,
		PixelFormat: frame.PixelFormatYUV420P,
		Burst:       1,
		PoolSize:    16,
	}
}

// DefaultAudioConfig returns 48 kHz stereo s16 in 1024-sample frames
func DefaultAudioConfig() Config {
	return Config{
		MediaType:       frame.MediaTypeAudio,
		SampleRate:      48000,
		SampleFormat:    frame.SampleFormatS16,
		ChannelLayout:   frame.ChannelLayoutStereo,
		SamplesPerFrame: 1024,
		ToneHz:          440,
		Burst:           1,
		PoolSize:        16,
	}
}

// Validate checks the configuration for the chosen media type
func (c *Config) Validate() error {
	if c.Frames < 0 {
		return fmt.Errorf("frames must not be negative, got: %d", c.Frames)
	}
	if c.Burst < 1 {
		return fmt.Errorf("burst must be at least 1, got: %d", c.Burst)
	}

	switch c.MediaType {
	case frame.MediaTypeVideo:
		if c.Width <= 0 || c.Height <= 0 {
			return fmt.Errorf("invalid video size: %dx%d", c.Width, c.Height)
		}
		if c.FrameRate.IsZero() || c.FrameRate.Num < 0 {
			return fmt.Errorf("invalid frame rate: %s", c.FrameRate)
		}
		if c.PixelFormat.FrameSize(c.Width, c.Height) == 0 {
			return fmt.Errorf("unsupported pixel format: %s", c.PixelFormat)
		}
	case frame.MediaTypeAudio:
		if c.SampleRate <= 0 {
			return fmt.Errorf("invalid sample rate: %d", c.SampleRate)
		}
		if c.SamplesPerFrame <= 0 {
			return fmt.Errorf("invalid samples per frame: %d", c.SamplesPerFrame)
		}
		if c.SampleFormat.BytesPerSample() == 0 {
			return fmt.Errorf("unsupported sample format: %s", c.SampleFormat)
		}
		if c.ChannelLayout.Channels() == 0 {
			return fmt.Errorf("invalid channel layout: %s", c.ChannelLayout)
		}
	default:
		return fmt.Errorf("unsupported media type: %s", c.MediaType)
	}
	return nil
}

// Generator synthesises frames on request. It is not safe for concurrent use;
// it runs on whatever goroutine drives the sink it is connected to.
type Generator struct {
	cfg     Config
	deliver DeliverFunc
	pool    *frame.Pool
	logger  *logrus.Entry

	produced  int
	samples   int64
	frameSize uint
}

// NewGenerator creates a generator for cfg
func NewGenerator(cfg Config, logger *logrus.Entry) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid source config: %w", err)
	}
	if logger == nil {
		logger = logrus.WithField("component", "source")
	}
	return &Generator{
		cfg:    cfg,
		pool:   frame.NewPool(cfg.PoolSize),
		logger: logger,
	}, nil
}

// Connect sets the downstream delivery function, typically Sink.OnFrameArrival
// for video or Sink.FilterSamples for audio.
func (g *Generator) Connect(deliver DeliverFunc) {
	g.deliver = deliver
}

// Config returns the current stream configuration, including negotiated formats
func (g *Generator) Config() Config {
	return g.cfg
}

// Produced returns the number of frames generated so far
func (g *Generator) Produced() int {
	return g.produced
}

// Pool returns the payload pool frames are released into
func (g *Generator) Pool() *frame.Pool {
	return g.pool
}

func (g *Generator) exhausted() bool {
	return g.cfg.Frames > 0 && g.produced >= g.cfg.Frames
}

func (g *Generator) remaining() int {
	if g.cfg.Frames == 0 {
		return math.MaxInt
	}
	return g.cfg.Frames - g.produced
}

// RequestFrame produces one burst of frames and delivers it before returning.
// It returns buffersink.ErrEOF once the configured number of frames is spent.
func (g *Generator) RequestFrame() error {
	if g.deliver == nil {
		return ErrNotConnected
	}
	if g.exhausted() {
		return buffersink.ErrEOF
	}
	_, err := g.Produce(g.cfg.Burst)
	return err
}

// Produce pushes up to n frames downstream without being asked, the way an
// upstream running ahead of its consumer does. It returns how many frames
// were generated; frames the sink refuses are counted but lost.
func (g *Generator) Produce(n int) (int, error) {
	if g.deliver == nil {
		return 0, ErrNotConnected
	}
	if g.exhausted() {
		return 0, buffersink.ErrEOF
	}

	count := 0
	for ; count < n && !g.exhausted(); count++ {
		if err := g.deliver(g.next()); err != nil {
			g.logger.WithError(err).Debugf("Frame %d refused downstream", g.produced)
		}
	}
	return count, nil
}

// PollFrame reports how many frames a request would deliver right now.
func (g *Generator) PollFrame() int {
	if g.exhausted() {
		return 0
	}
	return min(g.cfg.Burst, g.remaining())
}

// FrameRate returns the video frame rate, or the audio frame rate implied by
// the sample rate and frame size.
func (g *Generator) FrameRate() frame.Rational {
	if g.cfg.MediaType == frame.MediaTypeAudio {
		return frame.Rational{Num: g.cfg.SampleRate, Den: g.samplesPerFrame()}
	}
	return g.cfg.FrameRate
}

// SetFrameSize forces audio frames of exactly n samples. Zero restores the
// natural size. Video streams ignore it.
func (g *Generator) SetFrameSize(n uint) {
	g.frameSize = n
	if g.cfg.MediaType == frame.MediaTypeAudio {
		g.logger.Debugf("Frame size set to %d samples", n)
	}
}

func (g *Generator) samplesPerFrame() int {
	if g.frameSize > 0 {
		return int(g.frameSize)
	}
	return g.cfg.SamplesPerFrame
}

func (g *Generator) next() *frame.Ref {
	var f *frame.Frame
	if g.cfg.MediaType == frame.MediaTypeAudio {
		f = g.nextAudio()
	} else {
		f = g.nextVideo()
	}
	g.produced++
	return g.pool.Wrap(f)
}

// nextVideo draws a diagonal ramp that scrolls one pixel per frame
func (g *Generator) nextVideo() *frame.Frame {
	w, h := g.cfg.Width, g.cfg.Height
	data := g.pool.Get(g.cfg.PixelFormat.FrameSize(w, h))

	shift := g.produced
	switch g.cfg.PixelFormat {
	case frame.PixelFormatYUV420P, frame.PixelFormatNV12, frame.PixelFormatGray8:
		luma := data[:w*h]
		for y := 0; y < h; y++ {
			row := luma[y*w : (y+1)*w]
			for x := range row {
				row[x] = byte(x + y + shift)
			}
		}
		for i := w * h; i < len(data); i++ {
			data[i] = 128
		}
	default:
		for i := range data {
			data[i] = byte(i + shift)
		}
	}

	interval := g.cfg.FrameRate.Interval()
	f := frame.NewVideoFrame(data, w, h, g.cfg.PixelFormat, time.Duration(g.produced)*interval)
	f.Duration = interval
	return f
}

// nextAudio renders a sine tone, interleaved across channels
func (g *Generator) nextAudio() *frame.Frame {
	n := g.samplesPerFrame()
	channels := g.cfg.ChannelLayout.Channels()
	bps := g.cfg.SampleFormat.BytesPerSample()
	data := g.pool.Get(n * channels * bps)

	pts := time.Duration(g.samples) * time.Second / time.Duration(g.cfg.SampleRate)
	for i := 0; i < n; i++ {
		t := float64(g.samples+int64(i)) / float64(g.cfg.SampleRate)
		v := 0.5 * math.Sin(2*math.Pi*g.cfg.ToneHz*t)
		for c := 0; c < channels; c++ {
			putSample(data[(i*channels+c)*bps:], g.cfg.SampleFormat, v)
		}
	}
	g.samples += int64(n)

	return frame.NewAudioFrame(data, n, g.cfg.SampleRate, g.cfg.SampleFormat, g.cfg.ChannelLayout, pts)
}

func putSample(dst []byte, sf frame.SampleFormat, v float64) {
	switch sf {
	case frame.SampleFormatU8:
		dst[0] = byte(int(v*127) + 128)
	case frame.SampleFormatS16:
		s := int16(v * math.MaxInt16)
		dst[0], dst[1] = byte(s), byte(s>>8)
	case frame.SampleFormatS32:
		s := int32(v * math.MaxInt32)
		dst[0], dst[1], dst[2], dst[3] = byte(s), byte(s>>8), byte(s>>16), byte(s>>24)
	case frame.SampleFormatFLT:
		bits := math.Float32bits(float32(v))
		dst[0], dst[1], dst[2], dst[3] = byte(bits), byte(bits>>8), byte(bits>>16), byte(bits>>24)
	case frame.SampleFormatDBL:
		bits := math.Float64bits(v)
		for i := 0; i < 8; i++ {
			dst[i] = byte(bits >> (8 * i))
		}
	}
}
