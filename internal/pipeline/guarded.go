// Package pipeline pairs buffer sinks with their synthetic upstreams and
// serialises access to each pair so HTTP handlers, the WebRTC drainer and the
// push ticker can share a sink from different goroutines.
package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/open-beagle/framesink/internal/buffersink"
	"github.com/open-beagle/framesink/internal/config"
	"github.com/open-beagle/framesink/internal/frame"
	"github.com/open-beagle/framesink/internal/source"
)

// FetchObserver is told how each Fetch went and how long it took.
type FetchObserver interface {
	FetchCompleted(sink string, d time.Duration, err error)
}

// Stats is a sink snapshot plus the upstream's counters
type Stats struct {
	buffersink.Stats
	Pending    int   `json:"pending"`
	Produced   int   `json:"produced"`
	PoolIdle   int   `json:"pool_idle"`
	PoolReused int64 `json:"pool_reused"`
	Push       bool  `json:"push"`
}

// Guarded owns one sink and its upstream generator. Every call, including the
// upstream pull a Fetch triggers, runs under a single mutex.
type Guarded struct {
	mu       sync.Mutex
	cfg      config.SinkConfig
	sink     *buffersink.Sink
	gen      *source.Generator
	fetchObs FetchObserver
	logger   *logrus.Entry
}

// NewGuarded builds the sink/generator pair described by cfg, connects them
// and runs format negotiation.
func NewGuarded(cfg config.SinkConfig, obs buffersink.Observer, fetchObs FetchObserver, logger *logrus.Entry) (*Guarded, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.WithField("component", "pipeline")
	}

	srcCfg, err := sourceConfig(cfg)
	if err != nil {
		return nil, err
	}
	gen, err := source.NewGenerator(srcCfg, logger.WithField("source", cfg.Name))
	if err != nil {
		return nil, err
	}

	opts := []buffersink.Option{
		buffersink.WithName(cfg.Name),
		buffersink.WithLogger(logger),
		buffersink.WithWarningThreshold(cfg.Threshold()),
		buffersink.WithMaxQueued(cfg.MaxQueued),
	}
	if obs != nil {
		opts = append(opts, buffersink.WithObserver(obs))
	}

	var sink *buffersink.Sink
	switch cfg.Kind {
	case config.SinkKindVideo:
		pix, perr := cfg.PixelFormatList()
		if perr != nil {
			return nil, fmt.Errorf("sink %s: %w", cfg.Name, perr)
		}
		// 未配置像素格式时不传参数，由 sink 接受任意格式
		var params *buffersink.VideoParams
		if len(pix) > 0 {
			params = &buffersink.VideoParams{PixelFormats: pix}
		}
		sink, err = buffersink.NewVideoSink(gen, params, opts...)
		if err == nil {
			gen.Connect(sink.OnFrameArrival)
		}
	case config.SinkKindAudio:
		sf, perr := cfg.SampleFormatList()
		if perr != nil {
			return nil, fmt.Errorf("sink %s: %w", cfg.Name, perr)
		}
		cl, perr := cfg.ChannelLayoutList()
		if perr != nil {
			return nil, fmt.Errorf("sink %s: %w", cfg.Name, perr)
		}
		sink, err = buffersink.NewAudioSink(gen, &buffersink.AudioParams{SampleFormats: sf, ChannelLayouts: cl}, opts...)
		if err == nil {
			gen.Connect(sink.FilterSamples)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create sink %s: %w", cfg.Name, err)
	}

	if err := sink.QueryFormats(gen); err != nil {
		sink.Close()
		return nil, fmt.Errorf("format negotiation failed for sink %s: %w", cfg.Name, err)
	}
	if cfg.FrameSize > 0 {
		sink.SetFrameSize(cfg.FrameSize)
	}

	return &Guarded{
		cfg:      cfg,
		sink:     sink,
		gen:      gen,
		fetchObs: fetchObs,
		logger:   logger.WithField("sink", cfg.Name),
	}, nil
}

func sourceConfig(cfg config.SinkConfig) (source.Config, error) {
	s := cfg.Source
	var out source.Config
	switch cfg.Kind {
	case config.SinkKindVideo:
		pf, err := frame.ParsePixelFormat(s.PixelFormat)
		if err != nil {
			return out, err
		}
		out = source.DefaultVideoConfig()
		out.FrameRate = s.FrameRate
		out.Width, out.Height = s.Width, s.Height
		out.PixelFormat = pf
	default:
		sf, err := frame.ParseSampleFormat(s.SampleFormat)
		if err != nil {
			return out, err
		}
		cl, err := frame.ParseChannelLayout(s.ChannelLayout)
		if err != nil {
			return out, err
		}
		out = source.DefaultAudioConfig()
		out.SampleRate = s.SampleRate
		out.SampleFormat = sf
		out.ChannelLayout = cl
		out.SamplesPerFrame = s.SamplesPerFrame
		out.ToneHz = s.ToneHz
	}
	out.Frames = s.Frames
	out.Burst = s.Burst
	return out, nil
}

// Name returns the sink name
func (g *Guarded) Name() string {
	return g.cfg.Name
}

// Config returns the configuration the pair was built from
func (g *Guarded) Config() config.SinkConfig {
	return g.cfg
}

// Fetch runs Sink.Fetch under the lock. A peeked frame stays queued, so the
// caller receives its own extra reference and must Unref it like a popped one.
func (g *Guarded) Fetch(flags buffersink.Flags) (*frame.Ref, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	start := time.Now()
	ref, err := g.sink.Fetch(flags)
	if g.fetchObs != nil {
		g.fetchObs.FetchCompleted(g.cfg.Name, time.Since(start), err)
	}
	if err != nil {
		return nil, err
	}
	if flags&buffersink.FlagPeek != 0 {
		ref = ref.Ref()
	}
	return ref, nil
}

// PendingCount returns queued plus immediately available upstream frames
func (g *Guarded) PendingCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sink.PendingCount()
}

// FrameRate returns the video frame rate
func (g *Guarded) FrameRate() (frame.Rational, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sink.FrameRate()
}

// SetFrameSize forces fixed-size audio frames
func (g *Guarded) SetFrameSize(n uint) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sink.SetFrameSize(n)
}

// Produce lets the upstream push n frames without a request
func (g *Guarded) Produce(n int) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gen.Produce(n)
}

// Stats returns a consistent snapshot of sink and upstream counters
func (g *Guarded) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()

	pool := g.gen.Pool()
	return Stats{
		Stats:      g.sink.Stats(),
		Pending:    g.sink.PendingCount(),
		Produced:   g.gen.Produced(),
		PoolIdle:   pool.Idle(),
		PoolReused: pool.Reused(),
		Push:       g.cfg.Source.Push,
	}
}

// Do runs fn with exclusive access to the sink. fn must not retain borrowed
// references past its return.
func (g *Guarded) Do(fn func(s *buffersink.Sink) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fn(g.sink)
}

// Interval returns the upstream's frame period
func (g *Guarded) Interval() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gen.FrameRate().Interval()
}

// Close closes the sink, releasing every queued frame
func (g *Guarded) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sink.Close()
}
