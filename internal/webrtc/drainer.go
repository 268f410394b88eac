package webrtc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/sirupsen/logrus"

	"github.com/open-beagle/framesink/internal/buffersink"
	"github.com/open-beagle/framesink/internal/frame"
)

// Fetcher is the consumer side of a guarded sink
type Fetcher interface {
	Name() string
	Fetch(flags buffersink.Flags) (*frame.Ref, error)
	Interval() time.Duration
}

// SampleWriter accepts media samples, as *webrtc.TrackLocalStaticSample does
type SampleWriter interface {
	WriteSample(sample media.Sample) error
}

// DrainerStats 轨道发送统计
type DrainerStats struct {
	Sink          string    `json:"sink"`
	FramesSent    int64     `json:"frames_sent"`
	BytesSent     int64     `json:"bytes_sent"`
	WriteErrors   int64     `json:"write_errors"`
	Idle          int64     `json:"idle"`
	LastTimestamp time.Time `json:"last_timestamp"`
	Done          bool      `json:"done"`
}

// TrackDrainer moves frames from a sink into a WebRTC track at the
// upstream's frame rate. Each fetched frame is encoded into a sample and its
// reference released.
type TrackDrainer struct {
	src    Fetcher
	out    SampleWriter
	enc    Encoder
	flags  buffersink.Flags
	logger *logrus.Entry

	mu    sync.Mutex
	stats DrainerStats
}

// NewTrackDrainer creates a drainer. With noRequest set the drainer only takes
// frames already queued and never pulls the upstream, for sources that push.
func NewTrackDrainer(src Fetcher, out SampleWriter, enc Encoder, noRequest bool, logger *logrus.Entry) *TrackDrainer {
	if logger == nil {
		logger = logrus.WithField("component", "webrtc-drainer")
	}
	var flags buffersink.Flags
	if noRequest {
		flags = buffersink.FlagNoRequest
	}
	return &TrackDrainer{
		src:    src,
		out:    out,
		enc:    enc,
		flags:  flags,
		logger: logger.WithField("sink", src.Name()),
		stats:  DrainerStats{Sink: src.Name()},
	}
}

// DrainOnce moves at most one frame. It reports false once the stream has
// ended or the sink was closed; ErrWouldBlock is not an error. A frame the
// encoder rejects is released and returned as an error.
func (d *TrackDrainer) DrainOnce() (bool, error) {
	ref, err := d.src.Fetch(d.flags)
	switch {
	case err == nil:
	case buffersink.IsTemporary(err):
		d.mu.Lock()
		d.stats.Idle++
		d.mu.Unlock()
		return true, nil
	case buffersink.IsEOF(err), errors.Is(err, buffersink.ErrClosed):
		d.finish()
		return false, nil
	default:
		return true, err
	}
	defer ref.Unref()

	f := ref.Frame()
	duration := f.Duration
	if duration <= 0 {
		duration = d.src.Interval()
	}
	payload, err := d.enc.Encode(f)
	if err != nil {
		return true, fmt.Errorf("encode frame for %s: %w", d.src.Name(), err)
	}
	sample := media.Sample{
		Data:      payload,
		Timestamp: time.Now(),
		Duration:  duration,
	}

	if err := d.out.WriteSample(sample); err != nil {
		d.mu.Lock()
		d.stats.WriteErrors++
		d.mu.Unlock()
		d.logger.Warnf("Failed to write sample to track: %v", err)
		return true, nil
	}

	d.mu.Lock()
	d.stats.FramesSent++
	d.stats.BytesSent += int64(len(sample.Data))
	d.stats.LastTimestamp = sample.Timestamp
	sent := d.stats.FramesSent
	d.mu.Unlock()

	d.logger.Tracef("Sample written: size=%d bytes, pts=%v", len(sample.Data), f.PTS)
	if sent%1000 == 0 {
		d.logger.Debugf("Sample processing milestone: %d frames sent", sent)
	}
	return true, nil
}

func (d *TrackDrainer) finish() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.stats.Done {
		d.stats.Done = true
		d.logger.Infof("Track drained after %d frames", d.stats.FramesSent)
	}
}

// Run drains at the source's frame rate until ctx is done or the stream ends
func (d *TrackDrainer) Run(ctx context.Context) error {
	interval := d.src.Interval()
	if interval <= 0 {
		interval = 20 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			more, err := d.DrainOnce()
			if err != nil {
				d.logger.WithError(err).Error("Fetch failed, stopping track")
				return err
			}
			if !more {
				return nil
			}
		}
	}
}

// Stats returns a copy of the drainer counters
func (d *TrackDrainer) Stats() DrainerStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}
