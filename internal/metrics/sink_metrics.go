package metrics

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/open-beagle/framesink/internal/buffersink"
)

// Fetch 结果标签
const (
	FetchResultOK         = "ok"
	FetchResultWouldBlock = "would_block"
	FetchResultEOF        = "eof"
	FetchResultClosed     = "closed"
	FetchResultError      = "error"
)

// SinkMetrics 收集 buffer sink 的队列指标，实现 buffersink.Observer
type SinkMetrics struct {
	queued    Gauge
	threshold Gauge
	in        Counter
	out       Counter
	dropped   Counter
	warnings  Counter
	fetches   Counter
	latency   Histogram
}

var _ buffersink.Observer = (*SinkMetrics)(nil)

// NewSinkMetrics 在 m 上注册 sink 指标
func NewSinkMetrics(m Metrics) (*SinkMetrics, error) {
	sm := &SinkMetrics{}
	var err error

	if sm.queued, err = m.RegisterGauge("sink_queued_frames",
		"Frames currently buffered in the sink queue", []string{"sink"}); err != nil {
		return nil, fmt.Errorf("failed to register queued gauge: %w", err)
	}
	if sm.threshold, err = m.RegisterGauge("sink_warning_threshold",
		"Queue length at which the next backlog warning fires, 0 when disabled", []string{"sink"}); err != nil {
		return nil, fmt.Errorf("failed to register threshold gauge: %w", err)
	}
	if sm.in, err = m.RegisterCounter("sink_frames_queued_total",
		"Frames accepted into the sink queue", []string{"sink"}); err != nil {
		return nil, fmt.Errorf("failed to register queued counter: %w", err)
	}
	if sm.out, err = m.RegisterCounter("sink_frames_fetched_total",
		"Frames handed to the consumer", []string{"sink", "mode"}); err != nil {
		return nil, fmt.Errorf("failed to register fetched counter: %w", err)
	}
	if sm.dropped, err = m.RegisterCounter("sink_frames_dropped_total",
		"Frames released because they could not be queued", []string{"sink", "reason"}); err != nil {
		return nil, fmt.Errorf("failed to register dropped counter: %w", err)
	}
	if sm.warnings, err = m.RegisterCounter("sink_queue_warnings_total",
		"Backlog warnings emitted", []string{"sink"}); err != nil {
		return nil, fmt.Errorf("failed to register warnings counter: %w", err)
	}
	if sm.fetches, err = m.RegisterCounter("sink_fetch_total",
		"Fetch calls by result", []string{"sink", "result"}); err != nil {
		return nil, fmt.Errorf("failed to register fetch counter: %w", err)
	}
	if sm.latency, err = m.RegisterHistogram("sink_fetch_duration_seconds",
		"Fetch latency including upstream requests", []string{"sink"},
		[]float64{0.00001, 0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1}); err != nil {
		return nil, fmt.Errorf("failed to register fetch histogram: %w", err)
	}

	return sm, nil
}

// SinkAdded 初始化一个 sink 的序列
func (sm *SinkMetrics) SinkAdded(sink string, threshold uint) {
	sm.queued.Set(0, sink)
	sm.threshold.Set(float64(threshold), sink)
}

// SinkRemoved 删除一个 sink 的仪表盘序列
func (sm *SinkMetrics) SinkRemoved(sink string) {
	sm.queued.Delete(sink)
	sm.threshold.Delete(sink)
}

func (sm *SinkMetrics) FrameQueued(sink string, queued int) {
	sm.in.Inc(sink)
	sm.queued.Set(float64(queued), sink)
}

func (sm *SinkMetrics) FrameFetched(sink string, queued int, peek bool) {
	mode := "pop"
	if peek {
		mode = "peek"
	}
	sm.out.Inc(sink, mode)
	sm.queued.Set(float64(queued), sink)
}

func (sm *SinkMetrics) FrameDropped(sink string, reason error) {
	r := "error"
	switch {
	case errors.Is(reason, buffersink.ErrOutOfMemory):
		r = "out_of_memory"
	case errors.Is(reason, buffersink.ErrClosed):
		r = "closed"
	}
	sm.dropped.Inc(sink, r)
}

// QueueWarning 记录一次积压告警，并更新下一次告警阈值
func (sm *SinkMetrics) QueueWarning(sink string, threshold uint) {
	sm.warnings.Inc(sink)
	next := uint(0)
	if threshold <= math.MaxUint/10 {
		next = threshold * 10
	}
	sm.threshold.Set(float64(next), sink)
}

// FetchCompleted 记录一次 Fetch 的结果与耗时
func (sm *SinkMetrics) FetchCompleted(sink string, d time.Duration, err error) {
	sm.fetches.Inc(sink, FetchResult(err))
	sm.latency.Observe(d.Seconds(), sink)
}

// FetchResult 将 Fetch 错误归类为指标标签
func FetchResult(err error) string {
	switch {
	case err == nil:
		return FetchResultOK
	case errors.Is(err, buffersink.ErrWouldBlock):
		return FetchResultWouldBlock
	case errors.Is(err, buffersink.ErrEOF):
		return FetchResultEOF
	case errors.Is(err, buffersink.ErrClosed):
		return FetchResultClosed
	default:
		return FetchResultError
	}
}
