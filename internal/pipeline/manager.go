package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/open-beagle/framesink/internal/buffersink"
	"github.com/open-beagle/framesink/internal/config"
	"github.com/open-beagle/framesink/internal/metrics"
)

// Manager pipeline组件管理器，持有全部 sink 及其上游
type Manager struct {
	sinks   []*Guarded
	byName  map[string]*Guarded
	metrics *metrics.SinkMetrics
	logger  *logrus.Entry

	running   bool
	startTime time.Time
	mutex     sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewManager 根据配置创建全部 sink，sm 可以为 nil
func NewManager(ctx context.Context, cfgs []config.SinkConfig, sm *metrics.SinkMetrics, logger *logrus.Entry) (*Manager, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is required")
	}
	if len(cfgs) == 0 {
		return nil, fmt.Errorf("no sinks configured")
	}
	if logger == nil {
		logger = logrus.WithField("component", "pipeline")
	}

	var obs buffersink.Observer
	var fetchObs FetchObserver
	if sm != nil {
		obs, fetchObs = sm, sm
	}

	m := &Manager{
		byName:  make(map[string]*Guarded, len(cfgs)),
		metrics: sm,
		logger:  logger,
	}
	for _, cfg := range cfgs {
		if _, exists := m.byName[cfg.Name]; exists {
			m.closeAll()
			return nil, fmt.Errorf("duplicate sink name: %q", cfg.Name)
		}
		g, err := NewGuarded(cfg, obs, fetchObs, logger)
		if err != nil {
			m.closeAll()
			return nil, err
		}
		m.sinks = append(m.sinks, g)
		m.byName[cfg.Name] = g
		if sm != nil {
			sm.SinkAdded(cfg.Name, cfg.Threshold())
		}
		logger.Debugf("Sink %s (%s) created", cfg.Name, cfg.Kind)
	}

	m.ctx, m.cancel = context.WithCancel(ctx)
	return m, nil
}

// Start 启动 push 模式上游
func (m *Manager) Start(ctx context.Context) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.running {
		return fmt.Errorf("pipeline manager already running")
	}
	if m.ctx.Err() != nil {
		return fmt.Errorf("pipeline manager already stopped")
	}

	// 先检查全部间隔，避免出错时已有 push 协程在运行
	intervals := make(map[*Guarded]time.Duration)
	for _, g := range m.sinks {
		if !g.cfg.Source.Push {
			continue
		}
		interval := g.Interval()
		if interval <= 0 {
			return fmt.Errorf("sink %s: push source needs a frame rate, got interval %v", g.Name(), interval)
		}
		intervals[g] = interval
	}

	for _, g := range m.sinks {
		if interval, ok := intervals[g]; ok {
			m.wg.Add(1)
			go m.push(g, interval)
		}
	}

	m.running = true
	m.startTime = time.Now()
	m.logger.Infof("Pipeline started with %d sinks", len(m.sinks))
	return nil
}

// push 以帧率驱动上游主动产生帧，直到流结束或管理器停止
func (m *Manager) push(g *Guarded, interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	burst := g.cfg.Source.Burst
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			if _, err := g.Produce(burst); err != nil {
				if errors.Is(err, buffersink.ErrEOF) {
					m.logger.Infof("Sink %s: upstream reached end of stream", g.Name())
				} else {
					m.logger.WithError(err).Errorf("Sink %s: push source stopped", g.Name())
				}
				return
			}
		}
	}
}

// Stop 停止 push 上游并关闭全部 sink
func (m *Manager) Stop(ctx context.Context) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("timed out waiting for push sources: %w", ctx.Err())
	}

	m.closeAll()
	if m.running {
		m.logger.Infof("Pipeline stopped after %s", time.Since(m.startTime).Round(time.Millisecond))
	}
	m.running = false
	return err
}

func (m *Manager) closeAll() {
	for _, g := range m.sinks {
		if err := g.Close(); err != nil {
			m.logger.WithError(err).Warnf("Failed to close sink %s", g.Name())
		}
		if m.metrics != nil {
			m.metrics.SinkRemoved(g.Name())
		}
	}
}

// IsRunning 检查管理器是否正在运行
func (m *Manager) IsRunning() bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.running
}

// Get 按名称查找 sink
func (m *Manager) Get(name string) (*Guarded, bool) {
	g, ok := m.byName[name]
	return g, ok
}

// Sinks 按配置顺序返回全部 sink
func (m *Manager) Sinks() []*Guarded {
	out := make([]*Guarded, len(m.sinks))
	copy(out, m.sinks)
	return out
}

// Stats 按配置顺序返回全部 sink 的统计
func (m *Manager) Stats() []Stats {
	out := make([]Stats, 0, len(m.sinks))
	for _, g := range m.sinks {
		out = append(out, g.Stats())
	}
	return out
}
