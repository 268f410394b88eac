package webrtc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"

	"github.com/open-beagle/framesink/internal/pipeline"
)

// Manager WebRTC管理器，为启用了 webrtc 的 sink 创建本地轨道并持续输出
type Manager struct {
	logger *logrus.Entry

	tracks   []*webrtc.TrackLocalStaticSample
	drainers []*TrackDrainer

	// 状态管理
	running   bool
	startTime time.Time
	mutex     sync.RWMutex
	wg        sync.WaitGroup

	// 上下文控制
	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager 为 pm 中启用 webrtc 的 sink 创建轨道
func NewManager(ctx context.Context, pm *pipeline.Manager, logger *logrus.Entry) (*Manager, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is required")
	}
	if pm == nil {
		return nil, fmt.Errorf("pipeline manager is required")
	}
	if logger == nil {
		logger = logrus.WithField("component", "webrtc")
	}

	m := &Manager{logger: logger}
	for _, g := range pm.Sinks() {
		cfg := g.Config()
		if !cfg.WebRTC.Enabled {
			continue
		}

		enc, err := NewEncoder(cfg.WebRTC.MimeType)
		if err != nil {
			return nil, fmt.Errorf("sink %s: %w", cfg.Name, err)
		}
		track, err := webrtc.NewTrackLocalStaticSample(enc.Codec(), cfg.WebRTC.TrackID, cfg.WebRTC.StreamID)
		if err != nil {
			return nil, fmt.Errorf("failed to create track for sink %s: %w", cfg.Name, err)
		}

		m.tracks = append(m.tracks, track)
		m.drainers = append(m.drainers, NewTrackDrainer(g, track, enc, cfg.Source.Push, logger))
		logger.Debugf("Track %s (%s) created for sink %s", track.ID(), cfg.WebRTC.MimeType, cfg.Name)
	}

	m.ctx, m.cancel = context.WithCancel(ctx)
	return m, nil
}

// Start 启动全部轨道输出
func (m *Manager) Start(ctx context.Context) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.running {
		return fmt.Errorf("webrtc manager already running")
	}
	if m.ctx.Err() != nil {
		return fmt.Errorf("webrtc manager already stopped")
	}

	for _, d := range m.drainers {
		m.wg.Add(1)
		go func(d *TrackDrainer) {
			defer m.wg.Done()
			_ = d.Run(m.ctx)
		}(d)
	}

	m.running = true
	m.startTime = time.Now()
	m.logger.Infof("WebRTC started with %d tracks", len(m.tracks))
	return nil
}

// Stop 停止全部轨道输出
func (m *Manager) Stop(ctx context.Context) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for track drainers: %w", ctx.Err())
	}

	if m.running {
		m.logger.Info("WebRTC stopped")
	}
	m.running = false
	return nil
}

// IsRunning 检查管理器是否正在运行
func (m *Manager) IsRunning() bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.running
}

// Tracks 返回全部本地轨道
func (m *Manager) Tracks() []*webrtc.TrackLocalStaticSample {
	out := make([]*webrtc.TrackLocalStaticSample, len(m.tracks))
	copy(out, m.tracks)
	return out
}

// AttachTo 将全部轨道添加到 PeerConnection，并读取 RTCP 直到连接关闭
func (m *Manager) AttachTo(pc *webrtc.PeerConnection) error {
	for _, track := range m.tracks {
		sender, err := pc.AddTrack(track)
		if err != nil {
			return fmt.Errorf("failed to add track %s to peer connection: %w", track.ID(), err)
		}

		go func() {
			buf := make([]byte, 1500)
			for {
				if _, _, err := sender.Read(buf); err != nil {
					return
				}
			}
		}()
	}
	return nil
}

// Stats 返回每条轨道的发送统计
func (m *Manager) Stats() []DrainerStats {
	out := make([]DrainerStats, 0, len(m.drainers))
	for _, d := range m.drainers {
		out = append(out, d.Stats())
	}
	return out
}
