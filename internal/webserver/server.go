package webserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/open-beagle/framesink/internal/buffersink"
	"github.com/open-beagle/framesink/internal/config"
	"github.com/open-beagle/framesink/internal/pipeline"
	"github.com/open-beagle/framesink/internal/webrtc"
)

// SinkRegistry 提供按名称查找 sink 的能力，由 pipeline.Manager 实现
type SinkRegistry interface {
	Get(name string) (*pipeline.Guarded, bool)
	Stats() []pipeline.Stats
}

// TrackReporter 提供 WebRTC 轨道统计，由 webrtc.Manager 实现
type TrackReporter interface {
	Stats() []webrtc.DrainerStats
}

// FrameInfo 是 fetch 接口返回的帧描述，不包含帧数据
type FrameInfo struct {
	Sink          string        `json:"sink"`
	Peek          bool          `json:"peek"`
	MediaType     string        `json:"media_type"`
	PTS           time.Duration `json:"pts"`
	Duration      time.Duration `json:"duration"`
	Size          int           `json:"size"`
	Width         int           `json:"width,omitempty"`
	Height        int           `json:"height,omitempty"`
	PixelFormat   string        `json:"pixel_format,omitempty"`
	Samples       int           `json:"samples,omitempty"`
	SampleRate    int           `json:"sample_rate,omitempty"`
	SampleFormat  string        `json:"sample_format,omitempty"`
	ChannelLayout string        `json:"channel_layout,omitempty"`
}

// WebServer Web服务器
type WebServer struct {
	config   *config.WebServerConfig
	router   *mux.Router
	sinks    SinkRegistry
	tracks   TrackReporter
	metrics  http.Handler
	logger   *logrus.Entry
	upgrader websocket.Upgrader

	mutex     sync.RWMutex
	startTime time.Time
	routed    bool

	// done 关闭时通知所有 stats 流退出
	done      chan struct{}
	closeOnce sync.Once
}

// NewWebServer 创建Web服务器，tracks 与 metricsHandler 可以为 nil
func NewWebServer(cfg *config.WebServerConfig, sinks SinkRegistry, tracks TrackReporter, metricsHandler http.Handler, logger *logrus.Entry) (*WebServer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("webserver config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if sinks == nil {
		return nil, fmt.Errorf("sink registry cannot be nil")
	}
	if logger == nil {
		logger = logrus.WithField("component", "webserver")
	}

	return &WebServer{
		config:  cfg,
		router:  mux.NewRouter(),
		sinks:   sinks,
		tracks:  tracks,
		metrics: metricsHandler,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许跨域
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		startTime: time.Now(),
		done:      make(chan struct{}),
	}, nil
}

// CloseStreams 通知所有 websocket 流关闭，hijack 后的连接不受 http.Server.Shutdown 管理
func (ws *WebServer) CloseStreams() {
	ws.closeOnce.Do(func() { close(ws.done) })
}

// GetHandler 获取HTTP处理器
func (ws *WebServer) GetHandler() http.Handler {
	ws.mutex.Lock()
	defer ws.mutex.Unlock()

	if !ws.routed {
		ws.setupRoutes()
		ws.routed = true
	}
	return ws.router
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	sinks := ws.sinks.Stats()
	open := 0
	for _, s := range sinks {
		if !s.Closed {
			open++
		}
	}

	status := "healthy"
	code := http.StatusOK
	if open == 0 {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	ws.writeJSONStatus(w, code, map[string]any{
		"status": status,
		"uptime": time.Since(ws.startTime).Seconds(),
		"checks": map[string]any{
			"sinks_open":  open,
			"sinks_total": len(sinks),
		},
	})
}

func (ws *WebServer) handleListSinks(w http.ResponseWriter, r *http.Request) {
	ws.writeJSON(w, map[string]any{
		"sinks": ws.sinks.Stats(),
	})
}

func (ws *WebServer) handleGetSink(w http.ResponseWriter, r *http.Request) {
	g, ok := ws.lookup(w, r)
	if !ok {
		return
	}
	ws.writeJSON(w, g.Stats())
}

func (ws *WebServer) handleListFilters(w http.ResponseWriter, r *http.Request) {
	ws.writeJSON(w, map[string]any{
		"filters": buffersink.Definitions(),
	})
}

func (ws *WebServer) handleListTracks(w http.ResponseWriter, r *http.Request) {
	tracks := []webrtc.DrainerStats{}
	if ws.tracks != nil {
		tracks = ws.tracks.Stats()
	}
	ws.writeJSON(w, map[string]any{
		"tracks": tracks,
	})
}

// handleFetch 取出或窥视一帧，返回帧描述后立即释放引用
func (ws *WebServer) handleFetch(w http.ResponseWriter, r *http.Request) {
	g, ok := ws.lookup(w, r)
	if !ok {
		return
	}

	var flags buffersink.Flags
	for name, flag := range map[string]buffersink.Flags{
		"peek":       buffersink.FlagPeek,
		"no_request": buffersink.FlagNoRequest,
	} {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		set, err := strconv.ParseBool(raw)
		if err != nil {
			ws.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s parameter: %q", name, raw))
			return
		}
		if set {
			flags |= flag
		}
	}

	ref, err := g.Fetch(flags)
	if err != nil {
		ws.writeError(w, fetchStatus(err), err.Error())
		return
	}
	defer ref.Unref()

	f := ref.Frame()
	info := FrameInfo{
		Sink:      g.Name(),
		Peek:      flags&buffersink.FlagPeek != 0,
		MediaType: f.Format.MediaType.String(),
		PTS:       f.PTS,
		Duration:  f.Duration,
		Size:      f.Size(),
	}
	if f.IsVideo() {
		info.Width = f.Format.Width
		info.Height = f.Format.Height
		info.PixelFormat = f.Format.PixelFormat.String()
	} else {
		info.Samples = f.Format.Samples
		info.SampleRate = f.Format.SampleRate
		info.SampleFormat = f.Format.SampleFormat.String()
		info.ChannelLayout = f.Format.ChannelLayout.String()
	}
	ws.writeJSON(w, info)
}

// fetchStatus 将 Fetch 错误映射为 HTTP 状态码
func fetchStatus(err error) int {
	switch {
	case errors.Is(err, buffersink.ErrWouldBlock):
		return http.StatusConflict
	case errors.Is(err, buffersink.ErrEOF):
		return http.StatusGone
	case errors.Is(err, buffersink.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (ws *WebServer) lookup(w http.ResponseWriter, r *http.Request) (*pipeline.Guarded, bool) {
	name := mux.Vars(r)["name"]
	g, ok := ws.sinks.Get(name)
	if !ok {
		ws.writeError(w, http.StatusNotFound, fmt.Sprintf("sink not found: %s", name))
	}
	return g, ok
}

// 工具方法
func (ws *WebServer) writeJSON(w http.ResponseWriter, data any) {
	ws.writeJSONStatus(w, http.StatusOK, data)
}

func (ws *WebServer) writeJSONStatus(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		ws.logger.Errorf("Failed to encode JSON: %v", err)
	}
}

func (ws *WebServer) writeError(w http.ResponseWriter, code int, message string) {
	ws.writeJSONStatus(w, code, map[string]string{"error": message})
}
