package webserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-beagle/framesink/internal/config"
	"github.com/open-beagle/framesink/internal/frame"
	"github.com/open-beagle/framesink/internal/metrics"
	"github.com/open-beagle/framesink/internal/pipeline"
	"github.com/open-beagle/framesink/internal/webrtc"
)

func testLogger() *logrus.Entry {
	logger, _ := test.NewNullLogger()
	return logrus.NewEntry(logger)
}

type fakeTracks []webrtc.DrainerStats

func (f fakeTracks) Stats() []webrtc.DrainerStats { return f }

func newTestServer(t *testing.T) (*WebServer, *pipeline.Manager) {
	t.Helper()

	video := config.DefaultVideoSinkConfig("cam")
	video.Source.Width, video.Source.Height = 16, 8
	video.Source.Frames = 3
	audio := config.DefaultAudioSinkConfig("mic")

	reg, err := metrics.NewMetrics(config.DefaultMetricsConfig(), testLogger())
	require.NoError(t, err)
	sm, err := metrics.NewSinkMetrics(reg)
	require.NoError(t, err)

	pm, err := pipeline.NewManager(context.Background(), []config.SinkConfig{video, audio}, sm, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = pm.Stop(context.Background()) })

	cfg := config.DefaultWebServerConfig()
	cfg.StatsInterval = 10 * time.Millisecond
	tracks := fakeTracks{{Sink: "cam", FramesSent: 7}}
	ws, err := NewWebServer(cfg, pm, tracks, reg.Handler(), testLogger())
	require.NoError(t, err)
	return ws, pm
}

func do(t *testing.T, h http.Handler, method, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestNewWebServer_Validation(t *testing.T) {
	_, err := NewWebServer(nil, nil, nil, nil, nil)
	assert.Error(t, err)

	_, err = NewWebServer(config.DefaultWebServerConfig(), nil, nil, nil, nil)
	assert.Error(t, err)

	bad := config.DefaultWebServerConfig()
	bad.Port = 0
	_, pm := newTestServer(t)
	_, err = NewWebServer(bad, pm, nil, nil, nil)
	assert.Error(t, err)
}

func TestWebServer_SinkRoutes(t *testing.T) {
	ws, _ := newTestServer(t)
	h := ws.GetHandler()

	rec, body := do(t, h, "GET", "/api/v1/sinks")
	require.Equal(t, http.StatusOK, rec.Code)
	sinks := body["sinks"].([]any)
	require.Len(t, sinks, 2)
	assert.Equal(t, "cam", sinks[0].(map[string]any)["name"])
	assert.Equal(t, "abuffersink", sinks[1].(map[string]any)["filter"])

	rec, body = do(t, h, "GET", "/api/v1/sinks/mic")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio", body["kind"])
	assert.Equal(t, float64(100), body["warning_threshold"])

	rec, body = do(t, h, "GET", "/api/v1/sinks/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, body["error"], "nope")

	rec, body = do(t, h, "GET", "/api/v1/filters")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["filters"], 2)

	rec, body = do(t, h, "GET", "/api/v1/tracks")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(7), body["tracks"].([]any)[0].(map[string]any)["frames_sent"])
}

func TestWebServer_FetchStatusMapping(t *testing.T) {
	ws, pm := newTestServer(t)
	h := ws.GetHandler()

	// empty queue without upstream request
	rec, body := do(t, h, "POST", "/api/v1/sinks/cam/fetch?no_request=1")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, body["error"], "try again")

	rec, body = do(t, h, "POST", "/api/v1/sinks/cam/fetch?peek=true")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["peek"])
	assert.Equal(t, "video", body["media_type"])
	assert.Equal(t, float64(16), body["width"])
	assert.Equal(t, "yuv420p", body["pixel_format"])
	assert.Equal(t, float64(frame.PixelFormatYUV420P.FrameSize(16, 8)), body["size"])

	g, _ := pm.Get("cam")
	assert.Equal(t, 1, g.Stats().Queued, "peek leaves the frame queued")

	for i := 0; i < 3; i++ {
		rec, _ = do(t, h, "POST", "/api/v1/sinks/cam/fetch")
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, _ = do(t, h, "POST", "/api/v1/sinks/cam/fetch")
	assert.Equal(t, http.StatusGone, rec.Code)

	rec, _ = do(t, h, "POST", "/api/v1/sinks/cam/fetch?peek=maybe")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = do(t, h, "POST", "/api/v1/sinks/mic/fetch")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1024), body["samples"])
	assert.Equal(t, "stereo", body["channel_layout"])

	require.NoError(t, g.Close())
	rec, _ = do(t, h, "POST", "/api/v1/sinks/cam/fetch")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, _ = do(t, h, "GET", "/api/v1/sinks/cam/fetch")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestWebServer_HealthAndMetrics(t *testing.T) {
	ws, pm := newTestServer(t)
	h := ws.GetHandler()

	_, _ = do(t, h, "POST", "/api/v1/sinks/cam/fetch")

	rec, body := do(t, h, "GET", "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])

	rec, _ = do(t, h, "GET", "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	text := rec.Body.String()
	assert.Contains(t, text, `framesink_sink_frames_fetched_total{mode="pop",sink="cam"} 1`)
	assert.Contains(t, text, `framesink_sink_fetch_total{result="ok",sink="cam"} 1`)

	require.NoError(t, pm.Stop(context.Background()))
	rec, body = do(t, h, "GET", "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", body["status"])
}

func TestWebServer_CORS(t *testing.T) {
	ws, _ := newTestServer(t)
	h := ws.GetHandler()

	rec, _ := do(t, h, "OPTIONS", "/api/v1/sinks/cam/fetch")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestWebServer_OptionsDoesNotFetch(t *testing.T) {
	_, pm := newTestServer(t)
	cfg := config.DefaultWebServerConfig()
	cfg.EnableCORS = false
	ws, err := NewWebServer(cfg, pm, nil, nil, testLogger())
	require.NoError(t, err)
	h := ws.GetHandler()

	g, _ := pm.Get("cam")
	_, err = g.Produce(2)
	require.NoError(t, err)

	rec, _ := do(t, h, "OPTIONS", "/api/v1/sinks/cam/fetch")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "POST, OPTIONS", rec.Header().Get("Allow"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, 2, g.Stats().Queued)

	rec, _ = do(t, h, "POST", "/api/v1/sinks/cam/fetch")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, g.Stats().Queued)
}

func TestWebServer_StatsStream(t *testing.T) {
	ws, _ := newTestServer(t)
	srv := httptest.NewServer(ws.GetHandler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/stats"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	for i := 0; i < 2; i++ {
		var msg StatsMessage
		conn.SetReadDeadline(time.Now().Add(time.Second))
		require.NoError(t, conn.ReadJSON(&msg))
		require.Len(t, msg.Sinks, 2)
		assert.Equal(t, "cam", msg.Sinks[0].Name)
		require.Len(t, msg.Tracks, 1)
	}

	ws.CloseStreams()
	conn.SetReadDeadline(time.Now().Add(time.Second))
	for {
		if _, _, err = conn.ReadMessage(); err != nil {
			break
		}
	}
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))
}

func TestManager_StartStop(t *testing.T) {
	ws, _ := newTestServer(t)
	ws.config.Host = "127.0.0.1"
	ws.config.Port = freePort(t)

	m, err := NewManager(ws, testLogger())
	require.NoError(t, err)
	assert.Empty(t, m.Addr())

	require.NoError(t, m.Start(context.Background()))
	assert.True(t, m.IsRunning())
	assert.Error(t, m.Start(context.Background()))

	resp, err := http.Get("http://" + m.Addr() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, m.GetStats()["running"])

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Stop(ctx))
	assert.False(t, m.IsRunning())
	require.NoError(t, m.Stop(ctx))

	_, err = NewManager(nil, nil)
	assert.Error(t, err)
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}
