package webserver

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/open-beagle/framesink/internal/pipeline"
	"github.com/open-beagle/framesink/internal/webrtc"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// StatsMessage 是 /ws/stats 推送的消息
type StatsMessage struct {
	Timestamp time.Time             `json:"timestamp"`
	Sinks     []pipeline.Stats      `json:"sinks"`
	Tracks    []webrtc.DrainerStats `json:"tracks,omitempty"`
}

func (ws *WebServer) snapshot() StatsMessage {
	msg := StatsMessage{
		Timestamp: time.Now(),
		Sinks:     ws.sinks.Stats(),
	}
	if ws.tracks != nil {
		msg.Tracks = ws.tracks.Stats()
	}
	return msg
}

// handleStatsStream 按 StatsInterval 周期推送全部 sink 的统计，直到客户端断开
func (ws *WebServer) handleStatsStream(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Warnf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ws.logger.Debugf("Stats stream opened from %s", r.RemoteAddr)

	// readPump 只负责处理 pong 与关闭帧
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					ws.logger.Debugf("Stats stream read error: %v", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(ws.config.StatsInterval)
	defer ticker.Stop()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	send := func() bool {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(ws.snapshot()); err != nil {
			ws.logger.Debugf("Stats stream write error: %v", err)
			return false
		}
		return true
	}

	if !send() {
		return
	}
	for {
		select {
		case <-closed:
			ws.logger.Debugf("Stats stream closed by %s", r.RemoteAddr)
			return
		case <-ws.done:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		case <-ticker.C:
			if !send() {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
