package webserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/open-beagle/framesink/internal/config"
)

// Manager webserver组件管理器
type Manager struct {
	config    *config.WebServerConfig
	server    *http.Server
	webServer *WebServer
	listener  net.Listener
	logger    *logrus.Entry
	running   bool
	startTime time.Time
	mutex     sync.RWMutex
}

// NewManager 创建新的webserver管理器
func NewManager(webServer *WebServer, logger *logrus.Entry) (*Manager, error) {
	if webServer == nil {
		return nil, fmt.Errorf("webserver cannot be nil")
	}
	if logger == nil {
		logger = logrus.WithField("component", "webserver")
	}

	return &Manager{
		config:    webServer.config,
		webServer: webServer,
		logger:    logger,
	}, nil
}

// Start 启动webserver，端口占用等错误同步返回
func (m *Manager) Start(ctx context.Context) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.running {
		return fmt.Errorf("webserver manager already running")
	}

	addr := m.config.Addr()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	m.listener = listener
	m.server = &http.Server{
		Handler:      m.webServer.GetHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorLog:     config.GetStandardLoggerWithPrefix("webserver-http"),
	}

	go func() {
		var err error
		if m.config.EnableTLS {
			err = m.server.ServeTLS(listener, m.config.TLS.CertFile, m.config.TLS.KeyFile)
		} else {
			err = m.server.Serve(listener)
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Errorf("Webserver error: %v", err)
		}
	}()

	m.running = true
	m.startTime = time.Now()

	protocol := "http"
	if m.config.EnableTLS {
		protocol = "https"
	}
	m.logger.Infof("Webserver started on %s://%s", protocol, listener.Addr())
	return nil
}

// Stop 停止webserver管理器
func (m *Manager) Stop(ctx context.Context) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if !m.running {
		return nil
	}

	m.webServer.CloseStreams()

	if err := m.server.Shutdown(ctx); err != nil {
		m.logger.Warnf("HTTP server shutdown incomplete, forcing close: %v", err)
		if err := m.server.Close(); err != nil {
			m.logger.Errorf("Error during server force close: %v", err)
		}
	}

	m.running = false
	m.logger.Info("Webserver stopped")
	return nil
}

// IsRunning 检查webserver管理器是否正在运行
func (m *Manager) IsRunning() bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.running
}

// Addr 返回实际监听地址，未运行时为空
func (m *Manager) Addr() string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if !m.running {
		return ""
	}
	return m.listener.Addr().String()
}

// GetStats 获取webserver管理器的统计信息
func (m *Manager) GetStats() map[string]interface{} {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	stats := map[string]interface{}{
		"running":      m.running,
		"address":      m.config.Addr(),
		"tls_enabled":  m.config.EnableTLS,
		"cors_enabled": m.config.EnableCORS,
	}
	if m.running {
		stats["start_time"] = m.startTime.Unix()
		stats["uptime"] = time.Since(m.startTime).Seconds()
	}
	return stats
}
