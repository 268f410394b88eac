package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/open-beagle/framesink/internal/config"
	"github.com/open-beagle/framesink/internal/metrics"
	"github.com/open-beagle/framesink/internal/pipeline"
	"github.com/open-beagle/framesink/internal/webrtc"
	"github.com/open-beagle/framesink/internal/webserver"
)

// component 是 App 统一管理的生命周期接口
type component interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsRunning() bool
}

// metricsComponent 让 metrics.Metrics 适配 component 接口
type metricsComponent struct {
	metrics.Metrics
}

func (c metricsComponent) Start(ctx context.Context) error { return c.Metrics.Start() }

// Stop 未启用外部服务时 Stop 返回 ErrServerNotRunning，这里视为成功
func (c metricsComponent) Stop(ctx context.Context) error {
	if err := c.Metrics.Stop(); err != nil && !errors.Is(err, metrics.ErrServerNotRunning) {
		return err
	}
	return nil
}

type namedComponent struct {
	name string
	component
}

// App framesink 应用，按 metrics → pipeline → webrtc → webserver 的顺序启动
type App struct {
	config       *config.Config
	metrics      metrics.Metrics
	sinkMetrics  *metrics.SinkMetrics
	pipelineMgr  *pipeline.Manager
	webrtcMgr    *webrtc.Manager
	webserverMgr *webserver.Manager
	components   []namedComponent
	logger       *logrus.Entry
	startTime    time.Time

	rootCtx    context.Context
	cancelFunc context.CancelFunc
}

// NewApp 创建应用及全部组件，但不启动
func NewApp(cfg *config.Config, logger *logrus.Entry) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = config.GetLoggerWithPrefix("app")
	}

	rootCtx, cancelFunc := context.WithCancel(context.Background())

	m, err := metrics.NewMetrics(cfg.Metrics, config.GetLoggerWithPrefix("metrics"))
	if err != nil {
		cancelFunc()
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}
	sm, err := metrics.NewSinkMetrics(m)
	if err != nil {
		cancelFunc()
		return nil, fmt.Errorf("failed to register sink metrics: %w", err)
	}

	pipelineMgr, err := pipeline.NewManager(rootCtx, cfg.Sinks, sm, config.GetLoggerWithPrefix("pipeline"))
	if err != nil {
		cancelFunc()
		return nil, fmt.Errorf("failed to create pipeline manager: %w", err)
	}

	webrtcMgr, err := webrtc.NewManager(rootCtx, pipelineMgr, config.GetLoggerWithPrefix("webrtc"))
	if err != nil {
		pipelineMgr.Stop(context.Background())
		cancelFunc()
		return nil, fmt.Errorf("failed to create WebRTC manager: %w", err)
	}

	webServer, err := webserver.NewWebServer(cfg.WebServer, pipelineMgr, webrtcMgr, m.Handler(), config.GetLoggerWithPrefix("webserver"))
	if err != nil {
		pipelineMgr.Stop(context.Background())
		cancelFunc()
		return nil, fmt.Errorf("failed to create webserver: %w", err)
	}
	webserverMgr, err := webserver.NewManager(webServer, config.GetLoggerWithPrefix("webserver"))
	if err != nil {
		pipelineMgr.Stop(context.Background())
		cancelFunc()
		return nil, fmt.Errorf("failed to create webserver manager: %w", err)
	}

	app := &App{
		config:       cfg,
		metrics:      m,
		sinkMetrics:  sm,
		pipelineMgr:  pipelineMgr,
		webrtcMgr:    webrtcMgr,
		webserverMgr: webserverMgr,
		logger:       logger,
		rootCtx:      rootCtx,
		cancelFunc:   cancelFunc,
	}
	app.components = []namedComponent{
		{"metrics", metricsComponent{m}},
		{"pipeline", pipelineMgr},
		{"webrtc", webrtcMgr},
		{"webserver", webserverMgr},
	}
	return app, nil
}

// Start 按顺序启动组件，失败时逆序回滚已启动的组件
func (app *App) Start(ctx context.Context) error {
	app.logger.Infof("Starting %s v%s", AppName, AppVersion)

	for i, c := range app.components {
		app.logger.Debugf("Starting %s manager...", c.name)

		if err := c.Start(ctx); err != nil {
			app.logger.Errorf("Failed to start %s manager: %v", c.name, err)

			for j := i - 1; j >= 0; j-- {
				app.logger.Infof("Rolling back: stopping %s manager...", app.components[j].name)
				if stopErr := app.components[j].Stop(ctx); stopErr != nil {
					app.logger.Warnf("Failed to stop %s during rollback: %v", app.components[j].name, stopErr)
				}
			}
			return fmt.Errorf("failed to start %s manager: %w", c.name, err)
		}

		app.logger.Debugf("%s manager started", c.name)
	}

	app.startTime = time.Now()
	app.logger.Info("Application started successfully")
	return nil
}

// Stop 逆序停止全部组件，收集错误但不中断
func (app *App) Stop(ctx context.Context) error {
	app.logger.Info("Stopping application...")
	app.cancelFunc()

	var errs []error
	for i := len(app.components) - 1; i >= 0; i-- {
		c := app.components[i]
		if err := c.Stop(ctx); err != nil {
			app.logger.Errorf("Failed to stop %s manager: %v", c.name, err)
			errs = append(errs, fmt.Errorf("failed to stop %s: %w", c.name, err))
		} else {
			app.logger.Debugf("%s manager stopped", c.name)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}
	app.logger.Info("Application stopped successfully")
	return nil
}

// Addr 返回 webserver 实际监听地址
func (app *App) Addr() string {
	return app.webserverMgr.Addr()
}

// IsHealthy 检查所有启用的组件是否都在运行
func (app *App) IsHealthy() bool {
	for _, c := range app.components {
		if c.name == "metrics" && !app.config.Metrics.Enabled {
			continue
		}
		if !c.IsRunning() {
			app.logger.Warnf("Component %s is not running", c.name)
			return false
		}
	}
	return true
}

// GetHealthSummary 获取健康状态摘要
func (app *App) GetHealthSummary() map[string]interface{} {
	components := make(map[string]interface{}, len(app.components))
	for _, c := range app.components {
		components[c.name] = map[string]interface{}{
			"running": c.IsRunning(),
		}
	}
	summary := map[string]interface{}{
		"healthy":    app.IsHealthy(),
		"components": components,
		"sinks":      app.pipelineMgr.Stats(),
		"tracks":     app.webrtcMgr.Stats(),
		"webserver":  app.webserverMgr.GetStats(),
	}
	if !app.startTime.IsZero() {
		summary["uptime"] = time.Since(app.startTime).String()
	}
	return summary
}
