package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/open-beagle/framesink/internal/config"
)

const (
	AppName    = "framesink"
	AppVersion = "1.0.0"
)

func main() {
	// 解析命令行参数
	var (
		configFile = flag.String("config", "", "Configuration file path")
		port       = flag.Int("port", 0, "Web server port (overrides config)")
		host       = flag.String("host", "", "Web server host (overrides config)")
		logLevel   = flag.String("log-level", "", "Log level (trace, debug, info, warn, error)")
		logOutput  = flag.String("log-output", "", "Log output (stdout, stderr, file)")
		logFile    = flag.String("log-file", "", "Log file path (when log-output is file)")
		version    = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *version {
		fmt.Printf("%s v%s\n", AppName, AppVersion)
		fmt.Println("Frame buffering sink service with HTTP and WebRTC consumers")
		return
	}

	// 加载配置
	var cfg *config.Config
	var err error

	if *configFile != "" {
		log.Printf("Loading configuration from: %s", *configFile)
		cfg, err = config.LoadConfigFromFile(*configFile)
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	// 环境变量优先于配置文件，命令行参数优先于环境变量
	cfg.Logging.ApplyEnv()
	if *port != 0 {
		cfg.WebServer.Port = *port
	}
	if *host != "" {
		cfg.WebServer.Host = *host
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logOutput != "" {
		cfg.Logging.Output = *logOutput
	}
	if *logFile != "" {
		cfg.Logging.File = *logFile
		if *logOutput == "" {
			cfg.Logging.Output = "file"
		}
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := config.SetupLogger(cfg.Logging); err != nil {
		log.Fatalf("Failed to setup logger: %v", err)
	}
	logger := config.GetLoggerWithPrefix("app")
	logger.Debugf("Effective configuration: %s", cfg)

	app, err := NewApp(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to create application: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	startCtx, cancelStart := context.WithTimeout(context.Background(), cfg.Lifecycle.StartupTimeout)
	err = app.Start(startCtx)
	cancelStart()
	if err != nil {
		logger.Fatalf("Application failed to start: %v", err)
	}

	protocol := "http"
	if cfg.WebServer.EnableTLS {
		protocol = "https"
	}
	fmt.Printf("\n%s v%s started\n", AppName, AppVersion)
	fmt.Printf("API:     %s://%s/api/v1/sinks\n", protocol, app.Addr())
	if cfg.Metrics.Enabled {
		fmt.Printf("Metrics: http://%s%s\n", cfg.Metrics.Addr(), cfg.Metrics.Path)
	}
	for _, s := range cfg.Sinks {
		fmt.Printf("Sink:    %s (%s)\n", s.Name, s.Kind)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	sig := <-sigChan
	logger.Infof("Received signal: %v, initiating graceful shutdown", sig)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Lifecycle.ShutdownTimeout)
	defer cancel()

	if err := app.Stop(ctx); err != nil {
		logger.WithFields(logrus.Fields{"error": err}).Error("Application shutdown error")
		os.Exit(1)
	}
	logger.Info("Application stopped gracefully")
}
