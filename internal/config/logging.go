package config

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// 环境变量前缀
const envPrefix = "FRAMESINK_LOG_"

// LoggingConfig 日志配置
type LoggingConfig struct {
	// Level 日志等级 (trace, debug, info, warn, error)
	Level string `yaml:"level" json:"level"`

	// Format 日志格式 (text, json)
	Format string `yaml:"format" json:"format"`

	// Output 输出目标 (stdout, stderr, file)
	Output string `yaml:"output" json:"output"`

	// File 日志文件路径 (当Output为file时使用)
	File string `yaml:"file" json:"file"`

	EnableTimestamp bool `yaml:"enable_timestamp" json:"enable_timestamp"`
	EnableCaller    bool `yaml:"enable_caller" json:"enable_caller"`
	EnableColors    bool `yaml:"enable_colors" json:"enable_colors"`
}

// DefaultLoggingConfig 返回默认日志配置
func DefaultLoggingConfig() *LoggingConfig {
	return &LoggingConfig{
		Level:           "info",
		Format:          "text",
		Output:          "stdout",
		EnableTimestamp: true,
		EnableColors:    true,
	}
}

// Validate 验证日志配置
func (c *LoggingConfig) Validate() error {
	if _, err := logrus.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", c.Level)
	}

	if c.Format != "text" && c.Format != "json" {
		return fmt.Errorf("invalid log format: %s, must be 'text' or 'json'", c.Format)
	}

	if c.Output != "stdout" && c.Output != "stderr" && c.Output != "file" {
		return fmt.Errorf("invalid log output: %s, must be 'stdout', 'stderr', or 'file'", c.Output)
	}

	// 如果输出到文件，检查文件路径
	if c.Output == "file" && c.File == "" {
		return fmt.Errorf("log file path is required when output is 'file'")
	}

	return nil
}

// ApplyEnv 用环境变量覆盖日志配置
func (c *LoggingConfig) ApplyEnv() {
	if level := os.Getenv(envPrefix + "LEVEL"); level != "" {
		c.Level = strings.ToLower(level)
	}
	if format := os.Getenv(envPrefix + "FORMAT"); format != "" {
		c.Format = format
	}
	if output := os.Getenv(envPrefix + "OUTPUT"); output != "" {
		c.Output = output
	}
	if file := os.Getenv(envPrefix + "FILE"); file != "" {
		c.File = file
	}
	if timestamp := os.Getenv(envPrefix + "TIMESTAMP"); timestamp != "" {
		c.EnableTimestamp = strings.ToLower(timestamp) == "true"
	}
	if caller := os.Getenv(envPrefix + "CALLER"); caller != "" {
		c.EnableCaller = strings.ToLower(caller) == "true"
	}
	if colors := os.Getenv(envPrefix + "COLORS"); colors != "" {
		c.EnableColors = strings.ToLower(colors) == "true"
	}
}

// SetupLogger 根据配置设置全局 logrus
func SetupLogger(config *LoggingConfig) error {
	if config == nil {
		config = DefaultLoggingConfig()
	}

	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}
	logrus.SetLevel(level)

	var output io.Writer
	switch config.Output {
	case "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	case "file":
		file, err := os.OpenFile(config.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", config.File, err)
		}
		output = file
	}
	logrus.SetOutput(output)

	if config.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05.000",
		})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: "2006-01-02 15:04:05.000",
			FullTimestamp:   config.EnableTimestamp,
			ForceColors:     config.EnableColors,
		})
	}

	logrus.SetReportCaller(config.EnableCaller)

	return nil
}

// GetLoggerWithPrefix 获取带组件字段的logger
func GetLoggerWithPrefix(prefix string) *logrus.Entry {
	return logrus.WithField("component", prefix)
}

// GetStandardLoggerWithPrefix 获取带前缀的标准库兼容logger，用于 http.Server.ErrorLog
func GetStandardLoggerWithPrefix(prefix string) *log.Logger {
	return log.New(&logrusWriter{entry: GetLoggerWithPrefix(prefix)}, "", 0)
}

// logrusWriter 将 logrus.Entry 包装为 io.Writer
type logrusWriter struct {
	entry *logrus.Entry
}

// Write 实现 io.Writer 接口
func (w *logrusWriter) Write(p []byte) (n int, err error) {
	w.entry.Warn(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}
