package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config framesink 配置聚合器
type Config struct {
	// Web服务器配置模块
	WebServer *WebServerConfig `yaml:"webserver" json:"webserver"`

	// Metrics配置模块
	Metrics *MetricsConfig `yaml:"metrics" json:"metrics"`

	// 日志配置模块
	Logging *LoggingConfig `yaml:"logging" json:"logging"`

	// Sink 列表，每个 sink 绑定一个上游
	Sinks []SinkConfig `yaml:"sinks" json:"sinks"`

	// 生命周期管理配置
	Lifecycle LifecycleConfig `yaml:"lifecycle" json:"lifecycle"`
}

// LifecycleConfig 生命周期管理配置
type LifecycleConfig struct {
	// 优雅关闭超时时间
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// 组件启动超时时间
	StartupTimeout time.Duration `yaml:"startup_timeout" json:"startup_timeout"`
}

// DefaultConfig 返回默认配置：一个视频 sink 和一个音频 sink
func DefaultConfig() *Config {
	cfg := &Config{
		WebServer: DefaultWebServerConfig(),
		Metrics:   DefaultMetricsConfig(),
		Logging:   DefaultLoggingConfig(),
		Sinks: []SinkConfig{
			DefaultVideoSinkConfig("video"),
			DefaultAudioSinkConfig("audio"),
		},
	}

	cfg.Lifecycle.ShutdownTimeout = 30 * time.Second
	cfg.Lifecycle.StartupTimeout = 60 * time.Second

	return cfg
}

// LoadConfigFromFile 从文件加载配置
func LoadConfigFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig 解析 YAML 配置，未设置的字段保留默认值
func ParseConfig(data []byte) (*Config, error) {
	config := DefaultConfig()

	// sinks 列表整体替换默认值
	config.Sinks = nil
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if config.Sinks == nil {
		config.Sinks = DefaultConfig().Sinks
	}
	for i := range config.Sinks {
		config.Sinks[i].applyDefaults()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.WebServer != nil {
		if err := c.WebServer.Validate(); err != nil {
			return fmt.Errorf("invalid webserver config: %w", err)
		}
	}

	if c.Metrics != nil {
		if err := c.Metrics.Validate(); err != nil {
			return fmt.Errorf("invalid metrics config: %w", err)
		}
	}

	if c.Logging != nil {
		if err := c.Logging.Validate(); err != nil {
			return fmt.Errorf("invalid logging config: %w", err)
		}
	}

	if len(c.Sinks) == 0 {
		return fmt.Errorf("at least one sink must be configured")
	}
	names := make(map[string]bool, len(c.Sinks))
	for i := range c.Sinks {
		sink := &c.Sinks[i]
		if err := sink.Validate(); err != nil {
			return fmt.Errorf("invalid sink %q: %w", sink.Name, err)
		}
		if names[sink.Name] {
			return fmt.Errorf("duplicate sink name: %q", sink.Name)
		}
		names[sink.Name] = true
	}

	if err := c.validateLifecycleConfig(); err != nil {
		return fmt.Errorf("invalid lifecycle config: %w", err)
	}

	return c.validateCrossModuleCompatibility()
}

// validateLifecycleConfig 验证生命周期配置
func (c *Config) validateLifecycleConfig() error {
	if c.Lifecycle.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive, got: %v", c.Lifecycle.ShutdownTimeout)
	}

	if c.Lifecycle.StartupTimeout <= 0 {
		return fmt.Errorf("startup timeout must be positive, got: %v", c.Lifecycle.StartupTimeout)
	}

	return nil
}

// validateCrossModuleCompatibility 检查端口冲突
func (c *Config) validateCrossModuleCompatibility() error {
	if c.WebServer != nil && c.Metrics != nil && c.Metrics.Enabled && c.Metrics.Port == c.WebServer.Port {
		return fmt.Errorf("port conflict: metrics port %d already used by webserver", c.Metrics.Port)
	}
	return nil
}

// Sink 按名称查找 sink 配置
func (c *Config) Sink(name string) (*SinkConfig, bool) {
	for i := range c.Sinks {
		if c.Sinks[i].Name == name {
			return &c.Sinks[i], true
		}
	}
	return nil, false
}

// String 返回配置的字符串表示
func (c *Config) String() string {
	webInfo := "disabled"
	if c.WebServer != nil {
		webInfo = fmt.Sprintf("%s:%d", c.WebServer.Host, c.WebServer.Port)
	}

	video, audio := 0, 0
	for _, s := range c.Sinks {
		switch s.Kind {
		case SinkKindVideo:
			video++
		case SinkKindAudio:
			audio++
		}
	}

	return fmt.Sprintf("Config{WebServer: %s, Sinks: %d video / %d audio}", webInfo, video, audio)
}

// SaveToFile 保存配置到文件
func (c *Config) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
