package config

import (
	"fmt"
	"time"
)

// WebServerConfig Web服务器配置模块
type WebServerConfig struct {
	Host       string    `yaml:"host" json:"host"`
	Port       int       `yaml:"port" json:"port"`
	EnableTLS  bool      `yaml:"enable_tls" json:"enable_tls"`
	TLS        TLSConfig `yaml:"tls" json:"tls"`
	EnableCORS bool      `yaml:"enable_cors" json:"enable_cors"`

	// StatsInterval /ws/stats 推送间隔
	StatsInterval time.Duration `yaml:"stats_interval" json:"stats_interval"`
}

// TLSConfig TLS配置
type TLSConfig struct {
	CertFile string `yaml:"cert_file" json:"cert_file"`
	KeyFile  string `yaml:"key_file" json:"key_file"`
}

// DefaultWebServerConfig 返回默认的WebServer配置
func DefaultWebServerConfig() *WebServerConfig {
	config := &WebServerConfig{}
	config.SetDefaults()
	return config
}

// SetDefaults 设置默认值
func (c *WebServerConfig) SetDefaults() {
	c.Host = "0.0.0.0"
	c.Port = 8080
	c.EnableTLS = false
	c.EnableCORS = true
	c.StatsInterval = time.Second
}

// Validate 验证配置
func (c *WebServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Port)
	}

	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}

	if c.EnableTLS {
		if c.TLS.CertFile == "" {
			return fmt.Errorf("TLS cert file is required when TLS is enabled")
		}
		if c.TLS.KeyFile == "" {
			return fmt.Errorf("TLS key file is required when TLS is enabled")
		}
	}

	if c.StatsInterval <= 0 {
		return fmt.Errorf("stats interval must be positive, got: %v", c.StatsInterval)
	}

	return nil
}

// Addr 返回监听地址
func (c *WebServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
