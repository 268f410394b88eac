package config

import (
	"fmt"
	"strings"
)

// MetricsConfig Metrics配置模块
//
// 指标始终注册并通过 webserver 的 /metrics 暴露；Enabled 控制是否另起独立端口。
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Host      string `yaml:"host" json:"host"`
	Port      int    `yaml:"port" json:"port"`
	Path      string `yaml:"path" json:"path"`
	Namespace string `yaml:"namespace" json:"namespace"`
}

// DefaultMetricsConfig 返回默认的Metrics配置
func DefaultMetricsConfig() *MetricsConfig {
	config := &MetricsConfig{}
	config.SetDefaults()
	return config
}

// SetDefaults 设置默认值，外部端口默认禁用
func (c *MetricsConfig) SetDefaults() {
	c.Enabled = false
	c.Host = "0.0.0.0"
	c.Port = 9090
	c.Path = "/metrics"
	c.Namespace = "framesink"
}

// Validate 验证配置
func (c *MetricsConfig) Validate() error {
	if c.Namespace == "" {
		return fmt.Errorf("metrics namespace cannot be empty")
	}

	if !c.Enabled {
		return nil
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid metrics port: %d (must be between 1 and 65535)", c.Port)
	}

	if c.Host == "" {
		return fmt.Errorf("metrics host cannot be empty")
	}

	if !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("metrics path must start with '/', got: %s", c.Path)
	}

	return nil
}

// Addr 返回外部监听地址
func (c *MetricsConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
