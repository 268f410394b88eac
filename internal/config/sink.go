package config

import (
	"fmt"
	"strings"

	"github.com/open-beagle/framesink/internal/frame"
)

// SinkKind sink 媒体类型
type SinkKind string

const (
	SinkKindVideo SinkKind = "video"
	SinkKindAudio SinkKind = "audio"
)

// SinkConfig 单个 sink 的配置
type SinkConfig struct {
	Name string   `yaml:"name" json:"name"`
	Kind SinkKind `yaml:"kind" json:"kind"`

	// 视频：接受的像素格式，为空表示接受上游提供的任意格式
	PixelFormats []string `yaml:"pixel_formats,omitempty" json:"pixel_formats,omitempty"`

	// 音频：接受的采样格式与声道布局
	SampleFormats  []string `yaml:"sample_formats,omitempty" json:"sample_formats,omitempty"`
	ChannelLayouts []string `yaml:"channel_layouts,omitempty" json:"channel_layouts,omitempty"`

	// WarningThreshold 首次积压告警的队列长度，0 关闭告警，未设置时为 100
	WarningThreshold *uint `yaml:"warning_threshold,omitempty" json:"warning_threshold,omitempty"`

	// MaxQueued 队列硬上限，0 表示不限制
	MaxQueued int `yaml:"max_queued" json:"max_queued"`

	// FrameSize 强制上游按固定采样数分组输出，0 表示不设置
	FrameSize uint `yaml:"frame_size" json:"frame_size"`

	// WebRTC 是否将该 sink 输出到 WebRTC 轨道
	WebRTC WebRTCTrackConfig `yaml:"webrtc" json:"webrtc"`

	// Source 合成上游配置
	Source SourceConfig `yaml:"source" json:"source"`
}

// WebRTC 轨道支持的编码，帧在发送前编码为 G.711
const (
	MimeTypePCMU = "audio/PCMU"
	MimeTypePCMA = "audio/PCMA"

	// G711ClockRate G.711 固定 8kHz，源采样率必须是它的整数倍
	G711ClockRate = 8000
)

// WebRTCTrackConfig WebRTC 轨道配置，仅音频 sink 可以启用
type WebRTCTrackConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	MimeType string `yaml:"mime_type" json:"mime_type"`
	TrackID  string `yaml:"track_id" json:"track_id"`
	StreamID string `yaml:"stream_id" json:"stream_id"`
}

// SourceConfig 合成上游配置
type SourceConfig struct {
	// 视频
	FrameRate   frame.Rational `yaml:"frame_rate" json:"frame_rate"`
	Width       int            `yaml:"width" json:"width"`
	Height      int            `yaml:"height" json:"height"`
	PixelFormat string         `yaml:"pixel_format" json:"pixel_format"`

	// 音频
	SampleRate      int     `yaml:"sample_rate" json:"sample_rate"`
	SampleFormat    string  `yaml:"sample_format" json:"sample_format"`
	ChannelLayout   string  `yaml:"channel_layout" json:"channel_layout"`
	SamplesPerFrame int     `yaml:"samples_per_frame" json:"samples_per_frame"`
	ToneHz          float64 `yaml:"tone_hz" json:"tone_hz"`

	// Frames 总帧数，0 表示无限
	Frames int `yaml:"frames" json:"frames"`

	// Burst 每次请求产生的帧数
	Burst int `yaml:"burst" json:"burst"`

	// Push 为 true 时上游按帧率主动推送，不等待消费者请求
	Push bool `yaml:"push" json:"push"`
}

// DefaultVideoSinkConfig 返回默认视频 sink 配置
func DefaultVideoSinkConfig(name string) SinkConfig {
	c := SinkConfig{Name: name, Kind: SinkKindVideo}
	c.applyDefaults()
	return c
}

// DefaultAudioSinkConfig 返回默认音频 sink 配置
func DefaultAudioSinkConfig(name string) SinkConfig {
	c := SinkConfig{Name: name, Kind: SinkKindAudio}
	c.applyDefaults()
	return c
}

// applyDefaults 填充未设置的字段
func (c *SinkConfig) applyDefaults() {
	s := &c.Source
	if s.Burst == 0 {
		s.Burst = 1
	}

	switch c.Kind {
	case SinkKindVideo:
		if s.FrameRate.IsZero() {
			s.FrameRate = frame.Rational{Num: 30, Den: 1}
		}
		if s.Width == 0 {
			s.Width = 640
		}
		if s.Height == 0 {
			s.Height = 360
		}
		if s.PixelFormat == "" {
			s.PixelFormat = frame.PixelFormatYUV420P.String()
		}
	case SinkKindAudio:
		if s.SampleRate == 0 {
			s.SampleRate = 48000
		}
		if s.SampleFormat == "" {
			s.SampleFormat = frame.SampleFormatS16.String()
		}
		if s.ChannelLayout == "" {
			s.ChannelLayout = frame.ChannelLayoutStereo.String()
		}
		if s.SamplesPerFrame == 0 {
			s.SamplesPerFrame = 1024
		}
		if s.ToneHz == 0 {
			s.ToneHz = 440
		}
		if c.WebRTC.MimeType == "" {
			c.WebRTC.MimeType = MimeTypePCMU
		}
	}

	if c.WebRTC.TrackID == "" {
		c.WebRTC.TrackID = c.Name
	}
	if c.WebRTC.StreamID == "" {
		c.WebRTC.StreamID = "framesink"
	}
}

// Validate 验证 sink 配置
func (c *SinkConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("sink name cannot be empty")
	}

	if c.MaxQueued < 0 {
		return fmt.Errorf("max queued must not be negative, got: %d", c.MaxQueued)
	}

	if c.Source.Frames < 0 {
		return fmt.Errorf("source frames must not be negative, got: %d", c.Source.Frames)
	}
	if c.Source.Burst < 1 {
		return fmt.Errorf("source burst must be at least 1, got: %d", c.Source.Burst)
	}

	switch c.Kind {
	case SinkKindVideo:
		if len(c.SampleFormats) > 0 || len(c.ChannelLayouts) > 0 {
			return fmt.Errorf("video sink cannot constrain sample formats or channel layouts")
		}
		if _, err := c.PixelFormatList(); err != nil {
			return err
		}
		if _, err := frame.ParsePixelFormat(c.Source.PixelFormat); err != nil {
			return fmt.Errorf("invalid source: %w", err)
		}
		if c.Source.Width <= 0 || c.Source.Height <= 0 {
			return fmt.Errorf("invalid source size: %dx%d", c.Source.Width, c.Source.Height)
		}
		if c.Source.FrameRate.IsZero() {
			return fmt.Errorf("source frame rate is required")
		}
	case SinkKindAudio:
		if len(c.PixelFormats) > 0 {
			return fmt.Errorf("audio sink cannot constrain pixel formats")
		}
		if _, err := c.SampleFormatList(); err != nil {
			return err
		}
		if _, err := c.ChannelLayoutList(); err != nil {
			return err
		}
		if _, err := frame.ParseSampleFormat(c.Source.SampleFormat); err != nil {
			return fmt.Errorf("invalid source: %w", err)
		}
		if _, err := frame.ParseChannelLayout(c.Source.ChannelLayout); err != nil {
			return fmt.Errorf("invalid source: %w", err)
		}
		if c.Source.SampleRate <= 0 {
			return fmt.Errorf("invalid source sample rate: %d", c.Source.SampleRate)
		}
	default:
		return fmt.Errorf("invalid sink kind: %q, must be 'video' or 'audio'", c.Kind)
	}

	return c.validateWebRTC()
}

func (c *SinkConfig) validateWebRTC() error {
	if !c.WebRTC.Enabled {
		return nil
	}
	if c.Kind != SinkKindAudio {
		return fmt.Errorf("sink %s: webrtc output needs an audio sink, raw video has no supported track codec", c.Name)
	}
	if !strings.EqualFold(c.WebRTC.MimeType, MimeTypePCMU) && !strings.EqualFold(c.WebRTC.MimeType, MimeTypePCMA) {
		return fmt.Errorf("sink %s: unsupported webrtc mime type %q, must be %s or %s",
			c.Name, c.WebRTC.MimeType, MimeTypePCMU, MimeTypePCMA)
	}
	if c.Source.SampleRate%G711ClockRate != 0 {
		return fmt.Errorf("sink %s: source sample rate %d is not a multiple of %d",
			c.Name, c.Source.SampleRate, G711ClockRate)
	}
	return nil
}

// PixelFormatList 解析像素格式列表，未配置时返回 nil
func (c *SinkConfig) PixelFormatList() ([]frame.PixelFormat, error) {
	return parseList(c.PixelFormats, frame.ParsePixelFormat)
}

// SampleFormatList 解析采样格式列表，未配置时返回 nil
func (c *SinkConfig) SampleFormatList() ([]frame.SampleFormat, error) {
	return parseList(c.SampleFormats, frame.ParseSampleFormat)
}

// ChannelLayoutList 解析声道布局列表，未配置时返回 nil
func (c *SinkConfig) ChannelLayoutList() ([]frame.ChannelLayout, error) {
	return parseList(c.ChannelLayouts, frame.ParseChannelLayout)
}

// Threshold 返回生效的告警阈值
func (c *SinkConfig) Threshold() uint {
	if c.WarningThreshold == nil {
		return 100
	}
	return *c.WarningThreshold
}

func parseList[T any](names []string, parse func(string) (T, error)) ([]T, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := make([]T, 0, len(names))
	for _, name := range names {
		v, err := parse(name)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
