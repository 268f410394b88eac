package source

import (
	"errors"
	"slices"

	"github.com/open-beagle/framesink/internal/frame"
)

// ErrNoCommonFormat is returned when a sink accepts nothing the generator can produce.
var ErrNoCommonFormat = errors.New("source: no common format")

// SetPixelFormats keeps the configured pixel format when accepted, otherwise
// switches to the first accepted format the generator can render.
func (g *Generator) SetPixelFormats(formats []frame.PixelFormat) error {
	if g.cfg.MediaType != frame.MediaTypeVideo {
		return nil
	}
	if slices.Contains(formats, g.cfg.PixelFormat) {
		return nil
	}
	for _, pf := range formats {
		if pf.FrameSize(g.cfg.Width, g.cfg.Height) > 0 {
			g.logger.Infof("Pixel format negotiated: %s -> %s", g.cfg.PixelFormat, pf)
			g.cfg.PixelFormat = pf
			return nil
		}
	}
	return ErrNoCommonFormat
}

// SetSampleFormats is the audio counterpart of SetPixelFormats.
func (g *Generator) SetSampleFormats(formats []frame.SampleFormat) error {
	if g.cfg.MediaType != frame.MediaTypeAudio {
		return nil
	}
	if slices.Contains(formats, g.cfg.SampleFormat) {
		return nil
	}
	for _, sf := range formats {
		if sf.BytesPerSample() > 0 {
			g.logger.Infof("Sample format negotiated: %s -> %s", g.cfg.SampleFormat, sf)
			g.cfg.SampleFormat = sf
			return nil
		}
	}
	return ErrNoCommonFormat
}

// SetChannelLayouts keeps the configured layout when accepted, otherwise takes the first one.
func (g *Generator) SetChannelLayouts(layouts []frame.ChannelLayout) error {
	if g.cfg.MediaType != frame.MediaTypeAudio {
		return nil
	}
	if slices.Contains(layouts, g.cfg.ChannelLayout) {
		return nil
	}
	for _, cl := range layouts {
		if cl.Channels() > 0 {
			g.logger.Infof("Channel layout negotiated: %s -> %s", g.cfg.ChannelLayout, cl)
			g.cfg.ChannelLayout = cl
			return nil
		}
	}
	return ErrNoCommonFormat
}

// SetDefaultFormats keeps the configured formats.
func (g *Generator) SetDefaultFormats() error {
	return nil
}
