package source

import (
	"encoding/binary"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-beagle/framesink/internal/buffersink"
	"github.com/open-beagle/framesink/internal/frame"
)

func testLogger() *logrus.Entry {
	logger, _ := test.NewNullLogger()
	return logrus.NewEntry(logger)
}

func smallVideo() Config {
	cfg := DefaultVideoConfig()
	cfg.Width, cfg.Height = 8, 4
	return cfg
}

func connectVideo(t *testing.T, cfg Config) (*Generator, *buffersink.Sink) {
	t.Helper()
	gen, err := NewGenerator(cfg, testLogger())
	require.NoError(t, err)
	sink, err := buffersink.NewVideoSink(gen, &buffersink.VideoParams{}, buffersink.WithLogger(testLogger()))
	require.NoError(t, err)
	gen.Connect(sink.OnFrameArrival)
	return gen, sink
}

func TestGenerator_PullThroughSink(t *testing.T) {
	gen, sink := connectVideo(t, smallVideo())

	for i := 0; i < 3; i++ {
		ref, err := sink.Fetch(0)
		require.NoError(t, err)
		f := ref.Frame()
		assert.True(t, f.IsVideo())
		assert.Equal(t, frame.PixelFormatYUV420P.FrameSize(8, 4), f.Size())
		assert.Equal(t, int64(i)*int64(gen.Config().FrameRate.Interval()), int64(f.PTS))
		ref.Unref()
	}
	assert.Equal(t, 3, gen.Produced())
	assert.Equal(t, uint64(3), sink.Stats().Requests)
}

func TestGenerator_EndOfStream(t *testing.T) {
	cfg := smallVideo()
	cfg.Frames = 2
	gen, sink := connectVideo(t, cfg)

	for i := 0; i < 2; i++ {
		ref, err := sink.Fetch(0)
		require.NoError(t, err)
		ref.Unref()
	}
	assert.Equal(t, 0, gen.PollFrame())

	_, err := sink.Fetch(0)
	assert.ErrorIs(t, err, buffersink.ErrEOF)

	_, err = gen.Produce(1)
	assert.ErrorIs(t, err, buffersink.ErrEOF)
}

func TestGenerator_BurstAndPoll(t *testing.T) {
	cfg := smallVideo()
	cfg.Burst = 4
	cfg.Frames = 6
	gen, sink := connectVideo(t, cfg)

	assert.Equal(t, 4, gen.PollFrame())
	assert.Equal(t, 4, sink.PendingCount())

	ref, err := sink.Fetch(0)
	require.NoError(t, err)
	ref.Unref()

	// 3 queued, 2 left upstream
	assert.Equal(t, 3, sink.Len())
	assert.Equal(t, 2, gen.PollFrame())
	assert.Equal(t, 5, sink.PendingCount())
}

func TestGenerator_ProduceAheadOfConsumer(t *testing.T) {
	gen, sink := connectVideo(t, smallVideo())

	n, err := gen.Produce(10)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, 10, sink.Len())

	first, err := sink.Fetch(buffersink.FlagNoRequest)
	require.NoError(t, err)
	assert.Equal(t, int64(0), int64(first.Frame().PTS))
	first.Unref()
	assert.Equal(t, uint64(0), sink.Stats().Requests)
}

func TestGenerator_NotConnected(t *testing.T) {
	gen, err := NewGenerator(smallVideo(), testLogger())
	require.NoError(t, err)
	assert.ErrorIs(t, gen.RequestFrame(), ErrNotConnected)
	_, err = gen.Produce(1)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestGenerator_ReleasesIntoPool(t *testing.T) {
	gen, sink := connectVideo(t, smallVideo())

	ref, err := sink.Fetch(0)
	require.NoError(t, err)
	assert.Equal(t, 0, gen.Pool().Idle())
	ref.Unref()
	assert.Equal(t, 1, gen.Pool().Idle())

	ref, err = sink.Fetch(0)
	require.NoError(t, err)
	ref.Unref()
	assert.Equal(t, int64(1), gen.Pool().Reused())
}

func TestGenerator_AudioFrameSize(t *testing.T) {
	gen, err := NewGenerator(DefaultAudioConfig(), testLogger())
	require.NoError(t, err)
	sink, err := buffersink.NewAudioSink(gen, nil, buffersink.WithLogger(testLogger()))
	require.NoError(t, err)
	gen.Connect(sink.FilterSamples)

	ref, err := sink.Fetch(0)
	require.NoError(t, err)
	assert.Equal(t, 1024, ref.Frame().Format.Samples)
	assert.Equal(t, 1024*2*2, ref.Frame().Size())
	ref.Unref()

	sink.SetFrameSize(160)
	ref, err = sink.Fetch(0)
	require.NoError(t, err)
	f := ref.Frame()
	assert.Equal(t, 160, f.Format.Samples)
	assert.Equal(t, 160*2*2, f.Size())
	assert.Equal(t, int64(1024)*int64(1e9)/48000, int64(f.PTS))
	assert.Equal(t, frame.Rational{Num: 48000, Den: 160}, gen.FrameRate())
	ref.Unref()
}

func TestGenerator_AudioToneIsNotSilent(t *testing.T) {
	cfg := DefaultAudioConfig()
	cfg.ChannelLayout = frame.ChannelLayoutMono
	gen, err := NewGenerator(cfg, testLogger())
	require.NoError(t, err)

	var got *frame.Ref
	gen.Connect(func(ref *frame.Ref) error {
		got = ref
		return nil
	})
	require.NoError(t, gen.RequestFrame())
	require.NotNil(t, got)

	data := got.Frame().Bytes()
	peak := int16(0)
	for i := 0; i+1 < len(data); i += 2 {
		if v := int16(binary.LittleEndian.Uint16(data[i:])); v > peak {
			peak = v
		}
	}
	assert.Greater(t, peak, int16(10000))
}

func TestGenerator_NegotiatesWithSink(t *testing.T) {
	gen, err := NewGenerator(smallVideo(), testLogger())
	require.NoError(t, err)
	sink, err := buffersink.NewVideoSink(gen, &buffersink.VideoParams{
		PixelFormats: []frame.PixelFormat{frame.PixelFormatRGB24, frame.PixelFormatNone, frame.PixelFormatYUV420P},
	}, buffersink.WithLogger(testLogger()))
	require.NoError(t, err)

	require.NoError(t, sink.QueryFormats(gen))
	assert.Equal(t, frame.PixelFormatRGB24, gen.Config().PixelFormat)

	audio, err := NewGenerator(DefaultAudioConfig(), testLogger())
	require.NoError(t, err)
	asink, err := buffersink.NewAudioSink(audio, &buffersink.AudioParams{
		SampleFormats:  []frame.SampleFormat{frame.SampleFormatFLT, frame.SampleFormatS16},
		ChannelLayouts: []frame.ChannelLayout{frame.ChannelLayoutMono},
	}, buffersink.WithLogger(testLogger()))
	require.NoError(t, err)

	require.NoError(t, asink.QueryFormats(audio))
	assert.Equal(t, frame.SampleFormatS16, audio.Config().SampleFormat, "configured format is kept when accepted")
	assert.Equal(t, frame.ChannelLayoutMono, audio.Config().ChannelLayout)
}

func TestGenerator_NoCommonFormat(t *testing.T) {
	gen, err := NewGenerator(smallVideo(), testLogger())
	require.NoError(t, err)
	assert.ErrorIs(t, gen.SetPixelFormats([]frame.PixelFormat{frame.PixelFormat(99)}), ErrNoCommonFormat)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid video", mutate: func(*Config) {}},
		{name: "zero width", mutate: func(c *Config) { c.Width = 0 }, wantErr: true},
		{name: "zero frame rate", mutate: func(c *Config) { c.FrameRate = frame.Rational{} }, wantErr: true},
		{name: "negative frames", mutate: func(c *Config) { c.Frames = -1 }, wantErr: true},
		{name: "zero burst", mutate: func(c *Config) { c.Burst = 0 }, wantErr: true},
		{name: "unknown media", mutate: func(c *Config) { c.MediaType = frame.MediaTypeUnknown }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := smallVideo()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	audio := DefaultAudioConfig()
	audio.ChannelLayout = frame.ChannelLayoutUndefined
	assert.Error(t, audio.Validate())
}
