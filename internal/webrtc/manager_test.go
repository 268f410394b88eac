package webrtc

import (
	"context"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/open-beagle/framesink/internal/config"
	"github.com/open-beagle/framesink/internal/pipeline"
)

func newPipeline(t *testing.T, frames int) *pipeline.Manager {
	t.Helper()

	video := config.DefaultVideoSinkConfig("cam")
	video.Source.Width, video.Source.Height = 16, 8

	// 480 samples at 48kHz: 10ms frames, 80 bytes of G.711 each
	audio := config.DefaultAudioSinkConfig("mic")
	audio.Source.SamplesPerFrame = 480
	audio.Source.Frames = frames
	audio.WebRTC.Enabled = true

	pm, err := pipeline.NewManager(context.Background(), []config.SinkConfig{video, audio}, nil, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = pm.Stop(context.Background()) })
	return pm
}

func TestManager_TracksFollowConfig(t *testing.T) {
	m, err := NewManager(context.Background(), newPipeline(t, 0), testLogger())
	require.NoError(t, err)

	tracks := m.Tracks()
	require.Len(t, tracks, 1, "only sinks with webrtc enabled get a track")
	assert.Equal(t, "mic", tracks[0].ID())
	assert.Equal(t, "framesink", tracks[0].StreamID())
	assert.Equal(t, webrtc.MimeTypePCMU, tracks[0].Codec().MimeType)
	assert.Equal(t, uint32(8000), tracks[0].Codec().ClockRate)
	assert.Equal(t, webrtc.RTPCodecTypeAudio, tracks[0].Kind())

	_, err = NewManager(context.Background(), nil, testLogger())
	assert.Error(t, err)
}

func TestManager_WritesDecodableAudio(t *testing.T) {
	pm := newPipeline(t, 1)
	g, _ := pm.Get("mic")
	enc, err := NewEncoder(g.Config().WebRTC.MimeType)
	require.NoError(t, err)

	out := &MockWriter{}
	var payload []byte
	out.On("WriteSample", mock.Anything).Run(func(args mock.Arguments) {
		payload = args.Get(0).(media.Sample).Data
	}).Return(nil).Once()

	d := NewTrackDrainer(g, out, enc, false, testLogger())
	more, err := d.DrainOnce()
	require.NoError(t, err)
	require.True(t, more)
	require.Len(t, payload, 80)

	// the source renders a 440Hz tone at half scale
	peak := 0
	for _, b := range payload {
		if v := int(ulawToLinear(b)); v > peak {
			peak = v
		} else if -v > peak {
			peak = -v
		}
	}
	assert.InDelta(t, 16384, peak, 2000)
}

func TestManager_DrainsSinkIntoTrack(t *testing.T) {
	m, err := NewManager(context.Background(), newPipeline(t, 10), testLogger())
	require.NoError(t, err)

	require.NoError(t, m.Start(context.Background()))
	assert.True(t, m.IsRunning())
	assert.Error(t, m.Start(context.Background()))

	require.Eventually(t, func() bool {
		return m.Stats()[0].Done
	}, 2*time.Second, 5*time.Millisecond)

	st := m.Stats()[0]
	assert.Equal(t, "mic", st.Sink)
	assert.Equal(t, int64(10), st.FramesSent)
	assert.Equal(t, int64(10*80), st.BytesSent)
	assert.Zero(t, st.WriteErrors)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Stop(ctx))
	assert.False(t, m.IsRunning())
}

func TestManager_AttachTo(t *testing.T) {
	m, err := NewManager(context.Background(), newPipeline(t, 0), testLogger())
	require.NoError(t, err)

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	defer pc.Close()

	require.NoError(t, m.AttachTo(pc))
	senders := pc.GetSenders()
	require.Len(t, senders, 1)
	assert.Equal(t, "mic", senders[0].Track().ID())

	offer, err := pc.CreateOffer(nil)
	require.NoError(t, err)
	assert.Contains(t, offer.SDP, "PCMU/8000")
}
