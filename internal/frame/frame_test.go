package frame

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRef_Lifecycle(t *testing.T) {
	released := 0
	f := NewVideoFrame(make([]byte, 16), 4, 4, PixelFormatGray8, 0)
	r := NewRef(f, func(got *Frame) {
		assert.Same(t, f, got)
		released++
	})

	assert.Equal(t, 1, r.Refs())
	assert.Same(t, r, r.Ref())
	assert.Equal(t, 2, r.Refs())

	r.Unref()
	assert.Equal(t, 0, released)
	r.Unref()
	assert.Equal(t, 1, released)
	assert.Equal(t, 0, r.Refs())

	assert.Panics(t, func() { r.Unref() })
}

func TestRef_RefAfterRelease(t *testing.T) {
	r := NewRef(&Frame{}, nil)
	r.Unref()
	assert.Panics(t, func() { r.Ref() })
}

func TestFrame_Constructors(t *testing.T) {
	v := NewVideoFrame(make([]byte, PixelFormatYUV420P.FrameSize(4, 2)), 4, 2, PixelFormatYUV420P, time.Second)
	assert.True(t, v.IsVideo())
	assert.False(t, v.IsAudio())
	assert.Equal(t, 12, v.Size())
	assert.Equal(t, time.Second, v.PTS)

	a := NewAudioFrame(make([]byte, 1024*4), 1024, 48000, SampleFormatS16, ChannelLayoutStereo, 0)
	assert.True(t, a.IsAudio())
	assert.Equal(t, 2, a.Format.ChannelLayout.Channels())
	assert.Equal(t, time.Duration(1024)*time.Second/48000, a.Duration)
}

func TestFrame_Bytes(t *testing.T) {
	f := &Frame{Planes: [][]byte{{1, 2}, {3}, {4, 5}}}
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, f.Bytes())

	single := &Frame{Planes: [][]byte{{9, 8}}}
	assert.Equal(t, []byte{9, 8}, single.Bytes())

	assert.Nil(t, (&Frame{}).Bytes())
}

func TestParseFormats(t *testing.T) {
	p, err := ParsePixelFormat(" YUV420P ")
	require.NoError(t, err)
	assert.Equal(t, PixelFormatYUV420P, p)

	s, err := ParseSampleFormat("flt")
	require.NoError(t, err)
	assert.Equal(t, SampleFormatFLT, s)

	c, err := ParseChannelLayout("5.1")
	require.NoError(t, err)
	assert.Equal(t, 6, c.Channels())

	_, err = ParsePixelFormat("yuv999")
	var unknown *UnknownNameError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "pixel format", unknown.Kind)

	_, err = ParseMediaType("subtitle")
	assert.Error(t, err)
}

func TestCopyLists_StopAtSentinel(t *testing.T) {
	assert.Nil(t, CopyPixelFormats(nil))
	assert.Equal(t, []PixelFormat{}, CopyPixelFormats([]PixelFormat{PixelFormatNone}))
	assert.Equal(t,
		[]PixelFormat{PixelFormatRGB24, PixelFormatNV12},
		CopyPixelFormats([]PixelFormat{PixelFormatRGB24, PixelFormatNV12, PixelFormatNone, PixelFormatGray8}))

	src := []SampleFormat{SampleFormatS16, SampleFormatFLT}
	dst := CopySampleFormats(src)
	src[0] = SampleFormatDBL
	assert.Equal(t, SampleFormatS16, dst[0], "copy must not alias the caller's list")

	assert.Equal(t,
		[]ChannelLayout{ChannelLayoutMono},
		CopyChannelLayouts([]ChannelLayout{ChannelLayoutMono, ChannelLayoutNone}))
}

func TestParseRational(t *testing.T) {
	tests := []struct {
		in      string
		want    Rational
		wantErr bool
	}{
		{in: "30/1", want: Rational{30, 1}},
		{in: "30000/1001", want: Rational{30000, 1001}},
		{in: "25", want: Rational{25, 1}},
		{in: "1/0", wantErr: true},
		{in: "abc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRational(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, 40*time.Millisecond, Rational{25, 1}.Interval())
	assert.Equal(t, time.Duration(0), Rational{}.Interval())
}

func TestPool_ReusesBuffers(t *testing.T) {
	pool := NewPool(2)
	buf := pool.Get(64)
	assert.Len(t, buf, 64)
	assert.Equal(t, int64(1), pool.Allocated())

	r := pool.Wrap(NewVideoFrame(buf, 8, 8, PixelFormatGray8, 0))
	r.Unref()
	assert.Equal(t, 1, pool.Idle())

	again := pool.Get(32)
	assert.Len(t, again, 32)
	assert.Equal(t, int64(1), pool.Reused())
	assert.Equal(t, 0, pool.Idle())

	// too small to serve the request; a fresh buffer is allocated
	pool.Put(make([]byte, 4))
	big := pool.Get(128)
	assert.Len(t, big, 128)
	assert.Equal(t, int64(2), pool.Allocated())
}
