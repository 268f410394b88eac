package buffersink

import (
	"errors"

	"github.com/open-beagle/framesink/internal/fifo"
)

var (
	// ErrOutOfMemory 队列无法扩容，帧被丢弃
	ErrOutOfMemory = fifo.ErrOutOfMemory

	// ErrWouldBlock 队列为空且调用方禁止向上游请求
	ErrWouldBlock = errors.New("buffersink: no frame available, try again later")

	// ErrInvalidState 上游声称成功却没有送达任何帧
	ErrInvalidState = errors.New("buffersink: upstream reported success but delivered no frame")

	// ErrEOF 上游已结束，不会再有帧到达。上游实现必须返回此错误（或包装它）表示流结束
	ErrEOF = errors.New("buffersink: end of stream")

	// ErrNotVideo 在音频 sink 上调用了仅视频可用的操作
	ErrNotVideo = errors.New("buffersink: operation requires a video sink")

	// ErrClosed sink 已关闭
	ErrClosed = errors.New("buffersink: sink is closed")

	// ErrNilLink 创建 sink 时未提供上游
	ErrNilLink = errors.New("buffersink: nil upstream link")
)

// IsEOF reports whether err marks the end of the stream.
func IsEOF(err error) bool {
	return errors.Is(err, ErrEOF)
}

// IsTemporary reports whether a Fetch error means "try again later" rather than "stop".
func IsTemporary(err error) bool {
	return errors.Is(err, ErrWouldBlock)
}
