// Package audio provides the in-process PCM playback pipe.
//
// The pipe is a pull-based frame source: buffered tracks are handed to it
// whole, and a device loop (or a test) reads signed 16-bit mono frames
// out of it. Reads drain tracks strictly in order and cross a track
// boundary inside a single call, so no silence is ever inserted between
// the last frame of one track and the first frame of the next.
package audio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sync/atomic"
	"time"
)

// Output format: signed 16-bit little-endian mono at 48kHz, 20ms frames.
const (
	SampleRate     = 48000
	BytesPerSample = 2
	FrameDuration  = 20 * time.Millisecond
	FrameSize      = SampleRate / int(time.Second/FrameDuration) * BytesPerSample
)

// ErrEmptyTrack is returned when a buffered track carries no audio.
var ErrEmptyTrack = errors.New("audio: buffered track has no data")

// Buffered is a fully resolved, fully downloaded track ready for
// playback. Once constructed it is immutable; the pipe copies out of PCM
// and never mutates it.
type Buffered struct {
	TrackID string
	Title   string
	Artist  string
	PCM     []byte
}

// NewBuffered drains r completely into a Buffered track.
func NewBuffered(trackID, title, artist string, r io.Reader) (*Buffered, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("audio: buffer %s: %w", trackID, err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyTrack
	}
	return &Buffered{TrackID: trackID, Title: title, Artist: artist, PCM: data}, nil
}

// Duration returns the playback duration of the buffered audio.
func (b *Buffered) Duration() time.Duration {
	samples := len(b.PCM) / BytesPerSample
	return time.Duration(samples) * time.Second / SampleRate
}

// Frames returns the number of whole frames in the buffered audio.
func (b *Buffered) Frames() int {
	return len(b.PCM) / FrameSize
}

// atomicFloat32 bit-casts a float32 over an atomic uint32.
type atomicFloat32 struct {
	bits uint32
}

func (af *atomicFloat32) Load() float32 {
	return math.Float32frombits(atomic.LoadUint32(&af.bits))
}

func (af *atomicFloat32) Store(val float32) {
	atomic.StoreUint32(&af.bits, math.Float32bits(val))
}
