package audio

import (
	"errors"
	"io"
	"sync"
	"time"
)

// ErrStopped is returned by pipe operations after Stop.
var ErrStopped = errors.New("audio: pipe stopped")

// segment is a queued track plus its read offset.
type segment struct {
	track *Buffered
	off   int
}

func (s *segment) remaining() int { return len(s.track.PCM) - s.off }

// Pipe is the in-process playback sink. Tracks enter whole via Play and
// Swap; PCM leaves frame by frame via Read. Reads drain queued segments
// in order, moving to the next segment inside the same call when the
// current one runs out, so a track boundary never produces a zero gap.
//
// Swap atomically replaces the segment at the head of the queue: at a
// natural track end the head is already drained and the replacement is
// seamless; on a skip the head's unread remainder is discarded and the
// next track starts on the following Read.
type Pipe struct {
	gain atomicFloat32

	mu      sync.Mutex
	segs    []*segment
	stopped bool
}

// NewPipe creates a pipe with the given playback volume in [0, 1].
func NewPipe(volume float64) *Pipe {
	p := &Pipe{}
	p.SetVolume(volume)
	return p
}

// SetVolume sets the linear gain applied to samples on the way out.
// Values are clamped to [0, 1].
func (p *Pipe) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	p.gain.Store(float32(v))
}

// Volume returns the current playback volume.
func (p *Pipe) Volume() float64 {
	return float64(p.gain.Load())
}

// Play starts playback of a buffered track, discarding anything queued.
func (p *Pipe) Play(b *Buffered) error {
	if b == nil || len(b.PCM) == 0 {
		return ErrEmptyTrack
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.segs = []*segment{{track: b}}
	p.stopped = false
	return nil
}

// Swap replaces the currently playing track with next. Anything unread
// from the current track is dropped; tracks queued behind it stay.
func (p *Pipe) Swap(next *Buffered) error {
	if next == nil || len(next.PCM) == 0 {
		return ErrEmptyTrack
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrStopped
	}
	if len(p.segs) == 0 {
		p.segs = []*segment{{track: next}}
		return nil
	}
	p.segs[0] = &segment{track: next}
	return nil
}

// Enqueue queues next behind everything already queued. When the track
// ahead of it drains, a Read rolls into next within the same call, like
// sequential inputs on a mixer track.
func (p *Pipe) Enqueue(next *Buffered) error {
	if next == nil || len(next.PCM) == 0 {
		return ErrEmptyTrack
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrStopped
	}
	p.segs = append(p.segs, &segment{track: next})
	return nil
}

// Stop halts playback and drops all queued audio. Subsequent reads
// return io.EOF; Play starts the pipe again.
func (p *Pipe) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.segs = nil
	p.stopped = true
	return nil
}

// Current returns the track at the head of the queue, or nil.
func (p *Pipe) Current() *Buffered {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.segs) == 0 {
		return nil
	}
	return p.segs[0].track
}

// Remaining returns the unplayed duration of the head track.
func (p *Pipe) Remaining() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.segs) == 0 {
		return 0
	}
	samples := p.segs[0].remaining() / BytesPerSample
	return time.Duration(samples) * time.Second / SampleRate
}

// Read fills p with gain-adjusted PCM, draining queued tracks in order.
// When the head track runs out mid-read the fill continues from the next
// track with no padding in between. An empty queue reads (0, nil): the
// pipe is starving, not finished. After Stop it reads (0, io.EOF).
func (p *Pipe) Read(out []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return 0, io.EOF
	}

	n := 0
	for n < len(out) && len(p.segs) > 0 {
		head := p.segs[0]
		c := copy(out[n:], head.track.PCM[head.off:])
		head.off += c
		n += c
		if head.remaining() == 0 {
			p.segs = p.segs[1:]
		}
	}

	applyGain(out[:n], p.gain.Load())
	return n, nil
}

// ReadFrame reads exactly one frame. A partial tail shorter than a frame
// is zero-padded; an empty queue yields (0, nil).
func (p *Pipe) ReadFrame(frame []byte) (int, error) {
	if len(frame) != FrameSize {
		frame = frame[:FrameSize]
	}
	n, err := p.Read(frame)
	if err != nil || n == 0 {
		return n, err
	}
	for i := n; i < len(frame); i++ {
		frame[i] = 0
	}
	return len(frame), nil
}

// applyGain scales signed 16-bit little-endian samples in place,
// clipping at the int16 range.
func applyGain(buf []byte, gain float32) {
	if gain == 1 || len(buf) < 2 {
		return
	}
	for i := 0; i+1 < len(buf); i += 2 {
		s := int16(uint16(buf[i]) | uint16(buf[i+1])<<8)
		v := float32(s) * gain
		if v > 32767 {
			v = 32767
		}
		if v < -32768 {
			v = -32768
		}
		s = int16(v)
		buf[i] = byte(uint16(s))
		buf[i+1] = byte(uint16(s) >> 8)
	}
}
