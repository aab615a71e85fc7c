package audio

import (
	"bytes"
	"io"
	"testing"
)

// pcmFrames builds n frames where every sample has the given value.
func pcmFrames(n int, sample int16) []byte {
	buf := make([]byte, n*FrameSize)
	for i := 0; i+1 < len(buf); i += 2 {
		buf[i] = byte(uint16(sample))
		buf[i+1] = byte(uint16(sample) >> 8)
	}
	return buf
}

func sampleAt(buf []byte, i int) int16 {
	return int16(uint16(buf[2*i]) | uint16(buf[2*i+1])<<8)
}

func buffered(id string, frames int, sample int16) *Buffered {
	return &Buffered{TrackID: id, PCM: pcmFrames(frames, sample)}
}

func TestPipeGaplessBoundary(t *testing.T) {
	p := NewPipe(1)
	if err := p.Play(buffered("a", 2, 1000)); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if err := p.Enqueue(buffered("b", 2, 2000)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// One read spanning the boundary: two frames of a, one of b.
	out := make([]byte, 3*FrameSize)
	n, err := p.Read(out)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != len(out) {
		t.Fatalf("Read n = %d, want %d", n, len(out))
	}

	samples := n / BytesPerSample
	perFrame := FrameSize / BytesPerSample
	for i := 0; i < samples; i++ {
		want := int16(1000)
		if i >= 2*perFrame {
			want = 2000
		}
		if got := sampleAt(out, i); got != want {
			t.Fatalf("sample %d = %d, want %d (silence at the boundary?)", i, got, want)
		}
	}

	// The rest of b follows.
	n, err = p.Read(out)
	if err != nil {
		t.Fatalf("Read tail: %v", err)
	}
	if n != FrameSize {
		t.Fatalf("tail n = %d, want one frame", n)
	}
	if got := sampleAt(out, 0); got != 2000 {
		t.Fatalf("tail sample = %d, want 2000", got)
	}
}

func TestPipeSwapCutsOverImmediately(t *testing.T) {
	p := NewPipe(1)
	if err := p.Play(buffered("a", 10, 1000)); err != nil {
		t.Fatalf("Play: %v", err)
	}

	frame := make([]byte, FrameSize)
	if _, err := p.Read(frame); err != nil {
		t.Fatalf("Read: %v", err)
	}

	if err := p.Swap(buffered("b", 1, 2000)); err != nil {
		t.Fatalf("Swap: %v", err)
	}
	n, err := p.Read(frame)
	if err != nil {
		t.Fatalf("Read after swap: %v", err)
	}
	if n != FrameSize {
		t.Fatalf("n = %d, want a full frame", n)
	}
	for i := 0; i < n/BytesPerSample; i++ {
		if got := sampleAt(frame, i); got != 2000 {
			t.Fatalf("sample %d = %d after swap, want 2000", i, got)
		}
	}
	if cur := p.Current(); cur != nil {
		t.Fatalf("Current = %v after draining b, want nil", cur.TrackID)
	}
}

func TestPipeStarvingReadReturnsNothing(t *testing.T) {
	p := NewPipe(1)
	out := make([]byte, FrameSize)
	n, err := p.Read(out)
	if n != 0 || err != nil {
		t.Fatalf("Read on empty pipe = (%d, %v), want (0, nil)", n, err)
	}
}

func TestPipeStop(t *testing.T) {
	p := NewPipe(1)
	if err := p.Play(buffered("a", 4, 1000)); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	out := make([]byte, FrameSize)
	if _, err := p.Read(out); err != io.EOF {
		t.Fatalf("Read after Stop err = %v, want io.EOF", err)
	}
	if err := p.Swap(buffered("b", 1, 1)); err != ErrStopped {
		t.Fatalf("Swap after Stop err = %v, want ErrStopped", err)
	}

	// Play restarts the pipe.
	if err := p.Play(buffered("c", 1, 3000)); err != nil {
		t.Fatalf("Play after Stop: %v", err)
	}
	n, err := p.Read(out)
	if err != nil || n != FrameSize {
		t.Fatalf("Read after restart = (%d, %v)", n, err)
	}
}

func TestPipeVolumeGain(t *testing.T) {
	p := NewPipe(0.5)
	if err := p.Play(buffered("a", 1, 1000)); err != nil {
		t.Fatalf("Play: %v", err)
	}
	out := make([]byte, FrameSize)
	if _, err := p.Read(out); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got := sampleAt(out, 0); got != 500 {
		t.Fatalf("sample = %d at volume 0.5, want 500", got)
	}

	p.SetVolume(2) // clamped
	if v := p.Volume(); v != 1 {
		t.Fatalf("Volume = %v, want clamp to 1", v)
	}
}

func TestPipeReadFramePadsFinalPartial(t *testing.T) {
	p := NewPipe(1)
	track := &Buffered{TrackID: "a", PCM: pcmFrames(1, 1000)[:FrameSize/2]}
	if err := p.Play(track); err != nil {
		t.Fatalf("Play: %v", err)
	}
	frame := make([]byte, FrameSize)
	n, err := p.ReadFrame(frame)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if n != FrameSize {
		t.Fatalf("n = %d, want full padded frame", n)
	}
	if got := sampleAt(frame, 0); got != 1000 {
		t.Fatalf("head sample = %d, want 1000", got)
	}
	if got := sampleAt(frame, FrameSize/BytesPerSample-1); got != 0 {
		t.Fatalf("pad sample = %d, want 0", got)
	}
}

func TestNewBuffered(t *testing.T) {
	b, err := NewBuffered("t", "Title", "Artist", bytes.NewReader(pcmFrames(3, 7)))
	if err != nil {
		t.Fatalf("NewBuffered: %v", err)
	}
	if b.Frames() != 3 {
		t.Fatalf("Frames = %d, want 3", b.Frames())
	}
	if b.Duration() != 3*FrameDuration {
		t.Fatalf("Duration = %v, want %v", b.Duration(), 3*FrameDuration)
	}

	if _, err := NewBuffered("t", "", "", bytes.NewReader(nil)); err != ErrEmptyTrack {
		t.Fatalf("empty reader err = %v, want ErrEmptyTrack", err)
	}
}
