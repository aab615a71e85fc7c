// Package player runs per-guild playback sessions: a state-machine
// controller that keeps audio flowing gaplessly, a Session tying the
// controller to the discovery pipeline and vote ledger, and a Host
// managing one Session per guild.
package player

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/vexolabs/vexo/pkg/audio"
	"github.com/vexolabs/vexo/pkg/discover"
)

var (
	// ErrResolution marks a failed or timed-out track resolution.
	ErrResolution = errors.New("player: track resolution failed")

	// ErrPlaybackStalled is returned when every candidate in the round
	// and the fallback round failed to resolve. The session stays alive.
	ErrPlaybackStalled = errors.New("player: playback stalled")

	// ErrNotPlaying is returned by Skip when the session is idle.
	ErrNotPlaying = errors.New("player: nothing is playing")

	// ErrAlreadyPlaying is returned by Start when the session is not idle.
	ErrAlreadyPlaying = errors.New("player: session already playing")
)

// Stream is a resolved, readable track. Source delivers raw PCM in the
// audio package's output format and is fully drained (and closed) by the
// controller before playback starts.
type Stream struct {
	TrackID  string
	Title    string
	Artist   string
	Duration time.Duration
	Source   io.ReadCloser
}

// Resolver turns a track id into a playable stream. Implementations are
// external collaborators: network fetchers, local file readers, test
// fakes. The controller applies its own timeout to each call and treats
// every error the same way.
type Resolver interface {
	Resolve(ctx context.Context, trackID string) (*Stream, error)
}

// AudioSink receives fully buffered tracks. Play starts fresh playback,
// Swap atomically replaces the playing track without inserting silence,
// Stop halts output. audio.Pipe is the in-process implementation.
type AudioSink interface {
	Play(*audio.Buffered) error
	Swap(*audio.Buffered) error
	Stop() error
}

// State is the controller's playback state.
type State int32

const (
	StateIdle State = iota
	StatePlaying
	StatePrefetching
	StateBuffered
	StateSwapping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePrefetching:
		return "prefetching"
	case StateBuffered:
		return "buffered"
	case StateSwapping:
		return "swapping"
	}
	return "unknown"
}

// Choice is a chosen track plus the reasoning trace behind it.
type Choice struct {
	Track discover.ScoredCandidate
	Trace discover.Trace
}

// Config holds controller timing knobs.
type Config struct {
	// PrefetchThreshold is how much remaining playtime triggers the
	// prefetch of the next track.
	PrefetchThreshold time.Duration

	// ResolveTimeout bounds each individual Resolve call.
	ResolveTimeout time.Duration

	// ResolveRetries is how many additional candidates are tried after
	// the first resolution failure, before the fallback round.
	ResolveRetries int
}

func (c *Config) setDefaults() {
	if c.PrefetchThreshold <= 0 {
		c.PrefetchThreshold = 15 * time.Second
	}
	if c.ResolveTimeout <= 0 {
		c.ResolveTimeout = 10 * time.Second
	}
	if c.ResolveRetries <= 0 {
		c.ResolveRetries = 3
	}
}
