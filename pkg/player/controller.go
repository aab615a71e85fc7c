package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vexolabs/vexo/pkg/audio"
	"github.com/vexolabs/vexo/pkg/discover"
)

// RoundSource produces the scored candidate set for one selection round.
// Round scores the regular pool; FallbackRound scores the fallback
// playlist only. Both return the composite-vector debug string carried
// into the trace.
type RoundSource interface {
	Round(ctx context.Context) (composite string, scored []discover.ScoredCandidate, err error)
	FallbackRound(ctx context.Context) (composite string, scored []discover.ScoredCandidate, err error)
}

// errSuperseded marks a round whose result arrived after a newer round
// had already been started.
var errSuperseded = errors.New("player: round superseded")

// playing bundles a chosen track with its buffered audio.
type playing struct {
	choice   Choice
	buf      *audio.Buffered
	duration time.Duration
}

// Controller is the gapless playback state machine.
//
// It moves through Idle -> Playing -> Prefetching -> Buffered ->
// Swapping -> Playing. Entering Playing arms a timer that fires when
// remaining playtime reaches the prefetch threshold; the timer runs one
// selection round, resolves and fully buffers the winner, and parks it
// for a zero-silence swap at track end.
//
// At most one round is active per controller. Starting a new round
// (skip, stop, restart) bumps a generation counter; a stale round's
// result is discarded when it lands, and its in-flight resolution is
// cancelled through its context. No sink call is ever made on behalf of
// a cancelled round.
type Controller struct {
	cfg      Config
	resolver Resolver
	sink     AudioSink
	source   RoundSource
	selector *discover.Selector

	// OnPlay, when set, is invoked without the controller lock each
	// time a new track starts playing.
	OnPlay func(Choice)

	runCtx  context.Context
	runStop context.CancelFunc

	mu          sync.Mutex
	state       State
	current     *playing
	next        *playing
	gen         uint64
	timer       *time.Timer
	cancelRound context.CancelFunc
	lastTrace   *discover.Trace
}

// NewController creates a controller wired to its collaborators.
func NewController(resolver Resolver, sink AudioSink, source RoundSource, selector *discover.Selector, cfg Config) *Controller {
	cfg.setDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		cfg:      cfg,
		resolver: resolver,
		sink:     sink,
		source:   source,
		selector: selector,
		runCtx:   ctx,
		runStop:  cancel,
	}
}

// Start runs a selection round and begins playback. Only valid from
// Idle.
func (c *Controller) Start(ctx context.Context) (Choice, error) {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return Choice{}, ErrAlreadyPlaying
	}
	gen := c.bumpRoundLocked()
	c.mu.Unlock()

	p, err := c.runRound(ctx)
	if err != nil {
		return Choice{}, err
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return Choice{}, errSuperseded
	}
	if err := c.sink.Play(p.buf); err != nil {
		c.mu.Unlock()
		return Choice{}, fmt.Errorf("player: sink play: %w", err)
	}
	c.beginPlayingLocked(p)
	c.mu.Unlock()

	c.notifyPlay(p.choice)
	return p.choice, nil
}

// TrackEnd advances to the next track. With a buffered track parked it
// swaps instantly; otherwise it runs a synchronous round first. On a
// stall the controller stays in Playing with the finished track still
// current, and the error is surfaced to the caller.
func (c *Controller) TrackEnd(ctx context.Context) (Choice, error) {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return Choice{}, ErrNotPlaying
	}
	gen := c.bumpRoundLocked()
	if c.next != nil {
		p := c.next
		choice, err := c.swapLocked(p)
		c.mu.Unlock()
		if err == nil {
			c.notifyPlay(choice)
		}
		return choice, err
	}
	c.mu.Unlock()

	return c.roundAndSwap(ctx, gen)
}

// Skip abandons the current track. An in-flight prefetch resolution is
// cancelled before anything else happens; a parked buffered track swaps
// in immediately, otherwise a fresh round runs. If the fresh round
// stalls the current track keeps playing.
func (c *Controller) Skip(ctx context.Context) (Choice, error) {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return Choice{}, ErrNotPlaying
	}
	gen := c.bumpRoundLocked()
	if c.next != nil {
		p := c.next
		choice, err := c.swapLocked(p)
		c.mu.Unlock()
		if err == nil {
			c.notifyPlay(choice)
		}
		return choice, err
	}
	c.state = StatePrefetching
	c.mu.Unlock()

	return c.roundAndSwap(ctx, gen)
}

// Stop halts playback and returns the controller to Idle. The session
// remains usable; Start plays again.
func (c *Controller) Stop() error {
	c.mu.Lock()
	c.bumpRoundLocked()
	c.state = StateIdle
	c.current = nil
	c.next = nil
	c.mu.Unlock()
	return c.sink.Stop()
}

// Close stops playback and releases the controller's run context.
func (c *Controller) Close() error {
	c.runStop()
	return c.Stop()
}

// State returns the current playback state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// NowPlaying returns the currently playing choice, if any.
func (c *Controller) NowPlaying() (Choice, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return Choice{}, false
	}
	return c.current.choice, true
}

// HasNext reports whether a buffered next track is parked.
func (c *Controller) HasNext() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next != nil
}

// LastTrace returns the trace of the most recent successful selection.
func (c *Controller) LastTrace() (discover.Trace, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastTrace == nil {
		return discover.Trace{}, false
	}
	return *c.lastTrace, true
}

// roundAndSwap runs a synchronous round and swaps its winner in, unless
// a newer round superseded gen meanwhile.
func (c *Controller) roundAndSwap(ctx context.Context, gen uint64) (Choice, error) {
	p, err := c.runRound(ctx)

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return Choice{}, errSuperseded
	}
	if err != nil {
		if c.current != nil {
			c.state = StatePlaying
		}
		c.mu.Unlock()
		return Choice{}, err
	}
	choice, serr := c.swapLocked(p)
	c.mu.Unlock()
	if serr == nil {
		c.notifyPlay(choice)
	}
	return choice, serr
}

// bumpRoundLocked invalidates any active round: the generation counter
// advances, the in-flight resolution (if any) is cancelled, and the
// prefetch timer is disarmed. Returns the new generation.
func (c *Controller) bumpRoundLocked() uint64 {
	c.gen++
	if c.cancelRound != nil {
		c.cancelRound()
		c.cancelRound = nil
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	return c.gen
}

// beginPlayingLocked installs p as the current track and arms the
// prefetch timer.
func (c *Controller) beginPlayingLocked(p *playing) {
	c.current = p
	c.next = nil
	c.state = StatePlaying
	trace := p.choice.Trace
	c.lastTrace = &trace
	c.armPrefetchLocked()
}

// swapLocked hands p to the sink as an atomic swap and makes it current.
func (c *Controller) swapLocked(p *playing) (Choice, error) {
	c.state = StateSwapping
	if err := c.sink.Swap(p.buf); err != nil {
		c.state = StatePlaying
		return Choice{}, fmt.Errorf("player: sink swap: %w", err)
	}
	c.beginPlayingLocked(p)
	return p.choice, nil
}

// armPrefetchLocked schedules the prefetch round to fire when remaining
// playtime reaches the threshold.
func (c *Controller) armPrefetchLocked() {
	delay := c.current.duration - c.cfg.PrefetchThreshold
	if delay < 0 {
		delay = 0
	}
	gen := c.gen
	c.timer = time.AfterFunc(delay, func() { c.prefetch(gen) })
}

// prefetch runs the background round armed by the timer. The result is
// parked as the buffered next track unless the round was superseded.
func (c *Controller) prefetch(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.state != StatePlaying {
		c.mu.Unlock()
		return
	}
	c.state = StatePrefetching
	ctx, cancel := context.WithCancel(c.runCtx)
	c.cancelRound = cancel
	c.mu.Unlock()

	p, err := c.runRound(ctx)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.cancelRound = nil
	if err != nil {
		slog.Warn("player: prefetch round failed", "err", err)
		c.state = StatePlaying
		return
	}
	c.next = p
	c.state = StateBuffered
}

// runRound runs one full selection round: score the pool, pick, resolve
// and buffer, re-picking from the remaining scored set after each
// resolution failure. If the whole round fails, one more round runs
// against the fallback playlist before the stall is reported.
func (c *Controller) runRound(ctx context.Context) (*playing, error) {
	comp, scored, err := c.source.Round(ctx)
	if err == nil {
		var p *playing
		if p, err = c.resolveFrom(ctx, comp, scored); err == nil {
			return p, nil
		}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	slog.Info("player: round failed, trying fallback playlist", "err", err)

	comp, scored, ferr := c.source.FallbackRound(ctx)
	if ferr == nil {
		var p *playing
		if p, ferr = c.resolveFrom(ctx, comp, scored); ferr == nil {
			return p, nil
		}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if errors.Is(err, discover.ErrNoCandidates) && errors.Is(ferr, discover.ErrNoCandidates) {
		return nil, fmt.Errorf("player: %w", discover.ErrNoCandidates)
	}
	return nil, fmt.Errorf("%w: %v (fallback: %v)", ErrPlaybackStalled, err, ferr)
}

// resolveFrom picks from scored and resolves the winner, discarding a
// failed candidate and re-picking from what remains. Scores carry over
// between attempts; nothing is re-scored.
func (c *Controller) resolveFrom(ctx context.Context, comp string, scored []discover.ScoredCandidate) (*playing, error) {
	attempts := c.cfg.ResolveRetries + 1
	var lastErr error
	for i := 0; i < attempts && len(scored) > 0; i++ {
		pick, trace, err := c.selector.Pick(comp, scored)
		if err != nil {
			return nil, err
		}
		buf, dur, err := c.resolve(ctx, pick)
		if err == nil {
			return &playing{
				choice:   Choice{Track: pick, Trace: trace},
				buf:      buf,
				duration: dur,
			}, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, err
		}
		slog.Warn("player: resolution failed, re-picking", "track", pick.TrackID, "err", err)
		scored = discover.Without(scored, pick.TrackID)
	}
	if lastErr == nil {
		return nil, fmt.Errorf("player: selection: %w", discover.ErrNoCandidates)
	}
	return nil, lastErr
}

// resolve fetches and fully buffers one track under the resolve timeout.
func (c *Controller) resolve(ctx context.Context, pick discover.ScoredCandidate) (*audio.Buffered, time.Duration, error) {
	rctx, cancel := context.WithTimeout(ctx, c.cfg.ResolveTimeout)
	defer cancel()

	stream, err := c.resolver.Resolve(rctx, pick.TrackID)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s: %v", ErrResolution, pick.TrackID, err)
	}
	defer stream.Source.Close()

	title, artist := stream.Title, stream.Artist
	if title == "" {
		title = pick.Title
	}
	if artist == "" {
		artist = pick.Artist
	}
	buf, err := audio.NewBuffered(stream.TrackID, title, artist, stream.Source)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: buffer %s: %v", ErrResolution, pick.TrackID, err)
	}
	dur := stream.Duration
	if dur <= 0 {
		dur = buf.Duration()
	}
	return buf, dur, nil
}

func (c *Controller) notifyPlay(choice Choice) {
	if c.OnPlay != nil {
		c.OnPlay(choice)
	}
}
