package player

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/vexolabs/vexo/pkg/audio"
	"github.com/vexolabs/vexo/pkg/discover"
)

// fakeResolver serves canned PCM, with per-track failure injection.
type fakeResolver struct {
	mu       sync.Mutex
	calls    []string
	fail     map[string]bool          // always fail
	failOnce map[string]int           // fail the first n calls
	slow     map[string]bool          // block until ctx is done
	started  chan string              // receives track ids as calls begin
	dur      time.Duration            // reported stream duration
	durs     map[string]time.Duration // per-track overrides
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		fail:     make(map[string]bool),
		failOnce: make(map[string]int),
		slow:     make(map[string]bool),
		durs:     make(map[string]time.Duration),
		dur:      time.Hour,
	}
}

func (r *fakeResolver) Resolve(ctx context.Context, trackID string) (*Stream, error) {
	r.mu.Lock()
	r.calls = append(r.calls, trackID)
	slow := r.slow[trackID]
	fail := r.fail[trackID]
	if n := r.failOnce[trackID]; n > 0 {
		r.failOnce[trackID] = n - 1
		fail = true
	}
	started := r.started
	r.mu.Unlock()

	if started != nil {
		started <- trackID
	}
	if slow {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if fail {
		return nil, fmt.Errorf("no source for %s", trackID)
	}
	dur := r.dur
	r.mu.Lock()
	if d, ok := r.durs[trackID]; ok {
		dur = d
	}
	r.mu.Unlock()
	return &Stream{
		TrackID:  trackID,
		Title:    "Title " + trackID,
		Duration: dur,
		Source:   io.NopCloser(bytes.NewReader(make([]byte, 2*audio.FrameSize))),
	}, nil
}

func (r *fakeResolver) callLog() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// fakeSink records every operation in order.
type fakeSink struct {
	mu    sync.Mutex
	plays []string
	swaps []string
	stops int
}

func (s *fakeSink) Play(b *audio.Buffered) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plays = append(s.plays, b.TrackID)
	return nil
}

func (s *fakeSink) Swap(b *audio.Buffered) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.swaps = append(s.swaps, b.TrackID)
	return nil
}

func (s *fakeSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	return nil
}

func (s *fakeSink) log() (plays, swaps []string, stops int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.plays...), append([]string(nil), s.swaps...), s.stops
}

// fakeSource serves a fixed scored set per round.
type fakeSource struct {
	mu       sync.Mutex
	sets     [][]discover.ScoredCandidate // consumed per Round call; last repeats
	fallback []discover.ScoredCandidate
	rounds   int
}

func (f *fakeSource) Round(context.Context) (string, []discover.ScoredCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rounds++
	if len(f.sets) == 0 {
		return "", nil, nil
	}
	set := f.sets[0]
	if len(f.sets) > 1 {
		f.sets = f.sets[1:]
	}
	return "composite", cloneScored(set), nil
}

func (f *fakeSource) FallbackRound(context.Context) (string, []discover.ScoredCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return "composite", cloneScored(f.fallback), nil
}

func cloneScored(in []discover.ScoredCandidate) []discover.ScoredCandidate {
	return append([]discover.ScoredCandidate(nil), in...)
}

// scoredSet builds a descending scored set over the given track ids.
func scoredSet(ids ...string) []discover.ScoredCandidate {
	out := make([]discover.ScoredCandidate, len(ids))
	for i, id := range ids {
		out[i] = discover.ScoredCandidate{
			Candidate: discover.Candidate{TrackID: id, Title: "Title " + id, Source: discover.SourceHistory},
			Score:     1 - float64(i)*0.1,
			Rank:      i + 1,
		}
	}
	return out
}

func greedySelector() *discover.Selector {
	return discover.NewSelector(0, 5, rand.New(rand.NewSource(42)))
}

func newTestController(t *testing.T, resolver *fakeResolver, sink *fakeSink, source *fakeSource, cfg Config) *Controller {
	t.Helper()
	c := NewController(resolver, sink, source, greedySelector(), cfg)
	t.Cleanup(func() { c.Close() })
	return c
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestControllerStartPlaysTopPick(t *testing.T) {
	resolver := newFakeResolver()
	sink := &fakeSink{}
	source := &fakeSource{sets: [][]discover.ScoredCandidate{scoredSet("a", "b")}}
	c := newTestController(t, resolver, sink, source, Config{})

	var played []string
	c.OnPlay = func(ch Choice) { played = append(played, ch.Track.TrackID) }

	choice, err := c.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if choice.Track.TrackID != "a" {
		t.Fatalf("chose %s, want a (greedy top)", choice.Track.TrackID)
	}
	if got := c.State(); got != StatePlaying {
		t.Fatalf("state = %s, want playing", got)
	}
	plays, _, _ := sink.log()
	if len(plays) != 1 || plays[0] != "a" {
		t.Fatalf("sink plays = %v, want [a]", plays)
	}
	if len(played) != 1 || played[0] != "a" {
		t.Fatalf("OnPlay log = %v, want [a]", played)
	}
	if len(choice.Trace.Top) == 0 {
		t.Fatal("choice carries no trace")
	}

	if _, err := c.Start(context.Background()); err != ErrAlreadyPlaying {
		t.Fatalf("second Start err = %v, want ErrAlreadyPlaying", err)
	}
}

func TestControllerRetriesThenSucceeds(t *testing.T) {
	resolver := newFakeResolver()
	resolver.fail["a"] = true
	resolver.fail["b"] = true
	sink := &fakeSink{}
	source := &fakeSource{sets: [][]discover.ScoredCandidate{scoredSet("a", "b", "c")}}
	c := newTestController(t, resolver, sink, source, Config{ResolveRetries: 3})

	choice, err := c.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if choice.Track.TrackID != "c" {
		t.Fatalf("chose %s after failures, want c", choice.Track.TrackID)
	}
	calls := resolver.callLog()
	want := []string{"a", "b", "c"}
	if len(calls) != len(want) {
		t.Fatalf("resolver calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("resolver calls = %v, want %v", calls, want)
		}
	}
	// Score carried through re-picks, never re-scored.
	if choice.Track.Score != 0.8 {
		t.Fatalf("score = %v, want 0.8 preserved from the original round", choice.Track.Score)
	}
}

func TestControllerFallsBackBeforeStalling(t *testing.T) {
	resolver := newFakeResolver()
	resolver.fail["a"] = true
	sink := &fakeSink{}
	source := &fakeSource{
		sets:     [][]discover.ScoredCandidate{scoredSet("a")},
		fallback: scoredSet("fb"),
	}
	c := newTestController(t, resolver, sink, source, Config{ResolveRetries: 2})

	choice, err := c.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if choice.Track.TrackID != "fb" {
		t.Fatalf("chose %s, want fallback fb", choice.Track.TrackID)
	}
}

func TestControllerStallsAfterFallbackExhausted(t *testing.T) {
	resolver := newFakeResolver()
	resolver.fail["a"] = true
	resolver.fail["fb"] = true
	sink := &fakeSink{}
	source := &fakeSource{
		sets:     [][]discover.ScoredCandidate{scoredSet("a")},
		fallback: scoredSet("fb"),
	}
	c := newTestController(t, resolver, sink, source, Config{ResolveRetries: 2})

	_, err := c.Start(context.Background())
	if !errors.Is(err, ErrPlaybackStalled) {
		t.Fatalf("err = %v, want ErrPlaybackStalled", err)
	}
	if got := c.State(); got != StateIdle {
		t.Fatalf("state = %s after stall from idle, want idle", got)
	}
	plays, swaps, _ := sink.log()
	if len(plays) != 0 || len(swaps) != 0 {
		t.Fatalf("sink touched during stall: plays=%v swaps=%v", plays, swaps)
	}

	// The session survives a stall: a later Start succeeds.
	resolver.mu.Lock()
	resolver.fail["a"] = false
	resolver.mu.Unlock()
	if _, err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start after stall: %v", err)
	}
}

func TestControllerPrefetchThenGaplessSwap(t *testing.T) {
	resolver := newFakeResolver()
	sink := &fakeSink{}
	source := &fakeSource{sets: [][]discover.ScoredCandidate{
		scoredSet("first"),
		scoredSet("second"),
	}}
	// first ends inside the threshold so its prefetch fires immediately;
	// second reports an hour left so no further round starts.
	resolver.durs["first"] = 10 * time.Second
	c := newTestController(t, resolver, sink, source, Config{PrefetchThreshold: 15 * time.Second})

	if _, err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, c.HasNext, "prefetched next track")
	if got := c.State(); got != StateBuffered {
		t.Fatalf("state = %s with next parked, want buffered", got)
	}

	choice, err := c.TrackEnd(context.Background())
	if err != nil {
		t.Fatalf("TrackEnd: %v", err)
	}
	if choice.Track.TrackID != "second" {
		t.Fatalf("swapped to %s, want second", choice.Track.TrackID)
	}
	_, swaps, _ := sink.log()
	if len(swaps) != 1 || swaps[0] != "second" {
		t.Fatalf("sink swaps = %v, want [second]", swaps)
	}
	if got := c.State(); got != StatePlaying {
		t.Fatalf("state = %s after swap, want playing", got)
	}
	if c.HasNext() {
		t.Fatal("buffered slot not cleared after swap")
	}
}

func TestControllerTrackEndWithoutBufferedRunsRound(t *testing.T) {
	resolver := newFakeResolver()
	sink := &fakeSink{}
	source := &fakeSource{sets: [][]discover.ScoredCandidate{
		scoredSet("first"),
		scoredSet("second"),
	}}
	// Long duration, default threshold: the prefetch timer stays far out.
	c := newTestController(t, resolver, sink, source, Config{})

	if _, err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	choice, err := c.TrackEnd(context.Background())
	if err != nil {
		t.Fatalf("TrackEnd: %v", err)
	}
	if choice.Track.TrackID != "second" {
		t.Fatalf("advanced to %s, want second", choice.Track.TrackID)
	}
}

func TestControllerSkipCancelsInflightResolution(t *testing.T) {
	resolver := newFakeResolver()
	resolver.started = make(chan string, 4)
	resolver.slow["slowtrack"] = true
	sink := &fakeSink{}
	source := &fakeSource{sets: [][]discover.ScoredCandidate{
		scoredSet("first"),
		scoredSet("slowtrack", "quick"),
		scoredSet("quick"),
	}}
	resolver.durs["first"] = 10 * time.Second // prefetch fires immediately
	c := newTestController(t, resolver, sink, source, Config{
		PrefetchThreshold: 15 * time.Second,
		ResolveTimeout:    time.Minute,
	})

	if _, err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := <-resolver.started; got != "first" {
		t.Fatalf("first resolution = %s, want first", got)
	}
	// The prefetch round is now blocked resolving slowtrack.
	if got := <-resolver.started; got != "slowtrack" {
		t.Fatalf("prefetch resolution = %s, want slowtrack", got)
	}

	choice, err := c.Skip(context.Background())
	if err != nil {
		t.Fatalf("Skip: %v", err)
	}
	if choice.Track.TrackID != "quick" {
		t.Fatalf("skip chose %s, want quick", choice.Track.TrackID)
	}

	// The cancelled prefetch must never reach the sink.
	plays, swaps, _ := sink.log()
	if len(plays) != 1 || plays[0] != "first" {
		t.Fatalf("sink plays = %v, want [first]", plays)
	}
	for _, id := range swaps {
		if id == "slowtrack" {
			t.Fatalf("cancelled resolution reached the sink: swaps=%v", swaps)
		}
	}
	if len(swaps) != 1 || swaps[0] != "quick" {
		t.Fatalf("sink swaps = %v, want [quick]", swaps)
	}
}

func TestControllerSkipUsesBufferedNext(t *testing.T) {
	resolver := newFakeResolver()
	sink := &fakeSink{}
	source := &fakeSource{sets: [][]discover.ScoredCandidate{
		scoredSet("first"),
		scoredSet("second"),
	}}
	resolver.durs["first"] = 10 * time.Second
	c := newTestController(t, resolver, sink, source, Config{PrefetchThreshold: 15 * time.Second})

	if _, err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, c.HasNext, "prefetched next track")

	choice, err := c.Skip(context.Background())
	if err != nil {
		t.Fatalf("Skip: %v", err)
	}
	if choice.Track.TrackID != "second" {
		t.Fatalf("skip swapped to %s, want buffered second", choice.Track.TrackID)
	}
	if got := source.rounds; got != 2 {
		t.Fatalf("rounds = %d, want 2 (skip reused the buffered track)", got)
	}
}

func TestControllerSkipWhenIdle(t *testing.T) {
	c := newTestController(t, newFakeResolver(), &fakeSink{}, &fakeSource{}, Config{})
	if _, err := c.Skip(context.Background()); err != ErrNotPlaying {
		t.Fatalf("Skip err = %v, want ErrNotPlaying", err)
	}
	if _, err := c.TrackEnd(context.Background()); err != ErrNotPlaying {
		t.Fatalf("TrackEnd err = %v, want ErrNotPlaying", err)
	}
}

func TestControllerStopReturnsToIdle(t *testing.T) {
	resolver := newFakeResolver()
	sink := &fakeSink{}
	source := &fakeSource{sets: [][]discover.ScoredCandidate{scoredSet("a")}}
	c := newTestController(t, resolver, sink, source, Config{})

	if _, err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := c.State(); got != StateIdle {
		t.Fatalf("state = %s, want idle", got)
	}
	if _, ok := c.NowPlaying(); ok {
		t.Fatal("NowPlaying still set after Stop")
	}
	_, _, stops := sink.log()
	if stops != 1 {
		t.Fatalf("sink stops = %d, want 1", stops)
	}

	// Stopped, not dead: playback can start again.
	if _, err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start after Stop: %v", err)
	}
}
