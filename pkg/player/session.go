package player

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/vexolabs/vexo/pkg/discover"
	"github.com/vexolabs/vexo/pkg/taste"
)

// Session is one guild's playback actor. It owns the listener set, the
// triggering-listener override, and a Controller; the taste store,
// ledger, and candidate pool are shared across sessions.
//
// The triggering listener is whoever invoked the last selection or
// skip. Their taste vector gets the boosted weight in the composite for
// subsequent rounds. The override lives only in session memory.
type Session struct {
	guildID string
	store   *taste.Store
	ledger  *taste.Ledger
	pool    *discover.Pool
	ctrl    *Controller

	// votes tracks in-flight vote recordings so a selection round can
	// wait for votes that were cast before it started.
	votes sync.WaitGroup

	mu        sync.Mutex
	listeners []string
	trigger   string
}

// NewSession creates a session for one guild.
func NewSession(guildID string, store *taste.Store, ledger *taste.Ledger, pool *discover.Pool, selector *discover.Selector, resolver Resolver, sink AudioSink, cfg Config) *Session {
	s := &Session{
		guildID: guildID,
		store:   store,
		ledger:  ledger,
		pool:    pool,
	}
	s.ctrl = NewController(resolver, sink, s, selector, cfg)
	s.ctrl.OnPlay = s.onPlay
	return s
}

// Guild returns the session's guild id.
func (s *Session) Guild() string { return s.guildID }

// SetListeners replaces the session's listener set.
func (s *Session) SetListeners(ids []string) {
	ids = slices.Clone(ids)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = ids
}

// Listeners returns the current listener set.
func (s *Session) Listeners() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.listeners)
}

// SelectNext picks and plays the next track on behalf of the given
// listener. From idle it starts playback; during playback it behaves as
// a skip to a freshly selected track.
func (s *Session) SelectNext(ctx context.Context, triggeringListener string) (Choice, error) {
	s.setTrigger(triggeringListener)
	if s.ctrl.State() == StateIdle {
		return s.ctrl.Start(ctx)
	}
	return s.ctrl.Skip(ctx)
}

// RecordVote records one listener's reaction to a track and nudges
// their taste vector. Replaying the same vote is a no-op.
func (s *Session) RecordVote(ctx context.Context, listenerID, trackID string, kind taste.VoteKind) error {
	s.votes.Add(1)
	defer s.votes.Done()

	ev := taste.NewVoteEvent(listenerID, trackID, kind)
	if err := s.ledger.Record(ctx, ev); err != nil {
		return fmt.Errorf("player: record vote: %w", err)
	}
	return nil
}

// Skip abandons the current track. When a listener is named they become
// the triggering listener and an implicit skip vote is recorded against
// the track they skipped.
func (s *Session) Skip(ctx context.Context, listenerID string) (Choice, error) {
	if listenerID != "" {
		s.setTrigger(listenerID)
		if now, ok := s.ctrl.NowPlaying(); ok {
			if err := s.RecordVote(ctx, listenerID, now.Track.TrackID, taste.VoteSkip); err != nil {
				slog.Warn("player: skip vote not recorded", "guild", s.guildID, "err", err)
			}
		}
	}
	return s.ctrl.Skip(ctx)
}

// TrackEnd advances the session when the current track finishes.
func (s *Session) TrackEnd(ctx context.Context) (Choice, error) {
	return s.ctrl.TrackEnd(ctx)
}

// Stop halts playback; the session stays usable.
func (s *Session) Stop() error { return s.ctrl.Stop() }

// Close stops playback and releases the controller.
func (s *Session) Close() error { return s.ctrl.Close() }

// State returns the playback state.
func (s *Session) State() State { return s.ctrl.State() }

// NowPlaying returns the current choice, if any.
func (s *Session) NowPlaying() (Choice, bool) { return s.ctrl.NowPlaying() }

// LastTrace returns the most recent selection trace.
func (s *Session) LastTrace() (discover.Trace, bool) { return s.ctrl.LastTrace() }

// Round implements RoundSource over the regular candidate pool.
func (s *Session) Round(ctx context.Context) (string, []discover.ScoredCandidate, error) {
	s.votes.Wait()

	listeners, trigger, err := s.roundListeners(ctx)
	if err != nil {
		return "", nil, err
	}
	comp := discover.Composite(listeners, trigger)

	cands, err := s.pool.Assemble(ctx, s.guildID)
	if err != nil {
		return "", nil, err
	}
	return discover.CompositeDebug(comp), discover.Score(comp, cands), nil
}

// FallbackRound implements RoundSource over the fallback playlist.
func (s *Session) FallbackRound(ctx context.Context) (string, []discover.ScoredCandidate, error) {
	listeners, trigger, err := s.roundListeners(ctx)
	if err != nil {
		return "", nil, err
	}
	comp := discover.Composite(listeners, trigger)

	cands, err := s.pool.AssembleFallback(ctx, s.guildID)
	if err != nil {
		return "", nil, err
	}
	return discover.CompositeDebug(comp), discover.Score(comp, cands), nil
}

func (s *Session) setTrigger(listenerID string) {
	if listenerID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trigger = listenerID
	if !slices.Contains(s.listeners, listenerID) {
		s.listeners = append(s.listeners, listenerID)
		slices.Sort(s.listeners)
	}
}

// roundListeners loads a taste vector per listener for one round.
func (s *Session) roundListeners(ctx context.Context) ([]discover.Listener, string, error) {
	s.mu.Lock()
	ids := slices.Clone(s.listeners)
	trigger := s.trigger
	s.mu.Unlock()

	out := make([]discover.Listener, 0, len(ids))
	for _, id := range ids {
		v, err := s.store.TasteVector(ctx, id)
		if err != nil {
			return nil, "", err
		}
		out = append(out, discover.Listener{ID: id, Taste: v})
	}
	return out, trigger, nil
}

// onPlay appends the newly playing track to the guild's play history.
func (s *Session) onPlay(choice Choice) {
	rec := taste.PlayRecord{
		TrackID: choice.Track.TrackID,
		Title:   choice.Track.Title,
		Artist:  choice.Track.Artist,
		At:      time.Now().UnixNano(),
	}
	if err := s.store.RecordPlay(context.Background(), s.guildID, rec); err != nil {
		slog.Warn("player: play not recorded", "guild", s.guildID, "track", rec.TrackID, "err", err)
	}
}
