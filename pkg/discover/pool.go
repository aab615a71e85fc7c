package discover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/vexolabs/vexo/pkg/embed"
	"github.com/vexolabs/vexo/pkg/taste"
)

// Playlist lists the tracks of a configured playlist.
type Playlist interface {
	Tracks(ctx context.Context, playlistID string) ([]TrackRef, error)
}

// Searcher finds fresh tracks for a free-text query. Optional: a nil
// Searcher disables the search source.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]TrackRef, error)
}

// PoolConfig tunes candidate assembly. The mixing policy is tunable; the
// hard contract is only that the returned pool is deduplicated by track
// id and every member carries a valid embedding.
type PoolConfig struct {
	// FallbackPlaylist is the playlist id mixed into every round and
	// used alone when the normal pool is exhausted.
	FallbackPlaylist string

	// ExclusionWindow is how many of the most recent plays are barred
	// from re-selection. Default 10.
	ExclusionWindow int

	// HistoryLimit caps how far back history candidates reach.
	// Default 50.
	HistoryLimit int

	// SearchLimit caps search-source candidates. Default 10.
	SearchLimit int

	// HistoryHalfLife controls recency weighting of history candidates:
	// a track whose last play is many half-lives old drops out of the
	// pool. Default 14 days.
	HistoryHalfLife time.Duration
}

func (c *PoolConfig) setDefaults() {
	if c.ExclusionWindow <= 0 {
		c.ExclusionWindow = 10
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 50
	}
	if c.SearchLimit <= 0 {
		c.SearchLimit = 10
	}
	if c.HistoryHalfLife <= 0 {
		c.HistoryHalfLife = 14 * 24 * time.Hour
	}
}

// staleCutoff is the recency weight below which a history candidate is
// considered stale and dropped from the pool.
const staleCutoff = 0.05

// Pool assembles the deduplicated, embedding-complete candidate set for
// one selection round.
type Pool struct {
	store    *taste.Store
	playlist Playlist
	searcher Searcher
	embedder embed.Embedder
	cfg      PoolConfig
}

// NewPool creates a Pool. playlist supplies the fallback playlist;
// searcher and embedder are optional (nil disables the search source and
// on-the-fly embedding respectively).
func NewPool(store *taste.Store, playlist Playlist, searcher Searcher, embedder embed.Embedder, cfg PoolConfig) *Pool {
	cfg.setDefaults()
	return &Pool{
		store:    store,
		playlist: playlist,
		searcher: searcher,
		embedder: embedder,
		cfg:      cfg,
	}
}

// Assemble builds the candidate pool for a guild's next selection round:
// play history outside the exclusion window, the fallback playlist, and
// optionally search results seeded from the most recent play.
func (p *Pool) Assemble(ctx context.Context, guildID string) ([]Candidate, error) {
	recent, err := p.store.RecentPlays(ctx, guildID, p.cfg.HistoryLimit)
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]bool)
	for i, rec := range recent {
		if i >= p.cfg.ExclusionWindow {
			break
		}
		excluded[rec.TrackID] = true
	}

	var refs []refWithSource
	now := time.Now().UnixNano()
	for _, rec := range recent {
		if excluded[rec.TrackID] {
			continue
		}
		if recencyWeight(now-rec.At, p.cfg.HistoryHalfLife) < staleCutoff {
			continue
		}
		refs = append(refs, refWithSource{
			ref:    TrackRef{TrackID: rec.TrackID, Title: rec.Title, Artist: rec.Artist},
			source: SourceHistory,
		})
	}

	fallback, err := p.fallbackRefs(ctx)
	if err != nil {
		slog.Warn("discover: fallback playlist unavailable", "guild", guildID, "err", err)
	}
	refs = append(refs, fallback...)

	if p.searcher != nil && len(recent) > 0 {
		seed := recent[0]
		query := fmt.Sprintf("%s %s", seed.Title, seed.Artist)
		found, err := p.searcher.Search(ctx, query, p.cfg.SearchLimit)
		if err != nil {
			slog.Warn("discover: search source failed", "guild", guildID, "err", err)
		}
		for _, r := range found {
			refs = append(refs, refWithSource{ref: r, source: SourceSearch})
		}
	}

	return p.materialize(ctx, refs, excluded)
}

// AssembleFallback builds a pool scoped to the fallback playlist only,
// for use after the normal pool is exhausted. The exclusion window is
// honored unless it would empty the pool entirely.
func (p *Pool) AssembleFallback(ctx context.Context, guildID string) ([]Candidate, error) {
	refs, err := p.fallbackRefs(ctx)
	if err != nil {
		return nil, err
	}

	recent, err := p.store.RecentPlays(ctx, guildID, p.cfg.ExclusionWindow)
	if err != nil {
		return nil, err
	}
	excluded := make(map[string]bool, len(recent))
	for _, rec := range recent {
		excluded[rec.TrackID] = true
	}

	candidates, err := p.materialize(ctx, refs, excluded)
	if err != nil {
		return nil, err
	}
	if len(candidates) > 0 {
		return candidates, nil
	}
	// Everything in the playlist was played recently; repeats beat
	// silence.
	return p.materialize(ctx, refs, nil)
}

type refWithSource struct {
	ref    TrackRef
	source Source
}

func (p *Pool) fallbackRefs(ctx context.Context) ([]refWithSource, error) {
	if p.playlist == nil || p.cfg.FallbackPlaylist == "" {
		return nil, nil
	}
	tracks, err := p.playlist.Tracks(ctx, p.cfg.FallbackPlaylist)
	if err != nil {
		return nil, err
	}
	refs := make([]refWithSource, len(tracks))
	for i, t := range tracks {
		refs[i] = refWithSource{ref: t, source: SourceFallback}
	}
	return refs, nil
}

// materialize dedupes refs by track id, resolves embeddings, and drops
// candidates whose embedding cannot be resolved. Dropping (rather than
// scoring at zero) keeps unknown tracks from being artificially favored
// when the composite vector is itself near zero.
func (p *Pool) materialize(ctx context.Context, refs []refWithSource, excluded map[string]bool) ([]Candidate, error) {
	seen := make(map[string]bool, len(refs))
	var out []Candidate
	var missing []int // indexes into out with no cached embedding

	for _, rs := range refs {
		id := rs.ref.TrackID
		if id == "" || seen[id] || excluded[id] {
			continue
		}
		seen[id] = true

		c := Candidate{
			TrackID: id,
			Title:   rs.ref.Title,
			Artist:  rs.ref.Artist,
			Source:  rs.source,
		}
		emb, err := p.store.Embedding(ctx, id)
		switch {
		case err == nil:
			c.Embedding = emb
		case errors.Is(err, taste.ErrNoEmbedding):
			if p.embedder == nil {
				continue // no way to resolve an embedding; drop
			}
			missing = append(missing, len(out))
		default:
			return nil, err
		}
		out = append(out, c)
	}

	if len(missing) > 0 {
		out = p.embedMissing(ctx, out, missing)
	}
	return out, nil
}

// embedMissing fills embeddings for candidates lacking a cached one by
// embedding "title artist" text, caching the results. Candidates that
// still lack an embedding afterwards are dropped.
func (p *Pool) embedMissing(ctx context.Context, candidates []Candidate, missing []int) []Candidate {
	texts := make([]string, len(missing))
	for i, idx := range missing {
		texts[i] = fmt.Sprintf("%s %s", candidates[idx].Title, candidates[idx].Artist)
	}

	vecs, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		slog.Warn("discover: embedding batch failed, dropping unembedded candidates", "count", len(missing), "err", err)
		return dropIndexes(candidates, missing)
	}

	var failed []int
	for i, idx := range missing {
		v := vecs[i]
		if err := p.store.PutEmbedding(ctx, candidates[idx].TrackID, v); err != nil {
			slog.Warn("discover: caching embedding failed", "track", candidates[idx].TrackID, "err", err)
			failed = append(failed, idx)
			continue
		}
		candidates[idx].Embedding = v
	}
	return dropIndexes(candidates, failed)
}

func dropIndexes(candidates []Candidate, drop []int) []Candidate {
	if len(drop) == 0 {
		return candidates
	}
	dropSet := make(map[int]bool, len(drop))
	for _, i := range drop {
		dropSet[i] = true
	}
	out := candidates[:0]
	for i, c := range candidates {
		if !dropSet[i] {
			out = append(out, c)
		}
	}
	return out
}

// recencyWeight halves per half-life elapsed, mirroring how listening
// momentum fades.
func recencyWeight(age int64, halfLife time.Duration) float64 {
	if age < 0 {
		age = 0
	}
	return math.Pow(0.5, float64(age)/float64(halfLife))
}
