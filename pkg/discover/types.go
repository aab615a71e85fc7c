// Package discover implements the discovery engine: assembling the
// candidate pool for a selection round, scoring candidates against the
// session's composite taste vector, and probabilistically selecting the
// next track.
//
// One selection round flows Pool → Scorer → Selector. All state is
// scoped to the round; nothing here persists between rounds except what
// the taste store already holds.
package discover

import (
	"errors"

	"github.com/vexolabs/vexo/pkg/vec"
)

// ErrNoCandidates is returned when a selection round has an empty pool.
// The caller falls back to a fallback-playlist-only round before
// surfacing a stall.
var ErrNoCandidates = errors.New("discover: no candidates available")

// Source identifies where a candidate entered the pool from.
type Source string

const (
	SourceHistory  Source = "history"
	SourceFallback Source = "fallback_playlist"
	SourceSearch   Source = "search"
)

// reason returns the human-readable explanation attached to trace
// entries for this source.
func (s Source) reason() string {
	switch s {
	case SourceHistory:
		return "from this session's listening history"
	case SourceFallback:
		return "from the fallback playlist"
	case SourceSearch:
		return "search match for the current vibe"
	default:
		return "discovery"
	}
}

// TrackRef identifies a track without an embedding attached. Pool inputs
// (playlists, search results) produce TrackRefs; the pool resolves them
// into Candidates.
type TrackRef struct {
	TrackID string
	Title   string
	Artist  string
}

// Candidate is one track eligible for the next pick. Candidates are
// ephemeral: they live for a single selection round and are never
// persisted.
type Candidate struct {
	TrackID   string
	Title     string
	Artist    string
	Source    Source
	Embedding vec.Vector
}

// ScoredCandidate is a Candidate with its similarity score and rank
// within one round.
type ScoredCandidate struct {
	Candidate
	Score float64
	Rank  int
}

// TraceEntry is one line of the reasoning trace.
type TraceEntry struct {
	TrackID string
	Title   string
	Artist  string
	Source  Source
	Score   float64
	Reason  string
}

// Trace explains one selection to the caller. It is presentation data:
// generated fresh per round, never cached, and it must not influence
// future rounds.
type Trace struct {
	// Composite is a textual debug representation of the composite taste
	// vector used for scoring.
	Composite string

	// Temperature and K record the selection parameters in effect.
	Temperature float64
	K           int

	// Top holds the top-K scored candidates in descending score order.
	Top []TraceEntry
}

// Listener pairs a listener id with their taste vector for one round.
type Listener struct {
	ID    string
	Taste vec.Vector
}
