// Package taste persists listener taste vectors, the track embedding
// cache, and the vote ledger that drives taste updates.
//
// [Store] is the vector store: taste vectors keyed by listener, track
// embeddings keyed by track. [Ledger] is the append-only vote log; each
// recorded vote applies exactly one deterministic nudge to the voter's
// taste vector. Both share a single [kv.Store] across all sessions.
package taste

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// VoteKind identifies how a listener reacted to a track.
type VoteKind string

const (
	VoteLike    VoteKind = "like"
	VoteDislike VoteKind = "dislike"
	VoteSkip    VoteKind = "skip"
	VoteRequest VoteKind = "request"
)

// Weight returns the taste-vector adjustment weight for this kind of
// vote. Positive weights nudge the voter's taste toward the track's
// embedding, negative weights away from it.
func (k VoteKind) Weight() float64 {
	switch k {
	case VoteLike:
		return 5
	case VoteDislike:
		return -5
	case VoteSkip:
		return -2
	case VoteRequest:
		return 2
	default:
		return 0
	}
}

// Valid reports whether k is a known vote kind.
func (k VoteKind) Valid() bool {
	return k.Weight() != 0
}

// VoteEvent is one listener reaction to one track. Events are immutable
// after creation and deduplicated on the natural key (listener, track,
// kind, timestamp).
type VoteEvent struct {
	ID         string   `msgpack:"id"`
	ListenerID string   `msgpack:"listener"`
	TrackID    string   `msgpack:"track"`
	Kind       VoteKind `msgpack:"kind"`
	At         int64    `msgpack:"at"` // unix nanoseconds
}

// NewVoteEvent builds a VoteEvent stamped with the current time and a
// fresh ID.
func NewVoteEvent(listenerID, trackID string, kind VoteKind) VoteEvent {
	return VoteEvent{
		ID:         uuid.NewString(),
		ListenerID: listenerID,
		TrackID:    trackID,
		Kind:       kind,
		At:         time.Now().UnixNano(),
	}
}

// PlayRecord is one entry in a guild's play history.
type PlayRecord struct {
	TrackID string `msgpack:"track"`
	Title   string `msgpack:"title"`
	Artist  string `msgpack:"artist"`
	At      int64  `msgpack:"at"` // unix nanoseconds
}

// tasteRecord is the stored form of a listener's taste vector.
type tasteRecord struct {
	Vector    []float32 `msgpack:"vector"`
	UpdatedAt int64     `msgpack:"updated_at"`
}

// embeddingRecord is the stored form of a cached track embedding.
// Embeddings are immutable once written.
type embeddingRecord struct {
	Vector   []float32 `msgpack:"vector"`
	StoredAt int64     `msgpack:"stored_at"`
}

func (e VoteEvent) validate() error {
	if e.ListenerID == "" || e.TrackID == "" {
		return fmt.Errorf("taste: vote event missing listener or track id")
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("taste: unknown vote kind %q", e.Kind)
	}
	return nil
}
