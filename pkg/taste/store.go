package taste

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/vexolabs/vexo/pkg/kv"
	"github.com/vexolabs/vexo/pkg/vec"
)

// ErrNoEmbedding is returned when no embedding is cached for a track.
var ErrNoEmbedding = errors.New("taste: no embedding for track")

// lockStripes is the number of mutexes the per-listener write lock is
// striped over.
const lockStripes = 64

// Store is the durable vector store: taste vectors keyed by listener id
// and cached track embeddings keyed by track id.
//
// Reads may run concurrently from any number of sessions. Writes to a
// single listener's taste vector are serialized so rapid consecutive
// votes cannot lose updates; writes for different listeners do not
// contend beyond stripe collisions.
type Store struct {
	kv    kv.Store
	locks [lockStripes]sync.Mutex
}

// NewStore creates a Store over the given kv backend.
func NewStore(store kv.Store) *Store {
	return &Store{kv: store}
}

// TasteVector returns the listener's taste vector, or a zero vector if
// the listener has none yet. It never returns kv.ErrNotFound. A stored
// vector that fails validation is discarded and replaced by zero.
func (s *Store) TasteVector(ctx context.Context, listenerID string) (vec.Vector, error) {
	data, err := s.kv.Get(ctx, tasteKey(listenerID))
	if errors.Is(err, kv.ErrNotFound) {
		return vec.Zero(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("taste: load vector for %s: %w", listenerID, err)
	}

	var rec tasteRecord
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		slog.Warn("taste: dropping undecodable taste record", "listener", listenerID, "err", err)
		return vec.Zero(), nil
	}
	if err := vec.Validate(rec.Vector); err != nil {
		slog.Warn("taste: dropping malformed taste vector", "listener", listenerID, "err", err)
		return vec.Zero(), nil
	}
	return rec.Vector, nil
}

// Embedding returns the cached embedding for a track. Returns
// ErrNoEmbedding if none is cached; a cached embedding that fails
// validation is deleted and reported as missing.
func (s *Store) Embedding(ctx context.Context, trackID string) (vec.Vector, error) {
	data, err := s.kv.Get(ctx, embeddingKey(trackID))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNoEmbedding
	}
	if err != nil {
		return nil, fmt.Errorf("taste: load embedding for %s: %w", trackID, err)
	}

	var rec embeddingRecord
	if err := msgpack.Unmarshal(data, &rec); err == nil {
		if verr := vec.Validate(rec.Vector); verr == nil {
			return rec.Vector, nil
		}
	}
	// One bad cached vector must not keep poisoning discovery.
	slog.Warn("taste: evicting malformed cached embedding", "track", trackID)
	_ = s.kv.Delete(ctx, embeddingKey(trackID))
	return nil, ErrNoEmbedding
}

// PutEmbedding caches an embedding for a track. Embeddings are immutable:
// a second write for the same track id overwrites with identical content
// in practice and is accepted for simplicity.
func (s *Store) PutEmbedding(ctx context.Context, trackID string, v vec.Vector) error {
	if err := vec.Validate(v); err != nil {
		return err
	}
	data, err := msgpack.Marshal(embeddingRecord{Vector: v, StoredAt: time.Now().UnixNano()})
	if err != nil {
		return fmt.Errorf("taste: encode embedding: %w", err)
	}
	return s.kv.Set(ctx, embeddingKey(trackID), data)
}

// UpdateTasteVector applies a read-modify-write to the listener's taste
// vector under the listener's stripe lock. The apply function receives
// the current vector (zero if absent) and returns the replacement.
func (s *Store) UpdateTasteVector(ctx context.Context, listenerID string, apply func(vec.Vector) vec.Vector) error {
	lock := &s.locks[stripe(listenerID)]
	lock.Lock()
	defer lock.Unlock()

	cur, err := s.TasteVector(ctx, listenerID)
	if err != nil {
		return err
	}
	next := apply(cur)
	if err := vec.Validate(next); err != nil {
		return fmt.Errorf("taste: refusing to store updated vector for %s: %w", listenerID, err)
	}

	data, err := msgpack.Marshal(tasteRecord{Vector: next, UpdatedAt: time.Now().UnixNano()})
	if err != nil {
		return fmt.Errorf("taste: encode taste record: %w", err)
	}
	return s.kv.Set(ctx, tasteKey(listenerID), data)
}

// RecordPlay appends a track to a guild's play history.
func (s *Store) RecordPlay(ctx context.Context, guildID string, rec PlayRecord) error {
	if rec.At == 0 {
		rec.At = time.Now().UnixNano()
	}
	data, err := msgpack.Marshal(rec)
	if err != nil {
		return fmt.Errorf("taste: encode play record: %w", err)
	}
	return s.kv.Set(ctx, historyKey(guildID, rec.At), data)
}

// RecentPlays returns up to n of the guild's most recent plays, newest
// first. Undecodable entries are skipped.
func (s *Store) RecentPlays(ctx context.Context, guildID string, n int) ([]PlayRecord, error) {
	var all []PlayRecord
	for entry, err := range s.kv.List(ctx, historyPrefix(guildID)) {
		if err != nil {
			return nil, fmt.Errorf("taste: list history for %s: %w", guildID, err)
		}
		var rec PlayRecord
		if err := msgpack.Unmarshal(entry.Value, &rec); err != nil {
			continue
		}
		all = append(all, rec)
	}

	// Keys are time-ordered ascending; return the tail reversed.
	if n > len(all) {
		n = len(all)
	}
	out := make([]PlayRecord, 0, n)
	for i := len(all) - 1; i >= len(all)-n; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func stripe(id string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(id))
	return h.Sum32() % lockStripes
}
