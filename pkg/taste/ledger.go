package taste

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/vexolabs/vexo/pkg/kv"
	"github.com/vexolabs/vexo/pkg/vec"
)

// Ledger is the append-only log of vote events. Recording an event
// applies its deterministic taste-vector adjustment exactly once: a
// replayed event (same listener, track, kind, timestamp) is dropped
// without re-applying the nudge.
type Ledger struct {
	kv    kv.Store
	store *Store
}

// NewLedger creates a Ledger sharing the vector store's kv backend.
func NewLedger(store *Store) *Ledger {
	return &Ledger{kv: store.kv, store: store}
}

// Record appends a vote event and nudges the voter's taste vector toward
// or away from the voted track's embedding, per the event kind's weight.
//
// If the track has no cached embedding the event is still logged and the
// nudge is skipped; the vote takes effect once an embedding exists and a
// later vote lands. Duplicate events are silently dropped.
func (l *Ledger) Record(ctx context.Context, ev VoteEvent) error {
	if err := ev.validate(); err != nil {
		return err
	}

	seen := seenKey(ev)
	if _, err := l.kv.Get(ctx, seen); err == nil {
		slog.Debug("taste: duplicate vote dropped",
			"listener", ev.ListenerID, "track", ev.TrackID, "kind", ev.Kind)
		return nil
	} else if !errors.Is(err, kv.ErrNotFound) {
		return fmt.Errorf("taste: dedup check: %w", err)
	}

	data, err := msgpack.Marshal(ev)
	if err != nil {
		return fmt.Errorf("taste: encode vote event: %w", err)
	}
	entries := []kv.Entry{
		{Key: voteKey(ev), Value: data},
		{Key: seen, Value: []byte{}},
	}
	if err := l.kv.BatchSet(ctx, entries); err != nil {
		return fmt.Errorf("taste: append vote: %w", err)
	}

	embedding, err := l.store.Embedding(ctx, ev.TrackID)
	if errors.Is(err, ErrNoEmbedding) {
		slog.Debug("taste: vote logged without nudge, no embedding",
			"listener", ev.ListenerID, "track", ev.TrackID)
		return nil
	}
	if err != nil {
		return err
	}

	weight := ev.Kind.Weight()
	err = l.store.UpdateTasteVector(ctx, ev.ListenerID, func(cur vec.Vector) vec.Vector {
		return vec.Nudge(cur, embedding, weight)
	})
	if err != nil {
		return err
	}

	slog.Info("taste: vote applied",
		"listener", ev.ListenerID, "track", ev.TrackID, "kind", ev.Kind, "weight", weight)
	return nil
}

// Votes returns all recorded vote events for a listener in chronological
// order. Intended for inspection and tests; undecodable entries are
// skipped.
func (l *Ledger) Votes(ctx context.Context, listenerID string) ([]VoteEvent, error) {
	var out []VoteEvent
	for entry, err := range l.kv.List(ctx, kv.Key{"vote", listenerID}) {
		if err != nil {
			return nil, fmt.Errorf("taste: list votes for %s: %w", listenerID, err)
		}
		var ev VoteEvent
		if err := msgpack.Unmarshal(entry.Value, &ev); err != nil {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}
