package taste

import (
	"fmt"

	"github.com/vexolabs/vexo/pkg/kv"
)

// Key layout:
//
//	taste:{listener}                     → msgpack tasteRecord
//	emb:{track}                          → msgpack embeddingRecord
//	vote:{listener}:{ts_ns}:{track}      → msgpack VoteEvent
//	seen:{listener}:{track}:{kind}:{ts}  → empty (dedup marker)
//	hist:{guild}:{ts_ns}                 → msgpack PlayRecord
//
// Timestamps are zero-padded to 19 digits so lexicographic key order
// matches chronological order within a prefix.

func tasteKey(listenerID string) kv.Key {
	return kv.Key{"taste", listenerID}
}

func embeddingKey(trackID string) kv.Key {
	return kv.Key{"emb", trackID}
}

func voteKey(ev VoteEvent) kv.Key {
	return kv.Key{"vote", ev.ListenerID, padTS(ev.At), ev.TrackID}
}

func seenKey(ev VoteEvent) kv.Key {
	return kv.Key{"seen", ev.ListenerID, ev.TrackID, string(ev.Kind), padTS(ev.At)}
}

func historyKey(guildID string, ts int64) kv.Key {
	return kv.Key{"hist", guildID, padTS(ts)}
}

func historyPrefix(guildID string) kv.Key {
	return kv.Key{"hist", guildID}
}

func padTS(ts int64) string {
	return fmt.Sprintf("%019d", ts)
}
