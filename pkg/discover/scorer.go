package discover

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vexolabs/vexo/pkg/vec"
)

// InteractorWeight is the multiplicative weight applied to the taste
// vector of the listener who triggered the current round. Other
// listeners weigh 1.0.
const InteractorWeight = 1.2

// Composite builds the session's composite taste vector: a weighted sum
// of all active listeners' taste vectors, with the triggering listener
// weighted by [InteractorWeight]. The sum is deliberately not
// renormalized; the selection temperature absorbs scale downstream.
func Composite(listeners []Listener, triggeringID string) vec.Vector {
	out := vec.Zero()
	for _, l := range listeners {
		if len(l.Taste) != vec.Dim {
			continue
		}
		w := 1.0
		if l.ID == triggeringID {
			w = InteractorWeight
		}
		for i, x := range l.Taste {
			out[i] += float32(float64(x) * w)
		}
	}
	return out
}

// Score computes the cosine similarity of every candidate's embedding
// against the composite vector and returns the candidates sorted by
// descending score, ranks assigned from 0. Ties keep first-seen order.
// A zero composite or zero embedding scores 0, never faults.
func Score(composite vec.Vector, candidates []Candidate) []ScoredCandidate {
	scored := make([]ScoredCandidate, len(candidates))
	for i, c := range candidates {
		scored[i] = ScoredCandidate{
			Candidate: c,
			Score:     vec.Cosine(composite, c.Embedding),
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	for i := range scored {
		scored[i].Rank = i
	}
	return scored
}

// CompositeDebug renders a compact textual representation of the
// composite vector for the reasoning trace: the norm plus the first few
// components.
func CompositeDebug(v vec.Vector) string {
	const show = 6
	var b strings.Builder
	fmt.Fprintf(&b, "dim=%d norm=%.4f [", len(v), vec.Norm(v))
	n := min(show, len(v))
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%.3f", v[i])
	}
	if len(v) > show {
		b.WriteString(", …")
	}
	b.WriteString("]")
	return b.String()
}
