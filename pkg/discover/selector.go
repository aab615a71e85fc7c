package discover

import (
	"math"
	"math/rand"
	"time"
)

const (
	// DefaultTopK is the default reasoning-trace depth.
	DefaultTopK = 5

	// greedyTemperature is the threshold below which selection collapses
	// to deterministic argmax.
	greedyTemperature = 1e-6
)

// Selector turns scored candidates into a single chosen track via
// temperature-controlled softmax sampling, and produces the reasoning
// trace.
//
// The random source is injectable so tests can pin a seed; a Selector is
// not safe for concurrent Pick calls (sessions run at most one round at
// a time).
type Selector struct {
	temperature float64
	topK        int
	rng         *rand.Rand
}

// NewSelector creates a Selector. topK <= 0 uses [DefaultTopK]; a nil
// rng gets a time-seeded source.
func NewSelector(temperature float64, topK int, rng *rand.Rand) *Selector {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Selector{temperature: temperature, topK: topK, rng: rng}
}

// Temperature returns the selection temperature in effect.
func (s *Selector) Temperature() float64 { return s.temperature }

// Pick chooses one candidate from the scored set and returns it with the
// reasoning trace built against the given composite debug string.
//
// Temperature near zero degenerates to the highest score with ties
// broken by first-seen order. A single-member pool is chosen with
// probability 1. An empty pool returns [ErrNoCandidates].
func (s *Selector) Pick(compositeDebug string, scored []ScoredCandidate) (ScoredCandidate, Trace, error) {
	trace := s.buildTrace(compositeDebug, scored)

	switch {
	case len(scored) == 0:
		return ScoredCandidate{}, trace, ErrNoCandidates
	case len(scored) == 1:
		return scored[0], trace, nil
	}

	if s.temperature < greedyTemperature {
		// scored is sorted descending with stable first-seen ties, so
		// the greedy pick is simply the head.
		return scored[0], trace, nil
	}

	probs := softmax(scored, s.temperature)
	r := s.rng.Float64()
	var cum float64
	for i, p := range probs {
		cum += p
		if r < cum {
			return scored[i], trace, nil
		}
	}
	// Floating point left r fractionally above the cumulative sum.
	return scored[len(scored)-1], trace, nil
}

// softmax converts scores into a probability distribution, dividing by
// temperature first. Scores are shifted by the max for numeric
// stability.
func softmax(scored []ScoredCandidate, temperature float64) []float64 {
	maxScore := scored[0].Score
	for _, sc := range scored {
		if sc.Score > maxScore {
			maxScore = sc.Score
		}
	}

	probs := make([]float64, len(scored))
	var sum float64
	for i, sc := range scored {
		e := math.Exp((sc.Score - maxScore) / temperature)
		probs[i] = e
		sum += e
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

func (s *Selector) buildTrace(compositeDebug string, scored []ScoredCandidate) Trace {
	k := min(s.topK, len(scored))
	top := make([]TraceEntry, k)
	for i := 0; i < k; i++ {
		sc := scored[i]
		top[i] = TraceEntry{
			TrackID: sc.TrackID,
			Title:   sc.Title,
			Artist:  sc.Artist,
			Source:  sc.Source,
			Score:   sc.Score,
			Reason:  sc.Source.reason(),
		}
	}
	return Trace{
		Composite:   compositeDebug,
		Temperature: s.temperature,
		K:           s.topK,
		Top:         top,
	}
}

// Without returns a copy of scored with the candidate carrying trackID
// removed and ranks reassigned. Scores are preserved; the controller
// uses this to re-pick after a resolution failure without re-scoring.
func Without(scored []ScoredCandidate, trackID string) []ScoredCandidate {
	out := make([]ScoredCandidate, 0, len(scored))
	for _, sc := range scored {
		if sc.TrackID == trackID {
			continue
		}
		sc.Rank = len(out)
		out = append(out, sc)
	}
	return out
}
