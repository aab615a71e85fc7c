// Package vec provides fixed-length dense vector math for taste vectors
// and track embeddings.
//
// All vectors in the system share a single dimensionality, [Dim]. A
// listener's taste vector and a track's embedding live in the same space,
// so similarity between them is plain cosine similarity.
//
// Taste vectors are updated incrementally by [Nudge] and never replaced
// wholesale. Every nudge re-clamps the vector to the unit ball, so the
// magnitude stays bounded no matter how many votes a listener casts.
package vec

import (
	"errors"
	"fmt"
	"math"
)

// Dim is the dimensionality of every vector in the system.
const Dim = 128

const (
	// MaxNorm bounds the magnitude of a taste vector after an update.
	MaxNorm = 1.0

	// NudgeNorm divides a vote weight before it scales the nudge delta,
	// keeping a single vote from dominating the accumulated taste.
	NudgeNorm = 10.0
)

// ErrMalformed is returned when a vector has the wrong length or contains
// non-finite values. Callers discard the offending vector rather than
// propagating the error into scoring.
var ErrMalformed = errors.New("vec: malformed vector")

// Vector is a dense float32 vector of length [Dim].
type Vector = []float32

// Zero returns a fresh zero vector.
func Zero() Vector {
	return make(Vector, Dim)
}

// Clone returns a copy of v.
func Clone(v Vector) Vector {
	cp := make(Vector, len(v))
	copy(cp, v)
	return cp
}

// Validate reports whether v is a well-formed vector: exactly [Dim]
// elements, all finite.
func Validate(v Vector) error {
	if len(v) != Dim {
		return fmt.Errorf("%w: length %d, want %d", ErrMalformed, len(v), Dim)
	}
	for i, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: non-finite value at index %d", ErrMalformed, i)
		}
	}
	return nil
}

// IsZero reports whether every element of v is zero.
func IsZero(v Vector) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Norm returns the Euclidean norm of v.
func Norm(v Vector) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Cosine returns the cosine similarity between a and b, bounded to
// [-1, 1]. A zero-magnitude vector on either side yields 0 rather than a
// division fault, as does a length mismatch.
func Cosine(a, b Vector) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		na += ai * ai
		nb += bi * bi
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	// Clamp floating point drift.
	if sim > 1 {
		sim = 1
	}
	if sim < -1 {
		sim = -1
	}
	return sim
}

// Add returns a + b. Both inputs are left untouched.
func Add(a, b Vector) Vector {
	out := Clone(a)
	for i := range b {
		out[i] += b[i]
	}
	return out
}

// Scale returns v scaled by s.
func Scale(v Vector, s float64) Vector {
	out := make(Vector, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) * s)
	}
	return out
}

// ClampNorm scales v in place so its norm does not exceed maxNorm.
// Vectors already inside the bound are untouched.
func ClampNorm(v Vector, maxNorm float64) {
	n := Norm(v)
	if n <= maxNorm || n == 0 {
		return
	}
	s := maxNorm / n
	for i := range v {
		v[i] = float32(float64(v[i]) * s)
	}
}

// Nudge returns v moved toward (positive weight) or away from (negative
// weight) the target vector, clamped to [MaxNorm]. The displacement is
// target scaled by weight/NudgeNorm, so the rule is monotonic in weight
// and bounded in magnitude.
func Nudge(v, target Vector, weight float64) Vector {
	out := Add(v, Scale(target, weight/NudgeNorm))
	ClampNorm(out, MaxNorm)
	return out
}
