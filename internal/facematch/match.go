// Package facematch compares face embeddings against a gallery of known guardians.
package facematch

import "math"

// DefaultTolerance is the maximum Euclidean distance at which two embeddings
// are considered the same person.
const DefaultTolerance = 0.6

// Entry is one gallery member: a guardian id and its reference embedding.
// Entries with an empty embedding never match.
type Entry struct {
	ID        string
	Embedding []float32
}

// Candidate is a gallery entry that matched, with its distance to the query.
type Candidate struct {
	ID       string
	Distance float64
}

// EuclideanDistance returns the L2 distance between two embeddings.
// Embeddings of different length are incomparable and yield +Inf.
func EuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// MatchWithDistance returns every gallery entry within tolerance of unknown,
// in gallery order.
func MatchWithDistance(gallery []Entry, unknown []float32, tolerance float64) []Candidate {
	if len(gallery) == 0 || len(unknown) == 0 {
		return nil
	}
	var out []Candidate
	for _, e := range gallery {
		if len(e.Embedding) == 0 {
			continue
		}
		if d := EuclideanDistance(e.Embedding, unknown); d <= tolerance {
			out = append(out, Candidate{ID: e.ID, Distance: d})
		}
	}
	return out
}

// Match returns the ids of every gallery entry within tolerance of unknown,
// in gallery order. A larger tolerance never removes an id from the result.
func Match(gallery []Entry, unknown []float32, tolerance float64) []string {
	candidates := MatchWithDistance(gallery, unknown, tolerance)
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}
	return ids
}
