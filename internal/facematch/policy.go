package facematch

import (
	"fmt"
	"strings"
)

// SelectionPolicy picks the authorized guardian among matched candidates.
// Candidates arrive in gallery order and are never empty.
type SelectionPolicy interface {
	Name() string
	Select(candidates []Candidate) Candidate
}

// FirstInGalleryOrder selects the earliest registered guardian that matched.
type FirstInGalleryOrder struct{}

func (FirstInGalleryOrder) Name() string { return "first" }

func (FirstInGalleryOrder) Select(candidates []Candidate) Candidate {
	return candidates[0]
}

// ClosestDistance selects the candidate nearest to the query. Ties go to the
// earlier gallery entry.
type ClosestDistance struct{}

func (ClosestDistance) Name() string { return "closest" }

func (ClosestDistance) Select(candidates []Candidate) Candidate {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Distance < best.Distance {
			best = c
		}
	}
	return best
}

// PolicyByName resolves a policy from its configuration name.
// An empty name selects FirstInGalleryOrder.
func PolicyByName(name string) (SelectionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "first":
		return FirstInGalleryOrder{}, nil
	case "closest":
		return ClosestDistance{}, nil
	default:
		return nil, fmt.Errorf("unknown match policy %q (expected first or closest)", name)
	}
}
