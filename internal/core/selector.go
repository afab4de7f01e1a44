package core

import (
	"fmt"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Candidate is one ranked result offered to a Selector. Metadata matches fill
// Track and Artist; video results fill Title and URI.
type Candidate struct {
	Track  string
	Artist string
	Title  string
	URI    string
}

func (c Candidate) label() string {
	if c.Title != "" {
		return c.Title
	}
	return c.Track + " - " + c.Artist
}

// Selector picks one candidate out of a service-ranked list.
type Selector interface {
	Select(want Candidate, ranked []Candidate) (Candidate, bool)
	// Window is how many ranked results the selector wants to see.
	Window() int
}

// FirstSelector trusts the upstream ranking and takes the top result.
type FirstSelector struct{}

// Select implements Selector.
func (FirstSelector) Select(_ Candidate, ranked []Candidate) (Candidate, bool) {
	if len(ranked) == 0 {
		return Candidate{}, false
	}
	return ranked[0], true
}

// Window implements Selector.
func (FirstSelector) Window() int { return 1 }

// FuzzySelector re-ranks the first Size results by edit distance to the
// requested label. Ties keep the upstream order.
type FuzzySelector struct {
	Size int
}

// Select implements Selector.
func (s FuzzySelector) Select(want Candidate, ranked []Candidate) (Candidate, bool) {
	if len(ranked) == 0 {
		return Candidate{}, false
	}
	if n := s.Window(); len(ranked) > n {
		ranked = ranked[:n]
	}
	target := normalizeLabel(want.label())
	best := 0
	bestScore := -1
	for i, c := range ranked {
		score := fuzzy.LevenshteinDistance(target, normalizeLabel(c.label()))
		if bestScore < 0 || score < bestScore {
			best, bestScore = i, score
		}
	}
	return ranked[best], true
}

// Window implements Selector.
func (s FuzzySelector) Window() int {
	if s.Size <= 0 {
		return 5
	}
	return s.Size
}

// NewSelector builds a selector by config name.
func NewSelector(name string, size int) (Selector, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "first":
		return FirstSelector{}, nil
	case "fuzzy":
		return FuzzySelector{Size: size}, nil
	default:
		return nil, fmt.Errorf("unknown selection strategy %q", name)
	}
}

func normalizeLabel(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
