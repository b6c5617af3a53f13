// Package matcher compares person names and classifies pair similarity
// into merge decisions. It is pure: the matcher reads no storage and
// mutates nothing, so the scanner can run comparisons in parallel.
package matcher

import (
	"fmt"

	"github.com/fundscope/fundscope/internal/similarity"
	"github.com/fundscope/fundscope/internal/types"
)

// Classification is the policy outcome for an evaluated pair.
type Classification string

const (
	ClassAutoMerge Classification = "auto_merge"
	ClassReview    Classification = "review"
	ClassNoMatch   Classification = "no_match"
)

// Verdict is the result of comparing two person names.
type Verdict struct {
	Matched    bool
	MatchType  types.MatchType
	Similarity float64
	// Note carries human-readable evidence about how the match was
	// made, recorded on the merge candidate.
	Note string
}

// Matcher compares person names using normalization, nickname
// expansion and edit-distance similarity.
type Matcher struct {
	cfg  Config
	norm *similarity.PersonNormalizer
}

// New creates a matcher with the given thresholds. cacheSize bounds the
// normalizer's memo cache (<=0 uses the default).
func New(cfg Config, cacheSize int) (*Matcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Matcher{
		cfg:  cfg,
		norm: similarity.NewPersonNormalizer(cacheSize),
	}, nil
}

// Config returns the thresholds the matcher classifies with.
func (m *Matcher) Config() Config {
	return m.cfg
}

// Compare evaluates two raw person names, short-circuiting on the first
// conclusive result:
//
//  1. empty after normalization -> no match, never merge on empty
//  2. normalized strings equal -> exact, 1.0
//  3. (first, last) pairs equal, middle tokens dropped -> exact, 1.0
//  4. nickname-expanded first + exact last -> nickname, 0.95
//  5. edit-distance ratio on "first last", plain and nickname-expanded,
//     best of the two vs the review threshold -> fuzzy or no match; the
//     verdict is nickname-typed when the expanded variant scored higher
func (m *Matcher) Compare(a, b string) Verdict {
	na := m.norm.Normalize(a)
	nb := m.norm.Normalize(b)

	if na == "" || nb == "" {
		return Verdict{MatchType: types.MatchNone}
	}

	if na == nb {
		return Verdict{Matched: true, MatchType: types.MatchExact, Similarity: 1.0}
	}

	fa, la, okA := similarity.SplitFirstLast(na)
	fb, lb, okB := similarity.SplitFirstLast(nb)

	if !okA || !okB {
		// Single-token names: nothing to expand, fuzzy on the whole
		// normalized strings is all that is left.
		ratio := similarity.Ratio(na, nb)
		if ratio >= m.cfg.ReviewThreshold {
			return Verdict{Matched: true, MatchType: types.MatchFuzzy, Similarity: ratio}
		}
		return Verdict{MatchType: types.MatchNone, Similarity: ratio}
	}

	if fa == fb && la == lb {
		return Verdict{
			Matched:    true,
			MatchType:  types.MatchExact,
			Similarity: 1.0,
			Note:       "dropped middle name",
		}
	}

	ea := similarity.ExpandNickname(fa)
	eb := similarity.ExpandNickname(fb)
	if ea == eb && la == lb {
		return Verdict{
			Matched:    true,
			MatchType:  types.MatchNickname,
			Similarity: 0.95,
			Note:       fmt.Sprintf("nickname expansion: %s/%s -> %s", fa, fb, ea),
		}
	}

	plain := similarity.Ratio(fa+" "+la, fb+" "+lb)
	expanded := similarity.Ratio(ea+" "+la, eb+" "+lb)

	best := plain
	matchType := types.MatchFuzzy
	note := ""
	if expanded > plain {
		best = expanded
		matchType = types.MatchNickname
		note = "nickname-expanded fuzzy match"
	}

	if best >= m.cfg.ReviewThreshold {
		return Verdict{Matched: true, MatchType: matchType, Similarity: best, Note: note}
	}
	return Verdict{MatchType: types.MatchNone, Similarity: best}
}

// Classify maps a similarity score and a shared-context signal to a
// merge decision. Automatic merges require corroboration beyond the
// name: without shared context even a perfect score degrades to review.
func (m *Matcher) Classify(sim float64, hasSharedContext bool) Classification {
	if sim >= m.cfg.AutoMergeThreshold && hasSharedContext {
		return ClassAutoMerge
	}
	if sim >= m.cfg.ReviewThreshold {
		return ClassReview
	}
	return ClassNoMatch
}
