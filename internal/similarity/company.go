package similarity

import (
	"strings"
)

// legalSuffixTokens are trailing legal-entity designators stripped from
// company names. Token-level and applied after abbreviation expansion,
// so "Corp", "Corporation" and "S.A." all come off the same way.
var legalSuffixTokens = map[string]bool{
	"inc": true, "incorporated": true,
	"llc": true, "ltd": true, "limited": true,
	"corp": true, "corporation": true,
	"co": true, "company": true,
	"plc": true, "sa": true, "nv": true, "ag": true, "gmbh": true,
	"lp": true, "llp": true, "pllc": true,
	"holdings": true,
}

// companyAbbreviations expands common shorthand tokens to their full
// word so "Acme Mgmt Group" and "Acme Management Group" normalize
// identically. Word-level lookup, applied before suffix stripping so the
// expanded forms are themselves subject to stripping.
var companyAbbreviations = map[string]string{
	"corp":  "corporation",
	"mgmt":  "management",
	"intl":  "international",
	"svcs":  "services",
	"svc":   "service",
	"tech":  "technology",
	"grp":   "group",
	"hldgs": "holdings",
	"assoc": "associates",
	"bros":  "brothers",
	"mfg":   "manufacturing",
}

// CompanyNormalizer canonicalizes company and investor names. Results
// are memoized per instance in a bounded cache.
type CompanyNormalizer struct {
	cache         *memoCache
	expandAbbrevs bool
}

// NewCompanyNormalizer creates a normalizer with abbreviation expansion
// enabled and the given cache bound (<=0 uses the default).
func NewCompanyNormalizer(cacheSize int) *CompanyNormalizer {
	return &CompanyNormalizer{
		cache:         newMemoCache(cacheSize),
		expandAbbrevs: true,
	}
}

// Normalize lowercases the name, strips punctuation, drops
// leading/trailing "the", expands known abbreviations and removes
// trailing legal-entity designators. Idempotent:
// Normalize(Normalize(x)) == Normalize(x).
func (n *CompanyNormalizer) Normalize(name string) string {
	if cached, ok := n.cache.get(name); ok {
		return cached
	}

	s := strings.ToLower(strings.TrimSpace(name))

	// Periods and apostrophes vanish ("S.A." -> "sa"); every other
	// punctuation mark becomes a word boundary.
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '.' || r == '\'':
			// drop
		case isWordRune(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	words := strings.Fields(b.String())

	// Leading/trailing "the" carries no identity.
	if len(words) > 1 && words[0] == "the" {
		words = words[1:]
	}
	if len(words) > 1 && words[len(words)-1] == "the" {
		words = words[:len(words)-1]
	}

	if n.expandAbbrevs {
		for i, w := range words {
			if full, ok := companyAbbreviations[w]; ok {
				words[i] = full
			}
		}
	}

	// Strip stacked trailing designators ("acme co ltd" loses both),
	// but never strip the name down to nothing.
	for len(words) > 1 && legalSuffixTokens[words[len(words)-1]] {
		words = words[:len(words)-1]
	}

	result := strings.Join(words, " ")
	n.cache.put(name, result)
	return result
}

// CacheLen reports the number of memoized inputs, for tests and
// observability.
func (n *CompanyNormalizer) CacheLen() int {
	return n.cache.len()
}

func isWordRune(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' ||
		(r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') ||
		r > 127 // keep non-ASCII letters as-is
}
