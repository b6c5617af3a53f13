package similarity

import (
	"strings"
)

// personSuffixTokens are generational and credential suffixes that
// carry no identity for matching: "John Smith Jr." and "John Smith PhD"
// are the same person candidate as "John Smith".
var personSuffixTokens = map[string]bool{
	"jr": true, "sr": true,
	"ii": true, "iii": true, "iv": true, "v": true,
	"phd": true, "md": true, "esq": true, "cpa": true, "cfa": true,
	"jd": true, "mba": true, "dds": true, "rn": true,
}

// PersonNormalizer canonicalizes person names. Results are memoized per
// instance in a bounded cache.
type PersonNormalizer struct {
	cache *memoCache
}

// NewPersonNormalizer creates a normalizer with the given cache bound
// (<=0 uses the default).
func NewPersonNormalizer(cacheSize int) *PersonNormalizer {
	return &PersonNormalizer{cache: newMemoCache(cacheSize)}
}

// Normalize lowercases the name, reorders "Last, First" into "First
// Last", strips generational/credential suffixes and punctuation
// (internal hyphens survive) and collapses whitespace.
func (n *PersonNormalizer) Normalize(name string) string {
	if cached, ok := n.cache.get(name); ok {
		return cached
	}

	s := strings.ToLower(strings.TrimSpace(name))

	// "Last, First[, Suffix]" -> "First Last". Comma segments that are
	// nothing but suffixes ("Smith, John, Jr.") are dropped rather than
	// reordered.
	if strings.Contains(s, ",") {
		segments := strings.Split(s, ",")
		kept := segments[:0]
		for _, seg := range segments {
			seg = strings.TrimSpace(seg)
			if seg == "" || personSuffixTokens[strings.Trim(seg, ".")] {
				continue
			}
			kept = append(kept, seg)
		}
		if len(kept) >= 2 {
			s = strings.Join(kept[1:], " ") + " " + kept[0]
		} else if len(kept) == 1 {
			s = kept[0]
		} else {
			s = ""
		}
	}

	// Strip punctuation; a hyphen between letters is part of the name
	// (double-barrelled surnames), anywhere else it is noise.
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range runes {
		switch {
		case r == '.' || r == '\'':
			// drop
		case r == '-':
			if i > 0 && i < len(runes)-1 && isNameRune(runes[i-1]) && isNameRune(runes[i+1]) {
				b.WriteRune(r)
			} else {
				b.WriteRune(' ')
			}
		case isNameRune(r) || r == ' ' || r == '\t':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	words := strings.Fields(b.String())
	for len(words) > 1 && personSuffixTokens[words[len(words)-1]] {
		words = words[:len(words)-1]
	}

	result := strings.Join(words, " ")
	n.cache.put(name, result)
	return result
}

// SplitFirstLast extracts the (first, last) token pair from a
// normalized name, dropping any middle tokens. Returns ok=false when
// the name has fewer than two tokens.
func SplitFirstLast(normalized string) (first, last string, ok bool) {
	words := strings.Fields(normalized)
	if len(words) < 2 {
		return "", "", false
	}
	return words[0], words[len(words)-1], true
}

func isNameRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r > 127
}
