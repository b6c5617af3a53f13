package similarity

import (
	"math"
	"testing"
)

// TestEditDistance tests edit distance values and symmetry
func TestEditDistance(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		expected int
	}{
		{"equal strings", "smith", "smith", 0},
		{"both empty", "", "", 0},
		{"one empty", "", "abc", 3},
		{"single substitution", "smith", "smyth", 1},
		{"insertion", "jon", "john", 1},
		{"classic kitten", "kitten", "sitting", 3},
		{"unicode runes", "müller", "muller", 1},
		{"completely different", "abc", "xyz", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EditDistance(tt.a, tt.b); got != tt.expected {
				t.Errorf("EditDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.expected)
			}
			// Distance is symmetric
			if got := EditDistance(tt.b, tt.a); got != tt.expected {
				t.Errorf("EditDistance(%q, %q) = %d, want %d (symmetry)", tt.b, tt.a, got, tt.expected)
			}
		})
	}
}

// TestRatio tests similarity ratio values including the empty-string edges
func TestRatio(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		expected float64
	}{
		{"equal strings", "john smith", "john smith", 1.0},
		{"both empty", "", "", 1.0},
		{"first empty", "", "smith", 0.0},
		{"second empty", "smith", "", 0.0},
		{"one char off", "smith", "smyth", 0.8},
		{"half different", "ab", "ax", 0.5},
		{"disjoint", "abc", "xyz", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Ratio(tt.a, tt.b)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("Ratio(%q, %q) = %f, want %f", tt.a, tt.b, got, tt.expected)
			}
			rev := Ratio(tt.b, tt.a)
			if math.Abs(got-rev) > 1e-9 {
				t.Errorf("Ratio not symmetric: %f vs %f", got, rev)
			}
		})
	}
}

// TestRatioBounds checks the ratio always lands in [0, 1]
func TestRatioBounds(t *testing.T) {
	pairs := [][2]string{
		{"a", "completely different long string"},
		{"robert johnson", "bob johnson"},
		{"", "x"},
		{"acme corporation", "acme corp"},
	}
	for _, p := range pairs {
		r := Ratio(p[0], p[1])
		if r < 0.0 || r > 1.0 {
			t.Errorf("Ratio(%q, %q) = %f out of [0, 1]", p[0], p[1], r)
		}
	}
}
