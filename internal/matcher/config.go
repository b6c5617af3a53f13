package matcher

import "fmt"

// Config holds the classification thresholds for person-name matching.
//
// The defaults are deliberately conservative: a wrong automatic merge
// corrupts downstream history, while a missed one only lands in the
// review queue.
type Config struct {
	// AutoMergeThreshold is the minimum similarity for an automatic,
	// unsupervised merge. Similarity alone is never sufficient; auto
	// merge additionally requires shared context (see Classify).
	// Default: 0.95
	AutoMergeThreshold float64

	// ReviewThreshold is the minimum similarity to queue a pair for
	// human review. Default: 0.80
	ReviewThreshold float64
}

// DefaultConfig returns the default matching thresholds
func DefaultConfig() Config {
	return Config{
		AutoMergeThreshold: 0.95,
		ReviewThreshold:    0.80,
	}
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if c.AutoMergeThreshold < 0.0 || c.AutoMergeThreshold > 1.0 {
		return fmt.Errorf("auto_merge_threshold must be between 0.0 and 1.0 (got %.2f)", c.AutoMergeThreshold)
	}
	if c.ReviewThreshold < 0.0 || c.ReviewThreshold > 1.0 {
		return fmt.Errorf("review_threshold must be between 0.0 and 1.0 (got %.2f)", c.ReviewThreshold)
	}
	if c.ReviewThreshold > c.AutoMergeThreshold {
		return fmt.Errorf("review_threshold (%.2f) cannot exceed auto_merge_threshold (%.2f)",
			c.ReviewThreshold, c.AutoMergeThreshold)
	}
	return nil
}
