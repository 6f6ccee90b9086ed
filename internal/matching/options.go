package matching

// Options holds the acceptance thresholds of each phase. Scores are 0-100.
type Options struct {
	IdentifierMin  int // phase 1: accept
	IdentifierAuto int // phase 1: automatic
	ValueDateMin   int // phase 2: suggest
	ValueDateAuto  int // phase 2: automatic
	SimilarityMin  int // phase 3: suggest
	SimilarityAuto int // phase 3: automatic
	// MinSimilarity rejects phase 3 candidates whose descriptions share
	// less than this fraction of words.
	MinSimilarity float64
}

// DefaultOptions returns the stock thresholds.
func DefaultOptions() Options {
	return Options{
		IdentifierMin:  70,
		IdentifierAuto: 85,
		ValueDateMin:   60,
		ValueDateAuto:  85,
		SimilarityMin:  60,
		SimilarityAuto: 80,
		MinSimilarity:  0.3,
	}
}
