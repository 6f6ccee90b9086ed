// Package classify assigns accounting categories to bank transactions from
// the categories people picked for similar descriptions before.
package classify

import (
	"math"

	"github.com/conciliar-dev/conciliar/internal/model"
	"github.com/conciliar-dev/conciliar/internal/textnorm"
)

// Method names the rule that produced a classification.
type Method string

const (
	MethodExact      Method = "exact"
	MethodKeyword    Method = "keyword"
	MethodSimilarity Method = "similarity"
	MethodNone       Method = "none"
)

// Scoring constants.
const (
	ExactConfidence     = 100
	KeywordWeight       = 85
	KeywordMinimum      = 60
	SimilarityWeight    = 80
	SimilarityMinimum   = 50
	DefaultAutoMinimum  = 70
	DefaultLowMinimum   = 50
	DefaultHistoryLimit = 1000
)

// Result is the outcome of classifying one description. CategoryID is 0
// when nothing cleared its threshold.
type Result struct {
	CategoryID int
	Confidence int
	Method     Method
}

// Engine classifies descriptions against a read-only history snapshot
// ordered newest first.
type Engine struct {
	history []model.LearningRecord
}

// NewEngine returns an Engine over history, which must be newest first.
func NewEngine(history []model.LearningRecord) *Engine {
	normalized := make([]model.LearningRecord, len(history))
	for i, rec := range history {
		rec.NormalizedDescription = textnorm.Normalize(rec.NormalizedDescription)
		normalized[i] = rec
	}
	return &Engine{history: normalized}
}

// Classify returns the best category for description. An exact normalized
// match wins outright; otherwise keyword overlap is tried and, only when
// that finds nothing, edit-distance similarity.
func (e *Engine) Classify(description string) Result {
	desc := textnorm.Normalize(description)
	if desc == "" {
		return Result{Method: MethodNone}
	}

	for _, rec := range e.history {
		if rec.NormalizedDescription == desc {
			return Result{CategoryID: rec.CategoryID, Confidence: ExactConfidence, Method: MethodExact}
		}
	}

	best := Result{Method: MethodNone}
	for _, rec := range e.history {
		conf := scaled(textnorm.KeywordOverlap(desc, rec.NormalizedDescription), KeywordWeight)
		if conf >= KeywordMinimum && conf > best.Confidence {
			best = Result{CategoryID: rec.CategoryID, Confidence: conf, Method: MethodKeyword}
		}
	}
	if best.Confidence >= KeywordMinimum {
		return best
	}

	for _, rec := range e.history {
		conf := scaled(textnorm.EditSimilarity(desc, rec.NormalizedDescription), SimilarityWeight)
		if conf >= SimilarityMinimum && conf > best.Confidence {
			best = Result{CategoryID: rec.CategoryID, Confidence: conf, Method: MethodSimilarity}
		}
	}
	return best
}

func scaled(score float64, weight int) int {
	return int(math.Round(score * float64(weight)))
}

// Thresholds maps a confidence onto a transaction status.
type Thresholds struct {
	Auto int
	Low  int
}

// DefaultThresholds returns the stock status thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{Auto: DefaultAutoMinimum, Low: DefaultLowMinimum}
}

// StatusFor returns the status a transaction takes after classification
// with the given confidence.
func (t Thresholds) StatusFor(confidence int) model.TransactionStatus {
	switch {
	case confidence >= t.Auto:
		return model.TxAutomaticClassification
	case confidence >= t.Low:
		return model.TxLowConfidence
	default:
		return model.TxPending
	}
}
