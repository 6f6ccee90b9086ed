// Package learning stores the category choices people make so the
// classifier can reuse them.
package learning

import (
	"context"

	"github.com/conciliar-dev/conciliar/internal/model"
)

// DefaultLimit bounds the history snapshot handed to the classifier.
const DefaultLimit = 1000

// Store reads and appends learning records.
type Store interface {
	// Recent returns up to limit records for companyID, newest first.
	Recent(ctx context.Context, companyID string, limit int) ([]model.LearningRecord, error)
	Append(ctx context.Context, rec model.LearningRecord) error
}
