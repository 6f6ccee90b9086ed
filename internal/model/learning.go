package model

import "time"

// ManualConfidence is the confidence recorded for a human-confirmed category.
const ManualConfidence = 100

// LearningRecord pairs a normalized description with the category a person chose for it.
type LearningRecord struct {
	CompanyID             string
	Description           string
	NormalizedDescription string
	CategoryID            int
	Confidence            int
	CreatedAt             time.Time
}
