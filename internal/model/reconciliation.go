package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MatchOrigin says whether a pairing was accepted without review.
type MatchOrigin string

const (
	MatchAutomatic MatchOrigin = "automatic"
	MatchSuggested MatchOrigin = "suggested"
	MatchApproved  MatchOrigin = "approved"
	MatchRejected  MatchOrigin = "rejected"
)

// Match pairs a bank transaction with a ledger entry.
type Match struct {
	TransactionID string
	EntryID       string
	Confidence    int
	Origin        MatchOrigin
	Phase         int
	Reasons       []string
	AmountDelta   decimal.Decimal // absolute difference
	DaysApart     int
}

// Locks reports whether the match consumes both participants.
func (m Match) Locks() bool {
	return m.Origin == MatchAutomatic || m.Origin == MatchApproved
}

// DivergenceKind classifies an inconsistency found by a reconciliation run.
type DivergenceKind string

const (
	DivergenceValueMismatch    DivergenceKind = "value_mismatch"
	DivergenceDateMismatch     DivergenceKind = "date_mismatch"
	DivergenceNotFoundInBank   DivergenceKind = "not_found_in_bank"
	DivergenceNotFoundInLedger DivergenceKind = "not_found_in_ledger"
	DivergenceDuplicate        DivergenceKind = "duplicate"
	DivergenceOther            DivergenceKind = "other"
)

// Divergence is an unmatched participant or inconsistency recorded for a batch.
type Divergence struct {
	BatchID       string
	Kind          DivergenceKind
	TransactionID string
	EntryID       string
	Description   string
	Expected      decimal.Decimal
	Found         decimal.Decimal
}

// BatchStatus is the run state of a reconciliation batch.
type BatchStatus string

const (
	BatchProcessing BatchStatus = "processing"
	BatchDone       BatchStatus = "done"
	BatchError      BatchStatus = "error"
)

// Batch groups one reconciliation run.
type Batch struct {
	ID           string
	CompanyID    string
	AccountID    string
	From         time.Time
	To           time.Time
	Transactions int
	Entries      int
	Matched      int
	Divergent    int
	MatchRate    decimal.Decimal // percent, two decimals
	Status       BatchStatus
	CreatedAt    time.Time
}

// Reconciled is a locked match together with both of its participants.
type Reconciled struct {
	Match       Match
	Transaction BankTransaction
	Entry       LedgerEntry
}
