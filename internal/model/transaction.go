package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the side of a bank movement.
type Direction string

const (
	Credit Direction = "credit"
	Debit  Direction = "debit"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == Credit || d == Debit
}

// TransactionStatus tracks classification and transfer state of a bank transaction.
type TransactionStatus string

const (
	TxPending                 TransactionStatus = "pending"
	TxAutomaticClassification TransactionStatus = "automatic_classification"
	TxManualClassification    TransactionStatus = "manual_classification"
	TxLowConfidence           TransactionStatus = "low_confidence"
	TxInternalTransfer        TransactionStatus = "internal_transfer"
)

// BankTransaction is one movement on a bank statement.
type BankTransaction struct {
	ID                    string
	CompanyID             string
	AccountID             string // empty when the statement has no owning account
	OperationDate         time.Time
	SettlementDate        time.Time // zero when absent
	Description           string
	NormalizedDescription string
	Direction             Direction
	Amount                decimal.Decimal // never negative
	Balance               decimal.Decimal
	HasBalance            bool
	Status                TransactionStatus
	CategoryID            int // 0 = unclassified
	Confidence            int
	TransferGroupID       string
	ExternalID            string // FITID for OFX statements
	Hash                  string
	Origin                string
	SourceLine            int
}

// EffectiveDate is the settlement date when known, otherwise the operation date.
func (t BankTransaction) EffectiveDate() time.Time {
	if !t.SettlementDate.IsZero() {
		return t.SettlementDate
	}
	return t.OperationDate
}
