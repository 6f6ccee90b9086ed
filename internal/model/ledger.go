package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerDirection says whether an entry is owed by or to the company.
type LedgerDirection string

const (
	Payable    LedgerDirection = "payable"
	Receivable LedgerDirection = "receivable"
)

// Valid reports whether d is a known ledger direction.
func (d LedgerDirection) Valid() bool {
	return d == Payable || d == Receivable
}

// Compatible reports whether a bank movement can settle an entry:
// credits settle receivables and debits settle payables.
func (d LedgerDirection) Compatible(tx Direction) bool {
	return (d == Receivable && tx == Credit) || (d == Payable && tx == Debit)
}

// LedgerStatus is the lifecycle state of a ledger entry.
type LedgerStatus string

const (
	LedgerOpen                LedgerStatus = "open"
	LedgerPartiallyReconciled LedgerStatus = "partially_reconciled"
	LedgerReconciled          LedgerStatus = "reconciled"
	LedgerCancelled           LedgerStatus = "cancelled"
)

// LedgerEntry is an accounts payable or receivable record awaiting bank confirmation.
type LedgerEntry struct {
	ID                string
	CompanyID         string
	Direction         LedgerDirection
	DueDate           time.Time
	IssueDate         time.Time // zero when absent
	PaymentDate       time.Time // zero when absent
	Description       string
	DocumentNumber    string
	InternalReference string // "nosso número"
	Barcode           string
	Counterparty      string
	CounterpartyID    string
	Amount            decimal.Decimal
	AmountPaid        decimal.Decimal // zero when unpaid
	Status            LedgerStatus
	Origin            string
	SourceLine        int
}

// EffectiveDate is the payment date when known, otherwise the due date.
func (e LedgerEntry) EffectiveDate() time.Time {
	if !e.PaymentDate.IsZero() {
		return e.PaymentDate
	}
	return e.DueDate
}
