package books

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/conciliar-dev/conciliar/internal/id"
	"github.com/conciliar-dev/conciliar/internal/model"
)

// Validation rule names.
const (
	RuleAmount    = "amount"
	RulePrecision = "precision"
	RuleDirection = "direction"
	RuleMonth     = "month"
	RuleID        = "id"
)

// ValidationError describes a single rule violation on a stored record.
type ValidationError struct {
	Rule        string
	RecordID    string
	Description string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s [%s]: %s", e.Rule, e.RecordID, e.Description)
}

var hundred = decimal.NewFromInt(100)

func checkAmount(recordID, field string, amount decimal.Decimal) []ValidationError {
	var errs []ValidationError
	if amount.IsNegative() {
		errs = append(errs, ValidationError{
			Rule:        RuleAmount,
			RecordID:    recordID,
			Description: fmt.Sprintf("%s %s is negative", field, amount),
		})
	}
	if scaled := amount.Mul(hundred); !scaled.Equal(scaled.Floor()) {
		errs = append(errs, ValidationError{
			Rule:        RulePrecision,
			RecordID:    recordID,
			Description: fmt.Sprintf("%s %s has more than 2 decimal places", field, amount),
		})
	}
	return errs
}

func checkIDs(ids []string, prefix string, year, month int) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool, len(ids))
	for _, recID := range ids {
		if seen[recID] {
			errs = append(errs, ValidationError{Rule: RuleID, RecordID: recID, Description: "duplicate ID"})
			continue
		}
		seen[recID] = true

		p, y, m, _, err := id.ParseRecordID(recID)
		if err != nil {
			errs = append(errs, ValidationError{Rule: RuleID, RecordID: recID, Description: err.Error()})
			continue
		}
		if p != prefix || y != year || m != month {
			errs = append(errs, ValidationError{
				Rule:        RuleID,
				RecordID:    recID,
				Description: fmt.Sprintf("ID does not belong to %s %04d-%02d", prefix, year, month),
			})
		}
	}
	return errs
}

func checkMonth(recordID string, date, want time.Time) []ValidationError {
	if date.Year() == want.Year() && date.Month() == want.Month() {
		return nil
	}
	return []ValidationError{{
		Rule:        RuleMonth,
		RecordID:    recordID,
		Description: fmt.Sprintf("date %s not in %s", date.Format(dateFormat), want.Format("2006-01")),
	}}
}

// ValidateTransactions checks the transactions stored in one month file.
func ValidateTransactions(txns []model.BankTransaction, year, month int) []ValidationError {
	var errs []ValidationError
	want := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	ids := make([]string, 0, len(txns))
	for _, tx := range txns {
		ids = append(ids, tx.ID)
		errs = append(errs, checkAmount(tx.ID, "amount", tx.Amount)...)
		if !tx.Direction.Valid() {
			errs = append(errs, ValidationError{
				Rule:        RuleDirection,
				RecordID:    tx.ID,
				Description: fmt.Sprintf("unknown direction %q", tx.Direction),
			})
		}
		errs = append(errs, checkMonth(tx.ID, tx.OperationDate, want)...)
	}
	return append(errs, checkIDs(ids, id.TransactionPrefix, year, month)...)
}

// ValidateEntries checks the ledger entries stored in one month file.
func ValidateEntries(entries []model.LedgerEntry, year, month int) []ValidationError {
	var errs []ValidationError
	want := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
		errs = append(errs, checkAmount(e.ID, "amount", e.Amount)...)
		errs = append(errs, checkAmount(e.ID, "amount_paid", e.AmountPaid)...)
		if !e.Direction.Valid() {
			errs = append(errs, ValidationError{
				Rule:        RuleDirection,
				RecordID:    e.ID,
				Description: fmt.Sprintf("unknown direction %q", e.Direction),
			})
		}
		errs = append(errs, checkMonth(e.ID, e.DueDate, want)...)
	}
	return append(errs, checkIDs(ids, id.EntryPrefix, year, month)...)
}
