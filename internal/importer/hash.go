package importer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/conciliar-dev/conciliar/internal/model"
)

// TransactionHash is the dedup key of a bank transaction: a sha256 over
// company, operation date, description and signed amount.
func TransactionHash(companyID string, tx model.BankTransaction) string {
	amount := tx.Amount
	if tx.Direction == model.Debit {
		amount = amount.Neg()
	}
	key := fmt.Sprintf("%s|%s|%s|%s", companyID, tx.OperationDate.Format("2006-01-02"),
		strings.TrimSpace(tx.Description), amount.StringFixed(2))
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// EntryKey identifies a ledger entry across repeated imports of the same file.
func EntryKey(e model.LedgerEntry) string {
	return strings.Join([]string{
		string(e.Direction),
		e.DueDate.Format("2006-01-02"),
		e.DocumentNumber,
		e.InternalReference,
		e.Barcode,
		e.Amount.StringFixed(2),
	}, "|")
}

// Dedup drops transactions whose hash is in seen, or repeated within txns,
// filling in Hash on the ones it keeps. It returns the kept transactions and
// the number dropped.
func Dedup(companyID string, txns []model.BankTransaction, seen map[string]bool) ([]model.BankTransaction, int) {
	kept := make([]model.BankTransaction, 0, len(txns))
	dropped := 0
	local := make(map[string]bool, len(txns))
	for _, tx := range txns {
		h := TransactionHash(companyID, tx)
		if tx.ExternalID != "" {
			// FITIDs tell apart otherwise identical lines.
			h = TransactionHash(companyID+"|"+tx.ExternalID, tx)
		}
		if seen[h] || local[h] {
			dropped++
			continue
		}
		local[h] = true
		tx.Hash = h
		kept = append(kept, tx)
	}
	return kept, dropped
}

// DedupEntries drops ledger entries whose key is in seen or repeated.
func DedupEntries(entries []model.LedgerEntry, seen map[string]bool) ([]model.LedgerEntry, int) {
	kept := make([]model.LedgerEntry, 0, len(entries))
	dropped := 0
	local := make(map[string]bool, len(entries))
	for _, e := range entries {
		k := EntryKey(e)
		if seen[k] || local[k] {
			dropped++
			continue
		}
		local[k] = true
		kept = append(kept, e)
	}
	return kept, dropped
}
