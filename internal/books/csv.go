package books

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/conciliar-dev/conciliar/internal/model"
)

// TransactionHeader is the CSV header for transactions.csv.
const TransactionHeader = "id,company_id,account_id,operation_date,settlement_date,description,normalized_description,direction,amount,balance,status,category_id,confidence,transfer_group_id,external_id,hash,origin,source_line"

// EntryHeader is the CSV header for ledger.csv.
const EntryHeader = "id,company_id,direction,due_date,issue_date,payment_date,description,document_number,internal_reference,barcode,counterparty,counterparty_id,amount,amount_paid,status,origin,source_line"

const (
	dateFormat = "2006-01-02"

	txNumFields     = 18
	txColID         = 0
	txColCompany    = 1
	txColAccount    = 2
	txColOpDate     = 3
	txColSettleDate = 4
	txColDesc       = 5
	txColNormDesc   = 6
	txColDirection  = 7
	txColAmount     = 8
	txColBalance    = 9
	txColStatus     = 10
	txColCategory   = 11
	txColConf       = 12
	txColTransfer   = 13
	txColExternalID = 14
	txColHash       = 15
	txColOrigin     = 16
	txColSourceLine = 17

	leNumFields      = 17
	leColID          = 0
	leColCompany     = 1
	leColDirection   = 2
	leColDueDate     = 3
	leColIssueDate   = 4
	leColPaymentDate = 5
	leColDesc        = 6
	leColDocument    = 7
	leColReference   = 8
	leColBarcode     = 9
	leColCparty      = 10
	leColCpartyID    = 11
	leColAmount      = 12
	leColAmountPaid  = 13
	leColStatus      = 14
	leColOrigin      = 15
	leColSourceLine  = 16
)

// readRows reads a CSV with a header row and unmarshals every data row.
func readRows[T any](r io.Reader, numFields int, unmarshal func([]string) (T, error)) ([]T, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	// Skip header row.
	var out []T
	for i, rec := range records[1:] {
		v, err := unmarshal(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// writeRows writes header then one row per value.
func writeRows[T any](w io.Writer, header string, values []T, marshal func(T) []string) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, v := range values {
		if err := cw.Write(marshal(v)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// appendOnly writes rows without a header.
func appendOnly[T any](w io.Writer, values []T, marshal func(T) []string) error {
	cw := csv.NewWriter(w)
	for i, v := range values {
		if err := cw.Write(marshal(v)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadTransactions reads all rows from a transactions.csv reader.
func ReadTransactions(r io.Reader) ([]model.BankTransaction, error) {
	txns, err := readRows(r, txNumFields, UnmarshalTransaction)
	if err != nil {
		return nil, fmt.Errorf("reading transactions CSV: %w", err)
	}
	return txns, nil
}

// WriteTransactions writes transactions (including header).
func WriteTransactions(w io.Writer, txns []model.BankTransaction) error {
	return writeRows(w, TransactionHeader, txns, MarshalTransaction)
}

// ReadEntries reads all rows from a ledger.csv reader.
func ReadEntries(r io.Reader) ([]model.LedgerEntry, error) {
	entries, err := readRows(r, leNumFields, UnmarshalEntry)
	if err != nil {
		return nil, fmt.Errorf("reading ledger CSV: %w", err)
	}
	return entries, nil
}

// WriteEntries writes ledger entries (including header).
func WriteEntries(w io.Writer, entries []model.LedgerEntry) error {
	return writeRows(w, EntryHeader, entries, MarshalEntry)
}

// MarshalTransaction converts a BankTransaction to a CSV row.
func MarshalTransaction(tx model.BankTransaction) []string {
	row := make([]string, txNumFields)
	row[txColID] = tx.ID
	row[txColCompany] = tx.CompanyID
	row[txColAccount] = tx.AccountID
	row[txColOpDate] = formatTime(tx.OperationDate)
	row[txColSettleDate] = formatTime(tx.SettlementDate)
	row[txColDesc] = tx.Description
	row[txColNormDesc] = tx.NormalizedDescription
	row[txColDirection] = string(tx.Direction)
	row[txColAmount] = tx.Amount.StringFixed(2)
	if tx.HasBalance {
		row[txColBalance] = tx.Balance.StringFixed(2)
	}
	row[txColStatus] = string(tx.Status)
	if tx.CategoryID != 0 {
		row[txColCategory] = strconv.Itoa(tx.CategoryID)
	}
	if tx.Confidence != 0 {
		row[txColConf] = strconv.Itoa(tx.Confidence)
	}
	row[txColTransfer] = tx.TransferGroupID
	row[txColExternalID] = tx.ExternalID
	row[txColHash] = tx.Hash
	row[txColOrigin] = tx.Origin
	if tx.SourceLine != 0 {
		row[txColSourceLine] = strconv.Itoa(tx.SourceLine)
	}
	return row
}

// UnmarshalTransaction converts a CSV row to a BankTransaction.
func UnmarshalTransaction(record []string) (model.BankTransaction, error) {
	if len(record) != txNumFields {
		return model.BankTransaction{}, fmt.Errorf("expected %d fields, got %d", txNumFields, len(record))
	}

	opDate, err := parseTime(record[txColOpDate])
	if err != nil {
		return model.BankTransaction{}, fmt.Errorf("parsing operation_date %q: %w", record[txColOpDate], err)
	}
	settleDate, err := parseOptionalTime(record[txColSettleDate])
	if err != nil {
		return model.BankTransaction{}, fmt.Errorf("parsing settlement_date %q: %w", record[txColSettleDate], err)
	}
	amount, err := decimal.NewFromString(record[txColAmount])
	if err != nil {
		return model.BankTransaction{}, fmt.Errorf("parsing amount %q: %w", record[txColAmount], err)
	}

	tx := model.BankTransaction{
		ID:                    record[txColID],
		CompanyID:             record[txColCompany],
		AccountID:             record[txColAccount],
		OperationDate:         opDate,
		SettlementDate:        settleDate,
		Description:           record[txColDesc],
		NormalizedDescription: record[txColNormDesc],
		Direction:             model.Direction(record[txColDirection]),
		Amount:                amount,
		Status:                model.TransactionStatus(record[txColStatus]),
		TransferGroupID:       record[txColTransfer],
		ExternalID:            record[txColExternalID],
		Hash:                  record[txColHash],
		Origin:                record[txColOrigin],
	}
	if record[txColBalance] != "" {
		tx.Balance, err = decimal.NewFromString(record[txColBalance])
		if err != nil {
			return model.BankTransaction{}, fmt.Errorf("parsing balance %q: %w", record[txColBalance], err)
		}
		tx.HasBalance = true
	}
	if tx.CategoryID, err = optionalInt(record[txColCategory]); err != nil {
		return model.BankTransaction{}, fmt.Errorf("parsing category_id %q: %w", record[txColCategory], err)
	}
	if tx.Confidence, err = optionalInt(record[txColConf]); err != nil {
		return model.BankTransaction{}, fmt.Errorf("parsing confidence %q: %w", record[txColConf], err)
	}
	if tx.SourceLine, err = optionalInt(record[txColSourceLine]); err != nil {
		return model.BankTransaction{}, fmt.Errorf("parsing source_line %q: %w", record[txColSourceLine], err)
	}
	return tx, nil
}

// MarshalEntry converts a LedgerEntry to a CSV row.
func MarshalEntry(e model.LedgerEntry) []string {
	row := make([]string, leNumFields)
	row[leColID] = e.ID
	row[leColCompany] = e.CompanyID
	row[leColDirection] = string(e.Direction)
	row[leColDueDate] = formatTime(e.DueDate)
	row[leColIssueDate] = formatTime(e.IssueDate)
	row[leColPaymentDate] = formatTime(e.PaymentDate)
	row[leColDesc] = e.Description
	row[leColDocument] = e.DocumentNumber
	row[leColReference] = e.InternalReference
	row[leColBarcode] = e.Barcode
	row[leColCparty] = e.Counterparty
	row[leColCpartyID] = e.CounterpartyID
	row[leColAmount] = e.Amount.StringFixed(2)
	if !e.AmountPaid.IsZero() {
		row[leColAmountPaid] = e.AmountPaid.StringFixed(2)
	}
	row[leColStatus] = string(e.Status)
	row[leColOrigin] = e.Origin
	if e.SourceLine != 0 {
		row[leColSourceLine] = strconv.Itoa(e.SourceLine)
	}
	return row
}

// UnmarshalEntry converts a CSV row to a LedgerEntry.
func UnmarshalEntry(record []string) (model.LedgerEntry, error) {
	if len(record) != leNumFields {
		return model.LedgerEntry{}, fmt.Errorf("expected %d fields, got %d", leNumFields, len(record))
	}

	due, err := parseTime(record[leColDueDate])
	if err != nil {
		return model.LedgerEntry{}, fmt.Errorf("parsing due_date %q: %w", record[leColDueDate], err)
	}
	issue, err := parseOptionalTime(record[leColIssueDate])
	if err != nil {
		return model.LedgerEntry{}, fmt.Errorf("parsing issue_date %q: %w", record[leColIssueDate], err)
	}
	paid, err := parseOptionalTime(record[leColPaymentDate])
	if err != nil {
		return model.LedgerEntry{}, fmt.Errorf("parsing payment_date %q: %w", record[leColPaymentDate], err)
	}
	amount, err := decimal.NewFromString(record[leColAmount])
	if err != nil {
		return model.LedgerEntry{}, fmt.Errorf("parsing amount %q: %w", record[leColAmount], err)
	}

	e := model.LedgerEntry{
		ID:                record[leColID],
		CompanyID:         record[leColCompany],
		Direction:         model.LedgerDirection(record[leColDirection]),
		DueDate:           due,
		IssueDate:         issue,
		PaymentDate:       paid,
		Description:       record[leColDesc],
		DocumentNumber:    record[leColDocument],
		InternalReference: record[leColReference],
		Barcode:           record[leColBarcode],
		Counterparty:      record[leColCparty],
		CounterpartyID:    record[leColCpartyID],
		Amount:            amount,
		Status:            model.LedgerStatus(record[leColStatus]),
		Origin:            record[leColOrigin],
	}
	if record[leColAmountPaid] != "" {
		e.AmountPaid, err = decimal.NewFromString(record[leColAmountPaid])
		if err != nil {
			return model.LedgerEntry{}, fmt.Errorf("parsing amount_paid %q: %w", record[leColAmountPaid], err)
		}
	}
	if e.SourceLine, err = optionalInt(record[leColSourceLine]); err != nil {
		return model.LedgerEntry{}, fmt.Errorf("parsing source_line %q: %w", record[leColSourceLine], err)
	}
	return e, nil
}

// formatTime writes a bare date for UTC midnights and RFC 3339 otherwise,
// so statement times of day survive a round trip.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	if t.Location() == time.UTC && t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(dateFormat)
	}
	return t.Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	if len(s) == len(dateFormat) {
		return time.Parse(dateFormat, s)
	}
	return time.Parse(time.RFC3339, s)
}

func parseOptionalTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return parseTime(s)
}

func optionalInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
