// Package export renders a reconciliation batch's confirmed settlements into
// bank return files and flat formats for the company's ERP.
package export

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/conciliar-dev/conciliar/internal/bankfile"
	"github.com/conciliar-dev/conciliar/internal/model"
)

// Format names an export encoding.
type Format string

const (
	CNAB240 Format = "cnab240"
	CNAB400 Format = "cnab400"
	CSV     Format = "csv"
	JSON    Format = "json"
	Report  Format = "report"
)

var encoders = map[Format]func(io.Writer, Input) error{
	CNAB240: writeCNAB240,
	CNAB400: writeCNAB400,
	CSV:     writeCSV,
	JSON:    writeJSON,
	Report:  writeReport,
}

// Formats returns the supported format names, sorted.
func Formats() []string {
	out := make([]string, 0, len(encoders))
	for f := range encoders {
		out = append(out, string(f))
	}
	sort.Strings(out)
	return out
}

// ParseFormat resolves a format name case-insensitively.
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := encoders[f]; !ok {
		return "", fmt.Errorf("unknown export format %q (supported: %s)", name, strings.Join(Formats(), ", "))
	}
	return f, nil
}

// Extension is the file extension conventionally used for f.
func (f Format) Extension() string {
	switch f {
	case CNAB240, CNAB400:
		return ".ret"
	case Report:
		return ".txt"
	default:
		return "." + string(f)
	}
}

// Company identifies the owner of the exported books.
type Company struct {
	ID       string
	Name     string
	Document string // CNPJ or CPF
}

// Input is everything an export needs. Reconciled holds only locked matches.
type Input struct {
	Company     Company
	Account     model.BankAccount
	Batch       model.Batch
	Reconciled  []model.Reconciled
	Divergences []model.Divergence
	GeneratedAt time.Time
}

// Write encodes in as format f.
func Write(w io.Writer, f Format, in Input) error {
	enc, ok := encoders[f]
	if !ok {
		return fmt.Errorf("unknown export format %q", f)
	}
	for _, r := range in.Reconciled {
		if !r.Match.Locks() {
			return fmt.Errorf("match %s/%s is %s, only confirmed matches can be exported", r.Match.TransactionID, r.Match.EntryID, r.Match.Origin)
		}
	}
	return enc(w, in)
}

// settlement is the payment a reconciled match confirms.
type settlement struct {
	EntryID        string
	DocumentNumber string
	OurNumber      string
	Counterparty   string
	DueDate        time.Time
	PaymentDate    time.Time
	Amount         decimal.Decimal
	Confidence     int
	Origin         model.MatchOrigin
}

func settlements(in Input) []settlement {
	out := make([]settlement, 0, len(in.Reconciled))
	for _, r := range in.Reconciled {
		out = append(out, settlement{
			EntryID:        r.Entry.ID,
			DocumentNumber: r.Entry.DocumentNumber,
			OurNumber:      r.Entry.InternalReference,
			Counterparty:   r.Entry.Counterparty,
			DueDate:        r.Entry.DueDate,
			PaymentDate:    r.Transaction.EffectiveDate(),
			Amount:         r.Transaction.Amount,
			Confidence:     r.Match.Confidence,
			Origin:         r.Match.Origin,
		})
	}
	return out
}

func (in Input) remittance() bankfile.Remittance {
	return bankfile.Remittance{
		BankCode:        in.Account.BankCode,
		BankName:        in.Account.Name,
		CompanyDocument: in.Company.Document,
		CompanyName:     in.Company.Name,
		Agency:          in.Account.Agency,
		Account:         in.Account.Account,
		GeneratedAt:     in.GeneratedAt,
		Sequence:        1,
	}
}

func bankSettlements(in Input) []bankfile.Settlement {
	var out []bankfile.Settlement
	for _, s := range settlements(in) {
		out = append(out, bankfile.Settlement{
			DocumentNumber: s.DocumentNumber,
			OurNumber:      s.OurNumber,
			Counterparty:   s.Counterparty,
			DueDate:        s.DueDate,
			PaymentDate:    s.PaymentDate,
			Amount:         s.Amount,
		})
	}
	return out
}

func writeCNAB240(w io.Writer, in Input) error {
	data, err := bankfile.EncodeCNAB240(in.remittance(), bankSettlements(in))
	if err != nil {
		return fmt.Errorf("encoding cnab240: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func writeCNAB400(w io.Writer, in Input) error {
	data, err := bankfile.EncodeCNAB400(in.remittance(), bankSettlements(in))
	if err != nil {
		return fmt.Errorf("encoding cnab400: %w", err)
	}
	_, err = w.Write(data)
	return err
}

const brDate = "02/01/2006"

// commaDecimal renders d with two decimals and a decimal comma.
func commaDecimal(d decimal.Decimal) string {
	return strings.Replace(d.StringFixed(2), ".", ",", 1)
}
