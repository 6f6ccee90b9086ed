package bankfile

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/conciliar-dev/conciliar/internal/model"
)

// CNAB400Width is the length of every CNAB 400 line.
const CNAB400Width = 400

// CNAB 400 record types, read from offset 0.
const (
	cnab400Header  = '0'
	cnab400Detail  = '1'
	cnab400Trailer = '9'
)

// Occurrence codes that mean the title was settled.
const (
	occurrenceSettled        = "06"
	occurrenceSettledAtAgent = "17"
)

var (
	c400RecordType = Field{"record_type", 0, 1, Numeric}
	c400Sequence   = Field{"sequence", 394, 6, Numeric}
)

// Header (record 0).
var (
	c400HdrOperation   = Field{"operation", 1, 1, Numeric}
	c400HdrLiteral     = Field{"literal", 2, 7, Text}
	c400HdrService     = Field{"service", 9, 2, Numeric}
	c400HdrServiceName = Field{"service_name", 11, 15, Text}
	c400HdrCompanyCode = Field{"company_code", 26, 20, Numeric}
	c400HdrCompanyName = Field{"company_name", 46, 30, Text}
	c400HdrBank        = Field{"bank_code", 76, 3, Numeric}
	c400HdrBankName    = Field{"bank_name", 79, 15, Text}
	c400HdrDate        = Field{"generated_date", 94, 6, Date6}
	c400HdrFileNumber  = Field{"file_number", 108, 5, Numeric}
)

// Detail (record 1).
var (
	c400DetInscriptionType = Field{"inscription_type", 1, 2, Numeric}
	c400DetCompanyDocument = Field{"company_document", 3, 14, Numeric}
	c400DetAgency          = Field{"agency", 17, 4, Numeric}
	c400DetZeros           = Field{"zeros", 21, 2, Numeric}
	c400DetAccount         = Field{"account", 23, 7, Numeric}
	c400DetAccountDigit    = Field{"account_digit", 30, 1, Text}
	c400DetCompanyUse      = Field{"company_use", 37, 25, Text}
	c400DetOurNumber       = Field{"our_number", 62, 8, Numeric}
	c400DetWallet          = Field{"wallet", 107, 1, Numeric}
	c400DetOccurrence      = Field{"occurrence", 108, 2, Numeric}
	c400DetOccurrenceDate  = Field{"occurrence_date", 110, 6, Date6}
	c400DetDueDate         = Field{"due_date", 120, 6, Date6}
	c400DetAmount          = Field{"title_amount", 126, 13, Numeric}
	c400DetBank            = Field{"collecting_bank", 139, 3, Numeric}
	c400DetCollectAgency   = Field{"collecting_agency", 142, 5, Numeric}
	c400DetCreditDate      = Field{"credit_date", 175, 6, Date6}
	c400DetPaidAmount      = Field{"paid_amount", 253, 13, Numeric}
)

// Trailer (record 9).
var (
	c400TrlOperation = Field{"operation", 1, 1, Numeric}
	c400TrlService   = Field{"service", 2, 2, Numeric}
	c400TrlBank      = Field{"bank_code", 4, 3, Numeric}
	c400TrlTitles    = Field{"titles", 17, 8, Numeric}
	c400TrlTotal     = Field{"total_amount", 25, 14, Numeric}
)

// CNAB400Header holds the header fields.
type CNAB400Header struct {
	BankCode    string
	BankName    string
	CompanyCode string
	CompanyName string
	GeneratedAt time.Time
}

// CNAB400Detail is one collection title.
type CNAB400Detail struct {
	Line            int
	CompanyDocument string
	Agency          string
	Account         string
	DocumentNumber  string // company control number
	OurNumber       string
	Occurrence      string
	DueDate         time.Time
	Amount          decimal.Decimal
	PaymentDate     time.Time
	PaidAmount      decimal.Decimal
}

// Settled reports whether the occurrence code marks the title as paid.
func (d CNAB400Detail) Settled() bool {
	return d.Occurrence == occurrenceSettled || d.Occurrence == occurrenceSettledAtAgent
}

// CNAB400File is a decoded CNAB 400 file.
type CNAB400File struct {
	Header  CNAB400Header
	Details []CNAB400Detail
	Errors  []error
}

// SniffCNAB400 reports whether the first non-blank line is a 400-character
// header record.
func SniffCNAB400(data []byte) bool {
	line, ok := firstLine(data)
	return ok && len(line) == CNAB400Width && line[0] == cnab400Header
}

// DecodeCNAB400 decodes a CNAB 400 collection return file, collecting
// per-line errors. It fails only when no line is well formed.
func DecodeCNAB400(data []byte) (*CNAB400File, error) {
	f := &CNAB400File{}
	wellFormed := 0
	lines := splitLines(data)
	for _, l := range lines {
		if len(l.text) != CNAB400Width {
			f.Errors = append(f.Errors, &MalformedLineError{Line: l.num, Length: len(l.text), Want: CNAB400Width})
			continue
		}
		wellFormed++
		if err := f.decodeLine(l, len(lines)); err != nil {
			f.Errors = append(f.Errors, withLine(err, l.num))
		}
	}
	if wellFormed == 0 {
		return nil, ErrNoRecords
	}
	return f, nil
}

func (f *CNAB400File) decodeLine(l numberedLine, total int) error {
	line := l.text
	switch line[0] {
	case cnab400Header:
		date, err := c400HdrDate.Date(line)
		if err != nil {
			return err
		}
		f.Header = CNAB400Header{
			BankCode:    c400HdrBank.Text(line),
			BankName:    c400HdrBankName.Text(line),
			CompanyCode: c400HdrCompanyCode.Text(line),
			CompanyName: c400HdrCompanyName.Text(line),
			GeneratedAt: date,
		}
	case cnab400Detail:
		d, err := decodeCNAB400Detail(line)
		if err != nil {
			return err
		}
		d.Line = l.num
		f.Details = append(f.Details, d)
	case cnab400Trailer:
		declared, err := c400Sequence.Int(line)
		if err != nil {
			return err
		}
		if declared != total {
			return &CountMismatchError{Line: l.num, Declared: declared, Counted: total}
		}
	}
	return nil
}

func decodeCNAB400Detail(line string) (CNAB400Detail, error) {
	d := CNAB400Detail{
		CompanyDocument: c400DetCompanyDocument.Text(line),
		Agency:          c400DetAgency.Text(line),
		Account:         c400DetAccount.Text(line),
		DocumentNumber:  c400DetCompanyUse.Text(line),
		OurNumber:       c400DetOurNumber.Text(line),
		Occurrence:      c400DetOccurrence.Text(line),
	}
	var err error
	if d.DueDate, err = c400DetDueDate.Date(line); err != nil {
		return d, err
	}
	if d.Amount, err = c400DetAmount.Cents(line); err != nil {
		return d, err
	}
	if !d.Settled() {
		return d, nil
	}
	if d.PaymentDate, err = c400DetOccurrenceDate.Date(line); err != nil {
		return d, err
	}
	if d.PaidAmount, err = c400DetPaidAmount.Cents(line); err != nil {
		return d, err
	}
	return d, nil
}

// Entry converts a detail into a receivable ledger entry.
func (d CNAB400Detail) Entry() model.LedgerEntry {
	ref := d.OurNumber
	if ref == "" {
		ref = d.DocumentNumber
	}
	e := model.LedgerEntry{
		Direction:         model.Receivable,
		DueDate:           d.DueDate,
		Description:       fmt.Sprintf("Titulo %s", ref),
		DocumentNumber:    d.DocumentNumber,
		InternalReference: d.OurNumber,
		Amount:            d.Amount,
		Status:            model.LedgerOpen,
		Origin:            FormatCNAB400,
		SourceLine:        d.Line,
	}
	if d.Settled() {
		e.PaymentDate = d.PaymentDate
		e.AmountPaid = d.PaidAmount
	}
	return e
}

// Result converts the file into the format-independent Result. Agency and
// account come from the first detail.
func (f *CNAB400File) Result() *Result {
	r := &Result{
		Format:   FormatCNAB400,
		BankCode: f.Header.BankCode,
		Errors:   f.Errors,
	}
	for _, d := range f.Details {
		if r.Agency == "" {
			r.Agency, r.Account = d.Agency, d.Account
		}
		r.Entries = append(r.Entries, d.Entry())
	}
	return r
}

// EncodeCNAB400 writes a CNAB 400 collection return file with one settled
// detail per settlement. The trailer sequence equals details + 2. A
// settlement whose our number is not at most 8 digits is rejected, since the
// field cannot carry it.
func EncodeCNAB400(rem Remittance, settlements []Settlement) ([]byte, error) {
	if err := rem.validate(); err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(settlements)+2)

	h := newRecord(CNAB400Width)
	h.put(c400RecordType, string(cnab400Header))
	h.put(c400HdrOperation, "2")
	h.put(c400HdrLiteral, "RETORNO")
	h.put(c400HdrService, "01")
	h.put(c400HdrServiceName, "COBRANCA")
	h.put(c400HdrCompanyCode, digits(rem.Agency)+"00"+digits(rem.Account))
	h.put(c400HdrCompanyName, rem.CompanyName)
	h.put(c400HdrBank, rem.BankCode)
	h.put(c400HdrBankName, rem.BankName)
	h.putDate(c400HdrDate, rem.GeneratedAt)
	h.putInt(c400HdrFileNumber, max(rem.Sequence, 1))
	h.putInt(c400Sequence, 1)
	lines = append(lines, h.String())

	total := decimal.Zero
	for i, s := range settlements {
		if s.Amount.IsNegative() {
			return nil, fmt.Errorf("settlement %d: negative amount %s", i+1, s.Amount.StringFixed(2))
		}
		line, err := cnab400DetailRecord(rem, s, i+2)
		if err != nil {
			return nil, fmt.Errorf("settlement %d: %w", i+1, err)
		}
		lines = append(lines, line)
		total = total.Add(s.Amount)
	}

	t := newRecord(CNAB400Width)
	t.put(c400RecordType, string(cnab400Trailer))
	t.put(c400TrlOperation, "2")
	t.put(c400TrlService, "01")
	t.put(c400TrlBank, rem.BankCode)
	t.putInt(c400TrlTitles, len(settlements))
	t.putCents(c400TrlTotal, total)
	t.putInt(c400Sequence, len(settlements)+2)
	lines = append(lines, t.String())

	return []byte(strings.Join(lines, "\r\n") + "\r\n"), nil
}

func cnab400DetailRecord(rem Remittance, s Settlement, seq int) (string, error) {
	ourNumber := strings.TrimSpace(s.OurNumber)
	if len(ourNumber) > c400DetOurNumber.Len || digits(ourNumber) != ourNumber {
		return "", &FieldError{Field: c400DetOurNumber.Name, Value: s.OurNumber, Err: fmt.Errorf("want at most %d digits", c400DetOurNumber.Len)}
	}
	due := s.DueDate
	if due.IsZero() {
		due = s.PaymentDate
	}
	r := newRecord(CNAB400Width)
	r.put(c400RecordType, string(cnab400Detail))
	r.put(c400DetInscriptionType, "0"+inscriptionType(rem.CompanyDocument))
	r.put(c400DetCompanyDocument, digits(rem.CompanyDocument))
	r.put(c400DetAgency, digits(rem.Agency))
	r.put(c400DetZeros, "0")
	r.put(c400DetAccount, digits(rem.Account))
	r.put(c400DetAccountDigit, "0")
	r.put(c400DetCompanyUse, s.DocumentNumber)
	r.put(c400DetOurNumber, ourNumber)
	r.put(c400DetWallet, "0")
	r.put(c400DetOccurrence, occurrenceSettled)
	r.putDate(c400DetOccurrenceDate, s.PaymentDate)
	r.putDate(c400DetDueDate, due)
	r.putCents(c400DetAmount, s.Amount)
	r.put(c400DetBank, rem.BankCode)
	r.put(c400DetCollectAgency, "0")
	r.putDate(c400DetCreditDate, s.PaymentDate)
	r.putCents(c400DetPaidAmount, s.Amount)
	r.putInt(c400Sequence, seq)
	return r.String(), nil
}
