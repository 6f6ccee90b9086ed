package bankfile

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/conciliar-dev/conciliar/internal/model"
)

// CNAB240Width is the length of every CNAB 240 line.
const CNAB240Width = 240

// CNAB 240 record types, read from offset 7.
const (
	cnab240FileHeader   = '0'
	cnab240BatchHeader  = '1'
	cnab240Detail       = '3'
	cnab240BatchTrailer = '5'
	cnab240FileTrailer  = '9'
)

var (
	c240Bank       = Field{"bank_code", 0, 3, Numeric}
	c240Lot        = Field{"lot", 3, 4, Numeric}
	c240RecordType = Field{"record_type", 7, 1, Numeric}
)

// File header (record 0).
var (
	c240HdrInscriptionType = Field{"inscription_type", 17, 1, Numeric}
	c240HdrCompanyDocument = Field{"company_document", 18, 14, Numeric}
	c240HdrAgreement       = Field{"agreement", 32, 20, Text}
	c240HdrAgency          = Field{"agency", 52, 5, Numeric}
	c240HdrAccount         = Field{"account", 58, 12, Numeric}
	c240HdrCompanyName     = Field{"company_name", 72, 30, Text}
	c240HdrBankName        = Field{"bank_name", 102, 30, Text}
	c240HdrFileCode        = Field{"file_code", 142, 1, Numeric}
	c240HdrDate            = Field{"generated_date", 143, 8, Date8}
	c240HdrTime            = Field{"generated_time", 151, 6, Numeric}
	c240HdrSequence        = Field{"file_sequence", 157, 6, Numeric}
	c240HdrLayout          = Field{"layout_version", 163, 3, Numeric}
	c240HdrDensity         = Field{"density", 166, 5, Numeric}
)

// Batch header (record 1).
var (
	c240LotOperation       = Field{"operation", 8, 1, Text}
	c240LotService         = Field{"service", 9, 2, Numeric}
	c240LotMethod          = Field{"method", 11, 2, Numeric}
	c240LotLayout          = Field{"layout_version", 13, 3, Numeric}
	c240LotInscriptionType = Field{"inscription_type", 17, 1, Numeric}
	c240LotCompanyDocument = Field{"company_document", 18, 15, Numeric}
	c240LotAgency          = Field{"agency", 53, 5, Numeric}
	c240LotAccount         = Field{"account", 59, 12, Numeric}
	c240LotCompanyName     = Field{"company_name", 73, 30, Text}
	c240LotSequence        = Field{"sequence", 183, 8, Numeric}
	c240LotDate            = Field{"recorded_date", 191, 8, Date8}
	c240LotCreditDate      = Field{"credit_date", 199, 8, Date8}
)

// Detail records (record 3), segments A and J.
var (
	c240DetSequence     = Field{"sequence", 8, 5, Numeric}
	c240DetSegment      = Field{"segment", 13, 1, Text}
	c240DetMovementType = Field{"movement_type", 14, 1, Numeric}
	c240DetMovementCode = Field{"movement_code", 15, 2, Numeric}

	c240AClearing      = Field{"clearing_house", 17, 3, Numeric}
	c240APayeeBank     = Field{"payee_bank", 20, 3, Numeric}
	c240APayeeAccount  = Field{"payee_account", 23, 20, Text}
	c240APayeeName     = Field{"payee_name", 43, 30, Text}
	c240ADocument      = Field{"document_number", 73, 20, Text}
	c240ADate          = Field{"payment_date", 93, 8, Date8}
	c240ACurrency      = Field{"currency", 101, 3, Text}
	c240AQuantity      = Field{"currency_quantity", 104, 15, Numeric}
	c240AAmount        = Field{"payment_amount", 119, 15, Numeric}
	c240ABankReference = Field{"bank_reference", 134, 20, Text}
	c240ARealDate      = Field{"real_date", 154, 8, Date8}
	c240ARealAmount    = Field{"real_amount", 162, 15, Numeric}
	c240AInfo          = Field{"information", 177, 40, Text}
	c240AOccurrences   = Field{"occurrences", 230, 10, Text}
	c240JBarcode       = Field{"barcode", 23, 44, Text}
	c240JOurNumber     = Field{"our_number", 73, 20, Text}
	c240JDueDate       = Field{"due_date", 93, 8, Date8}
	c240JAmount        = Field{"title_amount", 101, 15, Numeric}
)

// Batch trailer (record 5) and file trailer (record 9).
var (
	c240TrlLotRecords  = Field{"lot_records", 17, 6, Numeric}
	c240TrlLotAmount   = Field{"lot_amount", 23, 18, Numeric}
	c240TrlLotQuantity = Field{"lot_quantity", 41, 18, Numeric}
	c240TrlFileLots    = Field{"file_lots", 17, 6, Numeric}
	c240TrlFileRecords = Field{"file_records", 23, 6, Numeric}
)

// CNAB240Header holds the file and batch header fields.
type CNAB240Header struct {
	BankCode        string
	BankName        string
	CompanyDocument string
	CompanyName     string
	Agency          string
	Account         string
	GeneratedAt     time.Time
	Sequence        int
}

// CNAB240Detail is one segment A (payment) or J (bill) record.
type CNAB240Detail struct {
	Line           int
	Segment        string
	DocumentNumber string
	OurNumber      string // bank reference on segment A
	Barcode        string
	Payee          string
	DueDate        time.Time
	Amount         decimal.Decimal
	PaymentDate    time.Time
	PaidAmount     decimal.Decimal
	Information    string
}

// CNAB240File is a decoded CNAB 240 file.
type CNAB240File struct {
	Header  CNAB240Header
	Details []CNAB240Detail
	Errors  []error
}

// SniffCNAB240 reports whether the first non-blank line is a 240-character
// file header.
func SniffCNAB240(data []byte) bool {
	line, ok := firstLine(data)
	return ok && len(line) == CNAB240Width && line[7] == cnab240FileHeader
}

// DecodeCNAB240 decodes a CNAB 240 file. Lines of the wrong length or with
// unparseable fields are reported in Errors and decoding continues. It fails
// only when no line is well formed.
func DecodeCNAB240(data []byte) (*CNAB240File, error) {
	f := &CNAB240File{}
	wellFormed := 0
	lines := splitLines(data)
	for _, l := range lines {
		if len(l.text) != CNAB240Width {
			f.Errors = append(f.Errors, &MalformedLineError{Line: l.num, Length: len(l.text), Want: CNAB240Width})
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

func (f *CNAB240File) decodeLine(l numberedLine, total int) error {
	line := l.text
	switch line[7] {
	case cnab240FileHeader:
		date, err := c240HdrDate.Date(line)
		if err != nil {
			return err
		}
		seq, err := c240HdrSequence.Int(line)
		if err != nil {
			return err
		}
		f.Header.BankCode = c240Bank.Text(line)
		f.Header.BankName = c240HdrBankName.Text(line)
		f.Header.CompanyDocument = c240HdrCompanyDocument.Text(line)
		f.Header.CompanyName = c240HdrCompanyName.Text(line)
		f.Header.GeneratedAt = date
		f.Header.Sequence = seq
	case cnab240BatchHeader:
		if f.Header.Agency == "" {
			f.Header.Agency = c240LotAgency.Text(line)
		}
		if f.Header.Account == "" {
			f.Header.Account = c240LotAccount.Text(line)
		}
	case cnab240Detail:
		var (
			d   CNAB240Detail
			err error
		)
		switch c240DetSegment.Text(line) {
		case "A":
			d, err = decodeSegmentA(line)
		case "J":
			d, err = decodeSegmentJ(line)
		default:
			return nil
		}
		if err != nil {
			return err
		}
		d.Line = l.num
		f.Details = append(f.Details, d)
	case cnab240FileTrailer:
		declared, err := c240TrlFileRecords.Int(line)
		if err != nil {
			return err
		}
		if declared != total {
			return &CountMismatchError{Line: l.num, Declared: declared, Counted: total}
		}
	}
	return nil
}

func decodeSegmentA(line string) (CNAB240Detail, error) {
	d := CNAB240Detail{
		Segment:        "A",
		DocumentNumber: c240ADocument.Text(line),
		OurNumber:      c240ABankReference.Text(line),
		Payee:          c240APayeeName.Text(line),
		Information:    c240AInfo.Text(line),
	}
	var err error
	if d.DueDate, err = c240ADate.Date(line); err != nil {
		return d, err
	}
	if d.Amount, err = c240AAmount.Cents(line); err != nil {
		return d, err
	}
	if d.PaymentDate, err = c240ARealDate.Date(line); err != nil {
		return d, err
	}
	if d.PaidAmount, err = c240ARealAmount.Cents(line); err != nil {
		return d, err
	}
	return d, nil
}

func decodeSegmentJ(line string) (CNAB240Detail, error) {
	d := CNAB240Detail{
		Segment:   "J",
		Barcode:   c240JBarcode.Text(line),
		OurNumber: c240JOurNumber.Text(line),
	}
	var err error
	if d.DueDate, err = c240JDueDate.Date(line); err != nil {
		return d, err
	}
	if d.Amount, err = c240JAmount.Cents(line); err != nil {
		return d, err
	}
	return d, nil
}

// Entry converts a detail into a ledger entry. Segment A records are
// payables, segment J records are receivables.
func (d CNAB240Detail) Entry() model.LedgerEntry {
	e := model.LedgerEntry{
		DueDate:           d.DueDate,
		DocumentNumber:    d.DocumentNumber,
		InternalReference: d.OurNumber,
		Barcode:           d.Barcode,
		Counterparty:      d.Payee,
		Amount:            d.Amount,
		Status:            model.LedgerOpen,
		Origin:            FormatCNAB240,
		SourceLine:        d.Line,
	}
	switch d.Segment {
	case "J":
		e.Direction = model.Receivable
		e.Description = fmt.Sprintf("Boleto %s", d.OurNumber)
	default:
		e.Direction = model.Payable
		e.Description = fmt.Sprintf("Pagamento doc %s", d.DocumentNumber)
		if d.Payee != "" {
			e.Description += " " + d.Payee
		}
	}
	if !d.PaymentDate.IsZero() {
		e.PaymentDate = d.PaymentDate
		e.AmountPaid = d.PaidAmount
	}
	return e
}

// Result converts the file into the format-independent Result.
func (f *CNAB240File) Result() *Result {
	r := &Result{
		Format:   FormatCNAB240,
		BankCode: f.Header.BankCode,
		Agency:   f.Header.Agency,
		Account:  f.Header.Account,
		Errors:   f.Errors,
	}
	for _, d := range f.Details {
		r.Entries = append(r.Entries, d.Entry())
	}
	return r
}

// Remittance identifies the company and account an encoded file belongs to.
type Remittance struct {
	BankCode        string
	BankName        string
	CompanyDocument string
	CompanyName     string
	Agency          string
	Account         string
	GeneratedAt     time.Time
	Sequence        int
}

// Settlement is one confirmed payment written to a return file.
type Settlement struct {
	DocumentNumber string
	OurNumber      string
	Counterparty   string
	DueDate        time.Time
	PaymentDate    time.Time
	Amount         decimal.Decimal
}

// EncodeCNAB240 writes a CNAB 240 return file: file header, batch header,
// one segment A per settlement, batch trailer and file trailer.
func EncodeCNAB240(rem Remittance, settlements []Settlement) ([]byte, error) {
	if err := rem.validate(); err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(settlements)+4)
	lines = append(lines, cnab240FileHeaderRecord(rem), cnab240BatchHeaderRecord(rem))

	total := decimal.Zero
	for i, s := range settlements {
		if s.Amount.IsNegative() {
			return nil, fmt.Errorf("settlement %d: negative amount %s", i+1, s.Amount.StringFixed(2))
		}
		lines = append(lines, cnab240SegmentARecord(rem, s, i+1))
		total = total.Add(s.Amount)
	}

	lot := newRecord(CNAB240Width)
	lot.put(c240Bank, rem.BankCode)
	lot.put(c240Lot, "1")
	lot.put(c240RecordType, string(cnab240BatchTrailer))
	lot.putInt(c240TrlLotRecords, len(settlements)+2)
	lot.putCents(c240TrlLotAmount, total)
	lot.putInt(c240TrlLotQuantity, 0)
	lines = append(lines, lot.String())

	file := newRecord(CNAB240Width)
	file.put(c240Bank, rem.BankCode)
	file.put(c240Lot, "9999")
	file.put(c240RecordType, string(cnab240FileTrailer))
	file.putInt(c240TrlFileLots, 1)
	file.putInt(c240TrlFileRecords, len(settlements)+4)
	lines = append(lines, file.String())

	return []byte(strings.Join(lines, "\r\n") + "\r\n"), nil
}

func cnab240FileHeaderRecord(rem Remittance) string {
	r := newRecord(CNAB240Width)
	r.put(c240Bank, rem.BankCode)
	r.put(c240Lot, "0")
	r.put(c240RecordType, string(cnab240FileHeader))
	r.put(c240HdrInscriptionType, inscriptionType(rem.CompanyDocument))
	r.put(c240HdrCompanyDocument, digits(rem.CompanyDocument))
	r.put(c240HdrAgreement, "")
	r.put(c240HdrAgency, digits(rem.Agency))
	r.put(c240HdrAccount, digits(rem.Account))
	r.put(c240HdrCompanyName, rem.CompanyName)
	r.put(c240HdrBankName, rem.BankName)
	r.put(c240HdrFileCode, "2")
	r.putDate(c240HdrDate, rem.GeneratedAt)
	r.put(c240HdrTime, rem.GeneratedAt.Format("150405"))
	r.putInt(c240HdrSequence, max(rem.Sequence, 1))
	r.put(c240HdrLayout, "103")
	r.put(c240HdrDensity, "0")
	return r.String()
}

func cnab240BatchHeaderRecord(rem Remittance) string {
	r := newRecord(CNAB240Width)
	r.put(c240Bank, rem.BankCode)
	r.put(c240Lot, "1")
	r.put(c240RecordType, string(cnab240BatchHeader))
	r.put(c240LotOperation, "C")
	r.put(c240LotService, "20")
	r.put(c240LotMethod, "01")
	r.put(c240LotLayout, "045")
	r.put(c240LotInscriptionType, inscriptionType(rem.CompanyDocument))
	r.put(c240LotCompanyDocument, digits(rem.CompanyDocument))
	r.put(c240LotAgency, digits(rem.Agency))
	r.put(c240LotAccount, digits(rem.Account))
	r.put(c240LotCompanyName, rem.CompanyName)
	r.putInt(c240LotSequence, max(rem.Sequence, 1))
	r.putDate(c240LotDate, rem.GeneratedAt)
	r.putDate(c240LotCreditDate, time.Time{})
	return r.String()
}

func cnab240SegmentARecord(rem Remittance, s Settlement, seq int) string {
	r := newRecord(CNAB240Width)
	r.put(c240Bank, rem.BankCode)
	r.put(c240Lot, "1")
	r.put(c240RecordType, string(cnab240Detail))
	r.putInt(c240DetSequence, seq)
	r.put(c240DetSegment, "A")
	r.put(c240DetMovementType, "0")
	r.put(c240DetMovementCode, "00")
	r.put(c240AClearing, "0")
	r.put(c240APayeeBank, rem.BankCode)
	r.put(c240APayeeName, s.Counterparty)
	r.put(c240ADocument, s.DocumentNumber)
	r.putDate(c240ADate, s.PaymentDate)
	r.put(c240ACurrency, "BRL")
	r.putInt(c240AQuantity, 0)
	r.putCents(c240AAmount, s.Amount)
	r.put(c240ABankReference, s.OurNumber)
	r.putDate(c240ARealDate, s.PaymentDate)
	r.putCents(c240ARealAmount, s.Amount)
	r.put(c240AOccurrences, "00")
	return r.String()
}

func (rem Remittance) validate() error {
	if rem.BankCode == "" || digits(rem.BankCode) != rem.BankCode {
		return fmt.Errorf("bank code %q must be numeric", rem.BankCode)
	}
	return nil
}

// inscriptionType is 1 for an individual (11-digit CPF) and 2 otherwise.
func inscriptionType(document string) string {
	if len(digits(document)) == 11 {
		return "1"
	}
	return "2"
}

func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
