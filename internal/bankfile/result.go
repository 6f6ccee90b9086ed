package bankfile

import (
	"github.com/conciliar-dev/conciliar/internal/model"
)

// Format names.
const (
	FormatCNAB240 = "cnab240"
	FormatCNAB400 = "cnab400"
	FormatOFX     = "ofx"
)

// Result is the normalized output of any decoder. Payment and collection
// files carry ledger entries; statements carry bank transactions.
type Result struct {
	Format       string
	BankCode     string
	Agency       string
	Account      string
	Transactions []model.BankTransaction
	Entries      []model.LedgerEntry
	// Errors holds per-line problems. Lines listed here produced no record.
	Errors []error
	// Skipped counts statement transactions dropped for missing fields.
	Skipped int
}

// Records returns the number of decoded records of either kind.
func (r *Result) Records() int {
	return len(r.Transactions) + len(r.Entries)
}

type codec struct {
	format string
	sniff  func([]byte) bool
	decode func([]byte) (*Result, error)
}

// codecs are tried in this order by Detect and Decode.
var codecs = []codec{
	{FormatCNAB240, SniffCNAB240, decodeCNAB240Result},
	{FormatCNAB400, SniffCNAB400, decodeCNAB400Result},
	{FormatOFX, SniffOFX, decodeOFXResult},
}

// Detect returns the name of the first format whose sniff predicate
// accepts data.
func Detect(data []byte) (string, error) {
	for _, c := range codecs {
		if c.sniff(data) {
			return c.format, nil
		}
	}
	return "", ErrUnrecognizedFormat
}

// Decode sniffs data and decodes it with the matching codec.
func Decode(data []byte) (*Result, error) {
	format, err := Detect(data)
	if err != nil {
		return nil, err
	}
	return DecodeAs(format, data)
}

// DecodeAs decodes data as the named format without sniffing.
func DecodeAs(format string, data []byte) (*Result, error) {
	for _, c := range codecs {
		if c.format == format {
			return c.decode(data)
		}
	}
	return nil, ErrUnrecognizedFormat
}

func decodeCNAB240Result(data []byte) (*Result, error) {
	f, err := DecodeCNAB240(data)
	if err != nil {
		return nil, err
	}
	return f.Result(), nil
}

func decodeCNAB400Result(data []byte) (*Result, error) {
	f, err := DecodeCNAB400(data)
	if err != nil {
		return nil, err
	}
	return f.Result(), nil
}

func decodeOFXResult(data []byte) (*Result, error) {
	s, err := DecodeOFX(data)
	if err != nil {
		return nil, err
	}
	return s.Result(), nil
}
