package bankfile

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/conciliar-dev/conciliar/internal/model"
)

// OFXTransaction is one STMTTRN block.
type OFXTransaction struct {
	Type     string
	Posted   time.Time
	Amount   decimal.Decimal // signed as in the file
	FITID    string
	CheckNum string
	RefNum   string
	Memo     string
	Name     string
}

// Direction derives credit or debit from TRNTYPE, falling back to the
// amount sign for generic or unknown types.
func (t OFXTransaction) Direction() model.Direction {
	switch strings.ToUpper(t.Type) {
	case "CREDIT", "DEP", "INT", "DIV", "DIRECTDEP":
		return model.Credit
	case "DEBIT", "CHECK", "PAYMENT", "ATM", "POS", "FEE", "SRVCHG", "DIRECTDEBIT", "REPEATPMT", "CASH":
		return model.Debit
	}
	if t.Amount.IsNegative() {
		return model.Debit
	}
	return model.Credit
}

// Description is the memo, or the payee name when there is no memo.
func (t OFXTransaction) Description() string {
	if t.Memo != "" {
		return t.Memo
	}
	return t.Name
}

// OFXStatement is a decoded OFX bank statement.
type OFXStatement struct {
	BankID       string
	AccountID    string
	AccountType  string
	Start        time.Time
	End          time.Time
	Balance      decimal.Decimal
	HasBalance   bool
	Transactions []OFXTransaction
	// Skipped counts STMTTRN blocks missing DTPOSTED, TRNAMT or FITID.
	Skipped int
}

// SniffOFX reports whether data looks like an OFX document, SGML or XML.
func SniffOFX(data []byte) bool {
	s := strings.TrimLeft(string(data), " \t\r\n\ufeff")
	return strings.HasPrefix(strings.ToUpper(s), "OFXHEADER") || indexFold(s, "<OFX>", 0) >= 0
}

// DecodeOFX reads the known tag set from an OFX document. Values may be
// closed (<TAG>v</TAG>) or left open SGML-style (<TAG>v). Incomplete
// transactions are skipped and counted, never fatal.
func DecodeOFX(data []byte) (*OFXStatement, error) {
	if !SniffOFX(data) {
		return nil, ErrUnrecognizedFormat
	}
	doc := string(data)
	s := &OFXStatement{}
	s.BankID, _ = tagValue(doc, "BANKID")
	s.AccountID, _ = tagValue(doc, "ACCTID")
	s.AccountType, _ = tagValue(doc, "ACCTTYPE")
	if v, ok := tagValue(doc, "DTSTART"); ok {
		s.Start, _ = parseOFXDate(v)
	}
	if v, ok := tagValue(doc, "DTEND"); ok {
		s.End, _ = parseOFXDate(v)
	}
	if v, ok := tagValue(doc, "BALAMT"); ok {
		if bal, err := parseOFXAmount(v); err == nil {
			s.Balance, s.HasBalance = bal, true
		}
	}

	for _, block := range stmtBlocks(doc) {
		t, ok := decodeOFXTransaction(block)
		if !ok {
			s.Skipped++
			continue
		}
		s.Transactions = append(s.Transactions, t)
	}
	return s, nil
}

func decodeOFXTransaction(block string) (OFXTransaction, bool) {
	posted, okPosted := tagValue(block, "DTPOSTED")
	amount, okAmount := tagValue(block, "TRNAMT")
	fitid, okFITID := tagValue(block, "FITID")
	if !okPosted || !okAmount || !okFITID || fitid == "" {
		return OFXTransaction{}, false
	}
	date, err := parseOFXDate(posted)
	if err != nil {
		return OFXTransaction{}, false
	}
	amt, err := parseOFXAmount(amount)
	if err != nil {
		return OFXTransaction{}, false
	}
	t := OFXTransaction{Posted: date, Amount: amt, FITID: fitid}
	t.Type, _ = tagValue(block, "TRNTYPE")
	t.CheckNum, _ = tagValue(block, "CHECKNUM")
	t.RefNum, _ = tagValue(block, "REFNUM")
	t.Memo, _ = tagValue(block, "MEMO")
	t.Name, _ = tagValue(block, "NAME")
	return t, true
}

// Result converts the statement into bank transactions with absolute
// amounts. The statement balance lands on the last transaction.
func (s *OFXStatement) Result() *Result {
	r := &Result{
		Format:   FormatOFX,
		BankCode: s.BankID,
		Account:  s.AccountID,
		Skipped:  s.Skipped,
	}
	for _, t := range s.Transactions {
		r.Transactions = append(r.Transactions, model.BankTransaction{
			OperationDate: t.Posted,
			Description:   t.Description(),
			Direction:     t.Direction(),
			Amount:        t.Amount.Abs(),
			Status:        model.TxPending,
			ExternalID:    t.FITID,
			Origin:        FormatOFX,
		})
	}
	if n := len(r.Transactions); n > 0 && s.HasBalance {
		r.Transactions[n-1].Balance = s.Balance
		r.Transactions[n-1].HasBalance = true
	}
	return r
}

// stmtBlocks returns the contents of each STMTTRN element. A block ends at
// its closing tag, or at the next opening tag when the file omits it.
func stmtBlocks(doc string) []string {
	const open, closeTag = "<STMTTRN>", "</STMTTRN>"
	var blocks []string
	pos := 0
	for {
		start := indexFold(doc, open, pos)
		if start < 0 {
			return blocks
		}
		start += len(open)
		end := indexFold(doc, closeTag, start)
		next := indexFold(doc, open, start)
		if end < 0 || (next >= 0 && next < end) {
			end = next
		}
		if end < 0 {
			end = indexFold(doc, "</BANKTRANLIST>", start)
		}
		if end < 0 {
			end = len(doc)
		}
		blocks = append(blocks, doc[start:end])
		pos = end
	}
}

// tagValue returns the trimmed text after <TAG> up to the next '<'.
func tagValue(s, tag string) (string, bool) {
	open := "<" + tag + ">"
	i := indexFold(s, open, 0)
	if i < 0 {
		return "", false
	}
	v := s[i+len(open):]
	if j := strings.IndexByte(v, '<'); j >= 0 {
		v = v[:j]
	}
	return strings.TrimSpace(v), true
}

// indexFold is a case-insensitive strings.Index starting at from.
func indexFold(s, sub string, from int) int {
	for i := from; i+len(sub) <= len(s); i++ {
		if strings.EqualFold(s[i:i+len(sub)], sub) {
			return i
		}
	}
	return -1
}

func parseOFXAmount(v string) (decimal.Decimal, error) {
	v = strings.ReplaceAll(strings.TrimSpace(v), ",", ".")
	v = strings.TrimPrefix(v, "+")
	return decimal.NewFromString(v)
}

// parseOFXDate reads YYYYMMDD[HHMMSS[.XXX]][[offset:TZ]]. Without an
// offset the time is UTC.
func parseOFXDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	loc := time.UTC
	if i := strings.IndexByte(v, '['); i >= 0 {
		tz := strings.TrimSuffix(v[i+1:], "]")
		v = v[:i]
		if j := strings.IndexByte(tz, ':'); j >= 0 {
			tz = tz[:j]
		}
		if hours, err := strconv.ParseFloat(tz, 64); err == nil {
			loc = time.FixedZone("", int(hours*3600))
		}
	}
	if i := strings.IndexByte(v, '.'); i >= 0 {
		v = v[:i]
	}
	layouts := map[int]string{8: "20060102", 12: "200601021504", 14: "20060102150405"}
	layout, ok := layouts[len(v)]
	if !ok {
		return time.Time{}, &FieldError{Field: "date", Value: v, Err: strconv.ErrSyntax}
	}
	t, err := time.ParseInLocation(layout, v, loc)
	if err != nil {
		return time.Time{}, &FieldError{Field: "date", Value: v, Err: err}
	}
	return t, nil
}
