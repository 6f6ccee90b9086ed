package bankfile

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Kind says how a fixed-width field is padded and parsed.
type Kind int

const (
	// Numeric fields are zero-padded on the left.
	Numeric Kind = iota
	// Text fields are space-padded on the right.
	Text
	// Date8 fields hold DDMMYYYY.
	Date8
	// Date6 fields hold DDMMYY.
	Date6
)

// Field is one column of a fixed-width record. Start is 0-based.
type Field struct {
	Name  string
	Start int
	Len   int
	Kind  Kind
}

// End returns the exclusive end offset.
func (f Field) End() int { return f.Start + f.Len }

func (f Field) raw(line string) string {
	if f.End() > len(line) {
		return ""
	}
	return line[f.Start:f.End()]
}

// Text returns the field with surrounding spaces removed.
func (f Field) Text(line string) string {
	return strings.TrimSpace(f.raw(line))
}

// Int parses a numeric field. A blank field is 0.
func (f Field) Int(line string) (int, error) {
	s := f.Text(line)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &FieldError{Field: f.Name, Value: s, Err: err}
	}
	return n, nil
}

// Cents parses an integer-cents numeric field into a 2-decimal amount.
// A blank field is zero.
func (f Field) Cents(line string) (decimal.Decimal, error) {
	s := f.Text(line)
	if s == "" {
		return decimal.Zero, nil
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return decimal.Zero, &FieldError{Field: f.Name, Value: s, Err: fmt.Errorf("not a number")}
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &FieldError{Field: f.Name, Value: s, Err: err}
	}
	return d.Shift(-2), nil
}

// Date parses a Date8 or Date6 field. All-zero or blank fields return the
// zero time.
func (f Field) Date(line string) (time.Time, error) {
	s := f.Text(line)
	if s == "" || strings.Trim(s, "0") == "" {
		return time.Time{}, nil
	}
	var (
		t   time.Time
		err error
	)
	switch f.Kind {
	case Date8:
		t, err = time.Parse("02012006", s)
	case Date6:
		t, err = parseDate6(s)
	default:
		err = fmt.Errorf("field is not a date")
	}
	if err != nil {
		return time.Time{}, &FieldError{Field: f.Name, Value: s, Err: err}
	}
	return t, nil
}

// parseDate6 reads DDMMYY; years below 50 are 20xx, the rest 19xx.
func parseDate6(s string) (time.Time, error) {
	if len(s) != 6 {
		return time.Time{}, fmt.Errorf("want 6 digits, got %d", len(s))
	}
	yy, err := strconv.Atoi(s[4:])
	if err != nil {
		return time.Time{}, err
	}
	year := 1900 + yy
	if yy < 50 {
		year = 2000 + yy
	}
	return time.Parse("02012006", s[:4]+strconv.Itoa(year))
}

// record is a fixed-width line under construction.
type record []byte

func newRecord(width int) record {
	r := make(record, width)
	for i := range r {
		r[i] = ' '
	}
	return r
}

// put writes v into f, padding by kind. Numeric values longer than the
// field keep their rightmost digits; text is truncated.
func (r record) put(f Field, v string) {
	var s string
	switch f.Kind {
	case Numeric:
		if len(v) > f.Len {
			v = v[len(v)-f.Len:]
		}
		s = strings.Repeat("0", f.Len-len(v)) + v
	default:
		v = asciiText(v)
		if len(v) > f.Len {
			v = v[:f.Len]
		}
		s = v + strings.Repeat(" ", f.Len-len(v))
	}
	copy(r[f.Start:f.End()], s)
}

func (r record) putInt(f Field, n int) { r.put(f, strconv.Itoa(n)) }

func (r record) putCents(f Field, d decimal.Decimal) {
	r.put(f, d.Abs().Shift(2).Round(0).StringFixed(0))
}

// putDate writes a date; the zero time is written as zeros.
func (r record) putDate(f Field, t time.Time) {
	switch {
	case t.IsZero():
		copy(r[f.Start:f.End()], strings.Repeat("0", f.Len))
	case f.Kind == Date6:
		r.put(f, t.Format("020106"))
	default:
		r.put(f, t.Format("02012006"))
	}
}

func (r record) String() string { return string(r) }

// asciiText uppercases v, strips diacritics and blanks anything outside
// printable ASCII, one byte per input rune.
func asciiText(v string) string {
	return strings.ToUpper(foldLine(v))
}

// foldLine turns a raw input line into single-byte characters so that byte
// offsets equal character offsets. Invalid UTF-8 is read as ISO-8859-1.
func foldLine(s string) string {
	if !utf8.ValidString(s) {
		if dec, err := charmap.ISO8859_1.NewDecoder().String(s); err == nil {
			s = dec
		}
	}
	ascii := true
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			ascii = false
			break
		}
	}
	if ascii {
		return s
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < utf8.RuneSelf {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// splitLines splits data on \n, drops a trailing \r and folds each line to
// single-byte characters. Line numbers are 1-based physical lines.
func splitLines(data []byte) []numberedLine {
	raw := strings.Split(string(data), "\n")
	lines := make([]numberedLine, 0, len(raw))
	for i, l := range raw {
		l = strings.TrimSuffix(l, "\r")
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, numberedLine{num: i + 1, text: foldLine(l)})
	}
	return lines
}

type numberedLine struct {
	num  int
	text string
}

func firstLine(data []byte) (string, bool) {
	lines := splitLines(data)
	if len(lines) == 0 {
		return "", false
	}
	return lines[0].text, true
}
