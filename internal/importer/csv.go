package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/conciliar-dev/conciliar/internal/bankfile"
	"github.com/conciliar-dev/conciliar/internal/textnorm"
)

// csvDelimiters are tried in order; the one that splits the header into the
// most columns wins.
var csvDelimiters = []rune{',', ';', '\t', '|'}

var csvDateLayouts = []string{
	"02/01/2006",
	"2006-01-02",
	"02-01-2006",
	"02.01.2006",
	"02/01/06",
	"2006/01/02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006 15:04:05",
}

// table is a parsed CSV file with a normalized header.
type table struct {
	columns map[string]int
	rows    []tableRow
}

type tableRow struct {
	line   int
	fields []string
}

// col returns the index of the first alias present in the header, or -1.
func (t *table) col(aliases ...string) int {
	for _, a := range aliases {
		if i, ok := t.columns[a]; ok {
			return i
		}
	}
	return -1
}

func (r tableRow) get(i int) string {
	if i < 0 || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

// headerKey folds a column title to snake case: "Data Vencimento" -> "data_vencimento".
func headerKey(s string) string {
	return strings.ReplaceAll(textnorm.Normalize(s), " ", "_")
}

func detectDelimiter(data []byte) rune {
	first := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		first = data[:i]
	}
	best, bestCols := ',', 0
	for _, d := range csvDelimiters {
		r := csv.NewReader(bytes.NewReader(first))
		r.Comma = d
		r.LazyQuotes = true
		rec, err := r.Read()
		if err != nil {
			continue
		}
		if len(rec) > bestCols {
			best, bestCols = d, len(rec)
		}
	}
	return best
}

func readTable(data []byte) (*table, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = detectDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, bankfile.ErrNoRecords
		}
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	t := &table{columns: make(map[string]int, len(header))}
	for i, h := range header {
		key := headerKey(h)
		if _, dup := t.columns[key]; !dup {
			t.columns[key] = i
		}
	}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV: %w", err)
		}
		line, _ := r.FieldPos(0)
		if strings.TrimSpace(strings.Join(rec, "")) == "" {
			continue
		}
		t.rows = append(t.rows, tableRow{line: line, fields: rec})
	}
	return t, nil
}

// sniffHeader reports whether data has a CSV extension and a header with at
// least one alias from each group.
func sniffHeader(data []byte, filename string, groups ...[]string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".csv" && ext != ".txt" {
		return false
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	first := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		first = data[:i]
	}
	r := csv.NewReader(bytes.NewReader(first))
	r.Comma = detectDelimiter(first)
	r.LazyQuotes = true
	header, err := r.Read()
	if err != nil {
		return false
	}
	keys := make(map[string]bool, len(header))
	for _, h := range header {
		keys[headerKey(h)] = true
	}
	for _, g := range groups {
		found := false
		for _, alias := range g {
			if keys[alias] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func parseCSVDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range csvDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date")
}

// parseCSVAmount reads "1.234,56", "1,234.56", "-10,00", "(10,00)",
// "R$ 10,00" and "10,00 D". The sign is returned on the amount.
func parseCSVAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	switch upper := strings.ToUpper(s); {
	case strings.HasSuffix(upper, "D"):
		neg = true
		s = s[:len(s)-1]
	case strings.HasSuffix(upper, "C"):
		s = s[:len(s)-1]
	}
	s = strings.NewReplacer("R$", "", "$", "", " ", "", "\u00a0", "").Replace(s)
	if strings.HasPrefix(s, "-") {
		neg = !neg
		s = s[1:]
	}
	s = strings.TrimPrefix(s, "+")

	comma, dot := strings.LastIndex(s, ","), strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && dot >= 0 && comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case comma >= 0 && dot >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		s = strings.Replace(s, ",", ".", 1)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unrecognized amount")
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

func rowError(line int, field, value string, err error) error {
	return &bankfile.FieldError{Line: line, Field: field, Value: value, Err: err}
}
