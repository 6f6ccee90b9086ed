package categories

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/conciliar-dev/conciliar/internal/model"
	"github.com/conciliar-dev/conciliar/internal/textnorm"
)

// Header is the column order WriteCategories emits.
var Header = []string{"category_id", "name", "direction", "code", "description"}

var required = []string{"category_id", "name", "direction"}

// ERP charts name the sides "entrada" and "saída".
var directionAliases = map[string]model.Direction{
	"credit":  model.Credit,
	"debit":   model.Debit,
	"entrada": model.Credit,
	"saida":   model.Debit,
}

// ParseDirection accepts credit/debit or their Portuguese names, in any case
// and with or without accents.
func ParseDirection(s string) (model.Direction, error) {
	if d, ok := directionAliases[textnorm.Normalize(s)]; ok {
		return d, nil
	}
	return "", fmt.Errorf("unknown direction %q", s)
}

// columns maps header names to their positions in a chart file.
type columns map[string]int

func columnsOf(header []string) (columns, error) {
	cols := make(columns, len(header))
	for i, h := range header {
		cols[strings.ReplaceAll(textnorm.Normalize(h), " ", "_")] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	return cols, nil
}

func (c columns) get(rec []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return rec[i]
}

func (c columns) category(rec []string) (model.Category, error) {
	raw := c.get(rec, "category_id")
	id, err := strconv.Atoi(raw)
	if err != nil {
		return model.Category{}, fmt.Errorf("parsing category_id %q: %w", raw, err)
	}
	dir, err := ParseDirection(c.get(rec, "direction"))
	if err != nil {
		return model.Category{}, fmt.Errorf("category %d: %w", id, err)
	}
	return model.Category{
		ID:          id,
		Name:        c.get(rec, "name"),
		Direction:   dir,
		Code:        c.get(rec, "code"),
		Description: c.get(rec, "description"),
	}, nil
}

// ReadCategories reads a chart of categories. Columns are found by header
// name, so hand-edited charts may reorder them or drop code and description.
// Category ids must be unique.
func ReadCategories(r io.Reader) ([]model.Category, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading categories header: %w", err)
	}
	cols, err := columnsOf(header)
	if err != nil {
		return nil, fmt.Errorf("categories header: %w", err)
	}

	var cats []model.Category
	seen := make(map[int]bool)
	for row := 2; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return cats, nil
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		c, err := cols.category(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("row %d: duplicate category_id %d", row, c.ID)
		}
		seen[c.ID] = true
		cats = append(cats, c)
	}
}

// WriteCategories writes cats in Header order.
func WriteCategories(w io.Writer, cats []model.Category) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, c := range cats {
		if err := cw.Write([]string{strconv.Itoa(c.ID), c.Name, string(c.Direction), c.Code, c.Description}); err != nil {
			return fmt.Errorf("writing category %d: %w", c.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
