package learning

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/conciliar-dev/conciliar/internal/model"
)

// HistoryPath is the CSV history location relative to the workspace root.
var HistoryPath = filepath.Join("learning", "history.csv")

var historyHeader = []string{"company_id", "description", "normalized_description", "category_id", "confidence", "created_at"}

const (
	numFields   = 6
	colCompany  = 0
	colDesc     = 1
	colNormDesc = 2
	colCategory = 3
	colConf     = 4
	colCreated  = 5
)

// CSVStore keeps learning records in an append-only CSV file.
type CSVStore struct {
	path string
}

// NewCSVStore returns a CSVStore rooted at the workspace repoRoot.
func NewCSVStore(repoRoot string) *CSVStore {
	return &CSVStore{path: filepath.Join(repoRoot, HistoryPath)}
}

// Recent implements Store.
func (s *CSVStore) Recent(_ context.Context, companyID string, limit int) ([]model.LearningRecord, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening learning history: %w", err)
	}
	defer f.Close()

	all, err := readRecords(f)
	if err != nil {
		return nil, fmt.Errorf("reading learning history: %w", err)
	}

	var out []model.LearningRecord
	for _, rec := range all {
		if rec.CompanyID == companyID {
			out = append(out, rec)
		}
	}
	// File order is append order; reverse it, then order by timestamp.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Append implements Store.
func (s *CSVStore) Append(_ context.Context, rec model.LearningRecord) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating learning dir: %w", err)
	}

	isNew := false
	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		isNew = true
	}

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening learning history: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if isNew {
		if err := w.Write(historyHeader); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	if err := w.Write(marshalRecord(rec)); err != nil {
		return fmt.Errorf("writing learning record: %w", err)
	}
	w.Flush()
	return w.Error()
}

func readRecords(r io.Reader) ([]model.LearningRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	out := make([]model.LearningRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rec, err := unmarshalRecord(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func marshalRecord(rec model.LearningRecord) []string {
	row := make([]string, numFields)
	row[colCompany] = rec.CompanyID
	row[colDesc] = rec.Description
	row[colNormDesc] = rec.NormalizedDescription
	row[colCategory] = strconv.Itoa(rec.CategoryID)
	row[colConf] = strconv.Itoa(rec.Confidence)
	row[colCreated] = rec.CreatedAt.UTC().Format(time.RFC3339Nano)
	return row
}

func unmarshalRecord(row []string) (model.LearningRecord, error) {
	cat, err := strconv.Atoi(row[colCategory])
	if err != nil {
		return model.LearningRecord{}, fmt.Errorf("parsing category_id %q: %w", row[colCategory], err)
	}
	conf, err := strconv.Atoi(row[colConf])
	if err != nil {
		return model.LearningRecord{}, fmt.Errorf("parsing confidence %q: %w", row[colConf], err)
	}
	created, err := time.Parse(time.RFC3339Nano, row[colCreated])
	if err != nil {
		return model.LearningRecord{}, fmt.Errorf("parsing created_at %q: %w", row[colCreated], err)
	}
	return model.LearningRecord{
		CompanyID:             row[colCompany],
		Description:           row[colDesc],
		NormalizedDescription: row[colNormDesc],
		CategoryID:            cat,
		Confidence:            conf,
		CreatedAt:             created,
	}, nil
}
