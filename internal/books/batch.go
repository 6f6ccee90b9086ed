package books

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/conciliar-dev/conciliar/internal/model"
)

// Batch file layout under the workspace root.
const (
	BatchesDir      = "batches"
	BatchesFile     = "batches.csv"
	MatchesFile     = "matches.csv"
	DivergencesFile = "divergences.csv"
)

func (s *Store) batchesPath() string {
	return filepath.Join(s.repoRoot, BatchesDir, BatchesFile)
}

func (s *Store) batchPath(batchID, name string) string {
	return filepath.Join(s.repoRoot, BatchesDir, batchID, name)
}

// SaveBatch inserts or replaces b in batches.csv and rewrites the batch's
// matches and divergences.
func (s *Store) SaveBatch(b model.Batch, matches []model.Match, divs []model.Divergence) error {
	if b.ID == "" {
		return fmt.Errorf("saving batch: empty ID")
	}
	b.CompanyID = s.companyID

	batches, err := readFile(s.batchesPath(), ReadBatches)
	if err != nil {
		return err
	}
	replaced := false
	for i := range batches {
		if batches[i].ID == b.ID {
			batches[i] = b
			replaced = true
		}
	}
	if !replaced {
		batches = append(batches, b)
	}

	if err := rewrite(s.batchesPath(), func(w io.Writer) error {
		return writeRows(w, BatchHeader, batches, MarshalBatch)
	}); err != nil {
		return err
	}
	if err := rewrite(s.batchPath(b.ID, MatchesFile), func(w io.Writer) error {
		return writeRows(w, MatchHeader, matches, MarshalMatch)
	}); err != nil {
		return err
	}
	return rewrite(s.batchPath(b.ID, DivergencesFile), func(w io.Writer) error {
		return writeRows(w, DivergenceHeader, divs, MarshalDivergence)
	})
}

// Batches returns the company's batches, newest first.
func (s *Store) Batches() ([]model.Batch, error) {
	all, err := readFile(s.batchesPath(), ReadBatches)
	if err != nil {
		return nil, err
	}
	var out []model.Batch
	for _, b := range all {
		if b.CompanyID == s.companyID {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Batch returns one batch by ID.
func (s *Store) Batch(batchID string) (model.Batch, error) {
	batches, err := s.Batches()
	if err != nil {
		return model.Batch{}, err
	}
	for _, b := range batches {
		if b.ID == batchID {
			return b, nil
		}
	}
	return model.Batch{}, fmt.Errorf("batch %s: %w", batchID, ErrNotFound)
}

// Matches returns the matches recorded for a batch.
func (s *Store) Matches(batchID string) ([]model.Match, error) {
	if _, err := s.Batch(batchID); err != nil {
		return nil, err
	}
	return readFile(s.batchPath(batchID, MatchesFile), ReadMatches)
}

// Divergences returns the divergences recorded for a batch.
func (s *Store) Divergences(batchID string) ([]model.Divergence, error) {
	if _, err := s.Batch(batchID); err != nil {
		return nil, err
	}
	return readFile(s.batchPath(batchID, DivergencesFile), ReadDivergences)
}
