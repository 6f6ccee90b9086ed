package categories

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/conciliar-dev/conciliar/internal/model"
)

// ChartPath is the chart file location relative to the workspace root.
var ChartPath = filepath.Join("categories", "chart-of-categories.csv")

// Service provides in-memory lookup over the chart of categories.
type Service struct {
	cats []model.Category
	byID map[int]model.Category
}

// NewService creates a Service from a slice of categories.
func NewService(cats []model.Category) *Service {
	byID := make(map[int]model.Category, len(cats))
	for _, c := range cats {
		byID[c.ID] = c
	}
	return &Service{cats: cats, byID: byID}
}

// Load reads the chart of categories from a workspace root.
func Load(repoRoot string) (*Service, error) {
	f, err := os.Open(filepath.Join(repoRoot, ChartPath))
	if err != nil {
		return nil, fmt.Errorf("opening chart of categories: %w", err)
	}
	defer f.Close()

	cats, err := ReadCategories(f)
	if err != nil {
		return nil, fmt.Errorf("reading chart of categories: %w", err)
	}
	return NewService(cats), nil
}

// All returns all categories.
func (s *Service) All() []model.Category {
	return s.cats
}

// Get returns a category by ID.
func (s *Service) Get(id int) (model.Category, bool) {
	c, ok := s.byID[id]
	return c, ok
}

// Exists reports whether a category ID exists.
func (s *Service) Exists(id int) bool {
	_, ok := s.byID[id]
	return ok
}

// ByDirection returns the categories usable for movements in direction d.
func (s *Service) ByDirection(d model.Direction) []model.Category {
	var result []model.Category
	for _, c := range s.cats {
		if c.Direction == d {
			result = append(result, c)
		}
	}
	return result
}

// CheckAssignable returns an error unless category id exists and fits a
// movement in direction d.
func (s *Service) CheckAssignable(id int, d model.Direction) error {
	c, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("unknown category %d", id)
	}
	if c.Direction != d {
		return fmt.Errorf("category %d (%s) is for %s movements, transaction is %s", id, c.Name, c.Direction, d)
	}
	return nil
}

// Save writes the chart of categories under repoRoot.
func (s *Service) Save(repoRoot string) error {
	path := filepath.Join(repoRoot, ChartPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating categories dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating chart of categories file: %w", err)
	}
	defer f.Close()

	if err := WriteCategories(f, s.cats); err != nil {
		return fmt.Errorf("writing chart of categories: %w", err)
	}
	return nil
}
