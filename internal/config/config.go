// Package config reads and writes the workspace's conciliar.yaml.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/conciliar-dev/conciliar/internal/classify"
	"github.com/conciliar-dev/conciliar/internal/matching"
	"github.com/conciliar-dev/conciliar/internal/model"
	"github.com/conciliar-dev/conciliar/internal/transfer"
)

// FileName is the config file at the workspace root.
const FileName = "conciliar.yaml"

// Config represents the top-level conciliar.yaml configuration.
type Config struct {
	Company        CompanyConfig        `yaml:"company"`
	BankAccounts   []model.BankAccount  `yaml:"bank_accounts,omitempty"`
	Classification ClassificationConfig `yaml:"classification"`
	Transfers      TransfersConfig      `yaml:"transfers"`
	Matching       MatchingConfig       `yaml:"matching"`
	Export         ExportConfig         `yaml:"export"`
	Learning       LearningConfig       `yaml:"learning"`
	Git            GitConfig            `yaml:"git"`
}

// CompanyConfig identifies the company whose books the workspace holds.
type CompanyConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Document string `yaml:"document"` // CNPJ or CPF
	BankCode string `yaml:"bank_code,omitempty"`
}

// ClassificationConfig controls status assignment after classification.
type ClassificationConfig struct {
	AutoThreshold int `yaml:"auto_threshold"`
	LowThreshold  int `yaml:"low_threshold"`
	HistoryLimit  int `yaml:"history_limit"`
}

// TransfersConfig controls internal transfer detection.
type TransfersConfig struct {
	WindowHours   float64 `yaml:"window_hours"`
	MinConfidence int     `yaml:"min_confidence"`
}

// PhaseThresholds are the suggest and automatic scores of a matching phase.
type PhaseThresholds struct {
	Min  int `yaml:"min"`
	Auto int `yaml:"auto"`
}

// MatchingConfig holds the matching engine thresholds.
type MatchingConfig struct {
	Identifier    PhaseThresholds `yaml:"identifier"`
	ValueDate     PhaseThresholds `yaml:"value_date"`
	Similarity    PhaseThresholds `yaml:"similarity"`
	MinSimilarity float64         `yaml:"min_similarity"`
}

// ExportConfig sets export defaults.
type ExportConfig struct {
	DefaultFormat string `yaml:"default_format"`
}

// LearningConfig selects the classification history backend. An empty
// SQLitePath keeps history in learning/history.csv.
type LearningConfig struct {
	SQLitePath string `yaml:"sqlite_path,omitempty"`
}

// GitConfig controls git integration.
type GitConfig struct {
	AutoCommit  bool   `yaml:"auto_commit"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// Load reads a conciliar.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default("", "")
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with the engines' stock thresholds.
func Default(companyID, companyName string) *Config {
	cls := classify.DefaultOptions()
	tr := transfer.DefaultOptions()
	m := matching.DefaultOptions()
	return &Config{
		Company: CompanyConfig{ID: companyID, Name: companyName},
		Classification: ClassificationConfig{
			AutoThreshold: cls.Thresholds.Auto,
			LowThreshold:  cls.Thresholds.Low,
			HistoryLimit:  cls.HistoryLimit,
		},
		Transfers: TransfersConfig{
			WindowHours:   tr.WindowHours,
			MinConfidence: tr.MinConfidence,
		},
		Matching: MatchingConfig{
			Identifier:    PhaseThresholds{Min: m.IdentifierMin, Auto: m.IdentifierAuto},
			ValueDate:     PhaseThresholds{Min: m.ValueDateMin, Auto: m.ValueDateAuto},
			Similarity:    PhaseThresholds{Min: m.SimilarityMin, Auto: m.SimilarityAuto},
			MinSimilarity: m.MinSimilarity,
		},
		Export: ExportConfig{DefaultFormat: "cnab240"},
		Git: GitConfig{
			AutoCommit:  true,
			AuthorName:  "Conciliar",
			AuthorEmail: "conciliar@localhost",
		},
	}
}

// Validate checks the values the engines cannot work with.
func (c *Config) Validate() error {
	if c.Company.ID == "" {
		return fmt.Errorf("company.id is required")
	}
	if c.Classification.LowThreshold > c.Classification.AutoThreshold {
		return fmt.Errorf("classification.low_threshold %d exceeds auto_threshold %d",
			c.Classification.LowThreshold, c.Classification.AutoThreshold)
	}
	for name, p := range map[string]PhaseThresholds{
		"identifier": c.Matching.Identifier,
		"value_date": c.Matching.ValueDate,
		"similarity": c.Matching.Similarity,
	} {
		if p.Min > p.Auto || p.Auto > 100 || p.Min < 0 {
			return fmt.Errorf("matching.%s thresholds must satisfy 0 <= min <= auto <= 100", name)
		}
	}
	if c.Transfers.WindowHours <= 0 {
		return fmt.Errorf("transfers.window_hours must be positive")
	}
	seen := make(map[string]bool)
	for _, a := range c.BankAccounts {
		if a.ID == "" {
			return fmt.Errorf("bank account %q has no id", a.Name)
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicate bank account %q", a.ID)
		}
		seen[a.ID] = true
	}
	return nil
}

// Account returns the configured bank account with the given id.
func (c *Config) Account(id string) (model.BankAccount, bool) {
	for _, a := range c.BankAccounts {
		if a.ID == id {
			return a, true
		}
	}
	return model.BankAccount{}, false
}

// ClassifyOptions maps the classification section onto the service options.
func (c *Config) ClassifyOptions() classify.Options {
	return classify.Options{
		Thresholds:   classify.Thresholds{Auto: c.Classification.AutoThreshold, Low: c.Classification.LowThreshold},
		HistoryLimit: c.Classification.HistoryLimit,
	}
}

// TransferOptions maps the transfers section onto the detector options.
func (c *Config) TransferOptions() transfer.Options {
	return transfer.Options{WindowHours: c.Transfers.WindowHours, MinConfidence: c.Transfers.MinConfidence}
}

// MatchingOptions maps the matching section onto the engine options.
func (c *Config) MatchingOptions() matching.Options {
	return matching.Options{
		IdentifierMin:  c.Matching.Identifier.Min,
		IdentifierAuto: c.Matching.Identifier.Auto,
		ValueDateMin:   c.Matching.ValueDate.Min,
		ValueDateAuto:  c.Matching.ValueDate.Auto,
		SimilarityMin:  c.Matching.Similarity.Min,
		SimilarityAuto: c.Matching.Similarity.Auto,
		MinSimilarity:  c.Matching.MinSimilarity,
	}
}
