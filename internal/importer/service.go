package importer

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/conciliar-dev/conciliar/internal/bankfile"
	"github.com/conciliar-dev/conciliar/internal/model"
	"github.com/conciliar-dev/conciliar/internal/textnorm"
)

// Store is the slice of the books store ingestion writes to.
type Store interface {
	CompanyID() string
	Hashes() (map[string]bool, error)
	Entries(from, to time.Time) ([]model.LedgerEntry, error)
	AddTransactions(txns []model.BankTransaction) ([]model.BankTransaction, error)
	AddEntries(entries []model.LedgerEntry) ([]model.LedgerEntry, error)
}

// Summary reports what one imported file contributed.
type Summary struct {
	File         string
	Format       string
	AccountID    string
	Transactions int
	Entries      int
	Duplicates   int
	Skipped      int
	Errors       []error
}

// Service decodes files and stores their new records.
type Service struct {
	store    Store
	registry *Registry
	accounts []model.BankAccount
	logger   *slog.Logger
}

// NewService creates an import Service. accounts are used to attribute
// statements that identify their bank account.
func NewService(store Store, registry *Registry, accounts []model.BankAccount, logger *slog.Logger) *Service {
	return &Service{store: store, registry: registry, accounts: accounts, logger: logger}
}

// Import detects the format of data, decodes it and stores records that are
// not already in the books. accountID, when set, overrides the account
// resolved from the file.
func (s *Service) Import(filename string, data []byte, accountID string) (Summary, error) {
	sum := Summary{File: filename}
	dec, err := s.registry.Detect(data, filename)
	if err != nil {
		return sum, err
	}
	sum.Format = dec.Format()

	res, err := dec.Decode(data)
	if err != nil {
		return sum, fmt.Errorf("decoding %s as %s: %w", filename, sum.Format, err)
	}
	sum.Errors = res.Errors
	sum.Skipped = res.Skipped
	for _, lineErr := range res.Errors {
		s.logger.Warn("line skipped", "file", filename, "error", lineErr)
	}

	if accountID == "" {
		accountID = s.resolveAccount(res)
	}
	sum.AccountID = accountID

	if len(res.Transactions) > 0 {
		n, dups, err := s.addTransactions(res.Transactions, accountID)
		if err != nil {
			return sum, err
		}
		sum.Transactions, sum.Duplicates = n, sum.Duplicates+dups
	}
	if len(res.Entries) > 0 {
		n, dups, err := s.addEntries(res.Entries)
		if err != nil {
			return sum, err
		}
		sum.Entries, sum.Duplicates = n, sum.Duplicates+dups
	}

	s.logger.Info("file imported",
		"file", filename,
		"format", sum.Format,
		"account", accountID,
		"transactions", sum.Transactions,
		"entries", sum.Entries,
		"duplicates", sum.Duplicates,
		"line_errors", len(sum.Errors))
	return sum, nil
}

// ImportPending imports every file waiting in <repoRoot>/import/ and moves
// the successful ones to import/processed/. Files that fail are left in place
// and reported in the returned error.
func (s *Service) ImportPending(repoRoot, accountID string) ([]Summary, error) {
	files, err := Scan(repoRoot)
	if err != nil {
		return nil, err
	}
	var sums []Summary
	var errs []error
	for _, f := range files {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			errs = append(errs, fmt.Errorf("reading %s: %w", f.Name, err))
			continue
		}
		sum, err := s.Import(f.Name, data, accountID)
		if err != nil {
			s.logger.Error("import failed", "file", f.Name, "error", err)
			errs = append(errs, err)
			continue
		}
		if err := MarkProcessed(repoRoot, f.Name); err != nil {
			errs = append(errs, err)
		}
		sums = append(sums, sum)
	}
	return sums, errors.Join(errs...)
}

func (s *Service) addTransactions(txns []model.BankTransaction, accountID string) (int, int, error) {
	seen, err := s.store.Hashes()
	if err != nil {
		return 0, 0, fmt.Errorf("loading transaction hashes: %w", err)
	}
	for i := range txns {
		txns[i].NormalizedDescription = textnorm.Normalize(txns[i].Description)
		if txns[i].AccountID == "" {
			txns[i].AccountID = accountID
		}
	}
	kept, dups := Dedup(s.store.CompanyID(), txns, seen)
	if len(kept) == 0 {
		return 0, dups, nil
	}
	stored, err := s.store.AddTransactions(kept)
	if err != nil {
		return 0, dups, fmt.Errorf("storing transactions: %w", err)
	}
	return len(stored), dups, nil
}

func (s *Service) addEntries(entries []model.LedgerEntry) (int, int, error) {
	existing, err := s.store.Entries(time.Time{}, time.Time{})
	if err != nil {
		return 0, 0, fmt.Errorf("loading ledger entries: %w", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, e := range existing {
		seen[EntryKey(e)] = true
	}
	kept, dups := DedupEntries(entries, seen)
	if len(kept) == 0 {
		return 0, dups, nil
	}
	stored, err := s.store.AddEntries(kept)
	if err != nil {
		return 0, dups, fmt.Errorf("storing ledger entries: %w", err)
	}
	return len(stored), dups, nil
}

// resolveAccount finds the configured account a decoded file belongs to by
// comparing account digits, and bank code when both sides have one.
func (s *Service) resolveAccount(res *bankfile.Result) string {
	acct := onlyDigits(res.Account)
	if acct == "" {
		return ""
	}
	for _, a := range s.accounts {
		if res.BankCode != "" && a.BankCode != "" && strings.TrimLeft(res.BankCode, "0") != strings.TrimLeft(a.BankCode, "0") {
			continue
		}
		if strings.TrimLeft(onlyDigits(a.Account), "0") == strings.TrimLeft(acct, "0") {
			return a.ID
		}
	}
	return ""
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
