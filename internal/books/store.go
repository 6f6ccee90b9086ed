package books

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/conciliar-dev/conciliar/internal/id"
	"github.com/conciliar-dev/conciliar/internal/model"
)

// File names inside each YYYY/MM directory.
const (
	TransactionsFile = "transactions.csv"
	LedgerFile       = "ledger.csv"
)

// ErrNotFound is returned when a record or batch does not exist.
var ErrNotFound = errors.New("not found")

// Store reads and writes one company's bank transactions and ledger entries
// as monthly CSV files under the workspace root.
type Store struct {
	repoRoot  string
	companyID string
}

// NewStore creates a Store scoped to companyID.
func NewStore(repoRoot, companyID string) *Store {
	return &Store{repoRoot: repoRoot, companyID: companyID}
}

// CompanyID returns the company the store is scoped to.
func (s *Store) CompanyID() string { return s.companyID }

type monthKey struct{ year, month int }

func keyOf(t time.Time) monthKey { return monthKey{t.Year(), int(t.Month())} }

func (k monthKey) less(o monthKey) bool {
	if k.year != o.year {
		return k.year < o.year
	}
	return k.month < o.month
}

func (s *Store) monthPath(k monthKey, name string) string {
	return filepath.Join(s.repoRoot, fmt.Sprintf("%04d", k.year), fmt.Sprintf("%02d", k.month), name)
}

// AddTransactions assigns IDs to txns, validates each affected month and
// appends them to its transactions.csv. It returns the stored records.
func (s *Store) AddTransactions(txns []model.BankTransaction) ([]model.BankTransaction, error) {
	groups, order := groupByMonth(txns, func(tx model.BankTransaction) time.Time { return tx.OperationDate })
	var stored []model.BankTransaction
	for _, k := range order {
		existing, err := s.readTransactionsMonth(k)
		if err != nil {
			return nil, err
		}
		seq := nextSeq(existing, func(tx model.BankTransaction) string { return tx.ID })

		added := groups[k]
		for i := range added {
			added[i].ID = id.FormatRecordID(id.TransactionPrefix, k.year, k.month, seq+i)
			added[i].CompanyID = s.companyID
		}
		if err := validationFailure(ValidateTransactions(append(existing, added...), k.year, k.month)); err != nil {
			return nil, err
		}
		if err := appendRows(s.monthPath(k, TransactionsFile), TransactionHeader, added, MarshalTransaction); err != nil {
			return nil, fmt.Errorf("appending transactions: %w", err)
		}
		stored = append(stored, added...)
	}
	return stored, nil
}

// AddEntries assigns IDs to entries, validates each affected month and
// appends them to its ledger.csv. It returns the stored records.
func (s *Store) AddEntries(entries []model.LedgerEntry) ([]model.LedgerEntry, error) {
	groups, order := groupByMonth(entries, func(e model.LedgerEntry) time.Time { return e.DueDate })
	var stored []model.LedgerEntry
	for _, k := range order {
		existing, err := s.readEntriesMonth(k)
		if err != nil {
			return nil, err
		}
		seq := nextSeq(existing, func(e model.LedgerEntry) string { return e.ID })

		added := groups[k]
		for i := range added {
			added[i].ID = id.FormatRecordID(id.EntryPrefix, k.year, k.month, seq+i)
			added[i].CompanyID = s.companyID
			if added[i].Status == "" {
				added[i].Status = model.LedgerOpen
			}
		}
		if err := validationFailure(ValidateEntries(append(existing, added...), k.year, k.month)); err != nil {
			return nil, err
		}
		if err := appendRows(s.monthPath(k, LedgerFile), EntryHeader, added, MarshalEntry); err != nil {
			return nil, fmt.Errorf("appending ledger entries: %w", err)
		}
		stored = append(stored, added...)
	}
	return stored, nil
}

// Transactions returns the company's transactions whose operation date falls
// in [from, to], compared by calendar day. A zero bound is open.
func (s *Store) Transactions(from, to time.Time) ([]model.BankTransaction, error) {
	months, err := s.months(TransactionsFile, from, to)
	if err != nil {
		return nil, err
	}
	var out []model.BankTransaction
	for _, k := range months {
		txns, err := s.readTransactionsMonth(k)
		if err != nil {
			return nil, err
		}
		for _, tx := range txns {
			if tx.CompanyID == s.companyID && inRange(tx.OperationDate, from, to) {
				out = append(out, tx)
			}
		}
	}
	return out, nil
}

// Entries returns the company's ledger entries due in [from, to]. A zero
// bound is open.
func (s *Store) Entries(from, to time.Time) ([]model.LedgerEntry, error) {
	months, err := s.months(LedgerFile, from, to)
	if err != nil {
		return nil, err
	}
	var out []model.LedgerEntry
	for _, k := range months {
		entries, err := s.readEntriesMonth(k)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.CompanyID == s.companyID && inRange(e.DueDate, from, to) {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

// Transaction looks up one transaction by ID.
func (s *Store) Transaction(recID string) (model.BankTransaction, error) {
	k, err := monthOfID(recID)
	if err != nil {
		return model.BankTransaction{}, err
	}
	txns, err := s.readTransactionsMonth(k)
	if err != nil {
		return model.BankTransaction{}, err
	}
	for _, tx := range txns {
		if tx.ID == recID && tx.CompanyID == s.companyID {
			return tx, nil
		}
	}
	return model.BankTransaction{}, fmt.Errorf("transaction %s: %w", recID, ErrNotFound)
}

// Entry looks up one ledger entry by ID.
func (s *Store) Entry(recID string) (model.LedgerEntry, error) {
	k, err := monthOfID(recID)
	if err != nil {
		return model.LedgerEntry{}, err
	}
	entries, err := s.readEntriesMonth(k)
	if err != nil {
		return model.LedgerEntry{}, err
	}
	for _, e := range entries {
		if e.ID == recID && e.CompanyID == s.companyID {
			return e, nil
		}
	}
	return model.LedgerEntry{}, fmt.Errorf("ledger entry %s: %w", recID, ErrNotFound)
}

// UpdateTransactions replaces stored transactions that share an ID with one
// in txns and rewrites the affected month files.
func (s *Store) UpdateTransactions(txns []model.BankTransaction) error {
	byMonth := make(map[monthKey]map[string]model.BankTransaction)
	for _, tx := range txns {
		k, err := monthOfID(tx.ID)
		if err != nil {
			return err
		}
		if byMonth[k] == nil {
			byMonth[k] = make(map[string]model.BankTransaction)
		}
		byMonth[k][tx.ID] = tx
	}
	for k, updates := range byMonth {
		existing, err := s.readTransactionsMonth(k)
		if err != nil {
			return err
		}
		for i, tx := range existing {
			if u, ok := updates[tx.ID]; ok && tx.CompanyID == s.companyID {
				existing[i] = u
				delete(updates, tx.ID)
			}
		}
		if len(updates) > 0 {
			return fmt.Errorf("transaction %s: %w", firstKey(updates), ErrNotFound)
		}
		if err := validationFailure(ValidateTransactions(existing, k.year, k.month)); err != nil {
			return err
		}
		if err := rewrite(s.monthPath(k, TransactionsFile), func(w io.Writer) error { return WriteTransactions(w, existing) }); err != nil {
			return err
		}
	}
	return nil
}

// UpdateEntries replaces stored ledger entries that share an ID with one in
// entries and rewrites the affected month files.
func (s *Store) UpdateEntries(entries []model.LedgerEntry) error {
	byMonth := make(map[monthKey]map[string]model.LedgerEntry)
	for _, e := range entries {
		k, err := monthOfID(e.ID)
		if err != nil {
			return err
		}
		if byMonth[k] == nil {
			byMonth[k] = make(map[string]model.LedgerEntry)
		}
		byMonth[k][e.ID] = e
	}
	for k, updates := range byMonth {
		existing, err := s.readEntriesMonth(k)
		if err != nil {
			return err
		}
		for i, e := range existing {
			if u, ok := updates[e.ID]; ok && e.CompanyID == s.companyID {
				existing[i] = u
				delete(updates, e.ID)
			}
		}
		if len(updates) > 0 {
			return fmt.Errorf("ledger entry %s: %w", firstKey(updates), ErrNotFound)
		}
		if err := validationFailure(ValidateEntries(existing, k.year, k.month)); err != nil {
			return err
		}
		if err := rewrite(s.monthPath(k, LedgerFile), func(w io.Writer) error { return WriteEntries(w, existing) }); err != nil {
			return err
		}
	}
	return nil
}

// Hashes returns the dedup hashes of every stored transaction.
func (s *Store) Hashes() (map[string]bool, error) {
	txns, err := s.Transactions(time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(txns))
	for _, tx := range txns {
		if tx.Hash != "" {
			seen[tx.Hash] = true
		}
	}
	return seen, nil
}

func (s *Store) readTransactionsMonth(k monthKey) ([]model.BankTransaction, error) {
	return readFile(s.monthPath(k, TransactionsFile), ReadTransactions)
}

func (s *Store) readEntriesMonth(k monthKey) ([]model.LedgerEntry, error) {
	return readFile(s.monthPath(k, LedgerFile), ReadEntries)
}

// months lists the YYYY/MM directories holding name that overlap [from, to].
func (s *Store) months(name string, from, to time.Time) ([]monthKey, error) {
	years, err := os.ReadDir(s.repoRoot)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", s.repoRoot, err)
	}

	var keys []monthKey
	for _, y := range years {
		year, err := strconv.Atoi(y.Name())
		if !y.IsDir() || err != nil || len(y.Name()) != 4 {
			continue
		}
		months, err := os.ReadDir(filepath.Join(s.repoRoot, y.Name()))
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", y.Name(), err)
		}
		for _, m := range months {
			month, err := strconv.Atoi(m.Name())
			if !m.IsDir() || err != nil || month < 1 || month > 12 {
				continue
			}
			k := monthKey{year, month}
			if !from.IsZero() && k.less(keyOf(from)) {
				continue
			}
			if !to.IsZero() && keyOf(to).less(k) {
				continue
			}
			if _, err := os.Stat(s.monthPath(k, name)); err == nil {
				keys = append(keys, k)
			}
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })
	return keys, nil
}

func monthOfID(recID string) (monthKey, error) {
	_, year, month, _, err := id.ParseRecordID(recID)
	if err != nil {
		return monthKey{}, err
	}
	return monthKey{year, month}, nil
}

func groupByMonth[T any](values []T, date func(T) time.Time) (map[monthKey][]T, []monthKey) {
	groups := make(map[monthKey][]T)
	var order []monthKey
	for _, v := range values {
		k := keyOf(date(v))
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], v)
	}
	sort.Slice(order, func(i, j int) bool { return order[i].less(order[j]) })
	return groups, order
}

func nextSeq[T any](values []T, recID func(T) string) int {
	maxSeq := 0
	for _, v := range values {
		_, _, _, seq, err := id.ParseRecordID(recID(v))
		if err != nil {
			continue
		}
		if seq > maxSeq {
			maxSeq = seq
		}
	}
	return maxSeq + 1
}

func firstKey[V any](m map[string]V) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys[0]
}

func inRange(t, from, to time.Time) bool {
	day := civilDay(t)
	if !from.IsZero() && day.Before(civilDay(from)) {
		return false
	}
	if !to.IsZero() && day.After(civilDay(to)) {
		return false
	}
	return true
}

func civilDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func validationFailure(verrs []ValidationError) error {
	if len(verrs) == 0 {
		return nil
	}
	msgs := make([]string, len(verrs))
	for i, ve := range verrs {
		msgs[i] = ve.Error()
	}
	return fmt.Errorf("validation failed: %s", strings.Join(msgs, "; "))
}

func readFile[T any](path string, read func(io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	values, err := read(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return values, nil
}

// appendRows appends values to path, writing header first when the file is new.
func appendRows[T any](path, header string, values []T, marshal func(T) []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating dir: %w", err)
	}

	isNew := false
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		isNew = true
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	if isNew {
		return writeRows(f, header, values, marshal)
	}
	return appendOnly(f, values, marshal)
}

// rewrite replaces path atomically with the output of write.
func rewrite(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
