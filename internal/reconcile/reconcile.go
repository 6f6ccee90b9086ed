// Package reconcile runs matching batches over stored records and writes the
// outcome back to the ledger.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/conciliar-dev/conciliar/internal/matching"
	"github.com/conciliar-dev/conciliar/internal/model"
)

// Store is the slice of the books store a batch needs.
type Store interface {
	CompanyID() string
	Transactions(from, to time.Time) ([]model.BankTransaction, error)
	Entries(from, to time.Time) ([]model.LedgerEntry, error)
	Transaction(id string) (model.BankTransaction, error)
	Entry(id string) (model.LedgerEntry, error)
	UpdateEntries(entries []model.LedgerEntry) error
	SaveBatch(b model.Batch, matches []model.Match, divs []model.Divergence) error
	Batches() ([]model.Batch, error)
	Batch(id string) (model.Batch, error)
	Matches(batchID string) ([]model.Match, error)
	Divergences(batchID string) ([]model.Divergence, error)
}

// ErrNotSuggested is returned when resolving a pair the batch did not suggest.
var ErrNotSuggested = errors.New("no such suggestion in batch")

// Service orchestrates reconciliation batches.
type Service struct {
	store  Store
	opts   matching.Options
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewService creates a reconciliation Service.
func NewService(store Store, opts matching.Options, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		opts:   opts,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// RunParams selects the records of a batch.
type RunParams struct {
	From      time.Time
	To        time.Time
	AccountID string // empty means every account
}

// Report is a batch with its matches and divergences.
type Report struct {
	Batch       model.Batch
	Matches     []model.Match
	Divergences []model.Divergence
}

// Automatic returns the matches that consumed both participants.
func (r *Report) Automatic() []model.Match {
	var out []model.Match
	for _, m := range r.Matches {
		if m.Locks() {
			out = append(out, m)
		}
	}
	return out
}

// Suggested returns the matches awaiting review.
func (r *Report) Suggested() []model.Match {
	var out []model.Match
	for _, m := range r.Matches {
		if m.Origin == model.MatchSuggested {
			out = append(out, m)
		}
	}
	return out
}

// Run creates a batch over [From, To], matches unreconciled transactions
// against open and partially reconciled ledger entries due in the window, and
// persists the result.
func (s *Service) Run(ctx context.Context, p RunParams) (*Report, error) {
	if p.From.IsZero() || p.To.IsZero() || p.To.Before(p.From) {
		return nil, fmt.Errorf("invalid period %s to %s", p.From.Format(time.DateOnly), p.To.Format(time.DateOnly))
	}

	batch := model.Batch{
		ID:        s.newID(),
		CompanyID: s.store.CompanyID(),
		AccountID: p.AccountID,
		From:      p.From,
		To:        p.To,
		MatchRate: decimal.Zero,
		Status:    model.BatchProcessing,
		CreatedAt: s.now().UTC().Truncate(time.Second),
	}
	if err := s.store.SaveBatch(batch, nil, nil); err != nil {
		return nil, fmt.Errorf("creating batch: %w", err)
	}
	logger := s.logger.With("batch", batch.ID)
	logger.Info("reconciliation started", "from", p.From.Format(time.DateOnly), "to", p.To.Format(time.DateOnly), "account", p.AccountID)

	report, err := s.run(ctx, batch, p)
	if err != nil {
		batch.Status = model.BatchError
		if serr := s.store.SaveBatch(batch, nil, nil); serr != nil {
			logger.Error("marking batch as failed", "error", serr)
		}
		return nil, err
	}
	logger.Info("reconciliation finished",
		"transactions", report.Batch.Transactions,
		"entries", report.Batch.Entries,
		"matched", report.Batch.Matched,
		"divergent", report.Batch.Divergent,
		"match_rate", report.Batch.MatchRate.StringFixed(2))
	return report, nil
}

func (s *Service) run(ctx context.Context, batch model.Batch, p RunParams) (*Report, error) {
	reconciled, err := s.reconciledTransactions()
	if err != nil {
		return nil, err
	}

	allTxns, err := s.store.Transactions(p.From, p.To)
	if err != nil {
		return nil, fmt.Errorf("loading transactions: %w", err)
	}
	var txns []model.BankTransaction
	for _, tx := range allTxns {
		if tx.Status == model.TxInternalTransfer || reconciled[tx.ID] {
			continue
		}
		if p.AccountID != "" && tx.AccountID != p.AccountID {
			continue
		}
		txns = append(txns, tx)
	}

	allEntries, err := s.store.Entries(p.From, p.To)
	if err != nil {
		return nil, fmt.Errorf("loading ledger entries: %w", err)
	}
	var entries []model.LedgerEntry
	stored := make(map[string]model.LedgerEntry)
	for _, e := range allEntries {
		if settleable(e) {
			entries = append(entries, outstanding(e))
			stored[e.ID] = e
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := matching.Run(txns, entries, s.opts)

	txByID := make(map[string]model.BankTransaction, len(txns))
	for _, tx := range txns {
		txByID[tx.ID] = tx
	}
	entryByID := make(map[string]model.LedgerEntry, len(entries))
	for _, e := range entries {
		entryByID[e.ID] = e
	}

	var divs []model.Divergence
	var settled []model.LedgerEntry
	for _, m := range res.Automatic {
		tx, e := txByID[m.TransactionID], entryByID[m.EntryID]
		divs = append(divs, matchDivergences(batch.ID, m, tx, e)...)
		settled = append(settled, Settle(stored[m.EntryID], tx))
	}
	for _, txID := range res.UnmatchedTransactions {
		tx := txByID[txID]
		divs = append(divs, model.Divergence{
			BatchID:       batch.ID,
			Kind:          model.DivergenceNotFoundInLedger,
			TransactionID: txID,
			Description:   fmt.Sprintf("%s %s on %s has no ledger entry", tx.Direction, tx.Amount.StringFixed(2), tx.OperationDate.Format(time.DateOnly)),
			Found:         tx.Amount,
		})
	}
	for _, entryID := range res.UnmatchedEntries {
		e := entryByID[entryID]
		divs = append(divs, model.Divergence{
			BatchID:     batch.ID,
			Kind:        model.DivergenceNotFoundInBank,
			EntryID:     entryID,
			Description: fmt.Sprintf("%s %s due %s not found in bank", e.Direction, e.Amount.StringFixed(2), e.DueDate.Format(time.DateOnly)),
			Expected:    e.Amount,
		})
	}

	if len(settled) > 0 {
		if err := s.store.UpdateEntries(settled); err != nil {
			return nil, fmt.Errorf("updating ledger entries: %w", err)
		}
	}

	batch.Transactions = res.Stats.Transactions
	batch.Entries = res.Stats.Entries
	batch.Matched = res.Stats.Matched
	batch.MatchRate = res.Stats.MatchRate
	batch.Divergent = len(divs)
	batch.Status = model.BatchDone

	matches := res.Matches()
	if err := s.store.SaveBatch(batch, matches, divs); err != nil {
		return nil, fmt.Errorf("saving batch: %w", err)
	}
	return &Report{Batch: batch, Matches: matches, Divergences: divs}, nil
}

// reconciledTransactions collects transactions consumed by earlier batches.
func (s *Service) reconciledTransactions() (map[string]bool, error) {
	batches, err := s.store.Batches()
	if err != nil {
		return nil, fmt.Errorf("listing batches: %w", err)
	}
	used := make(map[string]bool)
	for _, b := range batches {
		if b.Status != model.BatchDone {
			continue
		}
		matches, err := s.store.Matches(b.ID)
		if err != nil {
			return nil, fmt.Errorf("loading matches of batch %s: %w", b.ID, err)
		}
		for _, m := range matches {
			if m.Locks() {
				used[m.TransactionID] = true
			}
		}
	}
	return used, nil
}

// matchDivergences flags locked matches whose amounts or dates disagree.
func matchDivergences(batchID string, m model.Match, tx model.BankTransaction, e model.LedgerEntry) []model.Divergence {
	var divs []model.Divergence
	if !m.AmountDelta.IsZero() {
		divs = append(divs, model.Divergence{
			BatchID:       batchID,
			Kind:          model.DivergenceValueMismatch,
			TransactionID: m.TransactionID,
			EntryID:       m.EntryID,
			Description:   fmt.Sprintf("amount differs by %s", m.AmountDelta.StringFixed(2)),
			Expected:      e.Amount,
			Found:         tx.Amount,
		})
	}
	if matching.DateMismatch(m.DaysApart) {
		divs = append(divs, model.Divergence{
			BatchID:       batchID,
			Kind:          model.DivergenceDateMismatch,
			TransactionID: m.TransactionID,
			EntryID:       m.EntryID,
			Description:   fmt.Sprintf("settled %d days from the expected date", m.DaysApart),
			Expected:      e.Amount,
			Found:         tx.Amount,
		})
	}
	return divs
}

func settleable(e model.LedgerEntry) bool {
	return e.Status == model.LedgerOpen || e.Status == model.LedgerPartiallyReconciled
}

// outstanding is e as the matcher sees it. A partially reconciled entry is
// matched on its unpaid balance.
func outstanding(e model.LedgerEntry) model.LedgerEntry {
	if e.Status == model.LedgerPartiallyReconciled {
		e.Amount = e.Amount.Sub(e.AmountPaid)
	}
	return e
}

// Settle records tx as payment of e. On an open entry the bank amount
// replaces any amount paid reported by the source file; a partially
// reconciled entry accumulates it. The entry is reconciled once the paid
// amount covers it, otherwise partially reconciled.
func Settle(e model.LedgerEntry, tx model.BankTransaction) model.LedgerEntry {
	if e.Status == model.LedgerPartiallyReconciled {
		e.AmountPaid = e.AmountPaid.Add(tx.Amount)
	} else {
		e.AmountPaid = tx.Amount
	}
	d := tx.EffectiveDate()
	e.PaymentDate = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	if e.AmountPaid.GreaterThanOrEqual(e.Amount) {
		e.Status = model.LedgerReconciled
	} else {
		e.Status = model.LedgerPartiallyReconciled
	}
	return e
}

// Show loads a stored batch.
func (s *Service) Show(batchID string) (*Report, error) {
	b, err := s.store.Batch(batchID)
	if err != nil {
		return nil, err
	}
	matches, err := s.store.Matches(batchID)
	if err != nil {
		return nil, err
	}
	divs, err := s.store.Divergences(batchID)
	if err != nil {
		return nil, err
	}
	return &Report{Batch: b, Matches: matches, Divergences: divs}, nil
}

// Approve promotes a suggested match to a locked one, settles the entry, and
// updates the batch's divergences and statistics.
func (s *Service) Approve(_ context.Context, batchID, txID, entryID string) (model.Match, error) {
	report, err := s.Show(batchID)
	if err != nil {
		return model.Match{}, err
	}

	idx, err := suggestion(report, txID, entryID)
	if err != nil {
		return model.Match{}, err
	}

	tx, err := s.store.Transaction(txID)
	if err != nil {
		return model.Match{}, err
	}
	e, err := s.store.Entry(entryID)
	if err != nil {
		return model.Match{}, err
	}
	if !settleable(e) {
		return model.Match{}, fmt.Errorf("ledger entry %s is %s", entryID, e.Status)
	}

	approved := report.Matches[idx]
	approved.Origin = model.MatchApproved

	// Suggestions touching either side are settled by this approval.
	var matches []model.Match
	for i, m := range report.Matches {
		switch {
		case i == idx:
			matches = append(matches, approved)
		case m.Origin == model.MatchSuggested && (m.TransactionID == txID || m.EntryID == entryID):
		default:
			matches = append(matches, m)
		}
	}

	var divs []model.Divergence
	for _, d := range report.Divergences {
		if d.Kind == model.DivergenceNotFoundInLedger && d.TransactionID == txID {
			continue
		}
		if d.Kind == model.DivergenceNotFoundInBank && d.EntryID == entryID {
			continue
		}
		divs = append(divs, d)
	}
	divs = append(divs, matchDivergences(batchID, approved, tx, outstanding(e))...)

	if err := s.store.UpdateEntries([]model.LedgerEntry{Settle(e, tx)}); err != nil {
		return model.Match{}, fmt.Errorf("updating ledger entry: %w", err)
	}

	b := report.Batch
	b.Matched++
	b.MatchRate = matching.MatchRate(b.Matched, b.Transactions, b.Entries)
	b.Divergent = len(divs)
	if err := s.store.SaveBatch(b, matches, divs); err != nil {
		return model.Match{}, fmt.Errorf("saving batch: %w", err)
	}
	s.logger.Info("suggestion approved", "batch", batchID, "transaction", txID, "entry", entryID, "confidence", approved.Confidence)
	return approved, nil
}

// Reject dismisses a suggested match. Both participants stay unmatched in the
// batch and keep their not-found divergences.
func (s *Service) Reject(_ context.Context, batchID, txID, entryID string) (model.Match, error) {
	report, err := s.Show(batchID)
	if err != nil {
		return model.Match{}, err
	}
	idx, err := suggestion(report, txID, entryID)
	if err != nil {
		return model.Match{}, err
	}
	report.Matches[idx].Origin = model.MatchRejected
	if err := s.store.SaveBatch(report.Batch, report.Matches, report.Divergences); err != nil {
		return model.Match{}, fmt.Errorf("saving batch: %w", err)
	}
	s.logger.Info("suggestion rejected", "batch", batchID, "transaction", txID, "entry", entryID)
	return report.Matches[idx], nil
}

// suggestion finds the pending suggestion for the pair. It fails when either
// side is already locked in the batch.
func suggestion(report *Report, txID, entryID string) (int, error) {
	idx := -1
	for i, m := range report.Matches {
		if m.Locks() && (m.TransactionID == txID || m.EntryID == entryID) {
			return -1, fmt.Errorf("%s or %s is already matched in batch %s", txID, entryID, report.Batch.ID)
		}
		if m.Origin == model.MatchSuggested && m.TransactionID == txID && m.EntryID == entryID {
			idx = i
		}
	}
	if idx < 0 {
		return -1, fmt.Errorf("%s/%s: %w", txID, entryID, ErrNotSuggested)
	}
	return idx, nil
}

// Reconciled returns the batch's locked matches with both participants.
func (s *Service) Reconciled(batchID string) ([]model.Reconciled, error) {
	report, err := s.Show(batchID)
	if err != nil {
		return nil, err
	}
	var out []model.Reconciled
	for _, m := range report.Automatic() {
		tx, err := s.store.Transaction(m.TransactionID)
		if err != nil {
			return nil, err
		}
		e, err := s.store.Entry(m.EntryID)
		if err != nil {
			return nil, err
		}
		out = append(out, model.Reconciled{Match: m, Transaction: tx, Entry: e})
	}
	return out, nil
}
