// Package transfer finds movements between two accounts of the same company.
package transfer

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/conciliar-dev/conciliar/internal/id"
	"github.com/conciliar-dev/conciliar/internal/model"
	"github.com/conciliar-dev/conciliar/internal/textnorm"
)

// Defaults.
const (
	DefaultWindowHours   = 60
	DefaultMinConfidence = 70

	maxTimePenalty       = 30
	maxSimilarityBonus   = 20
	minBonusSimilarity   = 0.5
	confidenceFloor      = 50
	confidenceCeiling    = 100
	startingConfidence   = 100
	amountToleranceCents = 1
)

// Options configures detection.
type Options struct {
	WindowHours   float64
	MinConfidence int
}

// DefaultOptions returns the stock detection options.
func DefaultOptions() Options {
	return Options{WindowHours: DefaultWindowHours, MinConfidence: DefaultMinConfidence}
}

// Pair is a debit and a credit that look like the two legs of one transfer.
type Pair struct {
	DebitID    string
	CreditID   string
	Confidence int
	HoursApart float64
}

var tolerance = decimal.New(amountToleranceCents, -2)

// Detect scores every pending debit/credit pair in txns and returns those at
// or above the minimum confidence, ordered by confidence descending.
// A transaction may appear in several pairs; see Resolve.
func Detect(txns []model.BankTransaction, opts Options) []Pair {
	var debits, credits []model.BankTransaction
	for _, tx := range txns {
		if tx.Status != model.TxPending {
			continue
		}
		switch tx.Direction {
		case model.Debit:
			debits = append(debits, tx)
		case model.Credit:
			credits = append(credits, tx)
		}
	}

	var pairs []Pair
	for _, d := range debits {
		for _, c := range credits {
			if d.CompanyID != c.CompanyID || !crossAccount(d, c) {
				continue
			}
			if d.Amount.Sub(c.Amount).Abs().GreaterThanOrEqual(tolerance) {
				continue
			}
			hours := math.Abs(c.OperationDate.Sub(d.OperationDate).Hours())
			if hours > opts.WindowHours {
				continue
			}
			conf := score(hours, opts.WindowHours, d.NormalizedDescription, c.NormalizedDescription)
			if conf < opts.MinConfidence {
				continue
			}
			pairs = append(pairs, Pair{DebitID: d.ID, CreditID: c.ID, Confidence: conf, HoursApart: hours})
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].Confidence > pairs[j].Confidence })
	return pairs
}

// crossAccount rejects a pair when the debit names an account and the credit
// sits on that same account or names none. A debit without an account may
// pair with any credit.
func crossAccount(d, c model.BankTransaction) bool {
	if d.AccountID == "" {
		return true
	}
	return c.AccountID != "" && c.AccountID != d.AccountID
}

func score(hours, window float64, debitDesc, creditDesc string) int {
	conf := float64(startingConfidence)
	if window > 0 {
		conf -= math.Min(maxTimePenalty, hours/window*maxTimePenalty)
	}
	if sim := textnorm.EditSimilarity(debitDesc, creditDesc); sim >= minBonusSimilarity {
		conf += math.Min(maxSimilarityBonus, sim*maxSimilarityBonus)
	}
	conf = math.Max(confidenceFloor, math.Min(confidenceCeiling, conf))
	return int(math.Round(conf))
}

// Resolve keeps a disjoint subset of pairs, taking the most confident first.
func Resolve(pairs []Pair) []Pair {
	sorted := append([]Pair(nil), pairs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Confidence > sorted[j].Confidence })

	used := make(map[string]bool)
	var out []Pair
	for _, p := range sorted {
		if used[p.DebitID] || used[p.CreditID] {
			continue
		}
		used[p.DebitID] = true
		used[p.CreditID] = true
		out = append(out, p)
	}
	return out
}

// GroupID is the transfer group shared by both legs of p.
func (p Pair) GroupID() string {
	if id.Less(p.CreditID, p.DebitID) {
		return p.CreditID
	}
	return p.DebitID
}

// Apply marks both legs of every pair as an internal transfer and returns the
// changed transactions. Classification is cleared on both legs.
func Apply(txns []model.BankTransaction, pairs []Pair) []model.BankTransaction {
	group := make(map[string]string, 2*len(pairs))
	for _, p := range pairs {
		g := p.GroupID()
		group[p.DebitID] = g
		group[p.CreditID] = g
	}

	var changed []model.BankTransaction
	for _, tx := range txns {
		g, ok := group[tx.ID]
		if !ok {
			continue
		}
		tx.Status = model.TxInternalTransfer
		tx.TransferGroupID = g
		tx.CategoryID = 0
		tx.Confidence = 0
		changed = append(changed, tx)
	}
	return changed
}

// Store is the slice of the books store detection needs.
type Store interface {
	Transactions(from, to time.Time) ([]model.BankTransaction, error)
	UpdateTransactions(txns []model.BankTransaction) error
}

// Service runs detection over stored transactions.
type Service struct {
	store  Store
	opts   Options
	logger *slog.Logger
}

// NewService creates a transfer detection Service.
func NewService(store Store, opts Options, logger *slog.Logger) *Service {
	return &Service{store: store, opts: opts, logger: logger}
}

// Run detects transfers among pending transactions in [from, to]. When apply
// is true the chosen pairs are written back as internal transfers.
func (s *Service) Run(from, to time.Time, apply bool) ([]Pair, error) {
	txns, err := s.store.Transactions(from, to)
	if err != nil {
		return nil, err
	}
	pairs := Resolve(Detect(txns, s.opts))
	for _, p := range pairs {
		s.logger.Debug("transfer candidate",
			"debit", p.DebitID, "credit", p.CreditID, "confidence", p.Confidence,
			"hours_apart", p.HoursApart)
	}
	if !apply || len(pairs) == 0 {
		return pairs, nil
	}
	if err := s.store.UpdateTransactions(Apply(txns, pairs)); err != nil {
		return nil, fmt.Errorf("saving transfers: %w", err)
	}
	s.logger.Info("internal transfers marked", "pairs", len(pairs))
	return pairs, nil
}
