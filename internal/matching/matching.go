// Package matching pairs bank transactions with ledger entries in three
// phases of decreasing certainty: shared identifiers, amount and date, and
// description similarity.
package matching

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/conciliar-dev/conciliar/internal/model"
)

// Phases.
const (
	PhaseIdentifier = 1
	PhaseValueDate  = 2
	PhaseSimilarity = 3
)

// Stats summarizes a run.
type Stats struct {
	Transactions int
	Entries      int
	Matched      int
	MatchRate    decimal.Decimal // percent, two decimals
}

// Result is the outcome of a run. Inputs are never modified.
type Result struct {
	Automatic             []model.Match
	Suggested             []model.Match
	UnmatchedTransactions []string
	UnmatchedEntries      []string
	Stats                 Stats
}

// Matches returns automatic matches followed by suggestions.
func (r Result) Matches() []model.Match {
	out := make([]model.Match, 0, len(r.Automatic)+len(r.Suggested))
	out = append(out, r.Automatic...)
	return append(out, r.Suggested...)
}

type run struct {
	opts      Options
	txns      []model.BankTransaction
	entries   []model.LedgerEntry
	txUsed    map[string]bool
	entryUsed map[string]bool
	result    Result
}

// Run matches txns against entries. A transaction or entry takes part in at
// most one automatic match; suggestions never consume either side.
func Run(txns []model.BankTransaction, entries []model.LedgerEntry, opts Options) Result {
	r := &run{
		opts:      opts,
		txns:      txns,
		entries:   entries,
		txUsed:    make(map[string]bool, len(txns)),
		entryUsed: make(map[string]bool, len(entries)),
	}
	r.identifierPhase()
	r.valueDatePhase()
	r.similarityPhase()
	r.finish()
	return r.result
}

func (r *run) lock(c candidate, phase int) {
	r.txUsed[c.tx.ID] = true
	r.entryUsed[c.entry.ID] = true
	r.result.Automatic = append(r.result.Automatic, c.match(model.MatchAutomatic, phase))
}

func (r *run) suggest(c candidate, phase int) {
	r.result.Suggested = append(r.result.Suggested, c.match(model.MatchSuggested, phase))
}

// identifierPhase accepts the first transaction, per entry, whose description
// carries enough of the entry's identifiers.
func (r *run) identifierPhase() {
	for _, e := range r.entries {
		if r.entryUsed[e.ID] {
			continue
		}
		for _, tx := range r.txns {
			if r.txUsed[tx.ID] || !compatible(tx, e) {
				continue
			}
			c := scoreIdentifiers(tx, e)
			if c.score < r.opts.IdentifierMin {
				continue
			}
			if c.score >= r.opts.IdentifierAuto {
				r.lock(c, PhaseIdentifier)
			} else {
				r.suggest(c, PhaseIdentifier)
			}
			break
		}
	}
}

func cents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// valueDatePhase compares each entry only with transactions of the same
// amount in cents, keeping the best-scoring one.
func (r *run) valueDatePhase() {
	buckets := make(map[int64][]model.BankTransaction)
	for _, tx := range r.txns {
		if r.txUsed[tx.ID] {
			continue
		}
		k := cents(tx.Amount)
		buckets[k] = append(buckets[k], tx)
	}

	for _, e := range r.entries {
		if r.entryUsed[e.ID] {
			continue
		}
		var best *candidate
		for _, tx := range buckets[cents(e.Amount)] {
			if r.txUsed[tx.ID] || !compatible(tx, e) {
				continue
			}
			c, ok := scoreValueDate(tx, e)
			if !ok {
				continue
			}
			if best == nil || c.score > best.score {
				best = &c
			}
		}
		switch {
		case best == nil:
		case best.score >= r.opts.ValueDateAuto:
			r.lock(*best, PhaseValueDate)
		case best.score >= r.opts.ValueDateMin:
			r.suggest(*best, PhaseValueDate)
		}
	}
}

// similarityPhase keeps the best description match per remaining entry.
func (r *run) similarityPhase() {
	for _, e := range r.entries {
		if r.entryUsed[e.ID] {
			continue
		}
		var best *candidate
		for _, tx := range r.txns {
			if r.txUsed[tx.ID] || !compatible(tx, e) {
				continue
			}
			c, ok := scoreSimilarity(tx, e, r.opts.MinSimilarity)
			if !ok {
				continue
			}
			if best == nil || c.score > best.score {
				best = &c
			}
		}
		switch {
		case best == nil:
		case best.score >= r.opts.SimilarityAuto:
			r.lock(*best, PhaseSimilarity)
		case best.score >= r.opts.SimilarityMin:
			r.suggest(*best, PhaseSimilarity)
		}
	}
}

// finish drops suggestions made stale by later automatic matches, keeps one
// suggestion per pair, and fills the leftovers and statistics.
func (r *run) finish() {
	seen := make(map[[2]string]int)
	var suggested []model.Match
	for _, m := range r.result.Suggested {
		if r.txUsed[m.TransactionID] || r.entryUsed[m.EntryID] {
			continue
		}
		key := [2]string{m.TransactionID, m.EntryID}
		if i, ok := seen[key]; ok {
			if m.Confidence > suggested[i].Confidence {
				suggested[i] = m
			}
			continue
		}
		seen[key] = len(suggested)
		suggested = append(suggested, m)
	}
	sort.SliceStable(suggested, func(i, j int) bool { return suggested[i].Confidence > suggested[j].Confidence })
	r.result.Suggested = suggested

	for _, tx := range r.txns {
		if !r.txUsed[tx.ID] {
			r.result.UnmatchedTransactions = append(r.result.UnmatchedTransactions, tx.ID)
		}
	}
	for _, e := range r.entries {
		if !r.entryUsed[e.ID] {
			r.result.UnmatchedEntries = append(r.result.UnmatchedEntries, e.ID)
		}
	}

	r.result.Stats = Stats{
		Transactions: len(r.txns),
		Entries:      len(r.entries),
		Matched:      len(r.result.Automatic),
		MatchRate:    MatchRate(len(r.result.Automatic), len(r.txns), len(r.entries)),
	}
}

// MatchRate is matched / max(transactions, entries) as a percentage rounded
// to two decimals. It is zero when both counts are zero.
func MatchRate(matched, transactions, entries int) decimal.Decimal {
	denom := max(transactions, entries)
	if denom == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(matched)).Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(int64(denom)), 2)
}
