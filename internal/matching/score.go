package matching

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/conciliar-dev/conciliar/internal/model"
	"github.com/conciliar-dev/conciliar/internal/textnorm"
)

// Point values.
const (
	pointsReference       = 50
	pointsBarcode         = 50
	pointsDocument        = 30
	pointsIDAmountExact   = 20
	pointsIDAmountClose   = 10
	pointsValueExact      = 50
	pointsValueClose      = 40
	pointsSameDay         = 30
	pointsWithin3Days     = 20
	pointsWithin7Days     = 10
	pointsDateFar         = -10
	weightValueDesc       = 20
	weightSimilarity      = 60
	pointsSimAmountExact  = 30
	pointsSimAmountNear   = 20
	pointsSimAmountClose  = 10
	pointsCounterparty    = 10
	maxConfidence         = 100
	dateMismatchThreshold = 7
)

var (
	onePercent  = decimal.NewFromFloat(0.01)
	fivePercent = decimal.NewFromFloat(0.05)
	tenPercent  = decimal.NewFromFloat(0.10)
)

// candidate is a scored transaction/entry pairing.
type candidate struct {
	tx      model.BankTransaction
	entry   model.LedgerEntry
	score   int
	reasons []string
}

func compatible(tx model.BankTransaction, e model.LedgerEntry) bool {
	return tx.CompanyID == e.CompanyID && e.Direction.Compatible(tx.Direction)
}

// within reports whether delta is at most frac of base.
func within(delta, base, frac decimal.Decimal) bool {
	return delta.LessThanOrEqual(base.Abs().Mul(frac))
}

// scoreIdentifiers looks for the entry's identifiers inside the transaction
// description.
func scoreIdentifiers(tx model.BankTransaction, e model.LedgerEntry) candidate {
	c := candidate{tx: tx, entry: e}
	desc := tx.NormalizedDescription
	if textnorm.Contains(desc, e.InternalReference) {
		c.score += pointsReference
		c.reasons = append(c.reasons, "internal reference "+e.InternalReference+" found")
	}
	if textnorm.Contains(desc, e.Barcode) {
		c.score += pointsBarcode
		c.reasons = append(c.reasons, "barcode found")
	}
	if textnorm.Contains(desc, e.DocumentNumber) {
		c.score += pointsDocument
		c.reasons = append(c.reasons, "document "+e.DocumentNumber+" found")
	}

	delta := tx.Amount.Sub(e.Amount).Abs()
	switch {
	case delta.IsZero():
		c.score += pointsIDAmountExact
		c.reasons = append(c.reasons, "exact amount")
	case within(delta, e.Amount, onePercent):
		c.score += pointsIDAmountClose
		c.reasons = append(c.reasons, "amount within 1%")
	}
	return c
}

// scoreValueDate scores a pair from the same amount bucket. ok is false
// when the amounts are more than 1% apart.
func scoreValueDate(tx model.BankTransaction, e model.LedgerEntry) (candidate, bool) {
	c := candidate{tx: tx, entry: e}
	delta := tx.Amount.Sub(e.Amount).Abs()
	switch {
	case delta.IsZero():
		c.score += pointsValueExact
		c.reasons = append(c.reasons, "exact amount")
	case within(delta, e.Amount, onePercent):
		c.score += pointsValueClose
		c.reasons = append(c.reasons, fmt.Sprintf("amount within 1%% (difference %s)", delta.StringFixed(2)))
	default:
		return c, false
	}

	days := daysApart(tx.EffectiveDate(), e.EffectiveDate())
	switch {
	case days == 0:
		c.score += pointsSameDay
		c.reasons = append(c.reasons, "same day")
	case days <= 3:
		c.score += pointsWithin3Days
		c.reasons = append(c.reasons, fmt.Sprintf("%d days apart", days))
	case days <= 7:
		c.score += pointsWithin7Days
		c.reasons = append(c.reasons, fmt.Sprintf("%d days apart", days))
	default:
		c.score += pointsDateFar
	}

	if sim := textnorm.WordOverlap(tx.NormalizedDescription, e.Description); sim > 0 {
		c.score += int(math.Round(sim * weightValueDesc))
		c.reasons = append(c.reasons, fmt.Sprintf("similar description (%d%%)", int(math.Round(sim*100))))
	}
	return c, true
}

// scoreSimilarity scores a pair by description overlap. ok is false when the
// overlap is below minSim.
func scoreSimilarity(tx model.BankTransaction, e model.LedgerEntry, minSim float64) (candidate, bool) {
	c := candidate{tx: tx, entry: e}
	sim := textnorm.WordOverlap(tx.NormalizedDescription, e.Description)
	if sim < minSim {
		return c, false
	}
	c.score = int(math.Round(sim * weightSimilarity))
	c.reasons = append(c.reasons, fmt.Sprintf("similar description (%d%%)", int(math.Round(sim*100))))

	delta := tx.Amount.Sub(e.Amount).Abs()
	switch {
	case delta.IsZero():
		c.score += pointsSimAmountExact
		c.reasons = append(c.reasons, "exact amount")
	case e.Amount.IsZero():
	case within(delta, e.Amount, fivePercent):
		c.score += pointsSimAmountNear
		c.reasons = append(c.reasons, "amount within 5%")
	case within(delta, e.Amount, tenPercent):
		c.score += pointsSimAmountClose
		c.reasons = append(c.reasons, "amount within 10%")
	}

	if textnorm.Contains(tx.NormalizedDescription, e.Counterparty) {
		c.score += pointsCounterparty
		c.reasons = append(c.reasons, "counterparty "+e.Counterparty+" in description")
	}
	return c, true
}

// daysApart counts calendar days between a and b, each read in its own zone.
func daysApart(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	d := da.Sub(db).Hours() / 24
	return int(math.Abs(math.Round(d)))
}

// DaysApart is the calendar-day distance between the effective dates of a
// transaction and a ledger entry.
func DaysApart(tx model.BankTransaction, e model.LedgerEntry) int {
	return daysApart(tx.EffectiveDate(), e.EffectiveDate())
}

// DateMismatch reports whether a pairing is far enough apart in time to be
// flagged for review.
func DateMismatch(days int) bool {
	return days > dateMismatchThreshold
}

func (c candidate) match(origin model.MatchOrigin, phase int) model.Match {
	return model.Match{
		TransactionID: c.tx.ID,
		EntryID:       c.entry.ID,
		Confidence:    min(c.score, maxConfidence),
		Origin:        origin,
		Phase:         phase,
		Reasons:       c.reasons,
		AmountDelta:   c.tx.Amount.Sub(c.entry.Amount).Abs(),
		DaysApart:     DaysApart(c.tx, c.entry),
	}
}
