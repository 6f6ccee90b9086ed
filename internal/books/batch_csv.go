package books

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/conciliar-dev/conciliar/internal/model"
)

// BatchHeader is the CSV header for batches/batches.csv.
const BatchHeader = "id,company_id,account_id,from,to,transactions,entries,matched,divergent,match_rate,status,created_at"

// MatchHeader is the CSV header for batches/<id>/matches.csv.
const MatchHeader = "transaction_id,entry_id,confidence,origin,phase,amount_delta,days_apart,reasons"

// DivergenceHeader is the CSV header for batches/<id>/divergences.csv.
const DivergenceHeader = "batch_id,kind,transaction_id,entry_id,description,expected,found"

const (
	batchNumFields    = 12
	batchColID        = 0
	batchColCompany   = 1
	batchColAccount   = 2
	batchColFrom      = 3
	batchColTo        = 4
	batchColTxns      = 5
	batchColEntries   = 6
	batchColMatched   = 7
	batchColDivergent = 8
	batchColRate      = 9
	batchColStatus    = 10
	batchColCreated   = 11

	matchNumFields   = 8
	matchColTx       = 0
	matchColEntry    = 1
	matchColConf     = 2
	matchColOrigin   = 3
	matchColPhase    = 4
	matchColDelta    = 5
	matchColDays     = 6
	matchColReasons  = 7
	reasonsSeparator = " | "

	divNumFields   = 7
	divColBatch    = 0
	divColKind     = 1
	divColTx       = 2
	divColEntry    = 3
	divColDesc     = 4
	divColExpected = 5
	divColFound    = 6
)

// MarshalBatch converts a Batch to a CSV row.
func MarshalBatch(b model.Batch) []string {
	row := make([]string, batchNumFields)
	row[batchColID] = b.ID
	row[batchColCompany] = b.CompanyID
	row[batchColAccount] = b.AccountID
	row[batchColFrom] = b.From.Format(dateFormat)
	row[batchColTo] = b.To.Format(dateFormat)
	row[batchColTxns] = strconv.Itoa(b.Transactions)
	row[batchColEntries] = strconv.Itoa(b.Entries)
	row[batchColMatched] = strconv.Itoa(b.Matched)
	row[batchColDivergent] = strconv.Itoa(b.Divergent)
	row[batchColRate] = b.MatchRate.StringFixed(2)
	row[batchColStatus] = string(b.Status)
	row[batchColCreated] = b.CreatedAt.UTC().Format(time.RFC3339)
	return row
}

// UnmarshalBatch converts a CSV row to a Batch.
func UnmarshalBatch(record []string) (model.Batch, error) {
	if len(record) != batchNumFields {
		return model.Batch{}, fmt.Errorf("expected %d fields, got %d", batchNumFields, len(record))
	}
	from, err := time.Parse(dateFormat, record[batchColFrom])
	if err != nil {
		return model.Batch{}, fmt.Errorf("parsing from %q: %w", record[batchColFrom], err)
	}
	to, err := time.Parse(dateFormat, record[batchColTo])
	if err != nil {
		return model.Batch{}, fmt.Errorf("parsing to %q: %w", record[batchColTo], err)
	}
	created, err := time.Parse(time.RFC3339, record[batchColCreated])
	if err != nil {
		return model.Batch{}, fmt.Errorf("parsing created_at %q: %w", record[batchColCreated], err)
	}
	rate, err := decimal.NewFromString(record[batchColRate])
	if err != nil {
		return model.Batch{}, fmt.Errorf("parsing match_rate %q: %w", record[batchColRate], err)
	}

	counts := make([]int, 4)
	for i, col := range []int{batchColTxns, batchColEntries, batchColMatched, batchColDivergent} {
		if counts[i], err = strconv.Atoi(record[col]); err != nil {
			return model.Batch{}, fmt.Errorf("parsing count %q: %w", record[col], err)
		}
	}

	return model.Batch{
		ID:           record[batchColID],
		CompanyID:    record[batchColCompany],
		AccountID:    record[batchColAccount],
		From:         from,
		To:           to,
		Transactions: counts[0],
		Entries:      counts[1],
		Matched:      counts[2],
		Divergent:    counts[3],
		MatchRate:    rate,
		Status:       model.BatchStatus(record[batchColStatus]),
		CreatedAt:    created,
	}, nil
}

// MarshalMatch converts a Match to a CSV row.
func MarshalMatch(m model.Match) []string {
	row := make([]string, matchNumFields)
	row[matchColTx] = m.TransactionID
	row[matchColEntry] = m.EntryID
	row[matchColConf] = strconv.Itoa(m.Confidence)
	row[matchColOrigin] = string(m.Origin)
	row[matchColPhase] = strconv.Itoa(m.Phase)
	row[matchColDelta] = m.AmountDelta.StringFixed(2)
	row[matchColDays] = strconv.Itoa(m.DaysApart)
	row[matchColReasons] = strings.Join(m.Reasons, reasonsSeparator)
	return row
}

// UnmarshalMatch converts a CSV row to a Match.
func UnmarshalMatch(record []string) (model.Match, error) {
	if len(record) != matchNumFields {
		return model.Match{}, fmt.Errorf("expected %d fields, got %d", matchNumFields, len(record))
	}
	conf, err := strconv.Atoi(record[matchColConf])
	if err != nil {
		return model.Match{}, fmt.Errorf("parsing confidence %q: %w", record[matchColConf], err)
	}
	phase, err := strconv.Atoi(record[matchColPhase])
	if err != nil {
		return model.Match{}, fmt.Errorf("parsing phase %q: %w", record[matchColPhase], err)
	}
	delta, err := decimal.NewFromString(record[matchColDelta])
	if err != nil {
		return model.Match{}, fmt.Errorf("parsing amount_delta %q: %w", record[matchColDelta], err)
	}
	days, err := strconv.Atoi(record[matchColDays])
	if err != nil {
		return model.Match{}, fmt.Errorf("parsing days_apart %q: %w", record[matchColDays], err)
	}
	var reasons []string
	if record[matchColReasons] != "" {
		reasons = strings.Split(record[matchColReasons], reasonsSeparator)
	}
	return model.Match{
		TransactionID: record[matchColTx],
		EntryID:       record[matchColEntry],
		Confidence:    conf,
		Origin:        model.MatchOrigin(record[matchColOrigin]),
		Phase:         phase,
		Reasons:       reasons,
		AmountDelta:   delta,
		DaysApart:     days,
	}, nil
}

// MarshalDivergence converts a Divergence to a CSV row.
func MarshalDivergence(d model.Divergence) []string {
	row := make([]string, divNumFields)
	row[divColBatch] = d.BatchID
	row[divColKind] = string(d.Kind)
	row[divColTx] = d.TransactionID
	row[divColEntry] = d.EntryID
	row[divColDesc] = d.Description
	row[divColExpected] = d.Expected.StringFixed(2)
	row[divColFound] = d.Found.StringFixed(2)
	return row
}

// UnmarshalDivergence converts a CSV row to a Divergence.
func UnmarshalDivergence(record []string) (model.Divergence, error) {
	if len(record) != divNumFields {
		return model.Divergence{}, fmt.Errorf("expected %d fields, got %d", divNumFields, len(record))
	}
	expected, err := decimal.NewFromString(record[divColExpected])
	if err != nil {
		return model.Divergence{}, fmt.Errorf("parsing expected %q: %w", record[divColExpected], err)
	}
	found, err := decimal.NewFromString(record[divColFound])
	if err != nil {
		return model.Divergence{}, fmt.Errorf("parsing found %q: %w", record[divColFound], err)
	}
	return model.Divergence{
		BatchID:       record[divColBatch],
		Kind:          model.DivergenceKind(record[divColKind]),
		TransactionID: record[divColTx],
		EntryID:       record[divColEntry],
		Description:   record[divColDesc],
		Expected:      expected,
		Found:         found,
	}, nil
}

// ReadBatches reads batches.csv.
func ReadBatches(r io.Reader) ([]model.Batch, error) {
	batches, err := readRows(r, batchNumFields, UnmarshalBatch)
	if err != nil {
		return nil, fmt.Errorf("reading batches CSV: %w", err)
	}
	return batches, nil
}

// ReadMatches reads a batch's matches.csv.
func ReadMatches(r io.Reader) ([]model.Match, error) {
	matches, err := readRows(r, matchNumFields, UnmarshalMatch)
	if err != nil {
		return nil, fmt.Errorf("reading matches CSV: %w", err)
	}
	return matches, nil
}

// ReadDivergences reads a batch's divergences.csv.
func ReadDivergences(r io.Reader) ([]model.Divergence, error) {
	divs, err := readRows(r, divNumFields, UnmarshalDivergence)
	if err != nil {
		return nil, fmt.Errorf("reading divergences CSV: %w", err)
	}
	return divs, nil
}
