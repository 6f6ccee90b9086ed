package books

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conciliar-dev/conciliar/internal/model"
)

func testBatch(batchID string, created time.Time) model.Batch {
	return model.Batch{
		ID:        batchID,
		From:      date(2024, 3, 1),
		To:        date(2024, 3, 31),
		MatchRate: dec("0"),
		Status:    model.BatchProcessing,
		CreatedAt: created,
	}
}

func TestSaveBatch(t *testing.T) {
	s := NewStore(t.TempDir(), "acme")
	b := testBatch("b1", time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, s.SaveBatch(b, nil, nil))

	got, err := s.Batch("b1")
	require.NoError(t, err)
	assert.Equal(t, model.BatchProcessing, got.Status)
	assert.Equal(t, "acme", got.CompanyID)

	matches, err := s.Matches("b1")
	require.NoError(t, err)
	assert.Empty(t, matches)

	// Saving again replaces the row.
	b.Status = model.BatchDone
	b.Matched = 1
	b.MatchRate = dec("100.00")
	match := model.Match{TransactionID: "tx-2024-03-001", EntryID: "le-2024-03-001", Confidence: 95, Origin: model.MatchAutomatic, Phase: 1}
	div := model.Divergence{BatchID: "b1", Kind: model.DivergenceNotFoundInLedger, TransactionID: "tx-2024-03-002", Found: dec("10")}
	require.NoError(t, s.SaveBatch(b, []model.Match{match}, []model.Divergence{div}))

	batches, err := s.Batches()
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, model.BatchDone, batches[0].Status)

	matches, err = s.Matches("b1")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 95, matches[0].Confidence)

	divs, err := s.Divergences("b1")
	require.NoError(t, err)
	require.Len(t, divs, 1)
	assert.Equal(t, model.DivergenceNotFoundInLedger, divs[0].Kind)
	assert.True(t, divs[0].Found.Equal(dec("10")))
}

func TestBatches_NewestFirst(t *testing.T) {
	s := NewStore(t.TempDir(), "acme")
	require.NoError(t, s.SaveBatch(testBatch("old", time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)), nil, nil))
	require.NoError(t, s.SaveBatch(testBatch("new", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)), nil, nil))

	batches, err := s.Batches()
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, "new", batches[0].ID)
}

func TestBatch_NotFound(t *testing.T) {
	s := NewStore(t.TempDir(), "acme")
	_, err := s.Batch("nope")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = s.Matches("nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}
