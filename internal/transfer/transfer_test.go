package transfer

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conciliar-dev/conciliar/internal/books"
	"github.com/conciliar-dev/conciliar/internal/model"
	"github.com/conciliar-dev/conciliar/internal/textnorm"
)

var t0 = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

func mk(recID string, dir model.Direction, amount, account, desc string, at time.Time) model.BankTransaction {
	return model.BankTransaction{
		ID:                    recID,
		CompanyID:             "acme",
		AccountID:             account,
		OperationDate:         at,
		Description:           desc,
		NormalizedDescription: textnorm.Normalize(desc),
		Direction:             dir,
		Amount:                decimal.RequireFromString(amount),
		Status:                model.TxPending,
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name   string
		debit  model.BankTransaction
		credit model.BankTransaction
		want   int // 0 means no pair
	}{
		{
			name:   "ten hours apart across accounts",
			debit:  mk("tx-1", model.Debit, "150.00", "itau", "aaa", t0),
			credit: mk("tx-2", model.Credit, "150.00", "bradesco", "zzzz", t0.Add(10*time.Hour)),
			want:   95,
		},
		{
			name:   "seventy hours apart",
			debit:  mk("tx-1", model.Debit, "150.00", "itau", "aaa", t0),
			credit: mk("tx-2", model.Credit, "150.00", "bradesco", "zzzz", t0.Add(70*time.Hour)),
		},
		{
			name:   "edge of window",
			debit:  mk("tx-1", model.Debit, "150.00", "itau", "aaa", t0),
			credit: mk("tx-2", model.Credit, "150.00", "bradesco", "zzzz", t0.Add(60*time.Hour)),
			want:   70,
		},
		{
			name:   "credit before debit",
			debit:  mk("tx-1", model.Debit, "150.00", "itau", "aaa", t0.Add(10*time.Hour)),
			credit: mk("tx-2", model.Credit, "150.00", "bradesco", "zzzz", t0),
			want:   95,
		},
		{
			name:   "similar descriptions capped at 100",
			debit:  mk("tx-1", model.Debit, "150.00", "itau", "TRANSF ENTRE CONTAS", t0),
			credit: mk("tx-2", model.Credit, "150.00", "bradesco", "TRANSF ENTRE CONTAS", t0.Add(10*time.Hour)),
			want:   100,
		},
		{
			name:   "similarity bonus",
			debit:  mk("tx-1", model.Debit, "150.00", "itau", "TRANSF ENTRE CONTAS", t0),
			credit: mk("tx-2", model.Credit, "150.00", "bradesco", "TRANSF ENTRE CONTA", t0.Add(60*time.Hour)),
			want:   89,
		},
		{
			name:   "same account",
			debit:  mk("tx-1", model.Debit, "150.00", "itau", "aaa", t0),
			credit: mk("tx-2", model.Credit, "150.00", "itau", "zzzz", t0.Add(time.Hour)),
		},
		{
			name:   "credit without account",
			debit:  mk("tx-1", model.Debit, "150.00", "itau", "aaa", t0),
			credit: mk("tx-2", model.Credit, "150.00", "", "zzzz", t0.Add(time.Hour)),
		},
		{
			name:   "debit without account",
			debit:  mk("tx-1", model.Debit, "150.00", "", "aaa", t0),
			credit: mk("tx-2", model.Credit, "150.00", "bradesco", "zzzz", t0.Add(10*time.Hour)),
			want:   95,
		},
		{
			name:   "neither side has an account",
			debit:  mk("tx-1", model.Debit, "150.00", "", "aaa", t0),
			credit: mk("tx-2", model.Credit, "150.00", "", "zzzz", t0.Add(30*time.Hour)),
			want:   85,
		},
		{
			name:   "one cent apart",
			debit:  mk("tx-1", model.Debit, "150.00", "itau", "aaa", t0),
			credit: mk("tx-2", model.Credit, "150.01", "bradesco", "zzzz", t0),
		},
		{
			name:   "sub-cent difference",
			debit:  mk("tx-1", model.Debit, "150.00", "itau", "aaa", t0),
			credit: mk("tx-2", model.Credit, "150.005", "bradesco", "zzzz", t0),
			want:   100,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pairs := Detect([]model.BankTransaction{tt.debit, tt.credit}, DefaultOptions())
			if tt.want == 0 {
				assert.Empty(t, pairs)
				return
			}
			require.Len(t, pairs, 1)
			assert.Equal(t, "tx-1", pairs[0].DebitID)
			assert.Equal(t, "tx-2", pairs[0].CreditID)
			assert.Equal(t, tt.want, pairs[0].Confidence)
		})
	}
}

func TestDetect_OnlyPending(t *testing.T) {
	d := mk("tx-1", model.Debit, "150.00", "itau", "aaa", t0)
	c := mk("tx-2", model.Credit, "150.00", "bradesco", "zzzz", t0)
	c.Status = model.TxAutomaticClassification
	assert.Empty(t, Detect([]model.BankTransaction{d, c}, DefaultOptions()))

	c.Status = model.TxPending
	c.CompanyID = "globex"
	assert.Empty(t, Detect([]model.BankTransaction{d, c}, DefaultOptions()))
}

func TestResolve_Disjoint(t *testing.T) {
	pairs := []Pair{
		{DebitID: "d1", CreditID: "c2", Confidence: 80},
		{DebitID: "d2", CreditID: "c1", Confidence: 90},
		{DebitID: "d1", CreditID: "c1", Confidence: 95},
		{DebitID: "d2", CreditID: "c2", Confidence: 75},
	}
	got := Resolve(pairs)
	assert.Equal(t, []Pair{
		{DebitID: "d1", CreditID: "c1", Confidence: 95},
		{DebitID: "d2", CreditID: "c2", Confidence: 75},
	}, got)
}

func TestGroupID(t *testing.T) {
	assert.Equal(t, "tx-2024-03-002", Pair{DebitID: "tx-2024-03-010", CreditID: "tx-2024-03-002"}.GroupID())
	assert.Equal(t, "tx-2024-02-999", Pair{DebitID: "tx-2024-02-999", CreditID: "tx-2024-03-001"}.GroupID())
}

func TestService_Run(t *testing.T) {
	store := books.NewStore(t.TempDir(), "acme")
	stored, err := store.AddTransactions([]model.BankTransaction{
		mk("", model.Debit, "150.00", "itau", "TED ENVIADA", t0),
		mk("", model.Credit, "150.00", "bradesco", "TED RECEBIDA", t0.Add(10*time.Hour)),
		mk("", model.Debit, "42.00", "itau", "TARIFA", t0),
	})
	require.NoError(t, err)

	svc := NewService(store, DefaultOptions(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	dry, err := svc.Run(time.Time{}, time.Time{}, false)
	require.NoError(t, err)
	require.Len(t, dry, 1)
	unchanged, err := store.Transaction(stored[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.TxPending, unchanged.Status)

	pairs, err := svc.Run(time.Time{}, time.Time{}, true)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, stored[0].ID, pairs[0].DebitID)
	assert.Equal(t, stored[1].ID, pairs[0].CreditID)

	for _, recID := range []string{stored[0].ID, stored[1].ID} {
		tx, err := store.Transaction(recID)
		require.NoError(t, err)
		assert.Equal(t, model.TxInternalTransfer, tx.Status)
		assert.Equal(t, stored[0].ID, tx.TransferGroupID)
	}
	fee, err := store.Transaction(stored[2].ID)
	require.NoError(t, err)
	assert.Equal(t, model.TxPending, fee.Status)

	// Marked transfers are no longer pending, so a second run finds nothing.
	again, err := svc.Run(time.Time{}, time.Time{}, true)
	require.NoError(t, err)
	assert.Empty(t, again)
}
