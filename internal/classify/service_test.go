package classify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conciliar-dev/conciliar/internal/categories"
	"github.com/conciliar-dev/conciliar/internal/learning"
	"github.com/conciliar-dev/conciliar/internal/model"
	"github.com/conciliar-dev/conciliar/internal/textnorm"
)

type memStore struct {
	company string
	txns    []model.BankTransaction
	updates int
}

func (m *memStore) CompanyID() string { return m.company }

func (m *memStore) Transactions(_, _ time.Time) ([]model.BankTransaction, error) {
	return append([]model.BankTransaction(nil), m.txns...), nil
}

func (m *memStore) Transaction(id string) (model.BankTransaction, error) {
	for _, tx := range m.txns {
		if tx.ID == id {
			return tx, nil
		}
	}
	return model.BankTransaction{}, fmt.Errorf("transaction %s not found", id)
}

func (m *memStore) UpdateTransactions(txns []model.BankTransaction) error {
	for _, u := range txns {
		for i := range m.txns {
			if m.txns[i].ID == u.ID {
				m.txns[i] = u
				m.updates++
			}
		}
	}
	return nil
}

func tx(id, desc string, dir model.Direction, status model.TransactionStatus) model.BankTransaction {
	return model.BankTransaction{
		ID:                    id,
		CompanyID:             "acme",
		OperationDate:         time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Description:           desc,
		NormalizedDescription: textnorm.Normalize(desc),
		Direction:             dir,
		Amount:                decimal.NewFromInt(100),
		Status:                status,
	}
}

func newTestService(t *testing.T, store *memStore) (*Service, learning.Store) {
	t.Helper()
	history := learning.NewCSVStore(t.TempDir())
	svc := NewService(store, history, categories.NewService(categories.DefaultChart()), DefaultOptions(),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.now = func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) }
	return svc, history
}

func TestClassifyPending(t *testing.T) {
	store := &memStore{company: "acme", txns: []model.BankTransaction{
		tx("tx-2024-03-001", "PAGAMENTO DE ALUGUEL", model.Debit, model.TxPending),
		tx("tx-2024-03-002", "xyz", model.Debit, model.TxPending),
		tx("tx-2024-03-003", "pagamento aluguel", model.Debit, model.TxManualClassification),
		tx("tx-2024-03-004", "TARIFA BANCARIA PACOTE SERVICOS MARCO", model.Debit, model.TxPending),
	}}
	svc, history := newTestService(t, store)
	ctx := context.Background()
	require.NoError(t, history.Append(ctx, model.LearningRecord{
		CompanyID: "acme", NormalizedDescription: "pagamento aluguel", CategoryID: 203, Confidence: 100,
		CreatedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, history.Append(ctx, model.LearningRecord{
		CompanyID: "acme", NormalizedDescription: "tarifa bancaria pacote servicos", CategoryID: 206, Confidence: 100,
		CreatedAt: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
	}))

	sum, err := svc.ClassifyPending(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, Summary{Automatic: 1, LowConfidence: 1, Unclassified: 1}, sum)
	assert.Equal(t, 3, sum.Total())

	assert.Equal(t, model.TxAutomaticClassification, store.txns[0].Status)
	assert.Equal(t, 203, store.txns[0].CategoryID)
	assert.Equal(t, 85, store.txns[0].Confidence)

	assert.Equal(t, model.TxPending, store.txns[1].Status)
	assert.Equal(t, 0, store.txns[1].CategoryID)

	assert.Equal(t, model.TxManualClassification, store.txns[2].Status)
	assert.Equal(t, 0, store.txns[2].CategoryID)

	assert.Equal(t, model.TxLowConfidence, store.txns[3].Status)
	assert.Equal(t, 206, store.txns[3].CategoryID)
	assert.Equal(t, 2, store.updates)
}

func TestClassifyPending_OtherCompanyHistoryIgnored(t *testing.T) {
	store := &memStore{company: "acme", txns: []model.BankTransaction{
		tx("tx-2024-03-001", "pagamento aluguel", model.Debit, model.TxPending),
	}}
	svc, history := newTestService(t, store)
	ctx := context.Background()
	require.NoError(t, history.Append(ctx, model.LearningRecord{
		CompanyID: "globex", NormalizedDescription: "pagamento aluguel", CategoryID: 203, Confidence: 100,
		CreatedAt: time.Now(),
	}))

	sum, err := svc.ClassifyPending(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Unclassified)
	assert.Equal(t, model.TxPending, store.txns[0].Status)
}

func TestLearn(t *testing.T) {
	store := &memStore{company: "acme", txns: []model.BankTransaction{
		tx("tx-2024-03-001", "PGTO FORNECEDOR ABC", model.Debit, model.TxPending),
		tx("tx-2024-03-002", "Pgto. Fornecedor ABC", model.Debit, model.TxPending),
	}}
	svc, history := newTestService(t, store)
	ctx := context.Background()

	got, err := svc.Learn(ctx, "tx-2024-03-001", 201)
	require.NoError(t, err)
	assert.Equal(t, model.TxManualClassification, got.Status)
	assert.Equal(t, 100, got.Confidence)
	assert.Equal(t, 201, store.txns[0].CategoryID)

	recs, err := history.Recent(ctx, "acme", 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "pgto fornecedor abc", recs[0].NormalizedDescription)
	assert.Equal(t, model.ManualConfidence, recs[0].Confidence)

	// The next run reuses what was learned.
	sum, err := svc.ClassifyPending(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Automatic)
	assert.Equal(t, 201, store.txns[1].CategoryID)
	assert.Equal(t, 100, store.txns[1].Confidence)
}

func TestLearn_Rejects(t *testing.T) {
	transfer := tx("tx-2024-03-002", "TED MESMA TITULARIDADE", model.Debit, model.TxInternalTransfer)
	store := &memStore{company: "acme", txns: []model.BankTransaction{
		tx("tx-2024-03-001", "PGTO FORNECEDOR ABC", model.Debit, model.TxPending),
		transfer,
	}}
	svc, history := newTestService(t, store)
	ctx := context.Background()

	_, err := svc.Learn(ctx, "tx-2024-03-001", 101)
	assert.ErrorContains(t, err, "credit movements")
	_, err = svc.Learn(ctx, "tx-2024-03-001", 9999)
	assert.ErrorContains(t, err, "unknown category")
	_, err = svc.Learn(ctx, "tx-2024-03-002", 201)
	assert.ErrorContains(t, err, "internal transfer")
	_, err = svc.Learn(ctx, "tx-2024-03-099", 201)
	assert.Error(t, err)

	recs, err := history.Recent(ctx, "acme", 10)
	require.NoError(t, err)
	assert.Empty(t, recs)
}
