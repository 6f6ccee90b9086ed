package importer

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conciliar-dev/conciliar/internal/books"
	"github.com/conciliar-dev/conciliar/internal/model"
)

func newTestService(t *testing.T) (*Service, *books.Store) {
	t.Helper()
	store := books.NewStore(t.TempDir(), "acme")
	accounts := []model.BankAccount{
		{ID: "itau", BankCode: "341", Agency: "1234", Account: "56789-0"},
		{ID: "bradesco", BankCode: "237", Agency: "0001", Account: "7788-9"},
	}
	return NewService(store, DefaultRegistry(), accounts, slog.New(slog.NewTextHandler(io.Discard, nil))), store
}

func readTestdata(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("../../testdata", name))
	require.NoError(t, err)
	return data
}

func TestService_ImportStatementTwice(t *testing.T) {
	svc, store := newTestService(t)
	data := readTestdata(t, "extrato_itau.csv")

	sum, err := svc.Import("extrato_itau.csv", data, "itau")
	require.NoError(t, err)
	assert.Equal(t, "csv", sum.Format)
	assert.Equal(t, 5, sum.Transactions)
	assert.Equal(t, 0, sum.Duplicates)

	txns, err := store.Transactions(time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, txns, 5)
	assert.Equal(t, "tx-2024-03-001", txns[0].ID)
	assert.Equal(t, "itau", txns[0].AccountID)
	assert.Equal(t, "pgto fornecedor abc ltda", txns[0].NormalizedDescription)
	assert.NotEmpty(t, txns[0].Hash)

	again, err := svc.Import("extrato_itau.csv", data, "itau")
	require.NoError(t, err)
	assert.Equal(t, 0, again.Transactions)
	assert.Equal(t, 5, again.Duplicates)
}

func TestService_ImportResolvesAccount(t *testing.T) {
	svc, store := newTestService(t)

	sum, err := svc.Import("extrato.ofx", readTestdata(t, "extrato.ofx"), "")
	require.NoError(t, err)
	assert.Equal(t, "ofx", sum.Format)
	assert.Equal(t, "bradesco", sum.AccountID)
	assert.Equal(t, 2, sum.Transactions)
	assert.Equal(t, 1, sum.Skipped)

	txns, err := store.Transactions(time.Time{}, time.Time{})
	require.NoError(t, err)
	for _, tx := range txns {
		assert.Equal(t, "bradesco", tx.AccountID)
	}
}

func TestService_ImportLedger(t *testing.T) {
	svc, store := newTestService(t)
	data := readTestdata(t, "contas_pagar_receber.csv")

	sum, err := svc.Import("contas.csv", data, "")
	require.NoError(t, err)
	assert.Equal(t, "csv-ledger", sum.Format)
	assert.Equal(t, 3, sum.Entries)

	entries, err := store.Entries(time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, model.LedgerOpen, entries[0].Status)

	again, err := svc.Import("contas.csv", data, "")
	require.NoError(t, err)
	assert.Equal(t, 0, again.Entries)
	assert.Equal(t, 3, again.Duplicates)
}

func TestService_ImportUnrecognized(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Import("planilha.xlsx", []byte("PK\x03\x04"), "")
	assert.Error(t, err)
}

func TestService_ImportPending(t *testing.T) {
	svc, store := newTestService(t)
	root := t.TempDir()
	importDir := filepath.Join(root, "import")
	require.NoError(t, os.MkdirAll(importDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "extrato_itau.csv"), readTestdata(t, "extrato_itau.csv"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "lixo.bin"), []byte("\x00\x01"), 0o644))

	sums, err := svc.ImportPending(root, "itau")
	require.Error(t, err, "unrecognized file is reported")
	require.Len(t, sums, 1)
	assert.Equal(t, 5, sums[0].Transactions)

	_, statErr := os.Stat(filepath.Join(importDir, "processed", "extrato_itau.csv"))
	assert.NoError(t, statErr)
	_, statErr = os.Stat(filepath.Join(importDir, "lixo.bin"))
	assert.NoError(t, statErr, "failed file stays in import/")

	txns, err := store.Transactions(time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, txns, 5)
}
