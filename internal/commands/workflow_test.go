package commands_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conciliar-dev/conciliar/internal/activity"
	"github.com/conciliar-dev/conciliar/internal/books"
	"github.com/conciliar-dev/conciliar/internal/config"
	"github.com/conciliar-dev/conciliar/internal/model"
	"github.com/conciliar-dev/conciliar/internal/textnorm"
)

// newWorkspace initializes a workspace with the itau and bradesco accounts
// used by the files in testdata.
func newWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	_, err := runConciliar(t, "init", dir, "--name", "Padaria", "--company-id", "padaria", "--document", "12.345.678/0001-90")
	require.NoError(t, err)

	path := filepath.Join(dir, config.FileName)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	cfg.BankAccounts = []model.BankAccount{
		{ID: "itau", Name: "ITAU", BankCode: "341", Agency: "1234", Account: "56789-0"},
		{ID: "bradesco", Name: "BRADESCO", BankCode: "237", Agency: "0001", Account: "7788-9"},
	}
	require.NoError(t, config.Save(path, cfg))
	return dir
}

func run(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := runConciliar(t, append(args, "--repo", dir)...)
	require.NoError(t, err, out)
	return out
}

func TestWorkflow(t *testing.T) {
	dir := newWorkspace(t)
	testdata, err := filepath.Abs("../../testdata")
	require.NoError(t, err)

	out := run(t, dir, "import", filepath.Join(testdata, "extrato_itau.csv"), "--account", "itau")
	assert.Contains(t, out, "extrato_itau.csv (csv): 5 transactions")

	// Files dropped in import/ are picked up without arguments.
	ofx, err := os.ReadFile(filepath.Join(testdata, "extrato.ofx"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "import", "extrato.ofx"), ofx, 0o644))
	out = run(t, dir, "import")
	assert.Contains(t, out, "extrato.ofx (ofx): 2 transactions")
	_, err = os.Stat(filepath.Join(dir, "import", "processed", "extrato.ofx"))
	require.NoError(t, err)

	out = run(t, dir, "import", filepath.Join(testdata, "contas_pagar_receber.csv"))
	assert.Contains(t, out, "3 ledger entries")

	out = run(t, dir, "import", filepath.Join(testdata, "extrato_itau.csv"), "--account", "itau")
	assert.Contains(t, out, "0 transactions, 0 ledger entries, 5 duplicates")

	out = run(t, dir, "transfers", "detect")
	assert.Contains(t, out, "tx-2024-03-004")
	assert.Contains(t, out, "Dry run")
	out = run(t, dir, "transfers", "detect", "--apply")
	assert.Contains(t, out, "tx-2024-03-006")

	store := books.NewStore(dir, "padaria")
	leg, err := store.Transaction("tx-2024-03-004")
	require.NoError(t, err)
	assert.Equal(t, model.TxInternalTransfer, leg.Status)
	assert.Equal(t, "tx-2024-03-004", leg.TransferGroupID)

	out = run(t, dir, "learn", "tx-2024-03-003", "206")
	assert.Contains(t, out, "category 206")
	tarifa, err := store.Transaction("tx-2024-03-003")
	require.NoError(t, err)
	assert.Equal(t, model.TxManualClassification, tarifa.Status)

	_, err = runConciliar(t, "learn", "tx-2024-03-002", "206", "--repo", dir)
	assert.Error(t, err, "debit category on a credit")

	out = run(t, dir, "classify")
	assert.Contains(t, out, "Classified")

	out = run(t, dir, "reconcile", "run", "--from", "2024-03-01", "--to", "2024-03-31", "--account", "itau")
	assert.Contains(t, out, "4 transactions, 3 ledger entries, 2 matched (50.00%), 3 divergences")
	assert.Contains(t, out, "not_found_in_bank")

	batches, err := store.Batches()
	require.NoError(t, err)
	require.Len(t, batches, 1)
	batchID := batches[0].ID
	assert.Equal(t, model.BatchDone, batches[0].Status)

	out = run(t, dir, "reconcile", "show")
	assert.Contains(t, out, batchID)
	out = run(t, dir, "reconcile", "show", batchID)
	assert.Contains(t, out, "tx-2024-03-001")
	assert.Contains(t, out, "automatic")

	paid, err := store.Entry("le-2024-03-001")
	require.NoError(t, err)
	assert.Equal(t, model.LedgerReconciled, paid.Status)

	out = run(t, dir, "export", batchID, "--format", "csv", "--output", "-")
	assert.Contains(t, out, "le-2024-03-001;NF-1001;;10/03/2024;500,00;PAGO")
	assert.Contains(t, out, "le-2024-03-002;NF-2001;00012345;11/03/2024;1500,00;PAGO")

	out = run(t, dir, "export", batchID)
	assert.Contains(t, out, "Exported 2 settlements")
	ret, err := os.ReadFile(filepath.Join(dir, "exports", batchID+".ret"))
	require.NoError(t, err)
	assert.Equal(t, "341", string(ret[:3]))

	out = run(t, dir, "export", batchID, "-f", "report", "-o", "-")
	assert.Contains(t, out, "Taxa de Conciliação: 50,00%")

	subjects := gitLog(t, dir, "%s")
	for _, prefix := range []string{"init:", "import:", "transfers:", "learn:", "reconcile:"} {
		assert.Contains(t, subjects, prefix)
	}

	events, err := activity.New(dir).Events()
	require.NoError(t, err)
	var commands []string
	for _, e := range events {
		commands = append(commands, e.Command)
	}
	assert.Contains(t, commands, "reconcile")
	assert.Contains(t, commands, "export")
	assert.Contains(t, strings.Join(commands, ","), "import")
}

func TestReconcileRun_RequiresPeriod(t *testing.T) {
	dir := newWorkspace(t)
	_, err := runConciliar(t, "reconcile", "run", "--repo", dir)
	assert.Error(t, err)

	out, err := runConciliar(t, "reconcile", "run", "--from", "2024-03-31", "--to", "2024-03-01", "--repo", dir)
	require.Error(t, err)
	assert.Contains(t, out, "before")
}

func TestExport_UnknownFormat(t *testing.T) {
	dir := newWorkspace(t)
	run(t, dir, "reconcile", "run", "--from", "2024-03-01", "--to", "2024-03-31")
	batches, err := books.NewStore(dir, "padaria").Batches()
	require.NoError(t, err)
	require.Len(t, batches, 1)

	out, err := runConciliar(t, "export", batches[0].ID, "--format", "xlsx", "--repo", dir)
	require.Error(t, err)
	assert.Contains(t, out, "unknown export format")
}

func TestReconcileReject(t *testing.T) {
	dir := newWorkspace(t)
	store := books.NewStore(dir, "padaria")
	_, err := store.AddTransactions([]model.BankTransaction{{
		AccountID:             "itau",
		OperationDate:         time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC),
		Description:           "CEMIG ENERGIA ELETRICA",
		NormalizedDescription: textnorm.Normalize("CEMIG ENERGIA ELETRICA"),
		Direction:             model.Debit,
		Amount:                decimal.RequireFromString("318.00"),
		Status:                model.TxPending,
	}})
	require.NoError(t, err)
	_, err = store.AddEntries([]model.LedgerEntry{{
		Direction:    model.Payable,
		DueDate:      time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		Description:  "Energia Elétrica Março",
		Counterparty: "CEMIG",
		Amount:       decimal.RequireFromString("320.50"),
	}})
	require.NoError(t, err)

	run(t, dir, "reconcile", "run", "--from", "2024-03-01", "--to", "2024-03-31")
	batches, err := store.Batches()
	require.NoError(t, err)
	require.Len(t, batches, 1)
	batchID := batches[0].ID

	out := run(t, dir, "reconcile", "reject", batchID, "tx-2024-03-001", "le-2024-03-001")
	assert.Contains(t, out, "Rejected tx-2024-03-001 <-> le-2024-03-001")

	out = run(t, dir, "reconcile", "show", batchID)
	assert.Contains(t, out, "rejected")
	assert.Contains(t, out, "not_found_in_bank")

	out, err = runConciliar(t, "reconcile", "approve", batchID, "tx-2024-03-001", "le-2024-03-001", "--repo", dir)
	require.Error(t, err)
	assert.Contains(t, out, "no such suggestion")

	events, err := activity.New(dir).Events()
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, "reject", events[len(events)-1].Action)
}
