package books

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conciliar-dev/conciliar/internal/model"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestTransactionRoundTrip(t *testing.T) {
	brt := time.FixedZone("BRT", -3*3600)
	txns := []model.BankTransaction{
		{
			ID:                    "tx-2024-03-001",
			CompanyID:             "acme",
			AccountID:             "itau-cc",
			OperationDate:         date(2024, 3, 10),
			SettlementDate:        date(2024, 3, 11),
			Description:           "PGTO FORNECEDOR ABC LTDA",
			NormalizedDescription: "pgto fornecedor abc ltda",
			Direction:             model.Debit,
			Amount:                dec("500.00"),
			Balance:               dec("9500.00"),
			HasBalance:            true,
			Status:                model.TxAutomaticClassification,
			CategoryID:            12,
			Confidence:            85,
			Hash:                  "abc",
			Origin:                "csv",
			SourceLine:            2,
		},
		{
			ID:            "tx-2024-03-002",
			CompanyID:     "acme",
			OperationDate: time.Date(2024, 3, 12, 14, 30, 0, 0, brt),
			Description:   "TED RECEBIDA, CLIENTE \"X\"",
			Direction:     model.Credit,
			Amount:        dec("1234.56"),
			Status:        model.TxPending,
			ExternalID:    "FIT-9",
			Origin:        "ofx",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteTransactions(&buf, txns))
	assert.True(t, strings.HasPrefix(buf.String(), TransactionHeader+"\n"))
	assert.Contains(t, buf.String(), "2024-03-12T14:30:00-03:00")

	got, err := ReadTransactions(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, txns[0].ID, got[0].ID)
	assert.True(t, got[0].OperationDate.Equal(txns[0].OperationDate))
	assert.True(t, got[0].SettlementDate.Equal(txns[0].SettlementDate))
	assert.True(t, got[0].Amount.Equal(txns[0].Amount))
	assert.True(t, got[0].HasBalance)
	assert.True(t, got[0].Balance.Equal(dec("9500")))
	assert.Equal(t, 12, got[0].CategoryID)
	assert.Equal(t, 85, got[0].Confidence)
	assert.Equal(t, 2, got[0].SourceLine)

	assert.Equal(t, txns[1].Description, got[1].Description)
	assert.True(t, got[1].OperationDate.Equal(txns[1].OperationDate))
	assert.True(t, got[1].SettlementDate.IsZero())
	assert.False(t, got[1].HasBalance)
	assert.Equal(t, 0, got[1].CategoryID)
	assert.Equal(t, "FIT-9", got[1].ExternalID)
}

func TestEntryRoundTrip(t *testing.T) {
	entries := []model.LedgerEntry{
		{
			ID:                "le-2024-03-001",
			CompanyID:         "acme",
			Direction:         model.Receivable,
			DueDate:           date(2024, 3, 15),
			IssueDate:         date(2024, 3, 1),
			PaymentDate:       date(2024, 3, 14),
			Description:       "Boleto NF-1001",
			DocumentNumber:    "NF-1001",
			InternalReference: "00012345",
			Barcode:           "34191790010104351004791020150008291070026000",
			Counterparty:      "Cliente XYZ",
			CounterpartyID:    "12345678000190",
			Amount:            dec("500.00"),
			AmountPaid:        dec("500.00"),
			Status:            model.LedgerReconciled,
			Origin:            "cnab240",
			SourceLine:        4,
		},
		{
			ID:          "le-2024-03-002",
			CompanyID:   "acme",
			Direction:   model.Payable,
			DueDate:     date(2024, 3, 20),
			Description: "Aluguel",
			Amount:      dec("2000"),
			Status:      model.LedgerOpen,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteEntries(&buf, entries))
	got, err := ReadEntries(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, entries[0].InternalReference, got[0].InternalReference)
	assert.Equal(t, entries[0].Barcode, got[0].Barcode)
	assert.True(t, got[0].PaymentDate.Equal(entries[0].PaymentDate))
	assert.True(t, got[0].AmountPaid.Equal(dec("500")))
	assert.Equal(t, model.LedgerReconciled, got[0].Status)

	assert.True(t, got[1].IssueDate.IsZero())
	assert.True(t, got[1].AmountPaid.IsZero())
	assert.Equal(t, "2000.00", got[1].Amount.StringFixed(2))
}

func TestReadTransactions_Empty(t *testing.T) {
	got, err := ReadTransactions(strings.NewReader(""))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReadTransactions_BadAmount(t *testing.T) {
	row := MarshalTransaction(model.BankTransaction{ID: "tx-2024-03-001", OperationDate: date(2024, 3, 1)})
	row[txColAmount] = "abc"
	input := TransactionHeader + "\n" + strings.Join(row, ",") + "\n"

	_, err := ReadTransactions(strings.NewReader(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
	assert.Contains(t, err.Error(), "amount")
}

func TestBatchRows(t *testing.T) {
	b := model.Batch{
		ID:           "7d3f",
		CompanyID:    "acme",
		From:         date(2024, 3, 1),
		To:           date(2024, 3, 31),
		Transactions: 5,
		Entries:      4,
		Matched:      3,
		Divergent:    3,
		MatchRate:    dec("60.00"),
		Status:       model.BatchDone,
		CreatedAt:    time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC),
	}
	got, err := UnmarshalBatch(MarshalBatch(b))
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
	assert.Equal(t, 3, got.Matched)
	assert.True(t, got.MatchRate.Equal(b.MatchRate))
	assert.True(t, got.CreatedAt.Equal(b.CreatedAt))

	m := model.Match{
		TransactionID: "tx-2024-03-001",
		EntryID:       "le-2024-03-001",
		Confidence:    90,
		Origin:        model.MatchAutomatic,
		Phase:         2,
		Reasons:       []string{"exact amount", "same day"},
		AmountDelta:   decimal.Zero,
	}
	gotM, err := UnmarshalMatch(MarshalMatch(m))
	require.NoError(t, err)
	assert.Equal(t, m.Reasons, gotM.Reasons)
	assert.Equal(t, 2, gotM.Phase)

	gotM, err = UnmarshalMatch(MarshalMatch(model.Match{Origin: model.MatchSuggested}))
	require.NoError(t, err)
	assert.Nil(t, gotM.Reasons)
}
