package importer

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conciliar-dev/conciliar/internal/bankfile"
	"github.com/conciliar-dev/conciliar/internal/model"
)

func TestParseCSVAmount(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"500,00", "500.00"},
		{"-500,00", "-500.00"},
		{"1.234,56", "1234.56"},
		{"1,234.56", "1234.56"},
		{"R$ 1.500,00", "1500.00"},
		{"(45,90)", "-45.90"},
		{"100,00 D", "-100.00"},
		{"100,00 C", "100.00"},
		{"+12.5", "12.50"},
		{"3200.00", "3200.00"},
	}
	for _, tt := range tests {
		got, err := parseCSVAmount(tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got.StringFixed(2), tt.input)
	}

	for _, bad := range []string{"", "abc", "1,2,3.x"} {
		_, err := parseCSVAmount(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseCSVDate(t *testing.T) {
	want := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	for _, s := range []string{"10/03/2024", "2024-03-10", "10-03-2024", "10.03.2024", "10/03/24"} {
		got, err := parseCSVDate(s)
		require.NoError(t, err, s)
		assert.Equal(t, want, got, s)
	}
	_, err := parseCSVDate("March 10")
	assert.Error(t, err)
}

func TestDetectDelimiter(t *testing.T) {
	assert.Equal(t, ';', detectDelimiter([]byte("a;b;c\n1;2;3")))
	assert.Equal(t, ',', detectDelimiter([]byte("a,b,c\n")))
	assert.Equal(t, '\t', detectDelimiter([]byte("a\tb\tc")))
	assert.Equal(t, '|', detectDelimiter([]byte("a|b|c")))
	assert.Equal(t, ',', detectDelimiter([]byte("single")))
}

func TestStatementCSVDecoder_Decode(t *testing.T) {
	data, err := os.ReadFile("../../testdata/extrato_itau.csv")
	require.NoError(t, err)

	res, err := (&StatementCSVDecoder{}).Decode(data)
	require.NoError(t, err)
	assert.Empty(t, res.Errors)
	require.Len(t, res.Transactions, 5)

	first := res.Transactions[0]
	assert.Equal(t, "PGTO FORNECEDOR ABC LTDA", first.Description)
	assert.Equal(t, model.Debit, first.Direction)
	assert.Equal(t, "500.00", first.Amount.StringFixed(2))
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), first.OperationDate)
	assert.True(t, first.HasBalance)
	assert.Equal(t, "9500.00", first.Balance.StringFixed(2))
	assert.Equal(t, 2, first.SourceLine)
	assert.Equal(t, model.TxPending, first.Status)

	second := res.Transactions[1]
	assert.Equal(t, model.Credit, second.Direction)
	assert.Equal(t, "1500.00", second.Amount.StringFixed(2))
}

func TestStatementCSVDecoder_SignWithoutType(t *testing.T) {
	data := []byte("date,description,amount\n2024-01-05,Coffee,-4.50\n2024-01-06,Refund,4.50\n")
	res, err := (&StatementCSVDecoder{}).Decode(data)
	require.NoError(t, err)
	require.Len(t, res.Transactions, 2)
	assert.Equal(t, model.Debit, res.Transactions[0].Direction)
	assert.Equal(t, model.Credit, res.Transactions[1].Direction)
}

func TestStatementCSVDecoder_RowErrors(t *testing.T) {
	data := []byte("Data;Historico;Valor\n10/03/2024;ok;10,00\nnot a date;bad;1,00\n11/03/2024;bad amount;abc\n\n12/03/2024;ok;5,00\n")
	res, err := (&StatementCSVDecoder{}).Decode(data)
	require.NoError(t, err)
	assert.Len(t, res.Transactions, 2)
	require.Len(t, res.Errors, 2)

	var fe *bankfile.FieldError
	require.ErrorAs(t, res.Errors[0], &fe)
	assert.Equal(t, 3, fe.Line)
	assert.Equal(t, "date", fe.Field)
	require.ErrorAs(t, res.Errors[1], &fe)
	assert.Equal(t, 4, fe.Line)
	assert.Equal(t, "amount", fe.Field)
	assert.Equal(t, 6, res.Transactions[1].SourceLine)
}

func TestStatementCSVDecoder_Empty(t *testing.T) {
	_, err := (&StatementCSVDecoder{}).Decode([]byte("data;descricao;valor\n"))
	assert.True(t, errors.Is(err, bankfile.ErrNoRecords))

	_, err = (&StatementCSVDecoder{}).Decode(nil)
	assert.True(t, errors.Is(err, bankfile.ErrNoRecords))
}

func TestLedgerCSVDecoder_Decode(t *testing.T) {
	data, err := os.ReadFile("../../testdata/contas_pagar_receber.csv")
	require.NoError(t, err)

	res, err := (&LedgerCSVDecoder{}).Decode(data)
	require.NoError(t, err)
	assert.Empty(t, res.Errors)
	require.Len(t, res.Entries, 3)

	e := res.Entries[0]
	assert.Equal(t, model.Payable, e.Direction)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), e.DueDate)
	assert.Equal(t, "PAGAMENTO FORNECEDOR ABC", e.Description)
	assert.Equal(t, "500.00", e.Amount.StringFixed(2))
	assert.Equal(t, "NF-1001", e.DocumentNumber)
	assert.Equal(t, "Fornecedor ABC", e.Counterparty)
	assert.Equal(t, model.LedgerOpen, e.Status)

	r := res.Entries[1]
	assert.Equal(t, model.Receivable, r.Direction)
	assert.Equal(t, "00012345", r.InternalReference)
	assert.Equal(t, "Cliente XYZ", r.Counterparty)
}

func TestLedgerDirection(t *testing.T) {
	assert.Equal(t, model.Payable, ledgerDirection("Contas a Pagar", "", ""))
	assert.Equal(t, model.Receivable, ledgerDirection("A RECEBER", "", ""))
	assert.Equal(t, model.Payable, ledgerDirection("", "Fornecedor", ""))
	assert.Equal(t, model.Receivable, ledgerDirection("", "", "Cliente"))
	assert.Equal(t, model.Receivable, ledgerDirection("", "", ""))
}

func TestLedgerCSVDecoder_NegativeAmount(t *testing.T) {
	data := []byte("vencimento,valor,descricao\n10/03/2024,-5,00,x\n10/03/2024,\"-5,00\",estorno\n")
	res, err := (&LedgerCSVDecoder{}).Decode(data)
	require.NoError(t, err)
	assert.Len(t, res.Errors, 2)
	assert.Empty(t, res.Entries)
}
