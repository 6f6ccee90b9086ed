package importer

import (
	"strings"

	"github.com/conciliar-dev/conciliar/internal/bankfile"
	"github.com/conciliar-dev/conciliar/internal/model"
	"github.com/conciliar-dev/conciliar/internal/textnorm"
)

// FormatStatementCSV is the generic bank statement CSV export.
const FormatStatementCSV = "csv"

var (
	stmtDateAliases        = []string{"data", "date", "data_lancamento", "data_movimento", "data_operacao", "posting_date", "dt"}
	stmtSettlementAliases  = []string{"data_compensacao", "data_liquidacao", "settlement_date", "data_credito"}
	stmtDescriptionAliases = []string{"descricao", "description", "historico", "memo", "lancamento", "detalhes"}
	stmtAmountAliases      = []string{"valor", "amount", "value", "valor_r", "montante"}
	stmtTypeAliases        = []string{"tipo", "type", "natureza", "d_c", "dc", "credito_debito"}
	stmtBalanceAliases     = []string{"saldo", "balance"}
	stmtIDAliases          = []string{"id", "fitid", "documento", "identificador"}
)

// StatementCSVDecoder reads bank statement CSV exports: delimiter detected,
// columns located by header alias, direction taken from a type column or
// the amount sign.
type StatementCSVDecoder struct{}

// Format returns the decoder name.
func (d *StatementCSVDecoder) Format() string { return FormatStatementCSV }

// Sniff accepts .csv and .txt files whose header has date, description
// and amount columns.
func (d *StatementCSVDecoder) Sniff(data []byte, filename string) bool {
	return sniffHeader(data, filename, stmtDateAliases, stmtDescriptionAliases, stmtAmountAliases)
}

// Decode parses every row, collecting row errors alongside the decoded
// transactions.
func (d *StatementCSVDecoder) Decode(data []byte) (*bankfile.Result, error) {
	t, err := readTable(data)
	if err != nil {
		return nil, err
	}
	var (
		colDate    = t.col(stmtDateAliases...)
		colSettle  = t.col(stmtSettlementAliases...)
		colDesc    = t.col(stmtDescriptionAliases...)
		colAmount  = t.col(stmtAmountAliases...)
		colType    = t.col(stmtTypeAliases...)
		colBalance = t.col(stmtBalanceAliases...)
		colID      = t.col(stmtIDAliases...)
	)
	if colDate < 0 || colAmount < 0 {
		return nil, bankfile.ErrUnrecognizedFormat
	}

	res := &bankfile.Result{Format: FormatStatementCSV}
	for _, row := range t.rows {
		date, err := parseCSVDate(row.get(colDate))
		if err != nil {
			res.Errors = append(res.Errors, rowError(row.line, "date", row.get(colDate), err))
			continue
		}
		amount, err := parseCSVAmount(row.get(colAmount))
		if err != nil {
			res.Errors = append(res.Errors, rowError(row.line, "amount", row.get(colAmount), err))
			continue
		}
		tx := model.BankTransaction{
			OperationDate: date,
			Description:   row.get(colDesc),
			Direction:     statementDirection(row.get(colType), amount.IsNegative()),
			Amount:        amount.Abs(),
			Status:        model.TxPending,
			ExternalID:    row.get(colID),
			Origin:        FormatStatementCSV,
			SourceLine:    row.line,
		}
		if s := row.get(colSettle); s != "" {
			if settle, err := parseCSVDate(s); err == nil {
				tx.SettlementDate = settle
			}
		}
		if s := row.get(colBalance); s != "" {
			if bal, err := parseCSVAmount(s); err == nil {
				tx.Balance, tx.HasBalance = bal, true
			}
		}
		res.Transactions = append(res.Transactions, tx)
	}
	if len(res.Transactions) == 0 && len(res.Errors) == 0 {
		return nil, bankfile.ErrNoRecords
	}
	return res, nil
}

// statementDirection reads a type column ("D", "debito", "saida", "C",
// "credito", "entrada"...) and falls back to the amount sign.
func statementDirection(kind string, negative bool) model.Direction {
	k := textnorm.Normalize(kind)
	switch {
	case k == "d" || strings.HasPrefix(k, "deb") || strings.HasPrefix(k, "saida") || strings.HasPrefix(k, "pagamento") || k == "dr":
		return model.Debit
	case k == "c" || strings.HasPrefix(k, "cred") || strings.HasPrefix(k, "entrada") || strings.HasPrefix(k, "deposito") || k == "cr":
		return model.Credit
	}
	if negative {
		return model.Debit
	}
	return model.Credit
}
