package importer

import (
	"fmt"
	"strings"

	"github.com/conciliar-dev/conciliar/internal/bankfile"
	"github.com/conciliar-dev/conciliar/internal/model"
	"github.com/conciliar-dev/conciliar/internal/textnorm"
)

// FormatLedgerCSV is a payables/receivables CSV exported from an ERP.
const FormatLedgerCSV = "csv-ledger"

var (
	ledgerDueAliases         = []string{"data_vencimento", "vencimento", "due_date", "dt_vencimento"}
	ledgerIssueAliases       = []string{"data_emissao", "emissao", "issue_date"}
	ledgerPaymentAliases     = []string{"data_pagamento", "pagamento", "payment_date"}
	ledgerDescriptionAliases = []string{"descricao", "historico", "description"}
	ledgerAmountAliases      = []string{"valor", "valor_titulo", "amount"}
	ledgerPaidAliases        = []string{"valor_pago", "amount_paid"}
	ledgerTypeAliases        = []string{"tipo", "type", "natureza"}
	ledgerDocumentAliases    = []string{"numero_documento", "documento", "document_number", "nf"}
	ledgerReferenceAliases   = []string{"nosso_numero", "internal_reference", "referencia"}
	ledgerBarcodeAliases     = []string{"codigo_barras", "linha_digitavel", "barcode"}
	ledgerSupplierAliases    = []string{"fornecedor", "supplier"}
	ledgerCustomerAliases    = []string{"cliente", "customer"}
	ledgerCounterpartyAlias  = []string{"contraparte", "counterparty", "favorecido", "sacado"}
	ledgerTaxIDAliases       = []string{"cnpj", "cpf", "cnpj_cpf", "documento_fornecedor", "documento_cliente"}
)

// LedgerCSVDecoder reads payables and receivables exported as CSV.
type LedgerCSVDecoder struct{}

// Format returns the decoder name.
func (d *LedgerCSVDecoder) Format() string { return FormatLedgerCSV }

// Sniff accepts .csv and .txt files whose header has a due-date column.
func (d *LedgerCSVDecoder) Sniff(data []byte, filename string) bool {
	return sniffHeader(data, filename, ledgerDueAliases)
}

// Decode parses every row into an open ledger entry.
func (d *LedgerCSVDecoder) Decode(data []byte) (*bankfile.Result, error) {
	t, err := readTable(data)
	if err != nil {
		return nil, err
	}
	colDue := t.col(ledgerDueAliases...)
	if colDue < 0 {
		colDue = t.col("data", "date")
	}
	colAmount := t.col(ledgerAmountAliases...)
	if colDue < 0 || colAmount < 0 {
		return nil, bankfile.ErrUnrecognizedFormat
	}
	var (
		colIssue        = t.col(ledgerIssueAliases...)
		colPayment      = t.col(ledgerPaymentAliases...)
		colDesc         = t.col(ledgerDescriptionAliases...)
		colPaid         = t.col(ledgerPaidAliases...)
		colType         = t.col(ledgerTypeAliases...)
		colDoc          = t.col(ledgerDocumentAliases...)
		colRef          = t.col(ledgerReferenceAliases...)
		colBarcode      = t.col(ledgerBarcodeAliases...)
		colSupplier     = t.col(ledgerSupplierAliases...)
		colCustomer     = t.col(ledgerCustomerAliases...)
		colCounterparty = t.col(ledgerCounterpartyAlias...)
		colTaxID        = t.col(ledgerTaxIDAliases...)
	)

	res := &bankfile.Result{Format: FormatLedgerCSV}
	for _, row := range t.rows {
		due, err := parseCSVDate(row.get(colDue))
		if err != nil {
			res.Errors = append(res.Errors, rowError(row.line, "due_date", row.get(colDue), err))
			continue
		}
		amount, err := parseCSVAmount(row.get(colAmount))
		if err != nil {
			res.Errors = append(res.Errors, rowError(row.line, "amount", row.get(colAmount), err))
			continue
		}
		if amount.IsNegative() {
			res.Errors = append(res.Errors, rowError(row.line, "amount", row.get(colAmount), fmt.Errorf("negative amount")))
			continue
		}

		supplier, customer := row.get(colSupplier), row.get(colCustomer)
		e := model.LedgerEntry{
			Direction:         ledgerDirection(row.get(colType), supplier, customer),
			DueDate:           due,
			Description:       row.get(colDesc),
			DocumentNumber:    row.get(colDoc),
			InternalReference: row.get(colRef),
			Barcode:           row.get(colBarcode),
			Counterparty:      firstNonEmpty(row.get(colCounterparty), supplier, customer),
			CounterpartyID:    row.get(colTaxID),
			Amount:            amount,
			Status:            model.LedgerOpen,
			Origin:            FormatLedgerCSV,
			SourceLine:        row.line,
		}
		if e.Description == "" {
			e.Description = firstNonEmpty(e.Counterparty, e.DocumentNumber, "sem descricao")
		}
		if s := row.get(colIssue); s != "" {
			if issue, err := parseCSVDate(s); err == nil {
				e.IssueDate = issue
			}
		}
		if s := row.get(colPayment); s != "" {
			if paid, err := parseCSVDate(s); err == nil {
				e.PaymentDate = paid
			}
		}
		if s := row.get(colPaid); s != "" {
			if paid, err := parseCSVAmount(s); err == nil {
				e.AmountPaid = paid.Abs()
			}
		}
		res.Entries = append(res.Entries, e)
	}
	if len(res.Entries) == 0 && len(res.Errors) == 0 {
		return nil, bankfile.ErrNoRecords
	}
	return res, nil
}

// ledgerDirection reads the type column, then guesses payable when a
// supplier is named and receivable otherwise.
func ledgerDirection(kind, supplier, customer string) model.LedgerDirection {
	k := textnorm.Normalize(kind)
	switch {
	case strings.Contains(k, "pagar") || strings.Contains(k, "pagamento") || strings.Contains(k, "despesa") || k == "payable":
		return model.Payable
	case strings.Contains(k, "receber") || strings.Contains(k, "receita") || strings.Contains(k, "entrada") || k == "receivable":
		return model.Receivable
	}
	if supplier != "" && customer == "" {
		return model.Payable
	}
	return model.Receivable
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
