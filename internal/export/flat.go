package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"time"

	"github.com/conciliar-dev/conciliar/internal/model"
)

var csvHeader = []string{"entry_id", "document_number", "our_number", "payment_date", "amount_paid", "status"}

func writeCSV(w io.Writer, in Input) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, s := range settlements(in) {
		if err := cw.Write([]string{
			s.EntryID,
			s.DocumentNumber,
			s.OurNumber,
			s.PaymentDate.Format(brDate),
			commaDecimal(s.Amount),
			"PAGO",
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

type jsonDoc struct {
	Company     jsonCompany      `json:"company"`
	Batch       jsonBatch        `json:"batch"`
	Settlements []jsonSettlement `json:"settlements"`
	ExportedAt  time.Time        `json:"exported_at"`
}

type jsonCompany struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Document string   `json:"document"`
	Bank     jsonBank `json:"bank"`
}

type jsonBank struct {
	Code    string `json:"code"`
	Agency  string `json:"agency"`
	Account string `json:"account"`
}

type jsonBatch struct {
	ID         string `json:"id"`
	From       string `json:"from"`
	To         string `json:"to"`
	Reconciled int    `json:"reconciled"`
	MatchRate  string `json:"match_rate"`
}

type jsonSettlement struct {
	EntryID        string            `json:"entry_id"`
	DocumentNumber string            `json:"document_number,omitempty"`
	OurNumber      string            `json:"our_number,omitempty"`
	PaymentDate    string            `json:"payment_date"`
	AmountPaid     string            `json:"amount_paid"`
	Confidence     int               `json:"confidence"`
	Origin         model.MatchOrigin `json:"origin"`
}

func writeJSON(w io.Writer, in Input) error {
	doc := jsonDoc{
		Company: jsonCompany{
			ID:       in.Company.ID,
			Name:     in.Company.Name,
			Document: in.Company.Document,
			Bank: jsonBank{
				Code:    in.Account.BankCode,
				Agency:  in.Account.Agency,
				Account: in.Account.Account,
			},
		},
		Batch: jsonBatch{
			ID:         in.Batch.ID,
			From:       in.Batch.From.Format(time.DateOnly),
			To:         in.Batch.To.Format(time.DateOnly),
			Reconciled: len(in.Reconciled),
			MatchRate:  in.Batch.MatchRate.StringFixed(2),
		},
		Settlements: []jsonSettlement{},
		ExportedAt:  in.GeneratedAt.UTC(),
	}
	for _, s := range settlements(in) {
		doc.Settlements = append(doc.Settlements, jsonSettlement{
			EntryID:        s.EntryID,
			DocumentNumber: s.DocumentNumber,
			OurNumber:      s.OurNumber,
			PaymentDate:    s.PaymentDate.Format(time.DateOnly),
			AmountPaid:     s.Amount.StringFixed(2),
			Confidence:     s.Confidence,
			Origin:         s.Origin,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
