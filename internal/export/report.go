package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/conciliar-dev/conciliar/internal/model"
)

const reportWidth = 80

var divergenceLabels = map[model.DivergenceKind]string{
	model.DivergenceValueMismatch:    "Valor Diferente",
	model.DivergenceDateMismatch:     "Data Diferente",
	model.DivergenceNotFoundInBank:   "Não Encontrado no Banco",
	model.DivergenceNotFoundInLedger: "Não Encontrado no ERP",
	model.DivergenceDuplicate:        "Duplicado",
	model.DivergenceOther:            "Outro",
}

var originLabels = map[model.MatchOrigin]string{
	model.MatchAutomatic: "Automática",
	model.MatchApproved:  "Manual",
}

// reportWriter accumulates lines and keeps the first write error.
type reportWriter struct {
	w   *bufio.Writer
	p   *message.Printer
	err error
}

func (r *reportWriter) line(format string, args ...any) {
	if r.err != nil {
		return
	}
	_, r.err = r.p.Fprintf(r.w, format+"\n", args...)
}

func (r *reportWriter) rule(c string) {
	r.line("%s", strings.Repeat(c, reportWidth))
}

func (r *reportWriter) section(title string) {
	r.rule("-")
	r.line("%s", title)
	r.rule("-")
}

// money formats d as Brazilian reais, e.g. "R$ 1.234,50".
func (r *reportWriter) money(d decimal.Decimal) string {
	return r.p.Sprint("R$ ", number.Decimal(d.InexactFloat64(), number.Scale(2)))
}

func writeReport(w io.Writer, in Input) error {
	r := &reportWriter{w: bufio.NewWriter(w), p: message.NewPrinter(language.BrazilianPortuguese)}
	b := in.Batch

	r.rule("=")
	r.line("RELATÓRIO DE CONCILIAÇÃO BANCÁRIA")
	r.rule("=")
	r.line("")
	r.line("Empresa: %s", in.Company.Name)
	r.line("CNPJ: %s", in.Company.Document)
	r.line("Banco: %s - Agência: %s - Conta: %s", in.Account.BankCode, in.Account.Agency, in.Account.Account)
	r.line("")
	r.line("Lote: %s", b.ID)
	r.line("Período: %s a %s", b.From.Format(brDate), b.To.Format(brDate))
	r.line("Data do Relatório: %s", in.GeneratedAt.Format(brDate+" 15:04"))
	r.line("")

	r.section("RESUMO")
	r.line("Total de Transações Bancárias: %d", b.Transactions)
	r.line("Total de Lançamentos do ERP: %d", b.Entries)
	r.line("Total Conciliado: %d", b.Matched)
	r.line("Total de Divergências: %d", b.Divergent)
	r.line("Taxa de Conciliação: %s%%", commaDecimal(b.MatchRate))
	r.line("")

	if ss := settlements(in); len(ss) > 0 {
		r.section("LANÇAMENTOS CONCILIADOS")
		r.line("")
		total := decimal.Zero
		for _, s := range ss {
			r.line("Lançamento %s", s.EntryID)
			r.line("  Documento: %s", orNA(s.DocumentNumber))
			r.line("  Nosso Número: %s", orNA(s.OurNumber))
			r.line("  Data Pagamento: %s", s.PaymentDate.Format(brDate))
			r.line("  Valor: %s", r.money(s.Amount))
			r.line("  Confiança: %d%%", s.Confidence)
			r.line("  Tipo: %s", originLabels[s.Origin])
			r.line("")
			total = total.Add(s.Amount)
		}
		r.line("TOTAL CONCILIADO: %s", r.money(total))
		r.line("")
	}

	if len(in.Divergences) > 0 {
		r.section("DIVERGÊNCIAS ENCONTRADAS")
		r.line("")
		for _, d := range in.Divergences {
			label, ok := divergenceLabels[d.Kind]
			if !ok {
				label = string(d.Kind)
			}
			r.line("Tipo: %s", label)
			r.line("  Descrição: %s", d.Description)
			if !d.Expected.IsZero() {
				r.line("  Valor Esperado: %s", r.money(d.Expected))
			}
			if !d.Found.IsZero() {
				r.line("  Valor Encontrado: %s", r.money(d.Found))
			}
			r.line("")
		}
	}

	r.rule("=")
	r.line("FIM DO RELATÓRIO")
	r.rule("=")
	if r.err != nil {
		return fmt.Errorf("writing report: %w", r.err)
	}
	return r.w.Flush()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
