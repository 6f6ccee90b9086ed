package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"PAGAMENTO FORNECEDOR ABC", "pagamento fornecedor abc"},
		{"  Transferência   PIX - João  ", "transferencia pix joao"},
		{"TED*ACME/LTDA.", "ted acme ltda"},
		{"Ação Çedilha", "acao cedilha"},
		{"NF 12.345-6", "nf 12 345 6"},
		{"", ""},
		{"---", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.input), "Normalize(%q)", tt.input)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	s := Normalize("Débito Automático — Energia Elétrica")
	assert.Equal(t, s, Normalize(s))
}

func TestKeywords(t *testing.T) {
	got := Keywords("Pagamento de boleto para a Energia SA")
	assert.Contains(t, got, "pagamento")
	assert.Contains(t, got, "boleto")
	assert.Contains(t, got, "energia")
	assert.NotContains(t, got, "de")
	assert.NotContains(t, got, "para")
	assert.NotContains(t, got, "sa")
	assert.Len(t, got, 3)
}

func TestKeywordOverlap(t *testing.T) {
	assert.InDelta(t, 1.0, KeywordOverlap("aluguel sala comercial", "ALUGUEL SALA COMERCIAL"), 0.0001)
	assert.InDelta(t, 2.0/3.0, KeywordOverlap("aluguel sala comercial", "aluguel sala centro"), 0.0001)
	assert.InDelta(t, 0.0, KeywordOverlap("", "aluguel"), 0.0001)
}

func TestWordOverlap(t *testing.T) {
	assert.InDelta(t, 0.5, WordOverlap("PAGAMENTO FORNECEDOR ABC", "PGTO FORNECEDOR ABC LTDA"), 0.0001)
	assert.InDelta(t, 1.0, WordOverlap("Fornecedor ABC", "fornecedor   abc"), 0.0001)
	assert.InDelta(t, 0.0, WordOverlap("ab", "cd"), 0.0001)
}

func TestEditSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, EditSimilarity("netflix", "NETFLIX"), 0.0001)
	// one substitution over seven runes
	assert.InDelta(t, 1-1.0/7.0, EditSimilarity("netflix", "netflax"), 0.0001)
	assert.InDelta(t, 0.0, EditSimilarity("", "abc"), 0.0001)
	assert.InDelta(t, 0.0, EditSimilarity("", ""), 0.0001)
}

func TestContains(t *testing.T) {
	desc := Normalize("LIQUIDACAO BOLETO 00012345 ACME")
	assert.True(t, Contains(desc, "00012345"))
	assert.True(t, Contains(desc, "Acme"))
	assert.False(t, Contains(desc, ""))
	assert.False(t, Contains(desc, "  -- "))
	assert.False(t, Contains(desc, "99999"))
}
