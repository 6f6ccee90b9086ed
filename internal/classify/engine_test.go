package classify

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/conciliar-dev/conciliar/internal/model"
)

func hist(pairs ...any) []model.LearningRecord {
	var out []model.LearningRecord
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, model.LearningRecord{
			NormalizedDescription: pairs[i].(string),
			CategoryID:            pairs[i+1].(int),
			Confidence:            model.ManualConfidence,
		})
	}
	return out
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		history []model.LearningRecord
		desc    string
		want    Result
	}{
		{
			name:    "exact after normalization",
			history: hist("aluguel sala 101", 203),
			desc:    "ALUGUEL - SALA 101",
			want:    Result{CategoryID: 203, Confidence: 100, Method: MethodExact},
		},
		{
			name:    "newest exact match wins",
			history: hist("aluguel", 203, "aluguel", 207),
			desc:    "Aluguel",
			want:    Result{CategoryID: 203, Confidence: 100, Method: MethodExact},
		},
		{
			name:    "full keyword overlap ignoring stop words",
			history: hist("pagamento aluguel", 203),
			desc:    "PAGAMENTO DE ALUGUEL",
			want:    Result{CategoryID: 203, Confidence: 85, Method: MethodKeyword},
		},
		{
			name:    "ties keep the newest record",
			history: hist("pagamento aluguel", 203, "aluguel pagamento", 207),
			desc:    "pagamento de aluguel",
			want:    Result{CategoryID: 203, Confidence: 85, Method: MethodKeyword},
		},
		{
			name:    "partial keyword overlap",
			history: hist("tarifa bancaria pacote servicos", 206),
			desc:    "TARIFA BANCÁRIA PACOTE SERVIÇOS MARÇO",
			want:    Result{CategoryID: 206, Confidence: 68, Method: MethodKeyword},
		},
		{
			name:    "keyword candidate suppresses edit distance",
			history: hist("tarifa bancaria pacote servicos marca", 999, "tarifa bancaria pacote servicos", 206),
			desc:    "tarifa bancaria pacote servicos marco",
			want:    Result{CategoryID: 999, Confidence: 68, Method: MethodKeyword},
		},
		{
			name:    "edit distance fallback",
			history: hist("energia eletrica", 204),
			desc:    "ENERGIA ELETRCA",
			want:    Result{CategoryID: 204, Confidence: 75, Method: MethodSimilarity},
		},
		{
			name:    "nothing similar",
			history: hist("aluguel", 203),
			desc:    "xyz",
			want:    Result{Method: MethodNone},
		},
		{
			name: "empty history",
			desc: "aluguel",
			want: Result{Method: MethodNone},
		},
		{
			name:    "empty description",
			history: hist("aluguel", 203),
			desc:    " -- ",
			want:    Result{Method: MethodNone},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewEngine(tt.history).Classify(tt.desc))
		})
	}
}

func TestClassify_ExactIgnoresHistorySize(t *testing.T) {
	var history []model.LearningRecord
	for i := 0; i < DefaultHistoryLimit-1; i++ {
		history = append(history, model.LearningRecord{
			NormalizedDescription: fmt.Sprintf("fornecedor %d pagamento boleto", i),
			CategoryID:            201,
		})
	}
	history = append(history, model.LearningRecord{NormalizedDescription: "fornecedor pagamento boleto", CategoryID: 42})

	got := NewEngine(history).Classify("Fornecedor pagamento boleto")
	assert.Equal(t, Result{CategoryID: 42, Confidence: 100, Method: MethodExact}, got)
}

func TestStatusFor(t *testing.T) {
	th := DefaultThresholds()
	assert.Equal(t, model.TxAutomaticClassification, th.StatusFor(100))
	assert.Equal(t, model.TxAutomaticClassification, th.StatusFor(70))
	assert.Equal(t, model.TxLowConfidence, th.StatusFor(69))
	assert.Equal(t, model.TxLowConfidence, th.StatusFor(50))
	assert.Equal(t, model.TxPending, th.StatusFor(49))
	assert.Equal(t, model.TxPending, th.StatusFor(0))
}
