package learning

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conciliar-dev/conciliar/internal/model"
)

func record(company, desc string, cat int, at time.Time) model.LearningRecord {
	return model.LearningRecord{
		CompanyID:             company,
		Description:           desc,
		NormalizedDescription: desc,
		CategoryID:            cat,
		Confidence:            model.ManualConfidence,
		CreatedAt:             at,
	}
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })
	return map[string]Store{
		"csv":    NewCSVStore(t.TempDir()),
		"sqlite": sqlite,
	}
}

func TestStore_RecentNewestFirst(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Append(ctx, record("acme", "aluguel sala", 203, base)))
			require.NoError(t, s.Append(ctx, record("acme", "energia eletrica", 204, base.Add(2*time.Hour))))
			require.NoError(t, s.Append(ctx, record("acme", "tarifa pacote", 206, base.Add(time.Hour))))

			got, err := s.Recent(ctx, "acme", 10)
			require.NoError(t, err)
			require.Len(t, got, 3)
			assert.Equal(t, "energia eletrica", got[0].NormalizedDescription)
			assert.Equal(t, "tarifa pacote", got[1].NormalizedDescription)
			assert.Equal(t, "aluguel sala", got[2].NormalizedDescription)
			assert.Equal(t, model.ManualConfidence, got[0].Confidence)
			assert.True(t, got[0].CreatedAt.Equal(base.Add(2*time.Hour)))

			limited, err := s.Recent(ctx, "acme", 2)
			require.NoError(t, err)
			assert.Len(t, limited, 2)
		})
	}
}

func TestStore_CompanyIsolation(t *testing.T) {
	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Append(ctx, record("acme", "aluguel", 203, at)))
			require.NoError(t, s.Append(ctx, record("globex", "aluguel", 999, at)))

			got, err := s.Recent(ctx, "acme", DefaultLimit)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, 203, got[0].CategoryID)

			none, err := s.Recent(ctx, "initech", DefaultLimit)
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestCSVStore_MissingFile(t *testing.T) {
	got, err := NewCSVStore(t.TempDir()).Recent(context.Background(), "acme", 10)
	require.NoError(t, err)
	assert.Nil(t, got)
}
