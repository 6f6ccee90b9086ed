package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatRecordID(t *testing.T) {
	tests := []struct {
		prefix           string
		year, month, seq int
		want             string
	}{
		{TransactionPrefix, 2025, 1, 1, "tx-2025-01-001"},
		{EntryPrefix, 2025, 12, 99, "le-2025-12-099"},
		{TransactionPrefix, 2025, 1, 1234, "tx-2025-01-1234"},
	}
	for _, tt := range tests {
		got := FormatRecordID(tt.prefix, tt.year, tt.month, tt.seq)
		assert.Equal(t, tt.want, got)
	}
}

func TestParseRecordID(t *testing.T) {
	tests := []struct {
		input               string
		wantPrefix          string
		wantYear, wantMonth int
		wantSeq             int
	}{
		{"tx-2025-01-001", "tx", 2025, 1, 1},
		{"le-2025-12-099", "le", 2025, 12, 99},
		{"tx-2024-02-1234", "tx", 2024, 2, 1234},
	}
	for _, tt := range tests {
		prefix, year, month, seq, err := ParseRecordID(tt.input)
		require.NoError(t, err, "input: %s", tt.input)
		assert.Equal(t, tt.wantPrefix, prefix)
		assert.Equal(t, tt.wantYear, year)
		assert.Equal(t, tt.wantMonth, month)
		assert.Equal(t, tt.wantSeq, seq)
	}
}

func TestParseRecordID_Errors(t *testing.T) {
	badInputs := []string{
		"",
		"not-valid",
		"tx-2025-01",
		"tx-xxxx-01-001",
		"tx-2025-13-001",
		"-2025-01-001",
	}
	for _, input := range badInputs {
		_, _, _, _, err := ParseRecordID(input)
		assert.Error(t, err, "expected error for input: %s", input)
	}
}

func TestLess(t *testing.T) {
	assert.True(t, Less("tx-2025-01-002", "tx-2025-01-010"))
	assert.True(t, Less("tx-2024-12-999", "tx-2025-01-001"))
	assert.False(t, Less("tx-2025-02-001", "tx-2025-01-001"))
	assert.True(t, Less("abc", "abd"))
}
