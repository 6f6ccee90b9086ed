package id

import (
	"fmt"
	"strconv"
	"strings"
)

// Record ID prefixes.
const (
	TransactionPrefix = "tx"
	EntryPrefix       = "le"
)

// FormatRecordID returns a record ID like "tx-2025-01-001".
func FormatRecordID(prefix string, year, month, seq int) string {
	return fmt.Sprintf("%s-%04d-%02d-%03d", prefix, year, month, seq)
}

// ParseRecordID parses "tx-2025-01-001" into prefix, year, month, seq.
func ParseRecordID(id string) (prefix string, year, month, seq int, err error) {
	parts := strings.SplitN(id, "-", 4)
	if len(parts) != 4 || parts[0] == "" {
		return "", 0, 0, 0, fmt.Errorf("invalid record ID format: %q", id)
	}
	prefix = parts[0]

	year, err = strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, 0, 0, fmt.Errorf("invalid year in record ID %q: %w", id, err)
	}

	month, err = strconv.Atoi(parts[2])
	if err != nil || month < 1 || month > 12 {
		return "", 0, 0, 0, fmt.Errorf("invalid month in record ID %q", id)
	}

	seq, err = strconv.Atoi(parts[3])
	if err != nil {
		return "", 0, 0, 0, fmt.Errorf("invalid sequence in record ID %q: %w", id, err)
	}

	return prefix, year, month, seq, nil
}

// Less orders record IDs by year, month and sequence, falling back to
// string order for IDs that do not parse.
func Less(a, b string) bool {
	_, ya, ma, sa, errA := ParseRecordID(a)
	_, yb, mb, sb, errB := ParseRecordID(b)
	if errA != nil || errB != nil {
		return a < b
	}
	if ya != yb {
		return ya < yb
	}
	if ma != mb {
		return ma < mb
	}
	return sa < sb
}
