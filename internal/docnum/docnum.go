// Package docnum formats human-readable document numbers. Uniqueness comes
// from a per-prefix-per-day monotonic counter kept by the store (seeded from
// the highest existing sequence), not from wall-clock suffixes.
package docnum

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	PrefixInvoice = "INV"
	PrefixReturn  = "SR"
	PrefixReceipt = "RCP"
)

// Format renders PREFIX-YYMMDD-NNNNNN, e.g. INV-250901-000042.
func Format(prefix string, date time.Time, seq int64) string {
	return fmt.Sprintf("%s-%s-%06d", prefix, DayKey(date), seq)
}

// DayKey renders the date stamp embedded in document numbers.
func DayKey(date time.Time) string {
	return date.UTC().Format("060102")
}

// ParseSeq extracts the sequence from a document number produced by Format.
// Returns 0 for anything that does not look like one.
func ParseSeq(number string) int64 {
	idx := strings.LastIndex(number, "-")
	if idx < 0 || idx+1 >= len(number) {
		return 0
	}
	seq, err := strconv.ParseInt(number[idx+1:], 10, 64)
	if err != nil || seq < 0 {
		return 0
	}
	return seq
}
