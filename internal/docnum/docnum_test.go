package docnum

import (
	"testing"
	"time"
)

func TestFormat(t *testing.T) {
	date := time.Date(2025, time.September, 1, 10, 30, 0, 0, time.UTC)

	got := Format(PrefixInvoice, date, 42)
	if got != "INV-250901-000042" {
		t.Fatalf("got %s, want INV-250901-000042", got)
	}
}

func TestFormatUsesUTCDate(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	// 02:00 on Sep 2 in UTC+8 is still Sep 1 in UTC.
	date := time.Date(2025, time.September, 2, 2, 0, 0, 0, loc)

	if got := DayKey(date); got != "250901" {
		t.Fatalf("day key: got %s, want 250901", got)
	}
}

func TestParseSeq(t *testing.T) {
	if got := ParseSeq("RCP-250901-000107"); got != 107 {
		t.Fatalf("got %d, want 107", got)
	}
	if got := ParseSeq("garbage"); got != 0 {
		t.Fatalf("got %d, want 0 for malformed input", got)
	}
	if got := ParseSeq(""); got != 0 {
		t.Fatalf("got %d, want 0 for empty input", got)
	}
}
