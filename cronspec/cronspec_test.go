package cronspec

import (
	"testing"
	"time"
)

func TestParseRejectsBadExpression(t *testing.T) {
	if _, err := Parse("not a cron expr", "UTC"); err == nil {
		t.Fatal("expected an error for a malformed expression")
	}
}

func TestParseRejectsBadTimezone(t *testing.T) {
	if _, err := Parse("0 0 * * *", "Nowhere/Fictional"); err == nil {
		t.Fatal("expected an error for an unknown IANA timezone")
	}
}

func TestNextAdvancesToTheNextFire(t *testing.T) {
	spec, err := Parse("0 0 * * *", "UTC")
	if err != nil {
		t.Fatal(err)
	}
	after := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	next := spec.Next(after)
	want := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("expected next fire %v, got %v", want, next)
	}
}

func TestNextSkipsForwardOverASpringForwardGap(t *testing.T) {
	// America/New_York springs forward at 02:00 -> 03:00 on 2026-03-08.
	spec, err := Parse("30 2 * * *", "America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	after := time.Date(2026, 3, 7, 23, 0, 0, 0, time.UTC)
	next := spec.Next(after)
	if next.Hour() == 2 && next.Day() == 8 {
		t.Fatalf("expected the skipped 02:30 wall-clock instant to be skipped forward, got %v", next)
	}
}

func TestExpressionAndTimezoneAccessors(t *testing.T) {
	spec, err := Parse("*/5 * * * *", "America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	if spec.Expression() != "*/5 * * * *" {
		t.Fatalf("expected expression to round-trip, got %q", spec.Expression())
	}
	if spec.Timezone() != "America/New_York" {
		t.Fatalf("expected timezone to round-trip, got %q", spec.Timezone())
	}
}
