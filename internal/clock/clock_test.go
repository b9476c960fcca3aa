package clock

import (
	"testing"
	"time"
)

func mustZone(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := LoadZone(name)
	if err != nil {
		t.Fatalf("load zone %s: %v", name, err)
	}
	return loc
}

func TestResolvePlainTime(t *testing.T) {
	la := mustZone(t, "America/Los_Angeles")

	instant, adjustment, err := Resolve(2025, time.June, 15, 9, 0, la)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if adjustment != AdjustNone {
		t.Fatalf("expected no adjustment, got %s", adjustment)
	}
	// PDT is UTC-7.
	want := time.Date(2025, time.June, 15, 16, 0, 0, 0, time.UTC)
	if !instant.Equal(want) {
		t.Fatalf("expected %s, got %s", want, instant)
	}
}

func TestResolveSpringForwardGapRoundsForward(t *testing.T) {
	la := mustZone(t, "America/Los_Angeles")

	// 2024-03-10 02:30 does not exist in Los Angeles; clocks jump 2->3.
	instant, adjustment, err := Resolve(2024, time.March, 10, 2, 30, la)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if adjustment != AdjustGapForward {
		t.Fatalf("expected gap adjustment, got %s", adjustment)
	}

	local := instant.In(la)
	if local.Hour() != 3 || local.Minute() != 30 {
		t.Fatalf("expected local 03:30, got %02d:%02d", local.Hour(), local.Minute())
	}
	// 03:30 PDT == 10:30 UTC.
	want := time.Date(2024, time.March, 10, 10, 30, 0, 0, time.UTC)
	if !instant.Equal(want) {
		t.Fatalf("expected %s, got %s", want, instant)
	}
}

func TestResolveSpringForwardKeepsMinutes(t *testing.T) {
	la := mustZone(t, "America/Los_Angeles")

	cases := []struct {
		minute    int
		wantLocal string
	}{
		{0, "03:00"},
		{15, "03:15"},
		{59, "03:59"},
	}
	for _, tc := range cases {
		instant, adjustment, err := Resolve(2024, time.March, 10, 2, tc.minute, la)
		if err != nil {
			t.Fatalf("resolve 02:%02d: %v", tc.minute, err)
		}
		if adjustment != AdjustGapForward {
			t.Fatalf("02:%02d: expected gap adjustment, got %s", tc.minute, adjustment)
		}
		got := instant.In(la).Format("15:04")
		if got != tc.wantLocal {
			t.Fatalf("02:%02d: expected local %s, got %s", tc.minute, tc.wantLocal, got)
		}
	}
}

func TestResolveFallBackPicksEarliestInstant(t *testing.T) {
	la := mustZone(t, "America/Los_Angeles")

	// 2024-11-03 01:30 occurs twice; the PDT occurrence is earlier.
	instant, adjustment, err := Resolve(2024, time.November, 3, 1, 30, la)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if adjustment != AdjustFoldEarliest {
		t.Fatalf("expected fold adjustment, got %s", adjustment)
	}
	// 01:30 PDT == 08:30 UTC (the second occurrence would be 09:30).
	want := time.Date(2024, time.November, 3, 8, 30, 0, 0, time.UTC)
	if !instant.Equal(want) {
		t.Fatalf("expected %s, got %s", want, instant)
	}
}

func TestResolveUTCPassthrough(t *testing.T) {
	instant, adjustment, err := Resolve(2025, time.March, 3, 9, 0, time.UTC)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if adjustment != AdjustNone {
		t.Fatalf("expected no adjustment, got %s", adjustment)
	}
	want := time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)
	if !instant.Equal(want) {
		t.Fatalf("expected %s, got %s", want, instant)
	}
}

func TestLoadZoneDefaultsToUTC(t *testing.T) {
	loc, err := LoadZone("")
	if err != nil {
		t.Fatalf("load zone: %v", err)
	}
	if loc != time.UTC {
		t.Fatalf("expected UTC, got %s", loc)
	}
}

func TestLoadZoneRejectsUnknownName(t *testing.T) {
	if _, err := LoadZone("Not/AZone"); err == nil {
		t.Fatal("expected error for unknown zone")
	}
}
