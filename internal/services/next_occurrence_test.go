package services

import (
	"testing"
	"time"

	"financas/internal/core"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextOccurrence(t *testing.T) {
	tests := []struct {
		name     string
		base     time.Time
		freq     core.Frequency
		interval int
		want     time.Time
	}{
		{name: "daily", base: date(2026, 8, 15), freq: core.Daily, interval: 1, want: date(2026, 8, 16)},
		{name: "daily interval 3", base: date(2026, 8, 30), freq: core.Daily, interval: 3, want: date(2026, 9, 2)},
		{name: "weekly", base: date(2026, 8, 15), freq: core.Weekly, interval: 1, want: date(2026, 8, 22)},
		{name: "weekly interval 2", base: date(2026, 8, 15), freq: core.Weekly, interval: 2, want: date(2026, 8, 29)},
		{name: "monthly", base: date(2026, 8, 15), freq: core.Monthly, interval: 1, want: date(2026, 9, 15)},
		{name: "monthly from the 31st clamps", base: date(2026, 1, 31), freq: core.Monthly, interval: 1, want: date(2026, 2, 28)},
		{name: "monthly from the 31st leap year", base: date(2028, 1, 31), freq: core.Monthly, interval: 1, want: date(2028, 2, 29)},
		{name: "monthly interval 6", base: date(2026, 8, 31), freq: core.Monthly, interval: 6, want: date(2027, 2, 28)},
		{name: "yearly", base: date(2026, 8, 15), freq: core.Yearly, interval: 1, want: date(2027, 8, 15)},
		{name: "yearly from leap day clamps", base: date(2028, 2, 29), freq: core.Yearly, interval: 1, want: date(2029, 2, 28)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextOccurrence(tt.base, tt.freq, tt.interval)
			if err != nil {
				t.Fatalf("NextOccurrence() error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("NextOccurrence(%v, %s, %d) = %v, want %v",
					tt.base, tt.freq, tt.interval, got, tt.want)
			}
		})
	}
}

func TestNextOccurrence_Invalid(t *testing.T) {
	if _, err := NextOccurrence(date(2026, 8, 15), core.Daily, 0); err == nil {
		t.Error("NextOccurrence(interval 0) expected error")
	}
	if _, err := NextOccurrence(date(2026, 8, 15), "fortnightly", 1); err == nil {
		t.Error("NextOccurrence(unknown frequency) expected error")
	}
}

func TestNextOccurrence_RoundTrip(t *testing.T) {
	// Daily and weekly shifts invert exactly. Monthly and yearly do too
	// as long as no clamp was involved.
	cases := []struct {
		base     time.Time
		freq     core.Frequency
		interval int
	}{
		{date(2026, 8, 15), core.Daily, 5},
		{date(2026, 8, 15), core.Weekly, 3},
		{date(2026, 8, 15), core.Monthly, 4},
		{date(2026, 8, 15), core.Yearly, 2},
	}

	for _, tt := range cases {
		forward, err := NextOccurrence(tt.base, tt.freq, tt.interval)
		if err != nil {
			t.Fatalf("NextOccurrence() error: %v", err)
		}
		back, err := PreviousOccurrence(forward, tt.freq, tt.interval)
		if err != nil {
			t.Fatalf("PreviousOccurrence() error: %v", err)
		}
		if !back.Equal(tt.base) {
			t.Errorf("round trip %s/%d: %v -> %v -> %v", tt.freq, tt.interval, tt.base, forward, back)
		}
	}
}

func TestNextOccurrence_ClampedRoundTripDocumented(t *testing.T) {
	// Jan 31 + 1 month clamps to Feb 28; the reverse shift lands on
	// Jan 28, not Jan 31. The asymmetry is inherent to clamping.
	forward, _ := NextOccurrence(date(2026, 1, 31), core.Monthly, 1)
	back, _ := PreviousOccurrence(forward, core.Monthly, 1)
	if !back.Equal(date(2026, 1, 28)) {
		t.Errorf("clamped reverse shift = %v, want 2026-01-28", back)
	}
}
