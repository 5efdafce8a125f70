package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "dot separator", input: "12.34", want: "12.34"},
		{name: "comma separator", input: "12,34", want: "12.34"},
		{name: "rounds half up", input: "12.346", want: "12.35"},
		{name: "rounds down", input: "12.344", want: "12.34"},
		{name: "integer", input: "100", want: "100"},
		{name: "zero rejected", input: "0", wantErr: true},
		{name: "negative rejected", input: "-5.00", wantErr: true},
		{name: "empty rejected", input: "", wantErr: true},
		{name: "garbage rejected", input: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseAmount(%q) expected error, got %s", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%q) unexpected error: %v", tt.input, err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestAddMonthsClamped(t *testing.T) {
	tests := []struct {
		name   string
		start  time.Time
		months int
		want   time.Time
	}{
		{
			name:   "plain month",
			start:  time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
			months: 1,
			want:   time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "jan 31 clamps to feb 29 in leap year",
			start:  time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			months: 1,
			want:   time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "jan 31 clamps to feb 28",
			start:  time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC),
			months: 1,
			want:   time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "multiple months across year boundary",
			start:  time.Date(2023, 11, 30, 0, 0, 0, 0, time.UTC),
			months: 3,
			want:   time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "negative shift",
			start:  time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
			months: -1,
			want:   time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AddMonthsClamped(tt.start, tt.months)
			if !got.Equal(tt.want) {
				t.Errorf("AddMonthsClamped(%v, %d) = %v, want %v", tt.start, tt.months, got, tt.want)
			}
		})
	}
}

func TestAddYearsClamped(t *testing.T) {
	start := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	got := AddYearsClamped(start, 1)
	want := time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("AddYearsClamped(%v, 1) = %v, want %v", start, got, want)
	}
}

func TestMonthKey(t *testing.T) {
	got := MonthKey(time.Date(2025, 3, 7, 14, 30, 0, 0, time.UTC))
	if got != "2025-03" {
		t.Errorf("MonthKey = %q, want %q", got, "2025-03")
	}
}

func TestFormatAmount(t *testing.T) {
	got := FormatAmount("BRL", decimal.RequireFromString("1234.5"))
	if got != "BRL 1234.50" {
		t.Errorf("FormatAmount = %q, want %q", got, "BRL 1234.50")
	}
	if got := FormatAmount("", decimal.NewFromInt(1)); got != "BRL 1.00" {
		t.Errorf("FormatAmount default currency = %q", got)
	}
}
