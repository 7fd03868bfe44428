package utils

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestCalculateInterest(t *testing.T) {
	rate := decimal.RequireFromString("0.155")

	cases := []struct {
		name         string
		amount       string
		due          string
		asOf         string
		wantDays     int
		wantInterest string
		wantTotal    string
	}{
		{"ten days overdue", "1000", "2024-01-01", "2024-01-11", 10, "4.25", "1004.25"},
		{"on due date", "1000", "2024-01-01", "2024-01-01", 0, "0", "1000"},
		{"before due date", "1000", "2024-01-10", "2024-01-01", 0, "0", "1000"},
		{"leap year february", "2500.50", "2024-02-01", "2024-03-01", 29, "30.79", "2531.29"},
		{"full year", "10000", "2023-01-01", "2024-01-01", 365, "1550", "11550"},
		{"single day", "100", "2024-01-01", "2024-01-02", 1, "0.04", "100.04"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CalculateInterest(decimal.RequireFromString(tc.amount), mustDate(t, tc.due), mustDate(t, tc.asOf), rate)
			if got.DaysOverdue != tc.wantDays {
				t.Fatalf("expected %d days overdue, got %d", tc.wantDays, got.DaysOverdue)
			}
			if !got.Interest.Equal(decimal.RequireFromString(tc.wantInterest)) {
				t.Fatalf("expected interest %s, got %s", tc.wantInterest, got.Interest)
			}
			if !got.Total.Equal(decimal.RequireFromString(tc.wantTotal)) {
				t.Fatalf("expected total %s, got %s", tc.wantTotal, got.Total)
			}
			if !got.Principal.Equal(decimal.RequireFromString(tc.amount)) {
				t.Fatalf("principal changed: %s", got.Principal)
			}
		})
	}
}

func TestCalculateInterest_RoundsHalfUp(t *testing.T) {
	// 0.365 / 365 is exactly 0.001 a day
	rate := decimal.RequireFromString("0.365")
	got := CalculateInterest(decimal.NewFromInt(5), mustDate(t, "2024-01-01"), mustDate(t, "2024-01-02"), rate)

	if !got.Interest.Equal(decimal.RequireFromString("0.01")) {
		t.Fatalf("expected 0.005 to round up to 0.01, got %s", got.Interest)
	}
}

func TestCalculateInterest_ReportsDailyRateWhenNotOverdue(t *testing.T) {
	rate := decimal.RequireFromString("0.155")
	got := CalculateInterest(decimal.NewFromInt(1000), mustDate(t, "2024-01-01"), mustDate(t, "2024-01-01"), rate)

	if got.DailyRate.Round(9).String() != "0.000424658" {
		t.Fatalf("expected daily rate ~0.000424658, got %s", got.DailyRate)
	}
}

func TestDaysOverdue_IgnoresTimeOfDay(t *testing.T) {
	due := mustDate(t, "2024-01-01").Add(23 * time.Hour)
	asOf := mustDate(t, "2024-01-02").Add(time.Hour)

	if got := DaysOverdue(due, asOf); got != 1 {
		t.Fatalf("expected 1 day, got %d", got)
	}
}

func TestAddDays_CrossesMonthAndYear(t *testing.T) {
	cases := []struct {
		date   string
		offset int
		want   string
	}{
		{"2024-01-03", -7, "2023-12-27"},
		{"2024-02-28", 1, "2024-02-29"},
		{"2023-02-28", 1, "2023-03-01"},
		{"2024-03-31", 0, "2024-03-31"},
	}
	for _, tc := range cases {
		if got := FormatISODate(AddDays(mustDate(t, tc.date), tc.offset)); got != tc.want {
			t.Fatalf("AddDays(%s, %d) expected %s, got %s", tc.date, tc.offset, tc.want, got)
		}
	}
}
