package utils

import (
	"time"

	"github.com/shopspring/decimal"
)

var daysInYear = decimal.NewFromInt(365)

// InterestResult is the statutory interest owed on an overdue amount
type InterestResult struct {
	Principal   decimal.Decimal `json:"principal"`
	Interest    decimal.Decimal `json:"interest"`
	Total       decimal.Decimal `json:"total"`
	DaysOverdue int             `json:"days_overdue"`
	DailyRate   decimal.Decimal `json:"daily_rate"`
}

// CalculateInterest computes simple late-payment interest accrued from dueDate to asOf.
// Interest is rounded half-up to 2 places once, on the final figure.
func CalculateInterest(amount decimal.Decimal, dueDate, asOf time.Time, yearlyRate decimal.Decimal) InterestResult {
	dailyRate := yearlyRate.Div(daysInYear)
	result := InterestResult{
		Principal:   amount,
		Interest:    decimal.Zero,
		Total:       amount,
		DaysOverdue: DaysOverdue(dueDate, asOf),
		DailyRate:   dailyRate,
	}
	if result.DaysOverdue == 0 {
		return result
	}

	result.Interest = amount.
		Mul(dailyRate).
		Mul(decimal.NewFromInt(int64(result.DaysOverdue))).
		Round(2)
	result.Total = amount.Add(result.Interest)
	return result
}

// DaysOverdue counts whole calendar days from dueDate to asOf, never negative.
func DaysOverdue(dueDate, asOf time.Time) int {
	days := DaysBetween(DateOnly(dueDate), DateOnly(asOf))
	if days < 0 {
		return 0
	}
	return days
}

// DateOnly drops the time of day, keeping the calendar date as seen in t's location.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns to-from in whole days for two midnight-UTC dates
func DaysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

// AddDays shifts a calendar date by n days
func AddDays(date time.Time, n int) time.Time {
	return DateOnly(date).AddDate(0, 0, n)
}
