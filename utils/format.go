package utils

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var polishPrinter = message.NewPrinter(language.Polish)

var currencySuffix = map[string]string{
	"":    "zł",
	"PLN": "zł",
	"EUR": "€",
	"USD": "USD",
}

// FormatCurrency renders an amount with Polish digit grouping, exactly two
// fraction digits and a currency suffix, e.g. "1 234,50 zł".
func FormatCurrency(amount decimal.Decimal, currency string) string {
	suffix, ok := currencySuffix[strings.ToUpper(currency)]
	if !ok {
		suffix = strings.ToUpper(currency)
	}
	return polishPrinter.Sprintf("%.2f", amount.Round(2).InexactFloat64()) + " " + suffix
}

// FormatDate renders a calendar date the way Polish documents print it (DD.MM.YYYY)
func FormatDate(t time.Time) string {
	return t.Format("02.01.2006")
}

// ParseDate accepts ISO calendar dates (YYYY-MM-DD)
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, err
	}
	return DateOnly(t), nil
}

// FormatISODate is the storage and API representation of a calendar date
func FormatISODate(t time.Time) string {
	return t.Format(time.DateOnly)
}

func formatInt(n int) string {
	return strconv.Itoa(n)
}
