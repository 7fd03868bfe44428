package utils

import (
	"reflect"
	"strings"
	"testing"

	"debtflow/models"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

func TestRenderTemplate_MissingKeyRendersEmpty(t *testing.T) {
	got := RenderTemplate("Dear {{debtor_name}}, pay {{amount}}", map[string]string{"debtor_name": "Acme"})
	if got != "Dear Acme, pay " {
		t.Fatalf("unexpected render: %q", got)
	}
}

func TestRenderTemplate(t *testing.T) {
	values := map[string]string{
		PlaceholderInvoiceNumber: "FV/1/2024",
		PlaceholderAmount:        "1000,00 zł",
	}

	cases := []struct {
		name     string
		template string
		want     string
	}{
		{"repeated key", "{{invoice_number}} / {{invoice_number}}", "FV/1/2024 / FV/1/2024"},
		{"unknown key", "x{{not_a_key}}y", "xy"},
		{"no placeholders", "Zapłać dziś", "Zapłać dziś"},
		{"single braces untouched", "{invoice_number}", "{invoice_number}"},
		{"adjacent keys", "{{invoice_number}}{{amount}}", "FV/1/20241000,00 zł"},
		{"empty template", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := RenderTemplate(tc.template, values); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestExtractPlaceholders_DeduplicatesInOrder(t *testing.T) {
	got := ExtractPlaceholders("{{amount}} {{due_date}} {{amount}} {amount} {{ debtor_name }}")
	want := []string{"amount", "due_date"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestExtractPlaceholders_NoMatches(t *testing.T) {
	if got := ExtractPlaceholders("plain text"); len(got) != 0 {
		t.Fatalf("expected no placeholders, got %v", got)
	}
}

func TestUnknownPlaceholders(t *testing.T) {
	got := UnknownPlaceholders("{{amount}} {{iban}} {{amount_with_interest}} {{iban}}")
	if !reflect.DeepEqual(got, []string{"iban"}) {
		t.Fatalf("expected [iban], got %v", got)
	}
}

func TestPlaceholderValues_AliasMatchesTotal(t *testing.T) {
	invoice := models.Invoice{
		InvoiceNumber: "FV/7/2024",
		Amount:        decimal.NewFromInt(1000),
		Currency:      "PLN",
		DueDate:       datatypes.Date(mustDate(t, "2024-01-01")),
		Debtor:        models.Debtor{Name: "Acme"},
	}
	owner := models.User{CompanyName: "Kowalski", BankAccount: "PL00 1234"}

	values := PlaceholderValues(ReminderDataFor(invoice, owner, mustDate(t, "2024-01-11"), decimal.RequireFromString("0.155"), "https://pay.example.com"))

	if values[PlaceholderAmountWithInterest] != values[PlaceholderTotalWithInterest] {
		t.Fatalf("alias mismatch: %q vs %q", values[PlaceholderAmountWithInterest], values[PlaceholderTotalWithInterest])
	}
	expect := map[string]string{
		PlaceholderInvoiceNumber:     "FV/7/2024",
		PlaceholderDueDate:           "01.01.2024",
		PlaceholderDaysOverdue:       "10",
		PlaceholderDebtorName:        "Acme",
		PlaceholderCompanyName:       "Kowalski",
		PlaceholderBankAccount:       "PL00 1234",
		PlaceholderInterestAmount:    "4,25 zł",
		PlaceholderPaymentLink:       "https://pay.example.com/FV%2F7%2F2024",
		PlaceholderTotalWithInterest: FormatCurrency(decimal.RequireFromString("1004.25"), "PLN"),
	}
	for key, want := range expect {
		if values[key] != want {
			t.Errorf("%s: expected %q, got %q", key, want, values[key])
		}
	}
	for key := range KnownPlaceholders {
		if _, ok := values[key]; !ok {
			t.Errorf("no value produced for %s", key)
		}
	}
}

func TestReminderDataFor_PrefersInvoicePaymentLink(t *testing.T) {
	invoice := models.Invoice{
		InvoiceNumber: "FV/8/2024",
		Amount:        decimal.NewFromInt(10),
		DueDate:       datatypes.Date(mustDate(t, "2024-01-01")),
		PaymentLink:   "https://psp.example.com/abc",
	}
	data := ReminderDataFor(invoice, models.User{}, mustDate(t, "2024-01-01"), decimal.RequireFromString("0.155"), "https://pay.example.com")
	if data.PaymentLink != "https://psp.example.com/abc" {
		t.Fatalf("unexpected payment link %q", data.PaymentLink)
	}
}

func TestFormatCurrency(t *testing.T) {
	cases := []struct {
		amount   string
		currency string
		want     string
	}{
		{"4.25", "PLN", "4,25 zł"},
		{"0", "", "0,00 zł"},
		{"7.5", "EUR", "7,50 €"},
		{"12.345", "pln", "12,35 zł"},
		{"3", "GBP", "3,00 GBP"},
	}
	for _, tc := range cases {
		if got := FormatCurrency(decimal.RequireFromString(tc.amount), tc.currency); got != tc.want {
			t.Errorf("FormatCurrency(%s, %s) expected %q, got %q", tc.amount, tc.currency, tc.want, got)
		}
	}
}

func TestFormatCurrency_GroupsThousands(t *testing.T) {
	got := FormatCurrency(decimal.RequireFromString("1234567.5"), "PLN")
	if !strings.HasSuffix(got, "567,50 zł") {
		t.Fatalf("unexpected format %q", got)
	}
	if strings.Contains(got, ".") || strings.HasPrefix(got, "1234567") {
		t.Fatalf("expected Polish grouping, got %q", got)
	}
}

func TestFormatDate(t *testing.T) {
	if got := FormatDate(mustDate(t, "2024-03-05")); got != "05.03.2024" {
		t.Fatalf("expected 05.03.2024, got %q", got)
	}
}
