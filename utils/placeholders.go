package utils

import (
	"net/url"
	"regexp"
	"time"

	"debtflow/models"

	"github.com/shopspring/decimal"
)

// Placeholder keys recognized in reminder templates
const (
	PlaceholderInvoiceNumber      = "invoice_number"
	PlaceholderAmount             = "amount"
	PlaceholderDueDate            = "due_date"
	PlaceholderDaysOverdue        = "days_overdue"
	PlaceholderDebtorName         = "debtor_name"
	PlaceholderCompanyName        = "company_name"
	PlaceholderBankAccount        = "bank_account"
	PlaceholderPaymentLink        = "payment_link"
	PlaceholderInterestAmount     = "interest_amount"
	PlaceholderTotalWithInterest  = "total_with_interest"
	PlaceholderAmountWithInterest = "amount_with_interest" // alias of total_with_interest
)

// KnownPlaceholders is the closed set of keys a template may use
var KnownPlaceholders = map[string]bool{
	PlaceholderInvoiceNumber:      true,
	PlaceholderAmount:             true,
	PlaceholderDueDate:            true,
	PlaceholderDaysOverdue:        true,
	PlaceholderDebtorName:         true,
	PlaceholderCompanyName:        true,
	PlaceholderBankAccount:        true,
	PlaceholderPaymentLink:        true,
	PlaceholderInterestAmount:     true,
	PlaceholderTotalWithInterest:  true,
	PlaceholderAmountWithInterest: true,
}

var placeholderPattern = regexp.MustCompile(`\{\{([A-Za-z0-9_]+)\}\}`)

// RenderTemplate substitutes every {{key}} with values[key].
// Keys without a value, known or not, render as an empty string.
func RenderTemplate(template string, values map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(token string) string {
		key := token[2 : len(token)-2]
		return values[key]
	})
}

// ExtractPlaceholders lists the distinct keys literally present in template,
// in order of first appearance.
func ExtractPlaceholders(template string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(template, -1)
	seen := make(map[string]bool, len(matches))
	keys := make([]string, 0, len(matches))
	for _, m := range matches {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		keys = append(keys, m[1])
	}
	return keys
}

// UnknownPlaceholders returns keys used in template that are outside KnownPlaceholders
func UnknownPlaceholders(template string) []string {
	var unknown []string
	for _, key := range ExtractPlaceholders(template) {
		if !KnownPlaceholders[key] {
			unknown = append(unknown, key)
		}
	}
	return unknown
}

// ReminderData is the raw input for building placeholder values
type ReminderData struct {
	InvoiceNumber string
	Amount        decimal.Decimal
	Currency      string
	DueDate       time.Time
	DebtorName    string
	CompanyName   string
	BankAccount   string
	PaymentLink   string
	Interest      InterestResult
}

// PlaceholderValues formats ReminderData into template values
func PlaceholderValues(data ReminderData) map[string]string {
	total := FormatCurrency(data.Interest.Total, data.Currency)
	return map[string]string{
		PlaceholderInvoiceNumber:      data.InvoiceNumber,
		PlaceholderAmount:             FormatCurrency(data.Amount, data.Currency),
		PlaceholderDueDate:            FormatDate(data.DueDate),
		PlaceholderDaysOverdue:        formatInt(data.Interest.DaysOverdue),
		PlaceholderDebtorName:         data.DebtorName,
		PlaceholderCompanyName:        data.CompanyName,
		PlaceholderBankAccount:        data.BankAccount,
		PlaceholderPaymentLink:        data.PaymentLink,
		PlaceholderInterestAmount:     FormatCurrency(data.Interest.Interest, data.Currency),
		PlaceholderTotalWithInterest:  total,
		PlaceholderAmountWithInterest: total,
	}
}

// ReminderDataFor collects template input for an invoice as of a given day.
// The invoice must have its Debtor loaded.
func ReminderDataFor(invoice models.Invoice, owner models.User, asOf time.Time, yearlyRate decimal.Decimal, paymentLinkBase string) ReminderData {
	dueDate := time.Time(invoice.DueDate)
	link := invoice.PaymentLink
	if link == "" && paymentLinkBase != "" {
		link = paymentLinkBase + "/" + url.PathEscape(invoice.InvoiceNumber)
	}
	return ReminderData{
		InvoiceNumber: invoice.InvoiceNumber,
		Amount:        invoice.Amount,
		Currency:      invoice.Currency,
		DueDate:       dueDate,
		DebtorName:    invoice.Debtor.Name,
		CompanyName:   owner.CompanyName,
		BankAccount:   owner.BankAccount,
		PaymentLink:   link,
		Interest:      CalculateInterest(invoice.Amount, dueDate, asOf, yearlyRate),
	}
}
