package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// InvoiceStatus is owned by the invoice module; the collection engine only reads it.
type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "pending"
	InvoiceStatusDueSoon   InvoiceStatus = "due_soon"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// Collectable reports whether reminders may still go out for the invoice.
func (s InvoiceStatus) Collectable() bool {
	return s != InvoiceStatusPaid && s != InvoiceStatusCancelled
}

// Debtor is the counterparty that owes money on an invoice
type Debtor struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Name  string `gorm:"not null" json:"name"`
	NIP   string `json:"nip"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Invoice is a receivable tracked for collection
type Invoice struct {
	gorm.Model
	UserID   uint `gorm:"not null;index" json:"user_id"`
	DebtorID uint `gorm:"not null;index" json:"debtor_id"`

	InvoiceNumber string          `gorm:"not null" json:"invoice_number"`
	Amount        decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	Currency      string          `gorm:"default:'PLN'" json:"currency"`
	DueDate       datatypes.Date  `gorm:"type:date;not null" json:"due_date"`
	Status        InvoiceStatus   `gorm:"default:'pending'" json:"status"` // pending, due_soon, overdue, paid, cancelled
	PaymentLink   string          `json:"payment_link"`

	SequenceID *uint `gorm:"index" json:"sequence_id"`

	// Relations
	Debtor Debtor `json:"debtor,omitempty"`
}
