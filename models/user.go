package models

import (
	"gorm.io/gorm"
)

// User represents an account owning invoices and sequences
type User struct {
	gorm.Model

	Email    string  `gorm:"uniqueIndex;not null" json:"email"`
	Name     *string `json:"name,omitempty"`
	IsActive bool    `gorm:"default:true" json:"is_active"`

	// Bumped on logout/password change, invalidates issued tokens
	TokenVersion int `gorm:"default:0" json:"-"`

	// Company details used in reminder content
	CompanyName string `json:"company_name"`
	NIP         string `json:"nip"`
	BankAccount string `json:"bank_account"`
	SMSSender   string `json:"sms_sender"` // SMSAPI sender name, falls back to config
	ReplyEmail  string `json:"reply_email"`

	// Relations
	Sequences []Sequence `gorm:"foreignKey:UserID" json:"sequences,omitempty"`
	Invoices  []Invoice  `gorm:"foreignKey:UserID" json:"invoices,omitempty"`
}

// AllModels lists every table managed by AutoMigrate.
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Debtor{},
		&Sequence{},
		&SequenceStep{},
		&Invoice{},
		&ScheduledStep{},
		&CollectionAction{},
	}
}
