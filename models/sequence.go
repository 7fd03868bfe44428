package models

import "gorm.io/gorm"

// Channel is the delivery channel of a sequence step.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Sequence is a reusable collection template owned by a user
type Sequence struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`

	// Relations
	Steps []SequenceStep `gorm:"foreignKey:SequenceID" json:"steps,omitempty"`
}

// SequenceStep is one timed reminder inside a sequence.
// DaysOffset is relative to the invoice due date: negative runs before it.
type SequenceStep struct {
	gorm.Model
	SequenceID uint `gorm:"not null;index" json:"sequence_id"`

	StepOrder  int     `gorm:"not null" json:"step_order"`
	DaysOffset int     `gorm:"not null" json:"days_offset"`
	Channel    Channel `gorm:"not null;default:'email'" json:"channel"` // email, sms

	// Message content, may contain {{placeholders}}
	Subject string `json:"subject"`
	Body    string `gorm:"type:text;not null" json:"body"`
}
