package models

import (
	"time"

	"gorm.io/datatypes"
)

// ScheduledStepStatus is the lifecycle of a materialized step.
// pending is the only non-terminal value.
type ScheduledStepStatus string

const (
	StepStatusPending   ScheduledStepStatus = "pending"
	StepStatusExecuted  ScheduledStepStatus = "executed"
	StepStatusFailed    ScheduledStepStatus = "failed"
	StepStatusSkipped   ScheduledStepStatus = "skipped"
	StepStatusCancelled ScheduledStepStatus = "cancelled"
)

func (s ScheduledStepStatus) Terminal() bool {
	return s != StepStatusPending
}

// ScheduledStep is a dated instance of a SequenceStep for one invoice.
// Rows are hard-deleted while pending and kept forever otherwise, so there is no DeletedAt.
type ScheduledStep struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	InvoiceID      uint `gorm:"not null;index;uniqueIndex:idx_scheduled_steps_pending,where:status = 'pending'" json:"invoice_id"`
	SequenceStepID uint `gorm:"not null;index;uniqueIndex:idx_scheduled_steps_pending,where:status = 'pending'" json:"sequence_step_id"`

	ScheduledFor datatypes.Date      `gorm:"type:date;not null;index" json:"scheduled_for"`
	Status       ScheduledStepStatus `gorm:"not null;default:'pending';index" json:"status"` // pending, executed, failed, skipped, cancelled
	ExecutedAt   *time.Time          `json:"executed_at"`
	LastError    string              `json:"last_error,omitempty"`

	// Relations
	SequenceStep *SequenceStep `json:"sequence_step,omitempty"`
}

// ActionStatus is the delivery state of a collection action
type ActionStatus string

const (
	ActionStatusSent      ActionStatus = "sent"
	ActionStatusDelivered ActionStatus = "delivered"
	ActionStatusFailed    ActionStatus = "failed"
)

func (s ActionStatus) Terminal() bool {
	return s == ActionStatusDelivered || s == ActionStatusFailed
}

// Metadata keys written on collection actions
const (
	MetaMessageID     = "message_id"
	MetaSMSAPIStatus  = "smsapi_status"
	MetaSMSAPIError   = "smsapi_error"
	MetaDispatchError = "error"
)

// CollectionAction records one send attempt and its delivery outcome
type CollectionAction struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID          uint  `gorm:"not null;index" json:"user_id"`
	InvoiceID       uint  `gorm:"not null;index" json:"invoice_id"`
	ScheduledStepID *uint `gorm:"index" json:"scheduled_step_id"`

	Channel   Channel      `gorm:"not null" json:"channel"`
	Recipient string       `json:"recipient"`
	Subject   string       `json:"subject"`
	Content   string       `gorm:"type:text" json:"content"`
	Status    ActionStatus `gorm:"not null;default:'sent';index" json:"status"` // sent, delivered, failed

	Metadata datatypes.JSONMap `json:"metadata"`

	// Provider-side time of the last applied status callback, used to drop stale callbacks
	ProviderStatusAt *time.Time `json:"provider_status_at"`
}
