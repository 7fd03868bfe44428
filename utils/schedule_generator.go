package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"debtflow/models"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNoSteps          = errors.New("sequence has no steps")
	ErrInvoiceNotFound  = errors.New("invoice not found")
	ErrSequenceNotFound = errors.New("sequence not found")
)

// ScheduleGenerator materializes sequence templates into dated scheduled steps
type ScheduleGenerator struct {
	DB     *gorm.DB
	Logger *logrus.Entry
}

func NewScheduleGenerator(db *gorm.DB, logger *logrus.Entry) *ScheduleGenerator {
	return &ScheduleGenerator{
		DB:     db,
		Logger: logger,
	}
}

// GenerateScheduledSteps creates one pending step per sequence step, dated
// dueDate + days_offset. Steps that already have a pending row for the
// invoice are left alone, so repeated calls never duplicate.
func (sg *ScheduleGenerator) GenerateScheduledSteps(ctx context.Context, invoiceID, sequenceID uint, dueDate time.Time) (int, error) {
	var created int
	err := sg.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		created, err = generateSteps(tx, invoiceID, sequenceID, dueDate)
		return err
	})
	if err != nil {
		return 0, err
	}

	sg.Logger.WithFields(logrus.Fields{
		"invoice_id":  invoiceID,
		"sequence_id": sequenceID,
		"created":     created,
	}).Info("Generated scheduled steps")
	return created, nil
}

// DeleteScheduledSteps removes the invoice's pending steps. History rows stay.
func (sg *ScheduleGenerator) DeleteScheduledSteps(ctx context.Context, invoiceID uint) error {
	_, err := deletePendingSteps(sg.DB.WithContext(ctx), invoiceID)
	return err
}

// UpdateInvoiceSequence replaces the invoice's pending schedule with one built
// from sequenceID at dueDate, or clears it when sequenceID is nil. The invoice
// row is locked for the duration, and delete + insert commit together.
func (sg *ScheduleGenerator) UpdateInvoiceSequence(ctx context.Context, invoiceID uint, sequenceID *uint, dueDate time.Time) (int, error) {
	var created int
	var removed int64

	err := sg.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var invoice models.Invoice
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&invoice, invoiceID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvoiceNotFound
			}
			return fmt.Errorf("lock invoice: %w", err)
		}

		if sequenceID != nil {
			var sequence models.Sequence
			if err := tx.Select("id").First(&sequence, *sequenceID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrSequenceNotFound
				}
				return fmt.Errorf("load sequence: %w", err)
			}
		}

		var err error
		removed, err = deletePendingSteps(tx, invoiceID)
		if err != nil {
			return err
		}

		if sequenceID != nil {
			created, err = generateSteps(tx, invoiceID, *sequenceID, dueDate)
			if err != nil {
				return err
			}
		}

		return tx.Model(&invoice).Updates(map[string]interface{}{
			"sequence_id": sequenceID,
			"due_date":    datatypes.Date(DateOnly(dueDate)),
		}).Error
	})
	if err != nil {
		return 0, err
	}

	sg.Logger.WithFields(logrus.Fields{
		"invoice_id":  invoiceID,
		"sequence_id": sequenceID,
		"due_date":    FormatISODate(dueDate),
		"removed":     removed,
		"created":     created,
	}).Info("Invoice schedule replaced")
	return created, nil
}

// RescheduleDueDate moves the invoice's due date. The pending schedule is rebuilt
// from the assigned sequence while the invoice is collectable, and cleared
// otherwise. The sequence assignment itself is never changed here.
func (sg *ScheduleGenerator) RescheduleDueDate(ctx context.Context, invoiceID uint, dueDate time.Time) (int, error) {
	var created int
	var removed int64
	var invoice models.Invoice

	err := sg.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&invoice, invoiceID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvoiceNotFound
			}
			return fmt.Errorf("lock invoice: %w", err)
		}

		var err error
		removed, err = deletePendingSteps(tx, invoiceID)
		if err != nil {
			return err
		}

		if invoice.SequenceID != nil && invoice.Status.Collectable() {
			created, err = generateSteps(tx, invoiceID, *invoice.SequenceID, dueDate)
			if err != nil {
				return err
			}
		}

		return tx.Model(&invoice).Update("due_date", datatypes.Date(DateOnly(dueDate))).Error
	})
	if err != nil {
		return 0, err
	}

	sg.Logger.WithFields(logrus.Fields{
		"invoice_id":  invoiceID,
		"sequence_id": invoice.SequenceID,
		"status":      invoice.Status,
		"due_date":    FormatISODate(dueDate),
		"removed":     removed,
		"created":     created,
	}).Info("Invoice due date moved")
	return created, nil
}

// CancelScheduledSteps moves pending steps to cancelled, e.g. once the invoice is paid
func (sg *ScheduleGenerator) CancelScheduledSteps(ctx context.Context, invoiceID uint) (int64, error) {
	res := sg.DB.WithContext(ctx).
		Model(&models.ScheduledStep{}).
		Where("invoice_id = ? AND status = ?", invoiceID, models.StepStatusPending).
		Update("status", models.StepStatusCancelled)
	if res.Error != nil {
		return 0, fmt.Errorf("cancel scheduled steps: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func generateSteps(tx *gorm.DB, invoiceID, sequenceID uint, dueDate time.Time) (int, error) {
	var steps []models.SequenceStep
	if err := tx.Where("sequence_id = ?", sequenceID).
		Order("step_order ASC").
		Order("id ASC").
		Find(&steps).Error; err != nil {
		return 0, fmt.Errorf("%w: %w", ErrNoSteps, err)
	}
	if len(steps) == 0 {
		return 0, ErrNoSteps
	}

	rows := make([]models.ScheduledStep, 0, len(steps))
	for _, step := range steps {
		rows = append(rows, models.ScheduledStep{
			InvoiceID:      invoiceID,
			SequenceStepID: step.ID,
			ScheduledFor:   datatypes.Date(AddDays(dueDate, step.DaysOffset)),
			Status:         models.StepStatusPending,
		})
	}

	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows)
	if res.Error != nil {
		return 0, fmt.Errorf("insert scheduled steps: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func deletePendingSteps(db *gorm.DB, invoiceID uint) (int64, error) {
	res := db.Where("invoice_id = ? AND status = ?", invoiceID, models.StepStatusPending).
		Delete(&models.ScheduledStep{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete pending steps: %w", res.Error)
	}
	return res.RowsAffected, nil
}
