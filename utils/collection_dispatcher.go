package utils

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"debtflow/models"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DispatchSummary counts what one dispatch run did
type DispatchSummary struct {
	Due      int `json:"due"`
	Executed int `json:"executed"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
	Errors   int `json:"errors"`
}

// CollectionDispatcher executes scheduled steps that have come due
type CollectionDispatcher struct {
	DB     *gorm.DB
	Logger *logrus.Entry

	Mailer MailServiceInterface
	SMS    SMSServiceInterface

	YearlyRate         decimal.Decimal
	PaymentLinkBaseURL string
	DefaultSMSSender   string
	BatchSize          int

	Now func() time.Time
}

type stepOutcome int

const (
	outcomeRaced stepOutcome = iota
	outcomeExecuted
	outcomeFailed
	outcomeSkipped
)

// DispatchDue runs every pending step scheduled on or before asOf's date, in
// scheduled_for then step_order order. Each step is claimed with a
// conditional update, so overlapping runs never send the same step twice.
// A step that errors stays pending for the next run and does not stop the batch.
func (d *CollectionDispatcher) DispatchDue(ctx context.Context, asOf time.Time) (DispatchSummary, error) {
	var summary DispatchSummary

	batch := d.BatchSize
	if batch <= 0 {
		batch = 200
	}

	var due []models.ScheduledStep
	err := d.DB.WithContext(ctx).
		Select("scheduled_steps.*").
		Joins("LEFT JOIN sequence_steps ON sequence_steps.id = scheduled_steps.sequence_step_id").
		Where("scheduled_steps.status = ? AND scheduled_steps.scheduled_for <= ?", models.StepStatusPending, datatypes.Date(DateOnly(asOf))).
		Order("scheduled_steps.scheduled_for ASC").
		Order("sequence_steps.step_order ASC").
		Order("scheduled_steps.id ASC").
		Limit(batch).
		Preload("SequenceStep").
		Find(&due).Error
	if err != nil {
		return summary, fmt.Errorf("load due steps: %w", err)
	}
	summary.Due = len(due)

	for _, step := range due {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		outcome, err := d.executeStep(ctx, step, asOf)
		if err != nil {
			LogError("dispatch_step", err, map[string]interface{}{
				"scheduled_step_id": step.ID,
				"invoice_id":        step.InvoiceID,
			})
			summary.Errors++
			continue
		}

		switch outcome {
		case outcomeExecuted:
			summary.Executed++
		case outcomeFailed:
			summary.Failed++
		case outcomeSkipped:
			summary.Skipped++
		}
	}

	if summary.Due > 0 {
		d.Logger.WithFields(logrus.Fields{
			"as_of":    FormatISODate(asOf),
			"due":      summary.Due,
			"executed": summary.Executed,
			"failed":   summary.Failed,
			"skipped":  summary.Skipped,
			"errors":   summary.Errors,
		}).Info("Collection dispatch finished")
	}
	return summary, nil
}

func (d *CollectionDispatcher) executeStep(ctx context.Context, step models.ScheduledStep, asOf time.Time) (stepOutcome, error) {
	db := d.DB.WithContext(ctx)
	log := d.Logger.WithFields(logrus.Fields{
		"scheduled_step_id": step.ID,
		"invoice_id":        step.InvoiceID,
	})

	if step.SequenceStep == nil {
		return d.skip(db, step, "sequence step no longer exists")
	}

	var invoice models.Invoice
	if err := db.Preload("Debtor").First(&invoice, step.InvoiceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return d.skip(db, step, "invoice no longer exists")
		}
		return outcomeRaced, fmt.Errorf("load invoice: %w", err)
	}
	if !invoice.Status.Collectable() {
		return d.skip(db, step, fmt.Sprintf("invoice is %s", invoice.Status))
	}

	var owner models.User
	if err := db.First(&owner, invoice.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return d.skip(db, step, "invoice owner no longer exists")
		}
		return outcomeRaced, fmt.Errorf("load invoice owner: %w", err)
	}

	recipient := recipientFor(step.SequenceStep.Channel, invoice.Debtor)
	if recipient == "" {
		return d.skip(db, step, fmt.Sprintf("debtor has no %s contact", step.SequenceStep.Channel))
	}

	claimed, err := d.claim(db, step.ID)
	if err != nil || !claimed {
		return outcomeRaced, err
	}

	values := PlaceholderValues(ReminderDataFor(invoice, owner, asOf, d.YearlyRate, d.PaymentLinkBaseURL))
	subject := RenderTemplate(step.SequenceStep.Subject, values)
	content := RenderTemplate(step.SequenceStep.Body, values)

	messageID, sendErr := d.send(ctx, step.SequenceStep.Channel, owner, recipient, subject, content)

	action := models.CollectionAction{
		UserID:          invoice.UserID,
		InvoiceID:       invoice.ID,
		ScheduledStepID: &step.ID,
		Channel:         step.SequenceStep.Channel,
		Recipient:       recipient,
		Subject:         subject,
		Content:         content,
		Status:          models.ActionStatusSent,
		Metadata:        datatypes.JSONMap{models.MetaMessageID: messageID},
	}
	if sendErr != nil {
		action.Status = models.ActionStatusFailed
		action.Metadata = datatypes.JSONMap{models.MetaDispatchError: sendErr.Error()}
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&action).Error; err != nil {
			return fmt.Errorf("record collection action: %w", err)
		}
		if sendErr == nil {
			return nil
		}
		return tx.Model(&models.ScheduledStep{}).
			Where("id = ?", step.ID).
			Updates(map[string]interface{}{
				"status":     models.StepStatusFailed,
				"last_error": sendErr.Error(),
			}).Error
	})
	if err != nil {
		return outcomeRaced, err
	}

	if sendErr != nil {
		log.WithError(sendErr).Warn("Collection step send failed")
		return outcomeFailed, nil
	}
	log.WithFields(logrus.Fields{
		"channel":    step.SequenceStep.Channel,
		"message_id": messageID,
	}).Info("Collection step executed")
	return outcomeExecuted, nil
}

// claim flips pending → executed; false means another run got there first
func (d *CollectionDispatcher) claim(db *gorm.DB, stepID uint) (bool, error) {
	res := db.Model(&models.ScheduledStep{}).
		Where("id = ? AND status = ?", stepID, models.StepStatusPending).
		Updates(map[string]interface{}{
			"status":      models.StepStatusExecuted,
			"executed_at": d.now(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("claim scheduled step %d: %w", stepID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (d *CollectionDispatcher) skip(db *gorm.DB, step models.ScheduledStep, reason string) (stepOutcome, error) {
	res := db.Model(&models.ScheduledStep{}).
		Where("id = ? AND status = ?", step.ID, models.StepStatusPending).
		Updates(map[string]interface{}{
			"status":      models.StepStatusSkipped,
			"executed_at": d.now(),
			"last_error":  reason,
		})
	if res.Error != nil {
		return outcomeRaced, fmt.Errorf("skip scheduled step %d: %w", step.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return outcomeRaced, nil
	}
	d.Logger.WithFields(logrus.Fields{
		"scheduled_step_id": step.ID,
		"invoice_id":        step.InvoiceID,
		"reason":            reason,
	}).Info("Collection step skipped")
	return outcomeSkipped, nil
}

func (d *CollectionDispatcher) send(ctx context.Context, channel models.Channel, owner models.User, recipient, subject, content string) (string, error) {
	switch channel {
	case models.ChannelEmail:
		if d.Mailer == nil {
			return "", ErrChannelUnavailable
		}
		return d.Mailer.Send(Email{
			FromName: owner.CompanyName,
			ReplyTo:  owner.ReplyEmail,
			To:       recipient,
			Subject:  subject,
			Body:     content,
		})
	case models.ChannelSMS:
		if d.SMS == nil {
			return "", ErrChannelUnavailable
		}
		sender := owner.SMSSender
		if sender == "" {
			sender = d.DefaultSMSSender
		}
		return d.SMS.SendSMS(ctx, SMS{From: sender, To: recipient, Text: content})
	default:
		return "", fmt.Errorf("unsupported channel %q", channel)
	}
}

func (d *CollectionDispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func recipientFor(channel models.Channel, debtor models.Debtor) string {
	switch channel {
	case models.ChannelEmail:
		return strings.TrimSpace(debtor.Email)
	case models.ChannelSMS:
		return strings.TrimSpace(debtor.Phone)
	default:
		return ""
	}
}
