package controller

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"debtflow/middleware"
	"debtflow/models"
	"debtflow/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type SequenceController struct {
	DB                 *gorm.DB
	Logger             *logrus.Entry
	YearlyRate         decimal.Decimal
	PaymentLinkBaseURL string
}

func NewSequenceController(db *gorm.DB, logger *logrus.Entry, yearlyRate decimal.Decimal, paymentLinkBaseURL string) *SequenceController {
	return &SequenceController{
		DB:                 db,
		Logger:             logger,
		YearlyRate:         yearlyRate,
		PaymentLinkBaseURL: paymentLinkBaseURL,
	}
}

type SequenceStepInput struct {
	StepOrder  int    `json:"step_order" validate:"min=0"`
	DaysOffset int    `json:"days_offset" validate:"min=-365,max=365"`
	Channel    string `json:"channel" validate:"required,channel"`
	Subject    string `json:"subject" validate:"max=255"`
	Body       string `json:"body" validate:"required,max=5000"`
}

type CreateSequenceRequest struct {
	Name        string              `json:"name" validate:"required,max=255"`
	Description string              `json:"description" validate:"max=1000"`
	Steps       []SequenceStepInput `json:"steps" validate:"required,min=1,dive"`
}

type PreviewTemplateRequest struct {
	Subject string `json:"subject" validate:"max=255"`
	Body    string `json:"body" validate:"required,max=5000"`
}

// CreateSequence stores a sequence together with its steps
func (sc *SequenceController) CreateSequence(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	var req CreateSequenceRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}
	if err := checkStepTemplates(req.Steps); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	sequence := models.Sequence{
		UserID:      user.ID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
	}
	for _, step := range req.Steps {
		sequence.Steps = append(sequence.Steps, models.SequenceStep{
			StepOrder:  step.StepOrder,
			DaysOffset: step.DaysOffset,
			Channel:    models.Channel(step.Channel),
			Subject:    step.Subject,
			Body:       step.Body,
		})
	}

	if err := sc.DB.WithContext(c.UserContext()).Create(&sequence).Error; err != nil {
		utils.LogError("sequence_create", err, map[string]interface{}{"user_id": user.ID})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create sequence", nil)
	}

	sc.Logger.WithFields(logrus.Fields{
		"user_id":     user.ID,
		"sequence_id": sequence.ID,
		"steps":       len(sequence.Steps),
	}).Info("Sequence created")

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(sequence))
}

// ListSequences returns the user's sequences with their steps
func (sc *SequenceController) ListSequences(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	var sequences []models.Sequence
	err := sc.DB.WithContext(c.UserContext()).
		Where("user_id = ?", user.ID).
		Preload("Steps", orderedSteps).
		Order("created_at DESC").
		Find(&sequences).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch sequences", err)
	}

	return c.JSON(utils.SuccessResponse(sequences))
}

func (sc *SequenceController) GetSequence(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	sequence, err := sc.findSequence(c, user.ID)
	if err != nil {
		return sequenceLookupError(c, err)
	}
	return c.JSON(utils.SuccessResponse(sequence))
}

// DeleteSequence soft-deletes the sequence and its steps. Pending scheduled
// steps built from it are cancelled and invoices are detached; history stays.
func (sc *SequenceController) DeleteSequence(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	sequence, err := sc.findSequence(c, user.ID)
	if err != nil {
		return sequenceLookupError(c, err)
	}

	var cancelled int64
	err = sc.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		stepIDs := tx.Model(&models.SequenceStep{}).Select("id").Where("sequence_id = ?", sequence.ID)

		res := tx.Model(&models.ScheduledStep{}).
			Where("status = ? AND sequence_step_id IN (?)", models.StepStatusPending, stepIDs).
			Update("status", models.StepStatusCancelled)
		if res.Error != nil {
			return res.Error
		}
		cancelled = res.RowsAffected

		if err := tx.Model(&models.Invoice{}).
			Where("sequence_id = ?", sequence.ID).
			Update("sequence_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("sequence_id = ?", sequence.ID).Delete(&models.SequenceStep{}).Error; err != nil {
			return err
		}
		return tx.Delete(sequence).Error
	})
	if err != nil {
		utils.LogError("sequence_delete", err, map[string]interface{}{"sequence_id": sequence.ID})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete sequence", nil)
	}

	sc.Logger.WithFields(logrus.Fields{
		"sequence_id":     sequence.ID,
		"cancelled_steps": cancelled,
	}).Info("Sequence deleted")

	return c.JSON(fiber.Map{
		"success":         true,
		"cancelled_steps": cancelled,
	})
}

// PreviewTemplate renders a subject/body pair against a sample invoice
func (sc *SequenceController) PreviewTemplate(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	var req PreviewTemplateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	values := utils.PlaceholderValues(sampleReminderData(*user, time.Now(), sc.YearlyRate, sc.PaymentLinkBaseURL))
	combined := req.Subject + "\n" + req.Body

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"placeholders": utils.ExtractPlaceholders(combined),
		"unknown":      utils.UnknownPlaceholders(combined),
		"subject":      utils.RenderTemplate(req.Subject, values),
		"body":         utils.RenderTemplate(req.Body, values),
	}))
}

func (sc *SequenceController) findSequence(c *fiber.Ctx, userID uint) (*models.Sequence, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return nil, gorm.ErrRecordNotFound
	}

	var sequence models.Sequence
	err = sc.DB.WithContext(c.UserContext()).
		Where("id = ? AND user_id = ?", id, userID).
		Preload("Steps", orderedSteps).
		First(&sequence).Error
	if err != nil {
		return nil, err
	}
	return &sequence, nil
}

func orderedSteps(db *gorm.DB) *gorm.DB {
	return db.Order("step_order ASC").Order("id ASC")
}

func sequenceLookupError(c *fiber.Ctx, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
	}
	return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch sequence", err)
}

// checkStepTemplates rejects unknown placeholders and email steps without a subject
func checkStepTemplates(steps []SequenceStepInput) error {
	for i, step := range steps {
		if models.Channel(step.Channel) == models.ChannelEmail && strings.TrimSpace(step.Subject) == "" {
			return fmt.Errorf("steps[%d]: subject is required for email steps", i)
		}
		if unknown := utils.UnknownPlaceholders(step.Subject + "\n" + step.Body); len(unknown) > 0 {
			return fmt.Errorf("steps[%d]: unknown placeholders: %s", i, strings.Join(unknown, ", "))
		}
	}
	return nil
}

// sampleReminderData is a fixed 30-days-overdue invoice used for previews
func sampleReminderData(owner models.User, asOf time.Time, yearlyRate decimal.Decimal, paymentLinkBase string) utils.ReminderData {
	invoice := models.Invoice{
		InvoiceNumber: "FV/2024/001",
		Amount:        decimal.NewFromInt(1230),
		Currency:      "PLN",
		Debtor:        models.Debtor{Name: "Przykładowa Firma Sp. z o.o."},
	}
	invoice.DueDate = dateValue(utils.AddDays(asOf, -30))
	return utils.ReminderDataFor(invoice, owner, asOf, yearlyRate, paymentLinkBase)
}
