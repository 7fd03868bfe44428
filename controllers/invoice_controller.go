package controller

import (
	"errors"
	"fmt"
	"time"

	"debtflow/middleware"
	"debtflow/models"
	"debtflow/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type InvoiceController struct {
	DB         *gorm.DB
	Logger     *logrus.Entry
	Generator  *utils.ScheduleGenerator
	YearlyRate decimal.Decimal
}

func NewInvoiceController(db *gorm.DB, logger *logrus.Entry, generator *utils.ScheduleGenerator, yearlyRate decimal.Decimal) *InvoiceController {
	return &InvoiceController{
		DB:         db,
		Logger:     logger,
		Generator:  generator,
		YearlyRate: yearlyRate,
	}
}

type AssignSequenceRequest struct {
	SequenceID *uint `json:"sequence_id"`
}

type UpdateDueDateRequest struct {
	DueDate string `json:"due_date" validate:"required,isodate"`
}

// AssignSequence attaches a sequence to the invoice and rebuilds its pending
// schedule. A null sequence_id detaches it.
func (ic *InvoiceController) AssignSequence(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	invoice, err := ic.findInvoice(c, user.ID)
	if err != nil {
		return invoiceLookupError(c, err)
	}

	var req AssignSequenceRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if req.SequenceID != nil {
		if !invoice.Status.Collectable() {
			return utils.ErrorResponse(c, fiber.StatusConflict, "Invoice is "+string(invoice.Status), nil)
		}
		var count int64
		if err := ic.DB.WithContext(c.UserContext()).Model(&models.Sequence{}).
			Where("id = ? AND user_id = ?", *req.SequenceID, user.ID).
			Count(&count).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch sequence", err)
		}
		if count == 0 {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
		}
	}

	created, err := ic.Generator.UpdateInvoiceSequence(c.UserContext(), invoice.ID, req.SequenceID, time.Time(invoice.DueDate))
	if err != nil {
		return scheduleError(c, invoice.ID, err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"invoice_id":      invoice.ID,
		"sequence_id":     req.SequenceID,
		"scheduled_steps": created,
	}))
}

// UpdateDueDate moves the due date and regenerates the pending schedule from it.
// Paid and cancelled invoices keep their sequence but get no new steps.
func (ic *InvoiceController) UpdateDueDate(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	invoice, err := ic.findInvoice(c, user.ID)
	if err != nil {
		return invoiceLookupError(c, err)
	}

	var req UpdateDueDateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}
	dueDate, _ := utils.ParseDate(req.DueDate)

	created, err := ic.Generator.RescheduleDueDate(c.UserContext(), invoice.ID, dueDate)
	if err != nil {
		return scheduleError(c, invoice.ID, err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"invoice_id":      invoice.ID,
		"sequence_id":     invoice.SequenceID,
		"due_date":        utils.FormatISODate(dueDate),
		"scheduled_steps": created,
	}))
}

// MarkPaid closes the invoice and cancels every reminder still pending
func (ic *InvoiceController) MarkPaid(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	invoice, err := ic.findInvoice(c, user.ID)
	if err != nil {
		return invoiceLookupError(c, err)
	}

	ctx := c.UserContext()
	var cancelled int64
	err = ic.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(invoice).Update("status", models.InvoiceStatusPaid).Error; err != nil {
			return fmt.Errorf("update invoice status: %w", err)
		}
		var err error
		cancelled, err = utils.NewScheduleGenerator(tx, ic.Logger).CancelScheduledSteps(ctx, invoice.ID)
		return err
	})
	if err != nil {
		utils.LogError("mark_invoice_paid", err, map[string]interface{}{"invoice_id": invoice.ID})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to mark invoice paid", nil)
	}

	ic.Logger.WithFields(logrus.Fields{
		"invoice_id":      invoice.ID,
		"cancelled_steps": cancelled,
	}).Info("Invoice marked paid")

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"invoice_id":      invoice.ID,
		"status":          models.InvoiceStatusPaid,
		"cancelled_steps": cancelled,
	}))
}

// GetSchedule lists every scheduled step of the invoice, history included
func (ic *InvoiceController) GetSchedule(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	invoice, err := ic.findInvoice(c, user.ID)
	if err != nil {
		return invoiceLookupError(c, err)
	}

	var steps []models.ScheduledStep
	err = ic.DB.WithContext(c.UserContext()).
		Where("invoice_id = ?", invoice.ID).
		Preload("SequenceStep", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Order("scheduled_for ASC").
		Order("id ASC").
		Find(&steps).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch schedule", err)
	}

	return c.JSON(utils.SuccessResponse(steps))
}

// GetActions lists the invoice's collection actions, newest first
func (ic *InvoiceController) GetActions(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	invoice, err := ic.findInvoice(c, user.ID)
	if err != nil {
		return invoiceLookupError(c, err)
	}

	var actions []models.CollectionAction
	if err := ic.DB.WithContext(c.UserContext()).
		Where("invoice_id = ?", invoice.ID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&actions).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch actions", err)
	}

	return c.JSON(utils.SuccessResponse(actions))
}

// GetInterest reports interest owed as of ?as_of=YYYY-MM-DD, defaulting to today
func (ic *InvoiceController) GetInterest(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	invoice, err := ic.findInvoice(c, user.ID)
	if err != nil {
		return invoiceLookupError(c, err)
	}

	asOf := time.Now()
	if raw := c.Query("as_of"); raw != "" {
		asOf, err = utils.ParseDate(raw)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "as_of must be a date in YYYY-MM-DD format", nil)
		}
	}

	result := utils.CalculateInterest(invoice.Amount, time.Time(invoice.DueDate), asOf, ic.YearlyRate)

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"invoice_id":          invoice.ID,
		"as_of":               utils.FormatISODate(asOf),
		"yearly_rate":         ic.YearlyRate,
		"interest":            result,
		"interest_formatted":  utils.FormatCurrency(result.Interest, invoice.Currency),
		"total_formatted":     utils.FormatCurrency(result.Total, invoice.Currency),
		"principal_formatted": utils.FormatCurrency(result.Principal, invoice.Currency),
	}))
}

func (ic *InvoiceController) findInvoice(c *fiber.Ctx, userID uint) (*models.Invoice, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return nil, gorm.ErrRecordNotFound
	}

	var invoice models.Invoice
	if err := ic.DB.WithContext(c.UserContext()).
		Where("id = ? AND user_id = ?", id, userID).
		First(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func invoiceLookupError(c *fiber.Ctx, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Invoice not found", nil)
	}
	return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch invoice", err)
}

func scheduleError(c *fiber.Ctx, invoiceID uint, err error) error {
	switch {
	case errors.Is(err, utils.ErrInvoiceNotFound):
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Invoice not found", nil)
	case errors.Is(err, utils.ErrSequenceNotFound):
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
	case errors.Is(err, utils.ErrNoSteps):
		return utils.ErrorResponse(c, fiber.StatusUnprocessableEntity, "Sequence has no steps", nil)
	}
	utils.LogError("update_invoice_sequence", err, map[string]interface{}{"invoice_id": invoiceID})
	return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update schedule", nil)
}

func dateValue(t time.Time) datatypes.Date {
	return datatypes.Date(utils.DateOnly(t))
}
