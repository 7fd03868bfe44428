package controller

import (
	"errors"
	"strconv"
	"time"

	"debtflow/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type WebhookController struct {
	Reconciler *utils.StatusReconciler
	Logger     *logrus.Entry
}

func NewWebhookController(reconciler *utils.StatusReconciler, logger *logrus.Entry) *WebhookController {
	return &WebhookController{
		Reconciler: reconciler,
		Logger:     logger,
	}
}

// HandleSMSAPICallback applies an SMSAPI delivery report. SMSAPI retries until
// it gets a 2xx, so unknown message ids are acknowledged too.
func (wc *WebhookController) HandleSMSAPICallback(c *fiber.Ctx) error {
	cb := utils.DeliveryCallback{
		MessageID: callbackParam(c, "msgId", "MsgId"),
		Status:    utils.ProviderStatus(callbackParam(c, "status")),
		Error:     callbackParam(c, "error"),
		DoneAt:    parseDoneDate(callbackParam(c, "donedate")),
	}

	result, err := wc.Reconciler.Reconcile(c.UserContext(), cb)
	if err != nil {
		if errors.Is(err, utils.ErrMissingMessageID) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Missing msgId", nil)
		}
		utils.LogError("smsapi_webhook", err, map[string]interface{}{
			"message_id": cb.MessageID,
			"status":     cb.Status,
		})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to process callback", nil)
	}

	if !result.Found {
		wc.Logger.WithField("message_id", cb.MessageID).Warn("No collection action for SMSAPI callback")
	}

	return c.SendString("OK")
}

// callbackParam reads the first non-empty value from the query string, then
// from a form body
func callbackParam(c *fiber.Ctx, names ...string) string {
	for _, name := range names {
		if v := c.Query(name); v != "" {
			return v
		}
	}
	if c.Method() != fiber.MethodPost {
		return ""
	}
	for _, name := range names {
		if v := c.FormValue(name); v != "" {
			return v
		}
	}
	return ""
}

// parseDoneDate reads SMSAPI's donedate, unix seconds
func parseDoneDate(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || secs <= 0 {
		return nil
	}
	return utils.Pointer(time.Unix(secs, 0).UTC())
}
