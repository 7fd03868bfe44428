package controller

import (
	"time"

	"debtflow/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type CronController struct {
	Dispatcher *utils.CollectionDispatcher
	Lock       utils.RunLock
	LockTTL    time.Duration
	Logger     *logrus.Entry
}

func NewCronController(dispatcher *utils.CollectionDispatcher, lock utils.RunLock, logger *logrus.Entry) *CronController {
	return &CronController{
		Dispatcher: dispatcher,
		Lock:       lock,
		LockTTL:    5 * time.Minute,
		Logger:     logger,
	}
}

// RunDispatch executes every step due today. A run already in progress
// elsewhere makes this a no-op reported as skipped.
func (cc *CronController) RunDispatch(c *fiber.Ctx) error {
	release, ok, err := cc.Lock.Acquire(c.UserContext(), utils.DispatchLockKey, cc.LockTTL)
	if err != nil {
		utils.LogError("dispatch_lock", err, nil)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to acquire dispatch lock", nil)
	}
	if !ok {
		cc.Logger.Info("Dispatch already running, skipping trigger")
		return c.JSON(fiber.Map{
			"success": true,
			"skipped": true,
		})
	}
	defer release()

	asOf := time.Now()
	if raw := c.Query("as_of"); raw != "" {
		if asOf, err = utils.ParseDate(raw); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "as_of must be a date in YYYY-MM-DD format", nil)
		}
	}

	summary, err := cc.Dispatcher.DispatchDue(c.UserContext(), asOf)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Dispatch failed", err)
	}

	return c.JSON(utils.SuccessResponse(summary))
}
