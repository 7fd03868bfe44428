package worker

import (
	"context"
	"time"

	"debtflow/utils"

	"github.com/sirupsen/logrus"
)

// CollectionWorker runs the dispatcher in-process on a fixed interval, for
// deployments without an external cron hitting /cron/collection
type CollectionWorker struct {
	Dispatcher *utils.CollectionDispatcher
	Lock       utils.RunLock
	Interval   time.Duration
	Logger     *logrus.Entry
}

func NewCollectionWorker(dispatcher *utils.CollectionDispatcher, lock utils.RunLock, interval time.Duration, logger *logrus.Entry) *CollectionWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &CollectionWorker{
		Dispatcher: dispatcher,
		Lock:       lock,
		Interval:   interval,
		Logger:     logger,
	}
}

func (cw *CollectionWorker) Start(ctx context.Context) {
	// Initial delay to let the server start up
	select {
	case <-ctx.Done():
		return
	case <-time.After(10 * time.Second):
	}

	cw.Logger.WithField("interval", cw.Interval.String()).Info("Collection worker started")

	ticker := time.NewTicker(cw.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			cw.Logger.Info("Collection worker shutting down...")
			return
		case <-ticker.C:
			cw.RunOnce(ctx)
		}
	}
}

// RunOnce dispatches everything due now unless another instance holds the lock
func (cw *CollectionWorker) RunOnce(ctx context.Context) {
	release, ok, err := cw.Lock.Acquire(ctx, utils.DispatchLockKey, cw.Interval*5)
	if err != nil {
		cw.Logger.WithError(err).Error("Error acquiring dispatch lock")
		return
	}
	if !ok {
		cw.Logger.Debug("Dispatch lock held elsewhere, skipping tick")
		return
	}
	defer release()

	if _, err := cw.Dispatcher.DispatchDue(ctx, time.Now()); err != nil {
		cw.Logger.WithError(err).Error("Error dispatching due collection steps")
	}
}
