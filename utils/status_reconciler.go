package utils

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"debtflow/models"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrMissingMessageID = errors.New("missing message id")

// ProviderStatus is the raw delivery status string sent by SMSAPI
type ProviderStatus string

const (
	ProviderStatusDelivered ProviderStatus = "DELIVERED"
	ProviderStatusFailed    ProviderStatus = "FAILED"
)

// MapProviderStatus is case-sensitive. Anything other than DELIVERED or
// FAILED (QUEUE, SENT, ACCEPTED, unknown values) maps to sent: an
// unrecognized status is never treated as a terminal failure.
func MapProviderStatus(status ProviderStatus) models.ActionStatus {
	switch status {
	case ProviderStatusDelivered:
		return models.ActionStatusDelivered
	case ProviderStatusFailed:
		return models.ActionStatusFailed
	default:
		return models.ActionStatusSent
	}
}

// DeliveryCallback is one inbound provider status report
type DeliveryCallback struct {
	MessageID string
	Status    ProviderStatus
	Error     string
	// Provider-side time of the status change, when the provider sends one
	DoneAt *time.Time
}

// ReconcileResult describes what a callback did
type ReconcileResult struct {
	Found   bool
	Applied bool
	Status  models.ActionStatus
}

// StatusReconciler applies delivery callbacks to collection actions
type StatusReconciler struct {
	DB     *gorm.DB
	Logger *logrus.Entry
}

func NewStatusReconciler(db *gorm.DB, logger *logrus.Entry) *StatusReconciler {
	return &StatusReconciler{
		DB:     db,
		Logger: logger,
	}
}

// Reconcile updates the action whose metadata.message_id matches the callback.
// An unknown message id is not an error. Metadata is replaced as a whole.
func (sr *StatusReconciler) Reconcile(ctx context.Context, cb DeliveryCallback) (ReconcileResult, error) {
	var result ReconcileResult
	if strings.TrimSpace(cb.MessageID) == "" {
		return result, ErrMissingMessageID
	}

	log := sr.Logger.WithFields(logrus.Fields{
		"message_id":      cb.MessageID,
		"provider_status": cb.Status,
	})

	err := sr.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var action models.CollectionAction
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(datatypes.JSONQuery("metadata").Equals(cb.MessageID, models.MetaMessageID)).
			First(&action).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("lookup collection action: %w", err)
		}

		result.Found = true
		next := MapProviderStatus(cb.Status)
		if reason := staleReason(action, next, cb.DoneAt); reason != "" {
			log.WithFields(logrus.Fields{
				"action_id":      action.ID,
				"current_status": action.Status,
				"reason":         reason,
			}).Info("Ignoring stale delivery callback")
			result.Status = action.Status
			return nil
		}

		var providerError interface{}
		if cb.Error != "" {
			providerError = cb.Error
		}
		updates := map[string]interface{}{
			"status": next,
			"metadata": datatypes.JSONMap{
				models.MetaMessageID:    cb.MessageID,
				models.MetaSMSAPIStatus: string(cb.Status),
				models.MetaSMSAPIError:  providerError,
			},
		}
		if cb.DoneAt != nil {
			updates["provider_status_at"] = cb.DoneAt.UTC()
		}
		if err := tx.Model(&action).Updates(updates).Error; err != nil {
			return fmt.Errorf("update collection action %d: %w", action.ID, err)
		}

		result.Applied = true
		result.Status = next
		return nil
	})
	if err != nil {
		return ReconcileResult{}, err
	}

	if !result.Found {
		log.Warn("No collection action for delivery callback")
	} else if result.Applied {
		log.WithField("status", result.Status).Info("Collection action status updated")
	}
	return result, nil
}

// staleReason explains why a callback must not be applied, or returns "".
// A callback older than the last applied one loses; without ordering tokens
// a terminal status is never pulled back to sent and the rest is last-write-wins.
func staleReason(action models.CollectionAction, next models.ActionStatus, doneAt *time.Time) string {
	if doneAt != nil && action.ProviderStatusAt != nil && doneAt.Before(*action.ProviderStatusAt) {
		return "older than last applied callback"
	}
	if action.Status.Terminal() && !next.Terminal() {
		return "would regress terminal status"
	}
	return ""
}
