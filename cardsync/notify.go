package cardsync

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/fxcard_backend/config"
)

// StatusChange is the payload pushed to the card management system when an
// application reaches a terminal review state.
type StatusChange struct {
	ApplicationNumber string `json:"application_number"`
	KitNo             string `json:"kit_no"`
	LrsValue          string `json:"lrs_value"`
	ItrFlag           string `json:"itr_flag"`
	OldStatus         string `json:"old_status"`
	NewStatus         string `json:"new_status"`
}

// NotifyStatusChange pushes the change downstream. Delivery is best effort:
// the review decision has already committed, so failures are logged and not
// retried here. Callers usually run this in a goroutine.
func NotifyStatusChange(change StatusChange) {
	logger := config.GetLogger()

	client, err := newCardClient()
	if err != nil {
		logger.WithField("application_number", change.ApplicationNumber).
			Warnf("cardsync disabled: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := client.postJSON(ctx, "/v1/card-applications/status", change); err != nil {
		config.LogError(logger, "cardsync", "NotifyStatusChange", "post", change, err)
		return
	}
	logger.WithField("application_number", change.ApplicationNumber).
		WithField("new_status", change.NewStatus).
		Info("cardsync status change delivered")
}
