// Package tracker consumes delivery outcomes and maintains each webhook's
// delivery-health state: last-success/last-failure timestamps, the
// consecutive-failure counter, and the automatic disable transition.
package tracker

import (
	"context"
	"errors"
	"log/slog"

	"github.com/lumamail/webhook-service/internal/domain"
	"github.com/lumamail/webhook-service/internal/store"
)

// DefaultDisableThreshold is the number of consecutive failures after which
// an ACTIVE webhook is auto-disabled.
const DefaultDisableThreshold = 5

// casRetries bounds the optimistic-update retry loop before giving up on a
// single outcome. Outcomes are health signals, not ledger entries — dropping
// one after this many lost races is acceptable.
const casRetries = 5

type Tracker struct {
	store     store.Store
	threshold int
	logger    *slog.Logger
}

func New(s store.Store, threshold int, logger *slog.Logger) *Tracker {
	if threshold <= 0 {
		threshold = DefaultDisableThreshold
	}
	return &Tracker{store: s, threshold: threshold, logger: logger}
}

// Threshold returns the configured consecutive-failure disable threshold.
func (t *Tracker) Threshold() int {
	return t.threshold
}

// Record applies a delivery outcome to the webhook's record as a single
// atomic read-modify-write. Concurrent reporters race on the record version;
// losers re-read and re-apply, so no increment is lost and the flip to
// AUTO_DISABLED happens exactly once. An outcome for a webhook that no
// longer exists is dropped silently — the webhook was deleted while the
// attempt was in flight.
func (t *Tracker) Record(ctx context.Context, out domain.DeliveryOutcome) {
	for i := 0; i < casRetries; i++ {
		w, err := t.store.Get(ctx, out.WebhookID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				t.logger.Debug("dropping outcome for absent webhook", "webhook_id", out.WebhookID)
				return
			}
			t.logger.Error("failed to load webhook for outcome", "error", err, "webhook_id", out.WebhookID)
			return
		}

		t.apply(w, out)

		err = t.store.Update(ctx, w)
		if err == nil {
			return
		}
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		if errors.Is(err, domain.ErrNotFound) {
			// Deleted between read and write.
			return
		}
		t.logger.Error("failed to record outcome", "error", err, "webhook_id", out.WebhookID)
		return
	}

	t.logger.Warn("gave up recording outcome after repeated conflicts",
		"webhook_id", out.WebhookID,
		"success", out.Success,
	)
}

func (t *Tracker) apply(w *domain.Webhook, out domain.DeliveryOutcome) {
	if out.Success {
		// A success clears the consecutive-failure counter in every state.
		// It never reactivates an auto-disabled webhook: that transition is
		// reserved for an explicit admin resume.
		w.FailureCount = 0
		if w.LastSuccessAt == nil || out.At.After(*w.LastSuccessAt) {
			at := out.At
			w.LastSuccessAt = &at
		}
	} else {
		w.FailureCount++
		if w.LastFailureAt == nil || out.At.After(*w.LastFailureAt) {
			at := out.At
			w.LastFailureAt = &at
		}
		// Only an ACTIVE webhook can be auto-disabled; failures reported
		// against PAUSED or AUTO_DISABLED records come from test probes and
		// only update the bookkeeping.
		if w.Status == domain.StatusActive && w.FailureCount >= t.threshold {
			w.Status = domain.StatusAutoDisabled
			t.logger.Warn("webhook auto-disabled",
				"webhook_id", w.ID,
				"failure_count", w.FailureCount,
				"threshold", t.threshold,
			)
		}
	}

	if out.At.After(w.UpdatedAt) {
		w.UpdatedAt = out.At
	}
}
