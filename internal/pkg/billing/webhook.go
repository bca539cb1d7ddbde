package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/ManuelReschke/ScriptHub/app/models"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/metrics"
	"github.com/gofiber/fiber/v2/log"
)

const (
	EventCheckoutCompleted             = "checkout.session.completed"
	EventCheckoutAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	EventCheckoutExpired               = "checkout.session.expired"
)

// ProcessWebhook verifies, records and dispatches one gateway delivery.
// Signature and payload errors happen before anything is stored. An event
// already processed without error is reported as a duplicate; one whose
// earlier processing failed is run again.
func (s *Service) ProcessWebhook(ctx context.Context, payload []byte, signatureHeader string) (*WebhookResult, error) {
	ev, err := ConstructEvent(payload, signatureHeader, s.cfg.WebhookSecret, s.cfg.SignatureTolerance)
	if errors.Is(err, ErrInvalidPayload) {
		metrics.WebhookEvents.WithLabelValues("invalid_payload").Inc()
		return nil, err
	}
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("invalid_signature").Inc()
		return nil, err
	}
	result := &WebhookResult{EventID: ev.ID, EventType: ev.Type}

	in := WebhookEventInput{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: ev.ID,
		EventType:       ev.Type,
		PayloadJSON:     string(payload),
	}
	if ev.Session != nil {
		in.SessionID = ev.Session.ID
	}
	created, stored, err := s.RecordWebhookEvent(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("record webhook event %s: %w", ev.ID, err)
	}
	if !created && stored.Succeeded() {
		metrics.WebhookEvents.WithLabelValues("duplicate").Inc()
		log.Infof("[Billing] Duplicate webhook event %s (%s) ignored", ev.ID, ev.Type)
		result.Duplicate = true
		return result, nil
	}

	var procErr error
	switch ev.Type {
	case EventCheckoutCompleted, EventCheckoutAsyncPaymentSucceeded, EventCheckoutExpired:
		if ev.Session == nil {
			procErr = fmt.Errorf("%w: event %s has no session", ErrInvalidPayload, ev.ID)
			break
		}
		_, procErr = s.ConfirmSession(ctx, ev.Session)
		result.Handled = procErr == nil
	default:
		log.Debugf("[Billing] Ignoring webhook event type %s", ev.Type)
	}

	if err := s.MarkWebhookProcessed(ctx, stored.ID, procErr); err != nil {
		log.Errorf("[Billing] Could not mark webhook event %s processed: %v", ev.ID, err)
	}
	if errors.Is(procErr, ErrOrderNotFound) {
		metrics.WebhookEvents.WithLabelValues("unknown_session").Inc()
		log.Warnf("[Billing] Webhook event %s (%s) names session %s with no local order", ev.ID, ev.Type, in.SessionID)
		return result, nil
	}
	if procErr != nil {
		metrics.WebhookEvents.WithLabelValues("failed").Inc()
		log.Errorf("[Billing] Webhook event %s (%s) failed: %v", ev.ID, ev.Type, procErr)
		return result, procErr
	}
	metrics.WebhookEvents.WithLabelValues("processed").Inc()
	return result, nil
}
