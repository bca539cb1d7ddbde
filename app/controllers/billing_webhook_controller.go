package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/ScriptHub/internal/pkg/billing"
)

const stripeSignatureHeader = "Stripe-Signature"

// HandleStripeWebhook needs the raw body for the signature check, so no
// body-parsing middleware may run before it.
func (pc *PaymentController) HandleStripeWebhook(c *fiber.Ctx) error {
	payload := append([]byte(nil), c.Body()...)

	res, err := pc.billing.ProcessWebhook(c.UserContext(), payload, c.Get(stripeSignatureHeader))
	switch {
	case isSignatureError(err):
		log.Warnf("[Webhook] Rejected delivery: %v", err)
		return jsonError(c, fiber.StatusBadRequest, "invalid_signature", "Webhook signature verification failed")
	case errors.Is(err, billing.ErrInvalidPayload):
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "Webhook payload could not be parsed")
	case err != nil:
		log.Errorf("[Webhook] Processing failed: %v", err)
		return internalError(c, "Webhook processing failed")
	}

	if res.Duplicate {
		return c.JSON(fiber.Map{"received": true, "duplicate": true})
	}
	return c.JSON(fiber.Map{"received": true})
}

func isSignatureError(err error) bool {
	return errors.Is(err, billing.ErrMissingSignature) ||
		errors.Is(err, billing.ErrInvalidSignature) ||
		errors.Is(err, billing.ErrSignatureExpired)
}
