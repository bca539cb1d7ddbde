package billing

import (
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82/webhook"
)

// DefaultSignatureTolerance is how old a signed timestamp may be.
const DefaultSignatureTolerance = 5 * time.Minute

var (
	ErrMissingSignature = errors.New("missing webhook signature")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrSignatureExpired = errors.New("webhook signature timestamp outside tolerance")
)

// ConstructEvent verifies the Stripe-Signature header and decodes the event.
// Events are accepted whatever API version the account is pinned to.
func ConstructEvent(payload []byte, header, secret string, tolerance time.Duration) (*Event, error) {
	if strings.TrimSpace(header) == "" {
		return nil, ErrMissingSignature
	}
	if strings.TrimSpace(secret) == "" {
		return nil, ErrInvalidSignature
	}
	se, err := webhook.ConstructEventWithOptions(payload, header, secret, webhook.ConstructEventOptions{
		Tolerance:                tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	switch {
	case err == nil:
		return fromStripeEvent(&se)
	case errors.Is(err, webhook.ErrNotSigned):
		return nil, ErrMissingSignature
	case errors.Is(err, webhook.ErrTooOld):
		return nil, ErrSignatureExpired
	case errors.Is(err, webhook.ErrInvalidHeader), errors.Is(err, webhook.ErrNoValidSignature):
		return nil, ErrInvalidSignature
	default:
		return nil, errors.Join(ErrInvalidPayload, err)
	}
}

// SignatureHeader builds a header value for payload signed at ts.
func SignatureHeader(payload []byte, secret string, ts time.Time) string {
	sig := webhook.ComputeSignature(ts, payload, secret)
	return "t=" + strconv.FormatInt(ts.Unix(), 10) + ",v1=" + hex.EncodeToString(sig)
}
