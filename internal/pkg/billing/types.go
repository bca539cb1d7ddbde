package billing

import (
	"errors"
	"strings"
	"time"

	"github.com/ManuelReschke/ScriptHub/app/models"
)

const (
	PurchaseTypeSubscription = "subscription"
	PurchaseTypeScript       = "script"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrScriptNotFound   = errors.New("script not found")
	ErrOrderNotFound    = errors.New("order not found")
	ErrInvalidPlan      = errors.New("invalid plan type")
	ErrInvalidPurchase  = errors.New("purchase must name a plan or a script")
	ErrMetadataMismatch = errors.New("checkout metadata does not match order")
	ErrGateway          = errors.New("payment gateway error")
	ErrInvalidPayload   = errors.New("invalid webhook payload")
)

// CheckoutSession is the subset of a gateway checkout session the engine reads.
type CheckoutSession struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	Status        string            `json:"status"`
	PaymentStatus string            `json:"payment_status"`
	PaymentIntent string            `json:"payment_intent"`
	CustomerEmail string            `json:"customer_email"`
	Metadata      map[string]string `json:"metadata"`
}

func (s *CheckoutSession) IsPaid() bool {
	return strings.EqualFold(s.PaymentStatus, "paid")
}

func (s *CheckoutSession) IsExpired() bool {
	return strings.EqualFold(s.Status, "expired")
}

// Purchase is a checkout request for either a plan or a single script.
type Purchase struct {
	PlanType string
	ScriptID uint
}

func (p Purchase) Type() string {
	if p.ScriptID != 0 {
		return PurchaseTypeScript
	}
	return PurchaseTypeSubscription
}

// CheckoutResult is returned to the client so it can redirect to the gateway.
type CheckoutResult struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// Confirmation describes the state of an order after reconciliation.
type Confirmation struct {
	Order        *models.Order
	License      *models.License
	Subscription *models.Subscription
	// Issued is true only for the call that moved the order to COMPLETED.
	Issued bool
	Paid   bool
	// PlainKey is set once, on the call that minted the license.
	PlainKey string
}

// SessionView is the read-only projection shown on the payment success page.
type SessionView struct {
	Order         *models.Order        `json:"order"`
	PurchaseType  string               `json:"purchaseType"`
	PlanType      string               `json:"planType,omitempty"`
	ScriptTitle   string               `json:"scriptTitle,omitempty"`
	CustomerEmail string               `json:"customerEmail"`
	License       *models.License      `json:"license,omitempty"`
	LicenseKey    string               `json:"licenseKey,omitempty"`
	Subscription  *models.Subscription `json:"subscription,omitempty"`
}

// PurchaseItem is one owned license as listed on the purchases page.
type PurchaseItem struct {
	LicenseID    uint           `json:"id"`
	ScriptID     uint           `json:"scriptId"`
	Title        string         `json:"title"`
	DisplayTitle string         `json:"displayTitle"`
	Ordinal      int            `json:"ordinal"`
	KeyPrefix    string         `json:"keyPrefix"`
	MaskedKey    string         `json:"maskedKey"`
	DeviceID     *string        `json:"deviceId"`
	Status       string         `json:"status"`
	PurchasedAt  time.Time      `json:"purchasedAt"`
	Script       *models.Script `json:"script,omitempty"`
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	SessionID       string
	PayloadJSON     string
}

// WebhookResult tells the webhook handler what to answer.
type WebhookResult struct {
	EventID   string
	EventType string
	Duplicate bool
	Handled   bool
}
