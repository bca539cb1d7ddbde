package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ManuelReschke/ScriptHub/internal/pkg/env"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// Gateway is the slice of the payment provider the billing service needs.
type Gateway interface {
	CreateCustomer(ctx context.Context, params CustomerParams) (string, error)
	CreateCheckoutSession(ctx context.Context, params SessionParams) (*CheckoutSession, error)
	RetrieveCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error)
}

type CustomerParams struct {
	Email    string
	Name     string
	Metadata map[string]string
}

type SessionParams struct {
	CustomerID  string
	Currency    string
	UnitAmount  int64
	ProductName string
	Description string
	SuccessURL  string
	CancelURL   string
	Metadata    map[string]string
}

// StripeClient adapts stripe-go to Gateway. An empty apiURL targets api.stripe.com.
type StripeClient struct {
	secretKey string
	api       *client.API
}

func NewStripeClient(secretKey, apiURL string, httpClient *http.Client) *StripeClient {
	secretKey = strings.TrimSpace(secretKey)
	cfg := &stripe.BackendConfig{
		HTTPClient:    httpClient,
		LeveledLogger: &stripe.LeveledLogger{Level: stripe.LevelError},
	}
	if apiURL = strings.TrimRight(strings.TrimSpace(apiURL), "/"); apiURL != "" {
		cfg.URL = stripe.String(apiURL)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, cfg)

	api := &client.API{}
	api.Init(secretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
	return &StripeClient{secretKey: secretKey, api: api}
}

func NewStripeClientFromEnv() *StripeClient {
	return NewStripeClient(
		env.GetEnv("STRIPE_SECRET_KEY", ""),
		env.GetEnv("STRIPE_API_BASE_URL", ""),
		&http.Client{Timeout: 15 * time.Second},
	)
}

func (c *StripeClient) configured() error {
	if c.secretKey == "" {
		return errors.New("STRIPE_SECRET_KEY is not configured")
	}
	return nil
}

func (c *StripeClient) CreateCustomer(ctx context.Context, params CustomerParams) (string, error) {
	if err := c.configured(); err != nil {
		return "", err
	}
	p := &stripe.CustomerParams{Email: stripe.String(params.Email)}
	p.Context = ctx
	if params.Name != "" {
		p.Name = stripe.String(params.Name)
	}
	for k, v := range params.Metadata {
		p.AddMetadata(k, v)
	}

	cus, err := c.api.Customers.New(p)
	if err != nil {
		return "", stripeFailure("create customer", err)
	}
	if strings.TrimSpace(cus.ID) == "" {
		return "", errors.New("stripe customer response missing id")
	}
	return cus.ID, nil
}

func (c *StripeClient) CreateCheckoutSession(ctx context.Context, params SessionParams) (*CheckoutSession, error) {
	if err := c.configured(); err != nil {
		return nil, err
	}
	product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
		Name: stripe.String(params.ProductName),
	}
	if params.Description != "" {
		product.Description = stripe.String(params.Description)
	}
	p := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(params.Currency),
				UnitAmount:  stripe.Int64(params.UnitAmount),
				ProductData: product,
			},
		}},
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.CancelURL),
	}
	p.Context = ctx
	if params.CustomerID != "" {
		p.Customer = stripe.String(params.CustomerID)
	}
	for k, v := range params.Metadata {
		p.AddMetadata(k, v)
	}

	sess, err := c.api.CheckoutSessions.New(p)
	if err != nil {
		return nil, stripeFailure("create checkout session", err)
	}
	return fromStripeSession(sess)
}

func (c *StripeClient) RetrieveCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	if err := c.configured(); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("session id is required")
	}
	p := &stripe.CheckoutSessionParams{}
	p.Context = ctx

	sess, err := c.api.CheckoutSessions.Get(id, p)
	if err != nil {
		return nil, stripeFailure("retrieve checkout session "+id, err)
	}
	return fromStripeSession(sess)
}

func stripeFailure(op string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		return fmt.Errorf("stripe %s failed: status=%d type=%s message=%s", op, se.HTTPStatusCode, se.Type, se.Msg)
	}
	return fmt.Errorf("stripe %s failed: %w", op, err)
}

// fromStripeSession keeps the fields the engine reads. The email lives in
// customer_email or customer_details depending on how the session was opened.
func fromStripeSession(s *stripe.CheckoutSession) (*CheckoutSession, error) {
	if s == nil || strings.TrimSpace(s.ID) == "" {
		return nil, errors.New("stripe checkout session missing id")
	}
	out := &CheckoutSession{
		ID:            s.ID,
		URL:           s.URL,
		Status:        string(s.Status),
		PaymentStatus: string(s.PaymentStatus),
		CustomerEmail: s.CustomerEmail,
		Metadata:      s.Metadata,
	}
	if out.CustomerEmail == "" && s.CustomerDetails != nil {
		out.CustomerEmail = s.CustomerDetails.Email
	}
	if s.PaymentIntent != nil {
		out.PaymentIntent = s.PaymentIntent.ID
	}
	if out.Metadata == nil {
		out.Metadata = map[string]string{}
	}
	return out, nil
}

// Event is a decoded webhook delivery whose object is a checkout session.
type Event struct {
	ID      string
	Type    string
	Session *CheckoutSession
}

func fromStripeEvent(se *stripe.Event) (*Event, error) {
	if strings.TrimSpace(se.ID) == "" || strings.TrimSpace(string(se.Type)) == "" {
		return nil, fmt.Errorf("%w: missing id or type", ErrInvalidPayload)
	}
	ev := &Event{ID: se.ID, Type: string(se.Type)}
	if !strings.HasPrefix(ev.Type, "checkout.session.") {
		return ev, nil
	}
	if se.Data == nil || len(se.Data.Raw) == 0 {
		return nil, fmt.Errorf("%w: event %s has no object", ErrInvalidPayload, se.ID)
	}
	var obj stripe.CheckoutSession
	if err := json.Unmarshal(se.Data.Raw, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	sess, err := fromStripeSession(&obj)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	ev.Session = sess
	return ev, nil
}

// ParseEvent decodes a webhook payload without checking its signature.
// Non-session events come back with a nil Session.
func ParseEvent(payload []byte) (*Event, error) {
	var se stripe.Event
	if err := json.Unmarshal(payload, &se); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return fromStripeEvent(&se)
}
