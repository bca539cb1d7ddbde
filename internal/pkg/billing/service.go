package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ManuelReschke/ScriptHub/app/models"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/env"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/metrics"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Config struct {
	Currency           string
	FrontendURL        string
	WebhookSecret      string
	SignatureTolerance time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		Currency:           strings.ToLower(env.GetEnv("CHECKOUT_CURRENCY", "usd")),
		FrontendURL:        strings.TrimRight(env.GetEnv("FRONTEND_URL", "http://localhost:5173"), "/"),
		WebhookSecret:      env.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
		SignatureTolerance: DefaultSignatureTolerance,
	}
}

// Service turns checkout sessions into orders and entitlements.
type Service struct {
	repo    Repository
	gateway Gateway
	reveal  KeyReveal
	cfg     Config
	now     func() time.Time
}

// NewService creates a billing service from injected collaborators. A nil
// reveal disables the one-time key hand-off.
func NewService(repo Repository, gateway Gateway, reveal KeyReveal, cfg Config) *Service {
	if reveal == nil {
		reveal = noopKeyReveal{}
	}
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	if cfg.SignatureTolerance == 0 {
		cfg.SignatureTolerance = DefaultSignatureTolerance
	}
	return &Service{repo: repo, gateway: gateway, reveal: reveal, cfg: cfg, now: time.Now}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, gateway Gateway, reveal KeyReveal, cfg Config) *Service {
	return NewService(NewRepository(db), gateway, reveal, cfg)
}

// BeginCheckout opens a gateway session for the purchase and records a PENDING order.
func (s *Service) BeginCheckout(ctx context.Context, userID uint, p Purchase) (*CheckoutResult, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}

	var item lineItem
	switch {
	case p.ScriptID != 0:
		script, err := s.repo.GetScript(ctx, p.ScriptID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScriptNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("load script %d: %w", p.ScriptID, err)
		}
		item = scriptLineItem(script)
	case strings.TrimSpace(p.PlanType) != "":
		item, err = planLineItem(p.PlanType)
		if err != nil {
			return nil, err
		}
	default:
		return nil, ErrInvalidPurchase
	}

	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return nil, err
	}

	successURL := s.cfg.FrontendURL + "/payment/success?session_id={CHECKOUT_SESSION_ID}"
	cancelURL := s.cfg.FrontendURL + "/payment/cancel"
	if item.ScriptID != nil {
		successURL += "&type=script"
		cancelURL = s.cfg.FrontendURL + "/scripts"
	}

	sess, err := s.gateway.CreateCheckoutSession(ctx, SessionParams{
		CustomerID:  customerID,
		Currency:    s.cfg.Currency,
		UnitAmount:  toMinorUnits(item.Amount),
		ProductName: item.Name,
		Description: item.Description,
		SuccessURL:  successURL,
		CancelURL:   cancelURL,
		Metadata:    checkoutMetadata(user.ID, item),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create checkout session: %v", ErrGateway, err)
	}

	order := &models.Order{
		UserID:          user.ID,
		ScriptID:        item.ScriptID,
		Amount:          item.Amount,
		Currency:        s.cfg.Currency,
		Status:          models.ORDER_STATUS_PENDING,
		StripeSessionID: sess.ID,
		PlanType:        item.PlanType,
	}
	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("create order for session %s: %w", sess.ID, err)
	}

	purchaseType := p.Type()
	metrics.CheckoutSessionsCreated.WithLabelValues(purchaseType).Inc()
	log.Infof("[Billing] Checkout session %s opened for user %d (%s, %.2f %s)", sess.ID, user.ID, purchaseType, item.Amount, s.cfg.Currency)

	return &CheckoutResult{SessionID: sess.ID, URL: sess.URL}, nil
}

func (s *Service) ensureCustomer(ctx context.Context, user *models.User) (string, error) {
	if user.StripeCustomerID != "" {
		return user.StripeCustomerID, nil
	}

	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name == "" && user.Username != nil {
		name = *user.Username
	}
	customerID, err := s.gateway.CreateCustomer(ctx, CustomerParams{
		Email:    user.Email,
		Name:     name,
		Metadata: map[string]string{"userId": fmt.Sprintf("%d", user.ID)},
	})
	if err != nil {
		return "", fmt.Errorf("%w: create customer: %v", ErrGateway, err)
	}
	if err := s.repo.SetStripeCustomerID(ctx, user.ID, customerID); err != nil {
		return "", fmt.Errorf("store customer id: %w", err)
	}
	user.StripeCustomerID = customerID
	return customerID, nil
}

// ConfirmCheckout reconciles an order by polling the gateway. Completed
// orders return immediately without contacting the gateway.
func (s *Service) ConfirmCheckout(ctx context.Context, sessionID string) (*Confirmation, error) {
	order, err := s.orderBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if order.IsCompleted() {
		return s.currentState(ctx, order)
	}

	sess, err := s.gateway.RetrieveCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: retrieve session: %v", ErrGateway, err)
	}
	return s.confirm(ctx, order, sess)
}

// ConfirmSession reconciles an order from a verified session snapshot.
func (s *Service) ConfirmSession(ctx context.Context, sess *CheckoutSession) (*Confirmation, error) {
	if sess == nil || strings.TrimSpace(sess.ID) == "" {
		return nil, ErrOrderNotFound
	}
	order, err := s.orderBySession(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	if order.IsCompleted() {
		return s.currentState(ctx, order)
	}
	return s.confirm(ctx, order, sess)
}

func (s *Service) confirm(ctx context.Context, order *models.Order, sess *CheckoutSession) (*Confirmation, error) {
	if order.Status == models.ORDER_STATUS_FAILED {
		return &Confirmation{Order: order, Paid: false}, nil
	}
	if !sess.IsPaid() {
		if sess.IsExpired() && order.Status == models.ORDER_STATUS_PENDING {
			failed, err := s.repo.FailPendingOrder(ctx, order.ID)
			if err != nil {
				return nil, fmt.Errorf("fail order %d: %w", order.ID, err)
			}
			if failed {
				metrics.OrdersFailed.Inc()
				log.Infof("[Billing] Order %d failed, session %s expired", order.ID, sess.ID)
				order.Status = models.ORDER_STATUS_FAILED
			}
		}
		return &Confirmation{Order: order, Paid: false}, nil
	}

	g, err := grantFromSession(sess, order)
	if err != nil {
		log.Warnf("[Billing] Session %s rejected for order %d: %v", sess.ID, order.ID, err)
		return nil, err
	}

	paymentID := sess.PaymentIntent
	if paymentID == "" {
		paymentID = sess.ID
	}
	key := ""
	if g.ScriptID != nil {
		key = uuid.NewString()
	}

	out, err := s.repo.CompleteOrder(ctx, completeInput{
		OrderID:    order.ID,
		UserID:     order.UserID,
		PaymentID:  paymentID,
		Grant:      g,
		LicenseKey: key,
		Now:        s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("complete order %d: %w", order.ID, err)
	}
	if out.ScriptMissing {
		metrics.OrdersFailed.Inc()
		log.Errorf("[Billing] Order %d paid (payment %s) for deleted script %d; marked FAILED, refund required",
			order.ID, paymentID, *g.ScriptID)
		fresh, err := s.orderBySession(ctx, sess.ID)
		if err != nil {
			return nil, err
		}
		return &Confirmation{Order: fresh, Paid: false}, nil
	}
	if !out.Transitioned {
		// another confirmer won the race
		fresh, err := s.orderBySession(ctx, sess.ID)
		if err != nil {
			return nil, err
		}
		return s.currentState(ctx, fresh)
	}

	fresh, err := s.orderBySession(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	conf := &Confirmation{
		Order:        fresh,
		License:      out.License,
		Subscription: out.Subscription,
		Issued:       true,
		Paid:         true,
	}
	if out.License != nil {
		conf.PlainKey = key
		if err := s.reveal.Stash(ctx, sess.ID, key); err != nil {
			log.Errorf("[Billing] Could not stash license key for session %s: %v", sess.ID, err)
		}
	} else if out.Subscription == nil {
		// plan already active; keep the order linked to the existing subscription
		if existing, err := s.repo.ActiveSubscription(ctx, fresh.UserID, g.PlanType); err == nil {
			conf.Subscription = existing
		}
	}

	purchaseType := PurchaseTypeSubscription
	if g.ScriptID != nil {
		purchaseType = PurchaseTypeScript
	}
	metrics.OrdersCompleted.WithLabelValues(purchaseType).Inc()
	log.Infof("[Billing] Order %d completed (session %s, %s)", fresh.ID, sess.ID, purchaseType)
	return conf, nil
}

// currentState loads the entitlement already attached to an order.
func (s *Service) currentState(ctx context.Context, order *models.Order) (*Confirmation, error) {
	conf := &Confirmation{Order: order, Paid: order.IsCompleted()}
	if order.IsScriptPurchase() {
		lic, err := s.repo.LicenseForOrder(ctx, order.ID)
		if err != nil {
			return nil, fmt.Errorf("load license for order %d: %w", order.ID, err)
		}
		conf.License = lic
		return conf, nil
	}
	sub, err := s.repo.ActiveSubscription(ctx, order.UserID, order.PlanType)
	if err != nil {
		return nil, fmt.Errorf("load subscription for order %d: %w", order.ID, err)
	}
	conf.Subscription = sub
	return conf, nil
}

func (s *Service) orderBySession(ctx context.Context, sessionID string) (*models.Order, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrOrderNotFound
	}
	order, err := s.repo.GetOrderBySessionID(ctx, sessionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load order for session %s: %w", sessionID, err)
	}
	return order, nil
}

// GetEntitlementsForSession projects an order and whatever it has issued.
// It never issues anything. viewerID 0 skips the ownership check.
func (s *Service) GetEntitlementsForSession(ctx context.Context, sessionID string, viewerID uint) (*SessionView, error) {
	order, err := s.orderBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if viewerID != 0 && order.UserID != viewerID {
		return nil, ErrOrderNotFound
	}

	view := &SessionView{Order: order}
	if order.User != nil {
		view.CustomerEmail = order.User.Email
	}

	if order.IsScriptPurchase() {
		view.PurchaseType = PurchaseTypeScript
		if order.Script != nil {
			view.ScriptTitle = order.Script.Title
		}
		if !order.IsCompleted() {
			return view, nil
		}
		lic, err := s.repo.LicenseForOrder(ctx, order.ID)
		if err != nil {
			return nil, fmt.Errorf("load license for order %d: %w", order.ID, err)
		}
		if lic == nil && order.ScriptID != nil {
			lic, err = s.repo.LatestLicenseForScript(ctx, order.UserID, *order.ScriptID)
			if err != nil {
				return nil, fmt.Errorf("load license for script %d: %w", *order.ScriptID, err)
			}
		}
		view.License = lic
		if lic != nil {
			key, err := s.reveal.Claim(ctx, order.StripeSessionID)
			if err != nil {
				log.Warnf("[Billing] Could not claim license key for session %s: %v", order.StripeSessionID, err)
			}
			view.LicenseKey = key
		}
		return view, nil
	}

	view.PurchaseType = PurchaseTypeSubscription
	view.PlanType = order.PlanType
	if order.IsCompleted() {
		sub, err := s.repo.ActiveSubscription(ctx, order.UserID, order.PlanType)
		if err != nil {
			return nil, fmt.Errorf("load subscription for order %d: %w", order.ID, err)
		}
		view.Subscription = sub
	}
	return view, nil
}

// GetOrderStatus returns the caller's own order for a session.
func (s *Service) GetOrderStatus(ctx context.Context, userID uint, sessionID string) (*models.Order, error) {
	order, err := s.orderBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// GetActiveSubscription returns the newest ACTIVE subscription or nil.
func (s *Service) GetActiveSubscription(ctx context.Context, userID uint) (*models.Subscription, error) {
	sub, err := s.repo.LatestActiveSubscription(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load subscription for user %d: %w", userID, err)
	}
	return sub, nil
}

// RecordWebhookEvent persists webhook payloads idempotently.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.BillingWebhookEvent, error) {
	_ = ctx
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.BillingWebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		SessionID:       in.SessionID,
		PayloadJSON:     in.PayloadJSON,
	}
	return s.repo.CreateWebhookEventIfNotExists(event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}
