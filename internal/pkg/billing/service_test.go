package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ManuelReschke/ScriptHub/app/models"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeGateway struct {
	mu            sync.Mutex
	seq           int
	sessions      map[string]*CheckoutSession
	customers     int
	retrieveCalls int
	lastParams    SessionParams
	createErr     error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{sessions: map[string]*CheckoutSession{}}
}

func (g *fakeGateway) CreateCustomer(ctx context.Context, params CustomerParams) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.customers++
	return fmt.Sprintf("cus_%d", g.customers), nil
}

func (g *fakeGateway) CreateCheckoutSession(ctx context.Context, params SessionParams) (*CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.seq++
	id := fmt.Sprintf("cs_test_%d", g.seq)
	g.lastParams = params
	meta := map[string]string{}
	for k, v := range params.Metadata {
		meta[k] = v
	}
	g.sessions[id] = &CheckoutSession{
		ID:            id,
		URL:           "https://checkout.example/" + id,
		Status:        "open",
		PaymentStatus: "unpaid",
		Metadata:      meta,
	}
	return &CheckoutSession{ID: id, URL: "https://checkout.example/" + id}, nil
}

func (g *fakeGateway) RetrieveCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.retrieveCalls++
	sess, ok := g.sessions[id]
	if !ok {
		return nil, errors.New("no such session")
	}
	cp := *sess
	return &cp, nil
}

func (g *fakeGateway) markPaid(id string) *CheckoutSession {
	g.mu.Lock()
	defer g.mu.Unlock()
	sess := g.sessions[id]
	sess.Status = "complete"
	sess.PaymentStatus = "paid"
	sess.PaymentIntent = "pi_" + id
	cp := *sess
	return &cp
}

func (g *fakeGateway) markExpired(id string) *CheckoutSession {
	g.mu.Lock()
	defer g.mu.Unlock()
	sess := g.sessions[id]
	sess.Status = "expired"
	cp := *sess
	return &cp
}

func (g *fakeGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.retrieveCalls
}

type memoryReveal struct {
	mu   sync.Mutex
	keys map[string]string
}

func (m *memoryReveal) Stash(ctx context.Context, sessionID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[sessionID] = key
	return nil
}

func (m *memoryReveal) Claim(ctx context.Context, sessionID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := m.keys[sessionID]
	delete(m.keys, sessionID)
	return key, nil
}

type fixture struct {
	db      *gorm.DB
	gateway *fakeGateway
	reveal  *memoryReveal
	svc     *Service
	user    *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	gw := newFakeGateway()
	rv := &memoryReveal{keys: map[string]string{}}
	svc := NewServiceFromDB(db, gw, rv, Config{
		Currency:      "usd",
		FrontendURL:   "https://shop.example",
		WebhookSecret: "whsec_test",
	})

	user := &models.User{Email: "a@b.com", Password: "x", Role: models.ROLE_USER, FirstName: "Ada", LastName: "Lovelace", IsVerified: true}
	require.NoError(t, db.Create(user).Error)
	return &fixture{db: db, gateway: gw, reveal: rv, svc: svc, user: user}
}

func (f *fixture) script(t *testing.T, title string, price float64) *models.Script {
	t.Helper()
	s := &models.Script{Title: title, Price: price, ScriptType: models.SCRIPT_TYPE_SINGLE}
	require.NoError(t, f.db.Create(s).Error)
	return s
}

func (f *fixture) count(t *testing.T, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

func TestBeginCheckoutScriptUsesStoredPrice(t *testing.T) {
	f := newFixture(t)
	script := f.script(t, "Auto Farm", 10.00)

	res, err := f.svc.BeginCheckout(context.Background(), f.user.ID, Purchase{ScriptID: script.ID})
	require.NoError(t, err)
	assert.NotEmpty(t, res.SessionID)
	assert.Contains(t, res.URL, res.SessionID)

	params := f.gateway.lastParams
	assert.Equal(t, int64(1000), params.UnitAmount)
	assert.Equal(t, "Auto Farm", params.ProductName)
	assert.Equal(t, "License for Auto Farm - Single device", params.Description)
	assert.Equal(t, "https://shop.example/payment/success?session_id={CHECKOUT_SESSION_ID}&type=script", params.SuccessURL)
	assert.Equal(t, "https://shop.example/scripts", params.CancelURL)
	assert.Equal(t, "script", params.Metadata["purchaseType"])
	assert.Equal(t, fmt.Sprint(script.ID), params.Metadata["scriptId"])
	assert.Equal(t, "cus_1", params.CustomerID)

	var order models.Order
	require.NoError(t, f.db.Where("stripe_session_id = ?", res.SessionID).First(&order).Error)
	assert.Equal(t, models.ORDER_STATUS_PENDING, order.Status)
	assert.Equal(t, 10.00, order.Amount)
	assert.Equal(t, models.PlanTypeScriptPurchase, order.PlanType)
	require.NotNil(t, order.ScriptID)
	assert.Equal(t, script.ID, *order.ScriptID)

	var stored models.User
	require.NoError(t, f.db.First(&stored, f.user.ID).Error)
	assert.Equal(t, "cus_1", stored.StripeCustomerID)

	// the customer is created once
	_, err = f.svc.BeginCheckout(context.Background(), f.user.ID, Purchase{ScriptID: script.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, f.gateway.customers)
}

func TestBeginCheckoutPlan(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.BeginCheckout(context.Background(), f.user.ID, Purchase{PlanType: "premium"})
	require.NoError(t, err)
	assert.Equal(t, int64(1499), f.gateway.lastParams.UnitAmount)
	assert.Equal(t, "Premium Subscription", f.gateway.lastParams.ProductName)
	assert.Equal(t, "https://shop.example/payment/cancel", f.gateway.lastParams.CancelURL)
	assert.Equal(t, "PREMIUM", f.gateway.lastParams.Metadata["planType"])

	var order models.Order
	require.NoError(t, f.db.Where("stripe_session_id = ?", res.SessionID).First(&order).Error)
	assert.Equal(t, "PREMIUM", order.PlanType)
	assert.Nil(t, order.ScriptID)
	assert.Equal(t, 14.99, order.Amount)
}

func TestBeginCheckoutErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.BeginCheckout(ctx, f.user.ID, Purchase{PlanType: "SINGLE"})
	assert.ErrorIs(t, err, ErrInvalidPlan)

	_, err = f.svc.BeginCheckout(ctx, f.user.ID, Purchase{ScriptID: 999})
	assert.ErrorIs(t, err, ErrScriptNotFound)

	_, err = f.svc.BeginCheckout(ctx, 999, Purchase{PlanType: "PREMIUM"})
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = f.svc.BeginCheckout(ctx, f.user.ID, Purchase{})
	assert.ErrorIs(t, err, ErrInvalidPurchase)

	f.gateway.createErr = errors.New("boom")
	_, err = f.svc.BeginCheckout(ctx, f.user.ID, Purchase{PlanType: "ADVANCE"})
	assert.ErrorIs(t, err, ErrGateway)
	assert.Equal(t, int64(0), f.count(t, &models.Order{}))
}

func TestConfirmCheckoutScriptPurchaseScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	script := f.script(t, "s1", 10.00)

	res, err := f.svc.BeginCheckout(ctx, f.user.ID, Purchase{ScriptID: script.ID})
	require.NoError(t, err)
	f.gateway.markPaid(res.SessionID)

	conf, err := f.svc.ConfirmCheckout(ctx, res.SessionID)
	require.NoError(t, err)
	assert.True(t, conf.Issued)
	assert.True(t, conf.Paid)
	require.NotNil(t, conf.License)
	assert.Nil(t, conf.License.DeviceID)
	assert.Equal(t, script.ID, conf.License.ScriptID)
	assert.Equal(t, models.ORDER_STATUS_COMPLETED, conf.Order.Status)
	assert.Equal(t, 10.00, conf.Order.Amount)
	assert.Equal(t, "pi_"+res.SessionID, conf.Order.PaymentID)
	assert.NotNil(t, conf.Order.CompletedAt)
	require.NotEmpty(t, conf.PlainKey)
	assert.Equal(t, models.HashLicenseKey(conf.PlainKey), conf.License.KeyHash)
	assert.Equal(t, conf.PlainKey[:8], conf.License.KeyPrefix)

	calls := f.gateway.calls()
	again, err := f.svc.ConfirmCheckout(ctx, res.SessionID)
	require.NoError(t, err)
	assert.False(t, again.Issued)
	assert.Empty(t, again.PlainKey)
	require.NotNil(t, again.License)
	assert.Equal(t, conf.License.ID, again.License.ID)
	assert.Equal(t, calls, f.gateway.calls(), "completed orders must not hit the gateway")

	assert.Equal(t, int64(1), f.count(t, &models.License{}))
}

func TestConfirmSessionConcurrentDeliveriesIssueOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	script := f.script(t, "Race", 5)

	res, err := f.svc.BeginCheckout(ctx, f.user.ID, Purchase{ScriptID: script.ID})
	require.NoError(t, err)
	sess := f.gateway.markPaid(res.SessionID)

	const n = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	issued := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var conf *Confirmation
			var err error
			if i%2 == 0 {
				conf, err = f.svc.ConfirmSession(ctx, sess)
			} else {
				conf, err = f.svc.ConfirmCheckout(ctx, sess.ID)
			}
			if err != nil {
				t.Errorf("confirm: %v", err)
				return
			}
			if conf.Issued {
				mu.Lock()
				issued++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, issued)
	assert.Equal(t, int64(1), f.count(t, &models.License{}))
}

func TestConfirmPlanPurchaseCreatesOneSubscriptionPerPlan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.BeginCheckout(ctx, f.user.ID, Purchase{PlanType: "PREMIUM"})
	require.NoError(t, err)
	second, err := f.svc.BeginCheckout(ctx, f.user.ID, Purchase{PlanType: "PREMIUM"})
	require.NoError(t, err)
	other, err := f.svc.BeginCheckout(ctx, f.user.ID, Purchase{PlanType: "ADVANCE"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, id := range []string{first.SessionID, second.SessionID} {
		sess := f.gateway.markPaid(id)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.ConfirmSession(ctx, sess); err != nil {
				t.Errorf("confirm: %v", err)
			}
		}()
	}
	wg.Wait()

	var premium int64
	require.NoError(t, f.db.Model(&models.Subscription{}).
		Where("user_id = ? AND plan_type = ? AND status = ?", f.user.ID, "PREMIUM", models.SUBSCRIPTION_STATUS_ACTIVE).
		Count(&premium).Error)
	assert.Equal(t, int64(1), premium)

	f.gateway.markPaid(other.SessionID)
	conf, err := f.svc.ConfirmCheckout(ctx, other.SessionID)
	require.NoError(t, err)
	require.NotNil(t, conf.Subscription)
	assert.Equal(t, "ADVANCE", conf.Subscription.PlanType)
	assert.WithinDuration(t, conf.Subscription.CurrentPeriodStart.Add(30*24*time.Hour), conf.Subscription.CurrentPeriodEnd, time.Second)

	assert.Equal(t, int64(2), f.count(t, &models.Subscription{}))

	var completed int64
	f.db.Model(&models.Order{}).Where("status = ?", models.ORDER_STATUS_COMPLETED).Count(&completed)
	assert.Equal(t, int64(3), completed)
}

func TestConfirmUnpaidAndExpiredSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	script := f.script(t, "Pending", 3)

	res, err := f.svc.BeginCheckout(ctx, f.user.ID, Purchase{ScriptID: script.ID})
	require.NoError(t, err)

	conf, err := f.svc.ConfirmCheckout(ctx, res.SessionID)
	require.NoError(t, err)
	assert.False(t, conf.Paid)
	assert.Equal(t, models.ORDER_STATUS_PENDING, conf.Order.Status)
	assert.Nil(t, conf.License)

	f.gateway.markExpired(res.SessionID)
	conf, err = f.svc.ConfirmCheckout(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.ORDER_STATUS_FAILED, conf.Order.Status)
	assert.Equal(t, int64(0), f.count(t, &models.License{}))

	_, err = f.svc.ConfirmCheckout(ctx, "cs_unknown")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestConfirmSessionRejectsMetadataMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	script := f.script(t, "Mismatch", 3)

	res, err := f.svc.BeginCheckout(ctx, f.user.ID, Purchase{ScriptID: script.ID})
	require.NoError(t, err)
	sess := f.gateway.markPaid(res.SessionID)
	sess.Metadata["userId"] = "424242"

	_, err = f.svc.ConfirmSession(ctx, sess)
	assert.ErrorIs(t, err, ErrMetadataMismatch)

	var order models.Order
	require.NoError(t, f.db.Where("stripe_session_id = ?", res.SessionID).First(&order).Error)
	assert.Equal(t, models.ORDER_STATUS_PENDING, order.Status)
}

func TestGetEntitlementsForSessionRevealsKeyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	script := f.script(t, "Reveal", 3)

	res, err := f.svc.BeginCheckout(ctx, f.user.ID, Purchase{ScriptID: script.ID})
	require.NoError(t, err)

	view, err := f.svc.GetEntitlementsForSession(ctx, res.SessionID, 0)
	require.NoError(t, err)
	assert.Nil(t, view.License)
	assert.Equal(t, PurchaseTypeScript, view.PurchaseType)
	assert.Equal(t, "Reveal", view.ScriptTitle)

	f.gateway.markPaid(res.SessionID)
	conf, err := f.svc.ConfirmCheckout(ctx, res.SessionID)
	require.NoError(t, err)

	view, err = f.svc.GetEntitlementsForSession(ctx, res.SessionID, f.user.ID)
	require.NoError(t, err)
	require.NotNil(t, view.License)
	assert.Equal(t, conf.PlainKey, view.LicenseKey)
	assert.Equal(t, "a@b.com", view.CustomerEmail)

	view, err = f.svc.GetEntitlementsForSession(ctx, res.SessionID, f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, view.LicenseKey)
	assert.Equal(t, int64(1), f.count(t, &models.License{}))

	_, err = f.svc.GetEntitlementsForSession(ctx, res.SessionID, f.user.ID+1)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestGetOrderStatusAndActiveSubscription(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub, err := f.svc.GetActiveSubscription(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Nil(t, sub)

	res, err := f.svc.BeginCheckout(ctx, f.user.ID, Purchase{PlanType: "ADVANCE"})
	require.NoError(t, err)

	order, err := f.svc.GetOrderStatus(ctx, f.user.ID, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.ORDER_STATUS_PENDING, order.Status)

	_, err = f.svc.GetOrderStatus(ctx, f.user.ID+1, res.SessionID)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	f.gateway.markPaid(res.SessionID)
	_, err = f.svc.ConfirmCheckout(ctx, res.SessionID)
	require.NoError(t, err)

	sub, err = f.svc.GetActiveSubscription(ctx, f.user.ID)
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, "ADVANCE", sub.PlanType)
}
