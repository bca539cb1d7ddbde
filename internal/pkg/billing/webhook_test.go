package billing

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ManuelReschke/ScriptHub/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eventPayload(t *testing.T, id, typ string, sess *CheckoutSession) []byte {
	t.Helper()
	obj := map[string]interface{}{
		"id":             sess.ID,
		"object":         "checkout.session",
		"status":         sess.Status,
		"payment_status": sess.PaymentStatus,
		"payment_intent": sess.PaymentIntent,
		"metadata":       sess.Metadata,
	}
	body, err := json.Marshal(map[string]interface{}{
		"id":   id,
		"type": typ,
		"data": map[string]interface{}{"object": obj},
	})
	require.NoError(t, err)
	return body
}

func TestConstructEvent(t *testing.T) {
	payload := []byte(`{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_1","object":"checkout.session","payment_status":"paid"}}}`)
	secret := "whsec_test"
	header := SignatureHeader(payload, secret, time.Now())

	ev, err := ConstructEvent(payload, header, secret, DefaultSignatureTolerance)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)
	require.NotNil(t, ev.Session)
	assert.Equal(t, "cs_1", ev.Session.ID)

	_, err = ConstructEvent(payload, "v1=deadbeef,"+header, secret, DefaultSignatureTolerance)
	assert.NoError(t, err, "any v1 entry may match")

	tests := []struct {
		name    string
		payload []byte
		header  string
		secret  string
		want    error
	}{
		{"no header", payload, "", secret, ErrMissingSignature},
		{"no secret configured", payload, header, "", ErrInvalidSignature},
		{"wrong secret", payload, header, "other", ErrInvalidSignature},
		{"tampered payload", []byte(`{"id":"evt_2"}`), header, secret, ErrInvalidSignature},
		{"malformed header", payload, "t=abc,v1=00", secret, ErrInvalidSignature},
		{"stale timestamp", payload, SignatureHeader(payload, secret, time.Now().Add(-6*time.Minute)), secret, ErrSignatureExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ConstructEvent(tt.payload, tt.header, tt.secret, DefaultSignatureTolerance)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	garbage := []byte(`not json`)
	_, err = ConstructEvent(garbage, SignatureHeader(garbage, secret, time.Now()), secret, DefaultSignatureTolerance)
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestParseEvent(t *testing.T) {
	raw := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{
		"id":"cs_1","status":"complete","payment_status":"paid",
		"payment_intent":{"id":"pi_9"},"customer_details":{"email":"a@b.com"},
		"metadata":{"userId":"1"}}}}`)
	ev, err := ParseEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)
	require.NotNil(t, ev.Session)
	assert.Equal(t, "pi_9", ev.Session.PaymentIntent)
	assert.Equal(t, "a@b.com", ev.Session.CustomerEmail)
	assert.True(t, ev.Session.IsPaid())

	ev, err = ParseEvent([]byte(`{"id":"evt_2","type":"invoice.paid","data":{"object":{"id":"in_1"}}}`))
	require.NoError(t, err)
	assert.Nil(t, ev.Session)

	_, err = ParseEvent([]byte(`not json`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
	_, err = ParseEvent([]byte(`{"type":"x"}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestProcessWebhookCompletesOrderOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	script := f.script(t, "Hooked", 7)

	res, err := f.svc.BeginCheckout(ctx, f.user.ID, Purchase{ScriptID: script.ID})
	require.NoError(t, err)
	sess := f.gateway.markPaid(res.SessionID)
	payload := eventPayload(t, "evt_done", EventCheckoutCompleted, sess)
	header := SignatureHeader(payload, "whsec_test", time.Now())

	out, err := f.svc.ProcessWebhook(ctx, payload, header)
	require.NoError(t, err)
	assert.True(t, out.Handled)
	assert.False(t, out.Duplicate)

	var order models.Order
	require.NoError(t, f.db.Where("stripe_session_id = ?", res.SessionID).First(&order).Error)
	assert.Equal(t, models.ORDER_STATUS_COMPLETED, order.Status)

	var ev models.BillingWebhookEvent
	require.NoError(t, f.db.Where("provider_event_id = ?", "evt_done").First(&ev).Error)
	assert.True(t, ev.Succeeded())
	assert.Equal(t, res.SessionID, ev.SessionID)

	out, err = f.svc.ProcessWebhook(ctx, payload, header)
	require.NoError(t, err)
	assert.True(t, out.Duplicate)
	assert.Equal(t, int64(1), f.count(t, &models.License{}))

	// a different event for the same session is still a no-op
	payload2 := eventPayload(t, "evt_async", EventCheckoutAsyncPaymentSucceeded, sess)
	_, err = f.svc.ProcessWebhook(ctx, payload2, SignatureHeader(payload2, "whsec_test", time.Now()))
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.count(t, &models.License{}))
}

func TestProcessWebhookRejectsBadSignatureWithoutPersisting(t *testing.T) {
	f := newFixture(t)
	payload := []byte(`{"id":"evt_x","type":"checkout.session.completed","data":{"object":{"id":"cs_x"}}}`)

	_, err := f.svc.ProcessWebhook(context.Background(), payload, SignatureHeader(payload, "wrong", time.Now()))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = f.svc.ProcessWebhook(context.Background(), payload, "")
	assert.ErrorIs(t, err, ErrMissingSignature)

	assert.Equal(t, int64(0), f.count(t, &models.BillingWebhookEvent{}))
}

func TestProcessWebhookExpiredSessionFailsOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.BeginCheckout(ctx, f.user.ID, Purchase{PlanType: "PREMIUM"})
	require.NoError(t, err)
	sess := f.gateway.markExpired(res.SessionID)
	payload := eventPayload(t, "evt_exp", EventCheckoutExpired, sess)

	_, err = f.svc.ProcessWebhook(ctx, payload, SignatureHeader(payload, "whsec_test", time.Now()))
	require.NoError(t, err)

	var order models.Order
	require.NoError(t, f.db.Where("stripe_session_id = ?", res.SessionID).First(&order).Error)
	assert.Equal(t, models.ORDER_STATUS_FAILED, order.Status)
	assert.Equal(t, int64(0), f.count(t, &models.Subscription{}))
}

func TestProcessWebhookFailureIsRetriedOnRedelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.BeginCheckout(ctx, f.user.ID, Purchase{PlanType: "PREMIUM"})
	require.NoError(t, err)
	sess := f.gateway.markPaid(res.SessionID)
	sess.Metadata["userId"] = "999"
	payload := eventPayload(t, "evt_retry", EventCheckoutCompleted, sess)
	header := SignatureHeader(payload, "whsec_test", time.Now())

	_, err = f.svc.ProcessWebhook(ctx, payload, header)
	assert.ErrorIs(t, err, ErrMetadataMismatch)

	var ev models.BillingWebhookEvent
	require.NoError(t, f.db.Where("provider_event_id = ?", "evt_retry").First(&ev).Error)
	assert.NotEmpty(t, ev.ProcessingError)

	out, err := f.svc.ProcessWebhook(ctx, payload, header)
	assert.ErrorIs(t, err, ErrMetadataMismatch)
	require.NotNil(t, out)
	assert.False(t, out.Duplicate)
	assert.Equal(t, int64(0), f.count(t, &models.Subscription{}))
}

func TestProcessWebhookAcknowledgesUnknownSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess := &CheckoutSession{ID: "cs_elsewhere", Status: "complete", PaymentStatus: "paid", Metadata: map[string]string{"userId": "1"}}
	payload := eventPayload(t, "evt_unknown", EventCheckoutCompleted, sess)

	out, err := f.svc.ProcessWebhook(ctx, payload, SignatureHeader(payload, "whsec_test", time.Now()))
	require.NoError(t, err)
	assert.False(t, out.Handled)
	assert.False(t, out.Duplicate)

	var ev models.BillingWebhookEvent
	require.NoError(t, f.db.Where("provider_event_id = ?", "evt_unknown").First(&ev).Error)
	assert.NotNil(t, ev.ProcessedAt)
	assert.Contains(t, ev.ProcessingError, ErrOrderNotFound.Error())
	assert.Equal(t, "cs_elsewhere", ev.SessionID)
	assert.Equal(t, int64(0), f.count(t, &models.Order{}))
}

func TestProcessWebhookFailsOrderForDeletedScript(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	script := f.script(t, "Gone Soon", 4)

	res, err := f.svc.BeginCheckout(ctx, f.user.ID, Purchase{ScriptID: script.ID})
	require.NoError(t, err)
	require.NoError(t, f.db.Delete(&models.Script{}, script.ID).Error)

	sess := f.gateway.markPaid(res.SessionID)
	payload := eventPayload(t, "evt_orphan", EventCheckoutCompleted, sess)
	header := SignatureHeader(payload, "whsec_test", time.Now())

	out, err := f.svc.ProcessWebhook(ctx, payload, header)
	require.NoError(t, err)
	assert.True(t, out.Handled)

	var order models.Order
	require.NoError(t, f.db.Where("stripe_session_id = ?", res.SessionID).First(&order).Error)
	assert.Equal(t, models.ORDER_STATUS_FAILED, order.Status)
	assert.Equal(t, "pi_"+res.SessionID, order.PaymentID)
	assert.Equal(t, int64(0), f.count(t, &models.License{}))

	conf, err := f.svc.ConfirmCheckout(ctx, res.SessionID)
	require.NoError(t, err)
	assert.False(t, conf.Paid)
	assert.Equal(t, int64(0), f.count(t, &models.License{}))
}

func TestProcessWebhookIgnoresOtherEvents(t *testing.T) {
	f := newFixture(t)
	payload := []byte(`{"id":"evt_other","type":"customer.created","data":{"object":{"id":"cus_1"}}}`)

	out, err := f.svc.ProcessWebhook(context.Background(), payload, SignatureHeader(payload, "whsec_test", time.Now()))
	require.NoError(t, err)
	assert.False(t, out.Handled)
	assert.Equal(t, int64(1), f.count(t, &models.BillingWebhookEvent{}))
}
