package service

import (
	"context"
	"testing"
	"time"

	"creator-playbook/internal/apperr"
	"creator-playbook/internal/client"
	"creator-playbook/internal/model"
	"creator-playbook/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
)

var periodEnd = testutil.Now.Add(30 * 24 * time.Hour).Truncate(time.Second)

func subscriptionCheckout(userID string) map[string]interface{} {
	return map[string]interface{}{
		"id":                  "cs_sub_1",
		"object":              "checkout.session",
		"mode":                "subscription",
		"status":              "complete",
		"payment_status":      "paid",
		"customer":            "cus_1",
		"subscription":        "sub_1",
		"client_reference_id": userID,
		"metadata": map[string]string{
			model.MetaPurpose: model.PurposeMembership,
			model.MetaUserID:  userID,
			model.MetaEmail:   "fan@example.com",
		},
	}
}

func subscriptionObject(status string) map[string]interface{} {
	return map[string]interface{}{
		"id":       "sub_1",
		"object":   "subscription",
		"customer": "cus_1",
		"status":   status,
		"items": map[string]interface{}{
			"data": []map[string]interface{}{
				{"current_period_end": periodEnd.Unix()},
			},
		},
	}
}

func setupMember(t *testing.T, env *testEnv) {
	t.Helper()
	_, err := env.profiles.Ensure(context.Background(), "user-1", "fan@example.com")
	require.NoError(t, err)
	env.stripe.Subscriptions["sub_1"] = &client.Subscription{
		ID:               "sub_1",
		CustomerID:       "cus_1",
		Status:           "active",
		CurrentPeriodEnd: &periodEnd,
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	env := newTestEnv(t)

	body, _ := signedEvent(t, "evt_1", "checkout.session.completed", subscriptionCheckout("user-1"))
	forged := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: body, Secret: "whsec_forged"})

	err := env.webhook.HandleWebhook(context.Background(), forged.Header, body)
	assert.True(t, apperr.Is(err, apperr.KindInvalidSignature))

	_, err = env.memberships.FindByUserID(context.Background(), "user-1")
	assert.Error(t, err)
}

func TestWebhookSubscriptionCheckoutActivatesMembership(t *testing.T) {
	env := newTestEnv(t)
	setupMember(t, env)
	ctx := context.Background()

	env.deliver(t, "evt_1", "checkout.session.completed", subscriptionCheckout("user-1"))

	m, err := env.memberships.FindByUserID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, model.MembershipActive, m.Status)
	assert.Equal(t, "cus_1", m.StripeCustomerID)
	assert.Equal(t, "sub_1", m.StripeSubscriptionID)
	require.NotNil(t, m.CurrentPeriodEnd)
	assert.True(t, m.CurrentPeriodEnd.Equal(periodEnd))

	p, err := env.profiles.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, model.RoleMember, p.Role)
}

func TestWebhookDuplicateDeliveryIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	setupMember(t, env)
	ctx := context.Background()

	env.deliver(t, "evt_1", "checkout.session.completed", subscriptionCheckout("user-1"))
	once, err := env.memberships.FindByUserID(ctx, "user-1")
	require.NoError(t, err)

	// same event redelivered, then the same payload under a new event id
	env.deliver(t, "evt_1", "checkout.session.completed", subscriptionCheckout("user-1"))
	env.deliver(t, "evt_1_retry", "checkout.session.completed", subscriptionCheckout("user-1"))

	twice, err := env.memberships.FindByUserID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, once.Status, twice.Status)
	assert.Equal(t, once.StripeSubscriptionID, twice.StripeSubscriptionID)
	assert.True(t, once.CurrentPeriodEnd.Equal(*twice.CurrentPeriodEnd))

	var count int64
	require.NoError(t, env.db.Model(&model.Membership{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestWebhookSubscriptionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	setupMember(t, env)
	ctx := context.Background()

	env.deliver(t, "evt_1", "checkout.session.completed", subscriptionCheckout("user-1"))

	env.deliver(t, "evt_2", "customer.subscription.updated", subscriptionObject("past_due"))
	m, err := env.memberships.FindByCustomerID(ctx, "cus_1")
	require.NoError(t, err)
	assert.Equal(t, model.MembershipPastDue, m.Status)
	p, _ := env.profiles.Get(ctx, "user-1")
	assert.Equal(t, model.RoleUser, p.Role)

	env.deliver(t, "evt_3", "customer.subscription.updated", subscriptionObject("active"))
	p, _ = env.profiles.Get(ctx, "user-1")
	assert.Equal(t, model.RoleMember, p.Role)

	env.deliver(t, "evt_4", "customer.subscription.deleted", subscriptionObject("canceled"))
	m, err = env.memberships.FindByCustomerID(ctx, "cus_1")
	require.NoError(t, err)
	assert.Equal(t, model.MembershipCanceled, m.Status)
	p, _ = env.profiles.Get(ctx, "user-1")
	assert.Equal(t, model.RoleUser, p.Role)

	// re-subscribing reactivates the same row
	env.deliver(t, "evt_5", "checkout.session.completed", subscriptionCheckout("user-1"))
	m, err = env.memberships.FindByCustomerID(ctx, "cus_1")
	require.NoError(t, err)
	assert.Equal(t, model.MembershipActive, m.Status)
}

func TestWebhookSubscriptionDeletedKeepsAdminRole(t *testing.T) {
	env := newTestEnv(t)
	setupMember(t, env)
	ctx := context.Background()
	require.NoError(t, env.db.Model(&model.Profile{}).Where("id = ?", "user-1").Update("role", model.RoleAdmin).Error)

	env.deliver(t, "evt_1", "checkout.session.completed", subscriptionCheckout("user-1"))
	env.deliver(t, "evt_2", "customer.subscription.deleted", subscriptionObject("canceled"))

	p, err := env.profiles.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, p.Role)
}

func TestWebhookOldSubscriptionDeletedAfterResubscribe(t *testing.T) {
	env := newTestEnv(t)
	setupMember(t, env)
	ctx := context.Background()
	env.stripe.Subscriptions["sub_2"] = &client.Subscription{
		ID:               "sub_2",
		CustomerID:       "cus_1",
		Status:           "active",
		CurrentPeriodEnd: &periodEnd,
	}

	env.deliver(t, "evt_1", "checkout.session.completed", subscriptionCheckout("user-1"))
	env.deliver(t, "evt_2", "customer.subscription.updated", subscriptionObject("past_due"))

	// same customer starts a fresh subscription while the old one is past due
	renewed := subscriptionCheckout("user-1")
	renewed["id"] = "cs_sub_2"
	renewed["subscription"] = "sub_2"
	env.deliver(t, "evt_3", "checkout.session.completed", renewed)

	env.deliver(t, "evt_4", "customer.subscription.deleted", subscriptionObject("canceled"))

	m, err := env.memberships.FindByCustomerID(ctx, "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "sub_2", m.StripeSubscriptionID)
	assert.Equal(t, model.MembershipActive, m.Status)
	p, err := env.profiles.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, model.RoleMember, p.Role)
}

func TestWebhookIncompleteSubscriptionCreatedKeepsMember(t *testing.T) {
	env := newTestEnv(t)
	setupMember(t, env)
	ctx := context.Background()

	env.deliver(t, "evt_1", "checkout.session.completed", subscriptionCheckout("user-1"))
	// delivery order is not guaranteed: the created event can land last
	env.deliver(t, "evt_2", "customer.subscription.created", subscriptionObject("incomplete"))

	m, err := env.memberships.FindByCustomerID(ctx, "cus_1")
	require.NoError(t, err)
	assert.Equal(t, model.MembershipActive, m.Status)
	p, err := env.profiles.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, model.RoleMember, p.Role)

	env.deliver(t, "evt_3", "customer.subscription.created", subscriptionObject("active"))
	m, err = env.memberships.FindByCustomerID(ctx, "cus_1")
	require.NoError(t, err)
	assert.Equal(t, model.MembershipActive, m.Status)
}

func TestWebhookSubscriptionUpdateForUnknownCustomer(t *testing.T) {
	env := newTestEnv(t)

	body, sig := signedEvent(t, "evt_1", "customer.subscription.updated", subscriptionObject("active"))
	assert.NoError(t, env.webhook.HandleWebhook(context.Background(), sig, body))
}

func TestWebhookCheckoutFallsBackWhenSubscriptionLookupFails(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.profiles.Ensure(context.Background(), "user-1", "fan@example.com")
	require.NoError(t, err)

	env.deliver(t, "evt_1", "checkout.session.completed", subscriptionCheckout("user-1"))

	m, err := env.memberships.FindByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, model.MembershipActive, m.Status)
	assert.Nil(t, m.CurrentPeriodEnd)
}

func TestWebhookMarksPurchasePaid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp, err := env.checkout.BuyPlaybook(ctx, Buyer{Email: "fan@example.com"})
	require.NoError(t, err)

	env.deliver(t, "evt_1", "checkout.session.completed", paidSession(resp.SessionID, env.stripe.Sessions[resp.SessionID].Metadata))

	p, err := env.purchases.FindBySessionID(ctx, resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.PurchasePaid, p.Status)
	require.NotNil(t, p.PaidAt)
	assert.True(t, p.PaidAt.Equal(testutil.Now))
}

func TestWebhookPaidWithoutPendingRow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.deliver(t, "evt_1", "checkout.session.completed", paidSession("cs_unseen", map[string]string{
		model.MetaPurpose:    model.PurposePurchase,
		model.MetaEmail:      "fan@example.com",
		model.MetaItemKind:   string(model.ItemVolume),
		model.MetaItemID:     "vol-1",
		model.MetaPurchaseID: "p-unseen",
	}))

	p, err := env.purchases.FindBySessionID(ctx, "cs_unseen")
	require.NoError(t, err)
	assert.Equal(t, "p-unseen", p.ID)
	assert.Equal(t, model.PurchasePaid, p.Status)
	assert.Equal(t, "vol-1", p.ItemID)
	assert.EqualValues(t, 1900, p.AmountCents)
}

func TestWebhookUnpaidCheckoutStaysPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp, err := env.checkout.BuyVolume(ctx, Buyer{Email: "fan@example.com"}, "vol-1")
	require.NoError(t, err)

	session := paidSession(resp.SessionID, nil)
	session["payment_status"] = "unpaid"
	env.deliver(t, "evt_1", "checkout.session.completed", session)

	p, err := env.purchases.FindBySessionID(ctx, resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.PurchasePending, p.Status)

	env.deliver(t, "evt_2", "checkout.session.async_payment_failed", session)
	p, err = env.purchases.FindBySessionID(ctx, resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.PurchaseFailed, p.Status)
}

func TestWebhookExpiredSessionCancelsPurchase(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp, err := env.checkout.BuyVolume(ctx, Buyer{Email: "fan@example.com"}, "vol-1")
	require.NoError(t, err)

	session := paidSession(resp.SessionID, nil)
	session["status"] = "expired"
	session["payment_status"] = "unpaid"
	env.deliver(t, "evt_1", "checkout.session.expired", session)

	p, err := env.purchases.FindBySessionID(ctx, resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.PurchaseCanceled, p.Status)
}

func TestWebhookIgnoresUnknownEvents(t *testing.T) {
	env := newTestEnv(t)

	body, sig := signedEvent(t, "evt_1", "invoice.paid", map[string]interface{}{"id": "in_1", "object": "invoice"})
	assert.NoError(t, env.webhook.HandleWebhook(context.Background(), sig, body))
}
