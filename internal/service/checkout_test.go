package service

import (
	"context"
	"errors"
	"testing"

	"creator-playbook/internal/apperr"
	"creator-playbook/internal/client"
	"creator-playbook/internal/model"
	"creator-playbook/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeRequiresSignedInUser(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.checkout.Subscribe(context.Background(), Buyer{Email: "fan@example.com"}, "")
	assert.True(t, apperr.Is(err, apperr.KindAuthenticationRequired))
	assert.Empty(t, env.stripe.Requests)
}

func TestSubscribeTagsSessionWithBuyer(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.checkout.Subscribe(context.Background(), Buyer{UserID: "user-1", Email: "Fan@Example.com"}, "/welcome")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.URL)

	req := env.stripe.LastRequest()
	assert.Equal(t, client.CheckoutModeSubscription, req.Mode)
	assert.Equal(t, "price_membership", req.PriceID)
	assert.Equal(t, "fan@example.com", req.CustomerEmail)
	assert.Equal(t, model.PurposeMembership, req.Metadata[model.MetaPurpose])
	assert.Equal(t, "user-1", req.Metadata[model.MetaUserID])
	assert.Equal(t, "https://creatorplaybook.co/welcome?session_id={CHECKOUT_SESSION_ID}", req.SuccessURL)
}

func TestSubscribeIgnoresOffsiteSuccessPath(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.checkout.Subscribe(context.Background(), Buyer{UserID: "user-1", Email: "fan@example.com"}, "//evil.example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://creatorplaybook.co/membership/success?session_id={CHECKOUT_SESSION_ID}", env.stripe.LastRequest().SuccessURL)
}

func TestResubscribeReusesCustomer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.memberships.Upsert(ctx, &model.Membership{
		UserID:           "user-1",
		StripeCustomerID: "cus_1",
		Status:           model.MembershipCanceled,
	}))

	_, err := env.checkout.Subscribe(ctx, Buyer{UserID: "user-1", Email: "fan@example.com"}, "")
	require.NoError(t, err)
	assert.Equal(t, "cus_1", env.stripe.LastRequest().CustomerID)
	assert.Empty(t, env.stripe.LastRequest().CustomerEmail)

	_, err = env.memberships.UpdateSubscription(ctx, "cus_1", "sub_1", model.MembershipActive, nil)
	require.NoError(t, err)
	_, err = env.checkout.Subscribe(ctx, Buyer{UserID: "user-1", Email: "fan@example.com"}, "")
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestSupportRejectsAmountsOutsideTiers(t *testing.T) {
	env := newTestEnv(t)
	buyer := Buyer{Email: "fan@example.com"}

	for _, amount := range []string{"0", "7", "25.5", "-25", "25.001"} {
		_, err := env.checkout.Support(context.Background(), buyer, decimal.RequireFromString(amount))
		assert.True(t, apperr.Is(err, apperr.KindInvalidAmount), "amount %s", amount)
	}
	assert.Empty(t, env.stripe.Requests)
}

func TestSupportHugeAmountKeepsItsValueInTheError(t *testing.T) {
	env := newTestEnv(t)
	buyer := Buyer{Email: "fan@example.com"}

	for _, amount := range []string{"1e30", "92233720368547758.08"} {
		d := decimal.RequireFromString(amount)
		_, err := env.checkout.Support(context.Background(), buyer, d)
		require.True(t, apperr.Is(err, apperr.KindInvalidAmount), "amount %s", amount)
		assert.Contains(t, err.Error(), d.String())
		assert.Contains(t, err.Error(), "25.00")
	}
	assert.Empty(t, env.stripe.Requests)
}

func TestSupportCreatesPendingPurchase(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp, err := env.checkout.Support(ctx, Buyer{Email: "Fan@Example.com"}, decimal.RequireFromString("25.00"))
	require.NoError(t, err)

	req := env.stripe.LastRequest()
	assert.Equal(t, client.CheckoutModePayment, req.Mode)
	assert.EqualValues(t, 2500, req.AmountCents)
	assert.Equal(t, string(model.ItemSupport), req.Metadata[model.MetaItemKind])
	assert.Equal(t, resp.PurchaseID, req.Metadata[model.MetaPurchaseID])
	assert.NotContains(t, req.Metadata, model.MetaPeriod)

	p, err := env.purchases.FindBySessionID(ctx, resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.PurchasePending, p.Status)
	assert.Equal(t, "fan@example.com", p.BuyerEmail)
	assert.EqualValues(t, 2500, p.AmountCents)

	second, err := env.checkout.Support(ctx, Buyer{Email: "fan@example.com"}, decimal.RequireFromString("25"))
	require.NoError(t, err)
	assert.NotEqual(t, resp.PurchaseID, second.PurchaseID, "each contribution is separate")
}

func TestSupportValidatesEmail(t *testing.T) {
	env := newTestEnv(t)

	for _, email := range []string{"", "not-an-email", "Fan <fan@example.com>", "fan@localhost"} {
		_, err := env.checkout.Support(context.Background(), Buyer{Email: email}, decimal.NewFromInt(25))
		assert.True(t, apperr.Is(err, apperr.KindValidation), "email %q", email)
	}
}

func TestBuyPlaybookCarriesCurrentPeriod(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.checkout.BuyPlaybook(context.Background(), Buyer{Email: "fan@example.com"})
	require.NoError(t, err)

	req := env.stripe.LastRequest()
	assert.Equal(t, "2026-10", req.Metadata[model.MetaPeriod])
	assert.Equal(t, "pb-2026-10", req.Metadata[model.MetaItemID])
	assert.EqualValues(t, 1900, req.AmountCents)

	p, err := env.purchases.FindBySessionID(context.Background(), resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "2026-10", p.Period)
}

func TestBuyPlaybookRetryReusesPurchase(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	buyer := Buyer{Email: "fan@example.com"}

	first, err := env.checkout.BuyPlaybook(ctx, buyer)
	require.NoError(t, err)
	second, err := env.checkout.BuyPlaybook(ctx, buyer)
	require.NoError(t, err)

	assert.Equal(t, first.PurchaseID, second.PurchaseID)
	assert.NotEqual(t, first.SessionID, second.SessionID)

	_, err = env.purchases.MarkPaid(ctx, second.SessionID, testutil.Now)
	require.NoError(t, err)
	_, err = env.checkout.BuyPlaybook(ctx, buyer)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestBuyVolume(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.checkout.BuyVolume(ctx, Buyer{Email: "fan@example.com"}, "vol-1")
	require.NoError(t, err)
	assert.EqualValues(t, 2500, env.stripe.LastRequest().AmountCents)
	assert.Equal(t, "Volume One", env.stripe.LastRequest().ProductName)

	_, err = env.checkout.BuyVolume(ctx, Buyer{Email: "fan@example.com"}, "vol-draft")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = env.checkout.BuyVolume(ctx, Buyer{Email: "fan@example.com"}, "vol-free")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestCheckoutSurfacesUpstreamError(t *testing.T) {
	env := newTestEnv(t)
	env.stripe.Err = apperr.Upstream("stripe", "api_connection_error", "req_1", errors.New("dial tcp: timeout"))

	_, err := env.checkout.Support(context.Background(), Buyer{Email: "fan@example.com"}, decimal.NewFromInt(10))
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindUpstream, appErr.Kind)
	assert.Equal(t, "api_connection_error", appErr.Code)
	assert.Len(t, env.stripe.Requests, 0)

	_, err = env.purchases.FindLatestByEmail(context.Background(), "fan@example.com", "")
	assert.Error(t, err, "no purchase row without a session")
}

func TestSupportTiers(t *testing.T) {
	env := newTestEnv(t)

	tiers := env.checkout.SupportTiers()
	assert.Equal(t, "usd", tiers.Currency)
	assert.Equal(t, []string{"5.00", "10.00", "25.00", "50.00", "100.00"}, tiers.Tiers)
}
