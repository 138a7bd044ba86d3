package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"creator-playbook/internal/client"
	"creator-playbook/internal/config"
	"creator-playbook/internal/model"
	"creator-playbook/internal/repository"
	"creator-playbook/internal/testutil"

	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
	"gorm.io/gorm"
)

const testWebhookSecret = "whsec_test_secret"

type testEnv struct {
	db      *gorm.DB
	items   map[string]*model.ContentItem
	stripe  *testutil.FakeStripe
	mail    *testutil.FakeMail
	store   *client.LocalStore
	mailCfg *config.Mail

	purchases   repository.PurchaseRepository
	memberships repository.MembershipRepository
	profiles    repository.ProfileRepository
	content     repository.ContentRepository
	unlocks     repository.UnlockRepository
	regs        repository.RegistrationRepository

	checkout     CheckoutService
	webhook      WebhookService
	purchase     PurchaseService
	catalog      CatalogService
	unlock       UnlockService
	registration RegistrationService
	profile      ProfileService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewDB(t)
	store, err := client.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	env := &testEnv{
		db:      db,
		items:   testutil.SeedContent(t, db),
		stripe:  testutil.NewFakeStripe(),
		mail:    &testutil.FakeMail{},
		store:   store,
		mailCfg: &config.Mail{NotifyTo: "team@creatorplaybook.co"},

		purchases:   repository.NewPurchaseRepository(db),
		memberships: repository.NewMembershipRepository(db),
		profiles:    repository.NewProfileRepository(db),
		content:     repository.NewContentRepository(db),
		unlocks:     repository.NewUnlockRepository(db),
		regs:        repository.NewRegistrationRepository(db),
	}

	stripeCfg := &config.Stripe{
		MembershipPriceID: "price_membership",
		PlaybookPrice:     1900,
		Currency:          "usd",
		SupportTiers:      []int64{500, 1000, 2500, 5000, 10000},
	}

	env.checkout = NewCheckoutService(env.stripe, stripeCfg, "https://creatorplaybook.co/", env.purchases, env.memberships, env.content, testutil.Clock)
	env.webhook = NewWebhookService(client.NewWebhookVerifier(testWebhookSecret), env.stripe, env.purchases, env.memberships, env.profiles, repository.NewWebhookEventRepository(db))
	env.purchase = NewPurchaseService(env.stripe, env.purchases, env.content, store, testutil.Clock)
	env.catalog = NewCatalogService(env.content, env.memberships, env.unlocks, store, testutil.Clock)
	env.unlock = NewUnlockService(env.unlocks, env.content)
	env.registration = NewRegistrationService(env.regs, env.content, env.mail, env.mailCfg)
	env.profile = NewProfileService(env.profiles, env.memberships)

	for _, item := range env.items {
		if item.FileKey != "" {
			require.NoError(t, store.Put(context.Background(), item.FileKey, strings.NewReader("file:"+item.ID), int64(len("file:"+item.ID)), "application/pdf"))
		}
	}

	return env
}

// signedEvent builds a Stripe event around object and signs it.
func signedEvent(t *testing.T, id, eventType string, object interface{}) ([]byte, string) {
	t.Helper()

	raw, err := json.Marshal(object)
	require.NoError(t, err)

	payload, err := json.Marshal(map[string]interface{}{
		"id":          id,
		"object":      "event",
		"type":        eventType,
		"created":     testutil.Now.Unix(),
		"api_version": "2025-03-31.basil",
		"data":        map[string]json.RawMessage{"object": raw},
	})
	require.NoError(t, err)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: payload,
		Secret:  testWebhookSecret,
	})
	return signed.Payload, signed.Header
}

func (e *testEnv) deliver(t *testing.T, id, eventType string, object interface{}) {
	t.Helper()
	body, sig := signedEvent(t, id, eventType, object)
	require.NoError(t, e.webhook.HandleWebhook(context.Background(), sig, body))
}

func paidSession(sessionID string, metadata map[string]string) map[string]interface{} {
	return map[string]interface{}{
		"id":             sessionID,
		"object":         "checkout.session",
		"mode":           "payment",
		"status":         "complete",
		"payment_status": "paid",
		"amount_total":   1900,
		"currency":       "usd",
		"metadata":       metadata,
	}
}
