package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"creator-playbook/internal/client"
	"creator-playbook/internal/logger"
	"creator-playbook/internal/model"
	"creator-playbook/internal/repository"
	"creator-playbook/internal/telemetry"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	eventCheckoutCompleted          = "checkout.session.completed"
	eventCheckoutAsyncPaymentOK     = "checkout.session.async_payment_succeeded"
	eventCheckoutAsyncPaymentFailed = "checkout.session.async_payment_failed"
	eventCheckoutExpired            = "checkout.session.expired"
	eventSubscriptionCreated        = "customer.subscription.created"
	eventSubscriptionUpdated        = "customer.subscription.updated"
	eventSubscriptionDeleted        = "customer.subscription.deleted"
)

type WebhookService interface {
	HandleWebhook(ctx context.Context, signature string, body []byte) error
}

type webhookServiceImpl struct {
	verifier         *client.WebhookVerifier
	stripeClient     client.StripeClient
	purchaseRepo     repository.PurchaseRepository
	membershipRepo   repository.MembershipRepository
	profileRepo      repository.ProfileRepository
	webhookEventRepo repository.WebhookEventRepository
	tracer           trace.Tracer
	processed        metric.Int64Counter
}

func NewWebhookService(
	verifier *client.WebhookVerifier,
	stripeClient client.StripeClient,
	purchaseRepo repository.PurchaseRepository,
	membershipRepo repository.MembershipRepository,
	profileRepo repository.ProfileRepository,
	webhookEventRepo repository.WebhookEventRepository,
) WebhookService {
	processed, _ := telemetry.Meter("webhook").Int64Counter("webhook.events.processed")
	return &webhookServiceImpl{
		verifier:         verifier,
		stripeClient:     stripeClient,
		purchaseRepo:     purchaseRepo,
		membershipRepo:   membershipRepo,
		profileRepo:      profileRepo,
		webhookEventRepo: webhookEventRepo,
		tracer:           telemetry.Tracer("webhook"),
		processed:        processed,
	}
}

func (s *webhookServiceImpl) HandleWebhook(ctx context.Context, signature string, body []byte) error {
	event, err := s.verifier.Verify(body, signature)
	if err != nil {
		return err
	}

	ctx, span := s.tracer.Start(ctx, "stripe.webhook",
		trace.WithAttributes(
			attribute.String("event.id", event.ID),
			attribute.String("event.type", string(event.Type)),
		),
	)
	defer span.End()

	seen, err := s.webhookEventRepo.Exists(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("check webhook event: %w", err)
	}
	if seen {
		logger.Get().Info("duplicate webhook event ignored",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
		)
		return nil
	}

	objectID, err := s.dispatch(ctx, &event)
	if err != nil {
		span.RecordError(err)
		return err
	}

	err = s.webhookEventRepo.MarkProcessed(ctx, event.ID, string(event.Type), map[string]interface{}{
		"object_id": objectID,
		"livemode":  event.Livemode,
	})
	if err != nil {
		return fmt.Errorf("mark webhook event processed: %w", err)
	}

	if s.processed != nil {
		s.processed.Add(ctx, 1, metric.WithAttributes(attribute.String("event.type", string(event.Type))))
	}
	return nil
}

func (s *webhookServiceImpl) dispatch(ctx context.Context, event *stripe.Event) (string, error) {
	if event.Data == nil {
		return "", fmt.Errorf("webhook event %s has no data", event.ID)
	}
	occurredAt := time.Unix(event.Created, 0).UTC()

	switch string(event.Type) {
	case eventCheckoutCompleted, eventCheckoutAsyncPaymentOK:
		var p model.CheckoutSessionPayload
		if err := json.Unmarshal(event.Data.Raw, &p); err != nil {
			return "", fmt.Errorf("decode checkout session: %w", err)
		}
		if p.Mode == "subscription" {
			return p.ID, s.handleMembershipCheckout(ctx, &p)
		}
		if p.PaymentStatus != "paid" && p.PaymentStatus != "no_payment_required" {
			// delayed payment methods report completion before the money moves
			logger.Get().Info("checkout completed awaiting payment", zap.String("session_id", p.ID))
			return p.ID, nil
		}
		return p.ID, s.handlePurchasePaid(ctx, &p, occurredAt)

	case eventCheckoutAsyncPaymentFailed:
		return s.handlePurchaseUnpaid(ctx, event, model.PurchaseFailed)

	case eventCheckoutExpired:
		return s.handlePurchaseUnpaid(ctx, event, model.PurchaseCanceled)

	case eventSubscriptionCreated, eventSubscriptionUpdated:
		var sp model.SubscriptionPayload
		if err := json.Unmarshal(event.Data.Raw, &sp); err != nil {
			return "", fmt.Errorf("decode subscription: %w", err)
		}
		if string(event.Type) == eventSubscriptionCreated && awaitingFirstPayment(sp.Status) {
			// the checkout completion or a later update carries the real status
			logger.Get().Debug("subscription created before first payment",
				zap.String("subscription_id", sp.ID),
				zap.String("status", sp.Status),
			)
			return sp.ID, nil
		}
		return sp.ID, s.handleSubscriptionChanged(ctx, &sp, model.MembershipStatusFromStripe(sp.Status))

	case eventSubscriptionDeleted:
		var sp model.SubscriptionPayload
		if err := json.Unmarshal(event.Data.Raw, &sp); err != nil {
			return "", fmt.Errorf("decode subscription: %w", err)
		}
		return sp.ID, s.handleSubscriptionChanged(ctx, &sp, model.MembershipCanceled)
	}

	logger.Get().Debug("unhandled webhook event", zap.String("event_type", string(event.Type)))
	return "", nil
}

func (s *webhookServiceImpl) handleMembershipCheckout(ctx context.Context, p *model.CheckoutSessionPayload) error {
	userID := p.Metadata[model.MetaUserID]
	if userID == "" {
		userID = p.ClientReferenceID
	}
	if userID == "" || p.Customer == "" {
		// not retryable: the session can never be tied to a user
		logger.Get().Warn("membership checkout missing user or customer",
			zap.String("session_id", p.ID),
			zap.String("customer_id", p.Customer),
		)
		return nil
	}

	membership := &model.Membership{
		UserID:               userID,
		StripeCustomerID:     p.Customer,
		StripeSubscriptionID: p.Subscription,
		Status:               model.MembershipActive,
	}

	if p.Subscription != "" {
		sub, err := s.stripeClient.GetSubscription(ctx, p.Subscription)
		if err != nil {
			// the subscription events that follow fill in the period
			logger.Get().Warn("fetch subscription for checkout", zap.String("subscription_id", p.Subscription), zap.Error(err))
		} else {
			membership.Status = model.MembershipStatusFromStripe(sub.Status)
			membership.CurrentPeriodEnd = sub.CurrentPeriodEnd
		}
	}

	if err := s.membershipRepo.Upsert(ctx, membership); err != nil {
		return fmt.Errorf("upsert membership: %w", err)
	}
	if err := s.syncRole(ctx, userID, membership.Status); err != nil {
		return err
	}

	logger.Get().Info("membership activated",
		zap.String("user_id", userID),
		zap.String("customer_id", p.Customer),
		zap.String("status", string(membership.Status)),
	)
	return nil
}

func (s *webhookServiceImpl) handlePurchasePaid(ctx context.Context, p *model.CheckoutSessionPayload, paidAt time.Time) error {
	purchase, err := s.purchaseRepo.MarkPaid(ctx, p.ID, paidAt)
	if err == nil {
		logger.Get().Info("purchase paid",
			zap.String("purchase_id", purchase.ID),
			zap.String("session_id", p.ID),
		)
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("mark purchase paid: %w", err)
	}

	// never saw the pending row: rebuild it from the session metadata
	kind := model.ItemKind(p.Metadata[model.MetaItemKind])
	itemID := p.Metadata[model.MetaItemID]
	email := p.BuyerEmail()
	if kind == "" || itemID == "" || email == "" {
		logger.Get().Warn("paid checkout without purchase metadata", zap.String("session_id", p.ID))
		return nil
	}

	id := p.Metadata[model.MetaPurchaseID]
	if id == "" {
		id = uuid.NewString()
	}
	currency := p.Currency
	if currency == "" {
		currency = "usd"
	}

	err = s.purchaseRepo.UpsertPaid(ctx, &model.Purchase{
		ID:          id,
		BuyerEmail:  email,
		UserID:      p.Metadata[model.MetaUserID],
		ItemKind:    kind,
		ItemID:      itemID,
		Period:      p.Metadata[model.MetaPeriod],
		SessionID:   p.ID,
		AmountCents: p.AmountTotal,
		Currency:    currency,
		PaidAt:      &paidAt,
	})
	if err != nil {
		return fmt.Errorf("upsert paid purchase: %w", err)
	}

	logger.Get().Info("purchase paid without pending row", zap.String("session_id", p.ID))
	return nil
}

func (s *webhookServiceImpl) handlePurchaseUnpaid(ctx context.Context, event *stripe.Event, status model.PurchaseStatus) (string, error) {
	var p model.CheckoutSessionPayload
	if err := json.Unmarshal(event.Data.Raw, &p); err != nil {
		return "", fmt.Errorf("decode checkout session: %w", err)
	}
	if p.Mode == "subscription" {
		return p.ID, nil
	}

	purchase, err := s.purchaseRepo.MarkUnpaid(ctx, p.ID, status)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return p.ID, nil
		}
		return p.ID, fmt.Errorf("mark purchase %s: %w", status, err)
	}

	logger.Get().Info("purchase not paid",
		zap.String("session_id", p.ID),
		zap.String("status", string(purchase.Status)),
	)
	return p.ID, nil
}

func (s *webhookServiceImpl) handleSubscriptionChanged(ctx context.Context, sp *model.SubscriptionPayload, status model.MembershipStatus) error {
	var periodEnd *time.Time
	if end := sp.PeriodEnd(); end > 0 {
		t := time.Unix(end, 0).UTC()
		periodEnd = &t
	}

	membership, err := s.membershipRepo.UpdateSubscription(ctx, sp.Customer, sp.ID, status, periodEnd)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// either checkout.session.completed has not created the row yet or
			// the event belongs to a subscription the membership moved off
			logger.Get().Info("subscription event matches no membership",
				zap.String("customer_id", sp.Customer),
				zap.String("subscription_id", sp.ID),
			)
			return nil
		}
		return fmt.Errorf("update membership: %w", err)
	}

	if err := s.syncRole(ctx, membership.UserID, membership.Status); err != nil {
		return err
	}

	logger.Get().Info("membership updated",
		zap.String("user_id", membership.UserID),
		zap.String("status", string(membership.Status)),
	)
	return nil
}

func awaitingFirstPayment(status string) bool {
	return status == "incomplete" || status == "incomplete_expired"
}

func (s *webhookServiceImpl) syncRole(ctx context.Context, userID string, status model.MembershipStatus) error {
	role := model.RoleUser
	if status == model.MembershipActive {
		role = model.RoleMember
	}
	if err := s.profileRepo.SetRole(ctx, userID, role); err != nil {
		return fmt.Errorf("set profile role: %w", err)
	}
	return nil
}
