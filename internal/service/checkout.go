package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"creator-playbook/internal/apperr"
	"creator-playbook/internal/client"
	"creator-playbook/internal/config"
	"creator-playbook/internal/dto"
	"creator-playbook/internal/logger"
	"creator-playbook/internal/model"
	"creator-playbook/internal/repository"
	"creator-playbook/internal/telemetry"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const sessionPlaceholder = "{CHECKOUT_SESSION_ID}"

type CheckoutService interface {
	Subscribe(ctx context.Context, buyer Buyer, successPath string) (*dto.CheckoutResponse, error)
	Support(ctx context.Context, buyer Buyer, amount decimal.Decimal) (*dto.CheckoutResponse, error)
	BuyVolume(ctx context.Context, buyer Buyer, volumeID string) (*dto.CheckoutResponse, error)
	BuyPlaybook(ctx context.Context, buyer Buyer) (*dto.CheckoutResponse, error)
	SupportTiers() *dto.SupportTiersResponse
}

type checkoutServiceImpl struct {
	stripeClient   client.StripeClient
	stripeCfg      *config.Stripe
	serviceBaseUrl string
	purchaseRepo   repository.PurchaseRepository
	membershipRepo repository.MembershipRepository
	contentRepo    repository.ContentRepository
	now            Clock
	tracer         trace.Tracer
}

func NewCheckoutService(
	stripeClient client.StripeClient,
	stripeCfg *config.Stripe,
	serviceBaseUrl string,
	purchaseRepo repository.PurchaseRepository,
	membershipRepo repository.MembershipRepository,
	contentRepo repository.ContentRepository,
	now Clock,
) CheckoutService {
	return &checkoutServiceImpl{
		stripeClient:   stripeClient,
		stripeCfg:      stripeCfg,
		serviceBaseUrl: strings.TrimRight(serviceBaseUrl, "/"),
		purchaseRepo:   purchaseRepo,
		membershipRepo: membershipRepo,
		contentRepo:    contentRepo,
		now:            clockOrNow(now),
		tracer:         telemetry.Tracer("checkout"),
	}
}

func (s *checkoutServiceImpl) Subscribe(ctx context.Context, buyer Buyer, successPath string) (*dto.CheckoutResponse, error) {
	if buyer.UserID == "" {
		return nil, apperr.AuthenticationRequired("sign in to start a membership")
	}

	req := &client.CheckoutRequest{
		Mode:              client.CheckoutModeSubscription,
		PriceID:           s.stripeCfg.MembershipPriceID,
		ClientReferenceID: buyer.UserID,
		SuccessURL:        s.returnURL(successPath, "/membership/success") + "?session_id=" + sessionPlaceholder,
		CancelURL:         s.serviceBaseUrl + "/membership",
		Metadata: map[string]string{
			model.MetaPurpose: model.PurposeMembership,
			model.MetaUserID:  buyer.UserID,
			model.MetaEmail:   model.NormalizeEmail(buyer.Email),
		},
	}

	membership, err := s.membershipRepo.FindByUserID(ctx, buyer.UserID)
	switch {
	case err == nil:
		if membership.IsActive() {
			return nil, apperr.Conflict("membership is already active")
		}
		// re-subscribing reuses the processor customer
		req.CustomerID = membership.StripeCustomerID
	case errors.Is(err, repository.ErrNotFound):
		req.CustomerEmail = model.NormalizeEmail(buyer.Email)
	default:
		return nil, fmt.Errorf("find membership: %w", err)
	}

	session, err := s.createSession(ctx, req)
	if err != nil {
		return nil, err
	}

	logger.Get().Info("membership checkout created",
		zap.String("user_id", buyer.UserID),
		zap.String("session_id", session.ID),
	)

	return &dto.CheckoutResponse{
		SessionID: session.ID,
		URL:       session.URL,
	}, nil
}

func (s *checkoutServiceImpl) Support(ctx context.Context, buyer Buyer, amount decimal.Decimal) (*dto.CheckoutResponse, error) {
	cents, ok := s.matchTier(amount)
	if !ok {
		return nil, apperr.InvalidAmount(amount.String(), s.tierLabels())
	}

	// every contribution is its own item, so repeat support never collides
	return s.startPurchase(ctx, buyer, purchaseTarget{
		kind:        model.ItemSupport,
		itemID:      uuid.NewString(),
		amountCents: cents,
		productName: "Support Creator Playbook",
		cancelPath:  "/support",
	})
}

func (s *checkoutServiceImpl) BuyVolume(ctx context.Context, buyer Buyer, volumeID string) (*dto.CheckoutResponse, error) {
	if strings.TrimSpace(volumeID) == "" {
		return nil, apperr.Validation("volume_id is required")
	}

	item, err := s.contentRepo.FindByID(ctx, volumeID)
	if err != nil {
		return nil, notFound(err, "volume")
	}
	if item.Kind != model.ContentVolume || !item.IsPublished() {
		return nil, apperr.NotFound("volume")
	}
	if item.PriceCents <= 0 {
		return nil, apperr.Validation("volume %q is not for sale", item.Slug)
	}

	return s.startPurchase(ctx, buyer, purchaseTarget{
		kind:        model.ItemVolume,
		itemID:      item.ID,
		amountCents: item.PriceCents,
		productName: item.Title,
		cancelPath:  "/volumes/" + item.Slug,
	})
}

func (s *checkoutServiceImpl) BuyPlaybook(ctx context.Context, buyer Buyer) (*dto.CheckoutResponse, error) {
	period := model.PeriodOf(s.now())

	item, err := s.contentRepo.FindPublishedPlaybook(ctx, period)
	if err != nil {
		return nil, notFound(err, "playbook for "+period)
	}

	price := item.PriceCents
	if price <= 0 {
		price = s.stripeCfg.PlaybookPrice
	}

	return s.startPurchase(ctx, buyer, purchaseTarget{
		kind:        model.ItemPlaybook,
		itemID:      item.ID,
		period:      period,
		amountCents: price,
		productName: item.Title,
		cancelPath:  "/playbook",
	})
}

func (s *checkoutServiceImpl) SupportTiers() *dto.SupportTiersResponse {
	tiers := make([]string, len(s.stripeCfg.SupportTiers))
	for i, cents := range s.stripeCfg.SupportTiers {
		tiers[i] = formatCents(cents)
	}
	return &dto.SupportTiersResponse{
		Currency: s.stripeCfg.Currency,
		Tiers:    tiers,
	}
}

type purchaseTarget struct {
	kind        model.ItemKind
	itemID      string
	period      string
	amountCents int64
	productName string
	cancelPath  string
}

func (s *checkoutServiceImpl) startPurchase(ctx context.Context, buyer Buyer, target purchaseTarget) (*dto.CheckoutResponse, error) {
	email, err := validateEmail(buyer.Email)
	if err != nil {
		return nil, err
	}

	purchaseID := uuid.NewString()
	existing, err := s.purchaseRepo.FindByKey(ctx, email, target.kind, target.itemID, target.period)
	switch {
	case err == nil:
		if existing.Status == model.PurchasePaid {
			return nil, apperr.Conflict("%s already purchased", target.kind)
		}
		purchaseID = existing.ID
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("find purchase: %w", err)
	}

	metadata := map[string]string{
		model.MetaPurpose:    model.PurposePurchase,
		model.MetaEmail:      email,
		model.MetaItemKind:   string(target.kind),
		model.MetaItemID:     target.itemID,
		model.MetaPurchaseID: purchaseID,
	}
	if buyer.UserID != "" {
		metadata[model.MetaUserID] = buyer.UserID
	}
	if target.period != "" {
		metadata[model.MetaPeriod] = target.period
	}

	session, err := s.createSession(ctx, &client.CheckoutRequest{
		Mode:              client.CheckoutModePayment,
		AmountCents:       target.amountCents,
		Currency:          s.stripeCfg.Currency,
		ProductName:       target.productName,
		CustomerEmail:     email,
		ClientReferenceID: purchaseID,
		SuccessURL:        s.serviceBaseUrl + "/purchase/success?session_id=" + sessionPlaceholder,
		CancelURL:         s.serviceBaseUrl + target.cancelPath,
		Metadata:          metadata,
	})
	if err != nil {
		return nil, err
	}

	err = s.purchaseRepo.UpsertPending(ctx, &model.Purchase{
		ID:          purchaseID,
		BuyerEmail:  email,
		UserID:      buyer.UserID,
		ItemKind:    target.kind,
		ItemID:      target.itemID,
		Period:      target.period,
		SessionID:   session.ID,
		AmountCents: target.amountCents,
		Currency:    s.stripeCfg.Currency,
	})
	if err != nil {
		return nil, fmt.Errorf("store pending purchase: %w", err)
	}

	logger.Get().Info("purchase checkout created",
		zap.String("purchase_id", purchaseID),
		zap.String("item_kind", string(target.kind)),
		zap.String("item_id", target.itemID),
		zap.String("session_id", session.ID),
	)

	return &dto.CheckoutResponse{
		SessionID:  session.ID,
		URL:        session.URL,
		PurchaseID: purchaseID,
	}, nil
}

func (s *checkoutServiceImpl) createSession(ctx context.Context, req *client.CheckoutRequest) (*client.CheckoutSession, error) {
	ctx, span := s.tracer.Start(ctx, "stripe.create_checkout_session",
		trace.WithAttributes(
			attribute.String("checkout.mode", string(req.Mode)),
			attribute.String("checkout.purpose", req.Metadata[model.MetaPurpose]),
		),
	)
	defer span.End()

	session, err := s.stripeClient.CreateCheckoutSession(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create checkout session")
		return nil, fmt.Errorf("stripe api create checkout session: %w", err)
	}
	return session, nil
}

// matchTier compares in decimal so amounts beyond int64 cents never wrap.
func (s *checkoutServiceImpl) matchTier(amount decimal.Decimal) (int64, bool) {
	cents := amount.Shift(2)
	for _, tier := range s.stripeCfg.SupportTiers {
		if cents.Equal(decimal.NewFromInt(tier)) {
			return tier, true
		}
	}
	return 0, false
}

func (s *checkoutServiceImpl) tierLabels() []string {
	labels := make([]string, 0, len(s.stripeCfg.SupportTiers))
	for _, tier := range s.stripeCfg.SupportTiers {
		labels = append(labels, decimal.NewFromInt(tier).Shift(-2).StringFixed(2))
	}
	return labels
}

// returnURL only accepts site-relative paths so checkout can never bounce a
// buyer to another origin.
func (s *checkoutServiceImpl) returnURL(path, fallback string) string {
	if !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") || strings.ContainsAny(path, "?#") {
		path = fallback
	}
	return s.serviceBaseUrl + path
}
