package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"creator-playbook/internal/apperr"
	"creator-playbook/internal/config"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"
)

type StripeClient interface {
	CreateCheckoutSession(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
}

type CheckoutMode string

const (
	CheckoutModePayment      CheckoutMode = "payment"
	CheckoutModeSubscription CheckoutMode = "subscription"
)

type CheckoutRequest struct {
	Mode CheckoutMode

	// Subscription mode bills a recurring price; payment mode an inline amount.
	PriceID     string
	AmountCents int64
	Currency    string
	ProductName string

	CustomerID        string
	CustomerEmail     string
	ClientReferenceID string

	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

type CheckoutSession struct {
	ID             string
	URL            string
	Status         string
	PaymentStatus  string
	CustomerID     string
	SubscriptionID string
	Metadata       map[string]string
}

type Subscription struct {
	ID               string
	CustomerID       string
	Status           string
	CurrentPeriodEnd *time.Time
}

type stripeClientImpl struct {
	sessions      session.Client
	subscriptions subscription.Client
}

func NewStripeClient(cfg *config.Stripe) StripeClient {
	backend := stripe.GetBackend(stripe.APIBackend)
	return &stripeClientImpl{
		sessions:      session.Client{B: backend, Key: cfg.SecretKey},
		subscriptions: subscription.Client{B: backend, Key: cfg.SecretKey},
	}
}

func (c *stripeClientImpl) CreateCheckoutSession(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(req.Mode)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.Context = ctx

	switch req.Mode {
	case CheckoutModeSubscription:
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		}
		// copy metadata onto the subscription so lifecycle events carry the buyer
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: req.Metadata,
		}
	case CheckoutModePayment:
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(req.Currency),
					UnitAmount: stripe.Int64(req.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.ProductName),
					},
				},
				Quantity: stripe.Int64(1),
			},
		}
	default:
		return nil, fmt.Errorf("unknown checkout mode %q", req.Mode)
	}

	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	} else if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	if req.ClientReferenceID != "" {
		params.ClientReferenceID = stripe.String(req.ClientReferenceID)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	s, err := c.sessions.New(params)
	if err != nil {
		return nil, upstreamError(err)
	}

	return toCheckoutSession(s), nil
}

func (c *stripeClientImpl) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := c.sessions.Get(sessionID, params)
	if err != nil {
		return nil, upstreamError(err)
	}

	return toCheckoutSession(s), nil
}

func (c *stripeClientImpl) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := c.subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, upstreamError(err)
	}

	out := &Subscription{
		ID:     sub.ID,
		Status: string(sub.Status),
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil {
		var end int64
		for _, item := range sub.Items.Data {
			if item.CurrentPeriodEnd > end {
				end = item.CurrentPeriodEnd
			}
		}
		if end > 0 {
			t := time.Unix(end, 0).UTC()
			out.CurrentPeriodEnd = &t
		}
	}

	return out, nil
}

func toCheckoutSession(s *stripe.CheckoutSession) *CheckoutSession {
	out := &CheckoutSession{
		ID:            s.ID,
		URL:           s.URL,
		Status:        string(s.Status),
		PaymentStatus: string(s.PaymentStatus),
		Metadata:      s.Metadata,
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.Subscription != nil {
		out.SubscriptionID = s.Subscription.ID
	}
	return out
}

func upstreamError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return apperr.Upstream("stripe", string(stripeErr.Code), stripeErr.RequestID, err)
	}
	return apperr.Upstream("stripe", "", "", err)
}

// WebhookVerifier checks the Stripe-Signature header against the endpoint secret.
type WebhookVerifier struct {
	secret string
}

func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret}
}

func (v *WebhookVerifier) Verify(payload []byte, signatureHeader string) (stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, apperr.InvalidSignature(err)
	}
	return event, nil
}
