package model

// Checkout session metadata keys. The webhook rebuilds the purchase or
// membership it has to update from these alone.
const (
	MetaPurpose    = "purpose"
	MetaUserID     = "user_id"
	MetaEmail      = "email"
	MetaItemKind   = "item_kind"
	MetaItemID     = "item_id"
	MetaPeriod     = "period"
	MetaPurchaseID = "purchase_id"
)

const (
	PurposeMembership = "membership"
	PurposePurchase   = "purchase"
)

type CustomerDetails struct {
	Email string `json:"email"`
}

// CheckoutSessionPayload is the subset of a checkout.session.* event object
// the webhook reads.
type CheckoutSessionPayload struct {
	ID                string            `json:"id"`
	Mode              string            `json:"mode"` // payment, subscription
	Status            string            `json:"status"`
	PaymentStatus     string            `json:"payment_status"` // paid, unpaid, no_payment_required
	Customer          string            `json:"customer"`
	CustomerEmail     string            `json:"customer_email"`
	CustomerDetails   *CustomerDetails  `json:"customer_details"`
	Subscription      string            `json:"subscription"`
	ClientReferenceID string            `json:"client_reference_id"`
	AmountTotal       int64             `json:"amount_total"`
	Currency          string            `json:"currency"`
	Metadata          map[string]string `json:"metadata"`
}

// BuyerEmail prefers the email collected by checkout over the prefilled one.
func (p *CheckoutSessionPayload) BuyerEmail() string {
	if p.CustomerDetails != nil && p.CustomerDetails.Email != "" {
		return NormalizeEmail(p.CustomerDetails.Email)
	}
	if p.CustomerEmail != "" {
		return NormalizeEmail(p.CustomerEmail)
	}
	return NormalizeEmail(p.Metadata[MetaEmail])
}

type SubscriptionItemPayload struct {
	CurrentPeriodEnd int64 `json:"current_period_end"`
}

// SubscriptionPayload is the subset of a customer.subscription.* event object
// the webhook reads. Newer API versions carry the period end on the items.
type SubscriptionPayload struct {
	ID               string            `json:"id"`
	Customer         string            `json:"customer"`
	Status           string            `json:"status"`
	CurrentPeriodEnd int64             `json:"current_period_end"`
	Metadata         map[string]string `json:"metadata"`
	Items            struct {
		Data []SubscriptionItemPayload `json:"data"`
	} `json:"items"`
}

func (p *SubscriptionPayload) PeriodEnd() int64 {
	if p.CurrentPeriodEnd > 0 {
		return p.CurrentPeriodEnd
	}
	var end int64
	for _, item := range p.Items.Data {
		if item.CurrentPeriodEnd > end {
			end = item.CurrentPeriodEnd
		}
	}
	return end
}
