package testutil

import (
	"context"
	"fmt"
	"sync"

	"creator-playbook/internal/apperr"
	"creator-playbook/internal/client"
)

// FakeStripe records checkout requests and serves canned sessions.
type FakeStripe struct {
	mu            sync.Mutex
	seq           int
	Requests      []*client.CheckoutRequest
	Sessions      map[string]*client.CheckoutSession
	Subscriptions map[string]*client.Subscription
	Err           error
}

func NewFakeStripe() *FakeStripe {
	return &FakeStripe{
		Sessions:      map[string]*client.CheckoutSession{},
		Subscriptions: map[string]*client.Subscription{},
	}
}

func (f *FakeStripe) CreateCheckoutSession(ctx context.Context, req *client.CheckoutRequest) (*client.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	f.seq++
	f.Requests = append(f.Requests, req)

	id := fmt.Sprintf("cs_test_%d", f.seq)
	s := &client.CheckoutSession{
		ID:            id,
		URL:           "https://checkout.stripe.com/c/pay/" + id,
		Status:        "open",
		PaymentStatus: "unpaid",
		CustomerID:    req.CustomerID,
		Metadata:      req.Metadata,
	}
	f.Sessions[id] = s
	return s, nil
}

func (f *FakeStripe) GetCheckoutSession(ctx context.Context, sessionID string) (*client.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	s, ok := f.Sessions[sessionID]
	if !ok {
		return nil, apperr.Upstream("stripe", "resource_missing", "", fmt.Errorf("no such session %s", sessionID))
	}
	return s, nil
}

func (f *FakeStripe) GetSubscription(ctx context.Context, subscriptionID string) (*client.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	sub, ok := f.Subscriptions[subscriptionID]
	if !ok {
		return nil, apperr.Upstream("stripe", "resource_missing", "", fmt.Errorf("no such subscription %s", subscriptionID))
	}
	return sub, nil
}

// SetPaymentStatus flips a stored session, as the processor would after payment.
func (f *FakeStripe) SetPaymentStatus(sessionID, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.Sessions[sessionID]; ok {
		s.PaymentStatus = status
	}
}

func (f *FakeStripe) LastRequest() *client.CheckoutRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Requests) == 0 {
		return nil
	}
	return f.Requests[len(f.Requests)-1]
}

// FakeMail records sent mail; Err makes every call fail.
type FakeMail struct {
	mu       sync.Mutex
	Sent     []*client.Email
	Contacts []string
	Err      error
}

func (f *FakeMail) Send(ctx context.Context, email *client.Email) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Sent = append(f.Sent, email)
	return nil
}

func (f *FakeMail) AddContact(ctx context.Context, email, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Contacts = append(f.Contacts, email)
	return nil
}
