package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type ErrorResponse struct {
	Error    string `json:"error"`
	Code     string `json:"code"`
	Redirect string `json:"redirect,omitempty"`
}

// -------- checkout --------

type SubscribeRequest struct {
	SuccessPath string `json:"success_path"`
}

type SupportRequest struct {
	Email string `json:"email"`
	// Amount is in major units, e.g. "25" or 25.00.
	Amount decimal.Decimal `json:"amount"`
	Name   string          `json:"name"`
}

type VolumeCheckoutRequest struct {
	Email    string `json:"email"`
	VolumeID string `json:"volume_id"`
}

type PlaybookCheckoutRequest struct {
	Email string `json:"email"`
}

type CheckoutResponse struct {
	SessionID  string `json:"session_id"`
	URL        string `json:"url"`
	PurchaseID string `json:"purchase_id,omitempty"`
}

type SupportTiersResponse struct {
	Currency string   `json:"currency"`
	Tiers    []string `json:"tiers"`
}

// -------- purchases --------

type PurchaseStatusQuery struct {
	SessionID string `query:"session_id" json:"session_id"`
	Email     string `query:"email" json:"email"`
	ItemID    string `query:"item_id" json:"item_id"`
}

type PurchaseStatusResponse struct {
	Paid      bool   `json:"paid"`
	Status    string `json:"status"`
	Email     string `json:"email"`
	SessionID string `json:"session_id"`
	ItemKind  string `json:"item_kind,omitempty"`
	ItemID    string `json:"item_id,omitempty"`
	Period    string `json:"period,omitempty"`
}

type PurchaseResponse struct {
	ID            string     `json:"id"`
	BuyerEmail    string     `json:"buyer_email"`
	UserID        string     `json:"user_id,omitempty"`
	ItemKind      string     `json:"item_kind"`
	ItemID        string     `json:"item_id"`
	Period        string     `json:"period,omitempty"`
	SessionID     string     `json:"session_id"`
	Status        string     `json:"status"`
	Amount        string     `json:"amount"`
	Currency      string     `json:"currency"`
	DownloadCount int64      `json:"download_count"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// -------- content --------

type ContentQuery struct {
	Kind  string `query:"kind"`
	Email string `query:"email"`
}

type ContentResponse struct {
	ID          string     `json:"id"`
	Slug        string     `json:"slug"`
	Kind        string     `json:"kind"`
	Title       string     `json:"title"`
	Summary     string     `json:"summary"`
	FreePreview bool       `json:"free_preview"`
	Gating      string     `json:"gating"`
	Price       string     `json:"price,omitempty"`
	Period      string     `json:"period,omitempty"`
	Tags        []string   `json:"tags"`
	PublishedAt *time.Time `json:"published_at,omitempty"`

	Access string `json:"access"`
	// Only populated when access is granted.
	VideoURL    string `json:"video_url,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
}

type ContentInput struct {
	Slug        string   `json:"slug"`
	Kind        string   `json:"kind"`
	Title       string   `json:"title"`
	Summary     string   `json:"summary"`
	FreePreview bool     `json:"free_preview"`
	Gating      string   `json:"gating"`
	PriceCents  int64    `json:"price_cents"`
	Period      string   `json:"period"`
	VideoURL    string   `json:"video_url"`
	Tags        []string `json:"tags"`
}

type AdminContentResponse struct {
	ID          string     `json:"id"`
	Slug        string     `json:"slug"`
	Kind        string     `json:"kind"`
	Title       string     `json:"title"`
	Summary     string     `json:"summary"`
	Status      string     `json:"status"`
	FreePreview bool       `json:"free_preview"`
	Gating      string     `json:"gating"`
	PriceCents  int64      `json:"price_cents"`
	Period      string     `json:"period,omitempty"`
	FileKey     string     `json:"file_key,omitempty"`
	FileName    string     `json:"file_name,omitempty"`
	VideoURL    string     `json:"video_url,omitempty"`
	Tags        []string   `json:"tags"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// -------- unlock --------

type UnlockRequest struct {
	Email  string `json:"email" query:"email"`
	ToolID string `json:"toolId" query:"toolId"`
}

type UnlockResponse struct {
	Unlocked bool   `json:"unlocked"`
	ToolID   string `json:"toolId"`
}

// -------- events --------

type RegisterRequest struct {
	Name    string `json:"name" form:"name"`
	Country string `json:"country" form:"country"`
	Email   string `json:"email" form:"email"`
	// Website is a honeypot; humans never see the field.
	Website string `json:"website" form:"website"`
}

// Delivery outcomes of best-effort side effects.
const (
	DeliverySent    = "sent"
	DeliverySkipped = "skipped"
	DeliveryFailed  = "failed"
)

type RegisterResponse struct {
	ID           string `json:"id"`
	Notification string `json:"notification"`
	Confirmation string `json:"confirmation"`
	Audience     string `json:"audience"`
}

type RegistrationResponse struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"item_id"`
	Name      string    `json:"name"`
	Country   string    `json:"country"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// -------- profile --------

type MembershipResponse struct {
	Status           string     `json:"status"`
	Active           bool       `json:"active"`
	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty"`
}

type MeResponse struct {
	ID         string              `json:"id"`
	Email      string              `json:"email"`
	Role       string              `json:"role"`
	Membership *MembershipResponse `json:"membership,omitempty"`
}
