package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"creator-playbook/internal/apperr"
	"creator-playbook/internal/client"
	"creator-playbook/internal/dto"
	"creator-playbook/internal/logger"
	"creator-playbook/internal/model"
	"creator-playbook/internal/repository"
	"creator-playbook/internal/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Download is an open file ready to stream. The caller closes Body.
type Download struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
	FileName    string
}

type PurchaseService interface {
	Status(ctx context.Context, sessionID string) (*dto.PurchaseStatusResponse, error)
	StatusByEmail(ctx context.Context, email, itemID string) (*dto.PurchaseStatusResponse, error)
	Download(ctx context.Context, sessionID string) (*Download, error)
	List(ctx context.Context, limit int) ([]*dto.PurchaseResponse, error)
}

type purchaseServiceImpl struct {
	stripeClient client.StripeClient
	purchaseRepo repository.PurchaseRepository
	contentRepo  repository.ContentRepository
	fileStore    client.FileStore
	now          Clock
	downloads    metric.Int64Counter
}

func NewPurchaseService(
	stripeClient client.StripeClient,
	purchaseRepo repository.PurchaseRepository,
	contentRepo repository.ContentRepository,
	fileStore client.FileStore,
	now Clock,
) PurchaseService {
	downloads, _ := telemetry.Meter("purchase").Int64Counter("downloads")
	return &purchaseServiceImpl{
		stripeClient: stripeClient,
		purchaseRepo: purchaseRepo,
		contentRepo:  contentRepo,
		fileStore:    fileStore,
		now:          clockOrNow(now),
		downloads:    downloads,
	}
}

// Status reports a purchase by checkout session. A pending row is checked
// against the processor once, so a buyer who beats the webhook back to the
// site still sees the payment.
func (s *purchaseServiceImpl) Status(ctx context.Context, sessionID string) (*dto.PurchaseStatusResponse, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, apperr.Validation("session_id is required")
	}

	purchase, err := s.purchaseRepo.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, notFound(err, "purchase")
	}

	if purchase.Status == model.PurchasePending && s.stripeClient != nil {
		purchase = s.verifyPending(ctx, purchase)
	}

	return toStatusResponse(purchase), nil
}

func (s *purchaseServiceImpl) verifyPending(ctx context.Context, purchase *model.Purchase) *model.Purchase {
	session, err := s.stripeClient.GetCheckoutSession(ctx, purchase.SessionID)
	if err != nil {
		logger.Get().Warn("verify pending purchase",
			zap.String("session_id", purchase.SessionID),
			zap.Error(err),
		)
		return purchase
	}
	if session.PaymentStatus != "paid" && session.PaymentStatus != "no_payment_required" {
		return purchase
	}

	paid, err := s.purchaseRepo.MarkPaid(ctx, purchase.SessionID, s.now().UTC())
	if err != nil {
		logger.Get().Warn("mark verified purchase paid",
			zap.String("session_id", purchase.SessionID),
			zap.Error(err),
		)
		return purchase
	}

	logger.Get().Info("purchase paid by status check", zap.String("session_id", purchase.SessionID))
	return paid
}

func (s *purchaseServiceImpl) StatusByEmail(ctx context.Context, email, itemID string) (*dto.PurchaseStatusResponse, error) {
	email, err := validateEmail(email)
	if err != nil {
		return nil, err
	}

	purchase, err := s.purchaseRepo.FindLatestByEmail(ctx, email, strings.TrimSpace(itemID))
	if err != nil {
		return nil, notFound(err, "purchase")
	}

	return toStatusResponse(purchase), nil
}

// Download re-reads the purchase on every call and never trusts anything
// the client holds.
func (s *purchaseServiceImpl) Download(ctx context.Context, sessionID string) (*Download, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, apperr.Unauthorized("a paid checkout session is required")
	}

	purchase, err := s.purchaseRepo.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, notFound(err, "purchase")
	}
	if purchase.Status != model.PurchasePaid {
		return nil, apperr.Unauthorized("purchase is not paid")
	}
	if purchase.ItemKind.Monthly() && purchase.Period != model.PeriodOf(s.now()) {
		return nil, apperr.Unauthorized("purchase is for a previous month")
	}
	if purchase.ItemKind == model.ItemSupport {
		return nil, apperr.NotFound("file")
	}

	item, err := s.contentRepo.FindByID(ctx, purchase.ItemID)
	if err != nil {
		return nil, notFound(err, "file")
	}

	download, err := openItemFile(ctx, s.fileStore, item)
	if err != nil {
		return nil, err
	}

	if err := s.purchaseRepo.IncrementDownloads(ctx, purchase.ID); err != nil {
		download.Body.Close()
		return nil, fmt.Errorf("count download: %w", err)
	}
	if s.downloads != nil {
		s.downloads.Add(ctx, 1, metric.WithAttributes(attribute.String("item.kind", string(purchase.ItemKind))))
	}

	logger.Get().Info("purchase downloaded",
		zap.String("purchase_id", purchase.ID),
		zap.String("item_id", item.ID),
	)
	return download, nil
}

func (s *purchaseServiceImpl) List(ctx context.Context, limit int) ([]*dto.PurchaseResponse, error) {
	purchases, err := s.purchaseRepo.List(ctx, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}

	out := make([]*dto.PurchaseResponse, len(purchases))
	for i, p := range purchases {
		out[i] = &dto.PurchaseResponse{
			ID:            p.ID,
			BuyerEmail:    p.BuyerEmail,
			UserID:        p.UserID,
			ItemKind:      string(p.ItemKind),
			ItemID:        p.ItemID,
			Period:        p.Period,
			SessionID:     p.SessionID,
			Status:        string(p.Status),
			Amount:        formatCents(p.AmountCents),
			Currency:      p.Currency,
			DownloadCount: p.DownloadCount,
			PaidAt:        p.PaidAt,
			CreatedAt:     p.CreatedAt,
		}
	}
	return out, nil
}

func openItemFile(ctx context.Context, store client.FileStore, item *model.ContentItem) (*Download, error) {
	if item.FileKey == "" {
		return nil, apperr.NotFound("file")
	}

	f, err := store.Open(ctx, item.FileKey)
	if err != nil {
		if errors.Is(err, client.ErrFileNotFound) {
			return nil, apperr.NotFound("file")
		}
		return nil, fmt.Errorf("open file %s: %w", item.FileKey, err)
	}

	contentType := item.ContentType
	if contentType == "" {
		contentType = f.ContentType
	}
	fileName := item.FileName
	if fileName == "" {
		fileName = item.Slug
	}

	return &Download{
		Body:        f.Body,
		Size:        f.Size,
		ContentType: contentType,
		FileName:    fileName,
	}, nil
}

func toStatusResponse(p *model.Purchase) *dto.PurchaseStatusResponse {
	return &dto.PurchaseStatusResponse{
		Paid:      p.Status == model.PurchasePaid,
		Status:    string(p.Status),
		Email:     p.BuyerEmail,
		SessionID: p.SessionID,
		ItemKind:  string(p.ItemKind),
		ItemID:    p.ItemID,
		Period:    p.Period,
	}
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}
