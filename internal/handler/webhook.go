package handler

import (
	"io"
	"net/http"

	"creator-playbook/internal/service"

	"github.com/labstack/echo/v4"
)

const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	webhookService service.WebhookService
}

func NewWebhookHandler(webhookService service.WebhookService) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhookService,
	}
}

// Stripe verifies against the exact raw bytes, so the body is never bound.
func (h *WebhookHandler) Stripe(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "read body").SetInternal(err)
	}

	if err := h.webhookService.HandleWebhook(ctx, c.Request().Header.Get("Stripe-Signature"), body); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]bool{"received": true})
}
