package handler

import (
	"net/http"

	"creator-playbook/internal/apperr"
	"creator-playbook/internal/dto"
	"creator-playbook/internal/service"

	"github.com/labstack/echo/v4"
)

type PurchaseHandler struct {
	purchaseService service.PurchaseService
}

func NewPurchaseHandler(purchaseService service.PurchaseService) *PurchaseHandler {
	return &PurchaseHandler{
		purchaseService: purchaseService,
	}
}

// Status accepts its lookup keys from the query string on GET and POST, and
// from a JSON body on POST.
func (h *PurchaseHandler) Status(c echo.Context) error {
	ctx := c.Request().Context()

	var q dto.PurchaseStatusQuery
	binder := &echo.DefaultBinder{}
	if err := binder.BindQueryParams(c, &q); err != nil {
		return bindErr(err)
	}
	if c.Request().Method == http.MethodPost && c.Request().ContentLength > 0 {
		var body dto.PurchaseStatusQuery
		if err := binder.BindBody(c, &body); err != nil {
			return bindErr(err)
		}
		if q.SessionID == "" {
			q.SessionID = body.SessionID
		}
		if q.Email == "" {
			q.Email = body.Email
		}
		if q.ItemID == "" {
			q.ItemID = body.ItemID
		}
	}

	var (
		result *dto.PurchaseStatusResponse
		err    error
	)
	switch {
	case q.SessionID != "":
		result, err = h.purchaseService.Status(ctx, q.SessionID)
	case q.Email != "":
		result, err = h.purchaseService.StatusByEmail(ctx, q.Email, q.ItemID)
	default:
		return apperr.Validation("session_id or email is required")
	}
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

func (h *PurchaseHandler) Download(c echo.Context) error {
	ctx := c.Request().Context()

	dl, err := h.purchaseService.Download(ctx, c.QueryParam("session_id"))
	if err != nil {
		return err
	}

	return streamDownload(c, dl)
}
