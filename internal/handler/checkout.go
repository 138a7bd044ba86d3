package handler

import (
	"net/http"

	"creator-playbook/internal/dto"
	"creator-playbook/internal/service"

	"github.com/labstack/echo/v4"
)

type CheckoutHandler struct {
	checkoutService service.CheckoutService
}

func NewCheckoutHandler(checkoutService service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkoutService,
	}
}

func (h *CheckoutHandler) Subscribe(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.SubscribeRequest
	if err := c.Bind(&req); err != nil {
		return bindErr(err)
	}

	result, err := h.checkoutService.Subscribe(ctx, buyer(c, ""), req.SuccessPath)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

func (h *CheckoutHandler) Support(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.SupportRequest
	if err := c.Bind(&req); err != nil {
		return bindErr(err)
	}

	result, err := h.checkoutService.Support(ctx, buyer(c, req.Email), req.Amount)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

func (h *CheckoutHandler) SupportTiers(c echo.Context) error {
	return c.JSON(http.StatusOK, h.checkoutService.SupportTiers())
}

func (h *CheckoutHandler) Volume(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.VolumeCheckoutRequest
	if err := c.Bind(&req); err != nil {
		return bindErr(err)
	}

	result, err := h.checkoutService.BuyVolume(ctx, buyer(c, req.Email), req.VolumeID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

func (h *CheckoutHandler) Playbook(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.PlaybookCheckoutRequest
	if err := c.Bind(&req); err != nil {
		return bindErr(err)
	}

	result, err := h.checkoutService.BuyPlaybook(ctx, buyer(c, req.Email))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}
