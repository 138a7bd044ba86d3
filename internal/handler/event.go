package handler

import (
	"net/http"

	"creator-playbook/internal/dto"
	"creator-playbook/internal/service"

	"github.com/labstack/echo/v4"
)

type EventHandler struct {
	registrationService service.RegistrationService
}

func NewEventHandler(registrationService service.RegistrationService) *EventHandler {
	return &EventHandler{
		registrationService: registrationService,
	}
}

func (h *EventHandler) Register(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return bindErr(err)
	}

	result, err := h.registrationService.Register(ctx, c.Param("id"), &req, c.RealIP())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}
