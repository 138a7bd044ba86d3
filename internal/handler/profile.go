package handler

import (
	"net/http"

	"creator-playbook/internal/apperr"
	"creator-playbook/internal/middleware"
	"creator-playbook/internal/service"

	"github.com/labstack/echo/v4"
)

type ProfileHandler struct {
	profileService service.ProfileService
}

func NewProfileHandler(profileService service.ProfileService) *ProfileHandler {
	return &ProfileHandler{
		profileService: profileService,
	}
}

func (h *ProfileHandler) Me(c echo.Context) error {
	ctx := c.Request().Context()

	user, ok := middleware.CurrentUser(c)
	if !ok {
		return apperr.AuthenticationRequired("sign in to continue")
	}

	me, err := h.profileService.Me(ctx, user.ID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, me)
}
