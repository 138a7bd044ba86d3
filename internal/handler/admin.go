package handler

import (
	"net/http"
	"strconv"

	"creator-playbook/internal/apperr"
	"creator-playbook/internal/dto"
	"creator-playbook/internal/service"

	"github.com/labstack/echo/v4"
)

type AdminHandler struct {
	catalogService      service.CatalogService
	registrationService service.RegistrationService
	purchaseService     service.PurchaseService
}

func NewAdminHandler(
	catalogService service.CatalogService,
	registrationService service.RegistrationService,
	purchaseService service.PurchaseService,
) *AdminHandler {
	return &AdminHandler{
		catalogService:      catalogService,
		registrationService: registrationService,
		purchaseService:     purchaseService,
	}
}

func (h *AdminHandler) ListContent(c echo.Context) error {
	items, err := h.catalogService.AdminList(c.Request().Context(), c.QueryParam("kind"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *AdminHandler) CreateContent(c echo.Context) error {
	var input dto.ContentInput
	if err := c.Bind(&input); err != nil {
		return bindErr(err)
	}

	item, err := h.catalogService.Create(c.Request().Context(), &input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, item)
}

func (h *AdminHandler) UpdateContent(c echo.Context) error {
	var input dto.ContentInput
	if err := c.Bind(&input); err != nil {
		return bindErr(err)
	}

	item, err := h.catalogService.Update(c.Request().Context(), c.Param("id"), &input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, item)
}

func (h *AdminHandler) DeleteContent(c echo.Context) error {
	if err := h.catalogService.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHandler) PublishContent(c echo.Context) error {
	item, err := h.catalogService.Publish(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, item)
}

func (h *AdminHandler) UnpublishContent(c echo.Context) error {
	item, err := h.catalogService.Unpublish(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, item)
}

func (h *AdminHandler) UploadFile(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return apperr.Validation("multipart field \"file\" is required")
	}

	f, err := fh.Open()
	if err != nil {
		return bindErr(err)
	}
	defer f.Close()

	item, err := h.catalogService.UploadFile(c.Request().Context(), c.Param("id"), fh.Filename, fh.Header.Get(echo.HeaderContentType), fh.Size, f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, item)
}

// ListRegistrations reports the event total in X-Total-Count when filtered by item.
func (h *AdminHandler) ListRegistrations(c echo.Context) error {
	ctx := c.Request().Context()
	itemID := c.QueryParam("item_id")

	list, err := h.registrationService.List(ctx, itemID, limitParam(c))
	if err != nil {
		return err
	}
	if itemID != "" {
		total, err := h.registrationService.Count(ctx, itemID)
		if err != nil {
			return err
		}
		c.Response().Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	}
	return c.JSON(http.StatusOK, list)
}

func (h *AdminHandler) ListPurchases(c echo.Context) error {
	list, err := h.purchaseService.List(c.Request().Context(), limitParam(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}
