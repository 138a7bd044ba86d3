package handler

import (
	"net/http"

	"creator-playbook/internal/dto"
	"creator-playbook/internal/service"

	"github.com/labstack/echo/v4"
)

type ContentHandler struct {
	catalogService service.CatalogService
	unlockService  service.UnlockService
}

func NewContentHandler(catalogService service.CatalogService, unlockService service.UnlockService) *ContentHandler {
	return &ContentHandler{
		catalogService: catalogService,
		unlockService:  unlockService,
	}
}

func (h *ContentHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	var q dto.ContentQuery
	if err := c.Bind(&q); err != nil {
		return bindErr(err)
	}

	items, err := h.catalogService.List(ctx, viewer(c, q.Email), q.Kind)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, items)
}

func (h *ContentHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	item, err := h.catalogService.Get(ctx, viewer(c, c.QueryParam("email")), c.Param("slug"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, item)
}

func (h *ContentHandler) CurrentPlaybook(c echo.Context) error {
	ctx := c.Request().Context()

	item, err := h.catalogService.CurrentPlaybook(ctx, viewer(c, c.QueryParam("email")))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, item)
}

func (h *ContentHandler) Download(c echo.Context) error {
	ctx := c.Request().Context()

	dl, err := h.catalogService.DownloadItem(ctx, viewer(c, c.QueryParam("email")), c.Param("slug"))
	if err != nil {
		return err
	}

	return streamDownload(c, dl)
}

func (h *ContentHandler) Unlock(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.UnlockRequest
	if err := c.Bind(&req); err != nil {
		return bindErr(err)
	}

	resp, err := h.unlockService.Unlock(ctx, req.Email, req.ToolID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *ContentHandler) IsUnlocked(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.UnlockRequest
	if err := c.Bind(&req); err != nil {
		return bindErr(err)
	}

	resp, err := h.unlockService.IsUnlocked(ctx, req.Email, req.ToolID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}
