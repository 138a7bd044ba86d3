package handler

import (
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"creator-playbook/internal/access"
	"creator-playbook/internal/middleware"
	"creator-playbook/internal/service"

	"github.com/labstack/echo/v4"
)

func viewer(c echo.Context, suppliedEmail string) service.Viewer {
	v := service.Viewer{SuppliedEmail: suppliedEmail}
	if user, ok := middleware.CurrentUser(c); ok {
		v.UserID = user.ID
		v.Email = user.Email
		v.Role = user.Role
	}
	return v
}

func buyer(c echo.Context, suppliedEmail string) service.Buyer {
	b := service.Buyer{Email: suppliedEmail}
	if user, ok := middleware.CurrentUser(c); ok {
		b.UserID = user.ID
		b.Email = access.ResolveEmail(user.Email, suppliedEmail)
	}
	return b
}

func limitParam(c echo.Context) int {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	return limit
}

func bindErr(err error) error {
	return echo.NewHTTPError(http.StatusBadRequest, "invalid req body").SetInternal(err)
}

// streamDownload sends a gated file. Nothing downstream may cache it.
func streamDownload(c echo.Context, dl *service.Download) error {
	defer dl.Body.Close()

	h := c.Response().Header()
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": dl.FileName})
	if disposition == "" {
		disposition = "attachment"
	}
	h.Set(echo.HeaderContentDisposition, disposition)
	h.Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
	h.Set(echo.HeaderXContentTypeOptions, "nosniff")
	if dl.Size > 0 {
		h.Set(echo.HeaderContentLength, fmt.Sprint(dl.Size))
	}

	contentType := dl.ContentType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	return c.Stream(http.StatusOK, contentType, dl.Body)
}
