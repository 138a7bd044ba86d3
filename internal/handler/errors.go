package handler

import (
	"errors"
	"net/http"

	"creator-playbook/internal/apperr"
	"creator-playbook/internal/dto"
	"creator-playbook/internal/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// NewHTTPErrorHandler renders every error as dto.ErrorResponse. Upstream
// failures are logged in full and shown to the caller as a generic message.
func NewHTTPErrorHandler(signInURL string) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := render(err, signInURL)
		logError(c, status, err)

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			logger.Get().Error("write error response", zap.Error(err))
		}
	}
}

func render(err error, signInURL string) (int, *dto.ErrorResponse) {
	if appErr, ok := apperr.As(err); ok {
		body := &dto.ErrorResponse{
			Error: appErr.PublicMessage(),
			Code:  string(appErr.Kind),
		}
		if appErr.Kind == apperr.KindAuthenticationRequired {
			body.Redirect = signInURL
		}
		return appErr.HTTPStatus(), body
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		msg := http.StatusText(httpErr.Code)
		if m, ok := httpErr.Message.(string); ok && httpErr.Code < 500 {
			msg = m
		}
		return httpErr.Code, &dto.ErrorResponse{Error: msg, Code: codeForStatus(httpErr.Code)}
	}

	return http.StatusInternalServerError, &dto.ErrorResponse{
		Error: "something went wrong, please try again later",
		Code:  "internal_error",
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusNotFound:
		return string(apperr.KindNotFound)
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusRequestEntityTooLarge:
		return "payload_too_large"
	case http.StatusUnauthorized:
		return string(apperr.KindUnauthorized)
	}
	if status >= 500 {
		return "internal_error"
	}
	return string(apperr.KindValidation)
}

func logError(c echo.Context, status int, err error) {
	fields := []zap.Field{
		zap.String("method", c.Request().Method),
		zap.String("path", c.Path()),
		zap.Int("status", status),
		zap.Error(err),
	}

	appErr, ok := apperr.As(err)
	switch {
	case ok && appErr.Kind == apperr.KindUpstream:
		fields = append(fields,
			zap.String("provider", appErr.Provider),
			zap.String("provider_code", appErr.Code),
			zap.String("request_id", appErr.RequestID),
		)
		logger.Get().Error("upstream provider error", fields...)
	case status >= 500:
		logger.Get().Error("request failed", fields...)
	default:
		logger.Get().Debug("request rejected", fields...)
	}
}
