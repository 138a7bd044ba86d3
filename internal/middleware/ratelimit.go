package middleware

import (
	"creator-playbook/internal/apperr"
	"creator-playbook/internal/logger"
	"creator-playbook/internal/ratelimit"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// RateLimit throttles a route per client IP.
func RateLimit(name string, limiter ratelimit.Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if !limiter.Allow(ip) {
				logger.Get().Info("rate limited",
					zap.String("route", name),
					zap.String("ip", ip),
				)
				return apperr.RateLimited()
			}
			return next(c)
		}
	}
}
