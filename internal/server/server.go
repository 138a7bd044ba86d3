package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"creator-playbook/internal/config"
	"creator-playbook/internal/handler"
	"creator-playbook/internal/logger"
	playbookmw "creator-playbook/internal/middleware"
	"creator-playbook/internal/ratelimit"
	"creator-playbook/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// Services is everything the HTTP surface calls into.
type Services struct {
	Checkout     service.CheckoutService
	Webhook      service.WebhookService
	Purchase     service.PurchaseService
	Catalog      service.CatalogService
	Unlock       service.UnlockService
	Registration service.RegistrationService
	Profile      service.ProfileService
}

// Limiters throttle the public write endpoints per client IP.
type Limiters struct {
	Registration ratelimit.Limiter
	Unlock       ratelimit.Limiter
}

type Server struct {
	echo *echo.Echo
	auth *playbookmw.Authenticator

	limiters Limiters

	contentHandler  *handler.ContentHandler
	checkoutHandler *handler.CheckoutHandler
	purchaseHandler *handler.PurchaseHandler
	webhookHandler  *handler.WebhookHandler
	eventHandler    *handler.EventHandler
	profileHandler  *handler.ProfileHandler
	adminHandler    *handler.AdminHandler
}

func NewServer(cfg *config.Config, services Services, limiters Limiters) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadHeaderTimeout = 10 * time.Second
	e.HTTPErrorHandler = handler.NewHTTPErrorHandler(cfg.BaseURL + "/signin")
	e.IPExtractor = ipExtractor(cfg.HTTP.TrustedProxies)

	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Get().Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID),
				zap.String("remote_ip", v.RemoteIP),
			)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.HTTP.AllowedOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(middleware.BodyLimit("25M"))

	s := &Server{
		echo:     e,
		auth:     playbookmw.NewAuthenticator(cfg.Supabase.JWTSecret, cfg.Supabase.URL, services.Profile),
		limiters: limiters,

		contentHandler:  handler.NewContentHandler(services.Catalog, services.Unlock),
		checkoutHandler: handler.NewCheckoutHandler(services.Checkout),
		purchaseHandler: handler.NewPurchaseHandler(services.Purchase),
		webhookHandler:  handler.NewWebhookHandler(services.Webhook),
		eventHandler:    handler.NewEventHandler(services.Registration),
		profileHandler:  handler.NewProfileHandler(services.Profile),
		adminHandler:    handler.NewAdminHandler(services.Catalog, services.Registration, services.Purchase),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// -------- stripe --------
	api.POST("/stripe/webhook", s.webhookHandler.Stripe)

	public := api.Group("", s.auth.OptionalAuth())

	// -------- content --------
	public.GET("/content", s.contentHandler.List)
	public.GET("/content/:slug", s.contentHandler.Get)
	public.GET("/content/:slug/download", s.contentHandler.Download)
	public.GET("/playbook/current", s.contentHandler.CurrentPlaybook)

	unlockLimit := playbookmw.RateLimit("tools.unlock", s.limiters.Unlock)
	public.POST("/tools/unlock", s.contentHandler.Unlock, unlockLimit)
	public.GET("/tools/unlock", s.contentHandler.IsUnlocked)

	public.POST("/events/:id/register", s.eventHandler.Register,
		playbookmw.RateLimit("events.register", s.limiters.Registration))

	// -------- checkout --------
	public.POST("/checkout/subscription", s.checkoutHandler.Subscribe, s.auth.RequireAuth())
	public.POST("/checkout/support", s.checkoutHandler.Support)
	public.GET("/checkout/support/tiers", s.checkoutHandler.SupportTiers)
	public.POST("/checkout/volume", s.checkoutHandler.Volume)
	public.POST("/checkout/playbook", s.checkoutHandler.Playbook)

	// -------- purchases --------
	api.GET("/purchases/status", s.purchaseHandler.Status)
	api.POST("/purchases/status", s.purchaseHandler.Status)
	api.GET("/purchases/download", s.purchaseHandler.Download)

	api.GET("/me", s.profileHandler.Me, s.auth.RequireAuth())

	// -------- admin --------
	admin := api.Group("/admin", s.auth.RequireAuth(), playbookmw.RequireAdmin())
	admin.GET("/content", s.adminHandler.ListContent)
	admin.POST("/content", s.adminHandler.CreateContent)
	admin.PUT("/content/:id", s.adminHandler.UpdateContent)
	admin.DELETE("/content/:id", s.adminHandler.DeleteContent)
	admin.POST("/content/:id/publish", s.adminHandler.PublishContent)
	admin.POST("/content/:id/unpublish", s.adminHandler.UnpublishContent)
	admin.POST("/content/:id/file", s.adminHandler.UploadFile)
	admin.GET("/registrations", s.adminHandler.ListRegistrations)
	admin.GET("/purchases", s.adminHandler.ListPurchases)
}

// ServeHTTP lets tests drive the router without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func ipExtractor(trusted []string) echo.IPExtractor {
	if len(trusted) == 0 {
		return echo.ExtractIPDirect()
	}

	opts := make([]echo.TrustOption, 0, len(trusted))
	for _, cidr := range trusted {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			logger.Get().Warn("ignoring trusted proxy", zap.String("cidr", cidr), zap.Error(err))
			continue
		}
		opts = append(opts, echo.TrustIPRange(ipNet))
	}
	return echo.ExtractIPFromXFFHeader(opts...)
}
