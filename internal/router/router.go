package router // package router wires handlers and middleware into the Echo instance

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/hotel-reservation/internal/config"
	"github.com/iliyamo/hotel-reservation/internal/handler"
	"github.com/iliyamo/hotel-reservation/internal/middleware"
)

// Deps is everything the router mounts.  Dev is nil outside sandbox runs;
// Redis may be nil, which disables rate limiting and the catalog cache.
type Deps struct {
	Cfg       config.Config
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
	Redis     *redis.Client
	Log       *logrus.Logger

	Auth    *handler.AuthHandler
	Rooms   *handler.RoomHandler
	Payment *handler.PaymentHandler
	IMS     *handler.IMSHandler
	Dev     *handler.DevHandler
}

// New builds the HTTP server: request ids, tracing, access logging, panic
// recovery, a body limit and CORS for the public site and the dashboard,
// then every route group.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler(d.Log)

	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.Tracing("hotel-api"))
	e.Use(middleware.RequestLogger(d.Log))
	e.Use(echomw.Recover())
	e.Use(echomw.BodyLimit("1M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: allowedOrigins(d.Cfg),
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	RegisterRoutes(e)
	limit := middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Log)
	RegisterAuth(e, d.Auth, d.Cfg.JWTSecret, limit)
	RegisterRooms(e, d.Rooms, limit, middleware.NewRedisCache(d.Cache, d.Redis, d.Log))
	RegisterPayment(e, d.Payment, d.Cfg.JWTSecret, limit)
	RegisterIMS(e, d.IMS, d.Auth, d.Cfg.JWTSecret, limit)
	if d.Dev != nil {
		RegisterDev(e, d.Dev)
	}
	return e
}

func allowedOrigins(cfg config.Config) []string {
	origins := []string{cfg.FrontendURL}
	if cfg.IMSURL != "" {
		origins = append(origins, cfg.IMSURL)
	}
	return origins
}

// RegisterRoutes mounts the unauthenticated health checks.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
	e.GET("/api/health", handler.Health)
}

// RegisterAuth mounts guest signup, login, refresh, logout and the account
// pages under /api/auth.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/api/auth", limit)
	g.POST("/signup", a.Signup)
	g.POST("/register", a.Signup)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout, middleware.OptionalJWT(jwtSecret))

	auth := middleware.JWTAuth(jwtSecret)
	g.GET("/me", a.Me, auth)
	g.PUT("/profile", a.UpdateProfile, auth)
	g.PUT("/change-password", a.ChangePassword, auth)
	g.GET("/stats", a.Stats, auth)
}

// RegisterRooms mounts the public catalog.  Catalog reads are cached;
// availability is always computed live.
func RegisterRooms(e *echo.Echo, h *handler.RoomHandler, limit, cache echo.MiddlewareFunc) {
	g := e.Group("/api/rooms", limit)
	g.GET("", h.List, cache)
	g.GET("/available", h.Available)
	g.GET("/:slug", h.Get, cache)
	g.GET("/:slug/check-availability", h.CheckAvailability)
}

// RegisterPayment mounts checkout, verification and lookups under
// /api/payment.  The webhook sits outside the rate limiter so gateway
// retries are never throttled.
func RegisterPayment(e *echo.Echo, h *handler.PaymentHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	e.POST("/api/payment/webhook", h.Webhook)

	g := e.Group("/api/payment", limit)
	g.POST("/create-checkout", h.CreateCheckout, middleware.JWTAuth(jwtSecret))
	g.GET("/verify/:referenceCode", h.Verify)
	g.GET("/booking/:referenceCode", h.Booking)
	g.GET("/my-bookings", h.MyBookings, middleware.JWTAuth(jwtSecret))
	g.GET("/cleanup-stale-bookings", h.CleanupStale)
}
