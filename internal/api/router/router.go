package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sanosuguru/go-event-ticket-booking/internal/api/handler"
	"github.com/sanosuguru/go-event-ticket-booking/internal/api/middleware"
	"github.com/sanosuguru/go-event-ticket-booking/internal/config"
	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/user"
	redisinfra "github.com/sanosuguru/go-event-ticket-booking/internal/infrastructure/redis"
)

// Handlers はルーティング対象のハンドラー一式
type Handlers struct {
	Health  *handler.HealthHandler
	Booking *handler.BookingHandler
	Event   *handler.EventHandler
	Report  *handler.ReportHandler
}

// Options はルーティングの設定
type Options struct {
	JWTSecret string
	// nil の場合は予約作成のレート制限を行わない
	RateLimiter     redisinfra.RateLimiterInterface
	RateLimitPrefix string
	Metrics         config.MetricsConfig
	// nil の場合は promhttp.Handler() を使う
	MetricsHandler http.Handler
}

// Register はすべてのルートを登録する
func Register(e *echo.Echo, h Handlers, opts Options) {
	metricsHandler := opts.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	e.GET("/health", h.Health.Check)
	e.GET("/ready", h.Health.Ready)
	e.GET("/metrics", echo.WrapHandler(metricsHandler), middleware.MetricsBasicAuth(opts.Metrics))

	v1 := e.Group("/api/v1")

	// 認証不要
	v1.GET("/events", h.Event.List)
	v1.GET("/events/:id", h.Event.GetByID)
	v1.GET("/events/:id/availability", h.Event.Availability)
	v1.POST("/events/:id/price", h.Event.Quote)

	authn := middleware.Authenticate(opts.JWTSecret)
	organizerOrAdmin := middleware.RequireRole(user.RoleOrganizer, user.RoleAdmin)
	adminOnly := middleware.RequireRole(user.RoleAdmin)

	createBooking := []echo.MiddlewareFunc{authn}
	if opts.RateLimiter != nil {
		createBooking = append(createBooking, middleware.RateLimit(opts.RateLimiter, opts.RateLimitPrefix))
	}

	// 予約
	v1.POST("/bookings", h.Booking.Create, createBooking...)
	v1.GET("/bookings", h.Booking.List, authn, adminOnly)
	v1.GET("/bookings/me", h.Booking.ListMine, authn)
	v1.GET("/bookings/:id", h.Booking.GetByID, authn)
	v1.PUT("/bookings/:id/confirm", h.Booking.Confirm, authn, adminOnly)
	v1.PUT("/bookings/:id/cancel", h.Booking.Cancel, authn)
	v1.DELETE("/bookings/:id", h.Booking.Delete, authn, adminOnly)
	v1.GET("/users/:user_id/bookings", h.Booking.ListByUser, authn)

	// イベント管理
	v1.POST("/events", h.Event.Create, authn, organizerOrAdmin)
	v1.PUT("/events/:id", h.Event.Update, authn, organizerOrAdmin)
	v1.PUT("/events/:id/status", h.Event.ChangeStatus, authn, organizerOrAdmin)
	v1.DELETE("/events/:id", h.Event.Delete, authn, organizerOrAdmin)

	// 集計
	v1.GET("/events/:id/bookings", h.Report.EventBookings, authn, organizerOrAdmin)
	v1.GET("/events/:id/sales", h.Report.EventSales, authn, organizerOrAdmin)
	v1.GET("/organizers/:organizer_id/analytics", h.Report.OrganizerAnalytics, authn, organizerOrAdmin)
}
