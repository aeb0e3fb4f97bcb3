package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/sanosuguru/go-event-ticket-booking/internal/pkg/metrics"
)

// HeaderIdempotencyKey は予約作成の冪等性キーを受け取るヘッダー
const HeaderIdempotencyKey = "Idempotency-Key"

// bodyLimit は予約・イベントのJSONに対して十分な上限
const bodyLimit = "1M"

// SetupMiddleware は全ルート共通のミドルウェアを外側から順に登録する
// m が nil なら HTTP メトリクスは取らない
func SetupMiddleware(e *echo.Echo, m *metrics.Metrics) {
	// 受け取った X-Request-ID はそのまま使い、無ければ UUID を振る
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(RequestLogger())
	e.Use(middleware.Recover())
	if m != nil {
		e.Use(PrometheusMiddleware(m))
	}
	e.Use(middleware.Secure())
	e.Use(middleware.BodyLimit(bodyLimit))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET, echo.HEAD, echo.PUT, echo.PATCH, echo.POST, echo.DELETE},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			HeaderIdempotencyKey,
		},
		ExposeHeaders: []string{echo.HeaderXRequestID},
	}))
}
