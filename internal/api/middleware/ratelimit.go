package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	redisinfra "github.com/sanosuguru/go-event-ticket-booking/internal/infrastructure/redis"
	"github.com/sanosuguru/go-event-ticket-booking/internal/pkg/logger"
)

// RateLimit は呼び出し元ごとにトークンバケットでリクエストを制限する
// 認証済みならユーザーID、未認証ならクライアントIPをキーにする
// Redis の障害時は制限せずに通す
func RateLimit(limiter redisinfra.RateLimiterInterface, prefix string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rateKey(prefix, c)

			result, err := limiter.Allow(c.Request().Context(), key)
			if err != nil {
				logger.Warn("レート制限の判定に失敗しました", zap.String("key", key), zap.Error(err))
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))

			if !result.Allowed {
				secs := int(math.Ceil(result.RetryAfter.Seconds()))
				if secs < 1 {
					secs = 1
				}
				h.Set("Retry-After", strconv.Itoa(secs))
				return echo.NewHTTPError(http.StatusTooManyRequests, "リクエストが多すぎます。しばらくしてから再試行してください")
			}
			return next(c)
		}
	}
}

func rateKey(prefix string, c echo.Context) string {
	if actor, ok := ActorFrom(c); ok {
		return prefix + ":user:" + actor.UserID
	}
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	return prefix + ":ip:" + ip
}
