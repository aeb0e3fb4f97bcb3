package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-ticket-booking/internal/pkg/logger"
)

// RequestLogger はリクエストの構造化ログを出力するミドルウェア
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			res := c.Response()

			// RequestID ミドルウェアが先に応答ヘッダーへ設定している
			requestID := c.Request().Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = res.Header().Get(echo.HeaderXRequestID)
			}
			reqLog := logger.With(zap.String("request_id", requestID))
			c.SetRequest(c.Request().WithContext(logger.WithContext(c.Request().Context(), reqLog)))
			req := c.Request()

			err := next(c)
			if err != nil {
				// ステータスを確定させるためエラーハンドラーを先に通す
				c.Error(err)
			}

			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.String("query", req.URL.RawQuery),
				zap.Int("status", res.Status),
				zap.Int64("size", res.Size),
				zap.Duration("latency", time.Since(start)),
				zap.String("remote_ip", c.RealIP()),
				zap.String("user_agent", req.UserAgent()),
			}
			if actor, ok := ActorFrom(c); ok {
				fields = append(fields, zap.String("user_id", actor.UserID))
			}

			switch {
			case err != nil && res.Status >= 500:
				fields = append(fields, zap.Error(err))
				reqLog.Error("request failed", fields...)
			case res.Status >= 500:
				reqLog.Error("server error", fields...)
			case res.Status >= 400:
				reqLog.Warn("client error", fields...)
			default:
				reqLog.Info("request completed", fields...)
			}

			return nil
		}
	}
}
