package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-event-ticket-booking/internal/pkg/metrics"
)

// unmatchedRoute はどのルートにも一致しなかったリクエストのラベル
// 生のURLをラベルにするとカーディナリティが際限なく増える
const unmatchedRoute = "unmatched"

// PrometheusMiddleware はHTTPの件数・レイテンシ・処理中の数を記録する
func PrometheusMiddleware(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()

			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = unmatchedRoute
			}
			m.ObserveHTTP(c.Request().Method, route, responseStatus(c, err), time.Since(start))
			return err
		}
	}
}

// responseStatus はエラーハンドラが書き込む前のステータスを推定する
func responseStatus(c echo.Context, err error) int {
	if err == nil {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}
