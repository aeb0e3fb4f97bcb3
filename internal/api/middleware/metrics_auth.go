package middleware

import (
	"crypto/subtle"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/sanosuguru/go-event-ticket-booking/internal/config"
)

const metricsRealm = "metrics"

// MetricsBasicAuth は /metrics を Basic 認証で保護する
// ユーザー名とパスワードのどちらかが未設定なら素通し
func MetricsBasicAuth(cfg config.MetricsConfig) echo.MiddlewareFunc {
	if !cfg.AuthEnabled() {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	return middleware.BasicAuthWithConfig(middleware.BasicAuthConfig{
		Realm: metricsRealm,
		Validator: func(username, password string, _ echo.Context) (bool, error) {
			// 両方を必ず比較して、どちらが違ったかを応答時間に出さない
			userOK := secureEqual(username, cfg.Username)
			passOK := secureEqual(password, cfg.Password)
			return userOK && passOK, nil
		},
	})
}

func secureEqual(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
