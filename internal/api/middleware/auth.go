package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/user"
)

const actorContextKey = "actor"

// Claims はアクセストークンのクレーム（sub と role）
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticate は Bearer トークン（HS256）を検証し、呼び出し元を Actor としてコンテキストに格納する
func Authenticate(secret string) echo.MiddlewareFunc {
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			raw, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || raw == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, user.ErrUnauthenticated.Error())
			}

			var claims Claims
			if _, err := parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
				return key, nil
			}); err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "トークンが無効です").SetInternal(err)
			}

			actor := user.Actor{UserID: claims.Subject, Role: user.Role(claims.Role)}
			if actor.UserID == "" || !actor.Role.IsValid() {
				return echo.NewHTTPError(http.StatusUnauthorized, "トークンのクレームが不正です")
			}
			c.Set(actorContextKey, actor)
			return next(c)
		}
	}
}

// RequireRole は指定したロールのいずれかを持つ呼び出し元のみを通す
func RequireRole(roles ...user.Role) echo.MiddlewareFunc {
	allowed := make(map[user.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, ok := ActorFrom(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, user.ErrUnauthenticated.Error())
			}
			if !allowed[actor.Role] {
				return echo.NewHTTPError(http.StatusForbidden, user.ErrForbidden.Error())
			}
			return next(c)
		}
	}
}

// ActorFrom は Authenticate が格納した呼び出し元を返す
func ActorFrom(c echo.Context) (user.Actor, bool) {
	actor, ok := c.Get(actorContextKey).(user.Actor)
	return actor, ok
}

// SetActor は呼び出し元をコンテキストに格納する（テスト用）
func SetActor(c echo.Context, actor user.Actor) {
	c.Set(actorContextKey, actor)
}

// IssueToken は actor 用のアクセストークンを発行する
func IssueToken(secret string, actor user.Actor, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("JWTシークレットが設定されていません")
	}
	now := time.Now()
	claims := Claims{
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
