package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-event-ticket-booking/internal/api/middleware"
	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/user"
)

// Response は成功レスポンスの統一フォーマット
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func respond(c echo.Context, status int, data any) error {
	return c.JSON(status, Response{Success: true, Data: data})
}

func respondMessage(c echo.Context, status int, message string) error {
	return c.JSON(status, Response{Success: true, Message: message})
}

// actorOf は認証済みの呼び出し元を返す
func actorOf(c echo.Context) (user.Actor, error) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return user.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, user.ErrUnauthenticated.Error())
	}
	return actor, nil
}

// pageParams は limit / offset クエリを読み取る（不正な値は0として扱う）
func pageParams(c echo.Context) (int, int) {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	return limit, offset
}

func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "リクエストの形式が不正です")
	}
	return c.Validate(req)
}
