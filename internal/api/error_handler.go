package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-ticket-booking/internal/pkg/logger"
)

// ErrorResponse はエラーレスポンスの統一フォーマット
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

const internalErrorMessage = "内部サーバーエラーが発生しました"

// CustomHTTPErrorHandler はすべての失敗を {"success":false,"message":...} で返す
// 5xx の場合は内部エラーをログに残し、本文には汎用メッセージのみを返す
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := internalErrorMessage

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
	}

	if code >= http.StatusInternalServerError {
		cause := err
		if he != nil && he.Internal != nil {
			cause = he.Internal
		}
		logger.FromContext(c.Request().Context()).Error("サーバーエラー",
			zap.Int("status", code),
			zap.String("method", c.Request().Method),
			zap.String("path", c.Request().URL.Path),
			zap.Error(cause),
		)
		message = internalErrorMessage
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, ErrorResponse{Success: false, Message: message})
	}
	if err != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(err))
	}
}
