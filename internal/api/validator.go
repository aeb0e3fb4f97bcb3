package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/event"
)

// CustomValidator はEcho用のカスタムバリデーター
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator は新しいバリデーターを作成する
// event_category / event_status / booking_status タグを登録する
func NewValidator() *CustomValidator {
	v := validator.New()
	_ = v.RegisterValidation("event_category", func(fl validator.FieldLevel) bool {
		return event.Category(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("event_status", func(fl validator.FieldLevel) bool {
		return event.Status(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("booking_status", func(fl validator.FieldLevel) bool {
		return booking.Status(fl.Field().String()).IsValid()
	})
	return &CustomValidator{validator: v}
}

// Validate はリクエストのバリデーションを実行する
func (cv *CustomValidator) Validate(i interface{}) error {
	err := cv.validator.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fieldMessage(fe))
		}
		return echo.NewHTTPError(http.StatusBadRequest, strings.Join(msgs, ", "))
	}
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s は必須です", fe.Field())
	case "gt":
		return fmt.Sprintf("%s は %s より大きい必要があります", fe.Field(), fe.Param())
	case "gte", "min":
		return fmt.Sprintf("%s は %s 以上である必要があります", fe.Field(), fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s は %s 以下である必要があります", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s が不正です", fe.Field())
	}
}
