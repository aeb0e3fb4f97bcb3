package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-event-ticket-booking/internal/application"
	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/event"
	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/user"
)

// errorStatuses はドメインエラーと HTTP ステータスの対応
// 上から順に判定する
var errorStatuses = []struct {
	target error
	status int
}{
	{user.ErrUnauthenticated, http.StatusUnauthorized},
	{user.ErrForbidden, http.StatusForbidden},

	{booking.ErrBookingNotFound, http.StatusNotFound},
	{event.ErrEventNotFound, http.StatusNotFound},

	{booking.ErrInvalidQuantity, http.StatusBadRequest},
	{booking.ErrInvalidStatus, http.StatusBadRequest},
	{booking.ErrEventIDRequired, http.StatusBadRequest},
	{booking.ErrUserIDRequired, http.StatusBadRequest},
	{event.ErrInsufficientInventory, http.StatusBadRequest},
	{event.ErrEventNotBookable, http.StatusBadRequest},
	{event.ErrEventTitleRequired, http.StatusBadRequest},
	{event.ErrOrganizerIDRequired, http.StatusBadRequest},
	{event.ErrInvalidCategory, http.StatusBadRequest},
	{event.ErrStartAtRequired, http.StatusBadRequest},
	{event.ErrInvalidTicketPrice, http.StatusBadRequest},
	{event.ErrInvalidTotalTickets, http.StatusBadRequest},
	{event.ErrInvalidStatus, http.StatusBadRequest},

	{booking.ErrIllegalTransition, http.StatusConflict},
	{booking.ErrIdempotencyConflict, http.StatusConflict},
	{application.ErrBookingInProgress, http.StatusConflict},
	{event.ErrOptimisticLockConflict, http.StatusConflict},
	{event.ErrEventHasBookings, http.StatusConflict},
	{event.ErrEventAlreadyClosed, http.StatusConflict},
}

// toHTTPError はサービス層のエラーを *echo.HTTPError に変換する
// 対応のないエラーは 500 とし、内部エラーとして保持する
func toHTTPError(err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	for _, m := range errorStatuses {
		if errors.Is(err, m.target) {
			return echo.NewHTTPError(m.status, messageFor(err, m.target)).SetInternal(err)
		}
	}
	return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
}

// messageFor は返却するメッセージを決める
// 残数不足と状態遷移は詳細を含む型付きエラーのメッセージを使う
func messageFor(err, target error) string {
	var insufficient *event.InsufficientInventoryError
	if errors.As(err, &insufficient) {
		return insufficient.Error()
	}
	var transition *booking.TransitionError
	if errors.As(err, &transition) {
		return transition.Error()
	}
	return target.Error()
}
