package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-event-ticket-booking/internal/application"
	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/event"
	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/user"
)

type bookingEnvelope struct {
	Success bool            `json:"success"`
	Data    BookingResponse `json:"data"`
}

type errorEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func sampleBooking(status booking.Status) *booking.Booking {
	now := time.Now()
	return &booking.Booking{
		ID:            "booking-1",
		UserID:        standardUser.UserID,
		EventID:       "event-1",
		TicketsBooked: 2,
		TotalPrice:    decimal.RequireFromString("100.5"),
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func decodeError(t *testing.T, body []byte) errorEnvelope {
	t.Helper()
	var resp errorEnvelope
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.False(t, resp.Success)
	return resp
}

func TestBookingHandler_Create(t *testing.T) {
	t.Run("正常に予約を作成できる", func(t *testing.T) {
		s := newTestServer(&standardUser)
		s.bookings.On("Reserve", mock.Anything, application.ReserveInput{
			UserID: "user-1", EventID: "event-1", Tickets: 2, IdempotencyKey: "idem-1",
		}).Return(sampleBooking(booking.StatusPending), nil)

		rec := s.do(http.MethodPost, "/api/v1/bookings", `{"event_id":"event-1","tickets":2}`,
			"Idempotency-Key", "idem-1")

		require.Equal(t, http.StatusCreated, rec.Code)
		var resp bookingEnvelope
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, "booking-1", resp.Data.ID)
		assert.Equal(t, "pending", resp.Data.Status)
		assert.Equal(t, "100.50", resp.Data.TotalPrice)
		s.bookings.AssertExpectations(t)
	})

	t.Run("本文の冪等性キーも受け付ける", func(t *testing.T) {
		s := newTestServer(&standardUser)
		s.bookings.On("Reserve", mock.Anything, application.ReserveInput{
			UserID: "user-1", EventID: "event-1", Tickets: 1, IdempotencyKey: "body-key",
		}).Return(sampleBooking(booking.StatusPending), nil)

		rec := s.do(http.MethodPost, "/api/v1/bookings", `{"event_id":"event-1","tickets":1,"idempotency_key":"body-key"}`)

		assert.Equal(t, http.StatusCreated, rec.Code)
		s.bookings.AssertExpectations(t)
	})

	t.Run("未認証は401", func(t *testing.T) {
		s := newTestServer(nil)
		rec := s.do(http.MethodPost, "/api/v1/bookings", `{"event_id":"event-1","tickets":1}`)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		s.bookings.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything)
	})

	t.Run("event_id がない場合は400", func(t *testing.T) {
		s := newTestServer(&standardUser)
		rec := s.do(http.MethodPost, "/api/v1/bookings", `{"tickets":1}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		s.bookings.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything)
	})

	cases := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"枚数不正は400", booking.ErrInvalidQuantity, http.StatusBadRequest, booking.ErrInvalidQuantity.Error()},
		{"残数不足は400で残数を含む", &event.InsufficientInventoryError{Requested: 5, Remaining: 3}, http.StatusBadRequest, "残り3枚"},
		{"受付終了は400", event.ErrEventNotBookable, http.StatusBadRequest, event.ErrEventNotBookable.Error()},
		{"イベントなしは404", event.ErrEventNotFound, http.StatusNotFound, event.ErrEventNotFound.Error()},
		{"冪等性キーの競合は409", booking.ErrIdempotencyConflict, http.StatusConflict, booking.ErrIdempotencyConflict.Error()},
		{"処理中は409", application.ErrBookingInProgress, http.StatusConflict, application.ErrBookingInProgress.Error()},
		{"想定外のエラーは500で詳細を隠す", errors.New("connection refused"), http.StatusInternalServerError, "内部サーバーエラー"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(&standardUser)
			s.bookings.On("Reserve", mock.Anything, mock.Anything).Return(nil, tc.err)

			rec := s.do(http.MethodPost, "/api/v1/bookings", `{"event_id":"event-1","tickets":5}`)

			assert.Equal(t, tc.status, rec.Code)
			resp := decodeError(t, rec.Body.Bytes())
			assert.Contains(t, resp.Message, tc.msg)
			assert.NotContains(t, resp.Message, "connection refused")
		})
	}
}

func TestBookingHandler_GetByID(t *testing.T) {
	t.Run("予約詳細を返す", func(t *testing.T) {
		s := newTestServer(&standardUser)
		s.queries.On("GetBooking", mock.Anything, standardUser, "booking-1").Return(&booking.Details{
			Booking:      sampleBooking(booking.StatusConfirmed),
			EventTitle:   "ライブ",
			EventStartAt: time.Now(),
			TicketPrice:  decimal.RequireFromString("50.25"),
		}, nil)

		rec := s.do(http.MethodGet, "/api/v1/bookings/booking-1", "")

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Data BookingDetailsResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "booking-1", resp.Data.ID)
		assert.Equal(t, "ライブ", resp.Data.Event.Title)
		assert.Equal(t, "50.25", resp.Data.Event.TicketPrice)
	})

	t.Run("他人の予約は403", func(t *testing.T) {
		s := newTestServer(&standardUser)
		s.queries.On("GetBooking", mock.Anything, standardUser, "booking-2").Return(nil, user.ErrForbidden)

		rec := s.do(http.MethodGet, "/api/v1/bookings/booking-2", "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("存在しない予約は404", func(t *testing.T) {
		s := newTestServer(&standardUser)
		s.queries.On("GetBooking", mock.Anything, standardUser, "missing").Return(nil, booking.ErrBookingNotFound)

		rec := s.do(http.MethodGet, "/api/v1/bookings/missing", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestBookingHandler_Lists(t *testing.T) {
	details := []*booking.Details{{Booking: sampleBooking(booking.StatusPending), EventTitle: "ライブ"}}

	t.Run("自分の予約一覧", func(t *testing.T) {
		s := newTestServer(&standardUser)
		s.queries.On("ListUserBookings", mock.Anything, standardUser, "user-1", 10, 5).Return(details, nil)

		rec := s.do(http.MethodGet, "/api/v1/bookings/me?limit=10&offset=5", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"booking-1"`)
		s.queries.AssertExpectations(t)
	})

	t.Run("ユーザー指定の予約一覧", func(t *testing.T) {
		s := newTestServer(&adminUser)
		s.queries.On("ListUserBookings", mock.Anything, adminUser, "user-9", 0, 0).Return(details, nil)

		rec := s.do(http.MethodGet, "/api/v1/users/user-9/bookings", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("管理者の絞り込み一覧", func(t *testing.T) {
		s := newTestServer(&adminUser)
		s.queries.On("ListBookings", mock.Anything, adminUser, booking.Filter{
			EventID: "event-1", Status: booking.StatusPending, Limit: 20,
		}).Return(details, nil)

		rec := s.do(http.MethodGet, "/api/v1/bookings?event_id=event-1&status=pending&limit=20", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("不正な状態での絞り込みは400", func(t *testing.T) {
		s := newTestServer(&adminUser)
		s.queries.On("ListBookings", mock.Anything, adminUser, mock.Anything).Return(nil, booking.ErrInvalidStatus)

		rec := s.do(http.MethodGet, "/api/v1/bookings?status=unknown", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestBookingHandler_Confirm(t *testing.T) {
	t.Run("管理者は確定できる", func(t *testing.T) {
		s := newTestServer(&adminUser)
		s.bookings.On("Confirm", mock.Anything, adminUser, "booking-1").Return(sampleBooking(booking.StatusConfirmed), nil)

		rec := s.do(http.MethodPut, "/api/v1/bookings/booking-1/confirm", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"confirmed"`)
	})

	t.Run("一般ユーザーは403", func(t *testing.T) {
		s := newTestServer(&standardUser)
		s.bookings.On("Confirm", mock.Anything, standardUser, "booking-1").Return(nil, user.ErrForbidden)

		rec := s.do(http.MethodPut, "/api/v1/bookings/booking-1/confirm", "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestBookingHandler_Cancel(t *testing.T) {
	t.Run("本人はキャンセルできる", func(t *testing.T) {
		s := newTestServer(&standardUser)
		s.bookings.On("Cancel", mock.Anything, standardUser, "booking-1").Return(sampleBooking(booking.StatusCancelled), nil)

		rec := s.do(http.MethodPut, "/api/v1/bookings/booking-1/cancel", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"cancelled"`)
	})

	t.Run("キャンセル済みは409", func(t *testing.T) {
		s := newTestServer(&standardUser)
		s.bookings.On("Cancel", mock.Anything, standardUser, "booking-1").Return(nil,
			&booking.TransitionError{From: booking.StatusCancelled, To: booking.StatusCancelled})

		rec := s.do(http.MethodPut, "/api/v1/bookings/booking-1/cancel", "")

		assert.Equal(t, http.StatusConflict, rec.Code)
		resp := decodeError(t, rec.Body.Bytes())
		assert.Contains(t, resp.Message, "cancelled")
	})
}

func TestBookingHandler_Delete(t *testing.T) {
	s := newTestServer(&adminUser)
	s.bookings.On("Delete", mock.Anything, adminUser, "booking-1").Return(nil)

	rec := s.do(http.MethodDelete, "/api/v1/bookings/booking-1", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)
	s.bookings.AssertExpectations(t)
}
