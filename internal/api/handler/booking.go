package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-event-ticket-booking/internal/api/middleware"
	"github.com/sanosuguru/go-event-ticket-booking/internal/application"
	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/booking"
)

type BookingHandler struct {
	bookings BookingServiceInterface
	queries  QueryServiceInterface
}

func NewBookingHandler(bookings BookingServiceInterface, queries QueryServiceInterface) *BookingHandler {
	return &BookingHandler{bookings: bookings, queries: queries}
}

type CreateBookingRequest struct {
	EventID string `json:"event_id" validate:"required" example:"550e8400-e29b-41d4-a716-446655440000"`
	Tickets int    `json:"tickets" example:"2"`
	// Idempotency-Key ヘッダーが優先される
	IdempotencyKey string `json:"idempotency_key,omitempty" example:"order-2025-001"`
}

type BookingResponse struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	EventID        string     `json:"event_id"`
	TicketsBooked  int        `json:"tickets_booked"`
	TotalPrice     string     `json:"total_price" example:"100.00"`
	Status         string     `json:"status" example:"pending"`
	IdempotencyKey string     `json:"idempotency_key,omitempty"`
	ConfirmedAt    *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt    *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type BookingEventSummary struct {
	Title       string    `json:"title"`
	StartAt     time.Time `json:"start_at"`
	Location    string    `json:"location,omitempty"`
	TicketPrice string    `json:"ticket_price"`
}

type BookingDetailsResponse struct {
	BookingResponse
	Event BookingEventSummary `json:"event"`
}

func toBookingResponse(b *booking.Booking) BookingResponse {
	return BookingResponse{
		ID:             b.ID,
		UserID:         b.UserID,
		EventID:        b.EventID,
		TicketsBooked:  b.TicketsBooked,
		TotalPrice:     b.TotalPrice.StringFixed(2),
		Status:         string(b.Status),
		IdempotencyKey: b.IdempotencyKey,
		ConfirmedAt:    b.ConfirmedAt,
		CancelledAt:    b.CancelledAt,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}

func toBookingDetailsResponse(d *booking.Details) BookingDetailsResponse {
	return BookingDetailsResponse{
		BookingResponse: toBookingResponse(d.Booking),
		Event: BookingEventSummary{
			Title:       d.EventTitle,
			StartAt:     d.EventStartAt,
			Location:    d.EventLocation,
			TicketPrice: d.TicketPrice.StringFixed(2),
		},
	}
}

func toBookingDetailsList(list []*booking.Details) []BookingDetailsResponse {
	resp := make([]BookingDetailsResponse, len(list))
	for i, d := range list {
		resp[i] = toBookingDetailsResponse(d)
	}
	return resp
}

// Create godoc
// @Summary 予約を作成
// @Description 指定枚数のチケットを確保して保留中の予約を作成します
// @Tags bookings
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "冪等性キー"
// @Param request body CreateBookingRequest true "予約情報"
// @Success 201 {object} Response
// @Failure 400 {object} api.ErrorResponse "枚数不正・残数不足・受付終了"
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "冪等性キーの競合"
// @Router /bookings [post]
func (h *BookingHandler) Create(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req CreateBookingRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	key := c.Request().Header.Get(middleware.HeaderIdempotencyKey)
	if key == "" {
		key = req.IdempotencyKey
	}

	b, err := h.bookings.Reserve(c.Request().Context(), application.ReserveInput{
		UserID:         actor.UserID,
		EventID:        req.EventID,
		Tickets:        req.Tickets,
		IdempotencyKey: key,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return respond(c, http.StatusCreated, toBookingResponse(b))
}

// GetByID godoc
// @Summary 予約を取得
// @Tags bookings
// @Produce json
// @Param id path string true "予約ID"
// @Success 200 {object} Response
// @Failure 403 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /bookings/{id} [get]
func (h *BookingHandler) GetByID(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	d, err := h.queries.GetBooking(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return respond(c, http.StatusOK, toBookingDetailsResponse(d))
}

// ListMine は呼び出し元自身の予約一覧を返す
// @Router /bookings/me [get]
func (h *BookingHandler) ListMine(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	limit, offset := pageParams(c)
	list, err := h.queries.ListUserBookings(c.Request().Context(), actor, actor.UserID, limit, offset)
	if err != nil {
		return toHTTPError(err)
	}
	return respond(c, http.StatusOK, toBookingDetailsList(list))
}

// ListByUser は指定ユーザーの予約一覧を返す（本人または管理者）
// @Router /users/{user_id}/bookings [get]
func (h *BookingHandler) ListByUser(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	limit, offset := pageParams(c)
	list, err := h.queries.ListUserBookings(c.Request().Context(), actor, c.Param("user_id"), limit, offset)
	if err != nil {
		return toHTTPError(err)
	}
	return respond(c, http.StatusOK, toBookingDetailsList(list))
}

// List は全予約を status / event_id / user_id で絞り込んで返す（管理者）
// @Router /bookings [get]
func (h *BookingHandler) List(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	limit, offset := pageParams(c)
	list, err := h.queries.ListBookings(c.Request().Context(), actor, booking.Filter{
		UserID:  c.QueryParam("user_id"),
		EventID: c.QueryParam("event_id"),
		Status:  booking.Status(c.QueryParam("status")),
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return respond(c, http.StatusOK, toBookingDetailsList(list))
}

// Confirm godoc
// @Summary 予約を確定（管理者）
// @Tags bookings
// @Produce json
// @Param id path string true "予約ID"
// @Success 200 {object} Response
// @Failure 409 {object} api.ErrorResponse "確定できない状態"
// @Router /bookings/{id}/confirm [put]
func (h *BookingHandler) Confirm(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	b, err := h.bookings.Confirm(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return respond(c, http.StatusOK, toBookingResponse(b))
}

// Cancel godoc
// @Summary 予約をキャンセル
// @Description 予約をキャンセルし、確保していたチケットを戻します
// @Tags bookings
// @Produce json
// @Param id path string true "予約ID"
// @Success 200 {object} Response
// @Failure 409 {object} api.ErrorResponse "キャンセル済み"
// @Router /bookings/{id}/cancel [put]
func (h *BookingHandler) Cancel(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	b, err := h.bookings.Cancel(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return respond(c, http.StatusOK, toBookingResponse(b))
}

// Delete godoc
// @Summary 予約を削除（管理者）
// @Tags bookings
// @Param id path string true "予約ID"
// @Success 200 {object} Response
// @Router /bookings/{id} [delete]
func (h *BookingHandler) Delete(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	if err := h.bookings.Delete(c.Request().Context(), actor, c.Param("id")); err != nil {
		return toHTTPError(err)
	}
	return respondMessage(c, http.StatusOK, "予約を削除しました")
}
