package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ReportHandler は主催者・管理者向けの集計を返す
type ReportHandler struct {
	queries QueryServiceInterface
}

func NewReportHandler(queries QueryServiceInterface) *ReportHandler {
	return &ReportHandler{queries: queries}
}

type SalesResponse struct {
	EventID           string `json:"event_id"`
	TotalTickets      int    `json:"total_tickets"`
	RemainingTickets  int    `json:"remaining_tickets"`
	SoldTickets       int    `json:"sold_tickets"`
	Revenue           string `json:"revenue"`
	PendingBookings   int    `json:"pending_bookings"`
	ConfirmedBookings int    `json:"confirmed_bookings"`
	CancelledBookings int    `json:"cancelled_bookings"`
}

type AnalyticsResponse struct {
	OrganizerID        string  `json:"organizer_id"`
	TotalEvents        int     `json:"total_events"`
	ActiveEvents       int     `json:"active_events"`
	CancelledEvents    int     `json:"cancelled_events"`
	CompletedEvents    int     `json:"completed_events"`
	TotalTickets       int     `json:"total_tickets"`
	SoldTickets        int     `json:"sold_tickets"`
	SalesRate          float64 `json:"sales_rate"`
	Revenue            string  `json:"revenue"`
	AverageTicketPrice string  `json:"average_ticket_price"`
}

// EventBookings はイベントの予約一覧を返す
// @Router /events/{id}/bookings [get]
func (h *ReportHandler) EventBookings(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	limit, offset := pageParams(c)
	list, err := h.queries.ListEventBookings(c.Request().Context(), actor, c.Param("id"), limit, offset)
	if err != nil {
		return toHTTPError(err)
	}
	return respond(c, http.StatusOK, toBookingDetailsList(list))
}

// EventSales はイベントの販売集計を返す
// @Router /events/{id}/sales [get]
func (h *ReportHandler) EventSales(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	s, err := h.queries.EventSales(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return respond(c, http.StatusOK, SalesResponse{
		EventID:           s.EventID,
		TotalTickets:      s.TotalTickets,
		RemainingTickets:  s.RemainingTickets,
		SoldTickets:       s.SoldTickets,
		Revenue:           s.Revenue.StringFixed(2),
		PendingBookings:   s.PendingBookings,
		ConfirmedBookings: s.ConfirmedBookings,
		CancelledBookings: s.CancelledBookings,
	})
}

// OrganizerAnalytics は主催者単位の集計を返す
// @Router /organizers/{organizer_id}/analytics [get]
func (h *ReportHandler) OrganizerAnalytics(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	s, err := h.queries.OrganizerAnalytics(c.Request().Context(), actor, c.Param("organizer_id"))
	if err != nil {
		return toHTTPError(err)
	}
	return respond(c, http.StatusOK, AnalyticsResponse{
		OrganizerID:        s.OrganizerID,
		TotalEvents:        s.TotalEvents,
		ActiveEvents:       s.ActiveEvents,
		CancelledEvents:    s.CancelledEvents,
		CompletedEvents:    s.CompletedEvents,
		TotalTickets:       s.TotalTickets,
		SoldTickets:        s.SoldTickets,
		SalesRate:          s.SalesRate(),
		Revenue:            s.Revenue.StringFixed(2),
		AverageTicketPrice: s.AverageTicketPrice.StringFixed(2),
	})
}
