package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/sanosuguru/go-event-ticket-booking/internal/application"
	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/event"
)

type EventHandler struct {
	events  EventServiceInterface
	queries QueryServiceInterface
}

func NewEventHandler(events EventServiceInterface, queries QueryServiceInterface) *EventHandler {
	return &EventHandler{events: events, queries: queries}
}

type CreateEventRequest struct {
	// 管理者のみ指定可能。省略時は呼び出し元
	OrganizerID  string          `json:"organizer_id,omitempty"`
	Title        string          `json:"title" validate:"required,max=255" example:"東京ドームコンサート2025"`
	Description  string          `json:"description" example:"年末スペシャルコンサート"`
	Location     string          `json:"location" validate:"max=255" example:"東京ドーム"`
	Category     string          `json:"category" validate:"required,event_category" example:"Music"`
	StartAt      time.Time       `json:"start_at" example:"2025-12-31T18:00:00+09:00"`
	TicketPrice  decimal.Decimal `json:"ticket_price" swaggertype:"string" example:"50.00"`
	TotalTickets int             `json:"total_tickets" validate:"gte=0" example:"50000"`
}

type UpdateEventRequest struct {
	Title       string          `json:"title" validate:"required,max=255"`
	Description string          `json:"description"`
	Location    string          `json:"location" validate:"max=255"`
	Category    string          `json:"category" validate:"required,event_category"`
	StartAt     time.Time       `json:"start_at"`
	TicketPrice decimal.Decimal `json:"ticket_price" swaggertype:"string"`
}

type ChangeStatusRequest struct {
	Status string `json:"status" validate:"required,event_status" example:"cancelled"`
}

type PriceQuoteRequest struct {
	Tickets int `json:"tickets" example:"2"`
}

type EventResponse struct {
	ID               string    `json:"id"`
	OrganizerID      string    `json:"organizer_id"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	Location         string    `json:"location,omitempty"`
	Category         string    `json:"category"`
	StartAt          time.Time `json:"start_at"`
	Status           string    `json:"status"`
	TicketPrice      string    `json:"ticket_price"`
	TotalTickets     int       `json:"total_tickets"`
	RemainingTickets int       `json:"remaining_tickets"`
	SoldTickets      int       `json:"sold_tickets"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type AvailabilityResponse struct {
	EventID          string `json:"event_id"`
	Status           string `json:"status"`
	TotalTickets     int    `json:"total_tickets"`
	RemainingTickets int    `json:"remaining_tickets"`
	TicketPrice      string `json:"ticket_price"`
}

type PriceQuoteResponse struct {
	EventID    string `json:"event_id"`
	Tickets    int    `json:"tickets"`
	UnitPrice  string `json:"unit_price"`
	TotalPrice string `json:"total_price"`
	Available  bool   `json:"available"`
}

func toEventResponse(e *event.Event) EventResponse {
	return EventResponse{
		ID:               e.ID,
		OrganizerID:      e.OrganizerID,
		Title:            e.Title,
		Description:      e.Description,
		Location:         e.Location,
		Category:         string(e.Category),
		StartAt:          e.StartAt,
		Status:           string(e.Status),
		TicketPrice:      e.TicketPrice.StringFixed(2),
		TotalTickets:     e.TotalTickets,
		RemainingTickets: e.RemainingTickets,
		SoldTickets:      e.SoldTickets(),
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
}

// Create godoc
// @Summary イベントを作成（主催者・管理者）
// @Tags events
// @Accept json
// @Produce json
// @Param request body CreateEventRequest true "イベント情報"
// @Success 201 {object} Response
// @Failure 400 {object} api.ErrorResponse
// @Router /events [post]
func (h *EventHandler) Create(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req CreateEventRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	e, err := h.events.CreateEvent(c.Request().Context(), actor, application.CreateEventInput{
		OrganizerID:  req.OrganizerID,
		Title:        req.Title,
		Description:  req.Description,
		Location:     req.Location,
		Category:     event.Category(req.Category),
		StartAt:      req.StartAt,
		TicketPrice:  req.TicketPrice,
		TotalTickets: req.TotalTickets,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return respond(c, http.StatusCreated, toEventResponse(e))
}

// GetByID godoc
// @Summary イベントを取得
// @Tags events
// @Produce json
// @Param id path string true "イベントID"
// @Success 200 {object} Response
// @Failure 404 {object} api.ErrorResponse
// @Router /events/{id} [get]
func (h *EventHandler) GetByID(c echo.Context) error {
	e, err := h.events.GetEvent(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return respond(c, http.StatusOK, toEventResponse(e))
}

// List godoc
// @Summary イベント一覧を取得
// @Tags events
// @Produce json
// @Param organizer_id query string false "主催者ID"
// @Param status query string false "状態"
// @Param category query string false "カテゴリ"
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {object} Response
// @Router /events [get]
func (h *EventHandler) List(c echo.Context) error {
	limit, offset := pageParams(c)
	filter := event.ListFilter{
		OrganizerID: c.QueryParam("organizer_id"),
		Status:      event.Status(c.QueryParam("status")),
		Category:    event.Category(c.QueryParam("category")),
		Limit:       limit,
		Offset:      offset,
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return toHTTPError(event.ErrInvalidStatus)
	}
	if filter.Category != "" && !filter.Category.IsValid() {
		return toHTTPError(event.ErrInvalidCategory)
	}

	events, err := h.events.ListEvents(c.Request().Context(), filter)
	if err != nil {
		return toHTTPError(err)
	}
	resp := make([]EventResponse, len(events))
	for i, e := range events {
		resp[i] = toEventResponse(e)
	}
	return respond(c, http.StatusOK, resp)
}

// Update godoc
// @Summary イベントを更新（主催者本人・管理者）
// @Description チケット総数は変更できません
// @Tags events
// @Accept json
// @Produce json
// @Param id path string true "イベントID"
// @Param request body UpdateEventRequest true "イベント情報"
// @Success 200 {object} Response
// @Failure 409 {object} api.ErrorResponse "同時更新"
// @Router /events/{id} [put]
func (h *EventHandler) Update(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req UpdateEventRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	e, err := h.events.UpdateEvent(c.Request().Context(), actor, application.UpdateEventInput{
		ID:          c.Param("id"),
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Category:    event.Category(req.Category),
		StartAt:     req.StartAt,
		TicketPrice: req.TicketPrice,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return respond(c, http.StatusOK, toEventResponse(e))
}

// ChangeStatus godoc
// @Summary イベントの状態を変更（主催者本人・管理者）
// @Tags events
// @Accept json
// @Produce json
// @Param id path string true "イベントID"
// @Param request body ChangeStatusRequest true "状態"
// @Success 200 {object} Response
// @Router /events/{id}/status [put]
func (h *EventHandler) ChangeStatus(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req ChangeStatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	e, err := h.events.ChangeStatus(c.Request().Context(), actor, c.Param("id"), event.Status(req.Status))
	if err != nil {
		return toHTTPError(err)
	}
	return respond(c, http.StatusOK, toEventResponse(e))
}

// Delete godoc
// @Summary イベントを削除（主催者本人・管理者）
// @Tags events
// @Param id path string true "イベントID"
// @Success 200 {object} Response
// @Failure 409 {object} api.ErrorResponse "予約が存在する"
// @Router /events/{id} [delete]
func (h *EventHandler) Delete(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	if err := h.events.DeleteEvent(c.Request().Context(), actor, c.Param("id")); err != nil {
		return toHTTPError(err)
	}
	return respondMessage(c, http.StatusOK, "イベントを削除しました")
}

// Availability godoc
// @Summary 予約可能枚数を取得
// @Tags events
// @Produce json
// @Param id path string true "イベントID"
// @Success 200 {object} Response
// @Router /events/{id}/availability [get]
func (h *EventHandler) Availability(c echo.Context) error {
	a, err := h.queries.Availability(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return respond(c, http.StatusOK, AvailabilityResponse{
		EventID:          a.EventID,
		Status:           string(a.Status),
		TotalTickets:     a.TotalTickets,
		RemainingTickets: a.RemainingTickets,
		TicketPrice:      a.TicketPrice.StringFixed(2),
	})
}

// Quote godoc
// @Summary 合計金額を見積もる
// @Description 在庫は確保しません
// @Tags events
// @Accept json
// @Produce json
// @Param id path string true "イベントID"
// @Param request body PriceQuoteRequest true "枚数"
// @Success 200 {object} Response
// @Router /events/{id}/price [post]
func (h *EventHandler) Quote(c echo.Context) error {
	var req PriceQuoteRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	q, err := h.queries.QuotePrice(c.Request().Context(), c.Param("id"), req.Tickets)
	if err != nil {
		return toHTTPError(err)
	}
	return respond(c, http.StatusOK, PriceQuoteResponse{
		EventID:    q.EventID,
		Tickets:    q.Tickets,
		UnitPrice:  q.UnitPrice.StringFixed(2),
		TotalPrice: q.TotalPrice.StringFixed(2),
		Available:  q.Available,
	})
}
