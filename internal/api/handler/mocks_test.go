package handler

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"

	"github.com/sanosuguru/go-event-ticket-booking/internal/api"
	"github.com/sanosuguru/go-event-ticket-booking/internal/api/middleware"
	"github.com/sanosuguru/go-event-ticket-booking/internal/application"
	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/event"
	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/user"
)

// MockBookingService は BookingServiceInterface のモック
type MockBookingService struct {
	mock.Mock
}

func (m *MockBookingService) Reserve(ctx context.Context, input application.ReserveInput) (*booking.Booking, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *MockBookingService) Confirm(ctx context.Context, actor user.Actor, id string) (*booking.Booking, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *MockBookingService) Cancel(ctx context.Context, actor user.Actor, id string) (*booking.Booking, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *MockBookingService) Delete(ctx context.Context, actor user.Actor, id string) error {
	args := m.Called(ctx, actor, id)
	return args.Error(0)
}

// MockEventService は EventServiceInterface のモック
type MockEventService struct {
	mock.Mock
}

func (m *MockEventService) CreateEvent(ctx context.Context, actor user.Actor, input application.CreateEventInput) (*event.Event, error) {
	args := m.Called(ctx, actor, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

func (m *MockEventService) GetEvent(ctx context.Context, id string) (*event.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

func (m *MockEventService) ListEvents(ctx context.Context, filter event.ListFilter) ([]*event.Event, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*event.Event), args.Error(1)
}

func (m *MockEventService) UpdateEvent(ctx context.Context, actor user.Actor, input application.UpdateEventInput) (*event.Event, error) {
	args := m.Called(ctx, actor, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

func (m *MockEventService) ChangeStatus(ctx context.Context, actor user.Actor, id string, status event.Status) (*event.Event, error) {
	args := m.Called(ctx, actor, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

func (m *MockEventService) DeleteEvent(ctx context.Context, actor user.Actor, id string) error {
	args := m.Called(ctx, actor, id)
	return args.Error(0)
}

// MockQueryService は QueryServiceInterface のモック
type MockQueryService struct {
	mock.Mock
}

func (m *MockQueryService) GetBooking(ctx context.Context, actor user.Actor, id string) (*booking.Details, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Details), args.Error(1)
}

func (m *MockQueryService) ListUserBookings(ctx context.Context, actor user.Actor, userID string, limit, offset int) ([]*booking.Details, error) {
	args := m.Called(ctx, actor, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*booking.Details), args.Error(1)
}

func (m *MockQueryService) ListBookings(ctx context.Context, actor user.Actor, filter booking.Filter) ([]*booking.Details, error) {
	args := m.Called(ctx, actor, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*booking.Details), args.Error(1)
}

func (m *MockQueryService) ListEventBookings(ctx context.Context, actor user.Actor, eventID string, limit, offset int) ([]*booking.Details, error) {
	args := m.Called(ctx, actor, eventID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*booking.Details), args.Error(1)
}

func (m *MockQueryService) Availability(ctx context.Context, eventID string) (*event.Availability, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Availability), args.Error(1)
}

func (m *MockQueryService) QuotePrice(ctx context.Context, eventID string, tickets int) (*application.PriceQuote, error) {
	args := m.Called(ctx, eventID, tickets)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.PriceQuote), args.Error(1)
}

func (m *MockQueryService) EventSales(ctx context.Context, actor user.Actor, eventID string) (*booking.SalesSummary, error) {
	args := m.Called(ctx, actor, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.SalesSummary), args.Error(1)
}

func (m *MockQueryService) OrganizerAnalytics(ctx context.Context, actor user.Actor, organizerID string) (*booking.OrganizerSummary, error) {
	args := m.Called(ctx, actor, organizerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.OrganizerSummary), args.Error(1)
}

var (
	standardUser  = user.Actor{UserID: "user-1", Role: user.RoleStandard}
	organizerUser = user.Actor{UserID: "org-1", Role: user.RoleOrganizer}
	adminUser     = user.Actor{UserID: "admin-1", Role: user.RoleAdmin}
)

// newTestEcho は本番と同じバリデータとエラーハンドラを持つ Echo を返す
func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	return e
}

// testServer はモックを束ねたテスト用サーバー
type testServer struct {
	e        *echo.Echo
	bookings *MockBookingService
	events   *MockEventService
	queries  *MockQueryService
}

// newTestServer は actor を呼び出し元としてルートを登録する（nil なら未認証）
func newTestServer(actor *user.Actor) *testServer {
	s := &testServer{
		e:        newTestEcho(),
		bookings: new(MockBookingService),
		events:   new(MockEventService),
		queries:  new(MockQueryService),
	}
	withActor := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if actor != nil {
				middleware.SetActor(c, *actor)
			}
			return next(c)
		}
	}

	bh := NewBookingHandler(s.bookings, s.queries)
	eh := NewEventHandler(s.events, s.queries)
	rh := NewReportHandler(s.queries)

	g := s.e.Group("/api/v1", withActor)
	g.POST("/bookings", bh.Create)
	g.GET("/bookings", bh.List)
	g.GET("/bookings/me", bh.ListMine)
	g.GET("/bookings/:id", bh.GetByID)
	g.PUT("/bookings/:id/confirm", bh.Confirm)
	g.PUT("/bookings/:id/cancel", bh.Cancel)
	g.DELETE("/bookings/:id", bh.Delete)
	g.GET("/users/:user_id/bookings", bh.ListByUser)

	g.POST("/events", eh.Create)
	g.GET("/events", eh.List)
	g.GET("/events/:id", eh.GetByID)
	g.PUT("/events/:id", eh.Update)
	g.PUT("/events/:id/status", eh.ChangeStatus)
	g.DELETE("/events/:id", eh.Delete)
	g.GET("/events/:id/availability", eh.Availability)
	g.POST("/events/:id/price", eh.Quote)

	g.GET("/events/:id/bookings", rh.EventBookings)
	g.GET("/events/:id/sales", rh.EventSales)
	g.GET("/organizers/:organizer_id/analytics", rh.OrganizerAnalytics)
	return s
}

func (s *testServer) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}
