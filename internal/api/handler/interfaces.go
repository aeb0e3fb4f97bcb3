package handler

import (
	"context"

	"github.com/sanosuguru/go-event-ticket-booking/internal/application"
	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/event"
	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/user"
)

// BookingServiceInterface は予約の更新系サービスのインターフェース
type BookingServiceInterface interface {
	Reserve(ctx context.Context, input application.ReserveInput) (*booking.Booking, error)
	Confirm(ctx context.Context, actor user.Actor, id string) (*booking.Booking, error)
	Cancel(ctx context.Context, actor user.Actor, id string) (*booking.Booking, error)
	Delete(ctx context.Context, actor user.Actor, id string) error
}

// EventServiceInterface はイベントサービスのインターフェース
type EventServiceInterface interface {
	CreateEvent(ctx context.Context, actor user.Actor, input application.CreateEventInput) (*event.Event, error)
	GetEvent(ctx context.Context, id string) (*event.Event, error)
	ListEvents(ctx context.Context, filter event.ListFilter) ([]*event.Event, error)
	UpdateEvent(ctx context.Context, actor user.Actor, input application.UpdateEventInput) (*event.Event, error)
	ChangeStatus(ctx context.Context, actor user.Actor, id string, status event.Status) (*event.Event, error)
	DeleteEvent(ctx context.Context, actor user.Actor, id string) error
}

// QueryServiceInterface は参照系サービスのインターフェース
type QueryServiceInterface interface {
	GetBooking(ctx context.Context, actor user.Actor, id string) (*booking.Details, error)
	ListUserBookings(ctx context.Context, actor user.Actor, userID string, limit, offset int) ([]*booking.Details, error)
	ListBookings(ctx context.Context, actor user.Actor, filter booking.Filter) ([]*booking.Details, error)
	ListEventBookings(ctx context.Context, actor user.Actor, eventID string, limit, offset int) ([]*booking.Details, error)
	Availability(ctx context.Context, eventID string) (*event.Availability, error)
	QuotePrice(ctx context.Context, eventID string, tickets int) (*application.PriceQuote, error)
	EventSales(ctx context.Context, actor user.Actor, eventID string) (*booking.SalesSummary, error)
	OrganizerAnalytics(ctx context.Context, actor user.Actor, organizerID string) (*booking.OrganizerSummary, error)
}

var (
	_ BookingServiceInterface = (*application.BookingService)(nil)
	_ EventServiceInterface   = (*application.EventService)(nil)
	_ QueryServiceInterface   = (*application.QueryService)(nil)
)
