package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/event"
)

const detailsSelect = `
	SELECT b.id, b.user_id, b.event_id, b.tickets_booked, b.total_price, b.status, b.idempotency_key,
	       b.confirmed_at, b.cancelled_at, b.created_at, b.updated_at,
	       e.title AS event_title, e.start_at AS event_start_at, e.location AS event_location,
	       e.ticket_price AS event_ticket_price
	FROM bookings b
	JOIN events e ON e.id = b.event_id`

type detailsRow struct {
	bookingRow
	EventTitle    string          `db:"event_title"`
	EventStartAt  time.Time       `db:"event_start_at"`
	EventLocation *string         `db:"event_location"`
	TicketPrice   decimal.Decimal `db:"event_ticket_price"`
}

func (r *detailsRow) toDetails() *booking.Details {
	return &booking.Details{
		Booking:       r.bookingRow.toEntity(),
		EventTitle:    r.EventTitle,
		EventStartAt:  r.EventStartAt,
		EventLocation: derefString(r.EventLocation),
		TicketPrice:   r.TicketPrice,
	}
}

// BookingQueryRepository は予約の参照系クエリ
type BookingQueryRepository struct{ db *sqlx.DB }

func NewBookingQueryRepository(db *sqlx.DB) *BookingQueryRepository {
	return &BookingQueryRepository{db: db}
}

func (r *BookingQueryRepository) GetDetails(ctx context.Context, id string) (*booking.Details, error) {
	var row detailsRow
	if err := r.db.GetContext(ctx, &row, detailsSelect+` WHERE b.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidUUID(err) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, fmt.Errorf("予約詳細の取得に失敗: %w", err)
	}
	return row.toDetails(), nil
}

// List は予約を新しい順に取得する
func (r *BookingQueryRepository) List(ctx context.Context, filter booking.Filter) ([]*booking.Details, error) {
	var (
		conds []string
		args  []any
	)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conds = append(conds, fmt.Sprintf("b.user_id = $%d", len(args)))
	}
	if filter.EventID != "" {
		args = append(args, filter.EventID)
		conds = append(conds, fmt.Sprintf("b.event_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("b.status = $%d", len(args)))
	}

	query := detailsSelect
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY b.created_at DESC, b.id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	var rows []detailsRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		if isInvalidUUID(err) {
			return []*booking.Details{}, nil
		}
		return nil, fmt.Errorf("予約一覧の取得に失敗: %w", err)
	}
	out := make([]*booking.Details, len(rows))
	for i := range rows {
		out[i] = rows[i].toDetails()
	}
	return out, nil
}

// SalesSummary はイベント単位の販売集計を返す
// 売上は取消済みを除いた予約の合計金額
func (r *BookingQueryRepository) SalesSummary(ctx context.Context, eventID string) (*booking.SalesSummary, error) {
	query := `
		SELECT e.id AS event_id, e.total_tickets, e.remaining_tickets,
		       COALESCE(SUM(b.total_price) FILTER (WHERE b.status <> 'cancelled'), 0) AS revenue,
		       COUNT(b.id) FILTER (WHERE b.status = 'pending') AS pending_bookings,
		       COUNT(b.id) FILTER (WHERE b.status = 'confirmed') AS confirmed_bookings,
		       COUNT(b.id) FILTER (WHERE b.status = 'cancelled') AS cancelled_bookings
		FROM events e
		LEFT JOIN bookings b ON b.event_id = e.id
		WHERE e.id = $1
		GROUP BY e.id, e.total_tickets, e.remaining_tickets`

	var row struct {
		EventID           string          `db:"event_id"`
		TotalTickets      int             `db:"total_tickets"`
		RemainingTickets  int             `db:"remaining_tickets"`
		Revenue           decimal.Decimal `db:"revenue"`
		PendingBookings   int             `db:"pending_bookings"`
		ConfirmedBookings int             `db:"confirmed_bookings"`
		CancelledBookings int             `db:"cancelled_bookings"`
	}
	if err := r.db.GetContext(ctx, &row, query, eventID); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidUUID(err) {
			return nil, event.ErrEventNotFound
		}
		return nil, fmt.Errorf("販売集計の取得に失敗: %w", err)
	}
	return &booking.SalesSummary{
		EventID:           row.EventID,
		TotalTickets:      row.TotalTickets,
		RemainingTickets:  row.RemainingTickets,
		SoldTickets:       row.TotalTickets - row.RemainingTickets,
		Revenue:           row.Revenue,
		PendingBookings:   row.PendingBookings,
		ConfirmedBookings: row.ConfirmedBookings,
		CancelledBookings: row.CancelledBookings,
	}, nil
}

// OrganizerSummary は主催者が持つ全イベントの集計を返す
// イベントを持たない主催者はゼロ値の集計になる
func (r *BookingQueryRepository) OrganizerSummary(ctx context.Context, organizerID string) (*booking.OrganizerSummary, error) {
	query := `
		WITH revenue AS (
			SELECT b.event_id, SUM(b.total_price) AS amount
			FROM bookings b
			JOIN events e ON e.id = b.event_id
			WHERE e.organizer_id = $1 AND b.status <> 'cancelled'
			GROUP BY b.event_id
		)
		SELECT COUNT(e.id) AS total_events,
		       COUNT(e.id) FILTER (WHERE e.status = 'active') AS active_events,
		       COUNT(e.id) FILTER (WHERE e.status = 'cancelled') AS cancelled_events,
		       COUNT(e.id) FILTER (WHERE e.status = 'completed') AS completed_events,
		       COALESCE(SUM(e.total_tickets), 0) AS total_tickets,
		       COALESCE(SUM(e.total_tickets - e.remaining_tickets), 0) AS sold_tickets,
		       COALESCE(SUM(r.amount), 0) AS revenue,
		       COALESCE(AVG(e.ticket_price), 0) AS average_ticket_price
		FROM events e
		LEFT JOIN revenue r ON r.event_id = e.id
		WHERE e.organizer_id = $1`

	var row struct {
		TotalEvents        int             `db:"total_events"`
		ActiveEvents       int             `db:"active_events"`
		CancelledEvents    int             `db:"cancelled_events"`
		CompletedEvents    int             `db:"completed_events"`
		TotalTickets       int             `db:"total_tickets"`
		SoldTickets        int             `db:"sold_tickets"`
		Revenue            decimal.Decimal `db:"revenue"`
		AverageTicketPrice decimal.Decimal `db:"average_ticket_price"`
	}
	if err := r.db.GetContext(ctx, &row, query, organizerID); err != nil {
		return nil, fmt.Errorf("主催者集計の取得に失敗: %w", err)
	}
	return &booking.OrganizerSummary{
		OrganizerID:        organizerID,
		TotalEvents:        row.TotalEvents,
		ActiveEvents:       row.ActiveEvents,
		CancelledEvents:    row.CancelledEvents,
		CompletedEvents:    row.CompletedEvents,
		TotalTickets:       row.TotalTickets,
		SoldTickets:        row.SoldTickets,
		Revenue:            row.Revenue,
		AverageTicketPrice: row.AverageTicketPrice.Round(2),
	}, nil
}

var _ booking.QueryRepository = (*BookingQueryRepository)(nil)
