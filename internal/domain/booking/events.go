package booking

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookingCreated は予約作成後に発行されるイベント
type BookingCreated struct {
	BookingID  string          `json:"booking_id"`
	UserID     string          `json:"user_id"`
	EventID    string          `json:"event_id"`
	Tickets    int             `json:"tickets"`
	TotalPrice decimal.Decimal `json:"total_price"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// BookingConfirmed は予約確定後に発行されるイベント
type BookingConfirmed struct {
	BookingID  string    `json:"booking_id"`
	UserID     string    `json:"user_id"`
	EventID    string    `json:"event_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// BookingCancelled は予約キャンセル後に発行されるイベント
type BookingCancelled struct {
	BookingID       string    `json:"booking_id"`
	UserID          string    `json:"user_id"`
	EventID         string    `json:"event_id"`
	TicketsReleased int       `json:"tickets_released"`
	CancelledBy     string    `json:"cancelled_by"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// BookingDeleted は予約削除後に発行されるイベント
type BookingDeleted struct {
	BookingID       string    `json:"booking_id"`
	EventID         string    `json:"event_id"`
	TicketsReleased int       `json:"tickets_released"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// CreatedEvent は予約から BookingCreated を組み立てる
func CreatedEvent(b *Booking) *BookingCreated {
	return &BookingCreated{
		BookingID:  b.ID,
		UserID:     b.UserID,
		EventID:    b.EventID,
		Tickets:    b.TicketsBooked,
		TotalPrice: b.TotalPrice,
		OccurredAt: b.CreatedAt,
	}
}
