package booking

import (
	"time"

	"github.com/shopspring/decimal"
)

// Booking は予約エンティティを表す
// TotalPrice は予約時点の単価から計算したスナップショットで、後から再計算しない
type Booking struct {
	ID             string
	UserID         string
	EventID        string
	TicketsBooked  int
	TotalPrice     decimal.Decimal
	Status         Status
	IdempotencyKey string
	ConfirmedAt    *time.Time
	CancelledAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ValidateQuantity は予約枚数を検証する
func ValidateQuantity(n int) error {
	if n < 1 {
		return ErrInvalidQuantity
	}
	return nil
}

// NewBooking は保留中の予約を作成する
// unitPrice は在庫を減算した時点のイベント単価を渡すこと
func NewBooking(userID, eventID string, tickets int, unitPrice decimal.Decimal, idempotencyKey string) *Booking {
	now := time.Now()
	return &Booking{
		UserID:         userID,
		EventID:        eventID,
		TicketsBooked:  tickets,
		TotalPrice:     unitPrice.Mul(decimal.NewFromInt(int64(tickets))),
		Status:         StatusPending,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Validate は予約の検証を行う
func (b *Booking) Validate() error {
	if b.UserID == "" {
		return ErrUserIDRequired
	}
	if b.EventID == "" {
		return ErrEventIDRequired
	}
	if err := ValidateQuantity(b.TicketsBooked); err != nil {
		return err
	}
	if b.TotalPrice.IsNegative() {
		return ErrInvalidTotalPrice
	}
	return nil
}

// transition は遷移表に従って状態を変更する
func (b *Booking) transition(next Status, at time.Time) error {
	if !b.Status.CanTransitionTo(next) {
		return &TransitionError{From: b.Status, To: next}
	}
	b.Status = next
	b.UpdatedAt = at
	return nil
}

// Confirm は予約を確定する
func (b *Booking) Confirm() error {
	now := time.Now()
	if err := b.transition(StatusConfirmed, now); err != nil {
		return err
	}
	b.ConfirmedAt = &now
	return nil
}

// Cancel は予約をキャンセルする
func (b *Booking) Cancel() error {
	now := time.Now()
	if err := b.transition(StatusCancelled, now); err != nil {
		return err
	}
	b.CancelledAt = &now
	return nil
}

// IsCancelled はキャンセル済みかを返す
func (b *Booking) IsCancelled() bool {
	return b.Status == StatusCancelled
}

// IsOwnedBy は予約者が一致するかを返す
func (b *Booking) IsOwnedBy(userID string) bool {
	return b.UserID != "" && b.UserID == userID
}

// MatchesRequest は冪等性キーで見つかった予約が同じ依頼内容かを返す
func (b *Booking) MatchesRequest(userID, eventID string, tickets int) bool {
	return b.UserID == userID && b.EventID == eventID && b.TicketsBooked == tickets
}
