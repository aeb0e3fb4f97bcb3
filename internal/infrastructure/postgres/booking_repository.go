package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/transaction"
)

const bookingColumns = `id, user_id, event_id, tickets_booked, total_price, status, idempotency_key,
	confirmed_at, cancelled_at, created_at, updated_at`

type bookingRow struct {
	ID             string          `db:"id"`
	UserID         string          `db:"user_id"`
	EventID        string          `db:"event_id"`
	TicketsBooked  int             `db:"tickets_booked"`
	TotalPrice     decimal.Decimal `db:"total_price"`
	Status         string          `db:"status"`
	IdempotencyKey *string         `db:"idempotency_key"`
	ConfirmedAt    *time.Time      `db:"confirmed_at"`
	CancelledAt    *time.Time      `db:"cancelled_at"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

func (r *bookingRow) toEntity() *booking.Booking {
	return &booking.Booking{
		ID:             r.ID,
		UserID:         r.UserID,
		EventID:        r.EventID,
		TicketsBooked:  r.TicketsBooked,
		TotalPrice:     r.TotalPrice,
		Status:         booking.Status(r.Status),
		IdempotencyKey: derefString(r.IdempotencyKey),
		ConfirmedAt:    r.ConfirmedAt,
		CancelledAt:    r.CancelledAt,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

// BookingRepository は予約リポジトリのPostgreSQL実装
type BookingRepository struct{ db *sqlx.DB }

func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) Create(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	sqlTx, err := unwrapTx(tx)
	if err != nil {
		return err
	}
	query := `INSERT INTO bookings (user_id, event_id, tickets_booked, total_price, status, idempotency_key, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	if err := sqlTx.QueryRowContext(ctx, query,
		b.UserID, b.EventID, b.TicketsBooked, b.TotalPrice, string(b.Status), nullString(b.IdempotencyKey), b.CreatedAt, b.UpdatedAt,
	).Scan(&b.ID); err != nil {
		if pqCode(err) == codeUniqueViolation {
			return booking.ErrIdempotencyKeyAlreadyExists
		}
		return fmt.Errorf("予約作成に失敗: %w", err)
	}
	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (*booking.Booking, error) {
	var row bookingRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidUUID(err) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, fmt.Errorf("予約取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *BookingRepository) GetByIdempotencyKey(ctx context.Context, key string) (*booking.Booking, error) {
	var row bookingRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+bookingColumns+` FROM bookings WHERE idempotency_key = $1`, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, fmt.Errorf("予約取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

// UpdateStatus は現在の状態が prev の場合のみ状態を更新する
// 先に他の処理が遷移させていた場合は現在の状態を読み直して *booking.TransitionError を返す
func (r *BookingRepository) UpdateStatus(ctx context.Context, tx transaction.Tx, b *booking.Booking, prev booking.Status) error {
	sqlTx, err := unwrapTx(tx)
	if err != nil {
		return err
	}
	query := `UPDATE bookings SET status = $1, confirmed_at = $2, cancelled_at = $3, updated_at = $4 WHERE id = $5 AND status = $6`
	result, err := sqlTx.ExecContext(ctx, query,
		string(b.Status), b.ConfirmedAt, b.CancelledAt, b.UpdatedAt, b.ID, string(prev),
	)
	if err != nil {
		return fmt.Errorf("予約ステータス更新に失敗: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の確認に失敗: %w", err)
	}
	if n > 0 {
		return nil
	}

	var current string
	if err := sqlTx.GetContext(ctx, &current, `SELECT status FROM bookings WHERE id = $1`, b.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return booking.ErrBookingNotFound
		}
		return fmt.Errorf("予約取得に失敗: %w", err)
	}
	return &booking.TransitionError{From: booking.Status(current), To: b.Status}
}

// Delete は予約を削除し、削除前の行を返す
func (r *BookingRepository) Delete(ctx context.Context, tx transaction.Tx, id string) (*booking.Booking, error) {
	sqlTx, err := unwrapTx(tx)
	if err != nil {
		return nil, err
	}
	var row bookingRow
	if err := sqlTx.GetContext(ctx, &row, `DELETE FROM bookings WHERE id = $1 RETURNING `+bookingColumns, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidUUID(err) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, fmt.Errorf("予約削除に失敗: %w", err)
	}
	return row.toEntity(), nil
}

// GetStalePending は before より前に作成された保留中の予約を古い順に取得する
func (r *BookingRepository) GetStalePending(ctx context.Context, before time.Time, limit int) ([]*booking.Booking, error) {
	var rows []bookingRow
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE status = 'pending' AND created_at < $1 ORDER BY created_at ASC LIMIT $2`
	if err := r.db.SelectContext(ctx, &rows, query, before, limit); err != nil {
		return nil, fmt.Errorf("保留中の予約の取得に失敗: %w", err)
	}
	bookings := make([]*booking.Booking, len(rows))
	for i := range rows {
		bookings[i] = rows[i].toEntity()
	}
	return bookings, nil
}

var _ booking.Repository = (*BookingRepository)(nil)
