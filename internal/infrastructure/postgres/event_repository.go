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

	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/event"
	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/transaction"
)

const eventColumns = `id, organizer_id, title, description, location, category, start_at, status,
	ticket_price, total_tickets, remaining_tickets, created_at, updated_at, version`

type eventRow struct {
	ID               string          `db:"id"`
	OrganizerID      string          `db:"organizer_id"`
	Title            string          `db:"title"`
	Description      *string         `db:"description"`
	Location         *string         `db:"location"`
	Category         string          `db:"category"`
	StartAt          time.Time       `db:"start_at"`
	Status           string          `db:"status"`
	TicketPrice      decimal.Decimal `db:"ticket_price"`
	TotalTickets     int             `db:"total_tickets"`
	RemainingTickets int             `db:"remaining_tickets"`
	CreatedAt        time.Time       `db:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at"`
	Version          int             `db:"version"`
}

func (r *eventRow) toEntity() *event.Event {
	return &event.Event{
		ID:               r.ID,
		OrganizerID:      r.OrganizerID,
		Title:            r.Title,
		Description:      derefString(r.Description),
		Location:         derefString(r.Location),
		Category:         event.Category(r.Category),
		StartAt:          r.StartAt,
		Status:           event.Status(r.Status),
		TicketPrice:      r.TicketPrice,
		TotalTickets:     r.TotalTickets,
		RemainingTickets: r.RemainingTickets,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
		Version:          r.Version,
	}
}

// EventRepository は events テーブルへのアクセス
// 在庫の増減は ReserveTickets / ReleaseTickets の条件付きUPDATEだけで行う
type EventRepository struct {
	db *sqlx.DB
}

func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create は採番された ID を e.ID に書き戻す
func (r *EventRepository) Create(ctx context.Context, e *event.Event) error {
	query := `
		INSERT INTO events (organizer_id, title, description, location, category, start_at, status,
			ticket_price, total_tickets, remaining_tickets, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		e.OrganizerID, e.Title, nullString(e.Description), nullString(e.Location), string(e.Category),
		e.StartAt, string(e.Status), e.TicketPrice, e.TotalTickets, e.RemainingTickets,
		e.CreatedAt, e.UpdatedAt, e.Version,
	).Scan(&e.ID)
	if err != nil {
		if pqCode(err) == codeCheckViolation {
			return event.ErrInventoryInvariant
		}
		return fmt.Errorf("イベント作成に失敗しました: %w", err)
	}
	return nil
}

// GetByID は UUID として不正な id も ErrEventNotFound にする
func (r *EventRepository) GetByID(ctx context.Context, id string) (*event.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	var row eventRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidUUID(err) {
			return nil, event.ErrEventNotFound
		}
		return nil, fmt.Errorf("イベント取得に失敗しました: %w", err)
	}
	return row.toEntity(), nil
}

// List はイベント一覧を開催日時の昇順で取得する
func (r *EventRepository) List(ctx context.Context, filter event.ListFilter) ([]*event.Event, error) {
	var (
		conds []string
		args  []any
	)
	if filter.OrganizerID != "" {
		args = append(args, filter.OrganizerID)
		conds = append(conds, fmt.Sprintf("organizer_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, string(filter.Category))
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}

	query := `SELECT ` + eventColumns + ` FROM events`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY start_at ASC, id ASC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("イベント一覧取得に失敗しました: %w", err)
	}

	events := make([]*event.Event, len(rows))
	for i := range rows {
		events[i] = rows[i].toEntity()
	}
	return events, nil
}

// Update はイベントの付帯情報を更新する（楽観的ロック）
// 総数と残数は更新しない
func (r *EventRepository) Update(ctx context.Context, e *event.Event) error {
	query := `
		UPDATE events
		SET title = $1, description = $2, location = $3, category = $4, start_at = $5,
		    status = $6, ticket_price = $7, updated_at = $8, version = version + 1
		WHERE id = $9 AND version = $10
	`
	now := time.Now()
	result, err := r.db.ExecContext(ctx, query,
		e.Title, nullString(e.Description), nullString(e.Location), string(e.Category), e.StartAt,
		string(e.Status), e.TicketPrice, now, e.ID, e.Version,
	)
	if err != nil {
		return fmt.Errorf("イベント更新に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の確認に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		if _, err := r.GetByID(ctx, e.ID); err != nil {
			return err
		}
		return event.ErrOptimisticLockConflict
	}

	e.Version++
	e.UpdatedAt = now
	return nil
}

// Delete はイベントを削除する
// 予約が残っている場合は外部キー制約により ErrEventHasBookings を返す
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		if pqCode(err) == codeForeignKeyViolation {
			return event.ErrEventHasBookings
		}
		if isInvalidUUID(err) {
			return event.ErrEventNotFound
		}
		return fmt.Errorf("イベント削除に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の確認に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return event.ErrEventNotFound
	}
	return nil
}

// ReserveTickets は残数が n 以上かつ予約受付中の場合のみ n 枚減算する
// 判定と減算は1つのUPDATE文で行い、条件を満たさない場合は同じトランザクション内で理由を読み直す
func (r *EventRepository) ReserveTickets(ctx context.Context, tx transaction.Tx, id string, n int) (*event.Event, error) {
	sqlTx, err := unwrapTx(tx)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE events
		SET remaining_tickets = remaining_tickets - $2, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND status = 'active' AND remaining_tickets >= $2
		RETURNING ` + eventColumns

	var row eventRow
	err = sqlTx.GetContext(ctx, &row, query, id, n)
	if err == nil {
		return row.toEntity(), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		if isInvalidUUID(err) {
			return nil, event.ErrEventNotFound
		}
		return nil, fmt.Errorf("チケット残数の減算に失敗: %w", err)
	}

	current, err := r.getForTx(ctx, sqlTx, id)
	if err != nil {
		return nil, err
	}
	if !current.IsBookable() {
		return nil, event.ErrEventNotBookable
	}
	return nil, &event.InsufficientInventoryError{Requested: n, Remaining: current.RemainingTickets}
}

// ReleaseTickets は n 枚を残数に戻す
// 総数を超える戻しは ErrInventoryInvariant とする
func (r *EventRepository) ReleaseTickets(ctx context.Context, tx transaction.Tx, id string, n int) (*event.Event, error) {
	sqlTx, err := unwrapTx(tx)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE events
		SET remaining_tickets = remaining_tickets + $2, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND remaining_tickets + $2 <= total_tickets
		RETURNING ` + eventColumns

	var row eventRow
	err = sqlTx.GetContext(ctx, &row, query, id, n)
	if err == nil {
		return row.toEntity(), nil
	}
	if pqCode(err) == codeCheckViolation {
		return nil, event.ErrInventoryInvariant
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("チケット残数の加算に失敗: %w", err)
	}

	if _, err := r.getForTx(ctx, sqlTx, id); err != nil {
		return nil, err
	}
	return nil, event.ErrInventoryInvariant
}

func (r *EventRepository) getForTx(ctx context.Context, tx *sqlx.Tx, id string) (*event.Event, error) {
	var row eventRow
	if err := tx.GetContext(ctx, &row, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, event.ErrEventNotFound
		}
		return nil, fmt.Errorf("イベント取得に失敗しました: %w", err)
	}
	return row.toEntity(), nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var _ event.Repository = (*EventRepository)(nil)
