package booking

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/transaction"
)

// Filter は予約一覧の絞り込み条件
type Filter struct {
	UserID  string
	EventID string
	Status  Status
	Limit   int
	Offset  int
}

// Details は予約とイベントの概要をまとめた参照用モデル
type Details struct {
	Booking       *Booking
	EventTitle    string
	EventStartAt  time.Time
	EventLocation string
	TicketPrice   decimal.Decimal
}

// SalesSummary はイベント単位の販売集計
type SalesSummary struct {
	EventID           string
	TotalTickets      int
	RemainingTickets  int
	SoldTickets       int
	Revenue           decimal.Decimal
	PendingBookings   int
	ConfirmedBookings int
	CancelledBookings int
}

// OrganizerSummary は主催者単位の集計
type OrganizerSummary struct {
	OrganizerID        string
	TotalEvents        int
	ActiveEvents       int
	CancelledEvents    int
	CompletedEvents    int
	TotalTickets       int
	SoldTickets        int
	Revenue            decimal.Decimal
	AverageTicketPrice decimal.Decimal
}

// SalesRate は販売率（%）を返す
func (s *OrganizerSummary) SalesRate() float64 {
	if s.TotalTickets == 0 {
		return 0
	}
	return float64(s.SoldTickets) / float64(s.TotalTickets) * 100
}

// Repository は予約リポジトリのインターフェース
// 書き込みはすべて在庫更新と同じトランザクション内で行う
type Repository interface {
	// Create は予約を作成する
	Create(ctx context.Context, tx transaction.Tx, b *Booking) error

	// GetByID はIDから予約を取得する
	GetByID(ctx context.Context, id string) (*Booking, error)

	// GetByIdempotencyKey は冪等性キーから予約を取得する
	GetByIdempotencyKey(ctx context.Context, key string) (*Booking, error)

	// UpdateStatus は現在の状態が prev の場合のみ状態を更新する
	// 他の処理が先に遷移させていた場合は ErrIllegalTransition を返す
	UpdateStatus(ctx context.Context, tx transaction.Tx, b *Booking, prev Status) error

	// Delete は予約を削除し、削除前の行を返す
	Delete(ctx context.Context, tx transaction.Tx, id string) (*Booking, error)

	// GetStalePending は指定時刻より前に作成された保留中の予約を取得する
	GetStalePending(ctx context.Context, before time.Time, limit int) ([]*Booking, error)
}

// QueryRepository は参照系のリポジトリ
type QueryRepository interface {
	GetDetails(ctx context.Context, id string) (*Details, error)
	List(ctx context.Context, filter Filter) ([]*Details, error)
	SalesSummary(ctx context.Context, eventID string) (*SalesSummary, error)
	OrganizerSummary(ctx context.Context, organizerID string) (*OrganizerSummary, error)
}
