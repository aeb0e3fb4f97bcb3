package event

import (
	"context"

	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/transaction"
)

// ListFilter はイベント一覧の絞り込み条件
type ListFilter struct {
	OrganizerID string
	Status      Status
	Category    Category
	Limit       int
	Offset      int
}

// Repository はイベントリポジトリのインターフェース
type Repository interface {
	// Create は新しいイベントを作成する
	Create(ctx context.Context, event *Event) error

	// GetByID はIDからイベントを取得する
	GetByID(ctx context.Context, id string) (*Event, error)

	// List はイベント一覧を取得する
	List(ctx context.Context, filter ListFilter) ([]*Event, error)

	// Update はイベントの付帯情報を更新する（楽観的ロック、在庫は対象外）
	Update(ctx context.Context, event *Event) error

	// Delete はイベントを削除する
	Delete(ctx context.Context, id string) error

	// ReserveTickets は残数が n 以上の場合のみ n 枚減算する（トランザクション必須）
	// 残数不足の場合は *InsufficientInventoryError を返す
	ReserveTickets(ctx context.Context, tx transaction.Tx, id string, n int) (*Event, error)

	// ReleaseTickets は n 枚を残数に戻す（トランザクション必須、総数を超えない）
	ReleaseTickets(ctx context.Context, tx transaction.Tx, id string, n int) (*Event, error)
}
