package event

import (
	"errors"
	"fmt"
)

// Event ドメインのエラー定義
var (
	ErrEventNotFound          = errors.New("イベントが見つかりません")
	ErrEventTitleRequired     = errors.New("イベント名は必須です")
	ErrOrganizerIDRequired    = errors.New("主催者IDは必須です")
	ErrInvalidCategory        = errors.New("カテゴリが不正です")
	ErrStartAtRequired        = errors.New("開催日時は必須です")
	ErrInvalidTicketPrice     = errors.New("チケット価格は0以上である必要があります")
	ErrInvalidTotalTickets    = errors.New("チケット総数は0以上である必要があります")
	ErrInventoryInvariant     = errors.New("チケット残数が総数の範囲外です")
	ErrInvalidStatus          = errors.New("イベントの状態が不正です")
	ErrEventNotBookable       = errors.New("イベントは予約を受け付けていません")
	ErrEventAlreadyClosed     = errors.New("終了したイベントの状態は変更できません")
	ErrEventHasBookings       = errors.New("予約が存在するイベントは削除できません")
	ErrInsufficientInventory  = errors.New("チケットの残数が不足しています")
	ErrOptimisticLockConflict = errors.New("楽観的ロックの競合が発生しました")
)

// InsufficientInventoryError は残数不足を表す
// 呼び出し元へ現在の残数を伝えるために使う
type InsufficientInventoryError struct {
	Requested int
	Remaining int
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("チケットの残数が不足しています（残り%d枚、要求%d枚）", e.Remaining, e.Requested)
}

// Is は ErrInsufficientInventory との比較を可能にする
func (e *InsufficientInventoryError) Is(target error) bool {
	return target == ErrInsufficientInventory
}
