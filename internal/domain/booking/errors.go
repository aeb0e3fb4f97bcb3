package booking

import (
	"errors"
	"fmt"
)

// Booking ドメインのエラー定義
var (
	ErrBookingNotFound             = errors.New("予約が見つかりません")
	ErrInvalidQuantity             = errors.New("予約枚数は1以上である必要があります")
	ErrIllegalTransition           = errors.New("予約の状態遷移が許可されていません")
	ErrInvalidStatus               = errors.New("予約の状態が不正です")
	ErrEventIDRequired             = errors.New("イベントIDは必須です")
	ErrUserIDRequired              = errors.New("ユーザーIDは必須です")
	ErrInvalidTotalPrice           = errors.New("合計金額は0以上である必要があります")
	ErrIdempotencyConflict         = errors.New("同じ冪等性キーで異なる内容の予約が既に存在します")
	ErrIdempotencyKeyAlreadyExists = errors.New("同じ冪等性キーの予約が既に存在します")
)

// TransitionError は不正な状態遷移の詳細を表す
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("予約の状態遷移が許可されていません（%s → %s）", e.From, e.To)
}

// Is は ErrIllegalTransition との比較を可能にする
func (e *TransitionError) Is(target error) bool {
	return target == ErrIllegalTransition
}
