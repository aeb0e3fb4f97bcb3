package application

import "errors"

var (
	// ErrBookingInProgress は同じ冪等性キーの予約が別リクエストで処理中であることを表す
	ErrBookingInProgress = errors.New("同じ冪等性キーの予約を処理中です。しばらくしてから再試行してください")
)
