// Package transaction はアプリケーション層からDBトランザクションを扱うための抽象
package transaction

import "context"

// Tx は進行中のトランザクション
// 具体的な型はインフラ層が決め、リポジトリだけが中身を取り出す
type Tx interface {
	Commit() error
	Rollback() error
}

type Manager interface {
	Begin(ctx context.Context) (Tx, error)
}

// Run は fn を1つのトランザクションで実行する
// fn がエラーを返すとロールバックし、そのエラーをそのまま返す
// 開始とコミットの失敗は *Error で包む
func Run(ctx context.Context, m Manager, fn func(tx Tx) error) error {
	tx, err := m.Begin(ctx)
	if err != nil {
		return &Error{Op: "begin", Err: err}
	}
	// コミット後の Rollback は実装側で無視される
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return &Error{Op: "commit", Err: err}
	}
	return nil
}

// Error はトランザクション制御そのものの失敗
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return "トランザクション" + e.Op + "に失敗: " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }
