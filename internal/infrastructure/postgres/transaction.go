package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/transaction"
)

// ErrForeignTx は他の実装のトランザクションが渡されたことを表す
var ErrForeignTx = errors.New("PostgreSQLのトランザクションではありません")

// pgTx は transaction.Tx の PostgreSQL 実装
type pgTx struct {
	tx *sqlx.Tx
}

func (t *pgTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗: %w", err)
	}
	return nil
}

// Rollback はコミット済みなら何もしない
func (t *pgTx) Rollback() error {
	err := t.tx.Rollback()
	if err == nil || errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return fmt.Errorf("ロールバックに失敗: %w", err)
}

// TxManager は在庫と予約の更新を1つのトランザクションにまとめる
//
// 分離レベルは READ COMMITTED。在庫の条件付きUPDATEは行ロックを取ってから
// WHERE を再評価するため、この分離レベルで売り越しは起きない。
type TxManager struct {
	db   *sqlx.DB
	opts *sql.TxOptions
}

func NewTxManager(db *sqlx.DB) *TxManager {
	return &TxManager{
		db:   db,
		opts: &sql.TxOptions{Isolation: sql.LevelReadCommitted},
	}
}

func (m *TxManager) Begin(ctx context.Context) (transaction.Tx, error) {
	tx, err := m.db.BeginTxx(ctx, m.opts)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	return &pgTx{tx: tx}, nil
}

// unwrapTx はリポジトリが SQL を発行するための sqlx.Tx を取り出す
func unwrapTx(tx transaction.Tx) (*sqlx.Tx, error) {
	pt, ok := tx.(*pgTx)
	if !ok || pt.tx == nil {
		return nil, ErrForeignTx
	}
	return pt.tx, nil
}

var _ transaction.Manager = (*TxManager)(nil)
