package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-ticket-booking/internal/pkg/logger"
)

// ErrDirtyMigration は前回のマイグレーションが途中で失敗したままであることを表す
// 手動で修正して `migrate force` するまで起動しない
var ErrDirtyMigration = errors.New("マイグレーションが dirty 状態です")

// RunMigrations は dir 配下の SQL を最新バージョンまで適用する
func RunMigrations(db *sql.DB, dir string) error {
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("マイグレーションドライバー作成エラー: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		return fmt.Errorf("マイグレーションの読み込みに失敗 (%s): %w", dir, err)
	}

	if _, dirty, err := m.Version(); err == nil && dirty {
		return ErrDirtyMigration
	}

	switch err := m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
	case err != nil:
		return fmt.Errorf("マイグレーション実行エラー: %w", err)
	}

	version, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("マイグレーションバージョンの取得に失敗: %w", err)
	}
	logger.Info("マイグレーション適用済み", zap.Uint("version", version))
	return nil
}
