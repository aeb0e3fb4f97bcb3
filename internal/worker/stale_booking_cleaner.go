package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-ticket-booking/internal/pkg/logger"
)

// PendingBookingCanceller は一定時間確定されない予約を取り消すインターフェース
type PendingBookingCanceller interface {
	CancelStalePending(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

// StaleBookingCleaner は保留中のまま放置された予約を定期的に取り消すワーカー
// 取り消した予約の枚数はイベントの残数に戻る
type StaleBookingCleaner struct {
	bookings  PendingBookingCanceller
	interval  time.Duration
	olderThan time.Duration
	batchSize int
	stopCh    chan struct{}
	doneCh    chan struct{}
}

func NewStaleBookingCleaner(
	bookings PendingBookingCanceller,
	interval time.Duration,
	olderThan time.Duration,
	batchSize int,
) *StaleBookingCleaner {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &StaleBookingCleaner{
		bookings:  bookings,
		interval:  interval,
		olderThan: olderThan,
		batchSize: batchSize,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start はコンテキストがキャンセルされるか Stop が呼ばれるまでブロックする
func (c *StaleBookingCleaner) Start(ctx context.Context) {
	logger.Info("保留予約クリーナー開始",
		zap.Duration("interval", c.interval),
		zap.Duration("older_than", c.olderThan),
		zap.Int("batch_size", c.batchSize),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	defer close(c.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("保留予約クリーナー停止（コンテキストキャンセル）")
			return
		case <-c.stopCh:
			logger.Info("保留予約クリーナー停止（シグナル受信）")
			return
		case <-ticker.C:
			c.sweep(ctx)
		}
	}
}

// Stop は実行中の掃除が終わるまで待ってから戻る
func (c *StaleBookingCleaner) Stop() {
	close(c.stopCh)
	<-c.doneCh
}

// sweep は1バッチ分だけ取り消す。残りは次の周期で処理する
func (c *StaleBookingCleaner) sweep(ctx context.Context) {
	log := logger.Get()

	count, err := c.bookings.CancelStalePending(ctx, c.olderThan, c.batchSize)
	if err != nil {
		log.Error("保留予約の取り消しに失敗", zap.Error(err), zap.Int("cancelled", count))
		return
	}
	if count > 0 {
		log.Info("保留予約を取り消し", zap.Int("count", count))
		return
	}
	log.Debug("取り消し対象の保留予約なし")
}
