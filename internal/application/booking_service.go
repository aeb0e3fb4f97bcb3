package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/event"
	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/transaction"
	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/user"
	redisinfra "github.com/sanosuguru/go-event-ticket-booking/internal/infrastructure/redis"
	"github.com/sanosuguru/go-event-ticket-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-event-ticket-booking/internal/pkg/metrics"
)

// BookingOptions は予約処理の調整項目
type BookingOptions struct {
	LockTTL        time.Duration
	LockRetries    int
	LockRetryDelay time.Duration
	Metrics        *metrics.Metrics
}

// DefaultBookingOptions はデフォルトの調整項目を返す
func DefaultBookingOptions() BookingOptions {
	return BookingOptions{
		LockTTL:        10 * time.Second,
		LockRetries:    3,
		LockRetryDelay: 100 * time.Millisecond,
	}
}

// BookingService は在庫の確保と予約のライフサイクルを扱う
// 在庫の整合性はDBの条件付き更新で保証し、ロックは同一冪等性キーの重複排除にのみ使う
type BookingService struct {
	txManager   transaction.Manager
	bookingRepo booking.Repository
	eventRepo   event.Repository
	lockManager redisinfra.LockManagerInterface
	cache       redisinfra.AvailabilityCacheInterface
	publisher   EventPublisher
	opts        BookingOptions
}

// NewBookingService は BookingService を作成する
// lockManager / cache / publisher は nil を許容する
func NewBookingService(
	txm transaction.Manager,
	br booking.Repository,
	er event.Repository,
	lm redisinfra.LockManagerInterface,
	cache redisinfra.AvailabilityCacheInterface,
	pub EventPublisher,
	opts BookingOptions,
) *BookingService {
	return &BookingService{
		txManager:   txm,
		bookingRepo: br,
		eventRepo:   er,
		lockManager: lm,
		cache:       cache,
		publisher:   pub,
		opts:        opts,
	}
}

// ReserveInput は予約作成の入力
type ReserveInput struct {
	UserID         string
	EventID        string
	Tickets        int
	IdempotencyKey string
}

// Reserve はチケットを確保して保留中の予約を作成する
func (s *BookingService) Reserve(ctx context.Context, input ReserveInput) (*booking.Booking, error) {
	if err := booking.ValidateQuantity(input.Tickets); err != nil {
		s.opts.Metrics.RecordBooking(metrics.ResultError, 0)
		return nil, err
	}
	if input.UserID == "" {
		return nil, booking.ErrUserIDRequired
	}
	if input.EventID == "" {
		return nil, booking.ErrEventIDRequired
	}

	if input.IdempotencyKey != "" {
		existing, err := s.findReplay(ctx, input)
		if err != nil || existing != nil {
			s.recordReserveResult(existing, err)
			return existing, err
		}

		lock, err := s.acquireIdempotencyLock(ctx, input.IdempotencyKey)
		if err != nil {
			s.recordReserveResult(nil, err)
			return nil, err
		}
		if lock != nil {
			defer s.releaseLock(lock)
		}

		// ロック待ちの間に先行リクエストが完了している場合がある
		existing, err = s.findReplay(ctx, input)
		if err != nil || existing != nil {
			s.recordReserveResult(existing, err)
			return existing, err
		}
	}

	b, err := s.reserve(ctx, input)
	if errors.Is(err, booking.ErrIdempotencyKeyAlreadyExists) {
		// ロックなしで並行した場合は一意制約が最後の砦になる
		b, err = s.findReplay(ctx, input)
		if err == nil && b == nil {
			err = booking.ErrIdempotencyConflict
		}
		s.recordReserveResult(b, err)
		return b, err
	}
	if err != nil {
		s.recordReserveResult(nil, err)
		return nil, err
	}

	s.opts.Metrics.RecordBooking(metrics.ResultSuccess, b.TicketsBooked)
	s.invalidateAvailability(ctx, b.EventID)
	s.publish(ctx, booking.CreatedEvent(b))
	logger.FromContext(ctx).Info("予約を作成しました",
		zap.String("booking_id", b.ID),
		zap.String("event_id", b.EventID),
		zap.String("user_id", b.UserID),
		zap.Int("tickets", b.TicketsBooked),
		zap.String("total_price", b.TotalPrice.String()),
	)
	return b, nil
}

// reserve は事前チェックの後、在庫の減算と予約の作成を1トランザクションで行う
func (s *BookingService) reserve(ctx context.Context, input ReserveInput) (*booking.Booking, error) {
	ev, err := s.eventRepo.GetByID(ctx, input.EventID)
	if err != nil {
		return nil, err
	}
	// 明らかに失敗する依頼は書き込みの前に弾く
	if err := ev.CheckReservable(input.Tickets); err != nil {
		return nil, err
	}

	var created *booking.Booking
	err = transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		updated, err := s.eventRepo.ReserveTickets(ctx, tx, ev.ID, input.Tickets)
		if err != nil {
			return err
		}
		// 金額は減算と同じ文で読んだ単価で確定させる
		b := booking.NewBooking(input.UserID, ev.ID, input.Tickets, updated.TicketPrice, input.IdempotencyKey)
		if err := b.Validate(); err != nil {
			return err
		}
		if err := s.bookingRepo.Create(ctx, tx, b); err != nil {
			return err
		}
		created = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// findReplay は冪等性キーに一致する既存の予約を探す
// 見つからなければ (nil, nil)、内容が異なれば ErrIdempotencyConflict を返す
func (s *BookingService) findReplay(ctx context.Context, input ReserveInput) (*booking.Booking, error) {
	existing, err := s.bookingRepo.GetByIdempotencyKey(ctx, input.IdempotencyKey)
	if errors.Is(err, booking.ErrBookingNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("冪等性チェックに失敗: %w", err)
	}
	if !existing.MatchesRequest(input.UserID, input.EventID, input.Tickets) {
		return nil, booking.ErrIdempotencyConflict
	}
	return existing, nil
}

func (s *BookingService) acquireIdempotencyLock(ctx context.Context, key string) (redisinfra.Lock, error) {
	if s.lockManager == nil {
		return nil, nil
	}
	start := time.Now()
	lock, err := s.lockManager.Acquire(ctx, "booking:idem:"+key, redisinfra.LockOptions{
		TTL:        s.opts.LockTTL,
		Retries:    s.opts.LockRetries,
		RetryDelay: s.opts.LockRetryDelay,
	})
	if err != nil {
		s.opts.Metrics.ObserveLock("acquire", "failed", time.Since(start).Seconds())
		if errors.Is(err, redisinfra.ErrLockNotAcquired) {
			return nil, ErrBookingInProgress
		}
		return nil, fmt.Errorf("ロック取得に失敗: %w", err)
	}
	s.opts.Metrics.ObserveLock("acquire", "success", time.Since(start).Seconds())
	return lock, nil
}

func (s *BookingService) releaseLock(lock redisinfra.Lock) {
	// リクエストのキャンセル後も解放できるよう独立したコンテキストを使う
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	start := time.Now()
	if err := lock.Release(ctx); err != nil {
		s.opts.Metrics.ObserveLock("release", "failed", time.Since(start).Seconds())
		logger.Warn("ロック解放に失敗しました", zap.Error(err))
		return
	}
	s.opts.Metrics.ObserveLock("release", "success", time.Since(start).Seconds())
}

func (s *BookingService) recordReserveResult(replayed *booking.Booking, err error) {
	switch {
	case err == nil && replayed != nil:
		s.opts.Metrics.RecordBooking(metrics.ResultReplayed, 0)
	case errors.Is(err, event.ErrInsufficientInventory):
		s.opts.Metrics.RecordBooking(metrics.ResultInsufficient, 0)
	case errors.Is(err, event.ErrEventNotBookable):
		s.opts.Metrics.RecordBooking(metrics.ResultNotBookable, 0)
	case errors.Is(err, booking.ErrIdempotencyConflict):
		s.opts.Metrics.RecordBooking(metrics.ResultConflict, 0)
	case errors.Is(err, ErrBookingInProgress):
		s.opts.Metrics.RecordBooking(metrics.ResultLockFailed, 0)
	case err != nil:
		s.opts.Metrics.RecordBooking(metrics.ResultError, 0)
	}
}

// Confirm は保留中の予約を確定する（管理者のみ、在庫には影響しない）
func (s *BookingService) Confirm(ctx context.Context, actor user.Actor, id string) (*booking.Booking, error) {
	if !actor.IsAdmin() {
		return nil, user.ErrForbidden
	}
	b, err := s.bookingRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	prev := b.Status
	if err := b.Confirm(); err != nil {
		return nil, err
	}
	err = transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		return s.bookingRepo.UpdateStatus(ctx, tx, b, prev)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, &booking.BookingConfirmed{
		BookingID:  b.ID,
		UserID:     b.UserID,
		EventID:    b.EventID,
		OccurredAt: b.UpdatedAt,
	})
	logger.FromContext(ctx).Info("予約を確定しました", zap.String("booking_id", b.ID))
	return b, nil
}

// Cancel は予約をキャンセルし、確保していた枚数を在庫に戻す（本人または管理者）
func (s *BookingService) Cancel(ctx context.Context, actor user.Actor, id string) (*booking.Booking, error) {
	b, err := s.bookingRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanActFor(b.UserID) {
		return nil, user.ErrForbidden
	}

	source := metrics.SourceUser
	if actor.IsAdmin() && !b.IsOwnedBy(actor.UserID) {
		source = metrics.SourceAdmin
	}
	return s.cancel(ctx, b, actor, source)
}

// cancel は状態の比較更新と在庫の返却を1トランザクションで行う
// 状態更新に負けた場合は返却しないため、返却は1予約につき1回に限られる
func (s *BookingService) cancel(ctx context.Context, b *booking.Booking, actor user.Actor, source string) (*booking.Booking, error) {
	prev := b.Status
	if err := b.Cancel(); err != nil {
		return nil, err
	}

	err := transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		if err := s.bookingRepo.UpdateStatus(ctx, tx, b, prev); err != nil {
			return err
		}
		if _, err := s.eventRepo.ReleaseTickets(ctx, tx, b.EventID, b.TicketsBooked); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.opts.Metrics.RecordRelease(source, b.TicketsBooked)
	s.invalidateAvailability(ctx, b.EventID)
	s.publish(ctx, &booking.BookingCancelled{
		BookingID:       b.ID,
		UserID:          b.UserID,
		EventID:         b.EventID,
		TicketsReleased: b.TicketsBooked,
		CancelledBy:     actor.UserID,
		OccurredAt:      b.UpdatedAt,
	})
	logger.FromContext(ctx).Info("予約をキャンセルしました",
		zap.String("booking_id", b.ID),
		zap.String("event_id", b.EventID),
		zap.Int("tickets_released", b.TicketsBooked),
		zap.String("source", source),
	)
	return b, nil
}

// Delete は予約を削除する（管理者のみ）
// キャンセル済みでない予約は在庫を戻してから削除する
func (s *BookingService) Delete(ctx context.Context, actor user.Actor, id string) error {
	if !actor.IsAdmin() {
		return user.ErrForbidden
	}

	var deleted *booking.Booking
	err := transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		b, err := s.bookingRepo.Delete(ctx, tx, id)
		if err != nil {
			return err
		}
		if b.Status.HoldsInventory() {
			if _, err := s.eventRepo.ReleaseTickets(ctx, tx, b.EventID, b.TicketsBooked); err != nil {
				return err
			}
		}
		deleted = b
		return nil
	})
	if err != nil {
		return err
	}

	released := 0
	if deleted.Status.HoldsInventory() {
		released = deleted.TicketsBooked
		s.opts.Metrics.RecordRelease(metrics.SourceDeleted, released)
		s.invalidateAvailability(ctx, deleted.EventID)
	}
	s.publish(ctx, &booking.BookingDeleted{
		BookingID:       deleted.ID,
		EventID:         deleted.EventID,
		TicketsReleased: released,
		OccurredAt:      time.Now(),
	})
	logger.FromContext(ctx).Info("予約を削除しました", zap.String("booking_id", deleted.ID), zap.Int("tickets_released", released))
	return nil
}

// CancelStalePending は作成から olderThan 以上経過した保留中の予約をキャンセルする
// キャンセルした件数を返す
func (s *BookingService) CancelStalePending(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	stale, err := s.bookingRepo.GetStalePending(ctx, time.Now().Add(-olderThan), limit)
	if err != nil {
		return 0, fmt.Errorf("期限切れ予約の取得に失敗: %w", err)
	}

	count := 0
	for _, b := range stale {
		if ctx.Err() != nil {
			return count, ctx.Err()
		}
		if _, err := s.cancel(ctx, b, user.System, metrics.SourceExpired); err != nil {
			// 確定やキャンセルが先に行われた場合は対象外
			if errors.Is(err, booking.ErrIllegalTransition) {
				continue
			}
			logger.FromContext(ctx).Error("期限切れ予約のキャンセルに失敗しました",
				zap.String("booking_id", b.ID),
				zap.Error(err),
			)
			continue
		}
		count++
	}
	return count, nil
}

func (s *BookingService) invalidateAvailability(ctx context.Context, eventID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, eventID); err != nil {
		logger.FromContext(ctx).Warn("キャッシュの無効化に失敗しました", zap.String("event_id", eventID), zap.Error(err))
	}
}

// publish はコミット後のイベントを配信する（失敗しても処理は成功扱い）
func (s *BookingService) publish(ctx context.Context, ev any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		logger.FromContext(ctx).Warn("予約イベントの配信に失敗しました", zap.Error(err))
	}
}
