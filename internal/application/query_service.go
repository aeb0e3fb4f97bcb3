package application

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/event"
	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/user"
	redisinfra "github.com/sanosuguru/go-event-ticket-booking/internal/infrastructure/redis"
	"github.com/sanosuguru/go-event-ticket-booking/internal/pkg/logger"
)

// QueryService は予約の参照と集計を扱う（書き込みは行わない）
type QueryService struct {
	queryRepo booking.QueryRepository
	eventRepo event.Repository
	cache     redisinfra.AvailabilityCacheInterface
	cacheTTL  time.Duration
}

// NewQueryService は QueryService を作成する（cache は nil を許容）
func NewQueryService(qr booking.QueryRepository, er event.Repository, cache redisinfra.AvailabilityCacheInterface, cacheTTL time.Duration) *QueryService {
	return &QueryService{queryRepo: qr, eventRepo: er, cache: cache, cacheTTL: cacheTTL}
}

// GetBooking は予約の詳細を返す（本人または管理者）
func (s *QueryService) GetBooking(ctx context.Context, actor user.Actor, id string) (*booking.Details, error) {
	d, err := s.queryRepo.GetDetails(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanActFor(d.Booking.UserID) {
		return nil, user.ErrForbidden
	}
	return d, nil
}

// ListUserBookings はユーザーの予約一覧を返す（本人または管理者）
func (s *QueryService) ListUserBookings(ctx context.Context, actor user.Actor, userID string, limit, offset int) ([]*booking.Details, error) {
	if !actor.CanActFor(userID) {
		return nil, user.ErrForbidden
	}
	limit, offset = normalizePage(limit, offset)
	return s.queryRepo.List(ctx, booking.Filter{UserID: userID, Limit: limit, Offset: offset})
}

// ListBookings は条件に合う予約一覧を返す（管理者のみ）
func (s *QueryService) ListBookings(ctx context.Context, actor user.Actor, filter booking.Filter) ([]*booking.Details, error) {
	if !actor.IsAdmin() {
		return nil, user.ErrForbidden
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, booking.ErrInvalidStatus
	}
	filter.Limit, filter.Offset = normalizePage(filter.Limit, filter.Offset)
	return s.queryRepo.List(ctx, filter)
}

// ListEventBookings はイベントの予約一覧を返す（主催者本人または管理者）
func (s *QueryService) ListEventBookings(ctx context.Context, actor user.Actor, eventID string, limit, offset int) ([]*booking.Details, error) {
	if _, err := s.ownedEvent(ctx, actor, eventID); err != nil {
		return nil, err
	}
	limit, offset = normalizePage(limit, offset)
	return s.queryRepo.List(ctx, booking.Filter{EventID: eventID, Limit: limit, Offset: offset})
}

// Availability は予約可能枚数を返す
// キャッシュは短いTTLの参考値で、予約の可否は常にDBで判定する
func (s *QueryService) Availability(ctx context.Context, eventID string) (*event.Availability, error) {
	if s.cache != nil {
		a, err := s.cache.Get(ctx, eventID)
		if err == nil {
			return a, nil
		}
		if !errors.Is(err, redisinfra.ErrCacheMiss) {
			logger.FromContext(ctx).Warn("キャッシュの取得に失敗しました", zap.String("event_id", eventID), zap.Error(err))
		}
	}

	e, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	a := e.Availability()
	if s.cache != nil && s.cacheTTL > 0 {
		if err := s.cache.Set(ctx, a, s.cacheTTL); err != nil {
			logger.FromContext(ctx).Warn("キャッシュの保存に失敗しました", zap.String("event_id", eventID), zap.Error(err))
		}
	}
	return a, nil
}

// PriceQuote は予約前の見積もり
type PriceQuote struct {
	EventID    string
	Tickets    int
	UnitPrice  decimal.Decimal
	TotalPrice decimal.Decimal
	Available  bool
}

// QuotePrice は指定枚数の合計金額を返す（在庫は確保しない）
func (s *QueryService) QuotePrice(ctx context.Context, eventID string, tickets int) (*PriceQuote, error) {
	if err := booking.ValidateQuantity(tickets); err != nil {
		return nil, err
	}
	e, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return &PriceQuote{
		EventID:    e.ID,
		Tickets:    tickets,
		UnitPrice:  e.TicketPrice,
		TotalPrice: e.PriceFor(tickets),
		Available:  e.CheckReservable(tickets) == nil,
	}, nil
}

// EventSales はイベントの販売集計を返す（主催者本人または管理者）
func (s *QueryService) EventSales(ctx context.Context, actor user.Actor, eventID string) (*booking.SalesSummary, error) {
	if _, err := s.ownedEvent(ctx, actor, eventID); err != nil {
		return nil, err
	}
	return s.queryRepo.SalesSummary(ctx, eventID)
}

// OrganizerAnalytics は主催者単位の集計を返す（本人または管理者）
func (s *QueryService) OrganizerAnalytics(ctx context.Context, actor user.Actor, organizerID string) (*booking.OrganizerSummary, error) {
	if !actor.IsAdmin() && !(actor.IsOrganizer() && actor.UserID == organizerID) {
		return nil, user.ErrForbidden
	}
	return s.queryRepo.OrganizerSummary(ctx, organizerID)
}

func (s *QueryService) ownedEvent(ctx context.Context, actor user.Actor, eventID string) (*event.Event, error) {
	e, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !e.IsOwnedBy(actor.UserID) {
		return nil, user.ErrForbidden
	}
	return e, nil
}
