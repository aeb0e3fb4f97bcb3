package application

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/event"
	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/user"
	redisinfra "github.com/sanosuguru/go-event-ticket-booking/internal/infrastructure/redis"
	"github.com/sanosuguru/go-event-ticket-booking/internal/pkg/logger"
)

type EventService struct {
	eventRepo event.Repository
	cache     redisinfra.AvailabilityCacheInterface
}

// NewEventService は EventService を作成する（cache は nil を許容）
func NewEventService(eventRepo event.Repository, cache redisinfra.AvailabilityCacheInterface) *EventService {
	return &EventService{eventRepo: eventRepo, cache: cache}
}

type CreateEventInput struct {
	// 管理者のみ他の主催者を指定できる。空なら呼び出し元
	OrganizerID  string
	Title        string
	Description  string
	Location     string
	Category     event.Category
	StartAt      time.Time
	TicketPrice  decimal.Decimal
	TotalTickets int
}

func (s *EventService) CreateEvent(ctx context.Context, actor user.Actor, input CreateEventInput) (*event.Event, error) {
	if !actor.IsOrganizer() && !actor.IsAdmin() {
		return nil, user.ErrForbidden
	}
	organizerID := actor.UserID
	if input.OrganizerID != "" && input.OrganizerID != actor.UserID {
		if !actor.IsAdmin() {
			return nil, user.ErrForbidden
		}
		organizerID = input.OrganizerID
	}

	e := event.NewEvent(organizerID, input.Title, input.Description, input.Location,
		input.Category, input.StartAt, input.TicketPrice, input.TotalTickets)
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("バリデーションエラー: %w", err)
	}
	if err := s.eventRepo.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("イベント作成に失敗しました: %w", err)
	}
	logger.FromContext(ctx).Info("イベントを作成しました", zap.String("event_id", e.ID), zap.String("organizer_id", e.OrganizerID))
	return e, nil
}

func (s *EventService) GetEvent(ctx context.Context, id string) (*event.Event, error) {
	return s.eventRepo.GetByID(ctx, id)
}

func (s *EventService) ListEvents(ctx context.Context, filter event.ListFilter) ([]*event.Event, error) {
	filter.Limit, filter.Offset = normalizePage(filter.Limit, filter.Offset)
	return s.eventRepo.List(ctx, filter)
}

// UpdateEventInput は更新可能な項目（総数と残数は対象外）
type UpdateEventInput struct {
	ID          string
	Title       string
	Description string
	Location    string
	Category    event.Category
	StartAt     time.Time
	TicketPrice decimal.Decimal
}

// UpdateEvent はイベントの付帯情報を更新する
// 単価の変更は以後の予約にのみ反映され、既存予約の金額は変わらない
func (s *EventService) UpdateEvent(ctx context.Context, actor user.Actor, input UpdateEventInput) (*event.Event, error) {
	e, err := s.getOwned(ctx, actor, input.ID)
	if err != nil {
		return nil, err
	}
	e.Title = input.Title
	e.Description = input.Description
	e.Location = input.Location
	e.Category = input.Category
	e.StartAt = input.StartAt
	e.TicketPrice = input.TicketPrice
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("バリデーションエラー: %w", err)
	}
	if err := s.eventRepo.Update(ctx, e); err != nil {
		return nil, err
	}
	s.invalidate(ctx, e.ID)
	return e, nil
}

// ChangeStatus はイベントの状態を変更する（中止・終了後は予約不可）
func (s *EventService) ChangeStatus(ctx context.Context, actor user.Actor, id string, status event.Status) (*event.Event, error) {
	e, err := s.getOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := e.ChangeStatus(status); err != nil {
		return nil, err
	}
	if err := s.eventRepo.Update(ctx, e); err != nil {
		return nil, err
	}
	s.invalidate(ctx, e.ID)
	logger.FromContext(ctx).Info("イベントの状態を変更しました", zap.String("event_id", e.ID), zap.String("status", string(e.Status)))
	return e, nil
}

// DeleteEvent はイベントを削除する（予約が残っている場合は ErrEventHasBookings）
func (s *EventService) DeleteEvent(ctx context.Context, actor user.Actor, id string) error {
	if _, err := s.getOwned(ctx, actor, id); err != nil {
		return err
	}
	if err := s.eventRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// getOwned は主催者本人または管理者であることを確認してイベントを返す
func (s *EventService) getOwned(ctx context.Context, actor user.Actor, id string) (*event.Event, error) {
	e, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !e.IsOwnedBy(actor.UserID) {
		return nil, user.ErrForbidden
	}
	return e, nil
}

func (s *EventService) invalidate(ctx context.Context, eventID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, eventID); err != nil {
		logger.FromContext(ctx).Warn("キャッシュの無効化に失敗しました", zap.String("event_id", eventID), zap.Error(err))
	}
}

// normalizePage はページングの範囲を補正する
func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
