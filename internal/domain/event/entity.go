package event

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status はイベントの状態を表す
type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// IsValid は定義済みの状態かを返す
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// IsTerminal は終了状態（予約不可）かを返す
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// Category はイベントのカテゴリ
type Category string

const (
	CategoryMusic      Category = "Music"
	CategorySports     Category = "Sports"
	CategoryTheater    Category = "Theater"
	CategoryConference Category = "Conference"
	CategoryOther      Category = "Other"
)

// IsValid は定義済みのカテゴリかを返す
func (c Category) IsValid() bool {
	switch c {
	case CategoryMusic, CategorySports, CategoryTheater, CategoryConference, CategoryOther:
		return true
	}
	return false
}

// Event はイベントエンティティを表す
// RemainingTickets は予約とキャンセル以外では変更しない
type Event struct {
	ID               string
	OrganizerID      string
	Title            string
	Description      string
	Location         string
	Category         Category
	StartAt          time.Time
	Status           Status
	TicketPrice      decimal.Decimal
	TotalTickets     int
	RemainingTickets int
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Version          int // 楽観的ロック用
}

// NewEvent は新しいイベントを作成する（残数は総数で初期化）
func NewEvent(organizerID, title, description, location string, category Category, startAt time.Time, ticketPrice decimal.Decimal, totalTickets int) *Event {
	now := time.Now()
	return &Event{
		OrganizerID:      organizerID,
		Title:            title,
		Description:      description,
		Location:         location,
		Category:         category,
		StartAt:          startAt,
		Status:           StatusActive,
		TicketPrice:      ticketPrice,
		TotalTickets:     totalTickets,
		RemainingTickets: totalTickets,
		CreatedAt:        now,
		UpdatedAt:        now,
		Version:          0,
	}
}

// Validate はイベントの検証を行う
func (e *Event) Validate() error {
	if e.OrganizerID == "" {
		return ErrOrganizerIDRequired
	}
	if e.Title == "" {
		return ErrEventTitleRequired
	}
	if !e.Category.IsValid() {
		return ErrInvalidCategory
	}
	if e.StartAt.IsZero() {
		return ErrStartAtRequired
	}
	if e.TicketPrice.IsNegative() {
		return ErrInvalidTicketPrice
	}
	if e.TotalTickets < 0 {
		return ErrInvalidTotalTickets
	}
	if e.RemainingTickets < 0 || e.RemainingTickets > e.TotalTickets {
		return ErrInventoryInvariant
	}
	return nil
}

// IsBookable は予約を受け付けられる状態かを返す
func (e *Event) IsBookable() bool {
	return e.Status == StatusActive
}

// CheckReservable は n 枚の予約が可能かを書き込みなしで判定する
func (e *Event) CheckReservable(n int) error {
	if !e.IsBookable() {
		return ErrEventNotBookable
	}
	if e.RemainingTickets < n {
		return &InsufficientInventoryError{Requested: n, Remaining: e.RemainingTickets}
	}
	return nil
}

// SoldTickets は販売済み枚数を返す
func (e *Event) SoldTickets() int {
	return e.TotalTickets - e.RemainingTickets
}

// PriceFor は n 枚分の合計金額を返す
func (e *Event) PriceFor(n int) decimal.Decimal {
	return e.TicketPrice.Mul(decimal.NewFromInt(int64(n)))
}

// ChangeStatus はイベントの状態を変更する
// 終了状態からは戻せない
func (e *Event) ChangeStatus(next Status) error {
	if !next.IsValid() {
		return ErrInvalidStatus
	}
	if e.Status == next {
		return nil
	}
	if e.Status.IsTerminal() {
		return ErrEventAlreadyClosed
	}
	e.Status = next
	e.UpdatedAt = time.Now()
	return nil
}

// IsOwnedBy は主催者が一致するかを返す
func (e *Event) IsOwnedBy(userID string) bool {
	return e.OrganizerID != "" && e.OrganizerID == userID
}

// Availability は予約可能枚数の参照用モデル
type Availability struct {
	EventID          string
	Status           Status
	TotalTickets     int
	RemainingTickets int
	TicketPrice      decimal.Decimal
}

// Availability は現在の予約可能枚数を返す
func (e *Event) Availability() *Availability {
	return &Availability{
		EventID:          e.ID,
		Status:           e.Status,
		TotalTickets:     e.TotalTickets,
		RemainingTickets: e.RemainingTickets,
		TicketPrice:      e.TicketPrice,
	}
}
