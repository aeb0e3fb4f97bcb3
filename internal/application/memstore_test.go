package application

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/event"
	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/transaction"
)

// memStore はDBの条件付き更新とトランザクションの取り消しを再現するインメモリ実装
// 各操作は単一のミューテックスで直列化され、ロールバックは記録した取り消し操作を逆順に適用する
type memStore struct {
	mu       sync.Mutex
	events   map[string]*event.Event
	bookings map[string]*booking.Booking
	seq      int
}

func newMemStore() *memStore {
	return &memStore{
		events:   make(map[string]*event.Event),
		bookings: make(map[string]*booking.Booking),
	}
}

type memTx struct {
	store *memStore
	undo  []func()
	done  bool
}

func (tx *memTx) Commit() error {
	tx.done = true
	return nil
}

func (tx *memTx) Rollback() error {
	if tx.done {
		return nil
	}
	tx.done = true
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	return nil
}

// Begin implements transaction.Manager
func (s *memStore) Begin(ctx context.Context) (transaction.Tx, error) {
	return &memTx{store: s}, nil
}

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *memStore) addEvent(total int, price string) *event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := event.NewEvent("org-1", "テストイベント", "", "会場", event.CategoryMusic,
		time.Now().Add(24*time.Hour), mustDecimal(price), total)
	e.ID = s.nextID("event")
	s.events[e.ID] = e
	cp := *e
	return &cp
}

// remaining はイベントの残数を返す
func (s *memStore) remaining(eventID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[eventID].RemainingTickets
}

// heldTickets はキャンセルされていない予約の枚数合計を返す
func (s *memStore) heldTickets(eventID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := 0
	for _, b := range s.bookings {
		if b.EventID == eventID && b.Status.HoldsInventory() {
			sum += b.TicketsBooked
		}
	}
	return sum
}

func (s *memStore) bookingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bookings)
}

// --- event.Repository ---

type memEventRepo struct{ s *memStore }

func (r *memEventRepo) Create(ctx context.Context, e *event.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e.ID = r.s.nextID("event")
	cp := *e
	r.s.events[e.ID] = &cp
	return nil
}

func (r *memEventRepo) GetByID(ctx context.Context, id string) (*event.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.events[id]
	if !ok {
		return nil, event.ErrEventNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *memEventRepo) List(ctx context.Context, filter event.ListFilter) ([]*event.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*event.Event
	for _, e := range r.s.events {
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memEventRepo) Update(ctx context.Context, e *event.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.events[e.ID]
	if !ok {
		return event.ErrEventNotFound
	}
	if cur.Version != e.Version {
		return event.ErrOptimisticLockConflict
	}
	cur.Title, cur.Description, cur.Location = e.Title, e.Description, e.Location
	cur.Category, cur.StartAt, cur.Status, cur.TicketPrice = e.Category, e.StartAt, e.Status, e.TicketPrice
	cur.Version++
	e.Version = cur.Version
	return nil
}

func (r *memEventRepo) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.bookings {
		if b.EventID == id {
			return event.ErrEventHasBookings
		}
	}
	delete(r.s.events, id)
	return nil
}

func (r *memEventRepo) ReserveTickets(ctx context.Context, tx transaction.Tx, id string, n int) (*event.Event, error) {
	mtx := tx.(*memTx)
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.events[id]
	if !ok {
		return nil, event.ErrEventNotFound
	}
	// UPDATE ... WHERE status = 'active' AND remaining_tickets >= n と同じ条件
	if !e.IsBookable() {
		return nil, event.ErrEventNotBookable
	}
	if e.RemainingTickets < n {
		return nil, &event.InsufficientInventoryError{Requested: n, Remaining: e.RemainingTickets}
	}
	e.RemainingTickets -= n
	e.Version++
	mtx.undo = append(mtx.undo, func() { e.RemainingTickets += n })
	cp := *e
	return &cp, nil
}

func (r *memEventRepo) ReleaseTickets(ctx context.Context, tx transaction.Tx, id string, n int) (*event.Event, error) {
	mtx := tx.(*memTx)
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.events[id]
	if !ok {
		return nil, event.ErrEventNotFound
	}
	if e.RemainingTickets+n > e.TotalTickets {
		return nil, event.ErrInventoryInvariant
	}
	e.RemainingTickets += n
	e.Version++
	mtx.undo = append(mtx.undo, func() { e.RemainingTickets -= n })
	cp := *e
	return &cp, nil
}

// --- booking.Repository ---

type memBookingRepo struct{ s *memStore }

func (r *memBookingRepo) Create(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	mtx := tx.(*memTx)
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if b.IdempotencyKey != "" {
		for _, existing := range r.s.bookings {
			if existing.IdempotencyKey == b.IdempotencyKey {
				return booking.ErrIdempotencyKeyAlreadyExists
			}
		}
	}
	b.ID = r.s.nextID("booking")
	cp := *b
	r.s.bookings[b.ID] = &cp
	id := b.ID
	mtx.undo = append(mtx.undo, func() { delete(r.s.bookings, id) })
	return nil
}

func (r *memBookingRepo) GetByID(ctx context.Context, id string) (*booking.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *memBookingRepo) GetByIdempotencyKey(ctx context.Context, key string) (*booking.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.bookings {
		if b.IdempotencyKey == key {
			cp := *b
			return &cp, nil
		}
	}
	return nil, booking.ErrBookingNotFound
}

func (r *memBookingRepo) UpdateStatus(ctx context.Context, tx transaction.Tx, b *booking.Booking, prev booking.Status) error {
	mtx := tx.(*memTx)
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.bookings[b.ID]
	if !ok {
		return booking.ErrBookingNotFound
	}
	// UPDATE ... WHERE id = $1 AND status = $prev と同じ比較更新
	if cur.Status != prev {
		return &booking.TransitionError{From: cur.Status, To: b.Status}
	}
	before := *cur
	cur.Status = b.Status
	cur.ConfirmedAt, cur.CancelledAt, cur.UpdatedAt = b.ConfirmedAt, b.CancelledAt, b.UpdatedAt
	mtx.undo = append(mtx.undo, func() { *cur = before })
	return nil
}

func (r *memBookingRepo) Delete(ctx context.Context, tx transaction.Tx, id string) (*booking.Booking, error) {
	mtx := tx.(*memTx)
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.bookings[id]
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	delete(r.s.bookings, id)
	mtx.undo = append(mtx.undo, func() { r.s.bookings[id] = cur })
	cp := *cur
	return &cp, nil
}

func (r *memBookingRepo) GetStalePending(ctx context.Context, before time.Time, limit int) ([]*booking.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*booking.Booking
	for _, b := range r.s.bookings {
		if b.Status == booking.StatusPending && b.CreatedAt.Before(before) {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// newMemBookingService はインメモリ実装で BookingService を組み立てる
func newMemBookingService(s *memStore) (*BookingService, *memEventRepo, *memBookingRepo) {
	er := &memEventRepo{s: s}
	br := &memBookingRepo{s: s}
	return NewBookingService(s, br, er, nil, nil, nil, DefaultBookingOptions()), er, br
}
