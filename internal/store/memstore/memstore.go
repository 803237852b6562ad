// Package memstore is an in-memory store.Store test double. It honors the
// same CAS contract as the gorm-backed store (internal/store) so the core
// packages' tests exercise real concurrency-control semantics without a
// database.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"evently/internal/domain"
	"evently/internal/store"
)

type MemStore struct {
	mu sync.Mutex

	users    map[uuid.UUID]domain.User
	events   map[uuid.UUID]domain.Event
	seats    map[uuid.UUID]domain.Seat
	bookings map[uuid.UUID]domain.Booking
	sbs      map[[2]uuid.UUID]domain.SeatBooking
	waitlist map[uuid.UUID]domain.Waitlist
	history  []domain.BookingHistory
}

func New() *MemStore {
	return &MemStore{
		users:    map[uuid.UUID]domain.User{},
		events:   map[uuid.UUID]domain.Event{},
		seats:    map[uuid.UUID]domain.Seat{},
		bookings: map[uuid.UUID]domain.Booking{},
		sbs:      map[[2]uuid.UUID]domain.SeatBooking{},
		waitlist: map[uuid.UUID]domain.Waitlist{},
	}
}

// Seed helpers (not part of store.Store) for test setup.
func (m *MemStore) SeedUser(u domain.User)       { m.mu.Lock(); defer m.mu.Unlock(); m.users[u.ID] = u }
func (m *MemStore) SeedEvent(e domain.Event)     { m.mu.Lock(); defer m.mu.Unlock(); m.events[e.ID] = e }
func (m *MemStore) SeedSeat(s domain.Seat)       { m.mu.Lock(); defer m.mu.Unlock(); m.seats[s.ID] = s }
func (m *MemStore) Event(id uuid.UUID) domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[id]
}
func (m *MemStore) Seat(id uuid.UUID) domain.Seat {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seats[id]
}
func (m *MemStore) Booking(id uuid.UUID) domain.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bookings[id]
}
func (m *MemStore) History() []domain.BookingHistory {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.BookingHistory(nil), m.history...)
}

// WithTx runs fn holding the single process-wide lock for the duration,
// which is sufficient to exercise CAS races via concurrent goroutines
// calling WithTx: gorm's real per-row locking is mimicked by having every
// CompareAndUpdateEventCapacity call observe every committed write so far.
func (m *MemStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, &tx{m: m})
}

// tx is the Tx view used both inside WithTx and for direct (non-tx) reads;
// MemStore itself also implements Tx by delegating through a throwaway tx,
// for read-only Scheduler-style calls outside a transaction.
type tx struct{ m *MemStore }

func (m *MemStore) asTx() *tx { return &tx{m: m} }

func (m *MemStore) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.asTx().GetUser(ctx, id)
}
func (m *MemStore) CreateEvent(ctx context.Context, e *domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.asTx().CreateEvent(ctx, e)
}
func (m *MemStore) ListEvents(ctx context.Context, offset, limit int) ([]domain.Event, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.asTx().ListEvents(ctx, offset, limit)
}
func (m *MemStore) GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.asTx().GetEvent(ctx, id)
}
func (m *MemStore) UpdateEvent(ctx context.Context, e *domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.asTx().UpdateEvent(ctx, e)
}
func (m *MemStore) CompareAndUpdateEventCapacity(ctx context.Context, eventID uuid.UUID, expectedVersion, delta int) (*domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.asTx().CompareAndUpdateEventCapacity(ctx, eventID, expectedVersion, delta)
}
func (m *MemStore) ListActiveFutureEvents(ctx context.Context, now time.Time) ([]domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.asTx().ListActiveFutureEvents(ctx, now)
}
func (m *MemStore) GetSeatsByIDs(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID) ([]domain.Seat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.asTx().GetSeatsByIDs(ctx, eventID, seatIDs)
}
func (m *MemStore) ListSeatsByEvent(ctx context.Context, eventID uuid.UUID) ([]domain.Seat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.asTx().ListSeatsByEvent(ctx, eventID)
}
func (m *MemStore) UpdateSeats(ctx context.Context, seats []domain.Seat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.asTx().UpdateSeats(ctx, seats)
}
func (m *MemStore) ListHeldSeatsOlderThan(ctx context.Context, cutoff time.Time) ([]domain.Seat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.asTx().ListHeldSeatsOlderThan(ctx, cutoff)
}
func (m *MemStore) CreateSeatBookings(ctx context.Context, sb []domain.SeatBooking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.asTx().CreateSeatBookings(ctx, sb)
}
func (m *MemStore) GetSeatBookingsByBooking(ctx context.Context, bookingID uuid.UUID) ([]domain.SeatBooking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.asTx().GetSeatBookingsByBooking(ctx, bookingID)
}
func (m *MemStore) DeleteSeatBookingsByBooking(ctx context.Context, bookingID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.asTx().DeleteSeatBookingsByBooking(ctx, bookingID)
}
func (m *MemStore) CreateBooking(ctx context.Context, b *domain.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.asTx().CreateBooking(ctx, b)
}
func (m *MemStore) GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.asTx().GetBooking(ctx, id)
}
func (m *MemStore) UpdateBooking(ctx context.Context, b *domain.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.asTx().UpdateBooking(ctx, b)
}
func (m *MemStore) ListExpiredBookings(ctx context.Context, now time.Time, limit int) ([]domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.asTx().ListExpiredBookings(ctx, now, limit)
}
func (m *MemStore) CountRecentBookings(ctx context.Context, eventID uuid.UUID, since, until time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.asTx().CountRecentBookings(ctx, eventID, since, until)
}
func (m *MemStore) ListBookingsByUser(ctx context.Context, userID uuid.UUID, statusFilter *domain.BookingStatus, offset, limit int) ([]domain.Booking, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.asTx().ListBookingsByUser(ctx, userID, statusFilter, offset, limit)
}
func (m *MemStore) AppendHistory(ctx context.Context, h *domain.BookingHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.asTx().AppendHistory(ctx, h)
}
func (m *MemStore) ListHistoryByBooking(ctx context.Context, bookingID uuid.UUID) ([]domain.BookingHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.asTx().ListHistoryByBooking(ctx, bookingID)
}
func (m *MemStore) CreateWaitlist(ctx context.Context, w *domain.Waitlist) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.asTx().CreateWaitlist(ctx, w)
}
func (m *MemStore) GetWaitlist(ctx context.Context, id uuid.UUID) (*domain.Waitlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.asTx().GetWaitlist(ctx, id)
}
func (m *MemStore) GetNonTerminalWaitlistByUserEvent(ctx context.Context, userID, eventID uuid.UUID) (*domain.Waitlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.asTx().GetNonTerminalWaitlistByUserEvent(ctx, userID, eventID)
}
func (m *MemStore) MaxWaitlistPosition(ctx context.Context, eventID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.asTx().MaxWaitlistPosition(ctx, eventID)
}
func (m *MemStore) ListActiveWaitlistOrdered(ctx context.Context, eventID uuid.UUID) ([]domain.Waitlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.asTx().ListActiveWaitlistOrdered(ctx, eventID)
}
func (m *MemStore) UpdateWaitlist(ctx context.Context, w *domain.Waitlist) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.asTx().UpdateWaitlist(ctx, w)
}
func (m *MemStore) DeleteWaitlist(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.asTx().DeleteWaitlist(ctx, id)
}
func (m *MemStore) DecrementWaitlistPositionsAbove(ctx context.Context, eventID uuid.UUID, position int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.asTx().DecrementWaitlistPositionsAbove(ctx, eventID, position)
}
func (m *MemStore) ListStaleNotifiedWaitlist(ctx context.Context, cutoff time.Time) ([]domain.Waitlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.asTx().ListStaleNotifiedWaitlist(ctx, cutoff)
}
func (m *MemStore) CountWaitlist(ctx context.Context, eventID uuid.UUID) (active, notified, converted int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.asTx().CountWaitlist(ctx, eventID)
}

// --- tx methods (unlocked; caller holds m.mu) ---

func (t *tx) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	u, ok := t.m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (t *tx) GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	e, ok := t.m.events[id]
	if !ok {
		return nil, domain.ErrEventNotFound
	}
	return &e, nil
}

func (t *tx) UpdateEvent(ctx context.Context, e *domain.Event) error {
	t.m.events[e.ID] = *e
	return nil
}

func (t *tx) CreateEvent(ctx context.Context, e *domain.Event) error {
	t.m.events[e.ID] = *e
	return nil
}

func (t *tx) ListEvents(ctx context.Context, offset, limit int) ([]domain.Event, int64, error) {
	all := make([]domain.Event, 0, len(t.m.events))
	for _, e := range t.m.events {
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].EventDate.After(all[j].EventDate) })
	total := int64(len(all))
	if offset >= len(all) {
		return []domain.Event{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (t *tx) CompareAndUpdateEventCapacity(ctx context.Context, eventID uuid.UUID, expectedVersion, delta int) (*domain.Event, error) {
	e, ok := t.m.events[eventID]
	if !ok {
		return nil, domain.ErrEventNotFound
	}
	if e.Version != expectedVersion {
		return nil, domain.ErrStaleVersion
	}
	newAvail := e.AvailableCapacity + delta
	if newAvail < 0 || newAvail > e.TotalCapacity {
		return nil, domain.ErrInsufficientCapacity
	}
	e.AvailableCapacity = newAvail
	e.Version++
	e.UpdatedAt = time.Now().UTC()
	t.m.events[eventID] = e
	cp := e
	return &cp, nil
}

func (t *tx) ListActiveFutureEvents(ctx context.Context, now time.Time) ([]domain.Event, error) {
	var out []domain.Event
	for _, e := range t.m.events {
		if e.IsActive && e.EventDate.After(now) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (t *tx) GetSeatsByIDs(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID) ([]domain.Seat, error) {
	var out []domain.Seat
	for _, id := range seatIDs {
		if s, ok := t.m.seats[id]; ok && s.EventID == eventID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (t *tx) ListSeatsByEvent(ctx context.Context, eventID uuid.UUID) ([]domain.Seat, error) {
	var out []domain.Seat
	for _, s := range t.m.seats {
		if s.EventID == eventID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Section != out[j].Section {
			return out[i].Section < out[j].Section
		}
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Number < out[j].Number
	})
	return out, nil
}

func (t *tx) UpdateSeats(ctx context.Context, seats []domain.Seat) error {
	for _, s := range seats {
		t.m.seats[s.ID] = s
	}
	return nil
}

func (t *tx) ListHeldSeatsOlderThan(ctx context.Context, cutoff time.Time) ([]domain.Seat, error) {
	var out []domain.Seat
	for _, s := range t.m.seats {
		if s.Status == domain.SeatHeld && s.HeldAt != nil && s.HeldAt.Before(cutoff) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (t *tx) CreateSeatBookings(ctx context.Context, sb []domain.SeatBooking) error {
	for _, b := range sb {
		b.CreatedAt = time.Now().UTC()
		t.m.sbs[[2]uuid.UUID{b.BookingID, b.SeatID}] = b
	}
	return nil
}

func (t *tx) GetSeatBookingsByBooking(ctx context.Context, bookingID uuid.UUID) ([]domain.SeatBooking, error) {
	var out []domain.SeatBooking
	for k, b := range t.m.sbs {
		if k[0] == bookingID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (t *tx) DeleteSeatBookingsByBooking(ctx context.Context, bookingID uuid.UUID) error {
	for k := range t.m.sbs {
		if k[0] == bookingID {
			delete(t.m.sbs, k)
		}
	}
	return nil
}

func (t *tx) CreateBooking(ctx context.Context, b *domain.Booking) error {
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	t.m.bookings[b.ID] = *b
	return nil
}

func (t *tx) GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	b, ok := t.m.bookings[id]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	return &b, nil
}

func (t *tx) UpdateBooking(ctx context.Context, b *domain.Booking) error {
	b.UpdatedAt = time.Now().UTC()
	t.m.bookings[b.ID] = *b
	return nil
}

func (t *tx) ListExpiredBookings(ctx context.Context, now time.Time, limit int) ([]domain.Booking, error) {
	var out []domain.Booking
	for _, b := range t.m.bookings {
		if b.Status == domain.BookingPending && b.ExpiresAt != nil && b.ExpiresAt.Before(now) {
			out = append(out, b)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (t *tx) CountRecentBookings(ctx context.Context, eventID uuid.UUID, since, until time.Time) (int64, error) {
	var n int64
	for _, b := range t.m.bookings {
		if b.EventID != eventID {
			continue
		}
		if (b.Status == domain.BookingConfirmed || b.Status == domain.BookingPending) &&
			!b.CreatedAt.Before(since) && b.CreatedAt.Before(until) {
			n++
		}
	}
	return n, nil
}

func (t *tx) ListBookingsByUser(ctx context.Context, userID uuid.UUID, statusFilter *domain.BookingStatus, offset, limit int) ([]domain.Booking, int64, error) {
	var all []domain.Booking
	for _, b := range t.m.bookings {
		if b.UserID != userID {
			continue
		}
		if statusFilter != nil && b.Status != *statusFilter {
			continue
		}
		all = append(all, b)
	}
	total := int64(len(all))
	if offset > len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) || limit <= 0 {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (t *tx) AppendHistory(ctx context.Context, h *domain.BookingHistory) error {
	h.CreatedAt = time.Now().UTC()
	t.m.history = append(t.m.history, *h)
	return nil
}

func (t *tx) ListHistoryByBooking(ctx context.Context, bookingID uuid.UUID) ([]domain.BookingHistory, error) {
	var out []domain.BookingHistory
	for _, h := range t.m.history {
		if h.BookingID == bookingID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (t *tx) CreateWaitlist(ctx context.Context, w *domain.Waitlist) error {
	now := time.Now().UTC()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	w.UpdatedAt = now
	t.m.waitlist[w.ID] = *w
	return nil
}

func (t *tx) GetWaitlist(ctx context.Context, id uuid.UUID) (*domain.Waitlist, error) {
	w, ok := t.m.waitlist[id]
	if !ok {
		return nil, domain.ErrWaitlistNotFound
	}
	return &w, nil
}

func (t *tx) GetNonTerminalWaitlistByUserEvent(ctx context.Context, userID, eventID uuid.UUID) (*domain.Waitlist, error) {
	for _, w := range t.m.waitlist {
		if w.UserID == userID && w.EventID == eventID && w.Status.IsNonTerminal() {
			cp := w
			return &cp, nil
		}
	}
	return nil, nil
}

func (t *tx) MaxWaitlistPosition(ctx context.Context, eventID uuid.UUID) (int, error) {
	max := 0
	for _, w := range t.m.waitlist {
		if w.EventID == eventID && w.Status.IsNonTerminal() && w.Position > max {
			max = w.Position
		}
	}
	return max, nil
}

func (t *tx) ListActiveWaitlistOrdered(ctx context.Context, eventID uuid.UUID) ([]domain.Waitlist, error) {
	var out []domain.Waitlist
	for _, w := range t.m.waitlist {
		if w.EventID == eventID && w.Status == domain.WaitlistActive {
			out = append(out, w)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0; j-- {
			a, b := out[j-1], out[j]
			if a.Position > b.Position || (a.Position == b.Position && a.CreatedAt.After(b.CreatedAt)) {
				out[j-1], out[j] = out[j], out[j-1]
			}
		}
	}
	return out, nil
}

func (t *tx) UpdateWaitlist(ctx context.Context, w *domain.Waitlist) error {
	w.UpdatedAt = time.Now().UTC()
	t.m.waitlist[w.ID] = *w
	return nil
}

func (t *tx) DeleteWaitlist(ctx context.Context, id uuid.UUID) error {
	delete(t.m.waitlist, id)
	return nil
}

func (t *tx) DecrementWaitlistPositionsAbove(ctx context.Context, eventID uuid.UUID, position int) error {
	for id, w := range t.m.waitlist {
		if w.EventID == eventID && w.Position > position && w.Status.IsNonTerminal() {
			w.Position--
			t.m.waitlist[id] = w
		}
	}
	return nil
}

func (t *tx) ListStaleNotifiedWaitlist(ctx context.Context, cutoff time.Time) ([]domain.Waitlist, error) {
	var out []domain.Waitlist
	for _, w := range t.m.waitlist {
		if w.Status == domain.WaitlistNotified && w.UpdatedAt.Before(cutoff) {
			out = append(out, w)
		}
	}
	return out, nil
}

func (t *tx) CountWaitlist(ctx context.Context, eventID uuid.UUID) (active, notified, converted int64, err error) {
	for _, w := range t.m.waitlist {
		if w.EventID != eventID {
			continue
		}
		switch w.Status {
		case domain.WaitlistActive:
			active++
		case domain.WaitlistNotified:
			notified++
		case domain.WaitlistConverted:
			converted++
		}
	}
	return
}

var _ store.Store = (*MemStore)(nil)
