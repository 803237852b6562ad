package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"evently/internal/domain"
)

// gormStore implements Store over a *gorm.DB. It is safe for concurrent
// use; WithTx opens a new transaction per call.
type gormStore struct {
	db *gorm.DB
}

// New wraps db as a Store. db is expected to already be migrated (see
// internal/shared/database).
func New(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// WithTx opens a transaction and runs fn inside it. The CAS predicate in
// CompareAndUpdateEventCapacity is the real guarantor of no-oversell;
// transaction isolation here only reduces the retry rate under contention.
func (s *gormStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(ctx, &gormStore{db: gtx})
	})
}

func (s *gormStore) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var u domain.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err, domain.ErrUserNotFound)
	}
	return &u, nil
}

func (s *gormStore) CreateEvent(ctx context.Context, e *domain.Event) error {
	return s.db.WithContext(ctx).Create(e).Error
}

func (s *gormStore) ListEvents(ctx context.Context, offset, limit int) ([]domain.Event, int64, error) {
	var events []domain.Event
	var total int64
	if err := s.db.WithContext(ctx).Model(&domain.Event{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := s.db.WithContext(ctx).Order("event_date desc").Offset(offset).Limit(limit).Find(&events).Error
	return events, total, err
}

func (s *gormStore) GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	var e domain.Event
	if err := s.db.WithContext(ctx).First(&e, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err, domain.ErrEventNotFound)
	}
	return &e, nil
}

func (s *gormStore) UpdateEvent(ctx context.Context, e *domain.Event) error {
	return s.db.WithContext(ctx).Save(e).Error
}

func (s *gormStore) ListActiveFutureEvents(ctx context.Context, now time.Time) ([]domain.Event, error) {
	var events []domain.Event
	err := s.db.WithContext(ctx).
		Where("is_active = ? AND event_date > ?", true, now).
		Find(&events).Error
	return events, err
}

// CompareAndUpdateEventCapacity is the sole mutation path for
// Event.availableCapacity. delta is added to availableCapacity; negative
// values reserve, positive values restore. On a zero-row update it
// rereads the row to tell a stale version apart from a definitive
// capacity bound violation.
func (s *gormStore) CompareAndUpdateEventCapacity(ctx context.Context, eventID uuid.UUID, expectedVersion int, delta int) (*domain.Event, error) {
	tx := s.db.WithContext(ctx).Exec(`
		UPDATE events
		SET available_capacity = available_capacity + ?,
		    version = version + 1,
		    updated_at = ?
		WHERE id = ?
		  AND version = ?
		  AND available_capacity + ? >= 0
		  AND available_capacity + ? <= total_capacity
	`, delta, time.Now().UTC(), eventID, expectedVersion, delta, delta)
	if tx.Error != nil {
		return nil, domain.Wrap(domain.ErrServiceUnavailable, tx.Error)
	}

	if tx.RowsAffected == 1 {
		return s.GetEvent(ctx, eventID)
	}

	current, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if current.Version != expectedVersion {
		return nil, domain.ErrStaleVersion
	}
	return nil, domain.ErrInsufficientCapacity
}

func (s *gormStore) GetSeatsByIDs(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID) ([]domain.Seat, error) {
	var seats []domain.Seat
	err := s.db.WithContext(ctx).
		Where("event_id = ? AND id IN ?", eventID, seatIDs).
		Order("id").
		Find(&seats).Error
	return seats, err
}

func (s *gormStore) ListSeatsByEvent(ctx context.Context, eventID uuid.UUID) ([]domain.Seat, error) {
	var seats []domain.Seat
	err := s.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("section, row, number").
		Find(&seats).Error
	return seats, err
}

func (s *gormStore) UpdateSeats(ctx context.Context, seats []domain.Seat) error {
	for i := range seats {
		if err := s.db.WithContext(ctx).Save(&seats[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *gormStore) ListHeldSeatsOlderThan(ctx context.Context, cutoff time.Time) ([]domain.Seat, error) {
	var seats []domain.Seat
	err := s.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", domain.SeatHeld, cutoff).
		Find(&seats).Error
	return seats, err
}

func (s *gormStore) CreateSeatBookings(ctx context.Context, sb []domain.SeatBooking) error {
	if len(sb) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&sb).Error
}

func (s *gormStore) GetSeatBookingsByBooking(ctx context.Context, bookingID uuid.UUID) ([]domain.SeatBooking, error) {
	var sb []domain.SeatBooking
	err := s.db.WithContext(ctx).Where("booking_id = ?", bookingID).Find(&sb).Error
	return sb, err
}

func (s *gormStore) DeleteSeatBookingsByBooking(ctx context.Context, bookingID uuid.UUID) error {
	return s.db.WithContext(ctx).Where("booking_id = ?", bookingID).Delete(&domain.SeatBooking{}).Error
}

func (s *gormStore) CreateBooking(ctx context.Context, b *domain.Booking) error {
	return s.db.WithContext(ctx).Create(b).Error
}

func (s *gormStore) GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	var b domain.Booking
	if err := s.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err, domain.ErrBookingNotFound)
	}
	return &b, nil
}

func (s *gormStore) UpdateBooking(ctx context.Context, b *domain.Booking) error {
	return s.db.WithContext(ctx).Save(b).Error
}

func (s *gormStore) ListExpiredBookings(ctx context.Context, now time.Time, limit int) ([]domain.Booking, error) {
	var bookings []domain.Booking
	err := s.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", domain.BookingPending, now).
		Order("expires_at").
		Limit(limit).
		Find(&bookings).Error
	return bookings, err
}

func (s *gormStore) CountRecentBookings(ctx context.Context, eventID uuid.UUID, since, until time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&domain.Booking{}).
		Where("event_id = ? AND created_at >= ? AND created_at < ? AND status IN ?",
			eventID, since, until, []domain.BookingStatus{domain.BookingConfirmed, domain.BookingPending}).
		Count(&count).Error
	return count, err
}

func (s *gormStore) ListBookingsByUser(ctx context.Context, userID uuid.UUID, statusFilter *domain.BookingStatus, offset, limit int) ([]domain.Booking, int64, error) {
	q := s.db.WithContext(ctx).Model(&domain.Booking{}).Where("user_id = ?", userID)
	if statusFilter != nil {
		q = q.Where("status = ?", *statusFilter)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var bookings []domain.Booking
	err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&bookings).Error
	return bookings, total, err
}

func (s *gormStore) AppendHistory(ctx context.Context, h *domain.BookingHistory) error {
	return s.db.WithContext(ctx).Create(h).Error
}

func (s *gormStore) ListHistoryByBooking(ctx context.Context, bookingID uuid.UUID) ([]domain.BookingHistory, error) {
	var hs []domain.BookingHistory
	err := s.db.WithContext(ctx).Where("booking_id = ?", bookingID).Order("created_at").Find(&hs).Error
	return hs, err
}

func (s *gormStore) CreateWaitlist(ctx context.Context, w *domain.Waitlist) error {
	return s.db.WithContext(ctx).Create(w).Error
}

func (s *gormStore) GetWaitlist(ctx context.Context, id uuid.UUID) (*domain.Waitlist, error) {
	var w domain.Waitlist
	if err := s.db.WithContext(ctx).First(&w, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err, domain.ErrWaitlistNotFound)
	}
	return &w, nil
}

func (s *gormStore) GetNonTerminalWaitlistByUserEvent(ctx context.Context, userID, eventID uuid.UUID) (*domain.Waitlist, error) {
	var w domain.Waitlist
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND event_id = ? AND status IN ?", userID, eventID,
			[]domain.WaitlistStatus{domain.WaitlistActive, domain.WaitlistNotified}).
		First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *gormStore) MaxWaitlistPosition(ctx context.Context, eventID uuid.UUID) (int, error) {
	var max int
	err := s.db.WithContext(ctx).Model(&domain.Waitlist{}).
		Where("event_id = ? AND status IN ?", eventID,
			[]domain.WaitlistStatus{domain.WaitlistActive, domain.WaitlistNotified}).
		Select("COALESCE(MAX(position), 0)").Scan(&max).Error
	return max, err
}

func (s *gormStore) ListActiveWaitlistOrdered(ctx context.Context, eventID uuid.UUID) ([]domain.Waitlist, error) {
	var ws []domain.Waitlist
	err := s.db.WithContext(ctx).
		Where("event_id = ? AND status = ?", eventID, domain.WaitlistActive).
		Order("position ASC, created_at ASC").
		Find(&ws).Error
	return ws, err
}

func (s *gormStore) UpdateWaitlist(ctx context.Context, w *domain.Waitlist) error {
	return s.db.WithContext(ctx).Save(w).Error
}

func (s *gormStore) DeleteWaitlist(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Delete(&domain.Waitlist{}, "id = ?", id).Error
}

func (s *gormStore) DecrementWaitlistPositionsAbove(ctx context.Context, eventID uuid.UUID, position int) error {
	return s.db.WithContext(ctx).Model(&domain.Waitlist{}).
		Where("event_id = ? AND position > ? AND status IN ?", eventID, position,
			[]domain.WaitlistStatus{domain.WaitlistActive, domain.WaitlistNotified}).
		UpdateColumn("position", gorm.Expr("position - 1")).Error
}

func (s *gormStore) ListStaleNotifiedWaitlist(ctx context.Context, cutoff time.Time) ([]domain.Waitlist, error) {
	var ws []domain.Waitlist
	err := s.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", domain.WaitlistNotified, cutoff).
		Find(&ws).Error
	return ws, err
}

func (s *gormStore) CountWaitlist(ctx context.Context, eventID uuid.UUID) (active, notified, converted int64, err error) {
	base := s.db.WithContext(ctx).Model(&domain.Waitlist{}).Where("event_id = ?", eventID)
	if err = base.Session(&gorm.Session{}).Where("status = ?", domain.WaitlistActive).Count(&active).Error; err != nil {
		return
	}
	if err = base.Session(&gorm.Session{}).Where("status = ?", domain.WaitlistNotified).Count(&notified).Error; err != nil {
		return
	}
	err = base.Session(&gorm.Session{}).Where("status = ?", domain.WaitlistConverted).Count(&converted).Error
	return
}

func mapNotFound(err error, sentinel *domain.Error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return domain.Wrap(domain.ErrServiceUnavailable, err)
}
