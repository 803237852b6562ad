// Package events is the admin-facing catalog surface over domain.Event:
// create, browse, update and deactivate — the one piece of the teacher's
// elaborate event-management feature (venue templates, per-section
// pricing, tag taxonomy, analytics aggregation) the expanded spec keeps,
// since those remaining features are explicit Non-goals ("analytics
// aggregation", "admin dashboards") while event update/deactivation
// notification intents are a named supplemented feature (SPEC_FULL §10.6).
//
// Grounded on the teacher's internal/events service for the
// create/update/deactivate shape, rewritten against domain.Event and
// internal/store instead of a dedicated repository, and wired to
// internal/notify so update/deactivation emit the same intents a booking
// commit would.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"evently/internal/domain"
	"evently/internal/notify"
	"evently/internal/store"
)

// CreateInput is the admin-supplied shape for a new event.
type CreateInput struct {
	Name             string
	Description      string
	Venue            string
	EventDate        time.Time
	TotalCapacity    int
	Price            decimal.Decimal
	HasSeatSelection bool
}

// UpdateInput carries only the fields an admin may change after creation.
// A nil pointer means "leave unchanged".
type UpdateInput struct {
	Name        *string
	Description *string
	Venue       *string
	EventDate   *time.Time
	Price       *decimal.Decimal
}

// Service is the admin catalog surface.
type Service struct {
	store     store.Store
	publisher notify.Publisher
	log       *slog.Logger
}

func NewService(st store.Store, publisher notify.Publisher, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: st, publisher: publisher, log: log}
}

func (s *Service) Create(ctx context.Context, organizerID uuid.UUID, in CreateInput) (*domain.Event, error) {
	if in.TotalCapacity <= 0 {
		return nil, domain.WithDetail(domain.ErrInvalidQuantity, "total_capacity must be positive")
	}
	e := &domain.Event{
		ID:                uuid.New(),
		Name:              in.Name,
		Description:       in.Description,
		Venue:             in.Venue,
		EventDate:         in.EventDate,
		TotalCapacity:     in.TotalCapacity,
		AvailableCapacity: in.TotalCapacity,
		Price:             in.Price,
		HasSeatSelection:  in.HasSeatSelection,
		Version:           0,
		IsActive:          true,
		OrganizerID:       organizerID,
	}
	if err := s.store.CreateEvent(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	return s.store.GetEvent(ctx, id)
}

func (s *Service) List(ctx context.Context, offset, limit int) ([]domain.Event, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.ListEvents(ctx, offset, limit)
}

func (s *Service) ListUpcoming(ctx context.Context) ([]domain.Event, error) {
	return s.store.ListActiveFutureEvents(ctx, time.Now().UTC())
}

// Update changes the mutable, user-visible fields of an event and emits an
// EventUpdate notification intent so anyone holding a booking hears about
// the change (e.g. a venue or date correction).
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*domain.Event, error) {
	e, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	changed := false
	if in.Name != nil {
		e.Name = *in.Name
		changed = true
	}
	if in.Description != nil {
		e.Description = *in.Description
		changed = true
	}
	if in.Venue != nil {
		e.Venue = *in.Venue
		changed = true
	}
	if in.EventDate != nil {
		e.EventDate = *in.EventDate
		changed = true
	}
	if in.Price != nil {
		e.Price = *in.Price
		changed = true
	}
	if err := s.store.UpdateEvent(ctx, e); err != nil {
		return nil, err
	}
	if changed {
		s.emit(ctx, notify.EventUpdate(e.ID, "event details updated"))
	}
	return e, nil
}

// Deactivate marks an event inactive so no further bookings can be
// created against it (spec §4.4.1's IsActive precondition), and emits an
// EventCancellation intent, which is mailed to the event's organizer.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	e, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if !e.IsActive {
		return e, nil
	}
	e.IsActive = false
	if err := s.store.UpdateEvent(ctx, e); err != nil {
		return nil, err
	}
	s.emit(ctx, notify.EventCancellation(e.ID))
	return e, nil
}

func (s *Service) emit(ctx context.Context, intent notify.Intent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, intent); err != nil {
		s.log.WarnContext(ctx, "notification publish failed", slog.String("type", string(intent.Type)), slog.String("error", err.Error()))
	}
}
