// Package waitlist implements the per-event FIFO waitlist: enqueue,
// dequeue, the notification window, and the capacity handoff from
// cancellations and expirations. Positions are dense and gap-free over
// non-terminal entries per event.
package waitlist

import (
	"context"
	"time"

	"github.com/google/uuid"

	"evently/internal/domain"
	"evently/internal/notify"
	"evently/internal/store"
)

type Coordinator struct {
	notifyWindow time.Duration
	publisher    notify.Publisher
}

// New builds a WaitlistCoordinator. notifyWindow is the booking window
// granted to a NOTIFIED entry before ExpireNotifications requeues it.
func New(notifyWindow time.Duration, publisher notify.Publisher) *Coordinator {
	return &Coordinator{notifyWindow: notifyWindow, publisher: publisher}
}

// Join enqueues a user for an event. Rejects if the event is not
// effectively sold out, or if the user already holds a non-terminal entry.
func (c *Coordinator) Join(ctx context.Context, tx store.Tx, userID, eventID uuid.UUID, quantity int) (*domain.Waitlist, error) {
	event, err := tx.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.IsActive {
		return nil, domain.ErrEventInactive
	}
	if event.AvailableCapacity >= quantity {
		return nil, domain.ErrEventNotSoldOut
	}

	existing, err := tx.GetNonTerminalWaitlistByUserEvent(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrAlreadyOnWaitlist
	}

	maxPos, err := tx.MaxWaitlistPosition(ctx, eventID)
	if err != nil {
		return nil, err
	}

	entry := &domain.Waitlist{
		ID:                uuid.New(),
		UserID:            userID,
		EventID:           eventID,
		RequestedQuantity: quantity,
		Position:          maxPos + 1,
		Status:            domain.WaitlistActive,
	}
	if err := tx.CreateWaitlist(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Leave removes a user's non-terminal entry and compacts positions of
// every entry behind it (the dense invariant).
func (c *Coordinator) Leave(ctx context.Context, tx store.Tx, userID, eventID uuid.UUID) (bool, error) {
	entry, err := tx.GetNonTerminalWaitlistByUserEvent(ctx, userID, eventID)
	if err != nil {
		return false, err
	}
	if entry == nil {
		return false, nil
	}
	if err := tx.DeleteWaitlist(ctx, entry.ID); err != nil {
		return false, err
	}
	if err := tx.DecrementWaitlistPositionsAbove(ctx, eventID, entry.Position); err != nil {
		return false, err
	}
	return true, nil
}

// OfferCapacity walks ACTIVE entries in ascending position (ties by
// createdAt) and transitions eligible entries to NOTIFIED. Fairness is
// strict head-of-line: the walk stops at the first entry whose
// requestedQuantity exceeds what remains, even if a later, smaller entry
// could be satisfied — a blocking head is never leap-frogged.
func (c *Coordinator) OfferCapacity(ctx context.Context, tx store.Tx, eventID uuid.UUID, availableQuantity int) ([]domain.Waitlist, error) {
	entries, err := tx.ListActiveWaitlistOrdered(ctx, eventID)
	if err != nil {
		return nil, err
	}

	remaining := availableQuantity
	now := time.Now().UTC()
	var notified []domain.Waitlist
	for i := range entries {
		e := entries[i]
		if e.RequestedQuantity > remaining {
			break
		}
		e.Status = domain.WaitlistNotified
		e.NotifiedAt = &now
		if err := tx.UpdateWaitlist(ctx, &e); err != nil {
			return nil, err
		}
		remaining -= e.RequestedQuantity
		notified = append(notified, e)

		deadline := now.Add(c.notifyWindow)
		if c.publisher != nil {
			_ = c.publisher.Publish(ctx, notify.WaitlistAvailability(e.ID, availableQuantity, deadline))
		}
	}
	return notified, nil
}

// ExpireNotifications requeues every NOTIFIED entry whose updatedAt is
// older than cutoff back to ACTIVE at the tail. Never CONVERTED→ACTIVE,
// and never emits a new notification — matches the retrieved original's
// silent requeue behavior (open question §9, resolved: no re-notify).
func (c *Coordinator) ExpireNotifications(ctx context.Context, tx store.Tx, cutoff time.Time) (int, error) {
	stale, err := tx.ListStaleNotifiedWaitlist(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	for _, s := range stale {
		e, err := tx.GetWaitlist(ctx, s.ID)
		if err != nil {
			return 0, err
		}
		maxPos, err := tx.MaxWaitlistPosition(ctx, e.EventID)
		if err != nil {
			return 0, err
		}
		oldPos := e.Position
		e.Status = domain.WaitlistActive
		e.NotifiedAt = nil
		e.Position = maxPos + 1
		if err := tx.UpdateWaitlist(ctx, e); err != nil {
			return 0, err
		}
		if err := tx.DecrementWaitlistPositionsAbove(ctx, e.EventID, oldPos); err != nil {
			return 0, err
		}
	}
	return len(stale), nil
}

// Convert transitions a NOTIFIED entry to CONVERTED (terminal) and
// compacts positions behind it, same as Leave.
func (c *Coordinator) Convert(ctx context.Context, tx store.Tx, entryID uuid.UUID) error {
	entry, err := tx.GetWaitlist(ctx, entryID)
	if err != nil {
		return err
	}
	if entry.Status != domain.WaitlistNotified {
		return domain.WithDetail(domain.ErrInvalidBookingState, "waitlist entry is not NOTIFIED")
	}
	entry.Status = domain.WaitlistConverted
	if err := tx.UpdateWaitlist(ctx, entry); err != nil {
		return err
	}
	return tx.DecrementWaitlistPositionsAbove(ctx, entry.EventID, entry.Position)
}

// Stats reports queue composition for an event, used by the estimated
// wait time / categorized-bookings supplement (SPEC_FULL §10.4).
type Stats struct {
	Active, Notified, Converted int64
}

func (c *Coordinator) Stats(ctx context.Context, tx store.Tx, eventID uuid.UUID) (Stats, error) {
	a, n, conv, err := tx.CountWaitlist(ctx, eventID)
	return Stats{Active: a, Notified: n, Converted: conv}, err
}
