// Package notify emits outbound notification intents. Delivery is
// at-least-once and fire-and-forget: the core must never block a booking
// commit on delivery outcome, so Publish errors are logged, not returned
// to the caller that triggered the notification.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// IntentType enumerates the notification intents the core emits after a
// successful commit.
type IntentType string

const (
	IntentBookingConfirmation IntentType = "BOOKING_CONFIRMATION"
	IntentBookingCancellation IntentType = "BOOKING_CANCELLATION"
	IntentWaitlistAvailability IntentType = "WAITLIST_AVAILABILITY"
	IntentEventCancellation   IntentType = "EVENT_CANCELLATION"
	IntentEventUpdate         IntentType = "EVENT_UPDATE"
)

// Intent is the envelope handed to a Publisher. Fields not relevant to a
// given Type are left zero.
type Intent struct {
	Type              IntentType `json:"type"`
	BookingID         *uuid.UUID `json:"booking_id,omitempty"`
	EventID           *uuid.UUID `json:"event_id,omitempty"`
	WaitlistEntryID   *uuid.UUID `json:"waitlist_entry_id,omitempty"`
	AvailableQuantity int        `json:"available_quantity,omitempty"`
	Deadline          *time.Time `json:"deadline,omitempty"`
	Message           string     `json:"message,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Publisher is the outbound transport for notification intents. The
// production implementation (KafkaPublisher) hands intents to Kafka; tests
// use a recording fake.
type Publisher interface {
	Publish(ctx context.Context, intent Intent) error
}

// partitionKey returns the key used to route an intent to a partition,
// keeping all intents for one booking or event ordered relative to each
// other — mirrors the teacher's recipient-keyed hash partitioning.
func (i Intent) partitionKey() string {
	switch {
	case i.BookingID != nil:
		return i.BookingID.String()
	case i.WaitlistEntryID != nil:
		return i.WaitlistEntryID.String()
	case i.EventID != nil:
		return i.EventID.String()
	default:
		return string(i.Type)
	}
}

func (i Intent) toJSON() ([]byte, error) {
	return json.Marshal(i)
}

// BookingConfirmation builds the intent emitted after BookingEngine.Confirm.
func BookingConfirmation(bookingID uuid.UUID) Intent {
	return Intent{Type: IntentBookingConfirmation, BookingID: &bookingID, CreatedAt: time.Now().UTC()}
}

// BookingCancellation builds the intent emitted after BookingEngine.Cancel.
func BookingCancellation(bookingID uuid.UUID) Intent {
	return Intent{Type: IntentBookingCancellation, BookingID: &bookingID, CreatedAt: time.Now().UTC()}
}

// WaitlistAvailability builds the intent emitted by OfferCapacity for each
// entry transitioned to NOTIFIED.
func WaitlistAvailability(entryID uuid.UUID, availableQuantity int, deadline time.Time) Intent {
	return Intent{
		Type:              IntentWaitlistAvailability,
		WaitlistEntryID:   &entryID,
		AvailableQuantity: availableQuantity,
		Deadline:          &deadline,
		CreatedAt:         time.Now().UTC(),
	}
}

// EventCancellation builds the intent emitted when an active event is
// deactivated, whether or not it has bookings.
func EventCancellation(eventID uuid.UUID) Intent {
	return Intent{Type: IntentEventCancellation, EventID: &eventID, CreatedAt: time.Now().UTC()}
}

// EventUpdate builds the intent emitted when an event's date or other
// user-visible detail changes.
func EventUpdate(eventID uuid.UUID, message string) Intent {
	return Intent{Type: IntentEventUpdate, EventID: &eventID, Message: message, CreatedAt: time.Now().UTC()}
}
