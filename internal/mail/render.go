package mail

import (
	"context"
	"fmt"

	"evently/internal/notify"
)

// renderedEmail is the minimal shape render produces before handing off
// to Mailer.Send.
type renderedEmail struct {
	to      string
	subject string
	html    string
	text    string
}

// render resolves the recipient and builds subject/body for one intent.
// Unknown intent types are dropped rather than erroring — a forward-
// compatible consumer should not wedge on a producer-side addition.
func (c *Consumer) render(ctx context.Context, intent notify.Intent) (*renderedEmail, error) {
	switch intent.Type {
	case notify.IntentBookingConfirmation:
		return c.renderBookingConfirmation(ctx, intent)
	case notify.IntentBookingCancellation:
		return c.renderBookingCancellation(ctx, intent)
	case notify.IntentWaitlistAvailability:
		return c.renderWaitlistAvailability(ctx, intent)
	case notify.IntentEventCancellation:
		return c.renderEventCancellation(ctx, intent)
	case notify.IntentEventUpdate:
		return c.renderEventUpdate(ctx, intent)
	default:
		return nil, nil
	}
}

func (c *Consumer) renderBookingConfirmation(ctx context.Context, intent notify.Intent) (*renderedEmail, error) {
	b, err := c.store.GetBooking(ctx, *intent.BookingID)
	if err != nil {
		return nil, fmt.Errorf("load booking %s: %w", *intent.BookingID, err)
	}
	u, err := c.store.GetUser(ctx, b.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", b.UserID, err)
	}
	e, err := c.store.GetEvent(ctx, b.EventID)
	if err != nil {
		return nil, fmt.Errorf("load event %s: %w", b.EventID, err)
	}
	subject := fmt.Sprintf("Your booking for %s is confirmed", e.Name)
	text := fmt.Sprintf("Hi %s,\n\nYour booking %s for %s (%d ticket(s)) is confirmed. See you there!\n",
		u.FirstName, b.ReferenceCode, e.Name, b.Quantity)
	html := fmt.Sprintf("<p>Hi %s,</p><p>Your booking <strong>%s</strong> for <strong>%s</strong> (%d ticket(s)) is confirmed. See you there!</p>",
		u.FirstName, b.ReferenceCode, e.Name, b.Quantity)
	return &renderedEmail{to: u.Email, subject: subject, html: html, text: text}, nil
}

func (c *Consumer) renderBookingCancellation(ctx context.Context, intent notify.Intent) (*renderedEmail, error) {
	b, err := c.store.GetBooking(ctx, *intent.BookingID)
	if err != nil {
		return nil, fmt.Errorf("load booking %s: %w", *intent.BookingID, err)
	}
	u, err := c.store.GetUser(ctx, b.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", b.UserID, err)
	}
	e, err := c.store.GetEvent(ctx, b.EventID)
	if err != nil {
		return nil, fmt.Errorf("load event %s: %w", b.EventID, err)
	}
	subject := fmt.Sprintf("Your booking for %s was cancelled", e.Name)
	text := fmt.Sprintf("Hi %s,\n\nYour booking %s for %s has been cancelled. Any eligible refund is being processed.\n",
		u.FirstName, b.ReferenceCode, e.Name)
	html := fmt.Sprintf("<p>Hi %s,</p><p>Your booking <strong>%s</strong> for <strong>%s</strong> has been cancelled. Any eligible refund is being processed.</p>",
		u.FirstName, b.ReferenceCode, e.Name)
	return &renderedEmail{to: u.Email, subject: subject, html: html, text: text}, nil
}

func (c *Consumer) renderWaitlistAvailability(ctx context.Context, intent notify.Intent) (*renderedEmail, error) {
	w, err := c.store.GetWaitlist(ctx, *intent.WaitlistEntryID)
	if err != nil {
		return nil, fmt.Errorf("load waitlist entry %s: %w", *intent.WaitlistEntryID, err)
	}
	u, err := c.store.GetUser(ctx, w.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", w.UserID, err)
	}
	e, err := c.store.GetEvent(ctx, w.EventID)
	if err != nil {
		return nil, fmt.Errorf("load event %s: %w", w.EventID, err)
	}
	deadline := "soon"
	if intent.Deadline != nil {
		deadline = intent.Deadline.Format("Jan 2 15:04 MST")
	}
	subject := fmt.Sprintf("A spot opened up for %s", e.Name)
	text := fmt.Sprintf("Hi %s,\n\n%d ticket(s) are now available for %s. Claim your spot before %s or it goes to the next person in line.\n",
		u.FirstName, intent.AvailableQuantity, e.Name, deadline)
	html := fmt.Sprintf("<p>Hi %s,</p><p><strong>%d</strong> ticket(s) are now available for <strong>%s</strong>. Claim your spot before <strong>%s</strong> or it goes to the next person in line.</p>",
		u.FirstName, intent.AvailableQuantity, e.Name, deadline)
	return &renderedEmail{to: u.Email, subject: subject, html: html, text: text}, nil
}

func (c *Consumer) renderEventCancellation(ctx context.Context, intent notify.Intent) (*renderedEmail, error) {
	e, err := c.store.GetEvent(ctx, *intent.EventID)
	if err != nil {
		return nil, fmt.Errorf("load event %s: %w", *intent.EventID, err)
	}
	subject := fmt.Sprintf("%s has been cancelled", e.Name)
	text := fmt.Sprintf("%s has been cancelled. If you held a booking, it has been refunded where eligible.\n", e.Name)
	html := fmt.Sprintf("<p><strong>%s</strong> has been cancelled. If you held a booking, it has been refunded where eligible.</p>", e.Name)
	// Event-level intents carry no single recipient and nothing fans
	// them out per booking holder; the email goes to the event's
	// organizer.
	u, err := c.store.GetUser(ctx, e.OrganizerID)
	if err != nil {
		return nil, fmt.Errorf("load organizer %s: %w", e.OrganizerID, err)
	}
	return &renderedEmail{to: u.Email, subject: subject, html: html, text: text}, nil
}

func (c *Consumer) renderEventUpdate(ctx context.Context, intent notify.Intent) (*renderedEmail, error) {
	e, err := c.store.GetEvent(ctx, *intent.EventID)
	if err != nil {
		return nil, fmt.Errorf("load event %s: %w", *intent.EventID, err)
	}
	subject := fmt.Sprintf("%s has been updated", e.Name)
	msg := intent.Message
	if msg == "" {
		msg = "event details updated"
	}
	text := fmt.Sprintf("%s: %s\n", e.Name, msg)
	html := fmt.Sprintf("<p><strong>%s</strong>: %s</p>", e.Name, msg)
	u, err := c.store.GetUser(ctx, e.OrganizerID)
	if err != nil {
		return nil, fmt.Errorf("load organizer %s: %w", e.OrganizerID, err)
	}
	return &renderedEmail{to: u.Email, subject: subject, html: html, text: text}, nil
}
