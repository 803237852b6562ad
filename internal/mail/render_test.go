package mail

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"evently/internal/domain"
	"evently/internal/notify"
	"evently/internal/store/memstore"
)

func seedUserAndEvent(t *testing.T, st *memstore.MemStore) (domain.User, domain.Event) {
	t.Helper()
	u := domain.User{ID: uuid.New(), Email: "attendee@example.com", FirstName: "Riya", LastName: "Shah"}
	st.SeedUser(u)
	e := domain.Event{
		ID: uuid.New(), Name: "Indie Night", OrganizerID: u.ID,
		EventDate: time.Now().Add(48 * time.Hour), TotalCapacity: 100,
		AvailableCapacity: 100, Price: decimal.NewFromInt(20), IsActive: true,
	}
	st.SeedEvent(e)
	return u, e
}

func TestRenderBookingConfirmation(t *testing.T) {
	st := memstore.New()
	u, e := seedUserAndEvent(t, st)
	b := domain.Booking{
		ID: uuid.New(), ReferenceCode: "EVT-ABC123", UserID: u.ID, EventID: e.ID,
		Quantity: 2, Status: domain.BookingConfirmed,
	}
	require.NoError(t, st.CreateBooking(context.Background(), &b))

	c := &Consumer{store: st}
	email, err := c.render(context.Background(), notify.BookingConfirmation(b.ID))
	require.NoError(t, err)
	require.NotNil(t, email)
	require.Equal(t, u.Email, email.to)
	require.Contains(t, email.subject, "Indie Night")
	require.Contains(t, email.text, "EVT-ABC123")
}

func TestRenderWaitlistAvailability(t *testing.T) {
	st := memstore.New()
	u, e := seedUserAndEvent(t, st)
	w := domain.Waitlist{
		ID: uuid.New(), UserID: u.ID, EventID: e.ID,
		RequestedQuantity: 1, Status: domain.WaitlistNotified, Position: 0,
	}
	require.NoError(t, st.CreateWaitlist(context.Background(), &w))

	c := &Consumer{store: st}
	deadline := time.Now().Add(time.Hour)
	email, err := c.render(context.Background(), notify.WaitlistAvailability(w.ID, 3, deadline))
	require.NoError(t, err)
	require.NotNil(t, email)
	require.Equal(t, u.Email, email.to)
	require.Contains(t, email.text, "3 ticket")
}

func TestRenderUnknownIntentTypeIsDropped(t *testing.T) {
	c := &Consumer{store: memstore.New()}
	email, err := c.render(context.Background(), notify.Intent{Type: "SOMETHING_NEW"})
	require.NoError(t, err)
	require.Nil(t, email)
}

func TestBuildMessageIncludesBothParts(t *testing.T) {
	m := NewMailer(Config{FromEmail: "no-reply@evently.test", FromName: "Evently"})
	msg := string(m.buildMessage("user@example.com", "Subject line", "<p>hi</p>", "hi"))
	require.Contains(t, msg, "Subject: Subject line")
	require.Contains(t, msg, "Content-Type: text/plain")
	require.Contains(t, msg, "Content-Type: text/html")
	require.Contains(t, msg, "<p>hi</p>")
}
