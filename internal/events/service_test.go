package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"evently/internal/notify/notifytest"
	"evently/internal/store/memstore"
)

func TestCreateRejectsNonPositiveCapacity(t *testing.T) {
	svc := NewService(memstore.New(), notifytest.New(), nil)
	_, err := svc.Create(context.Background(), uuid.New(), CreateInput{
		Name: "Test Event", TotalCapacity: 0, Price: decimal.NewFromInt(10),
	})
	require.Error(t, err)
}

func TestCreateThenGet(t *testing.T) {
	svc := NewService(memstore.New(), notifytest.New(), nil)
	organizerID := uuid.New()
	e, err := svc.Create(context.Background(), organizerID, CreateInput{
		Name: "Indie Night", Venue: "The Commons", EventDate: time.Now().Add(48 * time.Hour),
		TotalCapacity: 100, Price: decimal.NewFromInt(20),
	})
	require.NoError(t, err)
	require.Equal(t, 100, e.AvailableCapacity)
	require.True(t, e.IsActive)
	require.Equal(t, organizerID, e.OrganizerID)

	fetched, err := svc.Get(context.Background(), e.ID)
	require.NoError(t, err)
	require.Equal(t, e.Name, fetched.Name)
}

func TestUpdateEmitsEventUpdateIntentOnlyWhenChanged(t *testing.T) {
	rec := notifytest.New()
	svc := NewService(memstore.New(), rec, nil)
	e, err := svc.Create(context.Background(), uuid.New(), CreateInput{
		Name: "Indie Night", EventDate: time.Now().Add(48 * time.Hour),
		TotalCapacity: 100, Price: decimal.NewFromInt(20),
	})
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), e.ID, UpdateInput{})
	require.NoError(t, err)
	require.Equal(t, 0, rec.CountOfType("EVENT_UPDATE"))

	newVenue := "New Venue"
	_, err = svc.Update(context.Background(), e.ID, UpdateInput{Venue: &newVenue})
	require.NoError(t, err)
	require.Equal(t, 1, rec.CountOfType("EVENT_UPDATE"))
}

func TestDeactivateIsIdempotentAndEmitsOnce(t *testing.T) {
	rec := notifytest.New()
	svc := NewService(memstore.New(), rec, nil)
	e, err := svc.Create(context.Background(), uuid.New(), CreateInput{
		Name: "Indie Night", EventDate: time.Now().Add(48 * time.Hour),
		TotalCapacity: 100, Price: decimal.NewFromInt(20),
	})
	require.NoError(t, err)

	deactivated, err := svc.Deactivate(context.Background(), e.ID)
	require.NoError(t, err)
	require.False(t, deactivated.IsActive)
	require.Equal(t, 1, rec.CountOfType("EVENT_CANCELLATION"))

	again, err := svc.Deactivate(context.Background(), e.ID)
	require.NoError(t, err)
	require.False(t, again.IsActive)
	require.Equal(t, 1, rec.CountOfType("EVENT_CANCELLATION"))
}

func TestListClampsOutOfRangeLimit(t *testing.T) {
	st := memstore.New()
	svc := NewService(st, notifytest.New(), nil)
	for i := 0; i < 3; i++ {
		_, err := svc.Create(context.Background(), uuid.New(), CreateInput{
			Name: "Event", EventDate: time.Now().Add(time.Hour), TotalCapacity: 10, Price: decimal.NewFromInt(5),
		})
		require.NoError(t, err)
	}
	events, total, err := svc.List(context.Background(), 0, 0)
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, events, 3)
}
