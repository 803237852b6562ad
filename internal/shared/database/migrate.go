package database

import (
	"evently/internal/domain"
	"evently/internal/users"

	"gorm.io/gorm"
)

// Migrate auto-migrates every table the engine reads or writes through
// internal/store, plus the auth subsystem's own users table. Order
// matters only for the handful of fields gorm infers foreign keys from;
// users/events/seats come first since bookings/waitlist reference them.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&users.User{},

		&domain.Event{},
		&domain.Seat{},

		&domain.Booking{},
		&domain.SeatBooking{},
		&domain.BookingHistory{},

		&domain.Waitlist{},
	)
	if err != nil {
		return err
	}

	return MigrateConstraints(db)
}
