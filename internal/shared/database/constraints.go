package database

import (
	"gorm.io/gorm"
)

// MigrateConstraints adds the indexes the concurrency engine leans on
// beyond what gorm struct tags already create, mirroring the teacher's
// own belt-and-suspenders constraints migration adapted to the new
// schema (domain.Seat's composite uniqueIndex and domain.SeatBooking's
// primary key already enforce no-double-booking; these add read-path
// indexes for the hot queries internal/store issues).
func MigrateConstraints(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE INDEX CONCURRENTLY IF NOT EXISTS idx_seats_event_status
		ON seats (event_id, status);
	`).Error; err != nil {
		return err
	}

	if err := db.Exec(`
		CREATE INDEX CONCURRENTLY IF NOT EXISTS idx_bookings_status_expires_at
		ON bookings (status, expires_at);
	`).Error; err != nil {
		return err
	}

	if err := db.Exec(`
		CREATE INDEX CONCURRENTLY IF NOT EXISTS idx_waitlist_event_status_position
		ON waitlist (event_id, status, position);
	`).Error; err != nil {
		return err
	}

	return nil
}
