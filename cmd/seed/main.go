package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"evently/internal/domain"
	"evently/internal/shared/config"
	"evently/internal/shared/database"
	"evently/internal/users"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// Seeder populates a freshly migrated database with a small, realistic
// dataset for manual testing: a handful of users, a general-admission
// event and a reserved-seating event, ready to book against immediately.
type Seeder struct {
	db *database.DB
}

func main() {
	fmt.Println("🌱 Starting Evently Database Seeder...")

	cfg := config.Load()

	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	seeder := &Seeder{db: db}

	fmt.Println("\n🧹 Cleaning database...")
	if err := seeder.CleanDatabase(); err != nil {
		log.Fatalf("Failed to clean database: %v", err)
	}
	fmt.Println("✅ Database cleaned successfully")

	fmt.Println("\n🌱 Seeding database...")
	if err := seeder.SeedAll(); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}
	fmt.Println("✅ Database seeded successfully")

	fmt.Println("\n🎉 Seeding completed! Database is ready for testing.")
}

// CleanDatabase truncates every table the engine owns, in dependency
// order, deferring constraints the same way the teacher's seeder did.
func (s *Seeder) CleanDatabase() error {
	tables := []string{
		"waitlist",
		"booking_history",
		"seat_bookings",
		"bookings",
		"seats",
		"events",
		"users",
	}

	tx := s.db.PostgreSQL.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Exec("SET CONSTRAINTS ALL DEFERRED").Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to defer constraints: %w", err)
	}

	for _, table := range tables {
		fmt.Printf("  Truncating table: %s\n", table)
		if err := tx.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	if err := tx.Exec("SET CONSTRAINTS ALL IMMEDIATE").Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to restore constraints: %w", err)
	}

	return tx.Commit().Error
}

func (s *Seeder) SeedAll() error {
	ctx := context.Background()

	userIDs, err := s.SeedUsers()
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}

	if err := s.SeedEvents(userIDs["admin"]); err != nil {
		return fmt.Errorf("failed to seed events: %w", err)
	}

	if err := s.db.Redis.FlushDB(ctx).Err(); err != nil {
		log.Printf("Warning: Failed to clear Redis cache: %v", err)
	}

	return nil
}

// SeedUsers creates 1 admin and 2 regular users, password "qwerty" for all.
func (s *Seeder) SeedUsers() (map[string]uuid.UUID, error) {
	fmt.Println("  👤 Seeding users...")

	userIDs := make(map[string]uuid.UUID)

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("qwerty"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	usersData := []struct {
		key       string
		firstName string
		lastName  string
		email     string
		role      users.Role
	}{
		{"admin", "Admin", "User", "admin@evently.test", users.RoleAdmin},
		{"user1", "Riya", "Shah", "riya@evently.test", users.RoleUser},
		{"user2", "Dev", "Patel", "dev@evently.test", users.RoleUser},
	}

	for _, ud := range usersData {
		id := uuid.New()
		u := users.User{
			ID:        id,
			FirstName: ud.firstName,
			LastName:  ud.lastName,
			Email:     ud.email,
			Password:  string(hashedPassword),
			Role:      ud.role,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		if err := s.db.PostgreSQL.Create(&u).Error; err != nil {
			return nil, fmt.Errorf("failed to create user %s: %w", ud.email, err)
		}
		userIDs[ud.key] = id
		fmt.Printf("    ✅ Created user: %s (%s)\n", u.Email, u.Role)
	}

	return userIDs, nil
}

// SeedEvents creates one general-admission event (bookable by quantity
// alone) and one reserved-seating event (with a small seat map), so the
// core engine's two booking paths are both exercisable immediately.
func (s *Seeder) SeedEvents(organizerID uuid.UUID) error {
	fmt.Println("  🎟️  Seeding events...")

	ga := domain.Event{
		ID:                uuid.New(),
		Name:              "Indie Night: The Wandering Stars",
		Description:       "An evening of local indie acts, general admission.",
		Venue:             "The Commons Hall",
		EventDate:         time.Now().Add(14 * 24 * time.Hour),
		TotalCapacity:     300,
		AvailableCapacity: 300,
		Price:             decimal.NewFromFloat(25.00),
		HasSeatSelection:  false,
		Version:           0,
		IsActive:          true,
		OrganizerID:       organizerID,
	}
	if err := s.db.PostgreSQL.Create(&ga).Error; err != nil {
		return fmt.Errorf("failed to create event %s: %w", ga.Name, err)
	}
	fmt.Printf("    ✅ Created event: %s (general admission, capacity %d)\n", ga.Name, ga.TotalCapacity)

	reserved := domain.Event{
		ID:                uuid.New(),
		Name:              "Symphony Under the Stars",
		Description:       "An open-air orchestral performance with assigned seating.",
		Venue:             "Riverside Amphitheatre",
		EventDate:         time.Now().Add(30 * 24 * time.Hour),
		TotalCapacity:     40,
		AvailableCapacity: 40,
		Price:             decimal.NewFromFloat(60.00),
		HasSeatSelection:  true,
		Version:           0,
		IsActive:          true,
		OrganizerID:       organizerID,
	}
	if err := s.db.PostgreSQL.Create(&reserved).Error; err != nil {
		return fmt.Errorf("failed to create event %s: %w", reserved.Name, err)
	}

	seats := make([]domain.Seat, 0, reserved.TotalCapacity)
	rows := []string{"A", "B", "C", "D"}
	for _, row := range rows {
		for number := 1; number <= 10; number++ {
			seats = append(seats, domain.Seat{
				ID:      uuid.New(),
				EventID: reserved.ID,
				Section: "Main",
				Row:     row,
				Number:  fmt.Sprintf("%d", number),
				Price:   reserved.Price,
				Status:  domain.SeatAvailable,
			})
		}
	}
	if err := s.db.PostgreSQL.CreateInBatches(&seats, 20).Error; err != nil {
		return fmt.Errorf("failed to create seats for %s: %w", reserved.Name, err)
	}
	fmt.Printf("    ✅ Created event: %s (reserved seating, %d seats)\n", reserved.Name, len(seats))

	return nil
}
