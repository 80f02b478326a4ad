package database

import (
	"gorm.io/gorm"

	"github.com/amasendi/ridepool-backend/internal/models"
)

func RunMigrations(db *gorm.DB) error {
	// Create tables if they don't exist
	err := db.AutoMigrate(
		&models.User{},
		&models.Occurrence{},
		&models.Booking{},
	)
	if err != nil {
		return err
	}

	// Update users table
	if db.Migrator().HasTable(&models.User{}) {
		columns := []string{
			"ADD COLUMN IF NOT EXISTS car_plate text DEFAULT ''",
			"ADD COLUMN IF NOT EXISTS car_make text DEFAULT ''",
			"ADD COLUMN IF NOT EXISTS car_color text DEFAULT ''",
			"ADD COLUMN IF NOT EXISTS user_type text DEFAULT 'passenger'",
		}

		for _, column := range columns {
			if err := db.Exec("ALTER TABLE users " + column).Error; err != nil {
				return err
			}
		}

		// Update constraint
		db.Exec(`ALTER TABLE users DROP CONSTRAINT IF EXISTS users_user_type_check`)
		db.Exec(`ALTER TABLE users ADD CONSTRAINT users_user_type_check CHECK (user_type IN ('driver', 'passenger'))`)
	}

	// Enum-style checks on occurrences. Direction is only meaningful on
	// round trips; membership columns are fixed at creation.
	if db.Migrator().HasTable(&models.Occurrence{}) {
		db.Exec(`ALTER TABLE occurrences DROP CONSTRAINT IF EXISTS occurrences_posting_type_check`)
		db.Exec(`ALTER TABLE occurrences ADD CONSTRAINT occurrences_posting_type_check CHECK (posting_type IN ('driver', 'passenger', 'flexible'))`)

		db.Exec(`ALTER TABLE occurrences DROP CONSTRAINT IF EXISTS occurrences_status_check`)
		db.Exec(`ALTER TABLE occurrences ADD CONSTRAINT occurrences_status_check CHECK (status IN ('active', 'inactive', 'completed', 'cancelled'))`)

		db.Exec(`ALTER TABLE occurrences DROP CONSTRAINT IF EXISTS occurrences_trip_direction_check`)
		db.Exec(`ALTER TABLE occurrences ADD CONSTRAINT occurrences_trip_direction_check CHECK (
			(is_round_trip = true AND trip_direction IN ('departure', 'return')) OR
			(is_round_trip = false AND trip_direction = 'none')
		)`)
	}

	return nil
}
