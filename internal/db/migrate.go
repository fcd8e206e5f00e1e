package db

import (
	"fmt"

	"github.com/zulandar/switchyard/internal/models"
	"gorm.io/gorm"
)

// AllModels returns every GORM model for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Board{},
		&models.BoardMember{},
		&models.List{},
		&models.Card{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// OpenTestDB opens a migrated in-memory SQLite database. It lives here rather
// than in a _test.go file so every package's tests can share it.
func OpenTestDB() (*gorm.DB, error) {
	db, err := OpenSQLite(":memory:")
	if err != nil {
		return nil, err
	}
	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
