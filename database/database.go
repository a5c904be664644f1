package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"storefront/config"
	"storefront/models"
	"storefront/utils"

	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

var DB *sql.DB

func InitDB(cfg *config.Config) error {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	DB = db
	return nil
}

func CloseDB() {
	if DB != nil {
		if err := DB.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}
}

// RunMigrations applies pending schema migrations from the configured
// directory. A database that is already up to date is not an error.
func RunMigrations(cfg *config.Config) error {
	driver, err := migratemysql.WithInstance(DB, &migratemysql.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cfg.MigrationsPath),
		"mysql",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

// SeedAdmin creates the bootstrap admin account when ADMIN_USERNAME and
// ADMIN_PASSWORD are configured and no such user exists yet. Further role
// changes go through the admin-only role endpoint.
func SeedAdmin(cfg *config.Config) error {
	if cfg.AdminUsername == "" || cfg.AdminPassword == "" {
		return nil
	}

	var exists bool
	err := DB.QueryRow("SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)", cfg.AdminUsername).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	hash, err := utils.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}

	tx, err := DB.Begin()
	if err != nil {
		return err
	}

	result, err := tx.Exec(`
		INSERT INTO users (username, password_hash, email, first_name, last_name, role, created_at)
		VALUES (?, ?, ?, '', '', ?, ?)
	`, cfg.AdminUsername, hash, cfg.AdminEmail, models.RoleAdmin, time.Now())
	if err != nil {
		tx.Rollback()
		return err
	}

	userID, err := result.LastInsertId()
	if err != nil {
		tx.Rollback()
		return err
	}

	if _, err := tx.Exec(`
		INSERT INTO user_profiles (user_id, phone, address) VALUES (?, '', '')
	`, userID); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	log.Printf("Seeded admin user %q", cfg.AdminUsername)
	return nil
}
