package database

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"
)

var DB *sql.DB

// InitDatabase initializes the database connection
func InitDatabase() error {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}

	var err error
	DB, err = sql.Open("postgres", dbURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %v", err)
	}

	if err := DB.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %v", err)
	}

	log.Println("Successfully connected to database")
	return nil
}

// CreateTables creates the necessary tables if they don't exist
func CreateTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			url TEXT NOT NULL,
			name VARCHAR(500) NOT NULL DEFAULT '',
			current_price DECIMAL(10,2),
			currency VARCHAR(10) DEFAULT 'USD',
			image_url TEXT NOT NULL DEFAULT '',
			is_active BOOLEAN DEFAULT TRUE,
			check_interval_minutes INTEGER NOT NULL DEFAULT 60 CHECK (check_interval_minutes >= 15),
			last_checked_at TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS price_history (
			id BIGSERIAL PRIMARY KEY,
			product_id BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
			price DECIMAL(10,2) NOT NULL CHECK (price > 0),
			currency VARCHAR(10) DEFAULT 'USD',
			recorded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS price_alerts (
			id BIGSERIAL PRIMARY KEY,
			product_id BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
			target_price DECIMAL(10,2) NOT NULL CHECK (target_price > 0),
			is_active BOOLEAN DEFAULT TRUE,
			triggered_at TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_products_user ON products (user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_products_active ON products (is_active)`,
		`CREATE INDEX IF NOT EXISTS idx_price_history_product_recorded ON price_history (product_id, recorded_at)`,
		`CREATE INDEX IF NOT EXISTS idx_price_alerts_product ON price_alerts (product_id)`,
		`CREATE INDEX IF NOT EXISTS idx_price_alerts_open ON price_alerts (product_id)
		WHERE is_active = TRUE AND triggered_at IS NULL`,
	}

	for _, query := range queries {
		_, err := DB.Exec(query)
		if err != nil {
			return fmt.Errorf("failed to create table: %v", err)
		}
	}

	return nil
}

// CloseDatabase closes the database connection
func CloseDatabase() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}
