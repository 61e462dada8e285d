package repository

import (
	"database/sql"
	"fmt"
	"time"

	"dropwatch/database"
	"dropwatch/models"

	"github.com/shopspring/decimal"
)

type ProductRepository struct{}

func NewProductRepository() *ProductRepository {
	return &ProductRepository{}
}

const productColumns = `id, user_id, url, name, current_price, currency, image_url, is_active, check_interval_minutes, last_checked_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner, p *models.Product) error {
	return row.Scan(
		&p.ID, &p.UserID, &p.URL, &p.Name,
		&p.CurrentPrice, &p.Currency, &p.ImageURL,
		&p.IsActive, &p.CheckIntervalMinutes, &p.LastCheckedAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
}

// CreateProduct inserts a new tracked product and fills in the generated
// fields on p.
func (r *ProductRepository) CreateProduct(p *models.Product) error {
	query := `
		INSERT INTO products (user_id, url, name, current_price, currency, image_url, check_interval_minutes, last_checked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, is_active, created_at, updated_at
	`

	err := database.DB.QueryRow(query,
		p.UserID, p.URL, p.Name, p.CurrentPrice, p.Currency, p.ImageURL,
		p.CheckIntervalMinutes, p.LastCheckedAt,
	).Scan(&p.ID, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create product: %v", err)
	}

	return nil
}

// GetProductsByUser returns all of a user's products with active alert counts.
func (r *ProductRepository) GetProductsByUser(userID int64) ([]models.ProductWithAlerts, error) {
	query := `
		SELECT p.id, p.user_id, p.url, p.name, p.current_price, p.currency, p.image_url,
		       p.is_active, p.check_interval_minutes, p.last_checked_at, p.created_at, p.updated_at,
		       (SELECT COUNT(*) FROM price_alerts a WHERE a.product_id = p.id AND a.is_active = TRUE) AS alert_count
		FROM products p
		WHERE p.user_id = $1
		ORDER BY p.created_at DESC
	`

	rows, err := database.DB.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get products: %v", err)
	}
	defer rows.Close()

	var products []models.ProductWithAlerts
	for rows.Next() {
		var p models.ProductWithAlerts
		err := rows.Scan(
			&p.ID, &p.UserID, &p.URL, &p.Name,
			&p.CurrentPrice, &p.Currency, &p.ImageURL,
			&p.IsActive, &p.CheckIntervalMinutes, &p.LastCheckedAt,
			&p.CreatedAt, &p.UpdatedAt, &p.AlertCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %v", err)
		}
		products = append(products, p)
	}

	return products, nil
}

// GetProductByID returns a product owned by the given user.
func (r *ProductRepository) GetProductByID(id, userID int64) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 AND user_id = $2`

	var p models.Product
	err := scanProduct(database.DB.QueryRow(query, id, userID), &p)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("product not found")
		}
		return nil, fmt.Errorf("failed to get product: %v", err)
	}

	return &p, nil
}

// GetProduct returns a product regardless of owner. Used by the notifier.
func (r *ProductRepository) GetProduct(id int64) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	var p models.Product
	err := scanProduct(database.DB.QueryRow(query, id), &p)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("product not found")
		}
		return nil, fmt.Errorf("failed to get product: %v", err)
	}

	return &p, nil
}

// UpdateProductSettings updates the check interval and/or active flag.
func (r *ProductRepository) UpdateProductSettings(id, userID int64, interval *int, isActive *bool) (*models.Product, error) {
	query := `
		UPDATE products
		SET check_interval_minutes = COALESCE($3::integer, check_interval_minutes),
		    is_active = COALESCE($4::boolean, is_active),
		    updated_at = $5
		WHERE id = $1 AND user_id = $2
		RETURNING ` + productColumns

	var intervalArg sql.NullInt64
	if interval != nil {
		intervalArg = sql.NullInt64{Int64: int64(*interval), Valid: true}
	}
	var activeArg sql.NullBool
	if isActive != nil {
		activeArg = sql.NullBool{Bool: *isActive, Valid: true}
	}

	var p models.Product
	err := scanProduct(database.DB.QueryRow(query, id, userID, intervalArg, activeArg, time.Now().UTC()), &p)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("product not found")
		}
		return nil, fmt.Errorf("failed to update product: %v", err)
	}

	return &p, nil
}

// DeleteProduct removes a product and, via cascade, its history and alerts.
func (r *ProductRepository) DeleteProduct(id, userID int64) error {
	result, err := database.DB.Exec(`DELETE FROM products WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete product: %v", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete product: %v", err)
	}
	if affected == 0 {
		return fmt.Errorf("product not found")
	}
	return nil
}

// AddPriceHistory appends a history sample outside of a check cycle. Used for
// the initial sample at product creation.
func (r *ProductRepository) AddPriceHistory(productID int64, price decimal.Decimal, currency string, recordedAt time.Time) error {
	query := `INSERT INTO price_history (product_id, price, currency, recorded_at) VALUES ($1, $2, $3, $4)`

	_, err := database.DB.Exec(query, productID, price, currency, recordedAt)
	if err != nil {
		return fmt.Errorf("failed to add price history: %v", err)
	}

	return nil
}

// GetPriceHistory returns history samples for a product, newest first, with
// optional time-range filters.
func (r *ProductRepository) GetPriceHistory(productID int64, start, end *time.Time, limit int) ([]models.PriceHistory, error) {
	if limit <= 0 || limit > 10000 {
		limit = 1000
	}

	query := `
		SELECT id, product_id, price, currency, recorded_at
		FROM price_history
		WHERE product_id = $1
		AND ($2::timestamp IS NULL OR recorded_at >= $2)
		AND ($3::timestamp IS NULL OR recorded_at <= $3)
		ORDER BY recorded_at DESC
		LIMIT $4
	`

	rows, err := database.DB.Query(query, productID, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get price history: %v", err)
	}
	defer rows.Close()

	var history []models.PriceHistory
	for rows.Next() {
		var entry models.PriceHistory
		err := rows.Scan(&entry.ID, &entry.ProductID, &entry.Price, &entry.Currency, &entry.RecordedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price history: %v", err)
		}
		history = append(history, entry)
	}

	return history, nil
}
