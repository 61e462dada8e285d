package repository

import (
	"database/sql"
	"fmt"
	"time"

	"dropwatch/database"
	"dropwatch/models"
	"dropwatch/scheduler"

	"github.com/shopspring/decimal"
)

// CycleRepository implements scheduler.Catalog on top of postgres. All of a
// cycle's writes go through one transaction so a persistence failure commits
// nothing.
type CycleRepository struct{}

func NewCycleRepository() *CycleRepository {
	return &CycleRepository{}
}

// ListActiveProducts returns a snapshot of all active products.
func (r *CycleRepository) ListActiveProducts() ([]models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE is_active = TRUE ORDER BY id`

	rows, err := database.DB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active products: %v", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, fmt.Errorf("failed to scan product: %v", err)
		}
		products = append(products, p)
	}

	return products, nil
}

// BeginCycle starts the per-cycle transaction.
func (r *CycleRepository) BeginCycle() (scheduler.CycleTx, error) {
	tx, err := database.DB.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %v", err)
	}
	return &cycleTx{tx: tx}, nil
}

type cycleTx struct {
	tx *sql.Tx
}

func (c *cycleTx) AppendHistorySample(productID int64, price decimal.Decimal, currency string, recordedAt time.Time) error {
	query := `INSERT INTO price_history (product_id, price, currency, recorded_at) VALUES ($1, $2, $3, $4)`
	if _, err := c.tx.Exec(query, productID, price, currency, recordedAt); err != nil {
		return fmt.Errorf("failed to append history sample: %v", err)
	}
	return nil
}

func (c *cycleTx) UpdateProductPrice(productID int64, price decimal.Decimal, currency string, checkedAt time.Time) error {
	query := `
		UPDATE products
		SET current_price = $2, currency = $3, last_checked_at = $4, updated_at = $4
		WHERE id = $1
	`
	if _, err := c.tx.Exec(query, productID, price, currency, checkedAt); err != nil {
		return fmt.Errorf("failed to update product price: %v", err)
	}
	return nil
}

func (c *cycleTx) TouchLastChecked(productID int64, checkedAt time.Time) error {
	query := `UPDATE products SET last_checked_at = $2, updated_at = $2 WHERE id = $1`
	if _, err := c.tx.Exec(query, productID, checkedAt); err != nil {
		return fmt.Errorf("failed to update last checked: %v", err)
	}
	return nil
}

func (c *cycleTx) ListOpenAlerts(productID int64) ([]models.PriceAlert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM price_alerts
		WHERE product_id = $1 AND is_active = TRUE AND triggered_at IS NULL
	`

	rows, err := c.tx.Query(query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list open alerts: %v", err)
	}
	defer rows.Close()

	var alerts []models.PriceAlert
	for rows.Next() {
		var alert models.PriceAlert
		if err := scanAlert(rows, &alert); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %v", err)
		}
		alerts = append(alerts, alert)
	}

	return alerts, nil
}

func (c *cycleTx) MarkAlertTriggered(alertID int64, triggeredAt time.Time) error {
	query := `UPDATE price_alerts SET triggered_at = $2 WHERE id = $1 AND triggered_at IS NULL`
	if _, err := c.tx.Exec(query, alertID, triggeredAt); err != nil {
		return fmt.Errorf("failed to mark alert triggered: %v", err)
	}
	return nil
}

func (c *cycleTx) Commit() error {
	return c.tx.Commit()
}

func (c *cycleTx) Rollback() error {
	return c.tx.Rollback()
}
