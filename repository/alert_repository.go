package repository

import (
	"database/sql"
	"fmt"

	"dropwatch/database"
	"dropwatch/models"

	"github.com/shopspring/decimal"
)

type AlertRepository struct{}

func NewAlertRepository() *AlertRepository {
	return &AlertRepository{}
}

const alertColumns = `id, product_id, target_price, is_active, triggered_at, created_at`

func scanAlert(row rowScanner, a *models.PriceAlert) error {
	return row.Scan(&a.ID, &a.ProductID, &a.TargetPrice, &a.IsActive, &a.TriggeredAt, &a.CreatedAt)
}

// CreateAlert creates a new price alert with triggered_at unset.
func (r *AlertRepository) CreateAlert(productID int64, targetPrice decimal.Decimal) (*models.PriceAlert, error) {
	query := `
		INSERT INTO price_alerts (product_id, target_price)
		VALUES ($1, $2)
		RETURNING ` + alertColumns

	var alert models.PriceAlert
	err := scanAlert(database.DB.QueryRow(query, productID, targetPrice), &alert)
	if err != nil {
		return nil, fmt.Errorf("failed to create alert: %v", err)
	}

	return &alert, nil
}

// GetAlertsByProduct returns all alerts for a product, newest first.
func (r *AlertRepository) GetAlertsByProduct(productID int64) ([]models.PriceAlert, error) {
	query := `SELECT ` + alertColumns + ` FROM price_alerts WHERE product_id = $1 ORDER BY created_at DESC`

	rows, err := database.DB.Query(query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to get alerts: %v", err)
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

// GetAlert returns an alert by id regardless of owner. Used by the notifier.
func (r *AlertRepository) GetAlert(alertID int64) (*models.PriceAlert, error) {
	query := `SELECT ` + alertColumns + ` FROM price_alerts WHERE id = $1`

	var alert models.PriceAlert
	err := scanAlert(database.DB.QueryRow(query, alertID), &alert)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("alert not found")
		}
		return nil, fmt.Errorf("failed to get alert: %v", err)
	}

	return &alert, nil
}

// GetAlertForUser returns an alert only if the owning product belongs to the
// given user.
func (r *AlertRepository) GetAlertForUser(alertID, userID int64) (*models.PriceAlert, error) {
	query := `
		SELECT a.id, a.product_id, a.target_price, a.is_active, a.triggered_at, a.created_at
		FROM price_alerts a
		JOIN products p ON p.id = a.product_id
		WHERE a.id = $1 AND p.user_id = $2
	`

	var alert models.PriceAlert
	err := scanAlert(database.DB.QueryRow(query, alertID, userID), &alert)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("alert not found")
		}
		return nil, fmt.Errorf("failed to get alert: %v", err)
	}

	return &alert, nil
}

// UpdateAlert retargets and/or toggles an alert. Reactivation clears
// triggered_at so the alert can fire again; only the API layer may do this.
func (r *AlertRepository) UpdateAlert(alertID int64, targetPrice *decimal.Decimal, isActive *bool, reactivate bool) (*models.PriceAlert, error) {
	query := `
		UPDATE price_alerts
		SET target_price = COALESCE($2::decimal, target_price),
		    is_active = COALESCE($3::boolean, is_active),
		    triggered_at = CASE WHEN $4 THEN NULL ELSE triggered_at END
		WHERE id = $1
		RETURNING ` + alertColumns

	var priceArg interface{}
	if targetPrice != nil {
		priceArg = *targetPrice
	}
	var activeArg sql.NullBool
	if isActive != nil {
		activeArg = sql.NullBool{Bool: *isActive, Valid: true}
	}

	var alert models.PriceAlert
	err := scanAlert(database.DB.QueryRow(query, alertID, priceArg, activeArg, reactivate), &alert)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("alert not found")
		}
		return nil, fmt.Errorf("failed to update alert: %v", err)
	}

	return &alert, nil
}

// DeleteAlert removes an alert.
func (r *AlertRepository) DeleteAlert(alertID int64) error {
	result, err := database.DB.Exec(`DELETE FROM price_alerts WHERE id = $1`, alertID)
	if err != nil {
		return fmt.Errorf("failed to delete alert: %v", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete alert: %v", err)
	}
	if affected == 0 {
		return fmt.Errorf("alert not found")
	}
	return nil
}
