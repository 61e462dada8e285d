package scheduler

import (
	"dropwatch/models"

	"github.com/shopspring/decimal"
)

// AlertState is the state of one alert with respect to the price checker.
type AlertState string

const (
	// AlertIdle means active and not yet fired; the only state the checker
	// can transition out of.
	AlertIdle AlertState = "idle"
	// AlertFired means triggered_at is set. Terminal for the checker; only
	// the API layer moves an alert back to idle.
	AlertFired AlertState = "fired"
	// AlertDisabled means is_active is false, regardless of triggered_at.
	AlertDisabled AlertState = "disabled"
)

// StateOf classifies an alert.
func StateOf(alert models.PriceAlert) AlertState {
	if !alert.IsActive {
		return AlertDisabled
	}
	if alert.TriggeredAt != nil {
		return AlertFired
	}
	return AlertIdle
}

// ShouldFire reports whether observing newPrice transitions the alert from
// idle to fired. Fired and disabled alerts never fire again, which guarantees
// at most one notification per triggering episode.
func ShouldFire(alert models.PriceAlert, newPrice decimal.Decimal) bool {
	return StateOf(alert) == AlertIdle && newPrice.LessThanOrEqual(alert.TargetPrice)
}
