package scheduler

import (
	"time"

	"dropwatch/models"
)

// DueProducts filters a catalog snapshot down to the products eligible for a
// check at now. A product is due when it has never been checked, or when its
// interval has elapsed since the last check (boundary inclusive). The same
// now must be used for the whole cycle; eligibility is not re-evaluated
// mid-cycle.
func DueProducts(now time.Time, products []models.Product) []models.Product {
	var due []models.Product
	for _, p := range products {
		if !p.IsActive {
			continue
		}
		if p.LastCheckedAt == nil || !now.Before(p.LastCheckedAt.Add(p.CheckInterval())) {
			due = append(due, p)
		}
	}
	return due
}
