package scheduler

import (
	"testing"
	"time"

	"dropwatch/models"

	"github.com/stretchr/testify/require"
)

func TestDueProducts(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	checkedAt := func(minutesAgo int) *time.Time {
		ts := now.Add(-time.Duration(minutesAgo) * time.Minute)
		return &ts
	}

	testCases := []struct {
		name    string
		product models.Product
		due     bool
	}{
		{
			name:    "never checked",
			product: models.Product{ID: 1, IsActive: true, CheckIntervalMinutes: 60, LastCheckedAt: nil},
			due:     true,
		},
		{
			name:    "interval elapsed",
			product: models.Product{ID: 2, IsActive: true, CheckIntervalMinutes: 60, LastCheckedAt: checkedAt(61)},
			due:     true,
		},
		{
			name:    "exactly at boundary",
			product: models.Product{ID: 3, IsActive: true, CheckIntervalMinutes: 60, LastCheckedAt: checkedAt(60)},
			due:     true,
		},
		{
			name:    "not yet due",
			product: models.Product{ID: 4, IsActive: true, CheckIntervalMinutes: 60, LastCheckedAt: checkedAt(59)},
			due:     false,
		},
		{
			name:    "inactive never due",
			product: models.Product{ID: 5, IsActive: false, CheckIntervalMinutes: 60, LastCheckedAt: nil},
			due:     false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			due := DueProducts(now, []models.Product{tc.product})
			if tc.due {
				require.Len(t, due, 1)
				require.Equal(t, tc.product.ID, due[0].ID)
			} else {
				require.Empty(t, due)
			}
		})
	}
}

func TestDueProductsPreservesOrder(t *testing.T) {
	now := time.Now().UTC()
	products := []models.Product{
		{ID: 3, IsActive: true, CheckIntervalMinutes: 60},
		{ID: 1, IsActive: false, CheckIntervalMinutes: 60},
		{ID: 7, IsActive: true, CheckIntervalMinutes: 60},
	}

	due := DueProducts(now, products)
	require.Len(t, due, 2)
	require.Equal(t, int64(3), due[0].ID)
	require.Equal(t, int64(7), due[1].ID)
}
