package scheduler

import (
	"testing"
	"time"

	"dropwatch/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestStateOf(t *testing.T) {
	fired := time.Now()

	require.Equal(t, AlertIdle, StateOf(models.PriceAlert{IsActive: true}))
	require.Equal(t, AlertFired, StateOf(models.PriceAlert{IsActive: true, TriggeredAt: &fired}))
	require.Equal(t, AlertDisabled, StateOf(models.PriceAlert{IsActive: false}))
	require.Equal(t, AlertDisabled, StateOf(models.PriceAlert{IsActive: false, TriggeredAt: &fired}))
}

func TestShouldFire(t *testing.T) {
	target := decimal.RequireFromString("100.00")
	fired := time.Now()

	testCases := []struct {
		name     string
		alert    models.PriceAlert
		newPrice string
		want     bool
	}{
		{
			name:     "price below target",
			alert:    models.PriceAlert{IsActive: true, TargetPrice: target},
			newPrice: "95.00",
			want:     true,
		},
		{
			name:     "price equal to target",
			alert:    models.PriceAlert{IsActive: true, TargetPrice: target},
			newPrice: "100.00",
			want:     true,
		},
		{
			name:     "price above target",
			alert:    models.PriceAlert{IsActive: true, TargetPrice: target},
			newPrice: "100.01",
			want:     false,
		},
		{
			name:     "already fired",
			alert:    models.PriceAlert{IsActive: true, TargetPrice: target, TriggeredAt: &fired},
			newPrice: "80.00",
			want:     false,
		},
		{
			name:     "disabled",
			alert:    models.PriceAlert{IsActive: false, TargetPrice: target},
			newPrice: "80.00",
			want:     false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := ShouldFire(tc.alert, decimal.RequireFromString(tc.newPrice))
			require.Equal(t, tc.want, got)
		})
	}
}

// A falling price fires the alert exactly once even as the price keeps
// dropping on later observations.
func TestShouldFireOncePerEpisode(t *testing.T) {
	alert := models.PriceAlert{IsActive: true, TargetPrice: decimal.RequireFromString("100.00")}

	observations := []string{"120.00", "95.00", "80.00"}
	firedCount := 0
	for _, raw := range observations {
		price := decimal.RequireFromString(raw)
		if ShouldFire(alert, price) {
			firedCount++
			now := time.Now()
			alert.TriggeredAt = &now
		}
	}

	require.Equal(t, 1, firedCount)
}
