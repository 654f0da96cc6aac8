package services

import (
	"math"
	"testing"
)

func TestCalculateDailyLimitZones(t *testing.T) {
	tun := DefaultLimitTunables()

	tests := []struct {
		name      string
		budget    float64
		days      int
		day       int
		spent     float64
		status    LimitStatus
		block     bool
		wantLimit float64
	}{
		{
			name:   "on plan mid-month",
			budget: 3000, days: 30, day: 15, spent: 1500,
			status: StatusGreen, wantLimit: 100,
		},
		{
			name:   "exactly at soft limit stays green",
			budget: 3000, days: 30, day: 15, spent: 1650, // deltaRel = 0.05
			status: StatusGreen, wantLimit: (3000 - 1650) / 15.0,
		},
		{
			name:   "just above soft limit is yellow with penalty",
			budget: 3000, days: 30, day: 15, spent: 1651,
			status: StatusYellow, wantLimit: (3000 - 1651) / 15.0 * 0.8,
		},
		{
			name:   "exactly at hard limit is still yellow",
			budget: 3000, days: 30, day: 15, spent: 1950, // deltaRel = 0.15
			status: StatusYellow, wantLimit: (3000 - 1950) / 15.0 * 0.8,
		},
		{
			name:   "above hard limit blocks",
			budget: 3000, days: 30, day: 15, spent: 1951,
			status: StatusRed, block: true, wantLimit: 0,
		},
		{
			name:   "clearly under plan gets rewarded",
			budget: 3000, days: 30, day: 15, spent: 1000, // deltaRel = -0.1666
			status: StatusGreen, wantLimit: (3000 - 1000) / 15.0 * 1.1,
		},
		{
			name:   "mildly overspent late month clamps limit at zero",
			budget: 3000, days: 30, day: 29, spent: 3100, // deltaRel = 0.0667
			status: StatusYellow, wantLimit: 0,
		},
		{
			name:   "heavily overspent late month blocks",
			budget: 3000, days: 30, day: 29, spent: 3400,
			status: StatusRed, block: true, wantLimit: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateDailyLimit(tt.budget, tt.days, tt.day, tt.spent, tun)
			if got.Status != tt.status {
				t.Errorf("status = %s, want %s", got.Status, tt.status)
			}
			if got.Block != tt.block {
				t.Errorf("block = %v, want %v", got.Block, tt.block)
			}
			if math.Abs(got.NewDailyLimit-tt.wantLimit) > 1e-9 {
				t.Errorf("limit = %f, want %f", got.NewDailyLimit, tt.wantLimit)
			}
		})
	}
}

func TestCalculateDailyLimitEndOfMonth(t *testing.T) {
	got := CalculateDailyLimit(3000, 30, 30, 100, DefaultLimitTunables())
	if !got.Block || got.Status != StatusRed || got.NewDailyLimit != 0 {
		t.Fatalf("end of month must block: %+v", got)
	}
	got = CalculateDailyLimit(3000, 30, 31, 100, DefaultLimitTunables())
	if !got.Block {
		t.Fatalf("past end of month must block: %+v", got)
	}
}

func TestCalculateDailyLimitMonotonic(t *testing.T) {
	tun := DefaultLimitTunables()
	prev := math.Inf(1)
	for spent := 1000.0; spent <= 2200; spent += 50 {
		got := CalculateDailyLimit(3000, 30, 15, spent, tun)
		if got.NewDailyLimit > prev+1e-9 {
			t.Fatalf("limit increased with higher spend at %.0f: %f > %f", spent, got.NewDailyLimit, prev)
		}
		prev = got.NewDailyLimit
	}
}
