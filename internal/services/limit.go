// Package services implements the budgeting decision logic: fixed-cost
// analysis, limit calculation, monthly setup management, the rolling budget
// calculator, transaction gating, and unlock handling.
package services

type LimitStatus string

const (
	StatusGreen  LimitStatus = "green"
	StatusYellow LimitStatus = "yellow"
	StatusRed    LimitStatus = "red"
)

// LimitResult is the outcome of the dynamic limit calculation.
type LimitResult struct {
	NewDailyLimit float64     `json:"newDailyLimit"`
	Status        LimitStatus `json:"status"`
	Block         bool        `json:"block"`
}

// LimitTunables parameterize the zone classification.
type LimitTunables struct {
	SoftLimit     float64 // soft deviation bound relative to budget
	HardLimit     float64 // hard deviation bound relative to budget
	PenaltyFactor float64 // limit reduction inside the yellow zone
	RewardFactor  float64 // limit increase when clearly under plan
}

func DefaultLimitTunables() LimitTunables {
	return LimitTunables{
		SoftLimit:     0.05,
		HardLimit:     0.15,
		PenaltyFactor: 0.2,
		RewardFactor:  0.1,
	}
}

// CalculateDailyLimit derives the daily limit for the rest of the month from
// the monthly budget, the current day (1-indexed) and the cumulative spend.
// It is a pure function: the zone classification is re-evaluated on every
// call against fresh history.
//
// Zones relative to the linear plan budget*(day/days):
// green within ±soft, yellow above soft up to hard (inclusive), red above
// hard. Clearly under plan rewards with a slightly raised limit.
func CalculateDailyLimit(budget float64, daysInMonth, dayOfMonth int, spent float64, tun LimitTunables) LimitResult {
	remainingDays := daysInMonth - dayOfMonth
	if remainingDays <= 0 {
		// End of month: nothing left to distribute.
		return LimitResult{NewDailyLimit: 0, Status: StatusRed, Block: true}
	}

	plannedSpend := budget * float64(dayOfMonth) / float64(daysInMonth)
	delta := spent - plannedSpend
	deltaRel := delta / budget
	baseLimit := (budget - spent) / float64(remainingDays)

	switch {
	case deltaRel >= -tun.SoftLimit && deltaRel <= tun.SoftLimit:
		return LimitResult{NewDailyLimit: max(baseLimit, 0), Status: StatusGreen, Block: false}
	case deltaRel > tun.SoftLimit && deltaRel <= tun.HardLimit:
		return LimitResult{NewDailyLimit: max(baseLimit*(1-tun.PenaltyFactor), 0), Status: StatusYellow, Block: false}
	case deltaRel > tun.HardLimit:
		return LimitResult{NewDailyLimit: 0, Status: StatusRed, Block: true}
	}

	// Clearly under plan: reward with a small raise.
	return LimitResult{NewDailyLimit: max(baseLimit*(1+tun.RewardFactor), 0), Status: StatusGreen, Block: false}
}
