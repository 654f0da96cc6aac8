package services

import (
	"context"
	"fmt"
	"time"

	"github.com/w97xqz5xm9-sketch/debt-guard/internal/core"
)

// LimitExplanation exposes every input of the dynamic limit calculation so
// a decision can be traced.
type LimitExplanation struct {
	MonthlyBudget float64     `json:"monthlyBudget"`
	DaysInMonth   int         `json:"daysInMonth"`
	CurrentDay    int         `json:"currentDay"`
	RemainingDays int         `json:"remainingDays"`
	SpentSoFar    float64     `json:"spentSoFar"`
	PlannedSpend  float64     `json:"plannedSpend"`
	Delta         float64     `json:"delta"`
	DeltaRelative float64     `json:"deltaRelative"`
	Result        LimitResult `json:"result"`
	Explanation   string      `json:"explanation"`
}

// Explain runs the dynamic limit calculation on the stored setup and current
// month spend and narrates the outcome.
func (s *BudgetService) Explain(ctx context.Context, asOf time.Time) (LimitExplanation, error) {
	setup, err := s.setups.GetSetup(ctx)
	if err != nil {
		return LimitExplanation{}, fmt.Errorf("load setup: %w", err)
	}
	if setup == nil {
		return LimitExplanation{}, core.ErrNoSetup
	}
	history, err := s.txs.ListTransactions(ctx)
	if err != nil {
		return LimitExplanation{}, fmt.Errorf("list transactions: %w", err)
	}

	monthStart := time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, asOf.Location())
	spentCents := sumExpenses(history, monthStart, asOf)

	budget := setup.VariableBudget.Euros()
	days := core.DaysInMonth(asOf)
	day := asOf.Day()
	spent := core.Money{Cents: spentCents}.Euros()

	result := CalculateDailyLimit(budget, days, day, spent, DefaultLimitTunables())

	planned := budget * float64(day) / float64(days)
	delta := spent - planned
	deltaRel := 0.0
	if budget != 0 {
		deltaRel = delta / budget
	}

	exp := LimitExplanation{
		MonthlyBudget: budget,
		DaysInMonth:   days,
		CurrentDay:    day,
		RemainingDays: days - day,
		SpentSoFar:    spent,
		PlannedSpend:  planned,
		Delta:         delta,
		DeltaRelative: deltaRel,
		Result:        result,
	}
	exp.Explanation = explainResult(exp)
	return exp, nil
}

func explainResult(e LimitExplanation) string {
	switch {
	case e.RemainingDays <= 0:
		return "Monatsende erreicht: Es gibt keine verbleibenden Tage mehr, neue Ausgaben werden blockiert."
	case e.Result.Status == StatusRed:
		return fmt.Sprintf("Du liegst %s über deinem Plan, das ist mehr als 15%% deines Monatsbudgets. Ausgaben sind blockiert.", euroString(int64(e.Delta*100)))
	case e.Result.Status == StatusYellow:
		return fmt.Sprintf("Du liegst %s über deinem Plan. Dein Tageslimit wurde um 20%% reduziert.", euroString(int64(e.Delta*100)))
	case e.Delta < 0 && e.DeltaRelative < -0.05:
		return fmt.Sprintf("Du liegst %s unter deinem Plan. Dein Tageslimit wurde leicht erhöht.", euroString(int64(-e.Delta*100)))
	}
	return "Du liegst im Plan. Dein Tageslimit bleibt unverändert."
}
