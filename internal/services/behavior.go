package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/w97xqz5xm9-sketch/debt-guard/internal/core"
)

// SpendingBehavior summarizes the last 30 days of spending.
type SpendingBehavior struct {
	TotalSpentCents   int64            `json:"totalSpentCents"`
	AverageDailyCents int64            `json:"averageDailyCents"`
	ImpulsePurchases  int              `json:"impulsePurchases"`
	CategoryBreakdown map[string]int64 `json:"categoryBreakdownCents"`
	TopCategory       string           `json:"topCategory"`
	RiskLevel         string           `json:"riskLevel"`
	ObservationDays   int              `json:"observationDays"`
}

const (
	behaviorWindowDays = 30

	// highDailySpendCents marks an average daily spend as high risk.
	highDailySpendCents int64 = 10000
)

// AnalyzeBehavior classifies the recent spending pattern. Large purchases in
// non-recurring categories count as impulse buys.
func (s *BudgetService) AnalyzeBehavior(ctx context.Context, asOf time.Time) (SpendingBehavior, error) {
	history, err := s.txs.ListTransactions(ctx)
	if err != nil {
		return SpendingBehavior{}, fmt.Errorf("list transactions: %w", err)
	}

	from := core.DayStart(asOf).AddDate(0, 0, -(behaviorWindowDays - 1))
	toDay := core.DayStart(asOf)

	behavior := SpendingBehavior{
		CategoryBreakdown: make(map[string]int64),
		ObservationDays:   behaviorWindowDays,
	}
	for _, tx := range history {
		if !tx.IsExpense() {
			continue
		}
		day := core.DayStart(tx.Date)
		if day.Before(from) || day.After(toDay) {
			continue
		}
		behavior.TotalSpentCents += tx.Amount.Cents
		behavior.CategoryBreakdown[tx.Category] += tx.Amount.Cents
		if tx.IsLargePurchase() && !recurringCategories[tx.Category] {
			if _, hit := matchKeyword(tx.Description); !hit {
				behavior.ImpulsePurchases++
			}
		}
	}
	behavior.AverageDailyCents = behavior.TotalSpentCents / behaviorWindowDays

	type catSum struct {
		name  string
		cents int64
	}
	cats := make([]catSum, 0, len(behavior.CategoryBreakdown))
	for name, cents := range behavior.CategoryBreakdown {
		cats = append(cats, catSum{name, cents})
	}
	sort.Slice(cats, func(i, j int) bool {
		if cats[i].cents != cats[j].cents {
			return cats[i].cents > cats[j].cents
		}
		return cats[i].name < cats[j].name
	})
	if len(cats) > 0 {
		behavior.TopCategory = cats[0].name
	}

	switch {
	case behavior.ImpulsePurchases >= 5 || behavior.AverageDailyCents > highDailySpendCents:
		behavior.RiskLevel = "high"
	case behavior.ImpulsePurchases >= 2:
		behavior.RiskLevel = "medium"
	default:
		behavior.RiskLevel = "low"
	}
	return behavior, nil
}
