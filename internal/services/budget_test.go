package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/w97xqz5xm9-sketch/debt-guard/internal/core"

	"github.com/w97xqz5xm9-sketch/debt-guard/internal/log"
	"github.com/w97xqz5xm9-sketch/debt-guard/internal/store/memory"
)

func newBudgetFixture() (*BudgetService, *memory.Store) {
	logger := log.New(log.DefaultConfig())
	s := memory.New()
	return NewBudgetService(s, s, NewFixedCostAnalyzer(logger), logger), s
}

func putSetup(t *testing.T, s *memory.Store, setup core.MonthlySetup) {
	t.Helper()
	if err := s.PutSetup(context.Background(), &setup); err != nil {
		t.Fatal(err)
	}
}

func TestCalculateDistributesRemainingBudget(t *testing.T) {
	svc, s := newBudgetFixture()
	ctx := context.Background()
	asOf := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	putSetup(t, s, core.MonthlySetup{
		SavingsGoal:    core.Money{Cents: 20000},
		MonthlyIncome:  core.Money{Cents: 300000},
		MonthStartDate: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	})
	// 50€ spent this month, no recurring costs on file.
	if _, err := s.AppendTransaction(ctx, expenseOn("Supermarkt", "Lebensmittel", 5000, asOf.AddDate(0, 0, -7))); err != nil {
		t.Fatal(err)
	}

	calc, err := svc.Calculate(ctx, asOf)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}

	// income 3000 - savings 200 = 2800 variable; spent 50 leaves 2750 to
	// spread over the 6 windows of the remaining 17 August days. The
	// monthly figure reports the variable budget, not the remainder.
	if calc.MonthlyAvailable.Cents != 280000 {
		t.Errorf("monthly available = %d, want 280000", calc.MonthlyAvailable.Cents)
	}
	if calc.DailyAvailable.Cents != 275000/6 {
		t.Errorf("3-day limit = %d, want %d", calc.DailyAvailable.Cents, int64(275000/6))
	}
	if calc.SavingsAllocation.Cents != 20000 {
		t.Errorf("savings allocation = %d", calc.SavingsAllocation.Cents)
	}
	if len(calc.Recommendations) == 0 {
		t.Fatal("expected a recommendation")
	}
}

func TestCalculateFloorsAtSubsistence(t *testing.T) {
	svc, s := newBudgetFixture()
	ctx := context.Background()
	asOf := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	putSetup(t, s, core.MonthlySetup{
		SavingsGoal:    core.Money{Cents: 20000},
		MonthlyIncome:  core.Money{Cents: 300000},
		MonthStartDate: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	})
	// Blow the whole budget in one purchase.
	if _, err := s.AppendTransaction(ctx, expenseOn("Neue Möbel", "Einkaufen", 400000, asOf.AddDate(0, 0, -3))); err != nil {
		t.Fatal(err)
	}

	calc, err := svc.Calculate(ctx, asOf)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if calc.DailyAvailable.Cents != core.MinimumThreeDayAmountCents {
		t.Errorf("overspent month must floor at %d, got %d", core.MinimumThreeDayAmountCents, calc.DailyAvailable.Cents)
	}
	// The monthly figure stays at the (non-negative) variable budget even
	// when the month is overspent.
	if calc.MonthlyAvailable.Cents != 280000 {
		t.Errorf("monthly available = %d, want 280000", calc.MonthlyAvailable.Cents)
	}
	found := false
	for _, r := range calc.Recommendations {
		if strings.Contains(r, "37,50€") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected subsistence recommendation, got %v", calc.Recommendations)
	}
}

func TestCalculateRiskFactorClamped(t *testing.T) {
	svc, s := newBudgetFixture()
	ctx := context.Background()
	asOf := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	putSetup(t, s, core.MonthlySetup{
		SavingsGoal:    core.Money{Cents: 20000},
		MonthlyIncome:  core.Money{Cents: 300000},
		MonthStartDate: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	})
	// Heavy spending inside the current 3-day window.
	if _, err := s.AppendTransaction(ctx, expenseOn("Elektronik", "Einkaufen", 200000, asOf.AddDate(0, 0, -1))); err != nil {
		t.Fatal(err)
	}

	calc, err := svc.Calculate(ctx, asOf)
	if err != nil {
		t.Fatal(err)
	}
	if calc.RiskFactor != 1 {
		t.Errorf("risk factor = %f, want clamp at 1", calc.RiskFactor)
	}
}

func TestCalculateWithoutSetupLocksDown(t *testing.T) {
	svc, _ := newBudgetFixture()
	calc, err := svc.Calculate(context.Background(), time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if calc.DailyAvailable.Cents != 0 || calc.MonthlyAvailable.Cents != 0 {
		t.Errorf("missing setup must zero the budget: %+v", calc)
	}
	if calc.RiskFactor != 0 {
		t.Errorf("risk factor = %f, want 0", calc.RiskFactor)
	}
	found := false
	for _, r := range calc.Recommendations {
		if strings.Contains(r, "Monats-Setup") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected setup reminder, got %v", calc.Recommendations)
	}
}

func TestCalculateStaleSetupLocksDown(t *testing.T) {
	svc, s := newBudgetFixture()
	ctx := context.Background()
	asOf := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	// A setup from July must not produce an August allowance.
	putSetup(t, s, core.MonthlySetup{
		SavingsGoal:    core.Money{Cents: 20000},
		MonthlyIncome:  core.Money{Cents: 300000},
		MonthStartDate: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
	})

	calc, err := svc.Calculate(ctx, asOf)
	if err != nil {
		t.Fatal(err)
	}
	if calc.DailyAvailable.Cents != 0 || calc.MonthlyAvailable.Cents != 0 {
		t.Errorf("stale setup must zero the budget: %+v", calc)
	}
	if len(calc.Recommendations) != 1 || !strings.Contains(calc.Recommendations[0], "Monats-Setup") {
		t.Errorf("expected only the setup reminder, got %v", calc.Recommendations)
	}

	w, err := svc.Window(ctx, asOf)
	if err != nil {
		t.Fatal(err)
	}
	if w.LimitCents != 0 {
		t.Errorf("window limit = %d, want 0 until setup is redone", w.LimitCents)
	}
}

func TestCalculateFallsBackToTrailingIncome(t *testing.T) {
	svc, s := newBudgetFixture()
	ctx := context.Background()
	asOf := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	// Setup without an income figure: the trailing 30-day income applies.
	putSetup(t, s, core.MonthlySetup{
		MonthStartDate: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	})
	if _, err := s.AppendTransaction(ctx, core.Transaction{
		Amount:      core.Money{Cents: 250000},
		Description: "Gehalt",
		Category:    "Einkommen",
		Date:        asOf.AddDate(0, 0, -10),
		Kind:        core.Income,
	}); err != nil {
		t.Fatal(err)
	}

	calc, err := svc.Calculate(ctx, asOf)
	if err != nil {
		t.Fatal(err)
	}
	if calc.DailyAvailable.Cents != 250000/6 {
		t.Errorf("3-day limit = %d, want %d", calc.DailyAvailable.Cents, int64(250000/6))
	}
}

func TestCalculateFlooredLimitWarnsMinimum(t *testing.T) {
	svc, s := newBudgetFixture()
	ctx := context.Background()
	asOf := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	// 120€ for the whole month computes below the floor even with budget
	// left, so the minimum-only warning applies.
	putSetup(t, s, core.MonthlySetup{
		MonthlyIncome:  core.Money{Cents: 12000},
		MonthStartDate: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	})

	calc, err := svc.Calculate(ctx, asOf)
	if err != nil {
		t.Fatal(err)
	}
	if calc.DailyAvailable.Cents != core.MinimumThreeDayAmountCents {
		t.Fatalf("3-day limit = %d, want the %d floor", calc.DailyAvailable.Cents, core.MinimumThreeDayAmountCents)
	}
	found := false
	for _, r := range calc.Recommendations {
		if strings.Contains(r, "37,50€") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected minimum-only warning, got %v", calc.Recommendations)
	}
}

func TestWindowMatchesCalculation(t *testing.T) {
	svc, s := newBudgetFixture()
	ctx := context.Background()
	asOf := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	putSetup(t, s, core.MonthlySetup{
		SavingsGoal:    core.Money{Cents: 20000},
		MonthlyIncome:  core.Money{Cents: 300000},
		MonthStartDate: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	})
	// One expense inside the window, one just outside.
	if _, err := s.AppendTransaction(ctx, expenseOn("Restaurant", "Lebensmittel", 4000, asOf.AddDate(0, 0, -2))); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AppendTransaction(ctx, expenseOn("Kino", "Unterhaltung", 3000, asOf.AddDate(0, 0, -3))); err != nil {
		t.Fatal(err)
	}

	w, err := svc.Window(ctx, asOf)
	if err != nil {
		t.Fatal(err)
	}
	if w.SpentCents != 4000 {
		t.Errorf("window spend = %d, want 4000 (day -3 is outside)", w.SpentCents)
	}
	calc, _ := svc.Calculate(ctx, asOf)
	if w.LimitCents != calc.DailyAvailable.Cents {
		t.Errorf("window limit %d != calculation limit %d", w.LimitCents, calc.DailyAvailable.Cents)
	}
}

func TestExplainRequiresSetup(t *testing.T) {
	svc, _ := newBudgetFixture()
	if _, err := svc.Explain(context.Background(), time.Now()); err != core.ErrNoSetup {
		t.Fatalf("expected ErrNoSetup, got %v", err)
	}
}

func TestExplainOnPlan(t *testing.T) {
	svc, s := newBudgetFixture()
	ctx := context.Background()
	asOf := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	putSetup(t, s, core.MonthlySetup{
		SavingsGoal:    core.Money{Cents: 20000},
		MonthlyIncome:  core.Money{Cents: 300000},
		VariableBudget: core.Money{Cents: 300000},
		MonthStartDate: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	if _, err := s.AppendTransaction(ctx, expenseOn("Einkauf", "Lebensmittel", 150000, asOf.AddDate(0, 0, -1))); err != nil {
		t.Fatal(err)
	}

	exp, err := svc.Explain(ctx, asOf)
	if err != nil {
		t.Fatal(err)
	}
	// June: 3000 budget, day 15 of 30, 1500 spent, exactly on plan.
	if exp.Result.Status != StatusGreen {
		t.Errorf("status = %s, want green", exp.Result.Status)
	}
	if exp.Result.NewDailyLimit != 100 {
		t.Errorf("limit = %f, want 100", exp.Result.NewDailyLimit)
	}
	if exp.RemainingDays != 15 {
		t.Errorf("remaining days = %d", exp.RemainingDays)
	}
}

func TestAnalyzeBehavior(t *testing.T) {
	svc, s := newBudgetFixture()
	ctx := context.Background()
	asOf := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	txs := []core.Transaction{
		expenseOn("Supermarkt", "Lebensmittel", 4500, asOf.AddDate(0, 0, -1)),
		expenseOn("Gaming Monitor", "Einkaufen", 35000, asOf.AddDate(0, 0, -2)),
		expenseOn("Sneaker", "Einkaufen", 15000, asOf.AddDate(0, 0, -5)),
		expenseOn("Tanken", "Transport", 6000, asOf.AddDate(0, 0, -40)), // outside window
	}
	for _, tx := range txs {
		if _, err := s.AppendTransaction(ctx, tx); err != nil {
			t.Fatal(err)
		}
	}

	b, err := svc.AnalyzeBehavior(ctx, asOf)
	if err != nil {
		t.Fatal(err)
	}
	if b.TotalSpentCents != 54500 {
		t.Errorf("total = %d, want 54500", b.TotalSpentCents)
	}
	if b.ImpulsePurchases != 2 {
		t.Errorf("impulse purchases = %d, want 2", b.ImpulsePurchases)
	}
	if b.TopCategory != "Einkaufen" {
		t.Errorf("top category = %q", b.TopCategory)
	}
	if b.RiskLevel != "medium" {
		t.Errorf("risk level = %q, want medium", b.RiskLevel)
	}
	if b.CategoryBreakdown["Lebensmittel"] != 4500 {
		t.Errorf("breakdown wrong: %v", b.CategoryBreakdown)
	}
}
