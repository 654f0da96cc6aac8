package services

import (
	"context"
	"fmt"
	"time"

	"github.com/w97xqz5xm9-sketch/debt-guard/internal/core"

	"github.com/w97xqz5xm9-sketch/debt-guard/internal/log"
	"github.com/w97xqz5xm9-sketch/debt-guard/internal/store"
)

// SpendingWindow is the rolling 3-day allowance and what has been spent
// against it.
type SpendingWindow struct {
	LimitCents int64
	SpentCents int64
}

// BudgetService computes the rolling 3-day spending limit. Every calculation
// is derived fresh from the transaction history and the stored setup; nothing
// here is cached or persisted.
type BudgetService struct {
	txs      store.TransactionStore
	setups   store.SetupStore
	analyzer *FixedCostAnalyzer
	logger   *log.Logger
}

func NewBudgetService(txs store.TransactionStore, setups store.SetupStore, analyzer *FixedCostAnalyzer, logger *log.Logger) *BudgetService {
	return &BudgetService{
		txs:      txs,
		setups:   setups,
		analyzer: analyzer,
		logger:   logger.WithComponent(log.ComponentBudget),
	}
}

// budgetState carries every intermediate of one calculation.
type budgetState struct {
	needsSetup    bool
	analysis      core.FixedCostAnalysis
	incomeCents   int64
	savingsCents  int64
	variable      int64
	remaining     int64
	upcomingDue   int64
	threeDayLimit int64
	spentLast3    int64
	riskFactor    float64
}

// Calculate produces the full budget view for asOf.
func (s *BudgetService) Calculate(ctx context.Context, asOf time.Time) (core.BudgetCalculation, error) {
	st, err := s.compute(ctx, asOf)
	if err != nil {
		return core.BudgetCalculation{}, err
	}

	monthly := st.variable
	if monthly < 0 {
		monthly = 0
	}
	calc := core.BudgetCalculation{
		DailyAvailable:     core.Money{Cents: st.threeDayLimit},
		MonthlyAvailable:   core.Money{Cents: monthly},
		UpcomingDeductions: core.Money{Cents: st.upcomingDue},
		SavingsAllocation:  core.Money{Cents: st.savingsCents},
		RiskFactor:         st.riskFactor,
		Recommendations:    s.recommend(st),
		FixedCostInsights:  st.analysis.Insights,
	}

	s.logger.DebugContext(ctx, "budget calculated",
		log.FieldAsOf, asOf.Format(time.RFC3339),
		"three_day_limit_cents", st.threeDayLimit,
		"spent_last3_cents", st.spentLast3,
		"remaining_cents", st.remaining,
		"risk_factor", st.riskFactor)
	return calc, nil
}

// Window returns just the 3-day limit and the spend inside the current
// window. The transaction checker gates against this.
func (s *BudgetService) Window(ctx context.Context, asOf time.Time) (SpendingWindow, error) {
	st, err := s.compute(ctx, asOf)
	if err != nil {
		return SpendingWindow{}, err
	}
	return SpendingWindow{LimitCents: st.threeDayLimit, SpentCents: st.spentLast3}, nil
}

func (s *BudgetService) compute(ctx context.Context, asOf time.Time) (budgetState, error) {
	history, err := s.txs.ListTransactions(ctx)
	if err != nil {
		return budgetState{}, fmt.Errorf("list transactions: %w", err)
	}
	setup, err := s.setups.GetSetup(ctx)
	if err != nil {
		return budgetState{}, fmt.Errorf("load setup: %w", err)
	}

	var st budgetState

	// Without a setup for the running month everything stays locked down:
	// zero allowance until the user runs the monthly setup again.
	if setup == nil || !core.SameMonth(setup.MonthStartDate, asOf) {
		st.needsSetup = true
		st.spentLast3 = sumExpenses(history, core.DayStart(asOf).AddDate(0, 0, -2), asOf)
		return st, nil
	}

	upcoming, err := s.txs.ListUpcoming(ctx)
	if err != nil {
		return budgetState{}, fmt.Errorf("list upcoming: %w", err)
	}
	st.analysis = s.analyzer.Analyze(history, upcoming)

	// Income: setup value, then trailing 30-day income, then the default.
	if setup.MonthlyIncome.Cents > 0 {
		st.incomeCents = setup.MonthlyIncome.Cents
	} else {
		st.incomeCents = sumIncome(history, core.DayStart(asOf).AddDate(0, 0, -30), asOf)
		if st.incomeCents == 0 {
			st.incomeCents = core.DefaultMonthlyIncomeCents
		}
	}
	st.savingsCents = setup.SavingsGoal.Cents

	st.variable = st.incomeCents - st.analysis.Total.Cents - st.savingsCents

	monthStart := time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, asOf.Location())
	monthEnd := monthStart.AddDate(0, 1, 0)
	spentThisMonth := sumExpenses(history, monthStart, asOf)
	st.remaining = st.variable - spentThisMonth

	st.upcomingDue = sumExpenses(upcoming, core.DayStart(asOf), monthEnd)

	// Distribute what is left across the remaining 3-day windows, never
	// below the subsistence floor.
	remainingDays := core.DaysInMonth(asOf) - asOf.Day() + 1
	periods := (remainingDays + 2) / 3
	if periods < 1 {
		periods = 1
	}
	if st.remaining > 0 {
		st.threeDayLimit = st.remaining / int64(periods)
		if st.threeDayLimit < core.MinimumThreeDayAmountCents {
			st.threeDayLimit = core.MinimumThreeDayAmountCents
		}
	} else {
		st.threeDayLimit = core.MinimumThreeDayAmountCents
	}

	st.spentLast3 = sumExpenses(history, core.DayStart(asOf).AddDate(0, 0, -2), asOf)

	if st.threeDayLimit > 0 {
		st.riskFactor = float64(st.spentLast3) / float64(st.threeDayLimit)
		if st.riskFactor > 1 {
			st.riskFactor = 1
		}
		if st.riskFactor < 0 {
			st.riskFactor = 0
		}
	}
	return st, nil
}

func (s *BudgetService) recommend(st budgetState) []string {
	if st.needsSetup {
		return []string{"Bitte Monats-Setup durchführen"}
	}
	var recs []string
	switch {
	case st.remaining <= 0 || st.threeDayLimit <= core.MinimumThreeDayAmountCents:
		recs = append(recs, fmt.Sprintf("⚠️ Budget überschritten oder sehr knapp. Nur noch %s pro 3 Tage für notwendige Ausgaben verfügbar.", euroString(core.MinimumThreeDayAmountCents)))
	case st.spentLast3 >= st.threeDayLimit:
		recs = append(recs, fmt.Sprintf("⚠️ 3-Tage-Limit erreicht! Du hast bereits %s von %s ausgegeben. Größere Käufe werden blockiert.", euroString(st.spentLast3), euroString(st.threeDayLimit)))
	case float64(st.spentLast3) >= 0.8*float64(st.threeDayLimit):
		recs = append(recs, fmt.Sprintf("Achtung: Du näherst dich deinem 3-Tage-Limit (%s von %s).", euroString(st.spentLast3), euroString(st.threeDayLimit)))
	default:
		recs = append(recs, fmt.Sprintf("Du kannst in den nächsten 3 Tagen noch %s ausgeben (Limit: %s).", euroString(st.threeDayLimit-st.spentLast3), euroString(st.threeDayLimit)))
	}
	if st.upcomingDue > st.remaining && st.remaining > 0 {
		recs = append(recs, fmt.Sprintf("⚠️ Anstehende Fixkosten von %s übersteigen dein verbleibendes Budget.", euroString(st.upcomingDue)))
	}
	return recs
}

// sumExpenses totals expense amounts with a day-granular date inside
// [from, to], both inclusive.
func sumExpenses(txs []core.Transaction, from, to time.Time) int64 {
	return sumKind(txs, core.Expense, from, to)
}

func sumIncome(txs []core.Transaction, from, to time.Time) int64 {
	return sumKind(txs, core.Income, from, to)
}

func sumKind(txs []core.Transaction, kind core.TransactionKind, from, to time.Time) int64 {
	fromDay := core.DayStart(from)
	toDay := core.DayStart(to)
	var sum int64
	for _, tx := range txs {
		if tx.Kind != kind {
			continue
		}
		day := core.DayStart(tx.Date)
		if day.Before(fromDay) || day.After(toDay) {
			continue
		}
		sum += tx.Amount.Cents
	}
	return sum
}
