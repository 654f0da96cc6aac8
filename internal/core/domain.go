package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TransactionKind = "income"
	Expense TransactionKind = "expense"

	Checking AccountKind = "checking"
	Savings  AccountKind = "savings"

	Weekly    Frequency = "weekly"
	BiWeekly  Frequency = "bi-weekly"
	Monthly   Frequency = "monthly"
	Irregular Frequency = "irregular"

	SourceHistory   InsightSource = "history"
	SourceUpcoming  InsightSource = "upcoming"
	SourceEstimated InsightSource = "estimated"

	WarningNone     WarningLevel = ""
	WarningElevated WarningLevel = "warning"
	WarningCritical WarningLevel = "critical"
)

// Spending boundaries, in cents.
const (
	// MinimumDailyAmountCents is always spendable per day (food, transport).
	MinimumDailyAmountCents int64 = 1250
	// MinimumThreeDayAmountCents is the floor for the rolling 3-day limit.
	MinimumThreeDayAmountCents int64 = 3 * MinimumDailyAmountCents
	// LargePurchaseThresholdCents marks a purchase as "large" for gating rules.
	LargePurchaseThresholdCents int64 = 5000
	// DefaultMonthlyIncomeCents is assumed when neither setup nor history yields an income.
	DefaultMonthlyIncomeCents int64 = 300000
)

// SetupChangeQuota limits how often the monthly setup may change per calendar month.
const SetupChangeQuota = 3

// TotalUnlocks is the number of block overrides available before a reset is required.
const TotalUnlocks = 3

// SavingsGoalTiers are the selectable monthly savings goals, in cents.
var SavingsGoalTiers = []int64{5000, 10000, 20000, 30000, 50000, 100000}

type (
	TransactionKind string
	AccountKind     string
	Frequency       string
	InsightSource   string
	WarningLevel    string

	Transaction struct {
		ID           string
		Amount       Money
		Description  string
		Category     string
		Date         time.Time
		Kind         TransactionKind
		Blocked      bool
		WarningLevel WarningLevel
	}

	Account struct {
		ID      string
		Name    string
		Balance Money
		Kind    AccountKind
	}

	// MonthlySetup is the singleton monthly configuration gating all limit
	// computations. ChangeCount/ChangeMonth track the per-calendar-month
	// change quota; ChangeMonth uses the YYYY-MM format.
	MonthlySetup struct {
		SavingsGoal    Money
		FixedCosts     Money
		MonthlyIncome  Money
		VariableBudget Money
		DailyLimit     Money
		MonthStartDate time.Time
		ChangeCount    int
		ChangeMonth    string
	}

	// FixedCostInsight is a derived view of a recurring cost group. It is
	// recomputed on every budget calculation and never persisted.
	FixedCostInsight struct {
		ID             string
		Name           string
		Category       string
		AverageAmount  Money
		LastAmount     Money
		Frequency      Frequency
		Confidence     float64
		LastOccurrence time.Time
		NextDueDate    time.Time // zero when the frequency is irregular
		Source         InsightSource
	}

	FixedCostAnalysis struct {
		Total    Money
		Insights []FixedCostInsight
	}

	// BudgetCalculation is the rolling spending allowance plus diagnostics.
	// DailyAvailable carries the 3-day rolling limit; the name is kept for
	// compatibility with the consuming clients.
	BudgetCalculation struct {
		DailyAvailable     Money
		MonthlyAvailable   Money
		UpcomingDeductions Money
		SavingsAllocation  Money
		RiskFactor         float64
		Recommendations    []string
		FixedCostInsights  []FixedCostInsight
	}

	// CheckResult is the outcome of gating a proposed expense.
	CheckResult struct {
		Allowed     bool
		Warning     string
		BlockReason string
	}

	// UnlockState is the process-wide override counter.
	UnlockState struct {
		Remaining int
		Total     int
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyDescription   = errors.New("empty description")
	ErrEmptyCategory      = errors.New("empty category")
	ErrInvalidKind        = errors.New("invalid transaction kind")
	ErrInvalidSavingsGoal = errors.New("savings goal is not an allowed tier")
	ErrNoSetup            = errors.New("no monthly setup")
)

func (t Transaction) Validate() error {
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	switch t.Kind {
	case Income, Expense:
	default:
		return ErrInvalidKind
	}
	return nil
}

// IsExpense reports whether the transaction reduces the checking balance.
func (t Transaction) IsExpense() bool {
	return t.Kind == Expense
}

// IsLargePurchase reports whether the amount falls under the large-purchase rules.
func (t Transaction) IsLargePurchase() bool {
	return t.Amount.Cents > LargePurchaseThresholdCents
}

// ValidateSavingsGoal checks a goal against the fixed tier set.
func ValidateSavingsGoal(cents int64) error {
	for _, tier := range SavingsGoalTiers {
		if cents == tier {
			return nil
		}
	}
	return ErrInvalidSavingsGoal
}

// MonthKey renders t's calendar month in the YYYY-MM format used by
// MonthlySetup.ChangeMonth.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// SameMonth reports whether a and b fall in the same calendar month and year.
func SameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// DayStart truncates t to midnight in its location.
func DayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DaysInMonth returns the number of days in t's month.
func DaysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

func (s MonthlySetup) Validate() error {
	if err := ValidateSavingsGoal(s.SavingsGoal.Cents); err != nil {
		return err
	}
	if s.MonthlyIncome.Cents < 0 {
		return ErrInvalidAmount
	}
	if s.MonthStartDate.IsZero() {
		return errors.New("month start date cannot be zero")
	}
	return nil
}
