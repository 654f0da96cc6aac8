package services

import (
	"context"
	"fmt"
	"time"

	"github.com/w97xqz5xm9-sketch/debt-guard/internal/core"

	"github.com/w97xqz5xm9-sketch/debt-guard/internal/log"
	"github.com/w97xqz5xm9-sketch/debt-guard/internal/store"
)

// ChangeQuota reports whether another setup change is allowed this month.
type ChangeQuota struct {
	Allowed   bool `json:"allowed"`
	Remaining int  `json:"remaining"`
	Used      int  `json:"used"`
}

// SetupManager owns the singleton monthly setup and enforces the
// per-calendar-month change quota.
type SetupManager struct {
	setups   store.SetupStore
	analyzer *FixedCostAnalyzer
	logger   *log.Logger
}

func NewSetupManager(setups store.SetupStore, analyzer *FixedCostAnalyzer, logger *log.Logger) *SetupManager {
	return &SetupManager{
		setups:   setups,
		analyzer: analyzer,
		logger:   logger.WithComponent(log.ComponentSetup),
	}
}

// Current returns the active setup, or core.ErrNoSetup when none exists.
func (m *SetupManager) Current(ctx context.Context) (*core.MonthlySetup, error) {
	setup, err := m.setups.GetSetup(ctx)
	if err != nil {
		return nil, fmt.Errorf("load setup: %w", err)
	}
	if setup == nil {
		return nil, core.ErrNoSetup
	}
	return setup, nil
}

// IsNewMonth reports whether the stored setup belongs to an earlier calendar
// month than asOf, meaning the user must run the setup again.
func (m *SetupManager) IsNewMonth(ctx context.Context, asOf time.Time) (bool, error) {
	setup, err := m.setups.GetSetup(ctx)
	if err != nil {
		return false, fmt.Errorf("load setup: %w", err)
	}
	if setup == nil {
		return true, nil
	}
	return !core.SameMonth(setup.MonthStartDate, asOf), nil
}

// CanChange evaluates the change quota for asOf's calendar month. Months
// without a stored setup always allow a change.
func (m *SetupManager) CanChange(ctx context.Context, asOf time.Time) (ChangeQuota, error) {
	setup, err := m.setups.GetSetup(ctx)
	if err != nil {
		return ChangeQuota{}, fmt.Errorf("load setup: %w", err)
	}
	return quotaFor(setup, asOf), nil
}

func quotaFor(setup *core.MonthlySetup, asOf time.Time) ChangeQuota {
	used := 0
	if setup != nil && setup.ChangeMonth == core.MonthKey(asOf) {
		used = setup.ChangeCount
	}
	remaining := core.SetupChangeQuota - used
	if remaining < 0 {
		remaining = 0
	}
	return ChangeQuota{Allowed: remaining > 0, Remaining: remaining, Used: used}
}

// Save validates and stores a new setup. Replacing an existing setup consumes
// one change from the monthly quota; the initial setup is free. Derived fields
// (fixed costs, variable budget, daily limit) are recomputed from the provided
// analysis inputs.
func (m *SetupManager) Save(ctx context.Context, savingsGoal core.Money, monthlyIncome core.Money, history, upcoming []core.Transaction, asOf time.Time) (*core.MonthlySetup, error) {
	if err := core.ValidateSavingsGoal(savingsGoal.Cents); err != nil {
		return nil, err
	}
	existing, err := m.setups.GetSetup(ctx)
	if err != nil {
		return nil, fmt.Errorf("load setup: %w", err)
	}
	quota := quotaFor(existing, asOf)
	if !quota.Allowed {
		return nil, fmt.Errorf("setup change quota exhausted for %s: %w", core.MonthKey(asOf), ErrQuotaExhausted)
	}
	changeCount := 0
	if existing != nil {
		changeCount = quota.Used + 1
	}

	if monthlyIncome.Cents <= 0 {
		monthlyIncome = core.Money{Cents: core.DefaultMonthlyIncomeCents}
	}

	analysis := m.analyzer.Analyze(history, upcoming)
	variable := monthlyIncome.Cents - analysis.Total.Cents - savingsGoal.Cents
	if variable < 0 {
		variable = 0
	}
	days := int64(core.DaysInMonth(asOf))

	setup := &core.MonthlySetup{
		SavingsGoal:    savingsGoal,
		FixedCosts:     analysis.Total,
		MonthlyIncome:  monthlyIncome,
		VariableBudget: core.Money{Cents: variable},
		DailyLimit:     core.Money{Cents: variable / days},
		MonthStartDate: core.DayStart(asOf),
		ChangeCount:    changeCount,
		ChangeMonth:    core.MonthKey(asOf),
	}
	if err := setup.Validate(); err != nil {
		return nil, err
	}
	if err := m.setups.PutSetup(ctx, setup); err != nil {
		return nil, fmt.Errorf("store setup: %w", err)
	}

	m.logger.InfoContext(ctx, "monthly setup saved",
		"savings_goal_cents", savingsGoal.Cents,
		"fixed_costs_cents", analysis.Total.Cents,
		"variable_budget_cents", variable,
		"changes_used", setup.ChangeCount)
	return setup, nil
}

// Clear removes the stored setup. The change quota for the month is dropped
// with it.
func (m *SetupManager) Clear(ctx context.Context) error {
	if err := m.setups.PutSetup(ctx, nil); err != nil {
		return fmt.Errorf("clear setup: %w", err)
	}
	m.logger.InfoContext(ctx, "monthly setup cleared")
	return nil
}
