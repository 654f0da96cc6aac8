package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/w97xqz5xm9-sketch/debt-guard/internal/core"

	"github.com/w97xqz5xm9-sketch/debt-guard/internal/log"
	"github.com/w97xqz5xm9-sketch/debt-guard/internal/store/memory"
)

func newSetupManager() (*SetupManager, *memory.Store) {
	logger := log.New(log.DefaultConfig())
	s := memory.New()
	return NewSetupManager(s, NewFixedCostAnalyzer(logger), logger), s
}

func TestSaveDerivesBudget(t *testing.T) {
	m, _ := newSetupManager()
	ctx := context.Background()
	asOf := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	upcoming := []core.Transaction{
		expenseOn("Miete", "Wohnen", 80000, asOf.AddDate(0, 0, 5)),
		expenseOn("Strom & Gas", "Rechnungen", 12000, asOf.AddDate(0, 0, 10)),
	}
	setup, err := m.Save(ctx, core.Money{Cents: 20000}, core.Money{Cents: 300000}, nil, upcoming, asOf)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if setup.FixedCosts.Cents != 92000 {
		t.Errorf("fixed costs = %d, want 92000", setup.FixedCosts.Cents)
	}
	// 300000 - 92000 - 20000 = 188000 variable, over 31 days.
	if setup.VariableBudget.Cents != 188000 {
		t.Errorf("variable budget = %d, want 188000", setup.VariableBudget.Cents)
	}
	if setup.DailyLimit.Cents != 188000/31 {
		t.Errorf("daily limit = %d, want %d", setup.DailyLimit.Cents, int64(188000/31))
	}
	// The initial setup is free; only later changes count against the quota.
	if setup.ChangeCount != 0 || setup.ChangeMonth != "2026-08" {
		t.Errorf("quota bookkeeping wrong: count=%d month=%s", setup.ChangeCount, setup.ChangeMonth)
	}
}

func TestSaveRejectsOffTierGoal(t *testing.T) {
	m, _ := newSetupManager()
	_, err := m.Save(context.Background(), core.Money{Cents: 12345}, core.Money{Cents: 300000}, nil, nil, time.Now())
	if !errors.Is(err, core.ErrInvalidSavingsGoal) {
		t.Fatalf("expected ErrInvalidSavingsGoal, got %v", err)
	}
}

func TestChangeQuotaPerMonth(t *testing.T) {
	m, _ := newSetupManager()
	ctx := context.Background()
	asOf := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	goal := core.Money{Cents: 20000}
	income := core.Money{Cents: 300000}

	// The initial setup plus the full change quota all pass.
	for i := 0; i <= core.SetupChangeQuota; i++ {
		setup, err := m.Save(ctx, goal, income, nil, nil, asOf)
		if err != nil {
			t.Fatalf("save %d: %v", i+1, err)
		}
		if setup.ChangeCount != i {
			t.Fatalf("save %d: change count = %d, want %d", i+1, setup.ChangeCount, i)
		}
	}

	quota, err := m.CanChange(ctx, asOf)
	if err != nil {
		t.Fatal(err)
	}
	if quota.Allowed || quota.Remaining != 0 {
		t.Fatalf("quota after 3 changes: %+v", quota)
	}
	if _, err := m.Save(ctx, goal, income, nil, nil, asOf); !errors.Is(err, ErrQuotaExhausted) {
		t.Fatalf("4th change: expected ErrQuotaExhausted, got %v", err)
	}

	// A new calendar month starts a fresh quota.
	nextMonth := asOf.AddDate(0, 1, 0)
	quota, err = m.CanChange(ctx, nextMonth)
	if err != nil {
		t.Fatal(err)
	}
	if !quota.Allowed || quota.Remaining != core.SetupChangeQuota {
		t.Fatalf("quota in new month: %+v", quota)
	}
	setup, err := m.Save(ctx, goal, income, nil, nil, nextMonth)
	if err != nil {
		t.Fatalf("save in new month: %v", err)
	}
	if setup.ChangeCount != 1 || setup.ChangeMonth != "2026-09" {
		t.Fatalf("quota not restarted: count=%d month=%s", setup.ChangeCount, setup.ChangeMonth)
	}
}

func TestIsNewMonth(t *testing.T) {
	m, _ := newSetupManager()
	ctx := context.Background()
	asOf := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	fresh, err := m.IsNewMonth(ctx, asOf)
	if err != nil || !fresh {
		t.Fatalf("missing setup must read as new month: %v %v", fresh, err)
	}

	if _, err := m.Save(ctx, core.Money{Cents: 20000}, core.Money{Cents: 300000}, nil, nil, asOf); err != nil {
		t.Fatal(err)
	}
	fresh, _ = m.IsNewMonth(ctx, asOf)
	if fresh {
		t.Fatal("same month must not read as new")
	}
	fresh, _ = m.IsNewMonth(ctx, asOf.AddDate(0, 1, 0))
	if !fresh {
		t.Fatal("next month must read as new")
	}
}

func TestCurrentWithoutSetup(t *testing.T) {
	m, _ := newSetupManager()
	if _, err := m.Current(context.Background()); !errors.Is(err, core.ErrNoSetup) {
		t.Fatalf("expected ErrNoSetup, got %v", err)
	}
}

func TestClear(t *testing.T) {
	m, s := newSetupManager()
	ctx := context.Background()
	asOf := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	if _, err := m.Save(ctx, core.Money{Cents: 20000}, core.Money{Cents: 300000}, nil, nil, asOf); err != nil {
		t.Fatal(err)
	}
	if err := m.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if setup, _ := s.GetSetup(ctx); setup != nil {
		t.Fatal("setup not cleared")
	}
}
