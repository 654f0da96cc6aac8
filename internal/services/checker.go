package services

import (
	"context"
	"fmt"
	"time"

	"github.com/w97xqz5xm9-sketch/debt-guard/internal/core"

	"github.com/w97xqz5xm9-sketch/debt-guard/internal/log"
	"github.com/w97xqz5xm9-sketch/debt-guard/internal/store"
)

// TransactionChecker gates proposed expenses against the rolling 3-day
// window. Rules are evaluated in order; the first matching rule decides.
type TransactionChecker struct {
	budget   *BudgetService
	txs      store.TransactionStore
	accounts store.AccountStore
	logger   *log.Logger
}

func NewTransactionChecker(budget *BudgetService, txs store.TransactionStore, accounts store.AccountStore, logger *log.Logger) *TransactionChecker {
	return &TransactionChecker{
		budget:   budget,
		txs:      txs,
		accounts: accounts,
		logger:   logger.WithComponent(log.ComponentChecker),
	}
}

// Check evaluates a proposed expense without recording anything.
func (c *TransactionChecker) Check(ctx context.Context, amount core.Money, asOf time.Time) (core.CheckResult, error) {
	if amount.Cents <= 0 {
		return core.CheckResult{}, core.ErrInvalidAmount
	}
	window, err := c.budget.Window(ctx, asOf)
	if err != nil {
		return core.CheckResult{}, err
	}
	result := evaluate(amount.Cents, window)

	c.logger.DebugContext(ctx, "expense checked",
		log.FieldAmountCents, amount.Cents,
		log.FieldBlocked, !result.Allowed,
		"limit_cents", window.LimitCents,
		"spent_cents", window.SpentCents)
	return result, nil
}

// evaluate applies the gating rules to one proposed expense.
func evaluate(amountCents int64, w SpendingWindow) core.CheckResult {
	availableAfter := w.LimitCents - w.SpentCents - amountCents
	isLarge := amountCents > core.LargePurchaseThresholdCents

	// Subsistence carve-out: small daily needs stay payable even at the
	// limit, up to one daily amount into the red.
	if amountCents <= core.MinimumDailyAmountCents && availableAfter >= -core.MinimumDailyAmountCents {
		if availableAfter < 0 {
			return core.CheckResult{
				Allowed: true,
				Warning: "Kleine Ausgabe erlaubt, aber dein 3-Tage-Limit ist bereits ausgeschöpft.",
			}
		}
		return core.CheckResult{Allowed: true}
	}

	if w.SpentCents >= w.LimitCents && isLarge {
		return core.CheckResult{
			BlockReason: fmt.Sprintf("🚫 3-Tage-Limit erreicht! Du hast bereits %s von %s ausgegeben. Größere Käufe sind blockiert.",
				euroString(w.SpentCents), euroString(w.LimitCents)),
		}
	}

	if availableAfter < 0 {
		excess := -availableAfter
		if isLarge {
			// Large purchases may dip into saved budget, but only up to
			// two further 3-day shares.
			maxExcess := 2 * (w.LimitCents / 3)
			if excess <= maxExcess {
				return core.CheckResult{
					Allowed: true,
					Warning: fmt.Sprintf("⚠️ Diese Ausgabe überschreitet dein 3-Tage-Limit um %s. Das geht von deinem gesparten Budget ab.", euroString(excess)),
				}
			}
			return core.CheckResult{
				BlockReason: fmt.Sprintf("🚫 Diese Ausgabe würde dein 3-Tage-Limit um %s überschreiten. Das ist mehr als dein angespartes Budget erlaubt.", euroString(excess)),
			}
		}
		return core.CheckResult{
			BlockReason: fmt.Sprintf("🚫 Diese Ausgabe würde dein 3-Tage-Limit von %s um %s überschreiten.",
				euroString(w.LimitCents), euroString(excess)),
		}
	}

	usage := float64(w.SpentCents+amountCents) / float64(w.LimitCents)
	switch {
	case isLarge && usage > 0.8:
		return core.CheckResult{
			BlockReason: fmt.Sprintf("🚫 Großer Kauf blockiert: Damit wärst du bei %s deines 3-Tage-Limits. Nutze eine Entsperrung, wenn es wirklich sein muss.", percentString(usage)),
		}
	case isLarge && usage > 0.5:
		return core.CheckResult{
			Allowed: true,
			Warning: fmt.Sprintf("⚠️ Großer Kauf: Damit bist du bei %s deines 3-Tage-Limits.", percentString(usage)),
		}
	case !isLarge && usage > 0.9:
		return core.CheckResult{
			Allowed: true,
			Warning: fmt.Sprintf("Achtung: Damit bist du bei %s deines 3-Tage-Limits.", percentString(usage)),
		}
	}
	return core.CheckResult{Allowed: true}
}

// Record checks and persists a transaction. Expenses that fail the check are
// stored as blocked and do not touch the checking balance. Income always
// passes. Forced recording skips the gate; spending an unlock is the
// caller's responsibility.
func (c *TransactionChecker) Record(ctx context.Context, tx core.Transaction, asOf time.Time, force bool) (core.Transaction, core.CheckResult, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, core.CheckResult{}, err
	}
	if tx.Date.IsZero() {
		tx.Date = asOf
	}

	result := core.CheckResult{Allowed: true}
	if tx.IsExpense() && !force {
		var err error
		result, err = c.Check(ctx, tx.Amount, asOf)
		if err != nil {
			return core.Transaction{}, core.CheckResult{}, err
		}
	}

	tx.Blocked = !result.Allowed
	switch {
	case tx.Blocked:
		tx.WarningLevel = core.WarningCritical
	case result.Warning != "":
		tx.WarningLevel = core.WarningElevated
	}

	stored, err := c.txs.AppendTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, core.CheckResult{}, fmt.Errorf("append transaction: %w", err)
	}

	if !stored.Blocked {
		delta := stored.Amount.Cents
		if stored.IsExpense() {
			delta = -delta
		}
		if err := c.accounts.AdjustCheckingBalance(ctx, delta); err != nil {
			return core.Transaction{}, core.CheckResult{}, fmt.Errorf("adjust balance: %w", err)
		}
	}

	c.logger.InfoContext(ctx, "transaction recorded",
		log.FieldTxID, stored.ID,
		log.FieldTxKind, string(stored.Kind),
		log.FieldAmountCents, stored.Amount.Cents,
		log.FieldBlocked, stored.Blocked)
	return stored, result, nil
}
