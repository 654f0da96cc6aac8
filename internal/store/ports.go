package store

import (
	"context"

	"github.com/w97xqz5xm9-sketch/debt-guard/internal/core"
)

// Ports for outbound adapters.
type (
	TransactionStore interface {
		// ListTransactions returns all committed transactions, newest first by date.
		ListTransactions(ctx context.Context) ([]core.Transaction, error)

		// AppendTransaction commits a transaction and returns it with its assigned ID.
		AppendTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)

		// ListUpcoming returns known future-dated transactions (recurring bills).
		ListUpcoming(ctx context.Context) ([]core.Transaction, error)

		// AppendUpcoming registers a future-dated transaction.
		AppendUpcoming(ctx context.Context, tx core.Transaction) (core.Transaction, error)

		// ClearTransactions removes all transactions. Administrative bulk delete only.
		ClearTransactions(ctx context.Context) error
	}

	AccountStore interface {
		ListAccounts(ctx context.Context) ([]core.Account, error)

		// AdjustCheckingBalance applies a signed delta to the single
		// checking account.
		AdjustCheckingBalance(ctx context.Context, deltaCents int64) error
	}

	SetupStore interface {
		// GetSetup returns the current monthly setup, or nil when absent.
		GetSetup(ctx context.Context) (*core.MonthlySetup, error)

		// PutSetup replaces the singleton setup. A nil setup clears it.
		PutSetup(ctx context.Context, setup *core.MonthlySetup) error
	}

	UnlockStore interface {
		GetUnlocks(ctx context.Context) (core.UnlockState, error)

		// DecrementUnlocks consumes one unlock. The counter never goes below zero.
		DecrementUnlocks(ctx context.Context) (core.UnlockState, error)

		// ResetUnlocks restores the counter to its total.
		ResetUnlocks(ctx context.Context) (core.UnlockState, error)
	}
)

// Store bundles every port a backend must provide.
type Store interface {
	TransactionStore
	AccountStore
	SetupStore
	UnlockStore
}
