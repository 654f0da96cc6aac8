// Package resilient decorates a durable store with an in-memory fallback.
// Calls go to the durable store through a circuit breaker; when it fails or
// the breaker is open, the last-good in-memory snapshot serves instead.
package resilient

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"

	"github.com/w97xqz5xm9-sketch/debt-guard/internal/core"

	"github.com/w97xqz5xm9-sketch/debt-guard/internal/log"
	"github.com/w97xqz5xm9-sketch/debt-guard/internal/store"
	"github.com/w97xqz5xm9-sketch/debt-guard/internal/store/memory"
)

type Store struct {
	durable  store.Store
	fallback *memory.Store
	cb       *gobreaker.CircuitBreaker
	logger   *log.Logger
	degraded atomic.Bool
}

func New(durable store.Store, logger *log.Logger) *Store {
	l := logger.WithComponent(log.ComponentStore)
	s := &Store{
		durable:  durable,
		fallback: memory.New(),
		logger:   l,
	}
	s.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "durable-store",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn("store circuit breaker state changed",
				"from", from.String(), "to", to.String())
		},
	})
	return s
}

// exec runs op against the durable store and falls back to the snapshot on
// failure. Degradation is logged once, not per call.
func exec[T any](s *Store, op string, durable func() (T, error), fallback func() (T, error)) (T, error) {
	result, err := s.cb.Execute(func() (any, error) {
		return durable()
	})
	if err == nil {
		if s.degraded.CompareAndSwap(true, false) {
			s.logger.Info("durable store recovered", log.FieldOperation, op)
		}
		return result.(T), nil
	}
	if s.degraded.CompareAndSwap(false, true) {
		s.logger.Error("durable store failing, serving from in-memory snapshot",
			log.FieldOperation, op, log.FieldError, err)
	}
	return fallback()
}

func (s *Store) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	return exec(s, "list_transactions",
		func() ([]core.Transaction, error) { return s.durable.ListTransactions(ctx) },
		func() ([]core.Transaction, error) { return s.fallback.ListTransactions(ctx) })
}

func (s *Store) AppendTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	stored, err := exec(s, "append_transaction",
		func() (core.Transaction, error) { return s.durable.AppendTransaction(ctx, tx) },
		func() (core.Transaction, error) { return s.fallback.AppendTransaction(ctx, tx) })
	if err != nil {
		return core.Transaction{}, err
	}
	// Keep the snapshot in sync so a later failover still sees this write.
	if !s.degraded.Load() {
		if _, ferr := s.fallback.AppendTransaction(ctx, stored); ferr != nil {
			s.logger.Warn("snapshot append failed", log.FieldError, ferr)
		}
	}
	return stored, nil
}

func (s *Store) ListUpcoming(ctx context.Context) ([]core.Transaction, error) {
	return exec(s, "list_upcoming",
		func() ([]core.Transaction, error) { return s.durable.ListUpcoming(ctx) },
		func() ([]core.Transaction, error) { return s.fallback.ListUpcoming(ctx) })
}

func (s *Store) AppendUpcoming(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	stored, err := exec(s, "append_upcoming",
		func() (core.Transaction, error) { return s.durable.AppendUpcoming(ctx, tx) },
		func() (core.Transaction, error) { return s.fallback.AppendUpcoming(ctx, tx) })
	if err != nil {
		return core.Transaction{}, err
	}
	if !s.degraded.Load() {
		if _, ferr := s.fallback.AppendUpcoming(ctx, stored); ferr != nil {
			s.logger.Warn("snapshot append failed", log.FieldError, ferr)
		}
	}
	return stored, nil
}

func (s *Store) ClearTransactions(ctx context.Context) error {
	_, err := exec(s, "clear_transactions",
		func() (struct{}, error) { return struct{}{}, s.durable.ClearTransactions(ctx) },
		func() (struct{}, error) { return struct{}{}, s.fallback.ClearTransactions(ctx) })
	if err == nil && !s.degraded.Load() {
		_ = s.fallback.ClearTransactions(ctx)
	}
	return err
}

func (s *Store) ListAccounts(ctx context.Context) ([]core.Account, error) {
	return exec(s, "list_accounts",
		func() ([]core.Account, error) { return s.durable.ListAccounts(ctx) },
		func() ([]core.Account, error) { return s.fallback.ListAccounts(ctx) })
}

func (s *Store) AdjustCheckingBalance(ctx context.Context, deltaCents int64) error {
	_, err := exec(s, "adjust_checking_balance",
		func() (struct{}, error) { return struct{}{}, s.durable.AdjustCheckingBalance(ctx, deltaCents) },
		func() (struct{}, error) { return struct{}{}, s.fallback.AdjustCheckingBalance(ctx, deltaCents) })
	if err == nil && !s.degraded.Load() {
		_ = s.fallback.AdjustCheckingBalance(ctx, deltaCents)
	}
	return err
}

func (s *Store) GetSetup(ctx context.Context) (*core.MonthlySetup, error) {
	return exec(s, "get_setup",
		func() (*core.MonthlySetup, error) { return s.durable.GetSetup(ctx) },
		func() (*core.MonthlySetup, error) { return s.fallback.GetSetup(ctx) })
}

func (s *Store) PutSetup(ctx context.Context, setup *core.MonthlySetup) error {
	_, err := exec(s, "put_setup",
		func() (struct{}, error) { return struct{}{}, s.durable.PutSetup(ctx, setup) },
		func() (struct{}, error) { return struct{}{}, s.fallback.PutSetup(ctx, setup) })
	if err == nil && !s.degraded.Load() {
		_ = s.fallback.PutSetup(ctx, setup)
	}
	return err
}

func (s *Store) GetUnlocks(ctx context.Context) (core.UnlockState, error) {
	return exec(s, "get_unlocks",
		func() (core.UnlockState, error) { return s.durable.GetUnlocks(ctx) },
		func() (core.UnlockState, error) { return s.fallback.GetUnlocks(ctx) })
}

func (s *Store) DecrementUnlocks(ctx context.Context) (core.UnlockState, error) {
	state, err := exec(s, "decrement_unlocks",
		func() (core.UnlockState, error) { return s.durable.DecrementUnlocks(ctx) },
		func() (core.UnlockState, error) { return s.fallback.DecrementUnlocks(ctx) })
	if err == nil && !s.degraded.Load() {
		_, _ = s.fallback.DecrementUnlocks(ctx)
	}
	return state, err
}

func (s *Store) ResetUnlocks(ctx context.Context) (core.UnlockState, error) {
	state, err := exec(s, "reset_unlocks",
		func() (core.UnlockState, error) { return s.durable.ResetUnlocks(ctx) },
		func() (core.UnlockState, error) { return s.fallback.ResetUnlocks(ctx) })
	if err == nil && !s.degraded.Load() {
		_, _ = s.fallback.ResetUnlocks(ctx)
	}
	return state, err
}
