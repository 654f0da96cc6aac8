package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/w97xqz5xm9-sketch/debt-guard/internal/core"
)

// Store is a mutex-guarded in-memory implementation of every store port.
// It doubles as the fallback snapshot for the resilient decorator.
type Store struct {
	mu           sync.Mutex
	transactions []core.Transaction
	upcoming     []core.Transaction
	accounts     []core.Account
	setup        *core.MonthlySetup
	unlocks      core.UnlockState
}

func New() *Store {
	return &Store{
		unlocks: core.UnlockState{Remaining: core.TotalUnlocks, Total: core.TotalUnlocks},
	}
}

// NewSeeded returns a store preloaded with the demo data set: two accounts,
// a short spending history around now, and the usual upcoming bills.
func NewSeeded(now time.Time) *Store {
	s := New()
	s.accounts = []core.Account{
		{ID: uuid.NewString(), Name: "Girokonto", Balance: core.Money{Cents: 284730}, Kind: core.Checking},
		{ID: uuid.NewString(), Name: "Sparkonto", Balance: core.Money{Cents: 520000}, Kind: core.Savings},
	}
	day := func(daysAgo int) time.Time {
		return core.DayStart(now).AddDate(0, 0, -daysAgo).Add(10 * time.Hour)
	}
	seedTx := []core.Transaction{
		{Amount: core.Money{Cents: 4550}, Description: "Lebensmittel Einkauf", Category: "Lebensmittel", Date: day(0), Kind: core.Expense},
		{Amount: core.Money{Cents: 1290}, Description: "Kaffee & Brötchen", Category: "Lebensmittel", Date: day(0), Kind: core.Expense},
		{Amount: core.Money{Cents: 850}, Description: "ÖPNV Ticket", Category: "Transport", Date: day(0), Kind: core.Expense},
		{Amount: core.Money{Cents: 8999}, Description: "Online Shopping - Kleidung", Category: "Einkaufen", Date: day(1), Kind: core.Expense},
		{Amount: core.Money{Cents: 1520}, Description: "Mittagessen", Category: "Lebensmittel", Date: day(1), Kind: core.Expense},
		{Amount: core.Money{Cents: 3200}, Description: "Tankstelle", Category: "Transport", Date: day(2), Kind: core.Expense},
		{Amount: core.Money{Cents: 2500}, Description: "Netflix Abo", Category: "Unterhaltung", Date: day(2), Kind: core.Expense},
		{Amount: core.Money{Cents: 12000}, Description: "Friseur", Category: "Sonstiges", Date: day(3), Kind: core.Expense},
		{Amount: core.Money{Cents: 6780}, Description: "Supermarkt Einkauf", Category: "Lebensmittel", Date: day(3), Kind: core.Expense},
		{Amount: core.Money{Cents: 300000}, Description: "Gehalt", Category: "Einkommen", Date: day(5), Kind: core.Income},
		{Amount: core.Money{Cents: 999}, Description: "Spotify Premium", Category: "Unterhaltung", Date: day(7), Kind: core.Expense},
		{Amount: core.Money{Cents: 8500}, Description: "Fitnessstudio", Category: "Sonstiges", Date: day(8), Kind: core.Expense},
		{Amount: core.Money{Cents: 25000}, Description: "Impulskauf - Blockiert", Category: "Einkaufen", Date: day(2), Kind: core.Expense, Blocked: true, WarningLevel: core.WarningCritical},
	}
	for _, tx := range seedTx {
		tx.ID = uuid.NewString()
		s.transactions = append(s.transactions, tx)
	}
	seedUpcoming := []core.Transaction{
		{Amount: core.Money{Cents: 80000}, Description: "Miete", Category: "Rechnungen", Date: day(-5), Kind: core.Expense},
		{Amount: core.Money{Cents: 12000}, Description: "Strom & Gas", Category: "Rechnungen", Date: day(-10), Kind: core.Expense},
		{Amount: core.Money{Cents: 4500}, Description: "Internet & Telefon", Category: "Rechnungen", Date: day(-12), Kind: core.Expense},
		{Amount: core.Money{Cents: 18000}, Description: "Versicherung", Category: "Rechnungen", Date: day(-15), Kind: core.Expense},
	}
	for _, tx := range seedUpcoming {
		tx.ID = uuid.NewString()
		s.upcoming = append(s.upcoming, tx)
	}
	return s
}

// ListTransactions returns committed transactions newest first.
func (s *Store) ListTransactions(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]core.Transaction(nil), s.transactions...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (s *Store) AppendTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	s.transactions = append(s.transactions, tx)
	return tx, nil
}

func (s *Store) ListUpcoming(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.upcoming...), nil
}

func (s *Store) AppendUpcoming(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	s.upcoming = append(s.upcoming, tx)
	return tx, nil
}

func (s *Store) ClearTransactions(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = nil
	s.upcoming = nil
	return nil
}

func (s *Store) ListAccounts(_ context.Context) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Account(nil), s.accounts...), nil
}

func (s *Store) AdjustCheckingBalance(_ context.Context, deltaCents int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.accounts {
		if s.accounts[i].Kind == core.Checking {
			s.accounts[i].Balance.Cents += deltaCents
			return nil
		}
	}
	// No checking account yet: create one so balance deltas are never lost.
	s.accounts = append(s.accounts, core.Account{
		ID:      uuid.NewString(),
		Name:    "Girokonto",
		Balance: core.Money{Cents: deltaCents},
		Kind:    core.Checking,
	})
	return nil
}

func (s *Store) GetSetup(_ context.Context) (*core.MonthlySetup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setup == nil {
		return nil, nil
	}
	cp := *s.setup
	return &cp, nil
}

func (s *Store) PutSetup(_ context.Context, setup *core.MonthlySetup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if setup == nil {
		s.setup = nil
		return nil
	}
	cp := *setup
	s.setup = &cp
	return nil
}

func (s *Store) GetUnlocks(_ context.Context) (core.UnlockState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unlocks, nil
}

func (s *Store) DecrementUnlocks(_ context.Context) (core.UnlockState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unlocks.Remaining > 0 {
		s.unlocks.Remaining--
	}
	return s.unlocks, nil
}

func (s *Store) ResetUnlocks(_ context.Context) (core.UnlockState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unlocks.Remaining = s.unlocks.Total
	return s.unlocks, nil
}
