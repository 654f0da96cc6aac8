// Package storage is the SQLite persistence layer.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/w97xqz5xm9-sketch/debt-guard/internal/core"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteRepository implements every store port plus the audit event sink.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := applyMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// applyMigrations brings the schema up to date. Migrations run on their own
// connection so migrate's locking never touches the repository pool.
func applyMigrations(dbPath string) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("sqlite migration driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("embedded migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const txColumns = "id, amount_cents, description, category, tx_date, kind, blocked, warning_level"

func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+txColumns+" FROM transactions WHERE upcoming = 0 ORDER BY tx_date DESC, created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func (r *SQLiteRepository) AppendTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	return r.insertTransaction(ctx, tx, false)
}

func (r *SQLiteRepository) ListUpcoming(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+txColumns+" FROM transactions WHERE upcoming = 1 ORDER BY tx_date ASC")
	if err != nil {
		return nil, fmt.Errorf("list upcoming: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func (r *SQLiteRepository) AppendUpcoming(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	return r.insertTransaction(ctx, tx, true)
}

func (r *SQLiteRepository) insertTransaction(ctx context.Context, tx core.Transaction, upcoming bool) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (id, amount_cents, description, category, tx_date, kind, blocked, warning_level, upcoming)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.Amount.Cents, tx.Description, tx.Category,
		tx.Date.UTC().Format(time.RFC3339), string(tx.Kind),
		boolToInt(tx.Blocked), string(tx.WarningLevel), boolToInt(upcoming))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return tx, nil
}

func (r *SQLiteRepository) ClearTransactions(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM transactions"); err != nil {
		return fmt.Errorf("clear transactions: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, balance_cents, kind FROM accounts ORDER BY kind ASC")
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		var a core.Account
		var kind string
		if err := rows.Scan(&a.ID, &a.Name, &a.Balance.Cents, &kind); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.Kind = core.AccountKind(kind)
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *SQLiteRepository) AdjustCheckingBalance(ctx context.Context, deltaCents int64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE accounts SET balance_cents = balance_cents + ? WHERE kind = 'checking'", deltaCents)
	if err != nil {
		return fmt.Errorf("adjust balance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("adjust balance: %w", err)
	}
	if affected == 0 {
		_, err = r.db.ExecContext(ctx,
			"INSERT INTO accounts (id, name, balance_cents, kind) VALUES (?, 'Girokonto', ?, 'checking')",
			uuid.NewString(), deltaCents)
		if err != nil {
			return fmt.Errorf("create checking account: %w", err)
		}
	}
	return nil
}

func (r *SQLiteRepository) GetSetup(ctx context.Context) (*core.MonthlySetup, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT savings_goal_cents, fixed_costs_cents, monthly_income_cents, variable_budget_cents,
		        daily_limit_cents, month_start_date, change_count, change_month
		 FROM monthly_setup WHERE id = 1`)

	var s core.MonthlySetup
	var startDate string
	err := row.Scan(&s.SavingsGoal.Cents, &s.FixedCosts.Cents, &s.MonthlyIncome.Cents,
		&s.VariableBudget.Cents, &s.DailyLimit.Cents, &startDate, &s.ChangeCount, &s.ChangeMonth)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get setup: %w", err)
	}
	s.MonthStartDate, err = time.Parse(time.RFC3339, startDate)
	if err != nil {
		return nil, fmt.Errorf("parse month start date: %w", err)
	}
	return &s, nil
}

func (r *SQLiteRepository) PutSetup(ctx context.Context, setup *core.MonthlySetup) error {
	if setup == nil {
		if _, err := r.db.ExecContext(ctx, "DELETE FROM monthly_setup WHERE id = 1"); err != nil {
			return fmt.Errorf("clear setup: %w", err)
		}
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO monthly_setup (id, savings_goal_cents, fixed_costs_cents, monthly_income_cents,
		        variable_budget_cents, daily_limit_cents, month_start_date, change_count, change_month)
		 VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		        savings_goal_cents = excluded.savings_goal_cents,
		        fixed_costs_cents = excluded.fixed_costs_cents,
		        monthly_income_cents = excluded.monthly_income_cents,
		        variable_budget_cents = excluded.variable_budget_cents,
		        daily_limit_cents = excluded.daily_limit_cents,
		        month_start_date = excluded.month_start_date,
		        change_count = excluded.change_count,
		        change_month = excluded.change_month`,
		setup.SavingsGoal.Cents, setup.FixedCosts.Cents, setup.MonthlyIncome.Cents,
		setup.VariableBudget.Cents, setup.DailyLimit.Cents,
		setup.MonthStartDate.UTC().Format(time.RFC3339), setup.ChangeCount, setup.ChangeMonth)
	if err != nil {
		return fmt.Errorf("put setup: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetUnlocks(ctx context.Context) (core.UnlockState, error) {
	var state core.UnlockState
	err := r.db.QueryRowContext(ctx,
		"SELECT remaining, total FROM unlocks WHERE id = 1").Scan(&state.Remaining, &state.Total)
	if err != nil {
		return core.UnlockState{}, fmt.Errorf("get unlocks: %w", err)
	}
	return state, nil
}

func (r *SQLiteRepository) DecrementUnlocks(ctx context.Context) (core.UnlockState, error) {
	_, err := r.db.ExecContext(ctx,
		"UPDATE unlocks SET remaining = remaining - 1 WHERE id = 1 AND remaining > 0")
	if err != nil {
		return core.UnlockState{}, fmt.Errorf("decrement unlocks: %w", err)
	}
	return r.GetUnlocks(ctx)
}

func (r *SQLiteRepository) ResetUnlocks(ctx context.Context) (core.UnlockState, error) {
	_, err := r.db.ExecContext(ctx, "UPDATE unlocks SET remaining = total WHERE id = 1")
	if err != nil {
		return core.UnlockState{}, fmt.Errorf("reset unlocks: %w", err)
	}
	return r.GetUnlocks(ctx)
}

// AuditEvent is a persisted record of a gating decision or state change.
type AuditEvent struct {
	EventType     string
	TransactionID string
	AmountCents   int64
	Blocked       bool
	Detail        string
	OccurredAt    time.Time
}

func (r *SQLiteRepository) InsertAuditEvent(ctx context.Context, ev AuditEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_events (event_type, transaction_id, amount_cents, blocked, detail, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ev.EventType, ev.TransactionID, ev.AmountCents, boolToInt(ev.Blocked),
		ev.Detail, ev.OccurredAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// CountAuditEvents reports the audit trail size.
func (r *SQLiteRepository) CountAuditEvents(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_events").Scan(&n); err != nil {
		return 0, fmt.Errorf("count audit events: %w", err)
	}
	return n, nil
}

func scanTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	var txs []core.Transaction
	for rows.Next() {
		var tx core.Transaction
		var date, kind, warning string
		var blocked int
		if err := rows.Scan(&tx.ID, &tx.Amount.Cents, &tx.Description, &tx.Category,
			&date, &kind, &blocked, &warning); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339, date)
		if err != nil {
			return nil, fmt.Errorf("parse transaction date: %w", err)
		}
		tx.Date = parsed
		tx.Kind = core.TransactionKind(kind)
		tx.Blocked = blocked != 0
		tx.WarningLevel = core.WarningLevel(warning)
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
