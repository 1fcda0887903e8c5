package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/live"

	_ "modernc.org/sqlite"
)

// Tables tracked for change notifications. The names match the SQL tables.
const (
	TableExpense live.Table = "expense"
	TablePeriod  live.Table = "payment"
)

// SQLiteRepository is the persistent period/expense store.
type SQLiteRepository struct {
	db      *sql.DB
	tracker *live.Tracker
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		tracker: live.NewTracker(),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Tracker returns the change tracker notified after every committed write.
func (r *SQLiteRepository) Tracker() *live.Tracker {
	return r.tracker
}

// InsertExpense persists e and returns the id assigned to it.
func (r *SQLiteRepository) InsertExpense(ctx context.Context, e core.Expense) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expense (payment_id, amount, description, timestamp, type) VALUES (?, ?, ?, ?, ?)`,
		e.PeriodID, e.Amount.InexactFloat64(), e.Description, e.CreatedAt.UnixMilli(), int(e.Category))
	if err != nil {
		return 0, fmt.Errorf("insert expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read expense id: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", id,
		"period_id", e.PeriodID,
		"amount", e.Amount.String(),
		"category", e.Category.String())

	r.tracker.Notify(TableExpense)
	return id, nil
}

// DeleteExpense removes the expense with the given id. Deleting an id that
// does not exist is not an error.
func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expense WHERE uid = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	if n == 0 {
		slog.DebugContext(ctx, "Expense already absent", "id", id)
		return nil
	}

	slog.InfoContext(ctx, "Expense deleted from SQLite", "id", id)
	r.tracker.Notify(TableExpense)
	return nil
}

func (r *SQLiteRepository) ExpensesForPeriod(ctx context.Context, periodID int64) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT uid, payment_id, amount, description, timestamp, type
		   FROM expense WHERE payment_id = ?
		  ORDER BY timestamp, uid`, periodID)
	if err != nil {
		return nil, fmt.Errorf("query expenses for period %d: %w", periodID, err)
	}
	return scanExpenses(rows)
}

// ExpensesForPeriodByCategory is ExpensesForPeriod filtered to one category.
func (r *SQLiteRepository) ExpensesForPeriodByCategory(ctx context.Context, periodID int64, c core.Category) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT uid, payment_id, amount, description, timestamp, type
		   FROM expense WHERE payment_id = ? AND type = ?
		  ORDER BY timestamp, uid`, periodID, int(c))
	if err != nil {
		return nil, fmt.Errorf("query %s expenses for period %d: %w", c, periodID, err)
	}
	return scanExpenses(rows)
}

// InsertPeriod persists p and returns the id assigned to it.
func (r *SQLiteRepository) InsertPeriod(ctx context.Context, p core.Period) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO payment (amount, timestamp) VALUES (?, ?)`,
		p.SettledAmount.InexactFloat64(), p.CreatedAt.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("insert period: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read period id: %w", err)
	}

	slog.InfoContext(ctx, "Period saved to SQLite",
		"id", id,
		"settled_amount", p.SettledAmount.String())

	r.tracker.Notify(TablePeriod)
	return id, nil
}

func (r *SQLiteRepository) AllPeriods(ctx context.Context) ([]core.Period, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT uid, amount, timestamp FROM payment`)
	if err != nil {
		return nil, fmt.Errorf("query periods: %w", err)
	}
	return scanPeriods(rows)
}

// LatestPeriod returns the current period: latest timestamp, ties broken by
// the larger id. ok is false when no period exists.
func (r *SQLiteRepository) LatestPeriod(ctx context.Context) (core.Period, bool, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT uid, amount, timestamp FROM payment ORDER BY timestamp DESC, uid DESC LIMIT 1`)
	p, err := scanPeriod(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Period{}, false, nil
	}
	if err != nil {
		return core.Period{}, false, fmt.Errorf("query latest period: %w", err)
	}
	return p, true, nil
}

func (r *SQLiteRepository) PeriodCount(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM payment`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count periods: %w", err)
	}
	return n, nil
}

// Period returns a single period by id.
func (r *SQLiteRepository) Period(ctx context.Context, id int64) (core.Period, error) {
	row := r.db.QueryRowContext(ctx, `SELECT uid, amount, timestamp FROM payment WHERE uid = ?`, id)
	p, err := scanPeriod(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Period{}, fmt.Errorf("period %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Period{}, fmt.Errorf("query period %d: %w", id, err)
	}
	return p, nil
}

// ArchivedPeriodsPendingExport returns archived periods (every period except
// the current one) that have not been marked exported, oldest first.
func (r *SQLiteRepository) ArchivedPeriodsPendingExport(ctx context.Context, limit int) ([]core.Period, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.uid, p.amount, p.timestamp
		   FROM payment p
		   LEFT JOIN payment_export x ON x.payment_id = p.uid
		  WHERE x.payment_id IS NULL
		    AND p.uid != (SELECT uid FROM payment ORDER BY timestamp DESC, uid DESC LIMIT 1)
		  ORDER BY p.timestamp, p.uid
		  LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query periods pending export: %w", err)
	}
	return scanPeriods(rows)
}

// MarkPeriodExported records that a period was exported under ref.
func (r *SQLiteRepository) MarkPeriodExported(ctx context.Context, periodID int64, ref string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payment_export (payment_id, ref, exported_at) VALUES (?, ?, ?)
		 ON CONFLICT(payment_id) DO UPDATE SET ref = excluded.ref, exported_at = excluded.exported_at`,
		periodID, ref, r.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("mark period %d exported: %w", periodID, err)
	}
	slog.InfoContext(ctx, "Period marked as exported", "id", periodID, "ref", ref)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPeriod(row rowScanner) (core.Period, error) {
	var (
		p      core.Period
		amount float64
		ts     int64
	)
	if err := row.Scan(&p.ID, &amount, &ts); err != nil {
		return core.Period{}, err
	}
	p.SettledAmount = decimal.NewFromFloat(amount)
	p.CreatedAt = time.UnixMilli(ts).UTC()
	return p, nil
}

func scanPeriods(rows *sql.Rows) ([]core.Period, error) {
	defer rows.Close()
	var out []core.Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, fmt.Errorf("scan period: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate periods: %w", err)
	}
	return out, nil
}

func scanExpenses(rows *sql.Rows) ([]core.Expense, error) {
	defer rows.Close()
	var out []core.Expense
	for rows.Next() {
		var (
			e      core.Expense
			amount float64
			ts     int64
			typ    int
		)
		if err := rows.Scan(&e.ID, &e.PeriodID, &amount, &e.Description, &ts, &typ); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.Amount = decimal.NewFromFloat(amount)
		e.CreatedAt = time.UnixMilli(ts).UTC()
		e.Category = core.Category(typ)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}
