package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"bankcal/internal/core"
	"bankcal/internal/recurrence"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

var _ Repository = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer keeps sqlite from returning SQLITE_BUSY under concurrent imports.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("SQLite repository ready", "db_path", dbPath, "schema_version", version)

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const upsertTransaction = `
INSERT INTO transactions (id, date, description, amount_cents, currency, category, source_name, source_type, is_recurring)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    date = excluded.date,
    description = excluded.description,
    amount_cents = excluded.amount_cents,
    currency = excluded.currency,
    category = excluded.category,
    source_name = excluded.source_name,
    source_type = excluded.source_type,
    is_recurring = excluded.is_recurring,
    imported_at = CURRENT_TIMESTAMP`

const selectTransactions = `
SELECT id, date, description, amount_cents, currency, category, source_name, source_type, is_recurring
FROM transactions`

const selectOccurrences = `
SELECT t.id, t.date, t.description, t.amount_cents, t.currency, t.category, t.source_name, t.source_type, t.is_recurring
FROM series_occurrences o
JOIN transactions t ON t.id = o.transaction_id
WHERE o.series_id = ?
ORDER BY o.position`

func (r *SQLiteRepository) SaveTransactions(ctx context.Context, txs []core.Transaction) (int, error) {
	if len(txs) == 0 {
		return 0, nil
	}

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.PrepareContext(ctx, upsertTransaction)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, t := range txs {
		var sourceName, sourceType sql.NullString
		if t.Source != nil {
			sourceName = sql.NullString{String: t.Source.Name, Valid: true}
			sourceType = sql.NullString{String: t.Source.Type, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			t.ID, t.Date.String(), t.Description, t.Amount.Cents, t.Currency,
			string(t.Category), sourceName, sourceType, t.IsRecurring,
		); err != nil {
			return 0, fmt.Errorf("save transaction %s: %w", t.ID, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transactions: %w", err)
	}

	slog.InfoContext(ctx, "Transactions saved to SQLite", "count", len(txs))
	return len(txs), nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, selectTransactions+` ORDER BY date, id`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return scanTransactions(rows)
}

func (r *SQLiteRepository) ListTransactionsInMonth(ctx context.Context, year int, month int) ([]core.Transaction, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("invalid month %d", month)
	}
	from, to := MonthBounds(year, month)
	rows, err := r.db.QueryContext(ctx, selectTransactions+` WHERE date >= ? AND date < ? ORDER BY date, id`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list transactions for %04d-%02d: %w", year, month, err)
	}
	return scanTransactions(rows)
}

func scanTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	defer rows.Close()

	out := make([]core.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t                      core.Transaction
		date, category         string
		sourceName, sourceType sql.NullString
	)
	if err := row.Scan(&t.ID, &date, &t.Description, &t.Amount.Cents, &t.Currency,
		&category, &sourceName, &sourceType, &t.IsRecurring); err != nil {
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", t.ID, err)
	}
	t.Date = d
	t.Category = core.Category(category)
	if sourceName.Valid || sourceType.Valid {
		t.Source = &core.Source{Name: sourceName.String, Type: sourceType.String}
	}
	return t, nil
}

func (r *SQLiteRepository) UpdateRecurrence(ctx context.Context, flags map[string]bool) error {
	if len(flags) == 0 {
		return nil
	}

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.PrepareContext(ctx, `UPDATE transactions SET is_recurring = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("prepare update: %w", err)
	}
	defer stmt.Close()

	for id, recurring := range flags {
		if _, err := stmt.ExecContext(ctx, recurring, id); err != nil {
			return fmt.Errorf("update recurrence for %s: %w", id, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit recurrence flags: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ReplaceSeries(ctx context.Context, series []recurrence.Series) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	if _, err := dbTx.ExecContext(ctx, `DELETE FROM series_occurrences`); err != nil {
		return fmt.Errorf("clear series occurrences: %w", err)
	}
	if _, err := dbTx.ExecContext(ctx, `DELETE FROM recurring_series`); err != nil {
		return fmt.Errorf("clear series: %w", err)
	}

	for pos, s := range series {
		explanation, err := json.Marshal(s.Explanation)
		if err != nil {
			return fmt.Errorf("encode explanation for series %s: %w", s.ID, err)
		}
		if _, err := dbTx.ExecContext(ctx,
			`INSERT INTO recurring_series (id, label, direction, band, cadence, currency, explanation_json, position)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			s.ID, s.Key.Label, string(s.Key.Direction), string(s.Key.Band),
			string(s.Cadence), s.Currency, string(explanation), pos,
		); err != nil {
			return fmt.Errorf("insert series %s: %w", s.ID, err)
		}
		for i, occ := range s.Occurrences {
			if _, err := dbTx.ExecContext(ctx,
				`INSERT INTO series_occurrences (series_id, position, transaction_id) VALUES (?, ?, ?)`,
				s.ID, i, occ.ID,
			); err != nil {
				return fmt.Errorf("insert occurrence %s of series %s: %w", occ.ID, s.ID, err)
			}
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit series: %w", err)
	}

	slog.InfoContext(ctx, "Recurring series stored", "series", len(series))
	return nil
}

func (r *SQLiteRepository) ListSeries(ctx context.Context) ([]recurrence.Series, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, label, direction, band, cadence, currency, explanation_json
		 FROM recurring_series ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}

	series := make([]recurrence.Series, 0)
	for rows.Next() {
		var (
			s                        recurrence.Series
			direction, band, cadence string
			explanation              string
		)
		if err := rows.Scan(&s.ID, &s.Key.Label, &direction, &band, &cadence, &s.Currency, &explanation); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan series: %w", err)
		}
		s.Key.Direction = recurrence.Direction(direction)
		s.Key.Band = recurrence.Band(band)
		s.Cadence = core.RepetitionTypes(cadence)
		if err := json.Unmarshal([]byte(explanation), &s.Explanation); err != nil {
			rows.Close()
			return nil, fmt.Errorf("decode explanation for series %s: %w", s.ID, err)
		}
		series = append(series, s)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate series: %w", err)
	}
	rows.Close()

	for i := range series {
		occ, err := r.seriesOccurrences(ctx, series[i].ID)
		if err != nil {
			return nil, err
		}
		if len(occ) == 0 {
			return nil, fmt.Errorf("series %s has no stored occurrences: %w", series[i].ID, ErrNotFound)
		}
		series[i].Occurrences = occ
		series[i].Representative = occ[len(occ)-1]
	}
	return series, nil
}

func (r *SQLiteRepository) seriesOccurrences(ctx context.Context, seriesID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, selectOccurrences, seriesID)
	if err != nil {
		return nil, fmt.Errorf("list occurrences of series %s: %w", seriesID, err)
	}
	return scanTransactions(rows)
}
