// Package storage is the persistence collaborator: a SQLite repository for
// templates, real transactions, and month settings. Forecasted transactions
// never touch this layer. The unique partial index on
// (recurring_template_id, date) backs the one-real-transaction-per-occurrence
// invariant even under racing materialization passes.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"modernc.org/sqlite"

	"bilancio/internal/core"
)

// Sync states for the export pipeline.
const (
	SyncPending = "pending"
	SyncDone    = "synced"
	SyncError   = "error"
)

var ErrNotFound = errors.New("not found")

// SQLITE_CONSTRAINT_UNIQUE extended result code.
const sqliteConstraintUnique = 2067

// isOccurrenceConflict reports whether err is the unique occurrence index
// rejecting a second real transaction for the same (template, date) pair.
func isOccurrenceConflict(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqliteConstraintUnique &&
		strings.Contains(se.Error(), "transactions.recurring_template_id")
}

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

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const transactionColumns = `id, direction, amount, category, description, account_id, date, verified, recurring_template_id`

func scanTransaction(row interface{ Scan(...any) error }) (core.Transaction, error) {
	var (
		tx       core.Transaction
		amount   string
		date     string
		parentID sql.NullString
	)
	err := row.Scan(&tx.ID, (*string)(&tx.Direction), &amount, &tx.Category,
		&tx.Description, &tx.AccountID, &date, &tx.Verified, &parentID)
	if err != nil {
		return core.Transaction{}, err
	}
	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Transaction{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	if tx.Date, err = core.ParseDate(date); err != nil {
		return core.Transaction{}, err
	}
	tx.RecurringParentID = parentID.String
	return tx, nil
}

func (r *SQLiteRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	return r.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions ORDER BY date, id`)
}

func (r *SQLiteRepository) ListTransactionsInWindow(ctx context.Context, start, end core.Date) ([]core.Transaction, error) {
	return r.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE date >= ? AND date <= ? ORDER BY date, id`,
		start.String(), end.String())
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

func nullableParent(id string) any {
	if id == "" {
		return nil
	}
	return id
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, tx core.Transaction) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (id, direction, amount, category, description, account_id, date, verified, recurring_template_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, string(tx.Direction), tx.Amount.String(), tx.Category, tx.Description,
		tx.AccountID, tx.Date.String(), tx.Verified, nullableParent(tx.RecurringParentID))
	if err != nil {
		if isOccurrenceConflict(err) {
			return fmt.Errorf("%w: template %s on %s",
				core.ErrDuplicateOccurrence, tx.RecurringParentID, tx.Date)
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// UpdateTransaction rewrites the mutable fields. Identity and parent
// reference stay as stored; date edits keep the occurrence key valid
// because the service layer forwards the stored parent.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, tx core.Transaction) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions
		 SET direction = ?, amount = ?, category = ?, description = ?, account_id = ?,
		     date = ?, verified = ?, sync_status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		string(tx.Direction), tx.Amount.String(), tx.Category, tx.Description,
		tx.AccountID, tx.Date.String(), tx.Verified, SyncPending, tx.ID)
	if err != nil {
		// A date edit can land on another materialized occurrence of the
		// same template.
		if isOccurrenceConflict(err) {
			return fmt.Errorf("%w: %s on %s",
				core.ErrDuplicateOccurrence, tx.ID, tx.Date)
		}
		return fmt.Errorf("update transaction: %w", err)
	}
	return requireRow(res, tx.ID)
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return requireRow(res, id)
}

func (r *SQLiteRepository) SetTransactionVerified(ctx context.Context, id string, verified bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET verified = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		verified, id)
	if err != nil {
		return fmt.Errorf("set transaction verified: %w", err)
	}
	return requireRow(res, id)
}

// InsertTransactions bulk-inserts materialized transactions. A row whose
// (recurring_template_id, date) occurrence already exists is skipped, not
// an error: a concurrent pass got there first and the outcome is the same.
func (r *SQLiteRepository) InsertTransactions(ctx context.Context, txs []core.Transaction) ([]string, error) {
	if len(txs) == 0 {
		return nil, nil
	}

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.PrepareContext(ctx,
		`INSERT INTO transactions (id, direction, amount, category, description, account_id, date, verified, recurring_template_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (recurring_template_id, date) WHERE recurring_template_id IS NOT NULL DO NOTHING`)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	var inserted []string
	for _, tx := range txs {
		res, err := stmt.ExecContext(ctx,
			tx.ID, string(tx.Direction), tx.Amount.String(), tx.Category, tx.Description,
			tx.AccountID, tx.Date.String(), tx.Verified, nullableParent(tx.RecurringParentID))
		if err != nil {
			return nil, fmt.Errorf("insert transaction %s: %w", tx.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			slog.DebugContext(ctx, "Skipped duplicate occurrence",
				"template_id", tx.RecurringParentID, "date", tx.Date.String())
			continue
		}
		inserted = append(inserted, tx.ID)
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

const templateColumns = `id, direction, amount, category, description, account_id,
	schedule_kind, schedule_anchor, schedule_end, schedule_day_of_month, schedule_every_days, active`

func scanTemplate(row interface{ Scan(...any) error }) (core.RecurringTemplate, error) {
	var (
		tmpl   core.RecurringTemplate
		amount string
		anchor string
		end    sql.NullString
	)
	err := row.Scan(&tmpl.ID, (*string)(&tmpl.Direction), &amount, &tmpl.Category,
		&tmpl.Description, &tmpl.AccountID, (*string)(&tmpl.Schedule.Kind), &anchor,
		&end, &tmpl.Schedule.DayOfMonth, &tmpl.Schedule.EveryDays, &tmpl.Active)
	if err != nil {
		return core.RecurringTemplate{}, err
	}
	if tmpl.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.RecurringTemplate{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	if tmpl.Schedule.Anchor, err = core.ParseDate(anchor); err != nil {
		return core.RecurringTemplate{}, err
	}
	if end.Valid {
		d, err := core.ParseDate(end.String)
		if err != nil {
			return core.RecurringTemplate{}, err
		}
		tmpl.Schedule.End = &d
	}
	return tmpl, nil
}

func (r *SQLiteRepository) queryTemplates(ctx context.Context, query string, args ...any) ([]core.RecurringTemplate, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringTemplate
	for rows.Next() {
		tmpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, tmpl)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListTemplates(ctx context.Context) ([]core.RecurringTemplate, error) {
	return r.queryTemplates(ctx,
		`SELECT `+templateColumns+` FROM recurring_templates ORDER BY created_at, id`)
}

func (r *SQLiteRepository) ListActiveTemplates(ctx context.Context) ([]core.RecurringTemplate, error) {
	return r.queryTemplates(ctx,
		`SELECT `+templateColumns+` FROM recurring_templates WHERE active = 1 ORDER BY created_at, id`)
}

func (r *SQLiteRepository) GetTemplate(ctx context.Context, id string) (core.RecurringTemplate, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM recurring_templates WHERE id = ?`, id)
	tmpl, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RecurringTemplate{}, fmt.Errorf("template %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.RecurringTemplate{}, fmt.Errorf("get template: %w", err)
	}
	return tmpl, nil
}

func scheduleEnd(s core.Schedule) any {
	if s.End == nil {
		return nil
	}
	return s.End.String()
}

func (r *SQLiteRepository) CreateTemplate(ctx context.Context, tmpl core.RecurringTemplate) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO recurring_templates
		 (id, direction, amount, category, description, account_id,
		  schedule_kind, schedule_anchor, schedule_end, schedule_day_of_month, schedule_every_days, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tmpl.ID, string(tmpl.Direction), tmpl.Amount.String(), tmpl.Category, tmpl.Description,
		tmpl.AccountID, string(tmpl.Schedule.Kind), tmpl.Schedule.Anchor.String(),
		scheduleEnd(tmpl.Schedule), tmpl.Schedule.DayOfMonth, tmpl.Schedule.EveryDays, tmpl.Active)
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateTemplate(ctx context.Context, tmpl core.RecurringTemplate) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE recurring_templates
		 SET direction = ?, amount = ?, category = ?, description = ?, account_id = ?,
		     schedule_kind = ?, schedule_anchor = ?, schedule_end = ?,
		     schedule_day_of_month = ?, schedule_every_days = ?, active = ?,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		string(tmpl.Direction), tmpl.Amount.String(), tmpl.Category, tmpl.Description,
		tmpl.AccountID, string(tmpl.Schedule.Kind), tmpl.Schedule.Anchor.String(),
		scheduleEnd(tmpl.Schedule), tmpl.Schedule.DayOfMonth, tmpl.Schedule.EveryDays,
		tmpl.Active, tmpl.ID)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	return requireRow(res, tmpl.ID)
}

// DeleteTemplate removes the template only. Materialized transactions keep
// their recurring_template_id as a dangling but harmless back-reference,
// which is exactly the non-owning semantics the domain wants.
func (r *SQLiteRepository) DeleteTemplate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recurring_templates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return requireRow(res, id)
}

func (r *SQLiteRepository) SetTemplateActive(ctx context.Context, id string, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE recurring_templates SET active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		active, id)
	if err != nil {
		return fmt.Errorf("set template active: %w", err)
	}
	return requireRow(res, id)
}

func (r *SQLiteRepository) GetMonthSettings(ctx context.Context, key string) (core.MonthSettings, error) {
	var (
		settings core.MonthSettings
		balance  string
	)
	row := r.db.QueryRowContext(ctx,
		`SELECT month_key, starting_balance, is_closed FROM month_settings WHERE month_key = ?`, key)
	err := row.Scan(&settings.Key, &balance, &settings.Closed)
	if errors.Is(err, sql.ErrNoRows) {
		return core.MonthSettings{Key: key, StartingBalance: decimal.Zero}, nil
	}
	if err != nil {
		return core.MonthSettings{}, fmt.Errorf("get month settings: %w", err)
	}
	if settings.StartingBalance, err = decimal.NewFromString(balance); err != nil {
		return core.MonthSettings{}, fmt.Errorf("parse starting balance %q: %w", balance, err)
	}
	return settings, nil
}

func (r *SQLiteRepository) UpsertMonthSettings(ctx context.Context, settings core.MonthSettings) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO month_settings (month_key, starting_balance, is_closed)
		 VALUES (?, ?, ?)
		 ON CONFLICT (month_key) DO UPDATE SET
		     starting_balance = excluded.starting_balance,
		     is_closed = excluded.is_closed,
		     updated_at = CURRENT_TIMESTAMP`,
		settings.Key, settings.StartingBalance.String(), settings.Closed)
	if err != nil {
		return fmt.Errorf("upsert month settings: %w", err)
	}
	return nil
}

// ListPendingSyncIDs returns up to limit transaction ids that have not been
// mirrored to the export backend. Backfill path for lost sync messages.
func (r *SQLiteRepository) ListPendingSyncIDs(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM transactions WHERE sync_status = ? ORDER BY created_at LIMIT ?`,
		SyncPending, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending sync: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pending id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET sync_status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		SyncDone, id)
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	return requireRow(res, id)
}

func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET sync_status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		SyncError, id)
	if err != nil {
		return fmt.Errorf("mark sync error: %w", err)
	}
	return requireRow(res, id)
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return nil
}
