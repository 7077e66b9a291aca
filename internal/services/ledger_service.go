package services

import (
	"context"
	"fmt"
	"log/slog"

	"bilancio/internal/core"
)

// Store is the persistence collaborator. Implementations must treat
// (recurring_template_id, date) as a uniqueness constraint and silently
// skip conflicting rows on insert.
type Store interface {
	ListTransactions(ctx context.Context) ([]core.Transaction, error)
	ListTransactionsInWindow(ctx context.Context, start, end core.Date) ([]core.Transaction, error)
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	CreateTransaction(ctx context.Context, tx core.Transaction) error
	UpdateTransaction(ctx context.Context, tx core.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
	SetTransactionVerified(ctx context.Context, id string, verified bool) error
	// InsertTransactions bulk-inserts materialized transactions and returns
	// the ids of rows that actually landed; occurrence conflicts are no-ops.
	InsertTransactions(ctx context.Context, txs []core.Transaction) ([]string, error)

	ListTemplates(ctx context.Context) ([]core.RecurringTemplate, error)
	ListActiveTemplates(ctx context.Context) ([]core.RecurringTemplate, error)
	GetTemplate(ctx context.Context, id string) (core.RecurringTemplate, error)
	CreateTemplate(ctx context.Context, tmpl core.RecurringTemplate) error
	UpdateTemplate(ctx context.Context, tmpl core.RecurringTemplate) error
	DeleteTemplate(ctx context.Context, id string) error
	SetTemplateActive(ctx context.Context, id string, active bool) error

	GetMonthSettings(ctx context.Context, key string) (core.MonthSettings, error)
	UpsertMonthSettings(ctx context.Context, settings core.MonthSettings) error
}

// SyncPublisher emits a sync event for a persisted transaction so the
// export worker can mirror it. Optional.
type SyncPublisher interface {
	PublishTransactionSync(ctx context.Context, id string) error
}

// LedgerService orchestrates the engine against the store: materialize
// first, then forecast over the fresh durable set, then merge for display.
type LedgerService struct {
	store     Store
	publisher SyncPublisher
}

func NewLedgerService(store Store, publisher SyncPublisher) *LedgerService {
	return &LedgerService{store: store, publisher: publisher}
}

// MonthLedger holds everything the UI needs for one viewing window.
type MonthLedger struct {
	Transactions []core.Transaction `json:"transactions"`
	Overview     core.MonthOverview `json:"overview"`
	Settings     core.MonthSettings `json:"settings"`
}

// Ledger computes the display list for a month: runs a materialization
// pass, re-reads the durable window, forecasts over it, and merges.
func (s *LedgerService) Ledger(ctx context.Context, year, month int, today core.Date) (MonthLedger, error) {
	if month < 1 || month > 12 {
		return MonthLedger{}, fmt.Errorf("invalid month %d", month)
	}

	if _, err := s.CatchUp(ctx, today); err != nil {
		return MonthLedger{}, fmt.Errorf("materialize: %w", err)
	}

	start, end := core.MonthWindow(year, month)
	real, err := s.store.ListTransactionsInWindow(ctx, start, end)
	if err != nil {
		return MonthLedger{}, fmt.Errorf("list window transactions: %w", err)
	}

	templates, err := s.store.ListActiveTemplates(ctx)
	if err != nil {
		return MonthLedger{}, fmt.Errorf("list active templates: %w", err)
	}

	forecasts, err := Forecast(templates, today, start, end)
	if err != nil {
		return MonthLedger{}, fmt.Errorf("forecast: %w", err)
	}

	merged := Merge(real, forecasts)
	SortByDate(merged)

	settings, err := s.store.GetMonthSettings(ctx, core.MonthKey(year, month))
	if err != nil {
		return MonthLedger{}, fmt.Errorf("get month settings: %w", err)
	}

	return MonthLedger{
		Transactions: merged,
		Overview:     core.Summarize(year, month, merged),
		Settings:     settings,
	}, nil
}

// CatchUp runs one materialization pass up to today and persists the
// result. Safe to re-run at any time: the store's occurrence constraint
// makes it idempotent. Returns how many transactions were created.
func (s *LedgerService) CatchUp(ctx context.Context, today core.Date) (int, error) {
	templates, err := s.store.ListActiveTemplates(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active templates: %w", err)
	}
	existing, err := s.store.ListTransactions(ctx)
	if err != nil {
		return 0, fmt.Errorf("list transactions: %w", err)
	}

	due, err := Materialize(templates, today, existing)
	if err != nil {
		return 0, fmt.Errorf("materialize: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	inserted, err := s.store.InsertTransactions(ctx, due)
	if err != nil {
		return 0, fmt.Errorf("insert transactions: %w", err)
	}

	slog.InfoContext(ctx, "Materialized recurring occurrences",
		"due", len(due),
		"inserted", len(inserted),
		"as_of", today.String())

	for _, id := range inserted {
		s.publishSync(ctx, id)
	}
	return len(inserted), nil
}

// publishSync is best-effort: the pending-sync backfill in the worker
// covers lost messages.
func (s *LedgerService) publishSync(ctx context.Context, id string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransactionSync(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction sync message",
			"id", id, "error", err)
	}
}

// CreateTransaction records a manual ledger entry.
func (s *LedgerService) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	tx.ID = core.NewTransactionID()
	tx.Forecasted = false
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.ensureMonthOpen(ctx, tx.Date); err != nil {
		return core.Transaction{}, err
	}
	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	s.publishSync(ctx, tx.ID)
	return tx, nil
}

// UpdateTransaction edits a real transaction. The parent reference and the
// id are immutable; edits never detach a materialized transaction from its
// occurrence.
func (s *LedgerService) UpdateTransaction(ctx context.Context, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	current, err := s.store.GetTransaction(ctx, tx.ID)
	if err != nil {
		return fmt.Errorf("get transaction: %w", err)
	}
	tx.RecurringParentID = current.RecurringParentID
	tx.Forecasted = false
	if err := s.ensureMonthOpen(ctx, current.Date); err != nil {
		return err
	}
	if err := s.ensureMonthOpen(ctx, tx.Date); err != nil {
		return err
	}
	if err := s.store.UpdateTransaction(ctx, tx); err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	s.publishSync(ctx, tx.ID)
	return nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, id string) error {
	current, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("get transaction: %w", err)
	}
	if err := s.ensureMonthOpen(ctx, current.Date); err != nil {
		return err
	}
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return nil
}

func (s *LedgerService) SetTransactionVerified(ctx context.Context, id string, verified bool) error {
	current, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("get transaction: %w", err)
	}
	if err := s.ensureMonthOpen(ctx, current.Date); err != nil {
		return err
	}
	if err := s.store.SetTransactionVerified(ctx, id, verified); err != nil {
		return fmt.Errorf("set transaction verified: %w", err)
	}
	return nil
}

// CreateTemplate validates and stores a new recurring template. Malformed
// schedules are rejected outright, never clamped.
func (s *LedgerService) CreateTemplate(ctx context.Context, tmpl core.RecurringTemplate) (core.RecurringTemplate, error) {
	tmpl.ID = core.NewTransactionID()
	if err := tmpl.Validate(); err != nil {
		return core.RecurringTemplate{}, err
	}
	if err := s.store.CreateTemplate(ctx, tmpl); err != nil {
		return core.RecurringTemplate{}, fmt.Errorf("create template: %w", err)
	}
	slog.InfoContext(ctx, "Recurring template created",
		"id", tmpl.ID,
		"description", tmpl.Description,
		"kind", string(tmpl.Schedule.Kind))
	return tmpl, nil
}

// UpdateTemplate edits a template. Already-materialized transactions keep
// their dates; only unmaterialized occurrences follow the new schedule.
func (s *LedgerService) UpdateTemplate(ctx context.Context, tmpl core.RecurringTemplate) error {
	if err := tmpl.Validate(); err != nil {
		return err
	}
	if err := s.store.UpdateTemplate(ctx, tmpl); err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	return nil
}

// DeleteTemplate removes a template. Materialized transactions survive it;
// only future generation stops.
func (s *LedgerService) DeleteTemplate(ctx context.Context, id string) error {
	if err := s.store.DeleteTemplate(ctx, id); err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return nil
}

func (s *LedgerService) SetTemplateActive(ctx context.Context, id string, active bool) error {
	if err := s.store.SetTemplateActive(ctx, id, active); err != nil {
		return fmt.Errorf("set template active: %w", err)
	}
	return nil
}

func (s *LedgerService) ListTemplates(ctx context.Context) ([]core.RecurringTemplate, error) {
	return s.store.ListTemplates(ctx)
}

// MonthSettings returns the stored settings for a YYYY-MM key.
func (s *LedgerService) MonthSettings(ctx context.Context, key string) (core.MonthSettings, error) {
	return s.store.GetMonthSettings(ctx, key)
}

// UpdateMonthSettings stores a month's starting balance. Closing is only
// done through CloseMonth.
func (s *LedgerService) UpdateMonthSettings(ctx context.Context, settings core.MonthSettings) error {
	current, err := s.store.GetMonthSettings(ctx, settings.Key)
	if err != nil {
		return fmt.Errorf("get month settings: %w", err)
	}
	settings.Closed = current.Closed
	if err := s.store.UpsertMonthSettings(ctx, settings); err != nil {
		return fmt.Errorf("upsert month settings: %w", err)
	}
	return nil
}

// CloseMonth marks a month closed once every real transaction in it is
// verified and at least one exists.
func (s *LedgerService) CloseMonth(ctx context.Context, year, month int) error {
	start, end := core.MonthWindow(year, month)
	real, err := s.store.ListTransactionsInWindow(ctx, start, end)
	if err != nil {
		return fmt.Errorf("list window transactions: %w", err)
	}
	if !core.CanClose(real) {
		return core.ErrMonthNotCloseable
	}

	key := core.MonthKey(year, month)
	settings, err := s.store.GetMonthSettings(ctx, key)
	if err != nil {
		return fmt.Errorf("get month settings: %w", err)
	}
	settings.Key = key
	settings.Closed = true
	if err := s.store.UpsertMonthSettings(ctx, settings); err != nil {
		return fmt.Errorf("upsert month settings: %w", err)
	}

	slog.InfoContext(ctx, "Month closed", "key", key, "transactions", len(real))
	return nil
}

// ensureMonthOpen rejects mutations dated inside a closed month.
func (s *LedgerService) ensureMonthOpen(ctx context.Context, date core.Date) error {
	key := core.MonthKey(date.Year(), int(date.Month()))
	settings, err := s.store.GetMonthSettings(ctx, key)
	if err != nil {
		return fmt.Errorf("get month settings: %w", err)
	}
	if settings.Closed {
		return fmt.Errorf("%w: %s", core.ErrMonthClosed, key)
	}
	return nil
}
