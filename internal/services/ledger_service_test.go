package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"bilancio/internal/core"
)

// memStore is an in-memory Store used to exercise the orchestration
// without SQLite. It enforces the same occurrence uniqueness the real
// repository does.
type memStore struct {
	transactions map[string]core.Transaction
	templates    map[string]core.RecurringTemplate
	settings     map[string]core.MonthSettings
}

func newMemStore() *memStore {
	return &memStore{
		transactions: make(map[string]core.Transaction),
		templates:    make(map[string]core.RecurringTemplate),
		settings:     make(map[string]core.MonthSettings),
	}
}

func (m *memStore) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	out := make([]core.Transaction, 0, len(m.transactions))
	for _, tx := range m.transactions {
		out = append(out, tx)
	}
	return out, nil
}

func (m *memStore) ListTransactionsInWindow(ctx context.Context, start, end core.Date) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, tx := range m.transactions {
		if !tx.Date.Before(start) && !tx.Date.After(end) {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (m *memStore) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	tx, ok := m.transactions[id]
	if !ok {
		return core.Transaction{}, fmt.Errorf("transaction %s not found", id)
	}
	return tx, nil
}

func (m *memStore) CreateTransaction(ctx context.Context, tx core.Transaction) error {
	m.transactions[tx.ID] = tx
	return nil
}

func (m *memStore) UpdateTransaction(ctx context.Context, tx core.Transaction) error {
	if _, ok := m.transactions[tx.ID]; !ok {
		return fmt.Errorf("transaction %s not found", tx.ID)
	}
	m.transactions[tx.ID] = tx
	return nil
}

func (m *memStore) DeleteTransaction(ctx context.Context, id string) error {
	delete(m.transactions, id)
	return nil
}

func (m *memStore) SetTransactionVerified(ctx context.Context, id string, verified bool) error {
	tx, ok := m.transactions[id]
	if !ok {
		return fmt.Errorf("transaction %s not found", id)
	}
	tx.Verified = verified
	m.transactions[id] = tx
	return nil
}

func (m *memStore) InsertTransactions(ctx context.Context, txs []core.Transaction) ([]string, error) {
	occupied := make(map[string]struct{})
	for _, tx := range m.transactions {
		if tx.RecurringParentID != "" {
			occupied[core.OccurrenceKey(tx.RecurringParentID, tx.Date)] = struct{}{}
		}
	}
	var inserted []string
	for _, tx := range txs {
		if tx.RecurringParentID != "" {
			key := core.OccurrenceKey(tx.RecurringParentID, tx.Date)
			if _, dup := occupied[key]; dup {
				continue
			}
			occupied[key] = struct{}{}
		}
		m.transactions[tx.ID] = tx
		inserted = append(inserted, tx.ID)
	}
	return inserted, nil
}

func (m *memStore) ListTemplates(ctx context.Context) ([]core.RecurringTemplate, error) {
	out := make([]core.RecurringTemplate, 0, len(m.templates))
	for _, tmpl := range m.templates {
		out = append(out, tmpl)
	}
	return out, nil
}

func (m *memStore) ListActiveTemplates(ctx context.Context) ([]core.RecurringTemplate, error) {
	var out []core.RecurringTemplate
	for _, tmpl := range m.templates {
		if tmpl.Active {
			out = append(out, tmpl)
		}
	}
	return out, nil
}

func (m *memStore) GetTemplate(ctx context.Context, id string) (core.RecurringTemplate, error) {
	tmpl, ok := m.templates[id]
	if !ok {
		return core.RecurringTemplate{}, fmt.Errorf("template %s not found", id)
	}
	return tmpl, nil
}

func (m *memStore) CreateTemplate(ctx context.Context, tmpl core.RecurringTemplate) error {
	m.templates[tmpl.ID] = tmpl
	return nil
}

func (m *memStore) UpdateTemplate(ctx context.Context, tmpl core.RecurringTemplate) error {
	if _, ok := m.templates[tmpl.ID]; !ok {
		return fmt.Errorf("template %s not found", tmpl.ID)
	}
	m.templates[tmpl.ID] = tmpl
	return nil
}

func (m *memStore) DeleteTemplate(ctx context.Context, id string) error {
	delete(m.templates, id)
	return nil
}

func (m *memStore) SetTemplateActive(ctx context.Context, id string, active bool) error {
	tmpl, ok := m.templates[id]
	if !ok {
		return fmt.Errorf("template %s not found", id)
	}
	tmpl.Active = active
	m.templates[id] = tmpl
	return nil
}

func (m *memStore) GetMonthSettings(ctx context.Context, key string) (core.MonthSettings, error) {
	if s, ok := m.settings[key]; ok {
		return s, nil
	}
	return core.MonthSettings{Key: key, StartingBalance: decimal.Zero}, nil
}

func (m *memStore) UpsertMonthSettings(ctx context.Context, settings core.MonthSettings) error {
	m.settings[settings.Key] = settings
	return nil
}

// recordingPublisher captures sync events.
type recordingPublisher struct {
	ids []string
}

func (p *recordingPublisher) PublishTransactionSync(ctx context.Context, id string) error {
	p.ids = append(p.ids, id)
	return nil
}

func addTemplate(t *testing.T, store *memStore, tmpl core.RecurringTemplate) {
	t.Helper()
	if err := store.CreateTemplate(context.Background(), tmpl); err != nil {
		t.Fatalf("seed template: %v", err)
	}
}

func TestLedgerService_CatchUpIsIdempotent(t *testing.T) {
	store := newMemStore()
	pub := &recordingPublisher{}
	svc := NewLedgerService(store, pub)
	addTemplate(t, store, monthlyTemplate("rent", true, core.NewDate(2024, 1, 5), 5))

	today := core.NewDate(2024, 3, 10)

	first, err := svc.CatchUp(context.Background(), today)
	if err != nil {
		t.Fatalf("CatchUp() error = %v", err)
	}
	if first != 3 {
		t.Errorf("first CatchUp inserted %d, want 3", first)
	}
	if len(pub.ids) != 3 {
		t.Errorf("published %d sync events, want 3", len(pub.ids))
	}

	second, err := svc.CatchUp(context.Background(), today)
	if err != nil {
		t.Fatalf("second CatchUp() error = %v", err)
	}
	if second != 0 {
		t.Errorf("second CatchUp inserted %d, want 0", second)
	}
}

func TestLedgerService_LedgerMergesRealAndForecast(t *testing.T) {
	store := newMemStore()
	svc := NewLedgerService(store, nil)
	addTemplate(t, store, monthlyTemplate("rent", true, core.NewDate(2024, 1, 5), 5))

	today := core.NewDate(2024, 3, 10)
	ledger, err := svc.Ledger(context.Background(), 2024, 3, today)
	if err != nil {
		t.Fatalf("Ledger() error = %v", err)
	}

	// March 5th was materialized by the embedded catch-up pass; the
	// forecast for it must be suppressed, so the window holds one entry.
	if len(ledger.Transactions) != 1 {
		t.Fatalf("ledger holds %d transactions, want 1: %+v", len(ledger.Transactions), ledger.Transactions)
	}
	tx := ledger.Transactions[0]
	if tx.Forecasted {
		t.Error("materialized entry still flagged forecasted")
	}
	if !tx.Date.Equal(core.NewDate(2024, 3, 5)) {
		t.Errorf("entry date = %s, want 2024-03-05", tx.Date)
	}
	if ledger.Overview.CanClose {
		t.Error("CanClose = true with an unverified entry")
	}
}

func TestLedgerService_LedgerForecastsFutureMonth(t *testing.T) {
	store := newMemStore()
	svc := NewLedgerService(store, nil)
	addTemplate(t, store, monthlyTemplate("rent", true, core.NewDate(2024, 1, 5), 5))

	today := core.NewDate(2024, 3, 10)
	ledger, err := svc.Ledger(context.Background(), 2024, 5, today)
	if err != nil {
		t.Fatalf("Ledger() error = %v", err)
	}

	if len(ledger.Transactions) != 1 {
		t.Fatalf("ledger holds %d transactions, want 1", len(ledger.Transactions))
	}
	if !ledger.Transactions[0].Forecasted {
		t.Error("future occurrence not flagged forecasted")
	}
}

func TestLedgerService_CloseMonth(t *testing.T) {
	store := newMemStore()
	svc := NewLedgerService(store, nil)

	// Empty month cannot close.
	if err := svc.CloseMonth(context.Background(), 2024, 3); !errors.Is(err, core.ErrMonthNotCloseable) {
		t.Errorf("CloseMonth(empty) error = %v, want ErrMonthNotCloseable", err)
	}

	tx := core.Transaction{
		ID:          "tx-1",
		Direction:   core.Expense,
		Amount:      decimal.NewFromInt(10),
		Category:    "food",
		Description: "Groceries",
		Date:        core.NewDate(2024, 3, 2),
	}
	if err := store.CreateTransaction(context.Background(), tx); err != nil {
		t.Fatal(err)
	}

	if err := svc.CloseMonth(context.Background(), 2024, 3); !errors.Is(err, core.ErrMonthNotCloseable) {
		t.Errorf("CloseMonth(unverified) error = %v, want ErrMonthNotCloseable", err)
	}

	if err := store.SetTransactionVerified(context.Background(), "tx-1", true); err != nil {
		t.Fatal(err)
	}
	if err := svc.CloseMonth(context.Background(), 2024, 3); err != nil {
		t.Fatalf("CloseMonth(verified) error = %v", err)
	}

	settings, err := svc.MonthSettings(context.Background(), "2024-03")
	if err != nil {
		t.Fatal(err)
	}
	if !settings.Closed {
		t.Error("month not marked closed")
	}

	// Mutations in a closed month are rejected.
	late := core.Transaction{
		Direction:   core.Expense,
		Amount:      decimal.NewFromInt(5),
		Category:    "food",
		Description: "Late entry",
		Date:        core.NewDate(2024, 3, 20),
	}
	if _, err := svc.CreateTransaction(context.Background(), late); !errors.Is(err, core.ErrMonthClosed) {
		t.Errorf("CreateTransaction(closed month) error = %v, want ErrMonthClosed", err)
	}
	if err := svc.DeleteTransaction(context.Background(), "tx-1"); !errors.Is(err, core.ErrMonthClosed) {
		t.Errorf("DeleteTransaction(closed month) error = %v, want ErrMonthClosed", err)
	}
}

func TestLedgerService_CreateTemplateRejectsInvalidSchedule(t *testing.T) {
	store := newMemStore()
	svc := NewLedgerService(store, nil)

	tmpl := core.RecurringTemplate{
		Direction:   core.Expense,
		Amount:      decimal.NewFromInt(10),
		Category:    "subscriptions",
		Description: "Streaming",
		Schedule:    core.Schedule{Kind: core.Custom, Anchor: core.NewDate(2024, 1, 1), EveryDays: 0},
		Active:      true,
	}
	if _, err := svc.CreateTemplate(context.Background(), tmpl); !errors.Is(err, core.ErrInvalidSchedule) {
		t.Errorf("CreateTemplate() error = %v, want ErrInvalidSchedule", err)
	}
	if len(store.templates) != 0 {
		t.Error("invalid template was stored")
	}
}

func TestLedgerService_UpdateTransactionKeepsParentReference(t *testing.T) {
	store := newMemStore()
	svc := NewLedgerService(store, nil)

	orig := core.Transaction{
		ID:                "tx-1",
		Direction:         core.Expense,
		Amount:            decimal.NewFromInt(100),
		Category:          "housing",
		Description:       "Rent",
		Date:              core.NewDate(2024, 3, 5),
		RecurringParentID: "rent",
	}
	if err := store.CreateTransaction(context.Background(), orig); err != nil {
		t.Fatal(err)
	}

	edited := orig
	edited.Description = "Rent (adjusted)"
	edited.Amount = decimal.NewFromInt(110)
	edited.RecurringParentID = "" // clients cannot detach the parent

	if err := svc.UpdateTransaction(context.Background(), edited); err != nil {
		t.Fatalf("UpdateTransaction() error = %v", err)
	}

	stored, err := store.GetTransaction(context.Background(), "tx-1")
	if err != nil {
		t.Fatal(err)
	}
	if stored.RecurringParentID != "rent" {
		t.Errorf("parent reference = %q after edit, want rent", stored.RecurringParentID)
	}

	// The edited transaction still covers its occurrence.
	tmpl := monthlyTemplate("rent", true, core.NewDate(2024, 3, 5), 5)
	addTemplate(t, store, tmpl)
	inserted, err := svc.CatchUp(context.Background(), core.NewDate(2024, 3, 10))
	if err != nil {
		t.Fatal(err)
	}
	if inserted != 0 {
		t.Errorf("edited occurrence re-materialized %d times", inserted)
	}
}
