package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/export/memory"
)

type fakeSyncStore struct {
	txs     map[string]core.Transaction
	pending []string
	synced  []string
	errored []string
}

func newFakeSyncStore(txs ...core.Transaction) *fakeSyncStore {
	s := &fakeSyncStore{txs: make(map[string]core.Transaction)}
	for _, tx := range txs {
		s.txs[tx.ID] = tx
		s.pending = append(s.pending, tx.ID)
	}
	return s
}

func (s *fakeSyncStore) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	tx, ok := s.txs[id]
	if !ok {
		return core.Transaction{}, errors.New("not found")
	}
	return tx, nil
}

func (s *fakeSyncStore) ListPendingSyncIDs(_ context.Context, limit int) ([]string, error) {
	if len(s.pending) > limit {
		return s.pending[:limit], nil
	}
	return s.pending, nil
}

func (s *fakeSyncStore) MarkSynced(_ context.Context, id string) error {
	s.synced = append(s.synced, id)
	return nil
}

func (s *fakeSyncStore) MarkSyncError(_ context.Context, id string) error {
	s.errored = append(s.errored, id)
	return nil
}

func testTransaction(id string) core.Transaction {
	return core.Transaction{
		ID:          id,
		Direction:   core.Expense,
		Amount:      decimal.NewFromInt(10),
		Category:    "Groceries",
		Description: "Weekly shop",
		Date:        core.NewDate(2026, 8, 10),
	}
}

func TestHandleSyncMessage(t *testing.T) {
	tx := testTransaction("tx-1")
	store := newFakeSyncStore(tx)
	writer := memory.New()
	w := NewSyncWorker(store, writer, 10)

	msg := amqp.NewTransactionSyncMessage(tx.ID)
	if err := w.HandleSyncMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleSyncMessage() error = %v", err)
	}

	if items := writer.Items(); len(items) != 1 || items[0].ID != tx.ID {
		t.Errorf("exported items = %+v, want one with id %s", items, tx.ID)
	}
	if len(store.synced) != 1 || store.synced[0] != tx.ID {
		t.Errorf("synced = %v, want [%s]", store.synced, tx.ID)
	}
}

func TestHandleSyncMessage_UnknownID(t *testing.T) {
	store := newFakeSyncStore()
	w := NewSyncWorker(store, memory.New(), 10)

	err := w.HandleSyncMessage(context.Background(), amqp.NewTransactionSyncMessage("missing"))
	if err == nil {
		t.Error("HandleSyncMessage() succeeded for unknown id")
	}
}

func TestProcessPending(t *testing.T) {
	a := testTransaction("tx-a")
	b := testTransaction("tx-b")
	store := newFakeSyncStore(a, b)
	writer := memory.New()
	w := NewSyncWorker(store, writer, 10)

	if err := w.ProcessPending(context.Background()); err != nil {
		t.Fatalf("ProcessPending() error = %v", err)
	}
	if len(writer.Items()) != 2 {
		t.Errorf("exported %d items, want 2", len(writer.Items()))
	}
	if len(store.synced) != 2 {
		t.Errorf("marked %d synced, want 2", len(store.synced))
	}
}

func TestProcessPending_InvalidTransactionMarkedError(t *testing.T) {
	bad := core.Transaction{ID: "tx-bad", Date: core.NewDate(2026, 8, 10)}
	store := newFakeSyncStore(bad)
	writer := memory.New()
	w := NewSyncWorker(store, writer, 10)

	if err := w.ProcessPending(context.Background()); err != nil {
		t.Fatalf("ProcessPending() error = %v", err)
	}
	if len(writer.Items()) != 0 {
		t.Error("invalid transaction was exported")
	}
	if len(store.errored) != 1 || store.errored[0] != "tx-bad" {
		t.Errorf("errored = %v, want [tx-bad]", store.errored)
	}
}

func TestProcessPending_RespectsBatchSize(t *testing.T) {
	a := testTransaction("tx-a")
	b := testTransaction("tx-b")
	store := newFakeSyncStore(a, b)
	writer := memory.New()
	w := NewSyncWorker(store, writer, 1)

	if err := w.ProcessPending(context.Background()); err != nil {
		t.Fatalf("ProcessPending() error = %v", err)
	}
	if len(writer.Items()) != 1 {
		t.Errorf("exported %d items, want 1", len(writer.Items()))
	}
}
