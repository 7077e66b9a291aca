// Package worker contains the background processors: the export sync worker
// and the scheduled materialization runner.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/export"
)

// SyncStore is the slice of the storage layer the sync worker needs.
type SyncStore interface {
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	ListPendingSyncIDs(ctx context.Context, limit int) ([]string, error)
	MarkSynced(ctx context.Context, id string) error
	MarkSyncError(ctx context.Context, id string) error
}

// SyncWorker mirrors real transactions from SQLite to the export backend.
// SQLite stays the source of truth; a failed export leaves the row marked
// sync_status=error and the backfill pass retries it.
type SyncWorker struct {
	storage   SyncStore
	writer    export.LedgerWriter
	batchSize int
}

func NewSyncWorker(storage SyncStore, writer export.LedgerWriter, batchSize int) *SyncWorker {
	return &SyncWorker{
		storage:   storage,
		writer:    writer,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes a single transaction sync message from AMQP.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message", "id", msg.ID)

	tx, err := w.storage.GetTransaction(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("get transaction from storage: %w", err)
	}

	if err := w.exportTransaction(ctx, tx); err != nil {
		return fmt.Errorf("export transaction: %w", err)
	}

	return nil
}

// ProcessPending exports transactions that never got a sync message.
// This is the backup path for lost AMQP messages or worker downtime.
func (w *SyncWorker) ProcessPending(ctx context.Context) error {
	ids, err := w.storage.ListPendingSyncIDs(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list pending sync ids: %w", err)
	}

	if len(ids) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending transactions", "count", len(ids))

	for _, id := range ids {
		tx, err := w.storage.GetTransaction(ctx, id)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to get transaction", "id", id, "error", err)
			if markErr := w.storage.MarkSyncError(ctx, id); markErr != nil {
				slog.ErrorContext(ctx, "Failed to mark sync error", "id", id, "error", markErr)
			}
			continue
		}

		if err := w.exportTransaction(ctx, tx); err != nil {
			slog.ErrorContext(ctx, "Failed to export transaction", "id", id, "error", err)
			continue
		}
	}

	return nil
}

// StartupSyncCheck drains the pending backlog once at worker startup with a
// larger batch, to recover from downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	ids, err := w.storage.ListPendingSyncIDs(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("list pending sync ids for startup check: %w", err)
	}

	if len(ids) == 0 {
		slog.InfoContext(ctx, "No pending transactions found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending transactions on startup, processing...",
		"count", len(ids))

	synced := 0
	failed := 0
	for _, id := range ids {
		tx, err := w.storage.GetTransaction(ctx, id)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to get transaction for startup sync",
				"id", id, "error", err)
			if markErr := w.storage.MarkSyncError(ctx, id); markErr != nil {
				slog.ErrorContext(ctx, "Failed to mark sync error", "id", id, "error", markErr)
			}
			failed++
			continue
		}

		if err := w.exportTransaction(ctx, tx); err != nil {
			slog.ErrorContext(ctx, "Failed to export transaction during startup",
				"id", id, "error", err)
			failed++
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"total", len(ids), "synced", synced, "errors", failed)

	return nil
}

func (w *SyncWorker) exportTransaction(ctx context.Context, tx core.Transaction) error {
	ref, err := w.writer.Append(ctx, tx)
	if err != nil {
		if markErr := w.storage.MarkSyncError(ctx, tx.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", tx.ID, "error", markErr)
		}
		return fmt.Errorf("append to export backend: %w", err)
	}

	if err := w.storage.MarkSynced(ctx, tx.ID); err != nil {
		// The export itself succeeded; log and move on.
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", tx.ID, "error", err)
	}

	slog.InfoContext(ctx, "Synced transaction",
		"id", tx.ID,
		"export_ref", ref,
		"date", tx.Date.String(),
		"amount", tx.Amount.String())

	return nil
}
