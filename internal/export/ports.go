// Package export defines the outbound ports for mirroring the ledger to an
// external backend. The local SQLite database stays the source of truth;
// export is one-way and best-effort.
package export

import (
	"context"

	"bilancio/internal/core"
)

type (
	// LedgerWriter appends one real transaction to the export backend and
	// returns an opaque row reference for logging.
	LedgerWriter interface {
		Append(ctx context.Context, tx core.Transaction) (rowRef string, err error)
	}
)
