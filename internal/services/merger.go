package services

import (
	"sort"

	"bilancio/internal/core"
)

// Merge combines a window's real transactions with its forecasts, dropping
// any forecast whose (template, date) occurrence is already covered by a
// real transaction. Ordering is not significant here; SortByDate is for
// display time.
func Merge(real, forecasts []core.Transaction) []core.Transaction {
	covered := make(map[string]struct{}, len(real))
	for _, tx := range real {
		if tx.RecurringParentID != "" {
			covered[core.OccurrenceKey(tx.RecurringParentID, tx.Date)] = struct{}{}
		}
	}

	merged := make([]core.Transaction, 0, len(real)+len(forecasts))
	merged = append(merged, real...)
	for _, f := range forecasts {
		if _, ok := covered[core.OccurrenceKey(f.RecurringParentID, f.Date)]; ok {
			continue
		}
		merged = append(merged, f)
	}
	return merged
}

// SortByDate orders transactions by date, with stable ordering for entries
// on the same day.
func SortByDate(txs []core.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Date.Before(txs[j].Date)
	})
}
