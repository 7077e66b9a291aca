// Package services implements the recurring-transaction engine and the
// orchestration around it. The engine is three pure stages operating on
// immutable snapshots: Materialize finds due occurrences that must become
// real transactions, Forecast synthesizes provisional entries for a viewing
// window, and Merge reconciles the two for display. Only the Materializer's
// output ever crosses into the persistence boundary.
package services

import (
	"fmt"

	"bilancio/internal/core"
)

// Forecast produces provisional transactions for every occurrence of the
// active templates inside [start, end]. Occurrences dated after today carry
// Forecasted=true; earlier ones are still emitted (not yet materialized or
// about to be) so the Merger can decide whether a real counterpart exists.
// Deduplication against real data is the Merger's and Materializer's job.
func Forecast(templates []core.RecurringTemplate, today, start, end core.Date) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, tmpl := range templates {
		if !tmpl.Active {
			continue
		}
		occurrences, err := core.OccurrencesIn(tmpl.Schedule, start, end)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", tmpl.ID, err)
		}
		for _, date := range occurrences {
			out = append(out, core.Transaction{
				ID:                core.ForecastID(tmpl.ID, date),
				Direction:         tmpl.Direction,
				Amount:            tmpl.Amount,
				Category:          tmpl.Category,
				Description:       tmpl.Description,
				AccountID:         tmpl.AccountID,
				Date:              date,
				Verified:          false,
				Forecasted:        date.After(today),
				RecurringParentID: tmpl.ID,
			})
		}
	}
	return out, nil
}
