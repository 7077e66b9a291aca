package services

import (
	"fmt"

	"bilancio/internal/core"
)

// Materialize finds occurrences on or before today that have never been
// converted into a real transaction and returns new real transactions for
// them, exactly one per (template, occurrence date) pair. It catches up on
// all missed occurrences in one pass, never just the most recent one, and
// never emits future dates. The caller persists the result; the store's
// (recurring_template_id, date) uniqueness constraint is the second line of
// defense against racing passes.
func Materialize(templates []core.RecurringTemplate, today core.Date, existing []core.Transaction) ([]core.Transaction, error) {
	covered := make(map[string]struct{}, len(existing))
	for _, tx := range existing {
		// Edited transactions keep their parent reference and date, so
		// they still cover their occurrence.
		if tx.RecurringParentID != "" && !tx.Forecasted {
			covered[core.OccurrenceKey(tx.RecurringParentID, tx.Date)] = struct{}{}
		}
	}

	var out []core.Transaction
	for _, tmpl := range templates {
		if !tmpl.Active {
			continue
		}
		if tmpl.Schedule.Anchor.After(today) {
			continue
		}
		occurrences, err := core.OccurrencesIn(tmpl.Schedule, tmpl.Schedule.Anchor, today)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", tmpl.ID, err)
		}
		for _, date := range occurrences {
			if _, ok := covered[core.OccurrenceKey(tmpl.ID, date)]; ok {
				continue
			}
			out = append(out, core.Transaction{
				ID:                core.NewTransactionID(),
				Direction:         tmpl.Direction,
				Amount:            tmpl.Amount,
				Category:          tmpl.Category,
				Description:       tmpl.Description,
				AccountID:         tmpl.AccountID,
				Date:              date,
				Verified:          false,
				Forecasted:        false,
				RecurringParentID: tmpl.ID,
			})
		}
	}
	return out, nil
}
