package services

import (
	"testing"

	"github.com/shopspring/decimal"

	"bilancio/internal/core"
)

func monthlyTemplate(id string, active bool, anchor core.Date, dayOfMonth int) core.RecurringTemplate {
	return core.RecurringTemplate{
		ID:          id,
		Direction:   core.Expense,
		Amount:      decimal.NewFromInt(100),
		Category:    "housing",
		Description: "Rent",
		Schedule:    core.Schedule{Kind: core.Monthly, Anchor: anchor, DayOfMonth: dayOfMonth},
		Active:      active,
	}
}

func TestForecast_FlagsFutureOccurrences(t *testing.T) {
	today := core.NewDate(2024, 3, 10)
	templates := []core.RecurringTemplate{
		monthlyTemplate("rent", true, core.NewDate(2024, 1, 5), 5),
	}

	got, err := Forecast(templates, today, core.NewDate(2024, 3, 1), core.NewDate(2024, 4, 30))
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Forecast() returned %d transactions, want 2", len(got))
	}

	// 2024-03-05 is on or before today: emitted, but not flagged future.
	if got[0].Forecasted {
		t.Errorf("occurrence %s flagged forecasted, is due", got[0].Date)
	}
	// 2024-04-05 is strictly after today.
	if !got[1].Forecasted {
		t.Errorf("occurrence %s not flagged forecasted", got[1].Date)
	}

	for _, tx := range got {
		if tx.Verified {
			t.Errorf("forecast %s is verified", tx.ID)
		}
		if tx.RecurringParentID != "rent" {
			t.Errorf("forecast parent = %q, want rent", tx.RecurringParentID)
		}
		if tx.ID != core.ForecastID("rent", tx.Date) {
			t.Errorf("forecast id %s not derived from (parent, date)", tx.ID)
		}
	}
}

func TestForecast_IdempotentAcrossRecomputes(t *testing.T) {
	today := core.NewDate(2024, 3, 10)
	templates := []core.RecurringTemplate{
		monthlyTemplate("rent", true, core.NewDate(2024, 1, 5), 5),
	}
	start, end := core.NewDate(2024, 3, 1), core.NewDate(2024, 3, 31)

	first, err := Forecast(templates, today, start, end)
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}
	second, err := Forecast(templates, today, start, end)
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("recompute changed count: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("recompute changed id: %s vs %s", first[i].ID, second[i].ID)
		}
	}
}

func TestForecast_SkipsInactiveTemplates(t *testing.T) {
	today := core.NewDate(2024, 3, 1)
	templates := []core.RecurringTemplate{
		monthlyTemplate("paused", false, core.NewDate(2024, 1, 1), 1),
	}

	got, err := Forecast(templates, today, core.NewDate(2024, 1, 1), core.NewDate(2024, 6, 1))
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("inactive template produced %d forecasts", len(got))
	}
}

func TestForecast_InvalidScheduleSurfaces(t *testing.T) {
	bad := core.RecurringTemplate{
		ID:          "bad",
		Direction:   core.Expense,
		Amount:      decimal.NewFromInt(10),
		Category:    "other",
		Description: "Broken",
		Schedule:    core.Schedule{Kind: core.Custom, Anchor: core.NewDate(2024, 1, 1)},
		Active:      true,
	}
	if _, err := Forecast([]core.RecurringTemplate{bad}, core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 1), core.NewDate(2024, 2, 1)); err == nil {
		t.Error("Forecast() accepted a custom schedule with step 0")
	}
}
