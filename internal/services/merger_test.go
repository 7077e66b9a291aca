package services

import (
	"testing"

	"github.com/shopspring/decimal"

	"bilancio/internal/core"
)

func TestMerge_SuppressesCoveredForecasts(t *testing.T) {
	date := core.NewDate(2024, 3, 5)
	real := core.Transaction{
		ID:                "real-1",
		Direction:         core.Expense,
		Amount:            decimal.NewFromInt(100),
		Date:              date,
		RecurringParentID: "rent",
	}
	forecast := core.Transaction{
		ID:                core.ForecastID("rent", date),
		Direction:         core.Expense,
		Amount:            decimal.NewFromInt(100),
		Date:              date,
		Forecasted:        true,
		RecurringParentID: "rent",
	}

	got := Merge([]core.Transaction{real}, []core.Transaction{forecast})
	if len(got) != 1 {
		t.Fatalf("Merge() returned %d transactions, want 1", len(got))
	}
	if got[0].ID != "real-1" {
		t.Errorf("Merge() kept %s, want real-1", got[0].ID)
	}
}

func TestMerge_KeepsUncoveredForecasts(t *testing.T) {
	real := []core.Transaction{
		{ID: "manual", Date: core.NewDate(2024, 3, 2)},
		{ID: "real-1", Date: core.NewDate(2024, 3, 5), RecurringParentID: "rent"},
	}
	forecasts := []core.Transaction{
		{ID: "f-1", Date: core.NewDate(2024, 3, 5), RecurringParentID: "rent", Forecasted: true},
		{ID: "f-2", Date: core.NewDate(2024, 4, 5), RecurringParentID: "rent", Forecasted: true},
		{ID: "f-3", Date: core.NewDate(2024, 3, 20), RecurringParentID: "netflix", Forecasted: true},
	}

	got := Merge(real, forecasts)
	if len(got) != 4 {
		t.Fatalf("Merge() returned %d transactions, want 4", len(got))
	}

	ids := make(map[string]bool, len(got))
	for _, tx := range got {
		ids[tx.ID] = true
	}
	if ids["f-1"] {
		t.Error("covered forecast f-1 survived the merge")
	}
	for _, want := range []string{"manual", "real-1", "f-2", "f-3"} {
		if !ids[want] {
			t.Errorf("expected %s in merge output", want)
		}
	}
}

func TestMerge_ManualEntriesNeverSuppress(t *testing.T) {
	// A manual transaction on the same date has no parent reference and
	// must not shadow the forecast.
	date := core.NewDate(2024, 3, 5)
	real := []core.Transaction{{ID: "manual", Date: date}}
	forecasts := []core.Transaction{{ID: "f-1", Date: date, RecurringParentID: "rent", Forecasted: true}}

	got := Merge(real, forecasts)
	if len(got) != 2 {
		t.Fatalf("Merge() returned %d transactions, want 2", len(got))
	}
}

func TestSortByDate(t *testing.T) {
	txs := []core.Transaction{
		{ID: "c", Date: core.NewDate(2024, 3, 20)},
		{ID: "a", Date: core.NewDate(2024, 3, 1)},
		{ID: "b", Date: core.NewDate(2024, 3, 1)},
	}
	SortByDate(txs)
	if txs[0].ID != "a" || txs[1].ID != "b" || txs[2].ID != "c" {
		t.Errorf("SortByDate order = %s,%s,%s, want a,b,c", txs[0].ID, txs[1].ID, txs[2].ID)
	}
}
