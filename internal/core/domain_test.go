package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestForecastID_Deterministic(t *testing.T) {
	date := NewDate(2024, 3, 15)

	a := ForecastID("tmpl-1", date)
	b := ForecastID("tmpl-1", date)
	if a != b {
		t.Errorf("same inputs produced different ids: %s vs %s", a, b)
	}

	if other := ForecastID("tmpl-2", date); other == a {
		t.Errorf("different templates produced the same id %s", a)
	}
	if other := ForecastID("tmpl-1", NewDate(2024, 3, 16)); other == a {
		t.Errorf("different dates produced the same id %s", a)
	}
}

func TestOccurrenceKey(t *testing.T) {
	got := OccurrenceKey("tmpl-1", NewDate(2024, 2, 29))
	if want := "tmpl-1|2024-02-29"; got != want {
		t.Errorf("OccurrenceKey() = %q, want %q", got, want)
	}
}

func TestTransactionValidate(t *testing.T) {
	valid := Transaction{
		ID:          "tx-1",
		Direction:   Expense,
		Amount:      decimal.NewFromInt(50),
		Category:    "housing",
		Description: "Rent",
		Date:        NewDate(2024, 1, 1),
	}

	tests := []struct {
		name    string
		mutate  func(tx *Transaction)
		wantErr error
	}{
		{"valid", func(tx *Transaction) {}, nil},
		{"zero amount", func(tx *Transaction) { tx.Amount = decimal.Zero }, ErrInvalidAmount},
		{"negative amount", func(tx *Transaction) { tx.Amount = decimal.NewFromInt(-5) }, ErrInvalidAmount},
		{"bad direction", func(tx *Transaction) { tx.Direction = "transfer" }, ErrInvalidDirection},
		{"blank description", func(tx *Transaction) { tx.Description = "   " }, ErrEmptyDescription},
		{"overlong description", func(tx *Transaction) { tx.Description = strings.Repeat("x", 201) }, ErrDescriptionTooLong},
		{"blank category", func(tx *Transaction) { tx.Category = "" }, ErrEmptyCategory},
		{"zero date", func(tx *Transaction) { tx.Date = Date{} }, ErrDateRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := valid
			tt.mutate(&tx)
			err := tx.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRecurringTemplateValidate(t *testing.T) {
	valid := RecurringTemplate{
		ID:          "tmpl-1",
		Direction:   Income,
		Amount:      decimal.NewFromInt(2500),
		Category:    "salary",
		Description: "Salary",
		Schedule:    Schedule{Kind: Monthly, Anchor: NewDate(2024, 1, 25), DayOfMonth: 25},
		Active:      true,
	}

	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}

	broken := valid
	broken.Schedule = Schedule{Kind: Custom, Anchor: NewDate(2024, 1, 1), EveryDays: 0}
	if err := broken.Validate(); !errors.Is(err, ErrInvalidSchedule) {
		t.Errorf("Validate() error = %v, want ErrInvalidSchedule", err)
	}
}

func TestCanClose(t *testing.T) {
	verified := Transaction{Direction: Expense, Verified: true}
	unverified := Transaction{Direction: Expense}
	forecast := Transaction{Direction: Expense, Forecasted: true}

	tests := []struct {
		name string
		txs  []Transaction
		want bool
	}{
		{"empty month cannot close", nil, false},
		{"all verified closes", []Transaction{verified, verified}, true},
		{"one unverified blocks", []Transaction{verified, unverified}, false},
		{"forecasts do not block", []Transaction{verified, forecast}, true},
		{"only forecasts cannot close", []Transaction{forecast, forecast}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanClose(tt.txs); got != tt.want {
				t.Errorf("CanClose() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	txs := []Transaction{
		{Direction: Income, Amount: decimal.NewFromInt(2500), Verified: true},
		{Direction: Expense, Amount: decimal.NewFromInt(800), Verified: true},
		{Direction: Expense, Amount: decimal.NewFromInt(120)},
		{Direction: Expense, Amount: decimal.NewFromInt(15), Forecasted: true},
	}

	o := Summarize(2024, 3, txs)

	if !o.Income.Equal(decimal.NewFromInt(2500)) {
		t.Errorf("Income = %s, want 2500", o.Income)
	}
	if !o.Expenses.Equal(decimal.NewFromInt(920)) {
		t.Errorf("Expenses = %s, want 920", o.Expenses)
	}
	if !o.Forecasted.Equal(decimal.NewFromInt(15)) {
		t.Errorf("Forecasted = %s, want 15", o.Forecasted)
	}
	if o.Verified != 2 || o.Unverified != 1 {
		t.Errorf("Verified/Unverified = %d/%d, want 2/1", o.Verified, o.Unverified)
	}
	if o.CanClose {
		t.Error("CanClose = true with an unverified transaction")
	}
}

func TestMonthWindow(t *testing.T) {
	start, end := MonthWindow(2024, 2)
	if !start.Equal(NewDate(2024, 2, 1)) || !end.Equal(NewDate(2024, 2, 29)) {
		t.Errorf("MonthWindow(2024, 2) = [%s, %s], want [2024-02-01, 2024-02-29]", start, end)
	}
	if key := MonthKey(2024, 2); key != "2024-02" {
		t.Errorf("MonthKey(2024, 2) = %q, want 2024-02", key)
	}
}
