package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MonthKey formats the YYYY-MM key month settings are stored under.
func MonthKey(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// MonthWindow returns the closed [first, last] day interval of a month.
func MonthWindow(year, month int) (Date, Date) {
	return NewDate(year, month, 1), NewDate(year, month, DaysInMonth(year, month))
}

// MonthOverview is a compact summary for a specific year+month window.
type MonthOverview struct {
	Year       int             `json:"year"`
	Month      int             `json:"month"`
	Income     decimal.Decimal `json:"income"`
	Expenses   decimal.Decimal `json:"expenses"`
	Forecasted decimal.Decimal `json:"forecasted"`
	Verified   int             `json:"verified"`
	Unverified int             `json:"unverified"`
	CanClose   bool            `json:"canClose"`
}

// Summarize computes totals and the month-close precondition over a merged
// window list. Forecasted entries count toward the forecasted total only.
func Summarize(year, month int, transactions []Transaction) MonthOverview {
	o := MonthOverview{
		Year:       year,
		Month:      month,
		Income:     decimal.Zero,
		Expenses:   decimal.Zero,
		Forecasted: decimal.Zero,
	}
	for _, t := range transactions {
		if t.Forecasted {
			o.Forecasted = o.Forecasted.Add(t.Amount)
			continue
		}
		switch t.Direction {
		case Income:
			o.Income = o.Income.Add(t.Amount)
		case Expense:
			o.Expenses = o.Expenses.Add(t.Amount)
		}
		if t.Verified {
			o.Verified++
		} else {
			o.Unverified++
		}
	}
	o.CanClose = CanClose(transactions)
	return o
}

// CanClose reports whether a month may be marked closed: at least one
// real transaction exists and every real one is verified. Forecasts are
// provisional and never count either way.
func CanClose(transactions []Transaction) bool {
	real := 0
	for _, t := range transactions {
		if t.Forecasted {
			continue
		}
		real++
		if !t.Verified {
			return false
		}
	}
	return real > 0
}
