package core

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	Income  Direction = "income"
	Expense Direction = "expense"
)

type (
	Direction string

	// RecurringTemplate is a repeating-payment definition. Inactive
	// templates stop generating occurrences; transactions already
	// materialized from them are unaffected.
	RecurringTemplate struct {
		ID          string          `json:"id"`
		Direction   Direction       `json:"direction"`
		Amount      decimal.Decimal `json:"amount"`
		Category    string          `json:"category"`
		Description string          `json:"description"`
		AccountID   string          `json:"accountId,omitempty"`
		Schedule    Schedule        `json:"schedule"`
		Active      bool            `json:"active"`
	}

	// Transaction is a ledger entry. Real entries are durable; forecasted
	// ones are recomputed on every view and never persisted.
	Transaction struct {
		ID          string          `json:"id"`
		Direction   Direction       `json:"direction"`
		Amount      decimal.Decimal `json:"amount"`
		Category    string          `json:"category"`
		Description string          `json:"description"`
		AccountID   string          `json:"accountId,omitempty"`
		Date        Date            `json:"date"`
		Verified    bool            `json:"verified"`
		Forecasted  bool            `json:"isForecasted"`
		// RecurringParentID identifies the originating template. It is a
		// non-owning reference: the transaction outlives the template.
		RecurringParentID string `json:"recurringParentId,omitempty"`
	}

	// MonthSettings holds per-month state keyed by YYYY-MM.
	MonthSettings struct {
		Key             string          `json:"key"`
		StartingBalance decimal.Decimal `json:"startingBalance"`
		Closed          bool            `json:"closed"`
	}
)

var (
	ErrInvalidSchedule     = errors.New("invalid schedule")
	ErrDuplicateOccurrence = errors.New("duplicate occurrence")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidDirection    = errors.New("invalid direction")
	ErrEmptyDescription    = errors.New("empty description")
	ErrDescriptionTooLong  = errors.New("description too long (max 200 characters)")
	ErrEmptyCategory       = errors.New("empty category")
	ErrDateRequired        = errors.New("date is required")
	ErrMonthClosed         = errors.New("month is closed")
	ErrMonthNotCloseable   = errors.New("month close preconditions not met")
)

// forecastNamespace scopes derived forecast identities. Forecast IDs are a
// pure function of (template id, occurrence date) so regeneration yields
// the same id every time.
var forecastNamespace = uuid.MustParse("9f2f6cfb-a5c7-4dbe-92f2-61f1b0f37a4b")

// OccurrenceKey is the uniqueness key for materialized occurrences:
// exactly one real transaction may exist per (template, date) pair.
func OccurrenceKey(parentID string, date Date) string {
	return parentID + "|" + date.String()
}

// ForecastID derives a deterministic identity for the forecast of a
// template occurrence.
func ForecastID(parentID string, date Date) string {
	return uuid.NewSHA1(forecastNamespace, []byte(OccurrenceKey(parentID, date))).String()
}

// NewTransactionID returns a fresh identity for a real transaction.
// Assigned once at creation or materialization, stable thereafter.
func NewTransactionID() string {
	return uuid.NewString()
}

func (d Direction) Validate() error {
	switch d {
	case Income, Expense:
		return nil
	default:
		return ErrInvalidDirection
	}
}

func (t Transaction) Validate() error {
	if err := t.Direction.Validate(); err != nil {
		return err
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return ErrDescriptionTooLong
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if t.Date.IsZero() {
		return ErrDateRequired
	}
	return nil
}

func (rt RecurringTemplate) Validate() error {
	if err := rt.Direction.Validate(); err != nil {
		return err
	}
	if !rt.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if len(strings.TrimSpace(rt.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(rt.Description) > 200 {
		return ErrDescriptionTooLong
	}
	if strings.TrimSpace(rt.Category) == "" {
		return ErrEmptyCategory
	}
	return rt.Schedule.Validate()
}
