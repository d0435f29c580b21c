package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Monthly RepetitionTypes = "monthly"
)

const (
	Income  Category = "Income"
	Expense Category = "Expense"
)

type (
	RepetitionTypes string

	Category string

	Date struct {
		time.Time
	}

	// Money is a signed amount in minor units. Positive is inflow.
	Money struct {
		Cents int64
	}

	Source struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}

	Transaction struct {
		ID          string   `json:"id"`
		Date        Date     `json:"date"`
		Description string   `json:"description"`
		Amount      Money    `json:"amount"`
		Currency    string   `json:"currency"`
		Category    Category `json:"category"`
		Source      *Source  `json:"source,omitempty"`
		IsRecurring bool     `json:"isRecurring"`
	}
)

var (
	ErrEmptyID         = errors.New("empty transaction id")
	ErrZeroDate        = errors.New("date cannot be zero")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidCategory = errors.New("invalid category")
)

const dateLayout = "2006-01-02"

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

// MonthIndex returns year*12 + (month-1), unique per calendar month.
func (d Date) MonthIndex() int {
	return d.Year()*12 + int(d.Month()) - 1
}

// Midnight drops any time-of-day component.
func (d Date) Midnight() time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

// DaysUntil returns the number of calendar days from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other.Midnight().Sub(d.Midnight()).Hours() / 24)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	if parsed, err := ParseDate(s); err == nil {
		*d = parsed
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("parse date %q: %w", s, err)
	}
	*d = Date{Time: t.UTC()}
	return nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrZeroDate
	}
	return nil
}

// Direction helpers

func (m Money) IsOutflow() bool {
	return m.Cents < 0
}

// Abs returns the magnitude in cents.
func (m Money) Abs() int64 {
	if m.Cents < 0 {
		return -m.Cents
	}
	return m.Cents
}

func (c Category) Validate() error {
	switch c {
	case "", Income, Expense:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidCategory, string(c))
	}
}

// CategoryFor derives the category from the amount sign when none was given.
func CategoryFor(amount Money) Category {
	if amount.IsOutflow() {
		return Expense
	}
	return Income
}

// Label is the text used for grouping: the structured source name when present.
func (t Transaction) Label() string {
	if t.Source != nil && strings.TrimSpace(t.Source.Name) != "" {
		return t.Source.Name
	}
	return t.Description
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrEmptyID
	}
	if err := t.Date.Validate(); err != nil {
		return fmt.Errorf("transaction %s: %w", t.ID, err)
	}
	if err := t.Category.Validate(); err != nil {
		return fmt.Errorf("transaction %s: %w", t.ID, err)
	}
	return nil
}

// WithRecurring returns a copy with the recurrence flag set.
func (t Transaction) WithRecurring(recurring bool) Transaction {
	out := t
	if t.Source != nil {
		src := *t.Source
		out.Source = &src
	}
	out.IsRecurring = recurring
	return out
}
