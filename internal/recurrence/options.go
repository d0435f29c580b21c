package recurrence

import (
	"errors"
	"fmt"
	"strings"
)

const (
	DefaultMinOccurrences       = 3
	DefaultMinSpanDays          = 90
	DefaultMaxSpanDays          = 370
	DefaultMaxSkippedMonths     = 6
	DefaultDayFlexToleranceDays = 4
)

var (
	ErrInvalidOptions     = errors.New("invalid detection options")
	ErrInvalidTransaction = errors.New("invalid transaction")
)

// Options tunes the series validator. Decode JSON onto DefaultOptions() so
// omitted fields keep their defaults.
type Options struct {
	MinOccurrences       int      `json:"minOccurrences"`
	MinSpanDays          int      `json:"minSpanDays"`
	MaxSpanDays          int      `json:"maxSpanDays"`
	MaxSkippedMonths     int      `json:"maxSkippedMonths"`
	DayFlexToleranceDays int      `json:"dayFlexToleranceDays"`
	GroupingSubstrings   []string `json:"groupingSubstrings,omitempty"`
}

// DefaultOptions returns the detection defaults.
func DefaultOptions() Options {
	return Options{
		MinOccurrences:       DefaultMinOccurrences,
		MinSpanDays:          DefaultMinSpanDays,
		MaxSpanDays:          DefaultMaxSpanDays,
		MaxSkippedMonths:     DefaultMaxSkippedMonths,
		DayFlexToleranceDays: DefaultDayFlexToleranceDays,
	}
}

// Validate reports every malformed field at once.
func (o Options) Validate() error {
	var problems []string

	if o.MinOccurrences < 1 {
		problems = append(problems, fmt.Sprintf("minOccurrences %d: must be at least 1", o.MinOccurrences))
	}
	if o.MinSpanDays < 0 {
		problems = append(problems, fmt.Sprintf("minSpanDays %d: must not be negative", o.MinSpanDays))
	}
	if o.MaxSpanDays < o.MinSpanDays {
		problems = append(problems, fmt.Sprintf("maxSpanDays %d: must be at least minSpanDays %d", o.MaxSpanDays, o.MinSpanDays))
	}
	if o.MaxSkippedMonths < 0 {
		problems = append(problems, fmt.Sprintf("maxSkippedMonths %d: must not be negative", o.MaxSkippedMonths))
	}
	if o.DayFlexToleranceDays < 0 {
		problems = append(problems, fmt.Sprintf("dayFlexToleranceDays %d: must not be negative", o.DayFlexToleranceDays))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidOptions, strings.Join(problems, "; "))
	}
	return nil
}
