// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from strings
// and converting between cents and currency-unit representations.
package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ParseDecimalToCents converts a signed decimal string to cents with half-up rounding.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted. A leading
// sign is honoured so bank exports can carry outflows as negative numbers.
//
// Examples:
//
//	ParseDecimalToCents("12.34")   -> 1234, nil
//	ParseDecimalToCents("-12,34")  -> -1234, nil
//	ParseDecimalToCents("12.345")  -> 1235, nil (rounds half up)
//	ParseDecimalToCents("12.344")  -> 1234, nil
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64-1 {
		return 0, ErrInvalidAmount
	}
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	cents := iv*100 + fracCents
	if neg {
		cents = -cents
	}
	return cents, nil
}

// Units returns the amount in major currency units for display and statistics.
// Use cents for exact comparisons.
func (m Money) Units() float64 {
	return float64(m.Cents) / 100.0
}

// FromUnits converts a major-unit float to Money, rounding to the nearest cent.
func FromUnits(v float64) Money {
	if v < 0 {
		return Money{Cents: -int64(-v*100 + 0.5)}
	}
	return Money{Cents: int64(v*100 + 0.5)}
}

// Format renders the amount with two decimals and the given currency symbol.
func (m Money) Format(symbol string) string {
	cents := m.Cents
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%s%d.%02d", sign, symbol, cents/100, cents%100)
}

// Amounts travel as plain decimal numbers in JSON, matching bank exports.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Units())
}

func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	cents, err := ParseDecimalToCents(s)
	if err != nil {
		return fmt.Errorf("parse amount %q: %w", s, err)
	}
	m.Cents = cents
	return nil
}
