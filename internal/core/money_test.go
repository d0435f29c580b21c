package core

import (
	"encoding/json"
	"testing"
)

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"-15", -1500, true},
		{"-19.99", -1999, true},
		{"+20.05", 2005, true},
		{"0", 0, true},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"--1", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestMoneyFormat(t *testing.T) {
	cases := []struct {
		m    Money
		sym  string
		want string
	}{
		{Money{Cents: 1500}, "$", "$15.00"},
		{Money{Cents: -1999}, "€", "-€19.99"},
		{Money{Cents: 5}, "", "0.05"},
	}
	for _, tc := range cases {
		if got := tc.m.Format(tc.sym); got != tc.want {
			t.Errorf("Format() = %q, want %q", got, tc.want)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	var m Money
	if err := json.Unmarshal([]byte(`-20.05`), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.Cents != -2005 {
		t.Fatalf("expected -2005 cents, got %d", m.Cents)
	}
	if err := json.Unmarshal([]byte(`"12,50"`), &m); err != nil || m.Cents != 1250 {
		t.Fatalf("string amount: cents=%d err=%v", m.Cents, err)
	}
	b, err := json.Marshal(Money{Cents: -1500})
	if err != nil || string(b) != "-15" {
		t.Fatalf("marshal = %s (err=%v)", b, err)
	}
}
