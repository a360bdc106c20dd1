package game

import (
	"encoding/json"
	"testing"
)

func TestCentsFromFloat(t *testing.T) {
	tests := []struct {
		in   float64
		want Cents
	}{
		{0, 0},
		{1, 100},
		{100.25, 10025},
		{1000, 100000},
		{0.01, 1},
		{33.33, 3333},
	}

	for _, tt := range tests {
		if got := CentsFromFloat(tt.in); got != tt.want {
			t.Errorf("CentsFromFloat(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCentsString(t *testing.T) {
	tests := []struct {
		in   Cents
		want string
	}{
		{0, "0.00"},
		{1, "0.01"},
		{100, "1.00"},
		{115000, "1150.00"},
		{-250, "-2.50"},
	}

	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Errorf("Cents(%d).String() = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCentsMarshalJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Balance Cents `json:"balance"`
	}{Balance: 115000})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	if string(data) != `{"balance":1150.00}` {
		t.Errorf("marshal = %s, want {\"balance\":1150.00}", data)
	}
}

// Winnings must truncate, never round: floor(amount * multiplier * 100) / 100.
func TestWinningsAt(t *testing.T) {
	tests := []struct {
		name   string
		amount Cents
		bps    int64
		want   Cents
	}{
		{"100 at 2.50", 10000, 250, 25000},
		{"bet at 1.00", 10000, 100, 10000},
		{"truncates fraction", 3333, 137, 4566},  // 33.33 * 1.37 = 45.6621 -> 45.66
		{"truncates not rounds", 999, 149, 1488}, // 9.99 * 1.49 = 14.8851 -> 14.88
		{"tiny bet", 1, 150, 1},                  // 0.01 * 1.50 = 0.015 -> 0.01
		{"sub-cent result", 1, 101, 1},           // 0.01 * 1.01 = 0.0101 -> 0.01
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WinningsAt(tt.amount, tt.bps); got != tt.want {
				t.Errorf("WinningsAt(%d, %d) = %d, want %d", tt.amount, tt.bps, got, tt.want)
			}
		})
	}
}

func TestFormatBps(t *testing.T) {
	tests := []struct {
		bps  int64
		want string
	}{
		{100, "1.00"},
		{101, "1.01"},
		{137, "1.37"},
		{250, "2.50"},
		{1000, "10.00"},
	}

	for _, tt := range tests {
		if got := FormatBps(tt.bps); got != tt.want {
			t.Errorf("FormatBps(%d) = %q, want %q", tt.bps, got, tt.want)
		}
	}
}
