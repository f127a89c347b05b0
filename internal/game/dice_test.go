package game

import (
	"math"
	"testing"
)

func TestValidTarget(t *testing.T) {
	tests := []struct {
		target int
		want   bool
	}{
		{-5, false},
		{0, false},
		{99, false},
		{100, true},
		{5000, true},
		{9900, true},
		{9901, false},
		{10000, false},
	}

	for _, tt := range tests {
		if got := ValidTarget(tt.target); got != tt.want {
			t.Errorf("ValidTarget(%d) = %v, want %v", tt.target, got, tt.want)
		}
	}
}

func TestCalculateDiceOdds(t *testing.T) {
	tests := []struct {
		name           string
		target         int
		houseEdgePct   float64
		wantChancePct  float64
		wantMultiplier float64
	}{
		{
			name:           "Even odds with 1% edge",
			target:         5000,
			houseEdgePct:   1,
			wantChancePct:  50,
			wantMultiplier: 1.98,
		},
		{
			name:           "Max target",
			target:         9900,
			houseEdgePct:   1,
			wantChancePct:  99,
			wantMultiplier: 1,
		},
		{
			name:           "Min target",
			target:         100,
			houseEdgePct:   1,
			wantChancePct:  1,
			wantMultiplier: 99,
		},
		{
			name:           "No edge is fair",
			target:         2500,
			houseEdgePct:   0,
			wantChancePct:  25,
			wantMultiplier: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			odds := CalculateDiceOdds(tt.target, tt.houseEdgePct)
			if math.Abs(odds.WinChancePct-tt.wantChancePct) > 1e-9 {
				t.Errorf("WinChancePct = %v, want %v", odds.WinChancePct, tt.wantChancePct)
			}
			if math.Abs(odds.Multiplier-tt.wantMultiplier) > 1e-9 {
				t.Errorf("Multiplier = %v, want %v", odds.Multiplier, tt.wantMultiplier)
			}
		})
	}
}

func TestSettleDice(t *testing.T) {
	// The canonical example: 50% chance, 1% edge, wager 100. A win pays
	// 98 profit at x1.98; a loss forfeits the whole wager.
	won, multiplier, profit := SettleDice(100, 5000, 4999, 1)
	if !won {
		t.Fatal("outcome 4999 under target 5000 should win")
	}
	if math.Abs(multiplier-1.98) > 1e-9 {
		t.Errorf("multiplier = %v, want 1.98", multiplier)
	}
	if math.Abs(profit-98) > 1e-9 {
		t.Errorf("profit = %v, want 98", profit)
	}

	won, _, profit = SettleDice(100, 5000, 5000, 1)
	if won {
		t.Fatal("outcome 5000 under target 5000 should lose (roll-under is strict)")
	}
	if math.Abs(profit+100) > 1e-9 {
		t.Errorf("profit = %v, want -100", profit)
	}
}

func TestSettleDice_OutcomeBoundaries(t *testing.T) {
	if won, _, _ := SettleDice(1, MinTarget, 0, 1); !won {
		t.Error("outcome 0 should win against any valid target")
	}
	if won, _, _ := SettleDice(1, MaxTarget, OutcomeRange-1, 1); won {
		t.Error("outcome 9999 should lose against any valid target")
	}
}
