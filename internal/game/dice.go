package game

const (
	// Target bounds for a roll-under bet. They keep the win probability
	// within [1%, 99%] so the multiplier never degenerates.
	MinTarget = 100
	MaxTarget = 9900

	DefaultHouseEdgePct = 1.0
)

// DiceOdds describes the payout terms implied by a roll-under target.
type DiceOdds struct {
	WinChancePct float64 `json:"win_chance_pct"`
	Multiplier   float64 `json:"multiplier"`
}

// ValidTarget reports whether target is inside the allowed odds range.
func ValidTarget(target int) bool {
	return target >= MinTarget && target <= MaxTarget
}

// CalculateDiceOdds computes the fair-minus-edge multiplier for a roll-under
// target: multiplier = (100 - houseEdgePct) / winChancePct, where the win
// chance is target / 10000.
func CalculateDiceOdds(target int, houseEdgePct float64) DiceOdds {
	winChancePct := float64(target) / float64(OutcomeRange) * 100
	return DiceOdds{
		WinChancePct: winChancePct,
		Multiplier:   (100 - houseEdgePct) / winChancePct,
	}
}

// SettleDice resolves a roll-under bet against a derived outcome. The roll
// wins when outcome < target. Profit is signed: the full wager is lost on a
// losing roll.
func SettleDice(amount float64, target, outcome int, houseEdgePct float64) (won bool, multiplier, profit float64) {
	odds := CalculateDiceOdds(target, houseEdgePct)
	won = outcome < target
	if won {
		profit = amount*odds.Multiplier - amount
	} else {
		profit = -amount
	}
	return won, odds.Multiplier, profit
}
