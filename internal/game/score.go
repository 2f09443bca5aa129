package game

import "github.com/scythe504/coral-backend/internal"

// =============================================================================
// TRAP SCORING
// =============================================================================

// CardValue is a card's contribution against a trap. A value-1 card always adds 1;
// a value-2 card adds 2 on a suit match (or a "both" trap) and subtracts 2 otherwise.
func CardValue(trap internal.Trap, card internal.Card) int {
	if card.Value == 1 {
		return 1
	}
	if trap.Suit == internal.SuitBoth || card.Suit == trap.Suit {
		return card.Value
	}
	return -card.Value
}

func ScoreCards(trap internal.Trap, cards []internal.Card) int {
	total := 0
	for _, c := range cards {
		total += CardValue(trap, c)
	}
	return total
}

type TrapOutcome struct {
	Total   int
	Success bool
}

func ResolveTrap(trap internal.Trap, cards []internal.Card) TrapOutcome {
	total := ScoreCards(trap, cards)
	return TrapOutcome{Total: total, Success: total >= trap.Value}
}

// AllDisarmed reports whether no trap remains armed.
func AllDisarmed(traps map[string]*internal.Trap) bool {
	if len(traps) == 0 {
		return false
	}
	for _, t := range traps {
		if !t.Disarmed {
			return false
		}
	}
	return true
}
