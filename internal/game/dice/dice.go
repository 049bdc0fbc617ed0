// Package dice parses and rolls the dice notation used by exported chat-tool
// commands and rule-table damage formulas (e.g. "2D10", "1D10+2").
package dice

import (
	"fmt"
	"strings"
)

// RollResult holds the full audit trail for a single roll.
//
// Postcondition: Total() == sum(Dice) + Modifier.
type RollResult struct {
	Expression string // canonical expression, e.g. "2D10+3"
	Dice       []int  // individual die results before modifier
	Modifier   int    // flat modifier (may be negative)
}

// Total returns the sum of all die results plus the modifier.
func (r RollResult) Total() int {
	total := r.Modifier
	for _, d := range r.Dice {
		total += d
	}
	return total
}

// String returns a human-readable audit string:
//
//	"2D10+3 → [4 5] = 12"
//
// Precondition: r.Expression is non-empty.
func (r RollResult) String() string {
	if r.Expression == "" {
		panic("dice: RollResult.String() precondition violated: Expression must be non-empty")
	}
	parts := make([]string, len(r.Dice))
	for i, d := range r.Dice {
		parts[i] = fmt.Sprint(d)
	}
	return fmt.Sprintf("%s → [%s] = %d", r.Expression, strings.Join(parts, " "), r.Total())
}

// Source is the randomness provider for dice rolls.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}
