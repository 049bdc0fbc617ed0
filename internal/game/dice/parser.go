package dice

import (
	"fmt"
	"strconv"
	"strings"
)

// Expression is a parsed "NdS+M" dice expression.
//
// Invariant: Count >= 1 and Sides >= 2 after a successful Parse.
type Expression struct {
	Count    int // number of dice
	Sides    int // faces per die
	Modifier int // flat modifier (may be negative)
}

// String renders the canonical upper-case notation understood by the chat
// tool, e.g. "2D10", "1D6+2", "3D10-1".
func (e Expression) String() string {
	s := fmt.Sprintf("%dD%d", e.Count, e.Sides)
	if e.Modifier != 0 {
		s += fmt.Sprintf("%+d", e.Modifier)
	}
	return s
}

// WithModifier returns a copy of e with delta added to its modifier.
func (e Expression) WithModifier(delta int) Expression {
	e.Modifier += delta
	return e
}

// Parse parses a dice expression. Supported forms: "d10", "2D10", "2d6+3",
// "4D8-2". Surrounding whitespace is ignored and the "d" is case-insensitive.
//
// Postcondition: Returns a valid Expression or a descriptive error.
func Parse(expr string) (Expression, error) {
	raw := expr
	s := strings.ToLower(strings.TrimSpace(expr))
	if s == "" {
		return Expression{}, fmt.Errorf("dice: empty expression")
	}

	dIdx := strings.Index(s, "d")
	if dIdx < 0 {
		return Expression{}, fmt.Errorf("dice: missing 'd' in expression %q", raw)
	}

	count := 1
	if countStr := s[:dIdx]; countStr != "" {
		n, err := strconv.Atoi(countStr)
		if err != nil {
			return Expression{}, fmt.Errorf("dice: invalid die count in %q: %w", raw, err)
		}
		if n <= 0 {
			return Expression{}, fmt.Errorf("dice: invalid die count in %q: must be >= 1", raw)
		}
		count = n
	}

	rest := s[dIdx+1:]
	sidesStr, modStr := rest, ""
	if i := strings.IndexAny(rest, "+-"); i >= 0 {
		sidesStr, modStr = rest[:i], rest[i:]
	}

	sides, err := strconv.Atoi(sidesStr)
	if err != nil {
		return Expression{}, fmt.Errorf("dice: invalid die sides in %q: %w", raw, err)
	}
	if sides < 2 {
		return Expression{}, fmt.Errorf("dice: invalid die sides in %q: must be >= 2", raw)
	}

	modifier := 0
	if modStr != "" {
		modifier, err = strconv.Atoi(modStr)
		if err != nil {
			return Expression{}, fmt.Errorf("dice: invalid modifier in %q: %w", raw, err)
		}
	}

	return Expression{Count: count, Sides: sides, Modifier: modifier}, nil
}
