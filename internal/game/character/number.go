package character

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

// numLimit bounds coerced integers so that garbage like "1e300" cannot overflow.
const numLimit = 1_000_000_000

// Num is a user-entered numeric field. It keeps the raw text so half-typed or
// non-numeric input survives a save; "" is null. Arithmetic goes through
// Float/Int, which treat anything unparseable as 0.
type Num string

// NumOf returns the Num for an integer.
func NumOf(n int) Num {
	return Num(strconv.Itoa(n))
}

// IsNull reports whether the field is empty.
func (n Num) IsNull() bool {
	return strings.TrimSpace(string(n)) == ""
}

// Float coerces the field to a finite float. Full-width digits are accepted.
//
// Postcondition: Never returns NaN or ±Inf; unparseable input yields 0.
func (n Num) Float() float64 {
	s := strings.TrimSpace(width.Narrow.String(string(n)))
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Int coerces the field to an integer, truncating toward zero.
//
// Postcondition: Result lies within ±1e9; unparseable input yields 0.
func (n Num) Int() int {
	f := math.Trunc(n.Float())
	switch {
	case f > numLimit:
		return numLimit
	case f < -numLimit:
		return -numLimit
	}
	return int(f)
}

// MarshalJSON writes null for an empty field, a bare number when the raw
// text is already a JSON number, and a string otherwise.
func (n Num) MarshalJSON() ([]byte, error) {
	s := string(n)
	if s == "" {
		return []byte("null"), nil
	}
	if isJSONNumber(s) {
		return []byte(s), nil
	}
	return json.Marshal(s)
}

// UnmarshalJSON accepts a number, a string, or null.
func (n *Num) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0:
		return fmt.Errorf("empty numeric field")
	case bytes.Equal(b, []byte("null")):
		*n = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = Num(s)
	case isJSONNumber(string(b)):
		*n = Num(b)
	default:
		return fmt.Errorf("numeric field must be a number, string, or null, got %s", b)
	}
	return nil
}

func isJSONNumber(s string) bool {
	if s == "" || (s[0] != '-' && (s[0] < '0' || s[0] > '9')) {
		return false
	}
	if !json.Valid([]byte(s)) {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
