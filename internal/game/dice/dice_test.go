package dice_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/aionia-sheet/internal/game/dice"
)

// fixedSource returns values from a fixed cycle.
type fixedSource struct {
	vals []int
	i    int
}

func (f *fixedSource) Intn(n int) int {
	v := f.vals[f.i%len(f.vals)] % n
	f.i++
	return v
}

func TestParse_Forms(t *testing.T) {
	cases := map[string]dice.Expression{
		"2D10":    {Count: 2, Sides: 10},
		"1d10":    {Count: 1, Sides: 10},
		"d6":      {Count: 1, Sides: 6},
		"2d6+3":   {Count: 2, Sides: 6, Modifier: 3},
		" 4D8-2 ": {Count: 4, Sides: 8, Modifier: -2},
	}
	for in, want := range cases {
		got, err := dice.Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParse_Rejects(t *testing.T) {
	for _, in := range []string{"", "10", "0d6", "2d1", "2dx", "2d6+x", "-1d6"} {
		_, err := dice.Parse(in)
		assert.Error(t, err, in)
	}
}

func parse(t *testing.T, expr string) dice.Expression {
	t.Helper()
	e, err := dice.Parse(expr)
	require.NoError(t, err)
	return e
}

func TestExpression_String(t *testing.T) {
	assert.Equal(t, "2D10", parse(t, "2d10").String())
	assert.Equal(t, "1D6+2", parse(t, "d6+2").String())
	assert.Equal(t, "3D10-1", parse(t, "3d10-1").String())
	assert.Equal(t, "2D10+2", parse(t, "2D10").WithModifier(2).String())
}

func TestRollExpr(t *testing.T) {
	r, err := dice.RollExpr("2d6-1", &fixedSource{vals: []int{5, 0}})
	require.NoError(t, err)
	assert.Equal(t, []int{6, 1}, r.Dice)
	assert.Equal(t, 6, r.Total())

	_, err = dice.RollExpr("nope", &fixedSource{vals: []int{0}})
	assert.Error(t, err)
}

func TestRoll_UsesSource(t *testing.T) {
	r := dice.Roll(parse(t, "2D10+1"), &fixedSource{vals: []int{3, 8}})
	assert.Equal(t, []int{4, 9}, r.Dice)
	assert.Equal(t, 14, r.Total())
	assert.Equal(t, "2D10+1 → [4 9] = 14", r.String())
}

func TestRollResult_String_PanicsOnEmptyExpression(t *testing.T) {
	r := dice.RollResult{Dice: []int{4}}
	assert.Panics(t, func() { _ = r.String() })
}

func TestLoggedRoller_Roll(t *testing.T) {
	roller := dice.NewLoggedRoller(&fixedSource{vals: []int{0}}, zaptest.NewLogger(t))
	r := roller.Roll(parse(t, "1D10"), "運動")
	assert.Equal(t, 1, r.Total())
}

func TestCryptoSource_Intn_InRange(t *testing.T) {
	src := dice.NewCryptoSource()
	for i := 0; i < 1000; i++ {
		v := src.Intn(10)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 10)
	}
}

func TestCryptoSource_Intn_PanicsOnZero(t *testing.T) {
	assert.Panics(t, func() { dice.NewCryptoSource().Intn(0) })
}

// Property: String and Parse are inverse for canonical expressions.
func TestExpression_StringParse_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		e := dice.Expression{
			Count:    rapid.IntRange(1, 20).Draw(rt, "count"),
			Sides:    rapid.IntRange(2, 100).Draw(rt, "sides"),
			Modifier: rapid.IntRange(-50, 50).Draw(rt, "modifier"),
		}
		got, err := dice.Parse(e.String())
		if err != nil {
			rt.Fatalf("parse %q: %v", e.String(), err)
		}
		if got != e {
			rt.Fatalf("round trip %v -> %q -> %v", e, e.String(), got)
		}
	})
}

// Property: every rolled die lies in [1, Sides] and Total includes the modifier.
func TestRoll_Bounds_Property(t *testing.T) {
	src := dice.NewCryptoSource()
	rapid.Check(t, func(rt *rapid.T) {
		e := dice.Expression{
			Count:    rapid.IntRange(1, 10).Draw(rt, "count"),
			Sides:    rapid.IntRange(2, 20).Draw(rt, "sides"),
			Modifier: rapid.IntRange(-5, 5).Draw(rt, "modifier"),
		}
		r := dice.Roll(e, src)
		sum := 0
		for _, d := range r.Dice {
			if d < 1 || d > e.Sides {
				rt.Fatalf("die %d out of range for %s", d, e)
			}
			sum += d
		}
		assert.Equal(rt, sum+e.Modifier, r.Total())
		assert.True(rt, strings.HasPrefix(r.String(), fmt.Sprintf("%dD%d", e.Count, e.Sides)))
	})
}
