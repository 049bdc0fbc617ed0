package character_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/aionia-sheet/internal/game/character"
)

func TestNum_Coercion(t *testing.T) {
	cases := []struct {
		in    character.Num
		float float64
		int   int
	}{
		{"", 0, 0},
		{"  ", 0, 0},
		{"5", 5, 5},
		{"3.7", 3.7, 3},
		{"-2.5", -2.5, -2},
		{"abc", 0, 0},
		{"１２", 12, 12},
		{"NaN", 0, 0},
		{"1e300", 1e300, 1_000_000_000},
		{"-1e300", -1e300, -1_000_000_000},
	}
	for _, c := range cases {
		assert.Equal(t, c.float, c.in.Float(), "Float(%q)", c.in)
		assert.Equal(t, c.int, c.in.Int(), "Int(%q)", c.in)
	}
}

func TestNum_IsNull(t *testing.T) {
	assert.True(t, character.Num("").IsNull())
	assert.True(t, character.Num(" ").IsNull())
	assert.False(t, character.NumOf(0).IsNull())
}

func TestNum_MarshalJSON(t *testing.T) {
	cases := map[character.Num]string{
		"":     `null`,
		"5":    `5`,
		"-1.5": `-1.5`,
		"abc":  `"abc"`,
		"05":   `"05"`,
		"１":    `"１"`,
	}
	for in, want := range cases {
		b, err := json.Marshal(in)
		require.NoError(t, err)
		assert.JSONEq(t, want, string(b), "marshal %q", in)
	}
}

func TestNum_UnmarshalJSON(t *testing.T) {
	var v struct {
		A character.Num `json:"a"`
		B character.Num `json:"b"`
		C character.Num `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 7, "b": "x", "c": null}`), &v))
	assert.Equal(t, character.Num("7"), v.A)
	assert.Equal(t, character.Num("x"), v.B)
	assert.True(t, v.C.IsNull())

	err := json.Unmarshal([]byte(`{"a": true}`), &v)
	assert.Error(t, err)
}

func TestProperty_NumIntIsBoundedAndFinite(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := character.Num(rapid.String().Draw(rt, "raw"))
		i := n.Int()
		if i > 1_000_000_000 || i < -1_000_000_000 {
			rt.Fatalf("Int out of range: %d", i)
		}
		f := n.Float()
		if f != f {
			rt.Fatalf("Float returned NaN for %q", n)
		}
	})
}

func TestProperty_NumJSONRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := character.Num(rapid.String().Draw(rt, "raw"))
		b, err := json.Marshal(n)
		if err != nil {
			rt.Fatalf("marshal: %v", err)
		}
		var got character.Num
		if err := json.Unmarshal(b, &got); err != nil {
			rt.Fatalf("unmarshal %s: %v", b, err)
		}
		if got.Float() != n.Float() {
			rt.Fatalf("value changed: %q -> %q", n, got)
		}
	})
}
