package programs

import (
	"math"
	"reflect"
	"testing"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

func TestToStarlark(t *testing.T) {
	testCases := []struct {
		name     string
		input    any
		expected starlark.Value
	}{
		{"nil", nil, starlark.None},
		{"bool", true, starlark.True},
		{"string", "hello", starlark.String("hello")},
		{"int64", int64(42), starlark.MakeInt64(42)},
		{"int", 42, starlark.MakeInt(42)},
		{"float64", 0.5, starlark.Float(0.5)},
		{"[]any", []any{int64(1), "a", true}, starlark.NewList([]starlark.Value{starlark.MakeInt(1), starlark.String("a"), starlark.True})},
		{"map[string]any", map[string]any{"a": int64(1)}, func() starlark.Value {
			d := starlark.NewDict(1)
			d.SetKey(starlark.String("a"), starlark.MakeInt(1))
			return d
		}()},
		{"[]float64", []float64{1, 2}, starlark.NewList([]starlark.Value{starlark.Float(1), starlark.Float(2)})},
		{"map[string]int", map[string]int{"x": 1}, func() starlark.Value {
			d := starlark.NewDict(1)
			d.SetKey(starlark.String("x"), starlark.MakeInt(1))
			return d
		}()},
		{"starlark value", starlark.String("raw"), starlark.String("raw")},
		{"nil pointer", (*int)(nil), starlark.None},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			actual, err := toStarlark(tc.input)
			if err != nil {
				t.Fatal(err)
			}
			equal, err := starlark.Equal(actual, tc.expected)
			if err != nil {
				t.Fatalf("comparison failed: %v", err)
			}
			if !equal {
				t.Errorf("toStarlark(%#v) = %v, want %v", tc.input, actual, tc.expected)
			}
		})
	}

	t.Run("unsupported", func(t *testing.T) {
		if _, err := toStarlark(make(chan bool)); err == nil {
			t.Fatal("should fail")
		}
	})
}

func TestFromStarlark(t *testing.T) {
	dict := starlark.NewDict(1)
	dict.SetKey(starlark.String("k"), starlark.NewList([]starlark.Value{starlark.MakeInt(1)}))
	intKeyed := starlark.NewDict(1)
	intKeyed.SetKey(starlark.MakeInt(1), starlark.True)

	testCases := []struct {
		name     string
		input    starlark.Value
		expected any
	}{
		{"none", starlark.None, nil},
		{"bool", starlark.False, false},
		{"int", starlark.MakeInt(7), int64(7)},
		{"float", starlark.Float(1.5), 1.5},
		{"string", starlark.String("s"), "s"},
		{"tuple", starlark.Tuple{starlark.MakeInt(1), starlark.String("a")}, []any{int64(1), "a"}},
		{"dict", dict, map[string]any{"k": []any{int64(1)}}},
		{"int keyed dict", intKeyed, intKeyed},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			actual := fromStarlark(tc.input)
			if !reflect.DeepEqual(actual, tc.expected) {
				t.Errorf("fromStarlark(%v) = %#v, want %#v", tc.input, actual, tc.expected)
			}
		})
	}

	t.Run("big int", func(t *testing.T) {
		big := starlark.MakeInt64(math.MaxInt64)
		big2, _ := starlark.Binary(syntax.PLUS, big, big)
		if f, ok := fromStarlark(big2).(float64); !ok || f < math.MaxInt64 {
			t.Fatalf("got %v", fromStarlark(big2))
		}
	})
}
