package frames

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Check reports whether v can be carried on the wire.
// Representable values are nil, bool, integers, finite floats, strings, and lists and string-keyed maps of those.
func Check(v any) error {
	switch v := v.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return nil
	case float32:
		return checkFloat(float64(v))
	case float64:
		return checkFloat(v)
	case []any:
		for i, e := range v {
			if err := Check(e); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		return nil
	case map[string]any:
		for k, e := range v {
			if err := Check(e); err != nil {
				return fmt.Errorf("[%q]: %w", k, err)
			}
		}
		return nil
	}
	return fmt.Errorf("%w: %T", ErrUnrepresentable, v)
}

func checkFloat(f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: %v", ErrUnrepresentable, f)
	}
	return nil
}

// Representable returns the subset of state that passes Check.
func Representable(state map[string]any) (ret map[string]any, omitted []string) {
	ret = make(map[string]any, len(state))
	for name, value := range state {
		if Check(value) != nil {
			omitted = append(omitted, name)
			continue
		}
		ret[name] = value
	}
	return
}

func normalizeMap(m map[string]any) (map[string]any, error) {
	if m == nil {
		return nil, nil
	}
	for k, v := range m {
		n, err := normalize(v)
		if err != nil {
			return nil, err
		}
		m[k] = n
	}
	return m, nil
}

// normalize maps decoded json.Number to int64 when integral, float64 otherwise.
func normalize(v any) (any, error) {
	switch v := v.(type) {
	case json.Number:
		s := v.String()
		if !strings.ContainsAny(s, ".eE") {
			if i, err := v.Int64(); err == nil {
				return i, nil
			}
		}
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return f, nil
	case []any:
		for i, e := range v {
			n, err := normalize(e)
			if err != nil {
				return nil, err
			}
			v[i] = n
		}
		return v, nil
	case map[string]any:
		return normalizeMap(v)
	}
	return v, nil
}

// ParseValue reads a JSON literal with the same number handling as Decode.
func ParseValue(s string) (any, error) {
	decoder := json.NewDecoder(strings.NewReader(s))
	decoder.UseNumber()
	var v any
	if err := decoder.Decode(&v); err != nil {
		return nil, err
	}
	if decoder.More() {
		return nil, fmt.Errorf("trailing data after value")
	}
	return normalize(v)
}
