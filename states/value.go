package states

import (
	"math"

	"github.com/reusee/botrun/vars"
)

func toFloat(v any) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case uint64:
		return float64(v), true
	}
	return 0, false
}

// clampActuator limits numeric actuator values to [-1, 1]. Non-numeric values pass through.
func clampActuator(v any) any {
	f, ok := toFloat(v)
	if !ok {
		return v
	}
	if math.IsNaN(f) {
		return f
	}
	return vars.Clamp(f, -1, 1)
}

// clone copies lists and maps so callers never share backing storage with the store.
func clone(v any) any {
	switch v := v.(type) {
	case []any:
		ret := make([]any, len(v))
		for i, e := range v {
			ret[i] = clone(e)
		}
		return ret
	case map[string]any:
		ret := make(map[string]any, len(v))
		for k, e := range v {
			ret[k] = clone(e)
		}
		return ret
	}
	return v
}
