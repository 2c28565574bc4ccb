package programs

import (
	"fmt"
	"math/big"
	"reflect"

	"github.com/reusee/starlarkutil"
	"go.starlark.net/starlark"
)

// toStarlark converts a store value into a starlark value.
// Opaque starlark values kept in the store are returned as is.
func toStarlark(v any) (starlark.Value, error) {
	switch v := v.(type) {

	case starlark.Value:
		return v, nil

	case nil:
		return starlark.None, nil

	case bool:
		return starlark.Bool(v), nil

	case string:
		return starlark.String(v), nil
	case []byte:
		return starlark.Bytes(v), nil

	case int:
		return starlark.MakeInt(v), nil
	case int64:
		return starlark.MakeInt64(v), nil
	case int32:
		return starlark.MakeInt(int(v)), nil
	case uint64:
		return starlark.MakeUint64(v), nil
	case uint:
		return starlark.MakeUint(v), nil

	case float64:
		return starlark.Float(v), nil
	case float32:
		return starlark.Float(v), nil

	case []any:
		elems := make([]starlark.Value, len(v))
		for i, e := range v {
			elem, err := toStarlark(e)
			if err != nil {
				return nil, err
			}
			elems[i] = elem
		}
		return starlark.NewList(elems), nil

	case map[string]any:
		d := starlark.NewDict(len(v))
		for k, e := range v {
			elem, err := toStarlark(e)
			if err != nil {
				return nil, err
			}
			if err := d.SetKey(starlark.String(k), elem); err != nil {
				return nil, err
			}
		}
		return d, nil

	}

	value := reflect.ValueOf(v)
	switch value.Kind() {

	case reflect.Slice, reflect.Array:
		elems := make([]any, value.Len())
		for i := range elems {
			elems[i] = value.Index(i).Interface()
		}
		return toStarlark(elems)

	case reflect.Map:
		if value.Type().Key().Kind() != reflect.String {
			break
		}
		m := make(map[string]any, value.Len())
		iter := value.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return toStarlark(m)

	case reflect.Pointer, reflect.Interface:
		elem := value.Elem()
		if !elem.IsValid() {
			return starlark.None, nil
		}
		return toStarlark(elem.Interface())

	case reflect.Func:
		return starlarkutil.MakeFunc("", value.Interface()), nil

	}

	return nil, fmt.Errorf("unsupported type for starlark: %T", v)
}

// fromStarlark converts a starlark value into a store value.
// Values without a plain Go counterpart, like functions or dicts with non-string keys, are kept as opaque starlark values.
func fromStarlark(v starlark.Value) any {
	switch v := v.(type) {

	case starlark.NoneType:
		return nil

	case starlark.Bool:
		return bool(v)

	case starlark.String:
		return string(v)

	case starlark.Bytes:
		return string(v)

	case starlark.Int:
		if i, ok := v.Int64(); ok {
			return i
		}
		f, _ := new(big.Float).SetInt(v.BigInt()).Float64()
		return f

	case starlark.Float:
		return float64(v)

	case *starlark.List:
		ret := make([]any, v.Len())
		for i := range ret {
			ret[i] = fromStarlark(v.Index(i))
		}
		return ret

	case starlark.Tuple:
		ret := make([]any, len(v))
		for i, e := range v {
			ret[i] = fromStarlark(e)
		}
		return ret

	case *starlark.Dict:
		ret := make(map[string]any, v.Len())
		for _, item := range v.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return v
			}
			ret[string(key)] = fromStarlark(item[1])
		}
		return ret

	}

	return v
}
