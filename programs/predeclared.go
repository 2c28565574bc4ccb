package programs

import (
	"fmt"
	"time"

	"github.com/reusee/botrun/states"
	"github.com/reusee/starlarkutil"
	"go.starlark.net/lib/json"
	"go.starlark.net/lib/math"
	starlarktime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

var predeclaredNames = []string{
	"state",
	"set_motor",
	"get_sensor",
	"millis",
	"math",
	"json",
	"time",
}

const originKey = "origin"

func originOf(thread *starlark.Thread) states.Origin {
	if origin, ok := thread.Local(originKey).(states.Origin); ok {
		return origin
	}
	return states.OriginScheduler
}

// predeclared is the whole API a control program can reach.
func predeclared(store *states.Store, start time.Time) starlark.StringDict {

	get := func(read func(string) (any, bool)) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
		return func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var name string
			var def starlark.Value = starlark.None
			if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name", &name, "default?", &def); err != nil {
				return nil, err
			}
			v, ok := read(name)
			if !ok {
				return def, nil
			}
			return toStarlark(v)
		}
	}

	set := func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var name string
		var value starlark.Value
		if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name", &name, "value", &value); err != nil {
			return nil, err
		}
		store.Write(originOf(thread), name, fromStarlark(value))
		return starlark.None, nil
	}

	setMotor := func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var name string
		var speed float64
		if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name", &name, "speed", &speed); err != nil {
			return nil, err
		}
		slot, ok := store.Slot(name)
		if !ok || slot.Kind != states.KindActuator {
			return nil, fmt.Errorf("%s: no actuator named %q", fn.Name(), name)
		}
		store.Write(originOf(thread), name, speed)
		return starlark.None, nil
	}

	getSensor := func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var name string
		if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name", &name); err != nil {
			return nil, err
		}
		slot, ok := store.Slot(name)
		if !ok || slot.Kind != states.KindSensor {
			return nil, fmt.Errorf("%s: no sensor named %q", fn.Name(), name)
		}
		return toStarlark(slot.Value)
	}

	slots := func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackArgs(fn.Name(), args, kwargs); err != nil {
			return nil, err
		}
		var names []starlark.Value
		for _, slot := range store.Slots() {
			names = append(names, starlark.String(slot.Name))
		}
		return starlark.NewList(names), nil
	}

	tick := func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackArgs(fn.Name(), args, kwargs); err != nil {
			return nil, err
		}
		return starlark.MakeUint64(store.Tick()), nil
	}

	return starlark.StringDict{
		"state": &starlarkstruct.Module{
			Name: "state",
			Members: starlark.StringDict{
				"get":    starlark.NewBuiltin("get", get(store.Read)),
				"set":    starlark.NewBuiltin("set", set),
				"remote": starlark.NewBuiltin("remote", get(store.ReadRemote)),
				"slots":  starlark.NewBuiltin("slots", slots),
				"tick":   starlark.NewBuiltin("tick", tick),
			},
		},
		"set_motor":  starlark.NewBuiltin("set_motor", setMotor),
		"get_sensor": starlark.NewBuiltin("get_sensor", getSensor),
		"millis": starlarkutil.MakeFunc("millis", func() int64 {
			return time.Since(start).Milliseconds()
		}),
		"math": math.Module,
		"json": json.Module,
		"time": starlarktime.Module,
	}
}
