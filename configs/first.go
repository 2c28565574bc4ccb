package configs

import (
	"errors"
	"fmt"
	"time"
)

func First[T any](loader Loader, path string) T {
	var value T
	if err := loader.AssignFirst(path, &value); err != nil {
		if errors.Is(err, ErrValueNotFound) {
			return value
		}
		panic(err)
	}
	return value
}

// Duration reads a duration string like "1s" or "250ms". Absent values are zero.
func Duration(loader Loader, path string) time.Duration {
	str := First[string](loader, path)
	if str == "" {
		return 0
	}
	d, err := time.ParseDuration(str)
	if err != nil {
		panic(fmt.Errorf("config %s: %w", path, err))
	}
	return d
}

// Lookup is First with presence reported, for settings whose zero value is meaningful.
func Lookup[T any](loader Loader, path string) (T, bool) {
	var value T
	if err := loader.AssignFirst(path, &value); err != nil {
		if errors.Is(err, ErrValueNotFound) {
			return value, false
		}
		panic(err)
	}
	return value, true
}
