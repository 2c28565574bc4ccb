package configs

import (
	"fmt"
	"iter"
)

// All yields the value at path from every config document that sets it, highest precedence first.
// Callers merge list settings like slots with it; a value that fails to decode panics with the path.
func All[T any](loader Loader, path string) iter.Seq[T] {
	return func(yield func(T) bool) {
		for value, err := range loader.IterCueValues(path) {
			if err != nil {
				panic(err)
			}
			var v T
			if err := value.Decode(&v); err != nil {
				panic(fmt.Errorf("config %s: %w", path, err))
			}
			if !yield(v) {
				return
			}
		}
	}
}
