package cmds

import (
	"fmt"
	"reflect"
	"time"
)

var durationType = reflect.TypeFor[time.Duration]()

func parseDuration(str string) (time.Duration, error) {
	d, err := time.ParseDuration(str)
	if err != nil {
		return 0, fmt.Errorf("convert %s to duration: %w", str, err)
	}
	return d, nil
}
