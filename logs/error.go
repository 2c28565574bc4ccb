package logs

import (
	"context"
	"errors"
	"fmt"
)

func WrapInstance(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	id := InstanceFrom(ctx)
	if id == "" {
		return err
	}
	return errors.Join(err, fmt.Errorf("instance: %s", id))
}
