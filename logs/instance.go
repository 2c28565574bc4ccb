package logs

import "context"

type instanceKey struct{}

// InstanceKey is the attribute name carrying the instance id.
const InstanceKey = "instance"

func WithInstance(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, instanceKey{}, id)
}

func InstanceFrom(ctx context.Context) string {
	if v, ok := ctx.Value(instanceKey{}).(string); ok {
		return v
	}
	return ""
}
