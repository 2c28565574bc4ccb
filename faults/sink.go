package faults

import (
	"context"
	"sync"

	"github.com/reusee/botrun/logs"
)

type Sink func(ctx context.Context, fault *Fault)

func Fanout(sinks ...Sink) Sink {
	return func(ctx context.Context, fault *Fault) {
		for _, sink := range sinks {
			if sink != nil {
				sink(ctx, fault)
			}
		}
	}
}

func LogSink(logger logs.Logger) Sink {
	return func(ctx context.Context, fault *Fault) {
		args := []any{
			"kind", fault.Kind.String(),
			"error", fault.Err,
		}
		if fault.Tick > 0 {
			args = append(args, "tick", fault.Tick)
		}
		if fault.Fatal() {
			logger.ErrorContext(ctx, "fatal fault", args...)
		} else {
			logger.WarnContext(ctx, "fault", args...)
		}
	}
}

// Recorder collects faults, for tests and status reporting.
type Recorder struct {
	mu     sync.Mutex
	faults []*Fault
}

func (r *Recorder) Sink() Sink {
	return func(_ context.Context, fault *Fault) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.faults = append(r.faults, fault)
	}
}

func (r *Recorder) Faults() []*Fault {
	r.mu.Lock()
	defer r.mu.Unlock()
	ret := make([]*Fault, len(r.faults))
	copy(ret, r.faults)
	return ret
}

func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, f := range r.faults {
		if f.Kind == kind {
			n++
		}
	}
	return n
}
