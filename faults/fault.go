package faults

import (
	"errors"
	"fmt"
	"strings"
)

type Fault struct {
	Kind      Kind
	Instance  string
	Tick      uint64
	Escalated bool
	Err       error
}

var _ error = new(Fault)

func New(kind Kind, err error) *Fault {
	return &Fault{
		Kind: kind,
		Err:  err,
	}
}

func Newf(kind Kind, format string, args ...any) *Fault {
	return New(kind, fmt.Errorf(format, args...))
}

func (f *Fault) Error() string {
	var b strings.Builder
	b.WriteString(f.Kind.String())
	if f.Instance != "" {
		fmt.Fprintf(&b, " [%s]", f.Instance)
	}
	if f.Tick > 0 {
		fmt.Fprintf(&b, " at tick %d", f.Tick)
	}
	if f.Escalated {
		b.WriteString(" (escalated)")
	}
	if f.Err != nil {
		b.WriteString(": ")
		b.WriteString(f.Err.Error())
	}
	return b.String()
}

func (f *Fault) Unwrap() error {
	return f.Err
}

func (f *Fault) Is(target error) bool {
	if kind, ok := target.(Kind); ok {
		return f.Kind == kind
	}
	return false
}

// Fatal reports whether the fault stops its instance.
func (f *Fault) Fatal() bool {
	switch f.Kind {
	case LoadError, InitializationError:
		return true
	case StepError:
		return f.Escalated
	}
	return false
}

func (f *Fault) WithInstance(id string) *Fault {
	ret := *f
	ret.Instance = id
	return &ret
}

func (f *Fault) WithTick(tick uint64) *Fault {
	ret := *f
	ret.Tick = tick
	return &ret
}

// As extracts the first Fault in err's chain.
func As(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// Classify returns err as a Fault, wrapping it with kind if it is not one already.
func Classify(kind Kind, err error) *Fault {
	if err == nil {
		return nil
	}
	if f, ok := As(err); ok {
		return f
	}
	return New(kind, err)
}
