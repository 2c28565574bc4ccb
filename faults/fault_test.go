package faults

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func TestFaultIs(t *testing.T) {
	cause := errors.New("boom")
	var err error = New(StepError, cause).WithTick(5)
	err = fmt.Errorf("tick: %w", err)

	if !errors.Is(err, StepError) {
		t.Fatal("should be step error")
	}
	if errors.Is(err, LoadError) {
		t.Fatal("should not be load error")
	}
	if !errors.Is(err, cause) {
		t.Fatal("should unwrap to cause")
	}
	f, ok := As(err)
	if !ok {
		t.Fatal("should be fault")
	}
	if f.Tick != 5 {
		t.Fatalf("got %v", f.Tick)
	}
	if !strings.Contains(f.Error(), "at tick 5") {
		t.Fatalf("got %v", f.Error())
	}
}

func TestFatal(t *testing.T) {
	for _, c := range []struct {
		fault *Fault
		fatal bool
	}{
		{New(LoadError, nil), true},
		{New(InitializationError, nil), true},
		{New(StepError, nil), false},
		{&Fault{Kind: StepError, Escalated: true}, true},
		{New(ConnectionError, nil), false},
		{New(SerializationError, nil), false},
		{New(InvocationError, nil), false},
	} {
		if c.fault.Fatal() != c.fatal {
			t.Fatalf("%v: got %v", c.fault, c.fault.Fatal())
		}
	}
}

func TestClassify(t *testing.T) {
	if Classify(StepError, nil) != nil {
		t.Fatal("nil error")
	}
	f := New(InvocationError, errors.New("foo"))
	if Classify(StepError, f) != f {
		t.Fatal("should keep existing fault")
	}
	if Classify(StepError, errors.New("bar")).Kind != StepError {
		t.Fatal("should wrap")
	}
}

func TestSinks(t *testing.T) {
	buf := new(bytes.Buffer)
	logger := slog.New(slog.NewTextHandler(buf, nil))
	recorder := new(Recorder)
	sink := Fanout(LogSink(logger), nil, recorder.Sink())

	sink(context.Background(), New(StepError, errors.New("foo")))
	sink(context.Background(), New(LoadError, errors.New("bar")))

	if recorder.Count(StepError) != 1 {
		t.Fatalf("got %v", recorder.Faults())
	}
	if len(recorder.Faults()) != 2 {
		t.Fatalf("got %v", recorder.Faults())
	}
	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "level=ERROR") {
		t.Fatalf("got %s", out)
	}
}
