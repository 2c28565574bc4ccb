package schedulers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/reusee/dscope"
	"github.com/reusee/botrun/configs"
	"github.com/reusee/botrun/faults"
	"github.com/reusee/botrun/programs"
	"github.com/reusee/botrun/states"
)

type fixture struct {
	scheduler *Scheduler
	store     *states.Store
	recorder  *faults.Recorder
}

func setup(t *testing.T, src string, config Config) fixture {
	t.Helper()
	prog, err := programs.Load(programs.Source{
		Name:    "test.star",
		Content: []byte(src),
	})
	if err != nil {
		t.Fatal(err)
	}
	store, err := states.NewStore(states.RobotSlots()...)
	if err != nil {
		t.Fatal(err)
	}
	recorder := new(faults.Recorder)
	scheduler := New(
		prog,
		programs.Env{Store: store},
		config,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		recorder.Sink(),
	)
	return fixture{
		scheduler: scheduler,
		store:     store,
		recorder:  recorder,
	}
}

func fastConfig() Config {
	return Config{
		TickHz:          200,
		StepTimeout:     time.Millisecond * 200,
		MaxStepFailures: 10,
	}
}

func TestSetupBeforeLoop(t *testing.T) {
	f := setup(t, `
def setup():
    state.set("trace", ["setup"])

def main():
    state.set("trace", state.get("trace") + ["main"])

def loop():
    state.set("trace", state.get("trace") + ["loop"])
`, fastConfig())

	ctx, cancel := context.WithCancel(t.Context())
	f.scheduler.OnState(func(state State) {
		if state == Running {
			go func() {
				time.Sleep(time.Millisecond * 50)
				cancel()
			}()
		}
	})
	if err := f.scheduler.Run(ctx); err != nil {
		t.Fatal(err)
	}

	v, _ := f.store.Read("trace")
	trace := v.([]any)
	if len(trace) < 3 {
		t.Fatalf("got %v", trace)
	}
	if trace[0] != "setup" || trace[1] != "main" {
		t.Fatalf("got %v", trace)
	}
	for _, e := range trace[2:] {
		if e != "loop" {
			t.Fatalf("got %v", trace)
		}
	}
	if uint64(len(trace)-2) != f.scheduler.Ticks() {
		t.Fatalf("got %v loops, %v ticks", len(trace)-2, f.scheduler.Ticks())
	}
	if f.scheduler.State() != Stopped {
		t.Fatalf("got %v", f.scheduler.State())
	}
}

func TestTickRate(t *testing.T) {
	if testing.Short() {
		t.Skip()
	}
	f := setup(t, `
def loop():
    pass
`, DefaultConfig())
	ctx, cancel := context.WithCancel(t.Context())
	f.scheduler.OnState(func(state State) {
		if state == Running {
			go func() {
				time.Sleep(time.Second)
				cancel()
			}()
		}
	})
	if err := f.scheduler.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if n := f.scheduler.Ticks(); n < 9 || n > 11 {
		t.Fatalf("got %v", n)
	}
}

func TestSetupFault(t *testing.T) {
	f := setup(t, `
def setup():
    fail("no hardware")

def loop():
    state.set("looped", True)
`, fastConfig())

	var states []State
	f.scheduler.OnState(func(state State) {
		states = append(states, state)
	})
	err := f.scheduler.Run(t.Context())
	if !errors.Is(err, faults.InitializationError) {
		t.Fatalf("got %v", err)
	}
	if f.scheduler.State() != Faulted {
		t.Fatalf("got %v", f.scheduler.State())
	}
	if f.scheduler.Ticks() != 0 {
		t.Fatalf("got %v", f.scheduler.Ticks())
	}
	if _, ok := f.store.Read("looped"); ok {
		t.Fatal("loop should never run")
	}
	if len(states) != 2 || states[0] != Initializing || states[1] != Faulted {
		t.Fatalf("got %v", states)
	}
	if !f.scheduler.Fault().Fatal() {
		t.Fatal("should be fatal")
	}
	if f.recorder.Count(faults.InitializationError) != 1 {
		t.Fatalf("got %v", f.recorder.Faults())
	}
}

func TestStepFaultReportAndContinue(t *testing.T) {
	f := setup(t, `
def loop():
    if state.tick() == 5:
        fail("tick five")
    state.set("last", state.tick())
`, fastConfig())

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	go func() {
		for f.scheduler.Ticks() < 8 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()
	if err := f.scheduler.Run(ctx); err != nil {
		t.Fatal(err)
	}

	stepFaults := f.recorder.Faults()
	if len(stepFaults) != 1 {
		t.Fatalf("got %v", stepFaults)
	}
	if stepFaults[0].Kind != faults.StepError || stepFaults[0].Tick != 5 || stepFaults[0].Fatal() {
		t.Fatalf("got %v", stepFaults[0])
	}
	if v, _ := f.store.Read("last"); v.(int64) < 6 {
		t.Fatalf("got %v", v)
	}
}

func TestEscalation(t *testing.T) {
	config := fastConfig()
	config.MaxStepFailures = 3
	f := setup(t, `
def loop():
    fail("always")
`, config)

	err := f.scheduler.Run(t.Context())
	fault, ok := faults.As(err)
	if !ok {
		t.Fatalf("got %v", err)
	}
	if fault.Kind != faults.StepError || !fault.Escalated || !fault.Fatal() {
		t.Fatalf("got %v", fault)
	}
	if f.scheduler.Ticks() != 4 {
		t.Fatalf("got %v", f.scheduler.Ticks())
	}
	if f.scheduler.State() != Faulted {
		t.Fatalf("got %v", f.scheduler.State())
	}
	// 3 reported, then the escalated one
	if f.recorder.Count(faults.StepError) != 4 {
		t.Fatalf("got %v", f.recorder.Faults())
	}
}

func TestSuccessResetsFailures(t *testing.T) {
	config := fastConfig()
	config.MaxStepFailures = 1
	f := setup(t, `
def loop():
    if state.tick() % 2 == 0:
        fail("even")
`, config)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	go func() {
		for f.scheduler.Ticks() < 10 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()
	if err := f.scheduler.Run(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestStepTimeout(t *testing.T) {
	config := fastConfig()
	config.StepTimeout = time.Millisecond * 20
	config.MaxStepFailures = 2
	f := setup(t, `
def loop():
    while True:
        pass
`, config)

	err := f.scheduler.Run(t.Context())
	if !errors.Is(err, ErrStepTimeout) {
		t.Fatalf("got %v", err)
	}
	if !errors.Is(err, faults.StepError) {
		t.Fatalf("got %v", err)
	}
}

func TestShutdownFinishesInflightTick(t *testing.T) {
	f := setup(t, `
def loop():
    n = 0
    for i in range(20000):
        n += 1
    state.set("done", state.tick())
`, Config{
		TickHz:      200,
		StepTimeout: time.Second * 5,
	})

	ctx, cancel := context.WithCancel(t.Context())
	go func() {
		for f.scheduler.Ticks() < 1 {
			time.Sleep(time.Microsecond * 100)
		}
		cancel()
	}()
	if err := f.scheduler.Run(ctx); err != nil {
		t.Fatal(err)
	}
	v, ok := f.store.Read("done")
	if !ok || v != int64(f.scheduler.Ticks()) {
		t.Fatalf("got %v, ticks %v", v, f.scheduler.Ticks())
	}
}

func TestConcurrentConsoleWrites(t *testing.T) {
	f := setup(t, `
def loop():
    state.set("motor1", 0.25)
`, fastConfig())

	ctx, cancel := context.WithCancel(t.Context())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ctx.Err() == nil {
			f.store.Write(states.OriginConsole, "motor1", -0.75)
			v, _ := f.store.Read("motor1")
			if v != 0.25 && v != -0.75 {
				t.Errorf("got %v", v)
				return
			}
		}
	}()
	go func() {
		for f.scheduler.Ticks() < 20 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()
	if err := f.scheduler.Run(ctx); err != nil {
		t.Fatal(err)
	}
	wg.Wait()
}

func TestNoLoop(t *testing.T) {
	f := setup(t, `
def setup():
    state.set("ready", True)
`, fastConfig())
	ctx, cancel := context.WithTimeout(t.Context(), time.Millisecond*30)
	defer cancel()
	if err := f.scheduler.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if f.scheduler.Ticks() != 0 {
		t.Fatalf("got %v", f.scheduler.Ticks())
	}
	if v, _ := f.store.Read("ready"); v != true {
		t.Fatalf("got %v", v)
	}
}

func TestRunTwice(t *testing.T) {
	f := setup(t, "", fastConfig())
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if err := f.scheduler.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if err := f.scheduler.Run(t.Context()); err == nil {
		t.Fatal("should fail")
	}
}

func TestConfigFromLoader(t *testing.T) {
	dscope.New(
		new(Module),
		dscope.Provide(configs.NewLoaderFromSources([]configs.Source{
			{Name: "test.cue", Content: []byte(`
tick_hz: 20
step_timeout: "50ms"
max_step_failures: 0
`)},
		}, configs.Schema)),
	).Call(func(
		config Config,
	) {
		if config.TickHz != 20 || config.StepTimeout != time.Millisecond*50 || config.MaxStepFailures != 0 {
			t.Fatalf("got %+v", config)
		}
		if config.Period() != time.Millisecond*50 {
			t.Fatalf("got %v", config.Period())
		}
	})

	dscope.New(
		new(Module),
		dscope.Provide(configs.NewLoader(nil, "")),
	).Call(func(
		config Config,
	) {
		if config != DefaultConfig() {
			t.Fatalf("got %+v", config)
		}
	})
}

func TestConsoleCallDoesNotFaultScheduler(t *testing.T) {
	config := fastConfig()
	config.StepTimeout = time.Millisecond * 50
	config.MaxStepFailures = 3
	f := setup(t, `
def loop():
    state.set("motor1", 0.5)

def spin():
    while True:
        pass
`, config)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	errCh := make(chan error, 1)
	go func() {
		errCh <- f.scheduler.Run(ctx)
	}()
	for f.scheduler.Ticks() < 2 {
		time.Sleep(time.Millisecond)
	}

	callCtx, callCancel := context.WithTimeout(ctx, time.Millisecond*400)
	defer callCancel()
	if _, err := f.scheduler.program.Invoke(callCtx, "spin"); !errors.Is(err, faults.InvocationError) {
		t.Fatalf("got %v", err)
	}
	if state := f.scheduler.State(); state != Running {
		t.Fatalf("got %v", state)
	}
	if f.scheduler.Skipped() == 0 {
		t.Fatal("expected skipped ticks")
	}
	if n := f.recorder.Count(faults.StepError); n != 0 {
		t.Fatalf("got %v step errors", n)
	}

	// ticks resume after the call returns
	ticks := f.scheduler.Ticks()
	for f.scheduler.Ticks() < ticks+2 {
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-errCh; err != nil {
		t.Fatal(err)
	}
}
