package consoles

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/reusee/dscope"
	"github.com/reusee/botrun/cmds"
	"github.com/reusee/botrun/configs"
	"github.com/reusee/botrun/faults"
	"github.com/reusee/botrun/modes"
	"github.com/reusee/botrun/programs"
	"github.com/reusee/botrun/states"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func newConsole(t *testing.T) (*Console, *states.Store, *syncBuffer) {
	t.Helper()
	prog, err := programs.Load(programs.Source{
		Name:    "test.star",
		Content: []byte(`
def setup():
    pass

def loop():
    pass

def boost(name, amount):
    state.set(name, state.get(name) + amount)
    return state.get(name)

def explode():
    fail("kaboom")

def spin():
    while True:
        pass
`),
	})
	if err != nil {
		t.Fatal(err)
	}
	store, err := states.NewStore(states.RobotSlots()...)
	if err != nil {
		t.Fatal(err)
	}
	if err := prog.Init(t.Context(), programs.Env{Store: store}); err != nil {
		t.Fatal(err)
	}
	out := new(syncBuffer)
	console := New(store, prog, out, Options{})
	t.Cleanup(console.Close)
	return console, store, out
}

func TestSetProducesConsoleEvent(t *testing.T) {
	console, store, out := newConsole(t)
	var events []states.ChangeEvent
	store.Subscribe(func(ev states.ChangeEvent) {
		events = append(events, ev)
	})

	if err := console.Execute(t.Context(), "set motor1 0.5"); err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("got %v", events)
	}
	if events[0].Origin != states.OriginConsole || events[0].New != 0.5 || events[0].Slot != "motor1" {
		t.Fatalf("got %+v", events[0])
	}
	if !strings.Contains(out.String(), "motor1: 0 -> 0.5") {
		t.Fatalf("got %q", out.String())
	}

	// clamp applies to console writes too
	if err := console.Execute(t.Context(), "set motor2 7"); err != nil {
		t.Fatal(err)
	}
	if v, _ := store.Read("motor2"); v != 1.0 {
		t.Fatalf("got %v", v)
	}
}

func TestSetValues(t *testing.T) {
	console, store, _ := newConsole(t)
	for line, want := range map[string]any{
		`set name "robo one"`:   "robo one",
		`set word hello`:        "hello",
		`set words hello world`: "hello world",
		`set flag true`:         true,
		`set count 3`:           int64(3),
	} {
		if err := console.Execute(t.Context(), line); err != nil {
			t.Fatal(err)
		}
		name := strings.Fields(line)[1]
		if v, _ := store.Read(name); v != want {
			t.Fatalf("%s: got %#v", line, v)
		}
	}

	if err := console.Execute(t.Context(), `set pos [1, 2, {"z": 3}]`); err != nil {
		t.Fatal(err)
	}
	v, _ := store.Read("pos")
	if l := v.([]any); len(l) != 3 || l[2].(map[string]any)["z"] != int64(3) {
		t.Fatalf("got %#v", v)
	}
}

func TestGetAndRemote(t *testing.T) {
	console, store, out := newConsole(t)
	if err := console.Execute(t.Context(), "get battery"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "battery = 100 (sensor") {
		t.Fatalf("got %q", out.String())
	}

	err := console.Execute(t.Context(), "get nope")
	if !errors.Is(err, ErrNoSlot) {
		t.Fatalf("got %v", err)
	}

	if err := console.Execute(t.Context(), "remote motor1"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "motor1: (absent)") {
		t.Fatalf("got %q", out.String())
	}
	store.Merge(map[string]any{"motor1": 0.2})
	if err := console.Execute(t.Context(), "remote motor1"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "motor1 = 0.2") {
		t.Fatalf("got %q", out.String())
	}
}

func TestCall(t *testing.T) {
	console, store, out := newConsole(t)
	var origins []states.Origin
	store.Subscribe(func(ev states.ChangeEvent) {
		origins = append(origins, ev.Origin)
	})

	if err := console.Execute(t.Context(), `call boost "battery" -10`); err != nil {
		t.Fatal(err)
	}
	if v, _ := store.Read("battery"); v != 90.0 {
		t.Fatalf("got %v", v)
	}
	if len(origins) != 1 || origins[0] != states.OriginConsole {
		t.Fatalf("got %v", origins)
	}
	if !strings.Contains(out.String(), "90") {
		t.Fatalf("got %q", out.String())
	}

	err := console.Execute(t.Context(), "call explode")
	if !errors.Is(err, faults.InvocationError) {
		t.Fatalf("got %v", err)
	}
	err = console.Execute(t.Context(), "call missing")
	if !errors.Is(err, faults.InvocationError) {
		t.Fatalf("got %v", err)
	}
}

func TestCallTimeout(t *testing.T) {
	console, store, _ := newConsole(t)
	console.Close()
	console = New(store, console.program, io.Discard, Options{
		CallTimeout: time.Millisecond * 30,
	})
	defer console.Close()

	err := console.Execute(t.Context(), "call spin")
	if !errors.Is(err, ErrCallTimeout) {
		t.Fatalf("got %v", err)
	}
	if !errors.Is(err, faults.InvocationError) {
		t.Fatalf("got %v", err)
	}

	// the program is free again
	if err := console.Execute(t.Context(), `call boost "battery" 1`); err != nil {
		t.Fatal(err)
	}
}

func TestUnknownAndMalformed(t *testing.T) {
	console, _, _ := newConsole(t)
	err := console.Execute(t.Context(), "launch rockets")
	if !errors.Is(err, cmds.ErrUnknownCommand) {
		t.Fatalf("got %v", err)
	}
	if err := console.Execute(t.Context(), `set x "unterminated`); err == nil {
		t.Fatal("should fail")
	}
	if err := console.Execute(t.Context(), "set x"); err == nil {
		t.Fatal("should fail")
	}
	for _, line := range []string{"", "   ", "# comment"} {
		if err := console.Execute(t.Context(), line); err != nil {
			t.Fatal(err)
		}
	}
}

func TestInfoCommands(t *testing.T) {
	console, _, out := newConsole(t)
	for _, line := range []string{"slots", "status", "caps", "help"} {
		if err := console.Execute(t.Context(), line); err != nil {
			t.Fatal(err)
		}
	}
	s := out.String()
	for _, want := range []string{
		"motor1", "actuator",
		"tick 0",
		"entry points: setup,loop",
		"boost, explode",
		"remote",
	} {
		if !strings.Contains(s, want) {
			t.Fatalf("missing %q in %q", want, s)
		}
	}
}

func TestRun(t *testing.T) {
	console, store, out := newConsole(t)
	input := strings.NewReader("set motor3 -0.5\nbogus\nget motor3\n")
	err := console.Run(t.Context(), NewBufferedReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := store.Read("motor3"); v != -0.5 {
		t.Fatalf("got %v", v)
	}
	s := out.String()
	if !strings.Contains(s, "unknown command") || !strings.Contains(s, "motor3 = -0.5") {
		t.Fatalf("got %q", s)
	}
}

func TestRunCancel(t *testing.T) {
	console, _, _ := newConsole(t)
	reader, writer := io.Pipe()
	defer writer.Close()
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error)
	go func() {
		done <- console.Run(ctx, NewBufferedReader(reader))
	}()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second * 5):
		t.Fatal("console did not exit")
	}
}

func TestFaultSink(t *testing.T) {
	console, _, out := newConsole(t)
	console.FaultSink()(t.Context(), faults.New(faults.StepError, errors.New("oops")).WithTick(5))
	console.Output("printed")
	s := out.String()
	if !strings.Contains(s, "step_error at tick 5: oops") || !strings.Contains(s, "printed") {
		t.Fatalf("got %q", s)
	}
}

func TestSplitLine(t *testing.T) {
	for line, want := range map[string][]string{
		`set a 1`:               {"set", "a", "1"},
		`set a "x y"`:           {"set", "a", `"x y"`},
		`set a [1, 2]`:          {"set", "a", "[1, 2]"},
		`set a {"k": "v w"}`:    {"set", "a", `{"k": "v w"}`},
		`  call   f  "a\" b"  `: {"call", "f", `"a\" b"`},
	} {
		got, err := splitLine(line)
		if err != nil {
			t.Fatal(err)
		}
		if strings.Join(got, "|") != strings.Join(want, "|") {
			t.Fatalf("%s: got %q", line, got)
		}
	}
	if _, err := splitLine(`set a [1`); err == nil {
		t.Fatal("should fail")
	}
}

func TestConfigCallTimeout(t *testing.T) {
	dscope.New(
		modes.ForTest(t),
		new(Module),
		dscope.Provide(configs.NewLoaderFromSources([]configs.Source{
			{Name: "test.cue", Content: []byte(`
console: false
call_timeout: "2s"
`)},
		}, configs.Schema)),
	).Call(func(
		config Config,
	) {
		if config.Enabled {
			t.Fatal("expected disabled")
		}
		if config.CallTimeout != time.Second*2 {
			t.Fatalf("got %v", config.CallTimeout)
		}
	})

	if DefaultConfig().CallTimeout != DefaultCallTimeout {
		t.Fatalf("got %v", DefaultConfig().CallTimeout)
	}
}
