package consoles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/reusee/botrun/cmds"
	"github.com/reusee/botrun/faults"
	"github.com/reusee/botrun/frames"
	"github.com/reusee/botrun/programs"
	"github.com/reusee/botrun/states"
)

// Console is an operator command surface over a running instance's store and program.
type Console struct {
	store   *states.Store
	program *programs.Program
	status  func() string
	timeout time.Duration

	mu     sync.Mutex
	out    io.Writer
	colors bool

	unsubscribe func()
}

type Options struct {
	// Status renders the status command output.
	Status func() string
	Colors bool
	// CallTimeout bounds each call command. Zero means DefaultCallTimeout.
	CallTimeout time.Duration
}

// DefaultCallTimeout matches the default scheduler step timeout.
const DefaultCallTimeout = time.Millisecond * 500

var ErrCallTimeout = errors.New("call timeout")

func New(
	store *states.Store,
	program *programs.Program,
	out io.Writer,
	options Options,
) *Console {
	c := &Console{
		store:   store,
		program: program,
		status:  options.Status,
		timeout: options.CallTimeout,
		out:     out,
		colors:  options.Colors,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultCallTimeout
	}
	c.unsubscribe = store.Subscribe(c.echo)
	return c
}

func (c *Console) Close() {
	c.unsubscribe()
}

func (c *Console) paint(attrs ...color.Attribute) func(a ...any) string {
	col := color.New(attrs...)
	if c.colors {
		col.EnableColor()
	} else {
		col.DisableColor()
	}
	return col.SprintFunc()
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

// echo prints changes made from the console. It runs under the store lock.
func (c *Console) echo(ev states.ChangeEvent) {
	if ev.Origin != states.OriginConsole {
		return
	}
	c.printf("%s %s: %s -> %s\n",
		c.paint(color.FgGreen)("#"+fmt.Sprint(ev.Seq)),
		ev.Slot,
		formatValue(ev.Old),
		formatValue(ev.New),
	)
}

// FaultSink prints faults.
func (c *Console) FaultSink() faults.Sink {
	return func(_ context.Context, fault *faults.Fault) {
		paint := c.paint(color.FgYellow)
		if fault.Fatal() {
			paint = c.paint(color.FgRed, color.Bold)
		}
		c.printf("%s\n", paint(fault.Error()))
	}
}

// Output prints program print() output.
func (c *Console) Output(msg string) {
	c.printf("%s\n", msg)
}

var ErrNoSlot = errors.New("no such slot")

func (c *Console) executor(ctx context.Context) *cmds.Executor {
	executor := cmds.NewExecutor()

	executor.Define("get", cmds.Func(func(name string) error {
		slot, ok := c.store.Slot(name)
		if !ok {
			return fmt.Errorf("%w: %s", ErrNoSlot, name)
		}
		c.printf("%s = %s (%s, tick %d)\n", slot.Name, formatValue(slot.Value), slot.Kind, slot.LastWriteTick)
		return nil
	}).Desc("print a local slot").Args("slot"))

	executor.Define("set", cmds.Func(func(name string, rest []string) error {
		if len(rest) == 0 {
			return fmt.Errorf("set: expecting value")
		}
		c.store.Write(states.OriginConsole, name, parseValue(strings.Join(rest, " ")))
		return nil
	}).Desc("write a local slot").Args("slot", "value"))

	executor.Define("remote", cmds.Func(func(name string) error {
		v, ok := c.store.ReadRemote(name)
		if !ok {
			c.printf("%s: (absent)\n", name)
			return nil
		}
		c.printf("%s = %s\n", name, formatValue(v))
		return nil
	}).Desc("print the last value received from the peer").Args("slot"))

	executor.Define("call", cmds.Func(func(name string, rest []string) error {
		args := make([]any, len(rest))
		for i, arg := range rest {
			args[i] = parseValue(arg)
		}
		callCtx, cancel := context.WithTimeoutCause(ctx, c.timeout, ErrCallTimeout)
		defer cancel()
		ret, err := c.program.Invoke(callCtx, name, args...)
		if err != nil {
			return err
		}
		c.printf("%s\n", formatValue(ret))
		return nil
	}).Desc("call a program function").Args("function", "args..."))

	executor.Define("slots", cmds.Func(func() {
		for _, slot := range c.store.Slots() {
			c.printf("%-14s %-8s %s\n", slot.Name, slot.Kind, formatValue(slot.Value))
		}
	}).Desc("list local slots"))

	executor.Define("status", cmds.Func(func() {
		if c.status == nil {
			c.printf("tick %d, seq %d\n", c.store.Tick(), c.store.Seq())
			return
		}
		c.printf("%s\n", c.status())
	}).Desc("print instance status"))

	executor.Define("caps", cmds.Func(func() {
		c.printf("entry points: %s\n", c.program.Capabilities())
		c.printf("functions: %s\n", strings.Join(c.program.Functions(), ", "))
	}).Desc("print program entry points and functions"))

	executor.Define("help", cmds.Func(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		executor.PrintUsage(c.out)
	}).Desc("print commands").Alias("?"))

	return executor
}

// Execute runs one command line. Blank lines and # comments are ignored.
func (c *Console) Execute(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}
	args, err := splitLine(line)
	if err != nil {
		return err
	}
	return c.executor(ctx).Execute(args)
}

// Run reads and executes lines until ctx is done or input ends. Command errors are printed, never returned.
func (c *Console) Run(ctx context.Context, reader LineReader) error {
	type result struct {
		line string
		err  error
	}
	results := make(chan result)
	go func() {
		for {
			line, err := reader.ReadLine()
			select {
			case results <- result{line, err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()
	defer reader.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case r := <-results:
			if r.err != nil {
				if errors.Is(r.err, io.EOF) {
					return nil
				}
				return r.err
			}
			if err := c.Execute(ctx, r.line); err != nil {
				c.printf("%s\n", c.paint(color.FgRed)(err.Error()))
			}
		}
	}
}

// parseValue reads a JSON literal, or takes the text as a bare string.
func parseValue(s string) any {
	v, err := frames.ParseValue(s)
	if err != nil {
		return s
	}
	return v
}

func formatValue(v any) string {
	if frames.Check(v) == nil {
		if bs, err := json.Marshal(v); err == nil {
			return string(bs)
		}
	}
	return fmt.Sprint(v)
}
