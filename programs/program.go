package programs

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/reusee/botrun/faults"
	"github.com/reusee/botrun/states"
	"github.com/reusee/botrun/syncs"
	"go.starlark.net/starlark"
)

// Program is a loaded control program. It belongs to exactly one instance.
// Calls into user code never overlap.
type Program struct {
	name string
	prog *starlark.Program
	defs []string

	capsMu sync.Mutex
	caps   Capabilities

	calls   syncs.Semaphore
	globals starlark.StringDict
	env     Env

	currentMu sync.Mutex
	current   *starlark.Thread
}

// Env binds a program to its instance.
type Env struct {
	Store *states.Store
	// Print receives output of print() calls. Nil discards it.
	Print func(msg string)
}

var (
	ErrNotInitialized = errors.New("program not initialized")
	// ErrBusy is returned by Loop when another call, like a console invocation, holds the program.
	ErrBusy = errors.New("program busy")
)

func (p *Program) Name() string {
	return p.name
}

// Capabilities is what load-time discovery found, narrowed by Init to the entry points actually defined.
func (p *Program) Capabilities() Capabilities {
	p.capsMu.Lock()
	defer p.capsMu.Unlock()
	return p.caps
}

// Functions lists the top-level callables after Init, or the top-level defs before it.
func (p *Program) Functions() []string {
	if err := p.calls.Acquire(context.Background()); err != nil {
		return nil
	}
	defer p.calls.Release()
	if p.globals == nil {
		return slices.Clone(p.defs)
	}
	var ret []string
	for name, value := range p.globals {
		if _, ok := value.(starlark.Callable); ok {
			ret = append(ret, name)
		}
	}
	slices.Sort(ret)
	return ret
}

// Init runs the top-level body of the program. Errors are InitializationError faults.
func (p *Program) Init(ctx context.Context, env Env) error {
	if env.Store == nil {
		return faults.New(faults.InitializationError, fmt.Errorf("no state store"))
	}
	if err := p.calls.Acquire(ctx); err != nil {
		return faults.New(faults.InitializationError, err)
	}
	defer p.calls.Release()

	p.env = env
	thread := p.newThread(states.OriginSetup)
	defer p.watch(ctx, thread)()
	globals, err := p.prog.Init(thread, predeclared(env.Store, time.Now()))
	if err != nil {
		return faults.New(faults.InitializationError, callError(ctx, err))
	}
	p.globals = globals
	p.capsMu.Lock()
	p.caps = resolve(globals)
	p.capsMu.Unlock()
	return nil
}

func (p *Program) Setup(ctx context.Context) error {
	if !p.Capabilities().HasSetup {
		return nil
	}
	_, err := p.call(ctx, states.OriginSetup, "setup", nil)
	if err != nil {
		return faults.New(faults.InitializationError, err)
	}
	return nil
}

// Main runs main() once. A failing main is fatal like a failing setup.
func (p *Program) Main(ctx context.Context) error {
	if !p.Capabilities().HasMain {
		return nil
	}
	_, err := p.call(ctx, states.OriginSetup, "main", nil)
	if err != nil {
		return faults.New(faults.InitializationError, err)
	}
	return nil
}

// Loop runs loop() once. It never waits for the program: if another call is running it returns ErrBusy at once.
func (p *Program) Loop(ctx context.Context) error {
	if !p.Capabilities().HasLoop {
		return nil
	}
	if !p.calls.TryAcquire() {
		return ErrBusy
	}
	defer p.calls.Release()
	_, err := p.callLocked(ctx, states.OriginScheduler, "loop", nil)
	if err != nil {
		return faults.New(faults.StepError, err)
	}
	return nil
}

// Invoke calls a top-level function on behalf of the console. Writes it makes have console origin.
func (p *Program) Invoke(ctx context.Context, name string, args ...any) (any, error) {
	var tuple starlark.Tuple
	for _, arg := range args {
		v, err := toStarlark(arg)
		if err != nil {
			return nil, faults.New(faults.InvocationError, err)
		}
		tuple = append(tuple, v)
	}
	ret, err := p.call(ctx, states.OriginConsole, name, tuple)
	if err != nil {
		return nil, faults.New(faults.InvocationError, err)
	}
	return fromStarlark(ret), nil
}

// Cancel stops the call in progress, if any. Safe from any goroutine.
func (p *Program) Cancel(reason string) {
	p.currentMu.Lock()
	defer p.currentMu.Unlock()
	if p.current != nil {
		p.current.Cancel(reason)
	}
}

func (p *Program) call(ctx context.Context, origin states.Origin, name string, args starlark.Tuple) (starlark.Value, error) {
	if err := p.calls.Acquire(ctx); err != nil {
		return nil, err
	}
	defer p.calls.Release()
	return p.callLocked(ctx, origin, name, args)
}

func (p *Program) callLocked(ctx context.Context, origin states.Origin, name string, args starlark.Tuple) (starlark.Value, error) {
	if p.globals == nil {
		return nil, ErrNotInitialized
	}
	fn, ok := p.globals[name]
	if !ok {
		return nil, fmt.Errorf("no function named %q", name)
	}
	if _, ok := fn.(starlark.Callable); !ok {
		return nil, fmt.Errorf("%s is not callable", name)
	}

	thread := p.newThread(origin)
	defer p.watch(ctx, thread)()
	ret, err := starlark.Call(thread, fn, args, nil)
	if err != nil {
		return nil, callError(ctx, err)
	}
	return ret, nil
}

func (p *Program) newThread(origin states.Origin) *starlark.Thread {
	thread := &starlark.Thread{
		Name: p.name,
		Print: func(_ *starlark.Thread, msg string) {
			if p.env.Print != nil {
				p.env.Print(msg)
			}
		},
		Load: func(_ *starlark.Thread, module string) (starlark.StringDict, error) {
			return nil, fmt.Errorf("load(%q) is not available", module)
		},
	}
	thread.SetLocal(originKey, origin)
	return thread
}

// watch registers thread as current and cancels it when ctx is done. The returned func undoes both.
func (p *Program) watch(ctx context.Context, thread *starlark.Thread) func() {
	p.currentMu.Lock()
	p.current = thread
	p.currentMu.Unlock()
	stop := context.AfterFunc(ctx, func() {
		thread.Cancel(context.Cause(ctx).Error())
	})
	return func() {
		stop()
		p.currentMu.Lock()
		p.current = nil
		p.currentMu.Unlock()
	}
}

// callError attaches the context error when a call was cut short by cancellation.
func callError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", context.Cause(ctx), err)
	}
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		return errors.New(evalErr.Backtrace())
	}
	return err
}
