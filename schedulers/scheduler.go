package schedulers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/reusee/botrun/faults"
	"github.com/reusee/botrun/logs"
	"github.com/reusee/botrun/procs"
	"github.com/reusee/botrun/programs"
)

var ErrStepTimeout = errors.New("step timeout")

// Scheduler drives one program: top level, setup() and main() once, then loop() every tick.
type Scheduler struct {
	program *programs.Program
	env     programs.Env
	config  Config
	logger  logs.Logger
	sink    faults.Sink

	mu      sync.Mutex
	state   State
	fault   *faults.Fault
	onState []func(State)

	ticks    atomic.Uint64
	skipped  atomic.Uint64
	failures int
}

func New(
	program *programs.Program,
	env programs.Env,
	config Config,
	logger logs.Logger,
	sink faults.Sink,
) *Scheduler {
	return &Scheduler{
		program: program,
		env:     env,
		config:  config,
		logger:  logger,
		sink:    sink,
	}
}

// OnState registers fn to be called after every state transition. Must be called before Run.
func (s *Scheduler) OnState(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onState = append(s.onState, fn)
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Fault returns the fault that stopped the scheduler, if any.
func (s *Scheduler) Fault() *faults.Fault {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fault
}

// Ticks returns how many times loop() has been invoked.
// Skipped counts ticks that found the program busy with another call.
func (s *Scheduler) Skipped() uint64 {
	return s.skipped.Load()
}

func (s *Scheduler) Ticks() uint64 {
	return s.ticks.Load()
}

// Run blocks until ctx is done or the program faults. It returns the fatal fault, or nil after a clean stop.
func (s *Scheduler) Run(ctx context.Context) error {
	if state := s.State(); state != Idle {
		return faults.Newf(faults.InitializationError, "scheduler already %s", state)
	}
	err := procs.Drive(ctx, procs.Procs[context.Context]{
		procs.Func[context.Context](s.initialize),
		s.initStep(func(ctx context.Context) error {
			return s.program.Init(ctx, s.env)
		}),
		s.initStep(s.program.Setup),
		s.initStep(s.program.Main),
		procs.Func[context.Context](s.run),
	})
	if errors.Is(err, errShutdown) {
		return nil
	}
	return err
}

// errShutdown ends the chain early after a clean stop.
var errShutdown = errors.New("shutdown")

func (s *Scheduler) setState(ctx context.Context, state State) {
	s.mu.Lock()
	from := s.state
	s.state = state
	hooks := s.onState
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "scheduler state",
		"from", from.String(),
		"to", state.String(),
	)
	for _, fn := range hooks {
		fn(state)
	}
}

func (s *Scheduler) report(ctx context.Context, fault *faults.Fault) {
	if fault.Instance == "" {
		fault.Instance = logs.InstanceFrom(ctx)
	}
	if s.sink != nil {
		s.sink(ctx, fault)
	}
}

func (s *Scheduler) faulted(ctx context.Context, fault *faults.Fault) (procs.Proc[context.Context], error) {
	s.report(ctx, fault)
	s.mu.Lock()
	s.fault = fault
	s.mu.Unlock()
	s.setState(ctx, Faulted)
	return nil, fault
}

func (s *Scheduler) stopped(ctx context.Context) (procs.Proc[context.Context], error) {
	s.setState(ctx, Stopping)
	s.setState(ctx, Stopped)
	return nil, nil
}

func (s *Scheduler) initialize(ctx context.Context) (procs.Proc[context.Context], error) {
	s.setState(ctx, Initializing)
	return nil, nil
}

func (s *Scheduler) initStep(step func(context.Context) error) procs.Proc[context.Context] {
	return procs.Func[context.Context](func(ctx context.Context) (procs.Proc[context.Context], error) {
		if err := step(ctx); err != nil {
			if ctx.Err() != nil {
				// shutdown during initialization
				s.stopped(ctx)
				return nil, errShutdown
			}
			return s.faulted(ctx, faults.Classify(faults.InitializationError, err))
		}
		return nil, nil
	})
}

func (s *Scheduler) run(ctx context.Context) (procs.Proc[context.Context], error) {
	s.setState(ctx, Running)

	if !s.program.Capabilities().HasLoop {
		<-ctx.Done()
		return s.stopped(ctx)
	}

	ticker := time.NewTicker(s.config.Period())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return s.stopped(ctx)
		case <-ticker.C:
		}

		if fault := s.step(ctx); fault != nil {
			return s.faulted(ctx, fault)
		}
	}
}

// step runs one tick. It returns a fault only when the failure streak escalates.
func (s *Scheduler) step(ctx context.Context) *faults.Fault {
	tick := s.ticks.Add(1)
	s.env.Store.SetTick(tick)

	// an in-flight tick is finished on shutdown, bounded by the step timeout
	stepCtx := context.WithoutCancel(ctx)
	if s.config.StepTimeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeoutCause(stepCtx, s.config.StepTimeout, ErrStepTimeout)
		defer cancel()
	}

	err := s.program.Loop(stepCtx)
	if errors.Is(err, programs.ErrBusy) {
		// a console call holds the program; this tick is skipped, not failed
		s.skipped.Add(1)
		s.logger.DebugContext(ctx, "tick skipped", "tick", tick)
		return nil
	}
	if err == nil {
		s.failures = 0
		return nil
	}

	s.failures++
	fault := faults.Classify(faults.StepError, err).WithTick(tick)
	if s.config.MaxStepFailures > 0 && s.failures > s.config.MaxStepFailures {
		fault.Escalated = true
		return fault
	}
	s.report(ctx, fault)
	return nil
}
