package instances

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/reusee/botrun/bridges"
	"github.com/reusee/botrun/faults"
	"github.com/reusee/botrun/logs"
	"github.com/reusee/botrun/nets"
	"github.com/reusee/botrun/programs"
	"github.com/reusee/botrun/schedulers"
	"github.com/reusee/botrun/states"
)

// Instance is one program with its own store, scheduler and bridge. Instances share nothing.
type Instance struct {
	ID        string
	config    Config
	program   *programs.Program
	store     *states.Store
	scheduler *schedulers.Scheduler
	bridge    *bridges.Bridge
	logger    logs.Logger

	mu      sync.Mutex
	sinks   []faults.Sink
	outputs []func(string)
}

func NewInstance(
	src programs.Source,
	config Config,
	dialer nets.Dialer,
	logger logs.Logger,
) (*Instance, error) {
	id := uuid.NewString()

	program, err := programs.Load(src)
	if err != nil {
		return nil, faults.Classify(faults.LoadError, err).WithInstance(id)
	}

	store, err := states.NewStore(config.Slots...)
	if err != nil {
		return nil, faults.New(faults.LoadError, fmt.Errorf("slots: %w", err)).WithInstance(id)
	}

	inst := &Instance{
		ID:      id,
		config:  config,
		program: program,
		store:   store,
		logger:  logger,
	}
	inst.sinks = append(inst.sinks, faults.LogSink(logger))

	transport, err := bridges.NewTransport(config.Bridge, dialer)
	if err != nil {
		return nil, faults.New(faults.LoadError, err).WithInstance(id)
	}
	if transport != nil {
		inst.bridge = bridges.New(store, transport, config.Bridge, logger, inst.report, id)
		inst.sinks = append(inst.sinks, inst.bridge.FaultSink())
		inst.outputs = append(inst.outputs, inst.bridge.Output)
	}

	inst.scheduler = schedulers.New(
		program,
		programs.Env{
			Store: store,
			Print: inst.print,
		},
		config.Scheduler,
		logger,
		inst.report,
	)

	return inst, nil
}

func (i *Instance) Program() *programs.Program {
	return i.program
}

func (i *Instance) Store() *states.Store {
	return i.store
}

func (i *Instance) Scheduler() *schedulers.Scheduler {
	return i.scheduler
}

// Bridge is nil when the instance has no peer.
func (i *Instance) Bridge() *bridges.Bridge {
	return i.bridge
}

// AddSink registers another fault destination, like a console.
func (i *Instance) AddSink(sink faults.Sink) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.sinks = append(i.sinks, sink)
}

// AddOutput registers another destination for program print() output.
func (i *Instance) AddOutput(fn func(string)) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.outputs = append(i.outputs, fn)
}

func (i *Instance) report(ctx context.Context, fault *faults.Fault) {
	if fault.Instance == "" {
		fault.Instance = i.ID
	}
	i.mu.Lock()
	sinks := i.sinks
	i.mu.Unlock()
	faults.Fanout(sinks...)(ctx, fault)
}

func (i *Instance) print(msg string) {
	i.mu.Lock()
	outputs := i.outputs
	i.mu.Unlock()
	for _, fn := range outputs {
		fn(msg)
	}
}

// Run drives the instance until ctx is done or its program faults fatally.
func (i *Instance) Run(ctx context.Context) error {
	ctx = logs.WithInstance(ctx, i.ID)
	i.logger.InfoContext(ctx, "instance start",
		"program", i.program.Name(),
		"capabilities", i.program.Capabilities().String(),
	)

	var wg sync.WaitGroup
	bridgeCtx, cancelBridge := context.WithCancel(ctx)
	defer cancelBridge()
	if i.bridge != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := i.bridge.Run(bridgeCtx); err != nil {
				i.logger.ErrorContext(ctx, "bridge", "error", err)
			}
		}()
	}

	err := i.scheduler.Run(ctx)
	if err != nil && i.bridge != nil {
		// let the error frame reach the peer
		i.bridge.Flush(ctx, i.config.FlushTimeout)
	}
	cancelBridge()
	wg.Wait()

	i.logger.InfoContext(ctx, "instance end",
		"state", i.scheduler.State().String(),
		"ticks", i.scheduler.Ticks(),
	)
	return err
}

// Report is a point-in-time copy of an instance's state.
type Report struct {
	ID      string         `json:"id"`
	Program string         `json:"program"`
	State   string         `json:"state"`
	Tick    uint64         `json:"tick"`
	Seq     uint64         `json:"seq"`
	Conn    string         `json:"conn"`
	Fault   string         `json:"fault,omitempty"`
	Local   map[string]any `json:"local"`
	Time    time.Time      `json:"time"`
}

func (i *Instance) Report() Report {
	r := Report{
		ID:      i.ID,
		Program: i.program.Name(),
		State:   i.scheduler.State().String(),
		Tick:    i.scheduler.Ticks(),
		Seq:     i.store.Seq(),
		Conn:    "none",
		Local:   i.store.Snapshot(),
		Time:    time.Now(),
	}
	if i.bridge != nil {
		r.Conn = i.bridge.State().String()
	}
	if fault := i.scheduler.Fault(); fault != nil {
		r.Fault = fault.Error()
	}
	return r
}

// StatusLine is a one-line summary for the console.
func (i *Instance) StatusLine() string {
	line := fmt.Sprintf("%s: %s, tick %d, seq %d",
		i.ID,
		i.scheduler.State(),
		i.scheduler.Ticks(),
		i.store.Seq(),
	)
	if i.bridge != nil {
		stats := i.bridge.Stats()
		line += fmt.Sprintf(", %s, queued %d, sent %d, dropped %d",
			stats.State, stats.Queued, stats.Sent, stats.Dropped)
	}
	return line
}

func (r Report) clone() Report {
	r.Local = cloneValue(r.Local).(map[string]any)
	return r
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		if v == nil {
			return v
		}
		ret := make(map[string]any, len(v))
		for k, e := range v {
			ret[k] = cloneValue(e)
		}
		return ret
	case []any:
		ret := make([]any, len(v))
		for i, e := range v {
			ret[i] = cloneValue(e)
		}
		return ret
	}
	return v
}
