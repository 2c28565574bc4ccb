package instances

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/reusee/botrun/faults"
	"github.com/reusee/botrun/logs"
	"github.com/reusee/botrun/nets"
	"github.com/reusee/botrun/programs"
	"github.com/reusee/botrun/syncs"
)

var ErrUnknownInstance = errors.New("unknown instance")

// Manager runs instances side by side and aggregates their reports.
// Instances never see each other; the aggregate only flows out.
type Manager struct {
	dialer nets.Dialer
	logger logs.Logger
	sem    syncs.Semaphore

	reports  chan Report
	requests chan chan map[string]Report
	aggDone  chan struct{}

	mu      sync.Mutex
	handles map[string]*Handle
	order   []string
	wg      sync.WaitGroup
}

// Handle tracks one spawned instance.
type Handle struct {
	*Instance
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Done is closed after the instance stopped.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err is the instance's terminal error, valid after Done.
func (h *Handle) Err() error {
	return h.err
}

// NewManager starts the aggregator, which lives until ctx is done.
func NewManager(ctx context.Context, maxRunning int, dialer nets.Dialer, logger logs.Logger) *Manager {
	m := &Manager{
		dialer:   dialer,
		logger:   logger,
		sem:      syncs.NewSemaphore(maxRunning),
		reports:  make(chan Report),
		requests: make(chan chan map[string]Report),
		aggDone:  make(chan struct{}),
		handles:  make(map[string]*Handle),
	}
	go m.aggregate(ctx)
	return m
}

func (m *Manager) aggregate(ctx context.Context) {
	defer close(m.aggDone)
	snapshots := make(map[string]Report)
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-m.reports:
			snapshots[r.ID] = r
		case reply := <-m.requests:
			ret := make(map[string]Report, len(snapshots))
			for id, r := range snapshots {
				ret[id] = r.clone()
			}
			reply <- ret
		}
	}
}

func (m *Manager) push(r Report) {
	select {
	case m.reports <- r:
	case <-m.aggDone:
	}
}

// Spawn loads src and starts it in its own goroutines. Load failures are returned, nothing is started.
func (m *Manager) Spawn(ctx context.Context, src programs.Source, config Config) (*Handle, error) {
	inst, err := NewInstance(src, config, m.dialer, m.logger)
	if err != nil {
		return nil, err
	}
	return m.start(ctx, inst, config), nil
}

// Adopt starts an instance built by the caller, for callers that attach a console before running.
func (m *Manager) Adopt(ctx context.Context, inst *Instance) *Handle {
	return m.start(ctx, inst, inst.config)
}

func (m *Manager) start(ctx context.Context, inst *Instance, config Config) *Handle {
	ctx, cancel := context.WithCancel(logs.WithInstance(ctx, inst.ID))
	handle := &Handle{
		Instance: inst,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	m.mu.Lock()
	m.handles[inst.ID] = handle
	m.order = append(m.order, inst.ID)
	m.mu.Unlock()

	m.push(inst.Report())

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(handle.done)
		defer cancel()

		if err := m.sem.Acquire(ctx); err != nil {
			return
		}
		defer m.sem.Release()

		reporterDone := make(chan struct{})
		reporterCtx, stopReporter := context.WithCancel(ctx)
		go func() {
			defer close(reporterDone)
			interval := config.ReportInterval
			if interval <= 0 {
				interval = DefaultReportInterval
			}
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-reporterCtx.Done():
					return
				case <-ticker.C:
					m.push(inst.Report())
				}
			}
		}()

		handle.err = inst.Run(ctx)
		stopReporter()
		<-reporterDone
		m.push(inst.Report())
	}()

	return handle
}

// List returns instance ids in spawn order.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.order)
}

func (m *Manager) Get(id string) (*Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.handles[id]
	return h, ok
}

// Stop cancels one instance and waits for it to finish.
func (m *Manager) Stop(id string) error {
	handle, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownInstance, id)
	}
	handle.cancel()
	<-handle.done
	return nil
}

// StopAll cancels every instance without waiting.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.handles {
		h.cancel()
	}
}

// Wait blocks until every spawned instance stopped and returns their fatal faults joined.
func (m *Manager) Wait() error {
	m.wg.Wait()
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for _, id := range m.order {
		if err := m.handles[id].err; err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Snapshots returns a copy of the latest report of every instance.
func (m *Manager) Snapshots() map[string]Report {
	reply := make(chan map[string]Report, 1)
	select {
	case m.requests <- reply:
		return <-reply
	case <-m.aggDone:
		return nil
	}
}

// GlobalState maps each instance id to its local state, as carried by an aggregate global_state frame.
func (m *Manager) GlobalState() map[string]any {
	ret := make(map[string]any)
	for id, r := range m.Snapshots() {
		ret[id] = r.Local
	}
	return ret
}

// Faults returns the terminal fault of every stopped instance that faulted.
func (m *Manager) Faults() []*faults.Fault {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ret []*faults.Fault
	for _, id := range m.order {
		h := m.handles[id]
		select {
		case <-h.done:
		default:
			continue
		}
		if f, ok := faults.As(h.err); ok {
			ret = append(ret, f)
		}
	}
	return ret
}
