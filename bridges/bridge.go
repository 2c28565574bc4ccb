package bridges

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/reusee/botrun/faults"
	"github.com/reusee/botrun/frames"
	"github.com/reusee/botrun/logs"
	"github.com/reusee/botrun/states"
)

// Bridge relays store changes to a peer and merges state the peer pushes back.
// Frames stay queued until written, so delivery is at-least-once; every change frame carries the store seq.
type Bridge struct {
	store       *states.Store
	transport   Transport
	queue       *SendQueue
	reconnector *Reconnector
	logger      logs.Logger
	sink        faults.Sink
	instance    string

	unsubscribe func()

	mu            sync.Mutex
	state         ConnState
	lastHeartbeat time.Time

	sent       atomic.Uint64
	dropped    atomic.Uint64
	received   atomic.Uint64
	malformed  atomic.Uint64
	reconnects atomic.Uint64
}

func New(
	store *states.Store,
	transport Transport,
	config Config,
	logger logs.Logger,
	sink faults.Sink,
	instance string,
) *Bridge {
	b := &Bridge{
		store:       store,
		transport:   transport,
		queue:       NewSendQueue(),
		reconnector: NewReconnector(config.BackoffBase, config.BackoffCap),
		logger:      logger,
		sink:        sink,
		instance:    instance,
	}
	b.unsubscribe = store.Subscribe(b.onChange)
	return b
}

func (b *Bridge) onChange(ev states.ChangeEvent) {
	if !ev.Watched {
		return
	}
	frame := frames.StateUpdate(ev.Seq, ev.Tick, string(ev.Origin), map[string]any{
		ev.Slot: ev.New,
	})
	frame.Instance = b.instance
	b.Enqueue(frame)
}

// Enqueue never blocks on the network.
func (b *Bridge) Enqueue(frame frames.Frame) {
	b.queue.Push(frame)
}

// Output forwards program print() output to the peer.
func (b *Bridge) Output(msg string) {
	frame := frames.ReplOutput(msg)
	frame.Instance = b.instance
	b.Enqueue(frame)
}

// FaultSink forwards faults to the peer as error frames. Connection faults are not queued, the peer cannot hear them.
func (b *Bridge) FaultSink() faults.Sink {
	return func(_ context.Context, fault *faults.Fault) {
		if fault.Kind == faults.ConnectionError {
			return
		}
		frame := frames.ErrorFrame(fault.Kind.String(), fault.Err)
		frame.Instance = b.instance
		frame.Tick = fault.Tick
		b.Enqueue(frame)
	}
}

func (b *Bridge) State() ConnState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Bridge) setState(ctx context.Context, state ConnState) {
	b.mu.Lock()
	from := b.state
	b.state = state
	b.mu.Unlock()
	if from != state {
		b.logger.DebugContext(ctx, "bridge state",
			"from", from.String(),
			"to", state.String(),
		)
	}
}

type Stats struct {
	State         ConnState
	Queued        int
	Sent          uint64
	Dropped       uint64
	Received      uint64
	Malformed     uint64
	Reconnects    uint64
	LastHeartbeat time.Time
}

func (b *Bridge) Stats() Stats {
	b.mu.Lock()
	state := b.state
	heartbeat := b.lastHeartbeat
	b.mu.Unlock()
	return Stats{
		State:         state,
		Queued:        b.queue.Len(),
		Sent:          b.sent.Load(),
		Dropped:       b.dropped.Load(),
		Received:      b.received.Load(),
		Malformed:     b.malformed.Load(),
		Reconnects:    b.reconnects.Load(),
		LastHeartbeat: heartbeat,
	}
}

func (b *Bridge) report(ctx context.Context, kind faults.Kind, err error) {
	fault := faults.New(kind, err)
	fault.Instance = b.instance
	if b.sink != nil {
		b.sink(ctx, fault)
	}
}

// Run keeps a connection up until ctx is done, then closes it and returns after all goroutines exit.
func (b *Bridge) Run(ctx context.Context) error {
	defer b.unsubscribe()
	defer b.setState(ctx, Disconnected)
	if closer, ok := b.transport.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	for {
		b.setState(ctx, Connecting)
		conn, err := b.transport.Dial(ctx)
		if err == nil {
			b.reconnector.Reset()
			b.setState(ctx, Connected)
			b.logger.InfoContext(ctx, "bridge connected", "peer", b.transport.String())
			err = b.serve(ctx, conn)
			conn.Close()
		}
		b.setState(ctx, Disconnected)
		if ctx.Err() != nil {
			return nil
		}
		b.report(ctx, faults.ConnectionError, err)

		delay := b.reconnector.Next()
		b.logger.InfoContext(ctx, "bridge reconnect",
			"peer", b.transport.String(),
			"attempt", b.reconnector.Attempt(),
			"delay", delay,
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		b.reconnects.Add(1)
	}
}

var errConnClosed = errors.New("connection closed")

func (b *Bridge) serve(ctx context.Context, conn Conn) error {
	connCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := b.receive(connCtx, conn)
		if err == nil {
			err = errConnClosed
		}
		cancel(err)
	}()

	err := b.send(connCtx, conn)
	cancel(err)
	// unblock the receiver
	conn.Close()
	wg.Wait()

	return context.Cause(connCtx)
}

func (b *Bridge) send(ctx context.Context, conn Conn) error {
	snapshot, omitted := frames.Representable(b.store.Snapshot())
	if len(omitted) > 0 {
		b.logger.WarnContext(ctx, "slots omitted from global state", "slots", omitted)
	}
	bs, err := frames.Encode(frames.GlobalState(snapshot))
	if err != nil {
		return err
	}
	if err := conn.WriteFrame(bs); err != nil {
		return err
	}

	for {
		frame, ok := b.queue.Peek()
		if !ok {
			select {
			case <-ctx.Done():
				return context.Cause(ctx)
			case <-b.queue.Ready():
			}
			continue
		}

		bs, err := frames.Encode(frame)
		if err != nil {
			b.queue.Pop()
			b.dropped.Add(1)
			b.logger.WarnContext(ctx, "frame dropped", "seq", frame.Seq, "error", err)
			b.report(ctx, faults.SerializationError, err)
			continue
		}

		if err := conn.WriteFrame(bs); err != nil {
			// the frame stays at the front for the next connection
			return err
		}
		b.queue.Pop()
		b.sent.Add(1)

		if ctx.Err() != nil {
			return context.Cause(ctx)
		}
	}
}

func (b *Bridge) receive(ctx context.Context, conn Conn) error {
	for {
		bs, err := conn.ReadFrame()
		if err != nil {
			return err
		}
		b.received.Add(1)

		frame, err := frames.Decode(bs)
		if err != nil {
			b.malformed.Add(1)
			b.logger.WarnContext(ctx, "malformed frame dropped", "error", err)
			continue
		}

		switch frame.Type {
		case frames.TypeStateUpdate:
			b.store.Merge(frame.State)
		case frames.TypeGlobalState:
			b.store.Merge(frame.GlobalState)
		case frames.TypeHeartbeat:
			b.mu.Lock()
			b.lastHeartbeat = time.Now()
			b.mu.Unlock()
			b.logger.DebugContext(ctx, "heartbeat", "time", frame.Time)
		case frames.TypeConnected:
			b.logger.InfoContext(ctx, "peer welcome", "message", frame.Message)
		case frames.TypeEcho:
			b.logger.DebugContext(ctx, "echo", "data", string(frame.Data))
		case frames.TypeError:
			b.logger.WarnContext(ctx, "peer error", "message", frame.Message, "error", frame.Error)
		default:
			b.logger.DebugContext(ctx, "frame ignored", "type", frame.Type)
		}
	}
}

// Flush waits until the queue is empty, up to timeout. It reports whether the queue was drained.
func (b *Bridge) Flush(ctx context.Context, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(time.Millisecond * 10)
	defer ticker.Stop()
	for {
		if b.queue.Len() == 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case <-ticker.C:
		}
	}
}
