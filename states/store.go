package states

import (
	"fmt"
	"sync"
)

// Store holds the local slots of one instance and a mirror of the last state received from the peer.
// All access goes through a single mutex; subscribers run under it, so they observe events in Seq order.
type Store struct {
	mu          sync.Mutex
	local       map[string]*Slot
	order       []string
	remote      map[string]any
	tick        uint64
	seq         uint64
	subscribers map[int]Subscriber
	subOrder    []int
	nextSubID   int
}

func NewStore(specs ...SlotSpec) (*Store, error) {
	s := &Store{
		local:       make(map[string]*Slot),
		remote:      make(map[string]any),
		subscribers: make(map[int]Subscriber),
	}
	for _, spec := range specs {
		if err := s.Declare(spec); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Declare adds a slot without emitting an event.
func (s *Store) Declare(spec SlotSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("empty slot name")
	}
	kind := spec.Kind
	if kind == "" {
		kind = KindValue
	}
	if !kind.Valid() {
		return fmt.Errorf("slot %s: bad kind %q", spec.Name, kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.local[spec.Name]; ok {
		return fmt.Errorf("slot %s: %w", spec.Name, ErrDuplicateSlot)
	}
	value := clone(spec.Init)
	if kind == KindActuator {
		value = clampActuator(value)
	}
	s.local[spec.Name] = &Slot{
		Name:    spec.Name,
		Kind:    kind,
		Value:   value,
		Watched: spec.watched(),
	}
	s.order = append(s.order, spec.Name)
	return nil
}

// Write sets a local slot and emits exactly one ChangeEvent. Unknown slots are created as watched value slots.
func (s *Store) Write(origin Origin, name string, value any) ChangeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.local[name]
	if !ok {
		slot = &Slot{
			Name:    name,
			Kind:    KindValue,
			Watched: true,
		}
		s.local[name] = slot
		s.order = append(s.order, name)
	}

	value = clone(value)
	if slot.Kind == KindActuator {
		value = clampActuator(value)
	}

	s.seq++
	event := ChangeEvent{
		Seq:     s.seq,
		Slot:    name,
		Kind:    slot.Kind,
		Old:     slot.Value,
		New:     value,
		Tick:    s.tick,
		Origin:  origin,
		Watched: slot.Watched,
	}
	slot.Value = value
	slot.LastWriteTick = s.tick

	for _, id := range s.subOrder {
		s.subscribers[id](event)
	}

	return event
}

func (s *Store) Read(name string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.local[name]
	if !ok {
		return nil, false
	}
	return clone(slot.Value), true
}

func (s *Store) Slot(name string) (Slot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.local[name]
	if !ok {
		return Slot{}, false
	}
	ret := *slot
	ret.Value = clone(slot.Value)
	return ret, true
}

func (s *Store) ReadRemote(name string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.remote[name]
	if !ok {
		return nil, false
	}
	return clone(v), true
}

// Merge replaces the remote partition. The local partition is never touched.
func (s *Store) Merge(snapshot map[string]any) {
	remote := make(map[string]any, len(snapshot))
	for k, v := range snapshot {
		remote[k] = clone(v)
	}
	s.mu.Lock()
	s.remote = remote
	s.mu.Unlock()
}

func (s *Store) Snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := make(map[string]any, len(s.local))
	for name, slot := range s.local {
		ret[name] = clone(slot.Value)
	}
	return ret
}

func (s *Store) RemoteSnapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := make(map[string]any, len(s.remote))
	for k, v := range s.remote {
		ret[k] = clone(v)
	}
	return ret
}

// Slots returns all local slots in declaration order.
func (s *Store) Slots() []Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := make([]Slot, 0, len(s.order))
	for _, name := range s.order {
		slot := *s.local[name]
		slot.Value = clone(slot.Value)
		ret = append(ret, slot)
	}
	return ret
}

func (s *Store) SetTick(tick uint64) {
	s.mu.Lock()
	s.tick = tick
	s.mu.Unlock()
}

func (s *Store) Tick() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

// Seq returns the sequence number of the last emitted event.
func (s *Store) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Subscribe registers fn for every subsequent ChangeEvent. fn runs with the store locked and must not call back into the store.
func (s *Store) Subscribe(fn Subscriber) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.subOrder = append(s.subOrder, id)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subscribers[id]; !ok {
			return
		}
		delete(s.subscribers, id)
		for i, sid := range s.subOrder {
			if sid == id {
				s.subOrder = append(s.subOrder[:i:i], s.subOrder[i+1:]...)
				break
			}
		}
	}
}
