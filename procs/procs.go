package procs

// Procs runs its steps in order. A step that returns a follow-up proc is
// replaced by it and run again, so a phase can loop before handing over to the next one.
type Procs[C any] []Proc[C]

var _ Proc[any] = Procs[any]{}

func (p Procs[C]) Run(ctx C) (Proc[C], error) {
	if len(p) == 0 {
		return nil, nil
	}
	next, err := p[0].Run(ctx)
	switch {
	case err != nil:
		return nil, err
	case next == nil && len(p) == 1:
		return nil, nil
	case next == nil:
		return p[1:], nil
	}
	rest := make(Procs[C], len(p))
	rest[0] = next
	copy(rest[1:], p[1:])
	return rest, nil
}
