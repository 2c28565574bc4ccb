package schedulers

type State uint8

const (
	Idle State = iota
	Initializing
	Running
	Stopping
	Stopped
	Faulted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Initializing:
		return "initializing"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	case Faulted:
		return "faulted"
	}
	return "unknown"
}

func (s State) Terminal() bool {
	return s == Stopped || s == Faulted
}
