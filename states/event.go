package states

type Origin string

const (
	OriginScheduler Origin = "scheduler"
	OriginConsole   Origin = "console"
	OriginSetup     Origin = "setup"
)

type ChangeEvent struct {
	Seq     uint64
	Slot    string
	Kind    Kind
	Old     any
	New     any
	Tick    uint64
	Origin  Origin
	Watched bool
}

type Subscriber func(ChangeEvent)
