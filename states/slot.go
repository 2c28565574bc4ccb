package states

type Kind string

const (
	KindActuator Kind = "actuator"
	KindSensor   Kind = "sensor"
	KindValue    Kind = "value"
)

func (k Kind) Valid() bool {
	switch k {
	case KindActuator, KindSensor, KindValue:
		return true
	}
	return false
}

type Slot struct {
	Name          string
	Kind          Kind
	Value         any
	LastWriteTick uint64
	// Watched slots have their changes relayed to the peer.
	Watched bool
}

// SlotSpec declares a slot. Watched defaults to true when nil.
type SlotSpec struct {
	Name    string `json:"name"`
	Kind    Kind   `json:"kind"`
	Init    any    `json:"init"`
	Watched *bool  `json:"watched"`
}

func (s SlotSpec) watched() bool {
	if s.Watched == nil {
		return true
	}
	return *s.Watched
}

func Actuator(name string) SlotSpec {
	return SlotSpec{Name: name, Kind: KindActuator, Init: 0.0}
}

func Sensor(name string, init any) SlotSpec {
	return SlotSpec{Name: name, Kind: KindSensor, Init: init}
}

// RobotSlots are the slots of the reference robot: four motors and its sensor set.
func RobotSlots() []SlotSpec {
	return []SlotSpec{
		Actuator("motor1"),
		Actuator("motor2"),
		Actuator("motor3"),
		Actuator("motor4"),
		Sensor("battery", 100.0),
		Sensor("light", 0.0),
		Sensor("distance", 0.0),
		Sensor("temperature", 0.0),
		Sensor("humidity", 0.0),
		Sensor("pressure", 0.0),
		Sensor("altitude", 0.0),
		Sensor("orientation", []any{0.0, 0.0, 0.0}),
		Sensor("acceleration", []any{0.0, 0.0, 0.0}),
	}
}
