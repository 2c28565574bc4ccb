package faults

type Kind uint8

const (
	LoadError Kind = iota + 1
	InitializationError
	StepError
	ConnectionError
	SerializationError
	InvocationError
)

var kindNames = map[Kind]string{
	LoadError:           "load_error",
	InitializationError: "initialization_error",
	StepError:           "step_error",
	ConnectionError:     "connection_error",
	SerializationError:  "serialization_error",
	InvocationError:     "invocation_error",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown_error"
}

// Error makes a Kind usable as an errors.Is target.
func (k Kind) Error() string {
	return k.String()
}
