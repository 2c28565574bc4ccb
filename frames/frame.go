package frames

import "encoding/json"

type Type string

const (
	TypeGlobalState Type = "global_state"
	TypeStateUpdate Type = "state_update"
	TypeError       Type = "error"
	TypeEcho        Type = "echo"
	TypeHeartbeat   Type = "heartbeat"
	TypeConnected   Type = "connected"
	TypeReplOutput  Type = "repl_output"
)

// Frame is one message on the wire. A global_state frame is encoded without its type, as {"global_state": {...}}.
type Frame struct {
	Type        Type            `json:"type,omitempty"`
	State       map[string]any  `json:"state,omitempty"`
	GlobalState map[string]any  `json:"global_state,omitempty"`
	Seq         uint64          `json:"seq,omitempty"`
	Tick        uint64          `json:"tick,omitempty"`
	Origin      string          `json:"origin,omitempty"`
	Instance    string          `json:"instance,omitempty"`
	Kind        string          `json:"kind,omitempty"`
	Error       string          `json:"error,omitempty"`
	Message     string          `json:"message,omitempty"`
	Output      string          `json:"output,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	Time        float64         `json:"time,omitempty"`
}

func StateUpdate(seq uint64, tick uint64, origin string, state map[string]any) Frame {
	return Frame{
		Type:   TypeStateUpdate,
		State:  state,
		Seq:    seq,
		Tick:   tick,
		Origin: origin,
	}
}

func GlobalState(state map[string]any) Frame {
	return Frame{
		Type:        TypeGlobalState,
		GlobalState: state,
	}
}

func ErrorFrame(kind string, err error) Frame {
	f := Frame{
		Type: TypeError,
		Kind: kind,
	}
	if err != nil {
		f.Error = err.Error()
	}
	return f
}

func ReplOutput(output string) Frame {
	return Frame{
		Type:   TypeReplOutput,
		Output: output,
	}
}
