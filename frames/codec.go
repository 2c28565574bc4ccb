package frames

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var (
	ErrUnrepresentable = errors.New("value not representable on the wire")
	ErrMalformed       = errors.New("malformed frame")
)

func Encode(frame Frame) ([]byte, error) {
	for _, state := range []map[string]any{frame.State, frame.GlobalState} {
		for name, value := range state {
			if err := Check(value); err != nil {
				return nil, fmt.Errorf("slot %s: %w", name, err)
			}
		}
	}
	if frame.Type == TypeGlobalState {
		frame.Type = ""
		if len(frame.GlobalState) == 0 {
			// omitempty would drop the only field
			return []byte(`{"global_state":{}}`), nil
		}
	}
	bs, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrepresentable, err)
	}
	return bs, nil
}

func Decode(bs []byte) (Frame, error) {
	var frame Frame
	decoder := json.NewDecoder(bytes.NewReader(bs))
	decoder.UseNumber()
	if err := decoder.Decode(&frame); err != nil {
		return frame, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if _, err := decoder.Token(); err != io.EOF {
		return frame, fmt.Errorf("%w: trailing data", ErrMalformed)
	}
	if frame.Type == "" {
		if frame.GlobalState == nil {
			return frame, fmt.Errorf("%w: missing type", ErrMalformed)
		}
		frame.Type = TypeGlobalState
	}
	if frame.Type == TypeStateUpdate && frame.State == nil {
		return frame, fmt.Errorf("%w: state_update without state", ErrMalformed)
	}
	var err error
	if frame.State, err = normalizeMap(frame.State); err != nil {
		return frame, err
	}
	if frame.GlobalState, err = normalizeMap(frame.GlobalState); err != nil {
		return frame, err
	}
	return frame, nil
}
