package models

import (
	"encoding/json"
	"fmt"
)

// OperationMode is the control mode of the HVAC unit.
type OperationMode int

const (
	ModeManual OperationMode = iota
	ModeAutoWinter
	ModeAutoSummer
)

// Wire tokens, as the device and the HTTP API spell them.
const (
	tokenManual     = "manual"
	tokenAutoWinter = "autoWinter"
	tokenAutoSummer = "autoSummer"
)

// ParseOperationMode maps a wire token to its mode. Unknown tokens are a
// ValidationError; there is no fallback.
func ParseOperationMode(token string) (OperationMode, error) {
	switch token {
	case tokenManual:
		return ModeManual, nil
	case tokenAutoWinter:
		return ModeAutoWinter, nil
	case tokenAutoSummer:
		return ModeAutoSummer, nil
	default:
		return ModeManual, newValidationError("mode", fmt.Sprintf("%q", token),
			"expected one of manual, autoWinter, autoSummer")
	}
}

// String returns the wire token.
func (m OperationMode) String() string {
	switch m {
	case ModeManual:
		return tokenManual
	case ModeAutoWinter:
		return tokenAutoWinter
	case ModeAutoSummer:
		return tokenAutoSummer
	default:
		return fmt.Sprintf("OperationMode(%d)", int(m))
	}
}

func (m OperationMode) MarshalJSON() ([]byte, error) {
	if m < ModeManual || m > ModeAutoSummer {
		return nil, fmt.Errorf("marshal operation mode: unknown value %d", int(m))
	}
	return json.Marshal(m.String())
}

func (m *OperationMode) UnmarshalJSON(b []byte) error {
	var token string
	if err := json.Unmarshal(b, &token); err != nil {
		return fmt.Errorf("operation mode must be a string: %w", err)
	}
	parsed, err := ParseOperationMode(token)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ValveAction is the command accepted by POST /valve/{n}.
type ValveAction string

const (
	ValveOpen  ValveAction = "open"
	ValveClose ValveAction = "close"
)

// ParseValveAction validates the action token.
func ParseValveAction(token string) (ValveAction, error) {
	switch ValveAction(token) {
	case ValveOpen, ValveClose:
		return ValveAction(token), nil
	default:
		return "", newValidationError("valve action", fmt.Sprintf("%q", token), "expected open or close")
	}
}
