package cart

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedAction is returned when a known action type carries a
// payload that does not decode.
var ErrMalformedAction = errors.New("malformed cart action payload")

// Envelope is the wire form of an action: {"type": "...", "payload": {...}}.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Noop is what unknown action types decode to. Reduce ignores it.
type Noop struct {
	Type string
}

func (n Noop) ActionType() string { return n.Type }

// DecodeAction maps an envelope onto a concrete action. Unknown types are
// not an error; they become a Noop so the reducer can ignore them.
func DecodeAction(env Envelope) (Action, error) {
	switch env.Type {
	case TypeAdd:
		var p RawProduct
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		return Add{Product: p}, nil
	case TypeRemove:
		var a Remove
		if err := decodePayload(env, &a); err != nil {
			return nil, err
		}
		return a, nil
	case TypeUpdateQuantity:
		var a UpdateQuantity
		if err := decodePayload(env, &a); err != nil {
			return nil, err
		}
		return a, nil
	case TypeUpdateCustomization:
		var a UpdateCustomization
		if err := decodePayload(env, &a); err != nil {
			return nil, err
		}
		return a, nil
	case TypeToggleSelect:
		var a ToggleSelect
		if err := decodePayload(env, &a); err != nil {
			return nil, err
		}
		return a, nil
	case TypeSelectAll:
		return SelectAll{}, nil
	case TypeDeselectAll:
		return DeselectAll{}, nil
	case TypeClear:
		return Clear{}, nil
	case TypeLoad:
		var a Load
		if err := decodePayload(env, &a); err != nil {
			return nil, err
		}
		return a, nil
	case TypeShowNotification:
		var a ShowNotification
		if err := decodePayload(env, &a); err != nil {
			return nil, err
		}
		return a, nil
	case TypeHideNotification:
		return HideNotification{}, nil
	default:
		return Noop{Type: env.Type}, nil
	}
}

func decodePayload(env Envelope, dst any) error {
	if len(env.Payload) == 0 {
		return fmt.Errorf("%w: %s has no payload", ErrMalformedAction, env.Type)
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedAction, env.Type, err)
	}
	return nil
}
