package session

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// DecodeError marks a payload that can never be processed: malformed
// JSON, an unknown tag, a version mismatch, or failed validation.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode session event: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("decode session event: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode parses and validates one wire payload. It is total: every
// malformed input yields a *DecodeError, never a panic.
func Decode(body []byte) (Event, error) {
	var head struct {
		Version string    `json:"version"`
		Type    EventType `json:"type"`
	}
	if err := json.Unmarshal(body, &head); err != nil {
		return nil, &DecodeError{Reason: "malformed payload", Err: err}
	}
	if head.Version != Version {
		return nil, &DecodeError{Reason: fmt.Sprintf("unsupported version %q", head.Version)}
	}

	ev := newEvent(head.Type)
	if ev == nil {
		return nil, &DecodeError{Reason: fmt.Sprintf("unknown event type %q", head.Type)}
	}
	if err := json.Unmarshal(body, ev); err != nil {
		return nil, &DecodeError{Reason: "malformed fields", Err: err}
	}

	base := ev.Common()
	if base.Timestamp.IsZero() {
		base.Timestamp = Now()
	}
	base.Timestamp = UnixTime{base.Timestamp.UTC()}
	if base.ThreadID == "" {
		base.ThreadID = uuid.NewString()
	}

	if err := ev.Validate(); err != nil {
		return nil, &DecodeError{Reason: "validation failed", Err: err}
	}
	return ev, nil
}

// Encode is the exact inverse of Decode.
func Encode(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}

func newEvent(t EventType) Event {
	switch t {
	case TypeSessionStarted:
		return &SessionStarted{}
	case TypeSessionEnded:
		return &SessionEnded{}
	case TypeStartSessionRequest:
		return &StartSessionRequest{}
	case TypeSendTemplateMessage:
		return &SendTemplateMessage{}
	case TypeInboundMessageReceived:
		return &InboundMessageReceived{}
	case TypeScheduleCall:
		return &ScheduleCall{}
	default:
		return nil
	}
}
