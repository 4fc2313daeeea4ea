package session

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Version is the only wire version this package understands.
const Version = "v1"

type EventType string

const (
	TypeSessionStarted         EventType = "session_started"
	TypeSessionEnded           EventType = "session_ended"
	TypeStartSessionRequest    EventType = "start_session_request"
	TypeSendTemplateMessage    EventType = "send_template_message"
	TypeInboundMessageReceived EventType = "inbound_message_received"
	TypeScheduleCall           EventType = "schedule_call"
)

// Event is one immutable lifecycle fact delivered over the queue.
// Concrete types embed Base and add their variant fields.
type Event interface {
	Kind() EventType
	Common() *Base
	Validate() error
}

// Base carries the fields shared by every event variant.
type Base struct {
	Version string    `json:"version"`
	Type    EventType `json:"type"`
	// Timestamp is epoch seconds on the wire, always UTC once decoded.
	Timestamp UnixTime `json:"timestamp"`
	// ThreadID correlates all events of one conversation. Generated on
	// decode when absent.
	ThreadID      string         `json:"thread_id,omitempty"`
	OpportunityID string         `json:"opportunity_id"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

func (b *Base) Common() *Base { return b }

// UnixTime marshals as a numeric epoch-seconds value. Decoding accepts
// a number, or an RFC3339 string carrying an explicit offset; a string
// timestamp without a zone is rejected.
type UnixTime struct {
	time.Time
}

func Now() UnixTime { return UnixTime{time.Now().UTC()} }

func At(t time.Time) UnixTime { return UnixTime{t.UTC()} }

func (t UnixTime) MarshalJSON() ([]byte, error) {
	sec := float64(t.UnixNano()) / float64(time.Second)
	return []byte(strconv.FormatFloat(sec, 'f', -1, 64)), nil
}

func (t *UnixTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("timestamp must be epoch seconds or zone-aware RFC3339: %w", err)
		}
		t.Time = parsed.UTC()
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("timestamp must be numeric epoch seconds: %w", err)
	}
	sec, frac := math.Modf(f)
	t.Time = time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC()
	return nil
}
