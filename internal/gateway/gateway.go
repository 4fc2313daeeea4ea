// Package gateway wraps the external room/telephony service. Business
// logic depends only on RoomGateway; provider specifics stay in the
// HTTP client.
package gateway

import (
	"context"
	"encoding/json"
	"time"
)

// ActiveRoom is one currently live room as reported by the gateway.
type ActiveRoom struct {
	Name     string
	Metadata string
}

// RoomMetadata is written when a room is reserved and read back by the
// allocator on every listing pass. The gateway is the authoritative
// store for it.
type RoomMetadata struct {
	LinePhone     string    `json:"ai_phone"`
	OpportunityID string    `json:"opportunity_id"`
	CustomerPhone string    `json:"user_phone"`
	CreatedAt     time.Time `json:"created_at"`
}

func (m RoomMetadata) Encode() (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func ParseRoomMetadata(raw string) (RoomMetadata, error) {
	var m RoomMetadata
	err := json.Unmarshal([]byte(raw), &m)
	return m, err
}

// CallRequest describes one outbound dial.
type CallRequest struct {
	TrunkID     string
	FromLine    string
	ToNumber    string
	RoomName    string
	Identity    string
	DisplayName string
}

type DialOutcome string

const (
	OutcomeAnswered DialOutcome = "answered"
	// OutcomeBusy means the called party was busy or unavailable. It is
	// a non-fatal dialing result, not an error.
	OutcomeBusy DialOutcome = "busy"
)

type DialResult struct {
	Outcome       DialOutcome
	ParticipantID string
}

// RoomGateway is the narrow surface the core uses. Callers branch on
// DialResult data; only fatal failures come back as errors.
type RoomGateway interface {
	CreateRoom(ctx context.Context, name string, idleTimeout time.Duration) error
	UpdateRoomMetadata(ctx context.Context, name, metadata string) error
	ListActiveRooms(ctx context.Context) ([]ActiveRoom, error)
	DeleteRoom(ctx context.Context, name string) error
	PlaceOutboundCall(ctx context.Context, req CallRequest) (DialResult, error)
	StartAudioRecording(ctx context.Context, roomName, destinationPath string) error
}
