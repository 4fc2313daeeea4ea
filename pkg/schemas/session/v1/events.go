package session

import "github.com/google/uuid"

// SessionStarted is emitted by the voice agent once a call room has a
// live participant.
type SessionStarted struct {
	Base
	RoomID string `json:"room_id"`
}

func (e *SessionStarted) Kind() EventType { return TypeSessionStarted }

func (e *SessionStarted) Validate() error {
	ve := &ValidationError{}
	e.validateBase(ve)
	if e.RoomID == "" {
		ve.add("room_id", "required")
	}
	return ve.orNil()
}

// SessionEnded is emitted when a call room closes; ReportURL points at
// the stored transcript for the session.
type SessionEnded struct {
	Base
	RoomID    string `json:"room_id"`
	ReportURL string `json:"report_url"`
}

func (e *SessionEnded) Kind() EventType { return TypeSessionEnded }

func (e *SessionEnded) Validate() error {
	ve := &ValidationError{}
	e.validateBase(ve)
	if e.RoomID == "" {
		ve.add("room_id", "required")
	}
	if e.ReportURL == "" {
		ve.add("report_url", "required")
	}
	return ve.orNil()
}

// StartSessionRequest asks the worker to place an outbound call to the
// customer behind an opportunity.
type StartSessionRequest struct {
	Base
	RoomID      string `json:"room_id"`
	PhoneNumber string `json:"phone_number"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
}

func (e *StartSessionRequest) Kind() EventType { return TypeStartSessionRequest }

func (e *StartSessionRequest) Validate() error {
	ve := &ValidationError{}
	e.validateBase(ve)
	if e.RoomID == "" {
		ve.add("room_id", "required")
	}
	if e.PhoneNumber == "" {
		ve.add("phone_number", "required")
	}
	if e.FirstName == "" {
		ve.add("first_name", "required")
	}
	return ve.orNil()
}

// ParticipantName is the display name dialed parties see.
func (e *StartSessionRequest) ParticipantName() string {
	if e.LastName == "" {
		return e.FirstName
	}
	return e.FirstName + " " + e.LastName
}

// SendTemplateMessage requests delivery of a templated message to the
// customer over an out-of-band channel.
type SendTemplateMessage struct {
	Base
	PhoneNumber string `json:"phone_number"`
	TemplateID  string `json:"template_id"`
}

func (e *SendTemplateMessage) Kind() EventType { return TypeSendTemplateMessage }

func (e *SendTemplateMessage) Validate() error {
	ve := &ValidationError{}
	e.validateBase(ve)
	if e.PhoneNumber == "" {
		ve.add("phone_number", "required")
	}
	if e.TemplateID == "" {
		ve.add("template_id", "required")
	}
	return ve.orNil()
}

// InboundMessageReceived records a customer-originated message tied to
// the conversation thread.
type InboundMessageReceived struct {
	Base
	PhoneNumber string `json:"phone_number"`
	Body        string `json:"body"`
}

func (e *InboundMessageReceived) Kind() EventType { return TypeInboundMessageReceived }

func (e *InboundMessageReceived) Validate() error {
	ve := &ValidationError{}
	e.validateBase(ve)
	if e.PhoneNumber == "" {
		ve.add("phone_number", "required")
	}
	if e.Body == "" {
		ve.add("body", "required")
	}
	return ve.orNil()
}

// ScheduleCall requests an outbound call at a later instant.
type ScheduleCall struct {
	Base
	PhoneNumber string   `json:"phone_number"`
	ScheduledAt UnixTime `json:"scheduled_at"`
}

func (e *ScheduleCall) Kind() EventType { return TypeScheduleCall }

func (e *ScheduleCall) Validate() error {
	ve := &ValidationError{}
	e.validateBase(ve)
	if e.PhoneNumber == "" {
		ve.add("phone_number", "required")
	}
	if e.ScheduledAt.IsZero() {
		ve.add("scheduled_at", "required")
	}
	return ve.orNil()
}

func (b *Base) validateBase(ve *ValidationError) {
	if b.OpportunityID == "" {
		ve.add("opportunity_id", "required")
	}
	if b.ThreadID != "" {
		if _, err := uuid.Parse(b.ThreadID); err != nil {
			ve.add("thread_id", "must be a uuid")
		}
	}
}

// newBase seeds the shared fields for locally constructed events.
func newBase(t EventType, opportunityID string) Base {
	return Base{
		Version:       Version,
		Type:          t,
		Timestamp:     Now(),
		ThreadID:      uuid.NewString(),
		OpportunityID: opportunityID,
	}
}

func NewStartSessionRequest(roomID, opportunityID, phoneNumber, firstName, lastName string) *StartSessionRequest {
	return &StartSessionRequest{
		Base:        newBase(TypeStartSessionRequest, opportunityID),
		RoomID:      roomID,
		PhoneNumber: phoneNumber,
		FirstName:   firstName,
		LastName:    lastName,
	}
}

func NewSessionStarted(roomID, opportunityID string) *SessionStarted {
	return &SessionStarted{
		Base:   newBase(TypeSessionStarted, opportunityID),
		RoomID: roomID,
	}
}

func NewSessionEnded(roomID, opportunityID, reportURL string) *SessionEnded {
	return &SessionEnded{
		Base:      newBase(TypeSessionEnded, opportunityID),
		RoomID:    roomID,
		ReportURL: reportURL,
	}
}
