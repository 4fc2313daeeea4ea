package dialer

import (
	"context"
	"sync"
	"time"

	"github.com/adrijh/echo-lib/internal/gateway"
)

// fakeGateway is an in-memory RoomGateway. Tests drive busy-state by
// adding and removing rooms, the same way live rooms appear and
// disappear at the real gateway.
type fakeGateway struct {
	mu         sync.Mutex
	rooms      map[string]string
	deleted    []string
	recordings map[string]string

	dialFn    func(req gateway.CallRequest) (gateway.DialResult, error)
	createErr error
	metaErr   error
	listErr   error
	deleteErr error
	recordErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		rooms:      make(map[string]string),
		recordings: make(map[string]string),
	}
}

func (f *fakeGateway) addActiveCall(name, customerPhone, linePhone string) {
	meta := gateway.RoomMetadata{
		LinePhone:     linePhone,
		OpportunityID: "op-" + name,
		CustomerPhone: customerPhone,
		CreatedAt:     time.Now().UTC(),
	}
	raw, _ := meta.Encode()
	f.mu.Lock()
	f.rooms[name] = raw
	f.mu.Unlock()
}

func (f *fakeGateway) endCall(name string) {
	f.mu.Lock()
	delete(f.rooms, name)
	f.mu.Unlock()
}

func (f *fakeGateway) hasRoom(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.rooms[name]
	return ok
}

func (f *fakeGateway) CreateRoom(_ context.Context, name string, _ time.Duration) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	f.rooms[name] = ""
	f.mu.Unlock()
	return nil
}

func (f *fakeGateway) UpdateRoomMetadata(_ context.Context, name, metadata string) error {
	if f.metaErr != nil {
		return f.metaErr
	}
	f.mu.Lock()
	f.rooms[name] = metadata
	f.mu.Unlock()
	return nil
}

func (f *fakeGateway) ListActiveRooms(_ context.Context) ([]gateway.ActiveRoom, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rooms := make([]gateway.ActiveRoom, 0, len(f.rooms))
	for name, meta := range f.rooms {
		rooms = append(rooms, gateway.ActiveRoom{Name: name, Metadata: meta})
	}
	return rooms, nil
}

func (f *fakeGateway) DeleteRoom(_ context.Context, name string) error {
	f.mu.Lock()
	f.deleted = append(f.deleted, name)
	f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.endCall(name)
	return nil
}

func (f *fakeGateway) PlaceOutboundCall(_ context.Context, req gateway.CallRequest) (gateway.DialResult, error) {
	if f.dialFn != nil {
		return f.dialFn(req)
	}
	return gateway.DialResult{Outcome: gateway.OutcomeAnswered, ParticipantID: "pa-1"}, nil
}

func (f *fakeGateway) StartAudioRecording(_ context.Context, roomName, destinationPath string) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	f.mu.Lock()
	f.recordings[roomName] = destinationPath
	f.mu.Unlock()
	return nil
}
