package dialer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/adrijh/echo-lib/internal/gateway"
	session "github.com/adrijh/echo-lib/pkg/schemas/session/v1"
)

type CallManagerConfig struct {
	TrunkID         string
	RoomIdleTimeout time.Duration
}

// CallManager owns a room from creation to cleanup. The reservation
// phase (room create + metadata write) runs inline in the consumer
// path; the dial itself runs as a detached supervised task.
type CallManager struct {
	gw  gateway.RoomGateway
	cfg CallManagerConfig
	log *slog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
	wg       sync.WaitGroup
}

func NewCallManager(gw gateway.RoomGateway, cfg CallManagerConfig, logger *slog.Logger) *CallManager {
	return &CallManager{
		gw:       gw,
		cfg:      cfg,
		log:      logger,
		inFlight: make(map[string]struct{}),
	}
}

// CreateRoom creates the externally visible room and writes the
// reservation metadata so the next allocator listing pass observes it.
// The room is removed again if the metadata write fails.
func (m *CallManager) CreateRoom(ctx context.Context, ev *session.StartSessionRequest, line string) (string, error) {
	roomName := "room-" + ev.RoomID

	if err := m.gw.CreateRoom(ctx, roomName, m.cfg.RoomIdleTimeout); err != nil {
		return "", fmt.Errorf("create room %s: %w", roomName, err)
	}

	meta := gateway.RoomMetadata{
		LinePhone:     line,
		OpportunityID: ev.OpportunityID,
		CustomerPhone: ev.PhoneNumber,
		CreatedAt:     ev.Timestamp.Time,
	}
	raw, err := meta.Encode()
	if err == nil {
		err = m.gw.UpdateRoomMetadata(ctx, roomName, raw)
	}
	if err != nil {
		m.cleanupRoom(ctx, roomName)
		return "", fmt.Errorf("write reservation metadata for %s: %w", roomName, err)
	}
	return roomName, nil
}

// LaunchCall hands the dial to a supervised background task and
// returns immediately, freeing the consumer loop. Completion removes
// the task from the live set; a failed call is logged by the
// supervisor, never propagated, and never crashes the process.
func (m *CallManager) LaunchCall(ctx context.Context, roomName string, ev *session.StartSessionRequest, line string) {
	m.mu.Lock()
	m.inFlight[roomName] = struct{}{}
	m.mu.Unlock()

	// The call outlives the message that started it; shutdown drains it
	// through Wait instead of cancelling it mid-dial.
	taskCtx := context.WithoutCancel(ctx)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				m.log.Error("panic in call task", slog.String("room", roomName), slog.Any("panic", r))
			}
			m.mu.Lock()
			delete(m.inFlight, roomName)
			m.mu.Unlock()
		}()

		if err := m.startCall(taskCtx, roomName, ev, line); err != nil {
			m.log.Error("call failed",
				slog.String("room", roomName),
				slog.String("customer", ev.PhoneNumber),
				slog.Any("error", err),
			)
		}
	}()
}

// startCall places the outbound call and starts recording once the
// called party answers. A busy signal is a normal outcome: the room is
// cleaned up and no error surfaces. Any other failure cleans up
// best-effort and is returned to the supervisor.
func (m *CallManager) startCall(ctx context.Context, roomName string, ev *session.StartSessionRequest, line string) error {
	m.log.Info("initiating call",
		slog.String("room", roomName),
		slog.String("customer", ev.PhoneNumber),
		slog.String("line", line),
	)

	res, err := m.gw.PlaceOutboundCall(ctx, gateway.CallRequest{
		TrunkID:     m.cfg.TrunkID,
		FromLine:    line,
		ToNumber:    ev.PhoneNumber,
		RoomName:    roomName,
		Identity:    "sip-" + ev.OpportunityID,
		DisplayName: ev.ParticipantName(),
	})
	if err != nil {
		m.cleanupRoom(ctx, roomName)
		return fmt.Errorf("place outbound call: %w", err)
	}

	if res.Outcome == gateway.OutcomeBusy {
		m.log.Warn("called party busy, closing room",
			slog.String("room", roomName),
			slog.String("customer", ev.PhoneNumber),
		)
		m.cleanupRoom(ctx, roomName)
		return nil
	}

	m.log.Info("call answered",
		slog.String("room", roomName),
		slog.String("participant_id", res.ParticipantID),
	)

	if err := m.gw.StartAudioRecording(ctx, roomName, RecordingPath(ev.RoomID)); err != nil {
		m.cleanupRoom(ctx, roomName)
		return fmt.Errorf("start recording: %w", err)
	}
	return nil
}

// cleanupRoom is best-effort and attempted exactly once; a delete
// failure is logged, never re-raised.
func (m *CallManager) cleanupRoom(ctx context.Context, roomName string) {
	if err := m.gw.DeleteRoom(ctx, roomName); err != nil {
		m.log.Error("deleting room failed", slog.String("room", roomName), slog.Any("error", err))
	}
}

// RecordingPath is the deterministic blob path for a room's recording.
func RecordingPath(roomID string) string {
	return fmt.Sprintf("recordings/%s/recording.ogg", roomID)
}

// InFlight reports how many call tasks are currently live.
func (m *CallManager) InFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inFlight)
}

// Wait blocks until all in-flight call tasks complete or ctx expires.
func (m *CallManager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
