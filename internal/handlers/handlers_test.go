package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrijh/echo-lib/internal/dialer"
	session "github.com/adrijh/echo-lib/pkg/schemas/session/v1"
)

type fakeStore struct {
	starts  []string
	ends    []string
	reports map[string]string
	entries []string
	err     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{reports: make(map[string]string)}
}

func (f *fakeStore) SetRoomStart(_ context.Context, roomID, _, _ string, _ time.Time) error {
	f.starts = append(f.starts, roomID)
	return f.err
}

func (f *fakeStore) SetRoomEnd(_ context.Context, roomID string, _ time.Time) error {
	f.ends = append(f.ends, roomID)
	return f.err
}

func (f *fakeStore) SetRoomReport(_ context.Context, roomID, reportURL string) error {
	f.reports[roomID] = reportURL
	return f.err
}

func (f *fakeStore) AddContextEntry(_ context.Context, _, _, kind, _ string, _ time.Time) error {
	f.entries = append(f.entries, kind)
	return f.err
}

type fakeAllocator struct {
	line string
	err  error
}

func (f *fakeAllocator) Allocate(context.Context, string) (string, error) {
	return f.line, f.err
}

type fakeCalls struct {
	created   []string
	launched  []string
	createErr error
}

func (f *fakeCalls) CreateRoom(_ context.Context, ev *session.StartSessionRequest, _ string) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	name := "room-" + ev.RoomID
	f.created = append(f.created, name)
	return name, nil
}

func (f *fakeCalls) LaunchCall(_ context.Context, roomName string, _ *session.StartSessionRequest, _ string) {
	f.launched = append(f.launched, roomName)
}

type fakeSummaries struct {
	runs []string
	err  error
}

func (f *fakeSummaries) Run(_ context.Context, roomID, _ string) error {
	f.runs = append(f.runs, roomID)
	return f.err
}

type captureDead struct {
	reasons []string
}

func (c *captureDead) Publish(_ context.Context, _ []byte, reason string) error {
	c.reasons = append(c.reasons, reason)
	return nil
}

func testDeps() (Deps, *fakeStore, *fakeAllocator, *fakeCalls, *fakeSummaries, *captureDead) {
	st := newFakeStore()
	al := &fakeAllocator{line: "+34911111111"}
	ca := &fakeCalls{}
	su := &fakeSummaries{}
	de := &captureDead{}
	d := Deps{
		Store:     st,
		Allocator: al,
		Calls:     ca,
		Summaries: su,
		Dead:      de,
		Log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return d, st, al, ca, su, de
}

func TestSessionStartedRecordsStart(t *testing.T) {
	d, st, _, _, _, _ := testDeps()
	r := BuildRegistry(d)

	err := r.Dispatch(context.Background(), session.NewSessionStarted("r1", "op-1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, st.starts)
}

func TestSessionEndedRunsEndReportAndSummaryInOrder(t *testing.T) {
	d, st, _, _, su, _ := testDeps()
	r := BuildRegistry(d)

	err := r.Dispatch(context.Background(), session.NewSessionEnded("r1", "op-1", "https://blobs/reports/r1.txt"))
	require.NoError(t, err)

	assert.Equal(t, []string{"r1"}, st.ends)
	assert.Equal(t, "https://blobs/reports/r1.txt", st.reports["r1"])
	assert.Equal(t, []string{"r1"}, su.runs)
}

func TestSummaryFailureDoesNotFailDispatch(t *testing.T) {
	d, _, _, _, su, _ := testDeps()
	su.err = errors.New("model down")
	r := BuildRegistry(d)

	err := r.Dispatch(context.Background(), session.NewSessionEnded("r1", "op-1", "https://blobs/reports/r1.txt"))
	assert.NoError(t, err)
}

func TestStartSessionRequestReservesAndDetaches(t *testing.T) {
	d, _, _, ca, _, _ := testDeps()
	r := BuildRegistry(d)

	ev := session.NewStartSessionRequest("r1", "op-1", "+34600000001", "Ada", "Lovelace")
	err := r.Dispatch(context.Background(), ev)
	require.NoError(t, err)

	assert.Equal(t, []string{"room-r1"}, ca.created)
	assert.Equal(t, []string{"room-r1"}, ca.launched)
}

func TestStartSessionRequestDropsOnExhaustion(t *testing.T) {
	d, _, al, ca, _, de := testDeps()
	al.err = dialer.ErrExhausted
	r := BuildRegistry(d)

	ev := session.NewStartSessionRequest("r1", "op-1", "+34600000001", "Ada", "Lovelace")
	err := r.Dispatch(context.Background(), ev)

	// Dropped, not requeued: the dispatch reports success so the
	// consumer acks the message, and a copy lands in the dead letter.
	require.NoError(t, err)
	assert.Empty(t, ca.created)
	assert.Equal(t, []string{"allocation_exhausted"}, de.reasons)
}

func TestStartSessionRequestPropagatesRoomCreateError(t *testing.T) {
	d, _, _, ca, _, _ := testDeps()
	ca.createErr = errors.New("gateway 500")
	r := BuildRegistry(d)

	ev := session.NewStartSessionRequest("r1", "op-1", "+34600000001", "Ada", "Lovelace")
	err := r.Dispatch(context.Background(), ev)
	require.Error(t, err)
	assert.Empty(t, ca.launched)
}

func TestThinHandlersRecordContextEntries(t *testing.T) {
	d, st, _, _, _, _ := testDeps()
	r := BuildRegistry(d)
	ctx := context.Background()

	tpl := &session.SendTemplateMessage{
		Base:        baseFor(session.TypeSendTemplateMessage),
		PhoneNumber: "+34600000001",
		TemplateID:  "tpl-1",
	}
	require.NoError(t, r.Dispatch(ctx, tpl))

	inb := &session.InboundMessageReceived{
		Base:        baseFor(session.TypeInboundMessageReceived),
		PhoneNumber: "+34600000001",
		Body:        "hola",
	}
	require.NoError(t, r.Dispatch(ctx, inb))

	sch := &session.ScheduleCall{
		Base:        baseFor(session.TypeScheduleCall),
		PhoneNumber: "+34600000001",
		ScheduledAt: session.Now(),
	}
	require.NoError(t, r.Dispatch(ctx, sch))

	assert.Equal(t, []string{"template_message", "inbound_message", "scheduled_call"}, st.entries)
}

func baseFor(t session.EventType) session.Base {
	return session.Base{
		Version:       session.Version,
		Type:          t,
		Timestamp:     session.Now(),
		ThreadID:      "11111111-1111-1111-1111-111111111111",
		OpportunityID: "op-1",
	}
}
