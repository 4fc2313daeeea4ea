// Package handlers wires business logic to event types. BuildRegistry
// is called once at startup; the resulting registry is what the
// consumer dispatches through.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/adrijh/echo-lib/internal/dialer"
	"github.com/adrijh/echo-lib/internal/registry"
	"github.com/adrijh/echo-lib/pkg/pubsub"
	session "github.com/adrijh/echo-lib/pkg/schemas/session/v1"
)

// RoomStore is the slice of the relational store the handlers use.
type RoomStore interface {
	SetRoomStart(ctx context.Context, roomID, threadID, opportunityID string, start time.Time) error
	SetRoomEnd(ctx context.Context, roomID string, end time.Time) error
	SetRoomReport(ctx context.Context, roomID, reportURL string) error
	AddContextEntry(ctx context.Context, threadID, opportunityID, kind, body string, occurredAt time.Time) error
}

// LineAllocator reserves an outbound line for a customer.
type LineAllocator interface {
	Allocate(ctx context.Context, customerPhone string) (string, error)
}

// CallStarter owns the room lifecycle for an outbound call.
type CallStarter interface {
	CreateRoom(ctx context.Context, ev *session.StartSessionRequest, line string) (string, error)
	LaunchCall(ctx context.Context, roomName string, ev *session.StartSessionRequest, line string)
}

// SummaryRunner produces and delivers the written session summary.
type SummaryRunner interface {
	Run(ctx context.Context, roomID, reportURL string) error
}

type Deps struct {
	Store     RoomStore
	Allocator LineAllocator
	Calls     CallStarter
	Summaries SummaryRunner
	Dead      pubsub.DeadLetter
	Log       *slog.Logger
}

// BuildRegistry registers every handler in its dispatch order.
func BuildRegistry(d Deps) *registry.Registry {
	if d.Dead == nil {
		d.Dead = pubsub.NopDeadLetter{}
	}
	r := registry.New()

	r.RegisterFunc(session.TypeSessionStarted, d.setSessionStart)

	r.RegisterFunc(session.TypeSessionEnded, d.setSessionEnd)
	r.RegisterFunc(session.TypeSessionEnded, d.setSessionReport)
	r.RegisterFunc(session.TypeSessionEnded, d.createSessionSummary)

	r.RegisterFunc(session.TypeStartSessionRequest, d.startCall)

	r.RegisterFunc(session.TypeSendTemplateMessage, d.recordTemplateMessage)
	r.RegisterFunc(session.TypeInboundMessageReceived, d.recordInboundMessage)
	r.RegisterFunc(session.TypeScheduleCall, d.recordScheduledCall)

	return r
}

func (d Deps) setSessionStart(ctx context.Context, ev session.Event) error {
	e := ev.(*session.SessionStarted)
	return d.Store.SetRoomStart(ctx, e.RoomID, e.ThreadID, e.OpportunityID, e.Timestamp.Time)
}

func (d Deps) setSessionEnd(ctx context.Context, ev session.Event) error {
	e := ev.(*session.SessionEnded)
	return d.Store.SetRoomEnd(ctx, e.RoomID, e.Timestamp.Time)
}

func (d Deps) setSessionReport(ctx context.Context, ev session.Event) error {
	e := ev.(*session.SessionEnded)
	return d.Store.SetRoomReport(ctx, e.RoomID, e.ReportURL)
}

// createSessionSummary never fails the dispatch chain: a summary is a
// best-effort side product, and redelivering the event would re-run
// the earlier handlers.
func (d Deps) createSessionSummary(ctx context.Context, ev session.Event) error {
	e := ev.(*session.SessionEnded)
	if err := d.Summaries.Run(ctx, e.RoomID, e.ReportURL); err != nil {
		d.Log.Error("session summary failed",
			slog.String("room", e.RoomID),
			slog.Any("error", err),
		)
	}
	return nil
}

// startCall is the allocator-backed session-start path: reserve a
// line, create the room, then detach the dial so the consumer loop is
// freed. An exhausted retry budget drops the event (dead-lettered, not
// requeued).
func (d Deps) startCall(ctx context.Context, ev session.Event) error {
	e := ev.(*session.StartSessionRequest)

	line, err := d.Allocator.Allocate(ctx, e.PhoneNumber)
	if errors.Is(err, dialer.ErrExhausted) {
		d.Log.Error("dropping start request, no line freed",
			slog.String("customer", e.PhoneNumber),
			slog.String("thread_id", e.ThreadID),
		)
		if body, encErr := session.Encode(e); encErr == nil {
			if dlErr := d.Dead.Publish(ctx, body, "allocation_exhausted"); dlErr != nil {
				d.Log.Error("dead-letter publish failed", slog.Any("error", dlErr))
			}
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("allocate line for %s: %w", e.PhoneNumber, err)
	}

	roomName, err := d.Calls.CreateRoom(ctx, e, line)
	if err != nil {
		return err
	}

	d.Calls.LaunchCall(ctx, roomName, e, line)
	return nil
}

func (d Deps) recordTemplateMessage(ctx context.Context, ev session.Event) error {
	e := ev.(*session.SendTemplateMessage)
	return d.Store.AddContextEntry(ctx, e.ThreadID, e.OpportunityID, "template_message", e.TemplateID, e.Timestamp.Time)
}

func (d Deps) recordInboundMessage(ctx context.Context, ev session.Event) error {
	e := ev.(*session.InboundMessageReceived)
	return d.Store.AddContextEntry(ctx, e.ThreadID, e.OpportunityID, "inbound_message", e.Body, e.Timestamp.Time)
}

func (d Deps) recordScheduledCall(ctx context.Context, ev session.Event) error {
	e := ev.(*session.ScheduleCall)
	body := e.ScheduledAt.UTC().Format(time.RFC3339)
	return d.Store.AddContextEntry(ctx, e.ThreadID, e.OpportunityID, "scheduled_call", body, e.Timestamp.Time)
}
