// Package dialer allocates outbound lines and drives the call
// lifecycle. Busy-state is never tracked locally: every allocation
// attempt re-derives it from the gateway's active rooms, so a
// reservation becomes visible to other attempts as soon as its room
// metadata is written.
package dialer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/adrijh/echo-lib/internal/gateway"
)

// ErrExhausted is returned when no line freed up within the retry
// budget. The caller drops the event; only the queue layer may decide
// to redeliver it.
var ErrExhausted = errors.New("no line available within retry budget")

type AllocatorConfig struct {
	// Lines are scanned in this fixed order on every attempt.
	Lines []string
	// MaxConcurrentPerLine caps simultaneous calls per line.
	MaxConcurrentPerLine int
	MaxRetries           int
	RetryWait            time.Duration
}

type Allocator struct {
	gw  gateway.RoomGateway
	cfg AllocatorConfig
	log *slog.Logger
}

func NewAllocator(gw gateway.RoomGateway, cfg AllocatorConfig, logger *slog.Logger) *Allocator {
	return &Allocator{gw: gw, cfg: cfg, log: logger}
}

// Allocate picks the first line whose active-call count is under the
// cap, retrying while the customer is already in an active room or all
// lines are saturated. It blocks the reservation phase only, never the
// whole process.
func (a *Allocator) Allocate(ctx context.Context, customerPhone string) (string, error) {
	for attempt := 1; attempt <= a.cfg.MaxRetries; attempt++ {
		customers, usage := a.activePhones(ctx)

		if _, busy := customers[customerPhone]; busy {
			a.log.Warn("customer already in an active room",
				slog.String("customer", customerPhone),
				slog.Int("attempt", attempt),
				slog.Int("max_retries", a.cfg.MaxRetries),
			)
			if err := a.wait(ctx); err != nil {
				return "", err
			}
			continue
		}

		for _, line := range a.cfg.Lines {
			if usage[line] < a.cfg.MaxConcurrentPerLine {
				return line, nil
			}
		}

		a.log.Warn("all lines at capacity",
			slog.Int("attempt", attempt),
			slog.Int("max_retries", a.cfg.MaxRetries),
		)
		if err := a.wait(ctx); err != nil {
			return "", err
		}
	}
	return "", ErrExhausted
}

// activePhones lists active rooms and folds their metadata into the
// set of busy customer phones and the per-line active-call count.
// Rooms with missing or malformed metadata are skipped; a listing
// failure yields empty state rather than aborting the attempt.
func (a *Allocator) activePhones(ctx context.Context) (map[string]struct{}, map[string]int) {
	customers := make(map[string]struct{})
	usage := make(map[string]int, len(a.cfg.Lines))
	for _, line := range a.cfg.Lines {
		usage[line] = 0
	}

	rooms, err := a.gw.ListActiveRooms(ctx)
	if err != nil {
		a.log.Error("listing active rooms failed", slog.Any("error", err))
		return customers, usage
	}

	for _, room := range rooms {
		if room.Metadata == "" {
			continue
		}
		meta, err := gateway.ParseRoomMetadata(room.Metadata)
		if err != nil {
			continue
		}
		if meta.CustomerPhone != "" {
			customers[meta.CustomerPhone] = struct{}{}
		}
		if meta.LinePhone != "" {
			usage[meta.LinePhone]++
		}
	}
	return customers, usage
}

func (a *Allocator) wait(ctx context.Context) error {
	timer := time.NewTimer(a.cfg.RetryWait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
