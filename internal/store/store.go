// Package store persists room and conversation-context rows. The
// worker treats it as a thin collaborator; the gateway, not this
// store, is authoritative for live call state.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Room struct {
	RoomID        string
	ThreadID      string
	OpportunityID string
	StartedAt     *time.Time
	EndedAt       *time.Time
	ReportURL     *string
}

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() { s.pool.Close() }

const createTablesSQL = `
CREATE TABLE IF NOT EXISTS rooms (
    room_id          TEXT PRIMARY KEY,
    thread_id        UUID NOT NULL,
    opportunity_id   TEXT NOT NULL,
    start_timestamp  TIMESTAMPTZ,
    end_timestamp    TIMESTAMPTZ,
    report_url       TEXT
);

CREATE TABLE IF NOT EXISTS context_entries (
    id               BIGSERIAL PRIMARY KEY,
    thread_id        UUID NOT NULL,
    opportunity_id   TEXT NOT NULL,
    kind             TEXT NOT NULL,
    body             TEXT,
    occurred_at      TIMESTAMPTZ NOT NULL
);
`

// Setup creates the schema if it does not exist yet.
func (s *Store) Setup(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, createTablesSQL)
	return err
}

// SetRoomStart records the start of a session. The first recorded
// start wins; replays do not move it.
func (s *Store) SetRoomStart(ctx context.Context, roomID, threadID, opportunityID string, start time.Time) error {
	const sql = `
INSERT INTO rooms (room_id, thread_id, opportunity_id, start_timestamp)
VALUES ($1, $2, $3, $4)
ON CONFLICT (room_id) DO UPDATE
SET start_timestamp = COALESCE(rooms.start_timestamp, EXCLUDED.start_timestamp)`
	_, err := s.pool.Exec(ctx, sql, roomID, threadID, opportunityID, start)
	return err
}

// SetRoomEnd records the end of a session; the first recorded end wins.
func (s *Store) SetRoomEnd(ctx context.Context, roomID string, end time.Time) error {
	const sql = `
UPDATE rooms
SET end_timestamp = COALESCE(rooms.end_timestamp, $2)
WHERE room_id = $1`
	_, err := s.pool.Exec(ctx, sql, roomID, end)
	return err
}

// SetRoomReport attaches the transcript report URL to a room.
func (s *Store) SetRoomReport(ctx context.Context, roomID, reportURL string) error {
	const sql = `
UPDATE rooms
SET report_url = COALESCE($2, rooms.report_url)
WHERE room_id = $1`
	_, err := s.pool.Exec(ctx, sql, roomID, reportURL)
	return err
}

// AddContextEntry appends one conversation fact (template message,
// inbound message, scheduled call) to the thread's history.
func (s *Store) AddContextEntry(ctx context.Context, threadID, opportunityID, kind, body string, occurredAt time.Time) error {
	const sql = `
INSERT INTO context_entries (thread_id, opportunity_id, kind, body, occurred_at)
VALUES ($1, $2, $3, $4, $5)`
	_, err := s.pool.Exec(ctx, sql, threadID, opportunityID, kind, body, occurredAt)
	return err
}

// ListRooms returns all recorded rooms, most recently started first.
func (s *Store) ListRooms(ctx context.Context) ([]Room, error) {
	const sql = `
SELECT room_id, thread_id, opportunity_id, start_timestamp, end_timestamp, report_url
FROM rooms
ORDER BY start_timestamp DESC NULLS LAST`
	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Room
	for rows.Next() {
		var r Room
		if err := rows.Scan(&r.RoomID, &r.ThreadID, &r.OpportunityID, &r.StartedAt, &r.EndedAt, &r.ReportURL); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
