package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client talks Twirp-style JSON RPC to the room gateway.
type Client struct {
	http      *resty.Client
	apiKey    string
	apiSecret string
	log       *slog.Logger
}

func NewClient(baseURL, apiKey, apiSecret string, logger *slog.Logger) *Client {
	rc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(30 * time.Second)

	return &Client{
		http:      rc,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		log:       logger,
	}
}

// rpcError is the gateway's wire error shape.
type rpcError struct {
	Code string            `json:"code"`
	Msg  string            `json:"msg"`
	Meta map[string]string `json:"meta"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("gateway rpc failed: %s: %s", e.Code, e.Msg)
}

func (c *Client) call(ctx context.Context, service, method string, req, out any) error {
	token, err := accessToken(c.apiKey, c.apiSecret)
	if err != nil {
		return fmt.Errorf("mint access token: %w", err)
	}

	rpcErr := &rpcError{}
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(out).
		SetError(rpcErr).
		Post("/twirp/livekit." + service + "/" + method)
	if err != nil {
		return fmt.Errorf("%s/%s: %w", service, method, err)
	}
	if resp.IsError() {
		return rpcErr
	}
	return nil
}

func (c *Client) CreateRoom(ctx context.Context, name string, idleTimeout time.Duration) error {
	req := map[string]any{
		"name":          name,
		"empty_timeout": int(idleTimeout.Seconds()),
	}
	return c.call(ctx, "RoomService", "CreateRoom", req, &map[string]any{})
}

func (c *Client) UpdateRoomMetadata(ctx context.Context, name, metadata string) error {
	req := map[string]any{
		"room":     name,
		"metadata": metadata,
	}
	return c.call(ctx, "RoomService", "UpdateRoomMetadata", req, &map[string]any{})
}

func (c *Client) ListActiveRooms(ctx context.Context) ([]ActiveRoom, error) {
	var out struct {
		Rooms []struct {
			Name     string `json:"name"`
			Metadata string `json:"metadata"`
		} `json:"rooms"`
	}
	if err := c.call(ctx, "RoomService", "ListRooms", map[string]any{}, &out); err != nil {
		return nil, err
	}
	rooms := make([]ActiveRoom, 0, len(out.Rooms))
	for _, r := range out.Rooms {
		rooms = append(rooms, ActiveRoom{Name: r.Name, Metadata: r.Metadata})
	}
	return rooms, nil
}

func (c *Client) DeleteRoom(ctx context.Context, name string) error {
	return c.call(ctx, "RoomService", "DeleteRoom", map[string]any{"room": name}, &map[string]any{})
}

// PlaceOutboundCall dials the customer into the room and blocks until
// answered. A busy/unavailable called party comes back as OutcomeBusy,
// not as an error.
func (c *Client) PlaceOutboundCall(ctx context.Context, req CallRequest) (DialResult, error) {
	body := map[string]any{
		"sip_trunk_id":         req.TrunkID,
		"sip_number":           req.FromLine,
		"sip_call_to":          req.ToNumber,
		"room_name":            req.RoomName,
		"participant_identity": req.Identity,
		"participant_name":     req.DisplayName,
		"krisp_enabled":        true,
		"wait_until_answered":  true,
	}
	var out struct {
		ParticipantID string `json:"participant_id"`
	}
	err := c.call(ctx, "SIP", "CreateSIPParticipant", body, &out)
	if err != nil {
		if isBusy(err) {
			return DialResult{Outcome: OutcomeBusy}, nil
		}
		return DialResult{}, err
	}
	return DialResult{Outcome: OutcomeAnswered, ParticipantID: out.ParticipantID}, nil
}

func (c *Client) StartAudioRecording(ctx context.Context, roomName, destinationPath string) error {
	req := map[string]any{
		"room_name":  roomName,
		"audio_only": true,
		"file_outputs": []map[string]any{
			{"filepath": destinationPath},
		},
	}
	var out struct {
		EgressID string `json:"egress_id"`
	}
	if err := c.call(ctx, "Egress", "StartRoomCompositeEgress", req, &out); err != nil {
		return err
	}
	c.log.Info("recording started",
		slog.String("room", roomName),
		slog.String("egress_id", out.EgressID),
	)
	return nil
}

// isBusy maps the gateway's called-party-busy signals (SIP 486, "Busy
// Here", unavailable) to a data-level outcome.
func isBusy(err error) bool {
	rpc, ok := err.(*rpcError)
	if !ok {
		return false
	}
	if rpc.Meta["sip_status_code"] == "486" {
		return true
	}
	if rpc.Code == "unavailable" {
		return true
	}
	return strings.Contains(rpc.Msg, "Busy Here")
}
