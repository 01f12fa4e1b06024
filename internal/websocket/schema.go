package websocket

import "github.com/stemsi/exstem-assessment/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing Action = "ping"
)

// RequestEnvelope is the only client frame shape; the action selects behavior.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventProgress Event = "progress"
	EventError    Event = "error"
	EventPong     Event = "pong"
)

// ProgressResponse carries one ingestion progress event.
type ProgressResponse struct {
	Event    Event             `json:"event"`
	Progress model.IngestEvent `json:"progress"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
