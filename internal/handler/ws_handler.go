package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/response"
	"github.com/stemsi/exstem-assessment/internal/service"
	ws "github.com/stemsi/exstem-assessment/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// ProgressSource delivers ingestion events for one curriculum.
type ProgressSource interface {
	SubscribeIngest(ctx context.Context, curriculumID string) (<-chan model.IngestEvent, func() error, error)
}

// CurriculumLookup resolves a curriculum's current state.
type CurriculumLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Curriculum, error)
}

// WSHandler streams curriculum ingestion progress over WebSocket.
type WSHandler struct {
	source    ProgressSource
	curricula CurriculumLookup
	log       zerolog.Logger
	upgrader  websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(source ProgressSource, curricula CurriculumLookup, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		source:    source,
		curricula: curricula,
		log:       log.With().Str("component", "ws_handler").Logger(),
		upgrader:  buildUpgrader(allowedOrigins),
	}
}

// IngestProgress godoc
// WS /ws/v1/curricula/:id/progress?token=
// Forwards progress events until ingestion finishes or the client leaves.
// A document that already finished gets one final event and the socket closes.
func (h *WSHandler) IngestProgress(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	if _, err := h.curricula.GetByID(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrCurriculumNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrCurriculumNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().Str("curriculum_id", id.String()).Logger()

	// The hijacked request's context is not cancelled on client disconnect.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, unsubscribe, err := h.source.SubscribeIngest(ctx, id.String())
	if err != nil {
		wsLog.Error().Err(err).Msg("Progress subscribe failed")
		ws.WriteError(conn, "progress stream unavailable")
		return
	}
	defer unsubscribe()

	// Re-read after subscribing so a completion between the first lookup and
	// the subscription is not missed.
	curriculum, err := h.curricula.GetByID(ctx, id)
	if err != nil {
		ws.WriteError(conn, "curriculum lookup failed")
		return
	}
	if ev, done := finishedEvent(curriculum); done {
		ws.WriteProgress(conn, ev)
		ws.WriteClose(conn, string(ev.Stage))
		return
	}

	wsLog.Debug().Msg("Progress listener connected")

	replies := make(chan any, 1)
	readerDone := make(chan struct{})
	go h.readLoop(conn, wsLog, replies, readerDone)

	for {
		select {
		case <-readerDone:
			return
		case reply := <-replies:
			if err := ws.WriteTyped(conn, reply); err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := ws.WriteProgress(conn, ev); err != nil {
				wsLog.Debug().Err(err).Msg("Progress write failed")
				return
			}
			if ev.Stage.Terminal() {
				ws.WriteClose(conn, string(ev.Stage))
				return
			}
		}
	}
}

// readLoop owns the read side of conn. Replies go back through the main loop
// because gorilla connections allow only one concurrent writer.
func (h *WSHandler) readLoop(conn *websocket.Conn, wsLog zerolog.Logger, replies chan<- any, done chan<- struct{}) {
	defer close(done)
	for {
		var msg ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			}
			return
		}

		var reply any
		switch msg.Action {
		case ws.ActionPing:
			reply = ws.PongResponse{Event: ws.EventPong}
		default:
			reply = ws.ErrorResponse{Event: ws.EventError, Error: "unknown action: " + string(msg.Action)}
		}
		select {
		case replies <- reply:
		case <-time.After(time.Second):
		}
	}
}

// finishedEvent synthesizes the terminal event for a document whose ingestion
// already ended.
func finishedEvent(c *model.Curriculum) (model.IngestEvent, bool) {
	ev := model.IngestEvent{
		CurriculumID:  c.DocumentID(),
		Status:        c.Status,
		TotalChunks:   c.TotalChunks,
		VectorIndexed: c.VectorIndexed,
		Error:         c.IngestError,
		At:            c.UpdatedAt,
	}
	switch c.Status {
	case model.IngestStatusIndexed, model.IngestStatusStored:
		ev.Stage = model.IngestStageCompleted
	case model.IngestStatusFailed:
		ev.Stage = model.IngestStageFailed
	default:
		return model.IngestEvent{}, false
	}
	return ev, true
}
