package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/examprint/internal/middleware"
	"github.com/stemsi/examprint/internal/model"
	"github.com/stemsi/examprint/internal/response"
	"github.com/stemsi/examprint/internal/service"
	ws "github.com/stemsi/examprint/internal/websocket"
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

// WSHandler streams answers of one print over a WebSocket.
type WSHandler struct {
	prints   PrintFlow
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(prints PrintFlow, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		prints:   prints,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// AnswerStream godoc
// WS /api/v1/sessions/:sessionID/print/ws
// Every message goes through the same operations as the REST endpoints, so it
// is logged and gated identically. The print must already be started.
func (h *WSHandler) AnswerStream(c *gin.Context) {
	sessionID, ok := paramID(c, "sessionID")
	if !ok {
		return
	}

	// Client facts are captured once; they do not change over the connection.
	base := middleware.RequestContext(c)

	// Fail before upgrading so the client gets a regular HTTP error.
	p, err := h.prints.GetOwnPrint(c.Request.Context(), base, sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if p.State() == model.PrintPending {
		response.Error(c, service.ErrPrintNotStarted)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int64("user_id", base.UserID).
		Int64("session_id", sessionID).
		Int64("print_id", p.ID).
		Logger()

	wsLog.Info().Msg("Student connected")

	for {
		msg, err := ws.ReadRequest(conn)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		rc := base
		rc.Now = time.Now().UTC()

		switch msg.Action {
		case ws.ActionAnswer:
			h.handleAnswer(c.Request.Context(), conn, wsLog, rc, sessionID, msg)
		case ws.ActionFinish:
			if h.handleFinish(c.Request.Context(), conn, wsLog, rc, sessionID) {
				return
			}
		case ws.ActionPing:
			ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			ws.WriteError(conn, string(response.ErrInvalidPayload), "unknown action: "+string(msg.Action))
		}
	}
}

func (h *WSHandler) handleAnswer(ctx context.Context, conn *websocket.Conn, wsLog zerolog.Logger, rc model.RequestContext, sessionID int64, msg ws.Request) {
	if msg.Index < 0 {
		ws.WriteError(conn, string(response.ErrInvalidID), "index must not be negative")
		return
	}
	res, err := h.prints.AnswerQuestion(ctx, rc, sessionID, msg.Index, msg.Answer)
	if err != nil {
		h.writeServiceError(conn, wsLog, err)
		return
	}
	ws.WriteTyped(conn, ws.AnsweredResponse{
		Event:      ws.EventAnswered,
		Index:      res.Question.Index,
		NotBlank:   res.NotBlank,
		SameDevice: !res.Continuity.Suspicious(),
	})
}

// handleFinish reports whether the connection should be closed.
func (h *WSHandler) handleFinish(ctx context.Context, conn *websocket.Conn, wsLog zerolog.Logger, rc model.RequestContext, sessionID int64) bool {
	p, err := h.prints.Finish(ctx, rc, sessionID)
	if err != nil {
		h.writeServiceError(conn, wsLog, err)
		return false
	}
	wsLog.Info().Msg("Print finished over WebSocket")
	ws.WriteTyped(conn, ws.FinishedResponse{Event: ws.EventFinished, PrintID: p.ID})
	return true
}

func (h *WSHandler) writeServiceError(conn *websocket.Conn, wsLog zerolog.Logger, err error) {
	status, code := response.FromError(err)
	if status >= http.StatusInternalServerError {
		wsLog.Error().Err(err).Msg("Answer stream operation failed")
	}
	ws.WriteError(conn, string(code), response.GetMessage(code))
}
