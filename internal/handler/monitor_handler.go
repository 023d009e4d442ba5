package handler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/examprint/internal/config"
	"github.com/stemsi/examprint/internal/middleware"
	"github.com/stemsi/examprint/internal/model"
	"github.com/stemsi/examprint/internal/response"
	"github.com/stemsi/examprint/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

// MonitorHandler streams a session's access log to staff.
type MonitorHandler struct {
	rdb      *redis.Client
	sessions *service.SessionService
	results  *service.ResultService
	log      zerolog.Logger
}

func NewMonitorHandler(
	rdb *redis.Client,
	sessions *service.SessionService,
	results *service.ResultService,
	log zerolog.Logger,
) *MonitorHandler {
	return &MonitorHandler{
		rdb:      rdb,
		sessions: sessions,
		results:  results,
		log:      log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorSessionSSE godoc
// GET /api/v1/sessions/:sessionID/monitor
// Sends a snapshot of every print, then forwards each log append as it
// happens. Snapshots are re-sent periodically once somebody is active.
func (h *MonitorHandler) MonitorSessionSSE(c *gin.Context) {
	sessionID, ok := paramID(c, "sessionID")
	if !ok {
		return
	}

	rc := middleware.RequestContext(c)
	reqCtx := c.Request.Context()

	session, err := h.sessions.GetSession(reqCtx, rc, sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	h.sendSnapshot(c, reqCtx, rc, session)

	pubsub := h.rdb.Subscribe(reqCtx, config.CacheKey.SessionMonitorChannel(sessionID))
	defer pubsub.Close()

	ch := pubsub.Channel()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	active := false

	sessLog := h.log.With().Int64("session_id", sessionID).Int64("user_id", rc.UserID).Logger()
	sessLog.Info().Msg("Staff attached to live monitor SSE")

	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	for {
		select {
		case <-reqCtx.Done():
			sessLog.Info().Msg("Staff disconnected from live monitor SSE")
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			// Payload is already a JSON-encoded model.MonitorEvent.
			c.Writer.Write([]byte("data: "))
			c.Writer.Write([]byte(msg.Payload))
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
			active = true

		case <-refreshTicker.C:
			if !active {
				continue
			}
			h.sendSnapshot(c, reqCtx, rc, session)
			active = false

		case <-keepAliveTicker.C:
			c.Writer.Write([]byte("data: "))
			c.Writer.Write(pingPayload)
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		}
	}
}

// sendSnapshot writes the current state of every print of the session.
func (h *MonitorHandler) sendSnapshot(c *gin.Context, parent context.Context, rc model.RequestContext, session *model.Session) {
	ctx, cancel := context.WithTimeout(parent, refreshTimeout)
	defer cancel()

	results, err := h.results.SessionResults(ctx, rc, session.ID)
	if err != nil {
		h.log.Warn().Err(err).Int64("session_id", session.ID).Msg("Failed to build monitor snapshot")
		return
	}

	finished := 0
	for i := range results {
		if results[i].Print.Finished {
			finished++
		}
	}

	c.SSEvent("message", gin.H{
		"type": "snapshot",
		"data": gin.H{
			"session": gin.H{
				"id":         session.ID,
				"title":      session.Title,
				"modality":   session.Modality,
				"start_time": session.StartTime,
				"end_time":   session.EndTime,
				"open":       session.IsOpen(time.Now()),
			},
			"stats": gin.H{
				"total_prints":      len(results),
				"total_finished":    finished,
				"total_in_progress": len(results) - finished,
			},
			"prints": results,
		},
	})
	c.Writer.Flush()
}
