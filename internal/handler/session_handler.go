package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/examprint/internal/middleware"
	"github.com/stemsi/examprint/internal/model"
	"github.com/stemsi/examprint/internal/response"
	"github.com/stemsi/examprint/internal/service"
	"github.com/stemsi/examprint/internal/validator"
)

// SessionHandler handles session scheduling endpoints.
type SessionHandler struct {
	sessions *service.SessionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *service.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// ListSessions godoc
// GET /api/v1/exams/:examID/sessions
// Hidden and group-restricted sessions are omitted for students.
func (h *SessionHandler) ListSessions(c *gin.Context) {
	examID, ok := paramID(c, "examID")
	if !ok {
		return
	}
	sessions, err := h.sessions.ListSessions(c.Request.Context(), middleware.RequestContext(c), examID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"sessions": sessions})
}

// CreateSession godoc
// POST /api/v1/exams/:examID/sessions
func (h *SessionHandler) CreateSession(c *gin.Context) {
	examID, ok := paramID(c, "examID")
	if !ok {
		return
	}
	var req model.CreateSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, err := h.sessions.CreateSession(c.Request.Context(), middleware.RequestContext(c), examID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, session)
}

// UpdateSession godoc
// PUT /api/v1/sessions/:sessionID
func (h *SessionHandler) UpdateSession(c *gin.Context) {
	sessionID, ok := paramID(c, "sessionID")
	if !ok {
		return
	}
	var req model.UpdateSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, err := h.sessions.UpdateSession(c.Request.Context(), middleware.RequestContext(c), sessionID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, session)
}

// DeleteSession godoc
// DELETE /api/v1/sessions/:sessionID
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	sessionID, ok := paramID(c, "sessionID")
	if !ok {
		return
	}
	if err := h.sessions.RemoveSession(c.Request.Context(), middleware.RequestContext(c), sessionID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Session deleted"})
}

// SetSessionHidden godoc
// PATCH /api/v1/sessions/:sessionID/hidden
func (h *SessionHandler) SetSessionHidden(c *gin.Context) {
	sessionID, ok := paramID(c, "sessionID")
	if !ok {
		return
	}
	var req model.SetHiddenRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.sessions.SetSessionHidden(c.Request.Context(), middleware.RequestContext(c), sessionID, *req.Hidden); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"hidden": *req.Hidden})
}

// ToggleShowResults godoc
// POST /api/v1/sessions/:sessionID/show-results
func (h *SessionHandler) ToggleShowResults(c *gin.Context) {
	sessionID, ok := paramID(c, "sessionID")
	if !ok {
		return
	}
	shown, err := h.sessions.ToggleShowResults(c.Request.Context(), middleware.RequestContext(c), sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"show_results": shown})
}

// RestrictGroups godoc
// PUT /api/v1/sessions/:sessionID/groups
func (h *SessionHandler) RestrictGroups(c *gin.Context) {
	sessionID, ok := paramID(c, "sessionID")
	if !ok {
		return
	}
	var req model.RestrictGroupsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, err := h.sessions.RestrictToGroups(c.Request.Context(), middleware.RequestContext(c), sessionID, req.GroupIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, session)
}
