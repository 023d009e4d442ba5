package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/examprint/internal/middleware"
	"github.com/stemsi/examprint/internal/response"
	"github.com/stemsi/examprint/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ResultHandler handles results, exports and access logs.
type ResultHandler struct {
	results *service.ResultService
	logs    *service.LogService
}

// NewResultHandler creates a new ResultHandler.
func NewResultHandler(results *service.ResultService, logs *service.LogService) *ResultHandler {
	return &ResultHandler{results: results, logs: logs}
}

// PrintResult godoc
// GET /api/v1/prints/:printID/result
// Students get their own print filtered by the exam's visibility flags.
func (h *ResultHandler) PrintResult(c *gin.Context) {
	printID, ok := paramID(c, "printID")
	if !ok {
		return
	}
	res, err := h.results.PrintResult(c.Request.Context(), middleware.RequestContext(c), printID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

// SessionResults godoc
// GET /api/v1/sessions/:sessionID/results
func (h *ResultHandler) SessionResults(c *gin.Context) {
	sessionID, ok := paramID(c, "sessionID")
	if !ok {
		return
	}
	results, err := h.results.SessionResults(c.Request.Context(), middleware.RequestContext(c), sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"results": results})
}

// ExportSession godoc
// GET /api/v1/sessions/:sessionID/results/export
func (h *ResultHandler) ExportSession(c *gin.Context) {
	sessionID, ok := paramID(c, "sessionID")
	if !ok {
		return
	}
	export, err := h.results.ExportSession(c.Request.Context(), middleware.RequestContext(c), sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.Filename))
	c.Data(http.StatusOK, xlsxContentType, export.Data.Bytes())
}

// PrintLog godoc
// GET /api/v1/prints/:printID/log
func (h *ResultHandler) PrintLog(c *gin.Context) {
	printID, ok := paramID(c, "printID")
	if !ok {
		return
	}
	entries, err := h.logs.ListLog(c.Request.Context(), middleware.RequestContext(c), printID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"log": entries})
}
