package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/examprint/internal/middleware"
	"github.com/stemsi/examprint/internal/model"
	"github.com/stemsi/examprint/internal/response"
	"github.com/stemsi/examprint/internal/service"
	"github.com/stemsi/examprint/internal/validator"
)

// PrintFlow is the attempt lifecycle driven by the print endpoints and the
// answer stream. *service.PrintService implements it.
type PrintFlow interface {
	CreatePrint(ctx context.Context, rc model.RequestContext, sessionID, userID int64) (*model.Print, error)
	StartOrResume(ctx context.Context, rc model.RequestContext, sessionID int64) (*model.Print, error)
	GetOwnPrint(ctx context.Context, rc model.RequestContext, sessionID int64) (*model.Print, error)
	AnswerQuestion(ctx context.Context, rc model.RequestContext, sessionID int64, index int, answer string) (*service.AnswerResult, error)
	Finish(ctx context.Context, rc model.RequestContext, sessionID int64) (*model.Print, error)
	Sheet(ctx context.Context, p *model.Print) (*model.Sheet, error)
}

// PrintHandler handles the attempt lifecycle of a print.
type PrintHandler struct {
	prints PrintFlow
}

// NewPrintHandler creates a new PrintHandler.
func NewPrintHandler(prints PrintFlow) *PrintHandler {
	return &PrintHandler{prints: prints}
}

// CreatePrint godoc
// POST /api/v1/sessions/:sessionID/prints
// Pre-creates a pending print for a user, e.g. for a paper session.
func (h *PrintHandler) CreatePrint(c *gin.Context) {
	sessionID, ok := paramID(c, "sessionID")
	if !ok {
		return
	}
	var req model.CreatePrintRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	p, err := h.prints.CreatePrint(c.Request.Context(), middleware.RequestContext(c), sessionID, req.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, p)
}

// StartOrResume godoc
// GET /api/v1/sessions/:sessionID/print
// Creates the caller's print on first access and returns its answer sheet.
func (h *PrintHandler) StartOrResume(c *gin.Context) {
	sessionID, ok := paramID(c, "sessionID")
	if !ok {
		return
	}
	p, err := h.prints.StartOrResume(c.Request.Context(), middleware.RequestContext(c), sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.sheet(c, p)
}

// AnswerQuestion godoc
// PUT /api/v1/sessions/:sessionID/print/answers/:index
// An empty answer blanks the question.
func (h *PrintHandler) AnswerQuestion(c *gin.Context) {
	sessionID, ok := paramID(c, "sessionID")
	if !ok {
		return
	}
	index, ok := paramIndex(c, "index")
	if !ok {
		return
	}
	var req model.AnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := h.prints.AnswerQuestion(c.Request.Context(), middleware.RequestContext(c), sessionID, index, req.Answer)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"index":                   res.Question.Index,
		"answer":                  res.Question.Answer,
		"num_questions_not_blank": res.NotBlank,
		"continuity":              res.Continuity,
	})
}

// Finish godoc
// POST /api/v1/sessions/:sessionID/print/finish
func (h *PrintHandler) Finish(c *gin.Context) {
	sessionID, ok := paramID(c, "sessionID")
	if !ok {
		return
	}
	p, err := h.prints.Finish(c.Request.Context(), middleware.RequestContext(c), sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.sheet(c, p)
}

// sheet answers with the student's view of a print. Scores stay behind the
// result endpoints, which apply the exam's visibility flags.
func (h *PrintHandler) sheet(c *gin.Context, p *model.Print) {
	sheet, err := h.prints.Sheet(c.Request.Context(), p)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, sheet)
}
