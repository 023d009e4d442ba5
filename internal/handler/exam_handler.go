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

// ExamHandler handles exam, set and question endpoints.
type ExamHandler struct {
	catalog *service.CatalogService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(catalog *service.CatalogService) *ExamHandler {
	return &ExamHandler{catalog: catalog}
}

// ListExams godoc
// GET /api/v1/exams
// Students only see visible exams.
func (h *ExamHandler) ListExams(c *gin.Context) {
	exams, err := h.catalog.ListExams(c.Request.Context(), middleware.RequestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exams": exams})
}

// GetExam godoc
// GET /api/v1/exams/:examID
func (h *ExamHandler) GetExam(c *gin.Context) {
	examID, ok := paramID(c, "examID")
	if !ok {
		return
	}
	exam, err := h.catalog.GetExam(c.Request.Context(), middleware.RequestContext(c), examID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, exam)
}

// CreateExam godoc
// POST /api/v1/exams
func (h *ExamHandler) CreateExam(c *gin.Context) {
	var req model.CreateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.catalog.CreateExam(c.Request.Context(), middleware.RequestContext(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, exam)
}

// UpdateExam godoc
// PUT /api/v1/exams/:examID
func (h *ExamHandler) UpdateExam(c *gin.Context) {
	examID, ok := paramID(c, "examID")
	if !ok {
		return
	}
	var req model.UpdateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.catalog.UpdateExam(c.Request.Context(), middleware.RequestContext(c), examID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, exam)
}

// SetExamHidden godoc
// PATCH /api/v1/exams/:examID/hidden
func (h *ExamHandler) SetExamHidden(c *gin.Context) {
	examID, ok := paramID(c, "examID")
	if !ok {
		return
	}
	var req model.SetHiddenRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.catalog.SetExamHidden(c.Request.Context(), middleware.RequestContext(c), examID, *req.Hidden); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"hidden": *req.Hidden})
}

// SetExamVisibility godoc
// PATCH /api/v1/exams/:examID/visibility
// Bits outside the defined flags are dropped.
func (h *ExamHandler) SetExamVisibility(c *gin.Context) {
	examID, ok := paramID(c, "examID")
	if !ok {
		return
	}
	var req model.SetVisibilityRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	v, err := h.catalog.SetExamVisibility(c.Request.Context(), middleware.RequestContext(c), examID, *req.Visibility)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"visibility": v})
}

// DeleteExam godoc
// DELETE /api/v1/exams/:examID
func (h *ExamHandler) DeleteExam(c *gin.Context) {
	examID, ok := paramID(c, "examID")
	if !ok {
		return
	}
	if err := h.catalog.RemoveExam(c.Request.Context(), middleware.RequestContext(c), examID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Exam deleted"})
}
