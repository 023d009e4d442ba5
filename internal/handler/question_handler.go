package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/examprint/internal/middleware"
	"github.com/stemsi/examprint/internal/model"
	"github.com/stemsi/examprint/internal/response"
	"github.com/stemsi/examprint/internal/validator"
)

// ListSetQuestions godoc
// GET /api/v1/exams/:examID/sets/:setID/questions
func (h *ExamHandler) ListSetQuestions(c *gin.Context) {
	examID, ok := paramID(c, "examID")
	if !ok {
		return
	}
	setID, ok := paramID(c, "setID")
	if !ok {
		return
	}
	questions, err := h.catalog.ListSetQuestions(c.Request.Context(), middleware.RequestContext(c), examID, setID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// AddQuestions godoc
// POST /api/v1/exams/:examID/sets/:setID/questions
// Copies bank questions, options included, into the set.
func (h *ExamHandler) AddQuestions(c *gin.Context) {
	examID, ok := paramID(c, "examID")
	if !ok {
		return
	}
	setID, ok := paramID(c, "setID")
	if !ok {
		return
	}
	var req model.AddQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	added, err := h.catalog.AddQuestionsToSet(c.Request.Context(), middleware.RequestContext(c), examID, setID, req.Questions)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"questions": added})
}

// DeleteQuestion godoc
// DELETE /api/v1/exams/:examID/questions/:questionID
func (h *ExamHandler) DeleteQuestion(c *gin.Context) {
	examID, ok := paramID(c, "examID")
	if !ok {
		return
	}
	questionID, ok := paramID(c, "questionID")
	if !ok {
		return
	}
	if err := h.catalog.RemoveQuestion(c.Request.Context(), middleware.RequestContext(c), examID, questionID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Question deleted"})
}

// SetQuestionValidity godoc
// PATCH /api/v1/exams/:examID/questions/:questionID/validity
// Prints holding the question are re-scored in the background.
func (h *ExamHandler) SetQuestionValidity(c *gin.Context) {
	examID, ok := paramID(c, "examID")
	if !ok {
		return
	}
	questionID, ok := paramID(c, "questionID")
	if !ok {
		return
	}
	var req model.SetValidityRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.catalog.SetQuestionValidity(c.Request.Context(), middleware.RequestContext(c), examID, questionID, *req.Valid); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"valid": *req.Valid})
}
