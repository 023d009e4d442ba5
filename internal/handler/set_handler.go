package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/examprint/internal/middleware"
	"github.com/stemsi/examprint/internal/model"
	"github.com/stemsi/examprint/internal/response"
	"github.com/stemsi/examprint/internal/validator"
)

// ListSets godoc
// GET /api/v1/exams/:examID/sets
func (h *ExamHandler) ListSets(c *gin.Context) {
	examID, ok := paramID(c, "examID")
	if !ok {
		return
	}
	sets, err := h.catalog.ListSets(c.Request.Context(), middleware.RequestContext(c), examID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"sets": sets})
}

// CreateSet godoc
// POST /api/v1/exams/:examID/sets
// Without an index the set is appended after the last one.
func (h *ExamHandler) CreateSet(c *gin.Context) {
	examID, ok := paramID(c, "examID")
	if !ok {
		return
	}
	var req model.CreateSetRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	set, err := h.catalog.CreateSet(c.Request.Context(), middleware.RequestContext(c), examID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, set)
}

// UpdateSet godoc
// PUT /api/v1/exams/:examID/sets/:setID
func (h *ExamHandler) UpdateSet(c *gin.Context) {
	examID, ok := paramID(c, "examID")
	if !ok {
		return
	}
	setID, ok := paramID(c, "setID")
	if !ok {
		return
	}
	var req model.UpdateSetRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	set, err := h.catalog.UpdateSet(c.Request.Context(), middleware.RequestContext(c), examID, setID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, set)
}

// DeleteSet godoc
// DELETE /api/v1/exams/:examID/sets/:setID
func (h *ExamHandler) DeleteSet(c *gin.Context) {
	examID, ok := paramID(c, "examID")
	if !ok {
		return
	}
	setID, ok := paramID(c, "setID")
	if !ok {
		return
	}
	if err := h.catalog.RemoveSet(c.Request.Context(), middleware.RequestContext(c), examID, setID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Set deleted"})
}

// MoveSet godoc
// POST /api/v1/exams/:examID/sets/:setID/move
func (h *ExamHandler) MoveSet(c *gin.Context) {
	examID, ok := paramID(c, "examID")
	if !ok {
		return
	}
	setID, ok := paramID(c, "setID")
	if !ok {
		return
	}
	var req model.MoveSetRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	ctx, rc := c.Request.Context(), middleware.RequestContext(c)
	var err error
	if req.Direction == model.MoveUp {
		err = h.catalog.MoveSetUp(ctx, rc, examID, setID)
	} else {
		err = h.catalog.MoveSetDown(ctx, rc, examID, setID)
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	sets, err := h.catalog.ListSets(ctx, rc, examID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"sets": sets})
}
