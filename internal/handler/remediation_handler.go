package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sakchai-dev/school-grading-api/internal/service"
	appErrors "github.com/sakchai-dev/school-grading-api/pkg/errors"
	"github.com/sakchai-dev/school-grading-api/pkg/response"
)

// RemediationHandler exposes the remediation workflow endpoints.
type RemediationHandler struct {
	remediation *service.RemediationService
}

// NewRemediationHandler constructs handler.
func NewRemediationHandler(remediation *service.RemediationService) *RemediationHandler {
	return &RemediationHandler{remediation: remediation}
}

// SaveScore godoc
// @Summary Record a remediation score
// @Tags Remediation
// @Accept json
// @Produce json
// @Param payload body service.SaveScoreRequest true "Remediation score payload"
// @Success 200 {object} response.Envelope
// @Router /remediation/scores [post]
func (h *RemediationHandler) SaveScore(c *gin.Context) {
	var req service.SaveScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.remediation.SaveScore(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Submit godoc
// @Summary Submit completed remediations for department head review
// @Tags Remediation
// @Accept json
// @Produce json
// @Param payload body service.BulkSubmitRequest true "Submit scope"
// @Success 200 {object} response.Envelope
// @Router /remediation/submit [post]
func (h *RemediationHandler) Submit(c *gin.Context) {
	var req service.BulkSubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	count, err := h.remediation.BulkSubmit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"submitted": count}, nil)
}

// Awaiting godoc
// @Summary List remediations awaiting action for a course
// @Tags Remediation
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseId}/remediation [get]
func (h *RemediationHandler) Awaiting(c *gin.Context) {
	rows, err := h.remediation.ListAwaiting(c.Request.Context(), c.Param("courseId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

type remediationTargetRequest struct {
	StudentID string `json:"student_id" binding:"required"`
	CourseID  string `json:"course_id" binding:"required"`
}

// Approve godoc
// @Summary Approve a submitted remediation
// @Tags Remediation
// @Accept json
// @Produce json
// @Param payload body remediationTargetRequest true "Target row"
// @Success 204
// @Router /remediation/approve [post]
func (h *RemediationHandler) Approve(c *gin.Context) {
	var req remediationTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.remediation.Approve(c.Request.Context(), req.StudentID, req.CourseID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ResolveAttendance godoc
// @Summary Mark an attendance-barred grade as remediated
// @Tags Remediation
// @Accept json
// @Produce json
// @Param payload body remediationTargetRequest true "Target row"
// @Success 204
// @Router /remediation/attendance [post]
func (h *RemediationHandler) ResolveAttendance(c *gin.Context) {
	var req remediationTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.remediation.ResolveAttendance(c.Request.Context(), req.StudentID, req.CourseID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
