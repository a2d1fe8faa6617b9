package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sakchai-dev/school-grading-api/internal/service"
	"github.com/sakchai-dev/school-grading-api/pkg/response"
)

// GradebookHandler exposes the course grade report endpoints.
type GradebookHandler struct {
	gradebook *service.GradebookService
	exports   *service.ExportService
}

// NewGradebookHandler constructs handler. exports may be nil when the
// export endpoints are disabled.
func NewGradebookHandler(gradebook *service.GradebookService, exports *service.ExportService) *GradebookHandler {
	return &GradebookHandler{gradebook: gradebook, exports: exports}
}

// Report godoc
// @Summary Course grade report
// @Tags Gradebook
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseId}/grades [get]
func (h *GradebookHandler) Report(c *gin.Context) {
	report, err := h.gradebook.Report(c.Request.Context(), c.Param("courseId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Recompute godoc
// @Summary Recompute course grades
// @Tags Gradebook
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseId}/grades/recompute [post]
func (h *GradebookHandler) Recompute(c *gin.Context) {
	courseID := c.Param("courseId")
	h.gradebook.InvalidateReport(c.Request.Context(), courseID)
	report, err := h.gradebook.ComputeCourseGrades(c.Request.Context(), courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// StudentGrade godoc
// @Summary One student's grade within a course
// @Tags Gradebook
// @Produce json
// @Param courseId path string true "Course ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseId}/grades/{studentId} [get]
func (h *GradebookHandler) StudentGrade(c *gin.Context) {
	result, err := h.gradebook.GradeForStudent(c.Request.Context(), c.Param("courseId"), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ExportCSV godoc
// @Summary Download the grade report as CSV
// @Tags Gradebook
// @Produce text/csv
// @Param courseId path string true "Course ID"
// @Success 200 {file} file
// @Router /courses/{courseId}/grades/export/csv [get]
func (h *GradebookHandler) ExportCSV(c *gin.Context) {
	data, filename, err := h.exports.CSV(c.Request.Context(), c.Param("courseId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, "text/csv; charset=utf-8", filename, data)
}

// ExportPDF godoc
// @Summary Download the grade report as PDF
// @Tags Gradebook
// @Produce application/pdf
// @Param courseId path string true "Course ID"
// @Success 200 {file} file
// @Router /courses/{courseId}/grades/export/pdf [get]
func (h *GradebookHandler) ExportPDF(c *gin.Context) {
	data, filename, err := h.exports.PDF(c.Request.Context(), c.Param("courseId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, "application/pdf", filename, data)
}
