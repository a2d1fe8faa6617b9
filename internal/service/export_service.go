package service

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/sakchai-dev/school-grading-api/internal/models"
	appErrors "github.com/sakchai-dev/school-grading-api/pkg/errors"
	"github.com/sakchai-dev/school-grading-api/pkg/export"
)

type reportProvider interface {
	Report(ctx context.Context, courseID string) (*models.CourseGradeReport, error)
}

type exportCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// ExportService renders course grade reports as downloadable files.
type ExportService struct {
	gradebook  reportProvider
	courses    exportCourseReader
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	schoolName string
	logger     *zap.Logger
}

// NewExportService constructs ExportService.
func NewExportService(gradebook reportProvider, courses exportCourseReader, schoolName string, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		gradebook:  gradebook,
		courses:    courses,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		schoolName: schoolName,
		logger:     logger,
	}
}

var gradeSheetHeaders = []string{
	"Student ID", "Name", "Collected", "Midterm", "Final", "Total", "Percent", "Grade", "Status",
}

// CSV renders the course grade report as a CSV file.
func (s *ExportService) CSV(ctx context.Context, courseID string) ([]byte, string, error) {
	course, sheet, err := s.buildSheet(ctx, courseID)
	if err != nil {
		return nil, "", err
	}
	data, err := s.csv.Render(sheet)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	return data, fmt.Sprintf("grades-%s.csv", course.SubjectCode), nil
}

// PDF renders the course grade report as a PDF file.
func (s *ExportService) PDF(ctx context.Context, courseID string) ([]byte, string, error) {
	course, sheet, err := s.buildSheet(ctx, courseID)
	if err != nil {
		return nil, "", err
	}
	subtitle := fmt.Sprintf("%s %s", course.SubjectCode, course.SubjectName)
	data, err := s.pdf.Render(sheet, s.schoolName, subtitle)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
	}
	return data, fmt.Sprintf("grades-%s.pdf", course.SubjectCode), nil
}

func (s *ExportService) buildSheet(ctx context.Context, courseID string) (*models.Course, export.Sheet, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		return nil, export.Sheet{}, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	report, err := s.gradebook.Report(ctx, courseID)
	if err != nil {
		return nil, export.Sheet{}, err
	}

	sheet := export.Sheet{Headers: gradeSheetHeaders}
	for _, result := range report.Results {
		if result.ComputeError != "" {
			sheet.Rows = append(sheet.Rows, map[string]string{
				"Student ID": result.StudentID,
				"Name":       result.StudentName,
				"Status":     "error",
			})
			continue
		}
		status := ""
		switch {
		case result.HasAttendanceOverride:
			status = "attendance"
		case len(result.IncompleteSummativeItems) > 0:
			status = "incomplete"
		}
		sheet.Rows = append(sheet.Rows, map[string]string{
			"Student ID": result.StudentID,
			"Name":       result.StudentName,
			"Collected":  formatScore(result.CollectedScore),
			"Midterm":    formatOptionalScore(result.MidtermScore),
			"Final":      formatOptionalScore(result.FinalScore),
			"Total":      formatScore(result.TotalScore),
			"Percent":    strconv.FormatFloat(result.Percentage, 'f', 2, 64),
			"Grade":      string(result.Grade),
			"Status":     status,
		})
	}
	return course, sheet, nil
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptionalScore(v *float64) string {
	if v == nil {
		return ""
	}
	return formatScore(*v)
}
