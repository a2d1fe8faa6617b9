package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sakchai-dev/school-grading-api/internal/models"
	appErrors "github.com/sakchai-dev/school-grading-api/pkg/errors"
)

type attendanceRepo interface {
	CountScheduledPeriods(ctx context.Context, courseID string) (int, error)
	CountAttendedByCourse(ctx context.Context, courseID string, statuses []models.AttendanceStatus) ([]models.AttendanceCounts, error)
	Upsert(ctx context.Context, record *models.AttendanceRecord) error
	BulkUpsert(ctx context.Context, records []models.AttendanceRecord) error
}

// AttendanceService records attendance and evaluates grade eligibility.
type AttendanceService struct {
	attendance attendanceRepo
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(attendance attendanceRepo, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AttendanceService{attendance: attendance, validator: validate, logger: logger}
	svc.validator.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		return models.AttendanceStatus(strings.ToUpper(fl.Field().String())).Valid()
	})
	return svc
}

// MarkAttendanceRequest describes a single attendance mark payload.
type MarkAttendanceRequest struct {
	StudentID        string  `json:"student_id" validate:"required"`
	TimetableEntryID string  `json:"timetable_entry_id" validate:"required"`
	Date             string  `json:"date" validate:"required"`
	Status           string  `json:"status" validate:"required,attendance_status"`
	Notes            *string `json:"notes"`
}

// BulkAttendanceItem holds one entry of a bulk mark payload.
type BulkAttendanceItem struct {
	StudentID string  `json:"student_id" validate:"required"`
	Status    string  `json:"status" validate:"required,attendance_status"`
	Notes     *string `json:"notes"`
}

// BulkMarkAttendanceRequest describes the bulk mark payload. The batch is
// written atomically.
type BulkMarkAttendanceRequest struct {
	TimetableEntryID string               `json:"timetable_entry_id" validate:"required"`
	Date             string               `json:"date" validate:"required"`
	Items            []BulkAttendanceItem `json:"items" validate:"required,min=1,dive"`
}

// Mark records one student's status for one period.
func (s *AttendanceService) Mark(ctx context.Context, req MarkAttendanceRequest) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}
	record := &models.AttendanceRecord{
		StudentID:        req.StudentID,
		TimetableEntryID: req.TimetableEntryID,
		Date:             date,
		Status:           models.AttendanceStatus(strings.ToUpper(req.Status)),
		Notes:            req.Notes,
	}
	if err := s.attendance.Upsert(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark attendance")
	}
	return record, nil
}

// BulkMark records attendance for a whole period in one transaction;
// either every row commits or none do.
func (s *AttendanceService) BulkMark(ctx context.Context, req BulkMarkAttendanceRequest) (int, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}
	seen := map[string]struct{}{}
	records := make([]models.AttendanceRecord, len(req.Items))
	for i, item := range req.Items {
		key := fmt.Sprintf("%s|%s", item.StudentID, req.TimetableEntryID)
		if _, ok := seen[key]; ok {
			return 0, appErrors.Clone(appErrors.ErrConflict, "duplicate student in payload")
		}
		seen[key] = struct{}{}
		records[i] = models.AttendanceRecord{
			StudentID:        item.StudentID,
			TimetableEntryID: req.TimetableEntryID,
			Date:             date,
			Status:           models.AttendanceStatus(strings.ToUpper(item.Status)),
			Notes:            item.Notes,
		}
	}
	if err := s.attendance.BulkUpsert(ctx, records); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "bulk mark failed")
	}
	return len(records), nil
}

// EvaluateCourse computes eligibility for every student of a course in one
// pass. A course with no recorded schedule cannot penalize anyone, so each
// verdict is eligible with zero totals.
func (s *AttendanceService) EvaluateCourse(ctx context.Context, courseID string, studentIDs []string) (map[string]models.AttendanceEligibility, error) {
	total, err := s.attendance.CountScheduledPeriods(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count scheduled periods")
	}
	attended := map[string]int{}
	if total > 0 {
		counts, err := s.attendance.CountAttendedByCourse(ctx, courseID, models.AttendedStatuses)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count attendance")
		}
		for _, c := range counts {
			attended[c.StudentID] = c.Attended
		}
	}
	result := make(map[string]models.AttendanceEligibility, len(studentIDs))
	for _, studentID := range studentIDs {
		result[studentID] = evaluate(studentID, attended[studentID], total)
	}
	return result, nil
}

// Evaluate computes a single student's eligibility verdict.
func (s *AttendanceService) Evaluate(ctx context.Context, studentID, courseID string) (*models.AttendanceEligibility, error) {
	verdicts, err := s.EvaluateCourse(ctx, courseID, []string{studentID})
	if err != nil {
		return nil, err
	}
	verdict := verdicts[studentID]
	return &verdict, nil
}

func evaluate(studentID string, attended, total int) models.AttendanceEligibility {
	eligibility := models.AttendanceEligibility{
		StudentID:             studentID,
		TotalScheduledPeriods: total,
		AttendedPeriods:       attended,
	}
	if total <= 0 {
		// no recorded schedule: fully eligible
		eligibility.Percentage = 1
		return eligibility
	}
	eligibility.Percentage = float64(attended) / float64(total)
	eligibility.Insufficient = eligibility.Percentage < models.EligibilityThreshold
	return eligibility
}
