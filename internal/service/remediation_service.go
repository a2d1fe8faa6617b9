package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sakchai-dev/school-grading-api/internal/models"
	appErrors "github.com/sakchai-dev/school-grading-api/pkg/errors"
	"github.com/sakchai-dev/school-grading-api/pkg/jobs"
)

type remediationGradeStore interface {
	FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.CourseGrade, error)
	Upsert(ctx context.Context, grade *models.CourseGrade) error
	BulkTransitionStatus(ctx context.Context, courseIDs []string, from, to models.RemediationStatus) (int64, error)
	ListAwaiting(ctx context.Context, courseID string) ([]models.CourseGrade, error)
}

type remediationScoreWriter interface {
	Upsert(ctx context.Context, score *models.Score) error
}

type remediationCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ListByTeacherAndSemester(ctx context.Context, teacherID, semesterID string) ([]models.Course, error)
	FindSubjectGroupHeads(ctx context.Context, courseIDs []string) ([]models.SubjectGroupHead, error)
}

type studentGrader interface {
	GradeForStudent(ctx context.Context, courseID, studentID string) (*models.StudentGradeResult, error)
	InvalidateReport(ctx context.Context, courseID string)
}

type notifier interface {
	Enqueue(job jobs.Job) error
}

// SubmissionNotification is the payload enqueued for each subject-group
// head when completed remediations are submitted for review.
type SubmissionNotification struct {
	RecipientID string `json:"recipient_id"`
	GroupName   string `json:"group_name"`
	Count       int64  `json:"count"`
}

// RemediationService drives the grade remediation workflow. Status only
// ever moves forward; a later failing save updates the grade but never
// pushes the row back.
type RemediationService struct {
	grades    remediationGradeStore
	scores    remediationScoreWriter
	courses   remediationCourseReader
	gradebook studentGrader
	queue     notifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRemediationService constructs RemediationService.
func NewRemediationService(grades remediationGradeStore, scores remediationScoreWriter, courses remediationCourseReader, gradebook studentGrader, queue notifier, validate *validator.Validate, logger *zap.Logger) *RemediationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RemediationService{
		grades:    grades,
		scores:    scores,
		courses:   courses,
		gradebook: gradebook,
		queue:     queue,
		validator: validate,
		logger:    logger,
	}
}

// SaveScoreRequest records one remediation score for a student.
type SaveScoreRequest struct {
	StudentID    string   `json:"student_id" validate:"required"`
	CourseID     string   `json:"course_id" validate:"required"`
	GradedItemID string   `json:"graded_item_id" validate:"required"`
	Value        *float64 `json:"value"`
}

// SaveScoreResult reports the state after one remediation save.
type SaveScoreResult struct {
	Grade             models.GradeSymbol       `json:"grade"`
	OriginalGrade     models.GradeSymbol       `json:"original_grade"`
	RemediationStatus models.RemediationStatus `json:"remediation_status"`
	Percentage        float64                  `json:"percentage"`
}

// SaveScore writes one remediation score and re-runs aggregation for the
// student. The first save freezes the original grade and opens the
// workflow; a recomputed passing grade promotes the row to Completed.
func (s *RemediationService) SaveScore(ctx context.Context, req SaveScoreRequest) (*SaveScoreResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid remediation payload")
	}

	row, err := s.grades.FindByStudentAndCourse(ctx, req.StudentID, req.CourseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no grade on record for student")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade")
	}
	currentRemediable := row.FinalGrade != nil && row.FinalGrade.IsRemediable()
	originalRemediable := row.OriginalFinalGrade != nil && row.OriginalFinalGrade.IsRemediable()
	if !currentRemediable && !originalRemediable {
		return nil, appErrors.Clone(appErrors.ErrNotRemediable, "grade does not qualify for remediation")
	}

	if row.OriginalFinalGrade == nil {
		original := *row.FinalGrade
		row.OriginalFinalGrade = &original
	}
	if row.RemediationStatus == models.RemediationNone {
		row.RemediationStatus = models.RemediationInProgress
		if err := s.grades.Upsert(ctx, row); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open remediation")
		}
		metricRemediationTransitions.WithLabelValues(string(models.RemediationInProgress)).Inc()
	}

	score := &models.Score{StudentID: req.StudentID, GradedItemID: req.GradedItemID, Value: req.Value}
	if err := s.scores.Upsert(ctx, score); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save remediation score")
	}

	s.gradebook.InvalidateReport(ctx, req.CourseID)
	result, err := s.gradebook.GradeForStudent(ctx, req.CourseID, req.StudentID)
	if err != nil {
		return nil, err
	}

	switch {
	case result.Grade.IsPassing() && row.RemediationStatus == models.RemediationInProgress:
		now := time.Now()
		row.RemediationStatus = models.RemediationCompleted
		row.RemediatedAt = &now
		row.FinalGrade = &result.Grade
		if err := s.grades.Upsert(ctx, row); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete remediation")
		}
		metricRemediationTransitions.WithLabelValues(string(models.RemediationCompleted)).Inc()
	case row.RemediationStatus != models.RemediationInProgress && (row.FinalGrade == nil || *row.FinalGrade != result.Grade):
		// re-saves past Completed update the grade but leave the status alone
		row.FinalGrade = &result.Grade
		if err := s.grades.Upsert(ctx, row); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record remediation grade")
		}
	}

	return &SaveScoreResult{
		Grade:             result.Grade,
		OriginalGrade:     *row.OriginalFinalGrade,
		RemediationStatus: row.RemediationStatus,
		Percentage:        result.Percentage,
	}, nil
}

// ResolveAttendance marks an attendance-barred grade as remediated for
// reporting. It never moves the workflow status.
func (s *RemediationService) ResolveAttendance(ctx context.Context, studentID, courseID string) error {
	row, err := s.grades.FindByStudentAndCourse(ctx, studentID, courseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "no grade on record for student")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade")
	}
	if row.FinalGrade == nil || *row.FinalGrade != models.GradeAbsence {
		return appErrors.Clone(appErrors.ErrNotRemediable, "grade is not an attendance bar")
	}
	row.MsRemediated = true
	if err := s.grades.Upsert(ctx, row); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance resolution")
	}
	return nil
}

// BulkSubmitRequest names the scope to submit: one course, or every
// course a teacher runs in a semester.
type BulkSubmitRequest struct {
	CourseID   string `json:"course_id"`
	TeacherID  string `json:"teacher_id"`
	SemesterID string `json:"semester_id"`
}

// BulkSubmit moves every Completed row in scope to SubmittedToDeptHead
// in one statement and notifies each affected subject-group head.
func (s *RemediationService) BulkSubmit(ctx context.Context, req BulkSubmitRequest) (int64, error) {
	courseIDs, err := s.resolveScope(ctx, req)
	if err != nil {
		return 0, err
	}
	if len(courseIDs) == 0 {
		return 0, nil
	}

	count, err := s.grades.BulkTransitionStatus(ctx, courseIDs, models.RemediationCompleted, models.RemediationSubmittedToDeptHead)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit remediations")
	}
	if count == 0 {
		return 0, nil
	}
	metricRemediationTransitions.WithLabelValues(string(models.RemediationSubmittedToDeptHead)).Add(float64(count))

	for _, courseID := range courseIDs {
		s.gradebook.InvalidateReport(ctx, courseID)
	}

	s.notifyHeads(ctx, courseIDs, count)
	return count, nil
}

// ListAwaiting returns the rows a department head still has to act on.
func (s *RemediationService) ListAwaiting(ctx context.Context, courseID string) ([]models.CourseGrade, error) {
	rows, err := s.grades.ListAwaiting(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending remediations")
	}
	return rows, nil
}

// Approve finalizes one submitted remediation. Approved is terminal.
func (s *RemediationService) Approve(ctx context.Context, studentID, courseID string) error {
	row, err := s.grades.FindByStudentAndCourse(ctx, studentID, courseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "no grade on record for student")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade")
	}
	if row.RemediationStatus != models.RemediationSubmittedToDeptHead {
		return appErrors.Clone(appErrors.ErrConflict, "remediation has not been submitted for review")
	}
	row.RemediationStatus = models.RemediationApproved
	if err := s.grades.Upsert(ctx, row); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve remediation")
	}
	metricRemediationTransitions.WithLabelValues(string(models.RemediationApproved)).Inc()
	s.gradebook.InvalidateReport(ctx, courseID)
	return nil
}

func (s *RemediationService) resolveScope(ctx context.Context, req BulkSubmitRequest) ([]string, error) {
	if req.CourseID != "" {
		if _, err := s.courses.FindByID(ctx, req.CourseID); err != nil {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return []string{req.CourseID}, nil
	}
	if req.TeacherID == "" || req.SemesterID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "either course_id or teacher_id+semester_id is required")
	}
	courses, err := s.courses.ListByTeacherAndSemester(ctx, req.TeacherID, req.SemesterID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	ids := make([]string, len(courses))
	for i, course := range courses {
		ids[i] = course.ID
	}
	return ids, nil
}

// notifyHeads enqueues one notification per distinct subject-group head
// over the affected courses. Delivery failures are logged, not returned:
// the submission itself already committed.
func (s *RemediationService) notifyHeads(ctx context.Context, courseIDs []string, count int64) {
	if s.queue == nil {
		return
	}
	heads, err := s.courses.FindSubjectGroupHeads(ctx, courseIDs)
	if err != nil {
		s.logger.Error("failed to resolve subject group heads", zap.Error(err))
		return
	}
	notified := map[string]struct{}{}
	for _, head := range heads {
		if _, ok := notified[head.HeadUserID]; ok {
			continue
		}
		notified[head.HeadUserID] = struct{}{}
		job := jobs.Job{
			ID:   uuid.NewString(),
			Type: "remediation.submitted",
			Payload: SubmissionNotification{
				RecipientID: head.HeadUserID,
				GroupName:   head.GroupName,
				Count:       count,
			},
		}
		if err := s.queue.Enqueue(job); err != nil {
			s.logger.Warn("failed to enqueue submission notification",
				zap.String("recipient_id", head.HeadUserID), zap.Error(err))
		}
	}
}
