package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sakchai-dev/school-grading-api/internal/models"
	appErrors "github.com/sakchai-dev/school-grading-api/pkg/errors"
	"github.com/sakchai-dev/school-grading-api/pkg/jobs"
)

type mockRemediationStore struct {
	rows        map[string]*models.CourseGrade
	transferred int64
}

func remediationKey(studentID, courseID string) string {
	return studentID + "|" + courseID
}

func (m *mockRemediationStore) FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.CourseGrade, error) {
	row, ok := m.rows[remediationKey(studentID, courseID)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *row
	return &clone, nil
}

func (m *mockRemediationStore) Upsert(ctx context.Context, grade *models.CourseGrade) error {
	if m.rows == nil {
		m.rows = map[string]*models.CourseGrade{}
	}
	clone := *grade
	m.rows[remediationKey(grade.StudentID, grade.CourseID)] = &clone
	return nil
}

func (m *mockRemediationStore) BulkTransitionStatus(ctx context.Context, courseIDs []string, from, to models.RemediationStatus) (int64, error) {
	var count int64
	scope := map[string]struct{}{}
	for _, id := range courseIDs {
		scope[id] = struct{}{}
	}
	for _, row := range m.rows {
		if _, ok := scope[row.CourseID]; ok && row.RemediationStatus == from {
			row.RemediationStatus = to
			count++
		}
	}
	m.transferred += count
	return count, nil
}

func (m *mockRemediationStore) ListAwaiting(ctx context.Context, courseID string) ([]models.CourseGrade, error) {
	var out []models.CourseGrade
	for _, row := range m.rows {
		if row.CourseID == courseID && row.RemediationStatus != models.RemediationNone && row.RemediationStatus != models.RemediationApproved {
			out = append(out, *row)
		}
	}
	return out, nil
}

type mockRemediationScoreWriter struct {
	saved []models.Score
}

func (m *mockRemediationScoreWriter) Upsert(ctx context.Context, score *models.Score) error {
	m.saved = append(m.saved, *score)
	return nil
}

type mockRemediationCourses struct {
	courses map[string]*models.Course
	heads   []models.SubjectGroupHead
}

func (m *mockRemediationCourses) FindByID(ctx context.Context, id string) (*models.Course, error) {
	course, ok := m.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return course, nil
}

func (m *mockRemediationCourses) ListByTeacherAndSemester(ctx context.Context, teacherID, semesterID string) ([]models.Course, error) {
	var out []models.Course
	for _, course := range m.courses {
		if course.TeacherID == teacherID && course.SemesterID == semesterID {
			out = append(out, *course)
		}
	}
	return out, nil
}

func (m *mockRemediationCourses) FindSubjectGroupHeads(ctx context.Context, courseIDs []string) ([]models.SubjectGroupHead, error) {
	return m.heads, nil
}

type mockStudentGrader struct {
	result      *models.StudentGradeResult
	invalidated []string
}

func (m *mockStudentGrader) GradeForStudent(ctx context.Context, courseID, studentID string) (*models.StudentGradeResult, error) {
	return m.result, nil
}

func (m *mockStudentGrader) InvalidateReport(ctx context.Context, courseID string) {
	m.invalidated = append(m.invalidated, courseID)
}

type mockNotifier struct {
	jobs []jobs.Job
}

func (m *mockNotifier) Enqueue(job jobs.Job) error {
	m.jobs = append(m.jobs, job)
	return nil
}

func gradePtr(g models.GradeSymbol) *models.GradeSymbol { return &g }

func TestSaveScoreOpensAndCompletesInOnePass(t *testing.T) {
	store := &mockRemediationStore{rows: map[string]*models.CourseGrade{
		remediationKey("student-1", "course-1"): {
			StudentID:         "student-1",
			CourseID:          "course-1",
			FinalGrade:        gradePtr(models.Grade0),
			RemediationStatus: models.RemediationNone,
		},
	}}
	scores := &mockRemediationScoreWriter{}
	grader := &mockStudentGrader{result: &models.StudentGradeResult{
		StudentID:  "student-1",
		Grade:      models.Grade2,
		Percentage: 62,
	}}
	svc := NewRemediationService(store, scores, &mockRemediationCourses{}, grader, nil, nil, zap.NewNop())

	out, err := svc.SaveScore(context.Background(), SaveScoreRequest{
		StudentID:    "student-1",
		CourseID:     "course-1",
		GradedItemID: "item-1",
		Value:        float64Ptr(35),
	})
	require.NoError(t, err)

	assert.Equal(t, models.Grade2, out.Grade)
	assert.Equal(t, models.Grade0, out.OriginalGrade)
	assert.Equal(t, models.RemediationCompleted, out.RemediationStatus)
	require.Len(t, scores.saved, 1)
	assert.Equal(t, []string{"course-1"}, grader.invalidated)

	row := store.rows[remediationKey("student-1", "course-1")]
	assert.Equal(t, models.RemediationCompleted, row.RemediationStatus)
	require.NotNil(t, row.OriginalFinalGrade)
	assert.Equal(t, models.Grade0, *row.OriginalFinalGrade)
	assert.NotNil(t, row.RemediatedAt)
}

func TestSaveScoreFailingResultStaysInProgress(t *testing.T) {
	store := &mockRemediationStore{rows: map[string]*models.CourseGrade{
		remediationKey("student-1", "course-1"): {
			StudentID:         "student-1",
			CourseID:          "course-1",
			FinalGrade:        gradePtr(models.GradeIncomplete),
			RemediationStatus: models.RemediationNone,
		},
	}}
	grader := &mockStudentGrader{result: &models.StudentGradeResult{Grade: models.Grade0, Percentage: 30}}
	svc := NewRemediationService(store, &mockRemediationScoreWriter{}, &mockRemediationCourses{}, grader, nil, nil, zap.NewNop())

	out, err := svc.SaveScore(context.Background(), SaveScoreRequest{
		StudentID:    "student-1",
		CourseID:     "course-1",
		GradedItemID: "item-1",
		Value:        float64Ptr(5),
	})
	require.NoError(t, err)

	assert.Equal(t, models.RemediationInProgress, out.RemediationStatus)
	assert.Equal(t, models.GradeIncomplete, out.OriginalGrade)
}

func TestSaveScoreStatusNeverRegresses(t *testing.T) {
	// completed earlier, but the stored grade is still remediable because
	// persist-on-compute is off
	store := &mockRemediationStore{rows: map[string]*models.CourseGrade{
		remediationKey("student-1", "course-1"): {
			StudentID:          "student-1",
			CourseID:           "course-1",
			FinalGrade:         gradePtr(models.Grade0),
			OriginalFinalGrade: gradePtr(models.Grade0),
			RemediationStatus:  models.RemediationCompleted,
		},
	}}
	grader := &mockStudentGrader{result: &models.StudentGradeResult{Grade: models.Grade0}}
	svc := NewRemediationService(store, &mockRemediationScoreWriter{}, &mockRemediationCourses{}, grader, nil, nil, zap.NewNop())

	out, err := svc.SaveScore(context.Background(), SaveScoreRequest{
		StudentID:    "student-1",
		CourseID:     "course-1",
		GradedItemID: "item-1",
		Value:        float64Ptr(0),
	})
	require.NoError(t, err)
	assert.Equal(t, models.RemediationCompleted, out.RemediationStatus)
}

func TestSaveScoreResaveAfterCompletedUpdatesGrade(t *testing.T) {
	// persist-on-compute wrote the passing grade back, so only the frozen
	// original grade still qualifies the row
	store := &mockRemediationStore{rows: map[string]*models.CourseGrade{
		remediationKey("student-1", "course-1"): {
			StudentID:          "student-1",
			CourseID:           "course-1",
			FinalGrade:         gradePtr(models.Grade2),
			OriginalFinalGrade: gradePtr(models.Grade0),
			RemediationStatus:  models.RemediationCompleted,
		},
	}}
	scores := &mockRemediationScoreWriter{}
	grader := &mockStudentGrader{result: &models.StudentGradeResult{Grade: models.Grade2_5, Percentage: 68}}
	svc := NewRemediationService(store, scores, &mockRemediationCourses{}, grader, nil, nil, zap.NewNop())

	out, err := svc.SaveScore(context.Background(), SaveScoreRequest{
		StudentID:    "student-1",
		CourseID:     "course-1",
		GradedItemID: "item-1",
		Value:        float64Ptr(40),
	})
	require.NoError(t, err)

	assert.Equal(t, models.Grade2_5, out.Grade)
	assert.Equal(t, models.Grade0, out.OriginalGrade)
	assert.Equal(t, models.RemediationCompleted, out.RemediationStatus)
	require.Len(t, scores.saved, 1)

	row := store.rows[remediationKey("student-1", "course-1")]
	assert.Equal(t, models.RemediationCompleted, row.RemediationStatus)
	require.NotNil(t, row.FinalGrade)
	assert.Equal(t, models.Grade2_5, *row.FinalGrade)
}

func TestSaveScoreRejectsPassingGrade(t *testing.T) {
	store := &mockRemediationStore{rows: map[string]*models.CourseGrade{
		remediationKey("student-1", "course-1"): {
			StudentID:  "student-1",
			CourseID:   "course-1",
			FinalGrade: gradePtr(models.Grade3),
		},
	}}
	svc := NewRemediationService(store, &mockRemediationScoreWriter{}, &mockRemediationCourses{}, &mockStudentGrader{}, nil, nil, zap.NewNop())

	_, err := svc.SaveScore(context.Background(), SaveScoreRequest{
		StudentID:    "student-1",
		CourseID:     "course-1",
		GradedItemID: "item-1",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotRemediable.Code, appErr.Code)
}

func TestSaveScoreUnknownStudent(t *testing.T) {
	svc := NewRemediationService(&mockRemediationStore{}, &mockRemediationScoreWriter{}, &mockRemediationCourses{}, &mockStudentGrader{}, nil, nil, zap.NewNop())

	_, err := svc.SaveScore(context.Background(), SaveScoreRequest{
		StudentID:    "student-404",
		CourseID:     "course-1",
		GradedItemID: "item-1",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestBulkSubmitCourseScope(t *testing.T) {
	store := &mockRemediationStore{rows: map[string]*models.CourseGrade{
		remediationKey("student-1", "course-1"): {StudentID: "student-1", CourseID: "course-1", RemediationStatus: models.RemediationCompleted},
		remediationKey("student-2", "course-1"): {StudentID: "student-2", CourseID: "course-1", RemediationStatus: models.RemediationCompleted},
		remediationKey("student-3", "course-1"): {StudentID: "student-3", CourseID: "course-1", RemediationStatus: models.RemediationInProgress},
	}}
	courses := &mockRemediationCourses{
		courses: map[string]*models.Course{"course-1": {ID: "course-1"}},
		heads: []models.SubjectGroupHead{
			{SubjectGroupID: "sg-1", GroupName: "Mathematics", HeadUserID: "head-1"},
			{SubjectGroupID: "sg-1", GroupName: "Mathematics", HeadUserID: "head-1"},
		},
	}
	queue := &mockNotifier{}
	grader := &mockStudentGrader{}
	svc := NewRemediationService(store, &mockRemediationScoreWriter{}, courses, grader, queue, nil, zap.NewNop())

	count, err := svc.BulkSubmit(context.Background(), BulkSubmitRequest{CourseID: "course-1"})
	require.NoError(t, err)

	assert.Equal(t, int64(2), count)
	// in-progress rows are untouched
	assert.Equal(t, models.RemediationInProgress, store.rows[remediationKey("student-3", "course-1")].RemediationStatus)
	// one notification per distinct head
	require.Len(t, queue.jobs, 1)
	payload, ok := queue.jobs[0].Payload.(SubmissionNotification)
	require.True(t, ok)
	assert.Equal(t, "head-1", payload.RecipientID)
	assert.Equal(t, int64(2), payload.Count)
	assert.Equal(t, []string{"course-1"}, grader.invalidated)
}

func TestBulkSubmitTeacherScope(t *testing.T) {
	store := &mockRemediationStore{rows: map[string]*models.CourseGrade{
		remediationKey("student-1", "course-1"): {StudentID: "student-1", CourseID: "course-1", RemediationStatus: models.RemediationCompleted},
		remediationKey("student-2", "course-2"): {StudentID: "student-2", CourseID: "course-2", RemediationStatus: models.RemediationCompleted},
	}}
	courses := &mockRemediationCourses{courses: map[string]*models.Course{
		"course-1": {ID: "course-1", TeacherID: "teacher-1", SemesterID: "sem-1"},
		"course-2": {ID: "course-2", TeacherID: "teacher-1", SemesterID: "sem-1"},
		"course-3": {ID: "course-3", TeacherID: "teacher-2", SemesterID: "sem-1"},
	}}
	svc := NewRemediationService(store, &mockRemediationScoreWriter{}, courses, &mockStudentGrader{}, &mockNotifier{}, nil, zap.NewNop())

	count, err := svc.BulkSubmit(context.Background(), BulkSubmitRequest{TeacherID: "teacher-1", SemesterID: "sem-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestBulkSubmitNothingCompleted(t *testing.T) {
	store := &mockRemediationStore{rows: map[string]*models.CourseGrade{
		remediationKey("student-1", "course-1"): {StudentID: "student-1", CourseID: "course-1", RemediationStatus: models.RemediationInProgress},
	}}
	courses := &mockRemediationCourses{courses: map[string]*models.Course{"course-1": {ID: "course-1"}}}
	queue := &mockNotifier{}
	svc := NewRemediationService(store, &mockRemediationScoreWriter{}, courses, &mockStudentGrader{}, queue, nil, zap.NewNop())

	count, err := svc.BulkSubmit(context.Background(), BulkSubmitRequest{CourseID: "course-1"})
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, queue.jobs)
}

func TestBulkSubmitRequiresScope(t *testing.T) {
	svc := NewRemediationService(&mockRemediationStore{}, &mockRemediationScoreWriter{}, &mockRemediationCourses{}, &mockStudentGrader{}, nil, nil, zap.NewNop())

	_, err := svc.BulkSubmit(context.Background(), BulkSubmitRequest{TeacherID: "teacher-1"})
	require.Error(t, err)
}

func TestApproveRequiresSubmission(t *testing.T) {
	store := &mockRemediationStore{rows: map[string]*models.CourseGrade{
		remediationKey("student-1", "course-1"): {
			StudentID:         "student-1",
			CourseID:          "course-1",
			RemediationStatus: models.RemediationCompleted,
		},
	}}
	svc := NewRemediationService(store, &mockRemediationScoreWriter{}, &mockRemediationCourses{}, &mockStudentGrader{}, nil, nil, zap.NewNop())

	err := svc.Approve(context.Background(), "student-1", "course-1")
	require.Error(t, err)
}

func TestApproveSubmittedRow(t *testing.T) {
	store := &mockRemediationStore{rows: map[string]*models.CourseGrade{
		remediationKey("student-1", "course-1"): {
			StudentID:         "student-1",
			CourseID:          "course-1",
			RemediationStatus: models.RemediationSubmittedToDeptHead,
		},
	}}
	grader := &mockStudentGrader{}
	svc := NewRemediationService(store, &mockRemediationScoreWriter{}, &mockRemediationCourses{}, grader, nil, nil, zap.NewNop())

	err := svc.Approve(context.Background(), "student-1", "course-1")
	require.NoError(t, err)
	assert.Equal(t, models.RemediationApproved, store.rows[remediationKey("student-1", "course-1")].RemediationStatus)
}

func TestResolveAttendanceMarksRow(t *testing.T) {
	store := &mockRemediationStore{rows: map[string]*models.CourseGrade{
		remediationKey("student-1", "course-1"): {
			StudentID:         "student-1",
			CourseID:          "course-1",
			FinalGrade:        gradePtr(models.GradeAbsence),
			RemediationStatus: models.RemediationNone,
		},
	}}
	svc := NewRemediationService(store, &mockRemediationScoreWriter{}, &mockRemediationCourses{}, &mockStudentGrader{}, nil, nil, zap.NewNop())

	err := svc.ResolveAttendance(context.Background(), "student-1", "course-1")
	require.NoError(t, err)

	row := store.rows[remediationKey("student-1", "course-1")]
	assert.True(t, row.MsRemediated)
	// attendance resolution never moves the workflow
	assert.Equal(t, models.RemediationNone, row.RemediationStatus)
}
