package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sakchai-dev/school-grading-api/internal/models"
)

type mockCourseReader struct {
	course *models.Course
}

func (m *mockCourseReader) FindByID(ctx context.Context, id string) (*models.Course, error) {
	return m.course, nil
}

type mockStructureResolver struct {
	structure *models.CourseStructure
}

func (m *mockStructureResolver) Resolve(ctx context.Context, courseID string) (*models.CourseStructure, error) {
	return m.structure, nil
}

type mockRosterReader struct {
	students []models.Student
}

func (m *mockRosterReader) ListRoster(ctx context.Context, courseID string) ([]models.Student, error) {
	return m.students, nil
}

type mockScoreReader struct {
	scores      map[string]map[string]*float64
	groupScores map[string]map[string]float64
	groups      map[string]string
}

func (m *mockScoreReader) FetchCourseScores(ctx context.Context, courseID string) (map[string]map[string]*float64, error) {
	return m.scores, nil
}

func (m *mockScoreReader) FetchGroupScores(ctx context.Context, courseID string) (map[string]map[string]float64, error) {
	return m.groupScores, nil
}

func (m *mockScoreReader) FetchGroupMembers(ctx context.Context, courseID string) (map[string]string, error) {
	return m.groups, nil
}

type mockCourseGradeStore struct {
	grades    map[string]models.CourseGrade
	persisted []models.CourseGrade
}

func (m *mockCourseGradeStore) FetchByCourse(ctx context.Context, courseID string) (map[string]models.CourseGrade, error) {
	return m.grades, nil
}

func (m *mockCourseGradeStore) BulkUpsert(ctx context.Context, grades []models.CourseGrade) error {
	m.persisted = append(m.persisted, grades...)
	return nil
}

type mockEligibility struct {
	verdicts map[string]models.AttendanceEligibility
}

func (m *mockEligibility) EvaluateCourse(ctx context.Context, courseID string, studentIDs []string) (map[string]models.AttendanceEligibility, error) {
	if m.verdicts == nil {
		return map[string]models.AttendanceEligibility{}, nil
	}
	return m.verdicts, nil
}

func float64Ptr(v float64) *float64 { return &v }

type gradebookFixture struct {
	courses     *mockCourseReader
	structures  *mockStructureResolver
	roster      *mockRosterReader
	scores      *mockScoreReader
	gradeStore  *mockCourseGradeStore
	eligibility *mockEligibility
}

// newGradebookFixture builds a one-student course: two collected items
// worth 100 together, a 50-point midterm and a 50-point final.
func newGradebookFixture() *gradebookFixture {
	return &gradebookFixture{
		courses: &mockCourseReader{course: &models.Course{ID: "course-1", SubjectCode: "MATH101"}},
		structures: &mockStructureResolver{structure: &models.CourseStructure{
			CourseID: "course-1",
			Units: []models.UnitStructure{
				{
					Unit: models.LearningUnit{ID: "unit-1", MidtermScore: 50, FinalScore: 50},
					Items: []models.GradedItem{
						{ID: "item-1", MaxScore: 60, IndicatorType: models.IndicatorFormative},
						{ID: "item-2", MaxScore: 40, IndicatorType: models.IndicatorSummative},
					},
				},
			},
			CollectedMax: 100,
			MidtermMax:   50,
			FinalMax:     50,
		}},
		roster:      &mockRosterReader{students: []models.Student{{ID: "student-1", FirstName: "Somchai", LastName: "J"}}},
		scores:      &mockScoreReader{scores: map[string]map[string]*float64{}},
		gradeStore:  &mockCourseGradeStore{grades: map[string]models.CourseGrade{}},
		eligibility: &mockEligibility{},
	}
}

func (f *gradebookFixture) service(persist bool) *GradebookService {
	return NewGradebookService(f.courses, f.structures, f.roster, f.scores, f.gradeStore, f.eligibility, nil, zap.NewNop(), persist)
}

func TestComputeCourseGradesNinetyPercent(t *testing.T) {
	f := newGradebookFixture()
	f.scores.scores = map[string]map[string]*float64{
		"student-1": {"item-1": float64Ptr(50), "item-2": float64Ptr(30)},
	}
	f.gradeStore.grades = map[string]models.CourseGrade{
		"student-1": {StudentID: "student-1", CourseID: "course-1", MidtermScore: float64Ptr(50), FinalScore: float64Ptr(50), RemediationStatus: models.RemediationNone},
	}

	report, err := f.service(false).ComputeCourseGrades(context.Background(), "course-1")
	require.NoError(t, err)
	require.Len(t, report.Results, 1)

	result := report.Results[0]
	assert.Equal(t, 80.0, result.CollectedScore)
	assert.Equal(t, 180.0, result.TotalScore)
	assert.InDelta(t, 90.0, result.Percentage, 1e-9)
	assert.Equal(t, models.Grade4, result.Grade)
	assert.Empty(t, result.ComputeError)
}

func TestComputeCourseGradesAllZeroScores(t *testing.T) {
	f := newGradebookFixture()
	f.scores.scores = map[string]map[string]*float64{
		"student-1": {"item-1": float64Ptr(0), "item-2": float64Ptr(0)},
	}
	f.gradeStore.grades = map[string]models.CourseGrade{
		"student-1": {StudentID: "student-1", CourseID: "course-1", MidtermScore: float64Ptr(0), FinalScore: float64Ptr(0)},
	}

	report, err := f.service(false).ComputeCourseGrades(context.Background(), "course-1")
	require.NoError(t, err)
	require.Len(t, report.Results, 1)

	result := report.Results[0]
	assert.Zero(t, result.TotalScore)
	assert.Zero(t, result.Percentage)
	assert.Equal(t, models.Grade0, result.Grade)
	assert.Empty(t, result.ComputeError)
}

func TestComputeCourseGradesSummativeGapYieldsIncomplete(t *testing.T) {
	f := newGradebookFixture()
	// item-2 is summative and never scored
	f.scores.scores = map[string]map[string]*float64{
		"student-1": {"item-1": float64Ptr(60)},
	}
	f.gradeStore.grades = map[string]models.CourseGrade{
		"student-1": {StudentID: "student-1", CourseID: "course-1", MidtermScore: float64Ptr(50), FinalScore: float64Ptr(50)},
	}

	report, err := f.service(false).ComputeCourseGrades(context.Background(), "course-1")
	require.NoError(t, err)

	result := report.Results[0]
	assert.Equal(t, models.GradeIncomplete, result.Grade)
	assert.Equal(t, []string{"item-2"}, result.IncompleteSummativeItems)
}

func TestComputeCourseGradesRecordedEmptyScoreCountsAsScored(t *testing.T) {
	f := newGradebookFixture()
	// item-2 has an explicit empty score row: 0 points, but not a gap
	f.scores.scores = map[string]map[string]*float64{
		"student-1": {"item-1": float64Ptr(60), "item-2": nil},
	}

	report, err := f.service(false).ComputeCourseGrades(context.Background(), "course-1")
	require.NoError(t, err)

	result := report.Results[0]
	assert.Equal(t, 60.0, result.CollectedScore)
	assert.Empty(t, result.IncompleteSummativeItems)
	assert.NotEqual(t, models.GradeIncomplete, result.Grade)
}

func TestComputeCourseGradesAttendanceOverrideWins(t *testing.T) {
	f := newGradebookFixture()
	f.scores.scores = map[string]map[string]*float64{
		"student-1": {"item-1": float64Ptr(50), "item-2": float64Ptr(30)},
	}
	f.gradeStore.grades = map[string]models.CourseGrade{
		"student-1": {StudentID: "student-1", CourseID: "course-1", MidtermScore: float64Ptr(50), FinalScore: float64Ptr(50)},
	}
	f.eligibility.verdicts = map[string]models.AttendanceEligibility{
		"student-1": {StudentID: "student-1", Insufficient: true, Percentage: 0.5},
	}

	report, err := f.service(false).ComputeCourseGrades(context.Background(), "course-1")
	require.NoError(t, err)

	result := report.Results[0]
	assert.Equal(t, models.GradeAbsence, result.Grade)
	assert.True(t, result.HasAttendanceOverride)
	assert.InDelta(t, 90.0, result.Percentage, 1e-9)
}

func TestComputeCourseGradesEmptyStructure(t *testing.T) {
	f := newGradebookFixture()
	f.structures.structure = &models.CourseStructure{CourseID: "course-1"}

	report, err := f.service(false).ComputeCourseGrades(context.Background(), "course-1")
	require.NoError(t, err)
	require.Len(t, report.Results, 1)

	result := report.Results[0]
	assert.Zero(t, result.TotalScore)
	assert.Zero(t, result.Percentage)
	assert.Equal(t, models.Grade0, result.Grade)
	assert.Empty(t, result.ComputeError)
}

func TestComputeCourseGradesGroupScorePrecedence(t *testing.T) {
	f := newGradebookFixture()
	f.structures.structure.Units[0].Items = []models.GradedItem{
		{ID: "item-1", MaxScore: 50, IndicatorType: models.IndicatorFormative, IsGroupAssignment: true},
		{ID: "item-2", MaxScore: 50, IndicatorType: models.IndicatorFormative, IsGroupAssignment: true},
		{ID: "item-3", MaxScore: 50, IndicatorType: models.IndicatorFormative},
	}
	f.scores.scores = map[string]map[string]*float64{
		// individual score on item-1 outranks the group's
		"student-1": {"item-1": float64Ptr(10)},
	}
	f.scores.groups = map[string]string{"student-1": "group-1"}
	f.scores.groupScores = map[string]map[string]float64{
		"group-1": {"item-1": 45, "item-2": 40, "item-3": 35},
	}

	report, err := f.service(false).ComputeCourseGrades(context.Background(), "course-1")
	require.NoError(t, err)

	// 10 (individual) + 40 (group on item-2); item-3 is not a group
	// assignment so the group's 35 never applies
	assert.Equal(t, 50.0, report.Results[0].CollectedScore)
}

func TestComputeCourseGradesRatioRescaling(t *testing.T) {
	f := newGradebookFixture()
	f.courses.course.TargetMidRatio = float64Ptr(70)
	f.courses.course.TargetFinalRatio = float64Ptr(30)
	f.scores.scores = map[string]map[string]*float64{
		"student-1": {"item-1": float64Ptr(30), "item-2": float64Ptr(20)},
	}
	f.gradeStore.grades = map[string]models.CourseGrade{
		"student-1": {StudentID: "student-1", CourseID: "course-1", MidtermScore: float64Ptr(25), FinalScore: float64Ptr(40)},
	}

	report, err := f.service(false).ComputeCourseGrades(context.Background(), "course-1")
	require.NoError(t, err)

	// during = 75/150 * 70 = 35, final = 40/50 * 30 = 24, basis 100
	assert.InDelta(t, 59.0, report.Results[0].Percentage, 1e-9)
	assert.Equal(t, models.Grade1_5, report.Results[0].Grade)
}

func TestComputeCourseGradesZeroMaxWithRatio(t *testing.T) {
	f := newGradebookFixture()
	f.courses.course.TargetMidRatio = float64Ptr(70)
	f.courses.course.TargetFinalRatio = float64Ptr(30)
	f.structures.structure = &models.CourseStructure{CourseID: "course-1"}
	f.gradeStore.grades = map[string]models.CourseGrade{
		"student-1": {StudentID: "student-1", CourseID: "course-1", FinalScore: float64Ptr(10)},
	}

	report, err := f.service(false).ComputeCourseGrades(context.Background(), "course-1")
	require.NoError(t, err)
	assert.Zero(t, report.Results[0].Percentage)
	assert.Empty(t, report.Results[0].ComputeError)
}

func TestComputeCourseGradesIdempotent(t *testing.T) {
	f := newGradebookFixture()
	f.scores.scores = map[string]map[string]*float64{
		"student-1": {"item-1": float64Ptr(41.5), "item-2": float64Ptr(22)},
	}
	svc := f.service(false)

	first, err := svc.ComputeCourseGrades(context.Background(), "course-1")
	require.NoError(t, err)
	second, err := svc.ComputeCourseGrades(context.Background(), "course-1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestComputeCourseGradesPersistFreezesOriginalGrade(t *testing.T) {
	f := newGradebookFixture()
	original := models.Grade3
	f.gradeStore.grades = map[string]models.CourseGrade{
		"student-1": {
			StudentID:          "student-1",
			CourseID:           "course-1",
			FinalGrade:         &original,
			OriginalFinalGrade: &original,
			RemediationStatus:  models.RemediationInProgress,
		},
	}

	_, err := f.service(true).ComputeCourseGrades(context.Background(), "course-1")
	require.NoError(t, err)
	require.Len(t, f.gradeStore.persisted, 1)

	row := f.gradeStore.persisted[0]
	require.NotNil(t, row.FinalGrade)
	// the summative item is unscored, so recomputation yields the
	// incomplete symbol rather than a numeric grade
	assert.Equal(t, models.GradeIncomplete, *row.FinalGrade)
	// the original grade and workflow status survive recomputation
	require.NotNil(t, row.OriginalFinalGrade)
	assert.Equal(t, models.Grade3, *row.OriginalFinalGrade)
	assert.Equal(t, models.RemediationInProgress, row.RemediationStatus)
}

func TestComputeStudentPanicIsIsolated(t *testing.T) {
	f := newGradebookFixture()
	svc := f.service(false)

	in := &courseInputs{course: &models.Course{ID: "course-1"}}
	result := svc.computeStudent(in, models.Student{ID: "student-1", FirstName: "Somchai"})

	assert.Equal(t, "student-1", result.StudentID)
	assert.NotEmpty(t, result.ComputeError)
	assert.Empty(t, result.Grade)
}

func TestGradeForStudentNotOnRoster(t *testing.T) {
	f := newGradebookFixture()

	_, err := f.service(false).GradeForStudent(context.Background(), "course-1", "student-404")
	assert.Error(t, err)
}
