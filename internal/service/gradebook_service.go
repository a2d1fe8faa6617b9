package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sakchai-dev/school-grading-api/internal/models"
	appErrors "github.com/sakchai-dev/school-grading-api/pkg/errors"
)

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type structureResolver interface {
	Resolve(ctx context.Context, courseID string) (*models.CourseStructure, error)
}

type rosterReader interface {
	ListRoster(ctx context.Context, courseID string) ([]models.Student, error)
}

type scoreReader interface {
	FetchCourseScores(ctx context.Context, courseID string) (map[string]map[string]*float64, error)
	FetchGroupScores(ctx context.Context, courseID string) (map[string]map[string]float64, error)
	FetchGroupMembers(ctx context.Context, courseID string) (map[string]string, error)
}

type courseGradeStore interface {
	FetchByCourse(ctx context.Context, courseID string) (map[string]models.CourseGrade, error)
	BulkUpsert(ctx context.Context, grades []models.CourseGrade) error
}

type eligibilityEvaluator interface {
	EvaluateCourse(ctx context.Context, courseID string, studentIDs []string) (map[string]models.AttendanceEligibility, error)
}

type reportCache interface {
	GetReport(ctx context.Context, courseID string) (*models.CourseGradeReport, bool)
	SetReport(ctx context.Context, report *models.CourseGradeReport)
	Invalidate(ctx context.Context, courseID string)
}

// GradebookService is the single authority for turning raw scores, exam
// scores and attendance into final grades. Every surface must call it
// rather than recomputing on its own.
type GradebookService struct {
	courses      courseReader
	structures   structureResolver
	roster       rosterReader
	scores       scoreReader
	courseGrades courseGradeStore
	eligibility  eligibilityEvaluator
	cache        reportCache
	logger       *zap.Logger
	persist      bool
}

// NewGradebookService constructs GradebookService. When persist is set,
// every aggregation pass writes recomputed final grades back.
func NewGradebookService(courses courseReader, structures structureResolver, roster rosterReader, scores scoreReader, courseGrades courseGradeStore, eligibility eligibilityEvaluator, cache reportCache, logger *zap.Logger, persist bool) *GradebookService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradebookService{
		courses:      courses,
		structures:   structures,
		roster:       roster,
		scores:       scores,
		courseGrades: courseGrades,
		eligibility:  eligibility,
		cache:        cache,
		logger:       logger,
		persist:      persist,
	}
}

// courseInputs bundles the bulk reads one aggregation pass works from.
type courseInputs struct {
	course      *models.Course
	structure   *models.CourseStructure
	students    []models.Student
	scores      map[string]map[string]*float64
	groupScores map[string]map[string]float64
	groups      map[string]string
	grades      map[string]models.CourseGrade
	eligibility map[string]models.AttendanceEligibility
}

// Report returns the course grade report, served from cache when fresh.
func (s *GradebookService) Report(ctx context.Context, courseID string) (*models.CourseGradeReport, error) {
	if s.cache != nil {
		if report, ok := s.cache.GetReport(ctx, courseID); ok {
			return report, nil
		}
	}
	report, err := s.ComputeCourseGrades(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.SetReport(ctx, report)
	}
	return report, nil
}

// InvalidateReport drops any cached report for the course.
func (s *GradebookService) InvalidateReport(ctx context.Context, courseID string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, courseID)
	}
}

// ComputeCourseGrades runs the full aggregation for one course: bulk
// reads, in-memory derivation per student, and (when configured) one
// write-back of the recomputed rows. Calling it twice with no intervening
// writes yields identical output.
func (s *GradebookService) ComputeCourseGrades(ctx context.Context, courseID string) (*models.CourseGradeReport, error) {
	in, err := s.loadInputs(ctx, courseID)
	if err != nil {
		return nil, err
	}

	metricRecomputations.Inc()

	report := &models.CourseGradeReport{
		CourseID: courseID,
		MaxScores: models.MaxScoresSummary{
			CollectedMax:     in.structure.CollectedMax,
			MidtermMax:       in.structure.MidtermMax,
			FinalMax:         in.structure.FinalMax,
			TargetMidRatio:   in.course.TargetMidRatio,
			TargetFinalRatio: in.course.TargetFinalRatio,
		},
	}

	var toPersist []models.CourseGrade
	for _, student := range in.students {
		result := s.computeStudent(in, student)
		report.Results = append(report.Results, result)
		if result.ComputeError != "" {
			continue
		}
		if s.persist {
			toPersist = append(toPersist, mergeGradeRow(in.grades[student.ID], student.ID, courseID, result.Grade))
		}
	}

	if len(toPersist) > 0 {
		if err := s.courseGrades.BulkUpsert(ctx, toPersist); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist recomputed grades")
		}
	}
	return report, nil
}

// GradeForStudent aggregates a single student within the course. It runs
// the same pass as ComputeCourseGrades so every call site observes
// identical results.
func (s *GradebookService) GradeForStudent(ctx context.Context, courseID, studentID string) (*models.StudentGradeResult, error) {
	report, err := s.ComputeCourseGrades(ctx, courseID)
	if err != nil {
		return nil, err
	}
	for i := range report.Results {
		if report.Results[i].StudentID == studentID {
			return &report.Results[i], nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "student not on course roster")
}

func (s *GradebookService) loadInputs(ctx context.Context, courseID string) (*courseInputs, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "course not found")
	}
	structure, err := s.structures.Resolve(ctx, courseID)
	if err != nil {
		return nil, err
	}
	students, err := s.roster.ListRoster(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	scores, err := s.scores.FetchCourseScores(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scores")
	}
	groupScores, err := s.scores.FetchGroupScores(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group scores")
	}
	groups, err := s.scores.FetchGroupMembers(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group membership")
	}
	grades, err := s.courseGrades.FetchByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course grades")
	}
	studentIDs := make([]string, len(students))
	for i, student := range students {
		studentIDs[i] = student.ID
	}
	eligibility, err := s.eligibility.EvaluateCourse(ctx, courseID, studentIDs)
	if err != nil {
		return nil, err
	}
	return &courseInputs{
		course:      course,
		structure:   structure,
		students:    students,
		scores:      scores,
		groupScores: groupScores,
		groups:      groups,
		grades:      grades,
		eligibility: eligibility,
	}, nil
}

// computeStudent derives one student's result. A failure here is isolated:
// it yields an error marker for the student instead of aborting the whole
// course report.
func (s *GradebookService) computeStudent(in *courseInputs, student models.Student) (result models.StudentGradeResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("grade computation failed",
				zap.String("course_id", in.course.ID),
				zap.String("student_id", student.ID),
				zap.Any("panic", r))
			result = models.StudentGradeResult{
				StudentID:    student.ID,
				StudentName:  student.FullName(),
				ComputeError: fmt.Sprintf("computation failed: %v", r),
			}
		}
	}()

	result = models.StudentGradeResult{StudentID: student.ID, StudentName: student.FullName()}

	for _, item := range in.structure.AllItems() {
		resolved := resolveItemScore(item, student.ID, in.scores, in.groupScores, in.groups)
		result.CollectedScore += resolved.Value
		if !resolved.Scored() && item.IndicatorType == models.IndicatorSummative {
			result.IncompleteSummativeItems = append(result.IncompleteSummativeItems, item.ID)
		}
	}

	if grade, ok := in.grades[student.ID]; ok {
		result.MidtermScore = grade.MidtermScore
		result.FinalScore = grade.FinalScore
	}

	midterm := floatOrZero(result.MidtermScore)
	final := floatOrZero(result.FinalScore)
	result.TotalScore = result.CollectedScore + midterm + final
	result.Percentage = s.percentage(in.course, in.structure, result.CollectedScore, midterm, final)

	result.Grade = models.SymbolForPercent(result.Percentage)
	if len(result.IncompleteSummativeItems) > 0 {
		// a summative gap makes the result provisional, not failing
		result.Grade = models.GradeIncomplete
	}
	if verdict, ok := in.eligibility[student.ID]; ok && verdict.Insufficient {
		// attendance wins over both the numeric band and the
		// completeness override
		result.Grade = models.GradeAbsence
		result.HasAttendanceOverride = true
	}
	return result
}

// percentage maps the raw totals onto the 100-point basis, honoring the
// configured collected+midterm : final ratio when present. Every division
// is guarded: a zero max contributes 0, never a crash.
func (s *GradebookService) percentage(course *models.Course, structure *models.CourseStructure, collected, midterm, final float64) float64 {
	duringRaw := collected + midterm
	duringMax := structure.CollectedMax + structure.MidtermMax

	if !course.HasTargetRatio() {
		grandMax := duringMax + structure.FinalMax
		if grandMax <= 0 {
			return 0
		}
		return (duringRaw + final) / grandMax * 100
	}

	midRatio := *course.TargetMidRatio
	finalRatio := *course.TargetFinalRatio

	var scaledDuring, scaledFinal float64
	if duringMax > 0 {
		scaledDuring = duringRaw / duringMax * midRatio
	} else if duringRaw != 0 {
		s.logger.Warn("nonzero during-semester score with zero max, contributing 0",
			zap.String("course_id", course.ID))
	}
	if structure.FinalMax > 0 {
		scaledFinal = final / structure.FinalMax * finalRatio
	} else if final != 0 {
		s.logger.Warn("nonzero final score with zero final max, contributing 0",
			zap.String("course_id", course.ID))
	}

	basis := midRatio + finalRatio
	if basis <= 0 {
		return 0
	}
	return (scaledDuring + scaledFinal) / basis * 100
}

// resolveItemScore applies the fixed precedence for one (student, item):
// an individual score row (including a recorded empty one) always wins;
// a group score applies only to group assignments when the student's
// group has one; otherwise the item is unscored.
func resolveItemScore(item models.GradedItem, studentID string, scores map[string]map[string]*float64, groupScores map[string]map[string]float64, groups map[string]string) models.ResolvedScore {
	if studentScores, ok := scores[studentID]; ok {
		if value, ok := studentScores[item.ID]; ok {
			resolved := models.ResolvedScore{Source: models.ScoreSourceIndividual}
			if value != nil {
				resolved.Value = *value
			}
			return resolved
		}
	}
	if item.IsGroupAssignment {
		if groupID, ok := groups[studentID]; ok {
			if itemScores, ok := groupScores[groupID]; ok {
				if value, ok := itemScores[item.ID]; ok {
					return models.ResolvedScore{Source: models.ScoreSourceGroup, Value: value}
				}
			}
		}
	}
	return models.ResolvedScore{Source: models.ScoreSourceUnscored}
}

// mergeGradeRow folds the recomputed grade into the existing row without
// disturbing exam scores or remediation state. The first computed grade
// also becomes the immutable original.
func mergeGradeRow(existing models.CourseGrade, studentID, courseID string, grade models.GradeSymbol) models.CourseGrade {
	row := existing
	row.StudentID = studentID
	row.CourseID = courseID
	row.FinalGrade = &grade
	if row.OriginalFinalGrade == nil {
		original := grade
		row.OriginalFinalGrade = &original
	}
	if row.RemediationStatus == "" {
		row.RemediationStatus = models.RemediationNone
	}
	return row
}

func floatOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
