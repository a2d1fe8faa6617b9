package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sakchai-dev/school-grading-api/internal/models"
	appErrors "github.com/sakchai-dev/school-grading-api/pkg/errors"
)

type scoreWriter interface {
	Upsert(ctx context.Context, score *models.Score) error
	BulkUpsert(ctx context.Context, scores []models.Score) error
	UpsertGroupScore(ctx context.Context, score *models.GroupScore) error
	UpsertQualitative(ctx context.Context, score *models.QualitativeScore) error
}

type itemFinder interface {
	FindItem(ctx context.Context, itemID string) (*models.GradedItem, string, error)
}

type gradeRecomputer interface {
	ComputeCourseGrades(ctx context.Context, courseID string) (*models.CourseGradeReport, error)
	InvalidateReport(ctx context.Context, courseID string)
}

// ScoreService handles teacher score entry. Every write funnels into the
// same upsert discipline the webhook uses, then triggers one aggregation
// pass for the course.
type ScoreService struct {
	scores    scoreWriter
	items     itemFinder
	gradebook gradeRecomputer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScoreService constructs ScoreService.
func NewScoreService(scores scoreWriter, items itemFinder, gradebook gradeRecomputer, validate *validator.Validate, logger *zap.Logger) *ScoreService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScoreService{scores: scores, items: items, gradebook: gradebook, validator: validate, logger: logger}
}

// UpsertScoreRequest is a single score entry payload. A nil Value records
// an explicit empty score, which still counts as "scored".
type UpsertScoreRequest struct {
	StudentID    string   `json:"student_id" validate:"required"`
	GradedItemID string   `json:"graded_item_id" validate:"required"`
	Value        *float64 `json:"value"`
}

// BulkScoreItem is one entry of a bulk score payload.
type BulkScoreItem struct {
	StudentID    string   `json:"student_id" validate:"required"`
	GradedItemID string   `json:"graded_item_id" validate:"required"`
	Value        *float64 `json:"value"`
}

// BulkScoresRequest writes a batch of scores for one course atomically.
type BulkScoresRequest struct {
	CourseID string          `json:"course_id" validate:"required"`
	Items    []BulkScoreItem `json:"items" validate:"required,min=1,dive"`
}

// UpsertGroupScoreRequest scores one group for one group assignment.
type UpsertGroupScoreRequest struct {
	StudentGroupID string  `json:"student_group_id" validate:"required"`
	GradedItemID   string  `json:"graded_item_id" validate:"required"`
	Value          float64 `json:"value"`
}

// UpsertQualitativeRequest records one rubric rating.
type UpsertQualitativeRequest struct {
	StudentID         string `json:"student_id" validate:"required"`
	AssessmentTopicID string `json:"assessment_topic_id" validate:"required"`
	CourseID          string `json:"course_id" validate:"required"`
	RubricLevel       int    `json:"rubric_level" validate:"min=0"`
}

// Upsert writes one score and recomputes the owning course.
func (s *ScoreService) Upsert(ctx context.Context, req UpsertScoreRequest) (*models.Score, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid score payload")
	}
	_, courseID, err := s.items.FindItem(ctx, req.GradedItemID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "graded item not found")
		}
		return nil, err
	}
	score := &models.Score{StudentID: req.StudentID, GradedItemID: req.GradedItemID, Value: req.Value}
	if err := s.scores.Upsert(ctx, score); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save score")
	}
	s.recompute(ctx, courseID)
	return score, nil
}

// BulkUpsert writes a batch atomically, then recomputes the course once.
func (s *ScoreService) BulkUpsert(ctx context.Context, req BulkScoresRequest) (int, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk payload")
	}
	seen := map[string]struct{}{}
	scores := make([]models.Score, len(req.Items))
	for i, item := range req.Items {
		key := fmt.Sprintf("%s|%s", item.StudentID, item.GradedItemID)
		if _, ok := seen[key]; ok {
			return 0, appErrors.Clone(appErrors.ErrConflict, "duplicate student/item in payload")
		}
		seen[key] = struct{}{}
		scores[i] = models.Score{StudentID: item.StudentID, GradedItemID: item.GradedItemID, Value: item.Value}
	}
	if err := s.scores.BulkUpsert(ctx, scores); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "bulk score save failed")
	}
	s.recompute(ctx, req.CourseID)
	return len(scores), nil
}

// UpsertGroupScore writes one group score and recomputes the course.
func (s *ScoreService) UpsertGroupScore(ctx context.Context, req UpsertGroupScoreRequest) (*models.GroupScore, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid group score payload")
	}
	item, courseID, err := s.items.FindItem(ctx, req.GradedItemID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "graded item not found")
		}
		return nil, err
	}
	if !item.IsGroupAssignment {
		return nil, appErrors.Clone(appErrors.ErrValidation, "item is not a group assignment")
	}
	score := &models.GroupScore{StudentGroupID: req.StudentGroupID, GradedItemID: req.GradedItemID, Value: req.Value}
	if err := s.scores.UpsertGroupScore(ctx, score); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save group score")
	}
	s.recompute(ctx, courseID)
	return score, nil
}

// UpsertQualitative records a rubric rating. Rubric levels feed dimension
// reporting only, so no recomputation is triggered.
func (s *ScoreService) UpsertQualitative(ctx context.Context, req UpsertQualitativeRequest) (*models.QualitativeScore, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rubric payload")
	}
	score := &models.QualitativeScore{
		StudentID:         req.StudentID,
		AssessmentTopicID: req.AssessmentTopicID,
		CourseID:          req.CourseID,
		RubricLevel:       req.RubricLevel,
	}
	if err := s.scores.UpsertQualitative(ctx, score); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save rubric rating")
	}
	return score, nil
}

func (s *ScoreService) recompute(ctx context.Context, courseID string) {
	s.gradebook.InvalidateReport(ctx, courseID)
	if _, err := s.gradebook.ComputeCourseGrades(ctx, courseID); err != nil {
		s.logger.Error("recompute after score save failed", zap.String("course_id", courseID), zap.Error(err))
	}
}
