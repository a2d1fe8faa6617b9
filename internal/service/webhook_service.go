package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sakchai-dev/school-grading-api/internal/models"
	appErrors "github.com/sakchai-dev/school-grading-api/pkg/errors"
	"github.com/sakchai-dev/school-grading-api/pkg/token"
)

type studentResolver interface {
	FindStudentByExternalID(ctx context.Context, externalID string) (*models.Student, error)
}

type examScoreWriter interface {
	SetExamScore(ctx context.Context, studentID, courseID, column string, value float64) error
}

// WebhookService ingests score events pushed by external form tools. The
// capability token pins each event to one writable target; everything
// else about the event is untrusted input.
type WebhookService struct {
	signer    *token.CapabilitySigner
	students  studentResolver
	scores    scoreWriter
	items     itemFinder
	exams     examScoreWriter
	gradebook gradeRecomputer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewWebhookService constructs WebhookService.
func NewWebhookService(signer *token.CapabilitySigner, students studentResolver, scores scoreWriter, items itemFinder, exams examScoreWriter, gradebook gradeRecomputer, validate *validator.Validate, logger *zap.Logger) *WebhookService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookService{
		signer:    signer,
		students:  students,
		scores:    scores,
		items:     items,
		exams:     exams,
		gradebook: gradebook,
		validator: validate,
		logger:    logger,
	}
}

// ScoreEvent is the webhook payload. FormID and ResponseID are carried
// for logging only; concurrent responses for the same student resolve
// last write wins.
type ScoreEvent struct {
	CapabilityToken   string  `json:"capability_token" validate:"required"`
	StudentExternalID string  `json:"student_external_id" validate:"required"`
	Score             float64 `json:"score"`
	MaxScore          float64 `json:"max_score"`
	FormID            string  `json:"form_id"`
	ResponseID        string  `json:"response_id"`
}

// IngestResult reports where an accepted event landed.
type IngestResult struct {
	StudentID string            `json:"student_id"`
	CourseID  string            `json:"course_id"`
	Target    token.ScoreTarget `json:"target"`
	TargetID  string            `json:"target_id"`
}

// Ingest validates and applies one score event. Rejections never mutate
// state.
func (s *WebhookService) Ingest(ctx context.Context, event ScoreEvent) (*IngestResult, error) {
	if err := s.validator.Struct(event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid webhook payload")
	}

	capability, err := s.signer.Parse(event.CapabilityToken)
	if err != nil {
		metricWebhookRejected.WithLabelValues("invalid_token").Inc()
		s.logger.Warn("webhook rejected: bad capability token",
			zap.String("form_id", event.FormID),
			zap.String("response_id", event.ResponseID),
			zap.Error(err))
		return nil, appErrors.Clone(appErrors.ErrInvalidToken, "invalid or expired capability token")
	}

	student, err := s.students.FindStudentByExternalID(ctx, event.StudentExternalID)
	if err != nil {
		if err == sql.ErrNoRows {
			metricWebhookRejected.WithLabelValues("unknown_student").Inc()
			s.logger.Warn("webhook rejected: unknown student",
				zap.String("student_external_id", event.StudentExternalID),
				zap.String("form_id", event.FormID),
				zap.String("response_id", event.ResponseID))
			return nil, appErrors.Clone(appErrors.ErrUnknownStudent, "student identifier not recognised")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student")
	}

	courseID, err := s.apply(ctx, capability, student.ID, event.Score)
	if err != nil {
		return nil, err
	}

	s.gradebook.InvalidateReport(ctx, courseID)
	if _, err := s.gradebook.ComputeCourseGrades(ctx, courseID); err != nil {
		s.logger.Error("recompute after webhook ingest failed",
			zap.String("course_id", courseID), zap.Error(err))
	}

	s.logger.Info("webhook score ingested",
		zap.String("student_id", student.ID),
		zap.String("course_id", courseID),
		zap.String("target", string(capability.Target)),
		zap.String("form_id", event.FormID),
		zap.String("response_id", event.ResponseID))

	return &IngestResult{
		StudentID: student.ID,
		CourseID:  courseID,
		Target:    capability.Target,
		TargetID:  capability.TargetID,
	}, nil
}

// apply routes the score to the target the capability authorizes and
// returns the affected course.
func (s *WebhookService) apply(ctx context.Context, capability *token.Capability, studentID string, value float64) (string, error) {
	switch capability.Target {
	case token.TargetGradedItem:
		_, courseID, err := s.items.FindItem(ctx, capability.TargetID)
		if err != nil {
			if err == sql.ErrNoRows {
				return "", appErrors.Clone(appErrors.ErrNotFound, "graded item not found")
			}
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve graded item")
		}
		score := &models.Score{StudentID: studentID, GradedItemID: capability.TargetID, Value: &value}
		if err := s.scores.Upsert(ctx, score); err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save webhook score")
		}
		return courseID, nil
	case token.TargetMidterm:
		if err := s.exams.SetExamScore(ctx, studentID, capability.TargetID, "midterm_score", value); err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save midterm score")
		}
		return capability.TargetID, nil
	case token.TargetFinal:
		if err := s.exams.SetExamScore(ctx, studentID, capability.TargetID, "final_score", value); err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save final score")
		}
		return capability.TargetID, nil
	default:
		metricWebhookRejected.WithLabelValues("invalid_token").Inc()
		return "", appErrors.Clone(appErrors.ErrInvalidToken, "unknown capability target")
	}
}

// MintTokenRequest asks for a capability token scoped to one target.
type MintTokenRequest struct {
	Target   token.ScoreTarget `json:"target" validate:"required"`
	TargetID string            `json:"target_id" validate:"required"`
}

// MintTokenResult is the issued token and its expiry.
type MintTokenResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// MintToken issues a capability token for embedding in an external form.
// The issuer must own the target's course; exam targets name the course
// directly.
func (s *WebhookService) MintToken(ctx context.Context, issuerID string, req MintTokenRequest) (*MintTokenResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid token request")
	}
	if !req.Target.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown score target")
	}
	if req.Target == token.TargetGradedItem {
		if _, _, err := s.items.FindItem(ctx, req.TargetID); err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "graded item not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve graded item")
		}
	}
	raw, expiresAt, err := s.signer.Generate(req.Target, req.TargetID, issuerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue token")
	}
	return &MintTokenResult{Token: raw, ExpiresAt: expiresAt}, nil
}
