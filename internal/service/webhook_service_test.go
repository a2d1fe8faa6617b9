package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sakchai-dev/school-grading-api/internal/models"
	appErrors "github.com/sakchai-dev/school-grading-api/pkg/errors"
	"github.com/sakchai-dev/school-grading-api/pkg/token"
)

type mockScoreWriter struct {
	scores       []models.Score
	groupScores  []models.GroupScore
	qualitatives []models.QualitativeScore
}

func (m *mockScoreWriter) Upsert(ctx context.Context, score *models.Score) error {
	m.scores = append(m.scores, *score)
	return nil
}

func (m *mockScoreWriter) BulkUpsert(ctx context.Context, scores []models.Score) error {
	m.scores = append(m.scores, scores...)
	return nil
}

func (m *mockScoreWriter) UpsertGroupScore(ctx context.Context, score *models.GroupScore) error {
	m.groupScores = append(m.groupScores, *score)
	return nil
}

func (m *mockScoreWriter) UpsertQualitative(ctx context.Context, score *models.QualitativeScore) error {
	m.qualitatives = append(m.qualitatives, *score)
	return nil
}

type mockItemFinder struct {
	items map[string]itemLookup
}

type itemLookup struct {
	item     models.GradedItem
	courseID string
}

func (m *mockItemFinder) FindItem(ctx context.Context, itemID string) (*models.GradedItem, string, error) {
	lookup, ok := m.items[itemID]
	if !ok {
		return nil, "", sql.ErrNoRows
	}
	item := lookup.item
	return &item, lookup.courseID, nil
}

type mockStudentResolver struct {
	students map[string]*models.Student
}

func (m *mockStudentResolver) FindStudentByExternalID(ctx context.Context, externalID string) (*models.Student, error) {
	student, ok := m.students[externalID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return student, nil
}

type mockExamScoreWriter struct {
	writes []examWrite
}

type examWrite struct {
	studentID string
	courseID  string
	column    string
	value     float64
}

func (m *mockExamScoreWriter) SetExamScore(ctx context.Context, studentID, courseID, column string, value float64) error {
	m.writes = append(m.writes, examWrite{studentID, courseID, column, value})
	return nil
}

type mockGradeRecomputer struct {
	recomputed  []string
	invalidated []string
}

func (m *mockGradeRecomputer) ComputeCourseGrades(ctx context.Context, courseID string) (*models.CourseGradeReport, error) {
	m.recomputed = append(m.recomputed, courseID)
	return &models.CourseGradeReport{CourseID: courseID}, nil
}

func (m *mockGradeRecomputer) InvalidateReport(ctx context.Context, courseID string) {
	m.invalidated = append(m.invalidated, courseID)
}

type webhookFixture struct {
	signer    *token.CapabilitySigner
	scores    *mockScoreWriter
	items     *mockItemFinder
	students  *mockStudentResolver
	exams     *mockExamScoreWriter
	gradebook *mockGradeRecomputer
}

func newWebhookFixture() *webhookFixture {
	return &webhookFixture{
		signer: token.NewCapabilitySigner("test-secret", time.Hour),
		scores: &mockScoreWriter{},
		items: &mockItemFinder{items: map[string]itemLookup{
			"item-1": {item: models.GradedItem{ID: "item-1", MaxScore: 10}, courseID: "course-1"},
		}},
		students: &mockStudentResolver{students: map[string]*models.Student{
			"6401234": {ID: "student-1", ExternalID: "6401234"},
		}},
		exams:     &mockExamScoreWriter{},
		gradebook: &mockGradeRecomputer{},
	}
}

func (f *webhookFixture) service() *WebhookService {
	return NewWebhookService(f.signer, f.students, f.scores, f.items, f.exams, f.gradebook, nil, zap.NewNop())
}

func TestIngestGradedItemScore(t *testing.T) {
	f := newWebhookFixture()
	raw, _, err := f.signer.Generate(token.TargetGradedItem, "item-1", "teacher-1")
	require.NoError(t, err)

	result, err := f.service().Ingest(context.Background(), ScoreEvent{
		CapabilityToken:   raw,
		StudentExternalID: "6401234",
		Score:             8,
		MaxScore:          10,
		FormID:            "form-1",
		ResponseID:        "resp-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "student-1", result.StudentID)
	assert.Equal(t, "course-1", result.CourseID)
	require.Len(t, f.scores.scores, 1)
	require.NotNil(t, f.scores.scores[0].Value)
	assert.Equal(t, 8.0, *f.scores.scores[0].Value)
	assert.Equal(t, []string{"course-1"}, f.gradebook.recomputed)
	assert.Equal(t, []string{"course-1"}, f.gradebook.invalidated)
}

func TestIngestMidtermScore(t *testing.T) {
	f := newWebhookFixture()
	raw, _, err := f.signer.Generate(token.TargetMidterm, "course-1", "teacher-1")
	require.NoError(t, err)

	_, err = f.service().Ingest(context.Background(), ScoreEvent{
		CapabilityToken:   raw,
		StudentExternalID: "6401234",
		Score:             42,
	})
	require.NoError(t, err)

	require.Len(t, f.exams.writes, 1)
	assert.Equal(t, examWrite{"student-1", "course-1", "midterm_score", 42}, f.exams.writes[0])
	assert.Empty(t, f.scores.scores)
}

func TestIngestRejectsForgedToken(t *testing.T) {
	f := newWebhookFixture()
	forged := token.NewCapabilitySigner("other-secret", time.Hour)
	raw, _, err := forged.Generate(token.TargetGradedItem, "item-1", "teacher-1")
	require.NoError(t, err)

	_, err = f.service().Ingest(context.Background(), ScoreEvent{
		CapabilityToken:   raw,
		StudentExternalID: "6401234",
		Score:             8,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidToken.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.scores.scores)
	assert.Empty(t, f.gradebook.recomputed)
}

func TestIngestRejectsExpiredToken(t *testing.T) {
	f := newWebhookFixture()
	raw := expiredCapabilityToken(t, "test-secret", "item-1", "teacher-1")

	_, err := f.service().Ingest(context.Background(), ScoreEvent{
		CapabilityToken:   raw,
		StudentExternalID: "6401234",
		Score:             8,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidToken.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.scores.scores)
}

func TestIngestRejectsUnknownStudent(t *testing.T) {
	f := newWebhookFixture()
	raw, _, err := f.signer.Generate(token.TargetGradedItem, "item-1", "teacher-1")
	require.NoError(t, err)

	_, err = f.service().Ingest(context.Background(), ScoreEvent{
		CapabilityToken:   raw,
		StudentExternalID: "9999999",
		Score:             8,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnknownStudent.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.scores.scores)
	assert.Empty(t, f.exams.writes)
}

// expiredCapabilityToken signs a token whose expiry is already in the
// past, matching the wire format the signer emits.
func expiredCapabilityToken(t *testing.T, secret, itemID, issuerID string) string {
	t.Helper()
	encodedTarget := base64.RawURLEncoding.EncodeToString([]byte(itemID))
	ts := strconv.FormatInt(time.Now().Add(-time.Hour).Unix(), 10)
	payload := fmt.Sprintf("%s|%s|%s|%s", token.TargetGradedItem, encodedTarget, issuerID, ts)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	signature := hex.EncodeToString(mac.Sum(nil))
	return strings.Join([]string{string(token.TargetGradedItem), encodedTarget, issuerID, ts, signature}, ".")
}

func TestMintTokenRoundTrip(t *testing.T) {
	f := newWebhookFixture()

	minted, err := f.service().MintToken(context.Background(), "teacher-1", MintTokenRequest{
		Target:   token.TargetGradedItem,
		TargetID: "item-1",
	})
	require.NoError(t, err)

	capability, err := f.signer.Parse(minted.Token)
	require.NoError(t, err)
	assert.Equal(t, token.TargetGradedItem, capability.Target)
	assert.Equal(t, "item-1", capability.TargetID)
	assert.Equal(t, "teacher-1", capability.IssuerID)
}

func TestMintTokenUnknownItem(t *testing.T) {
	f := newWebhookFixture()

	_, err := f.service().MintToken(context.Background(), "teacher-1", MintTokenRequest{
		Target:   token.TargetGradedItem,
		TargetID: "item-404",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
