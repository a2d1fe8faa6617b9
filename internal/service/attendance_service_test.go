package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sakchai-dev/school-grading-api/internal/models"
)

type mockAttendanceRepo struct {
	scheduled int
	counts    []models.AttendanceCounts
	records   []models.AttendanceRecord
	bulk      [][]models.AttendanceRecord
	statuses  []models.AttendanceStatus
}

func (m *mockAttendanceRepo) CountScheduledPeriods(ctx context.Context, courseID string) (int, error) {
	return m.scheduled, nil
}

func (m *mockAttendanceRepo) CountAttendedByCourse(ctx context.Context, courseID string, statuses []models.AttendanceStatus) ([]models.AttendanceCounts, error) {
	m.statuses = statuses
	return m.counts, nil
}

func (m *mockAttendanceRepo) Upsert(ctx context.Context, record *models.AttendanceRecord) error {
	m.records = append(m.records, *record)
	return nil
}

func (m *mockAttendanceRepo) BulkUpsert(ctx context.Context, records []models.AttendanceRecord) error {
	m.bulk = append(m.bulk, records)
	return nil
}

func TestMarkNormalizesStatus(t *testing.T) {
	repo := &mockAttendanceRepo{}
	svc := NewAttendanceService(repo, nil, zap.NewNop())

	record, err := svc.Mark(context.Background(), MarkAttendanceRequest{
		StudentID:        "student-1",
		TimetableEntryID: "slot-1",
		Date:             "2025-11-03",
		Status:           "late",
	})
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceLate, record.Status)
	require.Len(t, repo.records, 1)
}

func TestMarkRejectsUnknownStatus(t *testing.T) {
	svc := NewAttendanceService(&mockAttendanceRepo{}, nil, zap.NewNop())

	_, err := svc.Mark(context.Background(), MarkAttendanceRequest{
		StudentID:        "student-1",
		TimetableEntryID: "slot-1",
		Date:             "2025-11-03",
		Status:           "vanished",
	})
	assert.Error(t, err)
}

func TestMarkRejectsBadDate(t *testing.T) {
	svc := NewAttendanceService(&mockAttendanceRepo{}, nil, zap.NewNop())

	_, err := svc.Mark(context.Background(), MarkAttendanceRequest{
		StudentID:        "student-1",
		TimetableEntryID: "slot-1",
		Date:             "03/11/2025",
		Status:           "present",
	})
	assert.Error(t, err)
}

func TestBulkMarkRejectsDuplicates(t *testing.T) {
	svc := NewAttendanceService(&mockAttendanceRepo{}, nil, zap.NewNop())

	_, err := svc.BulkMark(context.Background(), BulkMarkAttendanceRequest{
		TimetableEntryID: "slot-1",
		Date:             "2025-11-03",
		Items: []BulkAttendanceItem{
			{StudentID: "student-1", Status: "present"},
			{StudentID: "student-1", Status: "absent"},
		},
	})
	assert.Error(t, err)
}

func TestBulkMarkWritesOneBatch(t *testing.T) {
	repo := &mockAttendanceRepo{}
	svc := NewAttendanceService(repo, nil, zap.NewNop())

	count, err := svc.BulkMark(context.Background(), BulkMarkAttendanceRequest{
		TimetableEntryID: "slot-1",
		Date:             "2025-11-03",
		Items: []BulkAttendanceItem{
			{StudentID: "student-1", Status: "present"},
			{StudentID: "student-2", Status: "LEAVE"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.Len(t, repo.bulk, 1)
	assert.Len(t, repo.bulk[0], 2)
}

func TestEvaluateCourseThreshold(t *testing.T) {
	repo := &mockAttendanceRepo{
		scheduled: 100,
		counts: []models.AttendanceCounts{
			{StudentID: "student-1", Attended: 80},
			{StudentID: "student-2", Attended: 79},
		},
	}
	svc := NewAttendanceService(repo, nil, zap.NewNop())

	verdicts, err := svc.EvaluateCourse(context.Background(), "course-1", []string{"student-1", "student-2", "student-3"})
	require.NoError(t, err)

	// exactly 80% attends the exam
	assert.False(t, verdicts["student-1"].Insufficient)
	assert.True(t, verdicts["student-2"].Insufficient)
	// no marks at all means zero attendance
	assert.True(t, verdicts["student-3"].Insufficient)
	// late still counts as attended
	assert.Equal(t, models.AttendedStatuses, repo.statuses)
}

func TestEvaluateCourseNoSchedule(t *testing.T) {
	svc := NewAttendanceService(&mockAttendanceRepo{scheduled: 0}, nil, zap.NewNop())

	verdicts, err := svc.EvaluateCourse(context.Background(), "course-1", []string{"student-1"})
	require.NoError(t, err)

	verdict := verdicts["student-1"]
	assert.False(t, verdict.Insufficient)
	assert.Equal(t, 1.0, verdict.Percentage)
	assert.Zero(t, verdict.TotalScheduledPeriods)
}
