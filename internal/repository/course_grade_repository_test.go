package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/sakchai-dev/school-grading-api/internal/models"
)

func TestCourseGradeRepositoryUpsertDefaultsStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseGradeRepository(db)

	mock.ExpectExec("INSERT INTO course_grades").
		WillReturnResult(sqlmock.NewResult(0, 1))

	grade := &models.CourseGrade{StudentID: "stu-1", CourseID: "course-1"}
	err := repo.Upsert(context.Background(), grade)
	require.NoError(t, err)
	require.Equal(t, models.RemediationNone, grade.RemediationStatus)
	require.NotEmpty(t, grade.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseGradeRepositorySetExamScoreRejectsUnknownColumn(t *testing.T) {
	db, _, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseGradeRepository(db)

	err := repo.SetExamScore(context.Background(), "stu-1", "course-1", "final_grade", 40)
	require.Error(t, err)
}

func TestCourseGradeRepositoryBulkTransitionStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseGradeRepository(db)

	mock.ExpectExec("UPDATE course_grades SET remediation_status").
		WillReturnResult(sqlmock.NewResult(0, 3))

	count, err := repo.BulkTransitionStatus(context.Background(), []string{"course-1", "course-2"},
		models.RemediationCompleted, models.RemediationSubmittedToDeptHead)
	require.NoError(t, err)
	require.EqualValues(t, 3, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseGradeRepositoryBulkTransitionStatusEmptyScope(t *testing.T) {
	db, _, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseGradeRepository(db)

	count, err := repo.BulkTransitionStatus(context.Background(), nil,
		models.RemediationCompleted, models.RemediationSubmittedToDeptHead)
	require.NoError(t, err)
	require.Zero(t, count)
}
