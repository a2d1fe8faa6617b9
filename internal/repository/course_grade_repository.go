package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sakchai-dev/school-grading-api/internal/models"
)

const courseGradeColumns = `id, student_id, course_id, midterm_score, final_score, final_grade,
        original_final_grade, remediation_status, remediated_at, ms_remediated_status,
        midterm_remediated_score, created_at, updated_at`

// CourseGradeRepository handles the authoritative per-(student, course)
// grade rows.
type CourseGradeRepository struct {
	db *sqlx.DB
}

// NewCourseGradeRepository creates a new course grade repository.
func NewCourseGradeRepository(db *sqlx.DB) *CourseGradeRepository {
	return &CourseGradeRepository{db: db}
}

// FetchByCourse returns the course's grade rows keyed by student.
func (r *CourseGradeRepository) FetchByCourse(ctx context.Context, courseID string) (map[string]models.CourseGrade, error) {
	query := fmt.Sprintf(`SELECT %s FROM course_grades WHERE course_id = $1`, courseGradeColumns)
	rows, err := r.db.QueryxContext(ctx, query, courseID)
	if err != nil {
		return nil, fmt.Errorf("fetch course grades: %w", err)
	}
	defer rows.Close()
	result := make(map[string]models.CourseGrade)
	for rows.Next() {
		var grade models.CourseGrade
		if err := rows.StructScan(&grade); err != nil {
			return nil, fmt.Errorf("scan course grade: %w", err)
		}
		result[grade.StudentID] = grade
	}
	return result, rows.Err()
}

// FindByStudentAndCourse returns one grade row.
func (r *CourseGradeRepository) FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.CourseGrade, error) {
	query := fmt.Sprintf(`SELECT %s FROM course_grades WHERE student_id = $1 AND course_id = $2`, courseGradeColumns)
	var grade models.CourseGrade
	if err := r.db.GetContext(ctx, &grade, query, studentID, courseID); err != nil {
		return nil, err
	}
	return &grade, nil
}

// Upsert writes one grade row, creating it lazily on first write. The
// (student, course) pair is unique; conflicting writes update in place.
func (r *CourseGradeRepository) Upsert(ctx context.Context, grade *models.CourseGrade) error {
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if grade.CreatedAt.IsZero() {
		grade.CreatedAt = now
	}
	grade.UpdatedAt = now
	if grade.RemediationStatus == "" {
		grade.RemediationStatus = models.RemediationNone
	}
	const query = `INSERT INTO course_grades (id, student_id, course_id, midterm_score, final_score, final_grade,
            original_final_grade, remediation_status, remediated_at, ms_remediated_status,
            midterm_remediated_score, created_at, updated_at)
        VALUES (:id, :student_id, :course_id, :midterm_score, :final_score, :final_grade,
            :original_final_grade, :remediation_status, :remediated_at, :ms_remediated_status,
            :midterm_remediated_score, :created_at, :updated_at)
        ON CONFLICT (student_id, course_id)
        DO UPDATE SET midterm_score = EXCLUDED.midterm_score,
            final_score = EXCLUDED.final_score,
            final_grade = EXCLUDED.final_grade,
            original_final_grade = EXCLUDED.original_final_grade,
            remediation_status = EXCLUDED.remediation_status,
            remediated_at = EXCLUDED.remediated_at,
            ms_remediated_status = EXCLUDED.ms_remediated_status,
            midterm_remediated_score = EXCLUDED.midterm_remediated_score,
            updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, grade); err != nil {
		return fmt.Errorf("upsert course grade: %w", err)
	}
	return nil
}

// BulkUpsert writes multiple grade rows in one transaction.
func (r *CourseGradeRepository) BulkUpsert(ctx context.Context, grades []models.CourseGrade) error {
	if len(grades) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	for i := range grades {
		if grades[i].ID == "" {
			grades[i].ID = uuid.NewString()
		}
		now := time.Now().UTC()
		if grades[i].CreatedAt.IsZero() {
			grades[i].CreatedAt = now
		}
		grades[i].UpdatedAt = now
		if grades[i].RemediationStatus == "" {
			grades[i].RemediationStatus = models.RemediationNone
		}
		const query = `INSERT INTO course_grades (id, student_id, course_id, midterm_score, final_score, final_grade,
                original_final_grade, remediation_status, remediated_at, ms_remediated_status,
                midterm_remediated_score, created_at, updated_at)
            VALUES (:id, :student_id, :course_id, :midterm_score, :final_score, :final_grade,
                :original_final_grade, :remediation_status, :remediated_at, :ms_remediated_status,
                :midterm_remediated_score, :created_at, :updated_at)
            ON CONFLICT (student_id, course_id)
            DO UPDATE SET midterm_score = EXCLUDED.midterm_score,
                final_score = EXCLUDED.final_score,
                final_grade = EXCLUDED.final_grade,
                original_final_grade = EXCLUDED.original_final_grade,
                remediation_status = EXCLUDED.remediation_status,
                remediated_at = EXCLUDED.remediated_at,
                ms_remediated_status = EXCLUDED.ms_remediated_status,
                midterm_remediated_score = EXCLUDED.midterm_remediated_score,
                updated_at = EXCLUDED.updated_at`
		if _, err := tx.NamedExecContext(ctx, query, grades[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("bulk upsert course grade: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit course grades: %w", err)
	}
	return nil
}

// SetExamScore writes a midterm or final exam score, creating the row on
// first write.
func (r *CourseGradeRepository) SetExamScore(ctx context.Context, studentID, courseID, column string, value float64) error {
	if column != "midterm_score" && column != "final_score" {
		return fmt.Errorf("invalid exam column %q", column)
	}
	now := time.Now().UTC()
	query := fmt.Sprintf(`INSERT INTO course_grades (id, student_id, course_id, %s, remediation_status, ms_remediated_status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, FALSE, $6, $6)
        ON CONFLICT (student_id, course_id)
        DO UPDATE SET %s = EXCLUDED.%s, updated_at = EXCLUDED.updated_at`, column, column, column)
	if _, err := r.db.ExecContext(ctx, query, uuid.NewString(), studentID, courseID, value, models.RemediationNone, now); err != nil {
		return fmt.Errorf("set exam score: %w", err)
	}
	return nil
}

// BulkTransitionStatus moves every row in the given courses from one
// remediation status to another in one statement, returning the count.
func (r *CourseGradeRepository) BulkTransitionStatus(ctx context.Context, courseIDs []string, from, to models.RemediationStatus) (int64, error) {
	if len(courseIDs) == 0 {
		return 0, nil
	}
	placeholders := make([]string, len(courseIDs))
	args := make([]interface{}, 0, len(courseIDs)+3)
	args = append(args, to, time.Now().UTC())
	for i, id := range courseIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+3)
		args = append(args, id)
	}
	args = append(args, from)
	query := fmt.Sprintf(`UPDATE course_grades SET remediation_status = $1, updated_at = $2
        WHERE course_id IN (%s) AND remediation_status = $%d`, strings.Join(placeholders, ","), len(courseIDs)+3)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("bulk transition status: %w", err)
	}
	return res.RowsAffected()
}

// ListAwaiting returns the course's grade rows still in the remediation
// pipeline. Approved rows are excluded by definition.
func (r *CourseGradeRepository) ListAwaiting(ctx context.Context, courseID string) ([]models.CourseGrade, error) {
	query := fmt.Sprintf(`SELECT %s FROM course_grades
        WHERE course_id = $1 AND remediation_status IN ($2, $3, $4)
        ORDER BY updated_at DESC`, courseGradeColumns)
	var grades []models.CourseGrade
	if err := r.db.SelectContext(ctx, &grades, query, courseID,
		models.RemediationInProgress, models.RemediationCompleted, models.RemediationSubmittedToDeptHead); err != nil {
		return nil, fmt.Errorf("list awaiting remediation: %w", err)
	}
	return grades, nil
}
