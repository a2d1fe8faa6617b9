package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sakchai-dev/school-grading-api/internal/models"
)

// EnrollmentRepository resolves course rosters from enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository creates a new enrollment repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// ListRoster returns the active students of the course's classroom in
// stable name order. Enrollment is the roster authority.
func (r *EnrollmentRepository) ListRoster(ctx context.Context, courseID string) ([]models.Student, error) {
	const query = `SELECT s.id, s.external_id, s.first_name, s.last_name
        FROM enrollments e
        JOIN students s ON s.id = e.student_id
        JOIN courses c ON c.classroom_id = e.classroom_id
        WHERE c.id = $1 AND e.status = $2
        ORDER BY s.first_name, s.last_name`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, courseID, models.EnrollmentStatusActive); err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	return students, nil
}

// FindStudentByExternalID resolves the school-issued student number used
// by external form relays.
func (r *EnrollmentRepository) FindStudentByExternalID(ctx context.Context, externalID string) (*models.Student, error) {
	const query = `SELECT id, external_id, first_name, last_name FROM students WHERE external_id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, externalID); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindStudentByID returns one student.
func (r *EnrollmentRepository) FindStudentByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT id, external_id, first_name, last_name FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}
