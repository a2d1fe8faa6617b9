package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/sakchai-dev/school-grading-api/internal/models"
)

// CourseRepository handles course persistence.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository creates a new course repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindByID returns one course.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, subject_code, subject_name, classroom_id, semester_id, teacher_id, subject_group_id,
        target_mid_ratio, target_final_ratio, created_at, updated_at
        FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// ListByTeacherAndSemester returns every course a teacher owns in a semester.
func (r *CourseRepository) ListByTeacherAndSemester(ctx context.Context, teacherID, semesterID string) ([]models.Course, error) {
	const query = `SELECT id, subject_code, subject_name, classroom_id, semester_id, teacher_id, subject_group_id,
        target_mid_ratio, target_final_ratio, created_at, updated_at
        FROM courses WHERE teacher_id = $1 AND semester_id = $2 ORDER BY subject_code`
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, teacherID, semesterID); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// FindSubjectGroupHeads returns the distinct department heads for the courses.
func (r *CourseRepository) FindSubjectGroupHeads(ctx context.Context, courseIDs []string) ([]models.SubjectGroupHead, error) {
	if len(courseIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(courseIDs))
	args := make([]interface{}, len(courseIDs))
	for i, id := range courseIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT DISTINCT sg.id AS subject_group_id, sg.name AS group_name, sg.head_user_id
        FROM courses c
        JOIN subject_groups sg ON sg.id = c.subject_group_id
        WHERE c.id IN (%s)`, strings.Join(placeholders, ","))
	var heads []models.SubjectGroupHead
	if err := r.db.SelectContext(ctx, &heads, query, args...); err != nil {
		return nil, fmt.Errorf("find subject group heads: %w", err)
	}
	return heads, nil
}
