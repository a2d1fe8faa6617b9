package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sakchai-dev/school-grading-api/internal/models"
)

// StructureRepository reads a course's lesson plan structure.
type StructureRepository struct {
	db *sqlx.DB
}

// NewStructureRepository creates a new structure repository.
func NewStructureRepository(db *sqlx.DB) *StructureRepository {
	return &StructureRepository{db: db}
}

// ListUnits returns a course's learning units in plan order.
func (r *StructureRepository) ListUnits(ctx context.Context, courseID string) ([]models.LearningUnit, error) {
	const query = `SELECT id, course_id, position, title, midterm_score, final_score, created_at
        FROM learning_units WHERE course_id = $1 ORDER BY position`
	var units []models.LearningUnit
	if err := r.db.SelectContext(ctx, &units, query, courseID); err != nil {
		return nil, fmt.Errorf("list learning units: %w", err)
	}
	return units, nil
}

// ListItems returns every graded item of a course keyed by learning unit.
func (r *StructureRepository) ListItems(ctx context.Context, courseID string) (map[string][]models.GradedItem, error) {
	const query = `SELECT gi.id, gi.learning_unit_id, gi.title, gi.max_score, gi.indicator_type,
        gi.is_group_assignment, gi.assessment_dimension_id, gi.created_at
        FROM graded_items gi
        JOIN learning_units lu ON lu.id = gi.learning_unit_id
        WHERE lu.course_id = $1
        ORDER BY lu.position, gi.created_at`
	rows, err := r.db.QueryxContext(ctx, query, courseID)
	if err != nil {
		return nil, fmt.Errorf("list graded items: %w", err)
	}
	defer rows.Close()
	result := make(map[string][]models.GradedItem)
	for rows.Next() {
		var item models.GradedItem
		if err := rows.StructScan(&item); err != nil {
			return nil, fmt.Errorf("scan graded item: %w", err)
		}
		result[item.LearningUnitID] = append(result[item.LearningUnitID], item)
	}
	return result, rows.Err()
}

// FindItem returns one graded item with its owning course.
func (r *StructureRepository) FindItem(ctx context.Context, itemID string) (*models.GradedItem, string, error) {
	const query = `SELECT gi.id, gi.learning_unit_id, gi.title, gi.max_score, gi.indicator_type,
        gi.is_group_assignment, gi.assessment_dimension_id, gi.created_at, lu.course_id
        FROM graded_items gi
        JOIN learning_units lu ON lu.id = gi.learning_unit_id
        WHERE gi.id = $1`
	row := struct {
		models.GradedItem
		CourseID string `db:"course_id"`
	}{}
	if err := r.db.GetContext(ctx, &row, query, itemID); err != nil {
		return nil, "", err
	}
	return &row.GradedItem, row.CourseID, nil
}
