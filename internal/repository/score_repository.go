package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sakchai-dev/school-grading-api/internal/models"
)

// ScoreRepository handles raw score and group score persistence.
type ScoreRepository struct {
	db *sqlx.DB
}

// NewScoreRepository creates a new score repository.
func NewScoreRepository(db *sqlx.DB) *ScoreRepository {
	return &ScoreRepository{db: db}
}

// FetchCourseScores returns every individual score row for the course,
// keyed student -> graded item. Presence of a key means a row exists; a
// nil value is a recorded empty score.
func (r *ScoreRepository) FetchCourseScores(ctx context.Context, courseID string) (map[string]map[string]*float64, error) {
	const query = `SELECT sc.student_id, sc.graded_item_id, sc.value
        FROM scores sc
        JOIN graded_items gi ON gi.id = sc.graded_item_id
        JOIN learning_units lu ON lu.id = gi.learning_unit_id
        WHERE lu.course_id = $1`
	rows, err := r.db.QueryxContext(ctx, query, courseID)
	if err != nil {
		return nil, fmt.Errorf("fetch course scores: %w", err)
	}
	defer rows.Close()
	result := make(map[string]map[string]*float64)
	for rows.Next() {
		var row struct {
			StudentID    string   `db:"student_id"`
			GradedItemID string   `db:"graded_item_id"`
			Value        *float64 `db:"value"`
		}
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		if result[row.StudentID] == nil {
			result[row.StudentID] = make(map[string]*float64)
		}
		result[row.StudentID][row.GradedItemID] = row.Value
	}
	return result, rows.Err()
}

// FetchGroupScores returns group scores for the course keyed
// group -> graded item.
func (r *ScoreRepository) FetchGroupScores(ctx context.Context, courseID string) (map[string]map[string]float64, error) {
	const query = `SELECT gs.student_group_id, gs.graded_item_id, gs.value
        FROM group_scores gs
        JOIN graded_items gi ON gi.id = gs.graded_item_id
        JOIN learning_units lu ON lu.id = gi.learning_unit_id
        WHERE lu.course_id = $1`
	rows, err := r.db.QueryxContext(ctx, query, courseID)
	if err != nil {
		return nil, fmt.Errorf("fetch group scores: %w", err)
	}
	defer rows.Close()
	result := make(map[string]map[string]float64)
	for rows.Next() {
		var row struct {
			StudentGroupID string  `db:"student_group_id"`
			GradedItemID   string  `db:"graded_item_id"`
			Value          float64 `db:"value"`
		}
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("scan group score: %w", err)
		}
		if result[row.StudentGroupID] == nil {
			result[row.StudentGroupID] = make(map[string]float64)
		}
		result[row.StudentGroupID][row.GradedItemID] = row.Value
	}
	return result, rows.Err()
}

// FetchGroupMembers returns the course's group membership keyed by student.
func (r *ScoreRepository) FetchGroupMembers(ctx context.Context, courseID string) (map[string]string, error) {
	const query = `SELECT sgm.student_id, sgm.student_group_id
        FROM student_group_members sgm
        JOIN student_groups sg ON sg.id = sgm.student_group_id
        WHERE sg.course_id = $1`
	rows, err := r.db.QueryxContext(ctx, query, courseID)
	if err != nil {
		return nil, fmt.Errorf("fetch group members: %w", err)
	}
	defer rows.Close()
	result := make(map[string]string)
	for rows.Next() {
		var row struct {
			StudentID      string `db:"student_id"`
			StudentGroupID string `db:"student_group_id"`
		}
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("scan group member: %w", err)
		}
		result[row.StudentID] = row.StudentGroupID
	}
	return result, rows.Err()
}

// Upsert inserts or updates one individual score row.
func (r *ScoreRepository) Upsert(ctx context.Context, score *models.Score) error {
	if score.ID == "" {
		score.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if score.CreatedAt.IsZero() {
		score.CreatedAt = now
	}
	score.UpdatedAt = now
	const query = `INSERT INTO scores (id, student_id, graded_item_id, value, created_at, updated_at)
        VALUES (:id, :student_id, :graded_item_id, :value, :created_at, :updated_at)
        ON CONFLICT (student_id, graded_item_id)
        DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, score); err != nil {
		return fmt.Errorf("upsert score: %w", err)
	}
	return nil
}

// BulkUpsert writes multiple score rows in one transaction; any failure
// rolls the whole batch back.
func (r *ScoreRepository) BulkUpsert(ctx context.Context, scores []models.Score) error {
	if len(scores) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	for i := range scores {
		if scores[i].ID == "" {
			scores[i].ID = uuid.NewString()
		}
		now := time.Now().UTC()
		if scores[i].CreatedAt.IsZero() {
			scores[i].CreatedAt = now
		}
		scores[i].UpdatedAt = now
		const query = `INSERT INTO scores (id, student_id, graded_item_id, value, created_at, updated_at)
                VALUES (:id, :student_id, :graded_item_id, :value, :created_at, :updated_at)
                ON CONFLICT (student_id, graded_item_id)
                DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
		if _, err := tx.NamedExecContext(ctx, query, scores[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("bulk upsert score: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit scores: %w", err)
	}
	return nil
}

// UpsertGroupScore inserts or updates one group score row.
func (r *ScoreRepository) UpsertGroupScore(ctx context.Context, score *models.GroupScore) error {
	if score.ID == "" {
		score.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if score.CreatedAt.IsZero() {
		score.CreatedAt = now
	}
	score.UpdatedAt = now
	const query = `INSERT INTO group_scores (id, student_group_id, graded_item_id, value, created_at, updated_at)
        VALUES (:id, :student_group_id, :graded_item_id, :value, :created_at, :updated_at)
        ON CONFLICT (student_group_id, graded_item_id)
        DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, score); err != nil {
		return fmt.Errorf("upsert group score: %w", err)
	}
	return nil
}

// UpsertQualitative inserts or updates one rubric rating.
func (r *ScoreRepository) UpsertQualitative(ctx context.Context, score *models.QualitativeScore) error {
	if score.ID == "" {
		score.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if score.CreatedAt.IsZero() {
		score.CreatedAt = now
	}
	score.UpdatedAt = now
	const query = `INSERT INTO qualitative_scores (id, student_id, assessment_topic_id, course_id, rubric_level, created_at, updated_at)
        VALUES (:id, :student_id, :assessment_topic_id, :course_id, :rubric_level, :created_at, :updated_at)
        ON CONFLICT (student_id, assessment_topic_id, course_id)
        DO UPDATE SET rubric_level = EXCLUDED.rubric_level, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, score); err != nil {
		return fmt.Errorf("upsert qualitative score: %w", err)
	}
	return nil
}
