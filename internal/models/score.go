package models

import "time"

// Score is one numeric value per (student, graded item). Value is nullable:
// a row with a NULL value is a recorded empty score, which is distinct from
// no row at all ("never scored").
type Score struct {
	ID           string    `db:"id" json:"id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	GradedItemID string    `db:"graded_item_id" json:"graded_item_id"`
	Value        *float64  `db:"value" json:"value"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// GroupScore applies to every member of a student group for one graded
// item, and is consulted only when the item is a group assignment and no
// individual score row exists.
type GroupScore struct {
	ID             string    `db:"id" json:"id"`
	StudentGroupID string    `db:"student_group_id" json:"student_group_id"`
	GradedItemID   string    `db:"graded_item_id" json:"graded_item_id"`
	Value          float64   `db:"value" json:"value"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// QualitativeScore is a rubric level per (student, assessment topic,
// course). It feeds dimension-level reporting, not the numeric aggregate.
type QualitativeScore struct {
	ID                string    `db:"id" json:"id"`
	StudentID         string    `db:"student_id" json:"student_id"`
	AssessmentTopicID string    `db:"assessment_topic_id" json:"assessment_topic_id"`
	CourseID          string    `db:"course_id" json:"course_id"`
	RubricLevel       int       `db:"rubric_level" json:"rubric_level"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// ScoreSource tags where a resolved item score came from.
type ScoreSource string

const (
	ScoreSourceIndividual ScoreSource = "individual"
	ScoreSourceGroup      ScoreSource = "group"
	ScoreSourceUnscored   ScoreSource = "unscored"
)

// ResolvedScore is the outcome of the individual-over-group score lookup
// for one (student, item). Unscored contributes 0 but is tracked for
// completeness checks; an individual row with a NULL value resolves as
// Individual with value 0 (scored, empty).
type ResolvedScore struct {
	Source ScoreSource `json:"source"`
	Value  float64     `json:"value"`
}

// Scored reports whether any score row applied to the item.
func (r ResolvedScore) Scored() bool {
	return r.Source != ScoreSourceUnscored
}
