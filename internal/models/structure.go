package models

import "time"

// IndicatorType distinguishes must-complete summative items from
// lower-stakes formative ones.
type IndicatorType string

const (
	IndicatorFormative IndicatorType = "FORMATIVE"
	IndicatorSummative IndicatorType = "SUMMATIVE"
)

// Valid reports whether the indicator type is known.
func (t IndicatorType) Valid() bool {
	return t == IndicatorFormative || t == IndicatorSummative
}

// LearningUnit is an ordered segment of a course's lesson plan. The
// midterm/final scores are the portion of exam weight attributed to the
// unit; they feed structural totals only, never the exam score itself.
type LearningUnit struct {
	ID           string    `db:"id" json:"id"`
	CourseID     string    `db:"course_id" json:"course_id"`
	Position     int       `db:"position" json:"position"`
	Title        string    `db:"title" json:"title"`
	MidtermScore float64   `db:"midterm_score" json:"midterm_score"`
	FinalScore   float64   `db:"final_score" json:"final_score"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// GradedItem is an individually scoreable piece of coursework.
// Invariant: MaxScore > 0 for rows created through the API; the aggregator
// still guards against zero to tolerate legacy data.
type GradedItem struct {
	ID                    string        `db:"id" json:"id"`
	LearningUnitID        string        `db:"learning_unit_id" json:"learning_unit_id"`
	Title                 string        `db:"title" json:"title"`
	MaxScore              float64       `db:"max_score" json:"max_score"`
	IndicatorType         IndicatorType `db:"indicator_type" json:"indicator_type"`
	IsGroupAssignment     bool          `db:"is_group_assignment" json:"is_group_assignment"`
	AssessmentDimensionID *string       `db:"assessment_dimension_id" json:"assessment_dimension_id,omitempty"`
	CreatedAt             time.Time     `db:"created_at" json:"created_at"`
}

// UnitStructure is a learning unit with its resolved graded items.
type UnitStructure struct {
	Unit  LearningUnit `json:"unit"`
	Items []GradedItem `json:"items"`
}

// CourseStructure is the resolved grading structure of one course.
// CollectedMax sums item max scores; MidtermMax/FinalMax sum the unit
// exam allocations across the plan.
type CourseStructure struct {
	CourseID     string          `json:"course_id"`
	Units        []UnitStructure `json:"units"`
	CollectedMax float64         `json:"collected_max"`
	MidtermMax   float64         `json:"midterm_max"`
	FinalMax     float64         `json:"final_max"`
}

// AllItems returns every graded item across units in plan order.
func (s *CourseStructure) AllItems() []GradedItem {
	var items []GradedItem
	for _, unit := range s.Units {
		items = append(items, unit.Items...)
	}
	return items
}
