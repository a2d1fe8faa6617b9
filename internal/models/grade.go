package models

import "time"

// GradeSymbol is a discrete grade on the 8-point Thai scale, plus the two
// non-numeric designations.
type GradeSymbol string

const (
	Grade0   GradeSymbol = "0"
	Grade1   GradeSymbol = "1"
	Grade1_5 GradeSymbol = "1.5"
	Grade2   GradeSymbol = "2"
	Grade2_5 GradeSymbol = "2.5"
	Grade3   GradeSymbol = "3"
	Grade3_5 GradeSymbol = "3.5"
	Grade4   GradeSymbol = "4"
	// GradeIncomplete (ร) marks required summative work missing.
	GradeIncomplete GradeSymbol = "ร"
	// GradeAbsence (มส) marks insufficient attendance; no grade assigned.
	GradeAbsence GradeSymbol = "มส"
)

// GradeBand maps a minimum percentage to its symbol.
type GradeBand struct {
	MinPercent float64
	Symbol     GradeSymbol
}

// GradeBands is the single authoritative banding table, checked top-down.
// Bands are 5 points wide from 50 up; everything below 50 is '0'. Every
// call site must consult this table rather than recomputing thresholds.
var GradeBands = []GradeBand{
	{MinPercent: 80, Symbol: Grade4},
	{MinPercent: 75, Symbol: Grade3_5},
	{MinPercent: 70, Symbol: Grade3},
	{MinPercent: 65, Symbol: Grade2_5},
	{MinPercent: 60, Symbol: Grade2},
	{MinPercent: 55, Symbol: Grade1_5},
	{MinPercent: 50, Symbol: Grade1},
}

// SymbolForPercent maps a percentage-equivalent total to its grade band.
func SymbolForPercent(percent float64) GradeSymbol {
	for _, band := range GradeBands {
		if percent >= band.MinPercent {
			return band.Symbol
		}
	}
	return Grade0
}

// IsPassing reports whether the symbol is a passing numeric grade.
func (g GradeSymbol) IsPassing() bool {
	switch g {
	case Grade1, Grade1_5, Grade2, Grade2_5, Grade3, Grade3_5, Grade4:
		return true
	}
	return false
}

// IsRemediable reports whether the symbol admits the remediation workflow.
func (g GradeSymbol) IsRemediable() bool {
	return g == Grade0 || g == GradeIncomplete || g == GradeAbsence
}

// RemediationStatus is the closed remediation lifecycle state.
type RemediationStatus string

const (
	RemediationNone                RemediationStatus = "NONE"
	RemediationInProgress          RemediationStatus = "IN_PROGRESS"
	RemediationCompleted           RemediationStatus = "COMPLETED"
	RemediationSubmittedToDeptHead RemediationStatus = "SUBMITTED_TO_DEPT_HEAD"
	RemediationApproved            RemediationStatus = "APPROVED"
)

// remediationOrder makes the lifecycle monotonic: transitions are legal
// only strictly forward.
var remediationOrder = map[RemediationStatus]int{
	RemediationNone:                0,
	RemediationInProgress:          1,
	RemediationCompleted:           2,
	RemediationSubmittedToDeptHead: 3,
	RemediationApproved:            4,
}

// Valid reports whether the status is a known lifecycle state.
func (s RemediationStatus) Valid() bool {
	_, ok := remediationOrder[s]
	return ok
}

// CanTransition reports whether a move to the target status is legal.
// Backward moves are never legal; re-asserting the current status is a
// no-op and allowed.
func (s RemediationStatus) CanTransition(to RemediationStatus) bool {
	from, ok := remediationOrder[s]
	if !ok {
		return false
	}
	dest, ok := remediationOrder[to]
	if !ok {
		return false
	}
	return dest >= from
}

// CourseGrade is the authoritative per-(student, course) grade record.
// One row per pair; created lazily on first write.
type CourseGrade struct {
	ID                string            `db:"id" json:"id"`
	StudentID         string            `db:"student_id" json:"student_id"`
	CourseID          string            `db:"course_id" json:"course_id"`
	MidtermScore      *float64          `db:"midterm_score" json:"midterm_score,omitempty"`
	FinalScore        *float64          `db:"final_score" json:"final_score,omitempty"`
	FinalGrade        *GradeSymbol      `db:"final_grade" json:"final_grade,omitempty"`
	OriginalFinalGrade *GradeSymbol     `db:"original_final_grade" json:"original_final_grade,omitempty"`
	RemediationStatus RemediationStatus `db:"remediation_status" json:"remediation_status"`
	RemediatedAt      *time.Time        `db:"remediated_at" json:"remediated_at,omitempty"`
	MsRemediated      bool              `db:"ms_remediated_status" json:"ms_remediated_status"`
	// MidtermRemediatedScore is an export-only override; it never feeds
	// the authoritative computation.
	MidtermRemediatedScore *float64  `db:"midterm_remediated_score" json:"midterm_remediated_score,omitempty"`
	CreatedAt              time.Time `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time `db:"updated_at" json:"updated_at"`
}
