package models

// StudentGradeResult is the aggregator's output for one student.
type StudentGradeResult struct {
	StudentID      string   `json:"student_id"`
	StudentName    string   `json:"student_name"`
	CollectedScore float64  `json:"collected_score"`
	MidtermScore   *float64 `json:"midterm_score,omitempty"`
	FinalScore     *float64 `json:"final_score,omitempty"`
	TotalScore     float64  `json:"total_score"`
	// Percentage is the 100-point equivalent of TotalScore after any
	// configured ratio rescaling.
	Percentage              float64     `json:"percentage"`
	Grade                   GradeSymbol `json:"grade"`
	HasAttendanceOverride   bool        `json:"has_attendance_override"`
	IncompleteSummativeItems []string   `json:"incomplete_summative_items,omitempty"`
	// ComputeError is set instead of a grade when this student's
	// computation failed; the rest of the course is unaffected.
	ComputeError string `json:"compute_error,omitempty"`
}

// MaxScoresSummary reports the maxima the aggregation was computed
// against, for display alongside the results.
type MaxScoresSummary struct {
	CollectedMax     float64  `json:"collected_max"`
	MidtermMax       float64  `json:"midterm_max"`
	FinalMax         float64  `json:"final_max"`
	TargetMidRatio   *float64 `json:"target_mid_ratio,omitempty"`
	TargetFinalRatio *float64 `json:"target_final_ratio,omitempty"`
}

// CourseGradeReport bundles the aggregator output for one course.
type CourseGradeReport struct {
	CourseID  string               `json:"course_id"`
	Results   []StudentGradeResult `json:"results"`
	MaxScores MaxScoresSummary     `json:"max_scores"`
}
