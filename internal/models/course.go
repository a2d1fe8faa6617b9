package models

import "time"

// Course is one subject taught to one classroom in one semester.
// TargetMidRatio/TargetFinalRatio configure the collected+midterm : final
// rescaling basis; both nil means raw totals are used as-is.
type Course struct {
	ID               string     `db:"id" json:"id"`
	SubjectCode      string     `db:"subject_code" json:"subject_code"`
	SubjectName      string     `db:"subject_name" json:"subject_name"`
	ClassroomID      string     `db:"classroom_id" json:"classroom_id"`
	SemesterID       string     `db:"semester_id" json:"semester_id"`
	TeacherID        string     `db:"teacher_id" json:"teacher_id"`
	SubjectGroupID   *string    `db:"subject_group_id" json:"subject_group_id,omitempty"`
	TargetMidRatio   *float64   `db:"target_mid_ratio" json:"target_mid_ratio,omitempty"`
	TargetFinalRatio *float64   `db:"target_final_ratio" json:"target_final_ratio,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// HasTargetRatio reports whether both rescaling ratios are configured.
func (c *Course) HasTargetRatio() bool {
	return c.TargetMidRatio != nil && c.TargetFinalRatio != nil
}

// SubjectGroupHead identifies the department head to notify for a course.
type SubjectGroupHead struct {
	SubjectGroupID string `db:"subject_group_id" json:"subject_group_id"`
	GroupName      string `db:"group_name" json:"group_name"`
	HeadUserID     string `db:"head_user_id" json:"head_user_id"`
}
