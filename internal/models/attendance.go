package models

import "time"

// AttendanceStatus is the per-period attendance designation.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "PRESENT"
	AttendanceAbsent  AttendanceStatus = "ABSENT"
	AttendanceLate    AttendanceStatus = "LATE"
	AttendanceLeave   AttendanceStatus = "LEAVE"
)

// Valid reports whether the status is known.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate, AttendanceLeave:
		return true
	}
	return false
}

// AttendedStatuses are the statuses counted as attended for eligibility.
// Kept as one constant slice so the policy is a single-line change.
var AttendedStatuses = []AttendanceStatus{AttendancePresent, AttendanceLate}

// EligibilityThreshold is the minimum attended/scheduled ratio for a
// substantive grade.
const EligibilityThreshold = 0.80

// TimetableEntry is one scheduled period of a course within the semester.
type TimetableEntry struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	DayOfWeek int       `db:"day_of_week" json:"day_of_week"`
	Period    int       `db:"period" json:"period"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// AttendanceRecord is one student's status for one period on one date.
// Upserted on (student, timetable entry, date), never duplicated.
type AttendanceRecord struct {
	ID               string           `db:"id" json:"id"`
	StudentID        string           `db:"student_id" json:"student_id"`
	TimetableEntryID string           `db:"timetable_entry_id" json:"timetable_entry_id"`
	Date             time.Time        `db:"date" json:"date"`
	Status           AttendanceStatus `db:"status" json:"status"`
	Notes            *string          `db:"notes" json:"notes,omitempty"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceCounts are a student's attended tallies for one course.
type AttendanceCounts struct {
	StudentID string `db:"student_id" json:"student_id"`
	Attended  int    `db:"attended" json:"attended"`
}

// AttendanceEligibility is the evaluator's verdict for one student.
type AttendanceEligibility struct {
	StudentID             string  `json:"student_id"`
	TotalScheduledPeriods int     `json:"total_scheduled_periods"`
	AttendedPeriods       int     `json:"attended_periods"`
	Percentage            float64 `json:"percentage"`
	Insufficient          bool    `json:"insufficient"`
}
