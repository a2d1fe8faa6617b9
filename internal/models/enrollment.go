package models

import "time"

// EnrollmentStatus describes an enrollment lifecycle state.
type EnrollmentStatus string

const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusWithdrawn EnrollmentStatus = "WITHDRAWN"
)

// Enrollment links a student to a classroom for an academic year. It is
// the authority for which students belong to a course's roster.
type Enrollment struct {
	ID           string           `db:"id" json:"id"`
	StudentID    string           `db:"student_id" json:"student_id"`
	ClassroomID  string           `db:"classroom_id" json:"classroom_id"`
	AcademicYear string           `db:"academic_year" json:"academic_year"`
	Status       EnrollmentStatus `db:"status" json:"status"`
	JoinedAt     time.Time        `db:"joined_at" json:"joined_at"`
}

// Student is a learner record. ExternalID is the school-issued student
// number used by external form relays.
type Student struct {
	ID         string `db:"id" json:"id"`
	ExternalID string `db:"external_id" json:"external_id"`
	FirstName  string `db:"first_name" json:"first_name"`
	LastName   string `db:"last_name" json:"last_name"`
}

// StudentGroup is a working group within one course; members share group
// assignment scores.
type StudentGroup struct {
	ID       string `db:"id" json:"id"`
	CourseID string `db:"course_id" json:"course_id"`
	Name     string `db:"name" json:"name"`
}

// FullName returns the display name.
func (s Student) FullName() string {
	return s.FirstName + " " + s.LastName
}
