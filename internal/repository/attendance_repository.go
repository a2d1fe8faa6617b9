package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sakchai-dev/school-grading-api/internal/models"
)

// AttendanceRepository handles timetable and attendance persistence.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository creates a new attendance repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// CountScheduledPeriods counts every timetable entry of the course across
// the semester.
func (r *AttendanceRepository) CountScheduledPeriods(ctx context.Context, courseID string) (int, error) {
	const query = `SELECT COUNT(*) FROM timetable_entries WHERE course_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, courseID); err != nil {
		return 0, fmt.Errorf("count scheduled periods: %w", err)
	}
	return count, nil
}

// CountAttendedByCourse tallies attended periods per student for the
// course. Which statuses count as attended is a caller decision.
func (r *AttendanceRepository) CountAttendedByCourse(ctx context.Context, courseID string, statuses []models.AttendanceStatus) ([]models.AttendanceCounts, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(statuses))
	args := make([]interface{}, 0, len(statuses)+1)
	args = append(args, courseID)
	for i, status := range statuses {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, status)
	}
	query := fmt.Sprintf(`SELECT ar.student_id, COUNT(*) AS attended
        FROM attendance_records ar
        JOIN timetable_entries te ON te.id = ar.timetable_entry_id
        WHERE te.course_id = $1 AND ar.status IN (%s)
        GROUP BY ar.student_id`, strings.Join(placeholders, ","))
	var counts []models.AttendanceCounts
	if err := r.db.SelectContext(ctx, &counts, query, args...); err != nil {
		return nil, fmt.Errorf("count attended periods: %w", err)
	}
	return counts, nil
}

// Upsert writes one attendance record keyed on
// (student, timetable entry, date).
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.AttendanceRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	const query = `INSERT INTO attendance_records (id, student_id, timetable_entry_id, date, status, notes, created_at, updated_at)
        VALUES (:id, :student_id, :timetable_entry_id, :date, :status, :notes, :created_at, :updated_at)
        ON CONFLICT (student_id, timetable_entry_id, date)
        DO UPDATE SET status = EXCLUDED.status, notes = EXCLUDED.notes, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("upsert attendance record: %w", err)
	}
	return nil
}

// BulkUpsert writes multiple records in one transaction; any failure
// rolls the whole batch back.
func (r *AttendanceRepository) BulkUpsert(ctx context.Context, records []models.AttendanceRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	for i := range records {
		if records[i].ID == "" {
			records[i].ID = uuid.NewString()
		}
		now := time.Now().UTC()
		if records[i].CreatedAt.IsZero() {
			records[i].CreatedAt = now
		}
		records[i].UpdatedAt = now
		const query = `INSERT INTO attendance_records (id, student_id, timetable_entry_id, date, status, notes, created_at, updated_at)
            VALUES (:id, :student_id, :timetable_entry_id, :date, :status, :notes, :created_at, :updated_at)
            ON CONFLICT (student_id, timetable_entry_id, date)
            DO UPDATE SET status = EXCLUDED.status, notes = EXCLUDED.notes, updated_at = EXCLUDED.updated_at`
		if _, err := tx.NamedExecContext(ctx, query, records[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("bulk upsert attendance: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit attendance records: %w", err)
	}
	return nil
}
