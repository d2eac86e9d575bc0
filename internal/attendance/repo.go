package attendance

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"attendease/internal/excuse"
)

// Store is the persistence contract for the student directory and the
// append-only record log. Records have no update or delete.
type Store interface {
	// FindStudent returns the student matching both fields exactly, or nil.
	FindStudent(ctx context.Context, rollNumber, name string) (*Student, error)
	GetStudent(ctx context.Context, id string) (*Student, error)
	UpsertStudent(ctx context.Context, st Student) (Student, error)
	// ListRecords returns a student's records, most recent first.
	ListRecords(ctx context.Context, studentID string) ([]Record, error)
	AppendRecord(ctx context.Context, studentID string, rec Record) (Record, error)
}

// Repository persists students and attendance records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// FindStudent looks a student up by roll number and name.
func (r *Repository) FindStudent(ctx context.Context, rollNumber, name string) (*Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, roll_number, name, created_at
		FROM students
		WHERE roll_number = $1 AND name = $2
		LIMIT 1
	`, rollNumber, name)
	return scanStudent(row)
}

// GetStudent returns a single student by id.
func (r *Repository) GetStudent(ctx context.Context, id string) (*Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, roll_number, name, created_at
		FROM students WHERE id = $1
	`, id)
	return scanStudent(row)
}

// UpsertStudent creates a student or renames the existing one with the same roll number.
func (r *Repository) UpsertStudent(ctx context.Context, st Student) (Student, error) {
	if err := validate.Struct(st); err != nil {
		return Student{}, fmt.Errorf("invalid student: %w", err)
	}
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO students (id, roll_number, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (roll_number) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, created_at
	`, st.ID, st.RollNumber, st.Name)
	if err := row.Scan(&st.ID, &st.CreatedAt); err != nil {
		return Student{}, err
	}
	return st, nil
}

// ListRecords returns records for a student, newest first.
func (r *Repository) ListRecords(ctx context.Context, studentID string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, student_id, recorded_at, status, reason, validation, created_at
		FROM attendance_records
		WHERE student_id = $1
		ORDER BY recorded_at DESC, created_at DESC
	`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []Record{}
	for rows.Next() {
		var (
			rec        Record
			reason     sql.NullString
			validation []byte
		)
		if err := rows.Scan(&rec.ID, &rec.StudentID, &rec.Date, &rec.Status, &reason, &validation, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Reason = reason.String
		if len(validation) > 0 {
			var v excuse.Verdict
			if err := json.Unmarshal(validation, &v); err != nil {
				return nil, fmt.Errorf("record %s: decode validation: %w", rec.ID, err)
			}
			rec.Validation = &v
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// AppendRecord writes a new record for studentID.
func (r *Repository) AppendRecord(ctx context.Context, studentID string, rec Record) (Record, error) {
	rec, err := prepareRecord(studentID, rec)
	if err != nil {
		return Record{}, err
	}

	var reason, validation sql.NullString
	if rec.Reason != "" {
		reason = sql.NullString{String: rec.Reason, Valid: true}
	}
	if rec.Validation != nil {
		raw, err := json.Marshal(rec.Validation)
		if err != nil {
			return Record{}, err
		}
		validation = sql.NullString{String: string(raw), Valid: true}
	}

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, student_id, recorded_at, status, reason, validation)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb)
		RETURNING created_at
	`, rec.ID, rec.StudentID, rec.Date, string(rec.Status), reason, validation)
	if err := row.Scan(&rec.CreatedAt); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// prepareRecord fills defaults shared by every Store implementation.
func prepareRecord(studentID string, rec Record) (Record, error) {
	rec.StudentID = studentID
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Date.IsZero() {
		rec.Date = time.Now().UTC()
	}
	if err := rec.Validate(); err != nil {
		return Record{}, err
	}
	return rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStudent(row rowScanner) (*Student, error) {
	var st Student
	if err := row.Scan(&st.ID, &st.RollNumber, &st.Name, &st.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &st, nil
}
