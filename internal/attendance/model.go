package attendance

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"attendease/internal/excuse"
)

// Status is the attendance outcome for a day.
type Status string

const (
	StatusPresent Status = "Present"
	StatusAbsent  Status = "Absent"
)

// DisplayDateLayout renders a record date the way the dashboard shows it.
const DisplayDateLayout = "1/2/2006"

// ErrInvalidRecord is returned when a record violates its shape rules.
var ErrInvalidRecord = errors.New("invalid attendance record")

var validate = validator.New()

// Student is a principal from the directory. Students are provisioned out of
// band (see cmd/seed) and are read-only to the API.
type Student struct {
	ID         string    `json:"id"`
	RollNumber string    `json:"roll_number" validate:"required"`
	Name       string    `json:"name" validate:"required"`
	CreatedAt  time.Time `json:"created_at"`
}

// Record is one immutable attendance entry for a student.
type Record struct {
	ID         string          `json:"id"`
	StudentID  string          `json:"student_id" validate:"required"`
	Date       time.Time       `json:"recorded_at" validate:"required"`
	Status     Status          `json:"status" validate:"required,oneof=Present Absent"`
	Reason     string          `json:"reason,omitempty"`
	Validation *excuse.Verdict `json:"validation,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Validate checks field rules and that only absences carry a reason or verdict.
func (r Record) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	switch r.Status {
	case StatusPresent:
		if r.Reason != "" || r.Validation != nil {
			return fmt.Errorf("%w: present record cannot carry a reason or verdict", ErrInvalidRecord)
		}
	case StatusAbsent:
		if strings.TrimSpace(r.Reason) == "" {
			return fmt.Errorf("%w: absent record needs a reason", ErrInvalidRecord)
		}
	}
	return nil
}

// DisplayDate formats the record's calendar date in loc.
func (r Record) DisplayDate(loc *time.Location) string {
	return r.Date.In(loc).Format(DisplayDateLayout)
}

// OnDay reports whether the record falls on the same calendar day as day, in loc.
func (r Record) OnDay(day time.Time, loc *time.Location) bool {
	y1, m1, d1 := r.Date.In(loc).Date()
	y2, m2, d2 := day.In(loc).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// DayState is the dashboard state for the current day.
type DayState string

const (
	DayUnmarked DayState = "unmarked"
	DayMarked   DayState = "marked"
)

// StateOn scans records for day. Marked is terminal for the day.
func StateOn(records []Record, day time.Time, loc *time.Location) (DayState, *Record) {
	for i := range records {
		if records[i].OnDay(day, loc) {
			return DayMarked, &records[i]
		}
	}
	return DayUnmarked, nil
}

// MarkedEvent is published after a record is stored.
type MarkedEvent struct {
	RecordID   string `json:"record_id"`
	StudentID  string `json:"student_id"`
	Day        string `json:"day"` // YYYY-MM-DD in the service timezone
	Status     Status `json:"status"`
	Suspicious bool   `json:"suspicious,omitempty"`
}

// EventMarked is the queue message type for MarkedEvent.
const EventMarked = "attendance.marked"
