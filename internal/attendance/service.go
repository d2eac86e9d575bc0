package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"attendease/internal/excuse"
	"attendease/internal/metrics"
	"attendease/internal/queue"
)

var (
	ErrInvalidCredentials = errors.New("invalid roll number or name")
	ErrStudentRequired    = errors.New("student id required")
	ErrReasonRequired     = errors.New("please provide a reason for your absence")
	ErrAlreadyMarked      = errors.New("attendance for today has already been marked")
)

// Validator judges an absence reason. Implementations never fail.
type Validator interface {
	Validate(ctx context.Context, reason string) excuse.Verdict
}

// Publisher receives attendance events.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// Dashboard is what a student sees for today.
type Dashboard struct {
	Today   time.Time
	State   DayState
	Marked  *Record
	Records []Record
}

// Service coordinates login, marking and listing attendance.
type Service struct {
	store     Store
	validator Validator
	events    Publisher
	loc       *time.Location
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a service. events may be nil; loc defaults to UTC.
func NewService(store Store, validator Validator, events Publisher, loc *time.Location, logger *slog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		validator: validator,
		events:    events,
		loc:       loc,
		logger:    logger,
		now:       time.Now,
	}
}

// Location is the timezone calendar days are computed in.
func (s *Service) Location() *time.Location { return s.loc }

// Login matches the identifier pair against the directory.
// A miss returns ErrInvalidCredentials; lookup failures are returned wrapped.
func (s *Service) Login(ctx context.Context, rollNumber, name string) (Student, error) {
	rollNumber, name = strings.TrimSpace(rollNumber), strings.TrimSpace(name)
	if rollNumber == "" || name == "" {
		metrics.Logins.WithLabelValues("invalid").Inc()
		return Student{}, ErrInvalidCredentials
	}
	st, err := s.store.FindStudent(ctx, rollNumber, name)
	if err != nil {
		metrics.Logins.WithLabelValues("error").Inc()
		return Student{}, fmt.Errorf("find student: %w", err)
	}
	if st == nil {
		metrics.Logins.WithLabelValues("invalid").Inc()
		return Student{}, ErrInvalidCredentials
	}
	metrics.Logins.WithLabelValues("success").Inc()
	return *st, nil
}

// Records lists a student's records, most recent first.
func (s *Service) Records(ctx context.Context, studentID string) ([]Record, error) {
	if studentID == "" {
		return nil, ErrStudentRequired
	}
	records, err := s.store.ListRecords(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return records, nil
}

// Today returns the records together with today's state.
func (s *Service) Today(ctx context.Context, studentID string) (Dashboard, error) {
	records, err := s.Records(ctx, studentID)
	if err != nil {
		return Dashboard{}, err
	}
	today := s.now().In(s.loc)
	state, marked := StateOn(records, today, s.loc)
	return Dashboard{Today: today, State: state, Marked: marked, Records: records}, nil
}

// MarkPresent records today as Present.
func (s *Service) MarkPresent(ctx context.Context, studentID string) (Record, error) {
	if err := s.ensureUnmarked(ctx, studentID); err != nil {
		return Record{}, err
	}
	return s.append(ctx, studentID, Record{Status: StatusPresent})
}

// MarkAbsent validates the reason and records today as Absent with its verdict.
// Blank reasons are rejected before the store or the validator is touched.
func (s *Service) MarkAbsent(ctx context.Context, studentID, reason string) (Record, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Record{}, ErrReasonRequired
	}
	if err := s.ensureUnmarked(ctx, studentID); err != nil {
		return Record{}, err
	}
	verdict := s.validator.Validate(ctx, reason)
	return s.append(ctx, studentID, Record{
		Status:     StatusAbsent,
		Reason:     reason,
		Validation: &verdict,
	})
}

// ValidateReason runs the validator without recording anything.
func (s *Service) ValidateReason(ctx context.Context, reason string) (excuse.Verdict, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return excuse.Verdict{}, ErrReasonRequired
	}
	return s.validator.Validate(ctx, reason), nil
}

// ensureUnmarked scans the stored records for today. The check is not atomic
// with the following append.
func (s *Service) ensureUnmarked(ctx context.Context, studentID string) error {
	records, err := s.Records(ctx, studentID)
	if err != nil {
		return err
	}
	if state, _ := StateOn(records, s.now(), s.loc); state == DayMarked {
		return ErrAlreadyMarked
	}
	return nil
}

func (s *Service) append(ctx context.Context, studentID string, rec Record) (Record, error) {
	rec.Date = s.now().UTC()
	saved, err := s.store.AppendRecord(ctx, studentID, rec)
	if err != nil {
		return Record{}, fmt.Errorf("append record: %w", err)
	}
	metrics.RecordsAppended.WithLabelValues(string(saved.Status)).Inc()
	s.logger.InfoContext(ctx, "attendance marked", "student_id", studentID, "status", saved.Status, "record_id", saved.ID)
	s.publish(ctx, saved)
	return saved, nil
}

func (s *Service) publish(ctx context.Context, rec Record) {
	if s.events == nil {
		return
	}
	evt := MarkedEvent{
		RecordID:   rec.ID,
		StudentID:  rec.StudentID,
		Day:        rec.Date.In(s.loc).Format(time.DateOnly),
		Status:     rec.Status,
		Suspicious: rec.Validation != nil && !rec.Validation.IsValid,
	}
	msg, err := queue.NewMessage(EventMarked, evt)
	if err == nil {
		err = s.events.Publish(ctx, msg)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "publish attendance event failed", "record_id", rec.ID, "error", err)
	}
}
