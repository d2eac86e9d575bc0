package attendance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrUnknownStudent is returned when appending for a student that does not exist.
var ErrUnknownStudent = errors.New("unknown student")

// MemoryStore is an in-process Store for tests and local development.
type MemoryStore struct {
	mu       sync.RWMutex
	students map[string]Student
	records  map[string][]Record
	now      func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		students: make(map[string]Student),
		records:  make(map[string][]Record),
		now:      time.Now,
	}
}

func (m *MemoryStore) FindStudent(ctx context.Context, rollNumber, name string) (*Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, st := range m.students {
		if st.RollNumber == rollNumber && st.Name == name {
			st := st
			return &st, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) GetStudent(ctx context.Context, id string) (*Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if st, ok := m.students[id]; ok {
		return &st, nil
	}
	return nil, nil
}

func (m *MemoryStore) UpsertStudent(ctx context.Context, st Student) (Student, error) {
	if err := validate.Struct(st); err != nil {
		return Student{}, fmt.Errorf("invalid student: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.students {
		if existing.RollNumber == st.RollNumber {
			existing.Name = st.Name
			m.students[id] = existing
			return existing, nil
		}
	}
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	st.CreatedAt = m.now().UTC()
	m.students[st.ID] = st
	return st, nil
}

func (m *MemoryStore) ListRecords(ctx context.Context, studentID string) ([]Record, error) {
	m.mu.RLock()
	stored := m.records[studentID]
	res := make([]Record, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		res = append(res, stored[i])
	}
	m.mu.RUnlock()

	sort.SliceStable(res, func(i, j int) bool {
		if !res[i].Date.Equal(res[j].Date) {
			return res[i].Date.After(res[j].Date)
		}
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

func (m *MemoryStore) AppendRecord(ctx context.Context, studentID string, rec Record) (Record, error) {
	rec, err := prepareRecord(studentID, rec)
	if err != nil {
		return Record{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.students[studentID]; !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrUnknownStudent, studentID)
	}
	rec.CreatedAt = m.now().UTC()
	m.records[studentID] = append(m.records[studentID], rec)
	return rec, nil
}
