package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/healthtech/filemanager/internal/domain"
)

// MockExamRepository is an in-memory implementation of ExamRepository for testing
type MockExamRepository struct {
	mu         sync.RWMutex
	exams      map[int64]domain.Exam
	users      map[int64]bool
	nextID     int64
	forceError error
	calls      map[string]int
}

// NewMockExamRepository creates a new mock repository
func NewMockExamRepository() *MockExamRepository {
	return &MockExamRepository{
		exams:  make(map[int64]domain.Exam),
		users:  make(map[int64]bool),
		nextID: 1,
		calls:  make(map[string]int),
	}
}

// Create stores an exam in memory
func (m *MockExamRepository) Create(ctx context.Context, exam *domain.Exam) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls["create"]++
	if m.forceError != nil {
		return fmt.Errorf("%w: %v", domain.ErrDatabase, m.forceError)
	}
	if exam == nil || exam.Name == "" || exam.URL == "" {
		return domain.ErrInvalidInput
	}

	for _, existing := range m.exams {
		if existing.UserID == exam.UserID && existing.Name == exam.Name {
			return domain.ErrAlreadyExists
		}
	}

	if exam.SubmissionDate.IsZero() {
		exam.SubmissionDate = time.Now().UTC()
	}
	exam.ID = m.nextID
	m.nextID++
	m.exams[exam.ID] = *exam

	return nil
}

// GetByUserAndID retrieves an exam by owner and ID
func (m *MockExamRepository) GetByUserAndID(ctx context.Context, userID, examID int64) (*domain.Exam, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.forceError != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDatabase, m.forceError)
	}

	exam, ok := m.exams[examID]
	if !ok || exam.UserID != userID {
		return nil, domain.ErrExamNotFound
	}

	return &exam, nil
}

// GetByUserAndName retrieves an exam by owner and file name
func (m *MockExamRepository) GetByUserAndName(ctx context.Context, userID int64, name string) (*domain.Exam, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.forceError != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDatabase, m.forceError)
	}

	for _, exam := range m.exams {
		if exam.UserID == userID && exam.Name == name {
			found := exam
			return &found, nil
		}
	}

	return nil, domain.ErrExamNotFound
}

// ListByUser lists a user's exams ordered by ID
func (m *MockExamRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Exam, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.forceError != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDatabase, m.forceError)
	}

	result := make([]domain.Exam, 0)
	for _, exam := range m.exams {
		if exam.UserID == userID {
			result = append(result, exam)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	return result, nil
}

// Delete removes an exam
func (m *MockExamRepository) Delete(ctx context.Context, userID, examID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls["delete"]++
	if m.forceError != nil {
		return fmt.Errorf("%w: %v", domain.ErrDatabase, m.forceError)
	}

	exam, ok := m.exams[examID]
	if !ok || exam.UserID != userID {
		return domain.ErrExamNotFound
	}
	delete(m.exams, examID)

	return nil
}

// UserExists reports whether the user was added with AddUser
func (m *MockExamRepository) UserExists(ctx context.Context, userID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.forceError != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrDatabase, m.forceError)
	}

	return m.users[userID], nil
}

// Ping always succeeds unless an error is forced
func (m *MockExamRepository) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.forceError
}

// --- Test Helper Methods ---

// AddUser registers a user ID
func (m *MockExamRepository) AddUser(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID] = true
}

// SetError makes every operation fail with err. A nil err clears it.
func (m *MockExamRepository) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forceError = err
}

// Calls returns the number of calls made to op ("create" or "delete")
func (m *MockExamRepository) Calls(op string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[op]
}

// ExamCount returns the number of exams stored
func (m *MockExamRepository) ExamCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.exams)
}

// Reset removes all exams and users and clears forced errors
func (m *MockExamRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exams = make(map[int64]domain.Exam)
	m.users = make(map[int64]bool)
	m.nextID = 1
	m.forceError = nil
	m.calls = make(map[string]int)
}
