package storage

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/healthtech/filemanager/internal/domain"
)

// Operation names accepted by MockS3Client.FailOn
const (
	OpPut     = "put"
	OpPresign = "presign"
	OpExists  = "exists"
	OpGet     = "get"
	OpDelete  = "delete"
)

// MockS3Client implements the storage Interface in memory for testing
type MockS3Client struct {
	mu           sync.RWMutex
	objects      map[string][]byte
	contentTypes map[string]string
	baseURL      string
	calls        map[string]int
	failures     map[string]error
}

// NewMockS3Client creates a new mock S3 client for testing
func NewMockS3Client(baseURL string) *MockS3Client {
	if baseURL == "" {
		baseURL = "https://mock-s3.example.com"
	}

	return &MockS3Client{
		objects:      make(map[string][]byte),
		contentTypes: make(map[string]string),
		baseURL:      baseURL,
		calls:        make(map[string]int),
		failures:     make(map[string]error),
	}
}

// Put stores an object in memory
func (m *MockS3Client) Put(ctx context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record(OpPut); err != nil {
		return err
	}

	// Make a copy of the data to avoid external modifications
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	m.objects[key] = dataCopy
	m.contentTypes[key] = contentType

	return nil
}

// PresignGet returns a fake presigned URL for the given key
func (m *MockS3Client) PresignGet(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record(OpPresign); err != nil {
		return "", err
	}

	return fmt.Sprintf("%s/%s?X-Amz-Expires=3600", m.baseURL, (&url.URL{Path: key}).EscapedPath()), nil
}

// Exists reports domain.ErrObjectNotFound for unknown keys
func (m *MockS3Client) Exists(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record(OpExists); err != nil {
		return err
	}

	if _, ok := m.objects[key]; !ok {
		return domain.ErrObjectNotFound
	}

	return nil
}

// Get returns a stored object
func (m *MockS3Client) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record(OpGet); err != nil {
		return nil, err
	}

	data, ok := m.objects[key]
	if !ok {
		return nil, domain.ErrObjectNotFound
	}

	return append([]byte(nil), data...), nil
}

// Delete removes an object. Like S3, deleting a missing key succeeds.
func (m *MockS3Client) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record(OpDelete); err != nil {
		return err
	}

	delete(m.objects, key)
	delete(m.contentTypes, key)

	return nil
}

// record counts a call and returns the forced error for op, if any. Callers hold mu.
func (m *MockS3Client) record(op string) error {
	m.calls[op]++
	if err, ok := m.failures[op]; ok {
		return fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return nil
}

// FailOn makes every call to op return err wrapped in domain.ErrStorage. A nil err clears it.
func (m *MockS3Client) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

// Seed stores an object without counting a call (helper for tests)
func (m *MockS3Client) Seed(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[key] = append([]byte(nil), data...)
	m.contentTypes[key] = domain.ContentTypePDF
}

// GetObject retrieves an object and its content type (helper for tests)
func (m *MockS3Client) GetObject(key string) ([]byte, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, exists := m.objects[key]
	if !exists {
		return nil, "", false
	}

	return data, m.contentTypes[key], true
}

// Calls returns the number of calls made to op (helper for tests)
func (m *MockS3Client) Calls(op string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.calls[op]
}

// HasObject checks if an object with the given key exists (helper for tests)
func (m *MockS3Client) HasObject(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.objects[key]
	return exists
}

// ObjectCount returns the number of objects stored (helper for tests)
func (m *MockS3Client) ObjectCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.objects)
}

// Reset clears all stored objects, counters and forced errors
func (m *MockS3Client) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects = make(map[string][]byte)
	m.contentTypes = make(map[string]string)
	m.calls = make(map[string]int)
	m.failures = make(map[string]error)
}
