package processor

import (
	"context"
	"fmt"
	"sync"

	"github.com/healthtech/filemanager/internal/domain"
)

// MockProcessor implements the Processor interface for testing.
// By default ExtractText returns the document bytes as text.
type MockProcessor struct {
	mu               sync.RWMutex
	texts            map[string]string
	forceError       error
	extractTextCalls int
	lastData         []byte
}

// NewMockProcessor creates a new mock processor
func NewMockProcessor() *MockProcessor {
	return &MockProcessor{
		texts: make(map[string]string),
	}
}

// ExtractText returns the configured text or an error if configured
func (m *MockProcessor) ExtractText(ctx context.Context, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.extractTextCalls++
	m.lastData = make([]byte, len(data))
	copy(m.lastData, data)

	if m.forceError != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidPDF, m.forceError)
	}

	if text, exists := m.texts[string(data)]; exists {
		return text, nil
	}

	return string(data), nil
}

// ParseBloodPanel uses the real regex extraction
func (m *MockProcessor) ParseBloodPanel(text string) domain.BloodPanel {
	return ParseBloodPanel(text)
}

// --- Test Helper Methods ---

// SetText configures the text returned for a document
func (m *MockProcessor) SetText(data []byte, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts[string(data)] = text
}

// SetError makes ExtractText fail. A nil err clears it.
func (m *MockProcessor) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forceError = err
}

// GetCallCount returns the number of ExtractText calls
func (m *MockProcessor) GetCallCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.extractTextCalls
}

// GetLastData returns a copy of the last document passed to ExtractText
func (m *MockProcessor) GetLastData() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	dataCopy := make([]byte, len(m.lastData))
	copy(dataCopy, m.lastData)
	return dataCopy
}

// Reset resets the mock state
func (m *MockProcessor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.texts = make(map[string]string)
	m.forceError = nil
	m.extractTextCalls = 0
	m.lastData = nil
}
