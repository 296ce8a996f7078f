package auth

import (
	"context"
	"net/http"
	"sync"
)

// MockJWTMiddleware is a test implementation of JWT middleware
// that maps bearer tokens to user IDs without real token validation
type MockJWTMiddleware struct {
	mu            sync.RWMutex
	defaultUserID string
	userIDMap     map[string]string // Maps token to user ID
	calls         int
}

// NewMockJWTMiddleware creates a new mock JWT middleware for testing.
// An empty defaultUserID makes requests without a mapped token unauthorized.
func NewMockJWTMiddleware(defaultUserID string) *MockJWTMiddleware {
	return &MockJWTMiddleware{
		defaultUserID: defaultUserID,
		userIDMap:     make(map[string]string),
	}
}

// Middleware adds the user ID for the request's token to the context
func (m *MockJWTMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractTokenFromHeader(r)

		m.mu.Lock()
		m.calls++
		userID := m.defaultUserID
		if mapped, ok := m.userIDMap[token]; token != "" && ok {
			userID = mapped
		}
		m.mu.Unlock()

		if userID == "" {
			writeDetail(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SetDefaultUserID changes the default user ID returned by the middleware
func (m *MockJWTMiddleware) SetDefaultUserID(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultUserID = userID
}

// SetUserIDForToken maps a specific token to a user ID
func (m *MockJWTMiddleware) SetUserIDForToken(token, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userIDMap[token] = userID
}

// GetCallCount returns the number of times the middleware was called
func (m *MockJWTMiddleware) GetCallCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// Reset resets the middleware state
func (m *MockJWTMiddleware) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = 0
	m.userIDMap = make(map[string]string)
}
