package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"go.uber.org/zap"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

// Context keys
const (
	UserIDKey contextKey = "userID"
)

// jwksCacheTTL is how long a fetched key set is reused
const jwksCacheTTL = time.Hour

// Config holds JWT authentication configuration
type Config struct {
	PublicKeyURL string
	Secret       string
	Algorithm    string
}

// JWTMiddleware handles JWT authentication
type JWTMiddleware struct {
	config       Config
	logger       *zap.SugaredLogger
	httpClient   *http.Client
	keySet       jwk.Set
	keyLock      sync.RWMutex
	keyFetchedAt time.Time
}

// NewJWTMiddleware creates a new JWT middleware
func NewJWTMiddleware(config Config, logger *zap.SugaredLogger) *JWTMiddleware {
	return &JWTMiddleware{
		config:     config,
		logger:     logger,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Middleware returns a chi middleware function for JWT authentication
func (m *JWTMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Extract token from Authorization header
		tokenString := extractTokenFromHeader(r)
		if tokenString == "" {
			m.unauthorized(w, r, errors.New("no authorization token provided"))
			return
		}

		// Parse and validate token
		userID, err := m.validateToken(r.Context(), tokenString)
		if err != nil {
			m.unauthorized(w, r, err)
			return
		}

		// Add user ID to context
		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractTokenFromHeader extracts the JWT token from the Authorization header
func extractTokenFromHeader(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	// Check if it's a Bearer token
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

// validateToken validates the JWT token and returns the user ID
func (m *JWTMiddleware) validateToken(ctx context.Context, tokenString string) (string, error) {
	switch strings.ToUpper(m.config.Algorithm) {
	case "RS256":
		return m.validateRS256Token(ctx, tokenString)
	case "HS256", "":
		return m.validateHS256Token(tokenString)
	default:
		return "", fmt.Errorf("unsupported JWT algorithm: %s", m.config.Algorithm)
	}
}

// validateHS256Token validates a token signed with HS256 algorithm
func (m *JWTMiddleware) validateHS256Token(tokenString string) (string, error) {
	if m.config.Secret == "" {
		return "", errors.New("JWT secret not configured")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(m.config.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	return extractUserIDFromToken(token)
}

// validateRS256Token validates a token signed with RS256 algorithm
func (m *JWTMiddleware) validateRS256Token(ctx context.Context, tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		return m.getPublicKey(ctx, kid)
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	return extractUserIDFromToken(token)
}

// extractUserIDFromToken extracts the user ID from the token claims
func extractUserIDFromToken(token *jwt.Token) (string, error) {
	if !token.Valid {
		return "", errors.New("invalid token claims")
	}

	sub, err := token.Claims.GetSubject()
	if err != nil {
		return "", fmt.Errorf("invalid 'sub' claim: %w", err)
	}
	if sub == "" {
		return "", errors.New("token missing 'sub' claim")
	}

	return sub, nil
}

// getPublicKey returns the RSA key for kid from the cached JWKS.
// An empty kid selects the first RSA key in the set.
func (m *JWTMiddleware) getPublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	set, err := m.getKeySet(ctx)
	if err != nil {
		return nil, err
	}

	var key jwk.Key
	if kid != "" {
		found, ok := set.LookupKeyID(kid)
		if !ok {
			return nil, fmt.Errorf("key %q not found in JWKS", kid)
		}
		key = found
	} else {
		for i := 0; i < set.Len(); i++ {
			candidate, ok := set.Key(i)
			if ok && candidate.KeyType() == jwa.RSA {
				key = candidate
				break
			}
		}
		if key == nil {
			return nil, errors.New("no suitable key found in JWKS")
		}
	}

	var raw interface{}
	if err := key.Raw(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode JWKS key: %w", err)
	}

	publicKey, ok := raw.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("JWKS key %q is not an RSA public key", kid)
	}

	return publicKey, nil
}

// getKeySet fetches and caches the JWKS
func (m *JWTMiddleware) getKeySet(ctx context.Context) (jwk.Set, error) {
	m.keyLock.RLock()
	if m.keySet != nil && time.Since(m.keyFetchedAt) < jwksCacheTTL {
		defer m.keyLock.RUnlock()
		return m.keySet, nil
	}
	m.keyLock.RUnlock()

	m.keyLock.Lock()
	defer m.keyLock.Unlock()

	// Double-check after acquiring the write lock
	if m.keySet != nil && time.Since(m.keyFetchedAt) < jwksCacheTTL {
		return m.keySet, nil
	}

	if m.config.PublicKeyURL == "" {
		return nil, errors.New("JWT public key URL not configured")
	}

	set, err := jwk.Fetch(ctx, m.config.PublicKeyURL, jwk.WithHTTPClient(m.httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}

	m.logger.Infow("Fetched JWKS", "url", m.config.PublicKeyURL, "keys", set.Len())
	m.keySet = set
	m.keyFetchedAt = time.Now()

	return set, nil
}

// unauthorized responds with a 401 Unauthorized status
func (m *JWTMiddleware) unauthorized(w http.ResponseWriter, r *http.Request, err error) {
	m.logger.Debugw("Unauthorized request", "error", err, "path", r.URL.Path)
	writeDetail(w, http.StatusUnauthorized, "Unauthorized")
}

// GetUserID extracts the user ID from the request context
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

// RequireSubject rejects requests whose authenticated user does not match
// the named URL parameter. Both are compared as integer user IDs, so "01"
// and "1" name the same user. It must run after Middleware inside a chi route.
func RequireSubject(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := GetUserID(r.Context())
			if !ok || userID == "" {
				writeDetail(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			if !sameUser(userID, chi.URLParam(r, param)) {
				writeDetail(w, http.StatusForbidden, "Forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// sameUser reports whether both values parse to the same user ID
func sameUser(subject, param string) bool {
	subjectID, err := strconv.ParseInt(subject, 10, 64)
	if err != nil {
		return false
	}
	paramID, err := strconv.ParseInt(param, 10, 64)
	if err != nil {
		return false
	}
	return subjectID == paramID
}

func writeDetail(w http.ResponseWriter, code int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"detail":%q}`, detail)
}
