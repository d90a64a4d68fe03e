// internal/security/security.go
package security

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"sync"
	"time"

	"trcinventory/internal/config"
	"trcinventory/internal/logger"
)

var (
	csrfTokens   = make(map[string]time.Time)
	csrfTokensMu sync.Mutex
	csrfTokenTTL = time.Hour * 1
)

// GenerateRandomToken returns n random bytes, URL-safe base64 encoded.
func GenerateRandomToken(n int) (string, error) {
	bytes := make([]byte, n)
	_, err := rand.Read(bytes)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// GenerateCSRFToken generates a new CSRF token for the HTML login form.
func GenerateCSRFToken() string {
	token, err := GenerateRandomToken(32)
	if err != nil {
		// can't securely continue if randomness fails
		panic("Failed to generate CSRF token: " + err.Error())
	}

	csrfTokensMu.Lock()
	csrfTokens[token] = time.Now().Add(csrfTokenTTL)
	csrfTokensMu.Unlock()

	return token
}

// ValidateCSRFToken validates and consumes a CSRF token.
func ValidateCSRFToken(token string) bool {
	csrfTokensMu.Lock()
	defer csrfTokensMu.Unlock()

	expiry, ok := csrfTokens[token]
	if !ok || time.Now().After(expiry) {
		return false
	}
	delete(csrfTokens, token) // Consume the token
	return true
}

func cleanExpiredCSRFTokens() int {
	csrfTokensMu.Lock()
	defer csrfTokensMu.Unlock()

	removed := 0
	now := time.Now()
	for token, expiry := range csrfTokens {
		if now.After(expiry) {
			delete(csrfTokens, token)
			removed++
		}
	}
	return removed
}

// RunCleanup periodically drops expired CSRF tokens, sessions and throttle entries until ctx is done.
func RunCleanup(ctx context.Context, interval time.Duration, sessions *SessionManager, throttle *LoginThrottle) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			csrf := cleanExpiredCSRFTokens()
			var expired, unlocked int
			if sessions != nil {
				expired = sessions.CleanExpired()
			}
			if throttle != nil {
				unlocked = throttle.CleanExpired()
			}
			logger.LogDebug("Security cleanup completed: %d csrf tokens, %d sessions, %d throttle entries", csrf, expired, unlocked)
		}
	}
}

// AddCORSHeaders adds CORS headers and handles OPTIONS requests globally.
func AddCORSHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", config.AllowedOrigin) // From config
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if config.AllowedOrigin != "*" && config.AllowedOrigin != "" {
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
