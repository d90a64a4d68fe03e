package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	jwtmiddleware "github.com/auth0/go-jwt-middleware/v2"

	"trcinventory/internal/data"
	"trcinventory/internal/logger"
	"trcinventory/internal/security"
)

// Request context keys
type contextKey string

const (
	RequestIDKey contextKey = "request_id"
)

const maxBodyBytes = 1 << 20

// Standard API error response
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	RequestID string `json:"request_id"`
}

// Standard API success response
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	RequestID string      `json:"request_id"`
}

// Middleware chain for API endpoints
func APIMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return RequestID(
		Logging(
			ErrorHandling(next),
		),
	)
}

// RequestID middleware adds a unique request ID to each request
func RequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// Logging middleware logs all API requests with consistent format
func Logging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := GetRequestID(r.Context())

		logger.LogInfo("API request started: request_id=%s method=%s path=%s client_ip=%s",
			requestID, r.Method, r.URL.Path, logger.GetClientIP(r))

		// Create a response writer that captures status code
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		logger.LogInfo("API request completed: request_id=%s status=%d processing_ms=%d",
			requestID, rw.statusCode, duration.Milliseconds())
	}
}

// ErrorHandling middleware provides panic recovery and consistent error responses
func ErrorHandling(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.LogError("Panic in API handler: request_id=%s method=%s path=%s error=%v",
					GetRequestID(r.Context()), r.Method, r.URL.Path, err)
				WriteAPIError(w, r, http.StatusInternalServerError, "internal_error",
					"An internal error occurred", "")
			}
		}()
		next.ServeHTTP(w, r)
	}
}

// =============================================================================
// SESSION GUARD
// =============================================================================

// RequireSession admits a request only when its token validates and its session is still
// registered. Rejected requests are handed to reject; the admitted session is stored in the
// request context.
func RequireSession(sessions *security.SessionManager, reject http.HandlerFunc) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		guard := jwtmiddleware.New(
			sessions.ValidateToken,
			jwtmiddleware.WithTokenExtractor(jwtmiddleware.MultiTokenExtractor(
				jwtmiddleware.AuthHeaderTokenExtractor,
				jwtmiddleware.CookieTokenExtractor(security.SessionCookie),
			)),
			jwtmiddleware.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
				logger.LogDebug("Session rejected for %s %s: %v", r.Method, r.URL.Path, err)
				reject(w, r)
			}),
		)

		admit := func(w http.ResponseWriter, r *http.Request) {
			s, err := sessions.Resolve(r.Context().Value(jwtmiddleware.ContextKey{}))
			if err != nil {
				logger.LogDebug("Session rejected for %s %s: %v", r.Method, r.URL.Path, err)
				reject(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(security.WithSession(r.Context(), s)))
		}

		return guard.CheckJWT(http.HandlerFunc(admit)).ServeHTTP
	}
}

// RejectAPI answers an unauthenticated API request.
func RejectAPI(w http.ResponseWriter, r *http.Request) {
	WriteAPIError(w, r, http.StatusUnauthorized, "unauthenticated", "Login required", "")
}

// RejectPage sends an unauthenticated browser to the login page.
func RejectPage(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

// ErrorRule maps a sentinel error onto an HTTP status and API error code.
type ErrorRule struct {
	Target  error
	Status  int
	Code    string
	Message string
}

var (
	errorRulesMu sync.RWMutex
	errorRules   []ErrorRule
)

// Checked after every registered rule.
var defaultRules = []ErrorRule{
	{Target: data.ErrNotFound, Status: http.StatusNotFound, Code: "not_found", Message: "Record not found"},
	{Target: data.ErrConflict, Status: http.StatusConflict, Code: "conflict", Message: "Record conflicts with an existing one"},
	{Target: context.DeadlineExceeded, Status: http.StatusGatewayTimeout, Code: "timeout", Message: "The backend did not answer in time"},
}

// RegisterError adds a rule. Packages register their own sentinels from init.
func RegisterError(rule ErrorRule) {
	errorRulesMu.Lock()
	errorRules = append(errorRules, rule)
	errorRulesMu.Unlock()
}

// ErrorStatus resolves err to a status, code and public message.
func ErrorStatus(err error) (int, string, string) {
	errorRulesMu.RLock()
	defer errorRulesMu.RUnlock()

	for _, rule := range errorRules {
		if errors.Is(err, rule.Target) {
			return rule.Status, rule.Code, rule.Message
		}
	}
	for _, rule := range defaultRules {
		if errors.Is(err, rule.Target) {
			return rule.Status, rule.Code, rule.Message
		}
	}
	return http.StatusInternalServerError, "backend_error", "The request could not be completed"
}

// WriteError logs err and writes the mapped API error. Details are only sent for client errors.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := ErrorStatus(err)
	details := ""
	if status < http.StatusInternalServerError {
		details = err.Error()
		logger.LogWarn("Request %s %s rejected: %v", r.Method, r.URL.Path, err)
	} else {
		logger.LogHTTPError(r, status, err)
	}
	WriteAPIError(w, r, status, code, message, details)
}

// Helper functions
func generateRequestID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// GetRequestID returns the id set by RequestID, empty outside the chain.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// WriteAPIError writes a standardized error response
func WriteAPIError(w http.ResponseWriter, r *http.Request, statusCode int, code, message, details string) {
	requestID := GetRequestID(r.Context())

	response := APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		RequestID: requestID,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}

// WriteAPISuccess writes a standardized success response
func WriteAPISuccess(w http.ResponseWriter, r *http.Request, data interface{}) {
	writeAPISuccess(w, r, http.StatusOK, data)
}

// WriteAPICreated is WriteAPISuccess with 201 Created.
func WriteAPICreated(w http.ResponseWriter, r *http.Request, data interface{}) {
	writeAPISuccess(w, r, http.StatusCreated, data)
}

func writeAPISuccess(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	requestID := GetRequestID(r.Context())

	response := APIResponse{
		Success:   true,
		Data:      data,
		RequestID: requestID,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// ParseJSONRequest parses JSON request body into the provided struct
func ParseJSONRequest(r *http.Request, v interface{}) error {
	if !strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return fmt.Errorf("content-type must be application/json")
	}

	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields() // Strict parsing
	return decoder.Decode(v)
}

// InvalidRequest writes a 400 for a malformed body or parameter.
func InvalidRequest(w http.ResponseWriter, r *http.Request, err error) {
	logger.LogWarn("Invalid request to %s %s: %v", r.Method, r.URL.Path, err)
	WriteAPIError(w, r, http.StatusBadRequest, "invalid_request", "The request is invalid", err.Error())
}
