package auth

import (
	"net/http"
	"time"

	"trcinventory/internal/config"
	"trcinventory/internal/logger"
	"trcinventory/internal/middleware"
	"trcinventory/internal/security"
)

func init() {
	middleware.RegisterError(middleware.ErrorRule{
		Target: ErrInvalidCredentials, Status: http.StatusUnauthorized,
		Code: "invalid_credentials", Message: "Invalid username or password",
	})
	middleware.RegisterError(middleware.ErrorRule{
		Target: ErrThrottled, Status: http.StatusTooManyRequests,
		Code: "throttled", Message: "Too many failed login attempts, try again later",
	})
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token   string           `json:"token"`
	Session security.Session `json:"session"`
}

// SetSessionCookie stores the token for browser clients.
func SetSessionCookie(w http.ResponseWriter, s security.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     security.SessionCookie,
		Value:    s.Token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   config.Environment() != "dev",
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the browser cookie.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     security.SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.Environment() != "dev",
		SameSite: http.SameSiteLaxMode,
	})
}

// LoginHandler handles POST /api/login
func (s *Service) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		middleware.WriteAPIError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed", "")
		return
	}

	var req LoginRequest
	if err := middleware.ParseJSONRequest(r, &req); err != nil {
		middleware.InvalidRequest(w, r, err)
		return
	}

	session, err := s.Login(r.Context(), req.Username, req.Password, logger.GetClientIP(r))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	SetSessionCookie(w, session)
	middleware.WriteAPISuccess(w, r, LoginResponse{Token: session.Token, Session: session})
}

// LogoutHandler handles POST /api/logout (guarded)
func (s *Service) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		middleware.WriteAPIError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed", "")
		return
	}
	if session, ok := s.Current(r.Context()); ok {
		s.Logout(r.Context(), session)
	}
	ClearSessionCookie(w)
	middleware.WriteAPISuccess(w, r, map[string]bool{"logged_out": true})
}

// SessionHandler handles GET /api/session (guarded)
func (s *Service) SessionHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := s.Current(r.Context())
	if !ok {
		middleware.RejectAPI(w, r)
		return
	}
	session.Token = ""
	middleware.WriteAPISuccess(w, r, session)
}
