package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"trcinventory/internal/data"
	"trcinventory/internal/logger"
	"trcinventory/internal/security"
)

var (
	// ErrInvalidCredentials is the only login failure callers ever see, whatever the cause.
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrThrottled          = errors.New("too many failed login attempts")
)

// Service authenticates staff against the credentials table.
type Service struct {
	creds    *data.CredentialRepository
	sessions *security.SessionManager
	throttle *security.LoginThrottle
}

func NewService(b data.Backend, sessions *security.SessionManager, throttle *security.LoginThrottle) *Service {
	return &Service{
		creds:    data.NewCredentialRepository(b),
		sessions: sessions,
		throttle: throttle,
	}
}

// Login verifies username and password and opens a session. Exactly one credential row
// must match the username and verify; anything else is ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, username, password, clientIP string) (security.Session, error) {
	key := security.ThrottleKey(clientIP, username)
	if s.throttle != nil {
		if ok, wait := s.throttle.Allow(key); !ok {
			logger.LogWarn("Login throttled for %s from %s (%s remaining)", username, clientIP, wait.Round(time.Second))
			return security.Session{}, fmt.Errorf("%w: retry in %s", ErrThrottled, wait.Round(time.Second))
		}
	}

	if err := s.verify(ctx, username, password); err != nil {
		logger.LogWarn("Login failed for %q from %s: %v", username, clientIP, err)
		if s.throttle != nil {
			s.throttle.Failure(key)
		}
		return security.Session{}, ErrInvalidCredentials
	}
	if s.throttle != nil {
		s.throttle.Success(key)
	}

	session, err := s.sessions.Create(username)
	if err != nil {
		logger.LogError("Failed to open session for %s: %v", username, err)
		return security.Session{}, ErrInvalidCredentials
	}
	return session, nil
}

// verify returns the real reason a login fails. It is logged, never returned to the caller.
func (s *Service) verify(ctx context.Context, username, password string) error {
	if strings.TrimSpace(username) == "" || password == "" {
		return errors.New("username and password are required")
	}

	creds, err := s.creds.FindByUsername(ctx, username)
	if err != nil {
		return err
	}
	switch len(creds) {
	case 0:
		return errors.New("no such user")
	case 1:
	default:
		return fmt.Errorf("%d credential rows share the username", len(creds))
	}

	cred := creds[0]
	ok, legacy := security.VerifyPassword(cred.Password, password)
	if !ok {
		return errors.New("password mismatch")
	}
	if legacy {
		s.upgrade(ctx, cred, password)
	}
	return nil
}

// upgrade rewrites a plaintext password as a bcrypt hash. Failure does not block the login.
func (s *Service) upgrade(ctx context.Context, cred data.Credential, password string) {
	hash, err := security.HashPassword(password)
	if err != nil {
		logger.LogError("Failed to hash legacy password for %s: %v", cred.Username, err)
		return
	}
	if err := s.creds.UpdatePassword(ctx, cred.ID, hash); err != nil {
		logger.LogError("Failed to upgrade legacy password for %s: %v", cred.Username, err)
		return
	}
	logger.LogInfo("Upgraded legacy password for %s", cred.Username)
}

// Logout destroys the session; its token is rejected from then on.
func (s *Service) Logout(ctx context.Context, session security.Session) {
	s.sessions.Destroy(session.ID)
	logger.LogInfo("Session %s closed for %s", session.ID, session.Username)
}

// Current returns the session the guard admitted for this request.
func (s *Service) Current(ctx context.Context) (security.Session, bool) {
	return security.SessionFrom(ctx)
}

// EnsureCredential creates the account when no row has that username. It reports whether
// a row was created.
func (s *Service) EnsureCredential(ctx context.Context, username, password string) (bool, error) {
	if username == "" || password == "" {
		return false, nil
	}
	existing, err := s.creds.FindByUsername(ctx, username)
	if err != nil {
		return false, err
	}
	if len(existing) > 0 {
		return false, nil
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return false, err
	}
	if _, err := s.creds.Insert(ctx, username, hash); err != nil {
		return false, err
	}
	logger.LogInfo("Created bootstrap credential for %s", username)
	return true, nil
}
