package security

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/google/uuid"
	jose "gopkg.in/go-jose/go-jose.v2"
	"gopkg.in/go-jose/go-jose.v2/jwt"

	"trcinventory/internal/logger"
)

const (
	SessionIssuer   = "trc-inventory"
	SessionAudience = "trc-staff"
	SessionCookie   = "trc_session"
	clockSkew       = 30 * time.Second
)

// ErrNoSession is returned when a token is valid but its session was destroyed or expired.
var ErrNoSession = errors.New("session not found")

// Session is an authenticated staff session.
type Session struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Token     string    `json:"token,omitempty"`
}

// SessionManager issues signed session tokens and keeps the registry that makes logout final.
type SessionManager struct {
	ttl       time.Duration
	signer    jose.Signer
	validator *validator.Validator

	mu       sync.RWMutex
	sessions map[string]Session
}

func NewSessionManager(secret []byte, ttl time.Duration) (*SessionManager, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("session secret is empty")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive")
	}

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: secret},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session signer: %w", err)
	}

	keyFunc := func(ctx context.Context) (interface{}, error) {
		return secret, nil
	}
	v, err := validator.New(
		keyFunc,
		validator.HS256,
		SessionIssuer,
		[]string{SessionAudience},
		validator.WithAllowedClockSkew(clockSkew),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session validator: %w", err)
	}

	return &SessionManager{
		ttl:       ttl,
		signer:    signer,
		validator: v,
		sessions:  make(map[string]Session),
	}, nil
}

// Create registers a new session for username and signs its token.
func (m *SessionManager) Create(username string) (Session, error) {
	now := time.Now()
	s := Session{
		ID:        uuid.NewString(),
		Username:  username,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.ttl),
	}

	claims := jwt.Claims{
		Issuer:   SessionIssuer,
		Subject:  username,
		Audience: jwt.Audience{SessionAudience},
		ID:       s.ID,
		IssuedAt: jwt.NewNumericDate(now),
		Expiry:   jwt.NewNumericDate(s.ExpiresAt),
	}
	token, err := jwt.Signed(m.signer).Claims(claims).CompactSerialize()
	if err != nil {
		return Session{}, fmt.Errorf("failed to sign session token: %w", err)
	}
	s.Token = token

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	logger.LogInfo("Session %s created for %s", s.ID, username)
	return s, nil
}

// ValidateToken checks signature, issuer, audience and expiry. It matches the
// jwtmiddleware.ValidateToken signature.
func (m *SessionManager) ValidateToken(ctx context.Context, token string) (interface{}, error) {
	return m.validator.ValidateToken(ctx, token)
}

// Resolve maps validated claims onto a live registry entry.
func (m *SessionManager) Resolve(claims interface{}) (Session, error) {
	vc, ok := claims.(*validator.ValidatedClaims)
	if !ok || vc.RegisteredClaims.ID == "" {
		return Session{}, fmt.Errorf("unexpected session claims: %w", ErrNoSession)
	}
	s, ok := m.Lookup(vc.RegisteredClaims.ID)
	if !ok {
		return Session{}, ErrNoSession
	}
	return s, nil
}

// Authenticate validates a raw token and resolves its session.
func (m *SessionManager) Authenticate(ctx context.Context, token string) (Session, error) {
	claims, err := m.ValidateToken(ctx, token)
	if err != nil {
		return Session{}, err
	}
	return m.Resolve(claims)
}

// Lookup returns the live session with the given id.
func (m *SessionManager) Lookup(id string) (Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok || time.Now().After(s.ExpiresAt) {
		return Session{}, false
	}
	return s, true
}

// Destroy removes a session. Tokens naming it are rejected from then on.
func (m *SessionManager) Destroy(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Count returns the number of registered sessions, expired ones included.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *SessionManager) CleanExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	now := time.Now()
	for id, s := range m.sessions {
		if now.After(s.ExpiresAt) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

type sessionKey struct{}

// WithSession stores the admitted session in ctx.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom returns the session admitted by the guard, if any.
func SessionFrom(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}
