package security

import (
	"strings"
	"sync"
	"time"
)

type attempts struct {
	first       time.Time
	failures    int
	lockedUntil time.Time
}

// LoginThrottle locks a key after too many failed logins inside a window.
type LoginThrottle struct {
	max     int
	window  time.Duration
	lockout time.Duration
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*attempts
}

func NewLoginThrottle(max int, window, lockout time.Duration) *LoginThrottle {
	return &LoginThrottle{
		max:     max,
		window:  window,
		lockout: lockout,
		now:     time.Now,
		entries: make(map[string]*attempts),
	}
}

// ThrottleKey combines client address and username, case-folded.
func ThrottleKey(clientIP, username string) string {
	return clientIP + "|" + strings.ToLower(strings.TrimSpace(username))
}

// Allow reports whether a login attempt may proceed and, if not, how long until it may.
func (t *LoginThrottle) Allow(key string) (bool, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key]
	if !ok {
		return true, 0
	}
	now := t.now()
	if now.Before(e.lockedUntil) {
		return false, e.lockedUntil.Sub(now)
	}
	return true, 0
}

// Failure records a failed attempt and starts the lockout once the limit is reached.
func (t *LoginThrottle) Failure(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	e, ok := t.entries[key]
	if !ok || now.Sub(e.first) > t.window {
		e = &attempts{first: now}
		t.entries[key] = e
	}
	e.failures++
	if e.failures >= t.max {
		e.lockedUntil = now.Add(t.lockout)
		e.failures = 0
		e.first = now
	}
}

// Success clears the key.
func (t *LoginThrottle) Success(key string) {
	t.mu.Lock()
	delete(t.entries, key)
	t.mu.Unlock()
}

func (t *LoginThrottle) CleanExpired() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	now := t.now()
	for key, e := range t.entries {
		if now.After(e.lockedUntil) && now.Sub(e.first) > t.window {
			delete(t.entries, key)
			removed++
		}
	}
	return removed
}
