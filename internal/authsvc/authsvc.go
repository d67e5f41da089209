// Package authsvc wraps the hosted auth service: email/password sign-in and
// sign-up, sign-out, and observation of the current session.
package authsvc

import (
	"context"
	"sync"
	"time"
)

// Session is an authenticated user session.
type Session struct {
	UID          string
	Email        string
	IDToken      string
	RefreshToken string
	ExpiresAt    time.Time
}

// Service is the auth collaborator contract. Failures are classified
// apperr.AuthFailure errors.
type Service interface {
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context) error

	// ObserveSession registers fn, invokes it once immediately with the
	// current session (nil when signed out), and again on every sign-in or
	// sign-out. The returned func cancels the observation.
	ObserveSession(fn func(*Session)) (cancel func())
}

// TokenVerifier checks a bearer ID token and resolves it to a session.
type TokenVerifier interface {
	Verify(ctx context.Context, idToken string) (*Session, error)
}

// sessionHub implements the observe/notify part of Service. Embedding types
// call set on every sign-in/out.
type sessionHub struct {
	mu        sync.Mutex
	current   *Session
	observers map[int]func(*Session)
	nextID    int
}

func (h *sessionHub) set(s *Session) {
	h.mu.Lock()
	h.current = s
	fns := make([]func(*Session), 0, len(h.observers))
	for _, fn := range h.observers {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

func (h *sessionHub) observe(fn func(*Session)) (cancel func()) {
	h.mu.Lock()
	if h.observers == nil {
		h.observers = make(map[int]func(*Session))
	}
	id := h.nextID
	h.nextID++
	h.observers[id] = fn
	current := h.current
	h.mu.Unlock()

	fn(current)

	return func() {
		h.mu.Lock()
		delete(h.observers, id)
		h.mu.Unlock()
	}
}

func (h *sessionHub) session() *Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}
