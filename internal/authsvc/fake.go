package authsvc

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"storefront-service/internal/apperr"
)

// FakeService is an in-memory Service and TokenVerifier for tests and local
// runs without backend credentials.
type FakeService struct {
	sessionHub

	mu    sync.Mutex
	users map[string]fakeUser // keyed by email
}

type fakeUser struct {
	uid      string
	password string
}

// NewFakeService creates an empty fake auth service.
func NewFakeService() *FakeService {
	return &FakeService{users: make(map[string]fakeUser)}
}

func (s *FakeService) SignIn(_ context.Context, email, password string) (*Session, error) {
	s.mu.Lock()
	u, ok := s.users[email]
	s.mu.Unlock()

	if !ok || u.password != password {
		return nil, apperr.Auth(apperr.AuthInvalidCredentials, fmt.Errorf("fake auth: bad credentials for %s", email))
	}
	session := s.newSession(u.uid, email)
	s.set(session)
	return session, nil
}

func (s *FakeService) SignUp(_ context.Context, email, password string) (*Session, error) {
	if len(password) < 6 {
		return nil, apperr.Auth(apperr.AuthWeakPassword, fmt.Errorf("fake auth: weak password"))
	}

	s.mu.Lock()
	if _, exists := s.users[email]; exists {
		s.mu.Unlock()
		return nil, apperr.Auth(apperr.AuthEmailInUse, fmt.Errorf("fake auth: %s already registered", email))
	}
	u := fakeUser{uid: uuid.New().String(), password: password}
	s.users[email] = u
	s.mu.Unlock()

	session := s.newSession(u.uid, email)
	s.set(session)
	return session, nil
}

func (s *FakeService) SignOut(_ context.Context) error {
	s.set(nil)
	return nil
}

func (s *FakeService) ObserveSession(fn func(*Session)) (cancel func()) {
	return s.observe(fn)
}

// Verify accepts the ID token of any session this fake has issued.
func (s *FakeService) Verify(_ context.Context, idToken string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for email, u := range s.users {
		if "token-"+u.uid == idToken {
			return &Session{UID: u.uid, Email: email, IDToken: idToken}, nil
		}
	}
	return nil, apperr.Auth(apperr.AuthInvalidCredentials, fmt.Errorf("fake auth: unknown token"))
}

func (s *FakeService) newSession(uid, email string) *Session {
	return &Session{UID: uid, Email: email, IDToken: "token-" + uid}
}
