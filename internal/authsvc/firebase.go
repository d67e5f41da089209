package authsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"

	"storefront-service/internal/apperr"
	"storefront-service/internal/util"
)

// identityToolkitURL is the REST surface for email/password auth. The admin
// SDK cannot perform password sign-in, so sign-in/sign-up go through REST
// while token verification uses the admin client.
const identityToolkitURL = "https://identitytoolkit.googleapis.com/v1"

// FirebaseService implements Service and TokenVerifier against Firebase
// Authentication.
type FirebaseService struct {
	sessionHub

	apiKey string
	http   *http.Client
	admin  *fbauth.Client
}

// NewFirebaseService builds the auth service from the Firebase app and the
// project's web API key.
func NewFirebaseService(ctx context.Context, app *firebase.App, webAPIKey string) (*FirebaseService, error) {
	admin, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create firebase auth client: %w", err)
	}
	return &FirebaseService{
		apiKey: webAPIKey,
		http:   &http.Client{Timeout: 15 * time.Second},
		admin:  admin,
	}, nil
}

type identityRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type identityResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	Error        *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (s *FirebaseService) SignIn(ctx context.Context, email, password string) (*Session, error) {
	session, err := s.call(ctx, "accounts:signInWithPassword", email, password)
	if err != nil {
		return nil, err
	}
	s.set(session)
	return session, nil
}

func (s *FirebaseService) SignUp(ctx context.Context, email, password string) (*Session, error) {
	session, err := s.call(ctx, "accounts:signUp", email, password)
	if err != nil {
		return nil, err
	}
	s.set(session)
	return session, nil
}

func (s *FirebaseService) SignOut(_ context.Context) error {
	s.set(nil)
	return nil
}

func (s *FirebaseService) ObserveSession(fn func(*Session)) (cancel func()) {
	return s.observe(fn)
}

// Verify resolves a bearer ID token via the admin SDK.
func (s *FirebaseService) Verify(ctx context.Context, idToken string) (*Session, error) {
	token, err := s.admin.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, apperr.Auth(apperr.AuthInvalidCredentials, err)
	}
	email, _ := token.Claims["email"].(string)
	return &Session{UID: token.UID, Email: email, IDToken: idToken}, nil
}

func (s *FirebaseService) call(ctx context.Context, endpoint, email, password string) (*Session, error) {
	body, err := json.Marshal(identityRequest{Email: email, Password: password, ReturnSecureToken: true})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal auth request: %w", err)
	}

	url := fmt.Sprintf("%s/%s?key=%s", identityToolkitURL, endpoint, s.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, apperr.Auth(apperr.AuthUnknown, err)
	}
	defer resp.Body.Close()

	var out identityResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperr.Auth(apperr.AuthUnknown, err)
	}

	if resp.StatusCode != http.StatusOK || out.Error != nil {
		msg := ""
		if out.Error != nil {
			msg = out.Error.Message
		}
		reason := classify(msg)
		util.AuthFailuresTotal.WithLabelValues(reasonLabel(reason)).Inc()
		return nil, apperr.Auth(reason, fmt.Errorf("identity toolkit %s: %s", endpoint, msg))
	}

	ttl, _ := strconv.Atoi(out.ExpiresIn)
	return &Session{
		UID:          out.LocalID,
		Email:        out.Email,
		IDToken:      out.IDToken,
		RefreshToken: out.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(ttl) * time.Second),
	}, nil
}

// classify maps backend error codes onto the AuthFailure sub-kinds. The raw
// code never reaches the user, only the fixed text in apperr.UserMessage.
func classify(code string) apperr.AuthReason {
	switch {
	case strings.HasPrefix(code, "EMAIL_NOT_FOUND"),
		strings.HasPrefix(code, "INVALID_PASSWORD"),
		strings.HasPrefix(code, "INVALID_LOGIN_CREDENTIALS"),
		strings.HasPrefix(code, "USER_DISABLED"):
		return apperr.AuthInvalidCredentials
	case strings.HasPrefix(code, "EMAIL_EXISTS"):
		return apperr.AuthEmailInUse
	case strings.HasPrefix(code, "WEAK_PASSWORD"):
		return apperr.AuthWeakPassword
	case strings.HasPrefix(code, "TOO_MANY_ATTEMPTS_TRY_LATER"):
		return apperr.AuthThrottled
	default:
		return apperr.AuthUnknown
	}
}

func reasonLabel(r apperr.AuthReason) string {
	switch r {
	case apperr.AuthInvalidCredentials:
		return "invalid_credentials"
	case apperr.AuthEmailInUse:
		return "email_in_use"
	case apperr.AuthWeakPassword:
		return "weak_password"
	case apperr.AuthThrottled:
		return "throttled"
	default:
		return "unknown"
	}
}
