package authsvc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-service/internal/apperr"
)

func TestSignUpThenSignIn(t *testing.T) {
	ctx := context.Background()
	svc := NewFakeService()

	created, err := svc.SignUp(ctx, "asha@example.com", "secret123")
	require.NoError(t, err)
	assert.NotEmpty(t, created.UID)
	assert.NotEmpty(t, created.IDToken)

	session, err := svc.SignIn(ctx, "asha@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, created.UID, session.UID)
}

func TestSignInFailureReasons(t *testing.T) {
	ctx := context.Background()
	svc := NewFakeService()
	_, err := svc.SignUp(ctx, "asha@example.com", "secret123")
	require.NoError(t, err)

	_, err = svc.SignIn(ctx, "asha@example.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, apperr.AuthFailure, apperr.KindOf(err))
	assert.Equal(t, apperr.AuthInvalidCredentials, apperr.ReasonOf(err))

	// Unknown email is indistinguishable from a wrong password.
	_, err = svc.SignIn(ctx, "ghost@example.com", "secret123")
	require.Error(t, err)
	assert.Equal(t, apperr.AuthInvalidCredentials, apperr.ReasonOf(err))
}

func TestSignUpRejectsDuplicateAndWeakPassword(t *testing.T) {
	ctx := context.Background()
	svc := NewFakeService()
	_, err := svc.SignUp(ctx, "asha@example.com", "secret123")
	require.NoError(t, err)

	_, err = svc.SignUp(ctx, "asha@example.com", "another123")
	assert.Equal(t, apperr.AuthEmailInUse, apperr.ReasonOf(err))

	_, err = svc.SignUp(ctx, "new@example.com", "abc")
	assert.Equal(t, apperr.AuthWeakPassword, apperr.ReasonOf(err))
}

func TestObserveSessionFiresImmediatelyAndOnChanges(t *testing.T) {
	ctx := context.Background()
	svc := NewFakeService()

	var seen []*Session
	cancel := svc.ObserveSession(func(s *Session) {
		seen = append(seen, s)
	})
	defer cancel()

	// Fired once immediately with the signed-out state.
	require.Len(t, seen, 1)
	assert.Nil(t, seen[0])

	session, err := svc.SignUp(ctx, "asha@example.com", "secret123")
	require.NoError(t, err)
	require.Len(t, seen, 2)
	assert.Equal(t, session.UID, seen[1].UID)

	require.NoError(t, svc.SignOut(ctx))
	require.Len(t, seen, 3)
	assert.Nil(t, seen[2])
}

func TestObserveSessionCancel(t *testing.T) {
	ctx := context.Background()
	svc := NewFakeService()

	calls := 0
	cancel := svc.ObserveSession(func(*Session) { calls++ })
	cancel()

	_, err := svc.SignUp(ctx, "asha@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestVerifyIssuedTokens(t *testing.T) {
	ctx := context.Background()
	svc := NewFakeService()

	created, err := svc.SignUp(ctx, "asha@example.com", "secret123")
	require.NoError(t, err)

	session, err := svc.Verify(ctx, created.IDToken)
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", session.Email)

	_, err = svc.Verify(ctx, "token-forged")
	require.Error(t, err)
	assert.Equal(t, apperr.AuthFailure, apperr.KindOf(err))
}

func TestClassifyBackendCodes(t *testing.T) {
	tests := []struct {
		code string
		want apperr.AuthReason
	}{
		{"EMAIL_NOT_FOUND", apperr.AuthInvalidCredentials},
		{"INVALID_PASSWORD", apperr.AuthInvalidCredentials},
		{"INVALID_LOGIN_CREDENTIALS", apperr.AuthInvalidCredentials},
		{"USER_DISABLED", apperr.AuthInvalidCredentials},
		{"EMAIL_EXISTS", apperr.AuthEmailInUse},
		{"WEAK_PASSWORD : Password should be at least 6 characters", apperr.AuthWeakPassword},
		{"TOO_MANY_ATTEMPTS_TRY_LATER", apperr.AuthThrottled},
		{"SOMETHING_ELSE", apperr.AuthUnknown},
		{"", apperr.AuthUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classify(tt.code), tt.code)
	}
}
