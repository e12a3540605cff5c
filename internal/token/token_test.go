package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func TestIssueAndVerify(t *testing.T) {
	t.Parallel()

	svc, err := NewService("test-secret")
	require.NoError(t, err)

	tok, err := svc.Issue("user-123")
	require.NoError(t, err)
	require.NotEmpty(t, tok.Value)
	require.WithinDuration(t, time.Now().Add(DefaultTTL), tok.ExpiresAt, 2*time.Second)

	principal, err := svc.Verify(tok.Value)
	require.NoError(t, err)
	require.Equal(t, "user-123", principal.ID)
	require.False(t, principal.Demo)
	require.Empty(t, principal.Email)
}

func TestIssueRequiresPrincipalID(t *testing.T) {
	t.Parallel()

	svc, err := NewService("test-secret")
	require.NoError(t, err)

	_, err = svc.Issue("  ")
	require.Error(t, err)
}

func TestNewServiceRequiresSecret(t *testing.T) {
	t.Parallel()

	_, err := NewService("")
	require.Error(t, err)
}

func TestVerifyExpiryBoundary(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0).UTC()}
	ttl := time.Hour
	svc, err := NewService("test-secret", WithClock(clock.Now), WithTTL(ttl))
	require.NoError(t, err)

	issuedAt := clock.now
	tok, err := svc.Issue("user-1")
	require.NoError(t, err)

	clock.now = issuedAt.Add(ttl - time.Second)
	_, err = svc.Verify(tok.Value)
	require.NoError(t, err)

	clock.now = issuedAt.Add(ttl + time.Second)
	_, err = svc.Verify(tok.Value)
	require.ErrorIs(t, err, ErrExpiredToken)
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	t.Parallel()

	svc, err := NewService("right-secret")
	require.NoError(t, err)
	other, err := NewService("wrong-secret")
	require.NoError(t, err)

	foreign, err := other.Issue("user-1")
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "user-1"}).
		SignedString([]byte("right-secret"))
	require.NoError(t, err)

	for name, raw := range map[string]string{
		"malformed":       "not.a.jwt",
		"wrong signature": foreign.Value,
		"alg none":        unsigned,
		"missing exp":     noExpiry,
		"empty":           "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Verify(raw)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestDemoTokensCarryIdentity(t *testing.T) {
	t.Parallel()

	svc, err := NewService("test-secret")
	require.NoError(t, err)

	tok, principal, err := svc.IssueDemo("Ann", "A@X.com")
	require.NoError(t, err)
	require.True(t, principal.Demo)
	require.True(t, IsDemoID(principal.ID))
	require.Equal(t, "a@x.com", principal.Email)

	verified, err := svc.Verify(tok.Value)
	require.NoError(t, err)
	require.Equal(t, principal, verified)
}

func TestSubjectUnverified(t *testing.T) {
	t.Parallel()

	svc, err := NewService("test-secret")
	require.NoError(t, err)
	tok, err := svc.Issue("user-9")
	require.NoError(t, err)

	subject, err := SubjectUnverified(tok.Value)
	require.NoError(t, err)
	require.Equal(t, "user-9", subject)

	_, err = SubjectUnverified("garbage")
	require.ErrorIs(t, err, ErrInvalidToken)
}
