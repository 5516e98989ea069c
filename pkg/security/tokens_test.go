package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSessionTokenRoundTrip(t *testing.T) {
	s := NewSigner("test-secret")
	token, err := s.IssueSession("acct-1")
	require.NoError(t, err)

	sub, purpose, err := s.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "acct-1", sub)
	require.Empty(t, purpose)
}

func TestSingleUseTokenCarriesPurpose(t *testing.T) {
	s := NewSigner("test-secret")
	token, err := s.IssueSingleUse("acct-1", "password_reset", time.Hour)
	require.NoError(t, err)

	sub, purpose, err := s.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "acct-1", sub)
	require.Equal(t, "password_reset", purpose)
}

func TestParseRejectsExpired(t *testing.T) {
	s := NewSigner("test-secret")
	token, err := s.IssueSingleUse("acct-1", "enrolment", -time.Minute)
	require.NoError(t, err)

	_, _, err = s.Parse(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := NewSigner("secret-a").IssueSession("acct-1")
	require.NoError(t, err)

	_, _, err = NewSigner("secret-b").Parse(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, _, err := NewSigner("test-secret").Parse("not.a.jwt")
	require.ErrorIs(t, err, ErrInvalidToken)
}
