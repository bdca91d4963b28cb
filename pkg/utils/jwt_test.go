package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calebms/postbridge/internal/apperr"
)

const testSecret = "unit-test-signing-secret"

func TestLinkState_RoundTrip(t *testing.T) {
	state, err := GenerateLinkState(testSecret, 42, 7, "organization")
	require.NoError(t, err)

	claims, err := ValidateLinkState(testSecret, state)
	require.NoError(t, err)

	assert.EqualValues(t, 42, claims.UserID)
	assert.EqualValues(t, 7, claims.OrgID)
	assert.Equal(t, "organization", claims.AccountType)
	assert.NotEmpty(t, claims.Nonce)
}

func TestLinkState_FreshNonce(t *testing.T) {
	a, err := GenerateLinkState(testSecret, 1, 0, "personal")
	require.NoError(t, err)
	b, err := GenerateLinkState(testSecret, 1, 0, "personal")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestLinkState_Rejections(t *testing.T) {
	valid, err := GenerateLinkState(testSecret, 42, 0, "personal")
	require.NoError(t, err)

	for name, state := range map[string]string{
		"empty":      "",
		"garbage":    "not-a-jwt",
		"not json":   "eyJhbGciOiJIUzI1NiJ9.bm90LWpzb24.sig",
		"tampered":   valid[:len(valid)-4] + "XXXX",
		"wrong key":  mustState(t, "some-other-secret"),
		"no user id": mustClaimless(t),
	} {
		_, err := ValidateLinkState(testSecret, state)
		if !errors.Is(err, apperr.ErrInvalidState) {
			t.Errorf("%s: want ErrInvalidState, got %v", name, err)
		}
	}
}

func mustState(t *testing.T, secret string) string {
	t.Helper()
	s, err := GenerateLinkState(secret, 42, 0, "personal")
	require.NoError(t, err)
	return s
}

func mustClaimless(t *testing.T) string {
	t.Helper()
	s, err := GenerateLinkState(testSecret, 0, 0, "")
	require.NoError(t, err)
	return s
}
