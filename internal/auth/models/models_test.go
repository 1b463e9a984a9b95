package models

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "fitgate/pkg/domain"
	dErrors "fitgate/pkg/domain-errors"
)

func TestVerifyPKCE(t *testing.T) {
	// RFC 7636 Appendix B
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	challenge := "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"

	assert.Equal(t, challenge, S256Challenge(verifier))
	assert.True(t, VerifyPKCE(verifier, challenge))
	assert.False(t, VerifyPKCE(verifier+"x", challenge))
	assert.False(t, VerifyPKCE("short", S256Challenge("short")))
	assert.False(t, VerifyPKCE(strings.Repeat("a", 129), S256Challenge(strings.Repeat("a", 129))))
}

func TestAuthorizationRequest(t *testing.T) {
	now := time.Now()
	req, err := NewAuthorizationRequest("state", "code", "challenge", id.TenantID(uuid.New()), "client",
		id.UserID(uuid.New()), "https://app.example.com/cb", []string{id.ScopeFitnessRead}, now, 10*time.Minute)
	require.NoError(t, err)

	assert.False(t, req.IsExpired(now.Add(9*time.Minute)))
	assert.True(t, req.IsExpired(now.Add(10*time.Minute)))
	assert.True(t, req.Matches("code", "https://app.example.com/cb", "client"))
	assert.False(t, req.Matches("code", "https://app.example.com/cb/", "client"))
	assert.False(t, req.Matches("code", "https://app.example.com/cb", "other"))

	_, err = NewAuthorizationRequest("", "code", "c", id.TenantID{}, "client", id.UserID{}, "https://x", nil, now, time.Minute)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestRefreshTokenConsume(t *testing.T) {
	now := time.Now()
	rt, err := NewRefreshToken("tok", id.TenantID(uuid.New()), "p", id.PrincipalUser, "client",
		[]string{id.ScopeFitnessRead}, now, time.Hour)
	require.NoError(t, err)

	require.NoError(t, rt.ValidateForConsume(now))
	assert.True(t, rt.MarkUsed(now))
	assert.False(t, rt.MarkUsed(now))
	assert.True(t, dErrors.HasCode(rt.ValidateForConsume(now), dErrors.CodeInvalidGrant))

	fresh, err := NewRefreshToken("tok2", id.TenantID(uuid.New()), "p", id.PrincipalUser, "client",
		[]string{id.ScopeFitnessRead}, now, time.Hour)
	require.NoError(t, err)
	assert.True(t, dErrors.HasCode(fresh.ValidateForConsume(now.Add(time.Hour)), dErrors.CodeInvalidGrant))
}
