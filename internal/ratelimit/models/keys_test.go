package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	id "fitgate/pkg/domain"
)

func TestPrincipalKeysDoNotCollide(t *testing.T) {
	tenant := id.TenantID(uuid.New())
	a := NewPrincipalKey(tenant, id.PrincipalClient, "agent:mcp", "a2a")
	b := NewPrincipalKey(tenant, id.PrincipalClient, "agent", "mcp:a2a")
	assert.NotEqual(t, a.String(), b.String())

	c := NewPrincipalKey(id.TenantID(uuid.New()), id.PrincipalClient, "agent", "mcp")
	d := NewPrincipalKey(tenant, id.PrincipalClient, "agent", "mcp")
	assert.NotEqual(t, c.String(), d.String(), "tenants never share a bucket")
}

func TestSanitizeKeySegment(t *testing.T) {
	assert.Equal(t, "user_cadmin", sanitizeKeySegment("user:admin"))
	assert.Equal(t, "user__admin", sanitizeKeySegment("user_admin"))
	assert.Equal(t, "user___cadmin", sanitizeKeySegment("user_:admin"))
}

func TestRetryAfterSecondsRoundsUp(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, RetryAfterSeconds(true, now.Add(time.Minute), now))
	assert.Equal(t, 0, RetryAfterSeconds(false, now, now))
	assert.Equal(t, 1, RetryAfterSeconds(false, now.Add(100*time.Millisecond), now))
	assert.Equal(t, 30, RetryAfterSeconds(false, now.Add(30*time.Second), now))
}
