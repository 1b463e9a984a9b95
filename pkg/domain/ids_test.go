package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "fitgate/pkg/domain-errors"
)

func TestParseTaskID(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseTaskID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseTaskID("task-42")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("nil uuid parses and reports IsNil", func(t *testing.T) {
		id, err := ParseTaskID(uuid.Nil.String())
		require.NoError(t, err)
		assert.True(t, id.IsNil())
	})

	t.Run("accepts valid uuid", func(t *testing.T) {
		raw := uuid.New()
		id, err := ParseTaskID(raw.String())
		require.NoError(t, err)
		assert.Equal(t, TaskID(raw), id)
		assert.Equal(t, raw.String(), id.String())
	})
}

func TestIDsMarshalAsStrings(t *testing.T) {
	raw := uuid.New()
	payload := struct {
		Tenant TenantID `json:"tenant_id"`
	}{Tenant: TenantID(raw)}

	b, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tenant_id":"`+raw.String()+`"}`, string(b))

	var decoded struct {
		Tenant TenantID `json:"tenant_id"`
	}
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, payload.Tenant, decoded.Tenant)
}

func TestRoleAdministration(t *testing.T) {
	assert.True(t, RoleOwner.CanAdminister())
	assert.True(t, RoleAdmin.CanAdminister())
	assert.False(t, RoleMember.CanAdminister())
	assert.False(t, Role("root").IsValid())
}
