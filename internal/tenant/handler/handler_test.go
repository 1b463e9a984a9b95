package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitgate/internal/tenant/models"
	"fitgate/internal/tenant/service"
	"fitgate/internal/tenant/store"
	id "fitgate/pkg/domain"
	"fitgate/pkg/requestcontext"
)

func newTestHandler(t *testing.T) (*Handler, *models.Tenant) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(store.NewInMemoryStore(), service.WithLogger(logger))
	tenant, err := svc.CreateTenant(context.Background(), &service.CreateTenantCommand{Name: "Club", Slug: "club"})
	require.NoError(t, err)
	return New(svc, logger), tenant
}

func registerRequest(t *testing.T, auth *id.AuthContext, body any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/oauth2/register", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if auth != nil {
		req = req.WithContext(requestcontext.WithAuth(req.Context(), *auth))
	}
	return req
}

func TestHandleRegisterClient(t *testing.T) {
	h, tenant := newTestHandler(t)
	owner := &id.AuthContext{
		TenantID:      tenant.ID,
		PrincipalID:   uuid.NewString(),
		PrincipalKind: id.PrincipalUser,
		Role:          id.RoleOwner,
	}

	t.Run("owner registers an agent", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.HandleRegisterClient(rec, registerRequest(t, owner, map[string]any{
			"client_name": "Coach agent",
			"scope":       "fitness:read tasks:write",
		}))
		require.Equal(t, http.StatusCreated, rec.Code)

		var resp ClientRegistrationResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.ClientID)
		assert.NotEmpty(t, resp.ClientSecret)
		assert.Equal(t, "agent", resp.Kind)
		assert.Equal(t, []string{"client_credentials"}, resp.GrantTypes)
		assert.Equal(t, "fitness:read tasks:write", resp.Scope)
	})

	t.Run("public interactive client", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.HandleRegisterClient(rec, registerRequest(t, owner, map[string]any{
			"client_name":                "Desktop assistant",
			"redirect_uris":              []string{"http://127.0.0.1:33418/callback"},
			"token_endpoint_auth_method": "none",
		}))
		require.Equal(t, http.StatusCreated, rec.Code)

		var resp ClientRegistrationResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Empty(t, resp.ClientSecret)
		assert.Equal(t, "none", resp.TokenEndpointAuthMethod)
	})

	t.Run("member is forbidden", func(t *testing.T) {
		member := *owner
		member.Role = id.RoleMember
		rec := httptest.NewRecorder()
		h.HandleRegisterClient(rec, registerRequest(t, &member, map[string]any{"client_name": "x"}))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("client principal is forbidden", func(t *testing.T) {
		agent := *owner
		agent.PrincipalKind = id.PrincipalClient
		rec := httptest.NewRecorder()
		h.HandleRegisterClient(rec, registerRequest(t, &agent, map[string]any{"client_name": "x"}))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.HandleRegisterClient(rec, registerRequest(t, nil, map[string]any{"client_name": "x"}))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wildcard redirect rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.HandleRegisterClient(rec, registerRequest(t, owner, map[string]any{
			"client_name":   "Bad",
			"redirect_uris": []string{"https://*.example.com/cb"},
		}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAdminRoutes(t *testing.T) {
	h, tenant := newTestHandler(t)
	r := chi.NewRouter()
	h.RegisterAdmin(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/tenants/"+tenant.ID.String()+"/suspend", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TenantResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.TenantStatusSuspended, resp.Status)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/tenants/"+tenant.ID.String()+"/suspend", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	body := bytes.NewBufferString(`{"disabled_tools":["get_athlete"]}`)
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/admin/tenants/"+tenant.ID.String()+"/tool-policy", body))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"get_athlete"}, resp.DisabledTools)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/tenants/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
