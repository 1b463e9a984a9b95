package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fitgate/internal/tenant/models"
	"fitgate/internal/tenant/service"
	id "fitgate/pkg/domain"
	dErrors "fitgate/pkg/domain-errors"
	"fitgate/pkg/platform/httputil"
	"fitgate/pkg/requestcontext"
)

// Service defines the tenant operations the handlers need.
type Service interface {
	CreateTenant(ctx context.Context, cmd *service.CreateTenantCommand) (*models.Tenant, error)
	GetTenant(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error)
	Suspend(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error)
	Reactivate(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error)
	SetToolPolicy(ctx context.Context, tenantID id.TenantID, disabled []string) (*models.Tenant, error)
	RegisterClient(ctx context.Context, cmd *service.RegisterClientCommand) (*models.Client, string, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterAdmin mounts the platform operator routes. The caller guards them
// with the admin token middleware.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/tenants", h.HandleCreateTenant)
	r.Get("/admin/tenants/{id}", h.HandleGetTenant)
	r.Post("/admin/tenants/{id}/suspend", h.HandleSuspendTenant)
	r.Post("/admin/tenants/{id}/reactivate", h.HandleReactivateTenant)
	r.Put("/admin/tenants/{id}/tool-policy", h.HandleSetToolPolicy)
}

// HandleRegisterClient registers a client under the caller's own tenant.
// Only an authenticated tenant owner or admin may register clients.
func (h *Handler) HandleRegisterClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	auth, ok := requestcontext.Auth(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	if !auth.CanAdminister() {
		h.logger.WarnContext(ctx, "client registration denied",
			"request_id", requestID,
			"tenant_id", auth.TenantID,
			"principal_kind", auth.PrincipalKind,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "tenant owner or admin role required"))
		return
	}
	if auth.TenantSuspended {
		httputil.WriteError(w, dErrors.New(dErrors.CodeTenantSuspended, "tenant is suspended"))
		return
	}

	req, ok := httputil.DecodeJSON[RegisterClientRequest](w, r, h.logger)
	if !ok {
		return
	}
	client, secret, err := h.service.RegisterClient(ctx, req.ToCommand(auth.TenantID))
	if err != nil {
		h.logger.WarnContext(ctx, "register client failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toRegistrationResponse(client, secret))
}

func (h *Handler) HandleCreateTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeJSON[CreateTenantRequest](w, r, h.logger)
	if !ok {
		return
	}
	tenant, err := h.service.CreateTenant(ctx, &service.CreateTenantCommand{
		Name:               req.Name,
		Slug:               req.Slug,
		DisabledTools:      req.DisabledTools,
		RateLimitPerMinute: req.RateLimitPerMinute,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "create tenant failed", "error", err, "request_id", requestcontext.RequestID(ctx))
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toTenantResponse(tenant))
}

func (h *Handler) HandleGetTenant(w http.ResponseWriter, r *http.Request) {
	h.withTenantID(w, r, h.service.GetTenant)
}

func (h *Handler) HandleSuspendTenant(w http.ResponseWriter, r *http.Request) {
	h.withTenantID(w, r, h.service.Suspend)
}

func (h *Handler) HandleReactivateTenant(w http.ResponseWriter, r *http.Request) {
	h.withTenantID(w, r, h.service.Reactivate)
}

func (h *Handler) HandleSetToolPolicy(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeJSON[ToolPolicyRequest](w, r, h.logger)
	if !ok {
		return
	}
	h.withTenantID(w, r, func(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
		return h.service.SetToolPolicy(ctx, tenantID, req.DisabledTools)
	})
}

func (h *Handler) withTenantID(w http.ResponseWriter, r *http.Request, fn func(context.Context, id.TenantID) (*models.Tenant, error)) {
	ctx := r.Context()
	tenantID, err := id.ParseTenantID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid tenant id"))
		return
	}
	tenant, err := fn(ctx, tenantID)
	if err != nil {
		h.logger.WarnContext(ctx, "tenant admin request failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
			"tenant_id", tenantID,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTenantResponse(tenant))
}
