package provider

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	fitnessModels "fitgate/internal/fitness/models"
	id "fitgate/pkg/domain"
	dErrors "fitgate/pkg/domain-errors"
	"fitgate/pkg/platform/httputil"
	"fitgate/pkg/requestcontext"
)

type Connector interface {
	Connect(ctx context.Context, auth id.AuthContext, provider string) (*ConnectResult, error)
	Callback(ctx context.Context, auth id.AuthContext, req *CallbackRequest) (*fitnessModels.Connection, error)
}

type Handler struct {
	service Connector
	logger  *slog.Logger
}

func NewHandler(service Connector, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the connect endpoints. Both need a signed-in user; the
// callback arrives as a browser redirect carrying the session cookie.
func (h *Handler) Register(r chi.Router) {
	r.Post("/providers/{provider}/connect", h.HandleConnect)
	r.Get("/providers/{provider}/callback", h.HandleCallback)
}

func (h *Handler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	auth, ok := requestcontext.Auth(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	provider := chi.URLParam(r, "provider")
	res, err := h.service.Connect(ctx, auth, provider)
	if err != nil {
		h.logger.WarnContext(ctx, "provider connect failed",
			"error", err,
			"provider", provider,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	auth, ok := requestcontext.Auth(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	q := r.URL.Query()
	req := &CallbackRequest{
		Provider:         chi.URLParam(r, "provider"),
		State:            q.Get("state"),
		Code:             q.Get("code"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	}
	conn, err := h.service.Callback(ctx, auth, req)
	if err != nil {
		h.logger.WarnContext(ctx, "provider callback failed",
			"error", err,
			"provider", req.Provider,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, conn)
}
