package agentcard

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	id "fitgate/pkg/domain"
	dErrors "fitgate/pkg/domain-errors"
	"fitgate/pkg/platform/httputil"
	"fitgate/pkg/requestcontext"
)

type Cards interface {
	Global(ctx context.Context) (*Snapshot, error)
	ForTenant(ctx context.Context, tenantID id.TenantID) (*Snapshot, error)
}

type Handler struct {
	cards  Cards
	logger *slog.Logger
}

func NewHandler(cards Cards, logger *slog.Logger) *Handler {
	return &Handler{cards: cards, logger: logger}
}

// Register mounts the public discovery document.
func (h *Handler) Register(r chi.Router) {
	r.Get("/.well-known/agent.json", h.HandlePublic)
}

// RegisterAuthenticated mounts the tenant card. The caller wraps r with
// the auth middleware.
func (h *Handler) RegisterAuthenticated(r chi.Router) {
	r.Get("/a2a/agent-card", h.HandleTenant)
}

func (h *Handler) HandlePublic(w http.ResponseWriter, r *http.Request) {
	snap, err := h.cards.Global(r.Context())
	h.write(w, r, snap, err, "public, max-age=300")
}

func (h *Handler) HandleTenant(w http.ResponseWriter, r *http.Request) {
	auth, ok := requestcontext.Auth(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	snap, err := h.cards.ForTenant(r.Context(), auth.TenantID)
	h.write(w, r, snap, err, "private, max-age=60")
}

func (h *Handler) write(w http.ResponseWriter, r *http.Request, snap *Snapshot, err error, cacheControl string) {
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to build agent card",
			"error", err,
			"request_id", requestcontext.RequestID(r.Context()),
		)
		httputil.WriteError(w, err)
		return
	}
	w.Header().Set("ETag", snap.ETag)
	w.Header().Set("Cache-Control", cacheControl)
	if etagMatches(r.Header.Get("If-None-Match"), snap.ETag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(snap.Body)
}

func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
