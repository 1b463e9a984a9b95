package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"fitgate/internal/auth/models"
	id "fitgate/pkg/domain"
	dErrors "fitgate/pkg/domain-errors"
	"fitgate/pkg/platform/httputil"
	authmw "fitgate/pkg/platform/middleware/auth"
	"fitgate/pkg/requestcontext"
)

// Service defines the authorization server operations.
type Service interface {
	Authorize(ctx context.Context, auth id.AuthContext, req *models.AuthorizeRequest) (*models.AuthorizationResult, error)
	Token(ctx context.Context, req *models.TokenRequest) (*models.TokenResult, error)
	Revoke(ctx context.Context, req *models.RevokeRequest) error
	Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResult, error)
	Metadata() *models.ServerMetadata
}

// Handler serves the OAuth2 endpoints.
type Handler struct {
	auth         Service
	logger       *slog.Logger
	secureCookie bool
}

func New(auth Service, logger *slog.Logger, secureCookie bool) *Handler {
	return &Handler{auth: auth, logger: logger, secureCookie: secureCookie}
}

// Register mounts the unauthenticated endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Post("/oauth2/token", h.HandleToken)
	r.Post("/oauth2/revoke", h.HandleRevoke)
	r.Post("/oauth2/login", h.HandleLogin)
	r.Get("/.well-known/oauth-authorization-server", h.HandleMetadata)
}

// RegisterAuthenticated mounts endpoints that need a resolved user. The
// caller wraps r with the auth middleware.
func (h *Handler) RegisterAuthenticated(r chi.Router) {
	r.Get("/oauth2/authorize", h.HandleAuthorize)
	r.Post("/oauth2/authorize", h.HandleAuthorize)
}

// HandleAuthorize creates an authorization request for the signed-in user.
// GET answers with a 302 to the client's redirect URI; POST answers with
// the same URL in JSON. Errors are never redirected: the redirect URI is
// only trusted after it has been matched against the client allowlist.
func (h *Handler) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	auth, ok := requestcontext.Auth(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	var req models.AuthorizeRequest
	if r.Method == http.MethodGet {
		q := r.URL.Query()
		req = models.AuthorizeRequest{
			ClientID:            q.Get("client_id"),
			RedirectURI:         q.Get("redirect_uri"),
			ResponseType:        q.Get("response_type"),
			Scope:               q.Get("scope"),
			CodeChallenge:       q.Get("code_challenge"),
			CodeChallengeMethod: q.Get("code_challenge_method"),
		}
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode authorize request",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON in request body"))
		return
	}

	res, err := h.auth.Authorize(ctx, auth, &req)
	if err != nil {
		h.logger.WarnContext(ctx, "authorize failed",
			"error", err,
			"request_id", requestID,
			"client_id", req.ClientID,
		)
		httputil.WriteError(w, err)
		return
	}

	if r.Method == http.MethodGet {
		w.Header().Set("Cache-Control", "no-store")
		http.Redirect(w, r, res.AuthorizationURL, http.StatusFound)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleToken accepts form-encoded (RFC 6749) or JSON bodies. Client
// credentials may also arrive as HTTP Basic.
func (h *Handler) HandleToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, err := decodeTokenRequest(r)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to decode token request",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}

	res, err := h.auth.Token(ctx, req)
	if err != nil {
		h.logger.WarnContext(ctx, "token request failed",
			"error", err,
			"request_id", requestID,
			"client_id", req.ClientID,
			"grant_type", req.GrantType,
		)
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("Pragma", "no-cache")
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleRevoke implements RFC 7009. Success is reported for unknown or
// already revoked tokens.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	fields, err := decodeFields(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req := &models.RevokeRequest{
		Token:         fields["token"],
		TokenTypeHint: fields["token_type_hint"],
		ClientID:      fields["client_id"],
		ClientSecret:  fields["client_secret"],
	}
	applyBasicAuth(r, &req.ClientID, &req.ClientSecret)

	if err := h.auth.Revoke(ctx, req); err != nil {
		h.logger.WarnContext(ctx, "revoke failed",
			"error", err,
			"request_id", requestID,
			"client_id", req.ClientID,
		)
		httputil.WriteError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
}

// HandleLogin starts a browser session. The access token goes into an
// HttpOnly cookie; the CSRF token goes into a readable cookie that scripts
// echo back in X-CSRF-Token.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeJSON[models.LoginRequest](w, r, h.logger)
	if !ok {
		return
	}
	res, err := h.auth.Login(ctx, req)
	if err != nil {
		h.logger.WarnContext(ctx, "login failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
			"tenant", req.Tenant,
		)
		httputil.WriteError(w, err)
		return
	}

	secure := h.secureCookie || isHTTPS(r)
	http.SetCookie(w, &http.Cookie{
		Name:     authmw.SessionCookieName,
		Value:    res.AccessToken,
		Path:     "/",
		MaxAge:   res.ExpiresIn,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     authmw.CSRFCookieName,
		Value:    res.CSRFToken,
		Path:     "/",
		MaxAge:   res.ExpiresIn,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) HandleMetadata(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.auth.Metadata())
}

func decodeTokenRequest(r *http.Request) (*models.TokenRequest, error) {
	fields, err := decodeFields(r)
	if err != nil {
		return nil, err
	}
	req := &models.TokenRequest{
		GrantType:    fields["grant_type"],
		ClientID:     fields["client_id"],
		ClientSecret: fields["client_secret"],
		State:        fields["state"],
		Code:         fields["code"],
		CodeVerifier: fields["code_verifier"],
		RedirectURI:  fields["redirect_uri"],
		RefreshToken: fields["refresh_token"],
		Scope:        fields["scope"],
	}
	applyBasicAuth(r, &req.ClientID, &req.ClientSecret)
	return req, nil
}

// decodeFields reads a flat string object from a form or JSON body.
func decodeFields(r *http.Request) (map[string]string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		fields := map[string]string{}
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			return nil, dErrors.New(dErrors.CodeInvalidRequest, "invalid JSON in request body")
		}
		return fields, nil
	}
	if err := r.ParseForm(); err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "invalid form body")
	}
	fields := make(map[string]string, len(r.PostForm))
	for key := range r.PostForm {
		fields[key] = r.PostForm.Get(key)
	}
	return fields, nil
}

// applyBasicAuth lets HTTP Basic credentials fill in or replace body ones.
func applyBasicAuth(r *http.Request, clientID, secret *string) {
	if user, pass, ok := r.BasicAuth(); ok {
		*clientID = user
		*secret = pass
	}
}

func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
