package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	authModels "fitgate/internal/auth/models"
	dErrors "fitgate/pkg/domain-errors"
	"fitgate/pkg/platform/circuit"
)

const (
	defaultExchangeTimeout = 10 * time.Second
	maxTokenResponseBytes  = 64 << 10
)

// HTTPDoer is the part of http.Client the exchanger needs.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenSet is what a provider returns for an authorization code.
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
}

// HTTPExchanger redeems authorization codes at a provider's token endpoint.
// Calls go through one circuit breaker per provider.
type HTTPExchanger struct {
	client   HTTPDoer
	breakers map[string]*circuit.Breaker
	opts     []circuit.Option
}

type ExchangerOption func(*HTTPExchanger)

func WithHTTPClient(c HTTPDoer) ExchangerOption {
	return func(e *HTTPExchanger) { e.client = c }
}

func WithBreakerOptions(opts ...circuit.Option) ExchangerOption {
	return func(e *HTTPExchanger) { e.opts = opts }
}

func NewHTTPExchanger(providers []string, opts ...ExchangerOption) *HTTPExchanger {
	e := &HTTPExchanger{
		client:   &http.Client{Timeout: defaultExchangeTimeout},
		breakers: make(map[string]*circuit.Breaker, len(providers)),
	}
	for _, opt := range opts {
		opt(e)
	}
	for _, p := range providers {
		e.breakers[p] = circuit.New("provider."+p, e.opts...)
	}
	return e
}

func (e *HTTPExchanger) Exchange(ctx context.Context, app *authModels.OAuthApp, code, verifier string) (*TokenSet, error) {
	breaker, ok := e.breakers[app.Provider]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "provider not supported")
	}
	var tokens *TokenSet
	err := breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		tokens, err = e.post(ctx, app, code, verifier)
		return err
	})
	switch {
	case err == nil:
		return tokens, nil
	case errors.Is(err, circuit.ErrOpen):
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "provider is unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "provider token exchange timed out")
	default:
		return nil, err
	}
}

func (e *HTTPExchanger) post(ctx context.Context, app *authModels.OAuthApp, code, verifier string) (*TokenSet, error) {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {app.RedirectURI},
		"client_id":     {app.ClientID},
		"client_secret": {app.ClientSecret},
		"code_verifier": {verifier},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, app.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build provider request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "provider token endpoint unreachable")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseBytes))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to read provider response")
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, dErrors.New(dErrors.CodeUnavailable, fmt.Sprintf("provider returned status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		// Rejected codes count as breaker failures too.
		return nil, dErrors.New(dErrors.CodeInvalidGrant, fmt.Sprintf("provider rejected the authorization code (status %d)", resp.StatusCode))
	}

	var tokens TokenSet
	if err := json.Unmarshal(body, &tokens); err != nil || tokens.AccessToken == "" {
		return nil, dErrors.New(dErrors.CodeUnavailable, "provider returned an invalid token response")
	}
	return &tokens, nil
}
