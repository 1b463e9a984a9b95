package handler

//go:generate mockgen -source=handler.go -destination=mocks/auth-mocks.go -package=mocks Service

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"fitgate/internal/auth/handler/mocks"
	"fitgate/internal/auth/models"
	id "fitgate/pkg/domain"
	dErrors "fitgate/pkg/domain-errors"
	authmw "fitgate/pkg/platform/middleware/auth"
	"fitgate/pkg/requestcontext"
)

type AuthHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
	auth    id.AuthContext
}

func TestAuthHandlerSuite(t *testing.T) {
	suite.Run(t, new(AuthHandlerSuite))
}

func (s *AuthHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.auth = id.AuthContext{
		TenantID:      id.TenantID(uuid.New()),
		PrincipalID:   uuid.NewString(),
		PrincipalKind: id.PrincipalUser,
		Role:          id.RoleMember,
	}

	h := New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)), false)
	r := chi.NewRouter()
	h.Register(r)
	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				if req.Header.Get("X-Test-Anonymous") == "" {
					req = req.WithContext(requestcontext.WithAuth(req.Context(), s.auth))
				}
				next.ServeHTTP(w, req)
			})
		})
		h.RegisterAuthenticated(r)
	})
	s.router = r
}

func (s *AuthHandlerSuite) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeBody(w *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return body
}

func (s *AuthHandlerSuite) TestTokenFormWithBasicAuth() {
	s.service.EXPECT().Token(gomock.Any(), &models.TokenRequest{
		GrantType:    "client_credentials",
		ClientID:     "agent-cid",
		ClientSecret: "s3cret",
		Scope:        "fitness:read",
	}).Return(&models.TokenResult{AccessToken: "at", TokenType: "Bearer", ExpiresIn: 3600, Scope: "fitness:read"}, nil)

	form := url.Values{"grant_type": {"client_credentials"}, "scope": {"fitness:read"}}
	req := httptest.NewRequest(http.MethodPost, "/oauth2/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("agent-cid", "s3cret")
	w := s.do(req)

	s.Equal(http.StatusOK, w.Code)
	s.Equal("no-store", w.Header().Get("Cache-Control"))
	body := decodeBody(w)
	s.Equal("at", body["access_token"])
	s.NotContains(body, "refresh_token")
}

func (s *AuthHandlerSuite) TestTokenJSONBody() {
	s.service.EXPECT().Token(gomock.Any(), &models.TokenRequest{
		GrantType:    "authorization_code",
		ClientID:     "assistant",
		State:        "st",
		Code:         "cd",
		CodeVerifier: "cv",
		RedirectURI:  "http://localhost/cb",
	}).Return(&models.TokenResult{AccessToken: "at", TokenType: "Bearer", RefreshToken: "rt"}, nil)

	body := `{"grant_type":"authorization_code","client_id":"assistant","state":"st","code":"cd","code_verifier":"cv","redirect_uri":"http://localhost/cb"}`
	req := httptest.NewRequest(http.MethodPost, "/oauth2/token", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	w := s.do(req)

	s.Equal(http.StatusOK, w.Code)
	s.Equal("rt", decodeBody(w)["refresh_token"])
}

func (s *AuthHandlerSuite) TestTokenErrors() {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"state mismatch", dErrors.New(dErrors.CodeStateMismatch, "unknown state"), http.StatusBadRequest, "invalid_grant"},
		{"proof invalid", dErrors.New(dErrors.CodeProofInvalid, "bad verifier"), http.StatusBadRequest, "invalid_grant"},
		{"bad client", dErrors.New(dErrors.CodeInvalidClient, "client authentication failed"), http.StatusUnauthorized, "invalid_client"},
		{"suspended", dErrors.New(dErrors.CodeTenantSuspended, "tenant is suspended"), http.StatusForbidden, "tenant_suspended"},
		{"unsupported", dErrors.New(dErrors.CodeUnsupportedGrantType, "unsupported"), http.StatusBadRequest, "unsupported_grant_type"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.service.EXPECT().Token(gomock.Any(), gomock.Any()).Return(nil, tc.err)
			req := httptest.NewRequest(http.MethodPost, "/oauth2/token", strings.NewReader("grant_type=authorization_code"))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			w := s.do(req)

			s.Equal(tc.status, w.Code)
			s.Equal(tc.code, decodeBody(w)["error"])
		})
	}
}

func (s *AuthHandlerSuite) TestTokenMalformedJSON() {
	req := httptest.NewRequest(http.MethodPost, "/oauth2/token", strings.NewReader(`{"grant_type":`))
	req.Header.Set("Content-Type", "application/json")
	w := s.do(req)

	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("invalid_request", decodeBody(w)["error"])
}

func (s *AuthHandlerSuite) TestAuthorizeGetRedirects() {
	location := "http://localhost:3000/cb?code=c&state=st"
	s.service.EXPECT().Authorize(gomock.Any(), s.auth, &models.AuthorizeRequest{
		ClientID:            "assistant",
		RedirectURI:         "http://localhost:3000/cb",
		ResponseType:        "code",
		Scope:               "fitness:read",
		CodeChallenge:       "challenge",
		CodeChallengeMethod: "S256",
	}).Return(&models.AuthorizationResult{AuthorizationURL: location, State: "st", ExpiresIn: 600}, nil)

	q := url.Values{
		"client_id":             {"assistant"},
		"redirect_uri":          {"http://localhost:3000/cb"},
		"response_type":         {"code"},
		"scope":                 {"fitness:read"},
		"code_challenge":        {"challenge"},
		"code_challenge_method": {"S256"},
	}
	w := s.do(httptest.NewRequest(http.MethodGet, "/oauth2/authorize?"+q.Encode(), nil))

	s.Equal(http.StatusFound, w.Code)
	s.Equal(location, w.Header().Get("Location"))
}

func (s *AuthHandlerSuite) TestAuthorizePostReturnsJSON() {
	s.service.EXPECT().Authorize(gomock.Any(), s.auth, gomock.Any()).
		Return(&models.AuthorizationResult{AuthorizationURL: "http://localhost/cb?code=c&state=st", State: "st", ExpiresIn: 600}, nil)

	w := s.do(httptest.NewRequest(http.MethodPost, "/oauth2/authorize", strings.NewReader(`{"client_id":"assistant"}`)))

	s.Equal(http.StatusOK, w.Code)
	s.Equal("st", decodeBody(w)["state"])
}

func (s *AuthHandlerSuite) TestAuthorizeErrorIsNotRedirected() {
	s.service.EXPECT().Authorize(gomock.Any(), s.auth, gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeInvalidRequest, "redirect_uri not registered for client"))

	w := s.do(httptest.NewRequest(http.MethodGet, "/oauth2/authorize?client_id=assistant&redirect_uri=https://evil.example/cb", nil))

	s.Equal(http.StatusBadRequest, w.Code)
	s.Empty(w.Header().Get("Location"))
}

func (s *AuthHandlerSuite) TestAuthorizeRequiresAuth() {
	req := httptest.NewRequest(http.MethodGet, "/oauth2/authorize", nil)
	req.Header.Set("X-Test-Anonymous", "1")
	w := s.do(req)

	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *AuthHandlerSuite) TestLoginSetsSessionCookies() {
	s.service.EXPECT().Login(gomock.Any(), gomock.Any()).
		Return(&models.LoginResult{AccessToken: "session-jwt", TokenType: "Bearer", ExpiresIn: 3600, CSRFToken: "csrf"}, nil)

	body := `{"tenant":"harbour","email":"ana@example.com","password":"pw"}`
	w := s.do(httptest.NewRequest(http.MethodPost, "/oauth2/login", strings.NewReader(body)))

	s.Require().Equal(http.StatusOK, w.Code)
	cookies := map[string]*http.Cookie{}
	for _, c := range w.Result().Cookies() {
		cookies[c.Name] = c
	}
	s.Require().Contains(cookies, authmw.SessionCookieName)
	s.Require().Contains(cookies, authmw.CSRFCookieName)
	s.Equal("session-jwt", cookies[authmw.SessionCookieName].Value)
	s.True(cookies[authmw.SessionCookieName].HttpOnly)
	s.False(cookies[authmw.CSRFCookieName].HttpOnly)
}

func (s *AuthHandlerSuite) TestLoginRejectsInvalidBody() {
	w := s.do(httptest.NewRequest(http.MethodPost, "/oauth2/login", strings.NewReader(`{"tenant":"harbour"}`)))
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *AuthHandlerSuite) TestRevoke() {
	s.service.EXPECT().Revoke(gomock.Any(), &models.RevokeRequest{
		Token: "tok", TokenTypeHint: "refresh_token", ClientID: "assistant",
	}).Return(nil)

	form := url.Values{"token": {"tok"}, "token_type_hint": {"refresh_token"}, "client_id": {"assistant"}}
	req := httptest.NewRequest(http.MethodPost, "/oauth2/revoke", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := s.do(req)

	s.Equal(http.StatusOK, w.Code)
	s.Empty(w.Body.String())
}

func (s *AuthHandlerSuite) TestMetadata() {
	s.service.EXPECT().Metadata().Return(&models.ServerMetadata{Issuer: "https://fitgate.test"})

	w := s.do(httptest.NewRequest(http.MethodGet, "/.well-known/oauth-authorization-server", nil))

	s.Equal(http.StatusOK, w.Code)
	s.Equal("https://fitgate.test", decodeBody(w)["issuer"])
}
