package auth

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	id "fitgate/pkg/domain"
	dErrors "fitgate/pkg/domain-errors"
	"fitgate/pkg/requestcontext"
)

type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(ctx context.Context, cred Credential) (id.AuthContext, error) {
	args := m.Called(ctx, cred)
	return args.Get(0).(id.AuthContext), args.Error(1)
}

// mockHandler records whether it ran and the context it saw.
type mockHandler struct {
	called  bool
	context context.Context
}

func (m *mockHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.called = true
	m.context = r.Context()
	w.WriteHeader(http.StatusOK)
}

type AuthMiddlewareTestSuite struct {
	suite.Suite
	resolver *MockResolver
	logger   *slog.Logger
	next     *mockHandler
}

func TestAuthMiddlewareTestSuite(t *testing.T) {
	suite.Run(t, new(AuthMiddlewareTestSuite))
}

func (s *AuthMiddlewareTestSuite) SetupTest() {
	s.resolver = new(MockResolver)
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s.next = &mockHandler{}
}

func (s *AuthMiddlewareTestSuite) serve(r *http.Request, opts ...Option) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	RequireAuth(s.resolver, s.logger, opts...)(s.next).ServeHTTP(w, r)
	return w
}

func (s *AuthMiddlewareTestSuite) TestMissingCredential() {
	w := s.serve(httptest.NewRequest(http.MethodGet, "/a2a/agent-card", nil))

	s.Equal(http.StatusUnauthorized, w.Code)
	s.Contains(w.Header().Get("WWW-Authenticate"), "Bearer")
	s.Contains(w.Body.String(), `"error":"invalid_token"`)
	s.False(s.next.called)
	s.resolver.AssertNotCalled(s.T(), "Resolve", mock.Anything, mock.Anything)
}

func (s *AuthMiddlewareTestSuite) TestBearerTokenResolved() {
	auth := id.AuthContext{
		TenantID:      id.TenantID(uuid.New()),
		PrincipalID:   uuid.NewString(),
		PrincipalKind: id.PrincipalClient,
		Scopes:        []string{id.ScopeFitnessRead},
	}
	s.resolver.On("Resolve", mock.Anything, mock.MatchedBy(func(c Credential) bool {
		return c.Bearer == "tok" && !c.IsSession() && c.StateChanging && c.EnforceSuspension
	})).Return(auth, nil)

	r := httptest.NewRequest(http.MethodPost, "/oauth2/register", nil)
	r.Header.Set("Authorization", "Bearer tok")
	w := s.serve(r)

	s.Equal(http.StatusOK, w.Code)
	s.Require().True(s.next.called)
	got, ok := requestcontext.Auth(s.next.context)
	s.True(ok)
	s.Equal(auth.TenantID, got.TenantID)
}

func (s *AuthMiddlewareTestSuite) TestSessionCookieCarriesCSRFPair() {
	s.resolver.On("Resolve", mock.Anything, mock.MatchedBy(func(c Credential) bool {
		return c.IsSession() && c.Session == "sess" && c.CSRFCookie == "c1" && c.CSRFHeader == "c1"
	})).Return(id.AuthContext{TenantID: id.TenantID(uuid.New())}, nil)

	r := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "sess"})
	r.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: "c1"})
	r.Header.Set(CSRFHeaderName, "c1")
	w := s.serve(r, DeferSuspension())

	s.Equal(http.StatusOK, w.Code)
	s.resolver.AssertExpectations(s.T())
}

func (s *AuthMiddlewareTestSuite) TestDeferSuspensionLeavesDecisionToEndpoint() {
	s.resolver.On("Resolve", mock.Anything, mock.MatchedBy(func(c Credential) bool {
		return c.StateChanging && !c.EnforceSuspension
	})).Return(id.AuthContext{TenantID: id.TenantID(uuid.New()), TenantSuspended: true}, nil)

	r := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	r.Header.Set("Authorization", "Bearer tok")
	w := s.serve(r, DeferSuspension())

	s.Equal(http.StatusOK, w.Code)
	got, _ := requestcontext.Auth(s.next.context)
	s.True(got.TenantSuspended)
}

func (s *AuthMiddlewareTestSuite) TestResolverErrors() {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"expired", dErrors.New(dErrors.CodeTokenExpired, "token expired"), http.StatusUnauthorized, "token_expired"},
		{"revoked", dErrors.New(dErrors.CodeTokenRevoked, "token revoked"), http.StatusUnauthorized, "token_revoked"},
		{"invalid", dErrors.New(dErrors.CodeUnauthorized, "invalid token"), http.StatusUnauthorized, "invalid_token"},
		{"suspended", dErrors.New(dErrors.CodeTenantSuspended, "tenant suspended"), http.StatusForbidden, "tenant_suspended"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.SetupTest()
			s.resolver.On("Resolve", mock.Anything, mock.Anything).Return(id.AuthContext{}, tc.err)

			r := httptest.NewRequest(http.MethodGet, "/a2a/agent-card", nil)
			r.Header.Set("Authorization", "Bearer tok")
			w := s.serve(r)

			s.Equal(tc.status, w.Code)
			s.Contains(w.Body.String(), `"error":"`+tc.code+`"`)
			s.NotEmpty(w.Header().Get("WWW-Authenticate"))
			s.False(s.next.called)
		})
	}
}

func (s *AuthMiddlewareTestSuite) TestSafeMethodIsNotStateChanging() {
	r := httptest.NewRequest(http.MethodGet, "/a2a/agent-card", nil)
	r.Header.Set("Authorization", "Bearer tok")
	cred := CredentialFromRequest(r)
	s.False(cred.StateChanging)
	s.Equal("tok", cred.Token())
}
