package jsonrpc

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"fitgate/internal/platform/metrics"
	id "fitgate/pkg/domain"
	dErrors "fitgate/pkg/domain-errors"
	"fitgate/pkg/requestcontext"
)

type retryErr struct{ error }

func (retryErr) RetryAfterSeconds() int { return 7 }

func (e retryErr) Unwrap() error { return e.error }

type stubLimiter struct{ err error }

func (l stubLimiter) Check(context.Context, id.AuthContext, string) error { return l.err }

type echoParams struct {
	Text string `json:"text" validate:"required"`
}

type DispatcherSuite struct {
	suite.Suite
	dispatcher *Dispatcher
	metrics    *metrics.Metrics
	auth       id.AuthContext
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherSuite))
}

func (s *DispatcherSuite) SetupTest() {
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.auth = id.AuthContext{TenantID: id.TenantID(uuid.New()), PrincipalID: uuid.NewString(), PrincipalKind: id.PrincipalClient}
	s.dispatcher = New("mcp",
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithTimeout(50*time.Millisecond),
	)
	s.dispatcher.Handle("echo", Method{ReadOnly: true, Handler: func(_ context.Context, _ id.AuthContext, params json.RawMessage) (any, error) {
		p, err := DecodeParams[echoParams](params)
		if err != nil {
			return nil, err
		}
		return map[string]string{"text": p.Text}, nil
	}})
	s.dispatcher.Handle("write", Method{Handler: func(context.Context, id.AuthContext, json.RawMessage) (any, error) {
		return map[string]bool{"ok": true}, nil
	}})
	s.dispatcher.Handle("fail", Method{ReadOnly: true, Handler: func(_ context.Context, _ id.AuthContext, params json.RawMessage) (any, error) {
		var p struct{ Code string }
		_ = json.Unmarshal(params, &p)
		return nil, dErrors.New(dErrors.Code(p.Code), "secret detail")
	}})
	s.dispatcher.Handle("panic", Method{ReadOnly: true, Handler: func(context.Context, id.AuthContext, json.RawMessage) (any, error) {
		panic("boom")
	}})
	s.dispatcher.Handle("slow", Method{ReadOnly: true, Handler: func(ctx context.Context, _ id.AuthContext, _ json.RawMessage) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}})
}

type reply struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *Error          `json:"error"`
}

func (s *DispatcherSuite) post(body string) (*httptest.ResponseRecorder, reply) {
	r := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	r = r.WithContext(requestcontext.WithAuth(r.Context(), s.auth))
	w := httptest.NewRecorder()
	s.dispatcher.ServeHTTP(w, r)
	var rep reply
	if w.Body.Len() > 0 {
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &rep))
	}
	return w, rep
}

func (s *DispatcherSuite) TestSuccessEchoesID() {
	w, rep := s.post(`{"jsonrpc":"2.0","id":"abc","method":"echo","params":{"text":"hi"}}`)
	s.Equal(http.StatusOK, w.Code)
	s.Equal("2.0", rep.JSONRPC)
	s.JSONEq(`"abc"`, string(rep.ID))
	s.JSONEq(`{"text":"hi"}`, string(rep.Result))
	s.Nil(rep.Error)
}

func (s *DispatcherSuite) TestEnvelopeErrors() {
	cases := []struct {
		name string
		body string
		code int
		id   string
	}{
		{"batch", `[{"jsonrpc":"2.0","id":1,"method":"echo"}]`, CodeInvalidRequest, "null"},
		{"parse", `{"jsonrpc":"2.0",`, CodeParseError, "null"},
		{"empty body", ``, CodeParseError, "null"},
		{"blank body", "  \n", CodeParseError, "null"},
		{"missing version", `{"id":1,"method":"echo"}`, CodeParseError, "null"},
		{"wrong version", `{"jsonrpc":"1.0","id":1,"method":"echo"}`, CodeParseError, "null"},
		{"numeric version", `{"jsonrpc":2.0,"id":1,"method":"echo"}`, CodeParseError, "null"},
		{"scalar body", `42`, CodeInvalidRequest, "null"},
		{"object id", `{"jsonrpc":"2.0","id":{},"method":"echo"}`, CodeInvalidRequest, "null"},
		{"missing method", `{"jsonrpc":"2.0","id":3}`, CodeInvalidRequest, "3"},
		{"unknown method", `{"jsonrpc":"2.0","id":4,"method":"nope"}`, CodeMethodNotFound, "4"},
		{"scalar params", `{"jsonrpc":"2.0","id":5,"method":"echo","params":7}`, CodeInvalidParams, "5"},
		{"invalid params", `{"jsonrpc":"2.0","id":6,"method":"echo","params":{}}`, CodeInvalidParams, "6"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			w, rep := s.post(tc.body)
			s.Equal(http.StatusOK, w.Code)
			s.Require().NotNil(rep.Error)
			s.Equal(tc.code, rep.Error.Code)
			s.JSONEq(tc.id, string(rep.ID))
		})
	}
}

func (s *DispatcherSuite) TestNotificationGetsNoBody() {
	w, _ := s.post(`{"jsonrpc":"2.0","method":"echo","params":{"text":"x"}}`)
	s.Equal(http.StatusAccepted, w.Code)
	s.Zero(w.Body.Len())
}

func (s *DispatcherSuite) TestDomainErrorMapping() {
	cases := []struct {
		code    dErrors.Code
		rpc     int
		message string
	}{
		{dErrors.CodeNotFound, CodeNotFound, "secret detail"},
		{dErrors.CodeValidation, CodeInvalidParams, "secret detail"},
		{dErrors.CodeTenantSuspended, CodeTenantSuspended, "tenant is suspended"},
		{dErrors.CodeTimeout, CodeTimeout, "request timed out"},
		{dErrors.CodeForbidden, CodeForbidden, "secret detail"},
		{dErrors.CodeInvariantViolation, CodeInternalError, "internal error"},
		{dErrors.CodeInternal, CodeInternalError, "internal error"},
	}
	for _, tc := range cases {
		s.Run(string(tc.code), func() {
			_, rep := s.post(`{"jsonrpc":"2.0","id":1,"method":"fail","params":{"Code":"` + string(tc.code) + `"}}`)
			s.Require().NotNil(rep.Error)
			s.Equal(tc.rpc, rep.Error.Code)
			s.Equal(tc.message, rep.Error.Message)
		})
	}
}

func (s *DispatcherSuite) TestRateLimitCarriesRetryHint() {
	s.dispatcher.limiter = stubLimiter{err: retryErr{dErrors.New(dErrors.CodeRateLimited, "slow down")}}

	_, rep := s.post(`{"jsonrpc":"2.0","id":1,"method":"echo","params":{"text":"x"}}`)
	s.Require().NotNil(rep.Error)
	s.Equal(CodeRateLimited, rep.Error.Code)
	s.Equal(map[string]any{"retry_after_seconds": float64(7)}, rep.Error.Data)
}

func (s *DispatcherSuite) TestSuspendedTenantKeepsReadOnlyMethods() {
	s.auth.TenantSuspended = true

	_, rep := s.post(`{"jsonrpc":"2.0","id":1,"method":"write"}`)
	s.Require().NotNil(rep.Error)
	s.Equal(CodeTenantSuspended, rep.Error.Code)

	_, rep = s.post(`{"jsonrpc":"2.0","id":2,"method":"echo","params":{"text":"x"}}`)
	s.Nil(rep.Error)
}

func (s *DispatcherSuite) TestPanicIsRecovered() {
	w, rep := s.post(`{"jsonrpc":"2.0","id":1,"method":"panic"}`)
	s.Equal(http.StatusOK, w.Code)
	s.Require().NotNil(rep.Error)
	s.Equal(CodeInternalError, rep.Error.Code)
	s.Equal("internal error", rep.Error.Message)
}

func (s *DispatcherSuite) TestDeadline() {
	_, rep := s.post(`{"jsonrpc":"2.0","id":1,"method":"slow"}`)
	s.Require().NotNil(rep.Error)
	s.Equal(CodeTimeout, rep.Error.Code)
}

func (s *DispatcherSuite) TestMetricsBoundMethodLabels() {
	s.post(`{"jsonrpc":"2.0","id":1,"method":"made-up-1"}`)
	s.post(`{"jsonrpc":"2.0","id":2,"method":"made-up-2"}`)
	s.post(`{"jsonrpc":"2.0","id":3,"method":"echo","params":{"text":"x"}}`)

	s.Equal(2, testutil.CollectAndCount(s.metrics.RPCLatency))
}

func (s *DispatcherSuite) TestMissingAuthIsRejected() {
	r := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	s.dispatcher.ServeHTTP(w, r)
	s.Equal(http.StatusUnauthorized, w.Code)
}
