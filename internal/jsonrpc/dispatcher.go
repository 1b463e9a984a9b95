package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"fitgate/internal/platform/metrics"
	"fitgate/internal/platform/tracer"
	id "fitgate/pkg/domain"
	dErrors "fitgate/pkg/domain-errors"
	"fitgate/pkg/platform/httputil"
	"fitgate/pkg/requestcontext"
)

const defaultTimeout = 15 * time.Second

// HandlerFunc runs one method. params is nil when the request had none.
type HandlerFunc func(ctx context.Context, auth id.AuthContext, params json.RawMessage) (any, error)

// Method is a dispatch table entry.
type Method struct {
	Handler HandlerFunc
	// ReadOnly methods stay available to suspended tenants.
	ReadOnly bool
}

// Limiter consumes the caller's request budget.
type Limiter interface {
	Check(ctx context.Context, auth id.AuthContext, endpoint string) error
}

type Dispatcher struct {
	endpoint string
	methods  map[string]Method
	timeout  time.Duration
	limiter  Limiter
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   *tracer.Tracer
}

type Option func(*Dispatcher)

func WithTimeout(d time.Duration) Option {
	return func(s *Dispatcher) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithLimiter(l Limiter) Option {
	return func(s *Dispatcher) { s.limiter = l }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Dispatcher) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Dispatcher) { s.metrics = m }
}

func WithTracer(t *tracer.Tracer) Option {
	return func(s *Dispatcher) { s.tracer = t }
}

// New creates a dispatcher for endpoint, which names it in logs, metrics
// and rate limit buckets.
func New(endpoint string, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		endpoint: endpoint,
		methods:  make(map[string]Method),
		timeout:  defaultTimeout,
		logger:   slog.Default(),
		tracer:   tracer.New("fitgate/jsonrpc"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle registers a method. Registering a name twice replaces the entry.
func (d *Dispatcher) Handle(name string, m Method) {
	d.methods[name] = m
}

// ServeHTTP expects the resolved caller on the request context. Protocol
// failures are answered with HTTP 200 and a JSON-RPC error object.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	auth, ok := requestcontext.Auth(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			d.write(w, nullID, nil, NewError(CodeInvalidRequest, "request body too large"))
			return
		}
		d.write(w, nullID, nil, NewError(CodeParseError, "failed to read request body"))
		return
	}

	req, rpcErr := parse(body)
	if rpcErr != nil {
		d.observe(req.Method, rpcErr, 0)
		d.write(w, req.ID, nil, rpcErr)
		return
	}

	start := time.Now()
	result, rpcErr := d.Dispatch(ctx, auth, req)
	d.observe(req.Method, rpcErr, time.Since(start))

	if req.IsNotification() {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	d.write(w, req.ID, result, rpcErr)
}

// parse validates the envelope. On failure the returned request carries the
// id to echo, which is null unless the envelope itself was sound. An empty
// body, malformed JSON and a missing or wrong jsonrpc member are all parse
// errors.
func parse(body []byte) (*Request, *Error) {
	invalid := &Request{ID: nullID}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return invalid, NewError(CodeParseError, "parse error")
	}
	if trimmed[0] == '[' {
		return invalid, NewError(CodeInvalidRequest, "batch requests are not supported")
	}
	if trimmed[0] != '{' {
		return invalid, NewError(CodeInvalidRequest, "request must be a JSON object")
	}

	var env struct {
		JSONRPC json.RawMessage `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Method  json.RawMessage `json:"method"`
		Params  json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return invalid, NewError(CodeParseError, "parse error")
	}
	var version string
	if json.Unmarshal(env.JSONRPC, &version) != nil || version != Version {
		return invalid, NewError(CodeParseError, `parse error: jsonrpc must be "2.0"`)
	}
	if !validID(env.ID) {
		return invalid, NewError(CodeInvalidRequest, "id must be a string, number or null")
	}

	req := &Request{JSONRPC: version, ID: env.ID, Params: env.Params}
	echo := &Request{ID: env.ID}
	if req.IsNotification() {
		echo.ID = nullID
	}
	if json.Unmarshal(env.Method, &req.Method) != nil || req.Method == "" {
		return echo, NewError(CodeInvalidRequest, "method must be a non-empty string")
	}
	if p := bytes.TrimSpace(req.Params); len(p) > 0 {
		switch p[0] {
		case '{', '[':
		case 'n':
			req.Params = nil
		default:
			echo.Method = req.Method
			return echo, NewError(CodeInvalidParams, "params must be an object or array")
		}
	}
	return req, nil
}

// Dispatch runs a parsed request under the dispatch deadline. Panics are
// recovered into an internal error.
func (d *Dispatcher) Dispatch(ctx context.Context, auth id.AuthContext, req *Request) (result any, rpcErr *Error) {
	ctx, span := d.tracer.Start(ctx, "jsonrpc."+d.endpoint,
		attribute.String("rpc.system", "jsonrpc"),
		attribute.String("rpc.method", req.Method),
	)
	defer func() { span.End(errOrNil(rpcErr)) }()

	m, ok := d.methods[req.Method]
	if !ok {
		return nil, NewError(CodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
	if auth.TenantSuspended && !m.ReadOnly {
		return nil, NewError(CodeTenantSuspended, "tenant is suspended")
	}
	if d.limiter != nil {
		if err := d.limiter.Check(ctx, auth, d.endpoint); err != nil {
			return nil, ToError(err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			d.logger.ErrorContext(ctx, "jsonrpc handler panicked",
				"endpoint", d.endpoint,
				"method", req.Method,
				"panic", p,
				"stack", string(debug.Stack()),
				"request_id", requestcontext.RequestID(ctx),
			)
			result, rpcErr = nil, NewError(CodeInternalError, "internal error")
		}
	}()

	result, err := m.Handler(ctx, auth, req.Params)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = dErrors.Wrap(err, dErrors.CodeTimeout, "request timed out")
		}
		rpcErr = ToError(err)
		d.log(ctx, auth, req.Method, err, rpcErr)
		return nil, rpcErr
	}
	return result, nil
}

func (d *Dispatcher) log(ctx context.Context, auth id.AuthContext, method string, err error, rpcErr *Error) {
	attrs := []any{
		"endpoint", d.endpoint,
		"method", method,
		"rpc_code", rpcErr.Code,
		"error", err,
		"tenant_id", auth.TenantID,
		"request_id", requestcontext.RequestID(ctx),
	}
	if rpcErr.Code == CodeInternalError {
		d.logger.ErrorContext(ctx, "jsonrpc method failed", attrs...)
		return
	}
	d.logger.InfoContext(ctx, "jsonrpc method returned error", attrs...)
}

func (d *Dispatcher) write(w http.ResponseWriter, reqID json.RawMessage, result any, rpcErr *Error) {
	if len(reqID) == 0 {
		reqID = nullID
	}
	resp := Response{JSONRPC: Version, ID: reqID}
	if rpcErr != nil {
		resp.Error = rpcErr
	} else {
		resp.Result = result
		if result == nil {
			resp.Result = struct{}{}
		}
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// observe labels unknown methods as "unknown" to keep label cardinality
// bounded.
func (d *Dispatcher) observe(method string, rpcErr *Error, elapsed time.Duration) {
	if _, ok := d.methods[method]; !ok {
		method = "unknown"
	}
	outcome := "ok"
	if rpcErr != nil {
		outcome = strconv.Itoa(rpcErr.Code)
	}
	d.metrics.ObserveRPC(d.endpoint, method, outcome, elapsed.Seconds())
}

func errOrNil(e *Error) error {
	if e == nil {
		return nil
	}
	return e
}
