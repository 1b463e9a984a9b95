// Package tools is the method and tool registry shared by the MCP and A2A
// endpoints.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
	"github.com/google/jsonschema-go/jsonschema"
	"go.opentelemetry.io/otel/attribute"

	"fitgate/internal/platform/metrics"
	"fitgate/internal/platform/tracer"
	id "fitgate/pkg/domain"
	dErrors "fitgate/pkg/domain-errors"
)

// Handler runs a tool with validated arguments.
type Handler func(ctx context.Context, auth id.AuthContext, args json.RawMessage) (any, error)

// Definition describes a tool at registration time.
type Definition struct {
	Name         string
	Title        string
	Description  string
	InputSchema  *jsonschema.Schema
	OutputSchema *jsonschema.Schema
	// ReadOnly tools stay callable for suspended tenants.
	ReadOnly bool
	// Scope, when set, must be granted to the caller's token.
	Scope string
	// Visible hides the tool for some policies. Nil means always visible.
	Visible func(Policy) bool
	Handler Handler
}

// Tool is the wire form returned by tools/list. Schemas are JCS-canonical
// bytes computed once at registration.
type Tool struct {
	Name         string          `json:"name"`
	Title        string          `json:"title,omitempty"`
	Description  string          `json:"description"`
	InputSchema  json.RawMessage `json:"inputSchema"`
	OutputSchema json.RawMessage `json:"outputSchema,omitempty"`
	Annotations  Annotations     `json:"annotations"`
}

type Annotations struct {
	ReadOnlyHint bool `json:"readOnlyHint"`
}

type entry struct {
	def      Definition
	resolved *jsonschema.Resolved
	tool     Tool
}

func (e *entry) visible(p Policy) bool {
	if p.Disabled(e.def.Name) {
		return false
	}
	return e.def.Visible == nil || e.def.Visible(p)
}

// Registry holds tools sorted by name. Registration normally happens at
// startup; reads are lock-protected so tools may also be added later.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	names   []string
	version atomic.Uint64

	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  *tracer.Tracer
}

type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

func WithTracer(t *tracer.Tracer) Option {
	return func(r *Registry) { r.tracer = t }
}

func New(opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[string]*entry),
		logger:  slog.Default(),
		tracer:  tracer.New("fitgate/tools"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool. Names are unique.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" || def.Handler == nil || def.InputSchema == nil {
		return fmt.Errorf("tool %q: name, input schema and handler are required", def.Name)
	}
	resolved, err := def.InputSchema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("tool %s: resolve input schema: %w", def.Name, err)
	}
	input, err := canonical(def.InputSchema)
	if err != nil {
		return fmt.Errorf("tool %s: input schema: %w", def.Name, err)
	}
	var output json.RawMessage
	if def.OutputSchema != nil {
		if output, err = canonical(def.OutputSchema); err != nil {
			return fmt.Errorf("tool %s: output schema: %w", def.Name, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[def.Name]; exists {
		return fmt.Errorf("tool %s already registered", def.Name)
	}
	r.entries[def.Name] = &entry{
		def:      def,
		resolved: resolved,
		tool: Tool{
			Name:         def.Name,
			Title:        def.Title,
			Description:  def.Description,
			InputSchema:  input,
			OutputSchema: output,
			Annotations:  Annotations{ReadOnlyHint: def.ReadOnly},
		},
	}
	idx, _ := slices.BinarySearch(r.names, def.Name)
	r.names = slices.Insert(r.names, idx, def.Name)
	r.version.Add(1)
	return nil
}

// Version changes whenever the tool set changes. Caches derived from the
// registry key on it.
func (r *Registry) Version() uint64 {
	return r.version.Load()
}

// List returns the tools visible under p, sorted by name. The result depends
// only on the registered definitions and p.
func (r *Registry) List(p Policy) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.names))
	for _, name := range r.names {
		if e := r.entries[name]; e.visible(p) {
			out = append(out, e.tool)
		}
	}
	return out
}

// Call validates and runs a tool. Unknown and hidden tools produce the same
// CodeNotFound error.
func (r *Registry) Call(ctx context.Context, auth id.AuthContext, p Policy, name string, args json.RawMessage) (any, error) {
	ctx, span := r.tracer.Start(ctx, "tools.call", attribute.String("tool.name", name))
	e := r.lookup(name, p)
	label := name
	if e == nil {
		label = "unknown"
	}

	result, err := r.call(ctx, auth, e, name, args)
	span.End(err)
	r.metrics.IncToolCall(label, outcome(err))
	return result, err
}

func (r *Registry) call(ctx context.Context, auth id.AuthContext, e *entry, name string, args json.RawMessage) (any, error) {
	if e == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("tool not found: %s", name))
	}
	if e.def.Scope != "" && !auth.HasScope(e.def.Scope) {
		return nil, dErrors.New(dErrors.CodeForbidden, fmt.Sprintf("tool %s requires scope %s", name, e.def.Scope))
	}
	if !e.def.ReadOnly && auth.TenantSuspended {
		return nil, dErrors.New(dErrors.CodeTenantSuspended, "tenant is suspended")
	}

	raw, err := validateArgs(e.resolved, args)
	if err != nil {
		return nil, err
	}
	return e.def.Handler(ctx, auth, raw)
}

func (r *Registry) lookup(name string, p Policy) *entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok || !e.visible(p) {
		return nil
	}
	return e
}

// validateArgs checks args against the input schema. Missing arguments are
// treated as an empty object.
func validateArgs(resolved *jsonschema.Resolved, args json.RawMessage) (json.RawMessage, error) {
	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage(`{}`)
	}
	var instance any
	if err := json.Unmarshal(args, &instance); err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "arguments are not valid JSON")
	}
	if _, ok := instance.(map[string]any); !ok {
		return nil, dErrors.New(dErrors.CodeValidation, "arguments must be an object")
	}
	if err := resolved.Validate(instance); err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("invalid arguments: %v", err))
	}
	return args, nil
}

func canonical(schema *jsonschema.Schema) (json.RawMessage, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	return jsoncanonicalizer.Transform(raw)
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(dErrors.CodeOf(err))
}
