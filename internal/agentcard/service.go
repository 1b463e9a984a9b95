// Package agentcard builds the capability descriptor advertised to agents.
// Cards are cached per policy and rebuilt when the tool registry or the
// tenant configuration changes.
package agentcard

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
	"github.com/zeebo/blake3"
	"golang.org/x/sync/errgroup"

	"fitgate/internal/a2a"
	"fitgate/internal/policy"
	tenantModels "fitgate/internal/tenant/models"
	"fitgate/internal/tools"
	id "fitgate/pkg/domain"
	dErrors "fitgate/pkg/domain-errors"
)

const warmConcurrency = 4

type Registry interface {
	List(p tools.Policy) []tools.Tool
	Version() uint64
}

type Tenants interface {
	GetTenant(ctx context.Context, tenantID id.TenantID) (*tenantModels.Tenant, error)
	ListTenants(ctx context.Context) ([]*tenantModels.Tenant, error)
}

type Limits interface {
	LimitFor(ctx context.Context, tenantID id.TenantID) int
	Window() time.Duration
}

// Info is the static part of the card.
type Info struct {
	Name        string
	Description string
	Version     string
	BaseURL     string
}

type Card struct {
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	Version         string         `json:"version"`
	URL             string         `json:"url"`
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    []string       `json:"capabilities"`
	Authentication  Authentication `json:"authentication"`
	Tools           []tools.Tool   `json:"tools"`
	RateLimit       *RateLimit     `json:"rateLimit,omitempty"`
}

type Authentication struct {
	Schemes []string `json:"schemes"`
	OAuth2  OAuth2   `json:"oauth2"`
}

type OAuth2 struct {
	AuthorizationURL string   `json:"authorizationUrl"`
	TokenURL         string   `json:"tokenUrl"`
	GrantTypes       []string `json:"grantTypes"`
	Scopes           []string `json:"scopes"`
}

type RateLimit struct {
	Requests      int `json:"requests"`
	WindowSeconds int `json:"windowSeconds"`
}

// Snapshot is a rendered card. Body holds canonical JSON, so equal cards
// have equal bytes and equal ETags.
type Snapshot struct {
	Body []byte
	ETag string
}

type cacheKey struct {
	tenant          id.TenantID
	registryVersion uint64
	configVersion   uint64
}

type Service struct {
	registry Registry
	tenants  Tenants
	limits   Limits
	info     Info
	logger   *slog.Logger

	mu    sync.RWMutex
	cache map[cacheKey]*Snapshot
}

func New(registry Registry, tenants Tenants, limits Limits, info Info, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry: registry,
		tenants:  tenants,
		limits:   limits,
		info:     info,
		logger:   logger,
		cache:    make(map[cacheKey]*Snapshot),
	}
}

// Global returns the card every anonymous caller sees: no tools disabled
// and the global rate limit.
func (s *Service) Global(ctx context.Context) (*Snapshot, error) {
	return s.Card(ctx, nil)
}

// ForTenant returns the card under the tenant's policy.
func (s *Service) ForTenant(ctx context.Context, tenantID id.TenantID) (*Snapshot, error) {
	tenant, err := s.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return s.Card(ctx, tenant)
}

// Card returns the cached snapshot for tenant, or for the global policy
// when tenant is nil.
func (s *Service) Card(ctx context.Context, tenant *tenantModels.Tenant) (*Snapshot, error) {
	key := cacheKey{registryVersion: s.registry.Version()}
	p := tools.Policy{Protocol: tools.ProtocolA2A}
	if tenant != nil {
		key.tenant = tenant.ID
		key.configVersion = tenant.ConfigVersion
		p = policy.Of(tenant, tools.ProtocolA2A)
	}

	s.mu.RLock()
	snap, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return snap, nil
	}

	snap, err := s.render(ctx, key.tenant, p)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	for k := range s.cache {
		if k.tenant == key.tenant {
			delete(s.cache, k)
		}
	}
	s.cache[key] = snap
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "agent card rendered",
		"tenant_id", key.tenant,
		"registry_version", key.registryVersion,
		"config_version", key.configVersion,
		"etag", snap.ETag,
	)
	return snap, nil
}

func (s *Service) render(ctx context.Context, tenantID id.TenantID, p tools.Policy) (*Snapshot, error) {
	card := Card{
		Name:            s.info.Name,
		Description:     s.info.Description,
		Version:         s.info.Version,
		URL:             s.info.BaseURL + "/a2a",
		ProtocolVersion: a2a.ProtocolVersion,
		Capabilities:    []string{"tools", "tasks", "task-polling"},
		Authentication: Authentication{
			Schemes: []string{"bearer", "oauth2"},
			OAuth2: OAuth2{
				AuthorizationURL: s.info.BaseURL + "/oauth2/authorize",
				TokenURL:         s.info.BaseURL + "/oauth2/token",
				GrantTypes: []string{
					string(id.GrantTypeClientCredentials),
					string(id.GrantTypeAuthorizationCode),
				},
				Scopes: slices.Clone(id.KnownScopes),
			},
		},
		Tools: s.registry.List(p),
	}
	if limit := s.limits.LimitFor(ctx, tenantID); limit > 0 {
		card.RateLimit = &RateLimit{Requests: limit, WindowSeconds: int(s.limits.Window() / time.Second)}
	}

	raw, err := json.Marshal(card)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode agent card")
	}
	body, err := jsoncanonicalizer.Transform(raw)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to canonicalize agent card")
	}
	sum := blake3.Sum256(body)
	return &Snapshot{Body: body, ETag: `"` + hex.EncodeToString(sum[:]) + `"`}, nil
}

// Warm renders the global card and every tenant's card so the first
// discovery requests are served from cache.
func (s *Service) Warm(ctx context.Context) error {
	tenants, err := s.tenants.ListTenants(ctx)
	if err != nil {
		return err
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(warmConcurrency)
	g.Go(func() error {
		_, err := s.Global(ctx)
		return err
	})
	for _, tenant := range tenants {
		g.Go(func() error {
			_, err := s.Card(ctx, tenant)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "agent cards warmed", "tenants", len(tenants))
	return nil
}
