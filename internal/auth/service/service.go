package service

import (
	"log/slog"
	"strings"
	"time"

	"fitgate/internal/auth/metrics"
)

const (
	defaultAuthRequestTTL  = 10 * time.Minute
	defaultRefreshTokenTTL = 30 * 24 * time.Hour
	tokenTypeBearer        = "Bearer"
)

// Service is the OAuth2 authorization server: authorization requests with
// PKCE, the three token grants, revocation and password login.
type Service struct {
	directory     Directory
	authRequests  AuthRequestStore
	refreshTokens RefreshTokenStore
	tokens        TokenRecordStore
	revocations   RevocationList
	jwt           TokenIssuer

	logger          *slog.Logger
	metrics         *metrics.Metrics
	baseURL         string
	authRequestTTL  time.Duration
	refreshTokenTTL time.Duration
}

// Stores groups the credential stores the service writes to.
type Stores struct {
	AuthRequests  AuthRequestStore
	RefreshTokens RefreshTokenStore
	Tokens        TokenRecordStore
	Revocations   RevocationList
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithBaseURL sets the public base URL used in server metadata.
func WithBaseURL(baseURL string) Option {
	return func(s *Service) {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithAuthRequestTTL configures how long an authorization request stays
// redeemable. Zero or negative keeps the 10 minute default.
func WithAuthRequestTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.authRequestTTL = ttl
		}
	}
}

func WithRefreshTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.refreshTokenTTL = ttl
		}
	}
}

func New(directory Directory, stores Stores, jwt TokenIssuer, opts ...Option) *Service {
	svc := &Service{
		directory:       directory,
		authRequests:    stores.AuthRequests,
		refreshTokens:   stores.RefreshTokens,
		tokens:          stores.Tokens,
		revocations:     stores.Revocations,
		jwt:             jwt,
		authRequestTTL:  defaultAuthRequestTTL,
		refreshTokenTTL: defaultRefreshTokenTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc
}
