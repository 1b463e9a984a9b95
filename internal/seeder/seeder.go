// Package seeder loads bootstrap data from a YAML file: tenants with their
// users, clients, provider apps and demo fitness records.
package seeder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	authModels "fitgate/internal/auth/models"
	fitnessModels "fitgate/internal/fitness/models"
	tenantModels "fitgate/internal/tenant/models"
	tenantService "fitgate/internal/tenant/service"
	id "fitgate/pkg/domain"
	dErrors "fitgate/pkg/domain-errors"
	"fitgate/pkg/requestcontext"
)

// Tenants is the directory the seeder writes through, so seeded records
// pass the same validation as API-created ones.
type Tenants interface {
	CreateTenant(ctx context.Context, cmd *tenantService.CreateTenantCommand) (*tenantModels.Tenant, error)
	GetTenantBySlug(ctx context.Context, slug string) (*tenantModels.Tenant, error)
	Suspend(ctx context.Context, tenantID id.TenantID) (*tenantModels.Tenant, error)
	CreateUser(ctx context.Context, cmd *tenantService.CreateUserCommand) (*tenantModels.User, error)
	RegisterClient(ctx context.Context, cmd *tenantService.RegisterClientCommand) (*tenantModels.Client, string, error)
}

type OAuthApps interface {
	Save(ctx context.Context, app *authModels.OAuthApp) error
}

type FitnessStore interface {
	SaveAthlete(ctx context.Context, a *fitnessModels.Athlete) error
	SaveActivity(ctx context.Context, a *fitnessModels.Activity) error
	SaveConnection(ctx context.Context, c *fitnessModels.Connection) error
}

type File struct {
	Tenants []Tenant `yaml:"tenants"`
}

type Tenant struct {
	Name               string     `yaml:"name"`
	Slug               string     `yaml:"slug"`
	Suspended          bool       `yaml:"suspended"`
	DisabledTools      []string   `yaml:"disabled_tools"`
	RateLimitPerMinute int        `yaml:"rate_limit_per_minute"`
	Users              []User     `yaml:"users"`
	Clients            []Client   `yaml:"clients"`
	OAuthApps          []OAuthApp `yaml:"oauth_apps"`
}

type User struct {
	Email        string     `yaml:"email"`
	DisplayName  string     `yaml:"display_name"`
	Role         string     `yaml:"role"`
	Password     string     `yaml:"password"`
	PasswordHash string     `yaml:"password_hash"`
	Athlete      *Athlete   `yaml:"athlete"`
	Connections  []string   `yaml:"connections"`
	Activities   []Activity `yaml:"activities"`
}

type Athlete struct {
	Username  string `yaml:"username"`
	FirstName string `yaml:"firstname"`
	LastName  string `yaml:"lastname"`
	City      string `yaml:"city"`
	Country   string `yaml:"country"`
}

// Activity dates are either absolute (start_date) or relative to the seed
// time (days_ago), which keeps demo data inside analysis windows.
type Activity struct {
	Provider        string    `yaml:"provider"`
	Name            string    `yaml:"name"`
	SportType       string    `yaml:"sport_type"`
	StartDate       time.Time `yaml:"start_date"`
	DaysAgo         int       `yaml:"days_ago"`
	DurationSeconds int       `yaml:"duration_seconds"`
	DistanceMeters  float64   `yaml:"distance_meters"`
	ElevationGain   float64   `yaml:"elevation_gain"`
	AverageHeartBPM int       `yaml:"average_heart_rate"`
}

type Client struct {
	Name             string   `yaml:"name"`
	Kind             string   `yaml:"kind"`
	ClientID         string   `yaml:"client_id"`
	ClientSecret     string   `yaml:"client_secret"`
	ClientSecretHash string   `yaml:"client_secret_hash"`
	RedirectURIs     []string `yaml:"redirect_uris"`
	GrantTypes       []string `yaml:"grant_types"`
	Scope            string   `yaml:"scope"`
	Public           bool     `yaml:"public"`
}

type OAuthApp struct {
	Provider     string   `yaml:"provider"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	RedirectURI  string   `yaml:"redirect_uri"`
	AuthorizeURL string   `yaml:"authorize_url"`
	TokenURL     string   `yaml:"token_url"`
	Scopes       []string `yaml:"scopes"`
}

// Load reads and decodes a seed file. Unknown keys are rejected.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Decode(bytes.NewReader(raw))
}

func Decode(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	return &f, nil
}

// Summary counts what Apply created.
type Summary struct {
	Tenants    int
	Skipped    int
	Users      int
	Clients    int
	OAuthApps  int
	Activities int
}

type Seeder struct {
	tenants Tenants
	apps    OAuthApps
	fitness FitnessStore
	logger  *slog.Logger
}

func New(tenants Tenants, apps OAuthApps, fitness FitnessStore, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{tenants: tenants, apps: apps, fitness: fitness, logger: logger}
}

// Apply creates everything in f. Tenants whose slug already exists are
// skipped whole, so reapplying a file is harmless.
func (s *Seeder) Apply(ctx context.Context, f *File) (*Summary, error) {
	s.logger.InfoContext(ctx, "seeding data", "tenants", len(f.Tenants))
	sum := &Summary{}
	for i := range f.Tenants {
		t := &f.Tenants[i]
		if _, err := s.tenants.GetTenantBySlug(ctx, t.Slug); err == nil {
			s.logger.InfoContext(ctx, "tenant already seeded", "slug", t.Slug)
			sum.Skipped++
			continue
		} else if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			return sum, err
		}
		if err := s.seedTenant(ctx, t, sum); err != nil {
			return sum, fmt.Errorf("tenant %q: %w", t.Slug, err)
		}
	}
	s.logger.InfoContext(ctx, "seed data applied",
		"tenants", sum.Tenants,
		"skipped", sum.Skipped,
		"users", sum.Users,
		"clients", sum.Clients,
		"oauth_apps", sum.OAuthApps,
		"activities", sum.Activities,
	)
	return sum, nil
}

func (s *Seeder) seedTenant(ctx context.Context, t *Tenant, sum *Summary) error {
	tenant, err := s.tenants.CreateTenant(ctx, &tenantService.CreateTenantCommand{
		Name:               t.Name,
		Slug:               t.Slug,
		DisabledTools:      t.DisabledTools,
		RateLimitPerMinute: t.RateLimitPerMinute,
	})
	if err != nil {
		return err
	}
	sum.Tenants++

	for i := range t.Users {
		if err := s.seedUser(ctx, tenant.ID, &t.Users[i], sum); err != nil {
			return fmt.Errorf("user %q: %w", t.Users[i].Email, err)
		}
	}
	for _, c := range t.Clients {
		_, _, err := s.tenants.RegisterClient(ctx, &tenantService.RegisterClientCommand{
			TenantID:         tenant.ID,
			Name:             c.Name,
			Kind:             tenantModels.ClientKind(c.Kind),
			RedirectURIs:     c.RedirectURIs,
			GrantTypes:       c.GrantTypes,
			Scope:            c.Scope,
			Public:           c.Public,
			OAuthClientID:    c.ClientID,
			ClientSecret:     c.ClientSecret,
			ClientSecretHash: c.ClientSecretHash,
		})
		if err != nil {
			return fmt.Errorf("client %q: %w", c.Name, err)
		}
		sum.Clients++
	}
	for _, a := range t.OAuthApps {
		err := s.apps.Save(ctx, &authModels.OAuthApp{
			ID:           id.OAuthAppID(uuid.New()),
			TenantID:     tenant.ID,
			Provider:     a.Provider,
			ClientID:     a.ClientID,
			ClientSecret: a.ClientSecret,
			RedirectURI:  a.RedirectURI,
			AuthorizeURL: a.AuthorizeURL,
			TokenURL:     a.TokenURL,
			Scopes:       a.Scopes,
		})
		if err != nil {
			return fmt.Errorf("oauth app %q: %w", a.Provider, err)
		}
		sum.OAuthApps++
	}

	// Suspension comes last: a suspended tenant cannot register clients.
	if t.Suspended {
		if _, err := s.tenants.Suspend(ctx, tenant.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) seedUser(ctx context.Context, tenantID id.TenantID, u *User, sum *Summary) error {
	role := id.Role(u.Role)
	if role == "" {
		role = id.RoleMember
	}
	user, err := s.tenants.CreateUser(ctx, &tenantService.CreateUserCommand{
		TenantID:     tenantID,
		Email:        u.Email,
		DisplayName:  u.DisplayName,
		Role:         role,
		Password:     u.Password,
		PasswordHash: u.PasswordHash,
	})
	if err != nil {
		return err
	}
	sum.Users++

	now := requestcontext.Now(ctx)
	if u.Athlete != nil {
		if err := s.fitness.SaveAthlete(ctx, &fitnessModels.Athlete{
			TenantID:  tenantID,
			UserID:    user.ID,
			Username:  u.Athlete.Username,
			FirstName: u.Athlete.FirstName,
			LastName:  u.Athlete.LastName,
			City:      u.Athlete.City,
			Country:   u.Athlete.Country,
		}); err != nil {
			return err
		}
	}
	for _, provider := range u.Connections {
		if err := s.fitness.SaveConnection(ctx, &fitnessModels.Connection{
			TenantID:    tenantID,
			UserID:      user.ID,
			Provider:    provider,
			ConnectedAt: now,
		}); err != nil {
			return err
		}
	}
	for _, a := range u.Activities {
		start := a.StartDate
		if start.IsZero() {
			start = now.Add(-time.Duration(a.DaysAgo) * 24 * time.Hour)
		}
		if err := s.fitness.SaveActivity(ctx, &fitnessModels.Activity{
			ID:              id.ActivityID(uuid.New()),
			TenantID:        tenantID,
			UserID:          user.ID,
			Provider:        a.Provider,
			Name:            a.Name,
			SportType:       a.SportType,
			StartDate:       start.UTC(),
			DurationSeconds: a.DurationSeconds,
			DistanceMeters:  a.DistanceMeters,
			ElevationGain:   a.ElevationGain,
			AverageHeartBPM: a.AverageHeartBPM,
		}); err != nil {
			return err
		}
		sum.Activities++
	}
	return nil
}
