package domain

// GrantType represents an OAuth 2.0 grant type supported by the gateway.
type GrantType string

const (
	GrantTypeAuthorizationCode GrantType = "authorization_code"
	GrantTypeRefreshToken      GrantType = "refresh_token"
	GrantTypeClientCredentials GrantType = "client_credentials"
)

// IsValid returns true if the grant type is a known valid value.
func (g GrantType) IsValid() bool {
	switch g {
	case GrantTypeAuthorizationCode, GrantTypeRefreshToken, GrantTypeClientCredentials:
		return true
	}
	return false
}

func (g GrantType) String() string {
	return string(g)
}

// RequiresConfidentialClient returns true if this grant type can only be used
// by confidential clients (those with a client secret).
func (g GrantType) RequiresConfidentialClient() bool {
	return g == GrantTypeClientCredentials
}

// PrincipalKind distinguishes the two caller classes a token may be bound to.
type PrincipalKind string

const (
	PrincipalUser   PrincipalKind = "user"
	PrincipalClient PrincipalKind = "client"
)

func (k PrincipalKind) IsValid() bool {
	return k == PrincipalUser || k == PrincipalClient
}

// Role is the tenant-level role of a principal. Clients always act as members.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}

// CanAdminister reports whether the role may manage tenant clients.
func (r Role) CanAdminister() bool {
	return r == RoleOwner || r == RoleAdmin
}
