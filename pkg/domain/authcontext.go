package domain

import "slices"

// AuthContext is the resolved caller identity attached to every
// authenticated request. It is passed by value and never mutated.
type AuthContext struct {
	TenantID      TenantID
	PrincipalID   string
	PrincipalKind PrincipalKind
	ClientID      string
	Role          Role
	Scopes        []string
	TokenID       string
	// TenantSuspended is set when the tenant was suspended after the token
	// was issued. Reads continue; state-changing calls are refused.
	TenantSuspended bool
}

func (a AuthContext) IsZero() bool {
	return a.TenantID.IsNil()
}

func (a AuthContext) HasScope(scope string) bool {
	return slices.Contains(a.Scopes, scope)
}

// CanAdminister reports whether the principal may manage the tenant's clients.
func (a AuthContext) CanAdminister() bool {
	return a.PrincipalKind == PrincipalUser && a.Role.CanAdminister()
}
