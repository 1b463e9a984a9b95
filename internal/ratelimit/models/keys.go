package models

import (
	"fmt"
	"strings"

	id "fitgate/pkg/domain"
)

// Key identifies one rate limit bucket: a principal of a tenant on one
// protocol endpoint.
type Key struct {
	tenant    string
	kind      string
	principal string
	scope     string
}

func NewPrincipalKey(tenantID id.TenantID, kind id.PrincipalKind, principalID, scope string) Key {
	return Key{
		tenant:    tenantID.String(),
		kind:      sanitizeKeySegment(string(kind)),
		principal: sanitizeKeySegment(principalID),
		scope:     sanitizeKeySegment(scope),
	}
}

// String returns the formatted key for storage lookup.
func (k Key) String() string {
	return fmt.Sprintf("rl:%s:%s:%s:%s", k.tenant, k.kind, k.principal, k.scope)
}

// sanitizeKeySegment escapes the delimiter so caller-controlled segments
// cannot collide with adjacent buckets. '_' is escaped first.
//
//	"user:admin"  -> "user_cadmin"
//	"user_admin"  -> "user__admin"
func sanitizeKeySegment(s string) string {
	s = strings.ReplaceAll(s, "_", "__")
	s = strings.ReplaceAll(s, ":", "_c")
	return s
}
