package models

import (
	"net"
	"net/url"
	"strings"

	dErrors "fitgate/pkg/domain-errors"
)

// ValidateRedirectURI enforces the registration rules for redirect URIs:
// absolute, no fragment, no wildcard, https unless the host is loopback.
func ValidateRedirectURI(raw string) error {
	if raw == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "redirect_uri cannot be empty")
	}
	if strings.Contains(raw, "*") {
		return dErrors.New(dErrors.CodeInvariantViolation, "redirect_uri cannot contain wildcards")
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "redirect_uri must be an absolute URL")
	}
	if u.Fragment != "" || strings.Contains(raw, "#") {
		return dErrors.New(dErrors.CodeInvariantViolation, "redirect_uri cannot contain a fragment")
	}
	switch u.Scheme {
	case "https":
		return nil
	case "http":
		if isLoopback(u.Hostname()) {
			return nil
		}
		return dErrors.New(dErrors.CodeInvariantViolation, "redirect_uri must use https unless loopback")
	default:
		return dErrors.New(dErrors.CodeInvariantViolation, "redirect_uri scheme must be http or https")
	}
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
