package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	dErrors "fitgate/pkg/domain-errors"
)

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

// ErrorResponse is the OAuth-style error envelope used by every non-JSON-RPC endpoint.
type ErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
	RetryAfter  int    `json:"retry_after_seconds,omitempty"`
}

// RetryAfterError is implemented by errors that carry a retry hint.
type RetryAfterError interface {
	RetryAfterSeconds() int
}

// WriteError translates a domain error into an HTTP status and error envelope.
// Internal failures never leak their message.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	resp := ErrorResponse{Error: DomainCodeToHTTPCode(code)}
	if code != dErrors.CodeInternal {
		resp.Description = err.Error()
	}

	status := DomainCodeToHTTPStatus(code)
	switch status {
	case http.StatusUnauthorized:
		w.Header().Set("WWW-Authenticate", `Bearer error="`+resp.Error+`"`)
	case http.StatusTooManyRequests:
		var ra RetryAfterError
		if errors.As(err, &ra) {
			resp.RetryAfter = ra.RetryAfterSeconds()
			w.Header().Set("Retry-After", strconv.Itoa(resp.RetryAfter))
		}
	}
	WriteJSON(w, status, resp)
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeUnauthorized, dErrors.CodeTokenExpired, dErrors.CodeTokenRevoked:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden, dErrors.CodeTenantSuspended:
		return http.StatusForbidden
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	case dErrors.CodeInvalidClient:
		return http.StatusUnauthorized
	// OAuth 2.0 token endpoint errors (RFC 6749 §5.2), including the two
	// authorization-code specific failures which surface as invalid_grant.
	case dErrors.CodeInvalidGrant, dErrors.CodeUnsupportedGrantType, dErrors.CodeInvalidRequest,
		dErrors.CodeInvalidScope, dErrors.CodeAccessDenied, dErrors.CodeStateMismatch, dErrors.CodeProofInvalid:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// DomainCodeToHTTPCode translates domain error codes to the "error" string of the envelope.
func DomainCodeToHTTPCode(code dErrors.Code) string {
	switch code {
	case dErrors.CodeNotFound:
		return "not_found"
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput:
		return "bad_request"
	case dErrors.CodeValidation:
		return "validation_error"
	case dErrors.CodeConflict:
		return "conflict"
	case dErrors.CodeUnauthorized:
		return "invalid_token"
	case dErrors.CodeTokenExpired:
		return "token_expired"
	case dErrors.CodeTokenRevoked:
		return "token_revoked"
	case dErrors.CodeForbidden:
		return "forbidden"
	case dErrors.CodeTenantSuspended:
		return "tenant_suspended"
	case dErrors.CodeRateLimited:
		return "rate_limited"
	case dErrors.CodeTimeout:
		return "timeout"
	case dErrors.CodeUnavailable:
		return "temporarily_unavailable"
	case dErrors.CodeStateMismatch, dErrors.CodeProofInvalid, dErrors.CodeInvalidGrant:
		return "invalid_grant"
	case dErrors.CodeInvalidClient:
		return "invalid_client"
	case dErrors.CodeUnsupportedGrantType:
		return "unsupported_grant_type"
	case dErrors.CodeInvalidRequest:
		return "invalid_request"
	case dErrors.CodeInvalidScope:
		return "invalid_scope"
	case dErrors.CodeAccessDenied:
		return "access_denied"
	default:
		return "server_error"
	}
}
