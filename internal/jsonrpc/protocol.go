// Package jsonrpc validates JSON-RPC 2.0 envelopes and routes them to method
// handlers. One Dispatcher serves each endpoint.
package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	dErrors "fitgate/pkg/domain-errors"
	"fitgate/pkg/platform/httputil"
)

const Version = "2.0"

// Standard codes plus the server range used for domain failures.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	CodeTaskNotCancelable = -32002
	CodeForbidden         = -32003
	CodeTenantSuspended   = -32004
	CodeRateLimited       = -32005
	CodeTimeout           = -32008
	CodeNotFound          = -32009
)

var nullID = json.RawMessage("null")

type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request carried no id member.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// InvalidParams is returned by handlers whose params do not decode.
func InvalidParams(message string) *Error {
	return NewError(CodeInvalidParams, message)
}

// ToError maps a handler error onto the wire. Internal failures get a
// generic message; their detail stays in the logs.
func ToError(err error) *Error {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(CodeTimeout, "request timed out")
	}
	msg := err.Error()
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		msg = domainErr.Message
	}

	switch dErrors.CodeOf(err) {
	case dErrors.CodeNotFound:
		return NewError(CodeNotFound, msg)
	case dErrors.CodeValidation, dErrors.CodeInvalidInput, dErrors.CodeBadRequest:
		return NewError(CodeInvalidParams, msg)
	case dErrors.CodeRateLimited:
		e := NewError(CodeRateLimited, msg)
		var hint httputil.RetryAfterError
		if errors.As(err, &hint) {
			e.Data = map[string]int{"retry_after_seconds": hint.RetryAfterSeconds()}
		}
		return e
	case dErrors.CodeTimeout:
		return NewError(CodeTimeout, "request timed out")
	case dErrors.CodeTenantSuspended:
		return NewError(CodeTenantSuspended, "tenant is suspended")
	case dErrors.CodeForbidden:
		return NewError(CodeForbidden, msg)
	case dErrors.CodeConflict:
		return NewError(CodeTaskNotCancelable, msg)
	default:
		return NewError(CodeInternalError, "internal error")
	}
}

// validID accepts the id forms JSON-RPC allows: string, number or null.
func validID(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return true
	}
	switch raw[0] {
	case '"', 'n', '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return true
	}
	return false
}
