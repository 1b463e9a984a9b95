package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"

	dErrors "fitgate/pkg/domain-errors"
	"fitgate/pkg/requestcontext"
)

// Validatable is implemented by request types that can validate themselves.
type Validatable interface {
	Validate() error
}

// Normalizable is implemented by request types that trim or lowercase fields.
type Normalizable interface {
	Normalize()
}

// DecodeJSON decodes the body into T, normalizes and validates it. On failure
// it writes the error response and returns false.
//
//	req, ok := httputil.DecodeJSON[models.RegisterClientRequest](w, r, h.logger)
//	if !ok {
//	    return
//	}
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	ctx := r.Context()
	var req T
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		logger.WarnContext(ctx, "failed to decode request body",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return nil, false
	}

	if n, ok := any(&req).(Normalizable); ok {
		n.Normalize()
	}
	if v, ok := any(&req).(Validatable); ok {
		if err := v.Validate(); err != nil {
			logger.WarnContext(ctx, "invalid request",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
			WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, err.Error()))
			return nil, false
		}
	}
	return &req, true
}
