package audit

import (
	"context"
	"errors"
)

// Store is a sink for events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// MultiStore appends to every sink; one failing sink does not stop the rest.
type MultiStore []Store

func (m MultiStore) Append(ctx context.Context, event Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Append(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
