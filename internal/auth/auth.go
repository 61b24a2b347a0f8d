package auth

import (
	"context"
	"errors"
	"fmt"

	"stream-escrow-go/internal/models"
)

var ErrUnauthorized = errors.New("unauthorized")

// Authorizer proves that the caller behind ctx controls principal.
type Authorizer interface {
	Require(ctx context.Context, principal string) error
}

// ContextAuthorizer accepts a call when the principal attached with
// models.WithCaller matches the one required.
type ContextAuthorizer struct{}

func NewContextAuthorizer() ContextAuthorizer {
	return ContextAuthorizer{}
}

func (ContextAuthorizer) Require(ctx context.Context, principal string) error {
	caller := models.CallerFromContext(ctx)
	if caller == "" {
		return fmt.Errorf("%w: no authenticated caller", ErrUnauthorized)
	}
	if caller != principal {
		return fmt.Errorf("%w: caller %s cannot act for %s", ErrUnauthorized, caller, principal)
	}
	return nil
}
