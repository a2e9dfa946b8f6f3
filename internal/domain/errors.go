package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrIdentityUnresolved  = errors.New("identity unresolved")
	ErrDuplicateTitle      = errors.New("duplicate title")
	ErrPersistenceFailure  = errors.New("persistence failure")
	ErrCheckoutUnavailable = errors.New("checkout unavailable")
)
