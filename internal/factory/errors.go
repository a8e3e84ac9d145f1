package factory

import "errors"

var (
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrNotFound           = errors.New("not found")
	ErrNotOwned           = errors.New("upgrade not owned")
	ErrAlreadyOwned       = errors.New("upgrade already owned")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvariantViolation = errors.New("invariant violation")
)
