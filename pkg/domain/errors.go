// Package domain holds the sentinels every layer may match on with
// errors.Is. Richer error types wrap one of these.
package domain

import "errors"

var (
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
	ErrValidation    = errors.New("validation error")
	// ErrPrecondition marks an operation called before its prerequisites
	// exist (no account, no cardholder, no funds).
	ErrPrecondition  = errors.New("precondition failed")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
)
