// Package common defines shared constants and sentinel errors used across
// the photovault components. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal  = errors.New("internal error")
	ErrorForbidden = errors.New("forbidden")

	// Reconciliation errors.
	ErrorWrongBucketID = errors.New("wrong bucket id")

	// Existence matcher errors.
	ErrorTooManyLookups = errors.New("too many lookups")
)
