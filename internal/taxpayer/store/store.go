// Package store persists taxpayers. Implementations return sentinel errors
// from pkg/platform/sentinel; the service translates them into domain errors.
package store

import "taxregistry/pkg/platform/sentinel"

var (
	// ErrNotFound is returned when no live taxpayer has the requested tid.
	ErrNotFound = sentinel.ErrNotFound
	// ErrUnavailable is returned when the store cannot accept the write.
	ErrUnavailable = sentinel.ErrUnavailable
)
