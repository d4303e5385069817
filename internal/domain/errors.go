package domain

import "errors"

// Sentinel errors for domain operations
var (
	// ErrNotFound indicates the requested manga does not exist in the store
	ErrNotFound = errors.New("manga not found")

	// ErrOffline indicates the remote catalog is unreachable
	ErrOffline = errors.New("remote catalog is unreachable")

	// ErrEmptyResponse indicates the remote answered without any records
	ErrEmptyResponse = errors.New("empty response")

	// ErrStoreClosed is returned by store operations after Close
	ErrStoreClosed = errors.New("store is closed")
)
