package app

import "errors"

var (
	// ErrStoreUnavailable indicates the store handle was never established.
	ErrStoreUnavailable = errors.New("database not connected")
	// ErrInvalidID indicates the identifier is not a valid object id.
	ErrInvalidID = errors.New("invalid id format")
	// ErrNotFound indicates no record matched the identifier.
	ErrNotFound = errors.New("record not found")
	// ErrNotModified indicates the record matched but every field already held the submitted value.
	ErrNotModified = errors.New("record not modified")
	// ErrEventsDisabled indicates no change feed is configured.
	ErrEventsDisabled = errors.New("event feed disabled")
)
