package entity

import "errors"

var (
	// ErrInvalidPayload is returned by Ingest for state messages it cannot read.
	ErrInvalidPayload = errors.New("entity: invalid state payload")

	// ErrInvalidEntityID is returned for empty entity ids.
	ErrInvalidEntityID = errors.New("entity: invalid entity id")

	// ErrCommandFailed wraps publish failures of actuator commands.
	ErrCommandFailed = errors.New("entity: command failed")
)
