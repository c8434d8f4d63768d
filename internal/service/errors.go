package service

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidInput     = errors.New("invalid input")
	ErrConflict         = errors.New("conflict")

	// ErrEmptyAggregate marks a unit without any supply days. It is a skip
	// signal and never leaves the service.
	ErrEmptyAggregate = errors.New("no supplies for selected period")
	ErrLookup         = errors.New("lookup failed")
	ErrRender         = errors.New("render failed")
)
