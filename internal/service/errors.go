package service

import "errors"

// Service-level error taxonomy. Repository sentinels are mapped onto these
// before leaving the service layer so callers never see storage details.
var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrForbidden       = errors.New("forbidden")
)
