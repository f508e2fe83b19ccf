package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Trust engine errors
	ErrValidation         = errors.New("behavior event failed validation")
	ErrStorageUnavailable = errors.New("behavior storage unavailable")
	ErrMalformedBaseline  = errors.New("stored baseline document is malformed")
)
