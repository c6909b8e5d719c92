package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidCode      = errors.New("invalid code")
	ErrNotRelated       = errors.New("not related")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrNotRegistered    = errors.New("connection not registered")
	ErrForbidden        = errors.New("forbidden")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrConflict         = errors.New("conflict")
)
