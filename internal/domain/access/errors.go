package access

import "errors"

// Authentication failures. Callers branch with errors.Is.
var (
	ErrUnknown        = errors.New("unknown credential")
	ErrMalformed      = errors.New("malformed credential")
	ErrInactive       = errors.New("user or icu is inactive")
	ErrRevokedConsent = errors.New("user declined consent")
	ErrNotMember      = errors.New("user is not a member of the icu")
	ErrExpired        = errors.New("credential expired")
)

// Store failures shared by all repositories.
var (
	ErrAuthorization = errors.New("not authorized")
	ErrConflict      = errors.New("conflicting write")
	ErrTransient     = errors.New("transient storage failure")
)
