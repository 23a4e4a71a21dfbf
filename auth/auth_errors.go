package auth

import "errors"

var (
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrRoleNotAllowed     = errors.New("role not allowed")
	ErrSessionSuperseded  = errors.New("session superseded by sign out")
	ErrIncompleteSession  = errors.New("backend returned an incomplete session")
	ErrPasswordsDontMatch = errors.New("passwords do not match")
)
