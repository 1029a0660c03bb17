package user

import "errors"

var (
	ErrNotFound     = errors.New("user not found")
	ErrNameRequired = errors.New("user name is required")
)
