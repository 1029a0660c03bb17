package icu

import "errors"

var (
	ErrNotFound           = errors.New("icu not found")
	ErrRegionNotFound     = errors.New("region not found")
	ErrNameRequired       = errors.New("icu name is required")
	ErrInvalidCoordinates = errors.New("icu coordinates out of range")
)
