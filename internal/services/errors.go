package services

import "errors"

// ErrUnauthorized is returned when the request carries no authenticated caller.
var ErrUnauthorized = errors.New("unauthorized")
