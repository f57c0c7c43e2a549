package engine

import "errors"

var (
	ErrUnavailable  = errors.New("loans service: engine unavailable")
	ErrUnauthorized = errors.New("loans service: caller not permitted")
	ErrNotFound     = errors.New("loans service: not found")
)
