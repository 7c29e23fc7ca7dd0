package router

import "errors"

var (
	ErrUnknownEvent   = errors.New("unknown event")
	ErrInvalidPayload = errors.New("invalid payload")
	ErrRateLimited    = errors.New("rate limit exceeded")
)
