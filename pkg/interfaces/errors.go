package interfaces

import "errors"

// Common interface errors used across components
var (
	ErrStoreClosed     = errors.New("store closed")
	ErrUnknownConn     = errors.New("unknown connection")
	ErrOutboundBacklog = errors.New("outbound queue full")
)
