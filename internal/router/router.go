package router

import (
	"encoding/json"
	"fmt"

	"liveclass/pkg/types"
)

// Router turns raw frames into typed events. It runs on connection read
// goroutines, so it holds no session state.
type Router struct {
	limiter *RateLimiter
	limited map[string]bool
}

// NewRouter builds a decoder whose limiter applies to the listed event
// names.
func NewRouter(limiter *RateLimiter, limitedEvents ...string) *Router {
	limited := make(map[string]bool, len(limitedEvents))
	for _, name := range limitedEvents {
		limited[name] = true
	}
	return &Router{limiter: limiter, limited: limited}
}

// Decode parses one envelope sent by connID. The returned error wraps
// ErrInvalidPayload, ErrUnknownEvent or ErrRateLimited; envelope names the
// event when it could be read.
func (r *Router) Decode(connID string, data []byte) (ev types.Event, envelope string, err error) {
	var env types.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	ev, ok := types.NewEvent(env.Event)
	if !ok {
		return nil, env.Event, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}

	payload := env.Data
	if len(payload) == 0 || string(payload) == "null" {
		payload = json.RawMessage("{}")
	}
	if err := json.Unmarshal(payload, ev); err != nil {
		return nil, env.Event, fmt.Errorf("%w: %s: %w", ErrInvalidPayload, env.Event, err)
	}
	if v, ok := ev.(types.Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, env.Event, fmt.Errorf("%w: %s: %w", ErrInvalidPayload, env.Event, err)
		}
	}

	if r.limiter != nil && r.limited[env.Event] && !r.limiter.Allow(connID) {
		return nil, env.Event, fmt.Errorf("%w: %s", ErrRateLimited, env.Event)
	}
	return ev, env.Event, nil
}

// Forget releases per-connection limiter state.
func (r *Router) Forget(connID string) {
	if r.limiter != nil {
		r.limiter.Forget(connID)
	}
}
