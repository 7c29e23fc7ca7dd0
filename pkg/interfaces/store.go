package interfaces

import (
	"context"

	"liveclass/pkg/types"
)

// ChatStore is the durable home of the chat log. Save always receives the
// complete log and replaces what was stored before.
type ChatStore interface {
	// Load returns every stored message in insertion order. A store that
	// has never been written returns an empty slice.
	Load(ctx context.Context) ([]types.ChatMessage, error)

	// Save replaces the stored log with messages.
	Save(ctx context.Context, messages []types.ChatMessage) error

	// Backend names the storage kind for health reporting.
	Backend() string

	// Close releases files and handles held by the store.
	Close() error
}
