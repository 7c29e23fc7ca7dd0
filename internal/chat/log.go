// Package chat keeps per-session chat history in memory and mirrors it to a
// durable store.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"liveclass/internal/metrics"
	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

// Options bounds the log.
type Options struct {
	Retention time.Duration
	MaxLength int
}

// Log is the in-memory chat history of every session, in insertion order.
// It is owned by the hub goroutine; durable writes are handed to a
// Persister.
type Log struct {
	messages  []types.ChatMessage
	store     interfaces.ChatStore
	persister *Persister
	opts      Options
	now       func() time.Time
	log       zerolog.Logger
	metrics   *metrics.Metrics
}

func NewLog(store interfaces.ChatStore, opts Options, log zerolog.Logger, m *metrics.Metrics) *Log {
	return &Log{
		store:     store,
		persister: NewPersister(store, log, m),
		opts:      opts,
		now:       time.Now,
		log:       log,
		metrics:   m,
	}
}

// Load reads the durable history, drops expired entries and writes the
// pruned result back before the log accepts new messages. A failure leaves
// the log usable: an unreadable store starts the log empty and is left
// untouched until the next post, and a failed write-back keeps the pruned
// messages in memory. Either way the error is returned for the caller to
// report.
func (l *Log) Load(ctx context.Context) error {
	messages, err := l.store.Load(ctx)
	if err != nil {
		l.messages = nil
		l.metrics.PersistFailure()
		return fmt.Errorf("%w: load: %w", ErrPersist, err)
	}
	l.messages = prune(messages, l.cutoff())
	if err := l.store.Save(ctx, l.snapshot()); err != nil {
		l.metrics.PersistFailure()
		return fmt.Errorf("%w: save pruned history: %w", ErrPersist, err)
	}
	l.log.Info().
		Int("loaded", len(messages)).
		Int("kept", len(l.messages)).
		Str("backend", l.store.Backend()).
		Msg("chat history loaded")
	return nil
}

// Post appends a message authored by p to its session. The text is
// trimmed; empty or over-long messages are rejected.
func (l *Log) Post(p types.Participant, text string) (types.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return types.ChatMessage{}, ErrEmptyMessage
	}
	if l.opts.MaxLength > 0 && utf8.RuneCountInString(text) > l.opts.MaxLength {
		return types.ChatMessage{}, fmt.Errorf("%w: limit is %d characters", ErrMessageTooLong, l.opts.MaxLength)
	}

	msg := types.ChatMessage{
		ID:        uuid.NewString(),
		SessionID: p.SessionID,
		UserID:    p.ID,
		UserName:  p.UserName,
		IsTeacher: p.IsTeacher,
		Text:      text,
		Timestamp: l.now().UTC(),
	}
	l.messages = append(l.messages, msg)
	l.persister.Submit(l.snapshot())
	l.metrics.ChatMessage()
	return msg, nil
}

// History returns the session's messages in insertion order.
func (l *Log) History(sessionID string) []types.ChatMessage {
	out := make([]types.ChatMessage, 0)
	for _, m := range l.messages {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out
}

// Clear empties one session's chat and prunes expired entries of the
// others. It returns the number of messages removed from the session.
func (l *Log) Clear(sessionID string) int {
	kept := l.messages[:0:0]
	removed := 0
	for _, m := range l.messages {
		if m.SessionID == sessionID {
			removed++
			continue
		}
		kept = append(kept, m)
	}
	l.messages = prune(kept, l.cutoff())
	l.persister.Submit(l.snapshot())
	return removed
}

// Len counts messages across sessions.
func (l *Log) Len() int { return len(l.messages) }

// Backend names the durable store.
func (l *Log) Backend() string { return l.store.Backend() }

// Close flushes pending writes and closes the store.
func (l *Log) Close() error {
	l.persister.Close()
	if err := l.store.Close(); err != nil {
		return fmt.Errorf("%w: close: %w", ErrPersist, err)
	}
	return nil
}

func (l *Log) cutoff() time.Time {
	return l.now().Add(-l.opts.Retention)
}

func (l *Log) snapshot() []types.ChatMessage {
	return append([]types.ChatMessage(nil), l.messages...)
}

// prune keeps messages stamped at or after cutoff.
func prune(messages []types.ChatMessage, cutoff time.Time) []types.ChatMessage {
	kept := make([]types.ChatMessage, 0, len(messages))
	for _, m := range messages {
		if !m.Timestamp.Before(cutoff) {
			kept = append(kept, m)
		}
	}
	return kept
}
