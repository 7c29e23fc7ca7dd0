package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

var _ interfaces.ChatStore = (*JSONFileStore)(nil)

const lockRetryDelay = 50 * time.Millisecond

// JSONFileStore keeps the whole history as one JSON array. Every save
// rewrites the file through a temporary sibling and a rename, under an
// advisory lock shared with other processes such as the CLI.
type JSONFileStore struct {
	path string
	lock *flock.Flock
}

// NewJSONFileStore creates the parent directory if needed.
func NewJSONFileStore(path string) (*JSONFileStore, error) {
	if path == "" {
		return nil, errors.New("chat file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create chat directory: %w", err)
	}
	return &JSONFileStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

func (s *JSONFileStore) Backend() string { return "json" }

func (s *JSONFileStore) Path() string { return s.path }

// Load returns an empty history when the file does not exist yet.
func (s *JSONFileStore) Load(ctx context.Context) ([]types.ChatMessage, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = s.lock.Unlock() }()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []types.ChatMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return []types.ChatMessage{}, nil
	}

	var messages []types.ChatMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return messages, nil
}

func (s *JSONFileStore) Save(ctx context.Context, messages []types.ChatMessage) error {
	if messages == nil {
		messages = []types.ChatMessage{}
	}
	data, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		return fmt.Errorf("encode chat history: %w", err)
	}

	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer func() { _ = s.lock.Unlock() }()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

func (s *JSONFileStore) Close() error { return nil }

func (s *JSONFileStore) acquire(ctx context.Context) error {
	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock %s: %w", s.lock.Path(), err)
	}
	if !locked {
		return fmt.Errorf("lock %s: not acquired", s.lock.Path())
	}
	return nil
}
