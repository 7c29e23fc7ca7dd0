package chat

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liveclass/pkg/types"
)

func TestJSONFileStore_MissingFileIsEmpty(t *testing.T) {
	store, err := NewJSONFileStore(filepath.Join(t.TempDir(), "nested", "chat.json"))
	require.NoError(t, err)

	messages, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, messages)
	assert.Equal(t, "json", store.Backend())
}

func TestJSONFileStore_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.json")
	store, err := NewJSONFileStore(path)
	require.NoError(t, err)

	ts := time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)
	in := []types.ChatMessage{
		{ID: "m1", SessionID: "s1", UserID: "c1", UserName: "Derya", IsTeacher: true, Text: "Günaydın", Timestamp: ts},
		{ID: "m2", SessionID: "s1", UserID: "c2", UserName: "Ayşe", Text: "hi", Timestamp: ts.Add(time.Minute)},
	}
	require.NoError(t, store.Save(context.Background(), in))

	out, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, in, out)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp", "temporary files are cleaned up")
	}
}

func TestJSONFileStore_SaveNilWritesEmptyArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.json")
	store, err := NewJSONFileStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Save(context.Background(), nil))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestJSONFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	store, err := NewJSONFileStore(path)
	require.NoError(t, err)

	_, err = store.Load(context.Background())
	assert.Error(t, err)
}

func TestNewJSONFileStore_EmptyPath(t *testing.T) {
	_, err := NewJSONFileStore("")
	assert.Error(t, err)
}
