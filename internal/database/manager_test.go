package database

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"liveclass/pkg/types"
)

func setupTestDB(t *testing.T) (*Manager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")

	manager, err := NewManager(context.Background(), DefaultConfig(path), zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	t.Cleanup(func() { _ = manager.Close() })
	return manager, path
}

func sampleMessages() []types.ChatMessage {
	ts := time.Date(2024, 3, 10, 9, 0, 0, 123456789, time.UTC)
	return []types.ChatMessage{
		{ID: "m1", SessionID: "s1", UserID: "c1", UserName: "Derya", IsTeacher: true, Text: "Günaydın", Timestamp: ts},
		{ID: "m2", SessionID: "s1", UserID: "c2", UserName: "Ayşe", Text: "merhaba", Timestamp: ts.Add(time.Second)},
		{ID: "m3", SessionID: "s2", UserID: "c3", UserName: "Ali", Text: "hi", Timestamp: ts.Add(2 * time.Second)},
	}
}

func TestManager_EmptyDatabase(t *testing.T) {
	manager, _ := setupTestDB(t)

	messages, err := manager.Load(context.Background())
	if err != nil {
		t.Fatalf("Load should succeed on a fresh database: %v", err)
	}
	if len(messages) != 0 {
		t.Errorf("Expected no messages, got %d", len(messages))
	}
	if manager.Backend() != "sqlite" {
		t.Errorf("Expected backend sqlite, got %q", manager.Backend())
	}
}

func TestManager_SaveReplacesHistory(t *testing.T) {
	manager, _ := setupTestDB(t)
	ctx := context.Background()

	if err := manager.Save(ctx, sampleMessages()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := manager.Save(ctx, sampleMessages()[1:]); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	messages, err := manager.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("Expected 2 messages after replacement, got %d", len(messages))
	}
	want := sampleMessages()[1:]
	for i := range want {
		if messages[i].ID != want[i].ID || messages[i].Text != want[i].Text {
			t.Errorf("Message %d: got %+v, want %+v", i, messages[i], want[i])
		}
		if !messages[i].Timestamp.Equal(want[i].Timestamp) {
			t.Errorf("Message %d timestamp: got %v, want %v", i, messages[i].Timestamp, want[i].Timestamp)
		}
	}
	if messages[0].IsTeacher {
		t.Error("IsTeacher should round-trip as false")
	}
}

func TestManager_PersistsAcrossReopen(t *testing.T) {
	manager, path := setupTestDB(t)
	ctx := context.Background()

	if err := manager.Save(ctx, sampleMessages()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := manager.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := NewManager(ctx, DefaultConfig(path), zerolog.Nop())
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	messages, err := reopened.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(messages))
	}
	if !messages[0].IsTeacher || messages[0].UserName != "Derya" {
		t.Errorf("First message not restored: %+v", messages[0])
	}
}

func TestManager_ConcurrentSavesAreSerialized(t *testing.T) {
	manager, _ := setupTestDB(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- manager.Save(ctx, sampleMessages())
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Concurrent save failed: %v", err)
		}
	}

	messages, err := manager.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(messages) != 3 {
		t.Errorf("Expected 3 messages, got %d", len(messages))
	}
}

func TestManager_HealthCheck(t *testing.T) {
	manager, _ := setupTestDB(t)

	if err := manager.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck should pass: %v", err)
	}
}

func TestManager_SaveAfterClose(t *testing.T) {
	manager, _ := setupTestDB(t)

	if err := manager.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := manager.Close(); err != nil {
		t.Errorf("Second close should be a no-op: %v", err)
	}

	err := manager.Save(context.Background(), sampleMessages())
	if !errors.Is(err, ErrManagerClosed) {
		t.Errorf("Expected ErrManagerClosed, got %v", err)
	}
}

func TestMigrations_AreIdempotent(t *testing.T) {
	manager, _ := setupTestDB(t)

	if err := applyMigrations(context.Background(), manager.db); err != nil {
		t.Fatalf("Reapplying migrations should be a no-op: %v", err)
	}

	var n int
	if err := manager.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&n); err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if n != len(migrations) {
		t.Errorf("Expected %d applied migrations, got %d", len(migrations), n)
	}
}
