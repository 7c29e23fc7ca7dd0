// Package database is the sqlite chat store. All writes run on a single
// writer goroutine; reads go straight to the pool.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

var _ interfaces.ChatStore = (*Manager)(nil)

// Config holds the sqlite settings.
type Config struct {
	Path           string
	Timeout        time.Duration
	MaxConnections int
	RetryDelay     time.Duration
}

// DefaultConfig returns settings sized for one classroom server.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		Timeout:        30 * time.Second,
		MaxConnections: 10,
		RetryDelay:     5 * time.Second,
	}
}

// Manager implements interfaces.ChatStore on sqlite.
type Manager struct {
	db           *sql.DB
	config       Config
	log          zerolog.Logger
	writeChannel chan writeOperation
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex
}

type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// NewManager opens the database, applies migrations and starts the writer.
func NewManager(ctx context.Context, config Config, log zerolog.Logger) (*Manager, error) {
	db, err := sql.Open("sqlite3", config.Path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if config.MaxConnections > 0 {
		db.SetMaxOpenConns(config.MaxConnections)
	}
	db.SetConnMaxIdleTime(10 * time.Minute)

	if err := applySQLiteOptimizations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply SQLite optimizations: %w", err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	m := &Manager{
		db:           db,
		config:       config,
		log:          log,
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
	}
	m.wg.Add(1)
	go m.writeLoop()
	return m, nil
}

// writeLoop runs every write, retrying a failed one once.
func (m *Manager) writeLoop() {
	defer m.wg.Done()

	for {
		select {
		case op := <-m.writeChannel:
			err := op.operation(m.db)
			if err != nil && m.config.RetryDelay > 0 {
				m.log.Warn().Err(err).Dur("retry_in", m.config.RetryDelay).Msg("database write failed")
				select {
				case <-time.After(m.config.RetryDelay):
					err = op.operation(m.db)
				case <-m.shutdown:
				}
				if err != nil {
					m.log.Error().Err(err).Msg("database write failed after retry")
				}
			}
			op.result <- err

		case <-m.shutdown:
			m.log.Debug().Msg("database write loop shutting down")
			return
		}
	}
}

// executeWrite queues a write and waits for its result.
func (m *Manager) executeWrite(ctx context.Context, operation func(*sql.DB) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrManagerClosed
	}
	m.mu.RUnlock()

	timeout := m.config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	result := make(chan error, 1)
	select {
	case m.writeChannel <- writeOperation{operation: operation, result: result}:
	case <-timer.C:
		return ErrWriteTimeout
	case <-ctx.Done():
		return ctx.Err()
	case <-m.shutdown:
		return ErrManagerClosed
	}

	select {
	case err := <-result:
		return err
	case <-timer.C:
		return ErrWriteTimeout
	case <-m.shutdown:
		return ErrManagerClosed
	}
}

func (m *Manager) Backend() string { return "sqlite" }

// Load returns every stored message in insertion order.
func (m *Manager) Load(ctx context.Context) ([]types.ChatMessage, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, session_id, user_id, user_name, is_teacher, text, timestamp
		FROM chat_messages
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	messages := make([]types.ChatMessage, 0)
	for rows.Next() {
		var msg types.ChatMessage
		var ts string
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.UserID, &msg.UserName, &msg.IsTeacher, &msg.Text, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan chat message row: %w", err)
		}
		msg.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("failed to parse timestamp of %s: %w", msg.ID, err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat message rows: %w", err)
	}
	return messages, nil
}

// Save replaces the stored history with messages in one transaction.
func (m *Manager) Save(ctx context.Context, messages []types.ChatMessage) error {
	return m.executeWrite(ctx, func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, "DELETE FROM chat_messages"); err != nil {
			return fmt.Errorf("failed to clear chat messages: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO chat_messages (seq, id, session_id, user_id, user_name, is_teacher, text, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for i, msg := range messages {
			_, err := stmt.ExecContext(ctx,
				i+1,
				msg.ID,
				msg.SessionID,
				msg.UserID,
				msg.UserName,
				msg.IsTeacher,
				msg.Text,
				msg.Timestamp.UTC().Format(time.RFC3339Nano),
			)
			if err != nil {
				return fmt.Errorf("failed to insert chat message %s: %w", msg.ID, err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit chat history: %w", err)
		}
		return nil
	})
}

// HealthCheck validates connectivity and that the schema is readable.
func (m *Manager) HealthCheck(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	var n int
	if err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chat_messages").Scan(&n); err != nil {
		return fmt.Errorf("database read test failed: %w", err)
	}
	return nil
}

// Close stops the writer and closes the pool. Safe to call repeatedly.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.shutdown)
	m.wg.Wait()

	if err := m.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func applySQLiteOptimizations(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}
	return nil
}
