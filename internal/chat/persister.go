package chat

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"liveclass/internal/metrics"
	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

const saveTimeout = 10 * time.Second

// Persister serializes snapshot writes on one goroutine. Snapshots that
// arrive while a write is in flight collapse into the most recent one.
type Persister struct {
	store   interfaces.ChatStore
	log     zerolog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	pending []types.ChatMessage
	dirty   bool

	wake      chan struct{}
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// NewPersister starts the writer goroutine.
func NewPersister(store interfaces.ChatStore, log zerolog.Logger, m *metrics.Metrics) *Persister {
	p := &Persister{
		store:   store,
		log:     log,
		metrics: m,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go p.run()
	return p
}

// Submit schedules snapshot to be written, replacing any snapshot not yet
// written. It never blocks.
func (p *Persister) Submit(snapshot []types.ChatMessage) {
	p.mu.Lock()
	p.pending = snapshot
	p.dirty = true
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Close writes the last pending snapshot and stops the writer.
func (p *Persister) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
	})
	<-p.stopped
}

func (p *Persister) run() {
	defer close(p.stopped)
	for {
		select {
		case <-p.wake:
			p.flush()
		case <-p.done:
			p.flush()
			return
		}
	}
}

func (p *Persister) flush() {
	p.mu.Lock()
	if !p.dirty {
		p.mu.Unlock()
		return
	}
	snapshot := p.pending
	p.pending, p.dirty = nil, false
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := p.store.Save(ctx, snapshot); err != nil {
		p.metrics.PersistFailure()
		p.log.Error().Err(err).Int("messages", len(snapshot)).Msg("failed to persist chat history")
	}
}
