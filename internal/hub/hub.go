// Package hub owns the session state. A single goroutine applies every
// connection lifecycle change and inbound event in arrival order, so the
// registries and stores it drives need no locking.
package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"liveclass/internal/admission"
	"liveclass/internal/metrics"
	"liveclass/internal/router"
	"liveclass/internal/signaling"
	"liveclass/internal/syncer"
	"liveclass/internal/websocket"
	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

var _ websocket.Sink = (*Hub)(nil)

// Components are the collaborators the hub dispatches to.
type Components struct {
	Registry  *websocket.Registry
	Router    *router.Router
	Admission *admission.Controller
	Relay     *signaling.Relay
	Sync      *syncer.Broadcaster
}

type Hub struct {
	eventChannel      chan inbound
	registerChannel   chan registration
	unregisterChannel chan string
	doChannel         chan func()
	shutdownChannel   chan struct{}
	stopped           chan struct{}

	Components
	log     zerolog.Logger
	metrics *metrics.Metrics

	running bool
	mu      sync.RWMutex
}

type inbound struct {
	connID string
	event  types.Event
}

type registration struct {
	conn   interfaces.Connection
	result chan error
}

func NewHub(c Components, log zerolog.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		eventChannel:      make(chan inbound, 1000),
		registerChannel:   make(chan registration, 100),
		unregisterChannel: make(chan string, 100),
		doChannel:         make(chan func()),
		Components:        c,
		log:               log,
		metrics:           m,
	}
}

// Start runs the hub loop until Stop or ctx cancellation.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return ErrHubAlreadyRunning
	}
	h.running = true
	h.shutdownChannel = make(chan struct{})
	h.stopped = make(chan struct{})

	h.log.Info().Msg("starting hub")
	go h.run(ctx, h.shutdownChannel, h.stopped)
	return nil
}

// Stop ends the loop and waits for the event being handled to finish.
func (h *Hub) Stop() error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return ErrHubNotRunning
	}
	h.running = false
	close(h.shutdownChannel)
	stopped := h.stopped
	h.mu.Unlock()

	<-stopped
	h.log.Info().Msg("hub stopped")
	return nil
}

func (h *Hub) Running() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

// Do runs fn on the hub goroutine and waits for it. HTTP handlers read
// session state this way.
func (h *Hub) Do(ctx context.Context, fn func()) error {
	shutdown, err := h.shutdown()
	if err != nil {
		return err
	}

	done := make(chan struct{})
	select {
	case h.doChannel <- func() { defer close(done); fn() }:
	case <-ctx.Done():
		return ctx.Err()
	case <-shutdown:
		return ErrHubNotRunning
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connect registers a new connection before its first frame is read.
func (h *Hub) Connect(conn *websocket.Connection) error {
	return h.register(conn)
}

// Receive decodes on the caller's goroutine and queues the event. A full
// queue blocks the connection's reader, not the hub.
func (h *Hub) Receive(conn *websocket.Connection, data []byte) {
	h.receive(conn.ID(), data)
}

func (h *Hub) Disconnect(conn *websocket.Connection) {
	h.unregister(conn.ID())
}

func (h *Hub) register(conn interfaces.Connection) error {
	shutdown, err := h.shutdown()
	if err != nil {
		return err
	}
	result := make(chan error, 1)
	select {
	case h.registerChannel <- registration{conn: conn, result: result}:
	case <-shutdown:
		return ErrHubNotRunning
	}
	select {
	case err := <-result:
		return err
	case <-shutdown:
		return ErrHubNotRunning
	}
}

func (h *Hub) receive(connID string, data []byte) {
	ev, name, err := h.Router.Decode(connID, data)
	if err != nil {
		h.rejectFrame(connID, name, err)
		return
	}

	shutdown, err := h.shutdown()
	if err != nil {
		return
	}
	select {
	case h.eventChannel <- inbound{connID: connID, event: ev}:
	case <-shutdown:
	}
}

func (h *Hub) unregister(connID string) {
	shutdown, err := h.shutdown()
	if err != nil {
		return
	}
	select {
	case h.unregisterChannel <- connID:
	case <-shutdown:
	}
}

func (h *Hub) rejectFrame(connID, name string, err error) {
	if errors.Is(err, router.ErrRateLimited) {
		h.metrics.RateLimited()
		h.log.Warn().Str("conn", connID).Str("event", name).Msg("rate limit exceeded")
		h.Registry.Emit(connID, types.EventError, types.ErrorNotice{Event: name, Message: "rate limit exceeded"})
		return
	}
	h.metrics.DecodeError()
	h.log.Debug().Err(err).Str("conn", connID).Str("event", name).Msg("frame rejected")
}

func (h *Hub) shutdown() (<-chan struct{}, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.running {
		return nil, ErrHubNotRunning
	}
	return h.shutdownChannel, nil
}

func (h *Hub) run(ctx context.Context, shutdown <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	for {
		select {
		case reg := <-h.registerChannel:
			reg.result <- h.Registry.Register(reg.conn)

		case connID := <-h.unregisterChannel:
			h.handleDisconnect(connID)

		case in := <-h.eventChannel:
			h.dispatch(in)

		case fn := <-h.doChannel:
			fn()

		case <-shutdown:
			return

		case <-ctx.Done():
			h.log.Info().Msg("hub context cancelled")
			h.mu.Lock()
			if h.running {
				h.running = false
				close(h.shutdownChannel)
			}
			h.mu.Unlock()
			return
		}
	}
}

// handleDisconnect runs cleanup at most once per connection.
func (h *Hub) handleDisconnect(connID string) {
	if !h.Registry.Unregister(connID) {
		return
	}
	h.Router.Forget(connID)
	h.Admission.Disconnect(connID)
	h.log.Debug().Str("conn", connID).Msg("connection cleaned up")
}

func (h *Hub) dispatch(in inbound) {
	if _, ok := h.Registry.Get(in.connID); !ok {
		return
	}

	start := time.Now()
	err := h.handle(in.connID, in.event)
	h.metrics.Event(in.event.Name(), time.Since(start).Seconds())
	if err != nil {
		h.log.Debug().Err(err).Str("conn", in.connID).Str("event", in.event.Name()).Msg("event not applied")
	}
}

func (h *Hub) handle(connID string, ev types.Event) error {
	switch e := ev.(type) {
	case *types.JoinRoom:
		return h.Admission.Join(connID, *e)
	case *types.LeaveRoom:
		return h.Admission.Leave(connID, *e)
	case *types.ReconnectRequest:
		return h.Admission.Reconnect(connID, *e)
	case *types.RequestSync:
		return h.Admission.Resync(connID, *e)
	case *types.AdmitStudent:
		return h.Admission.Admit(connID, *e)
	case *types.DenyStudent:
		return h.Admission.Deny(connID, *e)

	case *types.SignalOffer:
		return h.Relay.Offer(connID, *e)
	case *types.SignalAnswer:
		return h.Relay.Answer(connID, *e)
	case *types.SignalIceCandidate:
		return h.Relay.Candidate(connID, *e)

	case *types.ToggleFocusMode:
		return h.Sync.ToggleFocus(connID, *e)
	case *types.PDFChange:
		return h.Sync.ChangeDocument(connID, *e)
	case *types.PDFPageChange:
		return h.Sync.ChangePage(connID, *e)
	case *types.PDFZoomChange:
		return h.Sync.ChangeZoom(connID, *e)
	case *types.PDFScrollChange:
		return h.Sync.Scroll(connID, *e)
	case *types.WhiteboardDraw:
		return h.Sync.Draw(connID, *e)
	case *types.WhiteboardClear:
		return h.Sync.Clear(connID, *e)

	case *types.ToggleAudio:
		return h.Sync.ToggleAudio(connID, *e)
	case *types.ToggleVideo:
		return h.Sync.ToggleVideo(connID, *e)
	case *types.RaiseHand:
		return h.Sync.RaiseHand(connID, *e)
	case *types.LowerHand:
		return h.Sync.LowerHand(connID, *e)

	case *types.ChatPost:
		return h.Sync.PostChat(connID, *e)
	case *types.ChatClear:
		return h.Sync.ClearChat(connID, *e)
	}
	return fmt.Errorf("%w: %s", router.ErrUnknownEvent, ev.Name())
}
