package websocket

import (
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"liveclass/internal/metrics"
	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

var _ interfaces.Rooms = (*Registry)(nil)

// Registry tracks live connections and their room memberships. It is the
// process's interfaces.Rooms implementation.
type Registry struct {
	mu       sync.RWMutex
	conns    map[string]interfaces.Connection // connID -> connection
	rooms    map[string]map[string]struct{}   // room -> connIDs
	memberOf map[string]map[string]struct{}   // connID -> rooms
	log      zerolog.Logger
	metrics  *metrics.Metrics
}

func NewRegistry(log zerolog.Logger, m *metrics.Metrics) *Registry {
	return &Registry{
		conns:    make(map[string]interfaces.Connection),
		rooms:    make(map[string]map[string]struct{}),
		memberOf: make(map[string]map[string]struct{}),
		log:      log,
		metrics:  m,
	}
}

// Register adds a connection. Ids are unique for the process lifetime, so
// a second registration of the same id is rejected.
func (r *Registry) Register(conn interfaces.Connection) error {
	if conn == nil {
		return ErrNilConnection
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[conn.ID()]; exists {
		return ErrDuplicateConnection
	}
	r.conns[conn.ID()] = conn
	r.metrics.ConnectionOpened()
	return nil
}

// Unregister removes the connection and every room membership. It reports
// false when the id was not registered, which makes disconnect handling
// run at most once per connection.
func (r *Registry) Unregister(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[connID]; !exists {
		return false
	}
	delete(r.conns, connID)
	for room := range r.memberOf[connID] {
		r.removeMember(room, connID)
	}
	delete(r.memberOf, connID)
	r.metrics.ConnectionClosed()
	return true
}

func (r *Registry) Get(connID string) (interfaces.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[connID]
	return conn, ok
}

// IsLive reports whether connID is registered and its transport is open.
func (r *Registry) IsLive(connID string) bool {
	conn, ok := r.Get(connID)
	return ok && !conn.IsClosed()
}

func (r *Registry) Join(connID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[connID]; !ok {
		return
	}
	if r.rooms[room] == nil {
		r.rooms[room] = make(map[string]struct{})
	}
	r.rooms[room][connID] = struct{}{}
	if r.memberOf[connID] == nil {
		r.memberOf[connID] = make(map[string]struct{})
	}
	r.memberOf[connID][room] = struct{}{}
}

func (r *Registry) Leave(connID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeMember(room, connID)
	if rooms, ok := r.memberOf[connID]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(r.memberOf, connID)
		}
	}
}

// removeMember expects r.mu to be held.
func (r *Registry) removeMember(room, connID string) {
	members, ok := r.rooms[room]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
}

// Members returns the room's connection ids in sorted order.
func (r *Registry) Members(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.rooms[room]))
	for id := range r.rooms[room] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Emit encodes the frame immediately, so later mutations of data are not
// observed by the receiver.
func (r *Registry) Emit(connID, event string, data any) {
	frame, ok := r.encode(event, data)
	if !ok {
		return
	}
	conn, exists := r.Get(connID)
	if !exists {
		return
	}
	r.deliver(conn, event, frame)
}

// Broadcast encodes once and queues the frame for every member of room
// not listed in except.
func (r *Registry) Broadcast(room, event string, data any, except ...string) {
	frame, ok := r.encode(event, data)
	if !ok {
		return
	}

	r.mu.RLock()
	targets := make([]interfaces.Connection, 0, len(r.rooms[room]))
	for id := range r.rooms[room] {
		if contains(except, id) {
			continue
		}
		if conn, exists := r.conns[id]; exists {
			targets = append(targets, conn)
		}
	}
	r.mu.RUnlock()

	for _, conn := range targets {
		r.deliver(conn, event, frame)
	}
}

// Disconnect flushes what was already queued for connID and then closes
// it. Roster cleanup follows when the read loop observes the close.
func (r *Registry) Disconnect(connID string) {
	conn, ok := r.Get(connID)
	if !ok {
		return
	}
	if f, ok := conn.(interface{ CloseAfterFlush() }); ok {
		f.CloseAfterFlush()
		return
	}
	_ = conn.Close()
}

// CloseAll closes every registered connection.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	conns := make([]interfaces.Connection, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	for _, c := range conns {
		_ = c.Close()
	}
}

// Stats reports connection and room counts.
func (r *Registry) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return map[string]int{
		"total_connections": len(r.conns),
		"rooms":             len(r.rooms),
	}
}

func (r *Registry) encode(event string, data any) ([]byte, bool) {
	frame, err := json.Marshal(types.Frame{Event: event, Data: data})
	if err != nil {
		r.log.Error().Err(err).Str("event", event).Msg("failed to encode frame")
		return nil, false
	}
	return frame, true
}

func (r *Registry) deliver(conn interfaces.Connection, event string, frame []byte) {
	err := conn.Send(frame)
	if err == nil || errors.Is(err, ErrConnectionClosed) {
		return
	}
	r.log.Warn().Err(err).Str("conn", conn.ID()).Str("event", event).Msg("dropping slow connection")
	r.metrics.BackpressureDisconnect()
	abort(conn)
}

// abort drops conn without waiting on its socket.
func abort(conn interfaces.Connection) {
	if a, ok := conn.(interface{ Abort() }); ok {
		a.Abort()
		return
	}
	_ = conn.Close()
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
