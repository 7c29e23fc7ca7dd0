// Package testutil holds in-memory fakes shared by package tests.
package testutil

import (
	"encoding/json"
	"sort"
	"sync"

	"liveclass/pkg/interfaces"
)

var _ interfaces.Rooms = (*Rooms)(nil)

// Frame is one event delivered to one connection.
type Frame struct {
	To    string
	Event string
	Data  json.RawMessage
}

// Rooms records every delivery instead of writing to sockets. Payloads are
// encoded at emit time, like the real registry.
type Rooms struct {
	mu           sync.Mutex
	conns        map[string]bool // id -> live
	rooms        map[string]map[string]bool
	frames       []Frame
	disconnected []string
}

func NewRooms(ids ...string) *Rooms {
	r := &Rooms{
		conns: make(map[string]bool),
		rooms: make(map[string]map[string]bool),
	}
	r.Connect(ids...)
	return r
}

// Connect registers live connections.
func (r *Rooms) Connect(ids ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		r.conns[id] = true
	}
}

// Kill marks a connection as closed without removing it, the state a
// connection is in between its transport dying and cleanup running.
func (r *Rooms) Kill(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[id]; ok {
		r.conns[id] = false
	}
}

// Remove forgets a connection and its memberships.
func (r *Rooms) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, id)
	for _, members := range r.rooms {
		delete(members, id)
	}
}

func (r *Rooms) IsLive(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conns[id]
}

func (r *Rooms) Emit(connID, event string, data any) {
	raw := mustEncode(data)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conns[connID] {
		r.frames = append(r.frames, Frame{To: connID, Event: event, Data: raw})
	}
}

func (r *Rooms) Broadcast(room, event string, data any, except ...string) {
	raw := mustEncode(data)
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.rooms[room]))
	for id := range r.rooms[room] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if !r.conns[id] || containsID(except, id) {
			continue
		}
		r.frames = append(r.frames, Frame{To: id, Event: event, Data: raw})
	}
}

func (r *Rooms) Join(connID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[connID]; !ok {
		return
	}
	if r.rooms[room] == nil {
		r.rooms[room] = make(map[string]bool)
	}
	r.rooms[room][connID] = true
}

func (r *Rooms) Leave(connID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms[room], connID)
}

func (r *Rooms) Members(room string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.rooms[room]))
	for id := range r.rooms[room] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Rooms) Disconnect(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnected = append(r.disconnected, connID)
	if _, ok := r.conns[connID]; ok {
		r.conns[connID] = false
	}
}

// Disconnected lists ids passed to Disconnect, in call order.
func (r *Rooms) Disconnected() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.disconnected...)
}

// Frames returns every recorded delivery.
func (r *Rooms) Frames() []Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Frame(nil), r.frames...)
}

// Events lists the event names delivered to id, in order.
func (r *Rooms) Events(id string) []string {
	var out []string
	for _, f := range r.Frames() {
		if f.To == id {
			out = append(out, f.Event)
		}
	}
	return out
}

// Count reports how many times event was delivered to id.
func (r *Rooms) Count(id, event string) int {
	n := 0
	for _, f := range r.Frames() {
		if f.To == id && f.Event == event {
			n++
		}
	}
	return n
}

// Last decodes the payload of the most recent event delivered to id into
// v and reports whether one was found.
func (r *Rooms) Last(id, event string, v any) bool {
	frames := r.Frames()
	for i := len(frames) - 1; i >= 0; i-- {
		if frames[i].To == id && frames[i].Event == event {
			if v != nil {
				if err := json.Unmarshal(frames[i].Data, v); err != nil {
					panic(err)
				}
			}
			return true
		}
	}
	return false
}

// Reset drops recorded frames and disconnects.
func (r *Rooms) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = nil
	r.disconnected = nil
}

func mustEncode(data any) json.RawMessage {
	raw, err := json.Marshal(data)
	if err != nil {
		panic(err)
	}
	return raw
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
