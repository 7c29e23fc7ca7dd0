package roster

import (
	"sort"

	"liveclass/pkg/types"
)

type participantEntry struct {
	p   types.Participant
	seq uint64
}

// Participants maps connection ids to admitted participants. Like the
// session store it belongs to the hub goroutine.
type Participants struct {
	byID map[string]*participantEntry
	seq  uint64
}

func NewParticipants() *Participants {
	return &Participants{byID: make(map[string]*participantEntry)}
}

// Add stores p under p.ID, replacing any previous entry for that id.
func (r *Participants) Add(p types.Participant) {
	r.seq++
	r.byID[p.ID] = &participantEntry{p: p, seq: r.seq}
}

func (r *Participants) Get(id string) (types.Participant, bool) {
	e, ok := r.byID[id]
	if !ok {
		return types.Participant{}, false
	}
	return e.p, true
}

// Update applies fn to the stored participant and returns the result.
func (r *Participants) Update(id string, fn func(p *types.Participant)) (types.Participant, error) {
	e, ok := r.byID[id]
	if !ok {
		return types.Participant{}, ErrNotFound
	}
	fn(&e.p)
	return e.p, nil
}

func (r *Participants) Remove(id string) (types.Participant, bool) {
	e, ok := r.byID[id]
	if !ok {
		return types.Participant{}, false
	}
	delete(r.byID, id)
	return e.p, true
}

// InSession lists the session's participants in admission order.
func (r *Participants) InSession(sessionID string) []types.Participant {
	entries := make([]*participantEntry, 0)
	for _, e := range r.byID {
		if e.p.SessionID == sessionID {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	out := make([]types.Participant, len(entries))
	for i, e := range entries {
		out[i] = e.p
	}
	return out
}

// Approved lists approved participants of the session except the given
// connection, in admission order.
func (r *Participants) Approved(sessionID, except string) []types.Participant {
	all := r.InSession(sessionID)
	out := make([]types.Participant, 0, len(all))
	for _, p := range all {
		if p.IsApproved && p.ID != except {
			out = append(out, p)
		}
	}
	return out
}

// ByName returns every participant of the session using userName.
func (r *Participants) ByName(sessionID, userName string) []types.Participant {
	var out []types.Participant
	for _, p := range r.InSession(sessionID) {
		if p.UserName == userName {
			out = append(out, p)
		}
	}
	return out
}

func (r *Participants) Count(sessionID string) int {
	n := 0
	for _, e := range r.byID {
		if e.p.SessionID == sessionID {
			n++
		}
	}
	return n
}

// IsTeacherOf reports whether id is a teacher participant of sessionID.
func (r *Participants) IsTeacherOf(id, sessionID string) bool {
	p, ok := r.Get(id)
	return ok && p.IsTeacher && p.SessionID == sessionID
}

func (r *Participants) Len() int { return len(r.byID) }
