package roster

import (
	"sort"

	"liveclass/pkg/types"
)

type waitingEntry struct {
	w   types.WaitingEntrant
	seq uint64
}

// Waiting maps connection ids to students awaiting admission.
type Waiting struct {
	byID map[string]*waitingEntry
	seq  uint64
}

func NewWaiting() *Waiting {
	return &Waiting{byID: make(map[string]*waitingEntry)}
}

func (r *Waiting) Add(w types.WaitingEntrant) {
	r.seq++
	r.byID[w.ID] = &waitingEntry{w: w, seq: r.seq}
}

func (r *Waiting) Get(id string) (types.WaitingEntrant, bool) {
	e, ok := r.byID[id]
	if !ok {
		return types.WaitingEntrant{}, false
	}
	return e.w, true
}

func (r *Waiting) Remove(id string) (types.WaitingEntrant, bool) {
	e, ok := r.byID[id]
	if !ok {
		return types.WaitingEntrant{}, false
	}
	delete(r.byID, id)
	return e.w, true
}

// InSession lists the session's entrants in arrival order.
func (r *Waiting) InSession(sessionID string) []types.WaitingEntrant {
	entries := make([]*waitingEntry, 0)
	for _, e := range r.byID {
		if e.w.SessionID == sessionID {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	out := make([]types.WaitingEntrant, len(entries))
	for i, e := range entries {
		out[i] = e.w
	}
	return out
}

func (r *Waiting) ByName(sessionID, userName string) []types.WaitingEntrant {
	var out []types.WaitingEntrant
	for _, w := range r.InSession(sessionID) {
		if w.UserName == userName {
			out = append(out, w)
		}
	}
	return out
}

func (r *Waiting) Count(sessionID string) int {
	n := 0
	for _, e := range r.byID {
		if e.w.SessionID == sessionID {
			n++
		}
	}
	return n
}

func (r *Waiting) Len() int { return len(r.byID) }
