package syncer

import (
	"encoding/json"

	"liveclass/pkg/types"
)

// ChangeDocument replaces the session document. A nil state clears it and
// is relayed as null.
func (b *Broadcaster) ChangeDocument(connID string, ev types.PDFChange) error {
	state, err := b.teacherState(connID, ev.SessionID)
	if err != nil {
		return err
	}
	state.SetDocument(ev.PDFState)
	var payload any = json.RawMessage("null")
	if doc := state.Document(); doc != nil {
		payload = doc
	}
	b.rooms.Broadcast(ev.SessionID, types.EventPDFSync, payload, connID)
	return nil
}

// ChangePage moves the current page. Without a document only the relay
// happens.
func (b *Broadcaster) ChangePage(connID string, ev types.PDFPageChange) error {
	state, err := b.teacherState(connID, ev.SessionID)
	if err != nil {
		return err
	}
	state.SetPage(ev.Page)
	b.rooms.Broadcast(ev.SessionID, types.EventPDFPageSync, types.PageSync{Page: ev.Page}, connID)
	return nil
}

func (b *Broadcaster) ChangeZoom(connID string, ev types.PDFZoomChange) error {
	state, err := b.teacherState(connID, ev.SessionID)
	if err != nil {
		return err
	}
	state.SetZoom(ev.Zoom)
	b.rooms.Broadcast(ev.SessionID, types.EventPDFZoomSync, types.ZoomSync{Zoom: ev.Zoom}, connID)
	return nil
}

// Scroll is relayed only; scroll position is never part of the snapshot.
func (b *Broadcaster) Scroll(connID string, ev types.PDFScrollChange) error {
	if !b.participants.IsTeacherOf(connID, ev.SessionID) {
		return ErrNotTeacher
	}
	b.rooms.Broadcast(ev.SessionID, types.EventPDFScrollSync, types.ScrollSync{
		PercentX: ev.PercentX,
		PercentY: ev.PercentY,
	}, connID)
	return nil
}
