package syncer

import (
	"fmt"

	"liveclass/pkg/types"
)

// Draw applies one whiteboard event and relays it unchanged. Durable
// actions are appended to their page log; moves are throttled per stroke;
// a stroke end turns into exactly one durable path.
func (b *Broadcaster) Draw(connID string, ev types.WhiteboardDraw) error {
	state, err := b.teacherState(connID, ev.SessionID)
	if err != nil {
		return err
	}

	switch d := ev.Draw.(type) {
	case types.PathAction:
		state.Append(d)
	case types.TextAction:
		state.Append(d)
	case types.SymbolAction:
		state.Append(d)
	case types.StrokeStart:
		state.StartStroke(connID, d)
	case types.StrokeMove:
		if !state.MoveStroke(connID, d) {
			return nil
		}
	case types.StrokeEnd:
		path, ok := state.EndStroke(connID, d)
		if !ok {
			return fmt.Errorf("%w: stroke %s", ErrStrokeRejected, d.StrokeID)
		}
		state.Append(path)
	case types.Scroll:
	default:
		return fmt.Errorf("%w: %T", types.ErrUnknownDrawType, ev.Draw)
	}

	b.rooms.Broadcast(ev.SessionID, types.EventWhiteboardDraw, relayPayload(ev), connID)
	return nil
}

// relayPayload is the event exactly as the client sent it.
func relayPayload(ev types.WhiteboardDraw) any {
	if len(ev.Raw) > 0 {
		return ev.Raw
	}
	return ev.Draw
}

// Clear empties one page when a page index is given, otherwise every page.
func (b *Broadcaster) Clear(connID string, ev types.WhiteboardClear) error {
	state, err := b.teacherState(connID, ev.SessionID)
	if err != nil {
		return err
	}
	if ev.PageIndex != nil {
		state.ClearPage(*ev.PageIndex)
	} else {
		state.ClearAll()
	}
	b.rooms.Broadcast(ev.SessionID, types.EventWhiteboardClear, types.ClearScope{PageIndex: ev.PageIndex}, connID)
	return nil
}
