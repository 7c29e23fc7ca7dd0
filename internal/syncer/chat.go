package syncer

import (
	"errors"

	"liveclass/internal/chat"
	"liveclass/pkg/types"
)

// PostChat appends a message from an active participant and broadcasts it
// to the whole session, sender included. Over-long messages are answered
// with an error event; empty ones are dropped.
func (b *Broadcaster) PostChat(connID string, ev types.ChatPost) error {
	p, ok := b.participants.Get(connID)
	if !ok || !p.IsApproved {
		return ErrNotParticipant
	}
	msg, err := b.chat.Post(p, ev.Text)
	if err != nil {
		if errors.Is(err, chat.ErrMessageTooLong) {
			b.rooms.Emit(connID, types.EventError, types.ErrorNotice{Event: types.EventChatMessage, Message: err.Error()})
		}
		return err
	}
	b.rooms.Broadcast(p.SessionID, types.EventChatMessage, msg)
	return nil
}

func (b *Broadcaster) ClearChat(connID string, ev types.ChatClear) error {
	if !b.participants.IsTeacherOf(connID, ev.SessionID) {
		return ErrNotTeacher
	}
	removed := b.chat.Clear(ev.SessionID)
	b.rooms.Broadcast(ev.SessionID, types.EventChatCleared, types.ChatCleared{SessionID: ev.SessionID})
	b.log.Info().Str("session", ev.SessionID).Int("removed", removed).Msg("chat cleared")
	return nil
}
