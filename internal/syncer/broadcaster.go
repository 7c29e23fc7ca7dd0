// Package syncer keeps the shared view of a session consistent: document
// position, annotations, focus mode, participant media flags and chat.
package syncer

import (
	"github.com/rs/zerolog"

	"liveclass/internal/metrics"
	"liveclass/internal/roster"
	"liveclass/internal/session"
	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

// ChatLog is the chat storage the broadcaster appends to.
type ChatLog interface {
	Post(author types.Participant, text string) (types.ChatMessage, error)
	Clear(sessionID string) int
}

// Broadcaster applies state changes on the hub goroutine and fans them out.
type Broadcaster struct {
	rooms        interfaces.Rooms
	participants *roster.Participants
	sessions     *session.Store
	chat         ChatLog
	log          zerolog.Logger
	metrics      *metrics.Metrics
}

func NewBroadcaster(
	rooms interfaces.Rooms,
	participants *roster.Participants,
	sessions *session.Store,
	chat ChatLog,
	log zerolog.Logger,
	m *metrics.Metrics,
) *Broadcaster {
	return &Broadcaster{
		rooms:        rooms,
		participants: participants,
		sessions:     sessions,
		chat:         chat,
		log:          log,
		metrics:      m,
	}
}

// teacherState authorizes connID as the teacher of sessionID and returns
// the session, creating it on first use.
func (b *Broadcaster) teacherState(connID, sessionID string) (*session.State, error) {
	if !b.participants.IsTeacherOf(connID, sessionID) {
		return nil, ErrNotTeacher
	}
	return b.sessions.GetOrCreate(sessionID)
}

// ToggleFocus stores the focus flag and tells the whole session, teacher
// included.
func (b *Broadcaster) ToggleFocus(connID string, ev types.ToggleFocusMode) error {
	state, err := b.teacherState(connID, ev.SessionID)
	if err != nil {
		return err
	}
	state.FocusMode = ev.Enabled
	b.rooms.Broadcast(ev.SessionID, types.EventFocusModeSync, types.FocusSync{Enabled: ev.Enabled})
	b.log.Info().Str("session", ev.SessionID).Bool("enabled", ev.Enabled).Msg("focus mode changed")
	return nil
}
