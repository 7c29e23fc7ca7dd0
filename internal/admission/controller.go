// Package admission decides who gets into a session: teacher joins, the
// waiting room, admit and deny, reconnection and disconnect cleanup.
package admission

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"liveclass/internal/metrics"
	"liveclass/internal/roster"
	"liveclass/internal/session"
	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

// ChatHistory supplies the chat part of the join snapshot.
type ChatHistory interface {
	History(sessionID string) []types.ChatMessage
}

// Controller runs on the hub goroutine and shares its registries with the
// other controllers.
type Controller struct {
	rooms        interfaces.Rooms
	participants *roster.Participants
	waiting      *roster.Waiting
	sessions     *session.Store
	chat         ChatHistory
	log          zerolog.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
}

func NewController(
	rooms interfaces.Rooms,
	participants *roster.Participants,
	waiting *roster.Waiting,
	sessions *session.Store,
	chat ChatHistory,
	log zerolog.Logger,
	m *metrics.Metrics,
) *Controller {
	return &Controller{
		rooms:        rooms,
		participants: participants,
		waiting:      waiting,
		sessions:     sessions,
		chat:         chat,
		log:          log,
		metrics:      m,
		now:          time.Now,
	}
}

// Join handles join-room. Teachers enter directly; students are parked in
// the session's waiting room until a teacher decides.
func (c *Controller) Join(connID string, ev types.JoinRoom) error {
	if err := c.checkName(connID, ev.SessionID, ev.UserName); err != nil {
		return err
	}
	c.releaseForJoin(connID, ev.SessionID, ev.IsTeacher)
	c.evictStale(connID, ev.SessionID, ev.UserName)

	if ev.IsTeacher {
		return c.joinTeacher(connID, ev)
	}

	entrant := types.WaitingEntrant{
		ID:          connID,
		UserName:    ev.UserName,
		SessionID:   ev.SessionID,
		RequestedAt: c.now().UTC().Format(time.RFC3339),
	}
	c.waiting.Add(entrant)
	c.rooms.Join(connID, types.WaitingRoom(ev.SessionID))
	c.rooms.Emit(connID, types.EventWaitingForApproval, types.Notice{Message: msgWaitingForApproval})
	c.rooms.Broadcast(ev.SessionID, types.EventStudentWaiting, entrant, connID)

	c.metrics.Admission("waiting")
	c.log.Info().Str("conn", connID).Str("session", ev.SessionID).Str("user", ev.UserName).Msg("student waiting for approval")
	return nil
}

func (c *Controller) joinTeacher(connID string, ev types.JoinRoom) error {
	state, err := c.sessions.GetOrCreate(ev.SessionID)
	if err != nil {
		return err
	}

	c.participants.Add(types.Participant{
		ID:         connID,
		UserName:   ev.UserName,
		IsTeacher:  true,
		SessionID:  ev.SessionID,
		IsApproved: true,
	})
	c.rooms.Join(connID, ev.SessionID)
	c.rooms.Broadcast(ev.SessionID, types.EventUserJoined, types.UserRef{
		ID:        connID,
		UserName:  ev.UserName,
		IsTeacher: true,
	}, connID)

	c.sendSnapshot(connID, ev.SessionID, true)
	c.rooms.Emit(connID, types.EventJoinApproved, types.Admitted{
		ID:          connID,
		ResumeToken: state.IssueToken(ev.UserName, true),
	})

	c.metrics.Admission("teacher")
	c.log.Info().Str("conn", connID).Str("session", ev.SessionID).Str("user", ev.UserName).Msg("teacher joined")
	return nil
}

// Admit moves a waiting entrant into the session.
func (c *Controller) Admit(teacherID string, ev types.AdmitStudent) error {
	if !c.participants.IsTeacherOf(teacherID, ev.SessionID) {
		return ErrNotTeacher
	}
	entrant, ok := c.waiting.Get(ev.StudentSocketID)
	if !ok || entrant.SessionID != ev.SessionID {
		return ErrEntrantNotWaiting
	}

	state, err := c.sessions.GetOrCreate(ev.SessionID)
	if err != nil {
		return err
	}
	if state.MaxParticipants > 0 && c.participants.Count(ev.SessionID) >= state.MaxParticipants {
		c.rooms.Emit(teacherID, types.EventAdmissionError, types.Notice{Message: msgSessionFull})
		c.metrics.Admission("full")
		return fmt.Errorf("%w: %d participants", ErrSessionFull, state.MaxParticipants)
	}

	id := entrant.ID
	c.waiting.Remove(id)
	c.rooms.Broadcast(ev.SessionID, types.EventWaitingStudentLeft, types.IDRef{ID: id})

	c.participants.Add(types.Participant{
		ID:         id,
		UserName:   entrant.UserName,
		SessionID:  ev.SessionID,
		IsApproved: true,
	})
	c.rooms.Leave(id, types.WaitingRoom(ev.SessionID))
	c.rooms.Join(id, ev.SessionID)

	c.rooms.Emit(id, types.EventAdmissionApproved, types.Admitted{
		ID:          id,
		Message:     msgAdmitted,
		ResumeToken: state.IssueToken(entrant.UserName, false),
	})
	c.sendSnapshot(id, ev.SessionID, false)
	c.rooms.Broadcast(ev.SessionID, types.EventUserJoined, types.UserRef{
		ID:       id,
		UserName: entrant.UserName,
	})

	c.metrics.Admission("approved")
	c.log.Info().Str("conn", id).Str("session", ev.SessionID).Str("user", entrant.UserName).Msg("student admitted")
	return nil
}

// Deny rejects a waiting entrant and closes its connection once the
// notice has been flushed.
func (c *Controller) Deny(teacherID string, ev types.DenyStudent) error {
	if !c.participants.IsTeacherOf(teacherID, ev.SessionID) {
		return ErrNotTeacher
	}
	entrant, ok := c.waiting.Get(ev.StudentSocketID)
	if !ok || entrant.SessionID != ev.SessionID {
		return ErrEntrantNotWaiting
	}

	c.waiting.Remove(entrant.ID)
	c.rooms.Leave(entrant.ID, types.WaitingRoom(ev.SessionID))
	c.rooms.Broadcast(ev.SessionID, types.EventWaitingStudentLeft, types.IDRef{ID: entrant.ID})
	c.rooms.Emit(entrant.ID, types.EventAdmissionDenied, types.Notice{Message: msgDenied})
	c.rooms.Disconnect(entrant.ID)

	c.metrics.Admission("denied")
	c.log.Info().Str("conn", entrant.ID).Str("session", ev.SessionID).Str("user", entrant.UserName).Msg("student denied")
	return nil
}

// Resync re-sends the join snapshot to a participant of the session.
func (c *Controller) Resync(connID string, ev types.RequestSync) error {
	p, ok := c.participants.Get(connID)
	if !ok || p.SessionID != ev.SessionID {
		return ErrNotInSession
	}
	c.sendSnapshot(connID, ev.SessionID, p.IsTeacher)
	return nil
}

// Reconnect re-admits a returning client that presents a valid resume
// token. Without one it falls back to Join.
func (c *Controller) Reconnect(connID string, ev types.ReconnectRequest) error {
	state, ok := c.sessions.Get(ev.SessionID)
	if !ok || !state.RedeemToken(ev.ResumeToken, ev.UserName, ev.IsTeacher) {
		c.log.Debug().Str("conn", connID).Str("session", ev.SessionID).Msg("reconnect without valid token, joining")
		return c.Join(connID, types.JoinRoom{
			SessionID: ev.SessionID,
			UserName:  ev.UserName,
			IsTeacher: ev.IsTeacher,
		})
	}

	c.release(connID)
	c.evictHolders(connID, ev.SessionID, ev.UserName)

	c.participants.Add(types.Participant{
		ID:         connID,
		UserName:   ev.UserName,
		IsTeacher:  ev.IsTeacher,
		SessionID:  ev.SessionID,
		IsApproved: true,
	})
	c.rooms.Join(connID, ev.SessionID)
	c.rooms.Emit(connID, types.EventReconnectApproved, types.Admitted{
		ID:          connID,
		ResumeToken: state.IssueToken(ev.UserName, ev.IsTeacher),
	})
	c.sendSnapshot(connID, ev.SessionID, ev.IsTeacher)
	c.rooms.Broadcast(ev.SessionID, types.EventUserReconnected, types.UserRef{
		ID:        connID,
		UserName:  ev.UserName,
		IsTeacher: ev.IsTeacher,
	}, connID)

	c.metrics.Admission("reconnected")
	c.log.Info().Str("conn", connID).Str("session", ev.SessionID).Str("user", ev.UserName).Msg("participant reconnected")
	return nil
}

// Leave is a voluntary exit: cleanup as on disconnect, then the
// connection is closed.
func (c *Controller) Leave(connID string, ev types.LeaveRoom) error {
	if !c.inSession(connID, ev.SessionID) {
		return ErrNotInSession
	}
	c.release(connID)
	c.rooms.Disconnect(connID)
	return nil
}

// Disconnect removes every trace of connID and tells the session. It
// reports whether the connection was known.
func (c *Controller) Disconnect(connID string) bool {
	return c.release(connID)
}

// sendSnapshot emits the late-joiner state sequence. Only
// existing-participants is unconditional.
func (c *Controller) sendSnapshot(connID, sessionID string, isTeacher bool) {
	c.rooms.Emit(connID, types.EventExistingParticipants, c.participants.Approved(sessionID, connID))

	if isTeacher {
		if waiting := c.waiting.InSession(sessionID); len(waiting) > 0 {
			c.rooms.Emit(connID, types.EventWaitingStudents, waiting)
		}
	}

	if state, ok := c.sessions.Get(sessionID); ok {
		if doc := state.Document(); doc != nil {
			c.rooms.Emit(connID, types.EventPDFSync, doc)
		}
		if state.FocusMode {
			c.rooms.Emit(connID, types.EventFocusModeSync, types.FocusSync{Enabled: true})
		}
		if state.ActionCount() > 0 {
			c.rooms.Emit(connID, types.EventWhiteboardSync, types.WhiteboardSync{History: state.History()})
		}
	}

	if c.chat != nil {
		if history := c.chat.History(sessionID); len(history) > 0 {
			c.rooms.Emit(connID, types.EventChatHistory, history)
		}
	}
}

// checkName enforces one connected holder per display name. A live holder
// on another connection rejects the join before anything changes; only the
// requester hears about it.
func (c *Controller) checkName(connID, sessionID, userName string) error {
	for _, p := range c.participants.ByName(sessionID, userName) {
		if p.ID != connID && c.rooms.IsLive(p.ID) {
			c.rooms.Emit(connID, types.EventJoinError, types.Notice{Message: msgDuplicateParticipant})
			c.metrics.Admission("duplicate")
			return fmt.Errorf("%w: %q in session %s", ErrDuplicateName, userName, sessionID)
		}
	}
	for _, w := range c.waiting.ByName(sessionID, userName) {
		if w.ID != connID && c.rooms.IsLive(w.ID) {
			c.rooms.Emit(connID, types.EventJoinError, types.Notice{Message: msgDuplicateWaiting})
			c.metrics.Admission("duplicate")
			return fmt.Errorf("%w: %q waiting in session %s", ErrDuplicateName, userName, sessionID)
		}
	}
	return nil
}

// evictStale removes holders of userName whose connection is gone. Run it
// after checkName.
func (c *Controller) evictStale(connID, sessionID, userName string) {
	for _, p := range c.participants.ByName(sessionID, userName) {
		if p.ID == connID {
			continue
		}
		c.log.Info().Str("conn", p.ID).Str("user", userName).Msg("evicting stale participant")
		c.removeParticipant(p)
	}
	for _, w := range c.waiting.ByName(sessionID, userName) {
		if w.ID == connID {
			continue
		}
		c.log.Info().Str("conn", w.ID).Str("user", userName).Msg("evicting stale waiting entrant")
		c.removeEntrant(w)
	}
}

// evictHolders removes every other holder of userName, live or not, and
// closes the live ones.
func (c *Controller) evictHolders(connID, sessionID, userName string) {
	for _, p := range c.participants.ByName(sessionID, userName) {
		if p.ID == connID {
			continue
		}
		c.removeParticipant(p)
		if c.rooms.IsLive(p.ID) {
			c.rooms.Disconnect(p.ID)
		}
	}
	for _, w := range c.waiting.ByName(sessionID, userName) {
		if w.ID == connID {
			continue
		}
		c.removeEntrant(w)
		if c.rooms.IsLive(w.ID) {
			c.rooms.Disconnect(w.ID)
		}
	}
}

// releaseForJoin clears a previous membership of connID before it joins
// again. A teacher rejoining its own session keeps its entry.
func (c *Controller) releaseForJoin(connID, sessionID string, isTeacher bool) {
	if p, ok := c.participants.Get(connID); ok && isTeacher && p.IsTeacher && p.SessionID == sessionID {
		return
	}
	c.release(connID)
}

func (c *Controller) release(connID string) bool {
	if w, ok := c.waiting.Get(connID); ok {
		c.removeEntrant(w)
		c.log.Info().Str("conn", connID).Str("user", w.UserName).Msg("waiting entrant left")
		return true
	}
	if p, ok := c.participants.Get(connID); ok {
		c.removeParticipant(p)
		c.log.Info().Str("conn", connID).Str("user", p.UserName).Msg("participant left")
		return true
	}
	return false
}

func (c *Controller) removeParticipant(p types.Participant) {
	c.participants.Remove(p.ID)
	c.rooms.Leave(p.ID, p.SessionID)
	if state, ok := c.sessions.Get(p.SessionID); ok {
		state.DropStrokes(p.ID)
	}
	c.rooms.Broadcast(p.SessionID, types.EventUserLeft, types.UserLeft{ID: p.ID, UserName: p.UserName}, p.ID)
}

func (c *Controller) removeEntrant(w types.WaitingEntrant) {
	c.waiting.Remove(w.ID)
	c.rooms.Leave(w.ID, types.WaitingRoom(w.SessionID))
	c.rooms.Broadcast(w.SessionID, types.EventWaitingStudentLeft, types.IDRef{ID: w.ID})
}

func (c *Controller) inSession(connID, sessionID string) bool {
	if p, ok := c.participants.Get(connID); ok {
		return p.SessionID == sessionID
	}
	if w, ok := c.waiting.Get(connID); ok {
		return w.SessionID == sessionID
	}
	return false
}
