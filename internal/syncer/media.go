package syncer

import "liveclass/pkg/types"

func (b *Broadcaster) ToggleAudio(connID string, ev types.ToggleAudio) error {
	p, err := b.participants.Update(connID, func(p *types.Participant) { p.IsMuted = ev.IsMuted })
	if err != nil {
		return ErrNotParticipant
	}
	muted := ev.IsMuted
	b.rooms.Broadcast(p.SessionID, types.EventParticipantUpdated, types.ParticipantUpdate{ID: connID, IsMuted: &muted}, connID)
	return nil
}

func (b *Broadcaster) ToggleVideo(connID string, ev types.ToggleVideo) error {
	p, err := b.participants.Update(connID, func(p *types.Participant) { p.IsCameraOff = ev.IsCameraOff })
	if err != nil {
		return ErrNotParticipant
	}
	off := ev.IsCameraOff
	b.rooms.Broadcast(p.SessionID, types.EventParticipantUpdated, types.ParticipantUpdate{ID: connID, IsCameraOff: &off}, connID)
	return nil
}

func (b *Broadcaster) RaiseHand(connID string, ev types.RaiseHand) error {
	p, err := b.participants.Update(connID, func(p *types.Participant) { p.IsHandRaised = ev.IsHandRaised })
	if err != nil {
		return ErrNotParticipant
	}
	b.broadcastHand(p)
	return nil
}

// LowerHand may be sent by the target itself or by its session's teacher.
func (b *Broadcaster) LowerHand(connID string, ev types.LowerHand) error {
	target, ok := b.participants.Get(ev.TargetID)
	if !ok {
		return ErrNotParticipant
	}
	if connID != target.ID && !b.participants.IsTeacherOf(connID, target.SessionID) {
		return ErrNotAllowed
	}
	p, err := b.participants.Update(target.ID, func(p *types.Participant) { p.IsHandRaised = false })
	if err != nil {
		return ErrNotParticipant
	}
	b.broadcastHand(p)
	return nil
}

func (b *Broadcaster) broadcastHand(p types.Participant) {
	b.rooms.Broadcast(p.SessionID, types.EventHandRaised, types.HandRaised{
		ID:           p.ID,
		UserName:     p.UserName,
		IsHandRaised: p.IsHandRaised,
	})
}
