// Package signaling forwards WebRTC negotiation messages between peers.
// Payloads are opaque and never inspected.
package signaling

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"liveclass/internal/metrics"
	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

type Relay struct {
	rooms   interfaces.Rooms
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func NewRelay(rooms interfaces.Rooms, log zerolog.Logger, m *metrics.Metrics) *Relay {
	return &Relay{rooms: rooms, log: log, metrics: m}
}

func (r *Relay) Offer(from string, ev types.SignalOffer) error {
	return r.relay(types.EventSignalOffer, "offer", from, ev.To, types.Signal{From: from, Offer: ev.Offer})
}

func (r *Relay) Answer(from string, ev types.SignalAnswer) error {
	return r.relay(types.EventSignalAnswer, "answer", from, ev.To, types.Signal{From: from, Answer: ev.Answer})
}

func (r *Relay) Candidate(from string, ev types.SignalIceCandidate) error {
	return r.relay(types.EventSignalIceCandidate, "candidate", from, ev.To, types.Signal{From: from, Candidate: nullIfEmpty(ev.Candidate)})
}

// relay is best effort: a target that is gone drops the message.
func (r *Relay) relay(event, kind, from, to string, payload types.Signal) error {
	if !r.rooms.IsLive(to) {
		r.metrics.RelayDrop(kind)
		return fmt.Errorf("%w: %s from %s to %s", ErrTargetNotLive, kind, from, to)
	}
	r.rooms.Emit(to, event, payload)
	r.log.Debug().Str("from", from).Str("to", to).Str("kind", kind).Msg("signal relayed")
	return nil
}

// nullIfEmpty keeps an end-of-candidates null visible to the peer instead
// of dropping the field.
func nullIfEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	return raw
}
