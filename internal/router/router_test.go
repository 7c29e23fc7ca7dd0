package router

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liveclass/pkg/types"
)

func TestDecode_TypedEvents(t *testing.T) {
	r := NewRouter(nil)

	ev, name, err := r.Decode("c1", []byte(`{"event":"join-room","data":{"sessionId":"abc","userName":"Ayşe","isTeacher":false}}`))
	require.NoError(t, err)
	assert.Equal(t, types.EventJoinRoom, name)
	join, ok := ev.(*types.JoinRoom)
	require.True(t, ok)
	assert.Equal(t, "abc", join.SessionID)
	assert.Equal(t, "Ayşe", join.UserName)

	ev, _, err = r.Decode("c1", []byte(`{"event":"signal-offer","data":{"to":"c2","offer":{"type":"offer","sdp":"v=0"}}}`))
	require.NoError(t, err)
	offer := ev.(*types.SignalOffer)
	assert.JSONEq(t, `{"type":"offer","sdp":"v=0"}`, string(offer.Offer))

	ev, _, err = r.Decode("c1", []byte(`{"event":"whiteboard-draw","data":{"sessionId":"abc","event":{"type":"path","points":[{"x":0.1,"y":0.1}],"pageNum":1}}}`))
	require.NoError(t, err)
	draw := ev.(*types.WhiteboardDraw)
	assert.Equal(t, types.DrawPath, draw.Draw.DrawType())
}

func TestDecode_MissingDataDecodesEmpty(t *testing.T) {
	r := NewRouter(nil)
	ev, _, err := r.Decode("c1", []byte(`{"event":"toggle-audio"}`))
	require.NoError(t, err)
	assert.False(t, ev.(*types.ToggleAudio).IsMuted)
}

func TestDecode_Errors(t *testing.T) {
	r := NewRouter(nil)
	tests := []struct {
		name  string
		frame string
		err   error
	}{
		{"not json", `nope`, ErrInvalidPayload},
		{"unknown event", `{"event":"user-joined","data":{}}`, ErrUnknownEvent},
		{"wrong field type", `{"event":"pdf-page-change","data":{"sessionId":"abc","page":"two"}}`, ErrInvalidPayload},
		{"failed validation", `{"event":"pdf-page-change","data":{"sessionId":"abc","page":0}}`, ErrInvalidPayload},
		{"bad point", `{"event":"whiteboard-draw","data":{"sessionId":"abc","event":{"type":"text","text":"a","x":3,"y":0,"pageNum":1}}}`, ErrInvalidPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := r.Decode("c1", []byte(tt.frame))
			assert.True(t, errors.Is(err, tt.err), "got %v", err)
		})
	}

	_, _, err := r.Decode("c1", []byte(`{"event":"pdf-page-change","data":{"sessionId":"abc","page":0}}`))
	assert.ErrorIs(t, err, types.ErrInvalidPage, "the validation cause stays reachable")
}

func TestDecode_RateLimitsListedEvents(t *testing.T) {
	r := NewRouter(NewRateLimiter(2, time.Minute), types.EventChatMessage)
	chat := []byte(`{"event":"chat-message","data":{"text":"hi"}}`)

	for i := 0; i < 2; i++ {
		_, _, err := r.Decode("c1", chat)
		require.NoError(t, err)
	}
	_, name, err := r.Decode("c1", chat)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, types.EventChatMessage, name)

	_, _, err = r.Decode("c2", chat)
	assert.NoError(t, err, "limits are per connection")

	_, _, err = r.Decode("c1", []byte(`{"event":"raise-hand","data":{"isHandRaised":true}}`))
	assert.NoError(t, err, "unlisted events are not limited")

	r.Forget("c1")
	_, _, err = r.Decode("c1", chat)
	assert.NoError(t, err)
}
