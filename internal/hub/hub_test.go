package hub

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liveclass/internal/admission"
	"liveclass/internal/roster"
	"liveclass/internal/router"
	"liveclass/internal/session"
	"liveclass/internal/signaling"
	"liveclass/internal/syncer"
	"liveclass/internal/websocket"
	"liveclass/pkg/types"
)

type fakeConn struct {
	id     string
	mu     sync.Mutex
	frames []types.Envelope
	closed bool
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(data []byte) error {
	var env types.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, env)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, len(c.frames))
	for i, f := range c.frames {
		names[i] = f.Event
	}
	return names
}

type noChat struct{}

func (noChat) History(string) []types.ChatMessage { return nil }
func (noChat) Post(p types.Participant, text string) (types.ChatMessage, error) {
	return types.ChatMessage{ID: "m", SessionID: p.SessionID, UserID: p.ID, Text: text}, nil
}
func (noChat) Clear(string) int { return 0 }

type testHub struct {
	*Hub
	participants *roster.Participants
	sessions     *session.Store
}

func newTestHub(t *testing.T, chatLimit int) *testHub {
	t.Helper()
	log := zerolog.Nop()
	registry := websocket.NewRegistry(log, nil)
	participants := roster.NewParticipants()
	waiting := roster.NewWaiting()
	sessions := session.NewStore(session.Defaults{StrokeThrottle: 20 * time.Millisecond})

	h := NewHub(Components{
		Registry:  registry,
		Router:    router.NewRouter(router.NewRateLimiter(chatLimit, time.Minute), types.EventChatMessage),
		Admission: admission.NewController(registry, participants, waiting, sessions, noChat{}, log, nil),
		Relay:     signaling.NewRelay(registry, log, nil),
		Sync:      syncer.NewBroadcaster(registry, participants, sessions, noChat{}, log, nil),
	}, log, nil)
	require.NoError(t, h.Start(context.Background()))
	t.Cleanup(func() { _ = h.Stop() })
	return &testHub{Hub: h, participants: participants, sessions: sessions}
}

func (h *testHub) connect(t *testing.T, id string) *fakeConn {
	t.Helper()
	c := &fakeConn{id: id}
	require.NoError(t, h.register(c))
	return c
}

func (h *testHub) send(t *testing.T, c *fakeConn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"event": event, "data": data})
	require.NoError(t, err)
	h.receive(c.id, raw)
}

// sync waits until everything queued so far has been applied.
func (h *testHub) sync(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		drained := false
		require.NoError(t, h.Do(ctx, func() {
			drained = len(h.eventChannel) == 0 && len(h.unregisterChannel) == 0
		}))
		if drained {
			return
		}
	}
}

func TestHub_StartStop(t *testing.T) {
	h := NewHub(Components{}, zerolog.Nop(), nil)
	ctx := context.Background()

	require.NoError(t, h.Start(ctx))
	assert.ErrorIs(t, h.Start(ctx), ErrHubAlreadyRunning)
	assert.True(t, h.Running())

	require.NoError(t, h.Stop())
	assert.ErrorIs(t, h.Stop(), ErrHubNotRunning)
	assert.ErrorIs(t, h.Do(ctx, func() {}), ErrHubNotRunning)

	require.NoError(t, h.Start(ctx), "a stopped hub can be restarted")
	require.NoError(t, h.Stop())
}

func TestHub_ContextCancelStops(t *testing.T) {
	h := NewHub(Components{}, zerolog.Nop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.Start(ctx))
	cancel()

	assert.Eventually(t, func() bool { return !h.Running() }, time.Second, 5*time.Millisecond)
}

func TestHub_DoRunsOnLoop(t *testing.T) {
	h := newTestHub(t, 100)
	teacher := h.connect(t, "teacher")
	h.send(t, teacher, types.EventJoinRoom, map[string]any{"sessionId": "s1", "userName": "Derya", "isTeacher": true})
	h.sync(t)

	var count, sessions int
	require.NoError(t, h.Do(context.Background(), func() {
		count = h.participants.Len()
		sessions = h.sessions.Len()
	}))
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, sessions)
}

func TestHub_AdmissionFlow(t *testing.T) {
	h := newTestHub(t, 100)
	teacher := h.connect(t, "teacher")
	ayse := h.connect(t, "ayse")

	h.send(t, teacher, types.EventJoinRoom, map[string]any{"sessionId": "s1", "userName": "Derya", "isTeacher": true})
	h.sync(t)
	h.send(t, ayse, types.EventJoinRoom, map[string]any{"sessionId": "s1", "userName": " Ayşe "})
	h.sync(t)
	h.send(t, teacher, types.EventAdmitStudent, map[string]any{"studentSocketId": "ayse", "sessionId": "s1"})
	h.sync(t)

	assert.Equal(t, []string{
		types.EventExistingParticipants,
		types.EventJoinApproved,
		types.EventStudentWaiting,
		types.EventWaitingStudentLeft,
		types.EventUserJoined,
	}, teacher.events())
	assert.Equal(t, []string{
		types.EventWaitingForApproval,
		types.EventAdmissionApproved,
		types.EventExistingParticipants,
		types.EventUserJoined,
	}, ayse.events())

	h.unregister("ayse")
	h.unregister("ayse")
	h.sync(t)
	assert.Equal(t, 1, countEvent(teacher.events(), types.EventUserLeft), "cleanup runs once")
}

func TestHub_EventsAfterDisconnectAreIgnored(t *testing.T) {
	h := newTestHub(t, 100)
	teacher := h.connect(t, "teacher")
	h.unregister("teacher")
	h.sync(t)

	h.send(t, teacher, types.EventJoinRoom, map[string]any{"sessionId": "s1", "userName": "Derya", "isTeacher": true})
	h.sync(t)
	assert.Empty(t, teacher.events())
}

func TestHub_InvalidFramesAreDropped(t *testing.T) {
	h := newTestHub(t, 100)
	c := h.connect(t, "c1")

	h.receive("c1", []byte("not json"))
	h.send(t, c, "no-such-event", nil)
	h.send(t, c, types.EventJoinRoom, map[string]any{"sessionId": "", "userName": "x"})
	h.sync(t)

	assert.Empty(t, c.events())
	assert.Equal(t, 0, h.participants.Len())
}

func TestHub_RateLimitAnswersWithError(t *testing.T) {
	h := newTestHub(t, 2)
	teacher := h.connect(t, "teacher")
	h.send(t, teacher, types.EventJoinRoom, map[string]any{"sessionId": "s1", "userName": "Derya", "isTeacher": true})
	h.sync(t)

	for i := 0; i < 3; i++ {
		h.send(t, teacher, types.EventChatMessage, map[string]any{"text": "hi"})
	}
	h.sync(t)

	events := teacher.events()
	assert.Equal(t, 2, countEvent(events, types.EventChatMessage))
	assert.Equal(t, 1, countEvent(events, types.EventError))
}

func TestHub_DuplicateRegistration(t *testing.T) {
	h := newTestHub(t, 100)
	h.connect(t, "c1")
	assert.ErrorIs(t, h.register(&fakeConn{id: "c1"}), websocket.ErrDuplicateConnection)
}

func countEvent(events []string, name string) int {
	n := 0
	for _, e := range events {
		if e == name {
			n++
		}
	}
	return n
}
