package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liveclass/internal/chat"
	"liveclass/pkg/types"
)

// TestClassroom walks a teacher and two students through admission,
// document sync, signaling, chat and departure over real sockets.
func TestClassroom(t *testing.T) {
	srv := startServer(t)
	sessionID := srv.createSession(t)

	teacher := srv.dial(t, "teacher")
	teacher.send(types.EventJoinRoom, types.JoinRoom{SessionID: sessionID, UserName: "Teacher", IsTeacher: true})
	var teacherJoin types.Admitted
	teacher.expect(types.EventJoinApproved, &teacherJoin)
	require.NotEmpty(t, teacherJoin.ResumeToken)

	ayse := srv.dial(t, "ayse")
	ayse.send(types.EventJoinRoom, types.JoinRoom{SessionID: sessionID, UserName: "Ayşe"})
	var waiting types.Notice
	ayse.expect(types.EventWaitingForApproval, &waiting)
	assert.NotEmpty(t, waiting.Message)

	var entrant types.WaitingEntrant
	teacher.expect(types.EventStudentWaiting, &entrant)
	assert.Equal(t, "Ayşe", entrant.UserName)

	teacher.send(types.EventAdmitStudent, types.AdmitStudent{StudentSocketID: entrant.ID, SessionID: sessionID})
	var admitted types.Admitted
	ayse.expect(types.EventAdmissionApproved, &admitted)
	assert.Equal(t, entrant.ID, admitted.ID)
	var present []types.Participant
	ayse.expect(types.EventExistingParticipants, &present)
	require.Len(t, present, 1)
	assert.Equal(t, teacherJoin.ID, present[0].ID)

	var joined types.UserRef
	teacher.expect(types.EventUserJoined, &joined)
	assert.Equal(t, "Ayşe", joined.UserName)

	t.Run("document", func(t *testing.T) {
		doc := &types.DocumentState{PDFURL: "/docs/lesson.pdf", PDFName: "lesson.pdf", CurrentPage: 1, TotalPages: 12, Zoom: 1}
		teacher.send(types.EventPDFChange, types.PDFChange{SessionID: sessionID, PDFState: doc})
		var synced types.DocumentState
		ayse.expect(types.EventPDFSync, &synced)
		assert.Equal(t, *doc, synced)

		teacher.send(types.EventPDFPageChange, types.PDFPageChange{SessionID: sessionID, Page: 4})
		var page types.PageSync
		ayse.expect(types.EventPDFPageSync, &page)
		assert.Equal(t, 4, page.Page)
	})

	t.Run("signaling", func(t *testing.T) {
		ayse.send(types.EventSignalOffer, types.SignalOffer{To: teacherJoin.ID, Offer: json.RawMessage(`{"type":"offer","sdp":"v=0"}`)})
		var sig types.Signal
		teacher.expect(types.EventSignalOffer, &sig)
		assert.Equal(t, entrant.ID, sig.From)
		assert.JSONEq(t, `{"type":"offer","sdp":"v=0"}`, string(sig.Offer))
	})

	t.Run("chat", func(t *testing.T) {
		ayse.send(types.EventChatMessage, types.ChatPost{Text: "Merhaba"})
		var msg types.ChatMessage
		teacher.expect(types.EventChatMessage, &msg)
		assert.Equal(t, "Merhaba", msg.Text)
		assert.Equal(t, "Ayşe", msg.UserName)
		ayse.expect(types.EventChatMessage, nil)
	})

	t.Run("late joiner snapshot", func(t *testing.T) {
		ali := srv.dial(t, "ali")
		ali.send(types.EventJoinRoom, types.JoinRoom{SessionID: sessionID, UserName: "Ali"})
		ali.expect(types.EventWaitingForApproval, nil)

		var w types.WaitingEntrant
		teacher.expect(types.EventStudentWaiting, &w)
		teacher.send(types.EventAdmitStudent, types.AdmitStudent{StudentSocketID: w.ID, SessionID: sessionID})

		var doc types.DocumentState
		ali.expect(types.EventPDFSync, &doc)
		assert.Equal(t, 4, doc.CurrentPage)
		var history []types.ChatMessage
		ali.expect(types.EventChatHistory, &history)
		require.Len(t, history, 1)
		assert.Equal(t, "Merhaba", history[0].Text)
	})

	t.Run("departure", func(t *testing.T) {
		require.NoError(t, ayse.conn.Close())
		var left types.UserLeft
		teacher.expect(types.EventUserLeft, &left)
		assert.Equal(t, entrant.ID, left.ID)
	})

	resp, err := http.Get(srv.base + "/api/sessions/" + sessionID)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body struct {
		Data struct {
			ParticipantCount int `json:"participantCount"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 2, body.Data.ParticipantCount)

	srv.stop()
	store, err := chat.NewJSONFileStore(srv.cfg.Chat.Path)
	require.NoError(t, err)
	stored, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, sessionID, stored[0].SessionID)
}

func TestDeniedStudentIsDisconnected(t *testing.T) {
	srv := startServer(t)
	sessionID := srv.createSession(t)

	teacher := srv.dial(t, "teacher")
	teacher.send(types.EventJoinRoom, types.JoinRoom{SessionID: sessionID, UserName: "Teacher", IsTeacher: true})
	teacher.expect(types.EventJoinApproved, nil)

	student := srv.dial(t, "student")
	student.send(types.EventJoinRoom, types.JoinRoom{SessionID: sessionID, UserName: "Ali"})
	var w types.WaitingEntrant
	teacher.expect(types.EventStudentWaiting, &w)

	teacher.send(types.EventDenyStudent, types.DenyStudent{StudentSocketID: w.ID, SessionID: sessionID})
	student.expect(types.EventAdmissionDenied, nil)

	_ = student.conn.SetReadDeadline(time.Now().Add(readTimeout))
	_, _, err := student.conn.ReadMessage()
	assert.Error(t, err, "socket is closed after denial")
}

func TestReconnectWithResumeToken(t *testing.T) {
	srv := startServer(t)
	sessionID := srv.createSession(t)

	teacher := srv.dial(t, "teacher")
	teacher.send(types.EventJoinRoom, types.JoinRoom{SessionID: sessionID, UserName: "Teacher", IsTeacher: true})
	var first types.Admitted
	teacher.expect(types.EventJoinApproved, &first)
	require.NoError(t, teacher.conn.Close())

	again := srv.dial(t, "teacher again")
	again.send(types.EventReconnectRequest, types.ReconnectRequest{
		SessionID:   sessionID,
		UserName:    "Teacher",
		IsTeacher:   true,
		ResumeToken: first.ResumeToken,
	})
	var resumed types.Admitted
	again.expect(types.EventReconnectApproved, &resumed)
	assert.NotEqual(t, first.ResumeToken, resumed.ResumeToken)
	assert.NotEqual(t, first.ID, resumed.ID)
}

func TestRequestSyncBeforeJoinIsIgnored(t *testing.T) {
	srv := startServer(t)
	sessionID := srv.createSession(t)

	c := srv.dial(t, "stranger")
	c.send(types.EventRequestSync, types.RequestSync{SessionID: sessionID})
	c.send(types.EventChatMessage, types.ChatPost{Text: "hello?"})
	assert.Empty(t, c.collect(300*time.Millisecond))
}
