package types

import "encoding/json"

// Client to server event names.
const (
	EventJoinRoom           = "join-room"
	EventLeaveRoom          = "leave-room"
	EventReconnectRequest   = "reconnect-request"
	EventRequestSync        = "request-sync"
	EventAdmitStudent       = "admit-student"
	EventDenyStudent        = "deny-student"
	EventToggleFocusMode    = "toggle-focus-mode"
	EventSignalOffer        = "signal-offer"
	EventSignalAnswer       = "signal-answer"
	EventSignalIceCandidate = "signal-ice-candidate"
	EventToggleAudio        = "toggle-audio"
	EventToggleVideo        = "toggle-video"
	EventRaiseHand          = "raise-hand"
	EventLowerHand          = "lower-hand"
	EventPDFChange          = "pdf-change"
	EventPDFPageChange      = "pdf-page-change"
	EventPDFZoomChange      = "pdf-zoom-change"
	EventPDFScrollChange    = "pdf-scroll-change"
	EventWhiteboardDraw     = "whiteboard-draw"
	EventWhiteboardClear    = "whiteboard-clear"
	EventChatMessage        = "chat-message"
	EventChatClear          = "chat-clear"
)

// Server to client event names. Signaling, whiteboard-draw, whiteboard-clear
// and chat-message reuse the client names.
const (
	EventJoinError            = "join-error"
	EventJoinApproved         = "join-approved"
	EventUserJoined           = "user-joined"
	EventUserLeft             = "user-left"
	EventUserReconnected      = "user-reconnected"
	EventReconnectApproved    = "reconnect-approved"
	EventExistingParticipants = "existing-participants"
	EventWaitingForApproval   = "waiting-for-approval"
	EventAdmissionApproved    = "admission-approved"
	EventAdmissionDenied      = "admission-denied"
	EventAdmissionError       = "admission-error"
	EventStudentWaiting       = "student-waiting"
	EventWaitingStudents      = "waiting-students"
	EventWaitingStudentLeft   = "waiting-student-left"
	EventParticipantUpdated   = "participant-updated"
	EventHandRaised           = "hand-raised"
	EventPDFSync              = "pdf-sync"
	EventPDFPageSync          = "pdf-page-sync"
	EventPDFZoomSync          = "pdf-zoom-sync"
	EventPDFScrollSync        = "pdf-scroll-sync"
	EventWhiteboardSync       = "whiteboard-sync"
	EventFocusModeSync        = "focus-mode-sync"
	EventChatHistory          = "chat-history"
	EventChatCleared          = "chat-cleared"
	EventError                = "error"
)

// Event is the closed set of inbound client events. Every implementation
// lives in this file; the hub switches over them exhaustively.
type Event interface {
	Name() string
	event()
}

type JoinRoom struct {
	SessionID string `json:"sessionId"`
	UserName  string `json:"userName"`
	IsTeacher bool   `json:"isTeacher"`
}

type LeaveRoom struct {
	SessionID string `json:"sessionId"`
}

// ReconnectRequest re-enters a session. A valid ResumeToken skips the
// waiting room; without one the request behaves like JoinRoom.
type ReconnectRequest struct {
	SessionID   string `json:"sessionId"`
	UserName    string `json:"userName"`
	IsTeacher   bool   `json:"isTeacher"`
	ResumeToken string `json:"resumeToken,omitempty"`
}

type RequestSync struct {
	SessionID string `json:"sessionId"`
}

type AdmitStudent struct {
	StudentSocketID string `json:"studentSocketId"`
	SessionID       string `json:"sessionId"`
}

type DenyStudent struct {
	StudentSocketID string `json:"studentSocketId"`
	SessionID       string `json:"sessionId"`
}

type ToggleFocusMode struct {
	SessionID string `json:"sessionId"`
	Enabled   bool   `json:"enabled"`
}

type SignalOffer struct {
	To    string          `json:"to"`
	Offer json.RawMessage `json:"offer"`
}

type SignalAnswer struct {
	To     string          `json:"to"`
	Answer json.RawMessage `json:"answer"`
}

type SignalIceCandidate struct {
	To        string          `json:"to"`
	Candidate json.RawMessage `json:"candidate"`
}

type ToggleAudio struct {
	IsMuted bool `json:"isMuted"`
}

type ToggleVideo struct {
	IsCameraOff bool `json:"isCameraOff"`
}

type RaiseHand struct {
	IsHandRaised bool `json:"isHandRaised"`
}

type LowerHand struct {
	TargetID string `json:"targetId"`
}

type PDFChange struct {
	SessionID string         `json:"sessionId"`
	PDFState  *DocumentState `json:"pdfState"`
}

type PDFPageChange struct {
	SessionID string `json:"sessionId"`
	Page      int    `json:"page"`
}

type PDFZoomChange struct {
	SessionID string  `json:"sessionId"`
	Zoom      float64 `json:"zoom"`
}

type PDFScrollChange struct {
	SessionID string  `json:"sessionId"`
	PercentX  float64 `json:"percentX"`
	PercentY  float64 `json:"percentY"`
}

// WhiteboardDraw keeps the raw event, which is what gets relayed; Draw is
// filled in by the decoder.
type WhiteboardDraw struct {
	SessionID string          `json:"sessionId"`
	Raw       json.RawMessage `json:"event"`
	Draw      DrawEvent       `json:"-"`
}

type WhiteboardClear struct {
	SessionID string `json:"sessionId"`
	PageIndex *int   `json:"pageIndex,omitempty"`
}

type ChatPost struct {
	Text string `json:"text"`
}

type ChatClear struct {
	SessionID string `json:"sessionId"`
}

func (JoinRoom) Name() string           { return EventJoinRoom }
func (LeaveRoom) Name() string          { return EventLeaveRoom }
func (ReconnectRequest) Name() string   { return EventReconnectRequest }
func (RequestSync) Name() string        { return EventRequestSync }
func (AdmitStudent) Name() string       { return EventAdmitStudent }
func (DenyStudent) Name() string        { return EventDenyStudent }
func (ToggleFocusMode) Name() string    { return EventToggleFocusMode }
func (SignalOffer) Name() string        { return EventSignalOffer }
func (SignalAnswer) Name() string       { return EventSignalAnswer }
func (SignalIceCandidate) Name() string { return EventSignalIceCandidate }
func (ToggleAudio) Name() string        { return EventToggleAudio }
func (ToggleVideo) Name() string        { return EventToggleVideo }
func (RaiseHand) Name() string          { return EventRaiseHand }
func (LowerHand) Name() string          { return EventLowerHand }
func (PDFChange) Name() string          { return EventPDFChange }
func (PDFPageChange) Name() string      { return EventPDFPageChange }
func (PDFZoomChange) Name() string      { return EventPDFZoomChange }
func (PDFScrollChange) Name() string    { return EventPDFScrollChange }
func (WhiteboardDraw) Name() string     { return EventWhiteboardDraw }
func (WhiteboardClear) Name() string    { return EventWhiteboardClear }
func (ChatPost) Name() string           { return EventChatMessage }
func (ChatClear) Name() string          { return EventChatClear }

func (JoinRoom) event()           {}
func (LeaveRoom) event()          {}
func (ReconnectRequest) event()   {}
func (RequestSync) event()        {}
func (AdmitStudent) event()       {}
func (DenyStudent) event()        {}
func (ToggleFocusMode) event()    {}
func (SignalOffer) event()        {}
func (SignalAnswer) event()       {}
func (SignalIceCandidate) event() {}
func (ToggleAudio) event()        {}
func (ToggleVideo) event()        {}
func (RaiseHand) event()          {}
func (LowerHand) event()          {}
func (PDFChange) event()          {}
func (PDFPageChange) event()      {}
func (PDFZoomChange) event()      {}
func (PDFScrollChange) event()    {}
func (WhiteboardDraw) event()     {}
func (WhiteboardClear) event()    {}
func (ChatPost) event()           {}
func (ChatClear) event()          {}

// NewEvent returns an empty value for the named inbound event, ready to be
// decoded into.
func NewEvent(name string) (Event, bool) {
	switch name {
	case EventJoinRoom:
		return &JoinRoom{}, true
	case EventLeaveRoom:
		return &LeaveRoom{}, true
	case EventReconnectRequest:
		return &ReconnectRequest{}, true
	case EventRequestSync:
		return &RequestSync{}, true
	case EventAdmitStudent:
		return &AdmitStudent{}, true
	case EventDenyStudent:
		return &DenyStudent{}, true
	case EventToggleFocusMode:
		return &ToggleFocusMode{}, true
	case EventSignalOffer:
		return &SignalOffer{}, true
	case EventSignalAnswer:
		return &SignalAnswer{}, true
	case EventSignalIceCandidate:
		return &SignalIceCandidate{}, true
	case EventToggleAudio:
		return &ToggleAudio{}, true
	case EventToggleVideo:
		return &ToggleVideo{}, true
	case EventRaiseHand:
		return &RaiseHand{}, true
	case EventLowerHand:
		return &LowerHand{}, true
	case EventPDFChange:
		return &PDFChange{}, true
	case EventPDFPageChange:
		return &PDFPageChange{}, true
	case EventPDFZoomChange:
		return &PDFZoomChange{}, true
	case EventPDFScrollChange:
		return &PDFScrollChange{}, true
	case EventWhiteboardDraw:
		return &WhiteboardDraw{}, true
	case EventWhiteboardClear:
		return &WhiteboardClear{}, true
	case EventChatMessage:
		return &ChatPost{}, true
	case EventChatClear:
		return &ChatClear{}, true
	}
	return nil, false
}

// Server payloads.

type UserRef struct {
	ID        string `json:"id"`
	UserName  string `json:"userName"`
	IsTeacher bool   `json:"isTeacher"`
}

type UserLeft struct {
	ID       string `json:"id"`
	UserName string `json:"userName"`
}

type IDRef struct {
	ID string `json:"id"`
}

type Notice struct {
	Message string `json:"message"`
}

// Admitted is sent to a connection that became a participant.
type Admitted struct {
	ID          string `json:"id"`
	Message     string `json:"message,omitempty"`
	ResumeToken string `json:"resumeToken"`
}

type ParticipantUpdate struct {
	ID          string `json:"id"`
	IsMuted     *bool  `json:"isMuted,omitempty"`
	IsCameraOff *bool  `json:"isCameraOff,omitempty"`
}

type HandRaised struct {
	ID           string `json:"id"`
	UserName     string `json:"userName"`
	IsHandRaised bool   `json:"isHandRaised"`
}

type PageSync struct {
	Page int `json:"page"`
}

type ZoomSync struct {
	Zoom float64 `json:"zoom"`
}

type ScrollSync struct {
	PercentX float64 `json:"percentX"`
	PercentY float64 `json:"percentY"`
}

type FocusSync struct {
	Enabled bool `json:"enabled"`
}

// WhiteboardSync carries every page log keyed by page number.
type WhiteboardSync struct {
	History map[int][]Annotation `json:"history"`
}

type ClearScope struct {
	PageIndex *int `json:"pageIndex,omitempty"`
}

// Signal is the relayed signaling payload; exactly one body field is set.
type Signal struct {
	From      string          `json:"from"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

type ChatCleared struct {
	SessionID string `json:"sessionId"`
}

type ErrorNotice struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}
