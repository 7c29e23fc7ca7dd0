package types

import (
	"encoding/json"
	"time"
)

// Participant is an admitted member of a session, keyed by connection id.
type Participant struct {
	ID           string `json:"id"`
	UserName     string `json:"userName"`
	IsTeacher    bool   `json:"isTeacher"`
	SessionID    string `json:"sessionId"`
	IsMuted      bool   `json:"isMuted"`
	IsCameraOff  bool   `json:"isCameraOff"`
	IsHandRaised bool   `json:"isHandRaised"`
	IsApproved   bool   `json:"isApproved"`
}

// WaitingEntrant is a student who asked to join and has not been admitted yet.
type WaitingEntrant struct {
	ID          string `json:"id"`
	UserName    string `json:"userName"`
	SessionID   string `json:"sessionId"`
	RequestedAt string `json:"requestedAt"`
}

// DocumentState is the shared document viewer position.
type DocumentState struct {
	PDFURL      string  `json:"pdfUrl"`
	PDFName     string  `json:"pdfName"`
	CurrentPage int     `json:"currentPage"`
	TotalPages  int     `json:"totalPages"`
	Zoom        float64 `json:"zoom"`
}

// ChatMessage is one entry of a session chat.
type ChatMessage struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	IsTeacher bool      `json:"isTeacher"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Envelope is the inbound frame shape: a named event with a raw payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Frame is the outbound frame shape.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// WaitingRoom names the pending broadcast group of a session.
func WaitingRoom(sessionID string) string {
	return sessionID + "-waiting"
}
