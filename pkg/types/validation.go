package types

import (
	"strings"
	"unicode/utf8"
)

// MaxUserNameLength bounds display names in runes.
const MaxUserNameLength = 50

// Validator is implemented by inbound events that carry checkable fields.
type Validator interface {
	Validate() error
}

// IsValidUserName checks a display name after trimming surrounding space.
func IsValidUserName(name string) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	return n >= 1 && n <= MaxUserNameLength
}

func (e *JoinRoom) Validate() error {
	if e.SessionID == "" {
		return ErrMissingSessionID
	}
	if !IsValidUserName(e.UserName) {
		return ErrInvalidUserName
	}
	e.UserName = strings.TrimSpace(e.UserName)
	return nil
}

func (e *ReconnectRequest) Validate() error {
	if e.SessionID == "" {
		return ErrMissingSessionID
	}
	if !IsValidUserName(e.UserName) {
		return ErrInvalidUserName
	}
	e.UserName = strings.TrimSpace(e.UserName)
	return nil
}

func (e *LeaveRoom) Validate() error       { return requireSession(e.SessionID) }
func (e *RequestSync) Validate() error     { return requireSession(e.SessionID) }
func (e *ToggleFocusMode) Validate() error { return requireSession(e.SessionID) }
func (e *ChatClear) Validate() error       { return requireSession(e.SessionID) }

func (e *AdmitStudent) Validate() error {
	if err := requireSession(e.SessionID); err != nil {
		return err
	}
	if e.StudentSocketID == "" {
		return ErrMissingTarget
	}
	return nil
}

func (e *DenyStudent) Validate() error {
	if err := requireSession(e.SessionID); err != nil {
		return err
	}
	if e.StudentSocketID == "" {
		return ErrMissingTarget
	}
	return nil
}

func (e *SignalOffer) Validate() error        { return requireTarget(e.To) }
func (e *SignalAnswer) Validate() error       { return requireTarget(e.To) }
func (e *SignalIceCandidate) Validate() error { return requireTarget(e.To) }
func (e *LowerHand) Validate() error          { return requireTarget(e.TargetID) }

func (e *PDFChange) Validate() error {
	if err := requireSession(e.SessionID); err != nil {
		return err
	}
	if e.PDFState == nil {
		return nil
	}
	return e.PDFState.Validate()
}

func (e *PDFPageChange) Validate() error {
	if err := requireSession(e.SessionID); err != nil {
		return err
	}
	if e.Page < 1 {
		return ErrInvalidPage
	}
	return nil
}

func (e *PDFZoomChange) Validate() error {
	if err := requireSession(e.SessionID); err != nil {
		return err
	}
	if e.Zoom <= 0 {
		return ErrInvalidZoom
	}
	return nil
}

func (e *PDFScrollChange) Validate() error {
	if err := requireSession(e.SessionID); err != nil {
		return err
	}
	if !isPercent(e.PercentX) || !isPercent(e.PercentY) {
		return ErrInvalidPercentage
	}
	return nil
}

func (e *WhiteboardDraw) Validate() error {
	if err := requireSession(e.SessionID); err != nil {
		return err
	}
	ev, err := DecodeDrawEvent(e.Raw)
	if err != nil {
		return err
	}
	e.Draw = ev
	return nil
}

func (e *WhiteboardClear) Validate() error {
	if err := requireSession(e.SessionID); err != nil {
		return err
	}
	if e.PageIndex != nil && *e.PageIndex < 1 {
		return ErrInvalidPage
	}
	return nil
}

// Validate checks a document state. An empty zoom defaults to 1.
func (d *DocumentState) Validate() error {
	if strings.TrimSpace(d.PDFURL) == "" {
		return ErrInvalidDocument
	}
	if d.CurrentPage < 1 {
		return ErrInvalidPage
	}
	if d.TotalPages < 0 || (d.TotalPages > 0 && d.CurrentPage > d.TotalPages) {
		return ErrInvalidPage
	}
	if d.Zoom == 0 {
		d.Zoom = 1
	}
	if d.Zoom < 0 {
		return ErrInvalidZoom
	}
	return nil
}

// ValidateDrawEvent enforces normalized coordinates and the required fields
// of each whiteboard event type.
func ValidateDrawEvent(ev DrawEvent) error {
	switch e := ev.(type) {
	case PathAction:
		if len(e.Points) == 0 {
			return ErrEmptyPath
		}
		if err := validatePoints(e.Points); err != nil {
			return err
		}
		return validateStyle(e.LineWidth, e.PageNum)
	case TextAction:
		if strings.TrimSpace(e.Text) == "" {
			return ErrEmptyText
		}
		if !(Point{X: e.X, Y: e.Y}).Normalized() {
			return ErrPointOutOfRange
		}
		return validatePage(e.PageNum)
	case SymbolAction:
		if e.Symbol == "" {
			return ErrEmptyText
		}
		if !(Point{X: e.X, Y: e.Y}).Normalized() {
			return ErrPointOutOfRange
		}
		return validatePage(e.PageNum)
	case StrokeStart:
		if e.StrokeID == "" {
			return ErrMissingStrokeID
		}
		if !e.Point.Normalized() {
			return ErrPointOutOfRange
		}
		return validateStyle(e.LineWidth, e.PageNum)
	case StrokeMove:
		if e.StrokeID == "" {
			return ErrMissingStrokeID
		}
		if !e.Point.Normalized() {
			return ErrPointOutOfRange
		}
	case StrokeEnd:
		if e.StrokeID == "" {
			return ErrMissingStrokeID
		}
		if err := validatePoints(e.Points); err != nil {
			return err
		}
		if e.LineWidth < 0 {
			return ErrInvalidLineWidth
		}
	case Scroll:
		if !isPercent(e.PercentX) || !isPercent(e.PercentY) {
			return ErrInvalidPercentage
		}
	}
	return nil
}

func requireSession(id string) error {
	if id == "" {
		return ErrMissingSessionID
	}
	return nil
}

func requireTarget(id string) error {
	if id == "" {
		return ErrMissingTarget
	}
	return nil
}

func validatePoints(points []Point) error {
	for _, p := range points {
		if !p.Normalized() {
			return ErrPointOutOfRange
		}
	}
	return nil
}

func validateStyle(lineWidth float64, page int) error {
	if lineWidth < 0 {
		return ErrInvalidLineWidth
	}
	return validatePage(page)
}

func validatePage(page int) error {
	if page < 1 {
		return ErrInvalidPage
	}
	return nil
}

func isPercent(v float64) bool { return v >= 0 && v <= 100 }
